package models

import (
	"fmt"
)

type DataSourceType string

const (
	FileSource       DataSourceType = "file"
	PostgresSource   DataSourceType = "postgres"
	RedshiftSource   DataSourceType = "redshift"
	SnowflakeSource  DataSourceType = "snowflake"
	BigQuerySource   DataSourceType = "bigquery"
	MySQLSource      DataSourceType = "mysql"
	ClickHouseSource DataSourceType = "clickhouse"
	MSSQLSource      DataSourceType = "mssql"
	KafkaSource      DataSourceType = "kafka"
	PushSource       DataSourceType = "push"
)

var sqlSourceTypes = map[DataSourceType]bool{
	PostgresSource:   true,
	RedshiftSource:   true,
	SnowflakeSource:  true,
	BigQuerySource:   true,
	MySQLSource:      true,
	ClickHouseSource: true,
	MSSQLSource:      true,
}

// DataSource describes where feature data lives. Exactly one location field is
// relevant per type: Path (file), Table/Query (SQL warehouses), Topic (kafka).
// Push sources carry a BatchSource for offline fan-out.
type DataSource struct {
	Name string         `yaml:"name" json:"name"`
	Type DataSourceType `yaml:"type" json:"type"`

	// TimestampField is the event timestamp column. CreatedTimestampColumn breaks
	// ties between rows sharing an event timestamp.
	TimestampField         string `yaml:"timestampField,omitempty" json:"timestampField,omitempty"`
	CreatedTimestampColumn string `yaml:"createdTimestampColumn,omitempty" json:"createdTimestampColumn,omitempty"`

	// FieldMapping renames source columns to feature names (source column -> feature).
	FieldMapping map[string]string `yaml:"fieldMapping,omitempty" json:"fieldMapping,omitempty"`

	Path  string `yaml:"path,omitempty" json:"path,omitempty"`
	Table string `yaml:"table,omitempty" json:"table,omitempty"`
	Query string `yaml:"query,omitempty" json:"query,omitempty"`
	Topic string `yaml:"topic,omitempty" json:"topic,omitempty"`

	BatchSource *DataSource `yaml:"batchSource,omitempty" json:"batchSource,omitempty"`
}

func (d DataSource) IsSQL() bool {
	return sqlSourceTypes[d.Type]
}

func (d DataSource) IsStream() bool {
	return d.Type == KafkaSource || d.Type == PushSource
}

// ColumnForField resolves the source column backing a feature name, honoring FieldMapping.
func (d DataSource) ColumnForField(field string) string {
	for column, mapped := range d.FieldMapping {
		if mapped == field {
			return column
		}
	}

	return field
}

// FieldForColumn is the inverse of ColumnForField.
func (d DataSource) FieldForColumn(column string) string {
	if mapped, isOk := d.FieldMapping[column]; isOk {
		return mapped
	}

	return column
}

func (d DataSource) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("data source name is empty")
	}

	switch {
	case d.Type == FileSource:
		if d.Path == "" {
			return fmt.Errorf("file source %q has no path", d.Name)
		}
	case d.IsSQL():
		if d.Table == "" && d.Query == "" {
			return fmt.Errorf("%s source %q needs a table or a query", d.Type, d.Name)
		}
		if d.Table != "" && d.Query != "" {
			return fmt.Errorf("%s source %q has both a table and a query", d.Type, d.Name)
		}
	case d.Type == KafkaSource:
		if d.Topic == "" {
			return fmt.Errorf("kafka source %q has no topic", d.Name)
		}
	case d.Type == PushSource:
		if d.BatchSource != nil {
			if err := d.BatchSource.Validate(); err != nil {
				return fmt.Errorf("push source %q batch source: %w", d.Name, err)
			}
		}
	default:
		return fmt.Errorf("data source %q has an unsupported type: %q", d.Name, d.Type)
	}

	if !d.IsStream() && d.TimestampField == "" {
		return fmt.Errorf("data source %q has no timestamp field", d.Name)
	}

	return nil
}
