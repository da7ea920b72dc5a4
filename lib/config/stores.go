package config

import (
	"fmt"

	"github.com/banquet-labs/banquet/lib/stringutil"
)

type OnlineStoreType string

const (
	OnlineStoreMemory OnlineStoreType = "memory"
	OnlineStoreRedis  OnlineStoreType = "redis"
	OnlineStoreMongo  OnlineStoreType = "mongodb"
)

type Redis struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password,omitempty"`
	Database int    `yaml:"database,omitempty"`
}

func (r Redis) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type Mongo struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

type OnlineStore struct {
	Type  OnlineStoreType `yaml:"type"`
	Redis *Redis          `yaml:"redis,omitempty"`
	Mongo *Mongo          `yaml:"mongodb,omitempty"`
}

func (o OnlineStore) Validate() error {
	switch o.Type {
	case OnlineStoreMemory:
		return nil
	case OnlineStoreRedis:
		if o.Redis == nil {
			return fmt.Errorf("redis config is nil")
		}
		if o.Redis.Host == "" {
			return fmt.Errorf("redis host is empty")
		}
		if o.Redis.Port <= 0 {
			return fmt.Errorf("invalid redis port: %d", o.Redis.Port)
		}
		return nil
	case OnlineStoreMongo:
		if o.Mongo == nil {
			return fmt.Errorf("mongodb config is nil")
		}
		if stringutil.Empty(o.Mongo.URI, o.Mongo.Database) {
			return fmt.Errorf("mongodb uri and database are required")
		}
		return nil
	default:
		return fmt.Errorf("unsupported online store type: %q", o.Type)
	}
}

type OfflineStoreType string

const (
	OfflineStoreFile       OfflineStoreType = "file"
	OfflineStorePostgres   OfflineStoreType = "postgres"
	OfflineStoreRedshift   OfflineStoreType = "redshift"
	OfflineStoreSnowflake  OfflineStoreType = "snowflake"
	OfflineStoreBigQuery   OfflineStoreType = "bigquery"
	OfflineStoreMySQL      OfflineStoreType = "mysql"
	OfflineStoreClickHouse OfflineStoreType = "clickhouse"
	OfflineStoreMSSQL      OfflineStoreType = "mssql"
)

type File struct {
	// Dir anchors relative CSV paths in file data sources.
	Dir string `yaml:"dir,omitempty"`
}

// SQLConnection covers the host/port/user warehouses (postgres, redshift, mysql,
// clickhouse, mssql).
type SQLConnection struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password,omitempty"`
	Database string `yaml:"database"`
	// SSLMode is only read by the postgres family.
	SSLMode string `yaml:"sslMode,omitempty"`
}

func (s SQLConnection) Validate() error {
	if stringutil.Empty(s.Host, s.Username, s.Database) {
		return fmt.Errorf("host, username and database are required")
	}

	if s.Port <= 0 {
		return fmt.Errorf("invalid port: %d", s.Port)
	}

	return nil
}

type Snowflake struct {
	AccountID string `yaml:"account"`
	Username  string `yaml:"username"`
	// Password may be omitted in favor of the SNOWFLAKE_PASSWORD environment variable.
	Password  string `yaml:"password,omitempty"`
	Warehouse string `yaml:"warehouse"`
	Database  string `yaml:"database"`
	Schema    string `yaml:"schema"`
	Role      string `yaml:"role,omitempty"`
	Region    string `yaml:"region,omitempty"`
	Host      string `yaml:"host,omitempty"`
}

type BigQuery struct {
	// PathToCredentials is _optional_ if you have GOOGLE_APPLICATION_CREDENTIALS set as an env var
	// Links to credentials: https://cloud.google.com/docs/authentication/application-default-credentials#GAC
	PathToCredentials string `yaml:"pathToCredentials,omitempty"`
	ProjectID         string `yaml:"projectID"`
	DefaultDataset    string `yaml:"defaultDataset"`
}

type OfflineStore struct {
	Type OfflineStoreType `yaml:"type"`

	File       *File          `yaml:"file,omitempty"`
	Postgres   *SQLConnection `yaml:"postgres,omitempty"`
	Redshift   *SQLConnection `yaml:"redshift,omitempty"`
	Snowflake  *Snowflake     `yaml:"snowflake,omitempty"`
	BigQuery   *BigQuery      `yaml:"bigquery,omitempty"`
	MySQL      *SQLConnection `yaml:"mysql,omitempty"`
	ClickHouse *SQLConnection `yaml:"clickhouse,omitempty"`
	MSSQL      *SQLConnection `yaml:"mssql,omitempty"`
}

func (o OfflineStore) Validate() error {
	switch o.Type {
	case OfflineStoreFile:
		return nil
	case OfflineStorePostgres, OfflineStoreRedshift, OfflineStoreMySQL, OfflineStoreClickHouse, OfflineStoreMSSQL:
		conn := o.connectionFor(o.Type)
		if conn == nil {
			return fmt.Errorf("%s config is nil", o.Type)
		}
		return conn.Validate()
	case OfflineStoreSnowflake:
		if o.Snowflake == nil {
			return fmt.Errorf("snowflake config is nil")
		}
		if stringutil.Empty(o.Snowflake.AccountID, o.Snowflake.Username, o.Snowflake.Warehouse, o.Snowflake.Database) {
			return fmt.Errorf("snowflake account, username, warehouse and database are required")
		}
		return nil
	case OfflineStoreBigQuery:
		if o.BigQuery == nil {
			return fmt.Errorf("bigquery config is nil")
		}
		if stringutil.Empty(o.BigQuery.ProjectID, o.BigQuery.DefaultDataset) {
			return fmt.Errorf("bigquery projectID and defaultDataset are required")
		}
		return nil
	default:
		return fmt.Errorf("unsupported offline store type: %q", o.Type)
	}
}

func (o OfflineStore) connectionFor(storeType OfflineStoreType) *SQLConnection {
	switch storeType {
	case OfflineStorePostgres:
		return o.Postgres
	case OfflineStoreRedshift:
		return o.Redshift
	case OfflineStoreMySQL:
		return o.MySQL
	case OfflineStoreClickHouse:
		return o.ClickHouse
	case OfflineStoreMSSQL:
		return o.MSSQL
	default:
		return nil
	}
}

// Connection returns the host/port connection config for the active SQL store type.
func (o OfflineStore) Connection() *SQLConnection {
	return o.connectionFor(o.Type)
}
