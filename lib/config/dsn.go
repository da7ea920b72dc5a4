package config

import (
	"cmp"
	"fmt"
	"net/url"
	"os"

	"github.com/snowflakedb/gosnowflake"

	"github.com/banquet-labs/banquet/lib/ptr"
)

func (s SQLConnection) PostgresDSN() string {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s", s.Username, s.Password, s.Host, s.Port, s.Database)
	if s.SSLMode != "" {
		dsn = fmt.Sprintf("%s?sslmode=%s", dsn, s.SSLMode)
	}

	return dsn
}

func (s SQLConnection) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true", s.Username, s.Password, s.Host, s.Port, s.Database)
}

func (s SQLConnection) ClickHouseDSN() string {
	query := url.Values{}
	query.Add("username", s.Username)
	if s.Password != "" {
		query.Add("password", s.Password)
	}

	u := &url.URL{
		Scheme:   "clickhouse",
		Host:     fmt.Sprintf("%s:%d", s.Host, s.Port),
		Path:     s.Database,
		RawQuery: query.Encode(),
	}

	return u.String()
}

func (s SQLConnection) MSSQLDSN() string {
	query := url.Values{}
	query.Add("database", s.Database)

	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(s.Username, s.Password),
		Host:     fmt.Sprintf("%s:%d", s.Host, s.Port),
		RawQuery: query.Encode(),
	}

	return u.String()
}

func (s Snowflake) ToConfig() *gosnowflake.Config {
	cfg := &gosnowflake.Config{
		Account:   s.AccountID,
		User:      s.Username,
		Password:  cmp.Or(s.Password, os.Getenv("SNOWFLAKE_PASSWORD")),
		Warehouse: s.Warehouse,
		Database:  s.Database,
		Schema:    s.Schema,
		Role:      s.Role,
		Region:    s.Region,
		Params: map[string]*string{
			// This parameter will cancel in-progress queries if connectivity is lost.
			// https://docs.snowflake.com/en/sql-reference/parameters#abort-detached-query
			"ABORT_DETACHED_QUERY": ptr.To("true"),
			// This parameter must be set to prevent the auth token from expiring after 4 hours.
			// https://docs.snowflake.com/en/user-guide/session-policies#considerations
			"CLIENT_SESSION_KEEP_ALIVE": ptr.To("true"),
		},
	}

	if s.Host != "" {
		// If the host is specified
		cfg.Host = s.Host
		cfg.Region = ""
	}

	return cfg
}

// DSN - returns the notation for BigQuery following this format: bigquery://projectID/datasetID
func (b BigQuery) DSN() string {
	return fmt.Sprintf("bigquery://%s/%s", b.ProjectID, b.DefaultDataset)
}
