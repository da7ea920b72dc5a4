// Package utils wires config to the concrete online and offline store backends.
package utils

import (
	"context"
	"fmt"

	"github.com/banquet-labs/banquet/lib/config"
	"github.com/banquet-labs/banquet/stores/offline"
	"github.com/banquet-labs/banquet/stores/offline/bigquery"
	"github.com/banquet-labs/banquet/stores/offline/clickhouse"
	"github.com/banquet-labs/banquet/stores/offline/file"
	"github.com/banquet-labs/banquet/stores/offline/mssql"
	"github.com/banquet-labs/banquet/stores/offline/mysql"
	"github.com/banquet-labs/banquet/stores/offline/postgres"
	"github.com/banquet-labs/banquet/stores/offline/redshift"
	"github.com/banquet-labs/banquet/stores/offline/snowflake"
	"github.com/banquet-labs/banquet/stores/online"
	"github.com/banquet-labs/banquet/stores/online/memory"
	"github.com/banquet-labs/banquet/stores/online/mongo"
	"github.com/banquet-labs/banquet/stores/online/redis"
)

func LoadOnlineStore(ctx context.Context, project string, cfg config.OnlineStore) (online.Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Type {
	case config.OnlineStoreMemory:
		return memory.NewStore(), nil
	case config.OnlineStoreRedis:
		return redis.LoadStore(ctx, project, cfg.Redis)
	case config.OnlineStoreMongo:
		return mongo.LoadStore(ctx, project, cfg.Mongo)
	default:
		return nil, fmt.Errorf("unsupported online store type: %q", cfg.Type)
	}
}

func LoadOfflineStore(ctx context.Context, cfg config.OfflineStore) (offline.Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Type {
	case config.OfflineStoreFile:
		var dir string
		if cfg.File != nil {
			dir = cfg.File.Dir
		}
		return file.NewStore(dir), nil
	case config.OfflineStorePostgres:
		return postgres.LoadStore(ctx, cfg.Postgres)
	case config.OfflineStoreRedshift:
		return redshift.LoadStore(ctx, cfg.Redshift)
	case config.OfflineStoreSnowflake:
		return snowflake.LoadStore(ctx, cfg.Snowflake)
	case config.OfflineStoreBigQuery:
		return bigquery.LoadStore(ctx, cfg.BigQuery)
	case config.OfflineStoreMySQL:
		return mysql.LoadStore(ctx, cfg.MySQL)
	case config.OfflineStoreClickHouse:
		return clickhouse.LoadStore(ctx, cfg.ClickHouse)
	case config.OfflineStoreMSSQL:
		return mssql.LoadStore(ctx, cfg.MSSQL)
	default:
		return nil, fmt.Errorf("unsupported offline store type: %q", cfg.Type)
	}
}
