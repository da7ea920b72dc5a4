package clickhouse

import (
	"context"
	"fmt"

	_ "github.com/ClickHouse/clickhouse-go/v2"

	"github.com/banquet-labs/banquet/lib/config"
	"github.com/banquet-labs/banquet/lib/db"
	"github.com/banquet-labs/banquet/stores/offline/sqlstore"
)

func LoadStore(ctx context.Context, cfg *config.SQLConnection) (*sqlstore.Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("clickhouse config is nil")
	}

	store, err := db.Open(ctx, "clickhouse", cfg.ClickHouseDSN())
	if err != nil {
		return nil, err
	}

	return sqlstore.NewStore(store, sqlstore.BacktickDialect{}), nil
}
