package snowflake

import (
	"context"
	"fmt"

	"github.com/snowflakedb/gosnowflake"

	"github.com/banquet-labs/banquet/lib/config"
	"github.com/banquet-labs/banquet/lib/db"
	"github.com/banquet-labs/banquet/stores/offline/sqlstore"
)

func LoadStore(ctx context.Context, cfg *config.Snowflake) (*sqlstore.Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("snowflake config is nil")
	}

	dsn, err := gosnowflake.DSN(cfg.ToConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to build snowflake dsn: %w", err)
	}

	store, err := db.Open(ctx, "snowflake", dsn)
	if err != nil {
		return nil, err
	}

	return sqlstore.NewStore(store, sqlstore.QuestionMarkDialect{}), nil
}
