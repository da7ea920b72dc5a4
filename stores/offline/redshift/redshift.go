// Package redshift speaks the postgres wire protocol; it differs from the
// postgres backend only in configuration.
package redshift

import (
	"context"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/banquet-labs/banquet/lib/config"
	"github.com/banquet-labs/banquet/lib/db"
	"github.com/banquet-labs/banquet/stores/offline/sqlstore"
)

func LoadStore(ctx context.Context, cfg *config.SQLConnection) (*sqlstore.Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redshift config is nil")
	}

	store, err := db.Open(ctx, "pgx", cfg.PostgresDSN())
	if err != nil {
		return nil, err
	}

	return sqlstore.NewStore(store, sqlstore.AnsiDialect{}), nil
}
