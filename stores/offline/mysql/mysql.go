package mysql

import (
	"context"
	"fmt"

	_ "github.com/go-sql-driver/mysql"

	"github.com/banquet-labs/banquet/lib/config"
	"github.com/banquet-labs/banquet/lib/db"
	"github.com/banquet-labs/banquet/stores/offline/sqlstore"
)

func LoadStore(ctx context.Context, cfg *config.SQLConnection) (*sqlstore.Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("mysql config is nil")
	}

	store, err := db.Open(ctx, "mysql", cfg.MySQLDSN())
	if err != nil {
		return nil, err
	}

	return sqlstore.NewStore(store, sqlstore.BacktickDialect{}), nil
}
