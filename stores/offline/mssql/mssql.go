package mssql

import (
	"context"
	"fmt"

	_ "github.com/microsoft/go-mssqldb"

	"github.com/banquet-labs/banquet/lib/config"
	"github.com/banquet-labs/banquet/lib/db"
	"github.com/banquet-labs/banquet/stores/offline/sqlstore"
)

func LoadStore(ctx context.Context, cfg *config.SQLConnection) (*sqlstore.Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("mssql config is nil")
	}

	store, err := db.Open(ctx, "sqlserver", cfg.MSSQLDSN())
	if err != nil {
		return nil, err
	}

	return sqlstore.NewStore(store, sqlstore.MSSQLDialect{}), nil
}
