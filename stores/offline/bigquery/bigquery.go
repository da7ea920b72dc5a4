package bigquery

import (
	"context"
	"fmt"
	"os"

	_ "github.com/viant/bigquery"

	"github.com/banquet-labs/banquet/lib/config"
	"github.com/banquet-labs/banquet/lib/db"
	"github.com/banquet-labs/banquet/stores/offline/sqlstore"
)

const GooglePathToCredentialsEnvKey = "GOOGLE_APPLICATION_CREDENTIALS"

func LoadStore(ctx context.Context, cfg *config.BigQuery) (*sqlstore.Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bigquery config is nil")
	}

	if cfg.PathToCredentials != "" {
		// If the credentials path is set, let's set the env var so the driver picks it up.
		if err := os.Setenv(GooglePathToCredentialsEnvKey, cfg.PathToCredentials); err != nil {
			return nil, fmt.Errorf("error setting env var for %s: %w", GooglePathToCredentialsEnvKey, err)
		}
	}

	store, err := db.Open(ctx, "bigquery", cfg.DSN())
	if err != nil {
		return nil, err
	}

	return sqlstore.NewStore(store, sqlstore.BacktickDialect{}), nil
}
