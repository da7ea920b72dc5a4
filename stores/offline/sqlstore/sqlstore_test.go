package sqlstore

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/banquet-labs/banquet/lib/db"
	"github.com/banquet-labs/banquet/models"
)

func testSource() models.DataSource {
	return models.DataSource{
		Name:           "driver_stats_source",
		Type:           models.PostgresSource,
		TimestampField: "event_timestamp",
		Table:          "analytics.driver_stats",
	}
}

func TestStore_Pull(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer mockDB.Close()

	store := NewStore(db.NewStoreWrapper(mockDB), AnsiDialect{})

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT "driver_id","conv_rate","event_timestamp" FROM "analytics"\."driver_stats" WHERE "event_timestamp" >= \$1 AND "event_timestamp" < \$2`).
		WithArgs(start, end).
		WillReturnRows(sqlmock.NewRows([]string{"driver_id", "conv_rate", "event_timestamp"}).
			AddRow(int64(1001), 0.85, start).
			AddRow(int64(1002), []byte("0.40"), start))

	rows, err := store.Pull(context.Background(), testSource(), []string{"driver_id", "conv_rate", "event_timestamp"}, start, end)
	assert.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, int64(1001), rows[0]["driver_id"])
	assert.Equal(t, 0.85, rows[0]["conv_rate"])
	// []byte columns are normalized to strings.
	assert.Equal(t, "0.40", rows[1]["conv_rate"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Pull_Unbounded(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer mockDB.Close()

	store := NewStore(db.NewStoreWrapper(mockDB), AnsiDialect{})
	mock.ExpectQuery(`SELECT "driver_id" FROM "analytics"\."driver_stats"$`).
		WillReturnRows(sqlmock.NewRows([]string{"driver_id"}))

	_, err = store.Pull(context.Background(), testSource(), []string{"driver_id"}, time.Time{}, time.Time{})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Pull_QuerySource(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer mockDB.Close()

	source := testSource()
	source.Table = ""
	source.Query = "SELECT * FROM raw_events"

	store := NewStore(db.NewStoreWrapper(mockDB), AnsiDialect{})
	mock.ExpectQuery(`SELECT "driver_id" FROM \(SELECT \* FROM raw_events\) AS src`).
		WillReturnRows(sqlmock.NewRows([]string{"driver_id"}))

	_, err = store.Pull(context.Background(), source, []string{"driver_id"}, time.Time{}, time.Time{})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_WriteBatch(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer mockDB.Close()

	store := NewStore(db.NewStoreWrapper(mockDB), AnsiDialect{})
	mock.ExpectExec(`INSERT INTO "analytics"\."driver_stats" \("driver_id","conv_rate"\) VALUES \(\$1,\$2\)`).
		WithArgs(int64(1001), 0.85).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = store.WriteBatch(context.Background(), testSource(), []string{"driver_id", "conv_rate"}, []map[string]any{
		{"driver_id": int64(1001), "conv_rate": 0.85},
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_WriteBatch_QuerySourceRejected(t *testing.T) {
	mockDB, _, err := sqlmock.New()
	assert.NoError(t, err)
	defer mockDB.Close()

	source := testSource()
	source.Table = ""
	source.Query = "SELECT 1"

	store := NewStore(db.NewStoreWrapper(mockDB), AnsiDialect{})
	err = store.WriteBatch(context.Background(), source, []string{"driver_id"}, []map[string]any{{"driver_id": int64(1)}})
	assert.ErrorContains(t, err, "query-backed and cannot be written to")
}

func TestDialects(t *testing.T) {
	assert.Equal(t, `"a""b"`, AnsiDialect{}.QuoteIdentifier(`a"b`))
	assert.Equal(t, "$3", AnsiDialect{}.Placeholder(3))
	assert.Equal(t, "`a``b`", BacktickDialect{}.QuoteIdentifier("a`b"))
	assert.Equal(t, "?", BacktickDialect{}.Placeholder(3))
	assert.Equal(t, `"col"`, QuestionMarkDialect{}.QuoteIdentifier("col"))
	assert.Equal(t, "?", QuestionMarkDialect{}.Placeholder(1))
	assert.Equal(t, "[a]]b]", MSSQLDialect{}.QuoteIdentifier("a]b"))
	assert.Equal(t, "@p2", MSSQLDialect{}.Placeholder(2))
}
