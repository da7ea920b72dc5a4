// Package sqlstore implements offline storage over any database/sql driver.
// Warehouse-specific packages supply the connection and dialect; everything
// else, pulling ranges and batch writes, is shared here.
package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/banquet-labs/banquet/lib/db"
	"github.com/banquet-labs/banquet/models"
)

type Store struct {
	store   db.Store
	dialect Dialect
}

func NewStore(store db.Store, dialect Dialect) *Store {
	return &Store{store: store, dialect: dialect}
}

// tableExpression renders the FROM clause for a source: its table name, or its
// query as a derived table.
func (s *Store) tableExpression(source models.DataSource) string {
	if source.Query != "" {
		return fmt.Sprintf("(%s) AS src", source.Query)
	}

	parts := strings.Split(source.Table, ".")
	for idx, part := range parts {
		parts[idx] = s.dialect.QuoteIdentifier(part)
	}

	return strings.Join(parts, ".")
}

func (s *Store) Pull(ctx context.Context, source models.DataSource, fields []string, start, end time.Time) ([]map[string]any, error) {
	if !source.IsSQL() {
		return nil, fmt.Errorf("sql store cannot pull from a %q source", source.Type)
	}

	quoted := make([]string, len(fields))
	for idx, field := range fields {
		quoted[idx] = s.dialect.QuoteIdentifier(field)
	}

	var conditions []string
	var args []any
	tsColumn := s.dialect.QuoteIdentifier(source.TimestampField)
	if !start.IsZero() {
		conditions = append(conditions, fmt.Sprintf("%s >= %s", tsColumn, s.dialect.Placeholder(len(args)+1)))
		args = append(args, start)
	}
	if !end.IsZero() {
		conditions = append(conditions, fmt.Sprintf("%s < %s", tsColumn, s.dialect.Placeholder(len(args)+1)))
		args = append(args, end)
	}

	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(quoted, ","), s.tableExpression(source))
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	rows, err := s.store.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query source %q: %w", source.Name, err)
	}

	defer rows.Close()

	var out []map[string]any
	scanned := make([]any, len(fields))
	pointers := make([]any, len(fields))
	for idx := range scanned {
		pointers[idx] = &scanned[idx]
	}

	for rows.Next() {
		if err = rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("failed to scan row from source %q: %w", source.Name, err)
		}

		row := make(map[string]any, len(fields))
		for idx, field := range fields {
			value := scanned[idx]
			// Drivers commonly hand back []byte for text columns.
			if data, ok := value.([]byte); ok {
				value = string(data)
			}

			row[field] = value
		}

		out = append(out, row)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate source %q: %w", source.Name, err)
	}

	return out, nil
}

func (s *Store) WriteBatch(ctx context.Context, source models.DataSource, fields []string, rows []map[string]any) error {
	if !source.IsSQL() {
		return fmt.Errorf("sql store cannot write to a %q source", source.Type)
	}
	if source.Table == "" {
		return fmt.Errorf("source %q is query-backed and cannot be written to", source.Name)
	}
	if len(rows) == 0 {
		return nil
	}

	quoted := make([]string, len(fields))
	for idx, field := range fields {
		quoted[idx] = s.dialect.QuoteIdentifier(field)
	}

	placeholders := make([]string, len(fields))
	for _, row := range rows {
		args := make([]any, len(fields))
		for idx, field := range fields {
			placeholders[idx] = s.dialect.Placeholder(idx + 1)
			args[idx] = row[field]
		}

		query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			s.tableExpression(source), strings.Join(quoted, ","), strings.Join(placeholders, ","))
		if _, err := s.store.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to insert into source %q: %w", source.Name, err)
		}
	}

	return nil
}
