// Package file backs offline storage with CSV files on local disk, the
// development counterpart to the warehouse backends. Files ending in .gz are
// transparently compressed.
package file

import (
	"compress/gzip"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/banquet-labs/banquet/lib/typing"
	"github.com/banquet-labs/banquet/models"
)

type Store struct {
	// dir resolves relative source paths; absolute paths are used as-is.
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) resolve(path string) string {
	if filepath.IsAbs(path) || s.dir == "" {
		return path
	}

	return filepath.Join(s.dir, path)
}

func openReader(path string) (io.ReadCloser, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	if !strings.HasSuffix(path, ".gz") {
		return file, nil
	}

	gzipReader, err := gzip.NewReader(file)
	if err != nil {
		file.Close()
		return nil, err
	}

	return struct {
		io.Reader
		io.Closer
	}{gzipReader, file}, nil
}

func (s *Store) readAll(path string) ([]string, [][]string, error) {
	reader, err := openReader(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}

		return nil, nil, fmt.Errorf("failed to open %q: %w", path, err)
	}

	defer reader.Close()

	records, err := csv.NewReader(reader).ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %q: %w", path, err)
	}

	if len(records) == 0 {
		return nil, nil, nil
	}

	return records[0], records[1:], nil
}

func (s *Store) Pull(_ context.Context, source models.DataSource, fields []string, start, end time.Time) ([]map[string]any, error) {
	if source.Type != models.FileSource {
		return nil, fmt.Errorf("file store cannot pull from a %q source", source.Type)
	}

	path := s.resolve(source.Path)
	header, records, err := s.readAll(path)
	if err != nil {
		return nil, err
	}

	columnIdx := make(map[string]int, len(header))
	for idx, column := range header {
		columnIdx[column] = idx
	}

	tsIdx, found := columnIdx[source.TimestampField]
	if header != nil && !found {
		return nil, fmt.Errorf("source %q is missing timestamp column %q", source.Name, source.TimestampField)
	}

	var rows []map[string]any
	for _, record := range records {
		ts, err := typing.ParseTimestamp(record[tsIdx])
		if err != nil {
			return nil, fmt.Errorf("failed to parse timestamp in %q: %w", path, err)
		}

		if !start.IsZero() && ts.Before(start) {
			continue
		}
		if !end.IsZero() && !ts.Before(end) {
			continue
		}

		row := make(map[string]any, len(fields))
		for _, field := range fields {
			idx, found := columnIdx[field]
			if !found {
				return nil, fmt.Errorf("source %q is missing column %q", source.Name, field)
			}

			if value := record[idx]; value != "" {
				row[field] = value
			}
		}

		rows = append(rows, row)
	}

	return rows, nil
}

func formatValue(value any) string {
	if value == nil {
		return ""
	}

	if ts, ok := value.(time.Time); ok {
		return ts.UTC().Format(time.RFC3339Nano)
	}

	return fmt.Sprint(value)
}

// WriteBatch appends rows to the source file, creating it with a header when
// absent. The header of an existing file wins over the fields argument.
func (s *Store) WriteBatch(_ context.Context, source models.DataSource, fields []string, rows []map[string]any) error {
	if source.Type != models.FileSource {
		return fmt.Errorf("file store cannot write to a %q source", source.Type)
	}
	if len(rows) == 0 {
		return nil
	}

	path := s.resolve(source.Path)
	if strings.HasSuffix(path, ".gz") {
		return fmt.Errorf("appending to a gzipped source is not supported")
	}

	header, records, err := s.readAll(path)
	if err != nil {
		return err
	}

	if header == nil {
		header = fields
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create source directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to open %q: %w", path, err)
	}

	defer file.Close()

	writer := csv.NewWriter(file)
	if err = writer.Write(header); err != nil {
		return err
	}
	if err = writer.WriteAll(records); err != nil {
		return err
	}

	for _, row := range rows {
		record := make([]string, len(header))
		for idx, column := range header {
			record[idx] = formatValue(row[column])
		}

		if err = writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}
