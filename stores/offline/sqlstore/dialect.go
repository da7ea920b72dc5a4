package sqlstore

import (
	"fmt"
	"strings"
)

// Dialect abstracts the identifier quoting and bind placeholder style of one
// warehouse.
type Dialect interface {
	QuoteIdentifier(identifier string) string
	// Placeholder returns the bind parameter for a 1-based position.
	Placeholder(position int) string
}

type AnsiDialect struct{}

func (AnsiDialect) QuoteIdentifier(identifier string) string {
	return fmt.Sprintf(`"%s"`, strings.ReplaceAll(identifier, `"`, `""`))
}

func (AnsiDialect) Placeholder(position int) string {
	return fmt.Sprintf("$%d", position)
}

type BacktickDialect struct{}

func (BacktickDialect) QuoteIdentifier(identifier string) string {
	return fmt.Sprintf("`%s`", strings.ReplaceAll(identifier, "`", "``"))
}

func (BacktickDialect) Placeholder(int) string {
	return "?"
}

// QuestionMarkDialect quotes like ANSI but binds with question marks
// (Snowflake, ClickHouse).
type QuestionMarkDialect struct{}

func (QuestionMarkDialect) QuoteIdentifier(identifier string) string {
	return AnsiDialect{}.QuoteIdentifier(identifier)
}

func (QuestionMarkDialect) Placeholder(int) string {
	return "?"
}

type MSSQLDialect struct{}

func (MSSQLDialect) QuoteIdentifier(identifier string) string {
	return fmt.Sprintf("[%s]", strings.ReplaceAll(identifier, "]", "]]"))
}

func (MSSQLDialect) Placeholder(position int) string {
	return fmt.Sprintf("@p%d", position)
}
