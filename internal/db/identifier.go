package db

import (
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/vvka-141/stageswap/pkg/stageswap"
)

// QuoteTable renders ref as a quoted, schema-qualified name. Database is
// omitted: a PostgreSQL session is bound to one database.
// Callers must have passed ref through TableRef.Validate.
func QuoteTable(ref stageswap.TableRef) string {
	if ref.Schema == "" {
		return pgx.Identifier{ref.Name}.Sanitize()
	}
	return pgx.Identifier{ref.Schema, ref.Name}.Sanitize()
}

// QuoteIdent quotes a single identifier.
func QuoteIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// QuoteColumns renders a comma-separated, quoted column list.
func QuoteColumns(columns []string) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = QuoteIdent(c)
	}
	return strings.Join(quoted, ", ")
}
