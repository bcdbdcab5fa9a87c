package search

import (
	"fmt"
	"strings"

	"github.com/yungbote/dicomweb-backend/internal/logger"
)

// Dialect isolates the backend-specific SQL fragments: how the aggregated
// modality set is matched and how it is read back as a single string.
// Selected once per connection by backend name, never sniffed from queries.
type Dialect interface {
	Name() string

	// ModalityMatch returns a WHERE fragment that is true when the modality
	// set in column contains any of values, plus the bound arguments.
	ModalityMatch(column string, values []string) (string, []any)

	// ModalitiesSelectExpr returns the select expression reading the
	// aggregated modality column back as a backslash-separated string.
	ModalitiesSelectExpr(column, alias string) string
}

// DialectFor maps a backend name to its dialect. Anything that is not
// postgres falls through to the generic substring dialect; for unknown
// backends this is a silent degrade kept for compatibility with the
// pre-existing behavior, so it is only logged, never an error.
func DialectFor(name string, log *logger.Logger) Dialect {
	switch name {
	case "postgres":
		return postgresDialect{}
	case "sqlite":
		return genericDialect{}
	default:
		if log != nil {
			log.Debug("Unknown database backend, using generic search dialect", "backend", name)
		}
		return genericDialect{}
	}
}

// postgresDialect stores the modality set as text[] and matches with the
// native array-overlap operator.
type postgresDialect struct{}

func (postgresDialect) Name() string { return "postgres" }

func (postgresDialect) ModalityMatch(column string, values []string) (string, []any) {
	placeholders := make([]string, len(values))
	args := make([]any, len(values))
	for i, v := range values {
		placeholders[i] = "?"
		args[i] = v
	}
	clause := fmt.Sprintf("%s && ARRAY[%s]::text[]", column, strings.Join(placeholders, ", "))
	return clause, args
}

func (postgresDialect) ModalitiesSelectExpr(column, alias string) string {
	return fmt.Sprintf("array_to_string(%s, '\\') AS %s", column, alias)
}

// genericDialect works against any backend that aggregates the modality set
// into a delimited string; matching is a substring test per value.
type genericDialect struct{}

func (genericDialect) Name() string { return "generic" }

func (genericDialect) ModalityMatch(column string, values []string) (string, []any) {
	clauses := make([]string, len(values))
	args := make([]any, len(values))
	for i, v := range values {
		clauses[i] = fmt.Sprintf("%s LIKE ?", column)
		args[i] = "%" + v + "%"
	}
	return "(" + strings.Join(clauses, " OR ") + ")", args
}

func (genericDialect) ModalitiesSelectExpr(column, alias string) string {
	return fmt.Sprintf("%s AS %s", column, alias)
}
