package postgres

import (
	"fmt"
	"strings"
)

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// conditions accumulates WHERE clauses with positional parameters.
type conditions struct {
	clauses []string
	args    []any
}

// add appends a clause; %d in the clause is replaced with the parameter position of arg.
func (c *conditions) add(clause string, arg any) {
	c.args = append(c.args, arg)
	c.clauses = append(c.clauses, fmt.Sprintf(clause, len(c.args)))
}

// raw appends a clause that takes no parameter.
func (c *conditions) raw(clause string) {
	c.clauses = append(c.clauses, clause)
}

// param appends arg and returns its placeholder.
func (c *conditions) param(arg any) string {
	c.args = append(c.args, arg)
	return fmt.Sprintf("$%d", len(c.args))
}

func (c *conditions) where() string {
	if len(c.clauses) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(c.clauses, " AND ")
}

// page renders LIMIT and OFFSET, omitting either when not positive.
func (c *conditions) page(limit, offset int) string {
	var sb strings.Builder
	if limit > 0 {
		sb.WriteString(" LIMIT " + c.param(limit))
	}
	if offset > 0 {
		sb.WriteString(" OFFSET " + c.param(offset))
	}
	return sb.String()
}

func toStrings[S ~string](values []S) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}
