// Package querysql compiles queryir queries to parameterized SQLite SQL.
package querysql

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/loregate/internal/ir"
	"github.com/roach88/loregate/internal/queryir"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLCompiler compiles queryir queries to SQL for SQLite.
//
// Every query ends in an ORDER BY so results are deterministic, and every
// literal is passed as a parameter, never interpolated.
type SQLCompiler struct {
	// Schema, when set, is checked with queryir.Validate before compiling.
	Schema queryir.Schema
}

// NewSQLCompiler creates a compiler that validates against schema.
func NewSQLCompiler(schema queryir.Schema) *SQLCompiler {
	return &SQLCompiler{Schema: schema}
}

// Compile converts a query to SQL and its parameters.
func (c *SQLCompiler) Compile(q queryir.Query) (string, []any, error) {
	if q == nil {
		return "", nil, fmt.Errorf("cannot compile nil query")
	}
	if c.Schema != nil {
		if err := queryir.Validate(q, c.Schema).Err(); err != nil {
			return "", nil, err
		}
	}

	switch query := q.(type) {
	case *queryir.Select:
		return c.compileSelect(query)
	case *queryir.Join:
		return c.compileJoin(query)
	default:
		return "", nil, fmt.Errorf("unsupported query type: %T", q)
	}
}

func (c *SQLCompiler) compileSelect(q *queryir.Select) (string, []any, error) {
	cols, err := quoteAll(q.Columns)
	if err != nil {
		return "", nil, err
	}
	from, err := quote(q.From)
	if err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s", strings.Join(cols, ", "), from)

	where, params, err := c.compileWhere(q.Filter)
	if err != nil {
		return "", nil, err
	}
	sb.WriteString(where)

	order, err := orderBy(q.OrderBy, q.Columns)
	if err != nil {
		return "", nil, err
	}
	sb.WriteString(order)
	return sb.String(), params, nil
}

func (c *SQLCompiler) compileJoin(q *queryir.Join) (string, []any, error) {
	if q.Left == nil || q.Right == nil {
		return "", nil, fmt.Errorf("join needs a left and a right select")
	}
	if len(q.Using) == 0 {
		return "", nil, fmt.Errorf("join of %s and %s has no key columns", q.Left.From, q.Right.From)
	}

	leftCols, err := quoteAll(q.Left.Columns)
	if err != nil {
		return "", nil, err
	}
	rightCols, err := quoteAll(q.Right.Columns)
	if err != nil {
		return "", nil, err
	}
	left, err := quote(q.Left.From)
	if err != nil {
		return "", nil, err
	}
	right, err := quote(q.Right.From)
	if err != nil {
		return "", nil, err
	}
	using, err := quoteAll(q.Using)
	if err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s JOIN %s USING (%s)",
		strings.Join(append(leftCols, rightCols...), ", "),
		left, right, strings.Join(using, ", "))

	where, params, err := c.compileWhere(queryir.Conjoin(q.Left.Filter, q.Right.Filter, q.Filter))
	if err != nil {
		return "", nil, err
	}
	sb.WriteString(where)

	order, err := orderBy(q.OrderBy, append(append([]string{}, q.Using...), q.Left.Columns...))
	if err != nil {
		return "", nil, err
	}
	sb.WriteString(order)
	return sb.String(), params, nil
}

func (c *SQLCompiler) compileWhere(p queryir.Predicate) (string, []any, error) {
	if p == nil {
		return "", nil, nil
	}
	sql, params, err := c.compilePredicate(p)
	if err != nil {
		return "", nil, fmt.Errorf("compile filter: %w", err)
	}
	if sql == "" {
		return "", nil, nil
	}
	return " WHERE " + sql, params, nil
}

func (c *SQLCompiler) compilePredicate(p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case *queryir.Equals:
		col, err := quote(pred.Field)
		if err != nil {
			return "", nil, err
		}
		param, err := valueToParam(pred.Value)
		if err != nil {
			return "", nil, fmt.Errorf("column %s: %w", pred.Field, err)
		}
		return col + " = ?", []any{param}, nil

	case *queryir.Contains:
		col, err := quote(pred.Field)
		if err != nil {
			return "", nil, err
		}
		return "instr(lower(" + col + "), lower(?)) > 0", []any{pred.Text}, nil

	case *queryir.And:
		var parts []string
		var params []any
		for _, sub := range pred.Predicates {
			sql, subParams, err := c.compilePredicate(sub)
			if err != nil {
				return "", nil, err
			}
			if sql == "" {
				continue
			}
			parts = append(parts, sql)
			params = append(params, subParams...)
		}
		switch len(parts) {
		case 0:
			return "", nil, nil
		case 1:
			return parts[0], params, nil
		default:
			return "(" + strings.Join(parts, " AND ") + ")", params, nil
		}

	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

// orderBy renders the ORDER BY clause, falling back to the given columns
// when no explicit order is set.
func orderBy(order, fallback []string) (string, error) {
	if len(order) == 0 {
		order = fallback
	}
	if len(order) == 0 {
		return "", fmt.Errorf("query has no columns to order by")
	}
	cols, err := quoteAll(order)
	if err != nil {
		return "", err
	}
	for i := range cols {
		cols[i] += " ASC"
	}
	return " ORDER BY " + strings.Join(cols, ", "), nil
}

// valueToParam converts a literal to a SQLite parameter. Booleans are stored
// as 0/1 integers.
func valueToParam(v ir.Value) (any, error) {
	switch val := v.(type) {
	case ir.String:
		return string(val), nil
	case ir.Int64:
		return int64(val), nil
	case ir.Boolean:
		if val {
			return int64(1), nil
		}
		return int64(0), nil
	case nil:
		return nil, fmt.Errorf("null value not allowed")
	default:
		return nil, fmt.Errorf("unsupported value type: %T", v)
	}
}

func quote(name string) (string, error) {
	if !identPattern.MatchString(name) {
		return "", fmt.Errorf("invalid identifier %q", name)
	}
	return `"` + name + `"`, nil
}

func quoteAll(names []string) ([]string, error) {
	out := make([]string, len(names))
	for i, n := range names {
		q, err := quote(n)
		if err != nil {
			return nil, err
		}
		out[i] = q
	}
	return out, nil
}
