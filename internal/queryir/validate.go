package queryir

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/loregate/internal/ir"
)

// Schema lists the queryable columns of each table.
type Schema map[string][]string

// ValidationResult lists every problem found in a query.
type ValidationResult struct {
	Valid    bool
	Problems []string
}

// Err folds the problems into one error, or nil when the query is valid.
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return fmt.Errorf("invalid query: %s", strings.Join(r.Problems, "; "))
}

// Validate checks a query against a schema: tables and columns must exist,
// selects name their columns and predicates carry usable values.
//
// Validate is a pure function and reports every problem, not just the first.
func Validate(q Query, schema Schema) ValidationResult {
	v := &validator{schema: schema, problems: []string{}}
	v.query(q)
	return ValidationResult{Valid: len(v.problems) == 0, Problems: v.problems}
}

type validator struct {
	schema   Schema
	problems []string
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) query(q Query) {
	switch query := q.(type) {
	case *Select:
		if query == nil {
			v.addProblem("nil select")
			return
		}
		v.selectNode(query)
		v.order(query.OrderBy, query.From)
	case *Join:
		v.join(query)
	case nil:
		v.addProblem("nil query")
	default:
		v.addProblem("unknown query type %T", q)
	}
}

func (v *validator) selectNode(sel *Select) bool {
	if _, ok := v.schema[sel.From]; !ok {
		v.addProblem("unknown table %q", sel.From)
		return false
	}
	if len(sel.Columns) == 0 {
		v.addProblem("select from %s names no columns", sel.From)
	}
	for _, c := range sel.Columns {
		v.column(c, sel.From)
	}
	v.predicate(sel.Filter, sel.From)
	return true
}

func (v *validator) join(j *Join) {
	if j == nil || j.Left == nil || j.Right == nil {
		v.addProblem("join needs a left and a right select")
		return
	}
	okLeft := v.selectNode(j.Left)
	okRight := v.selectNode(j.Right)
	if !okLeft || !okRight {
		return
	}
	if len(j.Using) == 0 {
		v.addProblem("join of %s and %s has no key columns", j.Left.From, j.Right.From)
	}
	for _, c := range j.Using {
		v.column(c, j.Left.From)
		v.column(c, j.Right.From)
	}
	v.predicate(j.Filter, j.Left.From, j.Right.From)
	v.order(j.OrderBy, j.Left.From, j.Right.From)
}

func (v *validator) order(cols []string, tables ...string) {
	for _, c := range cols {
		v.column(c, tables...)
	}
}

// column reports a column that none of the tables has.
func (v *validator) column(name string, tables ...string) {
	for _, t := range tables {
		if slices.Contains(v.schema[t], name) {
			return
		}
	}
	v.addProblem("unknown column %q in %s", name, strings.Join(tables, ", "))
}

func (v *validator) predicate(p Predicate, tables ...string) {
	switch pred := p.(type) {
	case nil:
	case *Equals:
		v.column(pred.Field, tables...)
		if pred.Value == nil {
			v.addProblem("column %q compared to null", pred.Field)
		}
	case *Contains:
		v.column(pred.Field, tables...)
		if pred.Text == "" {
			v.addProblem("column %q searched for empty text", pred.Field)
		}
	case *And:
		for _, sub := range pred.Predicates {
			v.predicate(sub, tables...)
		}
	default:
		v.addProblem("unknown predicate type %T", p)
	}
}

// ParseFilter parses command-line filter terms into a predicate. Each term
// is field=value (exact match, value parsed as an integer or boolean where
// possible) or field~text (case-insensitive substring).
func ParseFilter(terms []string) (Predicate, error) {
	preds := make([]Predicate, 0, len(terms))
	for _, term := range terms {
		i := strings.IndexAny(term, "=~")
		if i <= 0 {
			return nil, fmt.Errorf("filter %q must be field=value or field~text", term)
		}
		field := strings.TrimSpace(term[:i])
		value := term[i+1:]
		if term[i] == '~' {
			preds = append(preds, &Contains{Field: field, Text: value})
			continue
		}
		preds = append(preds, &Equals{Field: field, Value: ir.ParseValue(value)})
	}
	return Conjoin(preds...), nil
}
