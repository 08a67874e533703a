package queryir

import "github.com/roach88/loregate/internal/ir"

// Query is a query node. Sealed: only *Select and *Join implement it.
type Query interface {
	queryNode()
}

// Predicate is a filter condition. Sealed: only *Equals, *Contains and
// *And implement it.
type Predicate interface {
	predicateNode()
}

// Select reads explicit columns from one table.
//
//	SELECT <columns> FROM <from> WHERE <filter> ORDER BY <order>
//
// An empty OrderBy orders by Columns, so results are always deterministic.
type Select struct {
	From    string
	Columns []string
	Filter  Predicate // optional
	OrderBy []string
}

func (*Select) queryNode() {}

// Join is an inner join of two selects on columns both tables share.
//
//	SELECT <left cols>, <right cols>
//	FROM <left> JOIN <right> USING (<using>)
//	WHERE <left filter> AND <right filter> AND <filter>
//
// Filter may reference columns of either side.
type Join struct {
	Left    *Select
	Right   *Select
	Using   []string
	Filter  Predicate
	OrderBy []string
}

func (*Join) queryNode() {}

// Equals holds when a column equals a literal.
type Equals struct {
	Field string
	Value ir.Value
}

func (*Equals) predicateNode() {}

// Contains holds when a text column contains Text, ignoring ASCII case.
type Contains struct {
	Field string
	Text  string
}

func (*Contains) predicateNode() {}

// And holds when every predicate holds. An empty And is always true.
type And struct {
	Predicates []Predicate
}

func (*And) predicateNode() {}

// Columns returns every column a predicate references, in order of
// appearance.
func Columns(p Predicate) []string {
	var out []string
	var walk func(Predicate)
	walk = func(p Predicate) {
		switch pred := p.(type) {
		case *Equals:
			out = append(out, pred.Field)
		case *Contains:
			out = append(out, pred.Field)
		case *And:
			for _, sub := range pred.Predicates {
				walk(sub)
			}
		}
	}
	walk(p)
	return out
}

// Conjoin joins non-nil predicates with And. It returns nil when none are
// left and the predicate itself when only one is.
func Conjoin(preds ...Predicate) Predicate {
	var kept []Predicate
	for _, p := range preds {
		if p != nil {
			kept = append(kept, p)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	default:
		return &And{Predicates: kept}
	}
}
