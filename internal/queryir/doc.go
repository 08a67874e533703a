// Package queryir is a small query representation for searching archived
// turn logs.
//
// The trace archive is relational (turn_logs, log_entries). Callers build
// a Query from Select and Join nodes with Equals, Contains and And
// predicates; a backend (querysql) turns it into parameterized SQL. The
// representation is deliberately narrow:
//
//   - Select(from, columns, filter, order) over one table
//   - Join of two selects on shared key columns (inner join only)
//   - Predicates: Equals, Contains, And
//   - Explicit columns (no SELECT *)
//
// Excluded: OR, NULL comparisons, outer joins, aggregation, subqueries.
//
// SEALED INTERFACES:
//
// Query and Predicate are sealed with marker methods, so backends can
// switch exhaustively:
//
//	switch q := query.(type) {
//	case *Select:
//	case *Join:
//	}
//
// Literal values are ir.Value (string, int64, bool). Floats cannot appear,
// so filters compare exactly.
//
// Command-line filters are parsed with ParseFilter:
//
//	passed=false category=entry reason~keyword
//
// becomes And{Equals(passed,false), Equals(category,"entry"),
// Contains(reason,"keyword")}.
package queryir
