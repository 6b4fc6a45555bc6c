// Package queryir describes read-only queries over the checklist store.
//
// A query names one store table, an optional filter and the columns to
// return. Queries are checked against the store schema before they reach a
// backend, so table and column names never come from unchecked input.
//
//	Select{
//	  From:   "answers",
//	  Filter: &And{Predicates: []Predicate{
//	    &Equals{Field: "subject_id", Value: ir.IRString("home-1")},
//	    &Equals{Field: "measure_id", Value: ir.IRString("top")},
//	  }},
//	}
//
// Query and Predicate are sealed: only types in this package implement
// them, so backends can switch over them exhaustively.
//
// JSON COLUMNS:
//
// Answer values, evaluation active sets and subject documents are stored as
// JSON text. An Equals on one of those columns compares canonical JSON, so
// Equals{Field: "value", Value: ir.IRString("Yes")} matches the stored text
// "\"Yes\"".
package queryir
