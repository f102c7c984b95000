// Package queryir provides the statement intermediate representation used
// by apply nodes.
//
// Each apply node (insert, update, delete) writes one row at a time into the
// target table. The statement it executes is described here as a small
// sealed IR and rendered to parameterized SQL by package querysql. Values are
// never part of the IR: a statement names the row fields it binds, and the
// worker supplies the values for each row.
//
// SEALED INTERFACES:
//
// Statement and Predicate use the marker method pattern. Only types in this
// package implement them, so renderers can switch exhaustively:
//
//	switch s := stmt.(type) {
//	case Insert:
//	case Update:
//	case Delete:
//	}
//
// The predicate fragment is deliberately small: key equality and
// conjunction. Updates and deletes always address rows by their full
// primary key, so nothing else is needed.
package queryir
