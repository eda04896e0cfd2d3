// Package parser provides SQL-structural parsing for PostgreSQL migration
// and seed files.
//
// This package deliberately stops short of a general SQL parser. It provides
// exactly the structural reasoning the engine needs:
//
//   - Splitting a script into individual statements, respecting string
//     literals, quoted identifiers, dollar-quoted strings, and comments
//   - Scanning a statement's shape: its kind (DDL/DML variant), target
//     table, and whether a WHERE clause is present
//   - A full grammar for INSERT ... VALUES statements, used to decide
//     convertibility to the COPY wire format and to extract literal values
//
// The INSERT grammar is built with participle; everything else is a small
// hand-rolled token scanner, which keeps malformed input from ever raising:
// statements the scanner cannot understand are reported as shape KindUnknown
// and handled conservatively by callers.
package parser
