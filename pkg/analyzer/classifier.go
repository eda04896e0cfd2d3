package analyzer

import (
	"github.com/confiture/confiture/pkg/parser"
)

// Classification is the risk tier assigned to a statement prior to
// execution.
type Classification string

const (
	// Safe marks reads and plain inserts with no destructive side effects.
	Safe Classification = "safe"

	// Warning marks statements that take non-trivial locks (ALTER TABLE,
	// index creation/removal, TRUNCATE) but do not destroy data outright.
	Warning Classification = "warning"

	// Unsafe marks destructive statements and unbounded DML: DROP of
	// tables/indexes/schemas, DELETE or UPDATE without a WHERE clause, and
	// anything matching a configured destructive pattern.
	Unsafe Classification = "unsafe"
)

// Classifier assigns a risk tier to a single SQL statement. Classification
// is a pure function of the statement text and the rule set: no I/O, fully
// deterministic, and it never fails — input the scanner cannot understand
// classifies unsafe with a diagnostic note.
type Classifier struct {
	rules Rules
}

// NewClassifier creates a classifier bound to the given rule set.
func NewClassifier(rules Rules) *Classifier {
	return &Classifier{rules: rules}
}

// Classify returns the risk tier for the statement plus an optional
// diagnostic note explaining a non-obvious tier.
//
// Rules, in priority order:
//  1. DELETE/UPDATE without a WHERE clause → unsafe
//  2. DROP TABLE/INDEX/SCHEMA or a configured destructive pattern → unsafe
//  3. ALTER TABLE, CREATE/DROP INDEX, TRUNCATE (non-trivial lock), and
//     bounded DELETE/UPDATE → warning
//  4. SELECT, plain INSERT, and CREATE TABLE → safe
//
// Unrecognized statements classify unsafe, erring toward caution.
func (c *Classifier) Classify(stmt string) (Classification, string) {
	shape := parser.ScanShape(stmt)

	switch shape.Kind {
	case parser.KindDelete, parser.KindUpdate:
		if !shape.HasWhere {
			return Unsafe, "DML without a WHERE clause affects every row"
		}

	case parser.KindDropTable, parser.KindDropIndex, parser.KindDropSchema:
		return Unsafe, "destructive DDL"
	}

	if c.rules.matchesDestructive(stmt) {
		return Unsafe, "matches destructive pattern"
	}

	switch shape.Kind {
	case parser.KindAlterTable, parser.KindCreateIndex, parser.KindTruncate:
		return Warning, "requires a non-trivial lock"

	case parser.KindDelete, parser.KindUpdate:
		return Warning, "bounded DML mutates existing rows"

	case parser.KindSelect, parser.KindInsert, parser.KindCreateTable:
		return Safe, ""
	}

	return Unsafe, "statement shape not recognized"
}
