// Package analyzer implements pre-execution analysis of SQL statements:
// risk classification, table impact projection, lock/concurrency analysis,
// heuristic cost estimation, and the dry-run orchestrator that composes
// them into a report.
//
// All rule tables and thresholds live in an immutable Rules value that is
// constructed once and passed explicitly to each component, so behavior is
// deterministic and tunable per environment without global state.
package analyzer
