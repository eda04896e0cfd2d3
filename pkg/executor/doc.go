// Package executor applies ordered execution units (migration or seed files)
// to PostgreSQL inside a single transaction.
//
// Each unit runs under its own nested SAVEPOINT: a failing statement rolls
// back only that unit, and the run either aborts (discarding everything via
// the outer transaction) or continues with the remaining units depending on
// the continue-on-error setting. The package also hosts MigrationEngine,
// which composes directory loading, state tracking, dry-run analysis, and
// sequential execution into the up/down/status/validate/diff operations the
// CLI exposes.
package executor
