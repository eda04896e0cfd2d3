// Package copyconv rewrites simple INSERT statements into PostgreSQL's
// COPY wire format for high-throughput bulk loading.
//
// Conversion is a pure, side-effect-free structural transform: an INSERT is
// convertible only when every value is a plain literal. Statements with
// SELECT sources, CTEs, ON CONFLICT, RETURNING, subqueries, or function
// calls in value positions are returned unchanged with a machine-readable
// reason code so callers can fall back to executing the original statement.
//
// The package also contains the seed-loading helpers built on top of the
// converter: COPY TEXT encoding/decoding and row-count-based batch format
// selection.
package copyconv
