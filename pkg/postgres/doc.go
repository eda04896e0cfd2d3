// Package postgres wraps the database/sql PostgreSQL driver with the small
// connection surface the engine needs: a pinned single connection for
// sequential execution, transaction helpers, and COPY FROM STDIN bulk loading.
package postgres
