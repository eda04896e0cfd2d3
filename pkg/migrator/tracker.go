package migrator

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/confiture/confiture/pkg/analyzer"
	"github.com/confiture/confiture/pkg/consts"
	"github.com/pkg/errors"
)

// Store is the database surface the tracker needs. Both *sqlx.DB and
// *sqlx.Tx satisfy it, so tracking writes can share the run's transaction.
type Store interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

type (
	// AppliedMigration is one row of the tracking relation.
	AppliedMigration struct {
		Version   string    `db:"version" json:"version"`
		Name      string    `db:"name" json:"name"`
		Checksum  string    `db:"checksum" json:"checksum"`
		AppliedAt time.Time `db:"applied_at" json:"applied_at"`
	}

	// Tracker persists migration state in the target database and validates
	// the on-disk migration set against it before anything executes.
	Tracker struct {
		store Store
		table string
	}
)

// NewTracker returns a tracker writing to the default tracking relation.
func NewTracker(store Store) *Tracker {
	return &Tracker{store: store, table: consts.TrackingTable}
}

// EnsureTable creates the tracking relation if it does not exist.
func (t *Tracker) EnsureTable(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version    text PRIMARY KEY,
			name       text NOT NULL,
			checksum   text NOT NULL,
			applied_at timestamptz NOT NULL DEFAULT now()
		)`, t.table)

	if _, err := t.store.ExecContext(ctx, query); err != nil {
		return errors.Wrapf(err, "failed to create tracking table %s", t.table)
	}

	return nil
}

// Applied returns all tracked migrations ordered by version.
func (t *Tracker) Applied(ctx context.Context) ([]AppliedMigration, error) {
	var applied []AppliedMigration

	query := fmt.Sprintf("SELECT version, name, checksum, applied_at FROM %s ORDER BY version", t.table)
	if err := t.store.SelectContext(ctx, &applied, query); err != nil {
		return nil, errors.Wrap(err, "failed to load applied migrations")
	}

	return applied, nil
}

// Record marks a migration as applied.
func (t *Tracker) Record(ctx context.Context, m *Migration) error {
	query := fmt.Sprintf("INSERT INTO %s (version, name, checksum) VALUES ($1, $2, $3)", t.table)
	if _, err := t.store.ExecContext(ctx, query, m.Version, m.Name, m.Checksum); err != nil {
		return errors.Wrapf(err, "failed to record migration %s", m.ID())
	}

	return nil
}

// Remove deletes a version from the tracking relation, returning it to the
// pending state after a rollback.
func (t *Tracker) Remove(ctx context.Context, version string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE version = $1", t.table)
	if _, err := t.store.ExecContext(ctx, query, version); err != nil {
		return errors.Wrapf(err, "failed to remove migration version %s", version)
	}

	return nil
}

// Validate checks the on-disk migration set for version collisions and, for
// already-applied versions, checksum drift against the tracked state. Both
// conditions are fatal tracking conflicts.
func (t *Tracker) Validate(ctx context.Context, onDisk []*Migration) error {
	seen := make(map[string]string, len(onDisk))
	for _, m := range onDisk {
		if other, dup := seen[m.Version]; dup {
			return analyzer.NewError(analyzer.KindTrackingConflict, nil,
				"version collision: %s and %s share version %s", other, m.ID(), m.Version)
		}
		seen[m.Version] = m.ID()
	}

	applied, err := t.Applied(ctx)
	if err != nil {
		return err
	}

	byVersion := make(map[string]*Migration, len(onDisk))
	for _, m := range onDisk {
		byVersion[m.Version] = m
	}

	for _, a := range applied {
		m, ok := byVersion[a.Version]
		if !ok {
			continue
		}
		if m.Checksum != a.Checksum {
			return analyzer.NewError(analyzer.KindTrackingConflict, nil,
				"checksum drift: %s was modified after being applied (recorded %s, current %s)",
				m.ID(), shortHash(a.Checksum), shortHash(m.Checksum))
		}
	}

	return nil
}

// Plan returns the migrations that still need to run, in order. With force
// set, validation is bypassed and every on-disk migration is treated as
// pending; this exists for development recovery after an out-of-band schema
// reset and is never the default.
func (t *Tracker) Plan(ctx context.Context, onDisk []*Migration, force bool) ([]*Migration, error) {
	if force {
		return onDisk, nil
	}

	if err := t.Validate(ctx, onDisk); err != nil {
		return nil, err
	}

	applied, err := t.Applied(ctx)
	if err != nil {
		return nil, err
	}

	done := make(map[string]bool, len(applied))
	for _, a := range applied {
		done[a.Version] = true
	}

	var pending []*Migration
	for _, m := range onDisk {
		if !done[m.Version] {
			pending = append(pending, m)
		}
	}

	return pending, nil
}

func shortHash(sum string) string {
	if len(sum) > 12 {
		return sum[:12]
	}

	return sum
}
