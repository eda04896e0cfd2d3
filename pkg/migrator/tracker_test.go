package migrator_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/confiture/confiture/pkg/analyzer"
	. "github.com/confiture/confiture/pkg/migrator"
	"github.com/stretchr/testify/require"
)

// fakeStore satisfies Store with canned applied rows, recording every
// executed query.
type fakeStore struct {
	applied []AppliedMigration
	queries []string
}

func (f *fakeStore) ExecContext(_ context.Context, query string, _ ...any) (sql.Result, error) {
	f.queries = append(f.queries, query)
	return nil, nil
}

func (f *fakeStore) SelectContext(_ context.Context, dest any, _ string, _ ...any) error {
	*dest.(*[]AppliedMigration) = f.applied
	return nil
}

func mig(version, name, up string) *Migration {
	return &Migration{Version: version, Name: name, UpSQL: up, Checksum: Checksum(up)}
}

func TestTrackerValidate(t *testing.T) {
	ctx := context.Background()

	t.Run("clean_set", func(t *testing.T) {
		store := &fakeStore{applied: []AppliedMigration{
			{Version: "001", Checksum: Checksum("CREATE TABLE a (id int);")},
		}}

		err := NewTracker(store).Validate(ctx, []*Migration{
			mig("001", "a", "CREATE TABLE a (id int);"),
			mig("002", "b", "CREATE TABLE b (id int);"),
		})
		require.NoError(t, err)
	})

	t.Run("version_collision", func(t *testing.T) {
		err := NewTracker(&fakeStore{}).Validate(ctx, []*Migration{
			mig("001", "a", "CREATE TABLE a (id int);"),
			mig("001", "b", "CREATE TABLE b (id int);"),
		})
		require.ErrorContains(t, err, "version collision")
		require.Equal(t, analyzer.KindTrackingConflict, analyzer.KindOf(err))
	})

	t.Run("checksum_drift", func(t *testing.T) {
		store := &fakeStore{applied: []AppliedMigration{
			{Version: "001", Checksum: Checksum("CREATE TABLE a (id int);")},
		}}

		err := NewTracker(store).Validate(ctx, []*Migration{
			mig("001", "a", "CREATE TABLE a (id bigint);"),
		})
		require.ErrorContains(t, err, "checksum drift")
		require.Equal(t, analyzer.KindTrackingConflict, analyzer.KindOf(err))
	})

	t.Run("tracked_version_missing_on_disk_is_fine", func(t *testing.T) {
		store := &fakeStore{applied: []AppliedMigration{
			{Version: "000", Checksum: "abc"},
		}}

		err := NewTracker(store).Validate(ctx, []*Migration{
			mig("001", "a", "CREATE TABLE a (id int);"),
		})
		require.NoError(t, err)
	})
}

func TestTrackerPlan(t *testing.T) {
	ctx := context.Background()

	onDisk := []*Migration{
		mig("001", "a", "CREATE TABLE a (id int);"),
		mig("002", "b", "CREATE TABLE b (id int);"),
		mig("003", "c", "CREATE TABLE c (id int);"),
	}

	t.Run("pending_is_disk_minus_tracked", func(t *testing.T) {
		store := &fakeStore{applied: []AppliedMigration{
			{Version: "001", Checksum: onDisk[0].Checksum},
			{Version: "002", Checksum: onDisk[1].Checksum},
		}}

		pending, err := NewTracker(store).Plan(ctx, onDisk, false)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		require.Equal(t, "003", pending[0].Version)
	})

	t.Run("drift_aborts_plan", func(t *testing.T) {
		store := &fakeStore{applied: []AppliedMigration{
			{Version: "001", Checksum: "stale"},
		}}

		_, err := NewTracker(store).Plan(ctx, onDisk, false)
		require.ErrorContains(t, err, "checksum drift")
	})

	t.Run("force_treats_everything_as_pending", func(t *testing.T) {
		store := &fakeStore{applied: []AppliedMigration{
			{Version: "001", Checksum: "stale"},
		}}

		pending, err := NewTracker(store).Plan(ctx, onDisk, true)
		require.NoError(t, err)
		require.Len(t, pending, 3)
	})
}
