package analyzer

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// fakeCatalog serves canned pg_class statistics and constraint rows. It lives
// in the package so it can fill the analyzer's scan targets directly.
type fakeCatalog struct {
	stats       tableStats
	constraints []constraintRow
	statsErr    error
}

func (f *fakeCatalog) GetContext(_ context.Context, dest any, _ string, _ ...any) error {
	if f.statsErr != nil {
		return f.statsErr
	}

	*dest.(*tableStats) = f.stats

	return nil
}

func (f *fakeCatalog) SelectContext(_ context.Context, dest any, _ string, _ ...any) error {
	*dest.(*[]constraintRow) = append(*dest.(*[]constraintRow), f.constraints...)

	return nil
}

func TestImpactAnalyze(t *testing.T) {
	ctx := context.Background()

	t.Run("insert adds the counted rows", func(t *testing.T) {
		a := NewImpactAnalyzer(&fakeCatalog{stats: tableStats{RowCount: 1000, SizeMB: 10}}, DefaultRules())

		impact := a.Analyze(ctx, "INSERT INTO users (id) VALUES (1), (2), (3)")

		require.Len(t, impact.Tables, 1)
		ti := impact.Tables[0]
		require.Equal(t, "users", ti.Table)
		require.EqualValues(t, 3, ti.AffectedRows)
		require.EqualValues(t, 1003, ti.EstimatedNewRowCount)
		require.InDelta(t, 0.03, ti.EstimatedSizeChangeMB, 0.001)
	})

	t.Run("delete without where matches the whole table", func(t *testing.T) {
		a := NewImpactAnalyzer(&fakeCatalog{stats: tableStats{RowCount: 500, SizeMB: 5}}, DefaultRules())

		impact := a.Analyze(ctx, "DELETE FROM users")

		ti := impact.Tables[0]
		require.EqualValues(t, 500, ti.AffectedRows)
		require.EqualValues(t, 0, ti.EstimatedNewRowCount)
		require.InDelta(t, -5, ti.EstimatedSizeChangeMB, 0.001)
	})

	t.Run("equality predicate applies the selectivity fraction", func(t *testing.T) {
		a := NewImpactAnalyzer(&fakeCatalog{stats: tableStats{RowCount: 1000, SizeMB: 10}}, DefaultRules())

		impact := a.Analyze(ctx, "DELETE FROM users WHERE id = 42")

		require.EqualValues(t, 100, impact.Tables[0].AffectedRows)
	})

	t.Run("opaque predicate matches the whole table", func(t *testing.T) {
		a := NewImpactAnalyzer(&fakeCatalog{stats: tableStats{RowCount: 1000, SizeMB: 10}}, DefaultRules())

		impact := a.Analyze(ctx, "DELETE FROM users WHERE created_at < now() - interval '30 days'")

		require.EqualValues(t, 1000, impact.Tables[0].AffectedRows)
	})

	t.Run("update keeps the row count but grows the heap", func(t *testing.T) {
		a := NewImpactAnalyzer(&fakeCatalog{stats: tableStats{RowCount: 1000, SizeMB: 10}}, DefaultRules())

		impact := a.Analyze(ctx, "UPDATE users SET name = 'x'")

		ti := impact.Tables[0]
		require.EqualValues(t, 1000, ti.AffectedRows)
		require.EqualValues(t, 1000, ti.EstimatedNewRowCount)
		require.InDelta(t, 10, ti.EstimatedSizeChangeMB, 0.001)
	})

	t.Run("truncate reports foreign keys", func(t *testing.T) {
		cat := &fakeCatalog{
			stats:       tableStats{RowCount: 10},
			constraints: []constraintRow{{Name: "orders_user_id_fkey", Type: "FOREIGN KEY"}},
		}
		a := NewImpactAnalyzer(cat, DefaultRules())

		impact := a.Analyze(ctx, "TRUNCATE users")

		require.Len(t, impact.Tables[0].ConstraintViolations, 1)
		require.Contains(t, impact.Tables[0].ConstraintViolations[0], "orders_user_id_fkey")
	})

	t.Run("unbounded update surfaces check constraints", func(t *testing.T) {
		cat := &fakeCatalog{
			stats:       tableStats{RowCount: 10},
			constraints: []constraintRow{{Name: "users_age_check", Type: "CHECK"}},
		}
		a := NewImpactAnalyzer(cat, DefaultRules())

		impact := a.Analyze(ctx, "UPDATE users SET age = -1")

		require.Len(t, impact.Tables[0].ConstraintViolations, 1)
		require.Contains(t, impact.Tables[0].ConstraintViolations[0], "users_age_check")
	})

	t.Run("bounded update skips check findings", func(t *testing.T) {
		cat := &fakeCatalog{
			stats:       tableStats{RowCount: 10},
			constraints: []constraintRow{{Name: "users_age_check", Type: "CHECK"}},
		}
		a := NewImpactAnalyzer(cat, DefaultRules())

		impact := a.Analyze(ctx, "UPDATE users SET age = 1 WHERE id = 5")

		require.Empty(t, impact.Tables[0].ConstraintViolations)
	})

	t.Run("catalog failure is a warning, not an error", func(t *testing.T) {
		a := NewImpactAnalyzer(&fakeCatalog{statsErr: errors.New("relation does not exist")}, DefaultRules())

		impact := a.Analyze(ctx, "DELETE FROM ghosts")

		require.Empty(t, impact.Tables)
		require.Len(t, impact.Warnings, 1)
		require.Contains(t, impact.Warnings[0], "failed to resolve table ghosts")
	})

	t.Run("statement without a table is a warning", func(t *testing.T) {
		a := NewImpactAnalyzer(&fakeCatalog{}, DefaultRules())

		impact := a.Analyze(ctx, "SET search_path TO public")

		require.Empty(t, impact.Tables)
		require.NotEmpty(t, impact.Warnings)
	})
}
