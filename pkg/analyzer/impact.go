package analyzer

import (
	"context"
	"regexp"
	"strings"

	"github.com/confiture/confiture/pkg/parser"
)

type (
	// Querier is the read-only database surface impact analysis needs.
	// *sqlx.DB and *sqlx.Tx both satisfy it.
	Querier interface {
		GetContext(ctx context.Context, dest any, query string, args ...any) error
		SelectContext(ctx context.Context, dest any, query string, args ...any) error
	}

	// TableImpact projects the effect of a statement on a single table.
	// Row and size figures come from catalog statistics (pg_class), never
	// from a table scan.
	TableImpact struct {
		Table                 string   `json:"table"`
		CurrentRowCount       int64    `json:"current_row_count"`
		SizeMB                float64  `json:"size_mb"`
		EstimatedNewRowCount  int64    `json:"estimated_new_row_count"`
		EstimatedSizeChangeMB float64  `json:"estimated_size_change_mb"`
		AffectedRows          int64    `json:"affected_rows"`
		ConstraintViolations  []string `json:"constraint_violations,omitempty"`
	}

	// Impact aggregates per-table projections for one statement. Catalog
	// failures are collected as warnings rather than aborting analysis.
	Impact struct {
		Tables   []TableImpact `json:"tables"`
		Warnings []string      `json:"warnings,omitempty"`
	}

	// ImpactAnalyzer produces table impact projections from catalog
	// statistics and statement shape.
	ImpactAnalyzer struct {
		db    Querier
		rules Rules
	}

	tableStats struct {
		RowCount int64   `db:"row_count"`
		SizeMB   float64 `db:"size_mb"`
	}

	constraintRow struct {
		Name string `db:"constraint_name"`
		Type string `db:"constraint_type"`
	}
)

// NewImpactAnalyzer creates an impact analyzer over the given read-only
// querier.
func NewImpactAnalyzer(db Querier, rules Rules) *ImpactAnalyzer {
	return &ImpactAnalyzer{db: db, rules: rules}
}

// statsQuery reads planner statistics for a table; reltuples is an estimate
// maintained by autovacuum, which is exactly what we want here.
const statsQuery = `
	SELECT GREATEST(c.reltuples, 0)::bigint AS row_count,
	       pg_total_relation_size(c.oid) / 1048576.0 AS size_mb
	FROM pg_class c
	JOIN pg_namespace n ON n.oid = c.relnamespace
	WHERE c.relname = $1
	  AND ($2 = '' OR n.nspname = $2)
	  AND c.relkind = 'r'
	LIMIT 1`

// constraintQuery lists declared constraints on, or referencing, a table.
const constraintQuery = `
	SELECT DISTINCT tc.constraint_name, tc.constraint_type
	FROM information_schema.table_constraints tc
	WHERE tc.table_name = $1
	  AND tc.constraint_type IN ('FOREIGN KEY', 'CHECK')
	UNION
	SELECT DISTINCT rc.constraint_name, 'FOREIGN KEY'
	FROM information_schema.referential_constraints rc
	JOIN information_schema.constraint_column_usage ccu
	  ON ccu.constraint_name = rc.unique_constraint_name
	WHERE ccu.table_name = $1`

// Analyze projects the statement's effect on its target table. It never
// mutates data; a table that cannot be resolved in the catalog produces a
// warning in the result, not an error.
func (a *ImpactAnalyzer) Analyze(ctx context.Context, stmt string) *Impact {
	shape := parser.ScanShape(stmt)
	impact := &Impact{}

	if shape.Table == "" {
		impact.Warnings = append(impact.Warnings, "no target table identified; impact not analyzed")
		return impact
	}

	schema, table := splitQualified(shape.Table)

	var stats tableStats
	if err := a.db.GetContext(ctx, &stats, statsQuery, table, schema); err != nil {
		impact.Warnings = append(impact.Warnings,
			NewError(KindAnalysis, err, "failed to resolve table %s", shape.Table).Error())
		return impact
	}

	ti := TableImpact{
		Table:           shape.Table,
		CurrentRowCount: stats.RowCount,
		SizeMB:          stats.SizeMB,
	}

	a.project(&ti, stmt, shape)

	if violations, err := a.constraintFindings(ctx, table, shape); err != nil {
		impact.Warnings = append(impact.Warnings,
			NewError(KindAnalysis, err, "failed to inspect constraints for %s", shape.Table).Error())
	} else {
		ti.ConstraintViolations = violations
	}

	impact.Tables = append(impact.Tables, ti)

	return impact
}

// project fills the estimated row/size deltas for the statement shape.
func (a *ImpactAnalyzer) project(ti *TableImpact, stmt string, shape parser.Shape) {
	avgRowMB := 0.0
	if ti.CurrentRowCount > 0 {
		avgRowMB = ti.SizeMB / float64(ti.CurrentRowCount)
	}

	switch shape.Kind {
	case parser.KindInsert:
		rows := insertRowCount(stmt, shape)
		ti.AffectedRows = rows
		ti.EstimatedNewRowCount = ti.CurrentRowCount + rows
		ti.EstimatedSizeChangeMB = float64(rows) * avgRowMB

	case parser.KindDelete:
		ti.AffectedRows = a.selectRows(ti.CurrentRowCount, shape)
		ti.EstimatedNewRowCount = ti.CurrentRowCount - ti.AffectedRows
		ti.EstimatedSizeChangeMB = -float64(ti.AffectedRows) * avgRowMB

	case parser.KindUpdate:
		ti.AffectedRows = a.selectRows(ti.CurrentRowCount, shape)
		ti.EstimatedNewRowCount = ti.CurrentRowCount
		// Updated tuples leave dead versions behind until vacuum.
		ti.EstimatedSizeChangeMB = float64(ti.AffectedRows) * avgRowMB

	case parser.KindDropTable, parser.KindTruncate:
		ti.AffectedRows = ti.CurrentRowCount
		ti.EstimatedNewRowCount = 0
		ti.EstimatedSizeChangeMB = -ti.SizeMB

	case parser.KindCreateIndex, parser.KindAlterTable:
		ti.AffectedRows = ti.CurrentRowCount
		ti.EstimatedNewRowCount = ti.CurrentRowCount

	default:
		ti.EstimatedNewRowCount = ti.CurrentRowCount
	}
}

// selectRows applies the WHERE selectivity proxy: no predicate or a
// predicate that cannot be statically analyzed matches the whole table;
// a simple equality predicate matches the configured selectivity fraction.
func (a *ImpactAnalyzer) selectRows(current int64, shape parser.Shape) int64 {
	if !shape.HasWhere {
		return current
	}
	if isStaticEquality(shape.WherePredicate) {
		return int64(float64(current) * a.rules.EqualitySelectivity)
	}

	return current
}

// constraintFindings reports declared constraints the statement's predicate
// cannot statically satisfy. Deletes and truncations surface foreign keys
// referencing the table; unbounded updates surface check constraints.
func (a *ImpactAnalyzer) constraintFindings(ctx context.Context, table string, shape parser.Shape) ([]string, error) {
	switch shape.Kind {
	case parser.KindDelete, parser.KindTruncate, parser.KindUpdate, parser.KindDropTable:
	default:
		return nil, nil
	}

	var rows []constraintRow
	if err := a.db.SelectContext(ctx, &rows, constraintQuery, table); err != nil {
		return nil, err
	}

	var findings []string
	for _, r := range rows {
		switch {
		case r.Type == "FOREIGN KEY":
			findings = append(findings, "foreign key "+r.Name+" may be violated")
		case r.Type == "CHECK" && shape.Kind == parser.KindUpdate && !shape.HasWhere:
			findings = append(findings, "check constraint "+r.Name+" applies to every updated row")
		}
	}

	return findings, nil
}

// equalityPredicate matches a single "column = literal" predicate, the only
// shape we treat as statically analyzable.
var equalityPredicate = regexp.MustCompile(`^[\w."]+\s*=\s*('([^']|'')*'|[\d.]+|true|false)$`)

func isStaticEquality(predicate string) bool {
	return equalityPredicate.MatchString(strings.TrimSpace(predicate))
}

// insertRowCount counts VALUES tuples in a convertible-shaped INSERT; for
// SELECT-sourced inserts the row count is unknowable statically and we
// assume a single row.
func insertRowCount(stmt string, shape parser.Shape) int64 {
	if shape.HasSelectSource || shape.HasCTE {
		return 1
	}

	parsed, err := parser.ParseInsert(stmt)
	if err != nil {
		return 1
	}

	return int64(len(parsed.Rows))
}

// splitQualified splits "schema.table" into its parts; unqualified names
// return an empty schema.
func splitQualified(name string) (schema, table string) {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[:i], name[i+1:]
	}

	return "", name
}
