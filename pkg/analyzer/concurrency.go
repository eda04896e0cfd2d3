package analyzer

import (
	"context"
	"regexp"

	"github.com/confiture/confiture/pkg/parser"
)

// LockMode is the expected lock taken by a statement shape.
type LockMode string

const (
	// RowLock covers simple DML touching individual rows.
	RowLock LockMode = "row"

	// IntentRangeLock covers index builds and column type changes that lock
	// ranges without excluding all access.
	IntentRangeLock LockMode = "intent_range"

	// ExclusiveLock covers structural ALTER TABLE, TRUNCATE, and DROP.
	ExclusiveLock LockMode = "exclusive"
)

// RiskLevel grades the concurrency hazard of running a statement on a live
// database.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

type (
	// Concurrency is the lock analysis for one statement.
	Concurrency struct {
		LockMode     LockMode  `json:"lock_mode"`
		RiskLevel    RiskLevel `json:"risk_level"`
		TablesLocked []string  `json:"tables_locked,omitempty"`

		// BlockingStatements lists queries currently active on the target
		// database that this statement may block. Populated only when a live
		// session querier is available; its absence is not an error.
		BlockingStatements []string `json:"blocking_statements,omitempty"`
	}

	// ConcurrencyAnalyzer maps statement shape to an expected lock mode and
	// derives a risk level from the lock crossed with the estimated
	// duration.
	ConcurrencyAnalyzer struct {
		rules    Rules
		sessions Querier // optional; nil disables blocking-statement lookup
	}

	activityRow struct {
		Query string `db:"query"`
	}
)

// NewConcurrencyAnalyzer creates a concurrency analyzer. sessions may be
// nil, in which case blocking statements are never reported.
func NewConcurrencyAnalyzer(rules Rules, sessions Querier) *ConcurrencyAnalyzer {
	return &ConcurrencyAnalyzer{rules: rules, sessions: sessions}
}

// activityQuery samples currently running statements from pg_stat_activity.
const activityQuery = `
	SELECT query
	FROM pg_stat_activity
	WHERE state = 'active'
	  AND pid <> pg_backend_pid()
	  AND query <> ''
	LIMIT 20`

// Analyze returns the expected lock mode and risk level for the statement.
// estimatedDurationMS comes from the cost estimator; pass 0 when cost
// analysis is disabled.
func (c *ConcurrencyAnalyzer) Analyze(ctx context.Context, stmt string, estimatedDurationMS float64) *Concurrency {
	shape := parser.ScanShape(stmt)

	conc := &Concurrency{LockMode: lockModeFor(stmt, shape)}
	if shape.Table != "" {
		conc.TablesLocked = []string{shape.Table}
	}
	conc.RiskLevel = c.riskFor(conc.LockMode, estimatedDurationMS)

	if c.sessions != nil {
		var rows []activityRow
		// Best effort: session state is advisory and may be unavailable.
		if err := c.sessions.SelectContext(ctx, &rows, activityQuery); err == nil {
			for _, r := range rows {
				conc.BlockingStatements = append(conc.BlockingStatements, r.Query)
			}
		}
	}

	return conc
}

// columnTypeChange matches ALTER TABLE ... ALTER COLUMN ... TYPE, which
// rewrites a column without excluding all access the way structural changes
// do.
var columnTypeChange = regexp.MustCompile(`(?is)\balter\s+column\s+\S+\s+(set\s+data\s+)?type\b`)

// lockModeFor is the static shape → lock rule table.
func lockModeFor(stmt string, shape parser.Shape) LockMode {
	switch shape.Kind {
	case parser.KindAlterTable:
		if columnTypeChange.MatchString(stmt) {
			return IntentRangeLock
		}
		return ExclusiveLock

	case parser.KindTruncate, parser.KindDropTable, parser.KindDropIndex, parser.KindDropSchema:
		return ExclusiveLock

	case parser.KindCreateIndex:
		return IntentRangeLock

	default:
		return RowLock
	}
}

// riskFor crosses the lock mode with the duration estimate against fixed
// thresholds: exclusive or ≥ high cutoff is high; intent-range or within the
// medium band is medium; everything else is low.
func (c *ConcurrencyAnalyzer) riskFor(mode LockMode, durationMS float64) RiskLevel {
	switch {
	case mode == ExclusiveLock || durationMS >= c.rules.HighRiskDurationMS:
		return RiskHigh
	case mode == IntentRangeLock || durationMS >= c.rules.MediumRiskDurationMS:
		return RiskMedium
	default:
		return RiskLow
	}
}
