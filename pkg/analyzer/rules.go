package analyzer

import (
	"regexp"
	"time"

	"github.com/confiture/confiture/pkg/parser"
	"github.com/pkg/errors"
)

type (
	// Rules carries every rule table and threshold the analyzers consult.
	// A Rules value is constructed once (DefaultRules, optionally adjusted
	// via the With* helpers) and passed explicitly to each component; it is
	// never mutated after construction.
	Rules struct {
		// destructivePatterns force a matching statement to classify unsafe
		// regardless of its shape.
		destructivePatterns []*regexp.Regexp

		// TargetBatchDuration is the per-batch duration target used to derive
		// recommended batch sizes.
		TargetBatchDuration time.Duration

		// Expensive thresholds. A cost estimate is expensive iff any single
		// threshold is met.
		ExpensiveDurationMS float64
		ExpensiveDiskMB     float64
		ExpensiveCPUPercent float64

		// Risk thresholds mapping estimated duration to concurrency risk.
		HighRiskDurationMS   float64
		MediumRiskDurationMS float64

		// EqualitySelectivity is the fraction of a table assumed to match a
		// statically analyzable equality predicate.
		EqualitySelectivity float64
	}

	// statementCost is the per-kind base cost model used by the estimator.
	statementCost struct {
		baseMS     float64 // fixed overhead per statement
		perRowMS   float64 // marginal cost per affected row
		cpuPercent float64 // nominal CPU load while running
	}
)

// defaultDestructive are the built-in patterns treated as destructive over
// and above the structural DROP/TRUNCATE rules.
var defaultDestructive = []*regexp.Regexp{
	regexp.MustCompile(`(?is)\bdrop\s+(table|index|schema|database)\b`),
	regexp.MustCompile(`(?is)\btruncate\b.*\bcascade\b`),
	regexp.MustCompile(`(?is)\balter\s+table\b.*\bdrop\s+column\b`),
}

// baseCosts maps statement kinds to their heuristic base cost. Values are
// deliberately coarse: the estimator exists to rank statements and trip
// thresholds, not to predict wall-clock time precisely.
var baseCosts = map[parser.StatementKind]statementCost{
	parser.KindSelect:      {baseMS: 1, perRowMS: 0.001, cpuPercent: 10},
	parser.KindInsert:      {baseMS: 5, perRowMS: 0.01, cpuPercent: 25},
	parser.KindUpdate:      {baseMS: 10, perRowMS: 0.02, cpuPercent: 35},
	parser.KindDelete:      {baseMS: 10, perRowMS: 0.015, cpuPercent: 30},
	parser.KindCreateTable: {baseMS: 50, perRowMS: 0, cpuPercent: 15},
	parser.KindCreateIndex: {baseMS: 100, perRowMS: 0.05, cpuPercent: 70},
	parser.KindAlterTable:  {baseMS: 100, perRowMS: 0.03, cpuPercent: 60},
	parser.KindDropTable:   {baseMS: 20, perRowMS: 0, cpuPercent: 15},
	parser.KindDropIndex:   {baseMS: 20, perRowMS: 0, cpuPercent: 15},
	parser.KindDropSchema:  {baseMS: 30, perRowMS: 0, cpuPercent: 15},
	parser.KindTruncate:    {baseMS: 15, perRowMS: 0, cpuPercent: 20},
	parser.KindUnknown:     {baseMS: 10, perRowMS: 0.01, cpuPercent: 20},
}

// DefaultRules returns the standard rule set: the documented expensive
// thresholds (10s / 100MB / 80% CPU), risk cutoffs at 50ms and 200ms, a 5s
// batch duration target, and the built-in destructive patterns.
func DefaultRules() Rules {
	return Rules{
		destructivePatterns:  defaultDestructive,
		TargetBatchDuration:  5 * time.Second,
		ExpensiveDurationMS:  10000,
		ExpensiveDiskMB:      100,
		ExpensiveCPUPercent:  80,
		HighRiskDurationMS:   200,
		MediumRiskDurationMS: 50,
		EqualitySelectivity:  0.1,
	}
}

// WithDestructivePatterns returns a copy of the rules with the given
// patterns compiled and appended to the built-in destructive list. An
// invalid pattern returns an error rather than being silently dropped.
func (r Rules) WithDestructivePatterns(patterns []string) (Rules, error) {
	compiled := make([]*regexp.Regexp, 0, len(r.destructivePatterns)+len(patterns))
	compiled = append(compiled, r.destructivePatterns...)

	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return r, errors.Wrapf(err, "invalid destructive pattern: %s", p)
		}
		compiled = append(compiled, re)
	}

	r.destructivePatterns = compiled

	return r, nil
}

// WithTargetBatchDuration returns a copy of the rules with the batch
// duration target replaced.
func (r Rules) WithTargetBatchDuration(d time.Duration) Rules {
	r.TargetBatchDuration = d
	return r
}

// IsExpensive reports whether any single estimate meets its expensive
// threshold. The check is deliberately per-dimension: a composite score
// below 100 can still be expensive when one dimension crosses its line.
func (r Rules) IsExpensive(durationMS, diskMB, cpuPercent float64) bool {
	return durationMS >= r.ExpensiveDurationMS ||
		diskMB >= r.ExpensiveDiskMB ||
		cpuPercent >= r.ExpensiveCPUPercent
}

// matchesDestructive reports whether any destructive pattern matches the
// statement.
func (r Rules) matchesDestructive(stmt string) bool {
	for _, re := range r.destructivePatterns {
		if re.MatchString(stmt) {
			return true
		}
	}

	return false
}

// costFor returns the base cost model for a statement kind.
func (r Rules) costFor(kind parser.StatementKind) statementCost {
	if c, ok := baseCosts[kind]; ok {
		return c
	}

	return baseCosts[parser.KindUnknown]
}
