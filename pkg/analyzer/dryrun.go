package analyzer

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type (
	// Execer is the mutable database surface execute-and-analyze needs.
	// It must be a transaction: the orchestrator relies on SAVEPOINT /
	// ROLLBACK TO SAVEPOINT semantics. *sqlx.Tx satisfies it.
	Execer interface {
		ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	}

	// Options toggles the analysis stages. Classification always runs; each
	// other stage is independent.
	Options struct {
		Impact      bool
		Concurrency bool
		Cost        bool
	}

	// Orchestrator composes the per-statement analysis pipeline
	// (classify → impact → concurrency → cost) behind two entry points:
	// Analyze, which executes nothing, and ExecuteAndAnalyze, which runs
	// each statement inside a savepoint that is always rolled back.
	Orchestrator struct {
		classifier  *Classifier
		impact      *ImpactAnalyzer
		concurrency *ConcurrencyAnalyzer
		cost        *CostEstimator
		opts        Options
	}
)

// DefaultOptions enables every analysis stage.
func DefaultOptions() Options {
	return Options{Impact: true, Concurrency: true, Cost: true}
}

// NewOrchestrator creates a dry-run orchestrator. db is the read-only
// querier used for impact analysis and session sampling; it may be nil when
// the corresponding stages are disabled.
func NewOrchestrator(db Querier, rules Rules, opts Options) *Orchestrator {
	o := &Orchestrator{
		classifier: NewClassifier(rules),
		cost:       NewCostEstimator(rules),
		opts:       opts,
	}
	if db != nil {
		o.impact = NewImpactAnalyzer(db, rules)
		o.concurrency = NewConcurrencyAnalyzer(rules, db)
	} else {
		o.concurrency = NewConcurrencyAnalyzer(rules, nil)
	}

	return o
}

// Analyze runs the metadata-only pipeline over the statements. Nothing is
// executed and the database is never mutated; catalog query failures become
// report warnings, not errors.
func (o *Orchestrator) Analyze(ctx context.Context, statements []string, migrationID string) *Report {
	report := &Report{
		MigrationID: migrationID,
		StartedAt:   time.Now().UTC(),
	}

	for _, stmt := range statements {
		report.Analyses = append(report.Analyses, o.analyzeStatement(ctx, stmt))
	}

	report.finalize()

	return report
}

// ExecuteAndAnalyze runs the same pipeline but additionally executes each
// statement inside its own SAVEPOINT, measuring wall-clock time and actual
// rows affected, then unconditionally rolls back to the savepoint. The
// transaction sees no net effect regardless of statement success or
// failure; committing or rolling back the outer transaction remains the
// caller's responsibility.
func (o *Orchestrator) ExecuteAndAnalyze(ctx context.Context, tx Execer, statements []string, migrationID string) (*Report, error) {
	report := &Report{
		MigrationID: migrationID,
		StartedAt:   time.Now().UTC(),
	}

	for i, stmt := range statements {
		analysis := o.analyzeStatement(ctx, stmt)

		savepoint := fmt.Sprintf("dryrun_%d", i)
		if _, err := tx.ExecContext(ctx, "SAVEPOINT "+savepoint); err != nil {
			return nil, NewError(KindExecution, err, "failed to open savepoint %s", savepoint)
		}

		start := time.Now()
		res, execErr := tx.ExecContext(ctx, stmt)
		elapsed := float64(time.Since(start).Microseconds()) / 1000

		analysis.ExecutionTimeMS = &elapsed
		if execErr != nil {
			analysis.Err = execErr.Error()
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("statement %d failed during dry-run execution: %v", i+1, execErr))
		} else if rows, err := res.RowsAffected(); err == nil {
			analysis.RowsAffected = &rows
		}

		// Rollback is unconditional: a successful statement must leave no
		// net effect either.
		if _, err := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+savepoint); err != nil {
			return nil, NewError(KindExecution, err, "failed to roll back savepoint %s", savepoint)
		}

		report.Analyses = append(report.Analyses, analysis)
	}

	report.finalize()

	return report, nil
}

// analyzeStatement runs the enabled pipeline stages for one statement.
func (o *Orchestrator) analyzeStatement(ctx context.Context, stmt string) StatementAnalysis {
	classification, note := o.classifier.Classify(stmt)
	analysis := StatementAnalysis{
		Statement:      stmt,
		Classification: classification,
		Note:           note,
	}

	if o.opts.Impact && o.impact != nil {
		analysis.Impact = o.impact.Analyze(ctx, stmt)
	}

	if o.opts.Cost {
		analysis.Cost = o.cost.Estimate(stmt, analysis.Impact)
	}

	if o.opts.Concurrency {
		var durationMS float64
		if analysis.Cost != nil {
			durationMS = analysis.Cost.EstimatedDurationMS
		}
		analysis.Concurrency = o.concurrency.Analyze(ctx, stmt, durationMS)
	}

	return analysis
}
