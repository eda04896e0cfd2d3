package executor

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/confiture/confiture/pkg/analyzer"
	"github.com/confiture/confiture/pkg/config"
	"github.com/confiture/confiture/pkg/copyconv"
	"github.com/confiture/confiture/pkg/migrator"
	"github.com/confiture/confiture/pkg/parser"
	"github.com/confiture/confiture/pkg/postgres"
	"github.com/pkg/errors"
)

type (
	// Engine composes directory loading, migration tracking, dry-run
	// analysis, and sequential execution into the operations the CLI
	// exposes. One Engine serves one target database.
	Engine struct {
		client *postgres.Client
		fsys   fs.FS
		cfg    *config.Config
		rules  analyzer.Rules
		log    *slog.Logger
	}

	// UpOptions controls a migrate-up run.
	UpOptions struct {
		// DryRun analyzes pending migrations without applying them.
		DryRun bool

		// Execute makes the dry run execute each statement for real inside a
		// savepoint that is always rolled back, measuring actual timings.
		// Only meaningful with DryRun.
		Execute bool

		// Force bypasses collision/drift validation and treats every on-disk
		// migration as pending. Development recovery only.
		Force bool

		// ContinueOnError keeps applying later migrations after one fails.
		ContinueOnError bool

		// CopyFormat converts eligible INSERTs to COPY bulk loads.
		CopyFormat bool

		// Sequential gives every migration file its own savepoint-guarded
		// unit. When false all pending statements run as a single unit and
		// fail or succeed together.
		Sequential bool
	}

	// UpResult is the outcome of a migrate-up run. Run is set for real runs,
	// Reports for dry runs (one report per pending migration).
	UpResult struct {
		Pending []string           `json:"pending"`
		Run     *RunResult         `json:"run,omitempty"`
		Reports []*analyzer.Report `json:"reports,omitempty"`
	}

	// StatusEntry describes one migration's tracked state.
	StatusEntry struct {
		Version   string     `json:"version"`
		Name      string     `json:"name"`
		Applied   bool       `json:"applied"`
		AppliedAt *time.Time `json:"applied_at,omitempty"`
		Drifted   bool       `json:"drifted,omitempty"`
		Missing   bool       `json:"missing,omitempty"`
	}

	// Diff is the difference between the on-disk migration set and the
	// tracked state.
	Diff struct {
		// Pending are on-disk migrations not yet applied.
		Pending []string `json:"pending"`

		// Missing are tracked versions with no on-disk file.
		Missing []string `json:"missing"`

		// Drifted are applied migrations whose up script changed on disk.
		Drifted []string `json:"drifted"`
	}

	// SeedOptions controls a seed-apply run.
	SeedOptions struct {
		ContinueOnError bool
		CopyFormat      bool
		Sequential      bool
	}

	// SeedResult is the outcome of a seed-apply run.
	SeedResult struct {
		Run        *RunResult                  `json:"run"`
		Conversion *copyconv.ConversionReport `json:"conversion,omitempty"`
	}
)

// NewEngine builds an engine from the project configuration. The analyzer
// rule set is derived once here; invalid destructive patterns fail fast.
func NewEngine(client *postgres.Client, fsys fs.FS, cfg *config.Config, log *slog.Logger) (*Engine, error) {
	rules := analyzer.DefaultRules()
	if cfg.Analysis.TargetBatchDurationMS > 0 {
		rules = rules.WithTargetBatchDuration(time.Duration(cfg.Analysis.TargetBatchDurationMS) * time.Millisecond)
	}

	rules, err := rules.WithDestructivePatterns(cfg.Analysis.DestructivePatterns)
	if err != nil {
		return nil, err
	}

	return &Engine{
		client: client,
		fsys:   fsys,
		cfg:    cfg,
		rules:  rules,
		log:    log,
	}, nil
}

// Rules exposes the engine's derived analyzer rule set.
func (e *Engine) Rules() analyzer.Rules {
	return e.rules
}

// Up applies (or, with DryRun, analyzes) all pending migrations.
func (e *Engine) Up(ctx context.Context, opts UpOptions) (*UpResult, error) {
	migrations, err := migrator.LoadMigrationDir(e.fsys, e.cfg.Dir)
	if err != nil {
		return nil, err
	}

	tracker := migrator.NewTracker(e.client.DB())
	if err := tracker.EnsureTable(ctx); err != nil {
		return nil, err
	}

	pending, err := tracker.Plan(ctx, migrations, opts.Force)
	if err != nil {
		return nil, err
	}

	result := &UpResult{}
	for _, m := range pending {
		result.Pending = append(result.Pending, m.ID())
	}

	if len(pending) == 0 {
		e.log.InfoContext(ctx, "no pending migrations")
		return result, nil
	}

	if opts.DryRun {
		result.Reports, err = e.dryRun(ctx, pending, opts.Execute)
		return result, err
	}

	result.Run, err = e.apply(ctx, pending, opts)

	return result, err
}

// dryRun analyzes pending migrations, optionally executing each statement
// under a savepoint. The outer transaction used for execute mode is always
// rolled back.
func (e *Engine) dryRun(ctx context.Context, pending []*migrator.Migration, execute bool) ([]*analyzer.Report, error) {
	if !execute {
		orch := analyzer.NewOrchestrator(e.client.DB(), e.rules, analyzer.DefaultOptions())
		reports := make([]*analyzer.Report, 0, len(pending))
		for _, m := range pending {
			reports = append(reports, orch.Analyze(ctx, m.UpStatements(), m.ID()))
		}
		return reports, nil
	}

	tx, err := e.client.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	// The pool is capped at one connection and the transaction holds it, so
	// the catalog queries of the analysis stages must run through the same
	// transaction or they would wait on the pool forever.
	orch := analyzer.NewOrchestrator(tx, e.rules, analyzer.DefaultOptions())

	reports := make([]*analyzer.Report, 0, len(pending))
	for _, m := range pending {
		report, err := orch.ExecuteAndAnalyze(ctx, tx, m.UpStatements(), m.ID())
		if err != nil {
			return nil, err
		}

		// Surface a +/-15% production estimate band around the measured
		// timings.
		var measured float64
		for _, a := range report.Analyses {
			if a.ExecutionTimeMS != nil {
				measured += *a.ExecutionTimeMS
			}
		}
		report.Warnings = append(report.Warnings, fmt.Sprintf(
			"measured %.1fms total; expected production range %.1fms to %.1fms",
			measured, measured*0.85, measured*1.15))

		reports = append(reports, report)
	}

	return reports, nil
}

// apply runs pending migrations inside one transaction, recording each in
// the tracking relation under the same savepoint as its effects.
func (e *Engine) apply(ctx context.Context, pending []*migrator.Migration, opts UpOptions) (*RunResult, error) {
	tx, err := e.client.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	byName := make(map[string]*migrator.Migration, len(pending))
	var units []ExecutionUnit
	if opts.Sequential {
		for _, m := range pending {
			byName[m.ID()] = m
			units = append(units, ExecutionUnit{Name: m.ID(), Statements: m.UpStatements()})
		}
	} else {
		var stmts []string
		for _, m := range pending {
			stmts = append(stmts, m.UpStatements()...)
		}
		units = []ExecutionUnit{{Name: "batch", Statements: stmts}}
	}

	tracker := migrator.NewTracker(tx)
	exec := New(Config{
		ContinueOnError: opts.ContinueOnError,
		CopyFormat:      opts.CopyFormat,
		CopyThreshold:   e.cfg.Seeds.CopyThreshold,
		AfterUnit: func(ctx context.Context, unit *ExecutionUnit, _ *UnitResult) error {
			if m, ok := byName[unit.Name]; ok {
				return tracker.Record(ctx, m)
			}
			// Batched run: all pending migrations succeed together.
			for _, m := range pending {
				if err := tracker.Record(ctx, m); err != nil {
					return err
				}
			}
			return nil
		},
		Hooks: e.loggingHooks(),
	})

	run, err := exec.Execute(ctx, tx, units)
	if err != nil {
		return run, err
	}

	if err := tx.Commit(); err != nil {
		return run, errors.Wrap(err, "failed to commit migration run")
	}

	e.log.InfoContext(ctx, "migrations applied", "applied", run.Applied, "failed", run.Failed)

	return run, nil
}

// Down rolls back the most recently applied migrations. steps < 1 rolls back
// a single migration.
func (e *Engine) Down(ctx context.Context, steps int) (*RunResult, error) {
	if steps < 1 {
		steps = 1
	}

	migrations, err := migrator.LoadMigrationDir(e.fsys, e.cfg.Dir)
	if err != nil {
		return nil, err
	}

	byVersion := make(map[string]*migrator.Migration, len(migrations))
	for _, m := range migrations {
		byVersion[m.Version] = m
	}

	tracker := migrator.NewTracker(e.client.DB())
	if err := tracker.EnsureTable(ctx); err != nil {
		return nil, err
	}

	applied, err := tracker.Applied(ctx)
	if err != nil {
		return nil, err
	}

	var targets []*migrator.Migration
	for i := len(applied) - 1; i >= 0 && len(targets) < steps; i-- {
		m, ok := byVersion[applied[i].Version]
		if !ok {
			return nil, errors.Errorf("cannot roll back version %s: no migration file on disk", applied[i].Version)
		}
		if !m.HasDown() {
			return nil, errors.Errorf("cannot roll back %s: no down migration", m.ID())
		}
		targets = append(targets, m)
	}

	if len(targets) == 0 {
		e.log.InfoContext(ctx, "nothing to roll back")
		return &RunResult{}, nil
	}

	tx, err := e.client.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	byName := make(map[string]*migrator.Migration, len(targets))
	units := make([]ExecutionUnit, 0, len(targets))
	for _, m := range targets {
		byName[m.ID()] = m
		units = append(units, ExecutionUnit{Name: m.ID(), Statements: m.DownStatements()})
	}

	txTracker := migrator.NewTracker(tx)
	exec := New(Config{
		AfterUnit: func(ctx context.Context, unit *ExecutionUnit, _ *UnitResult) error {
			return txTracker.Remove(ctx, byName[unit.Name].Version)
		},
		Hooks: e.loggingHooks(),
	})

	run, err := exec.Execute(ctx, tx, units)
	if err != nil {
		return run, err
	}

	if err := tx.Commit(); err != nil {
		return run, errors.Wrap(err, "failed to commit rollback")
	}

	e.log.InfoContext(ctx, "migrations rolled back", "count", run.Applied)

	return run, nil
}

// Status reports every known migration with its tracked state, including
// tracked versions whose files have gone missing.
func (e *Engine) Status(ctx context.Context) ([]StatusEntry, error) {
	migrations, err := migrator.LoadMigrationDir(e.fsys, e.cfg.Dir)
	if err != nil {
		return nil, err
	}

	tracker := migrator.NewTracker(e.client.DB())
	if err := tracker.EnsureTable(ctx); err != nil {
		return nil, err
	}

	applied, err := tracker.Applied(ctx)
	if err != nil {
		return nil, err
	}

	tracked := make(map[string]migrator.AppliedMigration, len(applied))
	for _, a := range applied {
		tracked[a.Version] = a
	}

	var entries []StatusEntry
	onDisk := make(map[string]bool, len(migrations))
	for _, m := range migrations {
		onDisk[m.Version] = true
		entry := StatusEntry{Version: m.Version, Name: m.Name}
		if a, ok := tracked[m.Version]; ok {
			entry.Applied = true
			at := a.AppliedAt
			entry.AppliedAt = &at
			entry.Drifted = a.Checksum != m.Checksum
		}
		entries = append(entries, entry)
	}

	for _, a := range applied {
		if !onDisk[a.Version] {
			at := a.AppliedAt
			entries = append(entries, StatusEntry{
				Version:   a.Version,
				Name:      a.Name,
				Applied:   true,
				AppliedAt: &at,
				Missing:   true,
			})
		}
	}

	return entries, nil
}

// Validate checks the on-disk migration set against the tracked state and
// returns the first tracking conflict found, if any.
func (e *Engine) Validate(ctx context.Context) error {
	migrations, err := migrator.LoadMigrationDir(e.fsys, e.cfg.Dir)
	if err != nil {
		return err
	}

	tracker := migrator.NewTracker(e.client.DB())
	if err := tracker.EnsureTable(ctx); err != nil {
		return err
	}

	return tracker.Validate(ctx, migrations)
}

// DiffState summarizes pending, missing, and drifted migrations without
// touching anything.
func (e *Engine) DiffState(ctx context.Context) (*Diff, error) {
	entries, err := e.Status(ctx)
	if err != nil {
		return nil, err
	}

	diff := &Diff{}
	for _, entry := range entries {
		id := entry.Version + "_" + entry.Name
		switch {
		case entry.Missing:
			diff.Missing = append(diff.Missing, id)
		case entry.Drifted:
			diff.Drifted = append(diff.Drifted, id)
		case !entry.Applied:
			diff.Pending = append(diff.Pending, id)
		}
	}

	return diff, nil
}

// SeedApply loads every seed file in the configured seed directory and
// applies them in lexicographic order, one unit per file.
func (e *Engine) SeedApply(ctx context.Context, opts SeedOptions) (*SeedResult, error) {
	files, err := copyconv.LoadSeedDir(e.fsys, e.cfg.Seeds.Dir)
	if err != nil {
		return nil, err
	}

	result := &SeedResult{Conversion: &copyconv.ConversionReport{}}
	units := make([]ExecutionUnit, 0, len(files))
	for _, f := range files {
		units = append(units, ExecutionUnit{Name: f.Name, Statements: parser.Split(f.SQL)})
		if opts.CopyFormat {
			report := copyconv.ConvertScript(f.SQL)
			result.Conversion.TotalStatements += report.TotalStatements
			result.Conversion.Converted += report.Converted
			result.Conversion.Fallback += report.Fallback
			result.Conversion.Results = append(result.Conversion.Results, report.Results...)
		}
	}
	if opts.CopyFormat {
		result.Conversion.AttachBatches(e.cfg.Seeds.CopyThreshold)
	}

	if !opts.Sequential && len(units) > 1 {
		var stmts []string
		for _, u := range units {
			stmts = append(stmts, u.Statements...)
		}
		units = []ExecutionUnit{{Name: "seeds", Statements: stmts}}
	}

	tx, err := e.client.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	exec := New(Config{
		ContinueOnError: opts.ContinueOnError,
		CopyFormat:      opts.CopyFormat,
		CopyThreshold:   e.cfg.Seeds.CopyThreshold,
		Hooks:           e.loggingHooks(),
	})

	result.Run, err = exec.Execute(ctx, tx, units)
	if err != nil {
		return result, err
	}

	if err := tx.Commit(); err != nil {
		return result, errors.Wrap(err, "failed to commit seed run")
	}

	e.log.InfoContext(ctx, "seeds applied", "files", result.Run.Applied, "failed", result.Run.Failed)

	return result, nil
}

// loggingHooks wires executor callbacks to the engine's structured logger.
func (e *Engine) loggingHooks() Hooks {
	return Hooks{
		PreUnit: func(ctx context.Context, run RunContext, unit string) error {
			e.log.DebugContext(ctx, "applying unit", "run_id", run.RunID, "unit", unit)
			return nil
		},
		PostUnit: func(ctx context.Context, run RunContext, result *UnitResult) error {
			e.log.InfoContext(ctx, "unit applied",
				"run_id", run.RunID,
				"unit", result.Unit,
				"statements", result.StatementsApplied,
				"duration", result.Duration,
			)
			return nil
		},
		OnError: func(ctx context.Context, run RunContext, unit string, err error) {
			e.log.ErrorContext(ctx, "unit failed", "run_id", run.RunID, "unit", unit, "error", err)
		},
	}
}
