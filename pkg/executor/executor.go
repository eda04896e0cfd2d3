package executor

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/confiture/confiture/pkg/analyzer"
	"github.com/confiture/confiture/pkg/copyconv"
	"github.com/confiture/confiture/pkg/postgres"
	"github.com/pkg/errors"
)

type (
	// Conn is the transaction surface the executor needs. *sqlx.Tx satisfies
	// it; the executor never commits or rolls back the outer transaction
	// itself, that stays with the caller.
	Conn interface {
		ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
		PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
	}

	// ExecutionUnit is one file's worth of statements, applied atomically
	// under its own SAVEPOINT.
	ExecutionUnit struct {
		Name       string
		Statements []string
	}

	// UnitStatus is the outcome of a single unit.
	UnitStatus string

	// UnitResult records the outcome of one execution unit.
	UnitResult struct {
		Unit              string        `json:"unit"`
		Status            UnitStatus    `json:"status"`
		StatementsApplied int           `json:"statements_applied"`
		TotalStatements   int           `json:"total_statements"`
		RowsCopied        int64         `json:"rows_copied,omitempty"`
		Duration          time.Duration `json:"duration"`
		Err               error         `json:"-"`
		Error             string        `json:"error,omitempty"`
	}

	// RunResult aggregates the per-unit outcomes of one run. Aborted is set
	// when a failure stopped the run early; the caller must then roll back
	// the outer transaction.
	RunResult struct {
		Units   []*UnitResult `json:"units"`
		Applied int           `json:"applied"`
		Failed  int           `json:"failed"`
		Aborted bool          `json:"aborted"`
	}

	// Config controls a SequentialExecutor.
	Config struct {
		// ContinueOnError keeps applying later units after one fails. The
		// failed unit's SAVEPOINT is rolled back either way.
		ContinueOnError bool

		// CopyFormat converts eligible INSERT statements to COPY bulk loads.
		// Statements that cannot be converted fall back to direct execution.
		CopyFormat bool

		// CopyThreshold is the minimum row count before a convertible INSERT
		// is loaded via COPY. Zero uses the 1000-row default.
		CopyThreshold int

		// AfterUnit runs inside the transaction after each successful unit,
		// before its SAVEPOINT is released. An error fails the unit. Used to
		// record tracking state atomically with the unit's effects.
		AfterUnit func(ctx context.Context, unit *ExecutionUnit, result *UnitResult) error

		// Hooks receive observational callbacks around each unit. Hook errors
		// are swallowed unless Hooks.PropagateHookErrors is set.
		Hooks Hooks
	}

	// SequentialExecutor applies units strictly in order on a single
	// connection. Units are never reordered or parallelized because later
	// units may depend on earlier ones.
	SequentialExecutor struct {
		cfg   Config
		batch *copyconv.SeedBatchBuilder
	}
)

const (
	UnitSuccess UnitStatus = "success"
	UnitFailed  UnitStatus = "failed"
)

// New creates a sequential executor with the given configuration.
func New(cfg Config) *SequentialExecutor {
	if cfg.CopyThreshold <= 0 {
		cfg.CopyThreshold = 1000
	}

	return &SequentialExecutor{
		cfg:   cfg,
		batch: copyconv.NewSeedBatchBuilder(cfg.CopyThreshold),
	}
}

// Execute applies the units in order inside the caller's transaction.
//
// Each unit runs under a nested SAVEPOINT that is released on success and
// rolled back on failure. A fresh SAVEPOINT boundary per file also keeps the
// server from accumulating parser state across one huge concatenated script,
// which starts producing spurious syntax errors somewhere around 650
// statements.
//
// The returned error is non-nil only when the run aborted and the caller
// must roll back the outer transaction; per-unit failures under
// ContinueOnError are reported in the RunResult alone.
func (e *SequentialExecutor) Execute(ctx context.Context, conn Conn, units []ExecutionUnit) (*RunResult, error) {
	run := NewRunContext()
	result := &RunResult{}

	for i := range units {
		unit := &units[i]

		var unitResult *UnitResult
		if err := e.cfg.Hooks.preUnit(ctx, run, unit.Name); err != nil {
			unitResult = &UnitResult{Unit: unit.Name, TotalStatements: len(unit.Statements)}
			unitResult.fail(time.Now(), err)
		} else {
			unitResult = e.executeUnit(ctx, conn, i, unit)
		}
		result.Units = append(result.Units, unitResult)

		if unitResult.Err != nil {
			result.Failed++
			e.cfg.Hooks.onError(ctx, run, unit.Name, unitResult.Err)

			if !e.cfg.ContinueOnError {
				result.Aborted = true
				return result, analyzer.NewError(analyzer.KindExecution, unitResult.Err,
					"unit %s failed, aborting run", unit.Name)
			}
			continue
		}

		result.Applied++
		if err := e.cfg.Hooks.postUnit(ctx, run, unitResult); err != nil {
			result.Aborted = true
			return result, err
		}
	}

	return result, nil
}

// executeUnit runs one unit under its own SAVEPOINT.
func (e *SequentialExecutor) executeUnit(ctx context.Context, conn Conn, idx int, unit *ExecutionUnit) *UnitResult {
	started := time.Now()
	result := &UnitResult{
		Unit:            unit.Name,
		Status:          UnitSuccess,
		TotalStatements: len(unit.Statements),
	}

	savepoint := fmt.Sprintf("unit_%d", idx)
	if _, err := conn.ExecContext(ctx, "SAVEPOINT "+savepoint); err != nil {
		return result.fail(started, errors.Wrapf(err, "failed to open savepoint for unit %s", unit.Name))
	}

	for n, stmt := range unit.Statements {
		if err := e.executeStatement(ctx, conn, stmt, result); err != nil {
			err = errors.Wrapf(err, "statement %d of unit %s failed", n+1, unit.Name)
			if _, rbErr := conn.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+savepoint); rbErr != nil {
				err = errors.Wrapf(rbErr, "failed to roll back unit %s after: %v", unit.Name, err)
			}
			return result.fail(started, err)
		}
		result.StatementsApplied++
	}

	if e.cfg.AfterUnit != nil {
		if err := e.cfg.AfterUnit(ctx, unit, result); err != nil {
			if _, rbErr := conn.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+savepoint); rbErr != nil {
				err = errors.Wrapf(rbErr, "failed to roll back unit %s after: %v", unit.Name, err)
			}
			return result.fail(started, err)
		}
	}

	if _, err := conn.ExecContext(ctx, "RELEASE SAVEPOINT "+savepoint); err != nil {
		return result.fail(started, errors.Wrapf(err, "failed to release savepoint for unit %s", unit.Name))
	}

	result.Duration = time.Since(started)

	return result
}

// executeStatement runs one statement. With copy format enabled the batch
// builder picks the load path: batches above the row threshold stream through
// the COPY protocol, everything else executes as written.
func (e *SequentialExecutor) executeStatement(ctx context.Context, conn Conn, stmt string, result *UnitResult) error {
	if e.cfg.CopyFormat {
		if batch := e.batch.Build(copyconv.Convert(stmt)); batch.Format == copyconv.FormatCopy {
			n, err := postgres.CopyLoad(ctx, conn, batch.Payload)
			if err != nil {
				return err
			}
			result.RowsCopied += n
			return nil
		}
	}

	_, err := conn.ExecContext(ctx, stmt)

	return err
}

func (r *UnitResult) fail(started time.Time, err error) *UnitResult {
	r.Status = UnitFailed
	r.Err = err
	r.Error = err.Error()
	r.Duration = time.Since(started)

	return r
}
