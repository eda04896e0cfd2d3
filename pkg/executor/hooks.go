package executor

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type (
	// RunContext identifies one executor run across hook invocations.
	RunContext struct {
		// RunID is a random UUID unique to this run.
		RunID string

		// StartedAt is when the run began.
		StartedAt time.Time
	}

	// Hooks are optional callbacks around unit execution, used for logging
	// and progress reporting. They run synchronously on the executing
	// goroutine and must not touch the run's transaction. A hook error is
	// swallowed unless PropagateHookErrors is set, in which case it fails
	// the unit it fired for.
	Hooks struct {
		// PreUnit fires before a unit's SAVEPOINT is opened.
		PreUnit func(ctx context.Context, run RunContext, unit string) error

		// PostUnit fires after a unit completes successfully.
		PostUnit func(ctx context.Context, run RunContext, result *UnitResult) error

		// OnError fires after a unit fails and its SAVEPOINT has been rolled
		// back, regardless of the continue-on-error setting. Its own error
		// is always swallowed.
		OnError func(ctx context.Context, run RunContext, unit string, err error)

		// PropagateHookErrors turns PreUnit/PostUnit errors into unit
		// failures instead of ignoring them.
		PropagateHookErrors bool
	}
)

// NewRunContext returns a RunContext with a fresh run ID.
func NewRunContext() RunContext {
	return RunContext{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}
}

func (h Hooks) preUnit(ctx context.Context, run RunContext, unit string) error {
	if h.PreUnit == nil {
		return nil
	}
	if err := h.PreUnit(ctx, run, unit); err != nil && h.PropagateHookErrors {
		return errors.Wrapf(err, "pre-execute hook failed for unit %s", unit)
	}

	return nil
}

func (h Hooks) postUnit(ctx context.Context, run RunContext, result *UnitResult) error {
	if h.PostUnit == nil {
		return nil
	}
	if err := h.PostUnit(ctx, run, result); err != nil && h.PropagateHookErrors {
		return errors.Wrapf(err, "post-execute hook failed for unit %s", result.Unit)
	}

	return nil
}

func (h Hooks) onError(ctx context.Context, run RunContext, unit string, err error) {
	if h.OnError != nil {
		h.OnError(ctx, run, unit, err)
	}
}
