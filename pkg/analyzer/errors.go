package analyzer

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind categorizes engine failures so callers can distinguish recoverable
// per-statement outcomes from fatal per-run conditions without inspecting
// error strings.
type Kind string

const (
	// KindClassification marks an unparseable statement. Never fatal: the
	// statement classifies unsafe with a warning instead.
	KindClassification Kind = "classification"

	// KindAnalysis marks a catalog/metadata query failure. Recorded as a
	// report warning; analysis continues.
	KindAnalysis Kind = "analysis"

	// KindExecution marks a statement failing inside an execution unit.
	// Fatal for the run unless continue-on-error is set.
	KindExecution Kind = "execution"

	// KindConversion marks an INSERT that is structurally unconvertible to
	// COPY. A normal outcome, not a failure: callers fall back to the
	// original statement.
	KindConversion Kind = "conversion"

	// KindTrackingConflict marks a duplicate version or checksum drift.
	// Fatal before any statement executes, bypassable only by force mode.
	KindTrackingConflict Kind = "tracking_conflict"
)

// EngineError is a typed engine failure carrying its Kind. It is created
// with NewError and inspected with KindOf.
type EngineError struct {
	Kind  Kind
	Msg   string
	Cause error
}

func (e *EngineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Cause)
	}

	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *EngineError) Unwrap() error { return e.Cause }

// NewError creates a typed engine error with the given kind and message.
func NewError(kind Kind, cause error, format string, args ...any) *EngineError {
	return &EngineError{
		Kind:  kind,
		Msg:   fmt.Sprintf(format, args...),
		Cause: cause,
	}
}

// KindOf returns the Kind carried by err, or "" when err is not an engine
// error.
func KindOf(err error) Kind {
	var engineErr *EngineError
	if errors.As(err, &engineErr) {
		return engineErr.Kind
	}

	return ""
}

// IsFatal reports whether the error kind aborts a run by default.
// Classification, analysis, and conversion outcomes are recoverable;
// execution failures and tracking conflicts are not.
func IsFatal(err error) bool {
	switch KindOf(err) {
	case KindExecution, KindTrackingConflict:
		return true
	case KindClassification, KindAnalysis, KindConversion:
		return false
	}

	return err != nil
}
