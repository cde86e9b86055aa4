package workflow

import (
	"errors"
	"fmt"
	"time"

	"github.com/yairfalse/ferry/internal/inventory"
	"github.com/yairfalse/ferry/internal/manager"
)

// Step names.
const (
	StepEnsureBucket = "ensure-bucket"
	StepUpload       = "upload"
	StepNotify       = "notify"
	StepManager      = "manager"
	StepReport       = "report"
)

// Severity says what a step failure does to the run.
type Severity int

const (
	// Fatal failures abort the run.
	Fatal Severity = iota
	// Recoverable failures are logged, the run continues, and it exits non-zero.
	Recoverable
	// BestEffort failures are logged and otherwise ignored.
	BestEffort
)

func (s Severity) String() string {
	switch s {
	case Fatal:
		return "fatal"
	case Recoverable:
		return "recoverable"
	case BestEffort:
		return "best_effort"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// StepResult is the outcome of one step.
type StepResult struct {
	Name     string
	Severity Severity
	Duration time.Duration
	Err      error
}

// Failed reports whether the step failed in a way that affects the exit status.
func (s StepResult) Failed() bool {
	return s.Err != nil && s.Severity != BestEffort
}

// Result summarizes a run.
type Result struct {
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	Steps []StepResult

	// Aborted is set when a fatal step failed and later steps were skipped.
	Aborted bool

	MessageID string
	Manager   *manager.Result
	Report    *inventory.Report
}

// Step returns the result of the named step, if it ran.
func (r *Result) Step(name string) (StepResult, bool) {
	for _, s := range r.Steps {
		if s.Name == name {
			return s, true
		}
	}
	return StepResult{}, false
}

// Failed reports whether any fatal or recoverable step failed.
func (r *Result) Failed() bool {
	for _, s := range r.Steps {
		if s.Failed() {
			return true
		}
	}
	return false
}

// Err joins the errors of all failed fatal and recoverable steps. Nil when the run succeeded.
func (r *Result) Err() error {
	var errs []error
	for _, s := range r.Steps {
		if s.Failed() {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, s.Err))
		}
	}
	return errors.Join(errs...)
}
