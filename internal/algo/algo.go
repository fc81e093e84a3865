// Package algo implements long-running batch algorithms: source file loaders
// and maintenance passes. Algorithms run in two phases like molecular actions
// but commit in batches, poll for cancellation, and tolerate bad input lines
// by skipping them with a warning.
package algo

import (
	"context"
	"fmt"

	"termcore/pkg/domain"
)

// Summary reports what a completed (or cancelled) algorithm run did.
type Summary struct {
	Added    int
	Updated  int
	Skipped  int
	Warnings []string
}

func (s *Summary) warnf(format string, args ...any) {
	s.Warnings = append(s.Warnings, fmt.Sprintf(format, args...))
}

// Algorithm is one batch job. CheckPreconditions validates the run can start;
// Compute does the work, returning a summary even on cancellation so partial
// progress is reported.
type Algorithm interface {
	Name() string
	CheckPreconditions(ctx context.Context) error
	Compute(ctx context.Context) (Summary, error)
}

// cancelPollInterval is how many input steps are processed between
// cooperative cancellation checks.
const cancelPollInterval = 100

func checkCancel(ctx context.Context, step int) error {
	if step%cancelPollInterval != 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCancelled, err)
	}
	return nil
}

// Runner executes algorithms and writes the mandatory audit summary.
type Runner struct {
	store domain.Store
}

// NewRunner builds a Runner.
func NewRunner(store domain.Store) *Runner {
	return &Runner{store: store}
}

// Run checks preconditions, computes, and audit-logs the summary. The
// summary entry is written even when the run was cancelled partway, since the
// batches committed before the cancellation point are kept.
func (r *Runner) Run(ctx context.Context, projectID, by string, alg Algorithm) (Summary, error) {
	if err := alg.CheckPreconditions(ctx); err != nil {
		return Summary{}, fmt.Errorf("preconditions for %s: %w", alg.Name(), err)
	}
	summary, runErr := alg.Compute(ctx)

	// Log with a background-ish context: the run context may already be
	// cancelled, but the audit trail is mandatory.
	logCtx := context.WithoutCancel(ctx)
	if _, err := r.store.RunInTransaction(logCtx, func(tx domain.Transaction) error {
		outcome := "completed"
		if runErr != nil {
			outcome = fmt.Sprintf("aborted: %v", runErr)
		}
		_, err := tx.AppendLogEntry(domain.LogEntry{
			ProjectID:      projectID,
			ActivityID:     alg.Name(),
			LastModifiedBy: by,
			Message: fmt.Sprintf("%s %s: %d added, %d updated, %d skipped, %d warnings",
				alg.Name(), outcome, summary.Added, summary.Updated, summary.Skipped, len(summary.Warnings)),
		})
		return err
	}); err != nil {
		return summary, fmt.Errorf("log %s summary: %w", alg.Name(), err)
	}
	return summary, runErr
}
