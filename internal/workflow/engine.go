// Package workflow implements the classification engine (bins), worklist and
// checklist generation, the workflow action state machine, and editing
// epochs. All state lives in the content store; every operation runs inside
// a single store transaction unless noted otherwise.
package workflow

import (
	"context"
	"fmt"
	"time"

	"termcore/pkg/domain"
)

// Engine coordinates workflow operations over one content store.
type Engine struct {
	store domain.Store
	clock func() time.Time
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock overrides the timestamp source.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

// NewEngine builds an Engine over the store.
func NewEngine(store domain.Store, opts ...Option) *Engine {
	e := &Engine{
		store: store,
		clock: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// cancelPollInterval is how many clusters are processed between cooperative
// cancellation checks during regeneration and list generation.
const cancelPollInterval = 100

func checkCancel(ctx context.Context, processed int) error {
	if processed%cancelPollInterval != 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCancelled, err)
	}
	return nil
}

func findProject(view domain.TransactionView, projectID string) (domain.Project, error) {
	project, ok := view.FindProject(projectID)
	if !ok {
		return domain.Project{}, domain.NotFoundError{Entity: domain.EntityProject, ID: projectID}
	}
	return project, nil
}

func appendAudit(tx domain.Transaction, projectID, objectID, activity, by, message string) error {
	_, err := tx.AppendLogEntry(domain.LogEntry{
		ProjectID:      projectID,
		ObjectID:       objectID,
		ActivityID:     activity,
		LastModifiedBy: by,
		Message:        message,
	})
	if err != nil {
		return fmt.Errorf("append log entry: %w", err)
	}
	return nil
}
