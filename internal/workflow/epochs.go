package workflow

import (
	"context"
	"fmt"

	"termcore/pkg/domain"
)

// CreateEpoch adds a new editing epoch. When active is true, any previously
// active epoch of the project is deactivated in the same transaction, so the
// single-active-epoch invariant holds at every commit.
func (e *Engine) CreateEpoch(ctx context.Context, projectID, name string, active bool) (domain.WorkflowEpoch, error) {
	if name == "" {
		return domain.WorkflowEpoch{}, domain.Validationf("epoch name is required")
	}
	var epoch domain.WorkflowEpoch
	_, err := e.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, err := findProject(tx, projectID); err != nil {
			return err
		}
		for _, existing := range tx.ListWorkflowEpochs() {
			if existing.ProjectID != projectID {
				continue
			}
			if existing.Name == name {
				return domain.Validationf("epoch %s already exists", name)
			}
			if active && existing.Active {
				existing.Active = false
				if _, err := tx.PutWorkflowEpoch(existing); err != nil {
					return err
				}
			}
		}
		stored, err := tx.PutWorkflowEpoch(domain.WorkflowEpoch{
			ProjectID: projectID,
			Name:      name,
			Active:    active,
		})
		if err != nil {
			return err
		}
		epoch = stored
		return nil
	})
	if err != nil {
		return domain.WorkflowEpoch{}, fmt.Errorf("create epoch %s: %w", name, err)
	}
	return epoch, nil
}

// ActivateEpoch makes the named epoch the active one for its project,
// deactivating the previous active epoch in the same transaction.
func (e *Engine) ActivateEpoch(ctx context.Context, projectID, name string) (domain.WorkflowEpoch, error) {
	var epoch domain.WorkflowEpoch
	_, err := e.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var target *domain.WorkflowEpoch
		for _, existing := range tx.ListWorkflowEpochs() {
			if existing.ProjectID != projectID {
				continue
			}
			if existing.Name == name {
				found := existing
				target = &found
				continue
			}
			if existing.Active {
				existing.Active = false
				if _, err := tx.PutWorkflowEpoch(existing); err != nil {
					return err
				}
			}
		}
		if target == nil {
			return domain.NotFoundError{Entity: domain.EntityWorkflowEpoch, ID: name}
		}
		target.Active = true
		stored, err := tx.PutWorkflowEpoch(*target)
		if err != nil {
			return err
		}
		epoch = stored
		return nil
	})
	if err != nil {
		return domain.WorkflowEpoch{}, fmt.Errorf("activate epoch %s: %w", name, err)
	}
	return epoch, nil
}

// ActiveEpoch returns the project's active epoch.
func (e *Engine) ActiveEpoch(ctx context.Context, projectID string) (domain.WorkflowEpoch, error) {
	var epoch domain.WorkflowEpoch
	found := false
	err := e.store.View(ctx, func(v domain.TransactionView) error {
		epoch, found = activeEpoch(v, projectID)
		return nil
	})
	if err != nil {
		return domain.WorkflowEpoch{}, err
	}
	if !found {
		return domain.WorkflowEpoch{}, domain.NotFoundError{Entity: domain.EntityWorkflowEpoch, ID: projectID}
	}
	return epoch, nil
}

func activeEpoch(view domain.TransactionView, projectID string) (domain.WorkflowEpoch, bool) {
	for _, epoch := range view.ListWorkflowEpochs() {
		if epoch.ProjectID == projectID && epoch.Active {
			return epoch, true
		}
	}
	return domain.WorkflowEpoch{}, false
}
