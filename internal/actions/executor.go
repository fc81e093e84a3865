// Package actions implements the molecular action framework: immutable
// editorial commands executed in two phases (precondition check, then
// compute) inside a single store transaction, with a persisted audit trail
// that supports undo and redo.
package actions

import (
	"context"
	"fmt"

	"termcore/pkg/domain"
)

// Request carries the audit identity shared by every molecular action.
type Request struct {
	ProjectID  string
	ActivityID string
	WorkID     string
	By         string
}

// Action is one molecular editorial operation. CheckPreconditions must not
// mutate; Compute applies the content changes. A failure of either phase
// discards the whole transaction, so stored state is never partially
// modified.
type Action interface {
	Name() string
	// ComponentIDs reports the primary and (possibly empty) secondary
	// component the action operated on. Valid after Compute.
	ComponentIDs() (string, string)
	CheckPreconditions(view domain.TransactionView) error
	Compute(tx domain.Transaction) error
}

// contentEntities are the entity types whose changes become atomic actions.
var contentEntities = map[domain.EntityType]bool{
	domain.EntityConcept:      true,
	domain.EntityAtom:         true,
	domain.EntityRelationship: true,
	domain.EntityCode:         true,
	domain.EntityDescriptor:   true,
	domain.EntityAttribute:    true,
}

// Executor runs molecular actions against one content store.
type Executor struct {
	store domain.Store
}

// NewExecutor builds an Executor.
func NewExecutor(store domain.Store) *Executor {
	return &Executor{store: store}
}

// Execute runs the action inside one transaction and records a
// MolecularAction with before/after snapshots of every content change plus
// two audit log entries. The record itself is part of the same transaction.
func (e *Executor) Execute(ctx context.Context, req Request, action Action) (domain.MolecularAction, error) {
	var molecular domain.MolecularAction
	_, err := e.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, err := findProject(tx, req.ProjectID); err != nil {
			return err
		}
		if err := action.CheckPreconditions(tx); err != nil {
			return err
		}
		if err := action.Compute(tx); err != nil {
			return err
		}

		var atomics []domain.AtomicAction
		for i, change := range tx.Changes() {
			if !contentEntities[change.Entity] {
				continue
			}
			atomics = append(atomics, domain.AtomicAction{
				ID:       fmt.Sprintf("%d", i+1),
				Entity:   change.Entity,
				Action:   change.Action,
				ObjectID: change.ObjectID,
				Before:   change.Before,
				After:    change.After,
			})
		}

		primary, secondary := action.ComponentIDs()
		stored, err := tx.PutMolecularAction(domain.MolecularAction{
			ProjectID:      req.ProjectID,
			Name:           action.Name(),
			ComponentID:    primary,
			ComponentID2:   secondary,
			ActivityID:     req.ActivityID,
			WorkID:         req.WorkID,
			LastModifiedBy: req.By,
			AtomicActions:  atomics,
		})
		if err != nil {
			return err
		}
		molecular = stored

		if err := logAction(tx, req, primary, fmt.Sprintf("%s %s", action.Name(), primary)); err != nil {
			return err
		}
		if secondary != "" {
			if err := logAction(tx, req, secondary, fmt.Sprintf("%s %s", action.Name(), secondary)); err != nil {
				return err
			}
		} else {
			if err := logAction(tx, req, primary,
				fmt.Sprintf("%s complete, %d atomic actions", action.Name(), len(atomics))); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		execErr := fmt.Errorf("execute %s: %w", action.Name(), err)
		if logErr := e.logFailure(ctx, req, action.Name(), err); logErr != nil {
			return domain.MolecularAction{}, fmt.Errorf("%w (log failure: %v)", execErr, logErr)
		}
		return domain.MolecularAction{}, execErr
	}
	return molecular, nil
}

// logFailure records the audit entry for a failed action. The execution
// transaction was already discarded, so the entry gets its own transaction,
// with cancellation stripped so an aborted request still leaves a trace.
func (e *Executor) logFailure(ctx context.Context, req Request, name string, cause error) error {
	_, err := e.store.RunInTransaction(context.WithoutCancel(ctx), func(tx domain.Transaction) error {
		return logAction(tx, req, "", fmt.Sprintf("%s failed: %v", name, cause))
	})
	return err
}

func logAction(tx domain.Transaction, req Request, objectID, message string) error {
	_, err := tx.AppendLogEntry(domain.LogEntry{
		ProjectID:      req.ProjectID,
		ObjectID:       objectID,
		ActivityID:     req.ActivityID,
		WorkID:         req.WorkID,
		LastModifiedBy: req.By,
		Message:        message,
	})
	if err != nil {
		return fmt.Errorf("append log entry: %w", err)
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
