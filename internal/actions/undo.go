package actions

import (
	"context"
	"fmt"

	"termcore/pkg/domain"
)

// Undo restores the before-state of every atomic action of a committed
// molecular action, in reverse order, inside one transaction, and marks the
// action undone.
func (e *Executor) Undo(ctx context.Context, req Request, actionID string) error {
	_, err := e.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		ma, ok := tx.FindMolecularAction(actionID)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityMolecularAction, ID: actionID}
		}
		if ma.Undone {
			return domain.Validationf("molecular action %s is already undone", actionID)
		}
		for i := len(ma.AtomicActions) - 1; i >= 0; i-- {
			atomic := ma.AtomicActions[i]
			var err error
			switch atomic.Action {
			case domain.ActionCreate:
				err = removeComponent(tx, atomic.Entity, atomic.ObjectID)
			case domain.ActionUpdate, domain.ActionDelete:
				err = restoreComponent(tx, atomic.Entity, atomic.Before)
			default:
				err = domain.Validationf("unknown atomic action %q", atomic.Action)
			}
			if err != nil {
				return fmt.Errorf("revert atomic action %s: %w", atomic.ID, err)
			}
		}
		ma.Undone = true
		if _, err := tx.PutMolecularAction(ma); err != nil {
			return err
		}
		return logAction(tx, req, ma.ComponentID, fmt.Sprintf("UNDO %s (%s)", ma.Name, ma.ID))
	})
	if err != nil {
		if logErr := e.logFailure(ctx, req, "UNDO", err); logErr != nil {
			return fmt.Errorf("undo molecular action %s: %w (log failure: %v)", actionID, err, logErr)
		}
		return fmt.Errorf("undo molecular action %s: %w", actionID, err)
	}
	return nil
}

// Redo re-applies the after-state of every atomic action of an undone
// molecular action, in original order, inside one transaction.
func (e *Executor) Redo(ctx context.Context, req Request, actionID string) error {
	_, err := e.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		ma, ok := tx.FindMolecularAction(actionID)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityMolecularAction, ID: actionID}
		}
		if !ma.Undone {
			return domain.Validationf("molecular action %s has not been undone", actionID)
		}
		for _, atomic := range ma.AtomicActions {
			var err error
			switch atomic.Action {
			case domain.ActionCreate, domain.ActionUpdate:
				err = restoreComponent(tx, atomic.Entity, atomic.After)
			case domain.ActionDelete:
				err = removeComponent(tx, atomic.Entity, atomic.ObjectID)
			default:
				err = domain.Validationf("unknown atomic action %q", atomic.Action)
			}
			if err != nil {
				return fmt.Errorf("reapply atomic action %s: %w", atomic.ID, err)
			}
		}
		ma.Undone = false
		if _, err := tx.PutMolecularAction(ma); err != nil {
			return err
		}
		return logAction(tx, req, ma.ComponentID, fmt.Sprintf("REDO %s (%s)", ma.Name, ma.ID))
	})
	if err != nil {
		if logErr := e.logFailure(ctx, req, "REDO", err); logErr != nil {
			return fmt.Errorf("redo molecular action %s: %w (log failure: %v)", actionID, err, logErr)
		}
		return fmt.Errorf("redo molecular action %s: %w", actionID, err)
	}
	return nil
}

// restoreComponent writes the snapshot back into the store.
func restoreComponent(tx domain.Transaction, entity domain.EntityType, payload domain.ChangePayload) error {
	switch entity {
	case domain.EntityConcept:
		rec, err := domain.DecodePayload[domain.Concept](payload)
		if err != nil {
			return err
		}
		_, err = tx.PutConcept(rec)
		return err
	case domain.EntityAtom:
		rec, err := domain.DecodePayload[domain.Atom](payload)
		if err != nil {
			return err
		}
		_, err = tx.PutAtom(rec)
		return err
	case domain.EntityRelationship:
		rec, err := domain.DecodePayload[domain.ConceptRelationship](payload)
		if err != nil {
			return err
		}
		_, err = tx.PutRelationship(rec)
		return err
	case domain.EntityCode:
		rec, err := domain.DecodePayload[domain.Code](payload)
		if err != nil {
			return err
		}
		_, err = tx.PutCode(rec)
		return err
	case domain.EntityDescriptor:
		rec, err := domain.DecodePayload[domain.Descriptor](payload)
		if err != nil {
			return err
		}
		_, err = tx.PutDescriptor(rec)
		return err
	case domain.EntityAttribute:
		rec, err := domain.DecodePayload[domain.Attribute](payload)
		if err != nil {
			return err
		}
		_, err = tx.PutAttribute(rec)
		return err
	default:
		return domain.Validationf("cannot restore entity type %q", entity)
	}
}

// removeComponent deletes the component created by an atomic action.
func removeComponent(tx domain.Transaction, entity domain.EntityType, id string) error {
	switch entity {
	case domain.EntityConcept:
		return tx.DeleteConcept(id)
	case domain.EntityAtom:
		return tx.DeleteAtom(id)
	case domain.EntityRelationship:
		return tx.DeleteRelationship(id)
	case domain.EntityCode:
		return tx.DeleteCode(id)
	case domain.EntityDescriptor:
		return tx.DeleteDescriptor(id)
	case domain.EntityAttribute:
		return tx.DeleteAttribute(id)
	default:
		return domain.Validationf("cannot remove entity type %q", entity)
	}
}
