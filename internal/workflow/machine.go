package workflow

import (
	"context"
	"fmt"

	"termcore/pkg/domain"
)

// ActionRequest describes one workflow action against a worklist.
type ActionRequest struct {
	ProjectID  string
	WorklistID string
	Action     domain.WorkflowAction
	Requester  string
	Role       domain.UserRole
}

type transitionKey struct {
	action domain.WorkflowAction
	from   domain.WorklistStatus
}

type transition struct {
	to        domain.WorklistStatus
	minRole   domain.UserRole
	ownerOnly bool
	mutate    func(*domain.Worklist, ActionRequest)
}

// transitions is the full (action, state) table. A pair absent from the table
// is an illegal transition and leaves the worklist untouched.
var transitions = map[transitionKey]transition{
	{domain.WorkflowAssign, domain.WorklistNew}: {
		to:      domain.WorklistAssigned,
		minRole: domain.RoleAuthor,
		mutate: func(wl *domain.Worklist, req ActionRequest) {
			wl.Owner = req.Requester
			wl.OwnerRole = req.Role
		},
	},
	{domain.WorkflowSave, domain.WorklistAssigned}: {
		to:        domain.WorklistAssigned,
		minRole:   domain.RoleAuthor,
		ownerOnly: true,
	},
	{domain.WorkflowFinish, domain.WorklistAssigned}: {
		to:        domain.WorklistReview,
		minRole:   domain.RoleAuthor,
		ownerOnly: true,
	},
	{domain.WorkflowUnassign, domain.WorklistAssigned}: {
		to:        domain.WorklistNew,
		minRole:   domain.RoleAuthor,
		ownerOnly: true,
		mutate: func(wl *domain.Worklist, req ActionRequest) {
			wl.Owner = ""
			wl.OwnerRole = ""
		},
	},
	{domain.WorkflowSave, domain.WorklistReview}: {
		to:      domain.WorklistReview,
		minRole: domain.RoleReviewer,
	},
	{domain.WorkflowFinish, domain.WorklistReview}: {
		to:      domain.WorklistReadyForPublication,
		minRole: domain.RoleReviewer,
	},
	{domain.WorkflowUnassign, domain.WorklistReview}: {
		to:      domain.WorklistRevised,
		minRole: domain.RoleReviewer,
	},
	{domain.WorkflowSave, domain.WorklistRevised}: {
		to:        domain.WorklistRevised,
		minRole:   domain.RoleAuthor,
		ownerOnly: true,
	},
	{domain.WorkflowFinish, domain.WorklistRevised}: {
		to:        domain.WorklistReview,
		minRole:   domain.RoleAuthor,
		ownerOnly: true,
	},
	{domain.WorkflowPublish, domain.WorklistReadyForPublication}: {
		to:      domain.WorklistPublished,
		minRole: domain.RoleReviewer,
	},
	{domain.WorkflowFinish, domain.WorklistPublished}: {
		to:      domain.WorklistFinished,
		minRole: domain.RoleAdministrator,
	},
	{domain.WorkflowReopen, domain.WorklistFinished}: {
		to:      domain.WorklistReview,
		minRole: domain.RoleAdministrator,
	},
}

// PerformWorkflowAction runs one action through the state machine in a single
// store transaction. Illegal (action, state) pairs and insufficient roles are
// rejected with a validation error and no state change. PUBLISH additionally
// fans the published status out to every component of every tracking record
// on the worklist; the fan-out is all-or-nothing with the status change.
func (e *Engine) PerformWorkflowAction(ctx context.Context, req ActionRequest) (domain.Worklist, error) {
	var result domain.Worklist
	_, err := e.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		wl, ok := tx.FindWorklist(req.WorklistID)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityWorklist, ID: req.WorklistID}
		}
		if wl.ProjectID != req.ProjectID {
			return domain.Validationf("worklist %s does not belong to project %s", wl.Name, req.ProjectID)
		}
		spec, ok := transitions[transitionKey{action: req.Action, from: wl.Status}]
		if !ok {
			return domain.Validationf("action %s is not allowed on worklist %s in state %s",
				req.Action, wl.Name, wl.Status)
		}
		minRole := spec.minRole
		if req.Action == domain.WorkflowAssign {
			if binRole, ok := binAssignRole(tx, wl); ok && binRole.AtLeast(minRole) {
				minRole = binRole
			}
		}
		if !req.Role.AtLeast(minRole) {
			return domain.Validationf("action %s on worklist %s requires role %s or above",
				req.Action, wl.Name, minRole)
		}
		if spec.ownerOnly && req.Requester != wl.Owner && !req.Role.AtLeast(domain.RoleAdministrator) {
			return domain.Validationf("action %s on worklist %s is restricted to its owner %s",
				req.Action, wl.Name, wl.Owner)
		}

		wl.Status = spec.to
		if spec.mutate != nil {
			spec.mutate(&wl, req)
		}
		if req.Action == domain.WorkflowPublish {
			if err := publishComponents(tx, wl); err != nil {
				return err
			}
		}
		stored, err := tx.PutWorklist(wl)
		if err != nil {
			return err
		}
		result = stored
		return appendAudit(tx, req.ProjectID, wl.ID, string(req.Action), req.Requester,
			fmt.Sprintf("%s worklist %s: %s", req.Action, wl.Name, wl.Status))
	})
	if err != nil {
		return domain.Worklist{}, fmt.Errorf("perform %s on worklist %s: %w", req.Action, req.WorklistID, err)
	}
	return result, nil
}

// binAssignRole looks up the minimum assignment role configured on the
// worklist's bin. The second return is false when the bin is gone or carries
// no minimum.
func binAssignRole(tx domain.Transaction, wl domain.Worklist) (domain.UserRole, bool) {
	for _, bin := range tx.ListWorkflowBins() {
		if bin.ProjectID == wl.ProjectID && bin.Name == wl.WorkflowBinName {
			return bin.MinAssignRole, bin.MinAssignRole.Known()
		}
	}
	return "", false
}

// publishComponents marks every component referenced by the worklist's
// tracking records as published. Any missing component aborts the whole
// transaction so publication is never partial.
func publishComponents(tx domain.Transaction, wl domain.Worklist) error {
	for _, record := range tx.ListTrackingRecords() {
		if record.WorklistName != wl.Name {
			continue
		}
		for _, conceptID := range record.OrigConceptIDs {
			concept, ok := tx.FindConcept(conceptID)
			if !ok {
				return domain.Validationf("cannot publish worklist %s: concept %s missing", wl.Name, conceptID)
			}
			concept.Status = domain.StatusPublished
			concept.Published = true
			if _, err := tx.PutConcept(concept); err != nil {
				return err
			}
		}
		for _, componentID := range record.ComponentIDs {
			if err := publishComponent(tx, wl, componentID); err != nil {
				return err
			}
		}
	}
	return nil
}

func publishComponent(tx domain.Transaction, wl domain.Worklist, componentID string) error {
	if atom, ok := tx.FindAtom(componentID); ok {
		atom.Status = domain.StatusPublished
		atom.Published = true
		_, err := tx.PutAtom(atom)
		return err
	}
	if rel, ok := tx.FindRelationship(componentID); ok {
		rel.Status = domain.StatusPublished
		rel.Published = true
		_, err := tx.PutRelationship(rel)
		return err
	}
	if concept, ok := tx.FindConcept(componentID); ok {
		concept.Status = domain.StatusPublished
		concept.Published = true
		_, err := tx.PutConcept(concept)
		return err
	}
	return domain.Validationf("cannot publish worklist %s: component %s missing", wl.Name, componentID)
}
