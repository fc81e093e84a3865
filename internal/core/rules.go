package core

import (
	"context"
	"fmt"

	"termcore/pkg/domain"
)

// DefaultRules returns the engine evaluated at every commit.
func DefaultRules() *domain.RulesEngine {
	return domain.NewRulesEngine(
		relationshipSymmetryRule{},
		singleActiveEpochRule{},
		worklistLifecycleRule{},
	)
}

// relationshipSymmetryRule blocks commits that leave a relationship without
// its inverse counterpart. Only evaluated when the batch touches
// relationships.
type relationshipSymmetryRule struct{}

func (relationshipSymmetryRule) Name() string { return "relationship_symmetry" }

func (relationshipSymmetryRule) Evaluate(ctx context.Context, view domain.RuleView, changes []domain.Change) ([]domain.Violation, error) {
	touched := false
	for _, change := range changes {
		if change.Entity == domain.EntityRelationship {
			touched = true
			break
		}
	}
	if !touched {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rels := view.ListRelationships()
	index := map[string]bool{}
	for _, rel := range rels {
		index[rel.FromID+"\x00"+rel.ToID+"\x00"+rel.RelationshipType] = true
	}
	var viols []domain.Violation
	for _, rel := range rels {
		relType, ok := view.FindRelationshipType(rel.RelationshipType, rel.Terminology, rel.Version)
		if !ok || relType.Inverse == "" {
			continue
		}
		if !index[rel.ToID+"\x00"+rel.FromID+"\x00"+relType.Inverse] {
			viols = append(viols, domain.Violation{
				Rule:     "relationship_symmetry",
				Severity: domain.SeverityBlock,
				Message: fmt.Sprintf("relationship %s from %s to %s has no %s inverse",
					rel.RelationshipType, rel.FromID, rel.ToID, relType.Inverse),
				Entity:   domain.EntityRelationship,
				EntityID: rel.ID,
			})
		}
	}
	return viols, nil
}

// singleActiveEpochRule blocks commits that leave a project with more than
// one active epoch.
type singleActiveEpochRule struct{}

func (singleActiveEpochRule) Name() string { return "single_active_epoch" }

func (singleActiveEpochRule) Evaluate(ctx context.Context, view domain.RuleView, changes []domain.Change) ([]domain.Violation, error) {
	touched := false
	for _, change := range changes {
		if change.Entity == domain.EntityWorkflowEpoch {
			touched = true
			break
		}
	}
	if !touched {
		return nil, nil
	}
	active := map[string]string{}
	var viols []domain.Violation
	for _, epoch := range view.ListWorkflowEpochs() {
		if !epoch.Active {
			continue
		}
		if prior, ok := active[epoch.ProjectID]; ok {
			viols = append(viols, domain.Violation{
				Rule:     "single_active_epoch",
				Severity: domain.SeverityBlock,
				Message: fmt.Sprintf("project %s has active epochs %s and %s",
					epoch.ProjectID, prior, epoch.Name),
				Entity:   domain.EntityWorkflowEpoch,
				EntityID: epoch.ID,
			})
			continue
		}
		active[epoch.ProjectID] = epoch.Name
	}
	return viols, nil
}

// worklistLifecycleRule validates worklist status values on every worklist
// change and blocks mutations of worklists already in a terminal state.
type worklistLifecycleRule struct{}

func (worklistLifecycleRule) Name() string { return "worklist_lifecycle" }

var validWorklistStatuses = map[domain.WorklistStatus]bool{
	domain.WorklistNew:                 true,
	domain.WorklistAssigned:            true,
	domain.WorklistReview:              true,
	domain.WorklistRevised:             true,
	domain.WorklistReadyForPublication: true,
	domain.WorklistPublished:           true,
	domain.WorklistFinished:            true,
}

func (worklistLifecycleRule) Evaluate(ctx context.Context, view domain.RuleView, changes []domain.Change) ([]domain.Violation, error) {
	var viols []domain.Violation
	for _, change := range changes {
		if change.Entity != domain.EntityWorklist {
			continue
		}
		switch change.Action {
		case domain.ActionCreate, domain.ActionUpdate:
			after, err := domain.DecodePayload[domain.Worklist](change.After)
			if err != nil {
				return nil, fmt.Errorf("decode worklist change: %w", err)
			}
			if !validWorklistStatuses[after.Status] {
				viols = append(viols, domain.Violation{
					Rule:     "worklist_lifecycle",
					Severity: domain.SeverityBlock,
					Message:  fmt.Sprintf("worklist %s has unknown status %q", after.Name, after.Status),
					Entity:   domain.EntityWorklist,
					EntityID: after.ID,
				})
			}
			if change.Action != domain.ActionUpdate {
				continue
			}
			before, err := domain.DecodePayload[domain.Worklist](change.Before)
			if err != nil {
				return nil, fmt.Errorf("decode worklist change: %w", err)
			}
			if before.Status == domain.WorklistFinished && after.Status != domain.WorklistFinished &&
				after.Status != domain.WorklistReview {
				viols = append(viols, domain.Violation{
					Rule:     "worklist_lifecycle",
					Severity: domain.SeverityBlock,
					Message:  fmt.Sprintf("worklist %s cannot leave FINISHED for %s", before.Name, after.Status),
					Entity:   domain.EntityWorklist,
					EntityID: before.ID,
				})
			}
		}
	}
	return viols, nil
}
