package actions

import "termcore/pkg/domain"

// ApproveConcept marks a reviewed concept and its atoms and outbound
// relationships ready for publication.
type ApproveConcept struct {
	conceptID string
}

// NewApproveConcept builds the action.
func NewApproveConcept(conceptID string) *ApproveConcept {
	return &ApproveConcept{conceptID: conceptID}
}

// Name implements Action.
func (a *ApproveConcept) Name() string { return "APPROVE" }

// ComponentIDs implements Action.
func (a *ApproveConcept) ComponentIDs() (string, string) { return a.conceptID, "" }

// CheckPreconditions verifies the concept exists.
func (a *ApproveConcept) CheckPreconditions(view domain.TransactionView) error {
	if _, ok := view.FindConcept(a.conceptID); !ok {
		return domain.NotFoundError{Entity: domain.EntityConcept, ID: a.conceptID}
	}
	return nil
}

// Compute flips the concept, its atoms, its semantic types, and its
// relationships to READY_FOR_PUBLICATION.
func (a *ApproveConcept) Compute(tx domain.Transaction) error {
	concept, _ := tx.FindConcept(a.conceptID)
	concept.Status = domain.StatusReadyForPublication
	for i := range concept.SemanticTypes {
		concept.SemanticTypes[i].Status = domain.StatusReadyForPublication
	}
	if _, err := tx.PutConcept(concept); err != nil {
		return err
	}
	for _, atomID := range concept.AtomIDs {
		atom, ok := tx.FindAtom(atomID)
		if !ok {
			continue
		}
		if atom.Status == domain.StatusNeedsReview || atom.Status == domain.StatusNew {
			atom.Status = domain.StatusReadyForPublication
			if _, err := tx.PutAtom(atom); err != nil {
				return err
			}
		}
	}
	for _, rel := range tx.ListRelationships() {
		if rel.FromID != a.conceptID && rel.ToID != a.conceptID {
			continue
		}
		if rel.Status == domain.StatusNeedsReview || rel.Status == domain.StatusNew {
			rel.Status = domain.StatusReadyForPublication
			if _, err := tx.PutRelationship(rel); err != nil {
				return err
			}
		}
	}
	return nil
}

var _ Action = (*ApproveConcept)(nil)
