package actions

import "termcore/pkg/domain"

// MergeConcepts folds one concept into another: atoms and semantic types
// move, relationships are re-pointed, and the source concept is deleted.
type MergeConcepts struct {
	fromID       string
	intoID       string
	changeStatus bool
}

// NewMergeConcepts builds the action.
func NewMergeConcepts(fromID, intoID string, changeStatus bool) *MergeConcepts {
	return &MergeConcepts{fromID: fromID, intoID: intoID, changeStatus: changeStatus}
}

// Name implements Action.
func (a *MergeConcepts) Name() string { return "MERGE" }

// ComponentIDs implements Action.
func (a *MergeConcepts) ComponentIDs() (string, string) { return a.intoID, a.fromID }

// CheckPreconditions verifies both concepts exist and differ.
func (a *MergeConcepts) CheckPreconditions(view domain.TransactionView) error {
	if a.fromID == a.intoID {
		return domain.Validationf("cannot merge concept %s into itself", a.fromID)
	}
	if _, ok := view.FindConcept(a.fromID); !ok {
		return domain.NotFoundError{Entity: domain.EntityConcept, ID: a.fromID}
	}
	if _, ok := view.FindConcept(a.intoID); !ok {
		return domain.NotFoundError{Entity: domain.EntityConcept, ID: a.intoID}
	}
	return nil
}

// Compute moves everything across and deletes the source.
func (a *MergeConcepts) Compute(tx domain.Transaction) error {
	from, _ := tx.FindConcept(a.fromID)
	into, _ := tx.FindConcept(a.intoID)

	for _, atomID := range from.AtomIDs {
		atom, ok := tx.FindAtom(atomID)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityAtom, ID: atomID}
		}
		atom.ConceptID = into.ID
		if a.changeStatus {
			atom.Status = domain.StatusNeedsReview
		}
		if _, err := tx.PutAtom(atom); err != nil {
			return err
		}
		into.AtomIDs = append(into.AtomIDs, atomID)
	}

	seen := map[string]bool{}
	for _, sty := range into.SemanticTypes {
		seen[sty.Value] = true
	}
	for _, sty := range from.SemanticTypes {
		if !seen[sty.Value] {
			into.SemanticTypes = append(into.SemanticTypes, sty)
			seen[sty.Value] = true
		}
	}
	if a.changeStatus {
		into.Status = domain.StatusNeedsReview
	}
	if _, err := tx.PutConcept(into); err != nil {
		return err
	}

	for _, rel := range tx.ListRelationships() {
		touchesFrom := rel.FromID == a.fromID || rel.ToID == a.fromID
		if !touchesFrom {
			continue
		}
		// Relationships between the two merging concepts collapse.
		if (rel.FromID == a.fromID && rel.ToID == a.intoID) ||
			(rel.FromID == a.intoID && rel.ToID == a.fromID) {
			if err := tx.DeleteRelationship(rel.ID); err != nil {
				return err
			}
			continue
		}
		if rel.FromID == a.fromID {
			rel.FromID = a.intoID
		}
		if rel.ToID == a.fromID {
			rel.ToID = a.intoID
		}
		if a.changeStatus {
			rel.Status = domain.StatusNeedsReview
		}
		if _, err := tx.PutRelationship(rel); err != nil {
			return err
		}
	}
	return tx.DeleteConcept(a.fromID)
}

var _ Action = (*MergeConcepts)(nil)
