package actions

import (
	"termcore/pkg/domain"
)

// SplitConcept moves a subset of a concept's atoms into a newly created
// concept, optionally copying semantic types and relationships, and links the
// two concepts with a bidirectional relationship of the given type.
type SplitConcept struct {
	conceptID         string
	atomIDs           []string
	relationshipType  string
	copySemanticTypes bool
	copyRelationships bool
	changeStatus      bool

	newConceptID string
}

// NewSplitConcept builds the action. relationshipType names the relationship
// created from the original concept to the new one; its configured inverse is
// created in the opposite direction.
func NewSplitConcept(conceptID string, atomIDs []string, relationshipType string, copySemanticTypes, copyRelationships, changeStatus bool) *SplitConcept {
	return &SplitConcept{
		conceptID:         conceptID,
		atomIDs:           append([]string(nil), atomIDs...),
		relationshipType:  relationshipType,
		copySemanticTypes: copySemanticTypes,
		copyRelationships: copyRelationships,
		changeStatus:      changeStatus,
	}
}

// Name implements Action.
func (a *SplitConcept) Name() string { return "SPLIT" }

// ComponentIDs reports the original and the newly created concept.
func (a *SplitConcept) ComponentIDs() (string, string) { return a.conceptID, a.newConceptID }

// CheckPreconditions verifies the atoms to move all belong to the concept,
// at least one atom stays behind, and the between-relationship type exists.
func (a *SplitConcept) CheckPreconditions(view domain.TransactionView) error {
	concept, ok := view.FindConcept(a.conceptID)
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityConcept, ID: a.conceptID}
	}
	if len(a.atomIDs) == 0 {
		return domain.Validationf("cannot split concept %s without atoms to move", a.conceptID)
	}
	members := map[string]bool{}
	for _, id := range concept.AtomIDs {
		members[id] = true
	}
	for _, id := range a.atomIDs {
		if !members[id] {
			return domain.Validationf("atom %s is not part of concept %s", id, a.conceptID)
		}
	}
	if len(a.atomIDs) >= len(concept.AtomIDs) {
		return domain.Validationf("cannot move every atom out of concept %s", a.conceptID)
	}
	relType, ok := view.FindRelationshipType(a.relationshipType, concept.Terminology, concept.Version)
	if !ok {
		return domain.Validationf("cannot split with invalid relationship type - %s", a.relationshipType)
	}
	if _, ok := view.FindRelationshipType(relType.Inverse, concept.Terminology, concept.Version); !ok {
		return domain.Validationf("relationship type %s has no configured inverse", a.relationshipType)
	}
	return nil
}

// Compute creates the new concept, moves the atoms, copies what was asked
// for, and links the two concepts in both directions.
func (a *SplitConcept) Compute(tx domain.Transaction) error {
	origin, _ := tx.FindConcept(a.conceptID)
	moving := map[string]bool{}
	for _, id := range a.atomIDs {
		moving[id] = true
	}

	firstAtom, _ := tx.FindAtom(a.atomIDs[0])
	created := domain.Concept{
		Name:        firstAtom.Name,
		Terminology: origin.Terminology,
		Version:     origin.Version,
		AtomIDs:     append([]string(nil), a.atomIDs...),
		Status:      origin.Status,
		Publishable: origin.Publishable,
	}
	if a.copySemanticTypes {
		created.SemanticTypes = append([]domain.SemanticTypeComponent(nil), origin.SemanticTypes...)
	}
	if a.changeStatus {
		created.Status = domain.StatusNeedsReview
	}
	stored, err := tx.PutConcept(created)
	if err != nil {
		return err
	}
	a.newConceptID = stored.ID

	kept := origin.AtomIDs[:0:0]
	for _, id := range origin.AtomIDs {
		if !moving[id] {
			kept = append(kept, id)
		}
	}
	origin.AtomIDs = kept
	if a.changeStatus {
		origin.Status = domain.StatusNeedsReview
	}
	if _, err := tx.PutConcept(origin); err != nil {
		return err
	}

	for _, id := range a.atomIDs {
		atom, ok := tx.FindAtom(id)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityAtom, ID: id}
		}
		atom.ConceptID = stored.ID
		if a.changeStatus {
			atom.Status = domain.StatusNeedsReview
		}
		if _, err := tx.PutAtom(atom); err != nil {
			return err
		}
	}

	if a.copyRelationships {
		if err := a.copyOriginRelationships(tx, origin, stored); err != nil {
			return err
		}
	}
	return a.linkConcepts(tx, origin, stored)
}

// copyOriginRelationships duplicates the origin's outbound relationships onto
// the new concept, with inverses.
func (a *SplitConcept) copyOriginRelationships(tx domain.Transaction, origin, created domain.Concept) error {
	for _, rel := range tx.ListRelationships() {
		if rel.FromID != origin.ID || rel.ToID == created.ID || !rel.AssertedDirection {
			continue
		}
		relType, ok := tx.FindRelationshipType(rel.RelationshipType, rel.Terminology, rel.Version)
		if !ok {
			continue
		}
		copied := rel
		copied.ID = ""
		copied.FromID = created.ID
		if a.changeStatus {
			copied.Status = domain.StatusNeedsReview
		}
		storedCopy, err := tx.PutRelationship(copied)
		if err != nil {
			return err
		}
		inverse := storedCopy
		inverse.ID = ""
		inverse.FromID, inverse.ToID = storedCopy.ToID, storedCopy.FromID
		inverse.RelationshipType = relType.Inverse
		inverse.AssertedDirection = false
		if _, err := tx.PutRelationship(inverse); err != nil {
			return err
		}
	}
	return nil
}

// linkConcepts creates the between-relationship and its inverse.
func (a *SplitConcept) linkConcepts(tx domain.Transaction, origin, created domain.Concept) error {
	relType, _ := tx.FindRelationshipType(a.relationshipType, origin.Terminology, origin.Version)
	status := domain.StatusNew
	if a.changeStatus {
		status = domain.StatusNeedsReview
	}
	between := domain.ConceptRelationship{
		FromID:            origin.ID,
		ToID:              created.ID,
		RelationshipType:  a.relationshipType,
		Terminology:       origin.Terminology,
		Version:           origin.Version,
		AssertedDirection: true,
		Status:            status,
		Publishable:       origin.Publishable,
	}
	if _, err := tx.PutRelationship(between); err != nil {
		return err
	}
	inverse := between
	inverse.FromID, inverse.ToID = between.ToID, between.FromID
	inverse.RelationshipType = relType.Inverse
	inverse.AssertedDirection = false
	if _, err := tx.PutRelationship(inverse); err != nil {
		return err
	}
	return nil
}

var _ Action = (*SplitConcept)(nil)
