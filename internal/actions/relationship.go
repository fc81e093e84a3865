package actions

import (
	"termcore/internal/identity"
	"termcore/pkg/domain"
)

// AddRelationship creates a concept relationship together with its inverse,
// keeping the relationship graph symmetric.
type AddRelationship struct {
	rel          domain.ConceptRelationship
	changeStatus bool

	ids   *identity.Handler
	cache *identity.Cache
}

// NewAddRelationship builds the action.
func NewAddRelationship(rel domain.ConceptRelationship, changeStatus bool) *AddRelationship {
	return &AddRelationship{
		rel:          rel,
		changeStatus: changeStatus,
		ids:          identity.NewHandler(),
		cache:        identity.NewCache(),
	}
}

// Name implements Action.
func (a *AddRelationship) Name() string { return "ADD_RELATIONSHIP" }

// ComponentIDs implements Action.
func (a *AddRelationship) ComponentIDs() (string, string) { return a.rel.FromID, a.rel.ToID }

// CheckPreconditions verifies both endpoint concepts exist, the relationship
// type and its inverse are configured, and no equivalent relationship exists.
func (a *AddRelationship) CheckPreconditions(view domain.TransactionView) error {
	if _, ok := view.FindConcept(a.rel.FromID); !ok {
		return domain.NotFoundError{Entity: domain.EntityConcept, ID: a.rel.FromID}
	}
	if _, ok := view.FindConcept(a.rel.ToID); !ok {
		return domain.NotFoundError{Entity: domain.EntityConcept, ID: a.rel.ToID}
	}
	if a.rel.FromID == a.rel.ToID {
		return domain.Validationf("cannot relate concept %s to itself", a.rel.FromID)
	}
	relType, ok := view.FindRelationshipType(a.rel.RelationshipType, a.rel.Terminology, a.rel.Version)
	if !ok {
		return domain.Validationf("cannot add relationship with invalid type - %s", a.rel.RelationshipType)
	}
	if _, ok := view.FindRelationshipType(relType.Inverse, a.rel.Terminology, a.rel.Version); !ok {
		return domain.Validationf("relationship type %s has no configured inverse", a.rel.RelationshipType)
	}
	for _, existing := range view.ListRelationships() {
		if existing.FromID == a.rel.FromID && existing.ToID == a.rel.ToID &&
			existing.RelationshipType == a.rel.RelationshipType {
			return domain.Validationf("relationship %s from %s to %s already exists",
				a.rel.RelationshipType, a.rel.FromID, a.rel.ToID)
		}
	}
	return nil
}

// Compute stores the relationship and its inverse.
func (a *AddRelationship) Compute(tx domain.Transaction) error {
	relType, _ := tx.FindRelationshipType(a.rel.RelationshipType, a.rel.Terminology, a.rel.Version)

	rel := a.rel
	rel.AssertedDirection = true
	if rel.ID == "" {
		rel.ID = a.ids.RelationshipID(a.cache, rel)
	}
	if a.changeStatus {
		rel.Status = domain.StatusNeedsReview
	} else if rel.Status == "" {
		rel.Status = domain.StatusNew
	}
	if _, err := tx.PutRelationship(rel); err != nil {
		return err
	}

	inverse := rel
	inverse.FromID, inverse.ToID = rel.ToID, rel.FromID
	inverse.RelationshipType = relType.Inverse
	inverse.AssertedDirection = false
	inverse.ID = a.ids.RelationshipID(a.cache, inverse)
	if _, err := tx.PutRelationship(inverse); err != nil {
		return err
	}
	return nil
}

var _ Action = (*AddRelationship)(nil)

// RemoveRelationship deletes a concept relationship and its inverse.
type RemoveRelationship struct {
	relID string

	conceptID  string
	conceptID2 string
}

// NewRemoveRelationship builds the action.
func NewRemoveRelationship(relID string) *RemoveRelationship {
	return &RemoveRelationship{relID: relID}
}

// Name implements Action.
func (a *RemoveRelationship) Name() string { return "REMOVE_RELATIONSHIP" }

// ComponentIDs implements Action.
func (a *RemoveRelationship) ComponentIDs() (string, string) { return a.conceptID, a.conceptID2 }

// CheckPreconditions verifies the relationship exists.
func (a *RemoveRelationship) CheckPreconditions(view domain.TransactionView) error {
	if _, ok := view.FindRelationship(a.relID); !ok {
		return domain.NotFoundError{Entity: domain.EntityRelationship, ID: a.relID}
	}
	return nil
}

// Compute deletes the relationship and the matching inverse, if present.
func (a *RemoveRelationship) Compute(tx domain.Transaction) error {
	rel, _ := tx.FindRelationship(a.relID)
	a.conceptID = rel.FromID
	a.conceptID2 = rel.ToID
	if err := tx.DeleteRelationship(a.relID); err != nil {
		return err
	}
	relType, ok := tx.FindRelationshipType(rel.RelationshipType, rel.Terminology, rel.Version)
	if !ok {
		return nil
	}
	for _, candidate := range tx.ListRelationships() {
		if candidate.FromID == rel.ToID && candidate.ToID == rel.FromID &&
			candidate.RelationshipType == relType.Inverse {
			return tx.DeleteRelationship(candidate.ID)
		}
	}
	return nil
}

var _ Action = (*RemoveRelationship)(nil)
