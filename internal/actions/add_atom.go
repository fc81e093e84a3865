package actions

import (
	"strings"

	"termcore/internal/identity"
	"termcore/pkg/domain"
)

// AddAtom adds a new atom to an existing concept, maintaining the code and
// descriptor memberships the atom declares.
type AddAtom struct {
	conceptID    string
	atom         domain.Atom
	changeStatus bool

	ids   *identity.Handler
	cache *identity.Cache
}

// NewAddAtom builds the action. When changeStatus is true the touched
// components are flagged for review.
func NewAddAtom(conceptID string, atom domain.Atom, changeStatus bool) *AddAtom {
	return &AddAtom{
		conceptID:    conceptID,
		atom:         atom,
		changeStatus: changeStatus,
		ids:          identity.NewHandler(),
		cache:        identity.NewCache(),
	}
}

// Name implements Action.
func (a *AddAtom) Name() string { return "ADD_ATOM" }

// ComponentIDs implements Action.
func (a *AddAtom) ComponentIDs() (string, string) { return a.conceptID, "" }

// CheckPreconditions verifies the target concept exists, the atom's
// terminology, term type, and language are all valid metadata, and the
// concept does not already carry an equivalent atom.
func (a *AddAtom) CheckPreconditions(view domain.TransactionView) error {
	concept, ok := view.FindConcept(a.conceptID)
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityConcept, ID: a.conceptID}
	}
	if a.atom.Name == "" {
		return domain.Validationf("cannot add atom with empty name")
	}
	if _, ok := view.FindTerminology(a.atom.Terminology, a.atom.Version); !ok {
		return domain.Validationf("cannot add atom with invalid terminology - %s %s",
			a.atom.Terminology, a.atom.Version)
	}
	if _, ok := view.FindTermType(a.atom.TermType, a.atom.Terminology, a.atom.Version); !ok {
		return domain.Validationf("cannot add atom with invalid term type - %s", a.atom.TermType)
	}
	if _, ok := view.FindLanguage(a.atom.Language, a.atom.Terminology, a.atom.Version); !ok {
		return domain.Validationf("cannot add atom with invalid language - %s", a.atom.Language)
	}
	for _, atomID := range concept.AtomIDs {
		existing, ok := view.FindAtom(atomID)
		if !ok {
			continue
		}
		if strings.EqualFold(existing.Name, a.atom.Name) &&
			existing.TermType == a.atom.TermType &&
			existing.Terminology == a.atom.Terminology {
			return domain.Validationf("cannot add duplicate atom - %s", a.atom.Name)
		}
	}
	return nil
}

// Compute assigns identity to the atom, stores it, and links it into the
// concept, code, and descriptor.
func (a *AddAtom) Compute(tx domain.Transaction) error {
	atom := a.atom
	if atom.ID == "" {
		atom.ID = a.ids.AtomID(a.cache, atom)
	}
	atom.StringClassID = a.ids.StringClassID(a.cache, atom.Language, atom.Name)
	atom.LexicalClassID = a.ids.LexicalClassID(a.cache, atom.Language, atom.Name)
	atom.ConceptID = a.conceptID
	if a.changeStatus {
		atom.Status = domain.StatusNeedsReview
	} else if atom.Status == "" {
		atom.Status = domain.StatusNew
	}
	stored, err := tx.PutAtom(atom)
	if err != nil {
		return err
	}

	concept, _ := tx.FindConcept(a.conceptID)
	concept.AtomIDs = append(concept.AtomIDs, stored.ID)
	if a.changeStatus {
		concept.Status = domain.StatusNeedsReview
	}
	if _, err := tx.PutConcept(concept); err != nil {
		return err
	}

	if atom.CodeID != "" {
		code, ok := tx.FindCode(atom.CodeID)
		if !ok {
			code = domain.Code{
				Base:        domain.Base{ID: atom.CodeID},
				Name:        atom.Name,
				Terminology: atom.Terminology,
				Version:     atom.Version,
				Status:      domain.StatusNew,
				Publishable: atom.Publishable,
			}
		}
		code.AtomIDs = append(code.AtomIDs, stored.ID)
		if _, err := tx.PutCode(code); err != nil {
			return err
		}
	}
	if atom.DescriptorID != "" {
		descriptor, ok := tx.FindDescriptor(atom.DescriptorID)
		if !ok {
			descriptor = domain.Descriptor{
				Base:        domain.Base{ID: atom.DescriptorID},
				Name:        atom.Name,
				Terminology: atom.Terminology,
				Version:     atom.Version,
				Status:      domain.StatusNew,
				Publishable: atom.Publishable,
			}
		}
		descriptor.AtomIDs = append(descriptor.AtomIDs, stored.ID)
		if _, err := tx.PutDescriptor(descriptor); err != nil {
			return err
		}
	}
	return nil
}

var _ Action = (*AddAtom)(nil)
