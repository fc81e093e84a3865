package actions

import "termcore/pkg/domain"

// RemoveAtom detaches an atom from its concept, code, and descriptor, then
// deletes it.
type RemoveAtom struct {
	conceptID    string
	atomID       string
	changeStatus bool
}

// NewRemoveAtom builds the action.
func NewRemoveAtom(conceptID, atomID string, changeStatus bool) *RemoveAtom {
	return &RemoveAtom{conceptID: conceptID, atomID: atomID, changeStatus: changeStatus}
}

// Name implements Action.
func (a *RemoveAtom) Name() string { return "REMOVE_ATOM" }

// ComponentIDs implements Action.
func (a *RemoveAtom) ComponentIDs() (string, string) { return a.conceptID, "" }

// CheckPreconditions verifies the atom exists and belongs to the concept.
func (a *RemoveAtom) CheckPreconditions(view domain.TransactionView) error {
	concept, ok := view.FindConcept(a.conceptID)
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityConcept, ID: a.conceptID}
	}
	if _, ok := view.FindAtom(a.atomID); !ok {
		return domain.NotFoundError{Entity: domain.EntityAtom, ID: a.atomID}
	}
	for _, atomID := range concept.AtomIDs {
		if atomID == a.atomID {
			return nil
		}
	}
	return domain.Validationf("atom %s is not part of concept %s", a.atomID, a.conceptID)
}

// Compute removes the membership links and deletes the atom.
func (a *RemoveAtom) Compute(tx domain.Transaction) error {
	atom, _ := tx.FindAtom(a.atomID)

	concept, _ := tx.FindConcept(a.conceptID)
	concept.AtomIDs = removeString(concept.AtomIDs, a.atomID)
	if a.changeStatus {
		concept.Status = domain.StatusNeedsReview
	}
	if _, err := tx.PutConcept(concept); err != nil {
		return err
	}

	if atom.CodeID != "" {
		if code, ok := tx.FindCode(atom.CodeID); ok {
			code.AtomIDs = removeString(code.AtomIDs, a.atomID)
			if _, err := tx.PutCode(code); err != nil {
				return err
			}
		}
	}
	if atom.DescriptorID != "" {
		if descriptor, ok := tx.FindDescriptor(atom.DescriptorID); ok {
			descriptor.AtomIDs = removeString(descriptor.AtomIDs, a.atomID)
			if _, err := tx.PutDescriptor(descriptor); err != nil {
				return err
			}
		}
	}
	return tx.DeleteAtom(a.atomID)
}

func removeString(in []string, target string) []string {
	out := in[:0:0]
	for _, s := range in {
		if s != target {
			out = append(out, s)
		}
	}
	return out
}

var _ Action = (*RemoveAtom)(nil)
