package algo

import (
	"context"
	"fmt"

	"termcore/pkg/domain"
)

// UpdateReleasability turns publishability off for all content belonging to
// terminology versions no longer marked current.
type UpdateReleasability struct {
	store domain.Store
}

// NewUpdateReleasability builds the pass.
func NewUpdateReleasability(store domain.Store) *UpdateReleasability {
	return &UpdateReleasability{store: store}
}

// Name implements Algorithm.
func (u *UpdateReleasability) Name() string { return "UPDATE_RELEASABILITY" }

// CheckPreconditions verifies at least one terminology exists.
func (u *UpdateReleasability) CheckPreconditions(ctx context.Context) error {
	return u.store.View(ctx, func(v domain.TransactionView) error {
		if len(v.ListTerminologies()) == 0 {
			return domain.Validationf("no terminologies loaded")
		}
		return nil
	})
}

// Compute flips publishable off in one transaction per stale terminology
// version.
func (u *UpdateReleasability) Compute(ctx context.Context) (Summary, error) {
	var summary Summary
	var stale []domain.Terminology
	if err := u.store.View(ctx, func(v domain.TransactionView) error {
		for _, term := range v.ListTerminologies() {
			if !term.Current {
				stale = append(stale, term)
			}
		}
		return nil
	}); err != nil {
		return summary, err
	}

	for _, term := range stale {
		if err := ctx.Err(); err != nil {
			return summary, fmt.Errorf("%w: %v", domain.ErrCancelled, err)
		}
		if _, err := u.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			step := 0
			for _, atom := range tx.ListAtoms() {
				step++
				if err := checkCancel(ctx, step); err != nil {
					return err
				}
				if atom.Terminology != term.Name || atom.Version != term.Version || !atom.Publishable {
					continue
				}
				atom.Publishable = false
				if _, err := tx.PutAtom(atom); err != nil {
					return err
				}
				summary.Updated++
			}
			for _, concept := range tx.ListConcepts() {
				if concept.Terminology != term.Name || concept.Version != term.Version || !concept.Publishable {
					continue
				}
				concept.Publishable = false
				if _, err := tx.PutConcept(concept); err != nil {
					return err
				}
				summary.Updated++
			}
			for _, rel := range tx.ListRelationships() {
				if rel.Terminology != term.Name || rel.Version != term.Version || !rel.Publishable {
					continue
				}
				rel.Publishable = false
				if _, err := tx.PutRelationship(rel); err != nil {
					return err
				}
				summary.Updated++
			}
			return nil
		}); err != nil {
			return summary, fmt.Errorf("update releasability for %s %s: %w", term.Name, term.Version, err)
		}
	}
	return summary, nil
}

var _ Algorithm = (*UpdateReleasability)(nil)
