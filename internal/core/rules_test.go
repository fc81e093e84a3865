package core

import (
	"context"
	"errors"
	"testing"

	"termcore/internal/infra/persistence/memory"
	"termcore/pkg/domain"
)

func ruledStore(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.NewStore(memory.WithRules(DefaultRules()))
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := tx.PutRelationshipType(domain.RelationshipType{Abbreviation: "PAR", Inverse: "CHD", Terminology: "SNOMEDCT", Version: "2026AA"}); err != nil {
			return err
		}
		_, err := tx.PutRelationshipType(domain.RelationshipType{Abbreviation: "CHD", Inverse: "PAR", Terminology: "SNOMEDCT", Version: "2026AA"})
		return err
	}); err != nil {
		t.Fatalf("seed metadata: %v", err)
	}
	return store
}

func TestRelationshipSymmetryRule(t *testing.T) {
	store := ruledStore(t)
	ctx := context.Background()

	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.PutRelationship(domain.ConceptRelationship{
			FromID: "a", ToID: "b", RelationshipType: "PAR",
			Terminology: "SNOMEDCT", Version: "2026AA", AssertedDirection: true,
		})
		return err
	})
	var viol domain.RuleViolationError
	if !errors.As(err, &viol) {
		t.Fatalf("asymmetric commit should be blocked, got %v", err)
	}
	if viol.Violations[0].Rule != "relationship_symmetry" {
		t.Fatalf("unexpected rule %q", viol.Violations[0].Rule)
	}

	// The discarded transaction left nothing behind.
	if err := store.View(ctx, func(v domain.TransactionView) error {
		if got := len(v.ListRelationships()); got != 0 {
			t.Errorf("blocked commit leaked %d relationships", got)
		}
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	// With the inverse in the same batch the commit passes.
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, err := tx.PutRelationship(domain.ConceptRelationship{
			FromID: "a", ToID: "b", RelationshipType: "PAR",
			Terminology: "SNOMEDCT", Version: "2026AA", AssertedDirection: true,
		}); err != nil {
			return err
		}
		_, err := tx.PutRelationship(domain.ConceptRelationship{
			FromID: "b", ToID: "a", RelationshipType: "CHD",
			Terminology: "SNOMEDCT", Version: "2026AA",
		})
		return err
	}); err != nil {
		t.Fatalf("symmetric commit should pass: %v", err)
	}
}

func TestRelationshipSymmetryRuleIgnoresUnknownTypes(t *testing.T) {
	store := ruledStore(t)
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.PutRelationship(domain.ConceptRelationship{
			FromID: "a", ToID: "b", RelationshipType: "mapped_to",
			Terminology: "MSH", Version: "2026",
		})
		return err
	}); err != nil {
		t.Fatalf("relationship with unconfigured type should pass: %v", err)
	}
}

func TestSingleActiveEpochRule(t *testing.T) {
	store := ruledStore(t)
	ctx := context.Background()

	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, err := tx.PutWorkflowEpoch(domain.WorkflowEpoch{ProjectID: "p1", Name: "15b", Active: true}); err != nil {
			return err
		}
		_, err := tx.PutWorkflowEpoch(domain.WorkflowEpoch{ProjectID: "p1", Name: "16a", Active: true})
		return err
	})
	var viol domain.RuleViolationError
	if !errors.As(err, &viol) {
		t.Fatalf("two active epochs should be blocked, got %v", err)
	}

	// Different projects may each have their own active epoch.
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, err := tx.PutWorkflowEpoch(domain.WorkflowEpoch{ProjectID: "p1", Name: "16a", Active: true}); err != nil {
			return err
		}
		_, err := tx.PutWorkflowEpoch(domain.WorkflowEpoch{ProjectID: "p2", Name: "16a", Active: true})
		return err
	}); err != nil {
		t.Fatalf("one active epoch per project should pass: %v", err)
	}
}

func TestWorklistLifecycleRule(t *testing.T) {
	store := ruledStore(t)
	ctx := context.Background()

	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.PutWorklist(domain.Worklist{Name: "wrk16a_x_1", Status: "LOST"})
		return err
	})
	var viol domain.RuleViolationError
	if !errors.As(err, &viol) {
		t.Fatalf("unknown status should be blocked, got %v", err)
	}

	var id string
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		wl, err := tx.PutWorklist(domain.Worklist{Name: "wrk16a_x_1", Status: domain.WorklistFinished})
		id = wl.ID
		return err
	}); err != nil {
		t.Fatalf("create finished worklist: %v", err)
	}

	// Leaving FINISHED is only allowed back into REVIEW.
	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		wl, _ := tx.FindWorklist(id)
		wl.Status = domain.WorklistNew
		_, err := tx.PutWorklist(wl)
		return err
	})
	if !errors.As(err, &viol) {
		t.Fatalf("FINISHED to NEW should be blocked, got %v", err)
	}
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		wl, _ := tx.FindWorklist(id)
		wl.Status = domain.WorklistReview
		_, err := tx.PutWorklist(wl)
		return err
	}); err != nil {
		t.Fatalf("FINISHED to REVIEW should pass: %v", err)
	}
}
