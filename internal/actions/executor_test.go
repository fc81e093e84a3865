package actions

import (
	"context"
	"fmt"
	"testing"
	"time"

	"termcore/internal/infra/persistence/memory"
	"termcore/pkg/domain"
)

type testEnv struct {
	store     *memory.Store
	executor  *Executor
	projectID string
	req       Request
}

// newTestEnv seeds a store with a project and the SNOMEDCT metadata every
// action precondition checks against.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	seq := 0
	store := memory.NewStore(
		memory.WithClock(func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }),
		memory.WithIDGenerator(func() string { seq++; return fmt.Sprintf("id-%03d", seq) }),
	)
	env := &testEnv{store: store, executor: NewExecutor(store)}
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		project, err := tx.PutProject(domain.Project{Name: "editing", Terminology: "SNOMEDCT", Version: "2026AA"})
		if err != nil {
			return err
		}
		env.projectID = project.ID
		if _, err := tx.PutTerminology(domain.Terminology{Name: "SNOMEDCT", Version: "2026AA", Current: true}); err != nil {
			return err
		}
		if _, err := tx.PutTermType(domain.TermType{Abbreviation: "PT", Terminology: "SNOMEDCT", Version: "2026AA"}); err != nil {
			return err
		}
		if _, err := tx.PutLanguage(domain.Language{Code: "ENG", Terminology: "SNOMEDCT", Version: "2026AA"}); err != nil {
			return err
		}
		if _, err := tx.PutRelationshipType(domain.RelationshipType{Abbreviation: "PAR", Inverse: "CHD", Terminology: "SNOMEDCT", Version: "2026AA"}); err != nil {
			return err
		}
		_, err = tx.PutRelationshipType(domain.RelationshipType{Abbreviation: "CHD", Inverse: "PAR", Terminology: "SNOMEDCT", Version: "2026AA"})
		return err
	}); err != nil {
		t.Fatalf("seed metadata: %v", err)
	}
	env.req = Request{ProjectID: env.projectID, ActivityID: "act-1", WorkID: "work-1", By: "kss"}
	return env
}

func (env *testEnv) seedConcept(t *testing.T, name string, atomNames ...string) domain.Concept {
	t.Helper()
	var concept domain.Concept
	if _, err := env.store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		c := domain.Concept{Name: name, Terminology: "SNOMEDCT", Version: "2026AA", Publishable: true}
		for _, atomName := range atomNames {
			atom, err := tx.PutAtom(domain.Atom{
				Name:        atomName,
				Terminology: "SNOMEDCT",
				Version:     "2026AA",
				TermType:    "PT",
				Language:    "ENG",
				Status:      domain.StatusNew,
			})
			if err != nil {
				return err
			}
			c.AtomIDs = append(c.AtomIDs, atom.ID)
		}
		stored, err := tx.PutConcept(c)
		if err != nil {
			return err
		}
		for _, atomID := range stored.AtomIDs {
			atom, _ := tx.FindAtom(atomID)
			atom.ConceptID = stored.ID
			if _, err := tx.PutAtom(atom); err != nil {
				return err
			}
		}
		concept = stored
		return nil
	}); err != nil {
		t.Fatalf("seed concept: %v", err)
	}
	return concept
}

func (env *testEnv) view(t *testing.T, fn func(v domain.TransactionView) error) {
	t.Helper()
	if err := env.store.View(context.Background(), fn); err != nil {
		t.Fatal(err)
	}
}

func newAtom(name string) domain.Atom {
	return domain.Atom{
		Name:        name,
		Terminology: "SNOMEDCT",
		Version:     "2026AA",
		TermType:    "PT",
		Language:    "ENG",
	}
}

func TestExecuteAddAtom(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	concept := env.seedConcept(t, "Heart structure", "Heart structure")

	ma, err := env.executor.Execute(ctx, env.req, NewAddAtom(concept.ID, newAtom("Cardiac structure"), true))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if ma.Name != "ADD_ATOM" || ma.ComponentID != concept.ID {
		t.Fatalf("unexpected molecular action %+v", ma)
	}
	if len(ma.AtomicActions) == 0 {
		t.Fatalf("no atomic actions recorded")
	}

	env.view(t, func(v domain.TransactionView) error {
		stored, _ := v.FindConcept(concept.ID)
		if len(stored.AtomIDs) != 2 {
			t.Errorf("atom not linked: %v", stored.AtomIDs)
		}
		if stored.Status != domain.StatusNeedsReview {
			t.Errorf("concept not flagged for review: %s", stored.Status)
		}
		found := false
		for _, atom := range v.ListAtoms() {
			if atom.Name == "Cardiac structure" {
				found = true
				if atom.Status != domain.StatusNeedsReview {
					t.Errorf("new atom status %s", atom.Status)
				}
				if atom.StringClassID == "" || atom.LexicalClassID == "" {
					t.Errorf("atom missing identity: %+v", atom)
				}
			}
		}
		if !found {
			t.Errorf("atom not stored")
		}
		if got := len(v.ListLogEntries()); got != 2 {
			t.Errorf("expected 2 log entries, got %d", got)
		}
		return nil
	})
}

func TestExecutePreconditionFailureRollsBack(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	concept := env.seedConcept(t, "Heart structure", "Heart structure")

	atom := newAtom("Cardiac structure")
	atom.TermType = "XX"
	_, err := env.executor.Execute(ctx, env.req, NewAddAtom(concept.ID, atom, false))
	if !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	want := "cannot add atom with invalid term type - XX"
	if got := err.Error(); got != "execute ADD_ATOM: "+want {
		t.Fatalf("unexpected message %q", got)
	}

	env.view(t, func(v domain.TransactionView) error {
		stored, _ := v.FindConcept(concept.ID)
		if len(stored.AtomIDs) != 1 {
			t.Errorf("failed action mutated the concept: %v", stored.AtomIDs)
		}
		if got := len(v.ListMolecularActions()); got != 0 {
			t.Errorf("failed action recorded %d molecular actions", got)
		}
		return nil
	})
}

func TestFailedActionStillWritesAuditEntry(t *testing.T) {
	env := newTestEnv(t)
	concept := env.seedConcept(t, "Heart structure", "Heart structure")

	atom := newAtom("Cardiac structure")
	atom.TermType = "XX"
	if _, err := env.executor.Execute(context.Background(), env.req,
		NewAddAtom(concept.ID, atom, false)); err == nil {
		t.Fatalf("expected failure")
	}

	env.view(t, func(v domain.TransactionView) error {
		entries := v.ListLogEntries()
		if len(entries) != 1 {
			t.Fatalf("expected 1 failure log entry, got %d", len(entries))
		}
		entry := entries[0]
		if entry.ProjectID != env.projectID || entry.ActivityID != "act-1" ||
			entry.WorkID != "work-1" || entry.LastModifiedBy != "kss" {
			t.Errorf("failure entry missing audit identity: %+v", entry)
		}
		want := "ADD_ATOM failed: cannot add atom with invalid term type - XX"
		if entry.Message != want {
			t.Errorf("failure message %q, want %q", entry.Message, want)
		}
		return nil
	})
}

func TestExecuteDuplicateAtomRejected(t *testing.T) {
	env := newTestEnv(t)
	concept := env.seedConcept(t, "Heart structure", "Heart structure")

	_, err := env.executor.Execute(context.Background(), env.req,
		NewAddAtom(concept.ID, newAtom("HEART STRUCTURE"), false))
	if !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	want := "execute ADD_ATOM: cannot add duplicate atom - HEART STRUCTURE"
	if err.Error() != want {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestRemoveAtom(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	concept := env.seedConcept(t, "Heart structure", "Heart structure", "Cardiac structure")
	atomID := concept.AtomIDs[1]

	if _, err := env.executor.Execute(ctx, env.req, NewRemoveAtom(concept.ID, atomID, false)); err != nil {
		t.Fatalf("execute: %v", err)
	}
	env.view(t, func(v domain.TransactionView) error {
		stored, _ := v.FindConcept(concept.ID)
		if len(stored.AtomIDs) != 1 || stored.AtomIDs[0] == atomID {
			t.Errorf("atom not unlinked: %v", stored.AtomIDs)
		}
		if _, ok := v.FindAtom(atomID); ok {
			t.Errorf("atom not deleted")
		}
		return nil
	})
}

func TestAddRelationshipCreatesInverse(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	heart := env.seedConcept(t, "Heart structure", "Heart structure")
	organ := env.seedConcept(t, "Organ", "Organ")

	_, err := env.executor.Execute(ctx, env.req, NewAddRelationship(domain.ConceptRelationship{
		FromID:           heart.ID,
		ToID:             organ.ID,
		RelationshipType: "PAR",
		Terminology:      "SNOMEDCT",
		Version:          "2026AA",
	}, false))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	env.view(t, func(v domain.TransactionView) error {
		rels := v.ListRelationships()
		if len(rels) != 2 {
			t.Fatalf("expected relationship and inverse, got %d", len(rels))
		}
		var forward, inverse *domain.ConceptRelationship
		for i := range rels {
			if rels[i].AssertedDirection {
				forward = &rels[i]
			} else {
				inverse = &rels[i]
			}
		}
		if forward == nil || inverse == nil {
			t.Fatalf("directions wrong: %+v", rels)
		}
		if forward.RelationshipType != "PAR" || inverse.RelationshipType != "CHD" {
			t.Errorf("types wrong: %s / %s", forward.RelationshipType, inverse.RelationshipType)
		}
		if inverse.FromID != forward.ToID || inverse.ToID != forward.FromID {
			t.Errorf("inverse endpoints wrong: %+v", inverse)
		}
		return nil
	})
}

func TestRemoveRelationshipRemovesInverse(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	heart := env.seedConcept(t, "Heart structure", "Heart structure")
	organ := env.seedConcept(t, "Organ", "Organ")

	if _, err := env.executor.Execute(ctx, env.req, NewAddRelationship(domain.ConceptRelationship{
		FromID:           heart.ID,
		ToID:             organ.ID,
		RelationshipType: "PAR",
		Terminology:      "SNOMEDCT",
		Version:          "2026AA",
	}, false)); err != nil {
		t.Fatalf("add: %v", err)
	}

	var forwardID string
	env.view(t, func(v domain.TransactionView) error {
		for _, rel := range v.ListRelationships() {
			if rel.AssertedDirection {
				forwardID = rel.ID
			}
		}
		return nil
	})

	ma, err := env.executor.Execute(ctx, env.req, NewRemoveRelationship(forwardID))
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if ma.ComponentID != heart.ID || ma.ComponentID2 != organ.ID {
		t.Fatalf("component ids not captured: %+v", ma)
	}
	env.view(t, func(v domain.TransactionView) error {
		if got := len(v.ListRelationships()); got != 0 {
			t.Errorf("expected both directions deleted, %d remain", got)
		}
		return nil
	})
}

func TestDuplicateRelationshipRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	heart := env.seedConcept(t, "Heart structure", "Heart structure")
	organ := env.seedConcept(t, "Organ", "Organ")

	rel := domain.ConceptRelationship{
		FromID:           heart.ID,
		ToID:             organ.ID,
		RelationshipType: "PAR",
		Terminology:      "SNOMEDCT",
		Version:          "2026AA",
	}
	if _, err := env.executor.Execute(ctx, env.req, NewAddRelationship(rel, false)); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if _, err := env.executor.Execute(ctx, env.req, NewAddRelationship(rel, false)); !domain.IsValidation(err) {
		t.Fatalf("duplicate should be rejected, got %v", err)
	}
}
