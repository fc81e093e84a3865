package actions

import (
	"context"
	"testing"

	"termcore/pkg/domain"
)

func TestUndoRedoAddAtom(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	concept := env.seedConcept(t, "Heart structure", "Heart structure")

	ma, err := env.executor.Execute(ctx, env.req, NewAddAtom(concept.ID, newAtom("Cardiac structure"), true))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	if err := env.executor.Undo(ctx, env.req, ma.ID); err != nil {
		t.Fatalf("undo: %v", err)
	}
	env.view(t, func(v domain.TransactionView) error {
		restored, _ := v.FindConcept(concept.ID)
		if len(restored.AtomIDs) != 1 {
			t.Errorf("concept not restored: %v", restored.AtomIDs)
		}
		if restored.Status != concept.Status {
			t.Errorf("status not restored: %s", restored.Status)
		}
		for _, atom := range v.ListAtoms() {
			if atom.Name == "Cardiac structure" {
				t.Errorf("created atom survived undo")
			}
		}
		stored, _ := v.FindMolecularAction(ma.ID)
		if !stored.Undone {
			t.Errorf("molecular action not marked undone")
		}
		return nil
	})

	if err := env.executor.Redo(ctx, env.req, ma.ID); err != nil {
		t.Fatalf("redo: %v", err)
	}
	env.view(t, func(v domain.TransactionView) error {
		reapplied, _ := v.FindConcept(concept.ID)
		if len(reapplied.AtomIDs) != 2 {
			t.Errorf("redo did not re-link the atom: %v", reapplied.AtomIDs)
		}
		found := false
		for _, atom := range v.ListAtoms() {
			if atom.Name == "Cardiac structure" {
				found = true
			}
		}
		if !found {
			t.Errorf("redo did not recreate the atom")
		}
		stored, _ := v.FindMolecularAction(ma.ID)
		if stored.Undone {
			t.Errorf("molecular action still marked undone after redo")
		}
		return nil
	})
}

func TestUndoRedoMerge(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	from := env.seedConcept(t, "Cardiac structure", "Cardiac structure")
	into := env.seedConcept(t, "Heart structure", "Heart structure")

	ma, err := env.executor.Execute(ctx, env.req, NewMergeConcepts(from.ID, into.ID, false))
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if err := env.executor.Undo(ctx, env.req, ma.ID); err != nil {
		t.Fatalf("undo: %v", err)
	}

	env.view(t, func(v domain.TransactionView) error {
		source, ok := v.FindConcept(from.ID)
		if !ok {
			t.Fatalf("deleted concept not restored by undo")
		}
		if len(source.AtomIDs) != 1 || source.AtomIDs[0] != from.AtomIDs[0] {
			t.Errorf("source atoms not restored: %v", source.AtomIDs)
		}
		target, _ := v.FindConcept(into.ID)
		if len(target.AtomIDs) != 1 {
			t.Errorf("target still holds moved atoms: %v", target.AtomIDs)
		}
		atom, _ := v.FindAtom(from.AtomIDs[0])
		if atom.ConceptID != from.ID {
			t.Errorf("atom still points at %s", atom.ConceptID)
		}
		return nil
	})
}

func TestUndoTwiceRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	concept := env.seedConcept(t, "Heart structure", "Heart structure")

	ma, err := env.executor.Execute(ctx, env.req, NewAddAtom(concept.ID, newAtom("Cor"), false))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if err := env.executor.Undo(ctx, env.req, ma.ID); err != nil {
		t.Fatalf("undo: %v", err)
	}
	if err := env.executor.Undo(ctx, env.req, ma.ID); !domain.IsValidation(err) {
		t.Fatalf("second undo should be rejected, got %v", err)
	}
}

func TestRedoWithoutUndoRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	concept := env.seedConcept(t, "Heart structure", "Heart structure")

	ma, err := env.executor.Execute(ctx, env.req, NewAddAtom(concept.ID, newAtom("Cor"), false))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if err := env.executor.Redo(ctx, env.req, ma.ID); !domain.IsValidation(err) {
		t.Fatalf("redo without undo should be rejected, got %v", err)
	}
}

func TestUndoUnknownAction(t *testing.T) {
	env := newTestEnv(t)
	if err := env.executor.Undo(context.Background(), env.req, "missing"); !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}
