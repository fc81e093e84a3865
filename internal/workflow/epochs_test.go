package workflow

import (
	"context"
	"testing"

	"termcore/pkg/domain"
)

func TestCreateEpochDeactivatesPrior(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.engine.CreateEpoch(ctx, env.projectID, "15b", true); err != nil {
		t.Fatalf("create 15b: %v", err)
	}
	if _, err := env.engine.CreateEpoch(ctx, env.projectID, "16a", true); err != nil {
		t.Fatalf("create 16a: %v", err)
	}

	active, err := env.engine.ActiveEpoch(ctx, env.projectID)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if active.Name != "16a" {
		t.Fatalf("expected 16a active, got %s", active.Name)
	}
	if err := env.store.View(ctx, func(v domain.TransactionView) error {
		count := 0
		for _, epoch := range v.ListWorkflowEpochs() {
			if epoch.Active {
				count++
			}
		}
		if count != 1 {
			t.Errorf("expected exactly one active epoch, got %d", count)
		}
		return nil
	}); err != nil {
		t.Fatal(err)
	}
}

func TestCreateEpochDuplicateName(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if _, err := env.engine.CreateEpoch(ctx, env.projectID, "16a", false); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := env.engine.CreateEpoch(ctx, env.projectID, "16a", true); !domain.IsValidation(err) {
		t.Fatalf("duplicate epoch should be rejected, got %v", err)
	}
}

func TestActivateEpoch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if _, err := env.engine.CreateEpoch(ctx, env.projectID, "15b", true); err != nil {
		t.Fatalf("create 15b: %v", err)
	}
	if _, err := env.engine.CreateEpoch(ctx, env.projectID, "16a", false); err != nil {
		t.Fatalf("create 16a: %v", err)
	}

	epoch, err := env.engine.ActivateEpoch(ctx, env.projectID, "16a")
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if !epoch.Active {
		t.Fatalf("epoch should be active: %+v", epoch)
	}
	active, err := env.engine.ActiveEpoch(ctx, env.projectID)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if active.Name != "16a" {
		t.Fatalf("active epoch is %s", active.Name)
	}
}

func TestActivateUnknownEpoch(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.engine.ActivateEpoch(context.Background(), env.projectID, "nope"); !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}
