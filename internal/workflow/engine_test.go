package workflow

import (
	"context"
	"fmt"
	"testing"
	"time"

	"termcore/internal/infra/persistence/memory"
	"termcore/pkg/domain"
)

// testEnv seeds a store with one project and returns an engine with a fixed
// clock and sequential ids.
type testEnv struct {
	store     *memory.Store
	engine    *Engine
	projectID string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	seq := 0
	store := memory.NewStore(
		memory.WithClock(func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }),
		memory.WithIDGenerator(func() string { seq++; return fmt.Sprintf("id-%03d", seq) }),
	)
	engine := NewEngine(store, WithClock(func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }))

	env := &testEnv{store: store, engine: engine}
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		project, err := tx.PutProject(domain.Project{Name: "editing", Terminology: "SNOMEDCT", Version: "2026AA"})
		if err != nil {
			return err
		}
		env.projectID = project.ID
		return nil
	}); err != nil {
		t.Fatalf("seed project: %v", err)
	}
	return env
}

func (env *testEnv) seedConcepts(t *testing.T, concepts ...domain.Concept) []string {
	t.Helper()
	ids := make([]string, 0, len(concepts))
	if _, err := env.store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		for _, c := range concepts {
			stored, err := tx.PutConcept(c)
			if err != nil {
				return err
			}
			ids = append(ids, stored.ID)
		}
		return nil
	}); err != nil {
		t.Fatalf("seed concepts: %v", err)
	}
	return ids
}

func (env *testEnv) seedConfig(t *testing.T, mutuallyExclusive bool, defs ...domain.WorkflowBinDefinition) string {
	t.Helper()
	var id string
	binType := domain.BinTypeMutuallyExclusive
	if !mutuallyExclusive {
		binType = domain.BinTypeQualityAssurance
	}
	if _, err := env.store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		config, err := tx.PutWorkflowConfig(domain.WorkflowConfig{
			ProjectID:         env.projectID,
			Type:              binType,
			MutuallyExclusive: mutuallyExclusive,
			Definitions:       defs,
		})
		id = config.ID
		return err
	}); err != nil {
		t.Fatalf("seed config: %v", err)
	}
	return id
}

func (env *testEnv) seedActiveEpoch(t *testing.T, name string) {
	t.Helper()
	if _, err := env.engine.CreateEpoch(context.Background(), env.projectID, name, true); err != nil {
		t.Fatalf("seed epoch: %v", err)
	}
}

func (env *testEnv) recordsInBin(t *testing.T, binName string) []domain.TrackingRecord {
	t.Helper()
	var out []domain.TrackingRecord
	if err := env.store.View(context.Background(), func(v domain.TransactionView) error {
		for _, record := range v.ListTrackingRecords() {
			if record.WorkflowBinName == binName {
				out = append(out, record)
			}
		}
		return nil
	}); err != nil {
		t.Fatalf("list records: %v", err)
	}
	return out
}

func definition(name, q string) domain.WorkflowBinDefinition {
	return domain.WorkflowBinDefinition{
		Name:      name,
		Query:     q,
		QueryType: domain.QueryTypeExpression,
		Editable:  true,
		Enabled:   true,
	}
}
