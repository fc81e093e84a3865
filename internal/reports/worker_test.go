package reports

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"termcore/internal/infra/persistence/memory"
	"termcore/pkg/domain"
)

type fixture struct {
	store      *memory.Store
	gen        *Generator
	projectID  string
	worklistID string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	seq := 0
	store := memory.NewStore(
		memory.WithClock(func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }),
		memory.WithIDGenerator(func() string { seq++; return fmt.Sprintf("id-%03d", seq) }),
	)
	f := &fixture{store: store}
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		project, err := tx.PutProject(domain.Project{Name: "editing", Terminology: "SNOMEDCT", Version: "2026AA"})
		if err != nil {
			return err
		}
		f.projectID = project.ID

		atom, err := tx.PutAtom(domain.Atom{
			Name: "Heart structure", Terminology: "SNOMEDCT", TermType: "PT",
			Status: domain.StatusNeedsReview, Suppressible: true,
		})
		if err != nil {
			return err
		}
		concept, err := tx.PutConcept(domain.Concept{
			Name: "Heart structure", Terminology: "SNOMEDCT",
			AtomIDs: []string{atom.ID},
			SemanticTypes: []domain.SemanticTypeComponent{
				{Value: "Body Structure", Status: domain.StatusReadyForPublication},
			},
			Status: domain.StatusNeedsReview,
		})
		if err != nil {
			return err
		}
		organ, err := tx.PutConcept(domain.Concept{Name: "Organ", Terminology: "SNOMEDCT"})
		if err != nil {
			return err
		}
		if _, err := tx.PutRelationship(domain.ConceptRelationship{
			FromID: concept.ID, ToID: organ.ID, RelationshipType: "PAR",
			Terminology: "SNOMEDCT", AssertedDirection: true, Status: domain.StatusNew,
		}); err != nil {
			return err
		}

		wl, err := tx.PutWorklist(domain.Worklist{
			ProjectID:       f.projectID,
			Name:            "wrk16a_hearts_1",
			Epoch:           "16a",
			WorkflowBinName: "hearts",
			Status:          domain.WorklistNew,
		})
		if err != nil {
			return err
		}
		f.worklistID = wl.ID
		_, err = tx.PutTrackingRecord(domain.TrackingRecord{
			ProjectID:      f.projectID,
			WorklistName:   wl.Name,
			ClusterID:      1,
			OrigConceptIDs: []string{concept.ID},
		})
		return err
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	jobSeq := 0
	f.gen = NewGenerator(store, NewMemoryObjectStore(),
		WithClock(func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }),
		WithIDGenerator(func() string { jobSeq++; return fmt.Sprintf("job-%d", jobSeq) }),
	)
	return f
}

func (f *fixture) waitFor(t *testing.T, jobID string, want JobStatus) Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, ok := f.gen.JobStatus(jobID)
		if !ok {
			t.Fatalf("job %s vanished", jobID)
		}
		if job.Status == want {
			return job
		}
		if job.Status == JobFailed && want != JobFailed {
			t.Fatalf("job failed: %s", job.Error)
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s never reached %s", jobID, want)
	return Job{}
}

func TestGenerateConceptReport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.gen.Start(ctx)
	defer f.gen.Stop()

	job, err := f.gen.Enqueue(ctx, f.projectID, f.worklistID, "kss")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if job.FileName != "wrk16a_hearts_1_rpt_20260301120000.txt" {
		t.Fatalf("unexpected file name %q", job.FileName)
	}
	if job.Status != JobPending {
		t.Fatalf("queued job should be pending, got %s", job.Status)
	}

	done := f.waitFor(t, job.ID, JobCompleted)
	if done.CompletedAt.IsZero() {
		t.Fatalf("completed job missing timestamp")
	}

	body, err := f.gen.GetReport(ctx, job.FileName)
	if err != nil {
		t.Fatalf("get report: %v", err)
	}
	report := string(body)
	for _, fragment := range []string{
		"Report for worklist wrk16a_hearts_1 (epoch 16a, bin hearts)",
		"Cluster 1",
		"CN# ",
		"STY Body Structure",
		"ATOM SNOMEDCT/PT Heart structure [NEEDS_REVIEW] S",
		"REL PAR Organ",
	} {
		if !strings.Contains(report, fragment) {
			t.Errorf("report missing %q:\n%s", fragment, report)
		}
	}

	if err := f.store.View(ctx, func(v domain.TransactionView) error {
		entries := v.ListLogEntries()
		if len(entries) != 1 {
			t.Fatalf("expected one audit entry, got %d", len(entries))
		}
		if !strings.Contains(entries[0].Message, job.FileName) {
			t.Errorf("audit entry should name the file: %q", entries[0].Message)
		}
		return nil
	}); err != nil {
		t.Fatal(err)
	}
}

func TestEnqueueUnknownWorklist(t *testing.T) {
	f := newFixture(t)
	if _, err := f.gen.Enqueue(context.Background(), f.projectID, "missing", "kss"); !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestEnqueueWrongProject(t *testing.T) {
	f := newFixture(t)
	if _, err := f.gen.Enqueue(context.Background(), "other-project", f.worklistID, "kss"); !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestJobFailureIsRecorded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	job, err := f.gen.Enqueue(ctx, f.projectID, f.worklistID, "kss")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	// Remove the worklist before the worker starts so rendering must fail.
	if _, err := f.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return tx.DeleteWorklist(f.worklistID)
	}); err != nil {
		t.Fatalf("delete worklist: %v", err)
	}
	f.gen.Start(ctx)
	defer f.gen.Stop()

	failed := f.waitFor(t, job.ID, JobFailed)
	if failed.Error == "" {
		t.Fatalf("failed job should carry the error")
	}
	if _, err := f.gen.GetReport(ctx, job.FileName); err == nil {
		t.Fatalf("no report should be stored for a failed job")
	}
}

// brokenAuditStore fails every write transaction while leaving reads intact,
// so rendering succeeds but the audit entry cannot be stored.
type brokenAuditStore struct {
	domain.Store
}

func (s brokenAuditStore) RunInTransaction(ctx context.Context, fn func(tx domain.Transaction) error) ([]domain.Change, error) {
	return nil, fmt.Errorf("store offline")
}

func TestAuditFailureSurfacesOnJob(t *testing.T) {
	f := newFixture(t)
	objects := NewMemoryObjectStore()
	jobSeq := 0
	f.gen = NewGenerator(brokenAuditStore{Store: f.store}, objects,
		WithClock(func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }),
		WithIDGenerator(func() string { jobSeq++; return fmt.Sprintf("job-%d", jobSeq) }),
	)
	ctx := context.Background()

	job, err := f.gen.Enqueue(ctx, f.projectID, f.worklistID, "kss")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	f.gen.Start(ctx)
	defer f.gen.Stop()

	done := f.waitFor(t, job.ID, JobCompleted)
	if !strings.Contains(done.Error, "audit") {
		t.Fatalf("audit failure not surfaced on the job: %+v", done)
	}
	if _, err := objects.Get(ctx, job.FileName); err != nil {
		t.Fatalf("report should still be stored: %v", err)
	}
}

func TestFindAndRemoveReports(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.gen.Start(ctx)
	defer f.gen.Stop()

	job, err := f.gen.Enqueue(ctx, f.projectID, f.worklistID, "kss")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	f.waitFor(t, job.ID, JobCompleted)

	names, err := f.gen.FindReports(ctx, "wrk16a_hearts_1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(names) != 1 || names[0] != job.FileName {
		t.Fatalf("unexpected reports %v", names)
	}
	if err := f.gen.RemoveReport(ctx, job.FileName); err != nil {
		t.Fatalf("remove: %v", err)
	}
	names, err = f.gen.FindReports(ctx, "wrk16a_hearts_1")
	if err != nil {
		t.Fatalf("find after remove: %v", err)
	}
	if len(names) != 0 {
		t.Fatalf("report survived removal: %v", names)
	}
}
