package reports

import (
	"context"
	"fmt"
	"sync"
	"time"

	"termcore/pkg/domain"
)

// JobStatus is the lifecycle state of a report job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Job tracks one queued report generation.
type Job struct {
	ID          string
	ProjectID   string
	WorklistID  string
	FileName    string
	Status      JobStatus
	Error       string
	RequestedBy string
	CreatedAt   time.Time
	CompletedAt time.Time
}

// Generator renders worklist concept reports asynchronously.
type Generator struct {
	store   domain.Store
	objects ObjectStore
	clock   func() time.Time
	idgen   func() string

	queue  chan string
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	jobs    map[string]*Job
	started bool
}

// GeneratorOption customizes a Generator.
type GeneratorOption func(*Generator)

// WithClock overrides the timestamp source.
func WithClock(clock func() time.Time) GeneratorOption {
	return func(g *Generator) { g.clock = clock }
}

// WithIDGenerator overrides the job id source.
func WithIDGenerator(idgen func() string) GeneratorOption {
	return func(g *Generator) { g.idgen = idgen }
}

// NewGenerator builds a Generator over the content store and object store.
func NewGenerator(store domain.Store, objects ObjectStore, opts ...GeneratorOption) *Generator {
	g := &Generator{
		store:   store,
		objects: objects,
		clock:   func() time.Time { return time.Now().UTC() },
		queue:   make(chan string, 64),
		jobs:    map[string]*Job{},
	}
	seq := 0
	var seqMu sync.Mutex
	g.idgen = func() string {
		seqMu.Lock()
		defer seqMu.Unlock()
		seq++
		return fmt.Sprintf("report-%d-%d", time.Now().UnixNano(), seq)
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Start launches the worker goroutine. Safe to call once.
func (g *Generator) Start(ctx context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.started {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	g.cancel = cancel
	g.started = true
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		for {
			select {
			case <-runCtx.Done():
				return
			case jobID := <-g.queue:
				g.process(runCtx, jobID)
			}
		}
	}()
}

// Stop cancels the worker and waits for it to drain.
func (g *Generator) Stop() {
	g.mu.Lock()
	if !g.started {
		g.mu.Unlock()
		return
	}
	cancel := g.cancel
	g.started = false
	g.mu.Unlock()
	cancel()
	g.wg.Wait()
}

// Enqueue validates the worklist and queues a report job.
func (g *Generator) Enqueue(ctx context.Context, projectID, worklistID, requestedBy string) (Job, error) {
	var worklist domain.Worklist
	err := g.store.View(ctx, func(v domain.TransactionView) error {
		wl, ok := v.FindWorklist(worklistID)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityWorklist, ID: worklistID}
		}
		if wl.ProjectID != projectID {
			return domain.Validationf("worklist %s does not belong to project %s", wl.Name, projectID)
		}
		worklist = wl
		return nil
	})
	if err != nil {
		return Job{}, err
	}

	job := &Job{
		ID:          g.idgen(),
		ProjectID:   projectID,
		WorklistID:  worklistID,
		Status:      JobPending,
		RequestedBy: requestedBy,
		CreatedAt:   g.clock(),
		FileName:    fmt.Sprintf("%s_rpt_%s.txt", worklist.Name, g.clock().Format("20060102150405")),
	}
	g.mu.Lock()
	g.jobs[job.ID] = job
	g.mu.Unlock()

	select {
	case g.queue <- job.ID:
	default:
		g.mu.Lock()
		delete(g.jobs, job.ID)
		g.mu.Unlock()
		return Job{}, domain.Validationf("report queue is full")
	}
	return *job, nil
}

// JobStatus returns a snapshot of the job.
func (g *Generator) JobStatus(jobID string) (Job, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	job, ok := g.jobs[jobID]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

func (g *Generator) setStatus(jobID string, status JobStatus, errMsg string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	job, ok := g.jobs[jobID]
	if !ok {
		return
	}
	job.Status = status
	job.Error = errMsg
	if status == JobCompleted || status == JobFailed {
		job.CompletedAt = g.clock()
	}
}

func (g *Generator) process(ctx context.Context, jobID string) {
	g.mu.Lock()
	job, ok := g.jobs[jobID]
	if !ok {
		g.mu.Unlock()
		return
	}
	snapshot := *job
	g.mu.Unlock()

	g.setStatus(jobID, JobRunning, "")
	content, worklistName, err := g.render(ctx, snapshot.WorklistID)
	if err == nil {
		err = g.objects.Put(ctx, snapshot.FileName, []byte(content))
	}
	if err != nil {
		msg := err.Error()
		if auditErr := g.audit(ctx, snapshot, fmt.Sprintf("report for %s failed: %v", worklistName, err)); auditErr != nil {
			msg = fmt.Sprintf("%s (%v)", msg, auditErr)
		}
		g.setStatus(jobID, JobFailed, msg)
		return
	}
	if auditErr := g.audit(ctx, snapshot, fmt.Sprintf("report %s generated for %s", snapshot.FileName, worklistName)); auditErr != nil {
		// The report itself is stored; keep the job completed but record
		// that the trail entry is missing.
		g.setStatus(jobID, JobCompleted, auditErr.Error())
		return
	}
	g.setStatus(jobID, JobCompleted, "")
}

func (g *Generator) audit(ctx context.Context, job Job, message string) error {
	logCtx := context.WithoutCancel(ctx)
	_, err := g.store.RunInTransaction(logCtx, func(tx domain.Transaction) error {
		_, err := tx.AppendLogEntry(domain.LogEntry{
			ProjectID:      job.ProjectID,
			ObjectID:       job.WorklistID,
			ActivityID:     "CONCEPT_REPORT",
			LastModifiedBy: job.RequestedBy,
			Message:        message,
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("append report audit entry: %w", err)
	}
	return nil
}

// FindReports lists stored report file names for the worklist.
func (g *Generator) FindReports(ctx context.Context, worklistName string) ([]string, error) {
	return g.objects.List(ctx, worklistName+"_rpt_")
}

// GetReport returns a stored report body by file name.
func (g *Generator) GetReport(ctx context.Context, fileName string) ([]byte, error) {
	return g.objects.Get(ctx, fileName)
}

// RemoveReport deletes a stored report by file name.
func (g *Generator) RemoveReport(ctx context.Context, fileName string) error {
	return g.objects.Delete(ctx, fileName)
}
