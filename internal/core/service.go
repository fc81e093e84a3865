package core

import (
	"context"
	"time"

	"termcore/internal/actions"
	"termcore/internal/algo"
	"termcore/internal/reports"
	"termcore/internal/workflow"
	"termcore/pkg/domain"
)

// Service is the facade over all termcore operations. Every call is observed
// by the metrics recorder and tracer.
type Service struct {
	store    domain.Store
	engine   *workflow.Engine
	executor *actions.Executor
	runner   *algo.Runner
	gen      *reports.Generator

	metrics MetricsRecorder
	tracer  Tracer
	clock   func() time.Time
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithMetrics installs a metrics recorder.
func WithMetrics(m MetricsRecorder) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// WithTracer installs a tracer.
func WithTracer(t Tracer) ServiceOption {
	return func(s *Service) { s.tracer = t }
}

// WithReportGenerator installs the async report generator.
func WithReportGenerator(g *reports.Generator) ServiceOption {
	return func(s *Service) { s.gen = g }
}

// NewService builds a Service over the store.
func NewService(store domain.Store, opts ...ServiceOption) *Service {
	s := &Service{
		store:    store,
		engine:   workflow.NewEngine(store),
		executor: actions.NewExecutor(store),
		runner:   algo.NewRunner(store),
		metrics:  NoopMetricsRecorder{},
		tracer:   NoopTracer{},
		clock:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.gen == nil {
		s.gen = reports.NewGenerator(store, reports.NewMemoryObjectStore())
	}
	return s
}

// Reports exposes the report generator for lifecycle management.
func (s *Service) Reports() *reports.Generator { return s.gen }

func (s *Service) observe(ctx context.Context, op string, fn func() error) error {
	start := s.clock()
	err := fn()
	duration := s.clock().Sub(start)
	s.metrics.Observe(ctx, op, err == nil, duration)
	s.tracer.Trace(ctx, op, err == nil, duration)
	return err
}

// CreateProject stores a new project.
func (s *Service) CreateProject(ctx context.Context, project Project) (Project, error) {
	var out Project
	err := s.observe(ctx, "create_project", func() error {
		if project.Name == "" {
			return domain.Validationf("project name is required")
		}
		_, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			stored, err := tx.PutProject(project)
			if err != nil {
				return err
			}
			out = stored
			return nil
		})
		return err
	})
	return out, err
}

// GetProject looks a project up by id.
func (s *Service) GetProject(ctx context.Context, id string) (Project, error) {
	var out Project
	err := s.observe(ctx, "get_project", func() error {
		return s.store.View(ctx, func(v domain.TransactionView) error {
			project, ok := v.FindProject(id)
			if !ok {
				return domain.NotFoundError{Entity: domain.EntityProject, ID: id}
			}
			out = project
			return nil
		})
	})
	return out, err
}

// ListProjects returns all projects.
func (s *Service) ListProjects(ctx context.Context) ([]Project, error) {
	var out []Project
	err := s.observe(ctx, "list_projects", func() error {
		return s.store.View(ctx, func(v domain.TransactionView) error {
			out = v.ListProjects()
			return nil
		})
	})
	return out, err
}

// PutWorkflowConfig stores a workflow bin configuration.
func (s *Service) PutWorkflowConfig(ctx context.Context, config WorkflowConfig) (WorkflowConfig, error) {
	var out WorkflowConfig
	err := s.observe(ctx, "put_workflow_config", func() error {
		_, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			if _, ok := tx.FindProject(config.ProjectID); !ok {
				return domain.NotFoundError{Entity: domain.EntityProject, ID: config.ProjectID}
			}
			stored, err := tx.PutWorkflowConfig(config)
			if err != nil {
				return err
			}
			out = stored
			return nil
		})
		return err
	})
	return out, err
}

// ClearBins removes the config's bins, preserving in-flight records.
func (s *Service) ClearBins(ctx context.Context, projectID, configID string) error {
	return s.observe(ctx, "clear_bins", func() error {
		return s.engine.ClearBins(ctx, projectID, configID)
	})
}

// RegenerateBins clears and rebuilds the config's bins.
func (s *Service) RegenerateBins(ctx context.Context, projectID, configID string) (workflow.RegenerateResult, error) {
	var out workflow.RegenerateResult
	err := s.observe(ctx, "regenerate_bins", func() error {
		result, err := s.engine.RegenerateBins(ctx, projectID, configID)
		out = result
		return err
	})
	return out, err
}

// RegenerateBin rebuilds one named bin.
func (s *Service) RegenerateBin(ctx context.Context, projectID, configID, binName string) (WorkflowBin, error) {
	var out WorkflowBin
	err := s.observe(ctx, "regenerate_bin", func() error {
		bin, err := s.engine.RegenerateBin(ctx, projectID, configID, binName)
		out = bin
		return err
	})
	return out, err
}

// GetWorkflowBins lists the project's materialized bins by category.
func (s *Service) GetWorkflowBins(ctx context.Context, projectID string, binType domain.WorkflowBinType) ([]WorkflowBin, error) {
	var out []WorkflowBin
	err := s.observe(ctx, "get_workflow_bins", func() error {
		bins, err := s.engine.GetWorkflowBins(ctx, projectID, binType)
		out = bins
		return err
	})
	return out, err
}

// BinRecords returns the tracking records attached to a bin.
func (s *Service) BinRecords(ctx context.Context, projectID, binName string) ([]TrackingRecord, error) {
	var out []TrackingRecord
	err := s.observe(ctx, "bin_records", func() error {
		records, err := s.engine.BinRecords(ctx, projectID, binName)
		out = records
		return err
	})
	return out, err
}

// CreateWorklist claims clusters from a bin onto a new worklist.
func (s *Service) CreateWorklist(ctx context.Context, req workflow.CreateWorklistRequest) (Worklist, error) {
	var out Worklist
	err := s.observe(ctx, "create_worklist", func() error {
		wl, err := s.engine.CreateWorklist(ctx, req)
		out = wl
		return err
	})
	return out, err
}

// CreateChecklist copies clusters from a bin onto a new checklist.
func (s *Service) CreateChecklist(ctx context.Context, req workflow.CreateChecklistRequest) (Checklist, error) {
	var out Checklist
	err := s.observe(ctx, "create_checklist", func() error {
		cl, err := s.engine.CreateChecklist(ctx, req)
		out = cl
		return err
	})
	return out, err
}

// FindWorklists pages through the project's worklists.
func (s *Service) FindWorklists(ctx context.Context, projectID string, pfs workflow.PageFilterSort) ([]Worklist, error) {
	var out []Worklist
	err := s.observe(ctx, "find_worklists", func() error {
		lists, err := s.engine.FindWorklists(ctx, projectID, pfs)
		out = lists
		return err
	})
	return out, err
}

// FindChecklists pages through the project's checklists.
func (s *Service) FindChecklists(ctx context.Context, projectID string, pfs workflow.PageFilterSort) ([]Checklist, error) {
	var out []Checklist
	err := s.observe(ctx, "find_checklists", func() error {
		lists, err := s.engine.FindChecklists(ctx, projectID, pfs)
		out = lists
		return err
	})
	return out, err
}

// GetWorklist looks a worklist up by id.
func (s *Service) GetWorklist(ctx context.Context, worklistID string) (Worklist, error) {
	var out Worklist
	err := s.observe(ctx, "get_worklist", func() error {
		wl, err := s.engine.GetWorklist(ctx, worklistID)
		out = wl
		return err
	})
	return out, err
}

// FindAssignedWork lists the user's in-flight worklists.
func (s *Service) FindAssignedWork(ctx context.Context, projectID, userName string, pfs workflow.PageFilterSort) ([]Worklist, error) {
	var out []Worklist
	err := s.observe(ctx, "find_assigned_work", func() error {
		lists, err := s.engine.FindAssignedWork(ctx, projectID, userName, pfs)
		out = lists
		return err
	})
	return out, err
}

// FindAvailableWork lists unowned worklists open for assignment.
func (s *Service) FindAvailableWork(ctx context.Context, projectID string, pfs workflow.PageFilterSort) ([]Worklist, error) {
	var out []Worklist
	err := s.observe(ctx, "find_available_work", func() error {
		lists, err := s.engine.FindAvailableWork(ctx, projectID, pfs)
		out = lists
		return err
	})
	return out, err
}

// WorklistRecords returns the records claimed by a worklist.
func (s *Service) WorklistRecords(ctx context.Context, worklistID string) ([]TrackingRecord, error) {
	var out []TrackingRecord
	err := s.observe(ctx, "worklist_records", func() error {
		records, err := s.engine.WorklistRecords(ctx, worklistID)
		out = records
		return err
	})
	return out, err
}

// ChecklistRecords returns the records copied onto a checklist.
func (s *Service) ChecklistRecords(ctx context.Context, checklistID string) ([]TrackingRecord, error) {
	var out []TrackingRecord
	err := s.observe(ctx, "checklist_records", func() error {
		records, err := s.engine.ChecklistRecords(ctx, checklistID)
		out = records
		return err
	})
	return out, err
}

// RemoveWorklist releases and deletes a worklist.
func (s *Service) RemoveWorklist(ctx context.Context, worklistID, requester string) error {
	return s.observe(ctx, "remove_worklist", func() error {
		return s.engine.RemoveWorklist(ctx, worklistID, requester)
	})
}

// RemoveChecklist deletes a checklist and its records.
func (s *Service) RemoveChecklist(ctx context.Context, checklistID, requester string) error {
	return s.observe(ctx, "remove_checklist", func() error {
		return s.engine.RemoveChecklist(ctx, checklistID, requester)
	})
}

// PerformWorkflowAction drives the worklist state machine.
func (s *Service) PerformWorkflowAction(ctx context.Context, req workflow.ActionRequest) (Worklist, error) {
	var out Worklist
	err := s.observe(ctx, "perform_workflow_action", func() error {
		wl, err := s.engine.PerformWorkflowAction(ctx, req)
		out = wl
		return err
	})
	return out, err
}

// CreateEpoch adds an editing epoch.
func (s *Service) CreateEpoch(ctx context.Context, projectID, name string, active bool) (WorkflowEpoch, error) {
	var out WorkflowEpoch
	err := s.observe(ctx, "create_epoch", func() error {
		epoch, err := s.engine.CreateEpoch(ctx, projectID, name, active)
		out = epoch
		return err
	})
	return out, err
}

// ActivateEpoch switches the project's active epoch.
func (s *Service) ActivateEpoch(ctx context.Context, projectID, name string) (WorkflowEpoch, error) {
	var out WorkflowEpoch
	err := s.observe(ctx, "activate_epoch", func() error {
		epoch, err := s.engine.ActivateEpoch(ctx, projectID, name)
		out = epoch
		return err
	})
	return out, err
}

// ExecuteAction runs a molecular action.
func (s *Service) ExecuteAction(ctx context.Context, req actions.Request, action actions.Action) (MolecularAction, error) {
	var out MolecularAction
	err := s.observe(ctx, "execute_action", func() error {
		ma, err := s.executor.Execute(ctx, req, action)
		out = ma
		return err
	})
	return out, err
}

// UndoAction reverts a committed molecular action.
func (s *Service) UndoAction(ctx context.Context, req actions.Request, actionID string) error {
	return s.observe(ctx, "undo_action", func() error {
		return s.executor.Undo(ctx, req, actionID)
	})
}

// RedoAction re-applies an undone molecular action.
func (s *Service) RedoAction(ctx context.Context, req actions.Request, actionID string) error {
	return s.observe(ctx, "redo_action", func() error {
		return s.executor.Redo(ctx, req, actionID)
	})
}

// RunAlgorithm executes a batch algorithm with audit logging.
func (s *Service) RunAlgorithm(ctx context.Context, projectID, by string, alg algo.Algorithm) (algo.Summary, error) {
	var out algo.Summary
	err := s.observe(ctx, "run_algorithm", func() error {
		summary, err := s.runner.Run(ctx, projectID, by, alg)
		out = summary
		return err
	})
	return out, err
}

// GenerateConceptReport queues an async report job for a worklist.
func (s *Service) GenerateConceptReport(ctx context.Context, projectID, worklistID, requestedBy string) (reports.Job, error) {
	var out reports.Job
	err := s.observe(ctx, "generate_concept_report", func() error {
		job, err := s.gen.Enqueue(ctx, projectID, worklistID, requestedBy)
		out = job
		return err
	})
	return out, err
}

// FindConceptReports lists stored report names for a worklist.
func (s *Service) FindConceptReports(ctx context.Context, worklistName string) ([]string, error) {
	var out []string
	err := s.observe(ctx, "find_concept_reports", func() error {
		names, err := s.gen.FindReports(ctx, worklistName)
		out = names
		return err
	})
	return out, err
}

// GetConceptReport returns a stored report body.
func (s *Service) GetConceptReport(ctx context.Context, fileName string) ([]byte, error) {
	var out []byte
	err := s.observe(ctx, "get_concept_report", func() error {
		data, err := s.gen.GetReport(ctx, fileName)
		out = data
		return err
	})
	return out, err
}

// RemoveConceptReport deletes a stored report.
func (s *Service) RemoveConceptReport(ctx context.Context, fileName string) error {
	return s.observe(ctx, "remove_concept_report", func() error {
		return s.gen.RemoveReport(ctx, fileName)
	})
}

// LogEntries returns the audit log for a project, most recent last.
func (s *Service) LogEntries(ctx context.Context, projectID string) ([]LogEntry, error) {
	var out []LogEntry
	err := s.observe(ctx, "log_entries", func() error {
		return s.store.View(ctx, func(v domain.TransactionView) error {
			for _, entry := range v.ListLogEntries() {
				if entry.ProjectID == projectID {
					out = append(out, entry)
				}
			}
			return nil
		})
	})
	return out, err
}

// PutTerminology stores terminology metadata.
func (s *Service) PutTerminology(ctx context.Context, term domain.Terminology) (domain.Terminology, error) {
	var out domain.Terminology
	err := s.observe(ctx, "put_terminology", func() error {
		_, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			stored, err := tx.PutTerminology(term)
			if err != nil {
				return err
			}
			out = stored
			return nil
		})
		return err
	})
	return out, err
}

// PutTermType stores term type metadata.
func (s *Service) PutTermType(ctx context.Context, tt domain.TermType) (domain.TermType, error) {
	var out domain.TermType
	err := s.observe(ctx, "put_term_type", func() error {
		_, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			stored, err := tx.PutTermType(tt)
			if err != nil {
				return err
			}
			out = stored
			return nil
		})
		return err
	})
	return out, err
}

// PutLanguage stores language metadata.
func (s *Service) PutLanguage(ctx context.Context, lang domain.Language) (domain.Language, error) {
	var out domain.Language
	err := s.observe(ctx, "put_language", func() error {
		_, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			stored, err := tx.PutLanguage(lang)
			if err != nil {
				return err
			}
			out = stored
			return nil
		})
		return err
	})
	return out, err
}

// PutRelationshipType stores relationship type metadata.
func (s *Service) PutRelationshipType(ctx context.Context, rt domain.RelationshipType) (domain.RelationshipType, error) {
	var out domain.RelationshipType
	err := s.observe(ctx, "put_relationship_type", func() error {
		_, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			stored, err := tx.PutRelationshipType(rt)
			if err != nil {
				return err
			}
			out = stored
			return nil
		})
		return err
	})
	return out, err
}
