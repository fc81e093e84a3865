package workflow

import (
	"context"
	"fmt"
	"math/rand"
	"sort"

	"termcore/pkg/domain"
)

// CreateWorklistRequest describes a worklist pull from a bin.
type CreateWorklistRequest struct {
	ProjectID   string
	BinName     string
	ClusterType string
	MaxClusters int
	Requester   string
	Role        domain.UserRole
	Description string
}

// CreateWorklist claims up to MaxClusters unclaimed tracking records from the
// named bin and binds them to a new worklist. Claiming is a conditional
// update inside one store transaction: a record already carrying a worklist
// name is never taken, and concurrent claims are serialized by the store, so
// no record ever lands on two worklists.
func (e *Engine) CreateWorklist(ctx context.Context, req CreateWorklistRequest) (domain.Worklist, error) {
	if req.MaxClusters <= 0 {
		return domain.Worklist{}, domain.Validationf("max clusters must be positive, got %d", req.MaxClusters)
	}
	var worklist domain.Worklist
	_, err := e.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, err := findProject(tx, req.ProjectID); err != nil {
			return err
		}
		epoch, ok := activeEpoch(tx, req.ProjectID)
		if !ok {
			return domain.Validationf("project %s has no active workflow epoch", req.ProjectID)
		}

		var candidates []domain.TrackingRecord
		for _, record := range tx.ListTrackingRecords() {
			if record.ProjectID != req.ProjectID || record.WorkflowBinName != req.BinName {
				continue
			}
			if record.WorklistName != "" {
				continue
			}
			if req.ClusterType != "" && record.ClusterType != req.ClusterType {
				continue
			}
			candidates = append(candidates, record)
		}
		if len(candidates) == 0 {
			return domain.Validationf("bin %s has no available clusters", req.BinName)
		}
		sort.Slice(candidates, func(i, j int) bool { return candidates[i].ClusterID < candidates[j].ClusterID })
		if len(candidates) > req.MaxClusters {
			candidates = candidates[:req.MaxClusters]
		}

		number := 1
		for _, existing := range tx.ListWorklists() {
			if existing.ProjectID == req.ProjectID && existing.Epoch == epoch.Name &&
				existing.WorkflowBinName == req.BinName && existing.Number >= number {
				number = existing.Number + 1
			}
		}
		name := fmt.Sprintf("wrk%s_%s_%d", epoch.Name, req.BinName, number)

		stored, err := tx.PutWorklist(domain.Worklist{
			ProjectID:       req.ProjectID,
			Name:            name,
			Description:     req.Description,
			WorkflowBinName: req.BinName,
			ClusterType:     req.ClusterType,
			Epoch:           epoch.Name,
			Number:          number,
			Status:          domain.WorklistNew,
		})
		if err != nil {
			return err
		}
		worklist = stored

		for _, record := range candidates {
			record.WorklistName = name
			if _, err := tx.PutTrackingRecord(record); err != nil {
				return err
			}
		}
		return appendAudit(tx, req.ProjectID, stored.ID, "CREATE_WORKLIST", req.Requester,
			fmt.Sprintf("created worklist %s with %d clusters from bin %s", name, len(candidates), req.BinName))
	})
	if err != nil {
		return domain.Worklist{}, fmt.Errorf("create worklist from bin %s: %w", req.BinName, err)
	}
	return worklist, nil
}

// CreateChecklistRequest describes a checklist pull from a bin.
type CreateChecklistRequest struct {
	ProjectID         string
	BinName           string
	Name              string
	Randomize         bool
	ExcludeOnWorklist bool
	MaxClusters       int
	Seed              int64
	Requester         string
	Description       string
}

// CreateChecklist copies up to MaxClusters cluster references from the named
// bin into a new checklist. Checklists never claim records: the source
// records stay available for worklists. Randomize shuffles candidate order
// with the request seed; ExcludeOnWorklist drops clusters already claimed by
// a worklist.
func (e *Engine) CreateChecklist(ctx context.Context, req CreateChecklistRequest) (domain.Checklist, error) {
	if req.MaxClusters <= 0 {
		return domain.Checklist{}, domain.Validationf("max clusters must be positive, got %d", req.MaxClusters)
	}
	if req.Name == "" {
		return domain.Checklist{}, domain.Validationf("checklist name is required")
	}
	var checklist domain.Checklist
	_, err := e.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, err := findProject(tx, req.ProjectID); err != nil {
			return err
		}
		for _, existing := range tx.ListChecklists() {
			if existing.ProjectID == req.ProjectID && existing.Name == req.Name {
				return domain.Validationf("checklist %s already exists", req.Name)
			}
		}

		var candidates []domain.TrackingRecord
		for _, record := range tx.ListTrackingRecords() {
			if record.ProjectID != req.ProjectID || record.WorkflowBinName != req.BinName {
				continue
			}
			if req.ExcludeOnWorklist && record.WorklistName != "" {
				continue
			}
			candidates = append(candidates, record)
		}
		sort.Slice(candidates, func(i, j int) bool { return candidates[i].ClusterID < candidates[j].ClusterID })
		if req.Randomize {
			rng := rand.New(rand.NewSource(req.Seed))
			rng.Shuffle(len(candidates), func(i, j int) {
				candidates[i], candidates[j] = candidates[j], candidates[i]
			})
		}
		if len(candidates) > req.MaxClusters {
			candidates = candidates[:req.MaxClusters]
		}

		stored, err := tx.PutChecklist(domain.Checklist{
			ProjectID:       req.ProjectID,
			Name:            req.Name,
			Description:     req.Description,
			WorkflowBinName: req.BinName,
		})
		if err != nil {
			return err
		}
		checklist = stored

		for i, record := range candidates {
			if err := checkCancel(ctx, i); err != nil {
				return err
			}
			copyRecord := domain.TrackingRecord{
				ProjectID:      record.ProjectID,
				Terminology:    record.Terminology,
				Version:        record.Version,
				ClusterID:      int64(i + 1),
				ClusterType:    record.ClusterType,
				ComponentIDs:   append([]string(nil), record.ComponentIDs...),
				OrigConceptIDs: append([]string(nil), record.OrigConceptIDs...),
				ChecklistName:  req.Name,
			}
			if _, err := tx.PutTrackingRecord(copyRecord); err != nil {
				return err
			}
		}
		return appendAudit(tx, req.ProjectID, stored.ID, "CREATE_CHECKLIST", req.Requester,
			fmt.Sprintf("created checklist %s with %d clusters from bin %s", req.Name, len(candidates), req.BinName))
	})
	if err != nil {
		return domain.Checklist{}, fmt.Errorf("create checklist from bin %s: %w", req.BinName, err)
	}
	return checklist, nil
}

// FindWorklists returns the project's worklists after paging, filtering, and
// sorting.
func (e *Engine) FindWorklists(ctx context.Context, projectID string, pfs PageFilterSort) ([]domain.Worklist, error) {
	var out []domain.Worklist
	err := e.store.View(ctx, func(v domain.TransactionView) error {
		for _, wl := range v.ListWorklists() {
			if wl.ProjectID == projectID {
				out = append(out, wl)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return applyToWorklists(out, pfs)
}

// FindChecklists returns the project's checklists after paging, filtering,
// and sorting.
func (e *Engine) FindChecklists(ctx context.Context, projectID string, pfs PageFilterSort) ([]domain.Checklist, error) {
	var out []domain.Checklist
	err := e.store.View(ctx, func(v domain.TransactionView) error {
		for _, cl := range v.ListChecklists() {
			if cl.ProjectID == projectID {
				out = append(out, cl)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return applyToChecklists(out, pfs)
}

// GetWorklist looks a worklist up by id.
func (e *Engine) GetWorklist(ctx context.Context, worklistID string) (domain.Worklist, error) {
	var out domain.Worklist
	err := e.store.View(ctx, func(v domain.TransactionView) error {
		wl, ok := v.FindWorklist(worklistID)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityWorklist, ID: worklistID}
		}
		out = wl
		return nil
	})
	return out, err
}

// FindAssignedWork returns the project's worklists owned by the user that
// have not reached a terminal state.
func (e *Engine) FindAssignedWork(ctx context.Context, projectID, userName string, pfs PageFilterSort) ([]domain.Worklist, error) {
	var out []domain.Worklist
	err := e.store.View(ctx, func(v domain.TransactionView) error {
		for _, wl := range v.ListWorklists() {
			if wl.ProjectID != projectID || wl.Owner != userName {
				continue
			}
			if wl.Status == domain.WorklistPublished || wl.Status == domain.WorklistFinished {
				continue
			}
			out = append(out, wl)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return applyToWorklists(out, pfs)
}

// FindAvailableWork returns the project's unowned worklists still open for
// assignment.
func (e *Engine) FindAvailableWork(ctx context.Context, projectID string, pfs PageFilterSort) ([]domain.Worklist, error) {
	var out []domain.Worklist
	err := e.store.View(ctx, func(v domain.TransactionView) error {
		for _, wl := range v.ListWorklists() {
			if wl.ProjectID == projectID && wl.Owner == "" && wl.Status == domain.WorklistNew {
				out = append(out, wl)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return applyToWorklists(out, pfs)
}

// WorklistRecords returns the tracking records claimed by the worklist in
// cluster order.
func (e *Engine) WorklistRecords(ctx context.Context, worklistID string) ([]domain.TrackingRecord, error) {
	var out []domain.TrackingRecord
	err := e.store.View(ctx, func(v domain.TransactionView) error {
		wl, ok := v.FindWorklist(worklistID)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityWorklist, ID: worklistID}
		}
		for _, record := range v.ListTrackingRecords() {
			if record.WorklistName == wl.Name {
				out = append(out, record)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClusterID < out[j].ClusterID })
	return out, nil
}

// ChecklistRecords returns the tracking records copied onto the checklist in
// cluster order.
func (e *Engine) ChecklistRecords(ctx context.Context, checklistID string) ([]domain.TrackingRecord, error) {
	var out []domain.TrackingRecord
	err := e.store.View(ctx, func(v domain.TransactionView) error {
		cl, ok := v.FindChecklist(checklistID)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityChecklist, ID: checklistID}
		}
		for _, record := range v.ListTrackingRecords() {
			if record.ChecklistName == cl.Name {
				out = append(out, record)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClusterID < out[j].ClusterID })
	return out, nil
}

// RemoveWorklist releases every record the worklist claimed and deletes it.
func (e *Engine) RemoveWorklist(ctx context.Context, worklistID, requester string) error {
	_, err := e.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		wl, ok := tx.FindWorklist(worklistID)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityWorklist, ID: worklistID}
		}
		for _, record := range tx.ListTrackingRecords() {
			if record.WorklistName != wl.Name {
				continue
			}
			record.WorklistName = ""
			if _, err := tx.PutTrackingRecord(record); err != nil {
				return err
			}
		}
		if err := tx.DeleteWorklist(wl.ID); err != nil {
			return err
		}
		return appendAudit(tx, wl.ProjectID, wl.ID, "REMOVE_WORKLIST", requester,
			fmt.Sprintf("removed worklist %s", wl.Name))
	})
	if err != nil {
		return fmt.Errorf("remove worklist %s: %w", worklistID, err)
	}
	return nil
}

// RemoveChecklist deletes the checklist and its copied records.
func (e *Engine) RemoveChecklist(ctx context.Context, checklistID, requester string) error {
	_, err := e.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		cl, ok := tx.FindChecklist(checklistID)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityChecklist, ID: checklistID}
		}
		for _, record := range tx.ListTrackingRecords() {
			if record.ChecklistName != cl.Name {
				continue
			}
			if err := tx.DeleteTrackingRecord(record.ID); err != nil {
				return err
			}
		}
		if err := tx.DeleteChecklist(cl.ID); err != nil {
			return err
		}
		return appendAudit(tx, cl.ProjectID, cl.ID, "REMOVE_CHECKLIST", requester,
			fmt.Sprintf("removed checklist %s", cl.Name))
	})
	if err != nil {
		return fmt.Errorf("remove checklist %s: %w", checklistID, err)
	}
	return nil
}
