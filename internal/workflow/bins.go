package workflow

import (
	"context"
	"fmt"
	"sort"

	"termcore/internal/workflow/query"
	"termcore/pkg/domain"
)

// RegenerateResult summarizes one bin regeneration pass.
type RegenerateResult struct {
	Bins     []domain.WorkflowBin
	Warnings []string
}

// ClearBins removes every bin of the config and every tracking record
// attached to those bins, except records claimed by a worklist, which survive
// so in-flight editing work is never lost.
func (e *Engine) ClearBins(ctx context.Context, projectID, configID string) error {
	_, err := e.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, err := findProject(tx, projectID); err != nil {
			return err
		}
		config, ok := tx.FindWorkflowConfig(configID)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityWorkflowConfig, ID: configID}
		}
		binNames := map[string]bool{}
		for _, bin := range tx.ListWorkflowBins() {
			if bin.ProjectID != projectID || bin.Type != config.Type {
				continue
			}
			binNames[bin.Name] = true
			if err := tx.DeleteWorkflowBin(bin.ID); err != nil {
				return err
			}
		}
		for _, record := range tx.ListTrackingRecords() {
			if record.ProjectID != projectID || !binNames[record.WorkflowBinName] {
				continue
			}
			if record.WorklistName != "" {
				continue
			}
			if record.ChecklistName != "" {
				continue
			}
			if err := tx.DeleteTrackingRecord(record.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("clear bins for config %s: %w", configID, err)
	}
	return nil
}

// RegenerateBins clears and rebuilds every enabled bin of the config in
// definition order. For mutually exclusive configs a cluster is claimed by
// the first definition whose query matches it; later definitions never see
// it. Definitions with malformed queries are skipped with a warning. Each
// definition is materialized in its own transaction, so cancellation leaves
// the bins built so far committed.
func (e *Engine) RegenerateBins(ctx context.Context, projectID, configID string) (RegenerateResult, error) {
	var result RegenerateResult
	if err := e.ClearBins(ctx, projectID, configID); err != nil {
		return result, err
	}

	var config domain.WorkflowConfig
	if err := e.store.View(ctx, func(v domain.TransactionView) error {
		found, ok := v.FindWorkflowConfig(configID)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityWorkflowConfig, ID: configID}
		}
		config = found
		return nil
	}); err != nil {
		return result, err
	}

	claimed := map[string]bool{}
	for rank, def := range config.Definitions {
		if !def.Enabled {
			continue
		}
		expr, err := query.Compile(def.Query, def.QueryType)
		if err != nil {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("bin %s skipped: %v", def.Name, err))
			continue
		}
		bin, newlyClaimed, err := e.regenerateOne(ctx, projectID, config, def, rank, expr, claimed)
		if err != nil {
			return result, err
		}
		if config.MutuallyExclusive {
			for id := range newlyClaimed {
				claimed[id] = true
			}
		}
		result.Bins = append(result.Bins, bin)
	}

	if _, err := e.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		config, ok := tx.FindWorkflowConfig(configID)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityWorkflowConfig, ID: configID}
		}
		config.LastPartitionTime = e.clock()
		if _, err := tx.PutWorkflowConfig(config); err != nil {
			return err
		}
		return appendAudit(tx, projectID, configID, "REGENERATE_BINS", "system",
			fmt.Sprintf("regenerated %d bins (%d warnings)", len(result.Bins), len(result.Warnings)))
	}); err != nil {
		return result, fmt.Errorf("stamp partition time: %w", err)
	}
	return result, nil
}

// regenerateOne materializes a single bin inside one transaction and returns
// the concept ids it claimed.
func (e *Engine) regenerateOne(ctx context.Context, projectID string, config domain.WorkflowConfig, def domain.WorkflowBinDefinition, rank int, expr query.Expr, claimed map[string]bool) (domain.WorkflowBin, map[string]bool, error) {
	var bin domain.WorkflowBin
	newlyClaimed := map[string]bool{}
	_, err := e.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		project, err := findProject(tx, projectID)
		if err != nil {
			return err
		}

		// Records preserved across the clear because a worklist or
		// checklist holds them, keyed by originating concept.
		preserved := map[string]domain.TrackingRecord{}
		for _, record := range tx.ListTrackingRecords() {
			if record.ProjectID != projectID || record.WorkflowBinName != def.Name {
				continue
			}
			for _, conceptID := range record.OrigConceptIDs {
				preserved[conceptID] = record
			}
		}

		var matched []domain.Concept
		for _, concept := range tx.ListConcepts() {
			if claimed[concept.ID] {
				continue
			}
			if query.Match(expr, concept) {
				matched = append(matched, concept)
			}
		}
		sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

		bin = domain.WorkflowBin{
			ProjectID:     projectID,
			Name:          def.Name,
			Description:   def.Description,
			Type:          config.Type,
			Rank:          rank,
			Editable:      def.Editable,
			Enabled:       def.Enabled,
			MinAssignRole: def.MinAssignRole,
			CreationTime:  e.clock(),
		}

		statsAll := map[string]int{}
		statsEditable := map[string]int{}
		for i, concept := range matched {
			if err := checkCancel(ctx, i); err != nil {
				return err
			}
			clusterID := int64(i + 1)
			newlyClaimed[concept.ID] = true
			if record, ok := preserved[concept.ID]; ok {
				record.ClusterID = clusterID
				if _, err := tx.PutTrackingRecord(record); err != nil {
					return err
				}
				statsAll[record.ClusterType]++
				continue
			}
			record := domain.TrackingRecord{
				ProjectID:       projectID,
				Terminology:     project.Terminology,
				Version:         project.Version,
				ClusterID:       clusterID,
				ComponentIDs:    append([]string(nil), concept.AtomIDs...),
				OrigConceptIDs:  []string{concept.ID},
				WorkflowBinName: def.Name,
			}
			stored, err := tx.PutTrackingRecord(record)
			if err != nil {
				return err
			}
			statsAll[stored.ClusterType]++
			statsEditable[stored.ClusterType]++
		}

		for _, clusterType := range sortedKeys(statsAll) {
			bin.Stats = append(bin.Stats, domain.ClusterTypeStats{
				ClusterType: clusterType,
				All:         statsAll[clusterType],
				Editable:    statsEditable[clusterType],
			})
		}
		stored, err := tx.PutWorkflowBin(bin)
		if err != nil {
			return err
		}
		bin = stored
		return nil
	})
	if err != nil {
		return domain.WorkflowBin{}, nil, fmt.Errorf("regenerate bin %s: %w", def.Name, err)
	}
	return bin, newlyClaimed, nil
}

// RegenerateBin rebuilds a single named bin of the config, honoring the
// exclusion claims of every definition ranked before it.
func (e *Engine) RegenerateBin(ctx context.Context, projectID, configID, binName string) (domain.WorkflowBin, error) {
	var config domain.WorkflowConfig
	if err := e.store.View(ctx, func(v domain.TransactionView) error {
		found, ok := v.FindWorkflowConfig(configID)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityWorkflowConfig, ID: configID}
		}
		config = found
		return nil
	}); err != nil {
		return domain.WorkflowBin{}, err
	}

	claimed := map[string]bool{}
	for rank, def := range config.Definitions {
		expr, err := query.Compile(def.Query, def.QueryType)
		if err != nil {
			if def.Name == binName {
				return domain.WorkflowBin{}, fmt.Errorf("regenerate bin %s: %w", binName, err)
			}
			continue
		}
		if def.Name == binName {
			if err := e.removeBin(ctx, projectID, binName); err != nil {
				return domain.WorkflowBin{}, err
			}
			bin, _, err := e.regenerateOne(ctx, projectID, config, def, rank, expr, claimed)
			return bin, err
		}
		if !config.MutuallyExclusive || !def.Enabled {
			continue
		}
		if err := e.store.View(ctx, func(v domain.TransactionView) error {
			for _, concept := range v.ListConcepts() {
				if !claimed[concept.ID] && query.Match(expr, concept) {
					claimed[concept.ID] = true
				}
			}
			return nil
		}); err != nil {
			return domain.WorkflowBin{}, err
		}
	}
	return domain.WorkflowBin{}, domain.NotFoundError{Entity: domain.EntityWorkflowBin, ID: binName}
}

// GetWorkflowBins returns the project's materialized bins in rank order,
// restricted to one category when binType is non-empty.
func (e *Engine) GetWorkflowBins(ctx context.Context, projectID string, binType domain.WorkflowBinType) ([]domain.WorkflowBin, error) {
	var out []domain.WorkflowBin
	err := e.store.View(ctx, func(v domain.TransactionView) error {
		if _, err := findProject(v, projectID); err != nil {
			return err
		}
		for _, bin := range v.ListWorkflowBins() {
			if bin.ProjectID != projectID {
				continue
			}
			if binType != "" && bin.Type != binType {
				continue
			}
			out = append(out, bin)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	return out, nil
}

// BinRecords returns the tracking records attached to the named bin in
// cluster order.
func (e *Engine) BinRecords(ctx context.Context, projectID, binName string) ([]domain.TrackingRecord, error) {
	var out []domain.TrackingRecord
	err := e.store.View(ctx, func(v domain.TransactionView) error {
		found := false
		for _, bin := range v.ListWorkflowBins() {
			if bin.ProjectID == projectID && bin.Name == binName {
				found = true
				break
			}
		}
		if !found {
			return domain.NotFoundError{Entity: domain.EntityWorkflowBin, ID: binName}
		}
		for _, record := range v.ListTrackingRecords() {
			if record.ProjectID == projectID && record.WorkflowBinName == binName {
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

func (e *Engine) removeBin(ctx context.Context, projectID, binName string) error {
	_, err := e.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		for _, bin := range tx.ListWorkflowBins() {
			if bin.ProjectID == projectID && bin.Name == binName {
				if err := tx.DeleteWorkflowBin(bin.ID); err != nil {
					return err
				}
			}
		}
		for _, record := range tx.ListTrackingRecords() {
			if record.ProjectID != projectID || record.WorkflowBinName != binName {
				continue
			}
			if record.WorklistName != "" || record.ChecklistName != "" {
				continue
			}
			if err := tx.DeleteTrackingRecord(record.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("remove bin %s: %w", binName, err)
	}
	return nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
