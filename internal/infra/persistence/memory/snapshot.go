package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"termcore/pkg/domain"
)

// snapshotVersion guards against loading snapshots written by an
// incompatible layout.
const snapshotVersion = 1

// ExportState renders the whole store as one JSON snapshot, one array per
// entity bucket in deterministic order.
func (s *Store) ExportState(ctx context.Context) (domain.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return domain.Snapshot{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.state
	buckets := map[string]json.RawMessage{}
	put := func(entity domain.EntityType, value any) error {
		raw, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("marshal %s bucket: %w", entity, err)
		}
		buckets[string(entity)] = raw
		return nil
	}
	steps := []struct {
		entity domain.EntityType
		value  any
	}{
		{domain.EntityConcept, sortedByKey(st.concepts)},
		{domain.EntityAtom, sortedByKey(st.atoms)},
		{domain.EntityRelationship, sortedByKey(st.relationships)},
		{domain.EntityCode, sortedByKey(st.codes)},
		{domain.EntityDescriptor, sortedByKey(st.descriptors)},
		{domain.EntityAttribute, sortedByKey(st.attributes)},
		{domain.EntityProject, sortedByKey(st.projects)},
		{domain.EntityWorkflowConfig, sortedByKey(st.workflowConfigs)},
		{domain.EntityWorkflowBin, sortedByKey(st.workflowBins)},
		{domain.EntityTrackingRecord, sortedByKey(st.trackingRecords)},
		{domain.EntityWorklist, sortedByKey(st.worklists)},
		{domain.EntityChecklist, sortedByKey(st.checklists)},
		{domain.EntityWorkflowEpoch, sortedByKey(st.workflowEpochs)},
		{domain.EntityMolecularAction, sortedByKey(st.molecularActions)},
		{domain.EntityLogEntry, st.logEntries},
		{domain.EntityTerminology, sortedByKey(st.terminologies)},
		{domain.EntityTermType, sortedByKey(st.termTypes)},
		{domain.EntityLanguage, sortedByKey(st.languages)},
		{domain.EntityRelationshipType, sortedByKey(st.relationshipTypes)},
	}
	for _, step := range steps {
		if err := put(step.entity, step.value); err != nil {
			return domain.Snapshot{}, err
		}
	}
	return domain.Snapshot{Version: snapshotVersion, Buckets: buckets}, nil
}

// ImportState replaces the store contents with the snapshot's.
func (s *Store) ImportState(ctx context.Context, snapshot domain.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if snapshot.Version != snapshotVersion {
		return fmt.Errorf("unsupported snapshot version %d", snapshot.Version)
	}
	st := newState()
	if err := loadBucket(snapshot, domain.EntityConcept, st.concepts, func(c domain.Concept) string { return c.ID }); err != nil {
		return err
	}
	if err := loadBucket(snapshot, domain.EntityAtom, st.atoms, func(a domain.Atom) string { return a.ID }); err != nil {
		return err
	}
	if err := loadBucket(snapshot, domain.EntityRelationship, st.relationships, func(r domain.ConceptRelationship) string { return r.ID }); err != nil {
		return err
	}
	if err := loadBucket(snapshot, domain.EntityCode, st.codes, func(c domain.Code) string { return c.ID }); err != nil {
		return err
	}
	if err := loadBucket(snapshot, domain.EntityDescriptor, st.descriptors, func(d domain.Descriptor) string { return d.ID }); err != nil {
		return err
	}
	if err := loadBucket(snapshot, domain.EntityAttribute, st.attributes, func(a domain.Attribute) string { return a.ID }); err != nil {
		return err
	}
	if err := loadBucket(snapshot, domain.EntityProject, st.projects, func(p domain.Project) string { return p.ID }); err != nil {
		return err
	}
	if err := loadBucket(snapshot, domain.EntityWorkflowConfig, st.workflowConfigs, func(c domain.WorkflowConfig) string { return c.ID }); err != nil {
		return err
	}
	if err := loadBucket(snapshot, domain.EntityWorkflowBin, st.workflowBins, func(b domain.WorkflowBin) string { return b.ID }); err != nil {
		return err
	}
	if err := loadBucket(snapshot, domain.EntityTrackingRecord, st.trackingRecords, func(r domain.TrackingRecord) string { return r.ID }); err != nil {
		return err
	}
	if err := loadBucket(snapshot, domain.EntityWorklist, st.worklists, func(w domain.Worklist) string { return w.ID }); err != nil {
		return err
	}
	if err := loadBucket(snapshot, domain.EntityChecklist, st.checklists, func(c domain.Checklist) string { return c.ID }); err != nil {
		return err
	}
	if err := loadBucket(snapshot, domain.EntityWorkflowEpoch, st.workflowEpochs, func(e domain.WorkflowEpoch) string { return e.ID }); err != nil {
		return err
	}
	if err := loadBucket(snapshot, domain.EntityMolecularAction, st.molecularActions, func(m domain.MolecularAction) string { return m.ID }); err != nil {
		return err
	}
	if raw, ok := snapshot.Buckets[string(domain.EntityLogEntry)]; ok {
		if err := json.Unmarshal(raw, &st.logEntries); err != nil {
			return fmt.Errorf("unmarshal %s bucket: %w", domain.EntityLogEntry, err)
		}
	}
	if err := loadBucket(snapshot, domain.EntityTerminology, st.terminologies, func(t domain.Terminology) string { return metadataKey(t.Name, t.Version) }); err != nil {
		return err
	}
	if err := loadBucket(snapshot, domain.EntityTermType, st.termTypes, func(t domain.TermType) string { return metadataKey(t.Abbreviation, t.Terminology, t.Version) }); err != nil {
		return err
	}
	if err := loadBucket(snapshot, domain.EntityLanguage, st.languages, func(l domain.Language) string { return metadataKey(l.Code, l.Terminology, l.Version) }); err != nil {
		return err
	}
	if err := loadBucket(snapshot, domain.EntityRelationshipType, st.relationshipTypes, func(r domain.RelationshipType) string { return metadataKey(r.Abbreviation, r.Terminology, r.Version) }); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
	return nil
}

// Close satisfies domain.PersistentStore; the in-memory store holds no
// external resources.
func (s *Store) Close() error { return nil }

var _ domain.PersistentStore = (*Store)(nil)

func sortedByKey[T any](m map[string]T) []T {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]T, 0, len(m))
	for _, k := range keys {
		out = append(out, m[k])
	}
	return out
}

func loadBucket[T any](snapshot domain.Snapshot, entity domain.EntityType, dst map[string]T, key func(T) string) error {
	raw, ok := snapshot.Buckets[string(entity)]
	if !ok {
		return nil
	}
	var records []T
	if err := json.Unmarshal(raw, &records); err != nil {
		return fmt.Errorf("unmarshal %s bucket: %w", entity, err)
	}
	for _, rec := range records {
		dst[key(rec)] = rec
	}
	return nil
}
