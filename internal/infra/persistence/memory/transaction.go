package memory

import (
	"fmt"

	"termcore/pkg/domain"
)

// transaction implements domain.Transaction over a state clone, recording a
// Change with before/after snapshots for every mutation.
type transaction struct {
	view
	store   *Store
	changes []domain.Change
}

// Changes returns a copy of the changes recorded so far.
func (tx *transaction) Changes() []domain.Change {
	return append([]domain.Change(nil), tx.changes...)
}

type basePtr[T any] interface {
	*T
	GetBase() *domain.Base
}

func putIn[T any, PT basePtr[T]](tx *transaction, entity domain.EntityType, m map[string]T, rec T, cp func(T) T) (T, error) {
	var zero T
	rec = cp(rec)
	base := PT(&rec).GetBase()
	var before *T
	if base.ID != "" {
		if existing, ok := m[base.ID]; ok {
			prior := cp(existing)
			before = &prior
			base.CreatedAt = PT(&prior).GetBase().CreatedAt
		}
	}
	now := tx.store.clock()
	if base.ID == "" {
		base.ID = tx.store.idgen()
	}
	if before == nil {
		base.CreatedAt = now
	}
	base.UpdatedAt = now
	var beforeAny any
	if before != nil {
		beforeAny = before
	}
	if err := tx.record(entity, base.ID, beforeAny, &rec); err != nil {
		return zero, err
	}
	m[base.ID] = cp(rec)
	return rec, nil
}

func deleteFrom[T any](tx *transaction, entity domain.EntityType, m map[string]T, id string, cp func(T) T) error {
	existing, ok := m[id]
	if !ok {
		return domain.NotFoundError{Entity: entity, ID: id}
	}
	prior := cp(existing)
	if err := tx.record(entity, id, &prior, nil); err != nil {
		return err
	}
	delete(m, id)
	return nil
}

func (tx *transaction) record(entity domain.EntityType, id string, before, after any) error {
	change := domain.Change{
		Entity:   entity,
		ObjectID: id,
		Before:   domain.UndefinedChangePayload(),
		After:    domain.UndefinedChangePayload(),
	}
	switch {
	case after == nil:
		change.Action = domain.ActionDelete
	case before == nil:
		change.Action = domain.ActionCreate
	default:
		change.Action = domain.ActionUpdate
	}
	if before != nil {
		payload, err := domain.NewChangePayloadFromValue(before)
		if err != nil {
			return fmt.Errorf("snapshot %s before state: %w", entity, err)
		}
		change.Before = payload
	}
	if after != nil {
		payload, err := domain.NewChangePayloadFromValue(after)
		if err != nil {
			return fmt.Errorf("snapshot %s after state: %w", entity, err)
		}
		change.After = payload
	}
	tx.changes = append(tx.changes, change)
	return nil
}

func (tx *transaction) PutConcept(c domain.Concept) (domain.Concept, error) {
	return putIn(tx, domain.EntityConcept, tx.st.concepts, c, cloneConcept)
}

func (tx *transaction) DeleteConcept(id string) error {
	return deleteFrom(tx, domain.EntityConcept, tx.st.concepts, id, cloneConcept)
}

func (tx *transaction) PutAtom(a domain.Atom) (domain.Atom, error) {
	return putIn(tx, domain.EntityAtom, tx.st.atoms, a, cloneAtom)
}

func (tx *transaction) DeleteAtom(id string) error {
	return deleteFrom(tx, domain.EntityAtom, tx.st.atoms, id, cloneAtom)
}

func (tx *transaction) PutRelationship(r domain.ConceptRelationship) (domain.ConceptRelationship, error) {
	return putIn(tx, domain.EntityRelationship, tx.st.relationships, r, shallow[domain.ConceptRelationship])
}

func (tx *transaction) DeleteRelationship(id string) error {
	return deleteFrom(tx, domain.EntityRelationship, tx.st.relationships, id, shallow[domain.ConceptRelationship])
}

func (tx *transaction) PutCode(c domain.Code) (domain.Code, error) {
	return putIn(tx, domain.EntityCode, tx.st.codes, c, cloneCode)
}

func (tx *transaction) DeleteCode(id string) error {
	return deleteFrom(tx, domain.EntityCode, tx.st.codes, id, cloneCode)
}

func (tx *transaction) PutDescriptor(d domain.Descriptor) (domain.Descriptor, error) {
	return putIn(tx, domain.EntityDescriptor, tx.st.descriptors, d, cloneDescriptor)
}

func (tx *transaction) DeleteDescriptor(id string) error {
	return deleteFrom(tx, domain.EntityDescriptor, tx.st.descriptors, id, cloneDescriptor)
}

func (tx *transaction) PutAttribute(a domain.Attribute) (domain.Attribute, error) {
	return putIn(tx, domain.EntityAttribute, tx.st.attributes, a, shallow[domain.Attribute])
}

func (tx *transaction) DeleteAttribute(id string) error {
	return deleteFrom(tx, domain.EntityAttribute, tx.st.attributes, id, shallow[domain.Attribute])
}

func (tx *transaction) PutProject(p domain.Project) (domain.Project, error) {
	return putIn(tx, domain.EntityProject, tx.st.projects, p, shallow[domain.Project])
}

func (tx *transaction) DeleteProject(id string) error {
	return deleteFrom(tx, domain.EntityProject, tx.st.projects, id, shallow[domain.Project])
}

func (tx *transaction) PutWorkflowConfig(c domain.WorkflowConfig) (domain.WorkflowConfig, error) {
	return putIn(tx, domain.EntityWorkflowConfig, tx.st.workflowConfigs, c, cloneWorkflowConfig)
}

func (tx *transaction) DeleteWorkflowConfig(id string) error {
	return deleteFrom(tx, domain.EntityWorkflowConfig, tx.st.workflowConfigs, id, cloneWorkflowConfig)
}

func (tx *transaction) PutWorkflowBin(b domain.WorkflowBin) (domain.WorkflowBin, error) {
	return putIn(tx, domain.EntityWorkflowBin, tx.st.workflowBins, b, cloneWorkflowBin)
}

func (tx *transaction) DeleteWorkflowBin(id string) error {
	return deleteFrom(tx, domain.EntityWorkflowBin, tx.st.workflowBins, id, cloneWorkflowBin)
}

func (tx *transaction) PutTrackingRecord(r domain.TrackingRecord) (domain.TrackingRecord, error) {
	return putIn(tx, domain.EntityTrackingRecord, tx.st.trackingRecords, r, cloneTrackingRecord)
}

func (tx *transaction) DeleteTrackingRecord(id string) error {
	return deleteFrom(tx, domain.EntityTrackingRecord, tx.st.trackingRecords, id, cloneTrackingRecord)
}

func (tx *transaction) PutWorklist(w domain.Worklist) (domain.Worklist, error) {
	return putIn(tx, domain.EntityWorklist, tx.st.worklists, w, shallow[domain.Worklist])
}

func (tx *transaction) DeleteWorklist(id string) error {
	return deleteFrom(tx, domain.EntityWorklist, tx.st.worklists, id, shallow[domain.Worklist])
}

func (tx *transaction) PutChecklist(c domain.Checklist) (domain.Checklist, error) {
	return putIn(tx, domain.EntityChecklist, tx.st.checklists, c, shallow[domain.Checklist])
}

func (tx *transaction) DeleteChecklist(id string) error {
	return deleteFrom(tx, domain.EntityChecklist, tx.st.checklists, id, shallow[domain.Checklist])
}

func (tx *transaction) PutWorkflowEpoch(e domain.WorkflowEpoch) (domain.WorkflowEpoch, error) {
	return putIn(tx, domain.EntityWorkflowEpoch, tx.st.workflowEpochs, e, shallow[domain.WorkflowEpoch])
}

func (tx *transaction) PutMolecularAction(m domain.MolecularAction) (domain.MolecularAction, error) {
	return putIn(tx, domain.EntityMolecularAction, tx.st.molecularActions, m, cloneMolecularAction)
}

func (tx *transaction) AppendLogEntry(entry domain.LogEntry) (domain.LogEntry, error) {
	now := tx.store.clock()
	if entry.ID == "" {
		entry.ID = tx.store.idgen()
	}
	entry.CreatedAt = now
	entry.UpdatedAt = now
	if err := tx.record(domain.EntityLogEntry, entry.ID, nil, &entry); err != nil {
		return domain.LogEntry{}, err
	}
	tx.st.logEntries = append(tx.st.logEntries, entry)
	return entry, nil
}

func (tx *transaction) PutTerminology(t domain.Terminology) (domain.Terminology, error) {
	key := metadataKey(t.Name, t.Version)
	return putKeyed(tx, domain.EntityTerminology, tx.st.terminologies, key, t)
}

func (tx *transaction) PutTermType(t domain.TermType) (domain.TermType, error) {
	key := metadataKey(t.Abbreviation, t.Terminology, t.Version)
	return putKeyed(tx, domain.EntityTermType, tx.st.termTypes, key, t)
}

func (tx *transaction) PutLanguage(l domain.Language) (domain.Language, error) {
	key := metadataKey(l.Code, l.Terminology, l.Version)
	return putKeyed(tx, domain.EntityLanguage, tx.st.languages, key, l)
}

func (tx *transaction) PutRelationshipType(r domain.RelationshipType) (domain.RelationshipType, error) {
	key := metadataKey(r.Abbreviation, r.Terminology, r.Version)
	return putKeyed(tx, domain.EntityRelationshipType, tx.st.relationshipTypes, key, r)
}

// putKeyed stores metadata under a composite natural key instead of the id.
func putKeyed[T any, PT basePtr[T]](tx *transaction, entity domain.EntityType, m map[string]T, key string, rec T) (T, error) {
	var zero T
	base := PT(&rec).GetBase()
	var before *T
	if existing, ok := m[key]; ok {
		prior := existing
		before = &prior
		base.ID = PT(&prior).GetBase().ID
		base.CreatedAt = PT(&prior).GetBase().CreatedAt
	}
	now := tx.store.clock()
	if base.ID == "" {
		base.ID = tx.store.idgen()
	}
	if before == nil {
		base.CreatedAt = now
	}
	base.UpdatedAt = now
	var beforeAny any
	if before != nil {
		beforeAny = before
	}
	if err := tx.record(entity, base.ID, beforeAny, &rec); err != nil {
		return zero, err
	}
	m[key] = rec
	return rec, nil
}

var _ domain.Transaction = (*transaction)(nil)
