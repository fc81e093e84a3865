package memory

import "termcore/pkg/domain"

// view implements domain.TransactionView over one state instance. Every
// returned record is cloned.
type view struct {
	st *state
}

func (v view) FindConcept(id string) (domain.Concept, bool) {
	c, ok := v.st.concepts[id]
	return cloneConcept(c), ok
}

func (v view) ListConcepts() []domain.Concept {
	return sortedValues(v.st.concepts, cloneConcept, func(a, b domain.Concept) bool { return a.ID < b.ID })
}

func (v view) FindAtom(id string) (domain.Atom, bool) {
	a, ok := v.st.atoms[id]
	return cloneAtom(a), ok
}

func (v view) ListAtoms() []domain.Atom {
	return sortedValues(v.st.atoms, cloneAtom, func(a, b domain.Atom) bool { return a.ID < b.ID })
}

func (v view) FindRelationship(id string) (domain.ConceptRelationship, bool) {
	r, ok := v.st.relationships[id]
	return r, ok
}

func (v view) ListRelationships() []domain.ConceptRelationship {
	return sortedValues(v.st.relationships, shallow[domain.ConceptRelationship], func(a, b domain.ConceptRelationship) bool { return a.ID < b.ID })
}

func (v view) FindCode(id string) (domain.Code, bool) {
	c, ok := v.st.codes[id]
	return cloneCode(c), ok
}

func (v view) ListCodes() []domain.Code {
	return sortedValues(v.st.codes, cloneCode, func(a, b domain.Code) bool { return a.ID < b.ID })
}

func (v view) FindDescriptor(id string) (domain.Descriptor, bool) {
	d, ok := v.st.descriptors[id]
	return cloneDescriptor(d), ok
}

func (v view) ListDescriptors() []domain.Descriptor {
	return sortedValues(v.st.descriptors, cloneDescriptor, func(a, b domain.Descriptor) bool { return a.ID < b.ID })
}

func (v view) FindAttribute(id string) (domain.Attribute, bool) {
	a, ok := v.st.attributes[id]
	return a, ok
}

func (v view) ListAttributes() []domain.Attribute {
	return sortedValues(v.st.attributes, shallow[domain.Attribute], func(a, b domain.Attribute) bool { return a.ID < b.ID })
}

func (v view) FindProject(id string) (domain.Project, bool) {
	p, ok := v.st.projects[id]
	return p, ok
}

func (v view) ListProjects() []domain.Project {
	return sortedValues(v.st.projects, shallow[domain.Project], func(a, b domain.Project) bool { return a.ID < b.ID })
}

func (v view) FindWorkflowConfig(id string) (domain.WorkflowConfig, bool) {
	c, ok := v.st.workflowConfigs[id]
	return cloneWorkflowConfig(c), ok
}

func (v view) ListWorkflowConfigs() []domain.WorkflowConfig {
	return sortedValues(v.st.workflowConfigs, cloneWorkflowConfig, func(a, b domain.WorkflowConfig) bool { return a.ID < b.ID })
}

func (v view) FindWorkflowBin(id string) (domain.WorkflowBin, bool) {
	b, ok := v.st.workflowBins[id]
	return cloneWorkflowBin(b), ok
}

func (v view) ListWorkflowBins() []domain.WorkflowBin {
	return sortedValues(v.st.workflowBins, cloneWorkflowBin, func(a, b domain.WorkflowBin) bool {
		if a.Rank != b.Rank {
			return a.Rank < b.Rank
		}
		return a.ID < b.ID
	})
}

func (v view) FindTrackingRecord(id string) (domain.TrackingRecord, bool) {
	r, ok := v.st.trackingRecords[id]
	return cloneTrackingRecord(r), ok
}

func (v view) ListTrackingRecords() []domain.TrackingRecord {
	return sortedValues(v.st.trackingRecords, cloneTrackingRecord, func(a, b domain.TrackingRecord) bool {
		if a.ClusterID != b.ClusterID {
			return a.ClusterID < b.ClusterID
		}
		return a.ID < b.ID
	})
}

func (v view) FindWorklist(id string) (domain.Worklist, bool) {
	w, ok := v.st.worklists[id]
	return w, ok
}

func (v view) ListWorklists() []domain.Worklist {
	return sortedValues(v.st.worklists, shallow[domain.Worklist], func(a, b domain.Worklist) bool { return a.ID < b.ID })
}

func (v view) FindChecklist(id string) (domain.Checklist, bool) {
	c, ok := v.st.checklists[id]
	return c, ok
}

func (v view) ListChecklists() []domain.Checklist {
	return sortedValues(v.st.checklists, shallow[domain.Checklist], func(a, b domain.Checklist) bool { return a.ID < b.ID })
}

func (v view) FindWorkflowEpoch(id string) (domain.WorkflowEpoch, bool) {
	e, ok := v.st.workflowEpochs[id]
	return e, ok
}

func (v view) ListWorkflowEpochs() []domain.WorkflowEpoch {
	return sortedValues(v.st.workflowEpochs, shallow[domain.WorkflowEpoch], func(a, b domain.WorkflowEpoch) bool { return a.ID < b.ID })
}

func (v view) FindMolecularAction(id string) (domain.MolecularAction, bool) {
	m, ok := v.st.molecularActions[id]
	return cloneMolecularAction(m), ok
}

func (v view) ListMolecularActions() []domain.MolecularAction {
	return sortedValues(v.st.molecularActions, cloneMolecularAction, func(a, b domain.MolecularAction) bool {
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

func (v view) ListLogEntries() []domain.LogEntry {
	return append([]domain.LogEntry(nil), v.st.logEntries...)
}

func (v view) FindTerminology(name, version string) (domain.Terminology, bool) {
	t, ok := v.st.terminologies[metadataKey(name, version)]
	return t, ok
}

func (v view) ListTerminologies() []domain.Terminology {
	return sortedValues(v.st.terminologies, shallow[domain.Terminology], func(a, b domain.Terminology) bool {
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.Version < b.Version
	})
}

func (v view) FindTermType(abbreviation, terminology, version string) (domain.TermType, bool) {
	t, ok := v.st.termTypes[metadataKey(abbreviation, terminology, version)]
	return t, ok
}

func (v view) FindLanguage(code, terminology, version string) (domain.Language, bool) {
	l, ok := v.st.languages[metadataKey(code, terminology, version)]
	return l, ok
}

func (v view) FindRelationshipType(abbreviation, terminology, version string) (domain.RelationshipType, bool) {
	r, ok := v.st.relationshipTypes[metadataKey(abbreviation, terminology, version)]
	return r, ok
}

func (v view) ListRelationshipTypes() []domain.RelationshipType {
	return sortedValues(v.st.relationshipTypes, shallow[domain.RelationshipType], func(a, b domain.RelationshipType) bool { return a.Abbreviation < b.Abbreviation })
}

var _ domain.TransactionView = view{}
