package domain

import (
	"context"
	"encoding/json"
)

// TransactionView is the full read surface of the store. All returned values
// are deep copies; mutating them does not affect stored state.
type TransactionView interface {
	RuleView

	ListConcepts() []Concept
	FindAtom(id string) (Atom, bool)
	ListAtoms() []Atom
	FindRelationship(id string) (ConceptRelationship, bool)
	FindCode(id string) (Code, bool)
	ListCodes() []Code
	FindDescriptor(id string) (Descriptor, bool)
	ListDescriptors() []Descriptor
	FindAttribute(id string) (Attribute, bool)
	ListAttributes() []Attribute

	FindProject(id string) (Project, bool)
	ListProjects() []Project
	FindWorkflowConfig(id string) (WorkflowConfig, bool)
	ListWorkflowConfigs() []WorkflowConfig
	FindWorkflowBin(id string) (WorkflowBin, bool)
	ListWorkflowBins() []WorkflowBin
	FindTrackingRecord(id string) (TrackingRecord, bool)
	ListTrackingRecords() []TrackingRecord
	ListWorklists() []Worklist
	FindChecklist(id string) (Checklist, bool)
	ListChecklists() []Checklist
	FindWorkflowEpoch(id string) (WorkflowEpoch, bool)
	FindMolecularAction(id string) (MolecularAction, bool)
	ListMolecularActions() []MolecularAction
	ListLogEntries() []LogEntry

	FindTerminology(name, version string) (Terminology, bool)
	ListTerminologies() []Terminology
	FindTermType(abbreviation, terminology, version string) (TermType, bool)
	FindLanguage(code, terminology, version string) (Language, bool)
	ListRelationshipTypes() []RelationshipType
}

// Transaction is the mutable surface handed to RunInTransaction callbacks.
// Put creates or updates by ID, assigning a fresh ID and timestamps when the
// ID is empty. Deletes fail with NotFoundError for missing records. Every
// mutation is recorded as a Change with before/after snapshots.
type Transaction interface {
	TransactionView

	// Changes returns a copy of the changes recorded so far in this
	// transaction, in order.
	Changes() []Change

	PutConcept(Concept) (Concept, error)
	DeleteConcept(id string) error
	PutAtom(Atom) (Atom, error)
	DeleteAtom(id string) error
	PutRelationship(ConceptRelationship) (ConceptRelationship, error)
	DeleteRelationship(id string) error
	PutCode(Code) (Code, error)
	DeleteCode(id string) error
	PutDescriptor(Descriptor) (Descriptor, error)
	DeleteDescriptor(id string) error
	PutAttribute(Attribute) (Attribute, error)
	DeleteAttribute(id string) error

	PutProject(Project) (Project, error)
	DeleteProject(id string) error
	PutWorkflowConfig(WorkflowConfig) (WorkflowConfig, error)
	DeleteWorkflowConfig(id string) error
	PutWorkflowBin(WorkflowBin) (WorkflowBin, error)
	DeleteWorkflowBin(id string) error
	PutTrackingRecord(TrackingRecord) (TrackingRecord, error)
	DeleteTrackingRecord(id string) error
	PutWorklist(Worklist) (Worklist, error)
	DeleteWorklist(id string) error
	PutChecklist(Checklist) (Checklist, error)
	DeleteChecklist(id string) error
	PutWorkflowEpoch(WorkflowEpoch) (WorkflowEpoch, error)
	PutMolecularAction(MolecularAction) (MolecularAction, error)
	AppendLogEntry(LogEntry) (LogEntry, error)

	PutTerminology(Terminology) (Terminology, error)
	PutTermType(TermType) (TermType, error)
	PutLanguage(Language) (Language, error)
	PutRelationshipType(RelationshipType) (RelationshipType, error)
}

// Store runs callbacks against the content state. RunInTransaction clones the
// state, applies the callback, evaluates rules over the recorded changes, and
// commits only when the callback succeeds and no blocking violation fires.
type Store interface {
	RunInTransaction(ctx context.Context, fn func(tx Transaction) error) ([]Change, error)
	View(ctx context.Context, fn func(view TransactionView) error) error
}

// Snapshot is a portable JSON image of the whole store, one raw JSON array
// per entity bucket.
type Snapshot struct {
	Version int                        `json:"version"`
	Buckets map[string]json.RawMessage `json:"buckets"`
}

// PersistentStore extends Store with durability and state transfer.
type PersistentStore interface {
	Store
	ExportState(ctx context.Context) (Snapshot, error)
	ImportState(ctx context.Context, snapshot Snapshot) error
	Close() error
}
