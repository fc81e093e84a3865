// Package domain defines the persistent entities, change primitives, rule
// evaluation contracts, and persistence interfaces for termcore.
package domain

import "time"

// EntityType identifies the type of record stored in the content domain.
type EntityType string

// Entity type identifiers used in Change records and persistence buckets.
const (
	EntityConcept          EntityType = "concept"
	EntityAtom             EntityType = "atom"
	EntityRelationship     EntityType = "relationship"
	EntityCode             EntityType = "code"
	EntityDescriptor       EntityType = "descriptor"
	EntityAttribute        EntityType = "attribute"
	EntityProject          EntityType = "project"
	EntityWorkflowConfig   EntityType = "workflow_config"
	EntityWorkflowBin      EntityType = "workflow_bin"
	EntityTrackingRecord   EntityType = "tracking_record"
	EntityWorklist         EntityType = "worklist"
	EntityChecklist        EntityType = "checklist"
	EntityWorkflowEpoch    EntityType = "workflow_epoch"
	EntityMolecularAction  EntityType = "molecular_action"
	EntityLogEntry         EntityType = "log_entry"
	EntityTerminology      EntityType = "terminology"
	EntityTermType         EntityType = "term_type"
	EntityLanguage         EntityType = "language"
	EntityRelationshipType EntityType = "relationship_type"
)

// WorkflowStatus is the review state carried by content components.
type WorkflowStatus string

// Component workflow statuses.
const (
	StatusNew                 WorkflowStatus = "NEW"
	StatusNeedsReview         WorkflowStatus = "NEEDS_REVIEW"
	StatusReadyForPublication WorkflowStatus = "READY_FOR_PUBLICATION"
	StatusPublished           WorkflowStatus = "PUBLISHED"
)

// WorklistStatus is the lifecycle state of a worklist, driven by the
// workflow action state machine.
type WorklistStatus string

// Worklist lifecycle states.
const (
	WorklistNew                 WorklistStatus = "NEW"
	WorklistAssigned            WorklistStatus = "ASSIGNED"
	WorklistReview              WorklistStatus = "REVIEW"
	WorklistRevised             WorklistStatus = "REVISED"
	WorklistReadyForPublication WorklistStatus = "READY_FOR_PUBLICATION"
	WorklistPublished           WorklistStatus = "PUBLISHED"
	WorklistFinished            WorklistStatus = "FINISHED"
)

// WorkflowBinType partitions workflow configs by purpose.
type WorkflowBinType string

const (
	// BinTypeMutuallyExclusive marks configs whose definitions partition
	// content: each cluster lands in at most one bin.
	BinTypeMutuallyExclusive WorkflowBinType = "MUTUALLY_EXCLUSIVE"
	// BinTypeQualityAssurance marks independent configs whose bins may overlap.
	BinTypeQualityAssurance WorkflowBinType = "QUALITY_ASSURANCE"
)

// QueryType identifies how a bin definition query string is interpreted.
type QueryType string

const (
	// QueryTypeSQL accepts a restricted SELECT ... FROM concepts WHERE form.
	QueryTypeSQL QueryType = "SQL"
	// QueryTypeExpression accepts the structured expression language directly.
	QueryTypeExpression QueryType = "EXPRESSION"
)

// Base holds the common identity and timestamp fields of all records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Terminology describes a loaded source vocabulary at a specific version.
type Terminology struct {
	Base
	Name    string `json:"name"`
	Version string `json:"version"`
	Current bool   `json:"current"`
}

// TermType describes a valid atom term type within a terminology.
type TermType struct {
	Base
	Abbreviation string `json:"abbreviation"`
	Expanded     string `json:"expanded,omitempty"`
	Terminology  string `json:"terminology"`
	Version      string `json:"version"`
}

// Language describes a valid atom language within a terminology.
type Language struct {
	Base
	Code        string `json:"code"`
	Name        string `json:"name,omitempty"`
	Terminology string `json:"terminology"`
	Version     string `json:"version"`
}

// RelationshipType describes a directed relationship type. Inverse names the
// abbreviation of the configured inverse type and is the source of truth for
// inverse relationship creation.
type RelationshipType struct {
	Base
	Abbreviation string `json:"abbreviation"`
	Expanded     string `json:"expanded,omitempty"`
	Inverse      string `json:"inverse"`
	Terminology  string `json:"terminology"`
	Version      string `json:"version"`
}

// SemanticTypeComponent attaches a semantic type value to a concept.
type SemanticTypeComponent struct {
	Value  string         `json:"value"`
	Status WorkflowStatus `json:"status"`
}

// Atom is a single source-vocabulary term instance, the finest-grained
// content unit.
type Atom struct {
	Base
	Name                    string            `json:"name"`
	Terminology             string            `json:"terminology"`
	Version                 string            `json:"version"`
	TerminologyID           string            `json:"terminology_id"`
	TermType                string            `json:"term_type"`
	Language                string            `json:"language"`
	CodeID                  string            `json:"code_id,omitempty"`
	ConceptID               string            `json:"concept_id,omitempty"`
	DescriptorID            string            `json:"descriptor_id,omitempty"`
	StringClassID           string            `json:"string_class_id,omitempty"`
	LexicalClassID          string            `json:"lexical_class_id,omitempty"`
	AlternateTerminologyIDs map[string]string `json:"alternate_terminology_ids,omitempty"`
	Status                  WorkflowStatus    `json:"status"`
	Publishable             bool              `json:"publishable"`
	Published               bool              `json:"published"`
	Obsolete                bool              `json:"obsolete"`
	Suppressible            bool              `json:"suppressible"`
}

// Concept is a cluster of atoms considered synonymous, the main editorial unit.
type Concept struct {
	Base
	Name          string                  `json:"name"`
	Terminology   string                  `json:"terminology"`
	Version       string                  `json:"version"`
	TerminologyID string                  `json:"terminology_id"`
	AtomIDs       []string                `json:"atom_ids,omitempty"`
	SemanticTypes []SemanticTypeComponent `json:"semantic_types,omitempty"`
	Status        WorkflowStatus          `json:"status"`
	Publishable   bool                    `json:"publishable"`
	Published     bool                    `json:"published"`
}

// Code groups atoms sharing a source code identifier.
type Code struct {
	Base
	Name          string         `json:"name"`
	Terminology   string         `json:"terminology"`
	Version       string         `json:"version"`
	TerminologyID string         `json:"terminology_id"`
	AtomIDs       []string       `json:"atom_ids,omitempty"`
	Status        WorkflowStatus `json:"status"`
	Publishable   bool           `json:"publishable"`
	Published     bool           `json:"published"`
}

// Descriptor groups atoms sharing a source descriptor identifier.
type Descriptor struct {
	Base
	Name          string         `json:"name"`
	Terminology   string         `json:"terminology"`
	Version       string         `json:"version"`
	TerminologyID string         `json:"terminology_id"`
	AtomIDs       []string       `json:"atom_ids,omitempty"`
	Status        WorkflowStatus `json:"status"`
	Publishable   bool           `json:"publishable"`
	Published     bool           `json:"published"`
}

// ConceptRelationship is a directed relationship between two concepts. Every
// persisted relationship is expected to have a persisted inverse whose type is
// the configured inverse of this one's type.
type ConceptRelationship struct {
	Base
	FromID            string         `json:"from_id"`
	ToID              string         `json:"to_id"`
	RelationshipType  string         `json:"relationship_type"`
	AdditionalType    string         `json:"additional_type,omitempty"`
	Terminology       string         `json:"terminology"`
	Version           string         `json:"version"`
	TerminologyID     string         `json:"terminology_id,omitempty"`
	AssertedDirection bool           `json:"asserted_direction"`
	Status            WorkflowStatus `json:"status"`
	Publishable       bool           `json:"publishable"`
	Published         bool           `json:"published"`
}

// Attribute is a name/value pair attached to a content component.
type Attribute struct {
	Base
	Name          string         `json:"name"`
	Value         string         `json:"value"`
	ComponentID   string         `json:"component_id"`
	ComponentType EntityType     `json:"component_type"`
	Terminology   string         `json:"terminology"`
	Version       string         `json:"version"`
	Status        WorkflowStatus `json:"status"`
	Publishable   bool           `json:"publishable"`
}

// Project is the governing scope for a terminology-editing effort.
type Project struct {
	Base
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Terminology string `json:"terminology"`
	Version     string `json:"version"`
}

// WorkflowBinDefinition is one classification rule owned by a WorkflowConfig.
// MinAssignRole, when set, raises the role required to claim worklists pulled
// from this bin.
type WorkflowBinDefinition struct {
	Base
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	Query         string    `json:"query"`
	QueryType     QueryType `json:"query_type"`
	Editable      bool      `json:"editable"`
	Enabled       bool      `json:"enabled"`
	MinAssignRole UserRole  `json:"min_assign_role,omitempty"`
}

// WorkflowConfig owns the ordered bin definitions for one bin category of a
// project. Definition order is significant for mutually exclusive configs.
type WorkflowConfig struct {
	Base
	ProjectID         string                  `json:"project_id"`
	Type              WorkflowBinType         `json:"type"`
	MutuallyExclusive bool                    `json:"mutually_exclusive"`
	LastPartitionTime time.Time               `json:"last_partition_time"`
	Definitions       []WorkflowBinDefinition `json:"definitions,omitempty"`
}

// ClusterTypeStats summarizes tracking record counts for one cluster type of a bin.
type ClusterTypeStats struct {
	ClusterType string `json:"cluster_type"`
	All         int    `json:"all"`
	Editable    int    `json:"editable"`
}

// WorkflowBin is the materialized result of evaluating one bin definition.
// Bins are destroyed and rebuilt wholesale on clear and regenerate.
type WorkflowBin struct {
	Base
	ProjectID     string             `json:"project_id"`
	Name          string             `json:"name"`
	Description   string             `json:"description,omitempty"`
	Type          WorkflowBinType    `json:"type"`
	Rank          int                `json:"rank"`
	Editable      bool               `json:"editable"`
	Enabled       bool               `json:"enabled"`
	MinAssignRole UserRole           `json:"min_assign_role,omitempty"`
	CreationTime  time.Time          `json:"creation_time"`
	Stats         []ClusterTypeStats `json:"stats,omitempty"`
}

// TrackingRecord is one reviewable cluster of component ids, the unit moved
// between bins, worklists, and checklists. Component references are weak.
type TrackingRecord struct {
	Base
	ProjectID       string   `json:"project_id"`
	Terminology     string   `json:"terminology"`
	Version         string   `json:"version"`
	ClusterID       int64    `json:"cluster_id"`
	ClusterType     string   `json:"cluster_type,omitempty"`
	ComponentIDs    []string `json:"component_ids,omitempty"`
	OrigConceptIDs  []string `json:"orig_concept_ids,omitempty"`
	WorkflowBinName string   `json:"workflow_bin_name"`
	WorklistName    string   `json:"worklist_name,omitempty"`
	ChecklistName   string   `json:"checklist_name,omitempty"`
}

// Worklist is an assigned, actively edited collection of tracking records.
type Worklist struct {
	Base
	ProjectID       string         `json:"project_id"`
	Name            string         `json:"name"`
	Description     string         `json:"description,omitempty"`
	WorkflowBinName string         `json:"workflow_bin_name"`
	ClusterType     string         `json:"cluster_type,omitempty"`
	Epoch           string         `json:"epoch"`
	Number          int            `json:"number"`
	Owner           string         `json:"owner,omitempty"`
	OwnerRole       UserRole       `json:"owner_role,omitempty"`
	Status          WorklistStatus `json:"status"`
}

// Checklist is an informational collection of tracking records, never
// assigned for editing.
type Checklist struct {
	Base
	ProjectID       string `json:"project_id"`
	Name            string `json:"name"`
	Description     string `json:"description,omitempty"`
	WorkflowBinName string `json:"workflow_bin_name"`
}

// WorkflowEpoch is a named editing cycle, e.g. "16a". At most one epoch per
// project is active at a time.
type WorkflowEpoch struct {
	Base
	ProjectID string `json:"project_id"`
	Name      string `json:"name"`
	Active    bool   `json:"active"`
}

// AtomicAction is one logged content mutation inside a molecular action. The
// before/after snapshots drive undo and redo.
type AtomicAction struct {
	ID       string        `json:"id"`
	Entity   EntityType    `json:"entity"`
	Action   Action        `json:"action"`
	ObjectID string        `json:"object_id"`
	Before   ChangePayload `json:"before"`
	After    ChangePayload `json:"after"`
}

// MolecularAction is the record of one committed editorial transaction.
// Immutable once written; Undone flips on undo and back on redo.
type MolecularAction struct {
	Base
	ProjectID      string         `json:"project_id"`
	Name           string         `json:"name"`
	ComponentID    string         `json:"component_id"`
	ComponentID2   string         `json:"component_id2,omitempty"`
	ActivityID     string         `json:"activity_id,omitempty"`
	WorkID         string         `json:"work_id,omitempty"`
	LastModifiedBy string         `json:"last_modified_by"`
	Undone         bool           `json:"undone"`
	AtomicActions  []AtomicAction `json:"atomic_actions,omitempty"`
}

// LogEntry is one audit log record.
type LogEntry struct {
	Base
	ProjectID      string `json:"project_id"`
	ObjectID       string `json:"object_id,omitempty"`
	ActivityID     string `json:"activity_id,omitempty"`
	WorkID         string `json:"work_id,omitempty"`
	LastModifiedBy string `json:"last_modified_by"`
	Message        string `json:"message"`
}

// HasAtoms is implemented by components owning an ordered atom id list.
type HasAtoms interface {
	GetAtomIDs() []string
}

// HasWorkflowStatus is implemented by components carrying review state.
type HasWorkflowStatus interface {
	GetStatus() WorkflowStatus
}

// GetAtomIDs returns the concept's atom ids.
func (c Concept) GetAtomIDs() []string { return c.AtomIDs }

// GetAtomIDs returns the code's atom ids.
func (c Code) GetAtomIDs() []string { return c.AtomIDs }

// GetAtomIDs returns the descriptor's atom ids.
func (d Descriptor) GetAtomIDs() []string { return d.AtomIDs }

// GetStatus returns the concept's workflow status.
func (c Concept) GetStatus() WorkflowStatus { return c.Status }

// GetStatus returns the atom's workflow status.
func (a Atom) GetStatus() WorkflowStatus { return a.Status }

// GetStatus returns the relationship's workflow status.
func (r ConceptRelationship) GetStatus() WorkflowStatus { return r.Status }
