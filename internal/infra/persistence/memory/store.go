// Package memory implements the authoritative in-memory content store.
// Transactions run against a deep clone of the state; the clone replaces the
// live state only when the callback succeeds and no blocking rule fires.
package memory

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	"termcore/pkg/domain"
)

type state struct {
	concepts          map[string]domain.Concept
	atoms             map[string]domain.Atom
	relationships     map[string]domain.ConceptRelationship
	codes             map[string]domain.Code
	descriptors       map[string]domain.Descriptor
	attributes        map[string]domain.Attribute
	projects          map[string]domain.Project
	workflowConfigs   map[string]domain.WorkflowConfig
	workflowBins      map[string]domain.WorkflowBin
	trackingRecords   map[string]domain.TrackingRecord
	worklists         map[string]domain.Worklist
	checklists        map[string]domain.Checklist
	workflowEpochs    map[string]domain.WorkflowEpoch
	molecularActions  map[string]domain.MolecularAction
	logEntries        []domain.LogEntry
	terminologies     map[string]domain.Terminology
	termTypes         map[string]domain.TermType
	languages         map[string]domain.Language
	relationshipTypes map[string]domain.RelationshipType
}

func newState() *state {
	return &state{
		concepts:          map[string]domain.Concept{},
		atoms:             map[string]domain.Atom{},
		relationships:     map[string]domain.ConceptRelationship{},
		codes:             map[string]domain.Code{},
		descriptors:       map[string]domain.Descriptor{},
		attributes:        map[string]domain.Attribute{},
		projects:          map[string]domain.Project{},
		workflowConfigs:   map[string]domain.WorkflowConfig{},
		workflowBins:      map[string]domain.WorkflowBin{},
		trackingRecords:   map[string]domain.TrackingRecord{},
		worklists:         map[string]domain.Worklist{},
		checklists:        map[string]domain.Checklist{},
		workflowEpochs:    map[string]domain.WorkflowEpoch{},
		molecularActions:  map[string]domain.MolecularAction{},
		terminologies:     map[string]domain.Terminology{},
		termTypes:         map[string]domain.TermType{},
		languages:         map[string]domain.Language{},
		relationshipTypes: map[string]domain.RelationshipType{},
	}
}

func (s *state) clone() *state {
	out := &state{
		concepts:          cloneMap(s.concepts, cloneConcept),
		atoms:             cloneMap(s.atoms, cloneAtom),
		relationships:     cloneMap(s.relationships, shallow[domain.ConceptRelationship]),
		codes:             cloneMap(s.codes, cloneCode),
		descriptors:       cloneMap(s.descriptors, cloneDescriptor),
		attributes:        cloneMap(s.attributes, shallow[domain.Attribute]),
		projects:          cloneMap(s.projects, shallow[domain.Project]),
		workflowConfigs:   cloneMap(s.workflowConfigs, cloneWorkflowConfig),
		workflowBins:      cloneMap(s.workflowBins, cloneWorkflowBin),
		trackingRecords:   cloneMap(s.trackingRecords, cloneTrackingRecord),
		worklists:         cloneMap(s.worklists, shallow[domain.Worklist]),
		checklists:        cloneMap(s.checklists, shallow[domain.Checklist]),
		workflowEpochs:    cloneMap(s.workflowEpochs, shallow[domain.WorkflowEpoch]),
		molecularActions:  cloneMap(s.molecularActions, cloneMolecularAction),
		terminologies:     cloneMap(s.terminologies, shallow[domain.Terminology]),
		termTypes:         cloneMap(s.termTypes, shallow[domain.TermType]),
		languages:         cloneMap(s.languages, shallow[domain.Language]),
		relationshipTypes: cloneMap(s.relationshipTypes, shallow[domain.RelationshipType]),
	}
	out.logEntries = append([]domain.LogEntry(nil), s.logEntries...)
	return out
}

// Store is the in-memory implementation of domain.Store. A single mutex
// serializes transactions, which is what makes conditional updates such as
// worklist claims safe under concurrency.
type Store struct {
	mu    sync.RWMutex
	state *state
	rules *domain.RulesEngine
	clock func() time.Time
	idgen func() string
}

// Option customizes a Store.
type Option func(*Store)

// WithClock overrides the timestamp source.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) { s.clock = clock }
}

// WithIDGenerator overrides the record id source.
func WithIDGenerator(idgen func() string) Option {
	return func(s *Store) { s.idgen = idgen }
}

// WithRules installs the rules engine evaluated at commit.
func WithRules(rules *domain.RulesEngine) Option {
	return func(s *Store) { s.rules = rules }
}

// NewStore builds an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		state: newState(),
		clock: func() time.Time { return time.Now().UTC() },
		idgen: newID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetRules replaces the rules engine. Intended for wiring at startup, before
// the store is shared.
func (s *Store) SetRules(rules *domain.RulesEngine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = rules
}

func newID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("generate id: %v", err))
	}
	return hex.EncodeToString(buf)
}

// RunInTransaction applies fn to a clone of the state, evaluates rules over
// the recorded changes, and commits the clone. Any error from fn, a rule, or
// a blocking violation discards the clone.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx domain.Transaction) error) ([]domain.Change, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	work := s.state.clone()
	tx := &transaction{view: view{st: work}, store: s}
	if err := fn(tx); err != nil {
		return nil, err
	}
	result, err := s.rules.Evaluate(ctx, tx, tx.changes)
	if err != nil {
		return nil, fmt.Errorf("evaluate rules: %w", err)
	}
	if result.HasBlocking() {
		return nil, domain.RuleViolationError{Violations: result.Violations}
	}
	s.state = work
	return tx.changes, nil
}

// View runs fn against a read-only view of the current state.
func (s *Store) View(ctx context.Context, fn func(v domain.TransactionView) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(view{st: s.state})
}

var _ domain.Store = (*Store)(nil)

func cloneMap[T any](src map[string]T, cp func(T) T) map[string]T {
	out := make(map[string]T, len(src))
	for k, v := range src {
		out[k] = cp(v)
	}
	return out
}

func shallow[T any](v T) T { return v }

func cloneStrings(src []string) []string {
	if src == nil {
		return nil
	}
	return append([]string(nil), src...)
}

func cloneConcept(c domain.Concept) domain.Concept {
	c.AtomIDs = cloneStrings(c.AtomIDs)
	if c.SemanticTypes != nil {
		c.SemanticTypes = append([]domain.SemanticTypeComponent(nil), c.SemanticTypes...)
	}
	return c
}

func cloneAtom(a domain.Atom) domain.Atom {
	if a.AlternateTerminologyIDs != nil {
		alt := make(map[string]string, len(a.AlternateTerminologyIDs))
		for k, v := range a.AlternateTerminologyIDs {
			alt[k] = v
		}
		a.AlternateTerminologyIDs = alt
	}
	return a
}

func cloneCode(c domain.Code) domain.Code {
	c.AtomIDs = cloneStrings(c.AtomIDs)
	return c
}

func cloneDescriptor(d domain.Descriptor) domain.Descriptor {
	d.AtomIDs = cloneStrings(d.AtomIDs)
	return d
}

func cloneWorkflowConfig(c domain.WorkflowConfig) domain.WorkflowConfig {
	if c.Definitions != nil {
		c.Definitions = append([]domain.WorkflowBinDefinition(nil), c.Definitions...)
	}
	return c
}

func cloneWorkflowBin(b domain.WorkflowBin) domain.WorkflowBin {
	if b.Stats != nil {
		b.Stats = append([]domain.ClusterTypeStats(nil), b.Stats...)
	}
	return b
}

func cloneTrackingRecord(r domain.TrackingRecord) domain.TrackingRecord {
	r.ComponentIDs = cloneStrings(r.ComponentIDs)
	r.OrigConceptIDs = cloneStrings(r.OrigConceptIDs)
	return r
}

func cloneMolecularAction(m domain.MolecularAction) domain.MolecularAction {
	if m.AtomicActions != nil {
		m.AtomicActions = append([]domain.AtomicAction(nil), m.AtomicActions...)
	}
	return m
}

func sortedValues[T any](m map[string]T, cp func(T) T, less func(a, b T) bool) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		out = append(out, cp(v))
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func metadataKey(parts ...string) string {
	key := parts[0]
	for _, p := range parts[1:] {
		key += "\x00" + p
	}
	return key
}
