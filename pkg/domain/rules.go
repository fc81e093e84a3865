package domain

import "context"

// RuleView is the read-only view handed to rules at commit time. It reflects
// the post-transaction state of the store clone under evaluation.
type RuleView interface {
	FindConcept(id string) (Concept, bool)
	ListRelationships() []ConceptRelationship
	FindRelationshipType(abbreviation, terminology, version string) (RelationshipType, bool)
	ListWorkflowEpochs() []WorkflowEpoch
	FindWorklist(id string) (Worklist, bool)
}

// Rule evaluates a batch of changes against a view of the prospective state
// and reports violations. Rules must not mutate the view.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, view RuleView, changes []Change) ([]Violation, error)
}

// RulesEngine runs an ordered set of rules over a change batch.
type RulesEngine struct {
	rules []Rule
}

// NewRulesEngine builds an engine from the given rules.
func NewRulesEngine(rules ...Rule) *RulesEngine {
	return &RulesEngine{rules: append([]Rule(nil), rules...)}
}

// Register appends a rule to the engine.
func (e *RulesEngine) Register(rule Rule) {
	e.rules = append(e.rules, rule)
}

// Evaluate runs every rule and aggregates violations. A rule returning an
// error aborts evaluation.
func (e *RulesEngine) Evaluate(ctx context.Context, view RuleView, changes []Change) (Result, error) {
	var result Result
	if e == nil {
		return result, nil
	}
	for _, rule := range e.rules {
		viols, err := rule.Evaluate(ctx, view, changes)
		if err != nil {
			return Result{}, err
		}
		result.Violations = append(result.Violations, viols...)
	}
	return result, nil
}
