package domain

import (
	"fmt"
	"strings"
)

// Action enumerates the mutation kinds recorded for a change.
type Action string

const (
	// ActionCreate marks a record created inside a transaction.
	ActionCreate Action = "create"
	// ActionUpdate marks a record modified inside a transaction.
	ActionUpdate Action = "update"
	// ActionDelete marks a record removed inside a transaction.
	ActionDelete Action = "delete"
)

// Change captures one mutation observed during a transaction with JSON
// snapshots of the record before and after.
type Change struct {
	Entity   EntityType    `json:"entity"`
	Action   Action        `json:"action"`
	ObjectID string        `json:"object_id"`
	Before   ChangePayload `json:"before"`
	After    ChangePayload `json:"after"`
}

// Severity grades a rule violation.
type Severity string

const (
	// SeverityWarning flags a violation that is reported but does not
	// prevent the transaction from committing.
	SeverityWarning Severity = "warning"
	// SeverityBlock flags a violation that aborts the transaction.
	SeverityBlock Severity = "block"
)

// Violation describes a single rule violation attached to an entity.
type Violation struct {
	Rule     string     `json:"rule"`
	Severity Severity   `json:"severity"`
	Message  string     `json:"message"`
	Entity   EntityType `json:"entity,omitempty"`
	EntityID string     `json:"entity_id,omitempty"`
}

// Result aggregates the violations produced by a rules pass.
type Result struct {
	Violations []Violation `json:"violations,omitempty"`
}

// HasBlocking reports whether any violation carries blocking severity.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when a transaction is aborted by one or more
// blocking rule violations.
type RuleViolationError struct {
	Violations []Violation
}

// Error summarizes the blocking violations.
func (e RuleViolationError) Error() string {
	var parts []string
	for _, v := range e.Violations {
		if v.Severity != SeverityBlock {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", v.Rule, v.Message))
	}
	return "rule violations: " + strings.Join(parts, "; ")
}
