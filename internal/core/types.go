package core

import "termcore/pkg/domain"

// Aliases so service callers can stay within this package for common types.
type (
	Project         = domain.Project
	WorkflowConfig  = domain.WorkflowConfig
	WorkflowBin     = domain.WorkflowBin
	TrackingRecord  = domain.TrackingRecord
	Worklist        = domain.Worklist
	Checklist       = domain.Checklist
	WorkflowEpoch   = domain.WorkflowEpoch
	MolecularAction = domain.MolecularAction
	LogEntry        = domain.LogEntry
	Concept         = domain.Concept
	Atom            = domain.Atom
)
