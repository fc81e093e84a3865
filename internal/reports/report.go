package reports

import (
	"context"
	"fmt"
	"strings"

	"termcore/pkg/domain"
)

// render builds the plain-text concept report for one worklist: every
// concept of every tracking record with its atoms, semantic types, and
// relationships. Inverse-direction relationships are flagged.
func (g *Generator) render(ctx context.Context, worklistID string) (string, string, error) {
	var (
		sb   strings.Builder
		name string
	)
	err := g.store.View(ctx, func(v domain.TransactionView) error {
		wl, ok := v.FindWorklist(worklistID)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityWorklist, ID: worklistID}
		}
		name = wl.Name

		fmt.Fprintf(&sb, "Report for worklist %s (epoch %s, bin %s)\n", wl.Name, wl.Epoch, wl.WorkflowBinName)
		fmt.Fprintf(&sb, "Status: %s\n\n", wl.Status)

		for _, record := range v.ListTrackingRecords() {
			if record.WorklistName != wl.Name {
				continue
			}
			fmt.Fprintf(&sb, "Cluster %d\n", record.ClusterID)
			for _, conceptID := range record.OrigConceptIDs {
				concept, ok := v.FindConcept(conceptID)
				if !ok {
					fmt.Fprintf(&sb, "  concept %s (missing)\n", conceptID)
					continue
				}
				writeConcept(&sb, v, concept)
			}
			sb.WriteString("\n")
		}
		return nil
	})
	if err != nil {
		return "", name, fmt.Errorf("render report for worklist %s: %w", worklistID, err)
	}
	return sb.String(), name, nil
}

func writeConcept(sb *strings.Builder, v domain.TransactionView, concept domain.Concept) {
	fmt.Fprintf(sb, "  CN# %s %s [%s]\n", concept.ID, concept.Name, concept.Status)
	for _, sty := range concept.SemanticTypes {
		fmt.Fprintf(sb, "  STY %s [%s]\n", sty.Value, sty.Status)
	}
	for _, atomID := range concept.AtomIDs {
		atom, ok := v.FindAtom(atomID)
		if !ok {
			continue
		}
		flags := ""
		if atom.Obsolete {
			flags += " O"
		}
		if atom.Suppressible {
			flags += " S"
		}
		fmt.Fprintf(sb, "  ATOM %s/%s %s [%s]%s\n", atom.Terminology, atom.TermType, atom.Name, atom.Status, flags)
	}
	for _, rel := range v.ListRelationships() {
		if rel.FromID != concept.ID {
			continue
		}
		direction := ""
		if !rel.AssertedDirection {
			direction = " (inverse)"
		}
		target := rel.ToID
		if to, ok := v.FindConcept(rel.ToID); ok {
			target = to.Name
		}
		fmt.Fprintf(sb, "  REL %s %s%s [%s]\n", rel.RelationshipType, target, direction, rel.Status)
	}
}
