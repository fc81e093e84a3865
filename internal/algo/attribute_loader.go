package algo

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"termcore/internal/identity"
	"termcore/pkg/domain"
)

// attributeFieldCount is the number of pipe-delimited fields per attribute
// line: src id, component type (C or A), component src id, attribute name,
// attribute value, status, to-be-released, and three reserved fields.
const attributeFieldCount = 10

// AttributeLoader reads a pipe-delimited attribute file and attaches
// name/value attributes to previously loaded concepts and atoms. Identity is
// deterministic, so reloading the same file updates in place.
type AttributeLoader struct {
	store       domain.Store
	terminology string
	version     string
	input       io.Reader

	ids   *identity.Handler
	cache *identity.Cache
}

// NewAttributeLoader builds the loader.
func NewAttributeLoader(store domain.Store, terminology, version string, input io.Reader) *AttributeLoader {
	return &AttributeLoader{
		store:       store,
		terminology: terminology,
		version:     version,
		input:       input,
		ids:         identity.NewHandler(),
		cache:       identity.NewCache(),
	}
}

// Name implements Algorithm.
func (l *AttributeLoader) Name() string { return "ATTRIBUTE_LOADER" }

// CheckPreconditions verifies the target terminology is loaded.
func (l *AttributeLoader) CheckPreconditions(ctx context.Context) error {
	return l.store.View(ctx, func(v domain.TransactionView) error {
		if _, ok := v.FindTerminology(l.terminology, l.version); !ok {
			return domain.Validationf("terminology %s %s is not loaded", l.terminology, l.version)
		}
		return nil
	})
}

// Compute streams the file in batches. Lines naming unknown components are
// skipped with a warning.
func (l *AttributeLoader) Compute(ctx context.Context) (Summary, error) {
	var summary Summary
	scanner := bufio.NewScanner(l.input)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var batch []string
	line := 0
	for scanner.Scan() {
		line++
		if err := checkCancel(ctx, line); err != nil {
			return summary, err
		}
		text := strings.TrimRight(scanner.Text(), "\r\n")
		if text == "" {
			continue
		}
		batch = append(batch, text)
		if len(batch) >= loaderBatchSize {
			if err := l.commitBatch(ctx, batch, line-len(batch), &summary); err != nil {
				return summary, err
			}
			batch = batch[:0]
		}
	}
	if err := scanner.Err(); err != nil {
		return summary, fmt.Errorf("read attribute file: %w", err)
	}
	if len(batch) > 0 {
		if err := l.commitBatch(ctx, batch, line-len(batch), &summary); err != nil {
			return summary, err
		}
	}
	return summary, nil
}

func (l *AttributeLoader) commitBatch(ctx context.Context, batch []string, offset int, summary *Summary) error {
	_, err := l.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		// Atoms are addressed by their source id in the file; index them
		// once per batch.
		atomIDs := map[string]string{}
		for _, atom := range tx.ListAtoms() {
			if atom.Terminology == l.terminology && atom.Version == l.version && atom.TerminologyID != "" {
				atomIDs[atom.TerminologyID] = atom.ID
			}
		}

		for i, text := range batch {
			lineNo := offset + i + 1
			fields := strings.Split(text, "|")
			if len(fields) != attributeFieldCount {
				summary.Skipped++
				summary.warnf("line %d skipped: expected %d fields, got %d", lineNo, attributeFieldCount, len(fields))
				continue
			}
			if fields[3] == "" {
				summary.Skipped++
				summary.warnf("line %d skipped: empty attribute name", lineNo)
				continue
			}
			var status domain.WorkflowStatus
			switch fields[5] {
			case "N":
				status = domain.StatusNeedsReview
			case "R":
				status = domain.StatusReadyForPublication
			default:
				summary.Skipped++
				summary.warnf("line %d skipped: unknown status %q", lineNo, fields[5])
				continue
			}

			var componentID string
			var componentType domain.EntityType
			switch fields[1] {
			case "C":
				componentType = domain.EntityConcept
				componentID = l.ids.ConceptID(l.cache, l.terminology, fields[2])
				if _, ok := tx.FindConcept(componentID); !ok {
					summary.Skipped++
					summary.warnf("line %d skipped: unknown concept %q", lineNo, fields[2])
					continue
				}
			case "A":
				componentType = domain.EntityAtom
				id, ok := atomIDs[fields[2]]
				if !ok {
					summary.Skipped++
					summary.warnf("line %d skipped: unknown atom %q", lineNo, fields[2])
					continue
				}
				componentID = id
			default:
				summary.Skipped++
				summary.warnf("line %d skipped: unknown component type %q", lineNo, fields[1])
				continue
			}

			attr := domain.Attribute{
				Name:          fields[3],
				Value:         fields[4],
				ComponentID:   componentID,
				ComponentType: componentType,
				Terminology:   l.terminology,
				Version:       l.version,
				Status:        status,
				Publishable:   fields[6] == "Y",
			}
			attr.ID = l.ids.AttributeID(l.cache, attr)
			_, existed := tx.FindAttribute(attr.ID)
			if _, err := tx.PutAttribute(attr); err != nil {
				return err
			}
			if existed {
				summary.Updated++
			} else {
				summary.Added++
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("commit attribute batch: %w", err)
	}
	return nil
}

var _ Algorithm = (*AttributeLoader)(nil)
