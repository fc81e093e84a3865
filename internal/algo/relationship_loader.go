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

// relFieldCount is the number of pipe-delimited fields per relationship line:
// src id, relationship type, from concept src id, to concept src id, status,
// to-be-released, released, and one reserved field.
const relFieldCount = 8

// RelationshipLoader reads a pipe-delimited relationship file and creates
// concept relationships together with their configured inverses.
type RelationshipLoader struct {
	store       domain.Store
	terminology string
	version     string
	input       io.Reader

	ids   *identity.Handler
	cache *identity.Cache
}

// NewRelationshipLoader builds the loader.
func NewRelationshipLoader(store domain.Store, terminology, version string, input io.Reader) *RelationshipLoader {
	return &RelationshipLoader{
		store:       store,
		terminology: terminology,
		version:     version,
		input:       input,
		ids:         identity.NewHandler(),
		cache:       identity.NewCache(),
	}
}

// Name implements Algorithm.
func (l *RelationshipLoader) Name() string { return "RELATIONSHIP_LOADER" }

// CheckPreconditions verifies the target terminology is loaded.
func (l *RelationshipLoader) CheckPreconditions(ctx context.Context) error {
	return l.store.View(ctx, func(v domain.TransactionView) error {
		if _, ok := v.FindTerminology(l.terminology, l.version); !ok {
			return domain.Validationf("terminology %s %s is not loaded", l.terminology, l.version)
		}
		return nil
	})
}

// Compute streams the file in batches. Lines naming unknown relationship
// types or missing concepts are skipped with a warning.
func (l *RelationshipLoader) Compute(ctx context.Context) (Summary, error) {
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
		return summary, fmt.Errorf("read relationship file: %w", err)
	}
	if len(batch) > 0 {
		if err := l.commitBatch(ctx, batch, line-len(batch), &summary); err != nil {
			return summary, err
		}
	}
	return summary, nil
}

func (l *RelationshipLoader) commitBatch(ctx context.Context, batch []string, offset int, summary *Summary) error {
	_, err := l.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		for i, text := range batch {
			lineNo := offset + i + 1
			fields := strings.Split(text, "|")
			if len(fields) != relFieldCount {
				summary.Skipped++
				summary.warnf("line %d skipped: expected %d fields, got %d", lineNo, relFieldCount, len(fields))
				continue
			}
			relType, ok := tx.FindRelationshipType(fields[1], l.terminology, l.version)
			if !ok {
				summary.Skipped++
				summary.warnf("line %d skipped: unknown relationship type %q", lineNo, fields[1])
				continue
			}
			fromID := l.ids.ConceptID(l.cache, l.terminology, fields[2])
			toID := l.ids.ConceptID(l.cache, l.terminology, fields[3])
			if _, ok := tx.FindConcept(fromID); !ok {
				summary.Skipped++
				summary.warnf("line %d skipped: unknown source concept %q", lineNo, fields[2])
				continue
			}
			if _, ok := tx.FindConcept(toID); !ok {
				summary.Skipped++
				summary.warnf("line %d skipped: unknown target concept %q", lineNo, fields[3])
				continue
			}
			var status domain.WorkflowStatus
			switch fields[4] {
			case "N":
				status = domain.StatusNeedsReview
			case "R":
				status = domain.StatusReadyForPublication
			default:
				summary.Skipped++
				summary.warnf("line %d skipped: unknown status %q", lineNo, fields[4])
				continue
			}

			rel := domain.ConceptRelationship{
				FromID:            fromID,
				ToID:              toID,
				RelationshipType:  relType.Abbreviation,
				Terminology:       l.terminology,
				Version:           l.version,
				TerminologyID:     fields[0],
				AssertedDirection: true,
				Status:            status,
				Publishable:       fields[5] == "Y",
				Published:         fields[6] == "Y",
			}
			rel.ID = l.ids.RelationshipID(l.cache, rel)
			_, existed := tx.FindRelationship(rel.ID)
			if _, err := tx.PutRelationship(rel); err != nil {
				return err
			}

			inverse := rel
			inverse.FromID, inverse.ToID = rel.ToID, rel.FromID
			inverse.RelationshipType = relType.Inverse
			inverse.AssertedDirection = false
			inverse.ID = l.ids.RelationshipID(l.cache, inverse)
			if _, err := tx.PutRelationship(inverse); err != nil {
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
		return fmt.Errorf("commit relationship batch: %w", err)
	}
	return nil
}

var _ Algorithm = (*RelationshipLoader)(nil)
