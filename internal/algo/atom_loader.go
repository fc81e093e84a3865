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

// atomFieldCount is the number of pipe-delimited fields per atom line:
// src id, terminology, term type, code, status, to-be-released, released,
// name, suppressible, language, concept src id, descriptor src id, and three
// reserved fields.
const atomFieldCount = 15

// loaderBatchSize is how many parsed lines are committed per transaction.
const loaderBatchSize = 500

// AtomLoader reads a pipe-delimited atom file and creates atoms and their
// containing concepts. Identity is deterministic, so loading the same file
// twice updates in place instead of duplicating.
type AtomLoader struct {
	store       domain.Store
	terminology string
	version     string
	input       io.Reader

	ids   *identity.Handler
	cache *identity.Cache
}

// NewAtomLoader builds the loader.
func NewAtomLoader(store domain.Store, terminology, version string, input io.Reader) *AtomLoader {
	return &AtomLoader{
		store:       store,
		terminology: terminology,
		version:     version,
		input:       input,
		ids:         identity.NewHandler(),
		cache:       identity.NewCache(),
	}
}

// Name implements Algorithm.
func (l *AtomLoader) Name() string { return "ATOM_LOADER" }

// CheckPreconditions verifies the target terminology is loaded.
func (l *AtomLoader) CheckPreconditions(ctx context.Context) error {
	return l.store.View(ctx, func(v domain.TransactionView) error {
		if _, ok := v.FindTerminology(l.terminology, l.version); !ok {
			return domain.Validationf("terminology %s %s is not loaded", l.terminology, l.version)
		}
		return nil
	})
}

type parsedAtom struct {
	atom         domain.Atom
	conceptSrcID string
}

// Compute streams the file, committing one transaction per batch. A bad line
// is skipped with a warning; cancellation keeps the batches already
// committed.
func (l *AtomLoader) Compute(ctx context.Context) (Summary, error) {
	var summary Summary
	scanner := bufio.NewScanner(l.input)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var batch []parsedAtom
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
		parsed, err := l.parseLine(text)
		if err != nil {
			summary.Skipped++
			summary.warnf("line %d skipped: %v", line, err)
			continue
		}
		batch = append(batch, parsed)
		if len(batch) >= loaderBatchSize {
			if err := l.commitBatch(ctx, batch, &summary); err != nil {
				return summary, err
			}
			batch = batch[:0]
		}
	}
	if err := scanner.Err(); err != nil {
		return summary, fmt.Errorf("read atom file: %w", err)
	}
	if len(batch) > 0 {
		if err := l.commitBatch(ctx, batch, &summary); err != nil {
			return summary, err
		}
	}
	return summary, nil
}

func (l *AtomLoader) parseLine(text string) (parsedAtom, error) {
	fields := strings.Split(text, "|")
	if len(fields) != atomFieldCount {
		return parsedAtom{}, fmt.Errorf("expected %d fields, got %d", atomFieldCount, len(fields))
	}
	var status domain.WorkflowStatus
	switch fields[4] {
	case "N":
		status = domain.StatusNeedsReview
	case "R":
		status = domain.StatusReadyForPublication
	default:
		return parsedAtom{}, fmt.Errorf("unknown status %q", fields[4])
	}
	if fields[7] == "" {
		return parsedAtom{}, fmt.Errorf("empty atom name")
	}
	atom := domain.Atom{
		TerminologyID: fields[0],
		Terminology:   l.terminology,
		Version:       l.version,
		TermType:      fields[2],
		CodeID:        fields[3],
		Status:        status,
		Publishable:   fields[5] == "Y",
		Published:     fields[6] == "Y",
		Name:          fields[7],
		Suppressible:  strings.Contains("OYE", fields[8]) && fields[8] != "",
		Language:      fields[9],
		DescriptorID:  fields[11],
	}
	conceptSrcID := fields[10]
	if conceptSrcID == "" {
		conceptSrcID = fields[3]
	}
	return parsedAtom{atom: atom, conceptSrcID: conceptSrcID}, nil
}

func (l *AtomLoader) commitBatch(ctx context.Context, batch []parsedAtom, summary *Summary) error {
	_, err := l.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		for _, parsed := range batch {
			atom := parsed.atom
			atom.ID = l.ids.AtomID(l.cache, atom)
			atom.StringClassID = l.ids.StringClassID(l.cache, atom.Language, atom.Name)
			atom.LexicalClassID = l.ids.LexicalClassID(l.cache, atom.Language, atom.Name)

			conceptID := l.ids.ConceptID(l.cache, l.terminology, parsed.conceptSrcID)
			atom.ConceptID = conceptID

			_, existed := tx.FindAtom(atom.ID)
			if _, err := tx.PutAtom(atom); err != nil {
				return err
			}
			if existed {
				summary.Updated++
			} else {
				summary.Added++
			}

			concept, ok := tx.FindConcept(conceptID)
			if !ok {
				concept = domain.Concept{
					Base:          domain.Base{ID: conceptID},
					Name:          atom.Name,
					Terminology:   l.terminology,
					Version:       l.version,
					TerminologyID: parsed.conceptSrcID,
					Status:        atom.Status,
					Publishable:   atom.Publishable,
				}
			}
			if !containsString(concept.AtomIDs, atom.ID) {
				concept.AtomIDs = append(concept.AtomIDs, atom.ID)
			}
			if _, err := tx.PutConcept(concept); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("commit atom batch: %w", err)
	}
	return nil
}

func containsString(in []string, target string) bool {
	for _, s := range in {
		if s == target {
			return true
		}
	}
	return false
}

var _ Algorithm = (*AtomLoader)(nil)
