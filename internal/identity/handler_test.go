package identity

import (
	"strings"
	"sync"
	"testing"

	"termcore/pkg/domain"
)

func TestAtomIDDeterministic(t *testing.T) {
	h := NewHandler()
	atom := domain.Atom{
		Terminology:   "SNOMEDCT",
		TerminologyID: "80891009",
		TermType:      "PT",
		CodeID:        "80891009",
		Name:          "Heart structure",
	}
	first := h.AtomID(NewCache(), atom)
	second := h.AtomID(NewCache(), atom)
	if first != second {
		t.Fatalf("same atom should get the same id: %s vs %s", first, second)
	}
	if !strings.HasPrefix(first, "A") {
		t.Fatalf("atom id should carry the A prefix: %s", first)
	}

	atom.Name = "HEART STRUCTURE"
	if h.AtomID(NewCache(), atom) != first {
		t.Fatalf("atom name casing should not change the id")
	}

	atom.TermType = "SY"
	if h.AtomID(NewCache(), atom) == first {
		t.Fatalf("different term type should change the id")
	}
}

func TestConceptAndRelationshipIDs(t *testing.T) {
	h := NewHandler()
	cache := NewCache()

	c1 := h.ConceptID(cache, "SNOMEDCT", "80891009")
	c2 := h.ConceptID(cache, "SNOMEDCT", "80891009")
	if c1 != c2 || !strings.HasPrefix(c1, "C") {
		t.Fatalf("concept id unstable or unprefixed: %s vs %s", c1, c2)
	}

	rel := domain.ConceptRelationship{
		Terminology:      "SNOMEDCT",
		FromID:           c1,
		ToID:             h.ConceptID(cache, "SNOMEDCT", "39937001"),
		RelationshipType: "PAR",
	}
	forward := h.RelationshipID(cache, rel)
	rel.FromID, rel.ToID = rel.ToID, rel.FromID
	rel.RelationshipType = "CHD"
	inverse := h.RelationshipID(cache, rel)
	if forward == inverse {
		t.Fatalf("inverse relationship should get its own id")
	}
}

func TestLexicalClassWordOrderInsensitive(t *testing.T) {
	h := NewHandler()
	cache := NewCache()

	a := h.LexicalClassID(cache, "ENG", "Heart Structure")
	b := h.LexicalClassID(cache, "ENG", "structure heart")
	if a != b {
		t.Fatalf("lexical class should ignore word order and case: %s vs %s", a, b)
	}

	s1 := h.StringClassID(cache, "ENG", "Heart Structure")
	s2 := h.StringClassID(cache, "ENG", "structure heart")
	if s1 == s2 {
		t.Fatalf("string class should be exact-string sensitive")
	}
}

func TestNilCacheIsSafe(t *testing.T) {
	h := NewHandler()
	var cache *Cache
	id := h.ConceptID(cache, "SNOMEDCT", "80891009")
	if id == "" {
		t.Fatalf("nil cache should still produce an id")
	}
	if id != h.ConceptID(nil, "SNOMEDCT", "80891009") {
		t.Fatalf("nil cache should not change determinism")
	}
}

func TestCacheConcurrentUse(t *testing.T) {
	h := NewHandler()
	cache := NewCache()
	var wg sync.WaitGroup
	ids := make([]string, 16)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i] = h.ConceptID(cache, "SNOMEDCT", "80891009")
		}(i)
	}
	wg.Wait()
	for _, id := range ids[1:] {
		if id != ids[0] {
			t.Fatalf("concurrent lookups disagree: %v", ids)
		}
	}
}
