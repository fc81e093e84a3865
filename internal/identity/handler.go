// Package identity assigns deterministic identifiers to content components.
// Identifiers are derived from the defining fields of a component, so loading
// the same source data twice yields the same ids.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"

	"termcore/pkg/domain"
)

// Id class prefixes.
const (
	prefixConcept      = "C"
	prefixAtom         = "A"
	prefixRelationship = "R"
	prefixStringClass  = "S"
	prefixLexicalClass = "L"
	prefixAttribute    = "AT"
)

// Cache memoizes computed ids for one job. Callers pass it explicitly; there
// is no shared global state, so concurrent jobs never observe each other.
type Cache struct {
	mu  sync.Mutex
	ids map[string]string
}

// NewCache builds an empty cache.
func NewCache() *Cache {
	return &Cache{ids: map[string]string{}}
}

func (c *Cache) lookup(key string) (string, bool) {
	if c == nil {
		return "", false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.ids[key]
	return id, ok
}

func (c *Cache) store(key, id string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids[key] = id
}

// Handler computes identifiers. It is stateless; all memoization lives in the
// caller-provided Cache.
type Handler struct{}

// NewHandler builds a Handler.
func NewHandler() *Handler { return &Handler{} }

func (h *Handler) assign(cache *Cache, prefix string, fields ...string) string {
	key := prefix + "\x00" + strings.Join(fields, "\x00")
	if id, ok := cache.lookup(key); ok {
		return id
	}
	sum := sha256.Sum256([]byte(key))
	id := prefix + hex.EncodeToString(sum[:8])
	cache.store(key, id)
	return id
}

// AtomID derives the atom identifier from the fields that define an atom in
// its source vocabulary.
func (h *Handler) AtomID(cache *Cache, a domain.Atom) string {
	return h.assign(cache, prefixAtom,
		a.Terminology, a.TerminologyID, a.TermType, a.CodeID, strings.ToLower(a.Name))
}

// ConceptID derives a concept identifier from terminology and source id.
func (h *Handler) ConceptID(cache *Cache, terminology, terminologyID string) string {
	return h.assign(cache, prefixConcept, terminology, terminologyID)
}

// RelationshipID derives a relationship identifier from endpoints and type.
func (h *Handler) RelationshipID(cache *Cache, r domain.ConceptRelationship) string {
	return h.assign(cache, prefixRelationship,
		r.Terminology, r.FromID, r.ToID, r.RelationshipType, r.AdditionalType)
}

// StringClassID identifies the exact string of an atom name.
func (h *Handler) StringClassID(cache *Cache, language, name string) string {
	return h.assign(cache, prefixStringClass, language, name)
}

// LexicalClassID identifies the normalized form of an atom name: lowercased,
// word-order insensitive.
func (h *Handler) LexicalClassID(cache *Cache, language, name string) string {
	words := strings.Fields(strings.ToLower(name))
	sort.Strings(words)
	return h.assign(cache, prefixLexicalClass, language, strings.Join(words, " "))
}

// AttributeID derives an attribute identifier from its owner and content.
func (h *Handler) AttributeID(cache *Cache, attr domain.Attribute) string {
	return h.assign(cache, prefixAttribute,
		attr.Terminology, string(attr.ComponentType), attr.ComponentID, attr.Name, attr.Value)
}
