// Package query implements the bin definition query language: a small typed
// expression IR, parsers for the expression form and a restricted SQL form,
// and an in-memory matcher over concepts. Both query types compile to the
// same IR, so a definition behaves identically regardless of how it was
// written.
package query

import (
	"fmt"
	"strconv"
	"strings"

	"termcore/pkg/domain"
)

// Op is a comparison operator.
type Op string

const (
	OpEq   Op = "="
	OpNeq  Op = "!="
	OpLike Op = "LIKE"
)

// Expr is a node of the compiled query.
type Expr interface{ isExpr() }

// Comparison tests one concept field against a literal value.
type Comparison struct {
	Field string
	Op    Op
	Value string
}

// And is satisfied when every child is satisfied.
type And struct{ Exprs []Expr }

// Or is satisfied when any child is satisfied.
type Or struct{ Exprs []Expr }

// Not negates its child.
type Not struct{ Expr Expr }

func (Comparison) isExpr() {}
func (And) isExpr()        {}
func (Or) isExpr()         {}
func (Not) isExpr()        {}

// conceptFields enumerates the queryable fields. Multi-valued fields
// contribute every value to the comparison.
var conceptFields = map[string]func(domain.Concept) []string{
	"id":            func(c domain.Concept) []string { return []string{c.ID} },
	"name":          func(c domain.Concept) []string { return []string{c.Name} },
	"terminology":   func(c domain.Concept) []string { return []string{c.Terminology} },
	"version":       func(c domain.Concept) []string { return []string{c.Version} },
	"status":        func(c domain.Concept) []string { return []string{string(c.Status)} },
	"publishable":   func(c domain.Concept) []string { return []string{strconv.FormatBool(c.Publishable)} },
	"published":     func(c domain.Concept) []string { return []string{strconv.FormatBool(c.Published)} },
	"semantic_type": conceptSemanticTypes,
	"atom_count":    func(c domain.Concept) []string { return []string{strconv.Itoa(len(c.AtomIDs))} },
}

func conceptSemanticTypes(c domain.Concept) []string {
	out := make([]string, 0, len(c.SemanticTypes))
	for _, sty := range c.SemanticTypes {
		out = append(out, sty.Value)
	}
	return out
}

// Validate checks that every comparison references a known field and operator.
func Validate(e Expr) error {
	switch node := e.(type) {
	case Comparison:
		if _, ok := conceptFields[node.Field]; !ok {
			return domain.Validationf("unknown query field %q", node.Field)
		}
		switch node.Op {
		case OpEq, OpNeq, OpLike:
		default:
			return domain.Validationf("unknown query operator %q", node.Op)
		}
		return nil
	case And:
		for _, child := range node.Exprs {
			if err := Validate(child); err != nil {
				return err
			}
		}
		return nil
	case Or:
		for _, child := range node.Exprs {
			if err := Validate(child); err != nil {
				return err
			}
		}
		return nil
	case Not:
		return Validate(node.Expr)
	default:
		return domain.Validationf("unknown query node %T", e)
	}
}

// Compile parses and validates a definition query of the given type.
func Compile(q string, typ domain.QueryType) (Expr, error) {
	var (
		expr Expr
		err  error
	)
	switch typ {
	case domain.QueryTypeExpression:
		expr, err = Parse(q)
	case domain.QueryTypeSQL:
		expr, err = ParseSQL(q)
	default:
		return nil, domain.Validationf("unknown query type %q", typ)
	}
	if err != nil {
		return nil, err
	}
	if err := Validate(expr); err != nil {
		return nil, err
	}
	return expr, nil
}

// Match evaluates a compiled query against one concept.
func Match(e Expr, c domain.Concept) bool {
	switch node := e.(type) {
	case Comparison:
		values := conceptFields[node.Field](c)
		switch node.Op {
		case OpEq:
			for _, v := range values {
				if v == node.Value {
					return true
				}
			}
			return false
		case OpNeq:
			for _, v := range values {
				if v == node.Value {
					return false
				}
			}
			return true
		case OpLike:
			for _, v := range values {
				if matchLike(node.Value, v) {
					return true
				}
			}
			return false
		}
		return false
	case And:
		for _, child := range node.Exprs {
			if !Match(child, c) {
				return false
			}
		}
		return true
	case Or:
		for _, child := range node.Exprs {
			if Match(child, c) {
				return true
			}
		}
		return false
	case Not:
		return !Match(node.Expr, c)
	default:
		return false
	}
}

// matchLike implements SQL LIKE with % wildcards, case-insensitively.
func matchLike(pattern, s string) bool {
	pattern = strings.ToLower(pattern)
	s = strings.ToLower(s)
	parts := strings.Split(pattern, "%")
	if len(parts) == 1 {
		return s == pattern
	}
	if parts[0] != "" {
		if !strings.HasPrefix(s, parts[0]) {
			return false
		}
		s = s[len(parts[0]):]
	}
	last := parts[len(parts)-1]
	for _, part := range parts[1 : len(parts)-1] {
		if part == "" {
			continue
		}
		idx := strings.Index(s, part)
		if idx < 0 {
			return false
		}
		s = s[idx+len(part):]
	}
	if last != "" {
		return strings.HasSuffix(s, last)
	}
	return true
}

// String renders the expression in the expression language, mainly for
// warnings and tests.
func String(e Expr) string {
	switch node := e.(type) {
	case Comparison:
		return fmt.Sprintf("%s %s '%s'", node.Field, node.Op, node.Value)
	case And:
		return joinExprs(node.Exprs, " AND ")
	case Or:
		return joinExprs(node.Exprs, " OR ")
	case Not:
		return "NOT (" + String(node.Expr) + ")"
	default:
		return ""
	}
}

func joinExprs(exprs []Expr, sep string) string {
	parts := make([]string, 0, len(exprs))
	for _, e := range exprs {
		parts = append(parts, "("+String(e)+")")
	}
	return strings.Join(parts, sep)
}
