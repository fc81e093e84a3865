package query

import (
	"strings"
	"unicode"

	"termcore/pkg/domain"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokString
	tokOp
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
}

type lexer struct {
	input string
	pos   int
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.input) && unicode.IsSpace(rune(l.input[l.pos])) {
		l.pos++
	}
	if l.pos >= len(l.input) {
		return token{kind: tokEOF}, nil
	}
	ch := l.input[l.pos]
	switch {
	case ch == '(':
		l.pos++
		return token{kind: tokLParen, text: "("}, nil
	case ch == ')':
		l.pos++
		return token{kind: tokRParen, text: ")"}, nil
	case ch == '=':
		l.pos++
		return token{kind: tokOp, text: "="}, nil
	case ch == '!':
		if l.pos+1 < len(l.input) && l.input[l.pos+1] == '=' {
			l.pos += 2
			return token{kind: tokOp, text: "!="}, nil
		}
		return token{}, domain.Validationf("unexpected character %q at offset %d", ch, l.pos)
	case ch == '<':
		if l.pos+1 < len(l.input) && l.input[l.pos+1] == '>' {
			l.pos += 2
			return token{kind: tokOp, text: "!="}, nil
		}
		return token{}, domain.Validationf("unexpected character %q at offset %d", ch, l.pos)
	case ch == '\'':
		end := l.pos + 1
		for end < len(l.input) && l.input[end] != '\'' {
			end++
		}
		if end >= len(l.input) {
			return token{}, domain.Validationf("unterminated string at offset %d", l.pos)
		}
		text := l.input[l.pos+1 : end]
		l.pos = end + 1
		return token{kind: tokString, text: text}, nil
	case isIdentRune(rune(ch)):
		end := l.pos
		for end < len(l.input) && isIdentRune(rune(l.input[end])) {
			end++
		}
		text := l.input[l.pos:end]
		l.pos = end
		return token{kind: tokIdent, text: text}, nil
	default:
		return token{}, domain.Validationf("unexpected character %q at offset %d", ch, l.pos)
	}
}

func isIdentRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.' || r == '%'
}

type parser struct {
	lex     *lexer
	current token
}

func newParser(input string) (*parser, error) {
	p := &parser{lex: &lexer{input: input}}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *parser) advance() error {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.current = tok
	return nil
}

func (p *parser) isKeyword(word string) bool {
	return p.current.kind == tokIdent && strings.EqualFold(p.current.text, word)
}

// Parse compiles an expression-language query into the IR. Grammar:
//
//	expr   := and (OR and)*
//	and    := unary (AND unary)*
//	unary  := NOT unary | '(' expr ')' | field op value
//	op     := '=' | '!=' | '<>' | LIKE
//	value  := 'quoted string' | bareword
func Parse(input string) (Expr, error) {
	p, err := newParser(input)
	if err != nil {
		return nil, err
	}
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.current.kind != tokEOF {
		return nil, domain.Validationf("unexpected trailing token %q", p.current.text)
	}
	return expr, nil
}

// ParseSQL compiles the restricted SQL form: SELECT <cols> FROM concepts
// WHERE <clause>. Only the WHERE clause carries meaning; it uses the same
// grammar as the expression language.
func ParseSQL(input string) (Expr, error) {
	trimmed := strings.TrimSpace(input)
	lower := strings.ToLower(trimmed)
	if !strings.HasPrefix(lower, "select") {
		return nil, domain.Validationf("sql query must start with SELECT")
	}
	fromIdx := strings.Index(lower, " from ")
	if fromIdx < 0 {
		return nil, domain.Validationf("sql query missing FROM clause")
	}
	rest := strings.TrimSpace(trimmed[fromIdx+len(" from "):])
	restLower := strings.ToLower(rest)
	if !strings.HasPrefix(restLower, "concepts") {
		return nil, domain.Validationf("sql query must select from concepts")
	}
	whereIdx := strings.Index(restLower, "where")
	if whereIdx < 0 {
		return nil, domain.Validationf("sql query missing WHERE clause")
	}
	return Parse(rest[whereIdx+len("where"):])
}

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	exprs := []Expr{left}
	for p.isKeyword("or") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, right)
	}
	if len(exprs) == 1 {
		return left, nil
	}
	return Or{Exprs: exprs}, nil
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	exprs := []Expr{left}
	for p.isKeyword("and") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, right)
	}
	if len(exprs) == 1 {
		return left, nil
	}
	return And{Exprs: exprs}, nil
}

func (p *parser) parseUnary() (Expr, error) {
	if p.isKeyword("not") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		child, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return Not{Expr: child}, nil
	}
	if p.current.kind == tokLParen {
		if err := p.advance(); err != nil {
			return nil, err
		}
		expr, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.current.kind != tokRParen {
			return nil, domain.Validationf("expected closing parenthesis, got %q", p.current.text)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return expr, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (Expr, error) {
	if p.current.kind != tokIdent {
		return nil, domain.Validationf("expected field name, got %q", p.current.text)
	}
	field := strings.ToLower(p.current.text)
	if err := p.advance(); err != nil {
		return nil, err
	}
	var op Op
	switch {
	case p.current.kind == tokOp && p.current.text == "=":
		op = OpEq
	case p.current.kind == tokOp && p.current.text == "!=":
		op = OpNeq
	case p.isKeyword("like"):
		op = OpLike
	default:
		return nil, domain.Validationf("expected operator after field %q, got %q", field, p.current.text)
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.current.kind != tokString && p.current.kind != tokIdent {
		return nil, domain.Validationf("expected value for field %q, got %q", field, p.current.text)
	}
	value := p.current.text
	if err := p.advance(); err != nil {
		return nil, err
	}
	return Comparison{Field: field, Op: op, Value: value}, nil
}
