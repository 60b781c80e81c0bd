// Package match implements the boolean phrase-expression language used by
// trigger actions and conditions. Expressions combine free-text literals with
// `|`/`or`, `+`/`and`, `!`/`not`, parentheses, and quoted literals:
//
//	touch altar | touch stone
//	"has key" + !locked
//	(north or south) and not mounted
//
// AND binds tighter than OR, NOT tighter than both. Word-form operators only
// count when bounded by non-word characters, so "organic" stays a literal.
package match

import (
	"strings"
	"time"
	"unicode"

	"github.com/pkg/errors"

	cache "github.com/go-pkgz/expirable-cache/v3"
)

// TermMatcher decides whether a single literal matches; it is called at every
// leaf of the parsed expression.
type TermMatcher func(literal string) bool

const (
	parseCacheSize = 1024
	parseCacheTTL  = time.Hour
)

// The same expressions get evaluated on every command, so parses are kept in
// a bounded LRU. Failed parses are never cached.
var parseCache = cache.NewCache[string, node]().WithMaxKeys(parseCacheSize).WithTTL(parseCacheTTL)

// Validate parses expr and discards the result. Content authoring uses this
// to reject malformed expressions before they are ever evaluated.
func Validate(expr string) error {
	if strings.TrimSpace(expr) == "" {
		return nil
	}
	_, err := parse(expr)
	return err
}

// Evaluate parses expr (cached) and walks the tree, calling matcher at every
// literal. A blank expression yields emptyDefault: condition call sites pass
// true (no condition means always allowed), action call sites pass false.
func Evaluate(expr string, matcher TermMatcher, emptyDefault bool) (bool, error) {
	if strings.TrimSpace(expr) == "" {
		return emptyDefault, nil
	}
	root, err := parse(expr)
	if err != nil {
		return false, err
	}
	return root.eval(matcher), nil
}

// FirstLiteral returns the first (leftmost) literal of expr, used to render a
// default label for the expression.
func FirstLiteral(expr string) (string, error) {
	if strings.TrimSpace(expr) == "" {
		return "", nil
	}
	root, err := parse(expr)
	if err != nil {
		return "", err
	}
	return root.first(), nil
}

// Phrase returns a TermMatcher that matches a literal against text on word
// boundaries: "stone" matches "touch the old stone", "ton" does not.
func Phrase(text string) TermMatcher {
	padded := " " + normalizeWords(text) + " "
	return func(literal string) bool {
		needle := normalizeWords(literal)
		if needle == "" {
			return false
		}
		return strings.Contains(padded, " "+needle+" ")
	}
}

// Exact returns a TermMatcher that requires the whole text to equal the
// literal, ignoring case and whitespace runs.
func Exact(text string) TermMatcher {
	normalized := normalizeWords(text)
	return func(literal string) bool {
		return normalized == normalizeWords(literal)
	}
}

// normalizeWords lowercases s and collapses every non-word run to a single
// space, so matching ignores case, punctuation, and whitespace layout.
func normalizeWords(s string) string {
	var buf strings.Builder
	buf.Grow(len(s))
	space := true
	for _, r := range strings.ToLower(s) {
		if isWordRune(r) {
			buf.WriteRune(r)
			space = false
		} else if !space {
			buf.WriteRune(' ')
			space = true
		}
	}
	return strings.TrimRight(buf.String(), " ")
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

type node interface {
	eval(matcher TermMatcher) bool
	first() string
}

type literal string

func (l literal) eval(matcher TermMatcher) bool {
	return matcher(string(l))
}

func (l literal) first() string {
	return string(l)
}

type notNode struct {
	sub node
}

func (n notNode) eval(matcher TermMatcher) bool {
	return !n.sub.eval(matcher)
}

func (n notNode) first() string {
	return n.sub.first()
}

type andNode struct {
	left, right node
}

func (n andNode) eval(matcher TermMatcher) bool {
	return n.left.eval(matcher) && n.right.eval(matcher)
}

func (n andNode) first() string {
	return n.left.first()
}

type orNode struct {
	left, right node
}

func (n orNode) eval(matcher TermMatcher) bool {
	return n.left.eval(matcher) || n.right.eval(matcher)
}

func (n orNode) first() string {
	return n.left.first()
}

func parse(expr string) (node, error) {
	if root, found := parseCache.Get(expr); found {
		return root, nil
	}
	tokens, err := tokenize(expr)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens, expr: expr}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.pos < len(p.tokens) {
		return nil, errors.Errorf("unexpected %q in %q", p.tokens[p.pos].text, expr)
	}
	parseCache.Set(expr, root, 0)
	return root, nil
}

type tokenKind int

const (
	tokenLiteral tokenKind = iota
	tokenOr
	tokenAnd
	tokenNot
	tokenOpen
	tokenClose
)

type token struct {
	kind tokenKind
	text string
}

// wordOperators maps the textual operator forms to their token kinds. They
// only apply when bounded by non-word characters on both sides.
var wordOperators = map[string]tokenKind{
	"or":  tokenOr,
	"and": tokenAnd,
	"not": tokenNot,
}

func tokenize(s string) ([]token, error) {
	tokens := []token{}
	buf := &strings.Builder{}
	sawQuote := false
	flush := func() {
		text := strings.TrimSpace(buf.String())
		if text != "" || sawQuote {
			tokens = append(tokens, token{kind: tokenLiteral, text: text})
		}
		buf.Reset()
		sawQuote = false
	}
	op := func(kind tokenKind, text string) {
		flush()
		tokens = append(tokens, token{kind: kind, text: text})
	}
	i := 0
	for i < len(s) {
		switch c := s[i]; c {
		case '"', '\'':
			// Quoted segments are literal verbatim, operators included.
			quote := c
			i++
			for i < len(s) && s[i] != quote {
				if s[i] == '\\' && i+1 < len(s) {
					i++
				}
				buf.WriteByte(s[i])
				i++
			}
			if i >= len(s) {
				return nil, errors.Errorf("unterminated %c-quote in %q", quote, s)
			}
			i++
			sawQuote = true
		case '|':
			op(tokenOr, "|")
			i++
		case '+':
			op(tokenAnd, "+")
			i++
		case '!':
			op(tokenNot, "!")
			i++
		case '(':
			op(tokenOpen, "(")
			i++
		case ')':
			op(tokenClose, ")")
			i++
		default:
			if word, kind, ok := wordOperatorAt(s, i); ok {
				op(kind, word)
				i += len(word)
			} else {
				buf.WriteByte(c)
				i++
			}
		}
	}
	flush()
	return tokens, nil
}

// wordOperatorAt reports whether a word-form operator starts at s[i], i.e.
// the operator word is there with non-word characters (or the ends of the
// string) on both sides.
func wordOperatorAt(s string, i int) (string, tokenKind, bool) {
	if i > 0 && isWordByte(s[i-1]) {
		return "", 0, false
	}
	for word, kind := range wordOperators {
		end := i + len(word)
		if end > len(s) {
			continue
		}
		if !strings.EqualFold(s[i:end], word) {
			continue
		}
		if end < len(s) && isWordByte(s[end]) {
			continue
		}
		return s[i:end], kind, true
	}
	return "", 0, false
}

func isWordByte(b byte) bool {
	return b == '_' ||
		(b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z') ||
		(b >= '0' && b <= '9') ||
		b >= 0x80 // multi-byte runes are treated as word characters
}

type parser struct {
	tokens []token
	expr   string
	pos    int
}

func (p *parser) peek() (token, bool) {
	if p.pos >= len(p.tokens) {
		return token{}, false
	}
	return p.tokens[p.pos], true
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for {
		t, ok := p.peek()
		if !ok || t.kind != tokenOr {
			return left, nil
		}
		p.pos++
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = orNode{left: left, right: right}
	}
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for {
		t, ok := p.peek()
		if !ok || t.kind != tokenAnd {
			return left, nil
		}
		p.pos++
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = andNode{left: left, right: right}
	}
}

func (p *parser) parseNot() (node, error) {
	t, ok := p.peek()
	if ok && t.kind == tokenNot {
		p.pos++
		sub, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return notNode{sub: sub}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	t, ok := p.peek()
	if !ok {
		return nil, errors.Errorf("unexpected end of expression %q", p.expr)
	}
	switch t.kind {
	case tokenOpen:
		p.pos++
		sub, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		t, ok := p.peek()
		if !ok || t.kind != tokenClose {
			return nil, errors.Errorf("missing ) in %q", p.expr)
		}
		p.pos++
		return sub, nil
	case tokenLiteral:
		p.pos++
		return literal(t.text), nil
	default:
		return nil, errors.Errorf("unexpected %q in %q", t.text, p.expr)
	}
}
