package project

import (
	"fmt"
	"strings"
	"unicode"
)

type TokenKind int

const (
	TokenIdent TokenKind = iota + 1
	TokenNumber
	TokenString
	TokenTemplate
	TokenRegex
	TokenPunct
	TokenComment
	TokenJSXTag
	TokenJSXAttr
	TokenJSXText
)

func (k TokenKind) String() string {
	switch k {
	case TokenIdent:
		return "ident"
	case TokenNumber:
		return "number"
	case TokenString:
		return "string"
	case TokenTemplate:
		return "template"
	case TokenRegex:
		return "regex"
	case TokenPunct:
		return "punct"
	case TokenComment:
		return "comment"
	case TokenJSXTag:
		return "jsx-tag"
	case TokenJSXAttr:
		return "jsx-attr"
	case TokenJSXText:
		return "jsx-text"
	default:
		return "unknown"
	}
}

// Token positions are 1-based.
type Token struct {
	Kind TokenKind
	Text string
	Line int
	Col  int
}

func (t Token) Is(kind TokenKind, text string) bool {
	return t.Kind == kind && t.Text == text
}

// JSXElement is an opening JSX tag with the attribute names it carries.
type JSXElement struct {
	Tag   string
	Attrs []string
	Line  int
	Col   int
}

func (e JSXElement) HasAttr(name string) bool {
	for _, a := range e.Attrs {
		if a == name {
			return true
		}
	}
	return false
}

type ParseError struct {
	Line int
	Col  int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Col, e.Msg)
}

var punctuators = []string{
	">>>=", "...", "===", "!==", "**=", "<<=", ">>=", ">>>", "&&=", "||=", "??=",
	"=>", "==", "!=", "<=", ">=", "&&", "||", "??", "?.", "++", "--",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "**", "<<", ">>",
}

// keywords after which an expression, and therefore a regex or JSX, may start.
var exprKeywords = map[string]bool{
	"return": true, "typeof": true, "case": true, "do": true, "else": true,
	"in": true, "of": true, "new": true, "delete": true, "void": true,
	"throw": true, "instanceof": true, "yield": true, "await": true,
}

type lexer struct {
	src    []rune
	pos    int
	line   int
	col    int
	jsx    bool
	tokens []Token
	elems  []JSXElement
	err    *ParseError
}

// Tokenize splits TypeScript or JavaScript source into tokens. When jsx is
// true, JSX elements in expression position are recognised.
func Tokenize(src string, jsx bool) ([]Token, []JSXElement, error) {
	l := &lexer{src: []rune(src), line: 1, col: 1, jsx: jsx}
	if strings.HasPrefix(src, "#!") {
		for !l.eof() && l.peek(0) != '\n' {
			l.advance()
		}
	}
	l.lexUntil(false)
	if l.err != nil {
		return l.tokens, l.elems, l.err
	}
	return l.tokens, l.elems, nil
}

func (l *lexer) eof() bool {
	return l.pos >= len(l.src)
}

func (l *lexer) peek(off int) rune {
	i := l.pos + off
	if i < len(l.src) && i >= 0 {
		return l.src[i]
	}
	return 0
}

func (l *lexer) advance() rune {
	r := l.src[l.pos]
	l.pos++
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return r
}

func (l *lexer) fail(msg string) {
	if l.err == nil {
		l.err = &ParseError{Line: l.line, Col: l.col, Msg: msg}
	}
}

func (l *lexer) emit(kind TokenKind, text string, line, col int) {
	l.tokens = append(l.tokens, Token{Kind: kind, Text: text, Line: line, Col: col})
}

// stalled fails the lexer when a loop iteration that started at pos
// consumed nothing.
func (l *lexer) stalled(pos int) bool {
	if l.err == nil && l.pos == pos {
		l.fail(fmt.Sprintf("unexpected character %q", l.peek(0)))
	}
	return l.err != nil
}

func (l *lexer) skipSpace() {
	for !l.eof() && unicode.IsSpace(l.peek(0)) {
		l.advance()
	}
}

// lexUntil consumes tokens until EOF or, when closeBrace is set, until the
// '}' that closes an enclosing template or JSX expression.
func (l *lexer) lexUntil(closeBrace bool) {
	depth := 0
	for l.err == nil {
		l.skipSpace()
		if l.eof() {
			if closeBrace {
				l.fail("unterminated embedded expression")
			}
			return
		}
		start := l.pos
		r := l.peek(0)
		switch {
		case r == '/' && l.peek(1) == '/':
			l.lineComment()
		case r == '/' && l.peek(1) == '*':
			l.blockComment()
		case r == '\'' || r == '"':
			l.stringLit(r)
		case r == '`':
			l.template()
		case isIdentStart(r):
			l.ident()
		case isDigit(r) || (r == '.' && isDigit(l.peek(1))):
			l.number()
		case r == '/' && l.operandExpected():
			l.regex()
		case r == '<' && l.jsx && l.operandExpected() && (isIdentStart(l.peek(1)) || l.peek(1) == '>'):
			l.jsxElement()
		case r == '{':
			depth++
			l.single()
		case r == '}':
			if depth == 0 && closeBrace {
				l.advance()
				return
			}
			depth--
			l.single()
		default:
			l.punctuator()
		}
		if l.stalled(start) {
			return
		}
	}
}

func (l *lexer) lastCode() (Token, bool) {
	for i := len(l.tokens) - 1; i >= 0; i-- {
		if l.tokens[i].Kind != TokenComment {
			return l.tokens[i], true
		}
	}
	return Token{}, false
}

// operandExpected decides between division and the start of a regex or
// JSX element from the previous significant token.
func (l *lexer) operandExpected() bool {
	prev, ok := l.lastCode()
	if !ok {
		return true
	}
	switch prev.Kind {
	case TokenPunct:
		switch prev.Text {
		case ")", "]", "}", "++", "--":
			return false
		}
		return true
	case TokenIdent:
		return exprKeywords[prev.Text]
	default:
		return false
	}
}

func (l *lexer) single() {
	line, col := l.line, l.col
	r := l.advance()
	l.emit(TokenPunct, string(r), line, col)
}

func (l *lexer) punctuator() {
	line, col := l.line, l.col
	for _, p := range punctuators {
		if l.hasPrefix(p) {
			if p == "?." && isDigit(l.peek(2)) {
				continue
			}
			for range []rune(p) {
				l.advance()
			}
			l.emit(TokenPunct, p, line, col)
			return
		}
	}
	l.single()
}

func (l *lexer) hasPrefix(p string) bool {
	rs := []rune(p)
	for i, r := range rs {
		if l.peek(i) != r {
			return false
		}
	}
	return true
}

func (l *lexer) lineComment() {
	line, col := l.line, l.col
	l.advance()
	l.advance()
	var b strings.Builder
	for !l.eof() && l.peek(0) != '\n' {
		b.WriteRune(l.advance())
	}
	l.emit(TokenComment, b.String(), line, col)
}

func (l *lexer) blockComment() {
	line, col := l.line, l.col
	l.advance()
	l.advance()
	var b strings.Builder
	for {
		if l.eof() {
			l.fail("unterminated comment")
			return
		}
		if l.peek(0) == '*' && l.peek(1) == '/' {
			l.advance()
			l.advance()
			break
		}
		b.WriteRune(l.advance())
	}
	l.emit(TokenComment, b.String(), line, col)
}

func (l *lexer) stringLit(quote rune) {
	line, col := l.line, l.col
	l.advance()
	var b strings.Builder
	for {
		if l.eof() {
			l.fail("unterminated string literal")
			return
		}
		r := l.peek(0)
		switch r {
		case '\\':
			b.WriteRune(l.advance())
			if !l.eof() {
				b.WriteRune(l.advance())
			}
			continue
		case '\n':
			l.fail("newline in string literal")
			return
		case quote:
			l.advance()
			l.emit(TokenString, b.String(), line, col)
			return
		}
		b.WriteRune(l.advance())
	}
}

func (l *lexer) template() {
	line, col := l.line, l.col
	l.advance()
	var b strings.Builder
	for l.err == nil {
		if l.eof() {
			l.fail("unterminated template literal")
			return
		}
		r := l.peek(0)
		switch {
		case r == '\\':
			b.WriteRune(l.advance())
			if !l.eof() {
				b.WriteRune(l.advance())
			}
		case r == '`':
			l.advance()
			l.emit(TokenTemplate, b.String(), line, col)
			return
		case r == '$' && l.peek(1) == '{':
			l.emit(TokenTemplate, b.String(), line, col)
			b.Reset()
			l.advance()
			l.advance()
			l.lexUntil(true)
			line, col = l.line, l.col
		default:
			b.WriteRune(l.advance())
		}
	}
}

func (l *lexer) regex() {
	line, col := l.line, l.col
	l.advance()
	var b strings.Builder
	inClass := false
	for {
		if l.eof() || l.peek(0) == '\n' {
			l.fail("unterminated regular expression")
			return
		}
		r := l.advance()
		if r == '\\' {
			b.WriteRune(r)
			if !l.eof() {
				b.WriteRune(l.advance())
			}
			continue
		}
		if r == '[' {
			inClass = true
		} else if r == ']' {
			inClass = false
		} else if r == '/' && !inClass {
			break
		}
		b.WriteRune(r)
	}
	for !l.eof() && isIdentPart(l.peek(0)) {
		l.advance()
	}
	l.emit(TokenRegex, b.String(), line, col)
}

func (l *lexer) ident() {
	line, col := l.line, l.col
	var b strings.Builder
	b.WriteRune(l.advance())
	for !l.eof() && isIdentPart(l.peek(0)) {
		b.WriteRune(l.advance())
	}
	l.emit(TokenIdent, b.String(), line, col)
}

func (l *lexer) number() {
	line, col := l.line, l.col
	var b strings.Builder
	for !l.eof() {
		r := l.peek(0)
		if isIdentPart(r) || r == '.' {
			b.WriteRune(l.advance())
			if (r == 'e' || r == 'E') && (l.peek(0) == '+' || l.peek(0) == '-') && !strings.HasPrefix(b.String(), "0x") {
				b.WriteRune(l.advance())
			}
			continue
		}
		break
	}
	l.emit(TokenNumber, b.String(), line, col)
}

func (l *lexer) jsxName() string {
	var b strings.Builder
	for !l.eof() {
		r := l.peek(0)
		if isIdentPart(r) || r == '-' || r == '.' || r == ':' {
			b.WriteRune(l.advance())
			continue
		}
		break
	}
	return b.String()
}

func (l *lexer) jsxElement() {
	line, col := l.line, l.col
	l.advance()
	l.skipSpace()
	name := l.jsxName()
	l.emit(TokenJSXTag, name, line, col)
	idx := len(l.elems)
	l.elems = append(l.elems, JSXElement{Tag: name, Line: line, Col: col})

	for l.err == nil {
		l.skipSpace()
		if l.eof() {
			l.fail("unterminated JSX tag <" + name + ">")
			return
		}
		start := l.pos
		r := l.peek(0)
		switch {
		case r == '/' && l.peek(1) == '>':
			l.advance()
			l.advance()
			return
		case r == '>':
			l.advance()
			l.jsxChildren(name)
			return
		case r == '{':
			// Spread attributes are recorded as "..." since any name may hide behind them.
			l.skipSpreadMarker(idx)
			l.advance()
			l.lexUntil(true)
		case isIdentStart(r):
			aline, acol := l.line, l.col
			attr := l.jsxName()
			if attr == "" {
				l.fail("unexpected character in JSX tag")
				return
			}
			l.emit(TokenJSXAttr, attr, aline, acol)
			l.elems[idx].Attrs = append(l.elems[idx].Attrs, attr)
			l.skipSpace()
			if l.peek(0) != '=' {
				l.stalled(start)
				continue
			}
			l.advance()
			l.skipSpace()
			switch q := l.peek(0); {
			case q == '"' || q == '\'':
				l.jsxAttrString(q)
			case q == '{':
				l.advance()
				l.lexUntil(true)
			case q == '<':
				l.jsxElement()
			default:
				l.fail("unexpected JSX attribute value")
			}
		default:
			l.fail("unexpected character in JSX tag")
		}
		l.stalled(start)
	}
}

func (l *lexer) jsxAttrString(quote rune) {
	line, col := l.line, l.col
	l.advance()
	var b strings.Builder
	for {
		if l.eof() {
			l.fail("unterminated JSX attribute")
			return
		}
		r := l.advance()
		if r == quote {
			break
		}
		b.WriteRune(r)
	}
	l.emit(TokenString, b.String(), line, col)
}

func (l *lexer) jsxChildren(name string) {
	for l.err == nil {
		if l.eof() {
			l.fail("unclosed JSX element <" + name + ">")
			return
		}
		start := l.pos
		r := l.peek(0)
		switch {
		case r == '<' && l.peek(1) == '/':
			l.advance()
			l.advance()
			l.skipSpace()
			closing := l.jsxName()
			l.skipSpace()
			if l.peek(0) != '>' {
				l.fail("malformed JSX closing tag")
				return
			}
			l.advance()
			if closing != name {
				l.fail(fmt.Sprintf("mismatched JSX closing tag </%s> for <%s>", closing, name))
			}
			return
		case r == '<':
			l.jsxElement()
		case r == '{':
			l.advance()
			l.lexUntil(true)
		default:
			line, col := l.line, l.col
			var b strings.Builder
			for !l.eof() && l.peek(0) != '<' && l.peek(0) != '{' {
				b.WriteRune(l.advance())
			}
			if text := strings.TrimSpace(b.String()); text != "" {
				l.emit(TokenJSXText, text, line, col)
			}
		}
		l.stalled(start)
	}
}

func isIdentStart(r rune) bool {
	return r == '_' || r == '$' || r == '#' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func (l *lexer) skipSpreadMarker(idx int) {
	i := 1
	for unicode.IsSpace(l.peek(i)) {
		i++
	}
	if l.peek(i) == '.' && l.peek(i+1) == '.' && l.peek(i+2) == '.' {
		l.elems[idx].Attrs = append(l.elems[idx].Attrs, "...")
	}
}
