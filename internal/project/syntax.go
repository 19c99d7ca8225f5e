package project

import (
	"strings"
)

type Pos struct {
	Line int
	Col  int
}

type Import struct {
	Spec       string
	Names      []string
	Default    bool
	Namespace  bool
	SideEffect bool
	Dynamic    bool
	Require    bool
	ReExport   bool
	Line       int
}

type Export struct {
	Name string
	Kind string
	Line int
}

// Call is a call or construction whose callee is a plain identifier chain
// such as `console.log` or `new Function`. Args spans the tokens between the
// parentheses as indexes into SourceFile.Code.
type Call struct {
	Callee    string
	New       bool
	Line      int
	Col       int
	ArgsStart int
	ArgsEnd   int
}

type Catch struct {
	Line  int
	Col   int
	Empty bool
}

// syntax is the light model lifted from the token stream.
type syntax struct {
	imports   []Import
	exports   []Export
	calls     []Call
	catches   []Catch
	anyTypes  []Pos
	debuggers []Pos
	deletes   []Pos
}

var controlKeywords = map[string]bool{
	"if": true, "for": true, "while": true, "switch": true, "catch": true,
	"function": true, "return": true, "typeof": true, "await": true, "yield": true,
	"with": true, "super": true, "import": true, "void": true, "delete": true,
}

var declKinds = map[string]string{
	"function": "function", "const": "const", "let": "let", "var": "var",
	"class": "class", "interface": "interface", "type": "type", "enum": "enum",
	"namespace": "namespace",
}

// checkBalance verifies that (), [] and {} nest properly.
func checkBalance(code []Token) error {
	type open struct {
		text string
		tok  Token
	}
	pairs := map[string]string{")": "(", "]": "[", "}": "{"}
	var stack []open
	for _, t := range code {
		if t.Kind != TokenPunct {
			continue
		}
		switch t.Text {
		case "(", "[", "{":
			stack = append(stack, open{text: t.Text, tok: t})
		case ")", "]", "}":
			if len(stack) == 0 || stack[len(stack)-1].text != pairs[t.Text] {
				return &ParseError{Line: t.Line, Col: t.Col, Msg: "unbalanced '" + t.Text + "'"}
			}
			stack = stack[:len(stack)-1]
		}
	}
	if len(stack) > 0 {
		t := stack[len(stack)-1].tok
		return &ParseError{Line: t.Line, Col: t.Col, Msg: "unclosed '" + t.Text + "'"}
	}
	return nil
}

// matching returns the index of the token closing the bracket at i, or -1.
func matching(code []Token, i int) int {
	openText := code[i].Text
	closeText := map[string]string{"(": ")", "[": "]", "{": "}"}[openText]
	depth := 0
	for j := i; j < len(code); j++ {
		if code[j].Kind != TokenPunct {
			continue
		}
		switch code[j].Text {
		case openText:
			depth++
		case closeText:
			depth--
			if depth == 0 {
				return j
			}
		}
	}
	return -1
}

func at(code []Token, i int) Token {
	if i >= 0 && i < len(code) {
		return code[i]
	}
	return Token{}
}

func isPunct(t Token, texts ...string) bool {
	if t.Kind != TokenPunct {
		return false
	}
	for _, s := range texts {
		if t.Text == s {
			return true
		}
	}
	return false
}

func isMemberAccess(t Token) bool {
	return isPunct(t, ".", "?.")
}

func extract(code []Token) syntax {
	var s syntax
	for i := 0; i < len(code); i++ {
		t := code[i]
		if t.Kind != TokenIdent {
			continue
		}
		prev := at(code, i-1)
		next := at(code, i+1)
		if isMemberAccess(prev) {
			continue
		}

		switch t.Text {
		case "import":
			if imp, ok := parseImport(code, i); ok {
				s.imports = append(s.imports, imp)
			}
		case "export":
			imps, exps := parseExport(code, i)
			s.imports = append(s.imports, imps...)
			s.exports = append(s.exports, exps...)
		case "require":
			if isPunct(next, "(") && at(code, i+2).Kind == TokenString && isPunct(at(code, i+3), ")") {
				s.imports = append(s.imports, Import{Spec: at(code, i+2).Text, Require: true, Namespace: true, Line: t.Line})
			}
		case "module":
			if isPunct(next, ".") && at(code, i+2).Is(TokenIdent, "exports") && isPunct(at(code, i+3), "=") {
				s.exports = append(s.exports, Export{Name: "default", Kind: "commonjs", Line: t.Line})
			}
		case "exports":
			if isPunct(next, ".") && at(code, i+2).Kind == TokenIdent && isPunct(at(code, i+3), "=") {
				s.exports = append(s.exports, Export{Name: at(code, i+2).Text, Kind: "commonjs", Line: t.Line})
			}
		case "catch":
			if isPunct(prev, "}") {
				if c, ok := parseCatch(code, i); ok {
					s.catches = append(s.catches, c)
				}
			}
		case "any":
			if isAnyType(code, i) {
				s.anyTypes = append(s.anyTypes, Pos{Line: t.Line, Col: t.Col})
			}
		case "debugger":
			s.debuggers = append(s.debuggers, Pos{Line: t.Line, Col: t.Col})
		case "delete":
			if next.Kind == TokenIdent || isPunct(next, "(") {
				s.deletes = append(s.deletes, Pos{Line: t.Line, Col: t.Col})
			}
		}

		if controlKeywords[t.Text] {
			continue
		}
		if c, ok := parseCall(code, i); ok {
			s.calls = append(s.calls, c)
		}
	}
	return s
}

func parseCall(code []Token, i int) (Call, bool) {
	start := code[i]
	parts := []string{start.Text}
	j := i
	for isMemberAccess(at(code, j+1)) && at(code, j+2).Kind == TokenIdent {
		parts = append(parts, at(code, j+2).Text)
		j += 2
	}
	if !isPunct(at(code, j+1), "(") {
		return Call{}, false
	}
	end := matching(code, j+1)
	if end < 0 {
		return Call{}, false
	}
	// `name(...) {` at statement or class-member level is a declaration.
	if len(parts) == 1 && (isPunct(at(code, end+1), "{") || isPunct(at(code, end+1), ":")) && declarationContext(at(code, i-1)) {
		return Call{}, false
	}
	return Call{
		Callee:    strings.Join(parts, "."),
		New:       at(code, i-1).Is(TokenIdent, "new"),
		Line:      start.Line,
		Col:       start.Col,
		ArgsStart: j + 2,
		ArgsEnd:   end,
	}, true
}

var memberModifiers = map[string]bool{
	"async": true, "static": true, "public": true, "private": true, "protected": true,
	"get": true, "set": true, "readonly": true, "override": true,
	"function": true,
}

func declarationContext(prev Token) bool {
	switch prev.Kind {
	case 0:
		return true
	case TokenPunct:
		return prev.Text == "{" || prev.Text == "}" || prev.Text == ";" || prev.Text == "*"
	case TokenIdent:
		return memberModifiers[prev.Text]
	}
	return false
}

func parseCatch(code []Token, i int) (Catch, bool) {
	t := code[i]
	j := i + 1
	if isPunct(at(code, j), "(") {
		end := matching(code, j)
		if end < 0 {
			return Catch{}, false
		}
		j = end + 1
	}
	if !isPunct(at(code, j), "{") {
		return Catch{}, false
	}
	return Catch{Line: t.Line, Col: t.Col, Empty: isPunct(at(code, j+1), "}")}, true
}

func isAnyType(code []Token, i int) bool {
	prev := at(code, i-1)
	next := at(code, i+1)
	if isPunct(prev, ":", "<", "|", "&", "=>") {
		return true
	}
	if prev.Is(TokenIdent, "as") || prev.Is(TokenIdent, "keyof") {
		return true
	}
	if isPunct(prev, ",") && next.Kind == TokenPunct && strings.HasPrefix(next.Text, ">") {
		return true
	}
	return false
}

func parseImport(code []Token, i int) (Import, bool) {
	t := code[i]
	next := at(code, i+1)
	if isPunct(next, "(") {
		if s := at(code, i+2); s.Kind == TokenString || s.Kind == TokenTemplate {
			return Import{Spec: s.Text, Dynamic: true, Namespace: true, Line: t.Line}, true
		}
		return Import{}, false
	}
	if isPunct(next, ".") {
		return Import{}, false
	}
	if next.Kind == TokenString {
		return Import{Spec: next.Text, SideEffect: true, Line: t.Line}, true
	}

	imp := Import{Line: t.Line}
	depth := 0
	for j := i + 1; j < len(code) && j < i+200; j++ {
		tok := code[j]
		switch {
		case isPunct(tok, "{"):
			depth++
		case isPunct(tok, "}"):
			depth--
		case isPunct(tok, "*") && depth == 0:
			imp.Namespace = true
		case tok.Is(TokenIdent, "from") && depth == 0 && at(code, j+1).Kind == TokenString:
			imp.Spec = at(code, j+1).Text
			return imp, true
		case tok.Is(TokenIdent, "require") && isPunct(at(code, j+1), "(") && at(code, j+2).Kind == TokenString:
			imp.Spec = at(code, j+2).Text
			imp.Require = true
			imp.Namespace = true
			return imp, true
		case isPunct(tok, ";"):
			return Import{}, false
		case tok.Kind == TokenIdent && depth == 1:
			if tok.Text == "type" && at(code, j+1).Kind == TokenIdent {
				continue
			}
			if !isPunct(at(code, j-1), ",", "{") && !at(code, j-1).Is(TokenIdent, "type") {
				continue
			}
			imp.Names = append(imp.Names, tok.Text)
		case tok.Kind == TokenIdent && depth == 0:
			if tok.Text == "type" || tok.Text == "as" || at(code, j-1).Is(TokenIdent, "as") {
				continue
			}
			imp.Default = true
		}
	}
	return Import{}, false
}

func parseExport(code []Token, i int) ([]Import, []Export) {
	t := code[i]
	j := i + 1
	for at(code, j).Is(TokenIdent, "declare") || at(code, j).Is(TokenIdent, "async") || at(code, j).Is(TokenIdent, "abstract") {
		j++
	}
	next := at(code, j)

	switch {
	case next.Is(TokenIdent, "default"):
		return nil, []Export{{Name: "default", Kind: "default", Line: t.Line}}
	case isPunct(next, "*"):
		k := j + 1
		if at(code, k).Is(TokenIdent, "as") {
			k += 2
		}
		if at(code, k).Is(TokenIdent, "from") && at(code, k+1).Kind == TokenString {
			return []Import{{Spec: at(code, k+1).Text, Namespace: true, ReExport: true, Line: t.Line}}, nil
		}
		return nil, nil
	case isPunct(next, "{"):
		end := matching(code, j)
		if end < 0 {
			return nil, nil
		}
		var locals, exported []string
		for k := j + 1; k < end; k++ {
			tok := code[k]
			if tok.Kind != TokenIdent || tok.Text == "type" && at(code, k+1).Kind == TokenIdent {
				continue
			}
			if at(code, k-1).Is(TokenIdent, "as") && len(exported) > 0 {
				exported[len(exported)-1] = tok.Text
				continue
			}
			if tok.Text == "as" {
				continue
			}
			locals = append(locals, tok.Text)
			exported = append(exported, tok.Text)
		}
		var exps []Export
		for _, name := range exported {
			exps = append(exps, Export{Name: name, Kind: "named", Line: t.Line})
		}
		if at(code, end+1).Is(TokenIdent, "from") && at(code, end+2).Kind == TokenString {
			return []Import{{Spec: at(code, end+2).Text, Names: locals, ReExport: true, Line: t.Line}}, exps
		}
		return nil, exps
	case next.Kind == TokenIdent:
		kind, ok := declKinds[next.Text]
		if !ok {
			return nil, nil
		}
		k := j + 1
		if isPunct(at(code, k), "*") {
			k++
		}
		if name := at(code, k); name.Kind == TokenIdent {
			return nil, []Export{{Name: name.Text, Kind: kind, Line: t.Line}}
		}
	}
	return nil, nil
}
