package project

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/platform"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SourceFile is a TypeScript/JavaScript file lifted into the light syntax
// model. Code holds the tokens without comments or JSX text.
type SourceFile struct {
	Path      string
	Platform  platform.Platform
	Content   string
	Lines     []string
	Tokens    []Token
	Code      []Token
	Comments  []Token
	JSX       []JSXElement
	Imports   []Import
	Exports   []Export
	Calls     []Call
	Catches   []Catch
	AnyTypes  []Pos
	Debuggers []Pos
	Deletes   []Pos
}

// Args returns the tokens between the parentheses of a call.
func (f *SourceFile) Args(c Call) []Token {
	if c.ArgsStart < 0 || c.ArgsEnd > len(f.Code) || c.ArgsStart > c.ArgsEnd {
		return nil
	}
	return f.Code[c.ArgsStart:c.ArgsEnd]
}

// CallsTo returns calls whose callee equals one of names.
func (f *SourceFile) CallsTo(names ...string) []Call {
	var out []Call
	for _, c := range f.Calls {
		for _, n := range names {
			if c.Callee == n {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// ImportsModule reports whether the file imports spec, including node: forms.
func (f *SourceFile) ImportsModule(spec string) bool {
	for _, imp := range f.Imports {
		if imp.Spec == spec || imp.Spec == "node:"+spec {
			return true
		}
	}
	return false
}

// TextFile is a file analyzed as raw lines: Swift, Kotlin, and TS/JS files
// whose parse failed.
type TextFile struct {
	Path     string
	Platform platform.Platform
	Content  string
	Lines    []string
	Unparsed bool
}

// Program is the shared read-only view over every file in scope.
type Program struct {
	Root        string
	Files       map[string]*SourceFile
	Text        map[string]*TextFile
	ParseErrors map[string]error
	FullRepo    bool

	importers map[string][]string
}

// SourcePaths returns parsed file paths sorted.
func (p *Program) SourcePaths() []string {
	out := make([]string, 0, len(p.Files))
	for k := range p.Files {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// TextPaths returns text file paths sorted.
func (p *Program) TextPaths() []string {
	out := make([]string, 0, len(p.Text))
	for k := range p.Text {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Content returns the text of a file in the program, parsed or not.
func (p *Program) Content(rel string) (string, bool) {
	if f, ok := p.Files[rel]; ok {
		return f.Content, true
	}
	if f, ok := p.Text[rel]; ok {
		return f.Content, true
	}
	return "", false
}

var resolveSuffixes = []string{
	"", ".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs",
	"/index.ts", "/index.tsx", "/index.js", "/index.jsx",
}

// ResolveImport maps a relative import specifier to a file in the program.
// Bare package specifiers resolve to "".
func (p *Program) ResolveImport(from, spec string) string {
	if !strings.HasPrefix(spec, "./") && !strings.HasPrefix(spec, "../") {
		return ""
	}
	base := path.Join(path.Dir(from), spec)
	trimmed := strings.TrimSuffix(base, path.Ext(base))
	for _, candidate := range []string{base, trimmed} {
		for _, suffix := range resolveSuffixes {
			if _, ok := p.Files[candidate+suffix]; ok {
				return candidate + suffix
			}
		}
	}
	return ""
}

// Importers lists files that import path, sorted.
func (p *Program) Importers(target string) []string {
	return p.importers[target]
}

// ExportUsedElsewhere reports whether another file in the program imports
// name from file, through a named, default, namespace or re-export import.
func (p *Program) ExportUsedElsewhere(file, name string) bool {
	for _, imp := range p.Importers(file) {
		src := p.Files[imp]
		if src == nil {
			continue
		}
		for _, i := range src.Imports {
			if p.ResolveImport(imp, i.Spec) != file {
				continue
			}
			if i.Namespace || i.SideEffect && name == "" {
				return true
			}
			if name == "default" && i.Default {
				return true
			}
			for _, n := range i.Names {
				if n == name {
					return true
				}
			}
		}
	}
	return false
}

func (p *Program) index() {
	p.importers = make(map[string][]string)
	for _, from := range p.SourcePaths() {
		seen := make(map[string]bool)
		for _, imp := range p.Files[from].Imports {
			target := p.ResolveImport(from, imp.Spec)
			if target == "" || target == from || seen[target] {
				continue
			}
			seen[target] = true
			p.importers[target] = append(p.importers[target], from)
		}
	}
}

// Builder reads and parses scoped files.
type Builder struct {
	MaxFileBytes int64
	Concurrency  int
	Logger       *zap.SugaredLogger
}

var errTooLarge = errors.New("file too large")

// IsScript reports whether the path is TypeScript or JavaScript.
func IsScript(rel string) bool {
	switch strings.ToLower(path.Ext(rel)) {
	case ".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs":
		return true
	}
	return false
}

func allowsJSX(rel string) bool {
	switch strings.ToLower(path.Ext(rel)) {
	case ".tsx", ".jsx", ".js":
		return true
	}
	return false
}

// Build parses every TS/JS file into the shared program and keeps every
// other file as a text stream. A file that cannot be read or parsed is
// recorded in ParseErrors; TS/JS parse failures still join the text set so
// pattern checks see them.
func (b *Builder) Build(ctx context.Context, root string, rel []string) (*Program, error) {
	prog := &Program{
		Root:        root,
		Files:       make(map[string]*SourceFile),
		Text:        make(map[string]*TextFile),
		ParseErrors: make(map[string]error),
	}

	limit := b.Concurrency
	if limit < 1 {
		limit = 1
	}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for _, r := range rel {
		r := r
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			content, err := b.read(filepath.Join(root, filepath.FromSlash(r)))
			if err != nil {
				mu.Lock()
				prog.ParseErrors[r] = err
				mu.Unlock()
				return nil
			}
			plat := platform.Classify(r)
			lines := strings.Split(content, "\n")

			if !IsScript(r) {
				mu.Lock()
				prog.Text[r] = &TextFile{Path: r, Platform: plat, Content: content, Lines: lines}
				mu.Unlock()
				return nil
			}

			sf, perr := Parse(r, content)
			mu.Lock()
			defer mu.Unlock()
			if perr != nil {
				prog.ParseErrors[r] = perr
				prog.Text[r] = &TextFile{Path: r, Platform: plat, Content: content, Lines: lines, Unparsed: true}
				return nil
			}
			sf.Platform = plat
			prog.Files[r] = sf
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return prog, err
	}

	prog.index()
	if b.Logger != nil {
		for _, p := range sortedKeys(prog.ParseErrors) {
			b.Logger.Debugw("parse failed", "file", p, "error", prog.ParseErrors[p])
		}
	}
	return prog, nil
}

func (b *Builder) read(abs string) (string, error) {
	st, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if b.MaxFileBytes > 0 && st.Size() > b.MaxFileBytes {
		return "", fmt.Errorf("%w: %d bytes", errTooLarge, st.Size())
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return "", err
	}
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	return strings.ReplaceAll(string(data), "\r\n", "\n"), nil
}

// Parse tokenizes and lifts one TS/JS file. A panic while lifting is
// reported as a parse error for that file.
func Parse(rel, content string) (sf *SourceFile, err error) {
	defer func() {
		if r := recover(); r != nil {
			sf, err = nil, fmt.Errorf("parse %s: %v", rel, r)
		}
	}()
	tokens, elems, err := Tokenize(content, allowsJSX(rel))
	if err != nil {
		return nil, err
	}
	sf = &SourceFile{
		Path:    rel,
		Content: content,
		Lines:   strings.Split(content, "\n"),
		Tokens:  tokens,
		JSX:     elems,
	}
	for _, t := range tokens {
		switch t.Kind {
		case TokenComment:
			sf.Comments = append(sf.Comments, t)
		case TokenJSXText:
		default:
			sf.Code = append(sf.Code, t)
		}
	}
	if err := checkBalance(sf.Code); err != nil {
		return nil, err
	}
	syn := extract(sf.Code)
	sf.Imports = syn.imports
	sf.Exports = syn.exports
	sf.Calls = syn.calls
	sf.Catches = syn.catches
	sf.AnyTypes = syn.anyTypes
	sf.Debuggers = syn.debuggers
	sf.Deletes = syn.deletes
	return sf, nil
}

func sortedKeys(m map[string]error) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
