package common

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/checks"
	ctxpkg "github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/checks/context"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/report"
	"golang.org/x/net/html"
)

var (
	ruleMissingReadme = checks.RuleInfo{ID: "common.docs.missing_readme", Description: "Repository or architecture layer without README.md.", Severity: "LOW"}
	ruleBrokenLink    = checks.RuleInfo{ID: "common.docs.broken_link", Description: "Markdown link points to a file that does not exist.", Severity: "MEDIUM"}
	ruleMissingAlt    = checks.RuleInfo{ID: "common.images.missing_alt", Description: "Image element without alternative text.", Severity: "MEDIUM"}
)

// layerDirs are architecture directories expected to document themselves.
var layerDirs = map[string]bool{
	"domain": true, "application": true, "infrastructure": true, "presentation": true,
	"use-cases": true, "repositories": true, "entities": true, "services": true,
}

var mdLinkRe = regexp.MustCompile(`!?\[([^\]]*)\]\(\s*<?([^)\s>]+)>?(?:\s+"[^"]*")?\s*\)`)

// CheckDocumentation inspects README coverage and markdown links. It needs
// the whole repository on disk, so it is a no-op for partial scopes.
func CheckDocumentation(ctx *ctxpkg.Context) ([]report.Finding, error) {
	var findings []report.Finding
	if !fullRepo(ctx) {
		return findings, nil
	}

	if !hasReadme(ctx.Root) {
		findings = append(findings, report.Finding{
			RuleID:   ruleMissingReadme.ID,
			Severity: "MEDIUM",
			FilePath: report.ProjectRoot,
			Message:  "Repository has no README.md at its root.",
			Source:   source,
		})
	}

	layers, err := missingLayerReadmes(ctx)
	if err != nil {
		return nil, err
	}
	for _, dir := range layers {
		findings = append(findings, report.Finding{
			RuleID:   ruleMissingReadme.ID,
			Severity: ruleMissingReadme.Severity,
			FilePath: dir,
			Message:  fmt.Sprintf("Architecture directory '%s/' is missing README.md.", path.Base(dir)),
			Source:   source,
		})
	}

	var docs []string
	if err := walkRepo(ctx, []string{".md", ".markdown"}, func(rel string) { docs = append(docs, rel) }); err != nil {
		return nil, err
	}
	sort.Strings(docs)
	for _, rel := range docs {
		data, err := os.ReadFile(filepath.Join(ctx.Root, filepath.FromSlash(rel)))
		if err != nil {
			continue
		}
		findings = append(findings, scanMarkdown(ctx.Root, rel, string(data))...)
	}
	return findings, nil
}

func hasReadme(root string) bool {
	entries, err := os.ReadDir(root)
	if err != nil {
		return false
	}
	for _, e := range entries {
		name := strings.ToLower(e.Name())
		if !e.IsDir() && (name == "readme.md" || name == "readme" || name == "readme.markdown") {
			return true
		}
	}
	return false
}

func missingLayerReadmes(ctx *ctxpkg.Context) ([]string, error) {
	var dirs []string
	seen := make(map[string]bool)
	err := walkRepo(ctx, []string{".ts", ".tsx", ".js", ".jsx", ".swift", ".kt", ".kts"}, func(rel string) {
		dir := path.Dir(rel)
		for d := dir; d != "." && d != "/"; d = path.Dir(d) {
			if seen[d] {
				continue
			}
			seen[d] = true
			if !layerDirs[strings.ToLower(path.Base(d))] {
				continue
			}
			if _, err := os.Stat(filepath.Join(ctx.Root, filepath.FromSlash(d), "README.md")); err != nil {
				dirs = append(dirs, d)
			}
		}
	})
	sort.Strings(dirs)
	return dirs, err
}

type docLink struct {
	target string
	line   int
}

// scanMarkdown reports broken relative links, both markdown syntax and
// inline HTML, and inline <img> elements without alt text.
func scanMarkdown(root, rel, content string) []report.Finding {
	var findings []report.Finding
	prose := stripFences(content)

	var links []docLink
	var imgs []int
	for _, m := range mdLinkRe.FindAllStringSubmatchIndex(prose, -1) {
		line := lineOf(prose, m[0])
		links = append(links, docLink{target: prose[m[4]:m[5]], line: line})
		if prose[m[0]] == '!' && strings.TrimSpace(prose[m[2]:m[3]]) == "" {
			imgs = append(imgs, line)
		}
	}
	htmlLinks, htmlImgs := scanInlineHTML(prose)
	links = append(links, htmlLinks...)
	imgs = append(imgs, htmlImgs...)
	sort.Ints(imgs)

	for _, l := range links {
		if linkResolves(root, rel, l.target) {
			continue
		}
		findings = append(findings, report.Finding{
			RuleID:   ruleBrokenLink.ID,
			Severity: ruleBrokenLink.Severity,
			FilePath: rel,
			Line:     l.line,
			Message:  fmt.Sprintf("Broken link detected: %s", l.target),
			Source:   source,
		})
	}
	for _, line := range imgs {
		findings = append(findings, report.Finding{
			RuleID:   ruleMissingAlt.ID,
			Severity: ruleMissingAlt.Severity,
			FilePath: rel,
			Line:     line,
			Message:  "Image without alt text.",
			Source:   source,
		})
	}
	return findings
}

// stripFences blanks fenced code blocks, keeping line structure.
func stripFences(content string) string {
	lines := strings.Split(content, "\n")
	inFence := false
	for i, l := range lines {
		trimmed := strings.TrimSpace(l)
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = !inFence
			lines[i] = ""
			continue
		}
		if inFence {
			lines[i] = ""
		}
	}
	return strings.Join(lines, "\n")
}

// scanInlineHTML tokenizes the document as HTML, collecting href/src targets
// of <a> and <img> and the lines of <img> elements without alt.
func scanInlineHTML(content string) ([]docLink, []int) {
	var links []docLink
	var missingAlt []int
	z := html.NewTokenizer(strings.NewReader(content))
	offset := 0
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		raw := z.Raw()
		line := lineOf(content, offset)
		offset += len(raw)
		if offset > len(content) {
			offset = len(content)
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		tok := z.Token()
		switch tok.Data {
		case "a":
			if href, ok := attr(tok, "href"); ok {
				links = append(links, docLink{target: href, line: line})
			}
		case "img":
			if src, ok := attr(tok, "src"); ok {
				links = append(links, docLink{target: src, line: line})
			}
			if alt, ok := attr(tok, "alt"); !ok || strings.TrimSpace(alt) == "" {
				missingAlt = append(missingAlt, line)
			}
		}
	}
	return links, missingAlt
}

func attr(tok html.Token, name string) (string, bool) {
	for _, a := range tok.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// linkResolves reports whether a link target is external, an anchor, or an
// existing file relative to the document (or to the root for "/" links).
func linkResolves(root, docRel, target string) bool {
	target = strings.TrimSpace(target)
	if target == "" || strings.HasPrefix(target, "#") {
		return true
	}
	if u, err := url.Parse(target); err == nil && u.Scheme != "" {
		return true
	}
	if strings.HasPrefix(target, "//") {
		return true
	}
	if i := strings.IndexAny(target, "#?"); i >= 0 {
		target = target[:i]
	}
	if unescaped, err := url.PathUnescape(target); err == nil {
		target = unescaped
	}
	var rel string
	if strings.HasPrefix(target, "/") {
		rel = path.Clean(strings.TrimPrefix(target, "/"))
	} else {
		rel = path.Join(path.Dir(docRel), target)
	}
	if strings.HasPrefix(rel, "../") || rel == ".." {
		return true
	}
	_, err := os.Stat(filepath.Join(root, filepath.FromSlash(rel)))
	return err == nil
}
