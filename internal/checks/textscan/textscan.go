// Package textscan holds the helpers shared by the text-stream analyzers:
// masking comments and string literals out of Swift/Kotlin source and
// mapping byte offsets back to lines.
package textscan

import (
	"regexp"
	"sort"
	"strings"
)

// Mask replaces comments and string literal contents with spaces while
// keeping newlines, so offsets and line numbers stay valid. It understands
// line and nested block comments, "..." strings with escapes and """
// multi-line strings, which covers both Swift and Kotlin.
func Mask(src string) string {
	b := []byte(src)
	out := make([]byte, len(b))
	copy(out, b)
	blank := func(from, to int) {
		for k := from; k < to && k < len(out); k++ {
			if out[k] != '\n' {
				out[k] = ' '
			}
		}
	}

	i := 0
	for i < len(b) {
		switch {
		case b[i] == '/' && i+1 < len(b) && b[i+1] == '/':
			j := i
			for j < len(b) && b[j] != '\n' {
				j++
			}
			blank(i, j)
			i = j
		case b[i] == '/' && i+1 < len(b) && b[i+1] == '*':
			depth := 0
			j := i
			for j < len(b) {
				if b[j] == '/' && j+1 < len(b) && b[j+1] == '*' {
					depth++
					j += 2
					continue
				}
				if b[j] == '*' && j+1 < len(b) && b[j+1] == '/' {
					depth--
					j += 2
					if depth == 0 {
						break
					}
					continue
				}
				j++
			}
			blank(i, j)
			i = j
		case strings.HasPrefix(src[i:], `"""`):
			end := strings.Index(src[i+3:], `"""`)
			if end < 0 {
				blank(i+3, len(b))
				i = len(b)
				break
			}
			j := i + 3 + end + 3
			blank(i+3, j-3)
			i = j
		case b[i] == '"':
			j := i + 1
			for j < len(b) && b[j] != '"' && b[j] != '\n' {
				if b[j] == '\\' {
					j++
				}
				j++
			}
			if j > len(b) {
				j = len(b)
			}
			blank(i+1, j)
			i = j + 1
		case b[i] == '\'':
			// Kotlin character literal: 'c' or '\c'.
			switch {
			case i+2 < len(b) && b[i+1] != '\\' && b[i+2] == '\'':
				blank(i+1, i+2)
				i += 3
			case i+3 < len(b) && b[i+1] == '\\' && b[i+3] == '\'':
				blank(i+1, i+3)
				i += 4
			default:
				i++
			}
		default:
			i++
		}
	}
	return string(out)
}

// Index maps byte offsets to 1-based line numbers.
type Index struct {
	starts []int
}

func NewIndex(src string) Index {
	starts := []int{0}
	for i := 0; i < len(src); i++ {
		if src[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return Index{starts: starts}
}

// Line returns the 1-based line containing offset.
func (x Index) Line(offset int) int {
	return sort.Search(len(x.starts), func(i int) bool { return x.starts[i] > offset })
}

// Lines returns the distinct lines on which re matches, ascending.
func Lines(masked string, re *regexp.Regexp) []int {
	idx := NewIndex(masked)
	var out []int
	last := 0
	for _, m := range re.FindAllStringIndex(masked, -1) {
		line := idx.Line(m[0])
		if line != last {
			out = append(out, line)
			last = line
		}
	}
	return out
}

// IsIdent reports whether c can appear in an identifier.
func IsIdent(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}
