package textscan

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskKeepsOffsetsAndLines(t *testing.T) {
	tests := map[string]string{
		"line comment":        "let a = 1 // force! here\nlet b = 2\n",
		"nested block":        "/* outer /* inner */ still */ let c = d!\n",
		"string with escape":  "let s = \"quote \\\" x!\"\nlet t = 1\n",
		"multiline string":    "let m = \"\"\"\n  body!\n\"\"\"\nlet n = 2\n",
		"kotlin char literal": "val q = '!'\nval r = '\\n'\n",
		"unterminated triple": "val x = \"\"\"never closed!\n",
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			masked := Mask(src)
			assert.Len(t, masked, len(src))
			assert.Equal(t, strings.Count(src, "\n"), strings.Count(masked, "\n"))
			assert.NotContains(t, masked, "force!")
			assert.NotContains(t, masked, "x!")
			assert.NotContains(t, masked, "body!")
			assert.NotContains(t, masked, "'!'")
			assert.NotContains(t, masked, "closed!")
		})
	}
}

func TestMaskLeavesCodeIntact(t *testing.T) {
	masked := Mask("let v = value! // comment\n")
	assert.Contains(t, masked, "let v = value!")
	assert.NotContains(t, masked, "comment")
}

func TestLinesReportsDistinctAscendingLines(t *testing.T) {
	src := "a x x\nb\nx\n\nx x\n"
	got := Lines(src, regexp.MustCompile(`x`))
	assert.Equal(t, []int{1, 3, 5}, got)
}

func TestIndexLine(t *testing.T) {
	idx := NewIndex("ab\ncd\n\nef")
	assert.Equal(t, 1, idx.Line(0))
	assert.Equal(t, 1, idx.Line(2))
	assert.Equal(t, 2, idx.Line(3))
	assert.Equal(t, 3, idx.Line(6))
	assert.Equal(t, 4, idx.Line(7))
}
