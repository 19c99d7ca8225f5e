package ios

import (
	"testing"

	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/checks/checktest"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/checks/textscan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForceUnwrapLines(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []int
	}{
		{name: "postfix unwrap", src: "let a = value!\n", want: []int{1}},
		{name: "call result", src: "let a = load()!.name\n", want: []int{1}},
		{name: "negation", src: "if !ready { return }\n"},
		{name: "not equal", src: "if a != b { }\n"},
		{name: "force try and cast", src: "let x = try! load()\nlet y = z as! Int\n"},
		{name: "implicitly unwrapped annotation", src: "var label: UILabel!\n"},
		{name: "inside string", src: "let s = \"hi!\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := forceUnwrapLines(textscan.Mask(tt.src))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCheckSwiftHeuristics(t *testing.T) {
	ctx := checktest.Context(t, map[string]string{
		"apps/ios/App/FeedView.swift": `import SwiftUI

struct FeedView: View {
    var body: some View {
        NavigationView {
            AnyView(Text("hi"))
        }
    }
    func load(completion: @escaping (Result<Data, Error>) -> Void) {
        DispatchQueue.main.async { completion(.success(data!)) }
    }
}
`,
		"apps/ios/App/Bridge/LegacyBridge.swift": "func call(handler: @escaping () -> Void) {}\n",
		"apps/ios/AppTests/FeedViewTests.swift":  "let a = b!\n",
		"Packages/Shared/Thing.swift":            "let a = b!\n",
	}, false)

	findings, err := CheckSwiftHeuristics(ctx)
	require.NoError(t, err)

	byRule := checktest.ByRule(findings)
	for id, line := range map[string]int{
		"heuristics.ios.navigation-view.ast": 5,
		"heuristics.ios.anyview.ast":         6,
		"heuristics.ios.callback-style.ast":  9,
		"heuristics.ios.dispatchqueue.ast":   10,
		"heuristics.ios.force-unwrap.ast":    10,
	} {
		require.Len(t, byRule[id], 1, id)
		assert.Equal(t, "apps/ios/App/FeedView.swift", byRule[id][0].FilePath, id)
		assert.Equal(t, line, byRule[id][0].Line, id)
	}
	for _, f := range findings {
		assert.Equal(t, "apps/ios/App/FeedView.swift", f.FilePath, "bridge, test and non-app files are skipped")
	}
}
