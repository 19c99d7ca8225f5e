package common

import (
	"path"
	"regexp"
	"strings"

	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/checks"
	ctxpkg "github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/checks/context"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/checks/textscan"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/platform"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/report"
)

var (
	ruleMissingTimeout      = checks.RuleInfo{ID: "common.network.missing_timeout", Description: "Network call without a timeout configuration.", Severity: "HIGH"}
	ruleMissingRetry        = checks.RuleInfo{ID: "common.network.missing_retry", Description: "Network call without a retry policy.", Severity: "MEDIUM"}
	ruleMissingConnectivity = checks.RuleInfo{ID: "common.network.missing_connectivity_check", Description: "App performs network calls but never checks connectivity.", Severity: "low"}
)

// netLang groups the markers of one language family.
type netLang struct {
	call         *regexp.Regexp
	timeout      *regexp.Regexp
	retry        *regexp.Regexp
	server       *regexp.Regexp
	connectivity *regexp.Regexp
}

var (
	scriptNet = netLang{
		call:         regexp.MustCompile(`\bfetch\s*\(|\baxios\s*\.|\bhttp\s*\.\s*(?:get|post|request|put|patch|delete)\s*\(`),
		timeout:      regexp.MustCompile(`\btimeout\s*:|\bsignal\s*:|\bAbortController\b`),
		retry:        regexp.MustCompile(`(?i)\bretry\w*|\bretryWhen\b|\bretryPolicy\b`),
		server:       regexp.MustCompile(`\bhttp\s*\.\s*createServer\b|\.listen\s*\(|\bexpress\s*\(`),
		connectivity: regexp.MustCompile(`\bNetInfo\b|\bnavigator\s*\.\s*onLine\b|\buseNetInfo\b`),
	}
	swiftNet = netLang{
		call:         regexp.MustCompile(`\bURLSession\s*\.\s*shared\s*\.\s*(?:dataTask|data|upload|uploadTask|download|downloadTask)\b|\bAF\s*\.\s*request\s*\(|\bAlamofire\s*\.\s*request\s*\(`),
		timeout:      regexp.MustCompile(`\btimeoutInterval\w*|\brequestModifier\b`),
		retry:        regexp.MustCompile(`(?i)\bretry\w*|\bRequestRetrier\b`),
		connectivity: regexp.MustCompile(`\bNWPathMonitor\b|\bReachability\w*|\bSCNetworkReachability\w*`),
	}
	kotlinNet = netLang{
		call:         regexp.MustCompile(`\bOkHttpClient\s*\(|\.newCall\s*\(|\bRetrofit\s*\.\s*Builder\s*\(|\bHttpURLConnection\b|\bHttpClient\s*[({]`),
		timeout:      regexp.MustCompile(`\b(?:connectTimeout|readTimeout|writeTimeout|callTimeout|setConnectTimeout|setReadTimeout|requestTimeoutMillis|HttpTimeout)\b`),
		retry:        regexp.MustCompile(`(?i)\bretry\w*|\bretryOnConnectionFailure\b`),
		connectivity: regexp.MustCompile(`\bConnectivityManager\b|\bNetworkCallback\b|\bactiveNetwork\w*`),
	}
)

func langFor(p string) (netLang, bool) {
	switch strings.ToLower(path.Ext(p)) {
	case ".swift":
		return swiftNet, true
	case ".kt", ".kts":
		return kotlinNet, true
	case ".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs":
		return scriptNet, true
	}
	return netLang{}, false
}

// CheckNetworkResilience reports network calls without timeout or retry
// handling per file, and per platform the absence of any connectivity check
// while network calls exist.
func CheckNetworkResilience(ctx *ctxpkg.Context) ([]report.Finding, error) {
	var findings []report.Finding
	firstCaller := make(map[platform.Platform]report.Finding)
	var order []platform.Platform
	checked := make(map[platform.Platform]bool)

	for _, f := range scopeContents(ctx) {
		if ctx.Canceled() {
			break
		}
		lang, ok := langFor(f.Path)
		if !ok || ctxpkg.IsTestPath(f.Path) {
			continue
		}
		masked := textscan.Mask(f.Content)
		if lang.connectivity.MatchString(masked) {
			checked[f.Platform] = true
		}
		calls := textscan.Lines(masked, lang.call)
		if len(calls) == 0 {
			continue
		}
		if lang.server != nil && lang.server.MatchString(masked) {
			continue
		}
		if !lang.timeout.MatchString(masked) {
			findings = append(findings, checks.FileFinding(ruleMissingTimeout, source, f.Path, calls,
				"Network call without timeout configuration."))
		}
		if !lang.retry.MatchString(masked) {
			findings = append(findings, checks.FileFinding(ruleMissingRetry, source, f.Path, calls,
				"Network call without retry logic."))
		}
		if f.Platform != platform.Other && f.Platform != platform.Backend {
			if _, seen := firstCaller[f.Platform]; !seen {
				order = append(order, f.Platform)
				firstCaller[f.Platform] = checks.FileFinding(ruleMissingConnectivity, source, f.Path, calls[:1],
					"Network calls without any connectivity check in the "+f.Platform.String()+" app.")
			}
		}
	}

	for _, p := range order {
		if !checked[p] {
			finding := firstCaller[p]
			finding.Metrics = nil
			findings = append(findings, finding)
		}
	}
	return findings, nil
}
