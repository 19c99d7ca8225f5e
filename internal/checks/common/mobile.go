package common

import (
	"path"
	"regexp"
	"strings"

	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/checks"
	ctxpkg "github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/checks/context"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/checks/textscan"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/report"
)

var (
	ruleMissingTokenRefresh      = checks.RuleInfo{ID: "common.push.missing_token_refresh", Description: "Push token is obtained but its refresh is never handled.", Severity: "medium"}
	ruleMissingRegistrationError = checks.RuleInfo{ID: "common.push.missing_registration_error", Description: "Push registration without failure handling.", Severity: "medium"}
	ruleMissingPlaceholder       = checks.RuleInfo{ID: "common.images.missing_placeholder", Description: "Remote image without a loading placeholder.", Severity: "low"}
)

// pushRule fires rule on files matching trigger that never match handled.
type pushRule struct {
	rule    checks.RuleInfo
	ext     []string
	trigger *regexp.Regexp
	handled *regexp.Regexp
	message string
}

var pushRules = []pushRule{
	{
		rule:    ruleMissingRegistrationError,
		ext:     []string{".swift"},
		trigger: regexp.MustCompile(`\bregisterForRemoteNotifications\s*\(`),
		handled: regexp.MustCompile(`\bdidFailToRegisterForRemoteNotificationsWithError\b`),
		message: "registerForRemoteNotifications without didFailToRegisterForRemoteNotificationsWithError.",
	},
	{
		rule:    ruleMissingTokenRefresh,
		ext:     []string{".swift"},
		trigger: regexp.MustCompile(`\bMessaging\s*\.\s*messaging\s*\(\s*\)`),
		handled: regexp.MustCompile(`\bdidReceiveRegistrationToken\b`),
		message: "Firebase Messaging used without a didReceiveRegistrationToken delegate.",
	},
	{
		rule:    ruleMissingTokenRefresh,
		ext:     []string{".kt", ".kts"},
		trigger: regexp.MustCompile(`:\s*FirebaseMessagingService\s*\(`),
		handled: regexp.MustCompile(`\bonNewToken\s*\(`),
		message: "FirebaseMessagingService without onNewToken override.",
	},
	{
		rule:    ruleMissingRegistrationError,
		ext:     []string{".kt", ".kts"},
		trigger: regexp.MustCompile(`\bFirebaseMessaging\s*\.\s*getInstance\s*\(\s*\)\s*\.\s*token\b`),
		handled: regexp.MustCompile(`\baddOnFailureListener\b|\bisSuccessful\b|\bcatch\s*\(`),
		message: "Push token request without failure handling.",
	},
	{
		rule:    ruleMissingRegistrationError,
		ext:     []string{".ts", ".tsx", ".js", ".jsx"},
		trigger: regexp.MustCompile(`\bgetExpoPushTokenAsync\s*\(|\bmessaging\s*\(\s*\)\s*\.\s*getToken\s*\(`),
		handled: regexp.MustCompile(`\bcatch\b`),
		message: "Push token request without failure handling.",
	},
	{
		rule:    ruleMissingTokenRefresh,
		ext:     []string{".ts", ".tsx", ".js", ".jsx"},
		trigger: regexp.MustCompile(`\bmessaging\s*\(\s*\)\s*\.\s*getToken\s*\(`),
		handled: regexp.MustCompile(`\bonTokenRefresh\s*\(`),
		message: "Push token obtained without an onTokenRefresh listener.",
	},
}

// CheckPushNotifications scans mobile and script sources for push
// registration that ignores failures or token rotation.
func CheckPushNotifications(ctx *ctxpkg.Context) ([]report.Finding, error) {
	var findings []report.Finding
	for _, f := range scopeContents(ctx) {
		if ctx.Canceled() {
			break
		}
		if ctxpkg.IsTestPath(f.Path) {
			continue
		}
		ext := strings.ToLower(path.Ext(f.Path))
		var masked string
		for _, r := range pushRules {
			if !hasExt(ext, r.ext) {
				continue
			}
			if masked == "" {
				masked = textscan.Mask(f.Content)
			}
			lines := textscan.Lines(masked, r.trigger)
			if len(lines) == 0 || r.handled.MatchString(masked) {
				continue
			}
			findings = append(findings, checks.FileFinding(r.rule, source, f.Path, lines, r.message))
		}
	}
	return findings, nil
}

var (
	asyncImageRe   = regexp.MustCompile(`\bAsyncImage\s*\(`)
	swiftPlaceRe   = regexp.MustCompile(`\bplaceholder\s*:|\.placeholder\s*\{|\bplaceholderImage\b`)
	coilImageRe    = regexp.MustCompile(`\bAsyncImage\s*\(|\bSubcomposeAsyncImage\s*\(|\.load\s*\(\s*\w*[Uu]rl\b|\bGlide\s*\.\s*with\s*\(`)
	kotlinPlaceRe  = regexp.MustCompile(`\bplaceholder\s*[(=]|\bloading\s*=`)
	remoteImageTag = map[string]bool{"Image": true, "FastImage": true}
)

var placeholderAttrs = []string{"placeholder", "defaultSource", "loadingIndicatorSource", "PlaceholderContent"}

// CheckImageLoading reports remote images without placeholders and JSX
// <img> elements without alt text.
func CheckImageLoading(ctx *ctxpkg.Context) ([]report.Finding, error) {
	var findings []report.Finding
	for _, sf := range ctx.Scripts() {
		if ctx.Canceled() {
			break
		}
		if ctxpkg.IsTestPath(sf.Path) {
			continue
		}
		var noAlt, noPlaceholder []int
		for _, el := range sf.JSX {
			switch {
			case el.Tag == "img":
				if !el.HasAttr("alt") && !el.HasAttr("...") {
					noAlt = append(noAlt, el.Line)
				}
			case remoteImageTag[el.Tag]:
				if !hasAnyAttr(el.Attrs, placeholderAttrs) && !el.HasAttr("...") {
					noPlaceholder = append(noPlaceholder, el.Line)
				}
			}
		}
		if len(noAlt) > 0 {
			findings = append(findings, checks.FileFinding(ruleMissingAlt, source, sf.Path, noAlt, "Image without alt text."))
		}
		if len(noPlaceholder) > 0 {
			findings = append(findings, checks.FileFinding(ruleMissingPlaceholder, source, sf.Path, noPlaceholder, "Image without a loading placeholder."))
		}
	}

	for _, tf := range ctx.TextFiles(".swift", ".kt", ".kts") {
		if ctx.Canceled() {
			break
		}
		if ctxpkg.IsTestPath(tf.Path) {
			continue
		}
		masked := textscan.Mask(tf.Content)
		loader, place := asyncImageRe, swiftPlaceRe
		if strings.ToLower(path.Ext(tf.Path)) != ".swift" {
			loader, place = coilImageRe, kotlinPlaceRe
		}
		lines := textscan.Lines(masked, loader)
		if len(lines) == 0 || place.MatchString(masked) {
			continue
		}
		findings = append(findings, checks.FileFinding(ruleMissingPlaceholder, source, tf.Path, lines, "Image without a loading placeholder."))
	}
	return findings, nil
}

func hasAnyAttr(attrs, want []string) bool {
	for _, a := range attrs {
		for _, w := range want {
			if a == w {
				return true
			}
		}
	}
	return false
}

func hasExt(ext string, exts []string) bool {
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}
