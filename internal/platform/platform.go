package platform

import (
	"path"
	"sort"
	"strings"
)

type Platform int

const (
	Other Platform = iota
	Backend
	Frontend
	IOS
	Android
)

// All lists every platform in a stable order.
var All = []Platform{Backend, Frontend, IOS, Android, Other}

func (p Platform) String() string {
	switch p {
	case Backend:
		return "backend"
	case Frontend:
		return "frontend"
	case IOS:
		return "ios"
	case Android:
		return "android"
	default:
		return "other"
	}
}

// Parse maps a platform name back to its value. Unknown names are Other.
func Parse(name string) Platform {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "backend":
		return Backend
	case "frontend", "web":
		return Frontend
	case "ios":
		return IOS
	case "android":
		return Android
	default:
		return Other
	}
}

func (p Platform) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Platform) UnmarshalText(b []byte) error {
	*p = Parse(string(b))
	return nil
}

type prefixRule struct {
	prefix   string
	platform Platform
}

var prefixes = []prefixRule{
	{prefix: "apps/ios/", platform: IOS},
	{prefix: "ios/", platform: IOS},
	{prefix: "apps/android/", platform: Android},
	{prefix: "apps/backend/", platform: Backend},
	{prefix: "apps/frontend/", platform: Frontend},
	{prefix: "apps/web/", platform: Frontend},
}

// NormalizePath converts a path to the lowercase forward-slash form used for
// prefix matching.
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.TrimPrefix(p, "./")
	return strings.ToLower(p)
}

// Classify maps a repo-relative path to a platform using app-area path
// conventions. Paths that carry no marker are Other.
func Classify(p string) Platform {
	n := NormalizePath(p)
	for _, r := range prefixes {
		if strings.HasPrefix(n, r.prefix) {
			return r.platform
		}
	}
	return Other
}

// HasAppMarker reports whether the path itself decides the platform.
func HasAppMarker(p string) bool {
	return Classify(p) != Other
}

// ClassifyRule derives platforms from a rule id namespace. Shared
// TypeScript heuristics are co-attributed to Backend and Frontend.
func ClassifyRule(ruleID string) []Platform {
	id := strings.ToLower(ruleID)
	switch {
	case strings.HasPrefix(id, "heuristics.ts."):
		return []Platform{Backend, Frontend}
	case strings.HasPrefix(id, "heuristics.ios."), strings.HasPrefix(id, "ios."):
		return []Platform{IOS}
	case strings.HasPrefix(id, "heuristics.android."), strings.HasPrefix(id, "android."):
		return []Platform{Android}
	case strings.HasPrefix(id, "backend."):
		return []Platform{Backend}
	case strings.HasPrefix(id, "frontend."):
		return []Platform{Frontend}
	case strings.HasPrefix(id, "skills."):
		parts := strings.SplitN(id, ".", 3)
		if len(parts) >= 2 {
			if p := Parse(parts[1]); p != Other {
				return []Platform{p}
			}
		}
	}
	return []Platform{Other}
}

// Attribute resolves the platforms a finding belongs to. The path decides
// when it carries an app marker; otherwise the rule namespace is used. For
// shared TypeScript heuristics the pair is narrowed to the TS platform
// actually detected in the run when exactly one of them is.
func Attribute(filePath, ruleID string, detected Set) []Platform {
	if p := Classify(filePath); p != Other {
		return []Platform{p}
	}
	byRule := ClassifyRule(ruleID)
	if len(byRule) == 2 && detected != nil {
		be, fe := detected.Has(Backend), detected.Has(Frontend)
		switch {
		case be && !fe:
			return []Platform{Backend}
		case fe && !be:
			return []Platform{Frontend}
		}
	}
	return byRule
}

// Primary returns the first attributed platform.
func Primary(filePath, ruleID string, detected Set) Platform {
	return Attribute(filePath, ruleID, detected)[0]
}

// FromExtension guesses a platform for files outside any app area.
func FromExtension(p string) Platform {
	switch strings.ToLower(path.Ext(p)) {
	case ".swift":
		return IOS
	case ".kt", ".kts":
		return Android
	default:
		return Other
	}
}

type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)

type Detection struct {
	Detected   bool       `json:"detected"`
	Confidence Confidence `json:"confidence"`
}

// Set records which platforms were detected in a run.
type Set map[Platform]Detection

func (s Set) Has(p Platform) bool {
	return s[p].Detected
}

// Names returns the detected platform names sorted.
func (s Set) Names() []string {
	var out []string
	for p, d := range s {
		if d.Detected {
			out = append(out, p.String())
		}
	}
	sort.Strings(out)
	return out
}

// Detect inspects the scoped files. A path under an app area detects the
// platform with HIGH confidence; a Swift or Kotlin file outside any app
// area detects it with MEDIUM confidence.
func Detect(files []string) Set {
	set := make(Set)
	for _, f := range files {
		if p := Classify(f); p != Other {
			set[p] = Detection{Detected: true, Confidence: ConfidenceHigh}
			continue
		}
		if p := FromExtension(f); p != Other {
			if !set[p].Detected {
				set[p] = Detection{Detected: true, Confidence: ConfidenceMedium}
			}
		}
	}
	return set
}
