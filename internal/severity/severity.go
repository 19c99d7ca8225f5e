// Package severity holds the canonical severity scale shared by analyzers,
// the rule catalog and the gate, plus its enterprise-facing legacy alias.
package severity

import (
	"strings"
)

// Severity is the internal scale. The zero value is not a valid severity;
// use Normalize to obtain one from arbitrary input.
type Severity string

// Legacy is the alias scale written into evidence files and skills bundles.
type Legacy string

const (
	Low      Severity = "LOW"
	Medium   Severity = "MEDIUM"
	High     Severity = "HIGH"
	Critical Severity = "CRITICAL"

	LegacyInfo     Legacy = "INFO"
	LegacyWarn     Legacy = "WARN"
	LegacyError    Legacy = "ERROR"
	LegacyCritical Legacy = "CRITICAL"
)

// All lists the internal scale from lowest to highest.
var All = []Severity{Low, Medium, High, Critical}

// AllLegacy lists the legacy scale from lowest to highest.
var AllLegacy = []Legacy{LegacyInfo, LegacyWarn, LegacyError, LegacyCritical}

var toLegacy = map[Severity]Legacy{
	Low:      LegacyInfo,
	Medium:   LegacyWarn,
	High:     LegacyError,
	Critical: LegacyCritical,
}

var fromLegacy = map[Legacy]Severity{
	LegacyInfo:     Low,
	LegacyWarn:     Medium,
	LegacyError:    High,
	LegacyCritical: Critical,
}

// tokens maps lowercase vocabulary used by analyzers, skills bundles and
// third-party reports onto the internal scale.
var tokens = map[string]Severity{
	"critical": Critical,
	"blocker":  Critical,
	"fatal":    Critical,

	"high":   High,
	"error":  High,
	"major":  High,
	"severe": High,

	"medium":   Medium,
	"moderate": Medium,
	"warn":     Medium,
	"warning":  Medium,

	"low":        Low,
	"info":       Low,
	"minor":      Low,
	"note":       Low,
	"hint":       Low,
	"suggestion": Low,
}

// Normalize maps a free-form token to the internal scale.
// Unknown tokens map to Low so an unclassified issue never escalates.
func Normalize(token string) Severity {
	key := strings.ToLower(strings.TrimSpace(token))
	if s, ok := tokens[key]; ok {
		return s
	}
	return Low
}

// Valid reports whether s is one of the four internal levels.
func (s Severity) Valid() bool {
	_, ok := toLegacy[s]
	return ok
}

// Rank orders severities; unknown values rank below Low.
func (s Severity) Rank() int {
	switch s {
	case Critical:
		return 4
	case High:
		return 3
	case Medium:
		return 2
	case Low:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether s is at or above threshold.
func (s Severity) AtLeast(threshold Severity) bool {
	return s.Rank() >= threshold.Rank()
}

// Legacy converts to the alias scale. Invalid values convert to INFO.
func (s Severity) Legacy() Legacy {
	if l, ok := toLegacy[s]; ok {
		return l
	}
	return LegacyInfo
}

func (s Severity) String() string {
	return string(s)
}

// Valid reports whether l is one of the four legacy levels.
func (l Legacy) Valid() bool {
	_, ok := fromLegacy[l]
	return ok
}

// Internal converts back to the internal scale. Invalid values convert to LOW.
func (l Legacy) Internal() Severity {
	if s, ok := fromLegacy[l]; ok {
		return s
	}
	return Low
}

func (l Legacy) String() string {
	return string(l)
}

// ParseLegacy is Normalize followed by Legacy.
func ParseLegacy(token string) Legacy {
	return Normalize(token).Legacy()
}

// Compare returns -1, 0 or 1.
func Compare(a, b Severity) int {
	ra, rb := a.Rank(), b.Rank()
	switch {
	case ra < rb:
		return -1
	case ra > rb:
		return 1
	default:
		return 0
	}
}

// Max returns the highest severity in the list, or "" for an empty list.
func Max(values ...Severity) Severity {
	var out Severity
	for _, v := range values {
		if v.Rank() > out.Rank() {
			out = v
		}
	}
	return out
}
