package report

import (
	"regexp"
)

var (
	reBearer    = regexp.MustCompile(`(?i)\b(bearer\s+)([a-z0-9\-\._~\+\/]+=*)`)
	reApiKeyKV  = regexp.MustCompile(`(?i)\b(api[_-]?key|access[_-]?token|token|secret|password|authorization)\s*[:=]\s*['"]?([^\s,;'"]+)`)
	reLongToken = regexp.MustCompile(`\b[a-zA-Z0-9_\-]{24,}\b`)
)

// Sanitizer redacts credentials from finding text before it reaches the
// evidence file.
type Sanitizer struct {
	custom []*regexp.Regexp
}

// NewSanitizer compiles the extra redaction patterns from the run config.
// Patterns that fail to compile are returned as errors and skipped.
func NewSanitizer(patterns []string) (*Sanitizer, []error) {
	s := &Sanitizer{}
	var errs []error
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		s.custom = append(s.custom, re)
	}
	return s, errs
}

func (s *Sanitizer) Finding(f Finding) Finding {
	f.Message = s.Text(f.Message)
	return f
}

func (s *Sanitizer) Text(in string) string {
	out := in
	out = reBearer.ReplaceAllString(out, "${1}<redacted>")
	out = reApiKeyKV.ReplaceAllString(out, "${1}=<redacted>")
	out = reLongToken.ReplaceAllStringFunc(out, func(tok string) string {
		if len(tok) <= 10 {
			return "<redacted>"
		}
		return tok[:4] + "...<redacted>..." + tok[len(tok)-4:]
	})
	if s != nil {
		for _, re := range s.custom {
			out = re.ReplaceAllString(out, "<redacted>")
		}
	}
	return out
}
