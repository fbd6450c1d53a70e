package capture

import (
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/flying-pisces/mkd-automation-sub002/internal/infrastructure/config"
	"github.com/flying-pisces/mkd-automation-sub002/internal/infrastructure/logging"
	"go.uber.org/zap"
)

// MaskText replaces values that must never leave the browser in clear text
const MaskText = "[MASKED]"

// rule is a compiled redaction pattern with an optional post-match check
type rule struct {
	name    string
	regex   *regexp.Regexp
	replace string
	verify  func(match string) bool
}

// builtinRules are always active regardless of configuration.
// RE2 only, so matching stays linear-time on hostile input.
var builtinRules = []struct {
	name    string
	pattern string
	verify  func(string) bool
}{
	{
		name:    "aws-key",
		pattern: `AKIA[0-9A-Z]{16}`,
	},
	{
		name:    "bearer-token",
		pattern: `Bearer [A-Za-z0-9\-._~+/]+=*`,
	},
	{
		name:    "basic-auth",
		pattern: `Basic [A-Za-z0-9+/]+=*`,
	},
	{
		name:    "jwt",
		pattern: `eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]+`,
	},
	{
		name:    "github-pat",
		pattern: `(ghp_[A-Za-z0-9]{36,}|github_pat_[A-Za-z0-9_]{36,})`,
	},
	{
		name:    "private-key",
		pattern: `-----BEGIN [A-Z ]*PRIVATE KEY-----[\s\S]*?-----END [A-Z ]*PRIVATE KEY-----`,
	},
	{
		name:    "credit-card",
		pattern: `\b([0-9]{4}[- ]?[0-9]{4}[- ]?[0-9]{4}[- ]?[0-9]{4})\b`,
		verify:  luhnValid,
	},
	{
		name:    "ssn",
		pattern: `\b[0-9]{3}-[0-9]{2}-[0-9]{4}\b`,
	},
	{
		name:    "api-key",
		pattern: `(?i)(api[_-]?key|apikey|secret[_-]?key)\s*[:=]\s*\S+`,
	},
	{
		name:    "session-cookie",
		pattern: `(?i)(session|sid|token)\s*=\s*[A-Za-z0-9+/=_-]{16,}`,
	},
}

// Sanitizer scrubs captured actions before they are stored or broadcast.
// Safe for concurrent use; the input toggle can change while captures
// are in flight.
type Sanitizer struct {
	rules       []rule
	scrubInputs atomic.Bool
	log         *logging.Logger
}

// NewSanitizer compiles the builtin rules plus custom patterns from the
// config file. Invalid custom patterns are logged and skipped.
// scrubInputs controls whether typed input values are run through the
// rules; password fields are masked outright either way.
func NewSanitizer(custom []config.Pattern, scrubInputs bool, log *logging.Logger) *Sanitizer {
	s := &Sanitizer{
		log: log.Named("sanitizer"),
	}
	s.scrubInputs.Store(scrubInputs)

	for _, br := range builtinRules {
		re, err := regexp.Compile(br.pattern)
		if err != nil {
			continue
		}
		s.rules = append(s.rules, rule{
			name:    br.name,
			regex:   re,
			replace: "[REDACTED:" + br.name + "]",
			verify:  br.verify,
		})
	}

	for _, p := range custom {
		re, err := regexp.Compile(p.Regex)
		if err != nil {
			s.log.Warn("Skipping invalid redaction pattern",
				zap.String("name", p.Name),
				zap.Error(err))
			continue
		}
		s.rules = append(s.rules, rule{
			name:    p.Name,
			regex:   re,
			replace: "[REDACTED:" + p.Name + "]",
		})
	}

	return s
}

// SetScrubInputs toggles pattern scrubbing of typed input values
func (s *Sanitizer) SetScrubInputs(enabled bool) {
	s.scrubInputs.Store(enabled)
}

// ScrubInputs reports whether typed input values are scrubbed
func (s *Sanitizer) ScrubInputs() bool {
	return s.scrubInputs.Load()
}

// RuleNames returns the active rule names in application order
func (s *Sanitizer) RuleNames() []string {
	names := make([]string, 0, len(s.rules))
	for _, r := range s.rules {
		names = append(names, r.name)
	}
	return names
}

// Scrub applies every rule to the input and returns the redacted result
func (s *Sanitizer) Scrub(input string) string {
	if input == "" {
		return ""
	}

	result := input
	for _, r := range s.rules {
		if r.verify != nil {
			result = r.regex.ReplaceAllStringFunc(result, func(match string) string {
				if r.verify(match) {
					return r.replace
				}
				return match
			})
		} else {
			result = r.regex.ReplaceAllString(result, r.replace)
		}
	}
	return result
}

// ScrubAction redacts an action in place. Password input values are
// replaced with MaskText unconditionally; other string fields go through
// the pattern rules.
func (s *Sanitizer) ScrubAction(action *Action) {
	if action == nil {
		return
	}

	action.URL = s.Scrub(action.URL)

	if action.Target != nil {
		action.Target.Text = s.Scrub(action.Target.Text)
	}

	switch {
	case action.Value == "":
		// nothing to redact
	case isCredentialInput(action):
		action.Value = MaskText
		action.Masked = true
	case action.Type == ActionInput || action.Type == ActionKeypress:
		if s.scrubInputs.Load() {
			action.Value = s.Scrub(action.Value)
		}
	default:
		action.Value = s.Scrub(action.Value)
	}

	for k, v := range action.Meta {
		if str, ok := v.(string); ok {
			action.Meta[k] = s.Scrub(str)
		}
	}
}

// isCredentialInput reports whether the action typed into a password or
// other credential field
func isCredentialInput(action *Action) bool {
	if action.Type != ActionInput && action.Type != ActionKeypress {
		return false
	}
	inputType := action.Target.InputType()
	if inputType == "password" {
		return true
	}
	if action.Target != nil {
		name := strings.ToLower(action.Target.Attributes["name"])
		if strings.Contains(name, "password") || strings.Contains(name, "passwd") {
			return true
		}
	}
	return false
}

// luhnValid checks whether a candidate card number passes the Luhn
// checksum, filtering out phone numbers and other digit runs
func luhnValid(number string) bool {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, number)

	if len(digits) < 13 || len(digits) > 19 {
		return false
	}

	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		n := int(digits[i] - '0')
		if double {
			n *= 2
			if n > 9 {
				n -= 9
			}
		}
		sum += n
		double = !double
	}
	return sum%10 == 0
}
