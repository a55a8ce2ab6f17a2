// Package policy holds the pure text checks that gate AI-drafted replies.
// Nothing here touches storage or the network; the same input always yields
// the same result.
package policy

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const DefaultMaxReplyLen = 500

// PII patterns are matched against the candidate reply, not the review: the
// system must not let a generated reply restate a customer's contact details.
var (
	emailPattern = regexp.MustCompile(`(?i)\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	ssnPattern   = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)
	cardPattern  = regexp.MustCompile(`\b(?:\d[ -]?){13,16}\b`)
	phonePattern = regexp.MustCompile(`\d{3}[-.\s]?\d{3}[-.\s]?\d{4}|\(\d{3}\)\s*\d{3}[-.\s]?\d{4}`)
)

// Config carries the tunable lists. Zero values fall back to the defaults, so
// Config{} behaves like Default().
type Config struct {
	CrisisKeywords []string
	BannedPhrases  []string
	MaxReplyLen    int
}

func Default() Config {
	return Config{
		CrisisKeywords: []string{
			"lawsuit", "legal action", "lawyer", "attorney", "sue you",
			"food poisoning", "contaminated", "health department",
			"health inspector", "discrimination", "harassment", "police",
		},
		BannedPhrases: []string{
			"always", "never", "100% satisfaction", "guarantee",
			"free meal", "free food", "full refund", "best in town",
		},
		MaxReplyLen: DefaultMaxReplyLen,
	}
}

func (c Config) crisisKeywords() []string {
	if len(c.CrisisKeywords) == 0 {
		return Default().CrisisKeywords
	}
	return c.CrisisKeywords
}

func (c Config) bannedPhrases() []string {
	if len(c.BannedPhrases) == 0 {
		return Default().BannedPhrases
	}
	return c.BannedPhrases
}

func (c Config) maxReplyLen() int {
	if c.MaxReplyLen <= 0 {
		return DefaultMaxReplyLen
	}
	return c.MaxReplyLen
}

type CrisisResult struct {
	IsCrisis bool
	Matched  []string
}

// DetectCrisis scans review text for high-severity keywords,
// case-insensitively. Matched keeps the configured order.
func (c Config) DetectCrisis(text string) CrisisResult {
	low := strings.ToLower(text)
	var res CrisisResult
	for _, kw := range c.crisisKeywords() {
		if kw == "" {
			continue
		}
		if strings.Contains(low, strings.ToLower(kw)) {
			res.Matched = append(res.Matched, kw)
		}
	}
	res.IsCrisis = len(res.Matched) > 0
	return res
}

type Result struct {
	Passed     bool
	Violations []string
}

// Summary flattens the violations for display and audit details.
func (r Result) Summary() string {
	return strings.Join(r.Violations, "; ")
}

// Filter runs every check over a candidate reply and collects all violations;
// checks never short-circuit one another. Order is fixed: PII, banned
// phrases, length.
func (c Config) Filter(reply string) Result {
	var v []string

	if emailPattern.MatchString(reply) {
		v = append(v, "reply contains PII (email address)")
	}
	if ssnPattern.MatchString(reply) {
		v = append(v, "reply contains PII (social security number)")
	}
	if cardPattern.MatchString(reply) {
		v = append(v, "reply contains PII (credit card number)")
	}
	if phonePattern.MatchString(reply) {
		v = append(v, "reply contains PII (phone number)")
	}

	low := strings.ToLower(reply)
	for _, phrase := range c.bannedPhrases() {
		if phrase == "" {
			continue
		}
		if strings.Contains(low, strings.ToLower(phrase)) {
			v = append(v, fmt.Sprintf("reply contains banned phrase %q", phrase))
		}
	}

	if max := c.maxReplyLen(); utf8.RuneCountInString(reply) > max {
		v = append(v, fmt.Sprintf("reply exceeds %d characters", max))
	}

	return Result{Passed: len(v) == 0, Violations: v}
}
