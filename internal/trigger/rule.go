// Package trigger evaluates user rules against a finished assistant reply and
// runs the matching rules' Lua actions.
package trigger

import "strings"

// Kind selects how a rule's pattern is matched.
type Kind string

const (
	Contains Kind = "contains"
	Regex    Kind = "regex"
)

// Rule pairs a pattern with a Lua action.
type Rule struct {
	Match  string `yaml:"match"`
	Kind   Kind   `yaml:"type"`
	Action string `yaml:"action"`
}

// Normalized returns the effective kind; anything but regex is contains.
func (k Kind) Normalized() Kind {
	if Kind(strings.ToLower(strings.TrimSpace(string(k)))) == Regex {
		return Regex
	}
	return Contains
}

// Outcome records one attempted rule.
type Outcome struct {
	Index       int
	Rule        Rule
	Matched     bool
	MatchedText string
	// Captures holds the full match at 0 followed by the groups. A group that
	// did not participate is nil.
	Captures   []*string
	PatternErr error
	ActionErr  error
	Preview    string
	HasPreview bool
}

// Level is the severity of a toast.
type Level int

const (
	Info Level = iota
	Error
)

// Host receives the side effects of rule evaluation.
type Host interface {
	Alert(text string) error
	Toast(level Level, text string)
}

// Source supplies the current rules in evaluation order.
type Source interface {
	Rules() []Rule
}

// StaticSource is a fixed rule list.
type StaticSource []Rule

// Rules returns a copy of the list.
func (s StaticSource) Rules() []Rule {
	return append([]Rule(nil), s...)
}

// Chain concatenates several sources in order.
type Chain []Source

// Rules returns the rules of every source, source by source.
func (c Chain) Rules() []Rule {
	var rules []Rule
	for _, src := range c {
		if src != nil {
			rules = append(rules, src.Rules()...)
		}
	}
	return rules
}
