// Package sanitize redacts string values in query results using regex rules.
package sanitize

import (
	"fmt"
	"regexp"
)

// Rule replaces every match of Pattern with Replacement (regexp expansion
// syntax, e.g. "${1}").
type Rule struct {
	Pattern     string
	Replacement string
}

type compiledRule struct {
	pattern     *regexp.Regexp
	replacement string
}

// Sanitizer applies rules in order to every string in a row set.
// It holds no mutable state and is safe for concurrent use.
type Sanitizer struct {
	rules []compiledRule
}

// NewSanitizer compiles rules. Returns an error on invalid regex patterns.
func NewSanitizer(rules []Rule) (*Sanitizer, error) {
	compiled := make([]compiledRule, len(rules))
	for i, r := range rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("sanitize: invalid regex pattern %q: %v", r.Pattern, err)
		}
		compiled[i] = compiledRule{pattern: re, replacement: r.Replacement}
	}
	return &Sanitizer{rules: compiled}, nil
}

// HasRules returns true if the sanitizer has any rules configured.
func (s *Sanitizer) HasRules() bool {
	return s != nil && len(s.rules) > 0
}

// SanitizeRows rewrites rows in place and returns them. JSON documents and
// arrays are walked recursively.
func (s *Sanitizer) SanitizeRows(rows [][]any) [][]any {
	if !s.HasRules() {
		return rows
	}
	for _, row := range rows {
		for i, v := range row {
			row[i] = s.sanitizeValue(v)
		}
	}
	return rows
}

func (s *Sanitizer) sanitizeValue(v any) any {
	switch val := v.(type) {
	case string:
		for _, rule := range s.rules {
			val = rule.pattern.ReplaceAllString(val, rule.replacement)
		}
		return val
	case map[string]any:
		for k, item := range val {
			val[k] = s.sanitizeValue(item)
		}
		return val
	case []any:
		for i, item := range val {
			val[i] = s.sanitizeValue(item)
		}
		return val
	default:
		return v
	}
}
