// Package timeout resolves optional statement deadlines. A zero timeout means
// the statement runs with the caller's context only.
package timeout

import (
	"context"
	"fmt"
	"regexp"
	"time"
)

// Rule gives statements matching Pattern their own timeout.
type Rule struct {
	Pattern string
	Timeout time.Duration
}

// Config is the timeout manager's own config type.
type Config struct {
	Default time.Duration
	Rules   []Rule
}

type compiledRule struct {
	pattern *regexp.Regexp
	timeout time.Duration
}

// Manager resolves statement timeouts by SQL pattern. First matching rule wins.
type Manager struct {
	rules          []compiledRule
	defaultTimeout time.Duration
}

// NewManager compiles cfg. Returns an error on invalid patterns or negative durations.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Default < 0 {
		return nil, fmt.Errorf("timeout: negative default timeout %s", cfg.Default)
	}
	compiled := make([]compiledRule, len(cfg.Rules))
	for i, r := range cfg.Rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("timeout: invalid regex pattern %q: %v", r.Pattern, err)
		}
		if r.Timeout <= 0 {
			return nil, fmt.Errorf("timeout: rule %q must have a positive timeout", r.Pattern)
		}
		compiled[i] = compiledRule{pattern: re, timeout: r.Timeout}
	}
	return &Manager{rules: compiled, defaultTimeout: cfg.Default}, nil
}

// Resolve returns the timeout for sql and the pattern that selected it
// ("" when the default applied). A zero duration means no deadline.
func (m *Manager) Resolve(sql string) (time.Duration, string) {
	for _, rule := range m.rules {
		if rule.pattern.MatchString(sql) {
			return rule.timeout, rule.pattern.String()
		}
	}
	return m.defaultTimeout, ""
}

// Context derives a context bounded by the timeout for sql. When no timeout
// applies the parent is returned with a no-op cancel.
func (m *Manager) Context(parent context.Context, sql string) (context.Context, context.CancelFunc, string) {
	d, pattern := m.Resolve(sql)
	if d <= 0 {
		return parent, func() {}, pattern
	}
	ctx, cancel := context.WithTimeout(parent, d)
	return ctx, cancel, pattern
}
