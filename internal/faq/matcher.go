package faq

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"marketplace-assistant/internal/models"
)

// Rule is a canned FAQ answer and the query patterns that select it
type Rule struct {
	ID       string `json:"id"`
	Category string `json:"category"`
	// Priority orders evaluation; higher runs first, ties keep declaration order.
	Priority int    `json:"priority"`
	Question string `json:"question"`
	// Patterns are case-insensitive regular expressions tried against the normalized query.
	Patterns []string `json:"patterns"`
	Answer   string   `json:"answer"`
	// Respond renders a query-dependent answer. Answer is used when nil.
	Respond func(query string) string `json:"-"`
	Actions []models.ActionButton      `json:"actions,omitempty"`
}

// Match is the result of a successful rule lookup
type Match struct {
	Rule     *Rule
	Response string
	Pattern  string
	Actions  []models.ActionButton
}

type compiledRule struct {
	rule     *Rule
	patterns []*regexp.Regexp
}

// Matcher evaluates an ordered rule table. It is immutable after construction.
type Matcher struct {
	rules  []compiledRule
	logger *zap.Logger
}

// Normalize lowercases and trims a query. It is the only normalization applied
// before matching and before computing cache keys.
func Normalize(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

// HashQuery returns the cache key of a query: hex SHA-256 of its normalized form
func HashQuery(query string) string {
	sum := sha256.Sum256([]byte(Normalize(query)))
	return hex.EncodeToString(sum[:])
}

// NewMatcher compiles the rule table and orders it by priority
func NewMatcher(rules []*Rule, logger *zap.Logger) (*Matcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	compiled := make([]compiledRule, 0, len(rules))
	seen := make(map[string]struct{}, len(rules))

	for _, r := range rules {
		if r == nil {
			return nil, errors.New("nil rule in table")
		}
		if r.ID == "" {
			return nil, errors.New("rule without id")
		}
		if _, dup := seen[r.ID]; dup {
			return nil, fmt.Errorf("duplicate rule id %q", r.ID)
		}
		seen[r.ID] = struct{}{}

		if len(r.Patterns) == 0 {
			return nil, fmt.Errorf("rule %q has no patterns", r.ID)
		}
		if r.Answer == "" && r.Respond == nil {
			return nil, fmt.Errorf("rule %q has no response", r.ID)
		}

		cr := compiledRule{rule: r, patterns: make([]*regexp.Regexp, 0, len(r.Patterns))}
		for _, p := range r.Patterns {
			re, err := regexp.Compile("(?i)" + p)
			if err != nil {
				return nil, fmt.Errorf("rule %q pattern %q: %w", r.ID, p, err)
			}
			cr.patterns = append(cr.patterns, re)
		}
		compiled = append(compiled, cr)
	}

	sort.SliceStable(compiled, func(i, j int) bool {
		return compiled[i].rule.Priority > compiled[j].rule.Priority
	})

	logger.Info("faq matcher initialized", zap.Int("rules", len(compiled)))

	return &Matcher{rules: compiled, logger: logger}, nil
}

// NewDefaultMatcher builds a matcher over the built-in marketplace rule table
func NewDefaultMatcher(logger *zap.Logger) (*Matcher, error) {
	return NewMatcher(DefaultRules(), logger)
}

// Match returns the first rule, in priority order, with any pattern matching the query.
// The query is normalized first; an empty query never matches.
func (m *Matcher) Match(query string) (*Match, bool) {
	q := Normalize(query)
	if q == "" {
		return nil, false
	}

	for _, cr := range m.rules {
		for i, re := range cr.patterns {
			if !re.MatchString(q) {
				continue
			}

			response := cr.rule.Answer
			if cr.rule.Respond != nil {
				response = cr.rule.Respond(q)
			}

			m.logger.Debug("faq rule matched",
				zap.String("rule_id", cr.rule.ID),
				zap.String("pattern", cr.rule.Patterns[i]))

			return &Match{
				Rule:     cr.rule,
				Response: response,
				Pattern:  cr.rule.Patterns[i],
				Actions:  cr.rule.Actions,
			}, true
		}
	}

	return nil, false
}

// Rules returns the rule table in evaluation order
func (m *Matcher) Rules() []*Rule {
	out := make([]*Rule, len(m.rules))
	for i, cr := range m.rules {
		out[i] = cr.rule
	}
	return out
}

// Lookup returns a rule by id
func (m *Matcher) Lookup(id string) (*Rule, bool) {
	for _, cr := range m.rules {
		if cr.rule.ID == id {
			return cr.rule, true
		}
	}
	return nil, false
}
