package rules

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// PatternKind selects how a rule's pattern is matched.
type PatternKind string

const (
	KindContains PatternKind = "contains"
	KindExact    PatternKind = "exact"
	KindRegex    PatternKind = "regex"
)

// TargetField selects which transaction field(s) a rule matches against.
type TargetField string

const (
	FieldPayee    TargetField = "payee"
	FieldMemo     TargetField = "memo"
	FieldCombined TargetField = "combined"
)

// Rule is a user-defined categorization rule. Lower priority is evaluated
// first. The pipeline treats rules as read-only.
type Rule struct {
	ID            string
	Name          string
	Pattern       string
	Kind          PatternKind
	Field         TargetField
	CategoryID    string
	CategoryName  string
	PayeeOverride string
	Priority      int
	Enabled       bool
}

// ValidatePattern rejects malformed patterns before they are stored, so a
// broken regex can never surface later during batch matching.
func ValidatePattern(pattern string, kind PatternKind) error {
	if strings.TrimSpace(pattern) == "" {
		return fmt.Errorf("pattern must not be empty")
	}
	switch kind {
	case KindContains, KindExact:
		return nil
	case KindRegex:
		if _, err := regexp.Compile("(?i)" + pattern); err != nil {
			return fmt.Errorf("invalid regex: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown pattern kind %q", kind)
	}
}

type compiledRule struct {
	Rule
	re *regexp.Regexp // nil unless Kind == KindRegex
}

// Set is a compiled, priority-ordered rule set. Regexes are compiled exactly
// once here and reused across the whole batch.
type Set struct {
	rules []compiledRule
}

// Compile filters out disabled rules, sorts the rest by ascending priority
// (stable, so storage order breaks ties) and compiles every regex pattern.
func Compile(rs []Rule) (*Set, error) {
	s := &Set{rules: make([]compiledRule, 0, len(rs))}
	for _, r := range rs {
		if !r.Enabled {
			continue
		}
		cr := compiledRule{Rule: r}
		if r.Kind == KindRegex {
			re, err := regexp.Compile("(?i)" + r.Pattern)
			if err != nil {
				return nil, fmt.Errorf("rule %q: invalid regex: %w", r.Name, err)
			}
			cr.re = re
		}
		s.rules = append(s.rules, cr)
	}
	sort.SliceStable(s.rules, func(i, j int) bool {
		return s.rules[i].Priority < s.rules[j].Priority
	})
	return s, nil
}

// Match returns the first rule matching the transaction's payee/memo, in
// priority order, or false when no rule matches.
func (s *Set) Match(payee, memo string) (Rule, bool) {
	for _, cr := range s.rules {
		if cr.matches(payee, memo) {
			return cr.Rule, true
		}
	}
	return Rule{}, false
}

// Len reports the number of enabled rules in the set.
func (s *Set) Len() int { return len(s.rules) }

func (cr compiledRule) matches(payee, memo string) bool {
	switch cr.Field {
	case FieldPayee:
		return cr.matchText(payee)
	case FieldMemo:
		return cr.matchText(memo)
	default:
		// Combined tries the fields independently. For substring and exact
		// matching this is equivalent to matching a concatenation; for regex
		// it avoids false positives spanning the field boundary.
		return cr.matchText(payee) || cr.matchText(memo)
	}
}

func (cr compiledRule) matchText(text string) bool {
	switch cr.Kind {
	case KindExact:
		return strings.EqualFold(strings.TrimSpace(text), strings.TrimSpace(cr.Pattern))
	case KindRegex:
		return cr.re.MatchString(text)
	default:
		return strings.Contains(strings.ToLower(text), strings.ToLower(cr.Pattern))
	}
}

// TestPattern evaluates a single pattern against one transaction's fields
// using exactly the batch matching semantics; the preview action and batch
// matching share this code path.
func TestPattern(pattern string, kind PatternKind, field TargetField, payee, memo string) (bool, error) {
	set, err := Compile([]Rule{{
		Pattern: pattern,
		Kind:    kind,
		Field:   field,
		Enabled: true,
	}})
	if err != nil {
		return false, err
	}
	_, ok := set.Match(payee, memo)
	return ok, nil
}
