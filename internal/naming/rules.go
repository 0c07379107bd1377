package naming

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoMatchFound is returned when a substitution rule does not apply to a
// name, or when a derived sibling file does not exist on disk. It is
// non-fatal at batch level: callers record the miss and continue.
var ErrNoMatchFound = errors.New("no matching sibling found")

// Rule is one literal find/replace substitution. Rules are declarative
// data: they come from the rules file or the built-in defaults and are
// never constructed ad hoc in code paths.
type Rule struct {
	Find    string `yaml:"find"`
	Replace string `yaml:"replace"`
}

// Reversed returns the rule with find and replace swapped.
func (r Rule) Reversed() Rule {
	return Rule{Find: r.Replace, Replace: r.Find}
}

func (r Rule) String() string {
	return r.Find + " -> " + r.Replace
}

// RuleSet is an ordered list of substitutions that derives one sibling
// filename from a seed filename. Every rule is applied, in declaration
// order; rule i+1 operates on the output of rule i.
type RuleSet struct {
	Name  string `yaml:"name"`
	Rules []Rule `yaml:"rules"`
}

// Validate rejects rules that can never apply or that would break a
// round-trip: an empty find string, or find equal to replace.
func (rs RuleSet) Validate() error {
	if len(rs.Rules) == 0 {
		return fmt.Errorf("rule set %q has no rules", rs.Name)
	}
	for i, r := range rs.Rules {
		if r.Find == "" {
			return fmt.Errorf("rule set %q rule %d: empty find", rs.Name, i+1)
		}
		if r.Find == r.Replace {
			return fmt.Errorf("rule set %q rule %d: find equals replace (%q)", rs.Name, i+1, r.Find)
		}
	}
	return nil
}

// Apply runs every rule in order against name. A rule whose find string is
// absent from the current name fails the whole set with ErrNoMatchFound.
// Substitution replaces all occurrences, matching the legacy scripts.
func (rs RuleSet) Apply(name string) (string, error) {
	out := name
	for i, r := range rs.Rules {
		if !strings.Contains(out, r.Find) {
			return "", fmt.Errorf("%w: rule %d (%s) of set %q does not apply to %q",
				ErrNoMatchFound, i+1, r, rs.Name, name)
		}
		out = strings.ReplaceAll(out, r.Find, r.Replace)
	}
	return out, nil
}

// Reversed returns the rule set that undoes this one: each rule swapped and
// the order inverted, so applying a set and then its reverse is the
// identity on names in the set's domain.
func (rs RuleSet) Reversed() RuleSet {
	rev := RuleSet{Name: rs.Name + " (reversed)", Rules: make([]Rule, len(rs.Rules))}
	for i, r := range rs.Rules {
		rev.Rules[len(rs.Rules)-1-i] = r.Reversed()
	}
	return rev
}
