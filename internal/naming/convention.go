package naming

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Convention is the full pairing configuration: how to derive sibling
// channel files from a seed file, how to name the merged output, and how
// to label the channels. Loaded from a YAML rules file or built in by
// [DefaultConvention].
type Convention struct {
	Siblings []RuleSet    `yaml:"siblings"`
	Merged   []Rule       `yaml:"merged"`
	Labels   LabelOptions `yaml:"channel_labels"`
}

// LabelOptions controls automatic channel label derivation.
type LabelOptions struct {
	// SeedSuffix is appended to the seed's channel token, marking which
	// channel carries processed (e.g. deconvolved) data.
	SeedSuffix string `yaml:"seed_suffix"`
}

// DefaultConvention pairs deconvolved exports with their raw counterstain:
// a dw_-prefixed 561 nm seed finds its 405 nm sibling, and the merged
// output swaps the dw_ prefix for merged_.
func DefaultConvention() *Convention {
	return &Convention{
		Siblings: []RuleSet{
			{
				Name: "raw-counterstain",
				Rules: []Rule{
					{Find: "dw_Sample", Replace: "Sample"},
					{Find: "561", Replace: "405"},
				},
			},
		},
		Merged: []Rule{
			{Find: "dw_", Replace: "merged_"},
		},
		Labels: LabelOptions{SeedSuffix: "_decon"},
	}
}

// LoadConvention reads a YAML rules file. Unknown keys are rejected so a
// typo in the file surfaces instead of silently disabling a rule set.
func LoadConvention(path string) (*Convention, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("rules file: %w", err)
	}
	defer f.Close()
	var c Convention
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("rules file %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("rules file %s: %w", path, err)
	}
	return &c, nil
}

// Validate checks every rule set plus the merged-name rules.
func (c *Convention) Validate() error {
	if len(c.Siblings) == 0 {
		return fmt.Errorf("no sibling rule sets defined")
	}
	for _, rs := range c.Siblings {
		if err := rs.Validate(); err != nil {
			return err
		}
	}
	for i, r := range c.Merged {
		if r.Find == "" {
			return fmt.Errorf("merged rule %d: empty find", i+1)
		}
	}
	return nil
}

// Sibling is one derived complementary file that exists on disk.
type Sibling struct {
	Path  string
	Label string
	Set   string // name of the rule set that derived it
}

// Miss records a rule set whose derived sibling was not found. Misses are
// logged, not fatal.
type Miss struct {
	Set      string
	Expected string // the path that was derived but absent
	Err      error
}

// Pairing is the result of matching one seed file: the siblings found on
// disk (in rule-set order), the seed's own channel label, and the merged
// output basename.
type Pairing struct {
	Seed      string
	SeedLabel string
	Siblings  []Sibling
	Missing   []Miss
	Output    string
}

// Inputs returns the merge input paths in channel order: siblings first, in
// rule-set declaration order, then the seed.
func (p *Pairing) Inputs() []string {
	out := make([]string, 0, len(p.Siblings)+1)
	for _, s := range p.Siblings {
		out = append(out, s.Path)
	}
	return append(out, p.Seed)
}

// ChannelLabels returns the labels matching [Pairing.Inputs] order.
func (p *Pairing) ChannelLabels() []string {
	out := make([]string, 0, len(p.Siblings)+1)
	for _, s := range p.Siblings {
		out = append(out, s.Label)
	}
	return append(out, p.SeedLabel)
}

// Pair derives the sibling set for one seed file. Rule sets whose derived
// name does not apply, or whose derived file is absent on disk, are
// recorded in Missing; Pairing.Siblings holds only files that exist. An
// invalid convention is the only hard error.
func (c *Convention) Pair(seedPath string) (Pairing, error) {
	if err := c.Validate(); err != nil {
		return Pairing{}, err
	}
	dir := filepath.Dir(seedPath)
	base := filepath.Base(seedPath)

	p := Pairing{
		Seed:   seedPath,
		Output: c.MergedName(base),
	}

	for i, rs := range c.Siblings {
		derived, err := rs.Apply(base)
		if err != nil {
			p.Missing = append(p.Missing, Miss{Set: rs.Name, Err: err})
			continue
		}
		candidate := filepath.Join(dir, derived)
		if _, err := os.Stat(candidate); err != nil {
			p.Missing = append(p.Missing, Miss{
				Set:      rs.Name,
				Expected: candidate,
				Err:      fmt.Errorf("%w: expected %s", ErrNoMatchFound, candidate),
			})
			continue
		}
		p.Siblings = append(p.Siblings, Sibling{
			Path:  candidate,
			Label: labelFor(derived, i),
			Set:   rs.Name,
		})
	}

	seedLabel := labelFor(base, len(c.Siblings))
	p.SeedLabel = seedLabel + c.Labels.SeedSuffix
	return p, nil
}

// MergedName derives the consolidated output basename from the seed
// basename. Merged rules apply best-effort (a non-matching rule is
// skipped); if nothing applied the name gets a merged_ prefix so the
// output can never collide with an input.
func (c *Convention) MergedName(base string) string {
	out := base
	for _, r := range c.Merged {
		if strings.Contains(out, r.Find) {
			out = strings.ReplaceAll(out, r.Find, r.Replace)
		}
	}
	if out == base {
		out = "merged_" + base
	}
	return out
}

// reChannelToken matches channel markers like ch561, CH405 or ch-01; the
// last occurrence in a name wins, since sample ids may also contain "ch".
var reChannelToken = regexp.MustCompile(`(?i)ch-?[0-9]+`)

// labelFor extracts the channel label from a filename, falling back to a
// positional c<NN> label when the name carries no channel token.
func labelFor(base string, position int) string {
	matches := reChannelToken.FindAllString(base, -1)
	if len(matches) > 0 {
		return matches[len(matches)-1]
	}
	return fmt.Sprintf("c%02d", position)
}

// DedupeLabels blanks repeated channel names so downstream positional
// fallbacks take over. Containers may declare the same name for several
// channels; the first occurrence keeps it, later ones become "".
func DedupeLabels(names []string) []string {
	out := make([]string, len(names))
	seen := make(map[string]bool, len(names))
	for i, n := range names {
		if n != "" && !seen[n] {
			seen[n] = true
			out[i] = n
		}
	}
	return out
}
