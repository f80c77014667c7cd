package mining

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// MaskRule rewrites one class of volatile substrings to a stable
// placeholder token before clustering.
type MaskRule struct {
	Name        string
	Placeholder string
	re          *regexp.Regexp
}

// NewMaskRule compiles a rule from a pattern string.
func NewMaskRule(name, pattern, placeholder string) (MaskRule, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return MaskRule{}, fmt.Errorf("mask rule %q: %w", name, err)
	}
	return MaskRule{Name: name, Placeholder: placeholder, re: re}, nil
}

// DefaultMaskRules returns the built-in rules. Order matters: full
// timestamps must win over bare dates and times, UUIDs over hex runs,
// and durations over bare numbers.
func DefaultMaskRules() []MaskRule {
	mustRule := func(name, pattern, placeholder string) MaskRule {
		rule, err := NewMaskRule(name, pattern, placeholder)
		if err != nil {
			panic(err)
		}
		return rule
	}

	return []MaskRule{
		mustRule("timestamp", `\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(?:[.,]\d+)?(?:Z|[+-]\d{2}:?\d{2})?`, "<TIMESTAMP>"),
		mustRule("date", `\d{4}-\d{2}-\d{2}|\d{2}/\d{2}/\d{4}`, "<DATE>"),
		mustRule("time", `\b\d{2}:\d{2}:\d{2}(?:[.,]\d+)?\b`, "<TIME>"),
		mustRule("uuid", `\b[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}\b`, "<UUID>"),
		mustRule("hex", `\b[0-9a-fA-F]{12,}\b`, "<HEX>"),
		mustRule("ip", `\b(?:\d{1,3}\.){3}\d{1,3}\b`, "<IP>"),
		mustRule("duration", `\b\d+(?:\.\d+)?(?:ns|us|µs|ms|s|m|h)\b`, "<DURATION>"),
		mustRule("email", `'[^'\s]+@[^'\s]+'|"[^"\s]+@[^"\s]+"`, "<EMAIL>"),
		mustRule("number", `\b\d+\b`, "<NUM>"),
	}
}

// Masker applies an ordered list of mask rules to log messages.
type Masker struct {
	rules []MaskRule
}

// NewMasker creates a Masker with the default rules.
func NewMasker() *Masker {
	return &Masker{rules: DefaultMaskRules()}
}

// NewMaskerWithRules creates a Masker applying extra rules ahead of the
// defaults, so domain-specific placeholders take precedence.
func NewMaskerWithRules(extra []MaskRule) *Masker {
	rules := make([]MaskRule, 0, len(extra)+9)
	rules = append(rules, extra...)
	rules = append(rules, DefaultMaskRules()...)
	return &Masker{rules: rules}
}

// Mask rewrites all volatile substrings in message to placeholders.
func (m *Masker) Mask(message string) string {
	masked := message
	for _, rule := range m.rules {
		masked = rule.re.ReplaceAllString(masked, rule.Placeholder)
	}
	return masked
}

// maskRuleFile is the YAML shape of a user-supplied mask rule file.
type maskRuleFile struct {
	Rules []struct {
		Name        string `yaml:"name"`
		Pattern     string `yaml:"pattern"`
		Placeholder string `yaml:"placeholder"`
	} `yaml:"rules"`
}

// LoadMaskRules reads extra mask rules from a YAML file.
func LoadMaskRules(path string) ([]MaskRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading mask rules: %w", err)
	}

	var file maskRuleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing mask rules: %w", err)
	}

	rules := make([]MaskRule, 0, len(file.Rules))
	for _, r := range file.Rules {
		if r.Pattern == "" || r.Placeholder == "" {
			return nil, fmt.Errorf("mask rule %q: pattern and placeholder are required", r.Name)
		}
		rule, err := NewMaskRule(r.Name, r.Pattern, r.Placeholder)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}
