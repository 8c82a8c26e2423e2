package standardize

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/rotisserie/eris"

	"finreview/internal/domain"
)

// Rule kinds. A replace rule swaps the whole value for Value, a substitute
// rule rewrites only the matched words and a thousands rule turns "2k" style
// shorthand into a plain number.
const (
	KindReplace    = "replace"
	KindSubstitute = "substitute"
	KindThousands  = "thousands"
)

// Rule is one standardization rule as written in a rules file.
type Rule struct {
	Name       string  `yaml:"name" json:"name"`
	Pattern    string  `yaml:"pattern" json:"pattern"`
	Value      string  `yaml:"value" json:"value,omitempty"`
	Kind       string  `yaml:"kind" json:"kind"`
	Confidence float64 `yaml:"confidence" json:"confidence"`
}

// RuleSet is the top-level document of a rules file.
type RuleSet struct {
	Rules []Rule `yaml:"rules"`
}

// DefaultRules returns the built-in rules in evaluation order.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "unknown", Pattern: `\b(not sure|unsure|dunno|dont know|don't know)\b`, Value: "unknown", Confidence: 0.9},
		{Name: "missing", Pattern: `\b(idk|dk|dont remember|don't remember|cant remember|can't remember)\b`, Value: "missing", Confidence: 0.9},
		{Name: "ambiguous", Pattern: `\b(maybe|might be|could be|probably|perhaps|think so)\b`, Value: "ambiguous", Confidence: 0.8},

		{Name: "mother", Pattern: `\b(mum|mom|mommy|mummy)\b`, Value: "mother", Confidence: 0.95},
		{Name: "father", Pattern: `\b(dad|daddy|papa)\b`, Value: "father", Confidence: 0.95},
		{Name: "sister", Pattern: `\b(sis|sister)\b`, Value: "sibling", Confidence: 0.9},
		{Name: "brother", Pattern: `\b(bro|brother)\b`, Value: "sibling", Confidence: 0.9},
		{Name: "husband", Pattern: `\b(hubby|husband)\b`, Value: "spouse", Confidence: 0.95},
		{Name: "wife", Pattern: `\b(wife|wifey)\b`, Value: "spouse", Confidence: 0.95},
		{Name: "boyfriend", Pattern: `\b(bf|boyfriend)\b`, Value: "partner", Confidence: 0.9},
		{Name: "girlfriend", Pattern: `\b(gf|girlfriend)\b`, Value: "partner", Confidence: 0.9},

		{Name: "no_income", Pattern: `\b(no income|unemployed|jobless)\b`, Value: "0", Confidence: 0.95},

		{Name: "taxi_driver", Pattern: `\b(cabbie|cab driver)\b`, Value: "taxi driver", Kind: KindSubstitute, Confidence: 0.9},
		{Name: "domestic_worker", Pattern: `\b(domestic helper|maid|helper)\b`, Value: "domestic worker", Kind: KindSubstitute, Confidence: 0.9},
		{Name: "food_service", Pattern: `\b(hawker|food vendor)\b`, Value: "food service worker", Kind: KindSubstitute, Confidence: 0.9},
		{Name: "part_time", Pattern: `\b(part time|pt)\b`, Value: "part-time", Kind: KindSubstitute, Confidence: 0.9},
		{Name: "full_time", Pattern: `\b(full time|ft)\b`, Value: "full-time", Kind: KindSubstitute, Confidence: 0.9},

		{Name: "thousands", Pattern: `(?:\b(?:around|about)\s+|~\s*|\$\s*)(\d+(?:\.\d+)?)\s*k\b`, Kind: KindThousands, Confidence: 0.85},
	}
}

// LoadRules reads a YAML rules file.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "standardize: read rules file %s", path)
	}
	var set RuleSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, eris.Wrapf(err, "standardize: parse rules file %s", path)
	}
	if len(set.Rules) == 0 {
		return nil, eris.Errorf("standardize: rules file %s defines no rules", path)
	}
	return set.Rules, nil
}

type compiledRule struct {
	Rule
	re *regexp.Regexp
}

func compile(rules []Rule) ([]compiledRule, error) {
	out := make([]compiledRule, 0, len(rules))
	for i, r := range rules {
		if r.Kind == "" {
			r.Kind = KindReplace
		}
		switch r.Kind {
		case KindReplace, KindSubstitute:
			if r.Value == "" {
				return nil, eris.Errorf("standardize: rule %d (%s) has no value", i, r.Name)
			}
		case KindThousands:
		default:
			return nil, eris.Errorf("standardize: rule %d (%s) has unknown kind %q", i, r.Name, r.Kind)
		}
		if r.Confidence <= 0 || r.Confidence > 1 {
			return nil, eris.Errorf("standardize: rule %d (%s) confidence %v outside (0, 1]", i, r.Name, r.Confidence)
		}
		re, err := regexp.Compile(`(?i)` + r.Pattern)
		if err != nil {
			return nil, eris.Wrapf(err, "standardize: rule %d (%s) pattern", i, r.Name)
		}
		out = append(out, compiledRule{Rule: r, re: re})
	}
	return out, nil
}

// apply returns the rewritten text when the rule matches.
func (r compiledRule) apply(text string) (string, bool) {
	m := r.re.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	switch r.Kind {
	case KindSubstitute:
		return r.re.ReplaceAllLiteralString(text, r.Value), true
	case KindThousands:
		for _, g := range m[1:] {
			if g == "" {
				continue
			}
			n, err := strconv.ParseFloat(g, 64)
			if err != nil {
				return "", false
			}
			return domain.FormatAmount(n * 1000), true
		}
		return "", false
	default:
		return r.Value, true
	}
}

func describe(rules []compiledRule) []Rule {
	out := make([]Rule, len(rules))
	for i, r := range rules {
		out[i] = r.Rule
		out[i].Pattern = strings.TrimSpace(r.Pattern)
	}
	return out
}
