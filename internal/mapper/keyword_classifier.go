package mapper

import (
	"context"
	"regexp"
	"strings"

	"finreview/internal/domain"
)

// keywordMatchFactor scales every rule's base confidence: a keyword hit is
// weaker evidence than a model judgment.
const keywordMatchFactor = 0.75

// fieldRule maps trigger keywords or a pattern to a target field. Rules are
// evaluated in order; the first match wins.
type fieldRule struct {
	keywords []string
	pattern  *regexp.Regexp
	section  domain.Section
	field    string
	base     float64
}

func (r fieldRule) matches(lower string, words map[string]bool) bool {
	if r.pattern != nil {
		return r.pattern.MatchString(lower)
	}
	for _, kw := range r.keywords {
		if strings.Contains(kw, " ") {
			if strings.Contains(lower, kw) {
				return true
			}
			continue
		}
		if words[kw] {
			return true
		}
	}
	return false
}

var keywordRules = []fieldRule{
	{pattern: regexp.MustCompile(`^[stfg]\d{7}[a-z]$`), section: domain.SectionPersonal, field: domain.FieldNRIC, base: 0.95},
	{pattern: regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`), section: domain.SectionPersonal, field: domain.FieldEmail, base: 0.95},
	{pattern: regexp.MustCompile(`^(\+65\s?)?[689]\d{3}\s?\d{4}$`), section: domain.SectionPersonal, field: domain.FieldPhoneNumber, base: 0.9},
	{
		pattern: regexp.MustCompile(`^(sgd|s\$|\$)?\s*(\d{1,3}(,\d{3})+|\d+)(\.\d{1,2})?(\s*(per month|/month|monthly|a month))?$`),
		section: domain.SectionApplicantIncome, field: domain.FieldGrossMonthlyIncome, base: 0.8,
	},
	{
		pattern: regexp.MustCompile(`((19|20)\d{2}.*(-|to|until|present|now))|(since\s+\w*\s*(19|20)\d{2})|(\d+\s+(years?|months?))`),
		section: domain.SectionApplicantIncome, field: domain.FieldPeriodOfEmployment, base: 0.85,
	},
	{
		keywords: []string{
			"father", "mother", "spouse", "husband", "wife", "son", "daughter", "child", "brother", "sister",
			"sibling", "grandfather", "grandmother", "partner", "mum", "mom", "dad", "uncle", "aunt",
		},
		section: domain.SectionHouseholdIncome, field: domain.FieldRelationship, base: 0.9,
	},
	{
		keywords: []string{
			"rental", "rent", "cpf", "allowance", "pension", "dividend", "dividends", "payout", "payouts",
			"comcare", "subsidy", "scheme", "grant", "support from", "assistance",
		},
		section: domain.SectionOtherIncome, field: domain.FieldDescription, base: 0.8,
	},
	{
		keywords: []string{
			"driver", "cleaner", "engineer", "teacher", "nurse", "clerk", "cashier", "hawker", "technician",
			"manager", "assistant", "worker", "operator", "guard", "retired", "retiree", "unemployed", "student",
			"housewife", "homemaker", "self-employed", "freelancer", "freelance", "sales", "cook", "chef",
			"waiter", "waitress", "labourer", "mechanic", "helper", "maid", "cabbie", "executive", "admin",
		},
		section: domain.SectionApplicantIncome, field: domain.FieldOccupation, base: 0.85,
	},
	{
		keywords: []string{"blk", "block", "street", "road", "avenue", "ave", "jalan", "lorong", "drive", "crescent"},
		section:  domain.SectionPersonal, field: domain.FieldAddress, base: 0.8,
	},
}

var wordSplit = regexp.MustCompile(`[^a-z0-9\-]+`)

// minNoteWords is the length from which unmatched text is treated as a
// narrative note.
const minNoteWords = 8

// KeywordClassifier maps fragments with fixed keyword and pattern rules. It
// is deterministic and never fails.
type KeywordClassifier struct{}

// NewKeywordClassifier creates a KeywordClassifier.
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{}
}

func (k *KeywordClassifier) Name() string { return "keyword" }

func (k *KeywordClassifier) Classify(_ context.Context, fragments []string) (*MappingResult, error) {
	out := &MappingResult{Mappings: []Mapping{}, UnmappedText: []string{}}
	var total float64
	for _, frag := range fragments {
		m, ok := classifyFragment(frag)
		if !ok {
			out.UnmappedText = append(out.UnmappedText, frag)
			continue
		}
		out.Mappings = append(out.Mappings, m)
		total += m.Confidence
	}
	if len(out.Mappings) > 0 {
		out.Confidence = total / float64(len(out.Mappings))
	}
	return out, nil
}

func classifyFragment(frag string) (Mapping, bool) {
	lower := strings.ToLower(strings.TrimSpace(frag))
	if lower == "" {
		return Mapping{}, false
	}
	words := make(map[string]bool)
	for _, w := range wordSplit.Split(lower, -1) {
		if w != "" {
			words[w] = true
		}
	}

	for _, rule := range keywordRules {
		if rule.matches(lower, words) {
			return Mapping{
				FieldName:     rule.field,
				Section:       rule.section,
				ExtractedText: frag,
				Confidence:    keywordMatchFactor * rule.base,
			}, true
		}
	}

	if len(strings.Fields(lower)) >= minNoteWords {
		return Mapping{
			FieldName:     domain.FieldFinancialNote,
			Section:       domain.SectionFinancial,
			ExtractedText: frag,
			Confidence:    keywordMatchFactor * 0.7,
		}, true
	}
	return Mapping{}, false
}
