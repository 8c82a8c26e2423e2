// Package analytics summarizes stored financial records for the dashboard.
package analytics

import (
	"math"
	"sort"
	"strings"
	"time"

	"finreview/internal/domain"
)

// Confidence buckets, most confident first.
const (
	BucketVeryHigh = "Very High (90%+)"
	BucketHigh     = "High (80-89%)"
	BucketMedium   = "Medium (70-79%)"
	BucketLow      = "Low (60-69%)"
	BucketVeryLow  = "Very Low (<60%)"
)

// Income source labels.
const (
	SourceApplicant = "Applicant Income"
	SourceHousehold = "Household Income"
	SourceOther     = "Other Income"
)

// IncomeRanges lists the income range labels in ascending order.
var IncomeRanges = []string{"0-499", "500-999", "1000-1999", "2000-2999", "3000-4999", "5000+"}

const (
	lowConfidence   = 0.7
	occupationLimit = 10
	missingLimit    = 10
	trendMonths     = 12
)

// Count is a label with its number of occurrences.
type Count struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// IncomeSourceStats describes the positive amounts of one income source.
type IncomeSourceStats struct {
	SourceType string  `json:"sourceType"`
	Count      int     `json:"count"`
	AvgAmount  float64 `json:"avgAmount"`
	MinAmount  float64 `json:"minAmount"`
	MaxAmount  float64 `json:"maxAmount"`
}

// OccupationStats describes an occupation seen on more than one entry.
type OccupationStats struct {
	Occupation string  `json:"occupation"`
	Count      int     `json:"count"`
	AvgIncome  float64 `json:"avgIncome"`
}

// MonthlyTrend counts submissions in one calendar month.
type MonthlyTrend struct {
	Month         string  `json:"month"`
	Submissions   int     `json:"submissions"`
	AvgConfidence float64 `json:"avgConfidence"`
}

// Summary holds record-level totals.
type Summary struct {
	TotalForms         int     `json:"totalForms"`
	AvgConfidence      float64 `json:"avgConfidence"`
	LowConfidenceCount int     `json:"lowConfidenceCount"`
	FormsWithFlags     int     `json:"formsWithFlags"`
}

// Report is the full analytics view over a set of records.
type Report struct {
	FlagAnalysis            []Count             `json:"flagAnalysis"`
	ConfidenceDistribution  []Count             `json:"confidenceDistribution"`
	IncomeSourceAnalysis    []IncomeSourceStats `json:"incomeSourceAnalysis"`
	OccupationAnalysis      []OccupationStats   `json:"occupationAnalysis"`
	IncomeRangeDistribution []Count             `json:"incomeRangeDistribution"`
	SubmissionTrends        []MonthlyTrend      `json:"submissionTrends"`
	MissingFieldsAnalysis   []Count             `json:"missingFieldsAnalysis"`
	StatusCounts            []Count             `json:"statusCounts"`
	Summary                 Summary             `json:"summary"`
	GeneratedAt             time.Time           `json:"generatedAt"`
}

// Compute builds the report. Submission trends cover the twelve months up
// to now.
func Compute(records []domain.FinancialRecord, now time.Time) Report {
	rep := Report{
		FlagAnalysis:            []Count{},
		ConfidenceDistribution:  []Count{},
		IncomeSourceAnalysis:    []IncomeSourceStats{},
		OccupationAnalysis:      []OccupationStats{},
		IncomeRangeDistribution: []Count{},
		SubmissionTrends:        []MonthlyTrend{},
		MissingFieldsAnalysis:   []Count{},
		StatusCounts:            []Count{},
		GeneratedAt:             now,
	}
	if len(records) == 0 {
		return rep
	}

	flags := map[string]int{}
	buckets := map[string]int{}
	statuses := map[string]int{}
	missing := map[string]int{}
	var confSum float64
	rules := domain.DefaultSectionRules()

	for i := range records {
		rec := &records[i]
		confSum += rec.Confidence
		if rec.Confidence < lowConfidence {
			rep.Summary.LowConfidenceCount++
		}
		if len(rec.Flags) > 0 {
			rep.Summary.FormsWithFlags++
		}
		seen := map[string]bool{}
		for _, f := range rec.Flags {
			if f = strings.TrimSpace(f); f != "" && !seen[f] {
				seen[f] = true
				flags[f]++
			}
		}
		buckets[ConfidenceBucket(rec.Confidence)]++
		statuses[string(rec.Status)]++
		for _, p := range rec.MissingMandatoryFields(rules) {
			missing[genericPath(p)]++
		}
	}
	rep.Summary.TotalForms = len(records)
	rep.Summary.AvgConfidence = round2(confSum / float64(len(records)))

	rep.FlagAnalysis = ranked(flags, 0)
	rep.ConfidenceDistribution = ranked(buckets, 0)
	rep.StatusCounts = ranked(statuses, 0)
	rep.MissingFieldsAnalysis = ranked(missing, missingLimit)
	rep.IncomeSourceAnalysis = incomeSources(records)
	rep.OccupationAnalysis = occupations(records)
	rep.IncomeRangeDistribution = incomeRanges(records)
	rep.SubmissionTrends = trends(records, now)
	return rep
}

// ConfidenceBucket labels a record confidence.
func ConfidenceBucket(c float64) string {
	switch {
	case c >= 0.9:
		return BucketVeryHigh
	case c >= 0.8:
		return BucketHigh
	case c >= 0.7:
		return BucketMedium
	case c >= 0.6:
		return BucketLow
	}
	return BucketVeryLow
}

// IncomeRange labels a monthly income.
func IncomeRange(income float64) string {
	switch {
	case income >= 5000:
		return "5000+"
	case income >= 3000:
		return "3000-4999"
	case income >= 2000:
		return "2000-2999"
	case income >= 1000:
		return "1000-1999"
	case income >= 500:
		return "500-999"
	}
	return "0-499"
}

// genericPath drops the entry index so gaps in any household member count
// together.
func genericPath(p domain.FieldPath) string {
	if p.Section.Repeating() {
		return string(p.Section) + "." + p.Field
	}
	return p.String()
}

type amountStats struct {
	count    int
	sum      float64
	min, max float64
}

func (s *amountStats) add(v float64) {
	if s.count == 0 || v < s.min {
		s.min = v
	}
	if s.count == 0 || v > s.max {
		s.max = v
	}
	s.count++
	s.sum += v
}

func (s *amountStats) result(label string) IncomeSourceStats {
	out := IncomeSourceStats{SourceType: label, Count: s.count}
	if s.count > 0 {
		out.AvgAmount = round2(s.sum / float64(s.count))
		out.MinAmount = s.min
		out.MaxAmount = s.max
	}
	return out
}

func incomeSources(records []domain.FinancialRecord) []IncomeSourceStats {
	var applicant, household, other amountStats
	for _, rec := range records {
		for _, e := range rec.ApplicantIncome {
			if positive(e.GrossMonthlyIncomeSGD) {
				applicant.add(*e.GrossMonthlyIncomeSGD)
			}
		}
		for _, e := range rec.HouseholdIncome {
			if positive(e.GrossMonthlyIncomeSGD) {
				household.add(*e.GrossMonthlyIncomeSGD)
			}
		}
		for _, e := range rec.OtherIncomeSources {
			if positive(e.AmountSGD) {
				other.add(*e.AmountSGD)
			}
		}
	}
	return []IncomeSourceStats{
		applicant.result(SourceApplicant),
		household.result(SourceHousehold),
		other.result(SourceOther),
	}
}

// occupations groups applicant and household occupations case-insensitively
// and keeps those seen more than once.
func occupations(records []domain.FinancialRecord) []OccupationStats {
	type acc struct {
		label     string
		count     int
		incomeSum float64
		incomeN   int
	}
	groups := map[string]*acc{}
	add := func(occupation string, income *float64) {
		label := strings.TrimSpace(occupation)
		if label == "" {
			return
		}
		key := strings.ToLower(label)
		g, ok := groups[key]
		if !ok {
			g = &acc{label: label}
			groups[key] = g
		}
		g.count++
		if income != nil {
			g.incomeSum += *income
			g.incomeN++
		}
	}
	for _, rec := range records {
		for _, e := range rec.ApplicantIncome {
			add(e.Occupation, e.GrossMonthlyIncomeSGD)
		}
		for _, e := range rec.HouseholdIncome {
			add(e.Occupation, e.GrossMonthlyIncomeSGD)
		}
	}

	out := []OccupationStats{}
	for _, g := range groups {
		if g.count < 2 {
			continue
		}
		s := OccupationStats{Occupation: g.label, Count: g.count}
		if g.incomeN > 0 {
			s.AvgIncome = round2(g.incomeSum / float64(g.incomeN))
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Occupation < out[j].Occupation
	})
	if len(out) > occupationLimit {
		out = out[:occupationLimit]
	}
	return out
}

func incomeRanges(records []domain.FinancialRecord) []Count {
	counts := map[string]int{}
	for _, rec := range records {
		for _, e := range rec.ApplicantIncome {
			if positive(e.GrossMonthlyIncomeSGD) {
				counts[IncomeRange(*e.GrossMonthlyIncomeSGD)]++
			}
		}
		for _, e := range rec.HouseholdIncome {
			if positive(e.GrossMonthlyIncomeSGD) {
				counts[IncomeRange(*e.GrossMonthlyIncomeSGD)]++
			}
		}
	}
	out := []Count{}
	for _, r := range IncomeRanges {
		if n := counts[r]; n > 0 {
			out = append(out, Count{Label: r, Count: n})
		}
	}
	return out
}

func trends(records []domain.FinancialRecord, now time.Time) []MonthlyTrend {
	since := now.AddDate(0, -trendMonths, 0)
	type acc struct {
		n       int
		confSum float64
	}
	months := map[string]*acc{}
	for _, rec := range records {
		if rec.CreatedAt.IsZero() || rec.CreatedAt.Before(since) || rec.CreatedAt.After(now) {
			continue
		}
		key := rec.CreatedAt.UTC().Format("2006-01")
		a, ok := months[key]
		if !ok {
			a = &acc{}
			months[key] = a
		}
		a.n++
		a.confSum += rec.Confidence
	}
	out := make([]MonthlyTrend, 0, len(months))
	for m, a := range months {
		out = append(out, MonthlyTrend{Month: m, Submissions: a.n, AvgConfidence: round2(a.confSum / float64(a.n))})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

// ranked sorts counts descending, ties by label. A positive limit caps the
// result.
func ranked(counts map[string]int, limit int) []Count {
	out := make([]Count, 0, len(counts))
	for label, n := range counts {
		out = append(out, Count{Label: label, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func positive(f *float64) bool {
	return f != nil && *f > 0
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
