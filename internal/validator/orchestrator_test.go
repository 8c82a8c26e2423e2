package validator_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finreview/internal/domain"
	"finreview/internal/validator"
)

type stubSemantic struct {
	calls  atomic.Int32
	result func(in validator.SemanticInput) domain.Outcome[domain.ValidationResult]
}

func (s *stubSemantic) Validate(_ context.Context, in validator.SemanticInput) domain.Outcome[domain.ValidationResult] {
	s.calls.Add(1)
	return s.result(in)
}

func semanticPass(conf float64) *stubSemantic {
	return &stubSemantic{result: func(in validator.SemanticInput) domain.Outcome[domain.ValidationResult] {
		return domain.Succeeded(domain.ValidationResult{
			IsValid: true, Confidence: conf, StandardizedValue: in.Value + "!",
			Flags: []string{}, Suggestions: []string{"looks fine"},
		})
	}}
}

func TestOrchestrator_ShortCircuitsConfidentRuleFailure(t *testing.T) {
	sem := semanticPass(0.9)
	o := validator.NewOrchestrator(validator.DefaultRegistry(), sem, validator.Options{})

	got := o.ValidateField(context.Background(), validator.FieldRequest{
		Value: "", FieldName: "nric", FieldType: validator.TypeNRIC,
	})

	assert.False(t, got.IsValid)
	assert.Equal(t, []string{domain.FlagEmptyField}, got.Flags)
	assert.Equal(t, domain.MethodRules, got.Method)
	assert.Equal(t, int32(0), sem.calls.Load())
}

func TestOrchestrator_CombinesRuleAndSemantic(t *testing.T) {
	sem := semanticPass(0.7)
	o := validator.NewOrchestrator(validator.DefaultRegistry(), sem, validator.Options{})

	got := o.ValidateField(context.Background(), validator.FieldRequest{
		Value: "2800", FieldName: "grossMonthlyIncomeSGD", FieldType: validator.TypeIncome,
	})

	assert.True(t, got.IsValid)
	assert.Equal(t, 0.7, got.Confidence)
	assert.Equal(t, "2800!", got.StandardizedValue)
	assert.Equal(t, domain.MethodCombined, got.Method)
	assert.Equal(t, int32(1), sem.calls.Load())
}

func TestOrchestrator_RuleFailureNotOverriddenBySemanticPass(t *testing.T) {
	sem := semanticPass(0.95)
	o := validator.NewOrchestrator(validator.DefaultRegistry(), sem, validator.Options{})

	got := o.ValidateField(context.Background(), validator.FieldRequest{
		Value: "S123", FieldName: "nric", FieldType: validator.TypeNRIC,
	})

	assert.False(t, got.IsValid)
	assert.Equal(t, 0.2, got.Confidence)
	assert.Equal(t, []string{domain.FlagFormatError}, got.Flags)
	assert.Equal(t, []string{"NRIC must be in format S1234567A", "looks fine"}, got.Suggestions)
	assert.True(t, got.RequiresReview)
}

func TestOrchestrator_SemanticOnlyWithoutFieldType(t *testing.T) {
	sem := &stubSemantic{result: func(in validator.SemanticInput) domain.Outcome[domain.ValidationResult] {
		return domain.Succeeded(domain.ValidationResult{IsValid: false, Confidence: 0.4, Flags: []string{"critical_error"}})
	}}
	o := validator.NewOrchestrator(validator.DefaultRegistry(), sem, validator.Options{})

	got := o.ValidateField(context.Background(), validator.FieldRequest{Value: "zzz", FieldName: "occupation"})

	assert.False(t, got.IsValid)
	assert.Equal(t, 0.4, got.Confidence)
	assert.Equal(t, []string{"critical_error"}, got.Flags)
}

func TestOrchestrator_SemanticFailureFailsClosed(t *testing.T) {
	sem := &stubSemantic{result: func(in validator.SemanticInput) domain.Outcome[domain.ValidationResult] {
		return domain.Failed(domain.ValidationResult{
			IsValid: false, Flags: []string{domain.FlagValidationError},
			Suggestions: []string{"Could not validate field"}, RequiresReview: true,
		}, assert.AnError)
	}}
	o := validator.NewOrchestrator(validator.DefaultRegistry(), sem, validator.Options{})

	got := o.ValidateField(context.Background(), validator.FieldRequest{
		Value: "2800", FieldName: "grossMonthlyIncomeSGD", FieldType: validator.TypeIncome,
	})

	assert.False(t, got.IsValid)
	assert.Equal(t, 0.0, got.Confidence)
	assert.Contains(t, got.Flags, domain.FlagValidationError)
}

func TestOrchestrator_RulesOnly(t *testing.T) {
	sem := semanticPass(0.9)
	o := validator.NewOrchestrator(validator.DefaultRegistry(), sem, validator.Options{})

	got := o.ValidateField(context.Background(), validator.FieldRequest{
		Value: "91234567", FieldName: "phoneNumber", FieldType: validator.TypePhone, RulesOnly: true,
	})

	assert.True(t, got.IsValid)
	assert.Equal(t, int32(0), sem.calls.Load())
}

func TestOrchestrator_ValidateAll(t *testing.T) {
	sem := semanticPass(0.9)
	o := validator.NewOrchestrator(validator.DefaultRegistry(), sem, validator.Options{Concurrency: 2})

	report := o.ValidateAll(context.Background(), []validator.FieldRequest{
		{Path: "a", Value: "2800", FieldName: "grossMonthlyIncomeSGD", FieldType: validator.TypeIncome},
		{Path: "b", Value: "", FieldName: "nric", FieldType: validator.TypeNRIC},
		{Path: "c", Value: "taxi driver", FieldName: "occupation"},
		{Path: "d", Value: "x@y", FieldName: "email", FieldType: validator.TypeEmail},
	})

	assert.False(t, report.AllValid)
	assert.Equal(t, []string{"b", "d"}, report.Invalid)
	assert.Len(t, report.Results, 4)
	assert.True(t, report.Results["c"].IsValid)
}

func TestOrchestrator_ValidateAllEmptyIsVacuousPass(t *testing.T) {
	o := validator.NewOrchestrator(validator.DefaultRegistry(), nil, validator.Options{})

	report := o.ValidateAll(context.Background(), nil)

	assert.True(t, report.AllValid)
	assert.Empty(t, report.Invalid)
}

func TestOrchestrator_ValidateRecord(t *testing.T) {
	rec := domain.NewFinancialRecord()
	amt := 2800.0
	rec.ApplicantIncome = []domain.ApplicantIncome{{Occupation: "Cleaner", GrossMonthlyIncomeSGD: &amt}}
	rec.HouseholdIncome = []domain.HouseholdIncome{{Name: "Ah Mei", RelationshipToApplicant: "neighbour"}}

	o := validator.NewOrchestrator(validator.DefaultRegistry(), nil, validator.Options{})
	report := o.ValidateRecord(context.Background(), rec)

	require.Len(t, report.Results, 4)
	assert.Equal(t, []string{"householdIncome.0.relationshipToApplicant"}, report.Invalid)
}

func TestComputeFieldStatuses(t *testing.T) {
	rec := domain.NewFinancialRecord()
	rec.Confidence = 0.9
	rec.ApplicantIncome = []domain.ApplicantIncome{{Occupation: "Cleaner", PeriodOfEmployment: "2020"}}
	rec.FinancialSituationNote = "note"
	occ := domain.EntryPath(domain.SectionApplicantIncome, 0, domain.FieldOccupation)
	period := domain.EntryPath(domain.SectionApplicantIncome, 0, domain.FieldPeriodOfEmployment)
	note := domain.SingularPath(domain.SectionFinancial, domain.FieldFinancialNote)

	rec.SetValidation(occ, domain.ValidationResult{IsValid: false, Flags: []string{"critical_error"}, Suggestions: []string{"fix"}})
	rec.SetConfidence(period, domain.NewFieldConfidence("2020", 0.4, domain.SourceOCR))
	rec.SetValidation(note, domain.ValidationResult{IsValid: true, Confidence: 0.95})

	statuses := validator.ComputeFieldStatuses(rec, 0.7, map[string]string{occ.String(): "Cleaner"})

	assert.Equal(t, validator.FieldStatusInvalid, statuses[occ.String()].Status)
	assert.True(t, statuses[occ.String()].Overridden)
	assert.Equal(t, []string{"fix"}, statuses[occ.String()].Messages)
	assert.Equal(t, validator.FieldStatusUnsure, statuses[period.String()].Status)
	assert.Equal(t, validator.FieldStatusValid, statuses[note.String()].Status)
	assert.Equal(t, "Financial Situation Note", statuses[note.String()].Label)
}
