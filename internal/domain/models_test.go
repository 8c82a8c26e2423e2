package domain_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finreview/internal/domain"
)

func ptr(f float64) *float64 { return &f }

func sampleRecord() *domain.FinancialRecord {
	r := domain.NewFinancialRecord()
	r.ApplicantIncome = []domain.ApplicantIncome{
		{Occupation: "Taxi driver", GrossMonthlyIncomeSGD: ptr(2800)},
	}
	r.HouseholdIncome = []domain.HouseholdIncome{
		{Name: "Mary", RelationshipToApplicant: "mother"},
	}
	r.FinancialSituationNote = "Struggling with rent"
	return r
}

func TestFinancialRecord_GetSet(t *testing.T) {
	r := sampleRecord()
	p := domain.EntryPath(domain.SectionApplicantIncome, 0, domain.FieldGrossMonthlyIncome)

	v, ok := r.Get(p)
	require.True(t, ok)
	assert.Equal(t, "2800", v)

	require.NoError(t, r.Set(p, "$3,100.50"))
	v, _ = r.Get(p)
	assert.Equal(t, "3100.5", v)

	err := r.Set(p, "a lot")
	assert.True(t, errors.Is(err, domain.ErrInvalidFieldValue))
}

func TestFinancialRecord_ZeroIncomeIsPopulated(t *testing.T) {
	r := sampleRecord()
	p := domain.EntryPath(domain.SectionHouseholdIncome, 0, domain.FieldGrossMonthlyIncome)

	_, ok := r.Get(p)
	assert.False(t, ok)

	require.NoError(t, r.Set(p, "0"))
	v, ok := r.Get(p)
	assert.True(t, ok)
	assert.Equal(t, "0", v)
}

func TestFinancialRecord_SetAppendsAtEnd(t *testing.T) {
	r := sampleRecord()
	require.NoError(t, r.Set(domain.EntryPath(domain.SectionOtherIncome, 0, domain.FieldDescription), "Rental"))
	assert.Len(t, r.OtherIncomeSources, 1)

	err := r.Set(domain.EntryPath(domain.SectionOtherIncome, 5, domain.FieldDescription), "Gift")
	assert.True(t, errors.Is(err, domain.ErrInvalidFieldPath))
}

func TestFinancialRecord_PopulatedPathsInDocumentOrder(t *testing.T) {
	r := sampleRecord()
	var got []string
	for _, p := range r.PopulatedPaths() {
		got = append(got, p.String())
	}
	assert.Equal(t, []string{
		"applicantIncome.0.occupation",
		"applicantIncome.0.grossMonthlyIncomeSGD",
		"householdIncome.0.name",
		"householdIncome.0.relationshipToApplicant",
		"financialSituationNote",
	}, got)
}

func TestFinancialRecord_MissingMandatoryFields(t *testing.T) {
	r := sampleRecord()
	missing := r.MissingMandatoryFields(domain.DefaultSectionRules())

	require.Len(t, missing, 1)
	assert.Equal(t, "householdIncome[0].grossMonthlyIncomeSGD", missing[0].BlockerKey())
}

func TestFinancialRecord_PersonalRequiredOnlyWhenPresent(t *testing.T) {
	r := sampleRecord()
	for _, p := range r.RequiredFields(domain.DefaultSectionRules()) {
		assert.NotEqual(t, domain.SectionPersonal, p.Section)
	}

	r.Personal.Email = "a@b.co"
	missing := r.MissingMandatoryFields(domain.DefaultSectionRules())
	var keys []string
	for _, p := range missing {
		keys = append(keys, p.String())
	}
	assert.Contains(t, keys, "personal.applicantName")
	assert.Contains(t, keys, "personal.nric")
}

func TestFinancialRecord_CloneIsDeep(t *testing.T) {
	r := sampleRecord()
	p := domain.EntryPath(domain.SectionApplicantIncome, 0, domain.FieldOccupation)
	r.SetConfidence(p, domain.NewFieldConfidence("Taxi driver", 0.9, domain.SourceOCR))

	c := r.Clone()
	*c.ApplicantIncome[0].GrossMonthlyIncomeSGD = 1
	c.ApplicantIncome[0].Occupation = "Chef"
	fc := c.FieldConfidence[p.String()]
	fc.Flags = append(fc.Flags, "changed")
	c.FieldConfidence[p.String()] = fc

	assert.Equal(t, 2800.0, *r.ApplicantIncome[0].GrossMonthlyIncomeSGD)
	assert.Equal(t, "Taxi driver", r.ApplicantIncome[0].Occupation)
	assert.Empty(t, r.FieldConfidence[p.String()].Flags)
}

func TestParseAmount(t *testing.T) {
	got, err := domain.ParseAmount("SGD 1,200")
	require.NoError(t, err)
	assert.Equal(t, 1200.0, *got)

	got, err = domain.ParseAmount("  ")
	require.NoError(t, err)
	assert.Nil(t, got)

	for _, bad := range []string{"NaN", "nan", "Inf", "+Infinity", "-5", "1e400", "abc"} {
		_, err := domain.ParseAmount(bad)
		assert.ErrorIs(t, err, domain.ErrInvalidFieldValue, bad)
	}
}

func TestValidationResult_NormalizeAddsFlag(t *testing.T) {
	v := domain.ValidationResult{IsValid: false, Confidence: 1.4}.Normalize()
	assert.Equal(t, []string{domain.FlagValidationError}, v.Flags)
	assert.Equal(t, 1.0, v.Confidence)
	assert.NotNil(t, v.Suggestions)
}

func TestNewFieldConfidence_Clamps(t *testing.T) {
	fc := domain.NewFieldConfidence("x", -0.3, domain.SourceOCR)
	assert.Equal(t, 0.0, fc.Confidence)
	assert.NotNil(t, fc.Flags)
}

func TestBlockedError_Is(t *testing.T) {
	err := &domain.BlockedError{
		Kind:   domain.ErrMandatoryFieldsMissing,
		Fields: []domain.FieldReason{{Path: "applicantIncome.0.occupation"}},
	}
	assert.True(t, errors.Is(err, domain.ErrMandatoryFieldsMissing))
	assert.False(t, errors.Is(err, domain.ErrValidationBlocked))
	assert.Contains(t, err.Error(), "applicantIncome.0.occupation")
}

func TestOutcome_Usable(t *testing.T) {
	assert.True(t, domain.Succeeded(1).Usable())
	assert.True(t, domain.Degraded(1, nil).Usable())
	failed := domain.Failed(0, errors.New("boom"), "note")
	assert.False(t, failed.Usable())
	assert.Equal(t, "boom", failed.ErrorText())
	assert.Equal(t, []string{"note"}, failed.Notes)
}
