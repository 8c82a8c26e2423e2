package validator_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"finreview/internal/domain"
	"finreview/internal/port"
	"finreview/internal/validator"
	"finreview/mocks"
)

func TestSemanticValidator_Valid(t *testing.T) {
	c := new(mocks.MockCompleter)
	c.On("Complete", mock.Anything, mock.Anything).Return(mocks.TextResponse(
		`{"isValid": true, "confidence": 0.92, "flags": [], "suggestions": [], "standardizedValue": "Taxi Driver", "requiresReview": false}`,
	), nil)

	out := validator.NewSemanticValidator(c).Validate(context.Background(), validator.SemanticInput{
		Value: "taxi driver", FieldName: "occupation",
	})

	assert.Equal(t, domain.OutcomeOK, out.Status)
	assert.True(t, out.Value.IsValid)
	assert.Equal(t, 0.92, out.Value.Confidence)
	assert.Equal(t, "Taxi Driver", out.Value.StandardizedValue)
}

func TestSemanticValidator_FailsClosedOnError(t *testing.T) {
	c := new(mocks.MockCompleter)
	c.On("Complete", mock.Anything, mock.Anything).Return(nil, errors.New("timeout"))

	out := validator.NewSemanticValidator(c).Validate(context.Background(), validator.SemanticInput{
		Value: "2800", FieldName: "grossMonthlyIncomeSGD",
	})

	assert.Equal(t, domain.OutcomeFailed, out.Status)
	assert.False(t, out.Value.IsValid)
	assert.Equal(t, 0.0, out.Value.Confidence)
	assert.Equal(t, []string{domain.FlagValidationError}, out.Value.Flags)
	assert.Equal(t, []string{"Could not validate field"}, out.Value.Suggestions)
	assert.True(t, out.Value.RequiresReview)
}

func TestSemanticValidator_FailsClosedOnGarbage(t *testing.T) {
	for _, text := range []string{"", "sure thing!", `{"confidence": 0.9}`, `{"isValid": tru`} {
		c := new(mocks.MockCompleter)
		c.On("Complete", mock.Anything, mock.Anything).Return(mocks.TextResponse(text), nil)

		out := validator.NewSemanticValidator(c).Validate(context.Background(), validator.SemanticInput{Value: "x", FieldName: "name"})

		assert.Equal(t, domain.OutcomeFailed, out.Status, text)
		assert.False(t, out.Value.IsValid, text)
	}
}

func TestSemanticValidator_FailsClosedOnRefusal(t *testing.T) {
	c := new(mocks.MockCompleter)
	c.On("Complete", mock.Anything, mock.Anything).Return(&port.CompletionResponse{Refused: true}, nil)

	out := validator.NewSemanticValidator(c).Validate(context.Background(), validator.SemanticInput{Value: "x", FieldName: "name"})

	assert.Equal(t, domain.OutcomeFailed, out.Status)
	assert.False(t, out.Value.IsValid)
}

func TestSemanticValidator_FiltersFlagsAndClamps(t *testing.T) {
	c := new(mocks.MockCompleter)
	c.On("Complete", mock.Anything, mock.Anything).Return(mocks.TextResponse(
		"```json\n{\"isValid\": false, \"confidence\": 1.7, \"flags\": [\"informal_language\", \"impossible_value\"], \"suggestions\": [\"Check amount\"]}\n```",
	), nil)

	out := validator.NewSemanticValidator(c).Validate(context.Background(), validator.SemanticInput{Value: "-300", FieldName: "amountSGD"})

	assert.False(t, out.Value.IsValid)
	assert.Equal(t, 1.0, out.Value.Confidence)
	assert.Equal(t, []string{"impossible_value"}, out.Value.Flags)
	assert.True(t, out.Value.RequiresReview)
	assert.Equal(t, "-300", out.Value.StandardizedValue)
}

func TestSemanticValidator_InvalidWithoutVocabularyFlags(t *testing.T) {
	c := new(mocks.MockCompleter)
	c.On("Complete", mock.Anything, mock.Anything).Return(mocks.TextResponse(
		`{"isValid": false, "confidence": 0.6, "flags": ["unclear"]}`,
	), nil)

	out := validator.NewSemanticValidator(c).Validate(context.Background(), validator.SemanticInput{Value: "??", FieldName: "name"})

	assert.Equal(t, []string{domain.FlagCriticalError}, out.Value.Flags)
}

func TestSemanticValidator_EmploymentPeriodIncludesDate(t *testing.T) {
	c := new(mocks.MockCompleter)
	c.On("Complete", mock.Anything, mock.MatchedBy(func(req port.CompletionRequest) bool {
		return assert.Contains(t, req.Prompt, "2026-03-15")
	})).Return(mocks.TextResponse(`{"isValid": true, "confidence": 0.9}`), nil)

	clock := func() time.Time { return time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC) }
	out := validator.NewSemanticValidator(c).WithClock(clock).Validate(context.Background(), validator.SemanticInput{
		Value: "2019 - present", FieldName: "periodOfEmployment",
	})

	assert.True(t, out.Value.IsValid)
	c.AssertExpectations(t)
}
