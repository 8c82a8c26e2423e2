package service

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"finreview/internal/domain"
	"finreview/internal/enforcer"
	"finreview/internal/mapper"
	"finreview/internal/port"
	"finreview/internal/standardize"
	"finreview/internal/validator"
)

// FieldValidation is a verdict on one field plus the mandatory fields still
// missing from the section it belongs to.
type FieldValidation struct {
	domain.ValidationResult
	MissingMandatoryFields []string `json:"missingMandatoryFields"`
}

// ValidationRulesInfo describes the format rules and mandatory fields.
type ValidationRulesInfo struct {
	ValidationRules []validator.RuleInfo `json:"validationRules"`
	MandatoryFields domain.SectionRules  `json:"mandatoryFields"`
}

// SmartMappingResult is the mapper output with the enhanced record.
// EnhancedData is nil when the input was not shaped like a record.
type SmartMappingResult struct {
	mapper.MappingResult
	Status          domain.OutcomeStatus        `json:"status"`
	Notes           []string                    `json:"notes,omitempty"`
	Error           string                      `json:"error,omitempty"`
	EnhancedData    *domain.FinancialRecord     `json:"enhancedData,omitempty"`
	FieldCategories map[domain.Section][]string `json:"fieldCategories"`
}

// CapabilityService exposes the pipeline capabilities without a session.
type CapabilityService interface {
	Extract(ctx context.Context, filename string, data []byte) (domain.Outcome[*domain.FinancialRecord], error)
	ValidateField(ctx context.Context, req validator.FieldRequest, rec *domain.FinancialRecord, section domain.Section) FieldValidation
	ValidationRules() ValidationRulesInfo
	EnforceFields(ctx context.Context, rec *domain.FinancialRecord, strict bool) domain.Outcome[enforcer.Result]
	EnforcementRules() enforcer.RulesInfo
	SmartMap(ctx context.Context, extracted json.RawMessage) (*SmartMappingResult, error)
	Standardize(ctx context.Context, text, fieldType string, rulesOnly bool) domain.Outcome[standardize.Result]
	StandardizationRules() []standardize.Rule
}

type capabilityService struct {
	pipeline *Pipeline
	rules    domain.SectionRules
}

// NewCapabilityService creates a new CapabilityService.
func NewCapabilityService(pipeline *Pipeline) CapabilityService {
	rules := pipeline.Options().Rules
	if rules == nil {
		rules = domain.DefaultSectionRules()
	}
	return &capabilityService{pipeline: pipeline, rules: rules}
}

func (s *capabilityService) Extract(ctx context.Context, filename string, data []byte) (domain.Outcome[*domain.FinancialRecord], error) {
	if len(data) == 0 {
		return domain.Outcome[*domain.FinancialRecord]{}, domain.ErrEmptyFile
	}
	contentType := http.DetectContentType(data)
	if !domain.AllowedContentTypes[contentType] {
		return domain.Outcome[*domain.FinancialRecord]{}, domain.ErrUnsupportedFileType
	}
	out := s.pipeline.Extractor.Extract(ctx, port.ExtractInput{Data: data, ContentType: contentType, Filename: filename})
	if out.Value == nil {
		out.Value = domain.NewFinancialRecord()
	}
	return out, nil
}

func (s *capabilityService) ValidateField(ctx context.Context, req validator.FieldRequest, rec *domain.FinancialRecord, section domain.Section) FieldValidation {
	out := FieldValidation{
		ValidationResult:       s.pipeline.Validator.ValidateField(ctx, req),
		MissingMandatoryFields: []string{},
	}
	if rec == nil || section == "" {
		return out
	}
	for _, mf := range enforcer.DetectMissing(rec, s.rules) {
		if mf.Section == section {
			out.MissingMandatoryFields = append(out.MissingMandatoryFields, mf.Path.String())
		}
	}
	return out
}

func (s *capabilityService) ValidationRules() ValidationRulesInfo {
	return ValidationRulesInfo{
		ValidationRules: s.pipeline.Validator.Rules().Describe(),
		MandatoryFields: s.rules,
	}
}

func (s *capabilityService) EnforceFields(ctx context.Context, rec *domain.FinancialRecord, strict bool) domain.Outcome[enforcer.Result] {
	return s.pipeline.Enforcer.Enforce(ctx, rec, s.rules, strict)
}

func (s *capabilityService) EnforcementRules() enforcer.RulesInfo {
	return enforcer.Rules()
}

// SmartMap classifies every text leaf of extracted. When extracted decodes as
// a record, fields it leaves empty are filled from the mappings.
func (s *capabilityService) SmartMap(ctx context.Context, extracted json.RawMessage) (*SmartMappingResult, error) {
	fragments, err := mapper.FlattenJSON(extracted)
	if err != nil {
		return nil, domain.ErrInvalidFieldValue
	}

	out := s.pipeline.Mapper.Map(ctx, fragments)
	res := &SmartMappingResult{
		MappingResult:   out.Value,
		Status:          out.Status,
		Notes:           out.Notes,
		Error:           out.ErrorText(),
		FieldCategories: domain.SectionFields,
	}

	rec := domain.NewFinancialRecord()
	if err := json.Unmarshal(extracted, rec); err != nil {
		zap.L().Debug("smart mapping input is not a record, skipping enhancement", zap.Error(err))
		return res, nil
	}
	var fill []mapper.Mapping
	for _, m := range out.Value.Mappings {
		p, ok := mapper.TargetPath(m)
		if !ok {
			continue
		}
		if _, populated := rec.Get(p); !populated {
			fill = append(fill, m)
		}
	}
	res.EnhancedData = mapper.Enhance(rec, fill)
	return res, nil
}

func (s *capabilityService) Standardize(ctx context.Context, text, fieldType string, rulesOnly bool) domain.Outcome[standardize.Result] {
	return s.pipeline.Standardizer.Standardize(ctx, text, fieldType, rulesOnly)
}

func (s *capabilityService) StandardizationRules() []standardize.Rule {
	return s.pipeline.Standardizer.Rules()
}
