package service

import (
	"context"

	"go.uber.org/zap"

	"finreview/internal/config"
	"finreview/internal/domain"
	"finreview/internal/enforcer"
	"finreview/internal/extraction"
	"finreview/internal/mapper"
	"finreview/internal/port"
	"finreview/internal/standardize"
	"finreview/internal/validator"
	"finreview/internal/workflow"
)

// Pipeline bundles the capabilities shared by review sessions and the
// stateless endpoints.
type Pipeline struct {
	Extractor    port.Extractor
	Mapper       *mapper.SmartMapper
	Validator    *validator.Orchestrator
	Enforcer     *enforcer.Enforcer
	Standardizer *standardize.Standardizer

	smartMapping bool
	options      workflow.Options
}

// NewPipeline wires the capabilities from configuration. completer may be
// nil, in which case extraction is unavailable and every other capability
// runs on rules alone. providers are the individual governed providers, used
// by dual extraction.
func NewPipeline(cfg *config.Config, completer port.Completer, providers []port.Completer) (*Pipeline, error) {
	std, err := standardize.NewFromConfig(cfg.Standardize, completer)
	if err != nil {
		return nil, err
	}

	var (
		extractor   port.Extractor = unavailableExtractor{}
		semantic    validator.SemanticChecker
		judge       enforcer.Judge
		classifiers []mapper.Classifier
	)
	if completer != nil {
		extractor = extraction.NewLLMExtractor(completer)
		if cfg.Extraction.DualMode && len(providers) >= 2 {
			extractor = extraction.NewMergeExtractor(
				extraction.NewLLMExtractor(providers[0]),
				extraction.NewLLMExtractor(providers[1]),
			)
			zap.L().Info("dual extraction enabled")
		}
		if cfg.Validation.SemanticEnabled {
			semantic = validator.NewSemanticValidator(completer)
		}
		judge = enforcer.NewLLMJudge(completer)
		classifiers = append(classifiers, mapper.NewLLMClassifier(completer))
	} else {
		zap.L().Warn("no language model configured, extraction is unavailable")
	}
	classifiers = append(classifiers, mapper.NewKeywordClassifier())

	return &Pipeline{
		Extractor: extractor,
		Mapper:    mapper.New(classifiers...),
		Validator: validator.NewOrchestrator(validator.DefaultRegistry(), semantic, validator.Options{
			ShortCircuitConfidence: cfg.Validation.ShortCircuitConfidence,
			Concurrency:            cfg.Validation.Concurrency,
		}),
		Enforcer:     enforcer.New(judge),
		Standardizer: std,
		smartMapping: cfg.Extraction.SmartMapping,
		options: workflow.Options{
			ConfirmationThreshold: cfg.Validation.ConfirmationThreshold,
			Strict:                cfg.Enforcement.Strict,
			Rules:                 domain.DefaultSectionRules(),
		},
	}, nil
}

// Deps returns the collaborators of a review session that persists to repo.
func (p *Pipeline) Deps(repo port.RecordRepository) workflow.Deps {
	deps := workflow.Deps{Extractor: p.Extractor, Repository: repo}
	if p.Validator != nil {
		deps.Validator = p.Validator
	}
	if p.Enforcer != nil {
		deps.Enforcer = p.Enforcer
	}
	if p.Standardizer != nil {
		deps.Standardizer = p.Standardizer
	}
	if p.smartMapping && p.Mapper != nil {
		deps.Mapper = p.Mapper
	}
	return deps
}

// Options returns the review session options.
func (p *Pipeline) Options() workflow.Options {
	return p.options
}

type unavailableExtractor struct{}

func (unavailableExtractor) Extract(_ context.Context, _ port.ExtractInput) domain.Outcome[*domain.FinancialRecord] {
	return domain.Failed(extraction.FailedRecord(false), domain.ErrCapabilityUnavailable)
}
