package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LLMRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finreview_llm_requests_total",
			Help: "Total number of language model calls by purpose and result",
		},
		[]string{"purpose", "result"},
	)

	LLMDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "finreview_llm_request_duration_seconds",
			Help:    "Duration of language model calls in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"purpose"},
	)

	LLMTokens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finreview_llm_tokens_total",
			Help: "Tokens consumed by language model calls",
		},
		[]string{"purpose", "direction"},
	)

	Extractions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finreview_extractions_total",
			Help: "Form extractions by outcome status",
		},
		[]string{"status"},
	)

	FieldValidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finreview_field_validations_total",
			Help: "Field validation verdicts by method and validity",
		},
		[]string{"method", "valid"},
	)

	EnforcementResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finreview_enforcement_results_total",
			Help: "Mandatory field checks by status",
		},
		[]string{"status"},
	)

	Standardizations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finreview_standardizations_total",
			Help: "Text standardizations by method and whether the text changed",
		},
		[]string{"method", "applied"},
	)

	StageTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finreview_stage_transitions_total",
			Help: "Review workflow stage transitions",
		},
		[]string{"from", "to"},
	)

	Interrupts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finreview_interrupts_total",
			Help: "Review interrupts raised by kind",
		},
		[]string{"kind"},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "finreview_active_sessions",
			Help: "Review sessions held in memory",
		},
	)
)
