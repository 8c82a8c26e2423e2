package enforcer

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"finreview/internal/domain"
	"finreview/internal/llm"
	"finreview/internal/port"
)

const judgeSystemPrompt = `You review financial-aid forms for missing mandatory fields. For the listed gaps:

1. Decide whether the form can proceed to approval despite them.
2. Name the gaps that are hard blockers.
3. Infer values only where the rest of the form makes them safe, for example a monthly income of 0 for an applicant described as unemployed.
4. Suggest concrete actions for the reviewer.

Names and income amounts are critical and normally block. Relationships and occupations can sometimes be inferred from other entries. Ask for human input whenever a value cannot be supported by the form itself.

Respond with a single JSON object and nothing else:
{
  "canProceed": false,
  "blockerFields": ["householdIncome[0].name"],
  "suggestions": ["..."],
  "inferredValues": {"applicantIncome[0].grossMonthlyIncomeSGD": "0"}
}
Use the field keys exactly as listed.`

// LLMJudge asks a language model whether a record may proceed with gaps.
type LLMJudge struct {
	completer port.Completer
}

// NewLLMJudge creates an LLMJudge backed by completer.
func NewLLMJudge(completer port.Completer) *LLMJudge {
	return &LLMJudge{completer: completer}
}

type judgeReply struct {
	CanProceed     *bool          `json:"canProceed"`
	BlockerFields  []string       `json:"blockerFields"`
	Suggestions    []string       `json:"suggestions"`
	InferredValues map[string]any `json:"inferredValues"`
}

// Judge implements Judge.
func (j *LLMJudge) Judge(ctx context.Context, rec *domain.FinancialRecord, missing []MissingField) (*Decision, error) {
	formJSON, err := json.MarshalIndent(recordView(rec), "", "  ")
	if err != nil {
		return nil, eris.Wrap(err, "enforcement judge: encode record")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "FORM DATA:\n%s\n\nMISSING FIELDS:\n", formJSON)
	for _, m := range missing {
		fmt.Fprintf(&b, "- %s: %s\n", m.FieldName, m.Reason)
	}

	resp, err := j.completer.Complete(ctx, port.CompletionRequest{
		Purpose:     "enforcement",
		System:      judgeSystemPrompt,
		Prompt:      b.String(),
		MaxTokens:   1000,
		Temperature: 0.1,
		JSON:        true,
	})
	if err != nil {
		return nil, eris.Wrap(err, "enforcement judge: complete")
	}
	if resp.Refused {
		return nil, eris.New("enforcement judge: model refused")
	}

	raw, ok := llm.ExtractJSON(resp.Text)
	if !ok {
		return nil, eris.New("enforcement judge: no JSON in response")
	}
	var reply judgeReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		return nil, eris.Wrap(err, "enforcement judge: decode response")
	}
	if reply.CanProceed == nil {
		return nil, eris.New("enforcement judge: response has no decision")
	}

	d := &Decision{
		CanProceed:     *reply.CanProceed,
		BlockerFields:  reply.BlockerFields,
		Suggestions:    reply.Suggestions,
		InferredValues: make(map[string]string, len(reply.InferredValues)),
	}
	for k, v := range reply.InferredValues {
		if s, ok := scalarText(v); ok {
			d.InferredValues[k] = s
		}
	}
	return d, nil
}

// recordView strips bookkeeping maps so the prompt only carries form content.
func recordView(rec *domain.FinancialRecord) map[string]any {
	return map[string]any{
		"applicantIncome":        rec.ApplicantIncome,
		"householdIncome":        rec.HouseholdIncome,
		"otherIncomeSources":     rec.OtherIncomeSources,
		"personal":               rec.Personal,
		"financialSituationNote": rec.FinancialSituationNote,
	}
}

func scalarText(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case float64:
		return domain.FormatAmount(x), true
	case bool:
		return strconv.FormatBool(x), true
	}
	return "", false
}
