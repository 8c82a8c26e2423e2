package mapper

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/xeipuuv/gojsonschema"

	"finreview/internal/llm"
	"finreview/internal/port"
)

// Classifier assigns text fragments to form fields.
type Classifier interface {
	Name() string
	Classify(ctx context.Context, fragments []string) (*MappingResult, error)
}

const mappingSchemaJSON = `{
  "type": "object",
  "properties": {
    "mappings": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "fieldName": {"type": "string", "minLength": 1},
          "section": {"type": "string"},
          "extractedText": {"type": "string"},
          "confidence": {"type": "number", "minimum": 0, "maximum": 1}
        },
        "required": ["fieldName", "extractedText", "confidence"],
        "additionalProperties": false
      }
    },
    "unmappedText": {"type": "array", "items": {"type": "string"}},
    "confidence": {"type": "number", "minimum": 0, "maximum": 1}
  },
  "required": ["mappings", "unmappedText", "confidence"],
  "additionalProperties": false
}`

var mappingSchema = func() *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(mappingSchemaJSON))
	if err != nil {
		panic(err)
	}
	return s
}()

// LLMClassifier maps fragments with a language model and rejects replies
// that do not match the mapping schema.
type LLMClassifier struct {
	completer port.Completer
}

// NewLLMClassifier creates an LLMClassifier backed by completer.
func NewLLMClassifier(completer port.Completer) *LLMClassifier {
	return &LLMClassifier{completer: completer}
}

func (c *LLMClassifier) Name() string { return "llm" }

func (c *LLMClassifier) Classify(ctx context.Context, fragments []string) (*MappingResult, error) {
	var b strings.Builder
	b.WriteString("Map these extracted text fragments to form fields:\n")
	for i, f := range fragments {
		fmt.Fprintf(&b, "%d. %q\n", i+1, f)
	}
	b.WriteString("\nInformation may be scattered across fragments or written in unexpected places.")

	resp, err := c.completer.Complete(ctx, port.CompletionRequest{
		Purpose:     "smart_mapping",
		System:      systemPrompt(),
		Prompt:      b.String(),
		MaxTokens:   2000,
		Temperature: 0.1,
		JSON:        true,
	})
	if err != nil {
		return nil, eris.Wrap(err, "mapping classifier: complete")
	}
	if resp.Refused {
		return nil, eris.New("mapping classifier: model refused")
	}

	raw, ok := llm.ExtractJSON(resp.Text)
	if !ok {
		return nil, eris.New("mapping classifier: no JSON in response")
	}
	result, err := mappingSchema.Validate(gojsonschema.NewStringLoader(raw))
	if err != nil {
		return nil, eris.Wrap(err, "mapping classifier: schema check")
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return nil, eris.Errorf("mapping classifier: reply violates schema: %v", errs)
	}

	var out MappingResult
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, eris.Wrap(err, "mapping classifier: decode response")
	}
	return &out, nil
}

func systemPrompt() string {
	return `You assign text fragments read from a financial-aid form to the form's fields. Fragments may cross section boundaries or sit in the wrong place on the page.

FIELDS:
` + describeTaxonomy() + `
For each fragment, decide what information it holds and map it to the best field, with a confidence between 0 and 1. Narrative text belongs in financialSituationNote. List fragments that fit no field in unmappedText rather than forcing a mapping.

Respond with a single JSON object and nothing else:
{
  "mappings": [{"fieldName": "occupation", "section": "applicantIncome", "extractedText": "part-time cashier at NTUC", "confidence": 0.9}],
  "unmappedText": ["text that fits no field"],
  "confidence": 0.85
}`
}
