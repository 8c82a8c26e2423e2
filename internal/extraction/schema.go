package extraction

import (
	"github.com/rotisserie/eris"
	"github.com/xeipuuv/gojsonschema"
)

const payloadSchemaJSON = `{
  "type": "object",
  "properties": {
    "applicantIncome": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "occupation": {"type": ["string", "null"]},
          "grossMonthlyIncomeSGD": {"type": ["number", "null"]},
          "periodOfEmployment": {"type": ["string", "null"]}
        },
        "additionalProperties": false
      }
    },
    "householdIncome": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "name": {"type": ["string", "null"]},
          "relationshipToApplicant": {"type": ["string", "null"]},
          "occupation": {"type": ["string", "null"]},
          "grossMonthlyIncomeSGD": {"type": ["number", "null"]}
        },
        "additionalProperties": false
      }
    },
    "otherIncomeSources": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "description": {"type": ["string", "null"]},
          "amountSGD": {"type": ["number", "null"]}
        },
        "additionalProperties": false
      }
    },
    "personal": {
      "type": ["object", "null"],
      "properties": {
        "applicantName": {"type": ["string", "null"]},
        "nric": {"type": ["string", "null"]},
        "address": {"type": ["string", "null"]},
        "phoneNumber": {"type": ["string", "null"]},
        "email": {"type": ["string", "null"]}
      },
      "additionalProperties": false
    },
    "financialSituationNote": {"type": ["string", "null"]},
    "flags": {"type": "array", "items": {"type": "string"}},
    "confidence": {"type": "number", "minimum": 0, "maximum": 1},
    "confidence_per_field": {"type": "object", "additionalProperties": {"type": "number"}},
    "source_per_field": {"type": "object", "additionalProperties": {"type": "string"}}
  },
  "required": ["flags", "confidence"],
  "additionalProperties": false
}`

var payloadSchema = mustSchema(payloadSchemaJSON)

func mustSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(err)
	}
	return s
}

// checkSchema returns the schema violations of a raw payload.
func checkSchema(raw string) ([]string, error) {
	result, err := payloadSchema.Validate(gojsonschema.NewStringLoader(raw))
	if err != nil {
		return nil, eris.Wrap(err, "extraction: schema check")
	}
	if result.Valid() {
		return nil, nil
	}
	errs := make([]string, len(result.Errors()))
	for i, desc := range result.Errors() {
		errs[i] = desc.String()
	}
	return errs, nil
}
