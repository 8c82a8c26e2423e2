package extraction

const systemPrompt = `You extract data from scanned or photographed financial declaration forms. Respond with one JSON object that matches the requested structure exactly. Do not rename or add fields. Always return a complete object even when data is missing.`

// buildPrompt returns the extraction instructions sent with the form image.
func buildPrompt() string {
	return `Analyze this handwritten or scanned financial declaration form and extract its data.

Respond with a JSON object in exactly this structure:
{
  "applicantIncome": [
    {"occupation": "string or null", "grossMonthlyIncomeSGD": number or null, "periodOfEmployment": "string or null"}
  ],
  "householdIncome": [
    {"name": "string or null", "relationshipToApplicant": "string or null", "occupation": "string or null", "grossMonthlyIncomeSGD": number or null}
  ],
  "otherIncomeSources": [
    {"description": "string or null", "amountSGD": number or null}
  ],
  "personal": {"applicantName": "string or null", "nric": "string or null", "address": "string or null", "phoneNumber": "string or null", "email": "string or null"},
  "financialSituationNote": "string",
  "flags": ["issue", "strings"],
  "confidence": 0.85,
  "confidence_per_field": {"applicantIncome.0.occupation": 0.9},
  "source_per_field": {"applicantIncome.0.occupation": "ocr"}
}

SECTIONS
1. applicantIncome: the applicant's own income, one object per row. occupation is the job title, grossMonthlyIncomeSGD the monthly income, periodOfEmployment the period as written (e.g. "Jan 2022 - Present").
2. householdIncome: one object per family or household member with their name, relationship to the applicant (e.g. "Father", "Spouse"), occupation and monthly income.
3. otherIncomeSources: rental, CPF payouts, allowances, investments and similar, with a short description and the amount.
4. personal: the applicant's identity details if the form has them. Omit the object when it does not.
5. financialSituationNote: any free text about hardship or circumstances. Use an empty string when there is none.

FLAGS
List extraction issues such as "unclear handwriting", "missing data", "inconsistent information", "illegible text", "incomplete form". Include at least one flag when overall confidence is below 0.9.

CONFIDENCE
1.0 means perfectly clear and complete. 0.8-0.9 mostly clear with minor issues. 0.5-0.7 significant handwriting issues but mostly recoverable. 0.0-0.4 very unclear with major data loss.
confidence_per_field is optional and keyed by paths such as "householdIncome.1.name". source_per_field is optional; use "ocr" for text read from the page and "inferred" for values you deduced.

RULES
- Monetary amounts are numbers: "$2,500" becomes 2500, "SGD 1,200" becomes 1200.
- Keep names, occupations and descriptions as written.
- Each table row is one array object.
- Use null for blank or unreadable values. Never omit a field from an object.`
}
