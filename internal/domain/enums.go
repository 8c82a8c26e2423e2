package domain

// Section identifies a group of fields on a financial-aid form.
type Section string

const (
	SectionApplicantIncome Section = "applicantIncome"
	SectionHouseholdIncome Section = "householdIncome"
	SectionOtherIncome     Section = "otherIncomeSources"
	SectionPersonal        Section = "personal"
	SectionFinancial       Section = "financial"
)

// Sections lists every section in document order.
var Sections = []Section{
	SectionApplicantIncome,
	SectionHouseholdIncome,
	SectionOtherIncome,
	SectionPersonal,
	SectionFinancial,
}

// Repeating reports whether the section holds an ordered list of entries.
func (s Section) Repeating() bool {
	switch s {
	case SectionApplicantIncome, SectionHouseholdIncome, SectionOtherIncome:
		return true
	}
	return false
}

// Valid reports whether s is a known section.
func (s Section) Valid() bool {
	_, ok := SectionFields[s]
	return ok
}

// Field names used across sections.
const (
	FieldOccupation           = "occupation"
	FieldGrossMonthlyIncome   = "grossMonthlyIncomeSGD"
	FieldPeriodOfEmployment   = "periodOfEmployment"
	FieldName                 = "name"
	FieldRelationship         = "relationshipToApplicant"
	FieldDescription          = "description"
	FieldAmount               = "amountSGD"
	FieldApplicantName        = "applicantName"
	FieldNRIC                 = "nric"
	FieldAddress              = "address"
	FieldPhoneNumber          = "phoneNumber"
	FieldEmail                = "email"
	FieldFinancialNote        = "financialSituationNote"
	FieldTotalHouseholdIncome = "totalHouseholdIncome"
	FieldMonthlyExpenses      = "monthlyExpenses"
)

// SectionFields is the field taxonomy, in document order per section.
var SectionFields = map[Section][]string{
	SectionApplicantIncome: {FieldOccupation, FieldGrossMonthlyIncome, FieldPeriodOfEmployment},
	SectionHouseholdIncome: {FieldName, FieldRelationship, FieldOccupation, FieldGrossMonthlyIncome},
	SectionOtherIncome:     {FieldDescription, FieldAmount},
	SectionPersonal:        {FieldApplicantName, FieldNRIC, FieldAddress, FieldPhoneNumber, FieldEmail},
	SectionFinancial:       {FieldFinancialNote, FieldTotalHouseholdIncome, FieldMonthlyExpenses},
}

// AmountFields are fields whose values are monetary amounts in SGD.
var AmountFields = map[string]bool{
	FieldGrossMonthlyIncome:   true,
	FieldAmount:               true,
	FieldTotalHouseholdIncome: true,
	FieldMonthlyExpenses:      true,
}

// FieldSource records where a field value came from.
type FieldSource string

const (
	SourceOCR          FieldSource = "ocr"
	SourceInferred     FieldSource = "inferred"
	SourceUserProvided FieldSource = "user-provided"
	SourceStandardized FieldSource = "standardized"
)

// ValidFieldSources contains all valid field sources.
var ValidFieldSources = map[FieldSource]bool{
	SourceOCR:          true,
	SourceInferred:     true,
	SourceUserProvided: true,
	SourceStandardized: true,
}

// RecordStatus represents the reviewer's decision on a record.
type RecordStatus string

const (
	RecordPendingReview RecordStatus = "pending_review"
	RecordReviewed      RecordStatus = "reviewed"
	RecordApproved      RecordStatus = "approved"
	RecordRejected      RecordStatus = "rejected"
)

// ValidRecordStatuses contains the statuses a reviewer may set.
var ValidRecordStatuses = map[RecordStatus]bool{
	RecordReviewed: true,
	RecordApproved: true,
	RecordRejected: true,
}

// Stage is a step of the review workflow.
type Stage string

const (
	StageUpload     Stage = "upload"
	StageProcessing Stage = "processing"
	StageReview     Stage = "review"
	StageExport     Stage = "export"
)

// InterruptKind classifies a pause in the review workflow.
type InterruptKind string

const (
	InterruptConfirmation InterruptKind = "confirmation"
	InterruptValidation   InterruptKind = "validation"
	InterruptMandatory    InterruptKind = "mandatory"
)

// Resolution records how an interrupt was closed.
type Resolution string

const (
	ResolutionPending        Resolution = "pending"
	ResolutionConfirmed      Resolution = "confirmed"
	ResolutionEdited         Resolution = "edited"
	ResolutionOverride       Resolution = "accepted_override"
	ResolutionContinueAnyway Resolution = "continue_anyway"
)

// EnforcementStatus summarizes a mandatory field check.
type EnforcementStatus string

const (
	EnforcementComplete            EnforcementStatus = "complete"
	EnforcementBlocked             EnforcementStatus = "blocked"
	EnforcementConditionalApproval EnforcementStatus = "conditional_approval"
	EnforcementRequiresCompletion  EnforcementStatus = "requires_completion"
)

// ValidationMethod records which validators produced a verdict.
type ValidationMethod string

const (
	MethodRules    ValidationMethod = "rules"
	MethodSemantic ValidationMethod = "semantic"
	MethodCombined ValidationMethod = "combined"
)

// AuditEventType classifies entries in a session's audit trail.
type AuditEventType string

const (
	AuditStageChanged         AuditEventType = "stage_changed"
	AuditFieldEdited          AuditEventType = "field_edited"
	AuditFieldConfirmed       AuditEventType = "field_confirmed"
	AuditValidationOverride   AuditEventType = "validation_override"
	AuditContinueAnyway       AuditEventType = "continue_anyway"
	AuditStatusChanged        AuditEventType = "status_changed"
	AuditExtractionFailed     AuditEventType = "extraction_failed"
	AuditRecordSaved          AuditEventType = "record_saved"
	AuditSessionReset         AuditEventType = "session_reset"
	AuditFieldStandardized    AuditEventType = "field_standardized"
	AuditInferredValueApplied AuditEventType = "inferred_value_applied"
)

// Validation flags produced by the validators.
const (
	FlagEmptyField      = "empty_field"
	FlagFormatError     = "format_error"
	FlagInvalidValue    = "invalid_value"
	FlagValidationError = "validation_error"
	FlagCriticalError   = "critical_error"
	FlagLowConfidence   = "low confidence"
)

// AllowedContentTypes lists the form image types accepted for extraction,
// as reported by content sniffing.
var AllowedContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}
