package domain

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FieldConfidence describes how much a field value can be trusted.
type FieldConfidence struct {
	Value        string      `json:"value"`
	Confidence   float64     `json:"confidence"`
	Source       FieldSource `json:"source"`
	Flags        []string    `json:"flags"`
	Alternatives []string    `json:"alternatives,omitempty"`
	OriginalText string      `json:"originalText,omitempty"`
}

// NewFieldConfidence returns a FieldConfidence with a clamped score and a
// non-nil flag list.
func NewFieldConfidence(value string, confidence float64, source FieldSource) FieldConfidence {
	return FieldConfidence{
		Value:      value,
		Confidence: Clamp01(confidence),
		Source:     source,
		Flags:      []string{},
	}
}

// ValidationResult is the verdict of the validators on a single field.
type ValidationResult struct {
	IsValid           bool             `json:"isValid"`
	StandardizedValue string           `json:"standardizedValue,omitempty"`
	Confidence        float64          `json:"confidence"`
	Flags             []string         `json:"flags"`
	Suggestions       []string         `json:"suggestions"`
	RequiresReview    bool             `json:"requiresReview"`
	Method            ValidationMethod `json:"method,omitempty"`
}

// Normalize clamps the confidence and guarantees that an invalid result
// carries at least one flag.
func (v ValidationResult) Normalize() ValidationResult {
	v.Confidence = Clamp01(v.Confidence)
	if v.Flags == nil {
		v.Flags = []string{}
	}
	if v.Suggestions == nil {
		v.Suggestions = []string{}
	}
	if !v.IsValid && len(v.Flags) == 0 {
		v.Flags = []string{FlagValidationError}
	}
	return v
}

// ApplicantIncome is one income line of the applicant.
type ApplicantIncome struct {
	Occupation            string   `json:"occupation"`
	GrossMonthlyIncomeSGD *float64 `json:"grossMonthlyIncomeSGD"`
	PeriodOfEmployment    string   `json:"periodOfEmployment"`
}

// HouseholdIncome is the income of one household member.
type HouseholdIncome struct {
	Name                    string   `json:"name"`
	RelationshipToApplicant string   `json:"relationshipToApplicant"`
	Occupation              string   `json:"occupation"`
	GrossMonthlyIncomeSGD   *float64 `json:"grossMonthlyIncomeSGD"`
}

// OtherIncomeSource is income that does not come from employment.
type OtherIncomeSource struct {
	Description string   `json:"description"`
	AmountSGD   *float64 `json:"amountSGD"`
}

// PersonalInfo identifies the applicant.
type PersonalInfo struct {
	ApplicantName string `json:"applicantName"`
	NRIC          string `json:"nric"`
	Address       string `json:"address"`
	PhoneNumber   string `json:"phoneNumber"`
	Email         string `json:"email"`
}

// FinancialRecord is the structured content of one financial-aid form.
// FieldConfidence and Validation are keyed by FieldPath.String().
type FinancialRecord struct {
	ID                     uuid.UUID                   `json:"id"`
	ApplicantIncome        []ApplicantIncome           `json:"applicantIncome"`
	HouseholdIncome        []HouseholdIncome           `json:"householdIncome"`
	OtherIncomeSources     []OtherIncomeSource         `json:"otherIncomeSources"`
	Personal               PersonalInfo                `json:"personal"`
	FinancialSituationNote string                      `json:"financialSituationNote"`
	TotalHouseholdIncome   *float64                    `json:"totalHouseholdIncome,omitempty"`
	MonthlyExpenses        *float64                    `json:"monthlyExpenses,omitempty"`
	FieldConfidence        map[string]FieldConfidence  `json:"fieldConfidence"`
	Validation             map[string]ValidationResult `json:"validation"`
	Flags                  []string                    `json:"flags"`
	Confidence             float64                     `json:"confidence"`
	Status                 RecordStatus                `json:"status"`
	ReviewerID             string                      `json:"reviewerId,omitempty"`
	ReviewNotes            string                      `json:"reviewNotes,omitempty"`
	SourceFileKey          string                      `json:"sourceFileKey,omitempty"`
	CreatedAt              time.Time                   `json:"createdAt"`
	UpdatedAt              time.Time                   `json:"updatedAt"`
}

// NewFinancialRecord returns an empty record pending review.
func NewFinancialRecord() *FinancialRecord {
	return &FinancialRecord{
		ApplicantIncome:    []ApplicantIncome{},
		HouseholdIncome:    []HouseholdIncome{},
		OtherIncomeSources: []OtherIncomeSource{},
		FieldConfidence:    map[string]FieldConfidence{},
		Validation:         map[string]ValidationResult{},
		Flags:              []string{},
		Status:             RecordPendingReview,
	}
}

// EntryCount returns the number of entries in a repeating section. Singular
// sections count as one entry when any of their fields is set.
func (r *FinancialRecord) EntryCount(s Section) int {
	switch s {
	case SectionApplicantIncome:
		return len(r.ApplicantIncome)
	case SectionHouseholdIncome:
		return len(r.HouseholdIncome)
	case SectionOtherIncome:
		return len(r.OtherIncomeSources)
	}
	for _, f := range SectionFields[s] {
		if _, ok := r.Get(SingularPath(s, f)); ok {
			return 1
		}
	}
	return 0
}

// Get returns the text of a field and whether it is populated. Amounts are
// rendered without trailing zeros; a zero amount is populated.
func (r *FinancialRecord) Get(p FieldPath) (string, bool) {
	switch p.Section {
	case SectionApplicantIncome:
		if p.Index < 0 || p.Index >= len(r.ApplicantIncome) {
			return "", false
		}
		e := r.ApplicantIncome[p.Index]
		switch p.Field {
		case FieldOccupation:
			return text(e.Occupation)
		case FieldGrossMonthlyIncome:
			return amount(e.GrossMonthlyIncomeSGD)
		case FieldPeriodOfEmployment:
			return text(e.PeriodOfEmployment)
		}
	case SectionHouseholdIncome:
		if p.Index < 0 || p.Index >= len(r.HouseholdIncome) {
			return "", false
		}
		e := r.HouseholdIncome[p.Index]
		switch p.Field {
		case FieldName:
			return text(e.Name)
		case FieldRelationship:
			return text(e.RelationshipToApplicant)
		case FieldOccupation:
			return text(e.Occupation)
		case FieldGrossMonthlyIncome:
			return amount(e.GrossMonthlyIncomeSGD)
		}
	case SectionOtherIncome:
		if p.Index < 0 || p.Index >= len(r.OtherIncomeSources) {
			return "", false
		}
		e := r.OtherIncomeSources[p.Index]
		switch p.Field {
		case FieldDescription:
			return text(e.Description)
		case FieldAmount:
			return amount(e.AmountSGD)
		}
	case SectionPersonal:
		switch p.Field {
		case FieldApplicantName:
			return text(r.Personal.ApplicantName)
		case FieldNRIC:
			return text(r.Personal.NRIC)
		case FieldAddress:
			return text(r.Personal.Address)
		case FieldPhoneNumber:
			return text(r.Personal.PhoneNumber)
		case FieldEmail:
			return text(r.Personal.Email)
		}
	case SectionFinancial:
		switch p.Field {
		case FieldFinancialNote:
			return text(r.FinancialSituationNote)
		case FieldTotalHouseholdIncome:
			return amount(r.TotalHouseholdIncome)
		case FieldMonthlyExpenses:
			return amount(r.MonthlyExpenses)
		}
	}
	return "", false
}

// Set writes a field. For repeating sections an index equal to the current
// length appends a new entry. Amount fields must parse as numbers; an empty
// value clears the field.
func (r *FinancialRecord) Set(p FieldPath, value string) error {
	if _, err := validatePath(p, p.String()); err != nil {
		return err
	}
	var amt *float64
	if p.IsAmount() {
		parsed, err := ParseAmount(value)
		if err != nil {
			return err
		}
		amt = parsed
	}
	if p.Section.Repeating() && p.Index > r.EntryCountRaw(p.Section) {
		return fmt.Errorf("%w: %s is beyond the last entry", ErrInvalidFieldPath, p)
	}

	switch p.Section {
	case SectionApplicantIncome:
		if p.Index == len(r.ApplicantIncome) {
			r.ApplicantIncome = append(r.ApplicantIncome, ApplicantIncome{})
		}
		e := &r.ApplicantIncome[p.Index]
		switch p.Field {
		case FieldOccupation:
			e.Occupation = value
		case FieldGrossMonthlyIncome:
			e.GrossMonthlyIncomeSGD = amt
		case FieldPeriodOfEmployment:
			e.PeriodOfEmployment = value
		}
	case SectionHouseholdIncome:
		if p.Index == len(r.HouseholdIncome) {
			r.HouseholdIncome = append(r.HouseholdIncome, HouseholdIncome{})
		}
		e := &r.HouseholdIncome[p.Index]
		switch p.Field {
		case FieldName:
			e.Name = value
		case FieldRelationship:
			e.RelationshipToApplicant = value
		case FieldOccupation:
			e.Occupation = value
		case FieldGrossMonthlyIncome:
			e.GrossMonthlyIncomeSGD = amt
		}
	case SectionOtherIncome:
		if p.Index == len(r.OtherIncomeSources) {
			r.OtherIncomeSources = append(r.OtherIncomeSources, OtherIncomeSource{})
		}
		e := &r.OtherIncomeSources[p.Index]
		switch p.Field {
		case FieldDescription:
			e.Description = value
		case FieldAmount:
			e.AmountSGD = amt
		}
	case SectionPersonal:
		switch p.Field {
		case FieldApplicantName:
			r.Personal.ApplicantName = value
		case FieldNRIC:
			r.Personal.NRIC = value
		case FieldAddress:
			r.Personal.Address = value
		case FieldPhoneNumber:
			r.Personal.PhoneNumber = value
		case FieldEmail:
			r.Personal.Email = value
		}
	case SectionFinancial:
		switch p.Field {
		case FieldFinancialNote:
			r.FinancialSituationNote = value
		case FieldTotalHouseholdIncome:
			r.TotalHouseholdIncome = amt
		case FieldMonthlyExpenses:
			r.MonthlyExpenses = amt
		}
	}
	return nil
}

// EntryCountRaw returns the slice length of a repeating section and zero for
// singular sections.
func (r *FinancialRecord) EntryCountRaw(s Section) int {
	if !s.Repeating() {
		return 0
	}
	return r.EntryCount(s)
}

// Paths returns every addressable path of the record in document order,
// populated or not. Singular sections are always included.
func (r *FinancialRecord) Paths() []FieldPath {
	var out []FieldPath
	for _, s := range Sections {
		fields := SectionFields[s]
		if !s.Repeating() {
			for _, f := range fields {
				out = append(out, SingularPath(s, f))
			}
			continue
		}
		for i := 0; i < r.EntryCountRaw(s); i++ {
			for _, f := range fields {
				out = append(out, EntryPath(s, i, f))
			}
		}
	}
	return out
}

// PopulatedPaths returns the paths that hold a value, in document order.
func (r *FinancialRecord) PopulatedPaths() []FieldPath {
	var out []FieldPath
	for _, p := range r.Paths() {
		if _, ok := r.Get(p); ok {
			out = append(out, p)
		}
	}
	return out
}

// SetConfidence stores the confidence of a path.
func (r *FinancialRecord) SetConfidence(p FieldPath, fc FieldConfidence) {
	if r.FieldConfidence == nil {
		r.FieldConfidence = map[string]FieldConfidence{}
	}
	if fc.Flags == nil {
		fc.Flags = []string{}
	}
	fc.Confidence = Clamp01(fc.Confidence)
	r.FieldConfidence[p.String()] = fc
}

// ConfidenceAt returns the stored confidence of a path.
func (r *FinancialRecord) ConfidenceAt(p FieldPath) (FieldConfidence, bool) {
	fc, ok := r.FieldConfidence[p.String()]
	return fc, ok
}

// SetValidation stores the validation verdict of a path.
func (r *FinancialRecord) SetValidation(p FieldPath, v ValidationResult) {
	if r.Validation == nil {
		r.Validation = map[string]ValidationResult{}
	}
	r.Validation[p.String()] = v.Normalize()
}

// ValidationAt returns the stored verdict of a path.
func (r *FinancialRecord) ValidationAt(p FieldPath) (ValidationResult, bool) {
	v, ok := r.Validation[p.String()]
	return v, ok
}

// ClearValidation drops the verdict of exactly one path.
func (r *FinancialRecord) ClearValidation(p FieldPath) {
	delete(r.Validation, p.String())
}

// SectionRules maps a section to the fields each of its entries must carry.
type SectionRules map[Section][]string

// DefaultSectionRules returns the mandatory fields of a standard form.
func DefaultSectionRules() SectionRules {
	return SectionRules{
		SectionApplicantIncome: {FieldOccupation, FieldGrossMonthlyIncome},
		SectionHouseholdIncome: {FieldName, FieldRelationship, FieldGrossMonthlyIncome},
		SectionOtherIncome:     {FieldDescription, FieldAmount},
		SectionPersonal:        {FieldApplicantName, FieldNRIC},
	}
}

// RequiredFields expands rules into concrete paths for the entries present
// on the record. Singular sections are required only once one of their
// fields is filled in.
func (r *FinancialRecord) RequiredFields(rules SectionRules) []FieldPath {
	var out []FieldPath
	for _, s := range Sections {
		fields, ok := rules[s]
		if !ok {
			continue
		}
		if !s.Repeating() {
			if r.EntryCount(s) == 0 {
				continue
			}
			for _, f := range fields {
				out = append(out, SingularPath(s, f))
			}
			continue
		}
		for i := 0; i < r.EntryCountRaw(s); i++ {
			for _, f := range fields {
				out = append(out, EntryPath(s, i, f))
			}
		}
	}
	return out
}

// MissingMandatoryFields lists required paths that hold no value.
func (r *FinancialRecord) MissingMandatoryFields(rules SectionRules) []FieldPath {
	var out []FieldPath
	for _, p := range r.RequiredFields(rules) {
		if _, ok := r.Get(p); !ok {
			out = append(out, p)
		}
	}
	return out
}

// Clone returns a deep copy.
func (r *FinancialRecord) Clone() *FinancialRecord {
	c := *r
	c.ApplicantIncome = make([]ApplicantIncome, len(r.ApplicantIncome))
	for i, e := range r.ApplicantIncome {
		e.GrossMonthlyIncomeSGD = copyFloat(e.GrossMonthlyIncomeSGD)
		c.ApplicantIncome[i] = e
	}
	c.HouseholdIncome = make([]HouseholdIncome, len(r.HouseholdIncome))
	for i, e := range r.HouseholdIncome {
		e.GrossMonthlyIncomeSGD = copyFloat(e.GrossMonthlyIncomeSGD)
		c.HouseholdIncome[i] = e
	}
	c.OtherIncomeSources = make([]OtherIncomeSource, len(r.OtherIncomeSources))
	for i, e := range r.OtherIncomeSources {
		e.AmountSGD = copyFloat(e.AmountSGD)
		c.OtherIncomeSources[i] = e
	}
	c.TotalHouseholdIncome = copyFloat(r.TotalHouseholdIncome)
	c.MonthlyExpenses = copyFloat(r.MonthlyExpenses)
	c.FieldConfidence = make(map[string]FieldConfidence, len(r.FieldConfidence))
	for k, v := range r.FieldConfidence {
		v.Flags = append([]string{}, v.Flags...)
		v.Alternatives = append([]string(nil), v.Alternatives...)
		c.FieldConfidence[k] = v
	}
	c.Validation = make(map[string]ValidationResult, len(r.Validation))
	for k, v := range r.Validation {
		v.Flags = append([]string{}, v.Flags...)
		v.Suggestions = append([]string{}, v.Suggestions...)
		c.Validation[k] = v
	}
	c.Flags = append([]string{}, r.Flags...)
	return &c
}

// SortedConfidenceKeys returns the FieldConfidence keys in lexical order.
func (r *FinancialRecord) SortedConfidenceKeys() []string {
	keys := make([]string, 0, len(r.FieldConfidence))
	for k := range r.FieldConfidence {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Interrupt is a pause in the review workflow awaiting a reviewer decision.
type Interrupt struct {
	ID         string        `json:"id"`
	Kind       InterruptKind `json:"kind"`
	Path       string        `json:"path"`
	Label      string        `json:"label"`
	Value      string        `json:"value"`
	Confidence float64       `json:"confidence"`
	Reasons    []string      `json:"reasons"`
	Blocking   bool          `json:"blocking"`
	Resolution Resolution    `json:"resolution"`
	CreatedAt  time.Time     `json:"created_at"`
	ResolvedAt *time.Time    `json:"resolved_at,omitempty"`
	ResolvedBy string        `json:"resolved_by,omitempty"`
}

// Open reports whether the interrupt still awaits a decision.
func (i *Interrupt) Open() bool {
	return i.Resolution == ResolutionPending
}

// AuditEvent is one entry of a session's audit trail.
type AuditEvent struct {
	At       time.Time      `json:"at"`
	Actor    string         `json:"actor"`
	Type     AuditEventType `json:"type"`
	Path     string         `json:"path,omitempty"`
	OldValue string         `json:"old_value,omitempty"`
	NewValue string         `json:"new_value,omitempty"`
	Detail   string         `json:"detail,omitempty"`
}

// ParseAmount reads a monetary amount, tolerating currency markers and
// thousands separators. An empty string yields nil.
func ParseAmount(s string) (*float64, error) {
	cleaned := strings.TrimSpace(s)
	if cleaned == "" {
		return nil, nil
	}
	upper := strings.ToUpper(cleaned)
	for _, prefix := range []string{"SGD", "S$", "$"} {
		upper = strings.TrimPrefix(strings.TrimSpace(upper), prefix)
	}
	upper = strings.ReplaceAll(upper, ",", "")
	upper = strings.TrimSpace(upper)
	f, err := strconv.ParseFloat(upper, 64)
	if err != nil || !ValidAmount(f) {
		return nil, fmt.Errorf("%w: %q is not an amount", ErrInvalidFieldValue, s)
	}
	return &f, nil
}

// ValidAmount reports whether f is a finite, non-negative amount.
func ValidAmount(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0) && f >= 0
}

// FormatAmount renders an amount without trailing zeros.
func FormatAmount(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Clamp01 limits x to [0, 1].
func Clamp01(x float64) float64 {
	switch {
	case x < 0:
		return 0
	case x > 1:
		return 1
	}
	return x
}

func text(s string) (string, bool) {
	return s, strings.TrimSpace(s) != ""
}

func amount(f *float64) (string, bool) {
	if f == nil {
		return "", false
	}
	return FormatAmount(*f), true
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
