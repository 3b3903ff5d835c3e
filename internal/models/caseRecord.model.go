package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"reasondesk/internal/errs"

	"gorm.io/datatypes"
)

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

const maxCaseTextLength = 5000

func (s ApprovalStatus) IsValid() bool {
	switch s {
	case ApprovalPending, ApprovalApproved, ApprovalRejected:
		return true
	}
	return false
}

// CanTransitionTo reports whether a record in status s may move to next.
// Approved is terminal; a rejected record can be reopened as pending.
func (s ApprovalStatus) CanTransitionTo(next ApprovalStatus) bool {
	if s == next {
		return true
	}
	switch s {
	case ApprovalPending:
		return next == ApprovalApproved || next == ApprovalRejected
	case ApprovalRejected:
		return next == ApprovalPending
	}
	return false
}

type CaseRecord struct {
	BaseRecordModel
	PatientID      string                       `gorm:"type:varchar(64);not null;index"              json:"patientId"`
	PatientAge     int                          `gorm:"type:int"                                     json:"patientAge"`
	PatientGender  string                       `gorm:"type:varchar(8)"                              json:"patientGender"`
	BodyPart       string                       `gorm:"type:varchar(100);index"                      json:"bodyPart"`
	Symptoms       string                       `gorm:"type:text;not null"                           json:"symptoms"`
	Treatment      string                       `gorm:"type:text;not null"                           json:"treatment"`
	Diagnosis      string                       `gorm:"type:text;not null"                           json:"diagnosis"`
	Embedding      datatypes.JSONSlice[float64] `                                                    json:"-"`
	ApprovalStatus ApprovalStatus               `gorm:"type:varchar(20);not null;default:'pending';index" json:"approvalStatus"`
	SubmittedBy    string                       `gorm:"type:varchar(64);index"                       json:"submittedBy"`
	Tags           []Tag                        `gorm:"many2many:case_record_tags"                   json:"tags"`
	Similarity     float64                      `gorm:"-"                                            json:"similarity,omitempty"`
}

// EmbeddingText is the text the embedding is derived from: symptoms,
// treatment and diagnosis, space joined in that order.
func (c *CaseRecord) EmbeddingText() string {
	return strings.Join([]string{c.Symptoms, c.Treatment, c.Diagnosis}, " ")
}

func (c *CaseRecord) TagNames() []string {
	names := make([]string, 0, len(c.Tags))
	for _, tag := range c.Tags {
		names = append(names, tag.Name)
	}
	return names
}

// FlexInt accepts either a JSON number or a numeric string.
type FlexInt int

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "" || raw == "null" {
		*f = 0
		return nil
	}

	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw = strings.TrimSpace(s)
		if raw == "" {
			*f = 0
			return nil
		}
	}

	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("invalid number %q", raw)
	}
	*f = FlexInt(int(n))
	return nil
}

type CreateCaseRecordRequest struct {
	PatientID     string  `json:"patientId"`
	PatientAge    FlexInt `json:"patientAge"`
	PatientGender string  `json:"patientGender"`
	BodyPart      string  `json:"bodyPart"`
	Symptoms      string  `json:"symptoms"`
	Treatment     string  `json:"treatment"`
	Diagnosis     string  `json:"diagnosis"`
}

func (r CreateCaseRecordRequest) Validate() error {
	var v errs.ValidationErrors
	if strings.TrimSpace(r.PatientID) == "" {
		v.Add("patientId", "is required")
	}
	if r.PatientAge < 0 || r.PatientAge > 150 {
		v.Add("patientAge", "must be between 0 and 150")
	}
	validateCaseText(&v, "symptoms", r.Symptoms)
	validateCaseText(&v, "treatment", r.Treatment)
	validateCaseText(&v, "diagnosis", r.Diagnosis)
	if utf8.RuneCountInString(r.BodyPart) > 100 {
		v.Add("bodyPart", "must be at most 100 characters")
	}
	return v.OrNil()
}

// UpdateCaseRecordRequest is a partial update; nil fields keep their value.
type UpdateCaseRecordRequest struct {
	PatientID     *string  `json:"patientId"`
	PatientAge    *FlexInt `json:"patientAge"`
	PatientGender *string  `json:"patientGender"`
	BodyPart      *string  `json:"bodyPart"`
	Symptoms      *string  `json:"symptoms"`
	Treatment     *string  `json:"treatment"`
	Diagnosis     *string  `json:"diagnosis"`
}

func (r UpdateCaseRecordRequest) Validate() error {
	var v errs.ValidationErrors
	if r.PatientID != nil && strings.TrimSpace(*r.PatientID) == "" {
		v.Add("patientId", "must not be empty")
	}
	if r.PatientAge != nil && (*r.PatientAge < 0 || *r.PatientAge > 150) {
		v.Add("patientAge", "must be between 0 and 150")
	}
	if r.Symptoms != nil {
		validateCaseText(&v, "symptoms", *r.Symptoms)
	}
	if r.Treatment != nil {
		validateCaseText(&v, "treatment", *r.Treatment)
	}
	if r.Diagnosis != nil {
		validateCaseText(&v, "diagnosis", *r.Diagnosis)
	}
	if r.BodyPart != nil && utf8.RuneCountInString(*r.BodyPart) > 100 {
		v.Add("bodyPart", "must be at most 100 characters")
	}
	return v.OrNil()
}

// ApplyTo merges the set fields onto record.
func (r UpdateCaseRecordRequest) ApplyTo(record *CaseRecord) {
	if r.PatientID != nil {
		record.PatientID = *r.PatientID
	}
	if r.PatientAge != nil {
		record.PatientAge = int(*r.PatientAge)
	}
	if r.PatientGender != nil {
		record.PatientGender = *r.PatientGender
	}
	if r.BodyPart != nil {
		record.BodyPart = *r.BodyPart
	}
	if r.Symptoms != nil {
		record.Symptoms = *r.Symptoms
	}
	if r.Treatment != nil {
		record.Treatment = *r.Treatment
	}
	if r.Diagnosis != nil {
		record.Diagnosis = *r.Diagnosis
	}
}

type UpdateApprovalStatusRequest struct {
	Status ApprovalStatus `json:"status"`
}

func (r UpdateApprovalStatusRequest) Validate() error {
	var v errs.ValidationErrors
	if !r.Status.IsValid() {
		v.Add("status", "must be pending, approved or rejected")
	}
	return v.OrNil()
}

type CaseRecordSearchQuery struct {
	Query     string   `json:"query"     query:"query"`
	Keyword   string   `json:"keyword"   query:"keyword"`
	Tags      []string `json:"tags"      query:"tags"`
	Threshold *float64 `json:"threshold" query:"threshold"`
	Page      int      `json:"page"      query:"page"`
	Limit     int      `json:"limit"     query:"limit"`
}

func (q CaseRecordSearchQuery) Validate() error {
	var v errs.ValidationErrors
	if q.Threshold != nil && (*q.Threshold < 0 || *q.Threshold > 1) {
		v.Add("threshold", "must be between 0 and 1")
	}
	if utf8.RuneCountInString(q.Query) > 500 {
		v.Add("query", "must be at most 500 characters")
	}
	if utf8.RuneCountInString(q.Keyword) > 200 {
		v.Add("keyword", "must be at most 200 characters")
	}
	return v.OrNil()
}

type ReasonLetter struct {
	CaseRecordID string `json:"caseRecordId"`
	Content      string `json:"content"`
}

func validateCaseText(v *errs.ValidationErrors, field, value string) {
	if strings.TrimSpace(value) == "" {
		v.Add(field, "is required")
		return
	}
	if utf8.RuneCountInString(value) > maxCaseTextLength {
		v.Add(field, fmt.Sprintf("must be at most %d characters", maxCaseTextLength))
	}
}
