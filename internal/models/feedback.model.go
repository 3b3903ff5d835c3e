package models

import (
	"strings"
	"unicode/utf8"

	"reasondesk/internal/errs"
)

type FeedbackType string

const (
	FeedbackApproval   FeedbackType = "approval"
	FeedbackRejection  FeedbackType = "rejection"
	FeedbackSuggestion FeedbackType = "suggestion"
	FeedbackOther      FeedbackType = "other"
)

const (
	FeedbackContentMin = 10
	FeedbackContentMax = 1000
)

func (t FeedbackType) IsValid() bool {
	switch t {
	case FeedbackApproval, FeedbackRejection, FeedbackSuggestion, FeedbackOther:
		return true
	}
	return false
}

type Feedback struct {
	BaseRecordModel
	CaseRecordID string       `gorm:"type:varchar(64);not null;index" json:"caseRecordId"`
	Type         FeedbackType `gorm:"type:varchar(20);not null;index" json:"type"`
	Content      string       `gorm:"type:text;not null"              json:"content"`
	Notes        *string      `gorm:"type:text"                       json:"notes,omitempty"`
	ReviewerID   string       `gorm:"type:varchar(64);index"          json:"reviewerId"`
}

type CreateFeedbackRequest struct {
	CaseRecordID string       `json:"caseRecordId"`
	Type         FeedbackType `json:"type"`
	Content      string       `json:"content"`
	Notes        *string      `json:"notes"`
}

func (r CreateFeedbackRequest) Validate() error {
	var v errs.ValidationErrors
	if strings.TrimSpace(r.CaseRecordID) == "" {
		v.Add("caseRecordId", "is required")
	}
	validateFeedbackType(&v, r.Type)
	validateFeedbackContent(&v, r.Content)
	return v.OrNil()
}

type UpdateFeedbackRequest struct {
	Type    *FeedbackType `json:"type"`
	Content *string       `json:"content"`
	Notes   *string       `json:"notes"`
}

func (r UpdateFeedbackRequest) Validate() error {
	var v errs.ValidationErrors
	if r.Type != nil {
		validateFeedbackType(&v, *r.Type)
	}
	if r.Content != nil {
		validateFeedbackContent(&v, *r.Content)
	}
	return v.OrNil()
}

func (r UpdateFeedbackRequest) ApplyTo(feedback *Feedback) {
	if r.Type != nil {
		feedback.Type = *r.Type
	}
	if r.Content != nil {
		feedback.Content = *r.Content
	}
	if r.Notes != nil {
		feedback.Notes = r.Notes
	}
}

func validateFeedbackType(v *errs.ValidationErrors, t FeedbackType) {
	if !t.IsValid() {
		v.Add("type", "must be approval, rejection, suggestion or other")
	}
}

func validateFeedbackContent(v *errs.ValidationErrors, content string) {
	n := utf8.RuneCountInString(content)
	if n < FeedbackContentMin {
		v.Add("content", "must be at least 10 characters")
	}
	if n > FeedbackContentMax {
		v.Add("content", "must be at most 1000 characters")
	}
}
