package models

import (
	"strings"
	"unicode/utf8"

	"reasondesk/internal/errs"
)

const TagCategoryAutoGenerated = "auto-generated"

type Tag struct {
	BaseRecordModel
	Name        string `gorm:"type:varchar(100);not null;uniqueIndex" json:"name"`
	Category    string `gorm:"type:varchar(50);index"                 json:"category"`
	Description string `gorm:"type:text"                              json:"description"`
}

// CaseRecordTag is the association row between a case record and a tag.
type CaseRecordTag struct {
	CaseRecordID string `gorm:"type:varchar(64);primaryKey" json:"caseRecordId"`
	TagID        string `gorm:"type:varchar(64);primaryKey;index" json:"tagId"`
}

func (CaseRecordTag) TableName() string {
	return "case_record_tags"
}

// TagCount is a tag with the number of records (or co-occurrences) counted
// against it.
type TagCount struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Count    int64  `json:"count"`
}

type CreateTagRequest struct {
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

func (r CreateTagRequest) Validate() error {
	var v errs.ValidationErrors
	validateTagName(&v, r.Name)
	if utf8.RuneCountInString(r.Category) > 50 {
		v.Add("category", "must be at most 50 characters")
	}
	return v.OrNil()
}

type UpdateTagRequest struct {
	Name        *string `json:"name"`
	Category    *string `json:"category"`
	Description *string `json:"description"`
}

func (r UpdateTagRequest) Validate() error {
	var v errs.ValidationErrors
	if r.Name != nil {
		validateTagName(&v, *r.Name)
	}
	if r.Category != nil && utf8.RuneCountInString(*r.Category) > 50 {
		v.Add("category", "must be at most 50 characters")
	}
	return v.OrNil()
}

func (r UpdateTagRequest) ApplyTo(tag *Tag) {
	if r.Name != nil {
		tag.Name = strings.TrimSpace(*r.Name)
	}
	if r.Category != nil {
		tag.Category = *r.Category
	}
	if r.Description != nil {
		tag.Description = *r.Description
	}
}

type MergeTagsRequest struct {
	SourceID string `json:"sourceId"`
	TargetID string `json:"targetId"`
}

func (r MergeTagsRequest) Validate() error {
	var v errs.ValidationErrors
	if r.SourceID == "" {
		v.Add("sourceId", "is required")
	}
	if r.TargetID == "" {
		v.Add("targetId", "is required")
	}
	if r.SourceID != "" && r.SourceID == r.TargetID {
		v.Add("targetId", "must differ from sourceId")
	}
	return v.OrNil()
}

type AssignTagsRequest struct {
	Text string `json:"text"`
}

func (r AssignTagsRequest) Validate() error {
	var v errs.ValidationErrors
	if strings.TrimSpace(r.Text) == "" {
		v.Add("text", "is required")
	}
	return v.OrNil()
}

type TagIDsRequest struct {
	TagIDs []string `json:"tagIds"`
}

func (r TagIDsRequest) Validate() error {
	var v errs.ValidationErrors
	if len(r.TagIDs) == 0 {
		v.Add("tagIds", "must not be empty")
	}
	return v.OrNil()
}

func validateTagName(v *errs.ValidationErrors, name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		v.Add("name", "is required")
		return
	}
	if utf8.RuneCountInString(name) > 100 {
		v.Add("name", "must be at most 100 characters")
	}
}
