package models

import (
	"strings"
	"time"

	"reasondesk/internal/errs"
)

type Exhibition struct {
	BaseUUIDModel
	Name        string    `gorm:"type:varchar(255);not null;index" json:"name"`
	Venue       string    `gorm:"type:varchar(255)"                json:"venue"`
	Description string    `gorm:"type:text"                        json:"description"`
	StartDate   time.Time `gorm:"not null;index"                   json:"startDate"`
	EndDate     time.Time `gorm:"not null"                         json:"endDate"`
	IsActive    bool      `gorm:"not null"                         json:"isActive"`
}

type ExhibitionRequest struct {
	Name        string    `json:"name"`
	Venue       string    `json:"venue"`
	Description string    `json:"description"`
	StartDate   time.Time `json:"startDate"`
	EndDate     time.Time `json:"endDate"`
	IsActive    *bool     `json:"isActive"`
}

func (r ExhibitionRequest) Validate() error {
	var v errs.ValidationErrors
	if strings.TrimSpace(r.Name) == "" {
		v.Add("name", "is required")
	}
	if r.StartDate.IsZero() {
		v.Add("startDate", "is required")
	}
	if r.EndDate.IsZero() {
		v.Add("endDate", "is required")
	}
	if !r.StartDate.IsZero() && !r.EndDate.IsZero() && r.EndDate.Before(r.StartDate) {
		v.Add("endDate", "must not be before startDate")
	}
	return v.OrNil()
}

func (r ExhibitionRequest) ApplyTo(exhibition *Exhibition) {
	exhibition.Name = strings.TrimSpace(r.Name)
	exhibition.Venue = r.Venue
	exhibition.Description = r.Description
	exhibition.StartDate = r.StartDate
	exhibition.EndDate = r.EndDate
	if r.IsActive != nil {
		exhibition.IsActive = *r.IsActive
	} else if exhibition.ID == "" {
		exhibition.IsActive = true
	}
}
