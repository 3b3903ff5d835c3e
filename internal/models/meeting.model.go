package models

import (
	"strings"
	"time"

	"reasondesk/internal/errs"
)

type MeetingStatus string

const (
	MeetingScheduled MeetingStatus = "scheduled"
	MeetingCompleted MeetingStatus = "completed"
	MeetingCancelled MeetingStatus = "cancelled"
)

type Meeting struct {
	BaseUUIDModel
	ClientID     string        `gorm:"type:varchar(64);not null;index" json:"clientId"`
	ExhibitionID string        `gorm:"type:varchar(64);not null;index" json:"exhibitionId"`
	Title        string        `gorm:"type:varchar(255);not null"      json:"title"`
	StartTime    time.Time     `gorm:"not null;index"                  json:"startTime"`
	EndTime      time.Time     `gorm:"not null"                        json:"endTime"`
	Location     string        `gorm:"type:varchar(255)"               json:"location"`
	Notes        string        `gorm:"type:text"                       json:"notes"`
	Status       MeetingStatus `gorm:"type:varchar(20);not null"       json:"status"`
}

type MeetingRequest struct {
	ClientID     string        `json:"clientId"`
	ExhibitionID string        `json:"exhibitionId"`
	Title        string        `json:"title"`
	StartTime    time.Time     `json:"startTime"`
	EndTime      time.Time     `json:"endTime"`
	Location     string        `json:"location"`
	Notes        string        `json:"notes"`
	Status       MeetingStatus `json:"status"`
}

func (r MeetingRequest) Validate() error {
	var v errs.ValidationErrors
	if r.ClientID == "" {
		v.Add("clientId", "is required")
	}
	if r.ExhibitionID == "" {
		v.Add("exhibitionId", "is required")
	}
	if strings.TrimSpace(r.Title) == "" {
		v.Add("title", "is required")
	}
	if r.StartTime.IsZero() || r.EndTime.IsZero() {
		v.Add("startTime", "startTime and endTime are required")
	} else if !r.EndTime.After(r.StartTime) {
		v.Add("endTime", "must be after startTime")
	}
	switch r.Status {
	case "", MeetingScheduled, MeetingCompleted, MeetingCancelled:
	default:
		v.Add("status", "must be scheduled, completed or cancelled")
	}
	return v.OrNil()
}

func (r MeetingRequest) ApplyTo(meeting *Meeting) {
	meeting.ClientID = r.ClientID
	meeting.ExhibitionID = r.ExhibitionID
	meeting.Title = strings.TrimSpace(r.Title)
	meeting.StartTime = r.StartTime
	meeting.EndTime = r.EndTime
	meeting.Location = r.Location
	meeting.Notes = r.Notes
	meeting.Status = r.Status
	if meeting.Status == "" {
		meeting.Status = MeetingScheduled
	}
}
