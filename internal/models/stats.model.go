package models

import "time"

type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type ApprovalRateStats struct {
	Total        int64   `json:"total"`
	Approved     int64   `json:"approved"`
	Rejected     int64   `json:"rejected"`
	ApprovalRate float64 `json:"approvalRate"`
}

type BodyPartStat struct {
	BodyPart     string  `json:"bodyPart"`
	Total        int64   `json:"total"`
	Approved     int64   `json:"approved"`
	ApprovalRate float64 `json:"approvalRate"`
}

type MonthlyTrend struct {
	Month        int     `json:"month"`
	Total        int64   `json:"total"`
	Approved     int64   `json:"approved"`
	ApprovalRate float64 `json:"approvalRate"`
}

type SymptomPattern struct {
	Symptoms string `json:"symptoms"`
	Count    int64  `json:"count"`
}

type UserPerformance struct {
	UserID             string  `json:"userId"`
	Submissions        int64   `json:"submissions"`
	ApprovalRate       float64 `json:"approvalRate"`
	AvgFeedbackSeconds float64 `json:"avgFeedbackSeconds"`
}

type FeedbackTrendPoint struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

type RejectionReason struct {
	Content string `json:"content"`
	Count   int64  `json:"count"`
}

// Rate returns part/total as a percentage, 0 when total is 0.
func Rate(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}
