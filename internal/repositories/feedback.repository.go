package repositories

import (
	"context"
	"reasondesk/internal/database"
	"reasondesk/internal/errs"
	"reasondesk/internal/logger"
	. "reasondesk/internal/models"
	"time"

	"gorm.io/gorm"
)

const (
	DefaultFeedbackLimit = 20
	DefaultTrendDays     = 30
	trendDateLayout      = "2006-01-02"
)

type FeedbackRepository interface {
	Create(ctx context.Context, feedback *Feedback) error
	GetByID(ctx context.Context, id string) (*Feedback, error)
	Update(ctx context.Context, feedback *Feedback) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, page Pagination) ([]*Feedback, int64, error)
	GetByCaseRecordID(ctx context.Context, caseRecordID string) ([]*Feedback, error)
	GetByCategory(ctx context.Context, category string, limit int) ([]*Feedback, error)
	GetRejectionReasons(ctx context.Context, limit int) ([]RejectionReason, error)
	GetDailyTrend(ctx context.Context, days int, now time.Time) ([]FeedbackTrendPoint, error)
	GetTypeCounts(ctx context.Context, dateRange DateRange) (ApprovalRateStats, error)
}

type feedbackRepository struct {
	db  database.DB
	log logger.Logger
}

func NewFeedback(db database.DB) FeedbackRepository {
	return &feedbackRepository{
		db:  db,
		log: logger.New("feedbackRepository"),
	}
}

func (r *feedbackRepository) getDB(ctx context.Context) *gorm.DB {
	return contextDB(ctx, r.db)
}

func (r *feedbackRepository) Create(ctx context.Context, feedback *Feedback) error {
	log := r.log.Function("Create")

	if err := r.getDB(ctx).Create(feedback).Error; err != nil {
		return log.Err("failed to create feedback", storeError(err), "caseRecordId", feedback.CaseRecordID)
	}

	return nil
}

func (r *feedbackRepository) GetByID(ctx context.Context, id string) (*Feedback, error) {
	log := r.log.Function("GetByID")

	var feedback Feedback
	if err := r.getDB(ctx).First(&feedback, "id = ?", id).Error; err != nil {
		return nil, log.Err("failed to get feedback", storeError(err), "id", id)
	}

	return &feedback, nil
}

func (r *feedbackRepository) Update(ctx context.Context, feedback *Feedback) error {
	log := r.log.Function("Update")

	result := r.getDB(ctx).Model(feedback).Select("type", "content", "notes", "updated_at").Updates(feedback)
	if result.Error != nil {
		return log.Err("failed to update feedback", storeError(result.Error), "id", feedback.ID)
	}
	if result.RowsAffected == 0 {
		return log.Err("failed to update feedback", errs.ErrNotFound, "id", feedback.ID)
	}

	return nil
}

func (r *feedbackRepository) Delete(ctx context.Context, id string) error {
	log := r.log.Function("Delete")

	result := r.getDB(ctx).Delete(&Feedback{}, "id = ?", id)
	if result.Error != nil {
		return log.Err("failed to delete feedback", storeError(result.Error), "id", id)
	}
	if result.RowsAffected == 0 {
		return log.Err("failed to delete feedback", errs.ErrNotFound, "id", id)
	}

	return nil
}

func (r *feedbackRepository) List(ctx context.Context, page Pagination) ([]*Feedback, int64, error) {
	log := r.log.Function("List")

	var total int64
	if err := r.getDB(ctx).Model(&Feedback{}).Count(&total).Error; err != nil {
		return nil, 0, log.Err("failed to count feedback", storeError(err))
	}

	var feedbacks []*Feedback
	err := r.getDB(ctx).Order("created_at DESC").Offset(page.Offset()).Limit(page.Limit).Find(&feedbacks).Error
	if err != nil {
		return nil, 0, log.Err("failed to list feedback", storeError(err))
	}

	return feedbacks, total, nil
}

func (r *feedbackRepository) GetByCaseRecordID(ctx context.Context, caseRecordID string) ([]*Feedback, error) {
	log := r.log.Function("GetByCaseRecordID")

	var feedbacks []*Feedback
	err := r.getDB(ctx).
		Where("case_record_id = ?", caseRecordID).
		Order("created_at DESC").
		Find(&feedbacks).Error
	if err != nil {
		return nil, log.Err("failed to get feedback for case record", storeError(err), "caseRecordId", caseRecordID)
	}

	return feedbacks, nil
}

// GetByCategory lists feedback on records of one body part, newest first.
func (r *feedbackRepository) GetByCategory(ctx context.Context, category string, limit int) ([]*Feedback, error) {
	log := r.log.Function("GetByCategory")

	if limit <= 0 {
		limit = DefaultFeedbackLimit
	}

	var feedbacks []*Feedback
	err := r.getDB(ctx).
		Joins("JOIN case_records ON case_records.id = feedbacks.case_record_id").
		Where("case_records.body_part = ?", category).
		Order("feedbacks.created_at DESC").
		Limit(limit).
		Find(&feedbacks).Error
	if err != nil {
		return nil, log.Err("failed to get feedback by category", storeError(err), "category", category)
	}

	return feedbacks, nil
}

func (r *feedbackRepository) GetRejectionReasons(ctx context.Context, limit int) ([]RejectionReason, error) {
	log := r.log.Function("GetRejectionReasons")

	if limit <= 0 {
		limit = DefaultTagLimit
	}

	reasons := []RejectionReason{}
	err := r.getDB(ctx).
		Model(&Feedback{}).
		Select("content, COUNT(*) AS count").
		Where("type = ?", FeedbackRejection).
		Group("content").
		Order("count DESC, content ASC").
		Limit(limit).
		Scan(&reasons).Error
	if err != nil {
		return nil, log.Err("failed to get rejection reasons", storeError(err))
	}

	return reasons, nil
}

// GetDailyTrend returns one point per day for the trailing days ending at
// now, oldest first. Days without feedback have a zero count.
func (r *feedbackRepository) GetDailyTrend(ctx context.Context, days int, now time.Time) ([]FeedbackTrendPoint, error) {
	log := r.log.Function("GetDailyTrend")

	if days <= 0 {
		days = DefaultTrendDays
	}

	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	start := today.AddDate(0, 0, -(days - 1))

	var timestamps []time.Time
	err := r.getDB(ctx).
		Model(&Feedback{}).
		Where("created_at >= ?", start).
		Pluck("created_at", &timestamps).Error
	if err != nil {
		return nil, log.Err("failed to get feedback timestamps", storeError(err), "days", days)
	}

	counts := make(map[string]int64, days)
	for _, ts := range timestamps {
		counts[ts.UTC().Format(trendDateLayout)]++
	}

	points := make([]FeedbackTrendPoint, days)
	for i := range points {
		date := start.AddDate(0, 0, i).Format(trendDateLayout)
		points[i] = FeedbackTrendPoint{Date: date, Count: counts[date]}
	}

	return points, nil
}

// GetTypeCounts counts feedback in the range, split into approvals and
// rejections.
func (r *feedbackRepository) GetTypeCounts(ctx context.Context, dateRange DateRange) (ApprovalRateStats, error) {
	log := r.log.Function("GetTypeCounts")

	var stats ApprovalRateStats
	err := r.getDB(ctx).
		Model(&Feedback{}).
		Select(
			"COUNT(*) AS total, "+
				"COALESCE(SUM(CASE WHEN type = ? THEN 1 ELSE 0 END), 0) AS approved, "+
				"COALESCE(SUM(CASE WHEN type = ? THEN 1 ELSE 0 END), 0) AS rejected",
			FeedbackApproval, FeedbackRejection,
		).
		Where("created_at BETWEEN ? AND ?", dateRange.Start.UTC(), dateRange.End.UTC()).
		Scan(&stats).Error
	if err != nil {
		return ApprovalRateStats{}, log.Err("failed to count feedback types", storeError(err))
	}

	stats.ApprovalRate = Rate(stats.Approved, stats.Total)
	return stats, nil
}
