package repositories

import (
	"context"
	"reasondesk/internal/database"
	"reasondesk/internal/logger"
	. "reasondesk/internal/models"
	"time"

	"gorm.io/gorm"
)

const (
	DefaultSymptomMinCount = 5
	DefaultSymptomLimit    = 10
)

// StatsRepository holds read-only aggregates over case records and feedback.
type StatsRepository interface {
	GetApprovalRate(ctx context.Context, dateRange DateRange) (ApprovalRateStats, error)
	GetBodyPartStats(ctx context.Context) ([]BodyPartStat, error)
	GetMonthlyTrend(ctx context.Context, year int) ([]MonthlyTrend, error)
	GetSymptomPatterns(ctx context.Context, minCount, limit int) ([]SymptomPattern, error)
	GetAverageFeedbackTime(ctx context.Context) (float64, error)
	GetUserPerformance(ctx context.Context, userID string) (UserPerformance, error)
}

type statsRepository struct {
	db  database.DB
	log logger.Logger
}

func NewStats(db database.DB) StatsRepository {
	return &statsRepository{
		db:  db,
		log: logger.New("statsRepository"),
	}
}

func (r *statsRepository) getDB(ctx context.Context) *gorm.DB {
	return contextDB(ctx, r.db)
}

func approvalCounts(db *gorm.DB) *gorm.DB {
	return db.Select(
		"COUNT(*) AS total, "+
			"COALESCE(SUM(CASE WHEN approval_status = ? THEN 1 ELSE 0 END), 0) AS approved, "+
			"COALESCE(SUM(CASE WHEN approval_status = ? THEN 1 ELSE 0 END), 0) AS rejected",
		ApprovalApproved, ApprovalRejected,
	)
}

func (r *statsRepository) GetApprovalRate(ctx context.Context, dateRange DateRange) (ApprovalRateStats, error) {
	log := r.log.Function("GetApprovalRate")

	var stats ApprovalRateStats
	err := approvalCounts(r.getDB(ctx).Model(&CaseRecord{})).
		Where("created_at BETWEEN ? AND ?", dateRange.Start.UTC(), dateRange.End.UTC()).
		Scan(&stats).Error
	if err != nil {
		return ApprovalRateStats{}, log.Err("failed to get approval rate", storeError(err))
	}

	stats.ApprovalRate = Rate(stats.Approved, stats.Total)
	return stats, nil
}

func (r *statsRepository) GetBodyPartStats(ctx context.Context) ([]BodyPartStat, error) {
	log := r.log.Function("GetBodyPartStats")

	stats := []BodyPartStat{}
	err := r.getDB(ctx).
		Model(&CaseRecord{}).
		Select(
			"body_part, COUNT(*) AS total, "+
				"COALESCE(SUM(CASE WHEN approval_status = ? THEN 1 ELSE 0 END), 0) AS approved",
			ApprovalApproved,
		).
		Group("body_part").
		Order("total DESC, body_part ASC").
		Scan(&stats).Error
	if err != nil {
		return nil, log.Err("failed to get body part stats", storeError(err))
	}

	for i := range stats {
		stats[i].ApprovalRate = Rate(stats[i].Approved, stats[i].Total)
	}

	return stats, nil
}

// GetMonthlyTrend returns twelve points for year, January first. Months are
// bucketed here rather than in SQL so sqlite and postgres agree.
func (r *statsRepository) GetMonthlyTrend(ctx context.Context, year int) ([]MonthlyTrend, error) {
	log := r.log.Function("GetMonthlyTrend")

	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(1, 0, 0)

	var rows []struct {
		CreatedAt      time.Time
		ApprovalStatus ApprovalStatus
	}
	err := r.getDB(ctx).
		Model(&CaseRecord{}).
		Select("created_at, approval_status").
		Where("created_at >= ? AND created_at < ?", start, end).
		Scan(&rows).Error
	if err != nil {
		return nil, log.Err("failed to get monthly trend", storeError(err), "year", year)
	}

	trend := make([]MonthlyTrend, 12)
	for i := range trend {
		trend[i].Month = i + 1
	}
	for _, row := range rows {
		bucket := &trend[row.CreatedAt.UTC().Month()-1]
		bucket.Total++
		if row.ApprovalStatus == ApprovalApproved {
			bucket.Approved++
		}
	}
	for i := range trend {
		trend[i].ApprovalRate = Rate(trend[i].Approved, trend[i].Total)
	}

	return trend, nil
}

// GetSymptomPatterns groups identical symptom text and keeps groups seen at
// least minCount times, most frequent first.
func (r *statsRepository) GetSymptomPatterns(ctx context.Context, minCount, limit int) ([]SymptomPattern, error) {
	log := r.log.Function("GetSymptomPatterns")

	if minCount <= 0 {
		minCount = DefaultSymptomMinCount
	}
	if limit <= 0 {
		limit = DefaultSymptomLimit
	}

	patterns := []SymptomPattern{}
	err := r.getDB(ctx).
		Model(&CaseRecord{}).
		Select("symptoms, COUNT(*) AS count").
		Group("symptoms").
		Having("COUNT(*) >= ?", minCount).
		Order("count DESC, symptoms ASC").
		Limit(limit).
		Scan(&patterns).Error
	if err != nil {
		return nil, log.Err("failed to get symptom patterns", storeError(err))
	}

	return patterns, nil
}

type feedbackDelay struct {
	RecordCreatedAt   time.Time
	FeedbackCreatedAt time.Time
}

func (r *statsRepository) feedbackDelays(ctx context.Context, userID string) ([]feedbackDelay, error) {
	query := r.getDB(ctx).
		Table("feedbacks").
		Select("case_records.created_at AS record_created_at, feedbacks.created_at AS feedback_created_at").
		Joins("JOIN case_records ON case_records.id = feedbacks.case_record_id")
	if userID != "" {
		query = query.Where("case_records.submitted_by = ?", userID)
	}

	var delays []feedbackDelay
	if err := query.Scan(&delays).Error; err != nil {
		return nil, storeError(err)
	}

	return delays, nil
}

func averageSeconds(delays []feedbackDelay) float64 {
	if len(delays) == 0 {
		return 0
	}

	var sum float64
	for _, d := range delays {
		sum += d.FeedbackCreatedAt.Sub(d.RecordCreatedAt).Seconds()
	}

	return sum / float64(len(delays))
}

// GetAverageFeedbackTime is the mean delay in seconds between a record's
// creation and each feedback entry on it. 0 when there is no feedback.
func (r *statsRepository) GetAverageFeedbackTime(ctx context.Context) (float64, error) {
	log := r.log.Function("GetAverageFeedbackTime")

	delays, err := r.feedbackDelays(ctx, "")
	if err != nil {
		return 0, log.Err("failed to get feedback delays", err)
	}

	return averageSeconds(delays), nil
}

func (r *statsRepository) GetUserPerformance(ctx context.Context, userID string) (UserPerformance, error) {
	log := r.log.Function("GetUserPerformance")

	var counts ApprovalRateStats
	err := approvalCounts(r.getDB(ctx).Model(&CaseRecord{})).
		Where("submitted_by = ?", userID).
		Scan(&counts).Error
	if err != nil {
		return UserPerformance{}, log.Err("failed to count user submissions", storeError(err), "userId", userID)
	}

	delays, err := r.feedbackDelays(ctx, userID)
	if err != nil {
		return UserPerformance{}, log.Err("failed to get user feedback delays", err, "userId", userID)
	}

	return UserPerformance{
		UserID:             userID,
		Submissions:        counts.Total,
		ApprovalRate:       Rate(counts.Approved, counts.Total),
		AvgFeedbackSeconds: averageSeconds(delays),
	}, nil
}
