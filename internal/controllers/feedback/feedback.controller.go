package feedbackController

import (
	"context"
	"reasondesk/internal/events"
	"reasondesk/internal/logger"
	. "reasondesk/internal/models"
	"reasondesk/internal/repositories"
	"reasondesk/internal/services"
	"strings"
	"time"
)

type FeedbackController struct {
	feedbackRepo      repositories.FeedbackRepository
	caseRecordRepo    repositories.CaseRecordRepository
	cacheInvalidation *services.CacheInvalidationService
	eventBus          *events.EventBus
	log               logger.Logger
	now               func() time.Time
}

func New(
	feedbackRepo repositories.FeedbackRepository,
	caseRecordRepo repositories.CaseRecordRepository,
	cacheInvalidation *services.CacheInvalidationService,
	eventBus *events.EventBus,
) *FeedbackController {
	return &FeedbackController{
		feedbackRepo:      feedbackRepo,
		caseRecordRepo:    caseRecordRepo,
		cacheInvalidation: cacheInvalidation,
		eventBus:          eventBus,
		log:               logger.New("FeedbackController"),
		now:               time.Now,
	}
}

func (fc *FeedbackController) CreateFeedback(ctx context.Context, req CreateFeedbackRequest, reviewerID string) (*Feedback, error) {
	log := fc.log.Function("CreateFeedback")

	if err := req.Validate(); err != nil {
		return nil, log.Err("invalid feedback request", err)
	}

	caseRecordID := strings.TrimSpace(req.CaseRecordID)
	if _, err := fc.caseRecordRepo.GetByID(ctx, caseRecordID); err != nil {
		return nil, log.Err("failed to get case record", err, "caseRecordId", caseRecordID)
	}

	feedback := &Feedback{
		CaseRecordID: caseRecordID,
		Type:         req.Type,
		Content:      req.Content,
		Notes:        req.Notes,
		ReviewerID:   reviewerID,
	}

	if err := fc.feedbackRepo.Create(ctx, feedback); err != nil {
		return nil, log.Err("failed to create feedback", err, "caseRecordId", caseRecordID)
	}

	fc.changed(ctx, "feedback.created", feedback, reviewerID)
	return feedback, nil
}

func (fc *FeedbackController) GetFeedback(ctx context.Context, id string) (*Feedback, error) {
	log := fc.log.Function("GetFeedback")

	feedback, err := fc.feedbackRepo.GetByID(ctx, id)
	if err != nil {
		return nil, log.Err("failed to get feedback", err, "id", id)
	}

	return feedback, nil
}

func (fc *FeedbackController) UpdateFeedback(ctx context.Context, id string, req UpdateFeedbackRequest, reviewerID string) (*Feedback, error) {
	log := fc.log.Function("UpdateFeedback")

	if err := req.Validate(); err != nil {
		return nil, log.Err("invalid feedback request", err, "id", id)
	}

	feedback, err := fc.feedbackRepo.GetByID(ctx, id)
	if err != nil {
		return nil, log.Err("failed to get feedback", err, "id", id)
	}

	req.ApplyTo(feedback)
	if err := fc.feedbackRepo.Update(ctx, feedback); err != nil {
		return nil, log.Err("failed to update feedback", err, "id", id)
	}

	fc.changed(ctx, "feedback.updated", feedback, reviewerID)
	return feedback, nil
}

func (fc *FeedbackController) DeleteFeedback(ctx context.Context, id string, reviewerID string) error {
	log := fc.log.Function("DeleteFeedback")

	feedback, err := fc.feedbackRepo.GetByID(ctx, id)
	if err != nil {
		return log.Err("failed to get feedback", err, "id", id)
	}

	if err := fc.feedbackRepo.Delete(ctx, id); err != nil {
		return log.Err("failed to delete feedback", err, "id", id)
	}

	fc.changed(ctx, "feedback.deleted", feedback, reviewerID)
	return nil
}

func (fc *FeedbackController) ListFeedback(ctx context.Context, page Pagination) (PaginatedResult[*Feedback], error) {
	log := fc.log.Function("ListFeedback")

	page = NewPagination(page.Page, page.Limit)
	feedbacks, total, err := fc.feedbackRepo.List(ctx, page)
	if err != nil {
		return PaginatedResult[*Feedback]{}, log.Err("failed to list feedback", err)
	}

	return NewPaginatedResult(feedbacks, total, page), nil
}

// GetFeedbacksByCaseRecordID lists the feedback on one record, newest first.
// An unknown record is ErrNotFound, not an empty list.
func (fc *FeedbackController) GetFeedbacksByCaseRecordID(ctx context.Context, caseRecordID string) ([]*Feedback, error) {
	log := fc.log.Function("GetFeedbacksByCaseRecordID")

	if _, err := fc.caseRecordRepo.GetByID(ctx, caseRecordID); err != nil {
		return nil, log.Err("failed to get case record", err, "caseRecordId", caseRecordID)
	}

	feedbacks, err := fc.feedbackRepo.GetByCaseRecordID(ctx, caseRecordID)
	if err != nil {
		return nil, log.Err("failed to get feedback", err, "caseRecordId", caseRecordID)
	}

	return feedbacks, nil
}

func (fc *FeedbackController) GetFeedbacksByCategory(ctx context.Context, category string, limit int) ([]*Feedback, error) {
	log := fc.log.Function("GetFeedbacksByCategory")

	feedbacks, err := fc.feedbackRepo.GetByCategory(ctx, category, limit)
	if err != nil {
		return nil, log.Err("failed to get feedback by category", err, "category", category)
	}

	return feedbacks, nil
}

func (fc *FeedbackController) GetRejectionReasons(ctx context.Context, limit int) ([]RejectionReason, error) {
	log := fc.log.Function("GetRejectionReasons")

	reasons, err := fc.feedbackRepo.GetRejectionReasons(ctx, limit)
	if err != nil {
		return nil, log.Err("failed to get rejection reasons", err)
	}

	return reasons, nil
}

// GetApprovalRateStats reports the share of approval feedback within the
// range. The rate is 0 when the range holds no feedback.
func (fc *FeedbackController) GetApprovalRateStats(ctx context.Context, dateRange DateRange) (ApprovalRateStats, error) {
	log := fc.log.Function("GetApprovalRateStats")

	stats, err := fc.feedbackRepo.GetTypeCounts(ctx, dateRange)
	if err != nil {
		return ApprovalRateStats{}, log.Err("failed to get approval rate", err,
			"start", dateRange.Start, "end", dateRange.End)
	}

	return stats, nil
}

// GetFeedbackTrends returns a dense daily series for the trailing days,
// oldest first.
func (fc *FeedbackController) GetFeedbackTrends(ctx context.Context, days int) ([]FeedbackTrendPoint, error) {
	log := fc.log.Function("GetFeedbackTrends")

	if days > 366 {
		days = 366
	}

	points, err := fc.feedbackRepo.GetDailyTrend(ctx, days, fc.now())
	if err != nil {
		return nil, log.Err("failed to get feedback trends", err, "days", days)
	}

	return points, nil
}

func (fc *FeedbackController) changed(ctx context.Context, eventType string, feedback *Feedback, userID string) {
	log := fc.log.Function("changed")

	if err := fc.cacheInvalidation.InvalidateStats(ctx); err != nil {
		log.Warn("failed to invalidate stats cache", "error", err)
	}

	event := events.NewEvent(events.ChannelFeedback, eventType, userID, map[string]any{
		"id":           feedback.ID,
		"caseRecordId": feedback.CaseRecordID,
		"type":         feedback.Type,
	})
	if err := fc.eventBus.Publish(events.ChannelFeedback, event); err != nil {
		log.Warn("failed to publish feedback event", "type", eventType, "error", err)
	}
}
