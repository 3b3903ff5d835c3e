package statsController

import (
	"context"
	"fmt"
	"reasondesk/config"
	"reasondesk/internal/database"
	"reasondesk/internal/logger"
	. "reasondesk/internal/models"
	"reasondesk/internal/repositories"
	"reasondesk/internal/services"
	"time"
)

type StatsController struct {
	statsRepo         repositories.StatsRepository
	cacheInvalidation *services.CacheInvalidationService
	db                database.DB
	ttl               time.Duration
	log               logger.Logger
}

// Dashboard bundles the aggregates the overview screen loads together.
type Dashboard struct {
	ApprovalRate       ApprovalRateStats `json:"approvalRate"`
	BodyParts          []BodyPartStat    `json:"bodyParts"`
	MonthlyTrend       []MonthlyTrend    `json:"monthlyTrend"`
	AvgFeedbackSeconds float64           `json:"avgFeedbackSeconds"`
}

func New(
	statsRepo repositories.StatsRepository,
	cacheInvalidation *services.CacheInvalidationService,
	db database.DB,
	config config.Config,
) *StatsController {
	return &StatsController{
		statsRepo:         statsRepo,
		cacheInvalidation: cacheInvalidation,
		db:                db,
		ttl:               time.Duration(config.StatsCacheTTLSeconds) * time.Second,
		log:               logger.New("StatsController"),
	}
}

// cached serves name from the stats cache, loading and storing it on a miss.
// Cache failures fall through to load; they never fail the request.
func cached[T any](ctx context.Context, sc *StatsController, name string, load func(ctx context.Context) (T, error)) (T, error) {
	log := sc.log.Function("cached")

	if sc.ttl <= 0 || !sc.cacheInvalidation.Enabled() {
		return load(ctx)
	}

	key, err := sc.cacheInvalidation.StatsKey(ctx, name)
	if err != nil {
		log.Warn("failed to build stats cache key", "name", name, "error", err)
		return load(ctx)
	}

	var value T
	found, err := database.NewCacheBuilder(sc.db.Cache.Stats, key).WithContext(ctx).Get(&value)
	if err != nil {
		log.Warn("failed to read stats cache", "key", key, "error", err)
	}
	if found {
		return value, nil
	}

	value, err = load(ctx)
	if err != nil {
		return value, err
	}

	err = database.NewCacheBuilder(sc.db.Cache.Stats, key).
		WithStruct(value).
		WithTTL(sc.ttl).
		WithContext(ctx).
		Set()
	if err != nil {
		log.Warn("failed to write stats cache", "key", key, "error", err)
	}

	return value, nil
}

func (sc *StatsController) GetApprovalRate(ctx context.Context, dateRange DateRange) (ApprovalRateStats, error) {
	log := sc.log.Function("GetApprovalRate")

	name := fmt.Sprintf("approval-rate:%d:%d", dateRange.Start.Unix(), dateRange.End.Unix())
	stats, err := cached(ctx, sc, name, func(ctx context.Context) (ApprovalRateStats, error) {
		return sc.statsRepo.GetApprovalRate(ctx, dateRange)
	})
	if err != nil {
		return ApprovalRateStats{}, log.Err("failed to get approval rate", err)
	}

	return stats, nil
}

func (sc *StatsController) GetBodyPartStats(ctx context.Context) ([]BodyPartStat, error) {
	log := sc.log.Function("GetBodyPartStats")

	stats, err := cached(ctx, sc, "body-parts", sc.statsRepo.GetBodyPartStats)
	if err != nil {
		return nil, log.Err("failed to get body part stats", err)
	}

	return stats, nil
}

func (sc *StatsController) GetMonthlyTrend(ctx context.Context, year int) ([]MonthlyTrend, error) {
	log := sc.log.Function("GetMonthlyTrend")

	if year <= 0 {
		year = time.Now().UTC().Year()
	}

	trend, err := cached(ctx, sc, fmt.Sprintf("monthly:%d", year), func(ctx context.Context) ([]MonthlyTrend, error) {
		return sc.statsRepo.GetMonthlyTrend(ctx, year)
	})
	if err != nil {
		return nil, log.Err("failed to get monthly trend", err, "year", year)
	}

	return trend, nil
}

func (sc *StatsController) GetSymptomPatterns(ctx context.Context, minCount, limit int) ([]SymptomPattern, error) {
	log := sc.log.Function("GetSymptomPatterns")

	if minCount <= 0 {
		minCount = repositories.DefaultSymptomMinCount
	}
	if limit <= 0 || limit > MaxLimit {
		limit = repositories.DefaultSymptomLimit
	}

	name := fmt.Sprintf("symptoms:%d:%d", minCount, limit)
	patterns, err := cached(ctx, sc, name, func(ctx context.Context) ([]SymptomPattern, error) {
		return sc.statsRepo.GetSymptomPatterns(ctx, minCount, limit)
	})
	if err != nil {
		return nil, log.Err("failed to get symptom patterns", err)
	}

	return patterns, nil
}

func (sc *StatsController) GetAverageFeedbackTime(ctx context.Context) (float64, error) {
	log := sc.log.Function("GetAverageFeedbackTime")

	seconds, err := cached(ctx, sc, "feedback-time", sc.statsRepo.GetAverageFeedbackTime)
	if err != nil {
		return 0, log.Err("failed to get average feedback time", err)
	}

	return seconds, nil
}

func (sc *StatsController) GetUserPerformance(ctx context.Context, userID string) (UserPerformance, error) {
	log := sc.log.Function("GetUserPerformance")

	performance, err := cached(ctx, sc, "user:"+userID, func(ctx context.Context) (UserPerformance, error) {
		return sc.statsRepo.GetUserPerformance(ctx, userID)
	})
	if err != nil {
		return UserPerformance{}, log.Err("failed to get user performance", err, "userId", userID)
	}

	return performance, nil
}

func (sc *StatsController) GetDashboard(ctx context.Context, dateRange DateRange) (Dashboard, error) {
	log := sc.log.Function("GetDashboard")

	var (
		dashboard Dashboard
		err       error
	)

	if dashboard.ApprovalRate, err = sc.GetApprovalRate(ctx, dateRange); err != nil {
		return Dashboard{}, log.Err("failed to load dashboard", err)
	}
	if dashboard.BodyParts, err = sc.GetBodyPartStats(ctx); err != nil {
		return Dashboard{}, log.Err("failed to load dashboard", err)
	}
	if dashboard.MonthlyTrend, err = sc.GetMonthlyTrend(ctx, dateRange.End.UTC().Year()); err != nil {
		return Dashboard{}, log.Err("failed to load dashboard", err)
	}
	if dashboard.AvgFeedbackSeconds, err = sc.GetAverageFeedbackTime(ctx); err != nil {
		return Dashboard{}, log.Err("failed to load dashboard", err)
	}

	return dashboard, nil
}
