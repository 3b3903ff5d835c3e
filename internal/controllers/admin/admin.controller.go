package adminController

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"reasondesk/internal/database"
	"reasondesk/internal/errs"
	"reasondesk/internal/events"
	"reasondesk/internal/logger"
	"reasondesk/internal/repositories"

	. "reasondesk/internal/models"
)

const maxAnnouncementLength = 500

type AdminController struct {
	userRepo repositories.UserRepository
	db       database.DB
	log      logger.Logger
	eventBus *events.EventBus
}

func New(
	eventBus *events.EventBus,
	userRepo repositories.UserRepository,
	db database.DB,
) *AdminController {
	return &AdminController{
		userRepo: userRepo,
		db:       db,
		log:      logger.New("AdminController"),
		eventBus: eventBus,
	}
}

// Announce broadcasts message to every connected websocket client.
func (c *AdminController) Announce(ctx context.Context, userID string, message string) (events.Event, error) {
	log := c.log.Function("Announce")

	user, err := c.requireAdmin(ctx, userID)
	if err != nil {
		return events.Event{}, err
	}

	message = strings.TrimSpace(message)
	var v errs.ValidationErrors
	if message == "" {
		v.Add("message", "is required")
	} else if utf8.RuneCountInString(message) > maxAnnouncementLength {
		v.Add("message", "must be at most 500 characters")
	}
	if err := v.OrNil(); err != nil {
		return events.Event{}, err
	}

	event := events.NewEvent(events.ChannelAdmin, "announcement", user.ID, map[string]any{
		"message": message,
		"from":    user.DisplayName,
	})

	log.Info("Broadcasting announcement", "userID", user.ID)
	if err := c.eventBus.Publish(events.ChannelAdmin, event); err != nil {
		return events.Event{}, log.Err("failed to publish announcement", err, "userID", user.ID)
	}

	return event, nil
}

// FlushCaches empties every valkey database. Without a cache it does nothing.
func (c *AdminController) FlushCaches(ctx context.Context, userID string) error {
	log := c.log.Function("FlushCaches")

	user, err := c.requireAdmin(ctx, userID)
	if err != nil {
		return err
	}

	if !c.db.HasCache() {
		log.Debug("no cache configured", "userID", user.ID)
		return nil
	}

	log.Info("Flushing caches", "userID", user.ID)
	return c.db.FlushAllCaches()
}

func (c *AdminController) requireAdmin(ctx context.Context, userID string) (*User, error) {
	if userID == "" {
		return nil, errs.ErrUnauthorized
	}

	user, err := c.userRepo.GetByID(ctx, userID)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, errs.ErrForbidden
	}
	if err != nil {
		return nil, c.log.Function("requireAdmin").Err("failed to load user", err, "userID", userID)
	}

	if !user.IsActive || user.Role != RoleAdmin {
		return nil, errs.ErrForbidden
	}

	return user, nil
}
