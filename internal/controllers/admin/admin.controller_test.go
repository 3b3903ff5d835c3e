package adminController

import (
	"context"
	"strings"
	"testing"

	"reasondesk/config"
	"reasondesk/internal/database/dbtest"
	"reasondesk/internal/errs"
	"reasondesk/internal/events"
	. "reasondesk/internal/models"
	"reasondesk/internal/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	controller *AdminController
	admin      User
	reviewer   User
	received   []events.Event
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := dbtest.New(t)
	users := repositories.NewUser(db)
	bus := events.New(nil, config.Config{})

	f := &fixture{
		controller: New(bus, users, db),
		admin:      User{Email: "admin@example.com", DisplayName: "管理者", Role: RoleAdmin, IsActive: true},
		reviewer:   User{Email: "reviewer@example.com", Role: RoleReviewer, IsActive: true},
	}
	bus.Subscribe(events.ChannelAdmin, func(event events.Event) {
		f.received = append(f.received, event)
	})

	ctx := context.Background()
	require.NoError(t, users.Create(ctx, &f.admin))
	require.NoError(t, users.Create(ctx, &f.reviewer))

	return f
}

func TestAdminController_Announce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	event, err := f.controller.Announce(ctx, f.admin.ID, "  本日18時にメンテナンスを行います  ")
	require.NoError(t, err)
	assert.Equal(t, "announcement", event.Type)
	assert.Equal(t, "本日18時にメンテナンスを行います", event.Data["message"])

	require.Len(t, f.received, 1)
	assert.Equal(t, event.ID, f.received[0].ID)
	assert.Equal(t, events.ChannelAdmin, f.received[0].Channel)
}

func TestAdminController_AnnounceRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		userID  string
		message string
		want    error
	}{
		{"anonymous", "", "hello", errs.ErrUnauthorized},
		{"reviewer", f.reviewer.ID, "hello", errs.ErrForbidden},
		{"unknown user", "external-subject", "hello", errs.ErrForbidden},
		{"empty message", f.admin.ID, "   ", errs.ErrValidationFailed},
		{"long message", f.admin.ID, strings.Repeat("あ", maxAnnouncementLength+1), errs.ErrValidationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.controller.Announce(ctx, tt.userID, tt.message)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	assert.Empty(t, f.received)
}

func TestAdminController_FlushCachesWithoutCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.NoError(t, f.controller.FlushCaches(ctx, f.admin.ID))
	assert.ErrorIs(t, f.controller.FlushCaches(ctx, f.reviewer.ID), errs.ErrForbidden)
}
