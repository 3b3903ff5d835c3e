package userController

import (
	"context"
	"testing"

	"reasondesk/internal/database/dbtest"
	"reasondesk/internal/errs"
	. "reasondesk/internal/models"
	"reasondesk/internal/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newController(t *testing.T) *UserController {
	t.Helper()
	controller := New(repositories.NewUser(dbtest.New(t)))
	controller.cost = bcrypt.MinCost
	return controller
}

func ptr[T any](v T) *T {
	return &v
}

func TestUserController_CreateAndAuthenticate(t *testing.T) {
	controller := newController(t)
	ctx := context.Background()

	user, err := controller.CreateUser(ctx, CreateUserRequest{
		Email:       " Reviewer@Example.com ",
		DisplayName: "審査担当",
		Password:    "correct-horse",
	})
	require.NoError(t, err)
	assert.Equal(t, "reviewer@example.com", user.Email)
	assert.Equal(t, RoleReviewer, user.Role)
	assert.True(t, user.IsActive)
	assert.NotEqual(t, "correct-horse", user.Password)

	_, err = controller.CreateUser(ctx, CreateUserRequest{Email: "reviewer@example.com", Password: "another-pass"})
	var validation errs.ValidationErrors
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "email", validation[0].Field)

	_, err = controller.CreateUser(ctx, CreateUserRequest{Email: "short@example.com", Password: "short"})
	assert.ErrorIs(t, err, errs.ErrValidationFailed)

	authed, err := controller.Authenticate(ctx, "REVIEWER@example.com", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, user.ID, authed.ID)

	_, err = controller.Authenticate(ctx, "reviewer@example.com", "wrong-password")
	assert.ErrorIs(t, err, errs.ErrUnauthorized)

	_, err = controller.Authenticate(ctx, "nobody@example.com", "correct-horse")
	assert.ErrorIs(t, err, errs.ErrUnauthorized)
}

func TestUserController_UpdateAndDelete(t *testing.T) {
	controller := newController(t)
	ctx := context.Background()

	user, err := controller.CreateUser(ctx, CreateUserRequest{Email: "admin@example.com", Role: RoleAdmin, Password: "initial-pass"})
	require.NoError(t, err)

	updated, err := controller.UpdateUser(ctx, user.ID, UpdateUserRequest{
		DisplayName: ptr("管理者"),
		Password:    ptr("rotated-pass"),
	})
	require.NoError(t, err)
	assert.Equal(t, "管理者", updated.DisplayName)
	assert.Equal(t, RoleAdmin, updated.Role)

	_, err = controller.Authenticate(ctx, "admin@example.com", "rotated-pass")
	require.NoError(t, err)
	_, err = controller.Authenticate(ctx, "admin@example.com", "initial-pass")
	assert.ErrorIs(t, err, errs.ErrUnauthorized)

	_, err = controller.UpdateUser(ctx, user.ID, UpdateUserRequest{IsActive: ptr(false)})
	require.NoError(t, err)
	_, err = controller.Authenticate(ctx, "admin@example.com", "rotated-pass")
	assert.ErrorIs(t, err, errs.ErrUnauthorized)

	_, err = controller.UpdateUser(ctx, user.ID, UpdateUserRequest{Role: ptr("owner")})
	assert.ErrorIs(t, err, errs.ErrValidationFailed)

	_, err = controller.UpdateUser(ctx, "missing", UpdateUserRequest{DisplayName: ptr("x")})
	assert.ErrorIs(t, err, errs.ErrNotFound)

	list, err := controller.ListUsers(ctx, Pagination{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), list.Total)

	require.NoError(t, controller.DeleteUser(ctx, user.ID))
	_, err = controller.GetUser(ctx, user.ID)
	assert.ErrorIs(t, err, errs.ErrNotFound)
	assert.ErrorIs(t, controller.DeleteUser(ctx, user.ID), errs.ErrNotFound)
}
