package userController

import (
	"context"
	"errors"
	"reasondesk/internal/errs"
	"reasondesk/internal/logger"
	. "reasondesk/internal/models"
	"reasondesk/internal/repositories"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

type UserController struct {
	userRepo repositories.UserRepository
	cost     int
	log      logger.Logger
}

func New(userRepo repositories.UserRepository) *UserController {
	return &UserController{
		userRepo: userRepo,
		cost:     bcrypt.DefaultCost,
		log:      logger.New("UserController"),
	}
}

func (uc *UserController) hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), uc.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func (uc *UserController) CreateUser(ctx context.Context, req CreateUserRequest) (*User, error) {
	log := uc.log.Function("CreateUser")

	if err := req.Validate(); err != nil {
		return nil, log.Err("invalid user request", err)
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	_, err := uc.userRepo.GetByEmail(ctx, email)
	switch {
	case err == nil:
		v := errs.ValidationErrors{{Field: "email", Message: "is already registered"}}
		return nil, log.Err("duplicate email", v, "email", email)
	case !errors.Is(err, errs.ErrNotFound):
		return nil, log.Err("failed to check email", err, "email", email)
	}

	hashed, err := uc.hash(req.Password)
	if err != nil {
		return nil, log.Err("failed to hash password", err)
	}

	role := req.Role
	if role == "" {
		role = RoleReviewer
	}

	user := &User{
		Email:       email,
		DisplayName: strings.TrimSpace(req.DisplayName),
		Role:        role,
		Password:    hashed,
		IsActive:    true,
	}
	if err := uc.userRepo.Create(ctx, user); err != nil {
		return nil, log.Err("failed to create user", err, "email", email)
	}

	return user, nil
}

func (uc *UserController) GetUser(ctx context.Context, id string) (*User, error) {
	log := uc.log.Function("GetUser")

	user, err := uc.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, log.Err("failed to get user", err, "id", id)
	}

	return user, nil
}

func (uc *UserController) ListUsers(ctx context.Context, page Pagination) (PaginatedResult[*User], error) {
	log := uc.log.Function("ListUsers")

	page = NewPagination(page.Page, page.Limit)
	users, total, err := uc.userRepo.List(ctx, page)
	if err != nil {
		return PaginatedResult[*User]{}, log.Err("failed to list users", err)
	}

	return NewPaginatedResult(users, total, page), nil
}

// UpdateUser applies the set fields in one read-modify-write transaction.
func (uc *UserController) UpdateUser(ctx context.Context, id string, req UpdateUserRequest) (*User, error) {
	log := uc.log.Function("UpdateUser")

	if err := req.Validate(); err != nil {
		return nil, log.Err("invalid user request", err, "id", id)
	}

	user, err := uc.userRepo.Update(ctx, id, func(user *User) error {
		if req.DisplayName != nil {
			user.DisplayName = strings.TrimSpace(*req.DisplayName)
		}
		if req.Role != nil && *req.Role != "" {
			user.Role = *req.Role
		}
		if req.IsActive != nil {
			user.IsActive = *req.IsActive
		}
		if req.Password != nil {
			hashed, err := uc.hash(*req.Password)
			if err != nil {
				return err
			}
			user.Password = hashed
		}
		return nil
	})
	if err != nil {
		return nil, log.Err("failed to update user", err, "id", id)
	}

	return user, nil
}

func (uc *UserController) DeleteUser(ctx context.Context, id string) error {
	log := uc.log.Function("DeleteUser")

	if err := uc.userRepo.Delete(ctx, id); err != nil {
		return log.Err("failed to delete user", err, "id", id)
	}

	return nil
}

// Authenticate checks an email and password pair. Unknown emails, inactive
// users and wrong passwords all yield ErrUnauthorized.
func (uc *UserController) Authenticate(ctx context.Context, email, password string) (*User, error) {
	log := uc.log.Function("Authenticate")

	email = strings.ToLower(strings.TrimSpace(email))
	user, err := uc.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, log.Err("unknown email", errs.ErrUnauthorized, "email", email)
		}
		return nil, log.Err("failed to get user", err, "email", email)
	}

	if !user.IsActive {
		return nil, log.Err("inactive user", errs.ErrUnauthorized, "id", user.ID)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, log.Err("password mismatch", errs.ErrUnauthorized, "id", user.ID)
	}

	return user, nil
}
