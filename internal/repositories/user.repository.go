package repositories

import (
	"context"
	"reasondesk/internal/database"
	"reasondesk/internal/errs"
	"reasondesk/internal/logger"
	. "reasondesk/internal/models"

	"gorm.io/gorm"
)

type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context, page Pagination) ([]*User, int64, error)
	Update(ctx context.Context, id string, mutate func(user *User) error) (*User, error)
	Delete(ctx context.Context, id string) error
}

type userRepository struct {
	db   database.DB
	log  logger.Logger
	crud CrudRepository[User]
}

func NewUser(db database.DB) UserRepository {
	return &userRepository{
		db:   db,
		log:  logger.New("userRepository"),
		crud: NewCrud[User](db, "email ASC"),
	}
}

func (r *userRepository) getDB(ctx context.Context) *gorm.DB {
	return contextDB(ctx, r.db)
}

func (r *userRepository) Create(ctx context.Context, user *User) error {
	return r.crud.Create(ctx, user)
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*User, error) {
	return r.crud.GetByID(ctx, id)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	log := r.log.Function("GetByEmail")

	var user User
	if err := r.getDB(ctx).First(&user, "email = ?", email).Error; err != nil {
		return nil, log.Err("failed to get user by email", storeError(err), "email", email)
	}

	return &user, nil
}

func (r *userRepository) List(ctx context.Context, page Pagination) ([]*User, int64, error) {
	return r.crud.List(ctx, page)
}

// Update loads the user, applies mutate and saves it inside one transaction.
// An error from mutate rolls the transaction back.
func (r *userRepository) Update(ctx context.Context, id string, mutate func(user *User) error) (*User, error) {
	log := r.log.Function("Update")

	var user User
	err := withTransaction(ctx, r.db, func(tx *gorm.DB) error {
		if err := tx.First(&user, "id = ?", id).Error; err != nil {
			return storeError(err)
		}
		if err := mutate(&user); err != nil {
			return err
		}
		if err := tx.Save(&user).Error; err != nil {
			return storeError(err)
		}
		return nil
	})
	if err != nil {
		return nil, log.Err("failed to update user", err, "id", id)
	}

	return &user, nil
}

func (r *userRepository) Delete(ctx context.Context, id string) error {
	log := r.log.Function("Delete")

	err := withTransaction(ctx, r.db, func(tx *gorm.DB) error {
		var user User
		if err := tx.First(&user, "id = ?", id).Error; err != nil {
			return storeError(err)
		}
		result := tx.Delete(&user)
		if result.Error != nil {
			return storeError(result.Error)
		}
		if result.RowsAffected == 0 {
			return errs.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return log.Err("failed to delete user", err, "id", id)
	}

	return nil
}
