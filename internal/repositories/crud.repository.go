package repositories

import (
	"context"
	"fmt"
	"reasondesk/internal/database"
	"reasondesk/internal/errs"
	"reasondesk/internal/logger"
	. "reasondesk/internal/models"

	"gorm.io/gorm"
)

// CrudRepository is the plain persistence surface shared by the simple
// aggregates (clients, exhibitions, meetings).
type CrudRepository[T any] interface {
	Create(ctx context.Context, entity *T) error
	GetByID(ctx context.Context, id string) (*T, error)
	Update(ctx context.Context, entity *T) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, page Pagination) ([]*T, int64, error)
}

type crudRepository[T any] struct {
	db    database.DB
	log   logger.Logger
	order string
}

// NewCrud builds a CrudRepository for T. order is the list ordering, e.g.
// "created_at DESC".
func NewCrud[T any](db database.DB, order string) CrudRepository[T] {
	if order == "" {
		order = "created_at DESC"
	}
	var zero T
	return &crudRepository[T]{
		db:    db,
		log:   logger.New(fmt.Sprintf("crudRepository[%T]", zero)),
		order: order,
	}
}

func (r *crudRepository[T]) getDB(ctx context.Context) *gorm.DB {
	return contextDB(ctx, r.db)
}

func (r *crudRepository[T]) Create(ctx context.Context, entity *T) error {
	log := r.log.Function("Create")

	if err := r.getDB(ctx).Create(entity).Error; err != nil {
		return log.Err("failed to create entity", storeError(err))
	}

	return nil
}

func (r *crudRepository[T]) GetByID(ctx context.Context, id string) (*T, error) {
	log := r.log.Function("GetByID")

	var entity T
	if err := r.getDB(ctx).First(&entity, "id = ?", id).Error; err != nil {
		return nil, log.Err("failed to get entity", storeError(err), "id", id)
	}

	return &entity, nil
}

// Update writes every column of entity onto its row. entity must carry its
// primary key, normally because it was loaded with GetByID.
func (r *crudRepository[T]) Update(ctx context.Context, entity *T) error {
	log := r.log.Function("Update")

	result := r.getDB(ctx).
		Model(entity).
		Select("*").
		Omit("id", "created_at", "deleted_at").
		Updates(entity)
	if result.Error != nil {
		return log.Err("failed to update entity", storeError(result.Error))
	}
	if result.RowsAffected == 0 {
		return log.Err("failed to update entity", errs.ErrNotFound)
	}

	return nil
}

func (r *crudRepository[T]) Delete(ctx context.Context, id string) error {
	log := r.log.Function("Delete")

	result := r.getDB(ctx).Delete(new(T), "id = ?", id)
	if result.Error != nil {
		return log.Err("failed to delete entity", storeError(result.Error), "id", id)
	}
	if result.RowsAffected == 0 {
		return log.Err("failed to delete entity", errs.ErrNotFound, "id", id)
	}

	return nil
}

func (r *crudRepository[T]) List(ctx context.Context, page Pagination) ([]*T, int64, error) {
	log := r.log.Function("List")

	var total int64
	if err := r.getDB(ctx).Model(new(T)).Count(&total).Error; err != nil {
		return nil, 0, log.Err("failed to count entities", storeError(err))
	}

	var entities []*T
	err := r.getDB(ctx).Order(r.order).Offset(page.Offset()).Limit(page.Limit).Find(&entities).Error
	if err != nil {
		return nil, 0, log.Err("failed to list entities", storeError(err))
	}

	return entities, total, nil
}
