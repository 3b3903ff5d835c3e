package crudController

import (
	"context"
	"fmt"
	"reasondesk/internal/logger"
	. "reasondesk/internal/models"
	"reasondesk/internal/repositories"
)

// Request is a create/update payload for T.
type Request[T any] interface {
	Validate() error
	ApplyTo(entity *T)
}

// CrudController serves the simple aggregates: validate, apply, persist.
type CrudController[T any, R Request[T]] struct {
	repo  repositories.CrudRepository[T]
	check func(ctx context.Context, req R) error
	log   logger.Logger
}

func New[T any, R Request[T]](repo repositories.CrudRepository[T]) *CrudController[T, R] {
	var zero T
	return &CrudController[T, R]{
		repo: repo,
		log:  logger.New(fmt.Sprintf("CrudController[%T]", zero)),
	}
}

// WithCheck installs a hook run after validation on create and update,
// typically to verify referenced rows exist.
func (cc *CrudController[T, R]) WithCheck(check func(ctx context.Context, req R) error) *CrudController[T, R] {
	cc.check = check
	return cc
}

func (cc *CrudController[T, R]) prepare(ctx context.Context, req R) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if cc.check != nil {
		return cc.check(ctx, req)
	}
	return nil
}

func (cc *CrudController[T, R]) Create(ctx context.Context, req R) (*T, error) {
	log := cc.log.Function("Create")

	if err := cc.prepare(ctx, req); err != nil {
		return nil, log.Err("invalid create request", err)
	}

	entity := new(T)
	req.ApplyTo(entity)
	if err := cc.repo.Create(ctx, entity); err != nil {
		return nil, log.Err("failed to create", err)
	}

	return entity, nil
}

func (cc *CrudController[T, R]) Get(ctx context.Context, id string) (*T, error) {
	log := cc.log.Function("Get")

	entity, err := cc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, log.Err("failed to get", err, "id", id)
	}

	return entity, nil
}

func (cc *CrudController[T, R]) Update(ctx context.Context, id string, req R) (*T, error) {
	log := cc.log.Function("Update")

	if err := cc.prepare(ctx, req); err != nil {
		return nil, log.Err("invalid update request", err, "id", id)
	}

	entity, err := cc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, log.Err("failed to get", err, "id", id)
	}

	req.ApplyTo(entity)
	if err := cc.repo.Update(ctx, entity); err != nil {
		return nil, log.Err("failed to update", err, "id", id)
	}

	return entity, nil
}

func (cc *CrudController[T, R]) Delete(ctx context.Context, id string) error {
	log := cc.log.Function("Delete")

	if err := cc.repo.Delete(ctx, id); err != nil {
		return log.Err("failed to delete", err, "id", id)
	}

	return nil
}

func (cc *CrudController[T, R]) List(ctx context.Context, page Pagination) (PaginatedResult[*T], error) {
	log := cc.log.Function("List")

	page = NewPagination(page.Page, page.Limit)
	items, total, err := cc.repo.List(ctx, page)
	if err != nil {
		return PaginatedResult[*T]{}, log.Err("failed to list", err)
	}

	return NewPaginatedResult(items, total, page), nil
}

type (
	ClientController     = CrudController[Client, ClientRequest]
	ExhibitionController = CrudController[Exhibition, ExhibitionRequest]
	MeetingController    = CrudController[Meeting, MeetingRequest]
)

func NewClients(clients repositories.CrudRepository[Client]) *ClientController {
	return New[Client, ClientRequest](clients)
}

func NewExhibitions(exhibitions repositories.CrudRepository[Exhibition]) *ExhibitionController {
	return New[Exhibition, ExhibitionRequest](exhibitions)
}

// NewMeetings rejects meetings whose client or exhibition does not exist.
func NewMeetings(
	meetings repositories.CrudRepository[Meeting],
	clients repositories.CrudRepository[Client],
	exhibitions repositories.CrudRepository[Exhibition],
) *MeetingController {
	return New[Meeting, MeetingRequest](meetings).WithCheck(func(ctx context.Context, req MeetingRequest) error {
		if _, err := clients.GetByID(ctx, req.ClientID); err != nil {
			return fmt.Errorf("client %s: %w", req.ClientID, err)
		}
		if _, err := exhibitions.GetByID(ctx, req.ExhibitionID); err != nil {
			return fmt.Errorf("exhibition %s: %w", req.ExhibitionID, err)
		}
		return nil
	})
}
