package services

import (
	"context"
	"reasondesk/internal/database"
	"reasondesk/internal/logger"

	"gorm.io/gorm"
)

type txKey struct{}

// TransactionService runs a function inside a database transaction. The
// transaction travels in the context; repositories pick it up through
// GetTransaction so every write inside fn commits or rolls back together.
type TransactionService struct {
	db  database.DB
	log logger.Logger
}

func NewTransactionService(db database.DB) *TransactionService {
	return &TransactionService{
		db:  db,
		log: logger.New("TransactionService"),
	}
}

func (s *TransactionService) Execute(ctx context.Context, fn func(txCtx context.Context) error) error {
	log := s.log.Function("Execute")

	// Nested calls join the outer transaction.
	if _, ok := GetTransaction(ctx); ok {
		return fn(ctx)
	}

	err := s.db.SQLWithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
	if err != nil {
		log.Debug("transaction rolled back", "error", err)
		return err
	}

	return nil
}

func GetTransaction(ctx context.Context) (*gorm.DB, bool) {
	tx, ok := ctx.Value(txKey{}).(*gorm.DB)
	return tx, ok && tx != nil
}
