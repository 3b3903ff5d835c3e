package repositories

import (
	"context"
	"errors"
	"reasondesk/internal/database"
	"reasondesk/internal/errs"
	"reasondesk/internal/services"
	"strings"

	"gorm.io/gorm"
)

// storeError maps gorm errors onto the error taxonomy.
func storeError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errs.ErrNotFound
	}
	return errs.Persistence(err)
}

func contextDB(ctx context.Context, db database.DB) *gorm.DB {
	if tx, ok := services.GetTransaction(ctx); ok {
		return tx
	}
	return db.SQLWithContext(ctx)
}

// withTransaction runs fn in the transaction carried by ctx, or opens one.
func withTransaction(ctx context.Context, db database.DB, fn func(tx *gorm.DB) error) error {
	if tx, ok := services.GetTransaction(ctx); ok {
		return fn(tx)
	}
	return db.SQLWithContext(ctx).Transaction(fn)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern wraps term for a substring match. Callers pair it with
// ESCAPE '\' so wildcards in term match literally.
func likePattern(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
