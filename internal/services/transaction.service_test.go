package services

import (
	"context"
	"errors"
	"testing"

	"reasondesk/internal/database"
	"reasondesk/internal/database/dbtest"
	. "reasondesk/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionService_CommitsOnSuccess(t *testing.T) {
	db := dbtest.New(t)
	svc := NewTransactionService(db)

	err := svc.Execute(context.Background(), func(txCtx context.Context) error {
		tx, ok := GetTransaction(txCtx)
		require.True(t, ok)
		return tx.Create(&Tag{Name: "committed"}).Error
	})
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.SQL.Model(&Tag{}).Where("name = ?", "committed").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestTransactionService_RollsBackOnError(t *testing.T) {
	db := dbtest.New(t)
	svc := NewTransactionService(db)
	boom := errors.New("boom")

	err := svc.Execute(context.Background(), func(txCtx context.Context) error {
		tx, _ := GetTransaction(txCtx)
		if err := tx.Create(&Tag{Name: "rolled-back"}).Error; err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var count int64
	require.NoError(t, db.SQL.Model(&Tag{}).Where("name = ?", "rolled-back").Count(&count).Error)
	assert.Zero(t, count)
}

func TestTransactionService_NestedJoinsOuter(t *testing.T) {
	db := dbtest.New(t)
	svc := NewTransactionService(db)

	err := svc.Execute(context.Background(), func(outer context.Context) error {
		outerTx, _ := GetTransaction(outer)
		return svc.Execute(outer, func(inner context.Context) error {
			innerTx, ok := GetTransaction(inner)
			assert.True(t, ok)
			assert.Same(t, outerTx, innerTx)
			return nil
		})
	})
	assert.NoError(t, err)
}

func TestGetTransaction_Absent(t *testing.T) {
	_, ok := GetTransaction(context.Background())
	assert.False(t, ok)
}

func TestCacheInvalidationService_DisabledIsNoop(t *testing.T) {
	svc := NewCacheInvalidationService(database.DB{})

	assert.False(t, svc.Enabled())
	assert.NoError(t, svc.InvalidateStats(context.Background()))

	_, err := svc.StatsKey(context.Background(), "approval")
	assert.Error(t, err)

	var nilSvc *CacheInvalidationService
	assert.NoError(t, nilSvc.InvalidateStats(context.Background()))
}
