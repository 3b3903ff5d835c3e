package database

import (
	"context"
	"path/filepath"
	"reasondesk/config"
	"reasondesk/internal/logger"
	. "reasondesk/internal/models"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestNew_SQLiteWithoutCache(t *testing.T) {
	testConfig := config.Config{
		DatabaseDriver: "sqlite",
		DatabaseDbPath: ":memory:",
	}

	db, err := New(testConfig)
	require.NoError(t, err)
	assert.NotNil(t, db.SQL)
	assert.False(t, db.HasCache())

	assert.NoError(t, db.Close())
}

func TestNew_InvalidConfig(t *testing.T) {
	invalidConfig := config.Config{
		DatabaseDriver: "sqlite",
		DatabaseDbPath: "",
	}

	_, err := New(invalidConfig)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "database path is empty")
}

func TestInitializeSQLiteDB_Success(t *testing.T) {
	db := &DB{
		log: logger.New("test"),
	}

	tempDir := t.TempDir()
	dbPath := filepath.Join(tempDir, "nested", "test.db")

	testConfig := config.Config{
		DatabaseDbPath: dbPath,
	}

	err := db.initializeSQLiteDB(&gorm.Config{}, testConfig)
	require.NoError(t, err)
	assert.NotNil(t, db.SQL)
	assert.FileExists(t, dbPath)

	require.NoError(t, db.Close())
}

func TestInitializeSQLiteDB_EmptyPath(t *testing.T) {
	db := &DB{
		log: logger.New("test"),
	}

	err := db.initializeSQLiteDB(&gorm.Config{}, config.Config{DatabaseDbPath: ""})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "database path is empty")
}

func TestClose_WithNilSQL(t *testing.T) {
	db := &DB{
		log: logger.New("test"),
		SQL: nil,
	}

	err := db.Close()
	assert.NoError(t, err)
}

func newMigratedDB(t *testing.T) DB {
	t.Helper()

	db, err := New(config.Config{DatabaseDriver: "sqlite", DatabaseDbPath: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db.SQL))
	t.Cleanup(func() { _ = db.Close() })

	return db
}

func TestWrap(t *testing.T) {
	opened := newMigratedDB(t)

	db := Wrap(opened.SQL)
	assert.Same(t, opened.SQL, db.SQL)
	assert.False(t, db.HasCache())
	assert.NoError(t, db.SQL.Create(&Tag{Name: "腰痛"}).Error)
}

func TestSQLWithContext(t *testing.T) {
	db := newMigratedDB(t)

	gormDB := db.SQLWithContext(context.Background())

	assert.NotNil(t, gormDB)
	assert.NotEqual(t, db.SQL, gormDB)
}

func TestAutoMigrate_CreatesTables(t *testing.T) {
	db := newMigratedDB(t)

	for _, table := range []string{
		"case_records",
		"tags",
		"case_record_tags",
		"feedbacks",
		"clients",
		"exhibitions",
		"meetings",
		"users",
	} {
		assert.True(t, db.SQL.Migrator().HasTable(table), "missing table %s", table)
	}
}

func TestBaseModels_AssignIDs(t *testing.T) {
	db := newMigratedDB(t)

	tag := &Tag{Name: "腰痛", Category: "symptom"}
	require.NoError(t, db.SQL.Create(tag).Error)
	assert.NotEmpty(t, tag.ID)

	client := &Client{Name: "Acme"}
	require.NoError(t, db.SQL.Create(client).Error)
	assert.NotEmpty(t, client.ID)

	require.NoError(t, db.SQL.Delete(client).Error)

	var visible int64
	require.NoError(t, db.SQL.Model(&Client{}).Count(&visible).Error)
	assert.Zero(t, visible, "soft deleted client should be hidden")

	var all int64
	require.NoError(t, db.SQL.Unscoped().Model(&Client{}).Count(&all).Error)
	assert.Equal(t, int64(1), all)
}

func TestInitializeCacheDB_MissingConfig(t *testing.T) {
	db := &DB{
		log: logger.New("test"),
	}

	err := db.initializeCacheDB(config.Config{DatabaseCacheAddress: "", DatabaseCachePort: 6379})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "address or port is empty")

	err = db.initializeCacheDB(config.Config{DatabaseCacheAddress: "localhost", DatabaseCachePort: 0})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "address or port is empty")
}

func TestCacheBuilder_NilClient(t *testing.T) {
	builder := NewCacheBuilder(nil, "stats:approval").
		WithStruct(map[string]int{"total": 1}).
		WithTTL(time.Minute).
		WithContext(context.Background())

	assert.Equal(t, "stats:approval", builder.Key())
	assert.ErrorIs(t, builder.Set(), errNilCache)

	var dest map[string]int
	found, err := builder.Get(&dest)
	assert.False(t, found)
	assert.ErrorIs(t, err, errNilCache)

	assert.ErrorIs(t, builder.Delete(), errNilCache)
}

func TestCacheBuilder_RoundTrip(t *testing.T) {
	t.Skip("Cache builder tests require real valkey client - tested in integration tests")
}
