package tagController

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"reasondesk/internal/ai"
	"reasondesk/internal/database"
	"reasondesk/internal/database/dbtest"
	"reasondesk/internal/errs"
	. "reasondesk/internal/models"
	"reasondesk/internal/repositories"
	"reasondesk/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	db         database.DB
	stub       *ai.Stub
	controller *TagController
	tags       repositories.TagRepository
	records    repositories.CaseRecordRepository
}

func newFixture(t *testing.T, response string) fixture {
	t.Helper()

	db := dbtest.New(t)
	stub := ai.NewStub(16)
	stub.TextFunc = func(string) (string, error) { return response, nil }

	tags := repositories.NewTag(db)
	records := repositories.NewCaseRecord(db)

	return fixture{
		db:         db,
		stub:       stub,
		controller: New(tags, records, stub, services.NewTransactionService(db), nil),
		tags:       tags,
		records:    records,
	}
}

func (f fixture) seedRecord(t *testing.T) *CaseRecord {
	t.Helper()
	record := &CaseRecord{
		PatientID:      "P-1",
		Symptoms:       "腰痛",
		Treatment:      "温熱療法",
		Diagnosis:      "急性腰痛症",
		ApprovalStatus: ApprovalPending,
	}
	require.NoError(t, f.records.Create(context.Background(), record))
	return record
}

func (f fixture) tagCount(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.db.SQL.Model(&Tag{}).Count(&count).Error)
	return count
}

func TestParseSuggestions(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     []string
	}{
		{"plain lines", "腰痛\n温熱療法", []string{"腰痛", "温熱療法"}},
		{"bullets", "- 腰痛\n* 温熱療法\n・外傷性\n• 捻挫", []string{"腰痛", "温熱療法", "外傷性", "捻挫"}},
		{"numbering", "1. 腰痛\n2) 温熱療法\n(3) 外傷性\n4．捻挫", []string{"腰痛", "温熱療法", "外傷性", "捻挫"}},
		{"trailing punctuation", "腰痛。\n温熱療法、", []string{"腰痛", "温熱療法"}},
		{"case-sensitive duplicates", "Sprain\nsprain\nSprain", []string{"Sprain", "sprain"}},
		{"blank lines and spaces", "\n  腰痛  \n\n\t\n", []string{"腰痛"}},
		{"quoted and emphasised", "「腰痛」\n**温熱療法**", []string{"腰痛", "温熱療法"}},
		{"prose is dropped", "上記の症状および施術内容から当該施術は負傷の治癒に必要かつ相当なものと判断いたします", []string{}},
		{"empty", "", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseSuggestions(tt.response))
		})
	}
}

func TestTagController_AssignTagsToRecord(t *testing.T) {
	f := newFixture(t, "- 腰痛\n- 外傷性\n- 腰痛")
	ctx := context.Background()

	existing := &Tag{Name: "腰痛", Category: "symptom"}
	require.NoError(t, f.tags.Create(ctx, existing))

	record := f.seedRecord(t)
	names, err := f.controller.AssignTagsToRecord(ctx, record.ID, "腰痛がひどい")
	require.NoError(t, err)
	assert.Equal(t, []string{"腰痛", "外傷性"}, names)

	prompts := f.stub.Prompts()
	require.Len(t, prompts, 1)
	assert.True(t, strings.HasSuffix(prompts[0], "腰痛がひどい"))

	got, err := f.records.GetByID(ctx, record.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"腰痛", "外傷性"}, got.TagNames())

	for _, tag := range got.Tags {
		if tag.Name == "腰痛" {
			assert.Equal(t, existing.ID, tag.ID)
			assert.Equal(t, "symptom", tag.Category)
		} else {
			assert.Equal(t, TagCategoryAutoGenerated, tag.Category)
		}
	}

	t.Run("repeating does not grow the tag table", func(t *testing.T) {
		before := f.tagCount(t)
		_, err := f.controller.AssignTagsToRecord(ctx, record.ID, "腰痛がひどい")
		require.NoError(t, err)
		assert.Equal(t, before, f.tagCount(t))
	})
}

func TestTagController_AssignTagsToRecord_MissingRecord(t *testing.T) {
	f := newFixture(t, "腰痛")

	_, err := f.controller.AssignTagsToRecord(context.Background(), "missing", "腰痛")
	assert.ErrorIs(t, err, errs.ErrNotFound)
	assert.Empty(t, f.stub.Prompts())
}

func TestTagController_AssignTagsToRecord_ProviderFailure(t *testing.T) {
	f := newFixture(t, "")
	f.stub.TextFunc = func(string) (string, error) { return "", errors.New("quota exceeded") }
	f.controller.provider = ai.NewRetrying(f.stub, 2, time.Millisecond)

	record := f.seedRecord(t)
	_, err := f.controller.AssignTagsToRecord(context.Background(), record.ID, "腰痛")
	assert.ErrorIs(t, err, errs.ErrProviderUnavailable)
	assert.Contains(t, err.Error(), "quota exceeded")
	assert.Zero(t, f.tagCount(t))
}

// Concurrent reconciliation of the same new name must converge on one row.
func TestTagController_AssignTagsToRecord_Concurrent(t *testing.T) {
	f := newFixture(t, "外傷性")
	ctx := context.Background()

	first := f.seedRecord(t)
	second := f.seedRecord(t)

	var wg sync.WaitGroup
	for _, id := range []string{first.ID, second.ID} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := f.controller.AssignTagsToRecord(ctx, id, "転倒による打撲")
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()

	var count int64
	require.NoError(t, f.db.SQL.Model(&Tag{}).Where("name = ?", "外傷性").Count(&count).Error)
	assert.Equal(t, int64(1), count)

	for _, id := range []string{first.ID, second.ID} {
		record, err := f.records.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, []string{"外傷性"}, record.TagNames())
	}
}

func TestTagController_CategoryAndMerge(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	source, err := f.controller.CreateTag(ctx, CreateTagRequest{Name: "腰痛。", Category: "symptom"})
	require.NoError(t, err)
	target, err := f.controller.CreateTag(ctx, CreateTagRequest{Name: "腰痛", Category: "symptom"})
	require.NoError(t, err)

	record := f.seedRecord(t)
	require.NoError(t, f.records.AddTags(ctx, record.ID, []string{source.ID}))

	byCategory, err := f.controller.GetTagsByCategory(ctx, "symptom")
	require.NoError(t, err)
	assert.Len(t, byCategory, 2)

	require.NoError(t, f.controller.MergeTags(ctx, source.ID, target.ID))

	got, err := f.records.GetByID(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"腰痛"}, got.TagNames())

	usage, err := f.controller.GetTagUsage(ctx, target.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), usage)

	_, err = f.controller.GetTag(ctx, source.ID)
	assert.ErrorIs(t, err, errs.ErrNotFound)

	empty, err := f.controller.GetTagsByCategory(ctx, "nothing")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestTagController_MergeTags_SameTag(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	tag, err := f.controller.CreateTag(ctx, CreateTagRequest{Name: "腰痛", Category: "symptom"})
	require.NoError(t, err)
	record := f.seedRecord(t)
	require.NoError(t, f.records.AddTags(ctx, record.ID, []string{tag.ID}))

	err = f.controller.MergeTags(ctx, tag.ID, tag.ID)
	assert.ErrorIs(t, err, errs.ErrValidationFailed)

	_, err = f.controller.GetTag(ctx, tag.ID)
	require.NoError(t, err)

	got, err := f.records.GetByID(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"腰痛"}, got.TagNames())
}

func TestTagController_CRUDAndQueries(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	tag, err := f.controller.CreateTag(ctx, CreateTagRequest{Name: " 捻挫 ", Description: "sprain"})
	require.NoError(t, err)
	assert.Equal(t, "捻挫", tag.Name)

	category := "injury"
	updated, err := f.controller.UpdateTag(ctx, tag.ID, UpdateTagRequest{Category: &category})
	require.NoError(t, err)
	assert.Equal(t, "injury", updated.Category)

	_, err = f.controller.UpdateTag(ctx, "missing", UpdateTagRequest{Category: &category})
	assert.ErrorIs(t, err, errs.ErrNotFound)

	found, err := f.controller.SearchTags(ctx, "SPRAIN", 10)
	require.NoError(t, err)
	assert.Len(t, found, 1)

	page, err := f.controller.ListTags(ctx, NewPagination(1, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)

	popular, err := f.controller.GetPopularTags(ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, popular)

	_, err = f.controller.GetRelatedTags(ctx, "missing", 5)
	assert.ErrorIs(t, err, errs.ErrNotFound)

	related, err := f.controller.GetRelatedTags(ctx, tag.ID, 5)
	require.NoError(t, err)
	assert.Empty(t, related)

	require.NoError(t, f.controller.DeleteTag(ctx, tag.ID))
	assert.ErrorIs(t, f.controller.DeleteTag(ctx, tag.ID), errs.ErrNotFound)
}
