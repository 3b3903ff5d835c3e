package caseRecordController

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"reasondesk/config"
	"reasondesk/internal/ai"
	"reasondesk/internal/database"
	"reasondesk/internal/database/dbtest"
	"reasondesk/internal/errs"
	"reasondesk/internal/events"
	. "reasondesk/internal/models"
	"reasondesk/internal/repositories"
	"reasondesk/internal/services"

	tagController "reasondesk/internal/controllers/tags"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dimension = 256

type fixture struct {
	db         database.DB
	stub       *ai.Stub
	controller *CaseRecordController
	records    repositories.CaseRecordRepository
	tags       repositories.TagRepository
	events     *[]events.Event
}

// suggest answers prompts by keyword so tests control which tags a record
// receives.
func suggest(prompt string) (string, error) {
	switch {
	case strings.Contains(prompt, "施術理由書"):
		return "  理由書本文  ", nil
	case strings.Contains(prompt, "温熱"):
		return "- 温熱療法\n- 腰痛", nil
	case strings.Contains(prompt, "冷却"):
		return "- 冷却療法\n- 腰痛", nil
	}
	return "- 外傷性", nil
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	db := dbtest.New(t)
	stub := ai.NewStub(dimension)
	stub.TextFunc = suggest

	records := repositories.NewCaseRecord(db)
	tags := repositories.NewTag(db)
	transactions := services.NewTransactionService(db)

	bus := events.New(nil, config.Config{})
	published := &[]events.Event{}
	bus.Subscribe(events.ChannelCaseRecord, func(e events.Event) { *published = append(*published, e) })

	tc := tagController.New(tags, records, stub, transactions, bus)
	controller := New(records, tags, tc, stub, transactions, services.NewCacheInvalidationService(db), bus)

	return fixture{
		db:         db,
		stub:       stub,
		controller: controller,
		records:    records,
		tags:       tags,
		events:     published,
	}
}

func ptr[T any](v T) *T {
	return &v
}

func createRequest(symptoms, treatment, diagnosis string) CreateCaseRecordRequest {
	return CreateCaseRecordRequest{
		PatientID:     "P-100",
		PatientAge:    35,
		PatientGender: "f",
		BodyPart:      "腰部",
		Symptoms:      symptoms,
		Treatment:     treatment,
		Diagnosis:     diagnosis,
	}
}

func TestCaseRecordController_CreateRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	record, err := f.controller.CreateRecord(ctx, createRequest("腰痛", "温熱療法", "急性腰痛症"), "user-1")
	require.NoError(t, err)

	assert.NotEmpty(t, record.ID)
	assert.Len(t, record.Embedding, dimension)
	assert.Equal(t, ApprovalPending, record.ApprovalStatus)
	assert.Equal(t, "F", record.PatientGender)
	assert.Equal(t, "user-1", record.SubmittedBy)

	embeds := f.stub.EmbedInputs()
	require.Len(t, embeds, 1)
	assert.Equal(t, "腰痛 温熱療法 急性腰痛症", embeds[0])

	prompts := f.stub.Prompts()
	require.Len(t, prompts, 1)
	assert.True(t, strings.HasSuffix(prompts[0], "\n\n腰痛"), "tag prompt should end with the normalized symptoms")

	assert.Equal(t, []string{"外傷性"}, record.TagNames())
	assert.Equal(t, TagCategoryAutoGenerated, record.Tags[0].Category)

	require.Len(t, *f.events, 1)
	assert.Equal(t, "case_record.created", (*f.events)[0].Type)
}

func TestCaseRecordController_CreateRecord_Normalizes(t *testing.T) {
	f := newFixture(t)

	record, err := f.controller.CreateRecord(context.Background(),
		createRequest("  腰痛！！　 （右側）  ", "温熱\t\t療法", "急性腰痛症。"), "")
	require.NoError(t, err)

	assert.Equal(t, "腰痛 右側", record.Symptoms)
	assert.Equal(t, "温熱 療法", record.Treatment)
	assert.Equal(t, "急性腰痛症", record.Diagnosis)
}

func TestCaseRecordController_CreateRecord_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.controller.CreateRecord(ctx, createRequest("", "温熱療法", "急性腰痛症"), "")
	var validation errs.ValidationErrors
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "symptoms", validation[0].Field)

	_, err = f.controller.CreateRecord(ctx, createRequest("！！！", "温熱療法", "急性腰痛症"), "")
	assert.ErrorIs(t, err, errs.ErrValidationFailed)

	assert.Empty(t, f.stub.EmbedInputs())
}

func TestCaseRecordController_CreateRecord_ProviderFailure(t *testing.T) {
	f := newFixture(t)
	f.stub.TextFunc = func(string) (string, error) { return "", errors.New("upstream 503") }
	f.controller.provider = ai.NewRetrying(f.stub, 2, time.Millisecond)
	f.controller.tagController = tagController.New(f.tags, f.records, f.controller.provider, f.controller.transactionService, nil)

	_, err := f.controller.CreateRecord(context.Background(), createRequest("腰痛", "温熱療法", "急性腰痛症"), "")
	assert.ErrorIs(t, err, errs.ErrProviderUnavailable)

	_, total, err := f.records.List(context.Background(), NewPagination(1, 10))
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestCaseRecordController_UpdateRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	record, err := f.controller.CreateRecord(ctx, createRequest("腰痛 温熱希望", "温熱療法", "急性腰痛症"), "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"温熱療法", "腰痛"}, record.TagNames())

	symptoms := "腰痛 冷却希望"
	updated, err := f.controller.UpdateRecord(ctx, record.ID, UpdateCaseRecordRequest{Symptoms: &symptoms}, "")
	require.NoError(t, err)

	assert.Equal(t, "腰痛 冷却希望", updated.Symptoms)
	assert.Equal(t, "温熱療法", updated.Treatment)
	assert.ElementsMatch(t, []string{"冷却療法", "腰痛"}, updated.TagNames())
	assert.NotEqual(t, record.Embedding, updated.Embedding)
	assert.Len(t, f.stub.EmbedInputs(), 2)

	_, err = f.controller.UpdateRecord(ctx, "missing", UpdateCaseRecordRequest{Symptoms: &symptoms}, "")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestCaseRecordController_UpdateRecord_KeepsApprovalMadeDuringEdit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	record, err := f.controller.CreateRecord(ctx, createRequest("腰痛 温熱希望", "温熱療法", "急性腰痛症"), "")
	require.NoError(t, err)

	// A reviewer approves while the edit waits on the provider.
	f.stub.TextFunc = func(prompt string) (string, error) {
		if _, err := f.controller.UpdateApprovalStatus(ctx, record.ID, ApprovalApproved, "reviewer"); err != nil {
			return "", err
		}
		return suggest(prompt)
	}

	symptoms := "腰痛 冷却希望"
	updated, err := f.controller.UpdateRecord(ctx, record.ID, UpdateCaseRecordRequest{Symptoms: &symptoms}, "")
	require.NoError(t, err)
	assert.Equal(t, "腰痛 冷却希望", updated.Symptoms)
	assert.Equal(t, ApprovalApproved, updated.ApprovalStatus)

	stored, err := f.records.GetByID(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, ApprovalApproved, stored.ApprovalStatus)
}

func TestCaseRecordController_DeleteAndGet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	record, err := f.controller.CreateRecord(ctx, createRequest("腰痛", "温熱療法", "急性腰痛症"), "")
	require.NoError(t, err)

	got, err := f.controller.GetRecordByID(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, record.ID, got.ID)

	require.NoError(t, f.controller.DeleteRecord(ctx, record.ID, ""))

	_, err = f.controller.GetRecordByID(ctx, record.ID)
	assert.ErrorIs(t, err, errs.ErrNotFound)
	assert.ErrorIs(t, f.controller.DeleteRecord(ctx, record.ID, ""), errs.ErrNotFound)
}

func TestCaseRecordController_SearchRecords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	warm, err := f.controller.CreateRecord(ctx, createRequest("腰痛 温熱希望", "温熱療法", "急性腰痛症"), "")
	require.NoError(t, err)
	cold, err := f.controller.CreateRecord(ctx, createRequest("腰痛 冷却希望", "冷却療法", "急性腰痛症"), "")
	require.NoError(t, err)
	other, err := f.controller.CreateRecord(ctx, createRequest("肩こり", "マッサージ", "頸肩腕症候群"), "")
	require.NoError(t, err)

	t.Run("query with tag filter", func(t *testing.T) {
		embedsBefore := len(f.stub.EmbedInputs())

		result, err := f.controller.SearchRecords(ctx, CaseRecordSearchQuery{
			Query:     "腰痛",
			Tags:      []string{"温熱療法"},
			Threshold: ptr(0.01),
		})
		require.NoError(t, err)

		embeds := f.stub.EmbedInputs()
		require.Len(t, embeds, embedsBefore+1)
		assert.Equal(t, "腰痛", embeds[len(embeds)-1])

		require.Len(t, result.Items, 1)
		assert.Equal(t, warm.ID, result.Items[0].ID)
		for _, item := range result.Items {
			assert.Contains(t, item.TagNames(), "温熱療法")
		}
	})

	t.Run("query without tags ranks by similarity", func(t *testing.T) {
		result, err := f.controller.SearchRecords(ctx, CaseRecordSearchQuery{Query: "腰痛 冷却希望", Threshold: ptr(0.01), Limit: 2})
		require.NoError(t, err)
		require.NotEmpty(t, result.Items)
		assert.LessOrEqual(t, len(result.Items), 2)
		assert.Equal(t, cold.ID, result.Items[0].ID)
		for i := 1; i < len(result.Items); i++ {
			assert.GreaterOrEqual(t, result.Items[i-1].Similarity, result.Items[i].Similarity)
		}
	})

	t.Run("tags only", func(t *testing.T) {
		result, err := f.controller.SearchRecords(ctx, CaseRecordSearchQuery{Tags: []string{"冷却療法", "外傷性"}})
		require.NoError(t, err)
		assert.Equal(t, int64(2), result.Total)
		ids := []string{result.Items[0].ID, result.Items[1].ID}
		assert.ElementsMatch(t, []string{cold.ID, other.ID}, ids)

		result, err = f.controller.SearchRecords(ctx, CaseRecordSearchQuery{Tags: []string{"存在しない"}})
		require.NoError(t, err)
		assert.Empty(t, result.Items)
	})

	t.Run("keyword", func(t *testing.T) {
		result, err := f.controller.SearchRecords(ctx, CaseRecordSearchQuery{Keyword: "肩"})
		require.NoError(t, err)
		require.Len(t, result.Items, 1)
		assert.Equal(t, other.ID, result.Items[0].ID)
	})

	t.Run("plain listing", func(t *testing.T) {
		result, err := f.controller.SearchRecords(ctx, CaseRecordSearchQuery{Page: 1, Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, int64(3), result.Total)
		assert.Len(t, result.Items, 2)
		assert.Equal(t, 1, result.Page)
		assert.Equal(t, 2, result.Limit)
		assert.Equal(t, warm.ID, result.Items[0].ID)
	})

	t.Run("zero threshold returns every embedded record", func(t *testing.T) {
		result, err := f.controller.SearchRecords(ctx, CaseRecordSearchQuery{Query: "腰痛", Threshold: ptr(0.0)})
		require.NoError(t, err)
		assert.Equal(t, int64(3), result.Total)
		assert.Len(t, result.Items, 3)
	})

	t.Run("invalid threshold", func(t *testing.T) {
		_, err := f.controller.SearchRecords(ctx, CaseRecordSearchQuery{Query: "腰痛", Threshold: ptr(2.0)})
		assert.ErrorIs(t, err, errs.ErrValidationFailed)
	})
}

func TestCaseRecordController_FindSimilar(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	embedsBefore := len(f.stub.EmbedInputs())
	_, err := f.controller.FindSimilar(ctx, "missing", 5)
	assert.ErrorIs(t, err, errs.ErrNotFound)
	assert.Len(t, f.stub.EmbedInputs(), embedsBefore)

	source, err := f.controller.CreateRecord(ctx, createRequest("腰痛", "温熱療法", "急性腰痛症"), "")
	require.NoError(t, err)
	_, err = f.controller.CreateRecord(ctx, createRequest("腰痛 慢性", "温熱療法", "慢性腰痛症"), "")
	require.NoError(t, err)

	similar, err := f.controller.FindSimilar(ctx, source.ID, 0)
	require.NoError(t, err)
	require.Len(t, similar, 1)
	assert.NotEqual(t, source.ID, similar[0].ID)
}

func TestCaseRecordController_UpdateApprovalStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	record, err := f.controller.CreateRecord(ctx, createRequest("腰痛", "温熱療法", "急性腰痛症"), "")
	require.NoError(t, err)

	rejected, err := f.controller.UpdateApprovalStatus(ctx, record.ID, ApprovalRejected, "reviewer")
	require.NoError(t, err)
	assert.Equal(t, ApprovalRejected, rejected.ApprovalStatus)

	reopened, err := f.controller.UpdateApprovalStatus(ctx, record.ID, ApprovalPending, "reviewer")
	require.NoError(t, err)
	assert.Equal(t, ApprovalPending, reopened.ApprovalStatus)

	approved, err := f.controller.UpdateApprovalStatus(ctx, record.ID, ApprovalApproved, "reviewer")
	require.NoError(t, err)
	assert.Equal(t, ApprovalApproved, approved.ApprovalStatus)

	same, err := f.controller.UpdateApprovalStatus(ctx, record.ID, ApprovalApproved, "reviewer")
	require.NoError(t, err)
	assert.Equal(t, ApprovalApproved, same.ApprovalStatus)

	_, err = f.controller.UpdateApprovalStatus(ctx, record.ID, ApprovalPending, "reviewer")
	assert.ErrorIs(t, err, errs.ErrInvalidTransition)

	_, err = f.controller.UpdateApprovalStatus(ctx, record.ID, ApprovalStatus("archived"), "reviewer")
	assert.ErrorIs(t, err, errs.ErrValidationFailed)

	_, err = f.controller.UpdateApprovalStatus(ctx, "missing", ApprovalApproved, "reviewer")
	assert.ErrorIs(t, err, errs.ErrNotFound)

	stored, err := f.records.GetByID(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, ApprovalApproved, stored.ApprovalStatus)
	assert.Len(t, stored.Embedding, dimension)
}

// racingRecords lets another reviewer approve the record between the
// controller's read and its status write.
type racingRecords struct {
	repositories.CaseRecordRepository
}

func (r racingRecords) UpdateStatus(ctx context.Context, id string, from, to ApprovalStatus) error {
	if err := r.CaseRecordRepository.UpdateStatus(ctx, id, ApprovalPending, ApprovalApproved); err != nil {
		return err
	}
	return r.CaseRecordRepository.UpdateStatus(ctx, id, from, to)
}

func TestCaseRecordController_UpdateApprovalStatus_ConcurrentReview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	record, err := f.controller.CreateRecord(ctx, createRequest("腰痛", "温熱療法", "急性腰痛症"), "")
	require.NoError(t, err)

	f.controller.caseRecordRepo = racingRecords{f.records}

	_, err = f.controller.UpdateApprovalStatus(ctx, record.ID, ApprovalRejected, "reviewer-2")
	assert.ErrorIs(t, err, errs.ErrInvalidTransition)

	stored, err := f.records.GetByID(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, ApprovalApproved, stored.ApprovalStatus)
}

func TestCaseRecordController_AddAndRemoveTags(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	record, err := f.controller.CreateRecord(ctx, createRequest("腰痛", "温熱療法", "急性腰痛症"), "")
	require.NoError(t, err)

	manual := &Tag{Name: "労災", Category: "cause"}
	require.NoError(t, f.tags.Create(ctx, manual))

	withManual, err := f.controller.AddTags(ctx, record.ID, []string{manual.ID, manual.ID})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"外傷性", "労災"}, withManual.TagNames())

	_, err = f.controller.AddTags(ctx, record.ID, []string{"missing"})
	assert.ErrorIs(t, err, errs.ErrNotFound)

	_, err = f.controller.AddTags(ctx, "missing", []string{manual.ID})
	assert.ErrorIs(t, err, errs.ErrNotFound)

	without, err := f.controller.RemoveTags(ctx, record.ID, []string{manual.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{"外傷性"}, without.TagNames())
}

func TestCaseRecordController_DraftReasonLetter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	record, err := f.controller.CreateRecord(ctx, createRequest("腰痛", "温熱療法", "急性腰痛症"), "")
	require.NoError(t, err)

	letter, err := f.controller.DraftReasonLetter(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, record.ID, letter.CaseRecordID)
	assert.Equal(t, "理由書本文", letter.Content)

	prompts := f.stub.Prompts()
	last := prompts[len(prompts)-1]
	assert.Contains(t, last, "症状: 腰痛")
	assert.Contains(t, last, "関連タグ: 外傷性")

	_, err = f.controller.DraftReasonLetter(ctx, "missing")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}
