package caseRecordController

import (
	"context"
	"fmt"
	"reasondesk/internal/ai"
	"reasondesk/internal/errs"
	"reasondesk/internal/events"
	"reasondesk/internal/logger"
	. "reasondesk/internal/models"
	"reasondesk/internal/repositories"
	"reasondesk/internal/services"
	"reasondesk/internal/utils"
	"strings"

	tagController "reasondesk/internal/controllers/tags"
)

const reasonLetterPrompt = `あなたは柔道整復師の療養費支給申請を支援するアシスタントです。
以下の施術記録をもとに、保険者に提出する施術理由書の本文を作成してください。
負傷部位、症状、施術内容、判断の根拠を簡潔かつ丁寧な文体でまとめてください。

負傷部位: %s
患者年齢: %d
患者性別: %s
症状: %s
施術内容: %s
所見・判断: %s
関連タグ: %s`

type CaseRecordController struct {
	caseRecordRepo     repositories.CaseRecordRepository
	tagRepo            repositories.TagRepository
	tagController      *tagController.TagController
	provider           ai.Provider
	transactionService *services.TransactionService
	cacheInvalidation  *services.CacheInvalidationService
	eventBus           *events.EventBus
	log                logger.Logger
}

func New(
	caseRecordRepo repositories.CaseRecordRepository,
	tagRepo repositories.TagRepository,
	tagController *tagController.TagController,
	provider ai.Provider,
	transactionService *services.TransactionService,
	cacheInvalidation *services.CacheInvalidationService,
	eventBus *events.EventBus,
) *CaseRecordController {
	return &CaseRecordController{
		caseRecordRepo:     caseRecordRepo,
		tagRepo:            tagRepo,
		tagController:      tagController,
		provider:           provider,
		transactionService: transactionService,
		cacheInvalidation:  cacheInvalidation,
		eventBus:           eventBus,
		log:                logger.New("CaseRecordController"),
	}
}

// normalize sanitizes the free-text fields and the patient codes in place and
// checks that the clinical text survived sanitizing.
func normalize(record *CaseRecord) error {
	record.PatientID = strings.TrimSpace(record.PatientID)
	record.PatientGender = utils.NormalizeGender(record.PatientGender)
	record.BodyPart = utils.SanitizeText(record.BodyPart)
	record.Symptoms = utils.SanitizeText(record.Symptoms)
	record.Treatment = utils.SanitizeText(record.Treatment)
	record.Diagnosis = utils.SanitizeText(record.Diagnosis)

	var v errs.ValidationErrors
	if record.Symptoms == "" {
		v.Add("symptoms", "is empty after normalization")
	}
	if record.Treatment == "" {
		v.Add("treatment", "is empty after normalization")
	}
	if record.Diagnosis == "" {
		v.Add("diagnosis", "is empty after normalization")
	}
	return v.OrNil()
}

// derive computes the embedding and the suggested tag names for a
// normalized record. Both hit the provider; nothing is written.
func (cc *CaseRecordController) derive(ctx context.Context, record *CaseRecord) ([]string, error) {
	log := cc.log.Function("derive")

	vector, err := cc.provider.EmbedText(ctx, record.EmbeddingText())
	if err != nil {
		return nil, log.Err("failed to generate embedding", err)
	}
	if len(vector) != cc.provider.Dimension() {
		return nil, log.Err("embedding has unexpected dimension", errs.ErrProviderUnavailable,
			"got", len(vector), "want", cc.provider.Dimension())
	}
	record.Embedding = vector

	names, err := cc.tagController.SuggestTags(ctx, record.Symptoms)
	if err != nil {
		return nil, log.Err("failed to derive tags", err)
	}

	return names, nil
}

func (cc *CaseRecordController) CreateRecord(ctx context.Context, req CreateCaseRecordRequest, userID string) (*CaseRecord, error) {
	log := cc.log.Function("CreateRecord")

	if err := req.Validate(); err != nil {
		return nil, log.Err("invalid create request", err)
	}

	record := &CaseRecord{
		PatientID:      req.PatientID,
		PatientAge:     int(req.PatientAge),
		PatientGender:  req.PatientGender,
		BodyPart:       req.BodyPart,
		Symptoms:       req.Symptoms,
		Treatment:      req.Treatment,
		Diagnosis:      req.Diagnosis,
		ApprovalStatus: ApprovalPending,
		SubmittedBy:    userID,
	}

	if err := normalize(record); err != nil {
		return nil, log.Err("invalid case record", err)
	}

	names, err := cc.derive(ctx, record)
	if err != nil {
		return nil, log.Err("failed to derive case record data", err)
	}

	err = cc.transactionService.Execute(ctx, func(txCtx context.Context) error {
		if err := cc.caseRecordRepo.Create(txCtx, record); err != nil {
			return err
		}
		tags, err := cc.tagController.ResolveTags(txCtx, names)
		if err != nil {
			return err
		}
		return cc.caseRecordRepo.AddTags(txCtx, record.ID, tagIDs(tags))
	})
	if err != nil {
		return nil, log.Err("failed to persist case record", err)
	}

	created, err := cc.caseRecordRepo.GetByID(ctx, record.ID)
	if err != nil {
		return nil, log.Err("failed to reload case record", err, "id", record.ID)
	}

	cc.changed(ctx, "case_record.created", created.ID, userID)
	return created, nil
}

// UpdateRecord applies a partial update and re-derives the embedding and
// tags from the resulting text. The derived tags replace the record's tags.
func (cc *CaseRecordController) UpdateRecord(ctx context.Context, id string, req UpdateCaseRecordRequest, userID string) (*CaseRecord, error) {
	log := cc.log.Function("UpdateRecord")

	if err := req.Validate(); err != nil {
		return nil, log.Err("invalid update request", err, "id", id)
	}

	record, err := cc.caseRecordRepo.GetByID(ctx, id)
	if err != nil {
		return nil, log.Err("failed to get case record", err, "id", id)
	}

	req.ApplyTo(record)
	if err := normalize(record); err != nil {
		return nil, log.Err("invalid case record", err, "id", id)
	}

	names, err := cc.derive(ctx, record)
	if err != nil {
		return nil, log.Err("failed to derive case record data", err, "id", id)
	}

	err = cc.transactionService.Execute(ctx, func(txCtx context.Context) error {
		if err := cc.caseRecordRepo.Update(txCtx, record); err != nil {
			return err
		}
		tags, err := cc.tagController.ResolveTags(txCtx, names)
		if err != nil {
			return err
		}
		return cc.caseRecordRepo.SetTags(txCtx, record.ID, tagIDs(tags))
	})
	if err != nil {
		return nil, log.Err("failed to persist case record", err, "id", id)
	}

	updated, err := cc.caseRecordRepo.GetByID(ctx, id)
	if err != nil {
		return nil, log.Err("failed to reload case record", err, "id", id)
	}

	cc.changed(ctx, "case_record.updated", id, userID)
	return updated, nil
}

func (cc *CaseRecordController) DeleteRecord(ctx context.Context, id string, userID string) error {
	log := cc.log.Function("DeleteRecord")

	if err := cc.caseRecordRepo.Delete(ctx, id); err != nil {
		return log.Err("failed to delete case record", err, "id", id)
	}

	cc.changed(ctx, "case_record.deleted", id, userID)
	return nil
}

func (cc *CaseRecordController) GetRecordByID(ctx context.Context, id string) (*CaseRecord, error) {
	log := cc.log.Function("GetRecordByID")

	record, err := cc.caseRecordRepo.GetByID(ctx, id)
	if err != nil {
		return nil, log.Err("failed to get case record", err, "id", id)
	}

	return record, nil
}

// SearchRecords picks one search path: semantic when a query is given,
// keyword when only a keyword is given, tag membership when only tags are
// given, otherwise the plain listing.
func (cc *CaseRecordController) SearchRecords(ctx context.Context, query CaseRecordSearchQuery) (PaginatedResult[*CaseRecord], error) {
	log := cc.log.Function("SearchRecords")

	if err := query.Validate(); err != nil {
		return PaginatedResult[*CaseRecord]{}, log.Err("invalid search query", err)
	}

	page := NewPagination(query.Page, query.Limit)
	text := utils.SanitizeText(query.Query)
	keyword := strings.TrimSpace(query.Keyword)

	var (
		records []*CaseRecord
		total   int64
		err     error
	)

	switch {
	case text != "":
		vector, embedErr := cc.provider.EmbedText(ctx, text)
		if embedErr != nil {
			return PaginatedResult[*CaseRecord]{}, log.Err("failed to embed search query", embedErr)
		}
		records, total, err = cc.caseRecordRepo.FindByVector(ctx, repositories.VectorQuery{
			Vector:    vector,
			Threshold: query.Threshold,
			Limit:     page.Limit,
			Offset:    page.Offset(),
			TagNames:  query.Tags,
		})

	case keyword != "":
		records, total, err = cc.caseRecordRepo.FindByKeyword(ctx, keyword, query.Tags, page)

	case len(query.Tags) > 0:
		tags, tagErr := cc.tagRepo.GetByNames(ctx, query.Tags)
		if tagErr != nil {
			return PaginatedResult[*CaseRecord]{}, log.Err("failed to resolve tag filter", tagErr, "tags", query.Tags)
		}
		records, total, err = cc.caseRecordRepo.FindByTags(ctx, tagIDs(tags), page)

	default:
		records, total, err = cc.caseRecordRepo.List(ctx, page)
	}

	if err != nil {
		return PaginatedResult[*CaseRecord]{}, log.Err("failed to search case records", err)
	}

	return NewPaginatedResult(records, total, page), nil
}

func (cc *CaseRecordController) FindSimilar(ctx context.Context, id string, limit int) ([]*CaseRecord, error) {
	log := cc.log.Function("FindSimilar")

	records, err := cc.caseRecordRepo.FindSimilar(ctx, id, limit)
	if err != nil {
		return nil, log.Err("failed to find similar case records", err, "id", id)
	}

	return records, nil
}

// UpdateApprovalStatus moves the record to status. Pending records can be
// approved or rejected, rejected records can be reopened, approved records
// are final.
func (cc *CaseRecordController) UpdateApprovalStatus(ctx context.Context, id string, status ApprovalStatus, userID string) (*CaseRecord, error) {
	log := cc.log.Function("UpdateApprovalStatus")

	if err := (UpdateApprovalStatusRequest{Status: status}).Validate(); err != nil {
		return nil, log.Err("invalid approval status", err, "id", id)
	}

	record, err := cc.caseRecordRepo.GetByID(ctx, id)
	if err != nil {
		return nil, log.Err("failed to get case record", err, "id", id)
	}

	if record.ApprovalStatus == status {
		return record, nil
	}

	if !record.ApprovalStatus.CanTransitionTo(status) {
		return nil, log.Err("invalid approval status change", errs.ErrInvalidTransition,
			"id", id, "from", record.ApprovalStatus, "to", status)
	}

	if err := cc.caseRecordRepo.UpdateStatus(ctx, id, record.ApprovalStatus, status); err != nil {
		return nil, log.Err("failed to update approval status", err, "id", id)
	}

	updated, err := cc.caseRecordRepo.GetByID(ctx, id)
	if err != nil {
		return nil, log.Err("failed to reload case record", err, "id", id)
	}

	cc.changed(ctx, "case_record.status_changed", id, userID)
	return updated, nil
}

func (cc *CaseRecordController) AddTags(ctx context.Context, id string, ids []string) (*CaseRecord, error) {
	log := cc.log.Function("AddTags")

	if _, err := cc.caseRecordRepo.GetByID(ctx, id); err != nil {
		return nil, log.Err("failed to get case record", err, "id", id)
	}

	tags, err := cc.tagRepo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, log.Err("failed to get tags", err, "tagIDs", ids)
	}
	if len(tags) != len(uniqueNonEmpty(ids)) {
		return nil, log.Err("unknown tag id", errs.ErrNotFound, "tagIDs", ids)
	}

	if err := cc.caseRecordRepo.AddTags(ctx, id, ids); err != nil {
		return nil, log.Err("failed to add tags", err, "id", id)
	}

	return cc.GetRecordByID(ctx, id)
}

func (cc *CaseRecordController) RemoveTags(ctx context.Context, id string, ids []string) (*CaseRecord, error) {
	log := cc.log.Function("RemoveTags")

	if _, err := cc.caseRecordRepo.GetByID(ctx, id); err != nil {
		return nil, log.Err("failed to get case record", err, "id", id)
	}

	if err := cc.caseRecordRepo.RemoveTags(ctx, id, ids); err != nil {
		return nil, log.Err("failed to remove tags", err, "id", id)
	}

	return cc.GetRecordByID(ctx, id)
}

// DraftReasonLetter asks the provider for reason-letter text based on the
// record. Nothing is stored.
func (cc *CaseRecordController) DraftReasonLetter(ctx context.Context, id string) (*ReasonLetter, error) {
	log := cc.log.Function("DraftReasonLetter")

	record, err := cc.caseRecordRepo.GetByID(ctx, id)
	if err != nil {
		return nil, log.Err("failed to get case record", err, "id", id)
	}

	prompt := fmt.Sprintf(reasonLetterPrompt,
		record.BodyPart,
		record.PatientAge,
		record.PatientGender,
		record.Symptoms,
		record.Treatment,
		record.Diagnosis,
		strings.Join(record.TagNames(), "、"),
	)

	content, err := cc.provider.GenerateText(ctx, prompt)
	if err != nil {
		return nil, log.Err("failed to draft reason letter", err, "id", id)
	}

	return &ReasonLetter{CaseRecordID: id, Content: strings.TrimSpace(content)}, nil
}

func (cc *CaseRecordController) changed(ctx context.Context, eventType, id, userID string) {
	log := cc.log.Function("changed")

	if err := cc.cacheInvalidation.InvalidateStats(ctx); err != nil {
		log.Warn("failed to invalidate stats cache", "error", err)
	}

	event := events.NewEvent(events.ChannelCaseRecord, eventType, userID, map[string]any{"id": id})
	if err := cc.eventBus.Publish(events.ChannelCaseRecord, event); err != nil {
		log.Warn("failed to publish case record event", "type", eventType, "error", err)
	}
}

func tagIDs(tags []*Tag) []string {
	ids := make([]string, len(tags))
	for i, tag := range tags {
		ids[i] = tag.ID
	}
	return ids
}

func uniqueNonEmpty(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}
