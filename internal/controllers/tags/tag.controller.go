package tagController

import (
	"context"
	"fmt"
	"reasondesk/internal/ai"
	"reasondesk/internal/events"
	"reasondesk/internal/logger"
	. "reasondesk/internal/models"
	"reasondesk/internal/repositories"
	"reasondesk/internal/services"
	"regexp"
	"strings"
	"unicode/utf8"
)

const suggestionPrompt = `以下の施術記録を分類するためのタグを最大5つ挙げてください。
負傷部位、負傷原因、施術内容のいずれかを表す短い名詞にしてください。
1行に1つ、タグ名のみを出力してください。

%s`

// Suggestions longer than this are prose, not tag names.
const maxSuggestionLength = 30

var (
	listMarker        = regexp.MustCompile(`^(?:[-*+•・●○■□]+|[(（]?\d+[)）.．、:：]|#+)\s*`)
	trailingPunctuate = regexp.MustCompile(`[。．.,，、;；:：!！?？]+$`)
)

type TagController struct {
	tagRepo            repositories.TagRepository
	caseRecordRepo     repositories.CaseRecordRepository
	provider           ai.Provider
	transactionService *services.TransactionService
	eventBus           *events.EventBus
	log                logger.Logger
}

func New(
	tagRepo repositories.TagRepository,
	caseRecordRepo repositories.CaseRecordRepository,
	provider ai.Provider,
	transactionService *services.TransactionService,
	eventBus *events.EventBus,
) *TagController {
	return &TagController{
		tagRepo:            tagRepo,
		caseRecordRepo:     caseRecordRepo,
		provider:           provider,
		transactionService: transactionService,
		eventBus:           eventBus,
		log:                logger.New("TagController"),
	}
}

// ParseSuggestions turns a provider response into distinct tag names: one
// per line, list markers and trailing punctuation removed, duplicates
// dropped case-sensitively in first-seen order.
func ParseSuggestions(response string) []string {
	seen := make(map[string]struct{})
	names := []string{}

	for _, line := range strings.Split(response, "\n") {
		name := strings.TrimSpace(line)
		name = strings.TrimSpace(listMarker.ReplaceAllString(name, ""))
		name = strings.Trim(name, "\"'`「」『』*")
		name = strings.TrimSpace(trailingPunctuate.ReplaceAllString(name, ""))

		if name == "" || utf8.RuneCountInString(name) > maxSuggestionLength {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}

	return names
}

// SuggestTags asks the provider for tag names describing text.
func (tc *TagController) SuggestTags(ctx context.Context, text string) ([]string, error) {
	log := tc.log.Function("SuggestTags")

	response, err := tc.provider.GenerateText(ctx, fmt.Sprintf(suggestionPrompt, text))
	if err != nil {
		return nil, log.Err("failed to generate tag suggestions", err)
	}

	names := ParseSuggestions(response)
	log.Debug("parsed tag suggestions", "count", len(names))
	return names, nil
}

// ResolveTags reuses existing tags by exact name and creates the rest as
// auto-generated.
func (tc *TagController) ResolveTags(ctx context.Context, names []string) ([]*Tag, error) {
	log := tc.log.Function("ResolveTags")

	tags, err := tc.tagRepo.EnsureByNames(ctx, names, TagCategoryAutoGenerated)
	if err != nil {
		return nil, log.Err("failed to resolve tags", err, "names", names)
	}

	return tags, nil
}

func tagIDs(tags []*Tag) []string {
	ids := make([]string, len(tags))
	for i, tag := range tags {
		ids[i] = tag.ID
	}
	return ids
}

// AssignTagsToRecord derives tags for text, reconciles them against the
// store and attaches them to the record. It returns the suggested names.
func (tc *TagController) AssignTagsToRecord(ctx context.Context, recordID, text string) ([]string, error) {
	log := tc.log.Function("AssignTagsToRecord")

	if _, err := tc.caseRecordRepo.GetByID(ctx, recordID); err != nil {
		return nil, log.Err("failed to get case record", err, "recordID", recordID)
	}

	names, err := tc.SuggestTags(ctx, text)
	if err != nil {
		return nil, log.Err("failed to suggest tags", err, "recordID", recordID)
	}

	err = tc.transactionService.Execute(ctx, func(txCtx context.Context) error {
		tags, err := tc.ResolveTags(txCtx, names)
		if err != nil {
			return err
		}
		return tc.caseRecordRepo.AddTags(txCtx, recordID, tagIDs(tags))
	})
	if err != nil {
		return nil, log.Err("failed to attach tags", err, "recordID", recordID)
	}

	tc.publish("tag.assigned", map[string]any{"caseRecordId": recordID, "tags": names})
	return names, nil
}

func (tc *TagController) GetTagsByCategory(ctx context.Context, category string) ([]*Tag, error) {
	log := tc.log.Function("GetTagsByCategory")

	tags, err := tc.tagRepo.GetByCategory(ctx, category)
	if err != nil {
		return nil, log.Err("failed to get tags by category", err, "category", category)
	}

	return tags, nil
}

func (tc *TagController) MergeTags(ctx context.Context, sourceID, targetID string) error {
	log := tc.log.Function("MergeTags")

	req := MergeTagsRequest{SourceID: sourceID, TargetID: targetID}
	if err := req.Validate(); err != nil {
		return log.Err("invalid merge request", err, "sourceID", sourceID, "targetID", targetID)
	}

	if err := tc.tagRepo.Merge(ctx, sourceID, targetID); err != nil {
		return log.Err("failed to merge tags", err, "sourceID", sourceID, "targetID", targetID)
	}

	tc.publish("tag.merged", map[string]any{"sourceId": sourceID, "targetId": targetID})
	return nil
}

func (tc *TagController) CreateTag(ctx context.Context, req CreateTagRequest) (*Tag, error) {
	log := tc.log.Function("CreateTag")

	tag := &Tag{
		Name:        strings.TrimSpace(req.Name),
		Category:    req.Category,
		Description: req.Description,
	}
	if err := tc.tagRepo.Create(ctx, tag); err != nil {
		return nil, log.Err("failed to create tag", err, "name", tag.Name)
	}

	tc.publish("tag.created", map[string]any{"id": tag.ID, "name": tag.Name})
	return tag, nil
}

func (tc *TagController) UpdateTag(ctx context.Context, id string, req UpdateTagRequest) (*Tag, error) {
	log := tc.log.Function("UpdateTag")

	tag, err := tc.tagRepo.GetByID(ctx, id)
	if err != nil {
		return nil, log.Err("failed to get tag", err, "id", id)
	}

	req.ApplyTo(tag)
	if err := tc.tagRepo.Update(ctx, tag); err != nil {
		return nil, log.Err("failed to update tag", err, "id", id)
	}

	return tag, nil
}

func (tc *TagController) DeleteTag(ctx context.Context, id string) error {
	log := tc.log.Function("DeleteTag")

	if err := tc.tagRepo.Delete(ctx, id); err != nil {
		return log.Err("failed to delete tag", err, "id", id)
	}

	tc.publish("tag.deleted", map[string]any{"id": id})
	return nil
}

func (tc *TagController) GetTag(ctx context.Context, id string) (*Tag, error) {
	log := tc.log.Function("GetTag")

	tag, err := tc.tagRepo.GetByID(ctx, id)
	if err != nil {
		return nil, log.Err("failed to get tag", err, "id", id)
	}

	return tag, nil
}

func (tc *TagController) ListTags(ctx context.Context, page Pagination) (PaginatedResult[*Tag], error) {
	log := tc.log.Function("ListTags")

	tags, total, err := tc.tagRepo.List(ctx, page)
	if err != nil {
		return PaginatedResult[*Tag]{}, log.Err("failed to list tags", err)
	}

	return NewPaginatedResult(tags, total, page), nil
}

func (tc *TagController) GetPopularTags(ctx context.Context, limit int) ([]TagCount, error) {
	log := tc.log.Function("GetPopularTags")

	tags, err := tc.tagRepo.Popular(ctx, limit)
	if err != nil {
		return nil, log.Err("failed to get popular tags", err)
	}

	return tags, nil
}

func (tc *TagController) GetRelatedTags(ctx context.Context, id string, limit int) ([]TagCount, error) {
	log := tc.log.Function("GetRelatedTags")

	if _, err := tc.tagRepo.GetByID(ctx, id); err != nil {
		return nil, log.Err("failed to get tag", err, "id", id)
	}

	tags, err := tc.tagRepo.Related(ctx, id, limit)
	if err != nil {
		return nil, log.Err("failed to get related tags", err, "id", id)
	}

	return tags, nil
}

func (tc *TagController) SearchTags(ctx context.Context, term string, limit int) ([]*Tag, error) {
	log := tc.log.Function("SearchTags")

	tags, err := tc.tagRepo.Search(ctx, term, limit)
	if err != nil {
		return nil, log.Err("failed to search tags", err, "term", term)
	}

	return tags, nil
}

func (tc *TagController) GetTagUsage(ctx context.Context, id string) (int64, error) {
	log := tc.log.Function("GetTagUsage")

	if _, err := tc.tagRepo.GetByID(ctx, id); err != nil {
		return 0, log.Err("failed to get tag", err, "id", id)
	}

	count, err := tc.tagRepo.UsageCount(ctx, id)
	if err != nil {
		return 0, log.Err("failed to count tag usage", err, "id", id)
	}

	return count, nil
}

func (tc *TagController) publish(eventType string, data map[string]any) {
	event := events.NewEvent(events.ChannelTag, eventType, "", data)
	if err := tc.eventBus.Publish(events.ChannelTag, event); err != nil {
		tc.log.Function("publish").Warn("failed to publish tag event", "type", eventType, "error", err)
	}
}
