package repositories

import (
	"context"
	"reasondesk/internal/database"
	"reasondesk/internal/errs"
	"reasondesk/internal/logger"
	. "reasondesk/internal/models"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const DefaultTagLimit = 10

type TagRepository interface {
	Create(ctx context.Context, tag *Tag) error
	GetByID(ctx context.Context, id string) (*Tag, error)
	GetByIDs(ctx context.Context, ids []string) ([]*Tag, error)
	GetByCategory(ctx context.Context, category string) ([]*Tag, error)
	GetByNames(ctx context.Context, names []string) ([]*Tag, error)
	Update(ctx context.Context, tag *Tag) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, page Pagination) ([]*Tag, int64, error)
	GetForRecord(ctx context.Context, recordID string) ([]*Tag, error)
	AttachToRecord(ctx context.Context, recordID, tagID string) error
	DetachFromRecord(ctx context.Context, recordID, tagID string) error
	Search(ctx context.Context, term string, limit int) ([]*Tag, error)
	UsageCount(ctx context.Context, id string) (int64, error)
	Popular(ctx context.Context, limit int) ([]TagCount, error)
	Related(ctx context.Context, id string, limit int) ([]TagCount, error)
	EnsureByNames(ctx context.Context, names []string, category string) ([]*Tag, error)
	Merge(ctx context.Context, sourceID, targetID string) error
}

type tagRepository struct {
	db  database.DB
	log logger.Logger
}

func NewTag(db database.DB) TagRepository {
	return &tagRepository{
		db:  db,
		log: logger.New("tagRepository"),
	}
}

func (r *tagRepository) getDB(ctx context.Context) *gorm.DB {
	return contextDB(ctx, r.db)
}

func (r *tagRepository) Create(ctx context.Context, tag *Tag) error {
	log := r.log.Function("Create")

	if err := r.getDB(ctx).Create(tag).Error; err != nil {
		return log.Err("failed to create tag", storeError(err), "name", tag.Name)
	}

	return nil
}

func (r *tagRepository) GetByID(ctx context.Context, id string) (*Tag, error) {
	log := r.log.Function("GetByID")

	var tag Tag
	if err := r.getDB(ctx).First(&tag, "id = ?", id).Error; err != nil {
		return nil, log.Err("failed to get tag", storeError(err), "id", id)
	}

	return &tag, nil
}

func (r *tagRepository) GetByIDs(ctx context.Context, ids []string) ([]*Tag, error) {
	log := r.log.Function("GetByIDs")

	ids = dedupe(ids)
	if len(ids) == 0 {
		return []*Tag{}, nil
	}

	var tags []*Tag
	if err := r.getDB(ctx).Where("id IN ?", ids).Order("name ASC").Find(&tags).Error; err != nil {
		return nil, log.Err("failed to get tags", storeError(err), "ids", ids)
	}

	return tags, nil
}

func (r *tagRepository) GetByCategory(ctx context.Context, category string) ([]*Tag, error) {
	log := r.log.Function("GetByCategory")

	var tags []*Tag
	if err := r.getDB(ctx).Where("category = ?", category).Order("name ASC").Find(&tags).Error; err != nil {
		return nil, log.Err("failed to get tags by category", storeError(err), "category", category)
	}

	return tags, nil
}

// GetByNames returns the tags matching names exactly, in the order of names.
func (r *tagRepository) GetByNames(ctx context.Context, names []string) ([]*Tag, error) {
	log := r.log.Function("GetByNames")

	names = dedupe(names)
	if len(names) == 0 {
		return []*Tag{}, nil
	}

	var rows []*Tag
	if err := r.getDB(ctx).Where("name IN ?", names).Find(&rows).Error; err != nil {
		return nil, log.Err("failed to get tags by name", storeError(err), "names", names)
	}

	byName := make(map[string]*Tag, len(rows))
	for _, tag := range rows {
		byName[tag.Name] = tag
	}

	tags := make([]*Tag, 0, len(rows))
	for _, name := range names {
		if tag, ok := byName[name]; ok {
			tags = append(tags, tag)
		}
	}

	return tags, nil
}

func (r *tagRepository) Update(ctx context.Context, tag *Tag) error {
	log := r.log.Function("Update")

	result := r.getDB(ctx).Model(tag).Select("name", "category", "description", "updated_at").Updates(tag)
	if result.Error != nil {
		return log.Err("failed to update tag", storeError(result.Error), "id", tag.ID)
	}
	if result.RowsAffected == 0 {
		return log.Err("failed to update tag", errs.ErrNotFound, "id", tag.ID)
	}

	return nil
}

func (r *tagRepository) Delete(ctx context.Context, id string) error {
	log := r.log.Function("Delete")

	err := withTransaction(ctx, r.db, func(tx *gorm.DB) error {
		if err := tx.Where("tag_id = ?", id).Delete(&CaseRecordTag{}).Error; err != nil {
			return storeError(err)
		}
		result := tx.Delete(&Tag{}, "id = ?", id)
		if result.Error != nil {
			return storeError(result.Error)
		}
		if result.RowsAffected == 0 {
			return errs.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return log.Err("failed to delete tag", err, "id", id)
	}

	return nil
}

func (r *tagRepository) List(ctx context.Context, page Pagination) ([]*Tag, int64, error) {
	log := r.log.Function("List")

	var total int64
	if err := r.getDB(ctx).Model(&Tag{}).Count(&total).Error; err != nil {
		return nil, 0, log.Err("failed to count tags", storeError(err))
	}

	var tags []*Tag
	err := r.getDB(ctx).Order("name ASC").Offset(page.Offset()).Limit(page.Limit).Find(&tags).Error
	if err != nil {
		return nil, 0, log.Err("failed to list tags", storeError(err))
	}

	return tags, total, nil
}

func (r *tagRepository) GetForRecord(ctx context.Context, recordID string) ([]*Tag, error) {
	log := r.log.Function("GetForRecord")

	var tags []*Tag
	err := r.getDB(ctx).
		Joins("JOIN case_record_tags ON case_record_tags.tag_id = tags.id").
		Where("case_record_tags.case_record_id = ?", recordID).
		Order("tags.name ASC").
		Find(&tags).Error
	if err != nil {
		return nil, log.Err("failed to get tags for record", storeError(err), "recordId", recordID)
	}

	return tags, nil
}

func (r *tagRepository) AttachToRecord(ctx context.Context, recordID, tagID string) error {
	log := r.log.Function("AttachToRecord")

	row := CaseRecordTag{CaseRecordID: recordID, TagID: tagID}
	if err := r.getDB(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
		return log.Err("failed to attach tag", storeError(err), "recordId", recordID, "tagId", tagID)
	}

	return nil
}

func (r *tagRepository) DetachFromRecord(ctx context.Context, recordID, tagID string) error {
	log := r.log.Function("DetachFromRecord")

	err := r.getDB(ctx).
		Where("case_record_id = ? AND tag_id = ?", recordID, tagID).
		Delete(&CaseRecordTag{}).Error
	if err != nil {
		return log.Err("failed to detach tag", storeError(err), "recordId", recordID, "tagId", tagID)
	}

	return nil
}

// Search matches term case-insensitively against name and description.
func (r *tagRepository) Search(ctx context.Context, term string, limit int) ([]*Tag, error) {
	log := r.log.Function("Search")

	if limit <= 0 {
		limit = DefaultTagLimit
	}

	pattern := likePattern(strings.ToLower(strings.TrimSpace(term)))

	var tags []*Tag
	err := r.getDB(ctx).
		Where(`LOWER(name) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\'`, pattern, pattern).
		Order("name ASC").
		Limit(limit).
		Find(&tags).Error
	if err != nil {
		return nil, log.Err("failed to search tags", storeError(err), "term", term)
	}

	return tags, nil
}

func (r *tagRepository) UsageCount(ctx context.Context, id string) (int64, error) {
	log := r.log.Function("UsageCount")

	var count int64
	if err := r.getDB(ctx).Model(&CaseRecordTag{}).Where("tag_id = ?", id).Count(&count).Error; err != nil {
		return 0, log.Err("failed to count tag usage", storeError(err), "id", id)
	}

	return count, nil
}

func (r *tagRepository) Popular(ctx context.Context, limit int) ([]TagCount, error) {
	log := r.log.Function("Popular")

	if limit <= 0 {
		limit = DefaultTagLimit
	}

	counts := []TagCount{}
	err := r.getDB(ctx).
		Table("tags").
		Select("tags.id, tags.name, tags.category, COUNT(case_record_tags.case_record_id) AS count").
		Joins("JOIN case_record_tags ON case_record_tags.tag_id = tags.id").
		Group("tags.id, tags.name, tags.category").
		Order("count DESC, tags.name ASC").
		Limit(limit).
		Scan(&counts).Error
	if err != nil {
		return nil, log.Err("failed to get popular tags", storeError(err))
	}

	return counts, nil
}

// Related returns tags that share records with id, most shared first.
func (r *tagRepository) Related(ctx context.Context, id string, limit int) ([]TagCount, error) {
	log := r.log.Function("Related")

	if limit <= 0 {
		limit = DefaultTagLimit
	}

	counts := []TagCount{}
	err := r.getDB(ctx).
		Table("case_record_tags AS source").
		Select("tags.id, tags.name, tags.category, COUNT(*) AS count").
		Joins("JOIN case_record_tags AS other ON other.case_record_id = source.case_record_id AND other.tag_id <> source.tag_id").
		Joins("JOIN tags ON tags.id = other.tag_id").
		Where("source.tag_id = ?", id).
		Group("tags.id, tags.name, tags.category").
		Order("count DESC, tags.name ASC").
		Limit(limit).
		Scan(&counts).Error
	if err != nil {
		return nil, log.Err("failed to get related tags", storeError(err), "id", id)
	}

	return counts, nil
}

// EnsureByNames creates the names that do not exist yet with category and
// returns every named tag. Concurrent callers racing on the same name end up
// with the same row; the unique index decides the winner.
func (r *tagRepository) EnsureByNames(ctx context.Context, names []string, category string) ([]*Tag, error) {
	log := r.log.Function("EnsureByNames")

	names = dedupe(names)
	if len(names) == 0 {
		return []*Tag{}, nil
	}

	candidates := make([]Tag, len(names))
	for i, name := range names {
		candidates[i] = Tag{Name: name, Category: category}
	}

	err := r.getDB(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
		Create(&candidates).Error
	if err != nil {
		return nil, log.Err("failed to create tags", storeError(err), "names", names)
	}

	return r.GetByNames(ctx, names)
}

// Merge repoints every association of sourceID to targetID and removes the
// source tag. Merging a tag into itself is rejected.
func (r *tagRepository) Merge(ctx context.Context, sourceID, targetID string) error {
	log := r.log.Function("Merge")

	if sourceID == targetID {
		var v errs.ValidationErrors
		v.Add("targetId", "must differ from sourceId")
		return log.Err("cannot merge tag into itself", v.OrNil(), "id", sourceID)
	}

	err := withTransaction(ctx, r.db, func(tx *gorm.DB) error {
		for _, id := range []string{sourceID, targetID} {
			var count int64
			if err := tx.Model(&Tag{}).Where("id = ?", id).Count(&count).Error; err != nil {
				return storeError(err)
			}
			if count == 0 {
				return errs.ErrNotFound
			}
		}

		var recordIDs []string
		err := tx.Model(&CaseRecordTag{}).Where("tag_id = ?", sourceID).Pluck("case_record_id", &recordIDs).Error
		if err != nil {
			return storeError(err)
		}

		if len(recordIDs) > 0 {
			rows := make([]CaseRecordTag, len(recordIDs))
			for i, recordID := range recordIDs {
				rows[i] = CaseRecordTag{CaseRecordID: recordID, TagID: targetID}
			}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error; err != nil {
				return storeError(err)
			}
		}

		if err := tx.Where("tag_id = ?", sourceID).Delete(&CaseRecordTag{}).Error; err != nil {
			return storeError(err)
		}
		if err := tx.Delete(&Tag{}, "id = ?", sourceID).Error; err != nil {
			return storeError(err)
		}
		return nil
	})
	if err != nil {
		return log.Err("failed to merge tags", err, "sourceId", sourceID, "targetId", targetID)
	}

	return nil
}
