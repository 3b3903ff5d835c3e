package repositories

import (
	"context"
	"reasondesk/internal/ai"
	"reasondesk/internal/database"
	"reasondesk/internal/errs"
	"reasondesk/internal/logger"
	. "reasondesk/internal/models"
	"sort"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	DefaultSimilarityThreshold = 0.7
	DefaultVectorLimit         = 10
	DefaultSimilarLimit        = 5
)

// VectorQuery describes a nearest-neighbour search. A nil Threshold means
// DefaultSimilarityThreshold. TagNames, when set, restricts candidates to
// records carrying every listed tag before ranking.
type VectorQuery struct {
	Vector    []float64
	Threshold *float64
	Limit     int
	Offset    int
	TagNames  []string
}

type CaseRecordRepository interface {
	Create(ctx context.Context, record *CaseRecord) error
	GetByID(ctx context.Context, id string) (*CaseRecord, error)
	Update(ctx context.Context, record *CaseRecord) error
	UpdateStatus(ctx context.Context, id string, from, to ApprovalStatus) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, page Pagination) ([]*CaseRecord, int64, error)
	FindByVector(ctx context.Context, query VectorQuery) ([]*CaseRecord, int64, error)
	FindByTags(ctx context.Context, tagIDs []string, page Pagination) ([]*CaseRecord, int64, error)
	FindByKeyword(ctx context.Context, keyword string, tagNames []string, page Pagination) ([]*CaseRecord, int64, error)
	FindSimilar(ctx context.Context, id string, limit int) ([]*CaseRecord, error)
	AddTags(ctx context.Context, recordID string, tagIDs []string) error
	RemoveTags(ctx context.Context, recordID string, tagIDs []string) error
	SetTags(ctx context.Context, recordID string, tagIDs []string) error
}

type caseRecordRepository struct {
	db  database.DB
	log logger.Logger
}

func NewCaseRecord(db database.DB) CaseRecordRepository {
	return &caseRecordRepository{
		db:  db,
		log: logger.New("caseRecordRepository"),
	}
}

func (r *caseRecordRepository) getDB(ctx context.Context) *gorm.DB {
	return contextDB(ctx, r.db)
}

func withTags(db *gorm.DB) *gorm.DB {
	return db.Preload("Tags", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("tags.name ASC")
	})
}

func (r *caseRecordRepository) Create(ctx context.Context, record *CaseRecord) error {
	log := r.log.Function("Create")

	if err := r.getDB(ctx).Omit(clause.Associations).Create(record).Error; err != nil {
		return log.Err("failed to create case record", storeError(err), "patientId", record.PatientID)
	}

	return nil
}

func (r *caseRecordRepository) GetByID(ctx context.Context, id string) (*CaseRecord, error) {
	log := r.log.Function("GetByID")

	var record CaseRecord
	if err := withTags(r.getDB(ctx)).First(&record, "id = ?", id).Error; err != nil {
		return nil, log.Err("failed to get case record", storeError(err), "id", id)
	}

	return &record, nil
}

// Update writes the record's content columns. approval_status is left to
// UpdateStatus so a slow edit cannot overwrite a concurrent review.
func (r *caseRecordRepository) Update(ctx context.Context, record *CaseRecord) error {
	log := r.log.Function("Update")

	result := r.getDB(ctx).
		Model(record).
		Select("*").
		Omit(clause.Associations, "id", "created_at", "approval_status").
		Updates(record)
	if result.Error != nil {
		return log.Err("failed to update case record", storeError(result.Error), "id", record.ID)
	}
	if result.RowsAffected == 0 {
		return log.Err("failed to update case record", errs.ErrNotFound, "id", record.ID)
	}

	return nil
}

// UpdateStatus moves the record from one approval status to another. The
// write only lands while the row still holds from; otherwise it fails with
// ErrInvalidTransition, or ErrNotFound when the row is gone.
func (r *caseRecordRepository) UpdateStatus(ctx context.Context, id string, from, to ApprovalStatus) error {
	log := r.log.Function("UpdateStatus")

	result := r.getDB(ctx).
		Model(&CaseRecord{}).
		Where("id = ? AND approval_status = ?", id, from).
		Update("approval_status", to)
	if result.Error != nil {
		return log.Err("failed to update approval status", storeError(result.Error), "id", id)
	}
	if result.RowsAffected == 1 {
		return nil
	}

	var count int64
	if err := r.getDB(ctx).Model(&CaseRecord{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return log.Err("failed to check case record", storeError(err), "id", id)
	}
	if count == 0 {
		return log.Err("failed to update approval status", errs.ErrNotFound, "id", id)
	}

	return log.Err("approval status changed concurrently", errs.ErrInvalidTransition, "id", id, "from", from, "to", to)
}

// Delete removes the record together with its tag associations and feedback.
func (r *caseRecordRepository) Delete(ctx context.Context, id string) error {
	log := r.log.Function("Delete")

	err := withTransaction(ctx, r.db, func(tx *gorm.DB) error {
		if err := tx.Where("case_record_id = ?", id).Delete(&CaseRecordTag{}).Error; err != nil {
			return storeError(err)
		}
		if err := tx.Where("case_record_id = ?", id).Delete(&Feedback{}).Error; err != nil {
			return storeError(err)
		}
		result := tx.Delete(&CaseRecord{}, "id = ?", id)
		if result.Error != nil {
			return storeError(result.Error)
		}
		if result.RowsAffected == 0 {
			return errs.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return log.Err("failed to delete case record", err, "id", id)
	}

	return nil
}

func (r *caseRecordRepository) List(ctx context.Context, page Pagination) ([]*CaseRecord, int64, error) {
	log := r.log.Function("List")

	var total int64
	if err := r.getDB(ctx).Model(&CaseRecord{}).Count(&total).Error; err != nil {
		return nil, 0, log.Err("failed to count case records", storeError(err))
	}

	var records []*CaseRecord
	err := withTags(r.getDB(ctx)).
		Order("created_at ASC").
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&records).Error
	if err != nil {
		return nil, 0, log.Err("failed to list case records", storeError(err))
	}

	return records, total, nil
}

type scoredRecord struct {
	id         string
	similarity float64
}

// FindByVector ranks stored embeddings by cosine similarity to the query
// vector and returns the requested page of rows at or above the threshold,
// together with the number of rows that cleared the threshold.
func (r *caseRecordRepository) FindByVector(ctx context.Context, query VectorQuery) ([]*CaseRecord, int64, error) {
	log := r.log.Function("FindByVector")

	threshold := DefaultSimilarityThreshold
	if query.Threshold != nil {
		threshold = *query.Threshold
	}
	if query.Limit <= 0 {
		query.Limit = DefaultVectorLimit
	}
	if query.Offset < 0 {
		query.Offset = 0
	}

	candidates := r.getDB(ctx).Model(&CaseRecord{}).Where("embedding IS NOT NULL")
	if names := dedupe(query.TagNames); len(names) > 0 {
		candidates = candidates.Where("id IN (?)", r.recordsWithAllTags(ctx, names))
	}

	scored, err := r.rank(candidates, query.Vector, "")
	if err != nil {
		return nil, 0, log.Err("failed to rank case records", err)
	}

	hits := make([]scoredRecord, 0, len(scored))
	for _, s := range scored {
		if s.similarity >= threshold {
			hits = append(hits, s)
		}
	}

	total := int64(len(hits))
	if query.Offset >= len(hits) {
		return []*CaseRecord{}, total, nil
	}
	end := min(query.Offset+query.Limit, len(hits))

	records, err := r.loadScored(ctx, hits[query.Offset:end])
	if err != nil {
		return nil, 0, log.Err("failed to load ranked case records", err)
	}

	return records, total, nil
}

// FindSimilar returns the records closest to the stored embedding of id,
// excluding id itself.
func (r *caseRecordRepository) FindSimilar(ctx context.Context, id string, limit int) ([]*CaseRecord, error) {
	log := r.log.Function("FindSimilar")

	if limit <= 0 {
		limit = DefaultSimilarLimit
	}

	var source CaseRecord
	if err := r.getDB(ctx).Select("id", "embedding").First(&source, "id = ?", id).Error; err != nil {
		return nil, log.Err("failed to get source case record", storeError(err), "id", id)
	}

	if len(source.Embedding) == 0 {
		return []*CaseRecord{}, nil
	}

	candidates := r.getDB(ctx).Model(&CaseRecord{}).Where("embedding IS NOT NULL")
	scored, err := r.rank(candidates, source.Embedding, id)
	if err != nil {
		return nil, log.Err("failed to rank case records", err, "id", id)
	}

	if len(scored) > limit {
		scored = scored[:limit]
	}

	records, err := r.loadScored(ctx, scored)
	if err != nil {
		return nil, log.Err("failed to load similar case records", err, "id", id)
	}

	return records, nil
}

func (r *caseRecordRepository) rank(candidates *gorm.DB, vector []float64, excludeID string) ([]scoredRecord, error) {
	var rows []CaseRecord
	if err := candidates.Select("id", "embedding", "created_at").Find(&rows).Error; err != nil {
		return nil, storeError(err)
	}

	scored := make([]scoredRecord, 0, len(rows))
	for _, row := range rows {
		if row.ID == excludeID {
			continue
		}
		scored = append(scored, scoredRecord{
			id:         row.ID,
			similarity: ai.CosineSimilarity(vector, row.Embedding),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].similarity > scored[j].similarity
	})

	return scored, nil
}

func (r *caseRecordRepository) loadScored(ctx context.Context, scored []scoredRecord) ([]*CaseRecord, error) {
	if len(scored) == 0 {
		return []*CaseRecord{}, nil
	}

	ids := make([]string, len(scored))
	for i, s := range scored {
		ids[i] = s.id
	}

	var rows []*CaseRecord
	if err := withTags(r.getDB(ctx)).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, storeError(err)
	}

	byID := make(map[string]*CaseRecord, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}

	records := make([]*CaseRecord, 0, len(scored))
	for _, s := range scored {
		if row, ok := byID[s.id]; ok {
			row.Similarity = s.similarity
			records = append(records, row)
		}
	}

	return records, nil
}

func (r *caseRecordRepository) recordsWithAllTags(ctx context.Context, names []string) *gorm.DB {
	return r.getDB(ctx).
		Table("case_record_tags").
		Select("case_record_tags.case_record_id").
		Joins("JOIN tags ON tags.id = case_record_tags.tag_id").
		Where("tags.name IN ?", names).
		Group("case_record_tags.case_record_id").
		Having("COUNT(DISTINCT tags.id) = ?", len(names))
}

// FindByTags returns records carrying at least one of tagIDs.
func (r *caseRecordRepository) FindByTags(ctx context.Context, tagIDs []string, page Pagination) ([]*CaseRecord, int64, error) {
	log := r.log.Function("FindByTags")

	tagIDs = dedupe(tagIDs)
	if len(tagIDs) == 0 {
		return []*CaseRecord{}, 0, nil
	}

	tagged := r.getDB(ctx).
		Table("case_record_tags").
		Select("case_record_id").
		Where("tag_id IN ?", tagIDs)

	var total int64
	if err := r.getDB(ctx).Model(&CaseRecord{}).Where("id IN (?)", tagged).Count(&total).Error; err != nil {
		return nil, 0, log.Err("failed to count tagged case records", storeError(err))
	}

	var records []*CaseRecord
	err := withTags(r.getDB(ctx)).
		Where("id IN (?)", tagged).
		Order("created_at ASC").
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&records).Error
	if err != nil {
		return nil, 0, log.Err("failed to find tagged case records", storeError(err), "tagIds", tagIDs)
	}

	return records, total, nil
}

// FindByKeyword does a case-insensitive substring match over the text fields.
// TagNames, when set, keeps only records carrying every listed tag.
func (r *caseRecordRepository) FindByKeyword(ctx context.Context, keyword string, tagNames []string, page Pagination) ([]*CaseRecord, int64, error) {
	log := r.log.Function("FindByKeyword")

	pattern := likePattern(strings.ToLower(strings.TrimSpace(keyword)))
	match := r.getDB(ctx).Where(
		`LOWER(symptoms) LIKE ? ESCAPE '\' OR LOWER(treatment) LIKE ? ESCAPE '\' OR `+
			`LOWER(diagnosis) LIKE ? ESCAPE '\' OR LOWER(body_part) LIKE ? ESCAPE '\'`,
		pattern, pattern, pattern, pattern,
	)
	if names := dedupe(tagNames); len(names) > 0 {
		match = match.Where("id IN (?)", r.recordsWithAllTags(ctx, names))
	}

	var total int64
	if err := r.getDB(ctx).Model(&CaseRecord{}).Where(match).Count(&total).Error; err != nil {
		return nil, 0, log.Err("failed to count case records", storeError(err), "keyword", keyword)
	}

	var records []*CaseRecord
	err := withTags(r.getDB(ctx)).
		Where(match).
		Order("created_at DESC").
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&records).Error
	if err != nil {
		return nil, 0, log.Err("failed to search case records", storeError(err), "keyword", keyword)
	}

	return records, total, nil
}

// AddTags ensures an association row exists for every tag id.
func (r *caseRecordRepository) AddTags(ctx context.Context, recordID string, tagIDs []string) error {
	log := r.log.Function("AddTags")

	tagIDs = dedupe(tagIDs)
	if len(tagIDs) == 0 {
		return nil
	}

	rows := make([]CaseRecordTag, len(tagIDs))
	for i, tagID := range tagIDs {
		rows[i] = CaseRecordTag{CaseRecordID: recordID, TagID: tagID}
	}

	if err := r.getDB(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error; err != nil {
		return log.Err("failed to add case record tags", storeError(err), "recordId", recordID, "tagIds", tagIDs)
	}

	return nil
}

// RemoveTags ensures no association row exists for any of the tag ids.
func (r *caseRecordRepository) RemoveTags(ctx context.Context, recordID string, tagIDs []string) error {
	log := r.log.Function("RemoveTags")

	tagIDs = dedupe(tagIDs)
	if len(tagIDs) == 0 {
		return nil
	}

	err := r.getDB(ctx).
		Where("case_record_id = ? AND tag_id IN ?", recordID, tagIDs).
		Delete(&CaseRecordTag{}).Error
	if err != nil {
		return log.Err("failed to remove case record tags", storeError(err), "recordId", recordID, "tagIds", tagIDs)
	}

	return nil
}

// SetTags makes tagIDs the record's exact tag set, touching only the
// association rows that differ.
func (r *caseRecordRepository) SetTags(ctx context.Context, recordID string, tagIDs []string) error {
	log := r.log.Function("SetTags")

	tagIDs = dedupe(tagIDs)

	err := withTransaction(ctx, r.db, func(tx *gorm.DB) error {
		stale := tx.Where("case_record_id = ?", recordID)
		if len(tagIDs) > 0 {
			stale = stale.Where("tag_id NOT IN ?", tagIDs)
		}
		if err := stale.Delete(&CaseRecordTag{}).Error; err != nil {
			return storeError(err)
		}
		if len(tagIDs) == 0 {
			return nil
		}

		rows := make([]CaseRecordTag, len(tagIDs))
		for i, tagID := range tagIDs {
			rows[i] = CaseRecordTag{CaseRecordID: recordID, TagID: tagID}
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error; err != nil {
			return storeError(err)
		}
		return nil
	})
	if err != nil {
		return log.Err("failed to set case record tags", err, "recordId", recordID)
	}

	return nil
}
