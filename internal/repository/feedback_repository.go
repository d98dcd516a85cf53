package repository

import (
	"context"
	"fmt"
	"time"

	"feed-ai-go/internal/model"

	"gorm.io/gorm"
)

const defaultInsertBatch = 500

// FeedbackRepository 定义了分析结果与批次标签的持久化操作。
type FeedbackRepository interface {
	CreateBatch(ctx context.Context, tag *model.BatchTag, results []model.FeedbackResult) error
	FindTag(ctx context.Context, userID, tag string) (*model.BatchTag, error)
	Filter(ctx context.Context, userID string, preds []Predicate, limit, offset int) ([]model.FilteredRow, error)
	GroupCounts(ctx context.Context, userID string) ([]model.SentimentCount, error)
	DistinctTags(ctx context.Context, userID string) ([]string, error)
	DeleteBatch(ctx context.Context, tag *model.BatchTag) (int64, error)
	SetSourceObject(ctx context.Context, tagID uint, object string) error
}

type feedbackRepository struct {
	db        *gorm.DB
	batchSize int
}

// NewFeedbackRepository 创建一个新的 FeedbackRepository 实例。
// insertBatch 控制多行插入时每条 INSERT 语句包含的行数。
func NewFeedbackRepository(db *gorm.DB, insertBatch int) FeedbackRepository {
	if insertBatch <= 0 {
		insertBatch = defaultInsertBatch
	}
	return &feedbackRepository{db: db, batchSize: insertBatch}
}

// CreateBatch 在一个事务中写入批次标签和全部结果行，任一失败则整体回滚。
// 先写标签，使重复标签的唯一键冲突在批量插入之前暴露。
func (r *feedbackRepository) CreateBatch(ctx context.Context, tag *model.BatchTag, results []model.FeedbackResult) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(tag).Error; err != nil {
			return err
		}
		if len(results) == 0 {
			return nil
		}
		return tx.CreateInBatches(&results, r.batchSize).Error
	})
}

// FindTag 按用户与标签名查找批次。
func (r *feedbackRepository) FindTag(ctx context.Context, userID, tag string) (*model.BatchTag, error) {
	var bt model.BatchTag
	err := r.db.WithContext(ctx).Where("user_id = ? AND tag = ?", userID, tag).First(&bt).Error
	if err != nil {
		return nil, err
	}
	return &bt, nil
}

func (r *feedbackRepository) joined(ctx context.Context, userID string) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("ai_response AS r").
		Joins("JOIN ai_response_tags AS t ON t.related_key = r.related_key AND t.user_id = r.user_id").
		Where("r.user_id = ?", userID)
}

type filteredRecord struct {
	Date      time.Time
	Sentiment string
	Text      string
	Tag       string
}

// Filter 返回请求者的结果行，按结果 id 排序并在 SQL 中分页。
func (r *feedbackRepository) Filter(ctx context.Context, userID string, preds []Predicate, limit, offset int) ([]model.FilteredRow, error) {
	q, err := applyPredicates(r.joined(ctx, userID), preds)
	if err != nil {
		return nil, err
	}

	var records []filteredRecord
	err = q.Select("r.consulted_query_date AS date, r.sentiment_prediction AS sentiment, r.text AS text, t.tag AS tag").
		Order("r.id").
		Limit(limit).
		Offset(offset).
		Scan(&records).Error
	if err != nil {
		return nil, fmt.Errorf("filter results: %w", err)
	}

	rows := make([]model.FilteredRow, len(records))
	for i, rec := range records {
		rows[i] = model.FilteredRow{
			Date:      model.LocalTime(rec.Date),
			Sentiment: rec.Sentiment,
			Text:      rec.Text,
			Tag:       rec.Tag,
		}
	}
	return rows, nil
}

// GroupCounts 按标签与情感统计请求者的结果数量。
func (r *feedbackRepository) GroupCounts(ctx context.Context, userID string) ([]model.SentimentCount, error) {
	var counts []model.SentimentCount
	err := r.joined(ctx, userID).
		Select("t.tag AS tag, r.sentiment_prediction AS sentiment, COUNT(*) AS count").
		Group("t.tag, r.sentiment_prediction").
		Order("t.tag, r.sentiment_prediction").
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("group results: %w", err)
	}
	return counts, nil
}

// DistinctTags 列出请求者拥有的全部标签。
func (r *feedbackRepository) DistinctTags(ctx context.Context, userID string) ([]string, error) {
	var tags []string
	err := r.db.WithContext(ctx).
		Model(&model.BatchTag{}).
		Where("user_id = ?", userID).
		Distinct("tag").
		Order("tag").
		Pluck("tag", &tags).Error
	if err != nil {
		return nil, fmt.Errorf("distinct tags: %w", err)
	}
	return tags, nil
}

// DeleteBatch 在一个事务中删除批次的所有结果行与标签本身，返回删除的结果行数。
func (r *feedbackRepository) DeleteBatch(ctx context.Context, tag *model.BatchTag) (int64, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("related_key = ? AND user_id = ?", tag.RelatedKey, tag.UserID).Delete(&model.FeedbackResult{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected
		return tx.Delete(&model.BatchTag{}, tag.ID).Error
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// SetSourceObject 记录批次归档文件在对象存储中的名称。
func (r *feedbackRepository) SetSourceObject(ctx context.Context, tagID uint, object string) error {
	return r.db.WithContext(ctx).
		Model(&model.BatchTag{}).
		Where("id = ?", tagID).
		Update("source_object", object).Error
}
