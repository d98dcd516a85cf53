package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"feed-ai-go/internal/config"
	"feed-ai-go/internal/model"
	"feed-ai-go/internal/pipeline"
	"feed-ai-go/internal/repository"
	"feed-ai-go/pkg/events"
	"feed-ai-go/pkg/kafka"
	"feed-ai-go/pkg/log"
	"feed-ai-go/pkg/storage"

	"github.com/samber/lo"
	"gorm.io/gorm"
)

const (
	defaultPage         = 1
	defaultItemsPerPage = 10
	maxItemsPerPage     = 100
	defaultSampleSize   = 20
)

// 过滤接口接受的日期运算符。
const (
	DateOpEqual        = "e"
	DateOpGreater      = "gt"
	DateOpGreaterEqual = "gte"
	DateOpLess         = "lt"
	DateOpLessEqual    = "lte"
)

// FeedbackService 定义了文件导入、查询与删除分析结果的业务操作。
type FeedbackService interface {
	IngestFile(ctx context.Context, userID, filename string, data []byte) (*IngestResult, error)
	Filter(ctx context.Context, userID string, q FilterQuery) ([]model.FilteredRow, error)
	Group(ctx context.Context, userID string) ([]model.SentimentCount, error)
	DistinctTags(ctx context.Context, userID string) ([]string, error)
	DeleteByTag(ctx context.Context, userID, tag string) (int64, error)
}

// SampleRow 是导入响应中展示的一条样例。
type SampleRow struct {
	Text                string `json:"Text"`
	SentimentPrediction string `json:"Sentiment_Prediction"`
}

// IngestResult 是一次文件导入的结果摘要。
type IngestResult struct {
	Tag        string      `json:"tag"`
	RelatedKey string      `json:"related_key"`
	Rows       int         `json:"rows"`
	Sample     []SampleRow `json:"sample"`
}

// FilterQuery 是过滤接口的输入。零值的 Page 和 ItemsPerPage 使用默认值。
type FilterQuery struct {
	Sentiment    string
	Tags         []string
	Date         string
	DateOperator string
	Page         int
	ItemsPerPage int
}

type feedbackService struct {
	ingestor
	processor  *pipeline.Processor
	archiver   storage.Archiver
	sampleSize int
	now        func() time.Time
}

// NewFeedbackService 创建一个新的 FeedbackService 实例。
// archiver 与 publisher 可以为 nil，此时跳过归档与事件发布。
func NewFeedbackService(
	repo repository.FeedbackRepository,
	processor *pipeline.Processor,
	archiver storage.Archiver,
	publisher kafka.Publisher,
	cfg config.IngestConfig,
) FeedbackService {
	sample := cfg.SampleSize
	if sample <= 0 {
		sample = defaultSampleSize
	}
	return &feedbackService{
		ingestor:   ingestor{repo: repo, publisher: publisher},
		processor:  processor,
		archiver:   archiver,
		sampleSize: sample,
		now:        time.Now,
	}
}

// IngestFile 解析上传的表格文件，对 Text 列打标签并作为一个批次保存。
// 批次标签是去掉扩展名的文件名。
func (s *feedbackService) IngestFile(ctx context.Context, userID, filename string, data []byte) (*IngestResult, error) {
	if _, ok := pipeline.SupportedFormat(filename); !ok {
		return nil, BadRequest(MsgUnsupportedFile)
	}
	tag := pipeline.TagFromFilename(filename)
	if strings.TrimSpace(tag) == "" {
		return nil, BadRequest("File name must not be empty")
	}
	if err := validateTag(tag); err != nil {
		return nil, err
	}
	if err := s.checkTagAvailable(ctx, userID, tag); err != nil {
		return nil, err
	}

	texts, err := pipeline.ReadTexts(filename, bytes.NewReader(data))
	if err != nil {
		switch {
		case errors.Is(err, pipeline.ErrMissingTextColumn):
			return nil, BadRequest(MsgMissingTextColumn)
		case errors.Is(err, pipeline.ErrEmptyFile):
			return nil, BadRequest("File has no rows")
		case errors.Is(err, pipeline.ErrUnsupportedFormat):
			return nil, BadRequest(MsgUnsupportedFile)
		default:
			return nil, newError(http.StatusBadRequest, "Could not read file", err)
		}
	}

	labeled := s.processor.Label(texts)
	if len(labeled) == 0 {
		return nil, BadRequest(MsgNoUsableText)
	}

	rows := lo.Map(labeled, func(lt pipeline.LabeledText, _ int) model.FeedbackResult {
		return model.FeedbackResult{Text: lt.Text, SentimentPrediction: lt.Sentiment}
	})
	bt, err := s.ingest(ctx, userID, tag, s.now(), rows, events.SourceFile)
	if err != nil {
		return nil, err
	}

	s.archive(ctx, bt, filename, data)

	sample := lo.Map(labeled[:min(len(labeled), s.sampleSize)], func(lt pipeline.LabeledText, _ int) SampleRow {
		return SampleRow{Text: lt.Text, SentimentPrediction: lt.Sentiment}
	})
	return &IngestResult{
		Tag:        bt.Tag,
		RelatedKey: bt.RelatedKey,
		Rows:       len(rows),
		Sample:     sample,
	}, nil
}

// archive 在批次提交后保存原始文件，失败只记录日志。
func (s *feedbackService) archive(ctx context.Context, bt *model.BatchTag, filename string, data []byte) {
	if s.archiver == nil {
		return
	}
	object := storage.ObjectName(bt.UserID, bt.RelatedKey, filename)
	if err := s.archiver.Archive(ctx, object, bytes.NewReader(data), int64(len(data)), contentTypeOf(filename)); err != nil {
		log.Warnw("archive upload failed", "object", object, "error", err)
		return
	}
	if err := s.repo.SetSourceObject(ctx, bt.ID, object); err != nil {
		log.Warnw("record source object failed", "tag_id", bt.ID, "error", err)
		return
	}
	bt.SourceObject = object
}

func contentTypeOf(filename string) string {
	if ext, _ := pipeline.SupportedFormat(filename); ext == ".xlsx" {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

// Filter 返回请求者的结果行，所有条件以结构化谓词下推到 SQL。
func (s *feedbackService) Filter(ctx context.Context, userID string, q FilterQuery) ([]model.FilteredRow, error) {
	preds, err := buildPredicates(q)
	if err != nil {
		return nil, err
	}

	page, perPage := q.Page, q.ItemsPerPage
	if page == 0 {
		page = defaultPage
	}
	if perPage == 0 {
		perPage = defaultItemsPerPage
	}
	if page < 1 {
		return nil, BadRequest("page must be greater than or equal to 1")
	}
	if perPage < 1 || perPage > maxItemsPerPage {
		return nil, BadRequest(fmt.Sprintf("items_per_page must be between 1 and %d", maxItemsPerPage))
	}

	rows, err := s.repo.Filter(ctx, userID, preds, perPage, (page-1)*perPage)
	if err != nil {
		return nil, Internal(err)
	}
	return rows, nil
}

func buildPredicates(q FilterQuery) ([]repository.Predicate, error) {
	var preds []repository.Predicate

	if q.Sentiment != "" {
		sentiment := strings.ToLower(strings.TrimSpace(q.Sentiment))
		if !model.ValidSentiment(sentiment) {
			return nil, BadRequest("sentiment must be one of: positivo, negativo, neutro")
		}
		preds = append(preds, repository.Where(repository.ColumnSentiment, repository.OpEq, sentiment))
	}

	tags := lo.Uniq(lo.Filter(q.Tags, func(t string, _ int) bool { return strings.TrimSpace(t) != "" }))
	if len(tags) > 0 {
		preds = append(preds, repository.Where(repository.ColumnTag, repository.OpIn, tags))
	}

	hasDate, hasOp := q.Date != "", q.DateOperator != ""
	if hasDate != hasOp {
		return nil, BadRequest(MsgDateOperator)
	}
	if hasDate {
		datePreds, err := datePredicates(strings.TrimSpace(q.Date), strings.ToLower(strings.TrimSpace(q.DateOperator)))
		if err != nil {
			return nil, err
		}
		preds = append(preds, datePreds...)
	}
	return preds, nil
}

// datePredicates 处理两种日期格式：
// YYYY-MM-DD 按整天比较（e 表示当天任意时刻，lte 包含当天结束前的所有时刻）；
// RFC3339 按精确时刻比较。
func datePredicates(date, op string) ([]repository.Predicate, error) {
	col := repository.ColumnDate
	where := repository.Where

	if day, err := time.Parse("2006-01-02", date); err == nil {
		start := day.UTC()
		end := start.AddDate(0, 0, 1)
		switch op {
		case DateOpEqual:
			return []repository.Predicate{where(col, repository.OpGte, start), where(col, repository.OpLt, end)}, nil
		case DateOpGreater:
			return []repository.Predicate{where(col, repository.OpGte, end)}, nil
		case DateOpGreaterEqual:
			return []repository.Predicate{where(col, repository.OpGte, start)}, nil
		case DateOpLess:
			return []repository.Predicate{where(col, repository.OpLt, start)}, nil
		case DateOpLessEqual:
			return []repository.Predicate{where(col, repository.OpLt, end)}, nil
		}
		return nil, BadRequest(MsgDateOperator)
	}

	instant, err := time.Parse(time.RFC3339, date)
	if err != nil {
		return nil, BadRequest("date must be formatted as YYYY-MM-DD or RFC3339")
	}
	instant = instant.UTC()
	ops := map[string]repository.Operator{
		DateOpEqual:        repository.OpEq,
		DateOpGreater:      repository.OpGt,
		DateOpGreaterEqual: repository.OpGte,
		DateOpLess:         repository.OpLt,
		DateOpLessEqual:    repository.OpLte,
	}
	sqlOp, ok := ops[op]
	if !ok {
		return nil, BadRequest(MsgDateOperator)
	}
	return []repository.Predicate{where(col, sqlOp, instant)}, nil
}

// Group 统计请求者每个标签下各情感的数量。
func (s *feedbackService) Group(ctx context.Context, userID string) ([]model.SentimentCount, error) {
	counts, err := s.repo.GroupCounts(ctx, userID)
	if err != nil {
		return nil, Internal(err)
	}
	return counts, nil
}

// DistinctTags 列出请求者的所有标签。
func (s *feedbackService) DistinctTags(ctx context.Context, userID string) ([]string, error) {
	tags, err := s.repo.DistinctTags(ctx, userID)
	if err != nil {
		return nil, Internal(err)
	}
	return tags, nil
}

// DeleteByTag 删除请求者名下指定标签的整个批次，其他用户的同名标签不受影响。
func (s *feedbackService) DeleteByTag(ctx context.Context, userID, tag string) (int64, error) {
	bt, err := s.repo.FindTag(ctx, userID, tag)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, NotFound(MsgTagNotFound)
		}
		return 0, Internal(err)
	}

	deleted, err := s.repo.DeleteBatch(ctx, bt)
	if err != nil {
		return 0, translateStorageError(err, MsgTagNotFound)
	}
	log.Infow("batch deleted", "user_id", userID, "tag", tag, "related_key", bt.RelatedKey, "rows", deleted)

	if bt.SourceObject != "" && s.archiver != nil {
		if err := s.archiver.Remove(ctx, bt.SourceObject); err != nil {
			log.Warnf("[FeedbackService] remove archived upload failed, object=%s, error: %v", bt.SourceObject, err)
		}
	}
	s.publish(ctx, events.BatchEvent{
		Type:       events.TypeBatchDeleted,
		UserID:     userID,
		Tag:        tag,
		RelatedKey: bt.RelatedKey,
		Rows:       deleted,
		OccurredAt: s.now().UTC(),
	})
	return deleted, nil
}
