package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"feed-ai-go/internal/model"
	"feed-ai-go/internal/repository"
	"feed-ai-go/pkg/events"
	"feed-ai-go/pkg/kafka"
	"feed-ai-go/pkg/log"

	"gorm.io/gorm"
)

// ingestor 实现文件导入与关键词导入共享的批次写入流程。
type ingestor struct {
	repo      repository.FeedbackRepository
	publisher kafka.Publisher
}

// maxTagLength 与 ai_response_tags.tag 列的长度一致。
const maxTagLength = 255

// validateTag 拒绝空标签和超过列长度的标签。
func validateTag(tag string) error {
	if strings.TrimSpace(tag) == "" {
		return BadRequest("Tag must not be empty")
	}
	if utf8.RuneCountInString(tag) > maxTagLength {
		return BadRequest(MsgTagTooLong)
	}
	return nil
}

// relatedKey 是同一批次所有行共享的键：<user_id>-<unix 纳秒>。
func relatedKey(userID string, at time.Time) string {
	return fmt.Sprintf("%s-%d", userID, at.UnixNano())
}

// checkTagAvailable 在写入前检查标签是否已被该用户使用。
// 这只是提前给出友好的错误，真正的保证来自 key 列的唯一索引。
func (g *ingestor) checkTagAvailable(ctx context.Context, userID, tag string) error {
	_, err := g.repo.FindTag(ctx, userID, tag)
	if err == nil {
		return BadRequest(MsgDuplicateTag)
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	return Internal(err)
}

// ingest 给每一行补齐批次字段，并在一个事务中写入结果与批次标签。
// 调用方负责提前调用 checkTagAvailable，并发导入同名标签时由唯一索引拒绝。
func (g *ingestor) ingest(ctx context.Context, userID, tag string, at time.Time, rows []model.FeedbackResult, source string) (*model.BatchTag, error) {
	at = at.UTC()
	key := relatedKey(userID, at)
	for i := range rows {
		rows[i].ConsultedQueryDate = at
		rows[i].UserID = userID
		rows[i].RelatedKey = key
	}
	bt := &model.BatchTag{
		Tag:                tag,
		ConsultedQueryDate: at,
		UserID:             userID,
		RelatedKey:         key,
		Key:                model.TagKey(userID, tag),
	}

	if err := g.repo.CreateBatch(ctx, bt, rows); err != nil {
		return nil, translateStorageError(err, MsgTagNotFound)
	}
	log.Infow("batch stored", "user_id", userID, "tag", tag, "related_key", key, "rows", len(rows), "source", source)

	g.publish(ctx, events.BatchEvent{
		Type:       events.TypeBatchCreated,
		UserID:     userID,
		Tag:        tag,
		RelatedKey: key,
		Rows:       int64(len(rows)),
		Source:     source,
		OccurredAt: at,
	})
	return bt, nil
}

// publish 在事务提交后发送事件，失败只记录日志。
func (g *ingestor) publish(ctx context.Context, evt events.BatchEvent) {
	if g.publisher == nil {
		return
	}
	if err := g.publisher.PublishBatchEvent(ctx, evt); err != nil {
		log.Warnw("publish batch event failed", "type", evt.Type, "related_key", evt.RelatedKey, "error", err)
	}
}
