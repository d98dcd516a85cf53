// Package events defines the batch lifecycle messages published to Kafka.
package events

import "time"

const (
	TypeBatchCreated = "batch.created"
	TypeBatchDeleted = "batch.deleted"
)

const (
	SourceFile = "file"
	SourceNews = "news"
)

// BatchEvent describes an ingestion batch that was committed or deleted.
type BatchEvent struct {
	Type       string    `json:"type"`
	UserID     string    `json:"user_id"`
	Tag        string    `json:"tag"`
	RelatedKey string    `json:"related_key"`
	Rows       int64     `json:"rows"`
	Source     string    `json:"source,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
