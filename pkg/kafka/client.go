// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"feed-ai-go/internal/config"
	"feed-ai-go/pkg/events"
	"feed-ai-go/pkg/log"

	"github.com/segmentio/kafka-go"
)

// Publisher 发布批次生命周期事件。
type Publisher interface {
	PublishBatchEvent(ctx context.Context, evt events.BatchEvent) error
	Close() error
}

// messageWriter 是 kafka.Writer 中被用到的部分，便于测试替换。
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type producer struct {
	writer messageWriter
}

// NewProducer 初始化 Kafka 生产者。brokers 为逗号分隔的地址列表。
func NewProducer(cfg config.KafkaConfig) Publisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(splitBrokers(cfg.Brokers)...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	log.Info("Kafka 生产者初始化成功")
	return &producer{writer: w}
}

func splitBrokers(brokers string) []string {
	var out []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// PublishBatchEvent 以 user_id 作为消息 key 发送事件，保证同一用户的事件有序。
func (p *producer) PublishBatchEvent(ctx context.Context, evt events.BatchEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal batch event: %w", err)
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(evt.UserID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(evt.Type)},
		},
	})
}

func (p *producer) Close() error {
	return p.writer.Close()
}
