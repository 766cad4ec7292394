package event

import (
	"context"
	"encoding/json"
	"fmt"

	"manim-service/ddd/domain/gateway"
	"manim-service/pkg/logger"
)

// Producer is the slice of the kafka client the publisher needs.
type Producer interface {
	Produce(ctx context.Context, topic string, key, value []byte) error
}

// KafkaJobEventPublisher writes job events keyed by job id, so every event of
// one job lands on the same partition in order.
type KafkaJobEventPublisher struct {
	producer Producer
	topic    string
}

func NewKafkaJobEventPublisher(producer Producer, topic string) *KafkaJobEventPublisher {
	return &KafkaJobEventPublisher{producer: producer, topic: topic}
}

func (p *KafkaJobEventPublisher) Publish(ctx context.Context, evt gateway.JobEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal job event: %w", err)
	}
	if err := p.producer.Produce(ctx, p.topic, []byte(evt.JobID), payload); err != nil {
		logger.Warn("Job event publish failed", map[string]interface{}{
			"job_id": evt.JobID,
			"step":   evt.Step,
			"topic":  p.topic,
			"error":  err.Error(),
		})
		return fmt.Errorf("publish job event to %s: %w", p.topic, err)
	}
	return nil
}
