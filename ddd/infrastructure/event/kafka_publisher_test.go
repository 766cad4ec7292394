package event

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"manim-service/ddd/domain/gateway"
)

type message struct {
	topic string
	key   string
	value []byte
}

type fakeProducer struct {
	sent []message
	err  error
}

func (f *fakeProducer) Produce(_ context.Context, topic string, key, value []byte) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, message{topic: topic, key: string(key), value: value})
	return nil
}

func TestPublishKeyedByJob(t *testing.T) {
	p := &fakeProducer{}
	pub := NewKafkaJobEventPublisher(p, "manim.job.events")

	evt := gateway.JobEvent{
		JobID:     "job-1",
		ClientID:  "c1",
		Status:    "running",
		Step:      "render",
		Timestamp: time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC),
	}
	if err := pub.Publish(context.Background(), evt); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(p.sent) != 1 {
		t.Fatalf("sent %d messages", len(p.sent))
	}
	msg := p.sent[0]
	if msg.topic != "manim.job.events" || msg.key != "job-1" {
		t.Errorf("topic=%q key=%q", msg.topic, msg.key)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(msg.value, &decoded); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if decoded["jobId"] != "job-1" || decoded["step"] != "render" || decoded["hasVideo"] != false {
		t.Errorf("payload = %v", decoded)
	}
	if _, ok := decoded["error"]; ok {
		t.Error("empty error must be omitted")
	}
}

func TestPublishFailure(t *testing.T) {
	boom := errors.New("broker down")
	pub := NewKafkaJobEventPublisher(&fakeProducer{err: boom}, "t")
	if err := pub.Publish(context.Background(), gateway.JobEvent{JobID: "j"}); !errors.Is(err, boom) {
		t.Errorf("err = %v", err)
	}
}
