package component

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"

	kafka "github.com/segmentio/kafka-go"

	appsvc "manim-service/ddd/application/app"
	"manim-service/ddd/application/cqe"
	"manim-service/pkg/config"
	pkgkafka "manim-service/pkg/kafka"
	"manim-service/pkg/logger"
	"manim-service/pkg/manager"
	"manim-service/pkg/task"
)

type RenderJobConsumerPlugin struct{}

func (p *RenderJobConsumerPlugin) Name() string { return "renderJobConsumer" }

// Enabled only when kafka is on and this instance consumes submissions.
func (p *RenderJobConsumerPlugin) Enabled(cfg *config.Config) bool {
	return cfg != nil && cfg.Kafka.Enabled && cfg.Kafka.ConsumeRequests
}

func (p *RenderJobConsumerPlugin) MustCreateComponent(deps *manager.Dependencies) manager.Component {
	if deps == nil || deps.Config == nil {
		panic("render job consumer needs config")
	}
	renderApp, ok := deps.RenderApp.(appsvc.RenderApp)
	if !ok || renderApp == nil {
		panic("render job consumer needs a RenderApp")
	}
	topic := deps.Config.Kafka.Topics.JobRequests
	group := deps.Config.Kafka.GroupID
	return NewRenderJobConsumer(renderApp, pkgkafka.DefaultClient().Reader(topic, group), topic)
}

// MessageReader is the part of *kafka.Reader the consumer uses.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// renderJobMessage 提交消息格式，与 HTTP 提交一致
type renderJobMessage struct {
	JobID    string `json:"jobId"`
	ClientID string `json:"clientId"`
	Prompt   string `json:"prompt"`
}

// RenderJobConsumer turns messages on the request topic into job submissions.
type RenderJobConsumer struct {
	app    appsvc.RenderApp
	reader MessageReader
	topic  string

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func NewRenderJobConsumer(renderApp appsvc.RenderApp, reader MessageReader, topic string) *RenderJobConsumer {
	return &RenderJobConsumer{app: renderApp, reader: reader, topic: topic}
}

// Start registers the read loop as a background task; it begins with task.StartAll.
func (c *RenderJobConsumer) Start() error {
	task.Register(task.New(c.GetName(), c.Run, c.Stop))
	return nil
}

func (c *RenderJobConsumer) GetName() string { return "renderJobConsumer" }

// Run reads in the background until ctx is cancelled or Stop is called.
func (c *RenderJobConsumer) Run(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	go c.loop(ctx)
	return nil
}

func (c *RenderJobConsumer) loop(ctx context.Context) {
	defer close(c.done)
	defer c.reader.Close()
	logger.Infof("Kafka consumer started topic=%s", c.topic)
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, io.EOF) {
				logger.Debug("Kafka reader EOF")
			} else {
				logger.Warnf("Kafka read error error=%s", err.Error())
			}
			continue
		}
		c.handle(ctx, msg)
	}
}

func (c *RenderJobConsumer) handle(ctx context.Context, msg kafka.Message) {
	var m renderJobMessage
	if err := json.Unmarshal(msg.Value, &m); err != nil {
		logger.Warnf("Kafka message unmarshal error error=%s offset=%d", err.Error(), msg.Offset)
		return
	}
	res, err := c.app.StartJob(ctx, &cqe.StartRenderJobReq{JobID: m.JobID, ClientID: m.ClientID, Prompt: m.Prompt})
	if err != nil {
		logger.Warnf("StartJob from kafka failed client_id=%s error=%s", m.ClientID, err.Error())
		return
	}
	logger.Infof("Kafka submission accepted job_id=%s client_id=%s reused=%t", res.JobID, m.ClientID, res.Reused)
}

func (c *RenderJobConsumer) Stop() error {
	c.once.Do(func() {
		if c.cancel != nil {
			c.cancel()
			<-c.done
		}
	})
	return nil
}
