package resource

import (
	"manim-service/pkg/config"
	"manim-service/pkg/kafka"
	"manim-service/pkg/logger"
	"manim-service/pkg/manager"
)

type KafkaResource struct{}

type KafkaResourcePlugin struct{}

func (p *KafkaResourcePlugin) Name() string { return "kafka" }

func (p *KafkaResourcePlugin) Enabled(cfg *config.Config) bool {
	return cfg != nil && cfg.Kafka.Enabled
}

func (p *KafkaResourcePlugin) MustCreateResource() manager.Resource { return &KafkaResource{} }

func (r *KafkaResource) MustOpen() {
	cfg := config.GetGlobalConfig()
	if cfg == nil {
		panic("global config not initialized before Kafka client")
	}
	client := kafka.DefaultClient()
	client.Open(cfg.Kafka)
	topics := []string{cfg.Kafka.Topics.JobEvents}
	if cfg.Kafka.ConsumeRequests {
		topics = append(topics, cfg.Kafka.Topics.JobRequests)
	}
	for _, topic := range topics {
		if err := client.EnsureTopic(topic, 3, 1); err != nil {
			logger.Warnf("Kafka topic not ensured topic=%s error=%v", topic, err)
		}
	}
}

func (r *KafkaResource) Close() { kafka.DefaultClient().Close() }
