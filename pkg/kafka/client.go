package kafka

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"time"

	kafka "github.com/segmentio/kafka-go"

	"manim-service/pkg/config"
	"manim-service/pkg/logger"
)

// ErrNotOpened is returned when the client is used before Open.
var ErrNotOpened = errors.New("kafka client not opened")

type Client struct {
	mu       sync.RWMutex
	brokers  []string
	clientID string
	dialer   *kafka.Dialer
	writers  sync.Map // topic -> *kafka.Writer
}

var (
	once      sync.Once
	singleton *Client
)

func DefaultClient() *Client {
	once.Do(func() {
		singleton = &Client{}
	})
	return singleton
}

// NewClient returns a client bound to cfg. No connection is made until the
// first write or read.
func NewClient(cfg config.KafkaConfig) *Client {
	c := &Client{}
	c.Open(cfg)
	return c
}

func (c *Client) Open(cfg config.KafkaConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.brokers = append([]string(nil), cfg.BootstrapServers...)
	c.clientID = cfg.ClientID
	c.dialer = &kafka.Dialer{
		Timeout:  10 * time.Second,
		ClientID: c.clientID,
	}
	logger.Infof("Kafka client opened brokers=%v client_id=%s", c.brokers, c.clientID)
}

func (c *Client) Brokers() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.brokers
}

func (c *Client) Close() {
	c.writers.Range(func(key, value interface{}) bool {
		if w, ok := value.(*kafka.Writer); ok {
			if err := w.Close(); err != nil {
				logger.Warnf("Kafka writer close topic=%v: %v", key, err)
			}
		}
		c.writers.Delete(key)
		return true
	})
}

func (c *Client) Writer(topic string) *kafka.Writer {
	if v, ok := c.writers.Load(topic); ok {
		return v.(*kafka.Writer)
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(c.Brokers()...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}
	actual, loaded := c.writers.LoadOrStore(topic, w)
	if loaded {
		_ = w.Close()
	}
	return actual.(*kafka.Writer)
}

// Produce writes one message. Messages with the same key land on the same
// partition, so events of one job stay ordered.
func (c *Client) Produce(ctx context.Context, topic string, key, value []byte) error {
	if len(c.Brokers()) == 0 {
		return ErrNotOpened
	}
	msg := kafka.Message{Key: key, Value: value, Time: time.Now()}
	return c.Writer(topic).WriteMessages(ctx, msg)
}

func (c *Client) Reader(topic, groupID string) *kafka.Reader {
	c.mu.RLock()
	brokers, dialer := c.brokers, c.dialer
	c.mu.RUnlock()
	logger.Infof("Kafka reader created topic=%s group=%s brokers=%v", topic, groupID, brokers)
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		GroupID:  groupID,
		Topic:    topic,
		Dialer:   dialer,
		MinBytes: 1,
		MaxBytes: 10 << 20,
	})
}

// EnsureTopic creates the topic if it does not exist.
func (c *Client) EnsureTopic(topic string, numPartitions, replicationFactor int) error {
	brokers := c.Brokers()
	if len(brokers) == 0 {
		return nil
	}
	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return err
	}
	defer conn.Close()
	controller, err := conn.Controller()
	if err != nil {
		return err
	}
	addr := net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port))
	cc, err := kafka.Dial("tcp", addr)
	if err != nil {
		return err
	}
	defer cc.Close()
	return cc.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     numPartitions,
		ReplicationFactor: replicationFactor,
	})
}
