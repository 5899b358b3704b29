package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/webdevsha/permitakaun/pkg/config"
)

// ErrNoBrokers is returned when the producer is built without seed brokers
var ErrNoBrokers = errors.New("kafka: no brokers configured")

// ProducerConfig holds producer settings
type ProducerConfig struct {
	Brokers      []string
	ClientID     string
	DefaultTopic string
	// ProduceTimeout bounds a single synchronous produce
	ProduceTimeout time.Duration
}

// FromConfig maps the application kafka section onto producer settings
func FromConfig(c config.KafkaConfig) *ProducerConfig {
	return &ProducerConfig{
		Brokers:        c.Brokers,
		ClientID:       c.ClientID,
		DefaultTopic:   c.NotificationTopic,
		ProduceTimeout: 5 * time.Second,
	}
}

// Message is one record to publish
type Message struct {
	Topic   string
	Key     string
	Value   []byte
	Headers map[string]string
}

// Producer publishes records synchronously with all-ISR acks
type Producer struct {
	client *kgo.Client
	cfg    *ProducerConfig
}

// NewProducer creates a franz-go client and verifies broker reachability
func NewProducer(ctx context.Context, cfg *ProducerConfig) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, ErrNoBrokers
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.RecordRetries(3),
	}
	if cfg.ClientID != "" {
		opts = append(opts, kgo.ClientID(cfg.ClientID))
	}
	if cfg.DefaultTopic != "" {
		opts = append(opts, kgo.DefaultProduceTopic(cfg.DefaultTopic))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping kafka: %w", err)
	}

	return &Producer{client: client, cfg: cfg}, nil
}

// Produce publishes one message and waits for the broker ack
func (p *Producer) Produce(ctx context.Context, msg Message) error {
	if p.cfg.ProduceTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.ProduceTimeout)
		defer cancel()
	}

	return p.client.ProduceSync(ctx, toRecord(msg)).FirstErr()
}

func toRecord(msg Message) *kgo.Record {
	rec := &kgo.Record{
		Topic: msg.Topic,
		Value: msg.Value,
	}
	if msg.Key != "" {
		rec.Key = []byte(msg.Key)
	}
	for k, v := range msg.Headers {
		rec.Headers = append(rec.Headers, kgo.RecordHeader{Key: k, Value: []byte(v)})
	}
	return rec
}

// HealthCheck pings the seed brokers
func (p *Producer) HealthCheck(ctx context.Context) error {
	return p.client.Ping(ctx)
}

// Close flushes buffered records and closes the client
func (p *Producer) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = p.client.Flush(ctx)
	p.client.Close()
}
