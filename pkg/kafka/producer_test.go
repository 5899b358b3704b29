package kafka

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/webdevsha/permitakaun/pkg/config"
)

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(config.KafkaConfig{
		Brokers:           []string{"k1:9092", "k2:9092"},
		ClientID:          "permitakaun",
		NotificationTopic: "permitakaun.notifications",
	})

	if len(cfg.Brokers) != 2 {
		t.Errorf("Brokers = %v", cfg.Brokers)
	}
	if cfg.DefaultTopic != "permitakaun.notifications" {
		t.Errorf("DefaultTopic = %q", cfg.DefaultTopic)
	}
	if cfg.ProduceTimeout <= 0 {
		t.Error("expected a positive produce timeout")
	}
}

func TestNewProducer_NoBrokers(t *testing.T) {
	_, err := NewProducer(context.Background(), &ProducerConfig{})
	if !errors.Is(err, ErrNoBrokers) {
		t.Errorf("err = %v, want ErrNoBrokers", err)
	}
}

func TestToRecord(t *testing.T) {
	rec := toRecord(Message{
		Topic:   "t",
		Key:     "ref-1",
		Value:   []byte(`{"a":1}`),
		Headers: map[string]string{"event_type": "payment.receipt"},
	})

	if rec.Topic != "t" || string(rec.Key) != "ref-1" || string(rec.Value) != `{"a":1}` {
		t.Errorf("unexpected record %+v", rec)
	}
	if len(rec.Headers) != 1 || rec.Headers[0].Key != "event_type" || string(rec.Headers[0].Value) != "payment.receipt" {
		t.Errorf("unexpected headers %+v", rec.Headers)
	}

	if rec := toRecord(Message{Value: []byte("x")}); rec.Key != nil {
		t.Error("expected nil key when none given")
	}
}

func TestProducer_Integration(t *testing.T) {
	if os.Getenv("INTEGRATION_TEST") != "true" {
		t.Skip("Skipping integration test. Set INTEGRATION_TEST=true to run")
	}

	brokers := os.Getenv("TEST_KAFKA_BROKERS")
	if brokers == "" {
		brokers = "localhost:9092"
	}
	ctx := context.Background()
	p, err := NewProducer(ctx, &ProducerConfig{
		Brokers:      strings.Split(brokers, ","),
		ClientID:     "permitakaun-test",
		DefaultTopic: "permitakaun.test",
	})
	if err != nil {
		t.Fatalf("NewProducer() error = %v", err)
	}
	defer p.Close()

	if err := p.Produce(ctx, Message{Key: "k", Value: []byte("v")}); err != nil {
		t.Errorf("Produce() error = %v", err)
	}
}
