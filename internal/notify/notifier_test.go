package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webdevsha/permitakaun/pkg/kafka"
	"go.opentelemetry.io/otel/trace"
)

type recordingPublisher struct {
	messages []kafka.Message
	err      error
}

func (p *recordingPublisher) Produce(ctx context.Context, msg kafka.Message) error {
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, msg)
	return nil
}

func sampleReceipt() Receipt {
	return Receipt{
		Email:       "jane@example.com",
		Name:        "Jane",
		Amount:      decimal.RequireFromString("15.5"),
		Description: "Sewa Tapak Bazar Ramadan",
		Date:        time.Date(2025, 3, 7, 14, 0, 0, 0, time.UTC),
		Reference:   "bill_123",
		Type:        "tenant_payment",
	}
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "15.50", FormatAmount(decimal.RequireFromString("15.5")))
	assert.Equal(t, "1200.00", FormatAmount(decimal.NewFromInt(1200)))
	assert.Equal(t, "07/03/2025", FormatDate(time.Date(2025, 3, 7, 0, 0, 0, 0, time.UTC)))
}

func TestKafkaNotifier(t *testing.T) {
	publisher := &recordingPublisher{}
	n := NewKafkaNotifier(publisher, "permitakaun.notifications", "admin@permitakaun.test")
	ctx := context.Background()

	require.NoError(t, n.SendReceipt(ctx, sampleReceipt()))
	require.NoError(t, n.SendAdminSummary(ctx, sampleReceipt()))
	require.Len(t, publisher.messages, 2)

	msg := publisher.messages[0]
	assert.Equal(t, "permitakaun.notifications", msg.Topic)
	assert.Equal(t, "bill_123", msg.Key)
	assert.Equal(t, KindReceipt, msg.Headers["kind"])

	var event Event
	require.NoError(t, json.Unmarshal(msg.Value, &event))
	assert.Equal(t, "jane@example.com", event.To)
	assert.Equal(t, "15.50", event.Amount)
	assert.Equal(t, "07/03/2025", event.Date)
	assert.Equal(t, "tenant_payment", event.Type)

	require.NoError(t, json.Unmarshal(publisher.messages[1].Value, &event))
	assert.Equal(t, KindAdminSummary, event.Kind)
	assert.Equal(t, "admin@permitakaun.test", event.To)
}

func TestKafkaNotifier_TraceID(t *testing.T) {
	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	}))

	publisher := &recordingPublisher{}
	n := NewKafkaNotifier(publisher, "permitakaun.notifications", "admin@permitakaun.test")
	require.NoError(t, n.SendReceipt(ctx, sampleReceipt()))
	require.NoError(t, n.SendReceipt(context.Background(), sampleReceipt()))
	require.Len(t, publisher.messages, 2)

	var event Event
	require.NoError(t, json.Unmarshal(publisher.messages[0].Value, &event))
	assert.Equal(t, traceID.String(), event.TraceID)
	assert.Equal(t, traceID.String(), publisher.messages[0].Headers["trace_id"])

	var untraced Event
	require.NoError(t, json.Unmarshal(publisher.messages[1].Value, &untraced))
	assert.Empty(t, untraced.TraceID, "no span, no trace id")
	assert.NotContains(t, publisher.messages[1].Headers, "trace_id")
}

func TestKafkaNotifier_Errors(t *testing.T) {
	ctx := context.Background()

	n := NewKafkaNotifier(&recordingPublisher{}, "t", "")
	r := sampleReceipt()
	r.Email = ""
	assert.ErrorIs(t, n.SendReceipt(ctx, r), ErrNoRecipient)
	assert.ErrorIs(t, n.SendAdminSummary(ctx, sampleReceipt()), ErrNoRecipient)

	brokerDown := errors.New("broker down")
	n = NewKafkaNotifier(&recordingPublisher{err: brokerDown}, "t", "admin@permitakaun.test")
	assert.ErrorIs(t, n.SendReceipt(ctx, sampleReceipt()), brokerDown)
}

func TestLogNotifier(t *testing.T) {
	n := NewLogNotifier(nil, "admin@permitakaun.test")
	ctx := context.Background()

	assert.NoError(t, n.SendReceipt(ctx, sampleReceipt()))
	assert.NoError(t, n.SendAdminSummary(ctx, sampleReceipt()))

	r := sampleReceipt()
	r.Email = ""
	assert.ErrorIs(t, n.SendReceipt(ctx, r), ErrNoRecipient)
}
