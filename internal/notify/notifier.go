package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/webdevsha/permitakaun/pkg/kafka"
	"github.com/webdevsha/permitakaun/pkg/logger"
	"github.com/webdevsha/permitakaun/pkg/telemetry"
	"go.uber.org/zap"
)

// Event kinds published for the mail worker
const (
	KindReceipt      = "receipt"
	KindAdminSummary = "admin_summary"
)

// DateLayout is the day/month/year layout used in receipts
const DateLayout = "02/01/2006"

// ErrNoRecipient is returned when a message has no address to go to
var ErrNoRecipient = errors.New("notification has no recipient")

// Receipt describes one settled payment
type Receipt struct {
	Email       string
	Name        string
	Amount      decimal.Decimal
	Description string
	Date        time.Time
	Reference   string
	ReceiptURL  string
	// Type is the reconciliation result type (tenant_payment, subscription, public_payment)
	Type string
}

// Notifier delivers payment notifications
type Notifier interface {
	// SendReceipt notifies the payer
	SendReceipt(ctx context.Context, r Receipt) error
	// SendAdminSummary notifies the back office
	SendAdminSummary(ctx context.Context, r Receipt) error
}

// FormatAmount renders an amount with two decimals
func FormatAmount(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}

// FormatDate renders a receipt date
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// Event is the wire shape of a notification record
type Event struct {
	Kind        string `json:"kind"`
	To          string `json:"to"`
	Name        string `json:"name,omitempty"`
	Amount      string `json:"amount"`
	Date        string `json:"date"`
	Description string `json:"description"`
	Reference   string `json:"reference"`
	ReceiptURL  string `json:"receipt_url,omitempty"`
	Type        string `json:"type"`
	TraceID     string `json:"trace_id,omitempty"`
}

// NewEvent builds the wire event for a receipt
func NewEvent(kind, to string, r Receipt) Event {
	return Event{
		Kind:        kind,
		To:          to,
		Name:        r.Name,
		Amount:      FormatAmount(r.Amount),
		Date:        FormatDate(r.Date),
		Description: r.Description,
		Reference:   r.Reference,
		ReceiptURL:  r.ReceiptURL,
		Type:        r.Type,
	}
}

// Publisher publishes one record
type Publisher interface {
	Produce(ctx context.Context, msg kafka.Message) error
}

// KafkaNotifier publishes notification events for an out-of-process mailer
type KafkaNotifier struct {
	publisher  Publisher
	topic      string
	adminEmail string
}

// NewKafkaNotifier creates a notifier publishing to topic
func NewKafkaNotifier(publisher Publisher, topic, adminEmail string) *KafkaNotifier {
	return &KafkaNotifier{publisher: publisher, topic: topic, adminEmail: adminEmail}
}

// SendReceipt publishes a receipt event keyed by the payment reference
func (n *KafkaNotifier) SendReceipt(ctx context.Context, r Receipt) error {
	if r.Email == "" {
		return ErrNoRecipient
	}
	return n.publish(ctx, NewEvent(KindReceipt, r.Email, r))
}

// SendAdminSummary publishes a summary event to the configured admin address
func (n *KafkaNotifier) SendAdminSummary(ctx context.Context, r Receipt) error {
	if n.adminEmail == "" {
		return ErrNoRecipient
	}
	return n.publish(ctx, NewEvent(KindAdminSummary, n.adminEmail, r))
}

func (n *KafkaNotifier) publish(ctx context.Context, event Event) error {
	event.TraceID = telemetry.GetTraceID(ctx)
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}
	headers := map[string]string{"kind": event.Kind}
	if event.TraceID != "" {
		headers["trace_id"] = event.TraceID
	}
	err = n.publisher.Produce(ctx, kafka.Message{
		Topic:   n.topic,
		Key:     event.Reference,
		Value:   value,
		Headers: headers,
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s notification: %w", event.Kind, err)
	}
	return nil
}

// LogNotifier writes notifications to the log when no broker is configured
type LogNotifier struct {
	log        *logger.Logger
	adminEmail string
}

// NewLogNotifier creates a log-only notifier
func NewLogNotifier(log *logger.Logger, adminEmail string) *LogNotifier {
	if log == nil {
		log = logger.NewNop()
	}
	return &LogNotifier{log: log, adminEmail: adminEmail}
}

// SendReceipt logs the receipt
func (n *LogNotifier) SendReceipt(ctx context.Context, r Receipt) error {
	if r.Email == "" {
		return ErrNoRecipient
	}
	n.write(ctx, NewEvent(KindReceipt, r.Email, r))
	return nil
}

// SendAdminSummary logs the summary
func (n *LogNotifier) SendAdminSummary(ctx context.Context, r Receipt) error {
	if n.adminEmail == "" {
		return ErrNoRecipient
	}
	n.write(ctx, NewEvent(KindAdminSummary, n.adminEmail, r))
	return nil
}

func (n *LogNotifier) write(ctx context.Context, e Event) {
	n.log.InfoContext(ctx, "notification",
		zap.String("kind", e.Kind),
		zap.String("amount", e.Amount),
		zap.String("date", e.Date),
		zap.String("reference", e.Reference),
		zap.String("type", e.Type),
	)
}
