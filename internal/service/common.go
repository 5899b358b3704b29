package service

import (
	"context"
	"errors"
	"time"

	"github.com/webdevsha/permitakaun/internal/domain"
	"github.com/webdevsha/permitakaun/internal/gateway"
	"github.com/webdevsha/permitakaun/pkg/database"
	"github.com/webdevsha/permitakaun/pkg/logger"
	"github.com/webdevsha/permitakaun/pkg/telemetry"
	"go.uber.org/zap"
)

// Clock returns the current time
type Clock func() time.Time

// Timeouts bound every outbound call a service makes
type Timeouts struct {
	Database time.Duration
	Gateway  time.Duration
	Notify   time.Duration
}

// DefaultTimeouts returns the production defaults
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Database: 5 * time.Second,
		Gateway:  10 * time.Second,
		Notify:   3 * time.Second,
	}
}

func (t Timeouts) withDefaults() Timeouts {
	d := DefaultTimeouts()
	if t.Database <= 0 {
		t.Database = d.Database
	}
	if t.Gateway <= 0 {
		t.Gateway = d.Gateway
	}
	if t.Notify <= 0 {
		t.Notify = d.Notify
	}
	return t
}

// Deps are the collaborators shared by every service
type Deps struct {
	Clock    Clock
	Timeouts Timeouts
	Logger   *logger.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.Logger == nil {
		d.Logger = logger.NewNop()
	}
	d.Timeouts = d.Timeouts.withDefaults()
	return d
}

// bounded runs fn under a deadline
func bounded[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(ctx)
}

// boundedErr runs fn under a deadline
func boundedErr(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(ctx)
}

// mapError converts an infrastructure failure to a typed domain error.
// Typed errors pass through; causes are logged, never returned in messages.
func mapError(ctx context.Context, log *logger.Logger, op string, err error) error {
	if err == nil {
		return nil
	}
	var typed *domain.Error
	if errors.As(err, &typed) {
		return typed
	}

	var gwErr *gateway.GatewayError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		log.WarnContext(ctx, "operation timed out", zap.String("op", op), zap.Error(err))
		return domain.NewTimeoutError(err)
	case errors.Is(err, gateway.ErrInvalidAmount):
		return domain.NewValidationError("Jumlah pembayaran tidak sah")
	case errors.As(err, &gwErr):
		log.ErrorContext(ctx, "payment gateway rejected request",
			zap.String("op", op),
			zap.String("provider", gwErr.Provider),
			zap.Int("status", gwErr.StatusCode),
			zap.String("payload", gwErr.Payload),
		)
		return domain.NewGatewayError(err)
	case database.IsUniqueViolation(err, ""):
		log.WarnContext(ctx, "unique constraint violated", zap.String("op", op), zap.Error(err))
		return domain.NewConflictError("Rekod sudah wujud", "")
	default:
		log.ErrorContext(ctx, "operation failed", zap.String("op", op), zap.Error(err))
		return domain.NewInternalError(err)
	}
}

// finish ends a span and counts failures by kind
func finish(ctx context.Context, end func(error), failures *telemetry.Counter, err error) {
	if err != nil {
		failures.Inc(ctx, telemetry.ErrorKindAttr(string(domain.KindOf(err))))
	}
	end(err)
}

func startSpan(ctx context.Context, name string) (context.Context, func(error)) {
	ctx, span := telemetry.StartSpan(ctx, name)
	return ctx, func(err error) { telemetry.EndSpan(span, err) }
}

// counter creates a counter, falling back to a no-op one when the meter refuses it
func counter(name, description string) *telemetry.Counter {
	c, err := telemetry.NewCounter(telemetry.MetricOpts{Name: name, Description: description, Unit: "1"})
	if err != nil {
		return nil
	}
	return c
}

// histogram creates a histogram, falling back to a no-op one when the meter refuses it
func histogram(name, description, unit string, boundaries ...float64) *telemetry.Histogram {
	h, err := telemetry.NewHistogram(telemetry.MetricOpts{Name: name, Description: description, Unit: unit}, boundaries...)
	if err != nil {
		return nil
	}
	return h
}

var (
	serviceFailures     = counter("permitakaun.service.failures", "Service operations that returned an error")
	linkTransitions     = counter("permitakaun.link.transitions", "Tenant-organizer link status changes")
	reconcileOutcomes   = counter("permitakaun.reconcile.outcomes", "Gateway notifications by outcome")
	paymentsInitiated   = counter("permitakaun.payments.initiated", "Hosted payment pages created")
	subscriptionsIssued = counter("permitakaun.subscriptions.activated", "Subscriptions activated from payments")
	gatewayLatency      = histogram("permitakaun.gateway.duration", "Hosted payment page creation latency", "s",
		0.1, 0.25, 0.5, 1, 2.5, 5, 10)
)
