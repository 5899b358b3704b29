package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestInit_Disabled(t *testing.T) {
	ctx := context.Background()

	tel, err := Init(ctx, nil)
	require.NoError(t, err)
	assert.NotNil(t, tel.tracer)
	assert.NotNil(t, tel.meter)

	cfg := &Config{Enabled: false, ServiceName: "test-service"}
	tel, err = Init(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, cfg, tel.config)
	assert.Equal(t, tel, Get())
	assert.Nil(t, tel.tracerProvider)
}

func TestInit_Enabled(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping exporter test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// gRPC exporters connect lazily, so no collector is needed
	cfg := &Config{
		Enabled:        true,
		ServiceName:    "permitakaun-test",
		ServiceVersion: "1.0.0",
		Environment:    "test",
		CollectorAddr:  "localhost:4317",
	}

	tel, err := Init(ctx, cfg)
	require.NoError(t, err)
	assert.NotNil(t, tel.tracerProvider)
	assert.NotNil(t, tel.meterProvider)
	assert.Equal(t, 15*time.Second, cfg.MetricInterval)
	assert.Equal(t, 1.0, cfg.SampleRatio)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
	defer shutdownCancel()
	_ = Shutdown(shutdownCtx)
}

func TestShutdown_NilGlobal(t *testing.T) {
	globalTelemetry = nil
	assert.NoError(t, Shutdown(context.Background()))
}

func TestSampler(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), sampler(1).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), sampler(-1).Description())
	assert.Contains(t, sampler(0.5).Description(), "TraceIDRatioBased")
}

func TestStartSpan_NilGlobal(t *testing.T) {
	globalTelemetry = nil
	ctx, span := StartSpan(context.Background(), "reconcile")
	require.NotNil(t, span)
	assert.NotNil(t, ctx)
	EndSpan(span, errors.New("boom"))
	assert.Empty(t, GetTraceID(context.Background()))
}

func TestMetrics_NoopMeter(t *testing.T) {
	globalTelemetry = nil
	ctx := context.Background()

	c, err := NewCounter(MetricOpts{Name: "permitakaun.test.counter", Description: "test", Unit: "1"})
	require.NoError(t, err)
	c.Inc(ctx, OutcomeAttr("approved"), OwnerKindAttr("tenant"))

	h, err := NewHistogram(MetricOpts{Name: "permitakaun.test.latency", Unit: "s"}, 0.1, 0.5, 1)
	require.NoError(t, err)
	h.Record(ctx, 0.2, ProviderAttr("billplz"))

	var nilCounter *Counter
	var nilHistogram *Histogram
	nilCounter.Inc(ctx)
	nilHistogram.Record(ctx, 1)
}

func TestAttributeHelpers(t *testing.T) {
	assert.Equal(t, AttrLinkStatus, string(LinkStatusAttr("approved").Key))
	assert.Equal(t, "approved", LinkStatusAttr("approved").Value.AsString())
	assert.Equal(t, AttrErrorKind, string(ErrorKindAttr("timeout").Key))
}
