package telemetry

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace/noop"
)

func resetGlobalProvider(t *testing.T) {
	t.Cleanup(func() {
		otel.SetTracerProvider(noop.NewTracerProvider())
		_ = Shutdown(context.Background())
	})
}

func TestParseOTLPEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		signal   string
		hostport string
		urlPath  string
		insecure bool
		wantErr  bool
	}{
		{"default localhost", "http://localhost:4318", "/v1/traces", "localhost:4318", "/v1/traces", true, false},
		{"trailing slash base", "http://collector:4318/", "/v1/traces", "collector:4318", "/v1/traces", true, false},
		{"already traces path", "http://collector:4318/v1/traces", "/v1/traces", "collector:4318", "/v1/traces", true, false},
		{"logs signal", "http://collector:4318", "/v1/logs", "collector:4318", "/v1/logs", true, false},
		{"custom base path", "https://otlp.example.com:4318/otlp", "/v1/traces", "otlp.example.com:4318", "/otlp/v1/traces", false, false},
		{"invalid no scheme", "collector:4318", "/v1/traces", "", "", false, true},
		{"empty host", "http://", "/v1/traces", "", "", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hp, path, insecure, err := ParseOTLPEndpoint(tt.input, tt.signal)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.hostport, hp)
			assert.Equal(t, tt.urlPath, path)
			assert.Equal(t, tt.insecure, insecure)
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	assert.True(t, config.Enabled)
	assert.Equal(t, "otlp", config.Exporter)
	assert.Equal(t, "http://localhost:4318", config.OTLPEndpoint)
	assert.Equal(t, ServiceName, config.ServiceName)
	assert.Equal(t, ServiceVersion, config.ServiceVersion)
	assert.Equal(t, 1.0, config.SampleRate)
	assert.Equal(t, 5*time.Second, config.BatchTimeout)
}

func TestTracerGetters(t *testing.T) {
	assert.NotNil(t, GetTracer("test-tracer"))
	assert.NotNil(t, GetDatabaseTracer())
	assert.NotNil(t, GetForecastTracer())
	assert.NotNil(t, GetCacheTracer())
}

func TestSpanHelpers(t *testing.T) {
	ctx, span := StartSpan(context.Background(), GetTracer("test"), "test-span", StringAttribute("k", "v"))
	assert.NotNil(t, ctx)
	assert.NotNil(t, span)

	SetSpanAttributes(span, Int64Attribute("n", 42), BoolAttribute("ok", true))
	RecordError(span, nil)
	RecordError(span, assert.AnError)
	SetSpanStatus(span, codes.Ok, "success")
	span.End()
}

func TestAttributeHelpers(t *testing.T) {
	strAttr := StringAttribute("key", "value")
	assert.Equal(t, attribute.Key("key"), strAttr.Key)
	assert.Equal(t, "value", strAttr.Value.AsString())

	intAttr := Int64Attribute("key", 42)
	assert.Equal(t, attribute.INT64, intAttr.Value.Type())
	assert.Equal(t, int64(42), intAttr.Value.AsInt64())

	floatAttr := Float64Attribute("key", 3.14)
	assert.Equal(t, attribute.FLOAT64, floatAttr.Value.Type())
	assert.Equal(t, 3.14, floatAttr.Value.AsFloat64())

	boolAttr := BoolAttribute("key", true)
	assert.Equal(t, attribute.BOOL, boolAttr.Value.Type())
	assert.True(t, boolAttr.Value.AsBool())
}

func TestInitTelemetryDisabled(t *testing.T) {
	resetGlobalProvider(t)
	assert.NoError(t, InitTelemetry(TelemetryConfig{Enabled: false}))
	assert.NoError(t, Shutdown(context.Background()))
}

func TestShutdownWithoutInit(t *testing.T) {
	assert.NoError(t, Shutdown(context.Background()))
}

func TestInitTelemetryWithProvider_Disabled(t *testing.T) {
	provider, err := InitTelemetryWithProvider(context.Background(), &TelemetryConfig{Enabled: false}, slog.Default())
	require.NoError(t, err)
	assert.NotNil(t, provider.Shutdown)
	assert.NotNil(t, provider.logger)
	assert.NoError(t, provider.Shutdown(context.Background()))
}

func TestInitTelemetryWithProvider_InvalidEndpoint(t *testing.T) {
	provider, err := InitTelemetryWithProvider(context.Background(), &TelemetryConfig{
		Enabled:      true,
		Exporter:     "otlp",
		OTLPEndpoint: "invalid-url://[invalid",
	}, nil)
	assert.Error(t, err)
	assert.Nil(t, provider)
	assert.Contains(t, err.Error(), "invalid OTLPEndpoint")
}

func TestInitTelemetryWithProvider_UnknownExporter(t *testing.T) {
	_, err := InitTelemetryWithProvider(context.Background(), &TelemetryConfig{Enabled: true, Exporter: "zipkin"}, nil)
	assert.ErrorContains(t, err, "unknown exporter")
}

func TestInitTelemetryWithProvider_StdoutExportsSpans(t *testing.T) {
	resetGlobalProvider(t)

	var buf bytes.Buffer
	provider, err := InitTelemetryWithProvider(context.Background(), &TelemetryConfig{
		Enabled:     true,
		Exporter:    "stdout",
		ServiceName: "test-service",
		Environment: "test",
		Writer:      &buf,
	}, nil)
	require.NoError(t, err)

	_, span := StartSpan(context.Background(), GetForecastTracer(), "forecast.analyze", Int64Attribute("forecast.points", 8))
	span.End()

	require.NoError(t, provider.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), "forecast.analyze")
	assert.Contains(t, buf.String(), "test-service")
}
