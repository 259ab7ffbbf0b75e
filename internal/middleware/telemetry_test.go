package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"
)

func setupSpanRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(noop.NewTracerProvider())
	})
	return recorder
}

func newTracedRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Tracing("forecast-service-test"), RequestID(), SpanEnricher())
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/api/admin/forecast", func(c *gin.Context) {
		AddSpanAttribute(c, "forecast.target", "price")
		AddSpanAttribute(c, "forecast.horizon", 3)
		AddSpanAttribute(c, "forecast.cached", false)
		AddSpanAttribute(c, "forecast.confidence", 97.5)
		AddSpanAttribute(c, "forecast.rows", int64(12))
		AddSpanAttribute(c, "forecast.other", []int{1})
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	router.GET("/fail", func(c *gin.Context) {
		err := errors.New("aggregation failed")
		RecordError(c, err, "forecast failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
	})
	return router
}

func attrMap(span sdktrace.ReadOnlySpan) map[string]string {
	out := make(map[string]string)
	for _, kv := range span.Attributes() {
		out[string(kv.Key)] = kv.Value.Emit()
	}
	return out
}

func TestTracing_CreatesServerSpan(t *testing.T) {
	recorder := setupSpanRecorder(t)
	router := newTracedRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/admin/forecast", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	attrs := attrMap(spans[0])
	assert.Equal(t, "req-123", attrs["http.request_id"])
	assert.Equal(t, "price", attrs["forecast.target"])
	assert.Equal(t, "3", attrs["forecast.horizon"])
	assert.Equal(t, "false", attrs["forecast.cached"])
	assert.Equal(t, "97.5", attrs["forecast.confidence"])
	assert.Equal(t, "12", attrs["forecast.rows"])
	assert.Equal(t, "[1]", attrs["forecast.other"])
	assert.Contains(t, attrs, "http.response.size_bytes")
}

func TestTracing_SkipsHealthEndpoints(t *testing.T) {
	recorder := setupSpanRecorder(t)
	router := newTracedRouter()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, recorder.Ended())
}

func TestRecordError_MarksSpan(t *testing.T) {
	recorder := setupSpanRecorder(t)
	router := newTracedRouter()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fail", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	require.NotEmpty(t, spans[0].Events())
	assert.Equal(t, "exception", spans[0].Events()[0].Name)
}

func TestSpanHelpers_NoActiveSpan(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	assert.NotPanics(t, func() {
		RecordError(c, errors.New("x"), "x")
		AddSpanAttribute(c, "k", "v")
	})
}
