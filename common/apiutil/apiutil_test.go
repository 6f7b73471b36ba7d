package apiutil

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestTraceMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(TraceMiddleware())
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, GetTraceID(c))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	generated := w.Header().Get(TraceHeader)
	assert.Len(t, generated, 36)
	assert.Equal(t, generated, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(TraceHeader, "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(TraceHeader))
	assert.Equal(t, "abc-123", w.Body.String())
}

func TestTraceMiddlewareUsesActiveSpan(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	defer tp.Shutdown(context.Background())

	var spanTrace string
	r := gin.New()
	r.Use(func(c *gin.Context) {
		ctx, span := tp.Tracer("test").Start(c.Request.Context(), "request")
		defer span.End()
		spanTrace = span.SpanContext().TraceID().String()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})
	r.Use(TraceMiddleware())
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, GetTraceID(c))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, spanTrace, 32)
	assert.Equal(t, spanTrace, w.Header().Get(TraceHeader))
	assert.Equal(t, spanTrace, w.Body.String())
}

func TestTraceHeaderPropagator(t *testing.T) {
	const id = "4bf92f3577b34da6a3ce929d0e0e4736"
	prop := Propagator()

	carrier := propagation.HeaderCarrier(http.Header{})
	carrier.Set(TraceHeader, id)
	sc := trace.SpanContextFromContext(prop.Extract(context.Background(), carrier))
	assert.True(t, sc.IsValid())
	assert.True(t, sc.IsRemote())
	assert.Equal(t, id, sc.TraceID().String())

	carrier = propagation.HeaderCarrier(http.Header{})
	carrier.Set(TraceHeader, "abc-123")
	assert.False(t, trace.SpanContextFromContext(prop.Extract(context.Background(), carrier)).IsValid())

	// traceparent takes precedence over X-Trace-ID
	carrier = propagation.HeaderCarrier(http.Header{})
	carrier.Set(TraceHeader, id)
	carrier.Set("traceparent", "00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01")
	sc = trace.SpanContextFromContext(prop.Extract(context.Background(), carrier))
	assert.Equal(t, "0af7651916cd43dd8448eb211c80319c", sc.TraceID().String())

	out := propagation.HeaderCarrier(http.Header{})
	TraceHeaderPropagator{}.Inject(trace.ContextWithSpanContext(context.Background(), sc), out)
	assert.Equal(t, "0af7651916cd43dd8448eb211c80319c", out.Get(TraceHeader))
}

func TestWriteErrorResponse(t *testing.T) {
	r := gin.New()
	r.GET("/fail", func(c *gin.Context) {
		WriteErrorResponse(c, http.StatusUnauthorized, "Invalid credentials", "", nil)
	})
	r.GET("/boom", func(c *gin.Context) {
		WriteInternalError(c, errors.New("mongo down"), false)
	})
	r.GET("/boom-dev", func(c *gin.Context) {
		WriteInternalError(c, errors.New("mongo down"), true)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fail", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"Invalid credentials"}`, w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom-dev", nil))
	assert.JSONEq(t, `{"error":"Internal server error","message":"mongo down"}`, w.Body.String())
}

func TestMetricsMiddlewareUsesRouteTemplate(t *testing.T) {
	r := gin.New()
	r.Use(MetricsMiddleware())
	r.GET("/markets/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/markets/42", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestValidator(t *testing.T) {
	type request struct {
		Command string `json:"command" validate:"required,max=64"`
	}
	v := NewValidator()

	assert.NoError(t, v.Validate(request{Command: "restart"}))

	err := v.Validate(request{})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []FieldError{{Field: "command", Rule: "required"}}, verr.Fields)

	body, err := json.Marshal(verr.Fields)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"field":"command","rule":"required"}]`, string(body))
}
