package logger

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestMiddleware_RequestIDAndSummary(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	l := slog.New(slog.NewJSONHandler(&buf, nil))

	r := gin.New()
	r.Use(Middleware(l))
	r.GET("/ws/live/:campaign_id", func(c *gin.Context) {
		FromGin(c).Info("handling")
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/ws/live/camp-1?token=secret-jwt-value", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Header().Get("X-Request-Id") == "" {
		t.Fatal("expected a request id on the response")
	}

	out := buf.String()
	if !strings.Contains(out, `"route":"/ws/live/:campaign_id"`) {
		t.Fatalf("expected matched route in summary, got %s", out)
	}
	if strings.Contains(out, "secret-jwt-value") {
		t.Fatalf("query token leaked into the log: %s", out)
	}
	if !strings.Contains(out, `"request_id"`) {
		t.Fatalf("expected request_id on log lines, got %s", out)
	}
}

func TestMiddleware_PropagatesInboundRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	r := gin.New()
	r.Use(Middleware(slog.New(slog.NewJSONHandler(&buf, nil))))
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "rid-from-gateway")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-Id"); got != "rid-from-gateway" {
		t.Fatalf("expected inbound request id to round-trip, got %q", got)
	}
	if !strings.Contains(buf.String(), "rid-from-gateway") {
		t.Fatalf("expected inbound request id on the summary, got %s", buf.String())
	}
}

func TestFromGin_DefaultWithoutMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if FromGin(c) == nil {
		t.Fatal("expected a usable logger")
	}
}
