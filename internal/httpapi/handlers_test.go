package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/Call-Sure-AI/csai-realtime/internal/audit"
	"github.com/Call-Sure-AI/csai-realtime/internal/campaign"
	"github.com/Call-Sure-AI/csai-realtime/internal/conversation"
	"github.com/Call-Sure-AI/csai-realtime/internal/dialer"
)

func newTestRouter(repo *campaign.MemoryRepository) *gin.Engine {
	gin.SetMode(gin.TestMode)

	auditSvc := audit.NewService(audit.NewMemoryRepository(), nil)
	orch := campaign.NewOrchestrator(repo, dialer.NewStub(), auditSvc, nil, nil)
	convs := conversation.NewManager(conversation.NewMemoryStore(), nil, nil)
	h := NewHandlers(orch, convs, auditSvc, nil)

	r := gin.New()
	r.POST("/v1/campaigns/:id/start-calling", h.StartCalling)
	r.GET("/v1/campaigns/:id/call-status", h.CallStatus)
	r.GET("/v1/campaigns/:id/audit", h.AuditTrail)
	r.GET("/v1/conversations/active", h.ActiveSessions)
	return r
}

func TestStartCalling_Accepted(t *testing.T) {
	repo := campaign.NewMemoryRepository()
	repo.Statuses["camp-1"] = campaign.StatusActive
	repo.Leads["camp-1"] = []campaign.Lead{
		{ID: "l1", Phone: "9876543210", Status: "pending"},
		{ID: "l2", Phone: "9876543211", Status: "pending"},
	}
	r := newTestRouter(repo)

	body := `{"rate_limit_seconds": -1}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/campaigns/camp-1/start-calling", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		LeadsCount int `json:"leads_count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.LeadsCount != 2 {
		t.Fatalf("expected leads_count 2, got %d", resp.LeadsCount)
	}
}

func TestStartCalling_ValidationErrorIs400(t *testing.T) {
	repo := campaign.NewMemoryRepository()
	repo.Statuses["camp-1"] = campaign.StatusDraft
	r := newTestRouter(repo)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/campaigns/camp-1/start-calling", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Field string `json:"field"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Field != "status" {
		t.Fatalf("expected field %q, got %q", "status", resp.Field)
	}
}

func TestStartCalling_UnknownCampaignIs404(t *testing.T) {
	r := newTestRouter(campaign.NewMemoryRepository())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/campaigns/nope/start-calling", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCallStatus_IdleCampaign(t *testing.T) {
	r := newTestRouter(campaign.NewMemoryRepository())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/campaigns/camp-1/call-status", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var status campaign.CallStatus
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if status.CallingActive || status.JobStatus != campaign.JobIdle {
		t.Fatalf("expected idle status, got %+v", status)
	}
}

func TestActiveSessions_Empty(t *testing.T) {
	r := newTestRouter(campaign.NewMemoryRepository())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/conversations/active", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Count != 0 {
		t.Fatalf("expected 0 sessions, got %d", resp.Count)
	}
}
