// Package dialer places outbound calls through the external call
// processor service.
package dialer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Call-Sure-AI/csai-realtime/internal/config"
)

// PlaceRequest describes one outbound call attempt.
type PlaceRequest struct {
	LeadID       string         `json:"lead_id"`
	ToNumber     string         `json:"to_number"`
	CustomerName string         `json:"customer_name,omitempty"`
	CampaignID   string         `json:"campaign_id"`
	CompanyID    string         `json:"company_id"`
	AgentID      string         `json:"agent_id,omitempty"`
	CallSettings map[string]any `json:"call_settings,omitempty"`
}

// Result is the processor's answer for one attempt.
type Result struct {
	Success bool   `json:"success"`
	CallSID string `json:"call_sid,omitempty"`
	Status  string `json:"status,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Dialer is the contract the orchestrator drives.
type Dialer interface {
	PlaceCall(ctx context.Context, req PlaceRequest) (Result, error)
}

// HTTPDialer sends call requests to the processor over HTTP.
type HTTPDialer struct {
	baseURL string
	client  *http.Client
	log     *slog.Logger
}

func NewHTTPDialer(cfg config.DialerConfig, log *slog.Logger) *HTTPDialer {
	if log == nil {
		log = slog.Default()
	}
	return &HTTPDialer{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
		log:     log.With("component", "dialer"),
	}
}

func (d *HTTPDialer) PlaceCall(ctx context.Context, req PlaceRequest) (Result, error) {
	req.ToNumber = NormalizePhone(req.ToNumber)
	if req.ToNumber == "" {
		return Result{}, fmt.Errorf("dialer: lead %s has no dialable number", req.LeadID)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return Result{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		d.baseURL+"/initiate-outbound-call", bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("dialer: processor request failed: %w", err)
	}
	defer resp.Body.Close()

	var res Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return Result{}, fmt.Errorf("dialer: decoding processor response: %w", err)
	}
	if resp.StatusCode >= 400 {
		d.log.Warn("processor rejected call",
			"lead_id", req.LeadID,
			"status_code", resp.StatusCode,
			"error", res.Error)
		res.Success = false
		if res.Error == "" {
			res.Error = fmt.Sprintf("processor returned %d", resp.StatusCode)
		}
	}
	return res, nil
}

// NormalizePhone reduces a raw phone string to E.164-ish form: digits
// only, a leading country code of 91 assumed for bare 10-digit numbers.
// Returns "" when nothing dialable remains.
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	switch {
	case len(digits) == 10:
		return "+91" + digits
	case len(digits) == 12 && strings.HasPrefix(digits, "91"):
		return "+" + digits
	case len(digits) >= 11 && len(digits) <= 15:
		return "+" + digits
	default:
		return ""
	}
}
