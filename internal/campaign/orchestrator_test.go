package campaign

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Call-Sure-AI/csai-realtime/internal/audit"
	"github.com/Call-Sure-AI/csai-realtime/internal/dialer"
)

// noRateLimit disables the inter-call sleep so loops finish instantly.
const noRateLimit = -1

func seedLeads(n int) []Lead {
	leads := make([]Lead, n)
	for i := range leads {
		leads[i] = Lead{
			ID:     "lead-" + string(rune('a'+i)),
			Name:   "Lead",
			Phone:  "9876543210",
			Status: "pending",
		}
	}
	return leads
}

func newTestOrchestrator(repo *MemoryRepository, d dialer.Dialer) (*Orchestrator, *audit.MemoryRepository) {
	auditRepo := audit.NewMemoryRepository()
	o := NewOrchestrator(repo, d, audit.NewService(auditRepo, nil), nil, nil)
	return o, auditRepo
}

func waitDone(t *testing.T, o *Orchestrator, campaignID string) {
	t.Helper()
	o.mu.Lock()
	j := o.jobs[campaignID]
	o.mu.Unlock()
	if j == nil {
		t.Fatal("no job registered")
	}
	select {
	case <-j.done:
	case <-time.After(5 * time.Second):
		t.Fatal("calling job did not finish")
	}
}

func TestInitiate_RunsToCompletion(t *testing.T) {
	repo := NewMemoryRepository()
	repo.Statuses["camp-1"] = StatusActive
	repo.Leads["camp-1"] = seedLeads(10)
	stub := dialer.NewStub()
	o, auditRepo := newTestOrchestrator(repo, stub)

	n, err := o.Initiate(context.Background(), "camp-1", "co-1", StartRequest{RateLimitSeconds: noRateLimit})
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if n != 10 {
		t.Fatalf("expected 10 leads, got %d", n)
	}
	waitDone(t, o, "camp-1")

	status := o.GetStatus(context.Background(), "camp-1")
	if status.JobStatus != JobCompleted || status.CallingActive {
		t.Fatalf("expected completed inactive job, got %+v", status)
	}
	if status.CalledLeads != 10 || status.SuccessfulCalls != 10 || status.FailedCalls != 0 {
		t.Fatalf("unexpected counters: %+v", status)
	}
	if status.ProgressPercentage != 100 {
		t.Fatalf("expected 100%% progress, got %v", status.ProgressPercentage)
	}
	if stub.PlacedCount() != 10 {
		t.Fatalf("expected 10 placed calls, got %d", stub.PlacedCount())
	}
	if got := repo.Statuses["camp-1"]; got != StatusCompleted {
		t.Fatalf("expected campaign marked completed, got %q", got)
	}
	if events := auditRepo.ByType(audit.EventCallingFinished); len(events) != 1 {
		t.Fatalf("expected one calling_finished event, got %d", len(events))
	}
}

func TestRun_HaltsWhenCampaignPaused(t *testing.T) {
	repo := NewMemoryRepository()
	repo.Statuses["camp-1"] = StatusActive
	repo.Leads["camp-1"] = seedLeads(10)
	stub := dialer.NewStub()
	o, _ := newTestOrchestrator(repo, stub)

	// Pause the campaign once three calls have been recorded; the
	// fourth iteration's status check must stop the loop.
	repo.OnStatusLookup = func(campaignID string, lookups int) {
		if len(repo.RecordedCalls()) >= 3 {
			_ = repo.SetCampaignStatus(context.Background(), campaignID, StatusPaused)
		}
	}

	if _, err := o.Initiate(context.Background(), "camp-1", "co-1", StartRequest{RateLimitSeconds: noRateLimit}); err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	waitDone(t, o, "camp-1")

	status := o.GetStatus(context.Background(), "camp-1")
	if status.JobStatus != JobHalted {
		t.Fatalf("expected halted job, got %s", status.JobStatus)
	}
	if status.CalledLeads != 3 {
		t.Fatalf("expected 3 called leads, got %d", status.CalledLeads)
	}
	if repo.Statuses["camp-1"] != StatusPaused {
		t.Fatalf("campaign status must stay paused, got %q", repo.Statuses["camp-1"])
	}
}

func TestRun_OneLeadFailureDoesNotStopJob(t *testing.T) {
	repo := NewMemoryRepository()
	repo.Statuses["camp-1"] = StatusActive
	leads := seedLeads(3)
	repo.Leads["camp-1"] = leads
	stub := dialer.NewStub()
	stub.FailFor[leads[1].ID] = errors.New("carrier timeout")
	o, auditRepo := newTestOrchestrator(repo, stub)

	if _, err := o.Initiate(context.Background(), "camp-1", "co-1", StartRequest{RateLimitSeconds: noRateLimit}); err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	waitDone(t, o, "camp-1")

	status := o.GetStatus(context.Background(), "camp-1")
	if status.JobStatus != JobCompleted {
		t.Fatalf("expected completed job, got %s", status.JobStatus)
	}
	if status.CalledLeads != 3 || status.SuccessfulCalls != 2 || status.FailedCalls != 1 {
		t.Fatalf("unexpected counters: %+v", status)
	}

	attempts := auditRepo.ByType(audit.EventCallAttempt)
	if len(attempts) != 3 {
		t.Fatalf("expected 3 attempt events, got %d", len(attempts))
	}
	failed := 0
	for _, e := range attempts {
		if e.Detail["success"] == false {
			failed++
		}
	}
	if failed != 1 {
		t.Fatalf("expected exactly 1 failed attempt, got %d", failed)
	}
}

func TestRun_HaltsOnStatusLookupError(t *testing.T) {
	repo := NewMemoryRepository()
	repo.Statuses["camp-1"] = StatusActive
	repo.Leads["camp-1"] = seedLeads(5)
	o, _ := newTestOrchestrator(repo, dialer.NewStub())

	repo.OnStatusLookup = func(campaignID string, lookups int) {
		if len(repo.RecordedCalls()) >= 1 {
			repo.mu.Lock()
			repo.StatusErr = errors.New("db unreachable")
			repo.mu.Unlock()
		}
	}

	if _, err := o.Initiate(context.Background(), "camp-1", "co-1", StartRequest{RateLimitSeconds: noRateLimit}); err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	waitDone(t, o, "camp-1")

	status := o.GetStatus(context.Background(), "camp-1")
	if status.JobStatus != JobHalted {
		t.Fatalf("expected halted job on lookup error, got %s", status.JobStatus)
	}
	if status.CalledLeads != 1 {
		t.Fatalf("expected 1 called lead, got %d", status.CalledLeads)
	}
}

func TestInitiate_ValidationFailures(t *testing.T) {
	repo := NewMemoryRepository()
	repo.Statuses["camp-draft"] = StatusDraft
	repo.Statuses["camp-empty"] = StatusActive
	o, _ := newTestOrchestrator(repo, dialer.NewStub())

	_, err := o.Initiate(context.Background(), "camp-draft", "co-1", StartRequest{})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "status" {
		t.Fatalf("expected status validation error, got %v", err)
	}

	_, err = o.Initiate(context.Background(), "camp-empty", "co-1", StartRequest{})
	if !errors.As(err, &verr) || verr.Field != "no_leads" {
		t.Fatalf("expected no_leads validation error, got %v", err)
	}

	_, err = o.Initiate(context.Background(), "camp-missing", "co-1", StartRequest{})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown campaign, got %v", err)
	}
}

func TestInitiate_RejectsSecondConcurrentJob(t *testing.T) {
	repo := NewMemoryRepository()
	repo.Statuses["camp-1"] = StatusActive
	repo.Leads["camp-1"] = seedLeads(3)
	o, _ := newTestOrchestrator(repo, dialer.NewStub())

	// Park the loop on its first status check until released.
	release := make(chan struct{})
	entered := make(chan struct{})
	var once bool
	repo.OnStatusLookup = func(campaignID string, lookups int) {
		if lookups == 2 && !once { // lookup 1 happens inside Initiate
			once = true
			close(entered)
			<-release
		}
	}

	if _, err := o.Initiate(context.Background(), "camp-1", "co-1", StartRequest{RateLimitSeconds: noRateLimit}); err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	<-entered

	_, err := o.Initiate(context.Background(), "camp-1", "co-1", StartRequest{RateLimitSeconds: noRateLimit})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "already_running" {
		t.Fatalf("expected already_running validation error, got %v", err)
	}

	close(release)
	waitDone(t, o, "camp-1")
}

func TestInitiate_ResumesPausedCampaign(t *testing.T) {
	repo := NewMemoryRepository()
	repo.Statuses["camp-1"] = StatusPaused
	repo.Leads["camp-1"] = seedLeads(2)
	o, auditRepo := newTestOrchestrator(repo, dialer.NewStub())

	if _, err := o.Initiate(context.Background(), "camp-1", "co-1", StartRequest{RateLimitSeconds: noRateLimit}); err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	waitDone(t, o, "camp-1")

	if repo.Statuses["camp-1"] != StatusCompleted {
		t.Fatalf("expected campaign completed after resume, got %q", repo.Statuses["camp-1"])
	}
	changes := auditRepo.ByType(audit.EventCampaignStatusChange)
	if len(changes) < 1 || changes[0].Detail["from"] != StatusPaused || changes[0].Detail["to"] != StatusActive {
		t.Fatalf("expected paused->active status change event, got %+v", changes)
	}
}

func TestStop_CancelsRunningJob(t *testing.T) {
	repo := NewMemoryRepository()
	repo.Statuses["camp-1"] = StatusActive
	repo.Leads["camp-1"] = seedLeads(100)
	o, _ := newTestOrchestrator(repo, dialer.NewStub())

	// A real rate limit keeps the job alive long enough to cancel it.
	if _, err := o.Initiate(context.Background(), "camp-1", "co-1", StartRequest{RateLimitSeconds: 1}); err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	o.Stop("camp-1")

	status := o.GetStatus(context.Background(), "camp-1")
	if status.JobStatus == JobActive {
		t.Fatalf("expected job stopped, got %s", status.JobStatus)
	}
	if status.CalledLeads >= 100 {
		t.Fatal("expected cancellation before the snapshot was exhausted")
	}
}

func TestGetStatus_UnknownCampaign(t *testing.T) {
	o, _ := newTestOrchestrator(NewMemoryRepository(), dialer.NewStub())

	status := o.GetStatus(context.Background(), "nope")
	if status.CallingActive || status.JobStatus != JobIdle {
		t.Fatalf("expected idle status, got %+v", status)
	}
}
