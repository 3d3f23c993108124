package campaign

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/Call-Sure-AI/csai-realtime/internal/audit"
	"github.com/Call-Sure-AI/csai-realtime/internal/dialer"
)

const defaultRateLimit = 2 * time.Second

// job is the supervised state of one calling run. Counters are guarded
// by mu; done is closed when the loop goroutine exits for any reason,
// including panic.
type job struct {
	mu sync.Mutex

	campaignID string
	companyID  string
	status     JobStatus

	totalLeads      int
	calledLeads     int
	successfulCalls int
	failedCalls     int
	activeCalls     int
	currentPosition int
	lastCallAt      time.Time

	rateLimit time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

func (j *job) snapshot(now time.Time) CallStatus {
	j.mu.Lock()
	defer j.mu.Unlock()

	s := CallStatus{
		CampaignID:          j.campaignID,
		CallingActive:       j.status == JobActive,
		JobStatus:           j.status,
		TotalLeads:          j.totalLeads,
		CalledLeads:         j.calledLeads,
		SuccessfulCalls:     j.successfulCalls,
		FailedCalls:         j.failedCalls,
		ActiveCalls:         j.activeCalls,
		QueueSize:           j.totalLeads - j.currentPosition,
		CurrentLeadPosition: j.currentPosition,
	}
	if j.totalLeads > 0 {
		s.ProgressPercentage = math.Round(float64(j.calledLeads)/float64(j.totalLeads)*10000) / 100
	}
	if !j.lastCallAt.IsZero() {
		t := j.lastCallAt
		s.LastCallAt = &t
	}
	if j.status == JobActive && s.QueueSize > 0 {
		eta := now.Add(time.Duration(s.QueueSize) * j.rateLimit)
		s.EstimatedCompletion = &eta
	}
	return s
}

func (j *job) setStatus(s JobStatus) {
	j.mu.Lock()
	j.status = s
	j.mu.Unlock()
}

func (j *job) currentStatus() JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// Orchestrator runs at most one calling job per campaign, walking the
// lead snapshot sequentially with a rate limit between calls.
type Orchestrator struct {
	mu   sync.Mutex
	jobs map[string]*job

	repo   Repository
	dialer dialer.Dialer
	audit  *audit.Service
	cache  *StatusCache // nil disables the Redis mirror

	now func() time.Time
	log *slog.Logger
}

func NewOrchestrator(repo Repository, d dialer.Dialer, auditSvc *audit.Service, cache *StatusCache, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		jobs:   make(map[string]*job),
		repo:   repo,
		dialer: d,
		audit:  auditSvc,
		cache:  cache,
		now:    time.Now,
		log:    log.With("component", "campaign_orchestrator"),
	}
}

// Initiate validates the campaign and starts its calling job in the
// background. It returns the number of leads the job will dial.
// Validation failures come back as *ValidationError.
func (o *Orchestrator) Initiate(ctx context.Context, campaignID, companyID string, req StartRequest) (int, error) {
	o.mu.Lock()
	if existing, ok := o.jobs[campaignID]; ok && existing.currentStatus() == JobActive {
		o.mu.Unlock()
		return 0, newValidationError("already_running", "campaign %s already has an active calling job", campaignID)
	}
	o.mu.Unlock()

	status, err := o.repo.CampaignStatus(ctx, campaignID)
	if err != nil {
		return 0, err
	}
	if status != StatusActive && status != StatusPaused {
		return 0, newValidationError("status", "campaign must be active or paused to start calling, is %s", status)
	}
	if status == StatusPaused {
		if err := o.repo.SetCampaignStatus(ctx, campaignID, StatusActive); err != nil {
			return 0, err
		}
		o.audit.LogStatusChange(ctx, campaignID, StatusPaused, StatusActive)
	}

	// One snapshot up front; leads added later are picked up by the
	// next job, not this one.
	leads, err := o.repo.CallableLeads(ctx, campaignID, req.LeadFilters)
	if err != nil {
		return 0, err
	}
	if len(leads) == 0 {
		return 0, newValidationError("no_leads", "campaign %s has no callable leads", campaignID)
	}

	rateLimit := defaultRateLimit
	if req.RateLimitSeconds > 0 {
		rateLimit = time.Duration(req.RateLimitSeconds) * time.Second
	} else if req.RateLimitSeconds < 0 {
		rateLimit = 0
	}

	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	j := &job{
		campaignID: campaignID,
		companyID:  companyID,
		status:     JobActive,
		totalLeads: len(leads),
		rateLimit:  rateLimit,
		cancel:     cancel,
		done:       make(chan struct{}),
	}

	o.mu.Lock()
	if existing, ok := o.jobs[campaignID]; ok && existing.currentStatus() == JobActive {
		o.mu.Unlock()
		cancel()
		return 0, newValidationError("already_running", "campaign %s already has an active calling job", campaignID)
	}
	o.jobs[campaignID] = j
	o.mu.Unlock()

	o.audit.LogCallingStarted(ctx, campaignID, len(leads))
	o.log.Info("calling job started", "campaign_id", campaignID, "total_leads", len(leads))

	go o.run(jobCtx, j, leads, req.CallSettings)
	return len(leads), nil
}

// run walks the lead snapshot. One lead's failure never stops the job;
// only cancellation, a campaign leaving the active status, a status
// lookup error, or exhaustion of the snapshot ends the loop.
func (o *Orchestrator) run(ctx context.Context, j *job, leads []Lead, settings map[string]any) {
	defer close(j.done)
	defer func() {
		if r := recover(); r != nil {
			j.setStatus(JobFailed)
			o.log.Error("calling loop panicked", "campaign_id", j.campaignID, "panic", r)
			o.finish(ctx, j, string(JobFailed))
		}
	}()

	exhausted := true
	for i, lead := range leads {
		if ctx.Err() != nil {
			j.setStatus(JobHalted)
			exhausted = false
			break
		}

		status, err := o.repo.CampaignStatus(ctx, j.campaignID)
		if err != nil {
			o.log.Error("campaign status lookup failed", "campaign_id", j.campaignID, "err", err)
			j.setStatus(JobHalted)
			exhausted = false
			break
		}
		if status != StatusActive {
			o.log.Info("campaign no longer active, halting calls",
				"campaign_id", j.campaignID, "status", status, "position", i)
			j.setStatus(JobHalted)
			exhausted = false
			break
		}

		// Progress moves before the call is placed so a crash mid-call
		// is visible as an attempted lead, never a silent retry.
		j.mu.Lock()
		j.calledLeads++
		j.currentPosition = i + 1
		j.activeCalls = 1
		j.mu.Unlock()
		o.mirror(ctx, j)

		o.placeCall(ctx, j, lead, settings)

		j.mu.Lock()
		j.activeCalls = 0
		j.lastCallAt = o.now().UTC()
		j.mu.Unlock()
		o.mirror(ctx, j)

		if j.rateLimit > 0 && i < len(leads)-1 {
			sleepCtx(ctx, j.rateLimit)
		}
	}

	if exhausted {
		j.setStatus(JobCompleted)
		if err := o.repo.SetCampaignStatus(ctx, j.campaignID, StatusCompleted); err != nil {
			o.log.Error("campaign completion update failed", "campaign_id", j.campaignID, "err", err)
		} else {
			o.audit.LogStatusChange(ctx, j.campaignID, StatusActive, StatusCompleted)
		}
	}
	o.finish(ctx, j, string(j.currentStatus()))
}

// placeCall dials one lead and records the attempt. Errors are
// absorbed here; the caller keeps walking the snapshot.
func (o *Orchestrator) placeCall(ctx context.Context, j *job, lead Lead, settings map[string]any) {
	res, err := o.dialer.PlaceCall(ctx, dialer.PlaceRequest{
		LeadID:       lead.ID,
		ToNumber:     lead.Phone,
		CustomerName: lead.Name,
		CampaignID:   j.campaignID,
		CompanyID:    j.companyID,
		CallSettings: settings,
	})

	callStatus := "failed"
	errMsg := ""
	switch {
	case err != nil:
		errMsg = err.Error()
		o.log.Warn("call attempt errored", "campaign_id", j.campaignID, "lead_id", lead.ID, "err", err)
	case !res.Success:
		errMsg = res.Error
		o.log.Warn("call attempt rejected", "campaign_id", j.campaignID, "lead_id", lead.ID, "error", res.Error)
	default:
		callStatus = res.Status
		if callStatus == "" {
			callStatus = "queued"
		}
	}

	success := err == nil && res.Success
	j.mu.Lock()
	if success {
		j.successfulCalls++
	} else {
		j.failedCalls++
	}
	j.mu.Unlock()

	if rerr := o.repo.RecordCall(ctx, j.campaignID, lead.ID, res.CallSID, callStatus); rerr != nil {
		o.log.Error("call record failed", "campaign_id", j.campaignID, "lead_id", lead.ID, "err", rerr)
	}
	o.audit.LogCallAttempt(ctx, j.campaignID, lead.ID, res.CallSID, success, errMsg)
}

func (o *Orchestrator) finish(ctx context.Context, j *job, finalStatus string) {
	// The job context may already be cancelled; the final audit record
	// and mirror write still have to land.
	ctx = context.WithoutCancel(ctx)

	j.mu.Lock()
	called := j.calledLeads
	j.mu.Unlock()

	o.audit.LogCallingFinished(ctx, j.campaignID, finalStatus, called)
	o.mirror(ctx, j)
	o.log.Info("calling job finished",
		"campaign_id", j.campaignID,
		"final_status", finalStatus,
		"called_leads", called)
}

func (o *Orchestrator) mirror(ctx context.Context, j *job) {
	if o.cache == nil {
		return
	}
	o.cache.Set(ctx, j.snapshot(o.now().UTC()))
}

// GetStatus returns the calling progress for a campaign. A job run by
// this process wins; otherwise the Redis mirror answers for jobs on
// sibling instances; otherwise an inactive status carrying the
// persisted attempt totals.
func (o *Orchestrator) GetStatus(ctx context.Context, campaignID string) CallStatus {
	o.mu.Lock()
	j, ok := o.jobs[campaignID]
	o.mu.Unlock()
	if ok {
		return j.snapshot(o.now().UTC())
	}
	if o.cache != nil {
		if status, found := o.cache.Get(ctx, campaignID); found {
			return status
		}
	}

	status := CallStatus{CampaignID: campaignID, JobStatus: JobIdle}
	counts, err := o.repo.CallCounts(ctx, campaignID)
	if err != nil {
		o.log.Warn("call counts lookup failed", "campaign_id", campaignID, "err", err)
		return status
	}
	status.CalledLeads = counts.Called
	status.SuccessfulCalls = counts.Successful
	status.FailedCalls = counts.Failed
	return status
}

// Stop cancels the calling job for a campaign, if one is running, and
// waits for its loop to exit.
func (o *Orchestrator) Stop(campaignID string) {
	o.mu.Lock()
	j, ok := o.jobs[campaignID]
	o.mu.Unlock()
	if !ok {
		return
	}
	j.cancel()
	<-j.done
}

// Close stops every running job. Used on shutdown.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	jobs := make([]*job, 0, len(o.jobs))
	for _, j := range o.jobs {
		jobs = append(jobs, j)
	}
	o.mu.Unlock()

	for _, j := range jobs {
		j.cancel()
	}
	for _, j := range jobs {
		<-j.done
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
