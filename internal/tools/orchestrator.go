package tools

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/voicelane/callcore/internal/cost"
	"github.com/voicelane/callcore/internal/observability/metrics"
	"github.com/voicelane/callcore/internal/resilience"
	"github.com/voicelane/callcore/internal/session"
	"github.com/voicelane/callcore/pkg/logging"
)

// Outcome is the discriminated result of one tool invocation.
type Outcome struct {
	Status session.ToolCallStatus
	// Payload carries the provider result on success.
	Payload string
	// Say is the user-presentable line on any non-success outcome.
	Say string
	// Attempts counts provider calls actually made (0 when short-circuited).
	Attempts int
	Latency  time.Duration
}

// Orchestrator runs tool calls for one session. Concurrent invocations for
// different tools are independent; nothing here serializes across tools.
type Orchestrator struct {
	registry *Registry
	breakers *resilience.Registry
	meter    *cost.Meter
	sess     *session.Session
	retry    resilience.RetryConfig
	timeout  time.Duration
	logger   *logging.Logger
	metrics  *metrics.CallMetrics
}

// OrchestratorConfig wires the per-session collaborators.
type OrchestratorConfig struct {
	Registry *Registry
	Breakers *resilience.Registry
	Meter    *cost.Meter
	Session  *session.Session
	Retry    resilience.RetryConfig
	Timeout  time.Duration
	Logger   *logging.Logger
	Metrics  *metrics.CallMetrics
}

// NewOrchestrator creates an orchestrator for one session.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	if cfg.Registry == nil {
		panic("tools: registry cannot be nil")
	}
	if cfg.Breakers == nil {
		panic("tools: breaker registry cannot be nil")
	}
	if cfg.Session == nil {
		panic("tools: session cannot be nil")
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = resilience.DefaultRetryConfig()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &Orchestrator{
		registry: cfg.Registry,
		breakers: cfg.Breakers,
		meter:    cfg.Meter,
		sess:     cfg.Session,
		retry:    cfg.Retry,
		timeout:  cfg.Timeout,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
	}
}

// Invoke runs the named tool. The flow: breaker check, then up to
// MaxAttempts provider calls each bounded by the per-attempt timeout, with
// jittered exponential backoff between recoverable failures. Fatal errors
// never retry. Every invocation lands in the session's tool-call audit log.
func (o *Orchestrator) Invoke(ctx context.Context, toolName string, params map[string]any) Outcome {
	tool, err := o.registry.Get(toolName)
	if err != nil {
		// Unknown tool names are caught at startup; reaching this branch
		// means a wiring bug, so fail the call rather than the session.
		o.logger.Error("tool lookup failed", "tool", toolName, "error", err)
		return Outcome{Status: session.ToolCallFatal, Say: pick(toolFailureResponses)}
	}

	started := time.Now()
	rec := session.ToolCallRecord{
		ID:        uuid.NewString(),
		Tool:      tool.Name,
		Provider:  tool.Provider,
		StartedAt: started.UTC(),
	}

	if !o.breakers.Allow(tool.Provider) {
		rec.Status = session.ToolCallShortCircuit
		o.finish(&rec, started)
		o.logger.Warn("tool short-circuited by open breaker",
			"tool", tool.Name, "provider", tool.Provider, "session_id", o.sess.ID)
		return Outcome{
			Status:  session.ToolCallShortCircuit,
			Say:     tool.Fallback,
			Latency: time.Since(started),
		}
	}

	var lastErr error
	for attempt := 1; attempt <= o.retry.MaxAttempts; attempt++ {
		rec.Attempts = attempt

		resp, err := o.callOnce(ctx, tool, params)
		if err == nil {
			o.breakers.RecordSuccess(tool.Provider)
			recordUsage(o.meter, tool.Provider, resp.Usage)
			rec.Status = session.ToolCallSucceeded
			o.finish(&rec, started)
			return Outcome{
				Status:   session.ToolCallSucceeded,
				Payload:  resp.Payload,
				Attempts: attempt,
				Latency:  time.Since(started),
			}
		}
		lastErr = err

		if isFatal(err) {
			o.breakers.RecordFailure(tool.Provider)
			rec.Status = session.ToolCallFatal
			rec.Error = err.Error()
			o.finish(&rec, started)
			o.logger.Error("tool call failed fatally",
				"tool", tool.Name, "provider", tool.Provider,
				"session_id", o.sess.ID, "error", err)
			return Outcome{
				Status:   session.ToolCallFatal,
				Say:      pick(toolFailureResponses),
				Attempts: attempt,
				Latency:  time.Since(started),
			}
		}

		o.logger.Warn("tool attempt failed",
			"tool", tool.Name, "provider", tool.Provider,
			"session_id", o.sess.ID, "attempt", attempt, "error", err)

		if attempt < o.retry.MaxAttempts {
			if err := resilience.Sleep(ctx, o.retry.Backoff(attempt)); err != nil {
				lastErr = err
				break
			}
		}
	}

	o.breakers.RecordFailure(tool.Provider)
	if o.breakers.State(tool.Provider) == resilience.StateOpen {
		o.metrics.ObserveBreakerOpen(tool.Provider)
	}
	rec.Status = session.ToolCallRecoverable
	if lastErr != nil {
		rec.Error = lastErr.Error()
	}
	o.finish(&rec, started)
	o.logger.Error("tool call exhausted retries",
		"tool", tool.Name, "provider", tool.Provider,
		"session_id", o.sess.ID, "attempts", rec.Attempts, "error", lastErr)

	say := pick(toolFailureResponses)
	if errors.Is(lastErr, context.DeadlineExceeded) {
		say = pick(timeoutResponses)
	} else if errors.Is(lastErr, context.Canceled) {
		say = pick(unavailableResponses)
	}
	return Outcome{
		Status:   session.ToolCallRecoverable,
		Say:      say,
		Attempts: rec.Attempts,
		Latency:  time.Since(started),
	}
}

func (o *Orchestrator) callOnce(ctx context.Context, tool Tool, params map[string]any) (*Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	resp, err := tool.Handler(attemptCtx, params)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, Recoverable(err)
		}
		return nil, err
	}
	if resp == nil {
		return nil, Fatal(errors.New("handler returned nil response"))
	}
	return resp, nil
}

func (o *Orchestrator) finish(rec *session.ToolCallRecord, started time.Time) {
	rec.LatencyMs = time.Since(started).Milliseconds()
	o.sess.AppendToolCall(*rec)
	o.metrics.ObserveToolCall(rec.Tool, rec.Provider, string(rec.Status), time.Since(started).Seconds())
}
