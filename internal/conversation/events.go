package conversation

import (
	"context"
	"encoding/json"
	"time"

	"github.com/voicelane/callcore/pkg/logging"
)

// CallEvent represents a structured event in the call lifecycle. All events
// share the same base fields for easy filtering/grep.
type CallEvent struct {
	Time      string         `json:"time"`
	Event     string         `json:"event"`
	SessionID string         `json:"session_id"`
	Data      map[string]any `json:"data,omitempty"`
}

// EventLogger emits structured JSON events at each decision point in the
// call flow. Designed for fast grep/filter debugging:
//
//	grep '"event":"phase_changed"' /var/log/app.log
//	grep '"session_id":"sess_abc"' /var/log/app.log
type EventLogger struct {
	logger *logging.Logger
}

// NewEventLogger creates a new call event logger.
func NewEventLogger(logger *logging.Logger) *EventLogger {
	return &EventLogger{logger: logger}
}

// Log emits a structured call event.
func (e *EventLogger) Log(_ context.Context, event, sessionID string, data map[string]any) {
	if e == nil || e.logger == nil {
		return
	}
	evt := CallEvent{
		Time:      time.Now().UTC().Format(time.RFC3339Nano),
		Event:     event,
		SessionID: sessionID,
		Data:      data,
	}
	b, _ := json.Marshal(evt)
	e.logger.Info(string(b))
}

// Convenience methods for common events:

func (e *EventLogger) CallStarted(ctx context.Context, sessionID string) {
	e.Log(ctx, "call_started", sessionID, nil)
}

func (e *EventLogger) UtteranceReceived(ctx context.Context, sessionID, text string, index int) {
	// Truncate utterance for logging
	if len(text) > 200 {
		text = text[:200] + "..."
	}
	e.Log(ctx, "utterance_received", sessionID, map[string]any{
		"text":  text,
		"index": index,
	})
}

func (e *EventLogger) ConsentDecision(ctx context.Context, sessionID, decision string) {
	e.Log(ctx, "consent_decision", sessionID, map[string]any{
		"decision": decision,
	})
}

func (e *EventLogger) SignalExtracted(ctx context.Context, sessionID, name, value, confidence string) {
	e.Log(ctx, "signal_extracted", sessionID, map[string]any{
		"signal":     name,
		"value":      value,
		"confidence": confidence,
	})
}

func (e *EventLogger) QualificationComputed(ctx context.Context, sessionID, tier string, signalCount int) {
	e.Log(ctx, "qualification_computed", sessionID, map[string]any{
		"tier":         tier,
		"signal_count": signalCount,
	})
}

func (e *EventLogger) PhaseChanged(ctx context.Context, sessionID, from, to, event string) {
	e.Log(ctx, "phase_changed", sessionID, map[string]any{
		"from":  from,
		"to":    to,
		"event": event,
	})
}

func (e *EventLogger) TransitionRejected(ctx context.Context, sessionID, phase, event string) {
	e.Log(ctx, "transition_rejected", sessionID, map[string]any{
		"phase": phase,
		"event": event,
	})
}

func (e *EventLogger) ToolInvoked(ctx context.Context, sessionID, tool, provider, status string, attempts int, durationMs int64) {
	e.Log(ctx, "tool_invoked", sessionID, map[string]any{
		"tool":        tool,
		"provider":    provider,
		"status":      status,
		"attempts":    attempts,
		"duration_ms": durationMs,
	})
}

func (e *EventLogger) GuardianWarning(ctx context.Context, sessionID, cause string) {
	e.Log(ctx, "guardian_warning", sessionID, map[string]any{
		"cause": cause,
	})
}

func (e *EventLogger) SessionTerminated(ctx context.Context, sessionID, reason string) {
	e.Log(ctx, "session_terminated", sessionID, map[string]any{
		"reason": reason,
	})
}

func (e *EventLogger) HotLead(ctx context.Context, sessionID, tier string, data map[string]any) {
	d := map[string]any{"tier": tier}
	for k, v := range data {
		d[k] = v
	}
	e.Log(ctx, "hot_lead", sessionID, d)
}

func (e *EventLogger) ExportCompleted(ctx context.Context, sessionID string, ok bool, durationMs int64) {
	e.Log(ctx, "export_completed", sessionID, map[string]any{
		"ok":          ok,
		"duration_ms": durationMs,
	})
}

func (e *EventLogger) ErrorOccurred(ctx context.Context, sessionID, step string, err error) {
	e.Log(ctx, "error", sessionID, map[string]any{
		"step":  step,
		"error": err.Error(),
	})
}
