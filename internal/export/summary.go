// Package export ships the end-of-call summary to the analytics pipeline:
// an SQS message for downstream consumers, a gzipped JSON object in S3
// partitioned for Athena, and a row in Postgres for the dashboard. Export is
// fire-and-forget: failures are logged, never retried indefinitely, and never
// re-open the session.
package export

import (
	"strconv"
	"time"

	"github.com/voicelane/callcore/internal/cost"
	"github.com/voicelane/callcore/internal/session"
	"github.com/voicelane/callcore/internal/signals"
)

// Summary is the analytics record for one completed call.
type Summary struct {
	SessionID         string             `json:"session_id"`
	StartedAt         time.Time          `json:"start_time"`
	EndedAt           time.Time          `json:"end_time"`
	DurationSeconds   float64            `json:"duration_seconds"`
	FinalPhase        string             `json:"final_phase"`
	TerminationReason string             `json:"termination_reason,omitempty"`
	Consent           ConsentSummary     `json:"consent"`
	QualificationTier string             `json:"qualification_tier"`
	Signals           []session.Signal   `json:"signals"`
	ToolCalls         []ToolCallSummary  `json:"tool_calls"`
	CostByProvider    map[string]float64 `json:"cost_by_provider"`
	TotalCostUSD      float64            `json:"total_cost_usd"`
	UsageEvents       []cost.UsageEvent  `json:"usage_events,omitempty"`
}

// ConsentSummary records the consent decision for the compliance export.
type ConsentSummary struct {
	Decision  string     `json:"decision"`
	DecidedAt *time.Time `json:"decided_at,omitempty"`
}

// ToolCallSummary is one audit entry in the export payload.
type ToolCallSummary struct {
	Tool      string `json:"tool"`
	Provider  string `json:"provider"`
	Outcome   string `json:"outcome"`
	Attempts  int    `json:"attempts"`
	LatencyMs int64  `json:"latency_ms"`
}

// BuildSummary assembles the export record from the finished session. Tool
// calls that committed externally before termination stay in the record
// regardless of how the call ended.
func BuildSummary(sess *session.Session, meter *cost.Meter, endedAt time.Time) *Summary {
	if endedAt.IsZero() {
		endedAt = time.Now().UTC()
	}

	toolCalls := make([]ToolCallSummary, 0)
	for _, rec := range sess.ToolLog() {
		toolCalls = append(toolCalls, ToolCallSummary{
			Tool:      rec.Tool,
			Provider:  rec.Provider,
			Outcome:   string(rec.Status),
			Attempts:  rec.Attempts,
			LatencyMs: rec.LatencyMs,
		})
	}

	consentState := sess.Consent()
	decision := consentState.Decision
	if decision == "" {
		decision = "undecided"
	}

	return &Summary{
		SessionID:         sess.ID,
		StartedAt:         sess.StartedAt,
		EndedAt:           endedAt,
		DurationSeconds:   endedAt.Sub(sess.StartedAt).Seconds(),
		FinalPhase:        sess.Phase(),
		TerminationReason: string(sess.TerminationReason()),
		Consent:           ConsentSummary{Decision: decision, DecidedAt: consentState.DecidedAt},
		QualificationTier: sess.Tier(),
		Signals:           sess.Signals.History(),
		ToolCalls:         toolCalls,
		CostByProvider:    meter.BreakdownByProvider(),
		TotalCostUSD:      meter.Total(),
		UsageEvents:       meter.Events(),
	}
}

// IsHotLead reports whether the summary crosses the hot-lead thresholds used
// for the high-visibility log line.
func (s *Summary) IsHotLead() bool {
	if s.QualificationTier == string(signals.TierSalesReady) {
		return true
	}
	return s.latestNumericSignal(signals.SignalTeamSize) >= 5 ||
		s.latestNumericSignal(signals.SignalMonthlyVolume) >= 100
}

func (s *Summary) latestNumericSignal(name string) int {
	value := 0
	for _, sig := range s.Signals {
		if sig.Name != name {
			continue
		}
		if n, err := strconv.Atoi(sig.Value); err == nil {
			value = n
		}
	}
	return value
}
