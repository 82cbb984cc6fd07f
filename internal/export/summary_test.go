package export

import (
	"testing"
	"time"

	"github.com/voicelane/callcore/internal/cost"
	"github.com/voicelane/callcore/internal/session"
	"github.com/voicelane/callcore/internal/signals"
)

func finishedSession(t *testing.T) (*session.Session, *cost.Meter) {
	t.Helper()
	sess := session.NewWithID("sess_export")
	sess.RecordConsent(true)
	sess.SetPhase("closing")
	sess.SetTier(string(signals.TierSalesReady))
	sess.Signals.Append(
		session.Signal{Name: signals.SignalTeamSize, Value: "8", Confidence: session.ConfidenceHigh},
		session.Signal{Name: signals.SignalIntegration, Value: "salesforce", Confidence: session.ConfidenceMedium},
	)
	sess.AppendToolCall(session.ToolCallRecord{
		Tool: "book_sales_call", Provider: "calendar",
		Status: session.ToolCallSucceeded, Attempts: 1, LatencyMs: 120,
	})
	sess.Terminate(session.ReasonNaturalClose)

	meter := cost.NewMeter()
	cost.RecordLLMUsage(meter, 4000, 900)
	cost.RecordSTTUsage(meter, 240)
	return sess, meter
}

func TestBuildSummary(t *testing.T) {
	sess, meter := finishedSession(t)
	ended := sess.StartedAt.Add(4 * time.Minute)

	s := BuildSummary(sess, meter, ended)

	if s.SessionID != "sess_export" {
		t.Errorf("SessionID = %q", s.SessionID)
	}
	if s.DurationSeconds != 240 {
		t.Errorf("DurationSeconds = %v, want 240", s.DurationSeconds)
	}
	if s.FinalPhase != "closing" {
		t.Errorf("FinalPhase = %q", s.FinalPhase)
	}
	if s.TerminationReason != string(session.ReasonNaturalClose) {
		t.Errorf("TerminationReason = %q", s.TerminationReason)
	}
	if s.Consent.Decision != "granted" || s.Consent.DecidedAt == nil {
		t.Errorf("Consent = %+v", s.Consent)
	}
	if len(s.Signals) != 2 {
		t.Errorf("Signals = %d entries, want 2", len(s.Signals))
	}
	if len(s.ToolCalls) != 1 || s.ToolCalls[0].Outcome != "succeeded" {
		t.Errorf("ToolCalls = %+v", s.ToolCalls)
	}
	if s.TotalCostUSD != meter.Total() {
		t.Errorf("TotalCostUSD = %v, want %v", s.TotalCostUSD, meter.Total())
	}
	if len(s.CostByProvider) != 2 {
		t.Errorf("CostByProvider = %v", s.CostByProvider)
	}
}

func TestBuildSummaryUndecidedConsent(t *testing.T) {
	sess := session.NewWithID("sess_bare")
	s := BuildSummary(sess, cost.NewMeter(), time.Now().UTC())

	if s.Consent.Decision != "undecided" {
		t.Errorf("Decision = %q, want undecided", s.Consent.Decision)
	}
	if len(s.ToolCalls) != 0 {
		t.Errorf("expected empty tool calls, got %+v", s.ToolCalls)
	}
}

func TestIsHotLead(t *testing.T) {
	tests := []struct {
		name    string
		summary Summary
		want    bool
	}{
		{"sales ready tier", Summary{QualificationTier: string(signals.TierSalesReady)}, true},
		{
			"big team without tier",
			Summary{Signals: []session.Signal{{Name: signals.SignalTeamSize, Value: "6"}}},
			true,
		},
		{
			"high volume without tier",
			Summary{Signals: []session.Signal{{Name: signals.SignalMonthlyVolume, Value: "250"}}},
			true,
		},
		{
			"small team",
			Summary{Signals: []session.Signal{{Name: signals.SignalTeamSize, Value: "2"}}},
			false,
		},
		{"empty", Summary{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.summary.IsHotLead(); got != tt.want {
				t.Errorf("IsHotLead() = %v, want %v", got, tt.want)
			}
		})
	}
}
