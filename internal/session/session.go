package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Confidence tags how a signal was extracted. Numeric-literal rules produce
// High; keyword rules Medium; phrase-inference rules Low.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Signal is an immutable extracted fact about the caller.
type Signal struct {
	Name       string     `json:"name"`
	Value      string     `json:"value"`
	Confidence Confidence `json:"confidence"`
	// UtteranceIndex is the ordinal of the utterance the signal came from.
	UtteranceIndex int       `json:"utterance_index"`
	ExtractedAt    time.Time `json:"extracted_at"`
}

// SignalStore accumulates signals for one session. Same-name signals stack
// chronologically; the latest high-confidence value wins for qualification,
// but the full history is retained for audit.
type SignalStore struct {
	mu      sync.RWMutex
	signals []Signal
}

// NewSignalStore returns an empty signal store.
func NewSignalStore() *SignalStore {
	return &SignalStore{}
}

// Append records newly extracted signals in arrival order.
func (s *SignalStore) Append(signals ...Signal) {
	if len(signals) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signals = append(s.signals, signals...)
}

// Latest returns the most recent value for name, preferring the most recent
// signal at the highest confidence present.
func (s *SignalStore) Latest(name string) (Signal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best Signal
	found := false
	for _, sig := range s.signals {
		if sig.Name != name {
			continue
		}
		if !found || rank(sig.Confidence) >= rank(best.Confidence) {
			best = sig
			found = true
		}
	}
	return best, found
}

// All returns every value ever recorded for name, in arrival order.
func (s *SignalStore) All(name string) []Signal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Signal
	for _, sig := range s.signals {
		if sig.Name == name {
			out = append(out, sig)
		}
	}
	return out
}

// History returns a copy of the full signal history.
func (s *SignalStore) History() []Signal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Signal, len(s.signals))
	copy(out, s.signals)
	return out
}

// Len reports how many signals have been recorded.
func (s *SignalStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.signals)
}

func rank(c Confidence) int {
	switch c {
	case ConfidenceHigh:
		return 3
	case ConfidenceMedium:
		return 2
	case ConfidenceLow:
		return 1
	default:
		return 0
	}
}

// ConsentState records the caller's transcription-consent decision.
type ConsentState struct {
	Granted   bool       `json:"granted"`
	Decision  string     `json:"decision,omitempty"` // granted, declined
	DecidedAt *time.Time `json:"decided_at,omitempty"`
}

// ToolCallStatus classifies how a tool invocation ended.
type ToolCallStatus string

const (
	ToolCallSucceeded    ToolCallStatus = "succeeded"
	ToolCallRecoverable  ToolCallStatus = "recoverable_error"
	ToolCallFatal        ToolCallStatus = "fatal_error"
	ToolCallShortCircuit ToolCallStatus = "short_circuited"
)

// ToolCallRecord is the audit entry for one tool invocation.
type ToolCallRecord struct {
	ID        string         `json:"id"`
	Tool      string         `json:"tool"`
	Provider  string         `json:"provider"`
	Status    ToolCallStatus `json:"status"`
	Attempts  int            `json:"attempts"`
	StartedAt time.Time      `json:"started_at"`
	LatencyMs int64          `json:"latency_ms"`
	Error     string         `json:"error,omitempty"`
}

// TerminationReason names why the guardian or orchestrator ended a session.
type TerminationReason string

const (
	ReasonSilenceTimeout TerminationReason = "silence_timeout"
	ReasonTimeLimit      TerminationReason = "time_limit"
	ReasonCostLimit      TerminationReason = "cost_limit"
	ReasonConsentDecline TerminationReason = "consent_declined"
	ReasonNaturalClose   TerminationReason = "natural_close"
	ReasonDisconnect     TerminationReason = "upstream_disconnect"
)

// Session is the single mutable context object for one call. It is created
// when the call starts, passed explicitly to every component, and destroyed
// after the summary export. Nothing here is shared across sessions.
type Session struct {
	ID        string
	StartedAt time.Time

	Signals *SignalStore

	mu           sync.RWMutex
	phase        string
	consent      ConsentState
	tier         string
	toolLog      []ToolCallRecord
	turnCount    int
	lastActivity time.Time
	termination  TerminationReason
}

// New creates a session with a generated ID.
func New() *Session {
	return NewWithID(uuid.NewString())
}

// NewWithID creates a session with the caller-provided ID (e.g. the room name
// handed over by the voice pipeline).
func NewWithID(id string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:           id,
		StartedAt:    now,
		Signals:      NewSignalStore(),
		lastActivity: now,
	}
}

// Phase returns the current conversation phase name.
func (s *Session) Phase() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// SetPhase records the current conversation phase. Only the state machine
// calls this.
func (s *Session) SetPhase(phase string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = phase
}

// Consent returns the consent state.
func (s *Session) Consent() ConsentState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.consent
}

// RecordConsent stores the caller's decision with its timestamp.
func (s *Session) RecordConsent(granted bool) {
	now := time.Now().UTC()
	decision := "declined"
	if granted {
		decision = "granted"
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consent = ConsentState{Granted: granted, Decision: decision, DecidedAt: &now}
}

// Tier returns the latest qualification tier, or "" if not yet computed.
func (s *Session) Tier() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tier
}

// SetTier records the latest qualification tier.
func (s *Session) SetTier(tier string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tier = tier
}

// AppendToolCall adds an entry to the tool-call audit log.
func (s *Session) AppendToolCall(rec ToolCallRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toolLog = append(s.toolLog, rec)
}

// ToolLog returns a copy of the tool-call audit log.
func (s *Session) ToolLog() []ToolCallRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ToolCallRecord, len(s.toolLog))
	copy(out, s.toolLog)
	return out
}

// MarkActivity notes that the caller spoke, resetting the silence clock, and
// bumps the turn counter.
func (s *Session) MarkActivity(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if at.After(s.lastActivity) {
		s.lastActivity = at
	}
	s.turnCount++
}

// LastActivity returns the time of the caller's most recent utterance.
func (s *Session) LastActivity() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActivity
}

// TurnCount reports how many user turns have occurred.
func (s *Session) TurnCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.turnCount
}

// Terminate records the first termination reason; later calls are ignored so
// the reported reason is always the cause that actually ended the call.
func (s *Session) Terminate(reason TerminationReason) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.termination != "" {
		return false
	}
	s.termination = reason
	return true
}

// TerminationReason returns the recorded reason, or "" while the call is live.
func (s *Session) TerminationReason() TerminationReason {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.termination
}

// Terminated reports whether the session has been ended.
func (s *Session) Terminated() bool {
	return s.TerminationReason() != ""
}
