package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// CallState is the externally visible snapshot of a live call, kept in Redis
// so operational tooling can inspect in-flight sessions. The authoritative
// per-call state stays in the Session object; this is a mirror.
type CallState struct {
	// SessionID is the call/room identifier from the voice pipeline.
	SessionID string `json:"session_id"`
	// Status tracks the call lifecycle: active, ended.
	Status string `json:"status"`
	// Phase is the current conversation phase name.
	Phase string `json:"phase"`
	// Tier is the latest qualification tier, if computed.
	Tier string `json:"tier,omitempty"`
	// TurnCount tracks how many user turns have occurred.
	TurnCount int `json:"turn_count"`
	// StartedAt is when the call was answered.
	StartedAt time.Time `json:"started_at"`
	// LastActivityAt tracks the most recent caller utterance.
	LastActivityAt time.Time `json:"last_activity_at"`
	// TerminationReason records how the call ended, if it has.
	TerminationReason string `json:"termination_reason,omitempty"`
}

// TranscriptEntry is a single spoken turn on the call.
type TranscriptEntry struct {
	Role      string    `json:"role"` // "user" or "agent"
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	callKeyPrefix       = "call:state:"
	transcriptKeyPrefix = "call:transcript:"
	callStateTTL        = 24 * time.Hour

	CallStatusActive = "active"
	CallStatusEnded  = "ended"
)

// Store mirrors live call state and transcripts into Redis.
type Store struct {
	rdb    *redis.Client
	tracer trace.Tracer
}

// NewStore creates a call-state store backed by Redis.
func NewStore(rdb *redis.Client) *Store {
	if rdb == nil {
		panic("session: redis client cannot be nil")
	}
	return &Store{
		rdb:    rdb,
		tracer: otel.Tracer("callcore.internal.session.store"),
	}
}

func callKey(sessionID string) string {
	return callKeyPrefix + sessionID
}

func transcriptKey(sessionID string) string {
	return transcriptKeyPrefix + sessionID
}

// SaveCallState persists or updates the call snapshot.
func (s *Store) SaveCallState(ctx context.Context, state *CallState) error {
	if state == nil || state.SessionID == "" {
		return fmt.Errorf("session: call state requires session_id")
	}
	ctx, span := s.tracer.Start(ctx, "session.save_call_state")
	defer span.End()

	data, err := json.Marshal(state)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: failed to marshal call state: %w", err)
	}
	if err := s.rdb.Set(ctx, callKey(state.SessionID), data, callStateTTL).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: failed to persist call state: %w", err)
	}
	return nil
}

// LoadCallState fetches the call snapshot, returning (nil, nil) when absent.
func (s *Store) LoadCallState(ctx context.Context, sessionID string) (*CallState, error) {
	ctx, span := s.tracer.Start(ctx, "session.load_call_state")
	defer span.End()

	data, err := s.rdb.Get(ctx, callKey(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("session: failed to load call state: %w", err)
	}

	var state CallState
	if err := json.Unmarshal(data, &state); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("session: failed to decode call state: %w", err)
	}
	return &state, nil
}

// AppendTranscript adds one spoken turn to the call transcript.
func (s *Store) AppendTranscript(ctx context.Context, sessionID string, entry TranscriptEntry) error {
	if sessionID == "" {
		return fmt.Errorf("session: transcript requires session_id")
	}
	ctx, span := s.tracer.Start(ctx, "session.append_transcript")
	defer span.End()

	data, err := json.Marshal(entry)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: failed to marshal transcript entry: %w", err)
	}

	key := transcriptKey(sessionID)
	pipe := s.rdb.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.Expire(ctx, key, callStateTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: failed to append transcript: %w", err)
	}
	return nil
}

// Transcript returns the full transcript in spoken order.
func (s *Store) Transcript(ctx context.Context, sessionID string) ([]TranscriptEntry, error) {
	ctx, span := s.tracer.Start(ctx, "session.load_transcript")
	defer span.End()

	raw, err := s.rdb.LRange(ctx, transcriptKey(sessionID), 0, -1).Result()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("session: failed to load transcript: %w", err)
	}

	entries := make([]TranscriptEntry, 0, len(raw))
	for _, item := range raw {
		var entry TranscriptEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("session: failed to decode transcript entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// MarkEnded flips the call snapshot to ended with its termination reason.
func (s *Store) MarkEnded(ctx context.Context, sessionID string, reason TerminationReason) error {
	state, err := s.LoadCallState(ctx, sessionID)
	if err != nil {
		return err
	}
	if state == nil {
		return nil
	}
	state.Status = CallStatusEnded
	state.TerminationReason = string(reason)
	return s.SaveCallState(ctx, state)
}
