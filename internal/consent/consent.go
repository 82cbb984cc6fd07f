// Package consent gates the conversation on an affirmative recording and
// transcription decision. Nothing downstream of the consent exchange may run
// until the caller has said yes.
package consent

import (
	"strings"
	"sync"
	"time"
)

// Decision classifies one consent response.
type Decision string

const (
	DecisionGranted  Decision = "granted"
	DecisionDeclined Decision = "declined"
	DecisionUnclear  Decision = "unclear"
)

// ReaskPrompt is spoken after a single unclear response.
const ReaskPrompt = "Just to confirm - are you okay with our conversation being transcribed?"

// DeclineMessage is the hand-off read to callers who decline. They are pointed
// at non-agent contact paths and the call winds down.
const DeclineMessage = "I completely understand. Unfortunately, I'm not able to assist without " +
	"transcription enabled, as it's required for our service quality. I'd be happy to have you " +
	"reach out to our support team via email, or you can visit our help center. Have a great day!"

// Affirmative and negative lexicons checked as whole phrases against the
// lowercased utterance. Order matters only within a list; negatives are
// checked first so "no, go ahead and skip it" declines.
var (
	negativePhrases = []string{
		"i'd rather not",
		"i would rather not",
		"not really",
		"rather not",
		"skip that",
		"skip it",
		"no thanks",
		"no thank you",
	}
	affirmativePhrases = []string{
		"go ahead",
		"that's fine",
		"thats fine",
		"sounds good",
		"of course",
	}
	negativeWords    = []string{"no", "nope", "nah"}
	affirmativeWords = []string{"yes", "yeah", "yep", "sure", "okay", "ok", "fine", "alright"}
)

// Classify maps a single utterance to a consent decision. It is a pure
// lexicon match; anything that matches neither lexicon is unclear, which is
// distinct from declined.
func Classify(utterance string) Decision {
	text := strings.ToLower(strings.TrimSpace(utterance))
	if text == "" {
		return DecisionUnclear
	}

	for _, phrase := range negativePhrases {
		if strings.Contains(text, phrase) {
			return DecisionDeclined
		}
	}
	for _, phrase := range affirmativePhrases {
		if strings.Contains(text, phrase) {
			return DecisionGranted
		}
	}

	words := strings.FieldsFunc(text, func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9') && r != '\''
	})
	for _, word := range words {
		for _, neg := range negativeWords {
			if word == neg {
				return DecisionDeclined
			}
		}
	}
	for _, word := range words {
		for _, aff := range affirmativeWords {
			if word == aff {
				return DecisionGranted
			}
		}
	}
	return DecisionUnclear
}

// Manager tracks the consent exchange for one session. An unclear response
// triggers exactly one re-ask; a second unclear response is treated as a
// decline so the call never loops on the consent question.
type Manager struct {
	mu        sync.Mutex
	decided   bool
	granted   bool
	reasked   bool
	decidedAt time.Time
}

// NewManager returns an undecided consent manager.
func NewManager() *Manager {
	return &Manager{}
}

// Outcome is what the orchestrator should do after a consent response.
type Outcome struct {
	Decision Decision
	// Say is the line to speak next, empty when the conversation proceeds
	// normally.
	Say string
	// Final reports whether the consent exchange is over.
	Final bool
}

// RecordResponse consumes one caller utterance during the consent exchange.
func (m *Manager) RecordResponse(utterance string) Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.decided {
		return Outcome{Decision: m.decision(), Final: true}
	}

	switch Classify(utterance) {
	case DecisionGranted:
		m.decided = true
		m.granted = true
		m.decidedAt = time.Now().UTC()
		return Outcome{Decision: DecisionGranted, Final: true}
	case DecisionDeclined:
		m.decided = true
		m.decidedAt = time.Now().UTC()
		return Outcome{Decision: DecisionDeclined, Say: DeclineMessage, Final: true}
	default:
		if !m.reasked {
			m.reasked = true
			return Outcome{Decision: DecisionUnclear, Say: ReaskPrompt}
		}
		// Second unclear response counts as a decline.
		m.decided = true
		m.decidedAt = time.Now().UTC()
		return Outcome{Decision: DecisionDeclined, Say: DeclineMessage, Final: true}
	}
}

// Granted reports whether the caller affirmatively consented.
func (m *Manager) Granted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.decided && m.granted
}

// Decided reports whether the consent exchange has concluded.
func (m *Manager) Decided() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.decided
}

// DecidedAt returns the audit timestamp of the decision, zero if undecided.
func (m *Manager) DecidedAt() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.decidedAt
}

func (m *Manager) decision() Decision {
	if !m.decided {
		return DecisionUnclear
	}
	if m.granted {
		return DecisionGranted
	}
	return DecisionDeclined
}
