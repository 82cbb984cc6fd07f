package conversation

import (
	"context"
	"sync"

	"github.com/voicelane/callcore/internal/observability/metrics"
	"github.com/voicelane/callcore/internal/session"
	"github.com/voicelane/callcore/pkg/logging"
)

// Phase is one stop in the call flow.
type Phase string

const (
	PhaseAwaitingConsent Phase = "awaiting_consent"
	PhaseGreeting        Phase = "greeting"
	PhaseDiscovery       Phase = "discovery"
	PhaseValueDemo       Phase = "value_demo"
	PhaseQualification   Phase = "qualification"
	PhaseNextSteps       Phase = "next_steps"
	PhaseClosing         Phase = "closing"
	PhaseEscalation      Phase = "escalation"
	PhaseTerminated      Phase = "terminated"
)

// Event drives phase transitions.
type Event string

const (
	EventConsentGranted       Event = "consent_granted"
	EventConsentDeclined      Event = "consent_declined"
	EventGreetingComplete     Event = "greeting_complete"
	EventDiscoveryComplete    Event = "discovery_complete"
	EventValueShown           Event = "value_shown"
	EventQualified            Event = "qualified"
	EventNeedsMoreDemo        Event = "needs_more_demo"
	EventNextStepsAgreed      Event = "next_steps_agreed"
	EventClarifyQualification Event = "clarify_qualification"
	EventEscalate             Event = "escalate"
	EventEscalationHandledOff Event = "escalation_handed_off"
	EventCallComplete         Event = "call_complete"
)

// transitions is the fixed, total transition table. Any (phase, event) pair
// not listed here is rejected and logged, never silently applied.
// Qualification can loop back to value demo, and next steps back to
// qualification, so the flow tolerates callers who change their mind.
var transitions = map[Phase]map[Event]Phase{
	PhaseAwaitingConsent: {
		EventConsentGranted:  PhaseGreeting,
		EventConsentDeclined: PhaseEscalation,
		EventEscalate:        PhaseEscalation,
	},
	PhaseGreeting: {
		EventGreetingComplete: PhaseDiscovery,
		EventEscalate:         PhaseEscalation,
	},
	PhaseDiscovery: {
		EventDiscoveryComplete: PhaseValueDemo,
		EventEscalate:          PhaseEscalation,
	},
	PhaseValueDemo: {
		EventValueShown: PhaseQualification,
		EventEscalate:   PhaseEscalation,
	},
	PhaseQualification: {
		EventQualified:     PhaseNextSteps,
		EventNeedsMoreDemo: PhaseValueDemo,
		EventEscalate:      PhaseEscalation,
	},
	PhaseNextSteps: {
		EventNextStepsAgreed:      PhaseClosing,
		EventClarifyQualification: PhaseQualification,
		EventEscalate:             PhaseEscalation,
	},
	PhaseClosing: {
		EventCallComplete: PhaseTerminated,
		EventEscalate:     PhaseEscalation,
	},
	PhaseEscalation: {
		EventEscalationHandledOff: PhaseClosing,
	},
	PhaseTerminated: {},
}

// Machine is the per-session conversation state machine. Transitions honor
// preconditions (consent before leaving the consent phase, at least one
// signal before qualification) and guardian pre-emption always wins over any
// in-flight transition.
type Machine struct {
	sess    *session.Session
	logger  *logging.Logger
	metrics *metrics.CallMetrics
	events  *EventLogger

	mu    sync.Mutex
	phase Phase
}

// NewMachine starts a machine in the consent phase.
func NewMachine(sess *session.Session, logger *logging.Logger, m *metrics.CallMetrics, events *EventLogger) *Machine {
	if sess == nil {
		panic("conversation: session cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	machine := &Machine{
		sess:    sess,
		logger:  logger,
		metrics: m,
		events:  events,
		phase:   PhaseAwaitingConsent,
	}
	sess.SetPhase(string(PhaseAwaitingConsent))
	return machine
}

// CurrentPhase returns the live phase.
func (m *Machine) CurrentPhase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// Advance applies event against the transition table. It returns the
// resulting phase and whether the phase changed. Unknown pairs and failed
// preconditions leave the phase untouched.
func (m *Machine) Advance(ctx context.Context, event Event) (Phase, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase == PhaseTerminated {
		return PhaseTerminated, false
	}

	next, ok := transitions[m.phase][event]
	if !ok {
		m.logger.Warn("transition rejected",
			"session_id", m.sess.ID, "phase", string(m.phase), "event", string(event))
		m.events.TransitionRejected(ctx, m.sess.ID, string(m.phase), string(event))
		return m.phase, false
	}

	if !m.preconditionMet(next, event) {
		m.logger.Warn("transition precondition not met",
			"session_id", m.sess.ID, "phase", string(m.phase), "event", string(event))
		m.events.TransitionRejected(ctx, m.sess.ID, string(m.phase), string(event))
		return m.phase, false
	}

	from := m.phase
	m.phase = next
	m.sess.SetPhase(string(next))
	m.metrics.ObservePhaseChange(string(from), string(next))
	m.events.PhaseChanged(ctx, m.sess.ID, string(from), string(next), string(event))
	m.logger.Info("phase changed",
		"session_id", m.sess.ID, "from", string(from), "to", string(next), "event", string(event))
	return next, true
}

func (m *Machine) preconditionMet(next Phase, event Event) bool {
	// Leaving the consent phase forward requires an affirmative decision.
	if m.phase == PhaseAwaitingConsent && event == EventConsentGranted && !m.sess.Consent().Granted {
		return false
	}
	// Qualification is meaningless without at least one extracted signal.
	if next == PhaseQualification && m.sess.Signals.Len() == 0 {
		return false
	}
	return true
}

// ForceTerminate moves the machine to the terminal phase with the given
// reason. It is idempotent: the first reason wins and later calls are
// no-ops. It always succeeds regardless of the current phase.
func (m *Machine) ForceTerminate(ctx context.Context, reason session.TerminationReason) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	first := m.sess.Terminate(reason)
	if m.phase != PhaseTerminated {
		from := m.phase
		m.phase = PhaseTerminated
		m.sess.SetPhase(string(PhaseTerminated))
		m.metrics.ObservePhaseChange(string(from), string(PhaseTerminated))
	}
	if first {
		m.metrics.ObserveTermination(string(reason))
		m.events.SessionTerminated(ctx, m.sess.ID, string(reason))
		m.logger.Info("session terminated", "session_id", m.sess.ID, "reason", string(reason))
	}
	return first
}
