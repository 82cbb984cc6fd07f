package conversation

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/voicelane/callcore/internal/consent"
	"github.com/voicelane/callcore/internal/session"
	"github.com/voicelane/callcore/internal/signals"
	"github.com/voicelane/callcore/internal/tools"
	"github.com/voicelane/callcore/pkg/logging"
)

// Lines the engine speaks at fixed points in the flow.
const (
	OpeningPrompt = "Hi! Thanks for calling. Quick heads up: this call is transcribed so I can " +
		"help you better. Is that okay with you?"

	ConsentThanks = "Great, thank you! So, what brings you in today?"

	SalesReadyOffer = "I can see this would be valuable for your team. Would you like me to book a " +
		"quick call with our sales team to discuss enterprise features and pricing?"

	SelfServeDecline = "The quickest path for you is our self-serve plan. You can sign up online and " +
		"be running in a few minutes."

	BookingConfirmed = "Wonderful! I've got the sales team set to reach out. They'll confirm a time " +
		"that works for you shortly."

	BookingDeclinedAck = "No problem at all. You can always grab a time with the team later from our website."
)

// Tool names the engine dispatches. The registry validates these at startup.
const (
	ToolSearchKnowledge = "search_knowledge"
	ToolBookSalesCall   = "book_sales_call"
)

// Reply is one line for the voice pipeline to speak.
type Reply struct {
	Text string
}

// Engine coordinates a single turn: consent gating, signal extraction,
// qualification, phase advancement, and tool dispatch. Conversational
// response text beyond the fixed prompts is assembled upstream by the LLM
// layer; the engine only contributes control-flow lines.
type Engine struct {
	sess      *session.Session
	machine   *Machine
	consent   *consent.Manager
	extractor *signals.Extractor
	orch      *tools.Orchestrator
	events    *EventLogger
	logger    *logging.Logger

	// offerPending is set once the sales-call offer has been spoken, so the
	// next caller turn in the next-steps phase is read as the answer to it.
	offerPending bool
}

// EngineConfig wires the per-session collaborators.
type EngineConfig struct {
	Session      *session.Session
	Machine      *Machine
	Consent      *consent.Manager
	Extractor    *signals.Extractor
	Orchestrator *tools.Orchestrator
	Events       *EventLogger
	Logger       *logging.Logger
}

// NewEngine creates the turn coordinator for one session.
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Session == nil || cfg.Machine == nil {
		panic("conversation: engine requires session and machine")
	}
	if cfg.Consent == nil {
		cfg.Consent = consent.NewManager()
	}
	if cfg.Extractor == nil {
		cfg.Extractor = signals.NewExtractor()
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &Engine{
		sess:      cfg.Session,
		machine:   cfg.Machine,
		consent:   cfg.Consent,
		extractor: cfg.Extractor,
		orch:      cfg.Orchestrator,
		events:    cfg.Events,
		logger:    cfg.Logger,
	}
}

// OnUtterance processes one finalized caller utterance and returns the lines
// to speak. Before consent is granted nothing is extracted, persisted, or
// dispatched; the consent exchange is the only thing the engine will do.
func (e *Engine) OnUtterance(ctx context.Context, text string) []Reply {
	if e.sess.Terminated() {
		return nil
	}

	e.sess.MarkActivity(time.Now().UTC())
	index := e.sess.TurnCount()
	e.events.UtteranceReceived(ctx, e.sess.ID, text, index)

	phase := e.machine.CurrentPhase()
	if phase == PhaseAwaitingConsent {
		return e.handleConsent(ctx, text)
	}

	extracted := e.extractor.Extract(text, index)
	if len(extracted) > 0 {
		e.sess.Signals.Append(extracted...)
		for _, sig := range extracted {
			e.events.SignalExtracted(ctx, e.sess.ID, sig.Name, sig.Value, string(sig.Confidence))
		}
	}

	tier := signals.Classify(e.sess.Signals)
	previousTier := e.sess.Tier()
	e.sess.SetTier(string(tier))
	if string(tier) != previousTier {
		e.events.QualificationComputed(ctx, e.sess.ID, string(tier), e.sess.Signals.Len())
	}

	var replies []Reply
	replies = append(replies, e.dispatchEffects(ctx, phase, text)...)
	replies = append(replies, e.progress(ctx, extracted, tier)...)
	return replies
}

// dispatchEffects runs the tool-backed effects this turn calls for: booking
// when the caller answers the sales-call offer, a knowledge lookup when the
// turn is a question. Independent effects run concurrently; phase is the
// phase at the start of the turn, so an offer spoken this turn is never
// answered by the utterance that triggered it.
func (e *Engine) dispatchEffects(ctx context.Context, phase Phase, text string) []Reply {
	var jobs []func() []Reply

	if phase == PhaseNextSteps && e.offerPending {
		switch consent.Classify(text) {
		case consent.DecisionGranted:
			e.offerPending = false
			jobs = append(jobs, func() []Reply { return e.bookMeeting(ctx) })
		case consent.DecisionDeclined:
			e.offerPending = false
			e.machine.Advance(ctx, EventNextStepsAgreed)
			jobs = append(jobs, func() []Reply { return []Reply{{Text: BookingDeclinedAck}} })
		}
	}

	if isQuestion(text) {
		jobs = append(jobs, func() []Reply { return e.answerFromKnowledge(ctx, text) })
	}

	switch len(jobs) {
	case 0:
		return nil
	case 1:
		return jobs[0]()
	}

	results := make([][]Reply, len(jobs))
	var wg sync.WaitGroup
	for i, job := range jobs {
		wg.Add(1)
		go func(i int, job func() []Reply) {
			defer wg.Done()
			results[i] = job()
		}(i, job)
	}
	wg.Wait()

	var replies []Reply
	for _, r := range results {
		replies = append(replies, r...)
	}
	return replies
}

func (e *Engine) bookMeeting(ctx context.Context) []Reply {
	out := e.RequestSalesMeeting(ctx)
	if out.Status == session.ToolCallSucceeded {
		e.machine.Advance(ctx, EventNextStepsAgreed)
		return []Reply{{Text: BookingConfirmed}}
	}
	if out.Say != "" {
		return []Reply{{Text: out.Say}}
	}
	return nil
}

func (e *Engine) answerFromKnowledge(ctx context.Context, text string) []Reply {
	out := e.SearchKnowledge(ctx, text)
	if out.Status == session.ToolCallSucceeded || out.Say == "" {
		// A successful lookup feeds the upstream response layer; the engine
		// itself has nothing to add.
		return nil
	}
	return []Reply{{Text: out.Say}}
}

var questionOpeners = map[string]struct{}{
	"who": {}, "what": {}, "when": {}, "where": {}, "why": {}, "how": {},
	"can": {}, "could": {}, "do": {}, "does": {}, "is": {}, "are": {},
	"will": {}, "would": {},
}

func isQuestion(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	if strings.Contains(t, "?") {
		return true
	}
	fields := strings.Fields(t)
	if len(fields) == 0 {
		return false
	}
	_, ok := questionOpeners[strings.Trim(fields[0], ",.!")]
	return ok
}

// progress nudges the state machine forward based on what this turn yielded.
func (e *Engine) progress(ctx context.Context, extracted []session.Signal, tier signals.Tier) []Reply {
	var replies []Reply

	switch e.machine.CurrentPhase() {
	case PhaseGreeting:
		e.machine.Advance(ctx, EventGreetingComplete)
	case PhaseDiscovery:
		if e.sess.Signals.Len() > 0 {
			e.machine.Advance(ctx, EventDiscoveryComplete)
		}
	case PhaseValueDemo:
		if len(extracted) > 0 {
			e.machine.Advance(ctx, EventValueShown)
		}
	case PhaseQualification:
		if tier == signals.TierSalesReady {
			if _, changed := e.machine.Advance(ctx, EventQualified); changed {
				e.events.HotLead(ctx, e.sess.ID, string(tier), map[string]any{
					"signal_count": e.sess.Signals.Len(),
				})
				e.logger.Info("HOT LEAD qualified for sales hand-off",
					"session_id", e.sess.ID, "tier", string(tier))
				e.offerPending = true
				replies = append(replies, Reply{Text: SalesReadyOffer})
			}
		} else if tier == signals.TierNurture {
			e.machine.Advance(ctx, EventQualified)
		}
	}

	return replies
}

func (e *Engine) handleConsent(ctx context.Context, text string) []Reply {
	outcome := e.consent.RecordResponse(text)
	e.events.ConsentDecision(ctx, e.sess.ID, string(outcome.Decision))

	switch outcome.Decision {
	case consent.DecisionGranted:
		e.sess.RecordConsent(true)
		e.machine.Advance(ctx, EventConsentGranted)
		return []Reply{{Text: ConsentThanks}}
	case consent.DecisionDeclined:
		if outcome.Final {
			e.sess.RecordConsent(false)
			e.machine.Advance(ctx, EventConsentDeclined)
			e.machine.ForceTerminate(ctx, session.ReasonConsentDecline)
			return []Reply{{Text: outcome.Say}}
		}
		return nil
	default:
		// Unclear: speak the single re-ask and stay in the consent phase.
		return []Reply{{Text: outcome.Say}}
	}
}

// SearchKnowledge runs the knowledge-search tool for the current turn. It is
// blocked until consent is granted.
func (e *Engine) SearchKnowledge(ctx context.Context, query string) tools.Outcome {
	return e.invoke(ctx, ToolSearchKnowledge, map[string]any{"query": query})
}

// RequestSalesMeeting books a sales call, but only for sales-ready leads;
// everyone else gets pointed at self-serve without a tool call.
func (e *Engine) RequestSalesMeeting(ctx context.Context) tools.Outcome {
	if e.sess.Tier() != string(signals.TierSalesReady) {
		return tools.Outcome{
			Status: session.ToolCallShortCircuit,
			Say:    SelfServeDecline,
		}
	}
	return e.invoke(ctx, ToolBookSalesCall, map[string]any{
		"session_id": e.sess.ID,
		"tier":       e.sess.Tier(),
	})
}

func (e *Engine) invoke(ctx context.Context, tool string, params map[string]any) tools.Outcome {
	if !e.sess.Consent().Granted {
		e.logger.Warn("tool blocked before consent", "session_id", e.sess.ID, "tool", tool)
		return tools.Outcome{Status: session.ToolCallShortCircuit}
	}
	if e.orch == nil {
		return tools.Outcome{Status: session.ToolCallShortCircuit}
	}
	out := e.orch.Invoke(ctx, tool, params)
	e.events.ToolInvoked(ctx, e.sess.ID, tool, "", string(out.Status), out.Attempts, out.Latency.Milliseconds())
	return out
}

// Close ends the call on a natural goodbye.
func (e *Engine) Close(ctx context.Context) {
	e.machine.Advance(ctx, EventNextStepsAgreed)
	e.machine.Advance(ctx, EventCallComplete)
	e.machine.ForceTerminate(ctx, session.ReasonNaturalClose)
}
