// Package gateway terminates the voice pipeline's websocket connection. One
// connection is one call session: finalized utterance frames come in, lines
// to speak go out. Audio never reaches this process; the speech layer sits
// upstream.
package gateway

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voicelane/callcore/internal/config"
	"github.com/voicelane/callcore/internal/consent"
	"github.com/voicelane/callcore/internal/conversation"
	"github.com/voicelane/callcore/internal/cost"
	"github.com/voicelane/callcore/internal/export"
	"github.com/voicelane/callcore/internal/observability/metrics"
	"github.com/voicelane/callcore/internal/resilience"
	"github.com/voicelane/callcore/internal/session"
	"github.com/voicelane/callcore/internal/signals"
	"github.com/voicelane/callcore/internal/tools"
	"github.com/voicelane/callcore/pkg/logging"
)

// Inbound frame types.
const (
	FrameUtterance = "utterance"
	FrameHangup    = "hangup"
)

// Outbound frame types.
const (
	FrameSession = "session"
	FrameSay     = "say"
	FrameEnded   = "ended"
)

// InboundFrame is one message from the voice pipeline.
type InboundFrame struct {
	Type string `json:"type"`
	// Text is the finalized utterance text.
	Text string `json:"text,omitempty"`
	// IsFinal marks a finalized transcription; interim results are ignored.
	IsFinal bool `json:"is_final,omitempty"`
}

// OutboundFrame is one message to the voice pipeline.
type OutboundFrame struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Text      string `json:"text,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// The gateway sits behind the voice pipeline's private network.
		return true
	},
}

// Handler owns the process-level collaborators shared by every call.
type Handler struct {
	cfg      *config.Config
	registry *tools.Registry
	store    *session.Store
	exporter *export.Exporter
	metrics  *metrics.CallMetrics
	logger   *logging.Logger
	events   *conversation.EventLogger
}

// NewHandler wires the gateway. store and exporter may be nil in tests.
func NewHandler(cfg *config.Config, registry *tools.Registry, store *session.Store, exporter *export.Exporter, m *metrics.CallMetrics, logger *logging.Logger) *Handler {
	if cfg == nil {
		panic("gateway: config cannot be nil")
	}
	if registry == nil {
		panic("gateway: tool registry cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		cfg:      cfg,
		registry: registry,
		store:    store,
		exporter: exporter,
		metrics:  m,
		logger:   logger,
		events:   conversation.NewEventLogger(logger),
	}
}

// conn wraps the websocket with a write lock; the engine, the guardian, and
// the read loop all speak on it.
type conn struct {
	mu    sync.Mutex
	ws    *websocket.Conn
	ended sync.Once
}

func (c *conn) send(frame OutboundFrame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(frame)
}

// sendEnded delivers the terminal frame exactly once, whichever side of the
// call ends it first.
func (c *conn) sendEnded(reason string) {
	c.ended.Do(func() {
		_ = c.send(OutboundFrame{Type: FrameEnded, Reason: reason})
	})
}

// Stream upgrades the connection and runs the call to completion.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	defer ws.Close()

	h.serve(r.Context(), &conn{ws: ws})
}

func (h *Handler) serve(parent context.Context, c *conn) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sess := session.New()
	logger := h.logger.WithSession(sess.ID)
	logger.Info("call connected")
	h.events.CallStarted(ctx, sess.ID)

	meter := cost.NewMeter()
	breakers := resilience.NewRegistry(resilience.BreakerConfig{
		FailureThreshold:   h.cfg.BreakerFailureThreshold,
		Cooldown:           h.cfg.BreakerCooldown,
		HalfOpenTrialLimit: 1,
	})
	machine := conversation.NewMachine(sess, logger, h.metrics, h.events)
	orch := tools.NewOrchestrator(tools.OrchestratorConfig{
		Registry: h.registry,
		Breakers: breakers,
		Meter:    meter,
		Session:  sess,
		Retry: resilience.RetryConfig{
			MaxAttempts: h.cfg.ToolMaxRetries,
			BaseDelay:   h.cfg.ToolRetryBaseDelay,
			MaxDelay:    h.cfg.ToolRetryMaxDelay,
		},
		Timeout: h.cfg.ToolTimeout,
		Logger:  logger,
		Metrics: h.metrics,
	})
	engine := conversation.NewEngine(conversation.EngineConfig{
		Session:      sess,
		Machine:      machine,
		Consent:      consent.NewManager(),
		Extractor:    signals.NewExtractor(),
		Orchestrator: orch,
		Events:       h.events,
		Logger:       logger,
	})

	say := func(line string) {
		if line == "" {
			return
		}
		cost.RecordTTSUsage(meter, len(line))
		if err := c.send(OutboundFrame{Type: FrameSay, Text: line}); err != nil {
			logger.Warn("failed to write say frame", "error", err)
		}
		h.appendTranscript(ctx, sess.ID, "agent", line)
	}

	guardian := conversation.NewGuardian(conversation.GuardianConfig{
		SilenceTimeout: h.cfg.SilenceTimeout,
		GraceWindow:    h.cfg.SilenceGraceWindow,
		MaxDuration:    h.cfg.MaxSessionDuration,
		MaxCostUSD:     h.cfg.MaxSessionCostUSD,
		TickInterval:   h.cfg.GuardianTickInterval,
	}, sess, machine, meter, say, logger, h.events)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		guardian.Run(ctx)
		// A guardian termination must not wait for the next inbound frame:
		// tell the pipeline the call is over and close the socket so the
		// read loop unblocks.
		if sess.Terminated() {
			c.sendEnded(string(sess.TerminationReason()))
			_ = c.ws.Close()
		}
	}()

	// Opening prompt: consent before anything else.
	if err := c.send(OutboundFrame{Type: FrameSession, SessionID: sess.ID}); err != nil {
		logger.Warn("failed to write session frame", "error", err)
	}
	say(conversation.OpeningPrompt)
	h.mirrorState(ctx, sess, machine)

	for {
		var frame InboundFrame
		if err := c.ws.ReadJSON(&frame); err != nil {
			if !sess.Terminated() {
				logger.Warn("upstream connection lost", "error", err)
				machine.ForceTerminate(ctx, session.ReasonDisconnect)
			}
			break
		}

		switch frame.Type {
		case FrameUtterance:
			if !frame.IsFinal || frame.Text == "" {
				continue
			}
			h.appendTranscript(ctx, sess.ID, "user", frame.Text)
			for _, reply := range engine.OnUtterance(ctx, frame.Text) {
				say(reply.Text)
			}
			h.mirrorState(ctx, sess, machine)
		case FrameHangup:
			engine.Close(ctx)
		default:
			logger.Warn("unknown frame type", "type", frame.Type)
		}

		if sess.Terminated() {
			c.sendEnded(string(sess.TerminationReason()))
			break
		}
	}

	// Cancel the guardian and drain in-flight work before exporting.
	cancel()
	wg.Wait()
	h.teardown(sess, machine, meter, logger)
}

func (h *Handler) teardown(sess *session.Session, machine *conversation.Machine, meter *cost.Meter, logger *logging.Logger) {
	// Export runs on a fresh context: the call context is already cancelled
	// and a slow sink must not hold the connection teardown hostage.
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if !sess.Terminated() {
		machine.ForceTerminate(ctx, session.ReasonDisconnect)
	}
	h.metrics.ObserveSessionCost(sess.Tier(), meter.Total())
	h.mirrorState(ctx, sess, machine)
	if h.store != nil {
		if err := h.store.MarkEnded(ctx, sess.ID, sess.TerminationReason()); err != nil {
			logger.Warn("failed to mark call ended", "error", err)
		}
	}

	if h.exporter == nil {
		return
	}
	started := time.Now()
	summary := export.BuildSummary(sess, meter, time.Now().UTC())
	err := h.exporter.Export(ctx, summary)
	h.events.ExportCompleted(ctx, sess.ID, err == nil, time.Since(started).Milliseconds())
	logger.Info("call torn down",
		"reason", string(sess.TerminationReason()),
		"turns", sess.TurnCount(),
		"total_cost_usd", meter.Total(),
	)
}

func (h *Handler) appendTranscript(ctx context.Context, sessionID, role, text string) {
	if h.store == nil {
		return
	}
	entry := session.TranscriptEntry{Role: role, Text: text, Timestamp: time.Now().UTC()}
	if err := h.store.AppendTranscript(ctx, sessionID, entry); err != nil {
		h.logger.Warn("failed to append transcript", "session_id", sessionID, "error", err)
	}
}

func (h *Handler) mirrorState(ctx context.Context, sess *session.Session, machine *conversation.Machine) {
	if h.store == nil {
		return
	}
	status := session.CallStatusActive
	if sess.Terminated() {
		status = session.CallStatusEnded
	}
	state := &session.CallState{
		SessionID:         sess.ID,
		Status:            status,
		Phase:             string(machine.CurrentPhase()),
		Tier:              sess.Tier(),
		TurnCount:         sess.TurnCount(),
		StartedAt:         sess.StartedAt,
		LastActivityAt:    sess.LastActivity(),
		TerminationReason: string(sess.TerminationReason()),
	}
	if err := h.store.SaveCallState(ctx, state); err != nil {
		h.logger.Warn("failed to mirror call state", "session_id", sess.ID, "error", err)
	}
}
