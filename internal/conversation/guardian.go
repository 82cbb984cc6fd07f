package conversation

import (
	"context"
	"fmt"
	"time"

	"github.com/voicelane/callcore/internal/cost"
	"github.com/voicelane/callcore/internal/session"
	"github.com/voicelane/callcore/pkg/logging"
)

// Guardian spoken lines.
const (
	SilenceWarning = "Hello? Are you still there? I'll disconnect in a few seconds if I don't hear from you."
	SilenceGoodbye = "I'm disconnecting now due to inactivity. Feel free to call back anytime!"
	CostGoodbye    = "We've reached the session limit. Please call back to continue!"
)

// TimeGoodbye builds the time-limit goodbye for the configured cap.
func TimeGoodbye(maxDuration time.Duration) string {
	return fmt.Sprintf("We've reached our %d minute session limit. Please call back if you need more help!",
		int(maxDuration.Minutes()))
}

// GuardianConfig holds the guardrail limits.
type GuardianConfig struct {
	SilenceTimeout time.Duration
	// GraceWindow is how long after the silence warning the caller gets to
	// respond before the call ends.
	GraceWindow  time.Duration
	MaxDuration  time.Duration
	MaxCostUSD   float64
	TickInterval time.Duration
}

// Guardian is the per-session watchdog. It runs as its own goroutine for the
// lifetime of the call and enforces, in order: silence, duration, cost.
// Every termination goes through the state machine's ForceTerminate, so the
// warning and each termination reason are spoken at most once per session.
type Guardian struct {
	cfg     GuardianConfig
	sess    *session.Session
	machine *Machine
	meter   *cost.Meter
	say     func(string)
	logger  *logging.Logger
	events  *EventLogger
	now     func() time.Time

	warned   bool
	warnedAt time.Time
}

// NewGuardian wires a guardian for one session. say is invoked with each
// line the guardian wants spoken; it must not block.
func NewGuardian(cfg GuardianConfig, sess *session.Session, machine *Machine, meter *cost.Meter, say func(string), logger *logging.Logger, events *EventLogger) *Guardian {
	if sess == nil || machine == nil || meter == nil {
		panic("conversation: guardian requires session, machine, and meter")
	}
	if say == nil {
		say = func(string) {}
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 30 * time.Second
	}
	return &Guardian{
		cfg:     cfg,
		sess:    sess,
		machine: machine,
		meter:   meter,
		say:     say,
		logger:  logger,
		events:  events,
		now:     time.Now,
	}
}

// Run checks limits on every tick until the context is cancelled or the
// session terminates. Cancel the context unconditionally at session end.
func (g *Guardian) Run(ctx context.Context) {
	ticker := time.NewTicker(g.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if g.check(ctx) {
				return
			}
		}
	}
}

// check runs one guardrail evaluation, returning true when the session is
// over and the guardian should stop.
func (g *Guardian) check(ctx context.Context) bool {
	if g.sess.Terminated() {
		return true
	}
	now := g.now()

	if g.cfg.SilenceTimeout > 0 {
		if g.warned && g.sess.LastActivity().After(g.warnedAt) {
			// Caller came back after the warning; re-arm for the next episode.
			g.warned = false
		}
		silent := now.Sub(g.sess.LastActivity())
		if silent >= g.cfg.SilenceTimeout {
			if !g.warned {
				g.warned = true
				g.warnedAt = now
				g.say(SilenceWarning)
				g.events.GuardianWarning(ctx, g.sess.ID, "silence")
				g.logger.Warn("silence warning issued",
					"session_id", g.sess.ID, "silent_for", silent.String())
			} else if g.sess.LastActivity().Before(g.warnedAt) && now.Sub(g.warnedAt) >= g.cfg.GraceWindow {
				g.terminate(ctx, session.ReasonSilenceTimeout, SilenceGoodbye)
				return true
			}
		}
	}

	if g.cfg.MaxDuration > 0 && now.Sub(g.sess.StartedAt) > g.cfg.MaxDuration {
		g.terminate(ctx, session.ReasonTimeLimit, TimeGoodbye(g.cfg.MaxDuration))
		return true
	}

	if g.cfg.MaxCostUSD > 0 && g.meter.Exceeds(g.cfg.MaxCostUSD) {
		g.terminate(ctx, session.ReasonCostLimit, CostGoodbye)
		return true
	}

	return false
}

func (g *Guardian) terminate(ctx context.Context, reason session.TerminationReason, goodbye string) {
	if g.machine.ForceTerminate(ctx, reason) {
		g.say(goodbye)
		g.logger.Warn("guardian terminated session",
			"session_id", g.sess.ID, "reason", string(reason),
			"total_cost_usd", g.meter.Total())
	}
}
