package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/voicelane/callcore/internal/cost"
	"github.com/voicelane/callcore/internal/session"
)

type spokenLines struct {
	lines []string
}

func (s *spokenLines) say(line string) {
	s.lines = append(s.lines, line)
}

func (s *spokenLines) contains(line string) bool {
	for _, l := range s.lines {
		if l == line {
			return true
		}
	}
	return false
}

func (s *spokenLines) count(line string) int {
	n := 0
	for _, l := range s.lines {
		if l == line {
			n++
		}
	}
	return n
}

func guardianFixture(t *testing.T, cfg GuardianConfig) (*Guardian, *session.Session, *cost.Meter, *spokenLines, *time.Time) {
	t.Helper()
	sess := session.NewWithID("sess_guardian")
	machine := NewMachine(sess, nil, nil, nil)
	meter := cost.NewMeter()
	spoken := &spokenLines{}
	g := NewGuardian(cfg, sess, machine, meter, spoken.say, nil, nil)

	clock := sess.StartedAt
	g.now = func() time.Time { return clock }
	return g, sess, meter, spoken, &clock
}

func TestGuardianSilenceWarnsThenTerminates(t *testing.T) {
	g, sess, _, spoken, clock := guardianFixture(t, GuardianConfig{
		SilenceTimeout: 30 * time.Second,
		GraceWindow:    10 * time.Second,
		MaxDuration:    30 * time.Minute,
		MaxCostUSD:     5,
	})
	ctx := context.Background()

	// 35s of silence: warning, no termination yet.
	*clock = sess.StartedAt.Add(35 * time.Second)
	if done := g.check(ctx); done {
		t.Fatal("warning tick should not end the session")
	}
	if !spoken.contains(SilenceWarning) {
		t.Fatalf("expected silence warning, spoke %v", spoken.lines)
	}
	if sess.Terminated() {
		t.Fatal("session terminated too early")
	}

	// Grace window elapses with continued silence: terminate.
	*clock = sess.StartedAt.Add(46 * time.Second)
	if done := g.check(ctx); !done {
		t.Fatal("expected termination after the grace window")
	}
	if sess.TerminationReason() != session.ReasonSilenceTimeout {
		t.Errorf("reason = %s, want silence_timeout", sess.TerminationReason())
	}
	if !spoken.contains(SilenceGoodbye) {
		t.Errorf("expected inactivity goodbye, spoke %v", spoken.lines)
	}
}

func TestGuardianWarningIsSpokenOnce(t *testing.T) {
	g, sess, _, spoken, clock := guardianFixture(t, GuardianConfig{
		SilenceTimeout: 30 * time.Second,
		GraceWindow:    30 * time.Second,
	})
	ctx := context.Background()

	for _, offset := range []time.Duration{31, 35, 40, 45} {
		*clock = sess.StartedAt.Add(offset * time.Second)
		g.check(ctx)
	}
	if n := spoken.count(SilenceWarning); n != 1 {
		t.Errorf("warning spoken %d times, want 1", n)
	}
}

func TestGuardianSilenceResetOnActivity(t *testing.T) {
	g, sess, _, spoken, clock := guardianFixture(t, GuardianConfig{
		SilenceTimeout: 30 * time.Second,
		GraceWindow:    10 * time.Second,
	})
	ctx := context.Background()

	*clock = sess.StartedAt.Add(35 * time.Second)
	g.check(ctx)
	if !spoken.contains(SilenceWarning) {
		t.Fatal("expected warning")
	}

	// Caller speaks during the grace window.
	sess.MarkActivity(sess.StartedAt.Add(40 * time.Second))

	*clock = sess.StartedAt.Add(50 * time.Second)
	if done := g.check(ctx); done {
		t.Fatal("activity during grace window should keep the session alive")
	}
	if sess.Terminated() {
		t.Error("session should not be terminated")
	}
}

func TestGuardianSecondSilenceEpisodeTerminates(t *testing.T) {
	g, sess, _, spoken, clock := guardianFixture(t, GuardianConfig{
		SilenceTimeout: 30 * time.Second,
		GraceWindow:    10 * time.Second,
	})
	ctx := context.Background()

	// First episode: warn, then the caller comes back.
	*clock = sess.StartedAt.Add(35 * time.Second)
	g.check(ctx)
	sess.MarkActivity(sess.StartedAt.Add(40 * time.Second))
	*clock = sess.StartedAt.Add(50 * time.Second)
	if done := g.check(ctx); done {
		t.Fatal("recovered episode should keep the session alive")
	}

	// Second episode: the caller goes quiet again. The guardian must re-warn
	// and, after the grace window, terminate.
	*clock = sess.StartedAt.Add(75 * time.Second)
	if done := g.check(ctx); done {
		t.Fatal("second warning tick should not end the session")
	}
	if n := spoken.count(SilenceWarning); n != 2 {
		t.Fatalf("warning spoken %d times across two episodes, want 2", n)
	}

	*clock = sess.StartedAt.Add(90 * time.Second)
	if done := g.check(ctx); !done {
		t.Fatal("expected termination after the second grace window")
	}
	if sess.TerminationReason() != session.ReasonSilenceTimeout {
		t.Errorf("reason = %s, want silence_timeout", sess.TerminationReason())
	}
	if !spoken.contains(SilenceGoodbye) {
		t.Errorf("expected inactivity goodbye, spoke %v", spoken.lines)
	}
}

func TestGuardianTimeLimit(t *testing.T) {
	g, sess, _, spoken, clock := guardianFixture(t, GuardianConfig{
		MaxDuration: 30 * time.Minute,
	})
	ctx := context.Background()

	// Keep the caller chatty so silence never fires.
	*clock = sess.StartedAt.Add(31 * time.Minute)
	sess.MarkActivity(*clock)

	if done := g.check(ctx); !done {
		t.Fatal("expected time-limit termination")
	}
	if sess.TerminationReason() != session.ReasonTimeLimit {
		t.Errorf("reason = %s, want time_limit", sess.TerminationReason())
	}
	if !spoken.contains(TimeGoodbye(30 * time.Minute)) {
		t.Errorf("expected time-limit goodbye, spoke %v", spoken.lines)
	}
}

func TestGuardianCostLimit(t *testing.T) {
	g, sess, meter, spoken, clock := guardianFixture(t, GuardianConfig{
		SilenceTimeout: time.Hour,
		MaxDuration:    time.Hour,
		MaxCostUSD:     5,
	})
	ctx := context.Background()

	meter.RecordUsage("openai", cost.UnitTokens, 5200, 0.001)

	*clock = sess.StartedAt.Add(time.Minute)
	sess.MarkActivity(*clock)

	if done := g.check(ctx); !done {
		t.Fatal("expected cost-limit termination")
	}
	if sess.TerminationReason() != session.ReasonCostLimit {
		t.Errorf("reason = %s, want cost_limit", sess.TerminationReason())
	}
	if !spoken.contains(CostGoodbye) {
		t.Errorf("expected cost goodbye, spoke %v", spoken.lines)
	}
}

func TestGuardianTerminationIsIdempotent(t *testing.T) {
	g, sess, meter, spoken, clock := guardianFixture(t, GuardianConfig{
		MaxCostUSD: 1,
	})
	ctx := context.Background()

	meter.RecordUsage("openai", cost.UnitTokens, 2000, 0.001)
	*clock = sess.StartedAt.Add(time.Minute)
	sess.MarkActivity(*clock)

	g.check(ctx)
	g.check(ctx)
	g.check(ctx)

	if n := spoken.count(CostGoodbye); n != 1 {
		t.Errorf("cost goodbye spoken %d times, want 1", n)
	}
	if sess.TerminationReason() != session.ReasonCostLimit {
		t.Errorf("reason = %s", sess.TerminationReason())
	}
}

func TestGuardianStopsAfterExternalTermination(t *testing.T) {
	g, sess, _, _, _ := guardianFixture(t, GuardianConfig{
		SilenceTimeout: time.Second,
		GraceWindow:    time.Second,
	})

	sess.Terminate(session.ReasonNaturalClose)
	if done := g.check(context.Background()); !done {
		t.Error("guardian should stop once the session is terminated elsewhere")
	}
}
