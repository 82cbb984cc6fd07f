// Package resilience wraps calls to external providers with circuit breakers
// and bounded retry, so one misbehaving provider degrades only its own tools.
package resilience

import (
	"sync"
	"time"
)

// BreakerState is the lifecycle of one provider's circuit breaker.
type BreakerState string

const (
	StateClosed   BreakerState = "closed"
	StateOpen     BreakerState = "open"
	StateHalfOpen BreakerState = "half_open"
)

// BreakerConfig holds the tunables shared by every breaker in a registry.
type BreakerConfig struct {
	// FailureThreshold is the consecutive-failure count that opens a breaker.
	FailureThreshold int
	// Cooldown is how long an open breaker rejects calls before allowing a
	// trial.
	Cooldown time.Duration
	// HalfOpenTrialLimit caps concurrent trial calls while half-open. Keep it
	// at 1: letting a burst of trials through re-opens the breaker in a herd.
	HalfOpenTrialLimit int
}

// DefaultBreakerConfig mirrors the production defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold:   3,
		Cooldown:           60 * time.Second,
		HalfOpenTrialLimit: 1,
	}
}

type breaker struct {
	state          BreakerState
	failures       int
	lastFailure    time.Time
	trialsInFlight int
}

// Registry tracks one breaker per provider. Breakers are independent: a
// knowledge-search outage never blocks meeting-booking calls.
type Registry struct {
	cfg BreakerConfig
	now func() time.Time

	mu       sync.Mutex
	breakers map[string]*breaker
}

// NewRegistry creates a registry with the given config.
func NewRegistry(cfg BreakerConfig) *Registry {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 60 * time.Second
	}
	if cfg.HalfOpenTrialLimit <= 0 {
		cfg.HalfOpenTrialLimit = 1
	}
	return &Registry{
		cfg:      cfg,
		now:      time.Now,
		breakers: make(map[string]*breaker),
	}
}

func (r *Registry) get(provider string) *breaker {
	b, ok := r.breakers[provider]
	if !ok {
		b = &breaker{state: StateClosed}
		r.breakers[provider] = b
	}
	return b
}

// Allow reports whether a call to provider may proceed. Checked before every
// dispatch. When an open breaker's cooldown has elapsed, the breaker moves to
// half-open and admits up to HalfOpenTrialLimit trial calls.
func (r *Registry) Allow(provider string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	b := r.get(provider)
	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if r.now().Sub(b.lastFailure) < r.cfg.Cooldown {
			return false
		}
		b.state = StateHalfOpen
		b.trialsInFlight = 0
		fallthrough
	case StateHalfOpen:
		if b.trialsInFlight >= r.cfg.HalfOpenTrialLimit {
			return false
		}
		b.trialsInFlight++
		return true
	default:
		return false
	}
}

// RecordSuccess resets the consecutive-failure count and closes a half-open
// breaker.
func (r *Registry) RecordSuccess(provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b := r.get(provider)
	b.failures = 0
	b.trialsInFlight = 0
	b.state = StateClosed
}

// RecordFailure counts one failure. A closed breaker opens at the threshold;
// a half-open breaker re-opens immediately.
func (r *Registry) RecordFailure(provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b := r.get(provider)
	b.failures++
	b.lastFailure = r.now()
	b.trialsInFlight = 0

	switch b.state {
	case StateHalfOpen:
		b.state = StateOpen
	case StateClosed:
		if b.failures >= r.cfg.FailureThreshold {
			b.state = StateOpen
		}
	}
}

// State returns the provider's current breaker state, for metrics and the
// export summary.
func (r *Registry) State(provider string) BreakerState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.get(provider).state
}

// States snapshots every provider's breaker state.
func (r *Registry) States() map[string]BreakerState {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]BreakerState, len(r.breakers))
	for provider, b := range r.breakers {
		out[provider] = b.state
	}
	return out
}
