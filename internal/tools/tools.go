// Package tools executes named tool calls against external providers,
// wrapping each with the provider's circuit breaker, a per-attempt timeout,
// and bounded retry with backoff. Callers only ever see a discriminated
// outcome with a speakable message; internal error strings never reach the
// caller's ear.
package tools

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/voicelane/callcore/internal/cost"
)

// Usage reports the billable consumption of one provider call.
type Usage struct {
	Unit      string
	Quantity  float64
	UnitPrice float64
}

// Response is a successful provider result.
type Response struct {
	Payload string
	Usage   *Usage
}

// Handler performs the actual provider call. It must respect ctx; the
// orchestrator bounds every attempt with a timeout.
type Handler func(ctx context.Context, params map[string]any) (*Response, error)

// RecoverableError marks a failure worth retrying: transient provider fault,
// flaky network, overload.
type RecoverableError struct {
	Err error
}

func (e *RecoverableError) Error() string { return "tools: recoverable: " + e.Err.Error() }
func (e *RecoverableError) Unwrap() error { return e.Err }

// FatalError marks a failure retry cannot fix, such as a malformed request.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return "tools: fatal: " + e.Err.Error() }
func (e *FatalError) Unwrap() error { return e.Err }

// Recoverable wraps err as retryable.
func Recoverable(err error) error { return &RecoverableError{Err: err} }

// Fatal wraps err as non-retryable.
func Fatal(err error) error { return &FatalError{Err: err} }

func isFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

// Tool binds a name to a provider and its handler.
type Tool struct {
	// Name is the dispatch key used by the conversation engine.
	Name string
	// Provider names the upstream system, keyed into the breaker registry
	// and the cost breakdown.
	Provider string
	// Handler performs the call.
	Handler Handler
	// Fallback is spoken when the breaker short-circuits the call.
	Fallback string
}

// Registry holds the fixed tool set for the process. It is populated once at
// startup and validated then, so an unknown tool name is a wiring bug caught
// before the first call, not mid-conversation.
type Registry struct {
	tools map[string]Tool
}

// NewRegistry validates and indexes the given tools.
func NewRegistry(toolset ...Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]Tool, len(toolset))}
	for _, tool := range toolset {
		if tool.Name == "" {
			return nil, fmt.Errorf("tools: tool with empty name")
		}
		if tool.Provider == "" {
			return nil, fmt.Errorf("tools: tool %q has no provider", tool.Name)
		}
		if tool.Handler == nil {
			return nil, fmt.Errorf("tools: tool %q has no handler", tool.Name)
		}
		if tool.Fallback == "" {
			return nil, fmt.Errorf("tools: tool %q has no fallback message", tool.Name)
		}
		if _, dup := r.tools[tool.Name]; dup {
			return nil, fmt.Errorf("tools: duplicate tool %q", tool.Name)
		}
		r.tools[tool.Name] = tool
	}
	return r, nil
}

// Get looks up a tool by name.
func (r *Registry) Get(name string) (Tool, error) {
	tool, ok := r.tools[name]
	if !ok {
		return Tool{}, fmt.Errorf("tools: unknown tool %q", name)
	}
	return tool, nil
}

// Names lists the registered tool names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}

// Spoken error responses, one picked at random per failure so repeated
// hiccups don't sound robotic.
var (
	toolFailureResponses = []string{
		"Let me try finding that information another way.",
		"I'm having a slight hiccup with that lookup. Give me just a moment.",
		"Let me take a different approach to get that for you.",
	}
	timeoutResponses = []string{
		"That's taking longer than expected. Let me try a quicker approach.",
		"This is running a bit slow. Let me see if there's a faster way.",
		"That query is timing out. Let me try something else.",
	}
	unavailableResponses = []string{
		"That service appears to be temporarily unavailable. Let's continue without it for now.",
		"I can't reach that system right now, but I can still help you with other things.",
		"That integration is having issues at the moment. Let's work around it.",
	}
)

func pick(responses []string) string {
	return responses[rand.Intn(len(responses))]
}

func recordUsage(meter *cost.Meter, provider string, usage *Usage) {
	if meter == nil || usage == nil {
		return
	}
	meter.RecordUsage(provider, usage.Unit, usage.Quantity, usage.UnitPrice)
}
