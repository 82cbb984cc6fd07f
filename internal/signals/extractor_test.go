package signals

import (
	"testing"

	"github.com/voicelane/callcore/internal/session"
)

func findSignal(sigs []session.Signal, name string) (session.Signal, bool) {
	for _, s := range sigs {
		if s.Name == name {
			return s, true
		}
	}
	return session.Signal{}, false
}

func TestExtractTeamSize(t *testing.T) {
	tests := []struct {
		name      string
		utterance string
		want      string
		wantMatch bool
	}{
		{"people suffix", "We have 8 people on the team", "8", true},
		{"team of", "we're a team of 12", "12", true},
		{"person team", "it's a 3 person team", "3", true},
		{"users", "about 25 users right now", "25", true},
		// Literal numerals only; spelled-out numbers do not match.
		{"spelled out", "about fifty people", "", false},
		{"no number", "the whole team uses it", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sigs := NewExtractor().Extract(tt.utterance, 1)
			sig, ok := findSignal(sigs, SignalTeamSize)
			if ok != tt.wantMatch {
				t.Fatalf("match = %v, want %v (signals: %+v)", ok, tt.wantMatch, sigs)
			}
			if ok && sig.Value != tt.want {
				t.Errorf("value = %q, want %q", sig.Value, tt.want)
			}
			if ok && sig.Confidence != session.ConfidenceHigh {
				t.Errorf("numeric match should be high confidence, got %q", sig.Confidence)
			}
		})
	}
}

func TestExtractVolumeNormalizesToMonthly(t *testing.T) {
	tests := []struct {
		name      string
		utterance string
		want      string
	}{
		{"monthly", "we send 150 documents per month", "150"},
		{"weekly times four", "around 30 contracts a week", "120"},
		{"daily times twenty", "we process 10 docs per day", "200"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sigs := NewExtractor().Extract(tt.utterance, 1)
			sig, ok := findSignal(sigs, SignalMonthlyVolume)
			if !ok {
				t.Fatalf("expected volume signal, got %+v", sigs)
			}
			if sig.Value != tt.want {
				t.Errorf("value = %q, want %q", sig.Value, tt.want)
			}
		})
	}
}

func TestExtractIntegrations(t *testing.T) {
	sigs := NewExtractor().Extract("we need it to push into Salesforce through your API", 2)

	values := map[string]bool{}
	for _, s := range sigs {
		if s.Name == SignalIntegration {
			values[s.Value] = true
		}
	}
	if !values["salesforce"] || !values["api"] {
		t.Errorf("expected salesforce and api, got %v", values)
	}
}

func TestExtractIntegrationWordBoundary(t *testing.T) {
	sigs := NewExtractor().Extract("our therapist uses it for intake forms", 1)
	if _, ok := findSignal(sigs, SignalIntegration); ok {
		t.Errorf("'therapist' must not match 'api': %+v", sigs)
	}
}

func TestExtractUrgency(t *testing.T) {
	tests := []struct {
		utterance string
		want      string
	}{
		{"we need this ASAP", "high"},
		{"hoping to roll out this week", "high"},
		{"sometime soon would be good", "medium"},
		{"eventually, down the road", "low"},
	}
	for _, tt := range tests {
		sigs := NewExtractor().Extract(tt.utterance, 1)
		sig, ok := findSignal(sigs, SignalUrgency)
		if !ok {
			t.Errorf("Extract(%q): expected urgency signal", tt.utterance)
			continue
		}
		if sig.Value != tt.want {
			t.Errorf("Extract(%q): urgency = %q, want %q", tt.utterance, sig.Value, tt.want)
		}
	}
}

func TestExtractIndustryAndAuthority(t *testing.T) {
	sigs := NewExtractor().Extract("I'm the owner of a healthcare practice", 1)

	industry, ok := findSignal(sigs, SignalIndustry)
	if !ok || industry.Value != "healthcare" {
		t.Errorf("expected healthcare industry, got %+v", sigs)
	}
	authority, ok := findSignal(sigs, SignalBudgetAuthority)
	if !ok || authority.Value != "decision_maker" {
		t.Errorf("expected decision_maker authority, got %+v", sigs)
	}
}

func TestExtractRecordsUtteranceIndex(t *testing.T) {
	sigs := NewExtractor().Extract("team of 7", 42)
	if len(sigs) == 0 || sigs[0].UtteranceIndex != 42 {
		t.Errorf("expected utterance index 42, got %+v", sigs)
	}
}

func TestExtractNothing(t *testing.T) {
	if sigs := NewExtractor().Extract("what's the weather like?", 1); len(sigs) != 0 {
		t.Errorf("expected no signals, got %+v", sigs)
	}
}
