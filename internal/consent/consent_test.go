package consent

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		utterance string
		want      Decision
	}{
		{"plain yes", "Yes", DecisionGranted},
		{"yeah", "yeah that works", DecisionGranted},
		{"sure", "Sure!", DecisionGranted},
		{"go ahead", "go ahead", DecisionGranted},
		{"thats fine", "that's fine with me", DecisionGranted},
		{"yep", "yep", DecisionGranted},
		{"okay", "okay", DecisionGranted},
		{"plain no", "No", DecisionDeclined},
		{"not really", "not really", DecisionDeclined},
		{"rather not", "I'd rather not", DecisionDeclined},
		{"skip", "can we skip that?", DecisionDeclined},
		{"negated affirmative", "no, go ahead and skip it", DecisionDeclined},
		{"unrelated", "how much does it cost?", DecisionUnclear},
		{"empty", "", DecisionUnclear},
		{"whitespace", "   ", DecisionUnclear},
		// "nothing" contains "no" as a substring but is not a decline.
		{"substring guard", "nothing in particular", DecisionUnclear},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.utterance); got != tt.want {
				t.Errorf("Classify(%q) = %q, want %q", tt.utterance, got, tt.want)
			}
		})
	}
}

func TestManagerGrantFlow(t *testing.T) {
	m := NewManager()

	out := m.RecordResponse("yeah, sure")
	if out.Decision != DecisionGranted || !out.Final {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if !m.Granted() {
		t.Error("manager should report granted")
	}
	if m.DecidedAt().IsZero() {
		t.Error("grant should record an audit timestamp")
	}
}

func TestManagerDeclineFlow(t *testing.T) {
	m := NewManager()

	out := m.RecordResponse("no, I'd rather not")
	if out.Decision != DecisionDeclined || !out.Final {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if out.Say != DeclineMessage {
		t.Error("decline should speak the hand-off message")
	}
	if m.Granted() {
		t.Error("declined session must not report granted")
	}
}

func TestManagerSingleReask(t *testing.T) {
	m := NewManager()

	first := m.RecordResponse("what do you mean?")
	if first.Decision != DecisionUnclear || first.Final {
		t.Fatalf("first unclear response should re-ask, got %+v", first)
	}
	if first.Say != ReaskPrompt {
		t.Errorf("expected re-ask prompt, got %q", first.Say)
	}

	second := m.RecordResponse("umm, I guess, maybe?")
	if second.Decision != DecisionDeclined || !second.Final {
		t.Fatalf("second unclear response should decline, got %+v", second)
	}
	if !m.Decided() {
		t.Error("exchange should be concluded")
	}
}

func TestManagerReaskCanStillGrant(t *testing.T) {
	m := NewManager()

	m.RecordResponse("huh?")
	out := m.RecordResponse("oh, yes, that's fine")
	if out.Decision != DecisionGranted || !out.Final {
		t.Fatalf("expected grant after re-ask, got %+v", out)
	}
}

func TestManagerDecisionIsSticky(t *testing.T) {
	m := NewManager()
	m.RecordResponse("no")

	out := m.RecordResponse("yes actually")
	if out.Decision != DecisionDeclined {
		t.Errorf("decision should not flip after conclusion, got %+v", out)
	}
}
