// Package signals extracts qualification-relevant facts from caller
// utterances and classifies the accumulated evidence into a lead tier.
//
// Detection is deliberately lightweight: regex and keyword tables, no NLP.
// Numeric signals require a literal number, so "about fifty people" does not
// match. That precision/recall trade-off is accepted; heavier analysis
// belongs in the analytics pipeline, not on the live call path.
package signals

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/voicelane/callcore/internal/session"
)

// Signal names.
const (
	SignalTeamSize        = "team_size"
	SignalMonthlyVolume   = "monthly_volume"
	SignalIntegration     = "integration_needs"
	SignalUrgency         = "urgency"
	SignalIndustry        = "industry"
	SignalBudgetAuthority = "budget_authority"
)

// ---------- package-level compiled regexes ----------

var (
	teamSizeREs = []*regexp.Regexp{
		regexp.MustCompile(`\b(\d+)\s*(?:people|users|team|employees|members)\b`),
		regexp.MustCompile(`\bteam\s+of\s+(\d+)\b`),
		regexp.MustCompile(`\b(\d+)\s+person\s+team\b`),
	}
	volumeREs = []*regexp.Regexp{
		regexp.MustCompile(`\b(\d+)\s*(?:documents?|docs?|contracts?|proposals?)\s*(?:per|a|every)?\s*(?:month|week|day)\b`),
		regexp.MustCompile(`\b(?:send|create|process)\s*about\s*(\d+)\b`),
	}
)

// integrationKeywords are matched as substrings of the lowercased utterance.
var integrationKeywords = []string{
	"salesforce",
	"hubspot",
	"zapier",
	"api",
	"crm",
	"embedded",
	"webhook",
}

// urgencyKeywords map urgency levels to trigger phrases, checked high first.
var urgencyKeywords = []struct {
	level    string
	keywords []string
}{
	{"high", []string{"urgent", "asap", "immediately", "this week", "right away"}},
	{"medium", []string{"soon", "this month", "next week"}},
	{"low", []string{"eventually", "sometime", "future", "down the road"}},
}

var industryKeywords = []string{"healthcare", "legal", "real estate", "finance", "sales", "hr"}

var budgetAuthorityKeywords = []struct {
	value    string
	keywords []string
}{
	{"decision_maker", []string{"i decide", "i'm the owner", "i am the owner", "my decision", "i sign off", "i'm the founder", "i am the founder", "it's my call", "its my call"}},
	{"needs_approval", []string{"my boss", "need approval", "have to ask", "run it by", "my manager"}},
}

// Extractor scans utterances against the fixed rule tables. It is stateless;
// findings accumulate in the session's signal store.
type Extractor struct{}

// NewExtractor returns an extractor over the package rule tables.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract returns every signal found in the utterance. The utterance index
// ties each finding back to the transcript for audit.
func (e *Extractor) Extract(utterance string, utteranceIndex int) []session.Signal {
	text := strings.ToLower(utterance)
	now := time.Now().UTC()
	var found []session.Signal

	appendSignal := func(name, value string, conf session.Confidence) {
		found = append(found, session.Signal{
			Name:           name,
			Value:          value,
			Confidence:     conf,
			UtteranceIndex: utteranceIndex,
			ExtractedAt:    now,
		})
	}

	for _, re := range teamSizeREs {
		if m := re.FindStringSubmatch(text); m != nil {
			appendSignal(SignalTeamSize, m[1], session.ConfidenceHigh)
			break
		}
	}

	for _, re := range volumeREs {
		if m := re.FindStringSubmatch(text); m != nil {
			volume, _ := strconv.Atoi(m[1])
			// Normalize to a monthly figure: ~4 weeks, ~20 business days.
			if strings.Contains(text, "week") {
				volume *= 4
			} else if strings.Contains(text, "day") {
				volume *= 20
			}
			appendSignal(SignalMonthlyVolume, strconv.Itoa(volume), session.ConfidenceHigh)
			break
		}
	}

	for _, keyword := range integrationKeywords {
		if containsWord(text, keyword) {
			appendSignal(SignalIntegration, keyword, session.ConfidenceMedium)
		}
	}

	for _, tier := range urgencyKeywords {
		matched := false
		for _, keyword := range tier.keywords {
			if strings.Contains(text, keyword) {
				appendSignal(SignalUrgency, tier.level, session.ConfidenceMedium)
				matched = true
				break
			}
		}
		if matched {
			break
		}
	}

	for _, industry := range industryKeywords {
		if containsWord(text, industry) {
			appendSignal(SignalIndustry, industry, session.ConfidenceLow)
			break
		}
	}

	for _, authority := range budgetAuthorityKeywords {
		matched := false
		for _, keyword := range authority.keywords {
			if strings.Contains(text, keyword) {
				appendSignal(SignalBudgetAuthority, authority.value, session.ConfidenceLow)
				matched = true
				break
			}
		}
		if matched {
			break
		}
	}

	return found
}

// containsWord reports whether keyword appears in text on word boundaries.
// Plain substring matching would turn "therapist" into an "api" hit.
func containsWord(text, keyword string) bool {
	idx := 0
	for {
		i := strings.Index(text[idx:], keyword)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(keyword)
		beforeOK := start == 0 || !isWordChar(text[start-1])
		afterOK := end == len(text) || !isWordChar(text[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= '0' && c <= '9'
}
