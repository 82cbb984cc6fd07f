package cost

// Provider unit prices in USD, current as of early 2026. Update periodically.
const (
	// OpenAI gpt-4.1-mini, per token.
	PriceLLMInputToken  = 0.000150 / 1000 // $0.150 per 1M input tokens
	PriceLLMOutputToken = 0.000600 / 1000 // $0.600 per 1M output tokens

	// Deepgram Nova 2 STT, per second of audio.
	PriceSTTSecond = 0.0043 / 60 // $0.0043 per minute

	// ElevenLabs Turbo TTS, per character.
	PriceTTSCharacter = 0.18 / 1000 / 1000 // $0.18 per 1K characters, quoted per char
)

// Billing units.
const (
	UnitTokens     = "tokens"
	UnitSeconds    = "seconds"
	UnitCharacters = "characters"
)

// Well-known providers on the voice path.
const (
	ProviderLLM = "openai"
	ProviderSTT = "deepgram"
	ProviderTTS = "elevenlabs"
)

// RecordLLMUsage books one LLM completion: prompt and completion tokens at
// their respective prices.
func RecordLLMUsage(m *Meter, promptTokens, completionTokens int) {
	m.RecordUsage(ProviderLLM, UnitTokens, float64(promptTokens), PriceLLMInputToken)
	m.RecordUsage(ProviderLLM, UnitTokens, float64(completionTokens), PriceLLMOutputToken)
}

// RecordSTTUsage books transcribed audio by duration.
func RecordSTTUsage(m *Meter, audioSeconds float64) {
	m.RecordUsage(ProviderSTT, UnitSeconds, audioSeconds, PriceSTTSecond)
}

// RecordTTSUsage books synthesized speech by character count.
func RecordTTSUsage(m *Meter, characters int) {
	m.RecordUsage(ProviderTTS, UnitCharacters, float64(characters), PriceTTSCharacter)
}
