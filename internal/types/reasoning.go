package types

// ReasoningEffort is the requested thinking budget. OpenAI receives it as
// reasoning.effort, Gemini as generationConfig.thinkingConfig.thinkingLevel.
type ReasoningEffort string

const (
	EffortNone    ReasoningEffort = "none"
	EffortMinimal ReasoningEffort = "minimal"
	EffortLow     ReasoningEffort = "low"
	EffortMedium  ReasoningEffort = "medium"
	EffortHigh    ReasoningEffort = "high"
)

// Level returns a numeric level for comparison. Higher values mean more thinking.
func (e ReasoningEffort) Level() int {
	switch e {
	case EffortNone:
		return 0
	case EffortMinimal:
		return 1
	case EffortLow:
		return 2
	case EffortMedium:
		return 3
	case EffortHigh:
		return 4
	default:
		return -1
	}
}

// ParseReasoningEffort validates an effort value. The empty string is valid
// and means the provider default.
func ParseReasoningEffort(s string) (ReasoningEffort, bool) {
	if s == "" {
		return "", true
	}
	e := ReasoningEffort(s)
	if e.Level() < 0 {
		return "", false
	}
	return e, true
}
