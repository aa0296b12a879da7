package shared

import "time"

// TokenUsage counts the tokens one provider call consumed.
type TokenUsage struct {
	PromptTokens     int    `json:"promptTokens"`
	CompletionTokens int    `json:"completionTokens"`
	TotalTokens      int    `json:"totalTokens"`
	Model            string `json:"model,omitempty"`
}

// Total is the provider-reported total, or prompt plus completion when the
// provider left it out.
func (u TokenUsage) Total() int {
	if u.TotalTokens > 0 {
		return u.TotalTokens
	}
	return u.PromptTokens + u.CompletionTokens
}

// AgentMeta describes one generation run, whether the AI answered or the
// fallback did.
type AgentMeta struct {
	AgentName string
	Usage     TokenUsage
	Latency   time.Duration
	Fallback  bool
	// FallbackReason is empty unless Fallback is set.
	FallbackReason string
}
