package metrics

import (
	"sync"
	"time"
)

// Usage is the aggregated LLM consumption for one run.
type Usage struct {
	Requests         int64         `json:"requests"`
	Failures         int64         `json:"failures"`
	PromptTokens     int64         `json:"prompt_tokens"`
	CompletionTokens int64         `json:"completion_tokens"`
	CostUSD          float64       `json:"cost_usd"`
	LLMTime          time.Duration `json:"llm_time_ns"`
}

// TotalTokens is prompt plus completion tokens.
func (u Usage) TotalTokens() int64 {
	return u.PromptTokens + u.CompletionTokens
}

// UsageTracker aggregates requests in memory so the final report can show
// token and cost totals without a Prometheus server.
type UsageTracker struct {
	mu          sync.Mutex
	total       Usage
	byOperation map[string]*Usage
}

func NewUsageTracker() *UsageTracker {
	return &UsageTracker{byOperation: make(map[string]*Usage)}
}

func (u *UsageTracker) ObserveRequest(
	_, operation string,
	promptTokens, completionTokens int,
	cost float64,
	success bool,
	_ string,
	duration time.Duration,
) {
	u.mu.Lock()
	defer u.mu.Unlock()

	op := u.byOperation[operation]
	if op == nil {
		op = &Usage{}
		u.byOperation[operation] = op
	}
	for _, agg := range []*Usage{&u.total, op} {
		agg.Requests++
		agg.LLMTime += duration
		if !success {
			agg.Failures++
			continue
		}
		agg.PromptTokens += int64(promptTokens)
		agg.CompletionTokens += int64(completionTokens)
		agg.CostUSD += cost
	}
}

// Total returns a copy of the run totals.
func (u *UsageTracker) Total() Usage {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.total
}

// ByOperation returns a copy of the per-operation totals.
func (u *UsageTracker) ByOperation() map[string]Usage {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make(map[string]Usage, len(u.byOperation))
	for k, v := range u.byOperation {
		out[k] = *v
	}
	return out
}
