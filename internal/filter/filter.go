package filter

import (
	"context"

	"github.com/af-corp/chat-gateway/internal/types"
)

// Action is a filter's verdict on a chat turn.
type Action string

const (
	ActionPass  Action = "pass"
	ActionFlag  Action = "flag"
	ActionBlock Action = "block"
)

// Result is one filter's verdict.
type Result struct {
	Action     Action
	FilterName string
	Message    string
	Detections int
	Score      float64
	// Forbidden marks a block that is an access decision about the caller
	// rather than a finding in the content.
	Forbidden bool
}

// Filter inspects a chat turn before it is sent upstream.
type Filter interface {
	Name() string
	Enabled() bool
	ScanRequest(ctx context.Context, req *types.ChatTurnRequest) Result
}

// Report collects the verdicts of one chain run.
type Report struct {
	Results []Result
	// Blocked is the verdict that stopped the chain, if any.
	Blocked *Result
}

// Flagged returns the verdicts that let the turn through with a flag.
func (r Report) Flagged() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Action == ActionFlag {
			out = append(out, res)
		}
	}
	return out
}

// Chain runs filters in order and stops at the first block.
type Chain struct {
	filters []Filter
}

func NewChain(filters ...Filter) *Chain {
	return &Chain{filters: filters}
}

// Run applies every enabled filter to req. Disabled filters are skipped
// without a result.
func (c *Chain) Run(ctx context.Context, req *types.ChatTurnRequest) Report {
	var rep Report
	for _, f := range c.filters {
		if !f.Enabled() {
			continue
		}
		res := f.ScanRequest(ctx, req)
		rep.Results = append(rep.Results, res)
		if res.Action == ActionBlock {
			rep.Blocked = &rep.Results[len(rep.Results)-1]
			break
		}
	}
	return rep
}
