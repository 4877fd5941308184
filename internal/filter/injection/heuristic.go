package injection

import (
	"context"
	"fmt"

	"github.com/af-corp/chat-gateway/internal/config"
	"github.com/af-corp/chat-gateway/internal/filter"
	"github.com/af-corp/chat-gateway/internal/types"
)

// Detection records a matched injection pattern.
type Detection struct {
	RuleName string
	Severity float64
	Category Category
	Start    int
	End      int
}

const categoryBoost = 0.05

// Scanner scans text for prompt injection patterns.
type Scanner struct {
	rules []Rule
	cfg   func() config.InjectionFilterConfig
}

// NewScanner creates a prompt injection scanner.
func NewScanner(cfg func() config.InjectionFilterConfig) *Scanner {
	return &Scanner{rules: DefaultRules(), cfg: cfg}
}

func (s *Scanner) Name() string  { return "injection" }
func (s *Scanner) Enabled() bool { return s.cfg().Enabled }

// Scan checks a single text string and returns all detections.
func (s *Scanner) Scan(text string) []Detection {
	var detections []Detection
	for _, r := range s.rules {
		locs := r.Regex.FindAllStringIndex(text, -1)
		for _, loc := range locs {
			detections = append(detections, Detection{
				RuleName: r.Name,
				Severity: r.Severity,
				Category: r.Category,
				Start:    loc[0],
				End:      loc[1],
			})
		}
	}
	return detections
}

// ScanTexts scans every text of a turn and scores the result.
func (s *Scanner) ScanTexts(texts []string) ([]Detection, float64) {
	var all []Detection
	for _, t := range texts {
		all = append(all, s.Scan(t)...)
	}
	return all, Score(all)
}

// Score is the highest severity seen, raised by categoryBoost for every
// further technique combined with it and capped at 1.
func Score(detections []Detection) float64 {
	top := 0.0
	seen := make(map[Category]bool)
	for _, d := range detections {
		seen[d.Category] = true
		if d.Severity > top {
			top = d.Severity
		}
	}
	if len(seen) > 1 {
		top += categoryBoost * float64(len(seen)-1)
	}
	return min(top, 1)
}

// ScanRequest implements filter.Filter.
func (s *Scanner) ScanRequest(_ context.Context, req *types.ChatTurnRequest) filter.Result {
	detections, score := s.ScanTexts(req.Texts())
	cfg := s.cfg()

	res := filter.Result{Action: filter.ActionPass, FilterName: s.Name(), Score: score}
	if len(detections) == 0 {
		return res
	}
	res.Detections = len(detections)
	switch {
	case score >= cfg.BlockThreshold:
		res.Action = filter.ActionBlock
		res.Message = fmt.Sprintf("Request blocked: prompt injection detected (%s, score %.2f)", detections[0].RuleName, score)
	case score >= cfg.FlagThreshold:
		res.Action = filter.ActionFlag
		res.Message = "possible prompt injection: " + detections[0].RuleName
	}
	return res
}
