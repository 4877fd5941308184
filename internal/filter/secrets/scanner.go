package secrets

import (
	"context"
	"fmt"

	"github.com/af-corp/chat-gateway/internal/config"
	"github.com/af-corp/chat-gateway/internal/filter"
	"github.com/af-corp/chat-gateway/internal/types"
)

// Detection represents a detected secret in text.
type Detection struct {
	PatternName string // e.g. "AWS Access Key"
	Start       int    // byte offset
	End         int    // byte offset
}

// Scanner scans chat turns for credentials pasted into the conversation.
type Scanner struct {
	patterns []Pattern
	cfg      func() config.SecretsFilterConfig
}

// NewScanner creates a scanner with the default secret patterns. A nil cfg
// leaves the scanner permanently enabled.
func NewScanner(cfg func() config.SecretsFilterConfig) *Scanner {
	if cfg == nil {
		cfg = func() config.SecretsFilterConfig { return config.SecretsFilterConfig{Enabled: true} }
	}
	return &Scanner{patterns: DefaultPatterns(), cfg: cfg}
}

func (s *Scanner) Name() string  { return "secrets" }
func (s *Scanner) Enabled() bool { return s.cfg().Enabled }

// Scan checks a single text string for secrets and returns all detections.
func (s *Scanner) Scan(text string) []Detection {
	var detections []Detection
	for _, p := range s.patterns {
		for _, loc := range p.Regex.FindAllStringIndex(text, -1) {
			detections = append(detections, Detection{
				PatternName: p.Name,
				Start:       loc[0],
				End:         loc[1],
			})
		}
	}
	return detections
}

// ScanTexts scans every text and concatenates the detections.
func (s *Scanner) ScanTexts(texts []string) []Detection {
	var detections []Detection
	for _, t := range texts {
		detections = append(detections, s.Scan(t)...)
	}
	return detections
}

// ScanRequest implements filter.Filter. Any detection blocks the turn.
func (s *Scanner) ScanRequest(_ context.Context, req *types.ChatTurnRequest) filter.Result {
	detections := s.ScanTexts(req.Texts())
	if len(detections) == 0 {
		return filter.Result{Action: filter.ActionPass, FilterName: s.Name()}
	}
	return filter.Result{
		Action:     filter.ActionBlock,
		FilterName: s.Name(),
		Message:    fmt.Sprintf("Request blocked: message contains a secret (%s)", detections[0].PatternName),
		Detections: len(detections),
	}
}
