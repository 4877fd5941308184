package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
)

// Content part types accepted in a structured input.
const (
	PartInputText  = "input_text"
	PartInputImage = "input_image"
	PartInputFile  = "input_file"
)

// ChatTurnRequest is the canonical representation of one incoming chat turn.
// It is decoded once at request entry and never mutated afterwards.
type ChatTurnRequest struct {
	Input           Input            `json:"input"`
	ChatID          string           `json:"chat_id,omitempty"`
	Model           string           `json:"model"`
	SystemPrompt    string           `json:"system_prompt,omitempty"`
	Messages        []HistoryMessage `json:"messages,omitempty"`
	WebSearch       bool             `json:"web_search,omitempty"`
	ImageGeneration bool             `json:"image_generation,omitempty"`
	CodeInterpreter bool             `json:"code_interpreter,omitempty"`
	ReasoningEffort ReasoningEffort  `json:"reasoning_effort,omitempty"`
	ContainerID     string           `json:"container_id,omitempty"`

	// Set by the gateway, not decoded from the body.
	RequestID string `json:"-"`
	User      string `json:"-"`
}

// HistoryMessage is one prior turn supplied by the client. Only the Gemini
// adapter uses it; OpenAI continues from the previous response id instead.
type HistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Input is either free text or a list of content blocks.
type Input struct {
	Text   string
	Blocks []ContentBlock
}

// ContentBlock is one role-tagged group of content parts.
type ContentBlock struct {
	Role    string        `json:"role"`
	Content []ContentPart `json:"content"`
}

// ContentPart is a single text, image or file segment.
type ContentPart struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
	Filename string `json:"filename,omitempty"`
	FileData string `json:"file_data,omitempty"`
}

// IsStructured reports whether the input was sent as content blocks.
func (in Input) IsStructured() bool { return in.Blocks != nil }

func (in Input) MarshalJSON() ([]byte, error) {
	if in.IsStructured() {
		return json.Marshal(in.Blocks)
	}
	return json.Marshal(in.Text)
}

func (in *Input) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*in = Input{}
		return nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*in = Input{Text: s}
		return nil
	case data[0] == '[':
		blocks := []ContentBlock{}
		if err := json.Unmarshal(data, &blocks); err != nil {
			return err
		}
		*in = Input{Blocks: blocks}
		return nil
	default:
		return fmt.Errorf("input must be a string or an array of content blocks")
	}
}

// Parts returns every content part of a structured input in order.
func (in Input) Parts() []ContentPart {
	var parts []ContentPart
	for _, b := range in.Blocks {
		parts = append(parts, b.Content...)
	}
	return parts
}

// Summary describes an input for request logging.
type Summary struct {
	Text   string
	Images int
	Files  []string
}

// Summarize returns the last text segment, the image count and the attached file names.
func (in Input) Summarize() Summary {
	if !in.IsStructured() {
		return Summary{Text: in.Text}
	}
	var s Summary
	for _, p := range in.Parts() {
		switch p.Type {
		case PartInputText:
			if p.Text != "" {
				s.Text = p.Text
			}
		case PartInputImage:
			s.Images++
		case PartInputFile:
			name := p.Filename
			if name == "" {
				name = "unknown"
			}
			s.Files = append(s.Files, name)
		}
	}
	return s
}

var dataURLPattern = regexp.MustCompile(`(?s)^data:([^;]+);base64,(.+)$`)

// ParseDataURL splits a base64 data URL into its MIME type and payload.
func ParseDataURL(s string) (mimeType, payload string, ok bool) {
	m := dataURLPattern.FindStringSubmatch(s)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// Texts returns every piece of caller-supplied text in the turn: the system
// prompt, prior messages and the current input.
func (r *ChatTurnRequest) Texts() []string {
	var out []string
	if r.SystemPrompt != "" {
		out = append(out, r.SystemPrompt)
	}
	for _, m := range r.Messages {
		if m.Content != "" {
			out = append(out, m.Content)
		}
	}
	if !r.Input.IsStructured() {
		if r.Input.Text != "" {
			out = append(out, r.Input.Text)
		}
		return out
	}
	for _, p := range r.Input.Parts() {
		if p.Type == PartInputText && p.Text != "" {
			out = append(out, p.Text)
		}
	}
	return out
}

// Tool names as used in key grants and policy input.
const (
	ToolWebSearch       = "web_search"
	ToolImageGeneration = "image_generation"
	ToolCodeInterpreter = "code_interpreter"
)

// KnownTools lists every tool a turn can enable.
var KnownTools = []string{ToolWebSearch, ToolImageGeneration, ToolCodeInterpreter}

// Tools lists the upstream tools the turn asks for.
func (r *ChatTurnRequest) Tools() []string {
	var out []string
	if r.WebSearch {
		out = append(out, ToolWebSearch)
	}
	if r.ImageGeneration {
		out = append(out, ToolImageGeneration)
	}
	if r.CodeInterpreter {
		out = append(out, ToolCodeInterpreter)
	}
	return out
}
