// Package grounding renders web-search grounding metadata as a markdown
// citation block appended after a streamed answer.
package grounding

import "strings"

// Metadata mirrors the groundingMetadata object of a Gemini candidate.
type Metadata struct {
	WebSearchQueries  []string  `json:"webSearchQueries,omitempty"`
	GroundingChunks   []Chunk   `json:"groundingChunks,omitempty"`
	GroundingSupports []Support `json:"groundingSupports,omitempty"`
}

type Chunk struct {
	Web *WebSource `json:"web,omitempty"`
}

type WebSource struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

// Support ties a span of the answer to the chunks that back it.
type Support struct {
	Segment               *Segment `json:"segment,omitempty"`
	GroundingChunkIndices []int    `json:"groundingChunkIndices,omitempty"`
}

type Segment struct {
	StartIndex int    `json:"startIndex,omitempty"`
	EndIndex   int    `json:"endIndex,omitempty"`
	Text       string `json:"text"`
}

const sourcesHeading = "\n\n---\n**Sources**\n"

// Render builds the "Sources" block: one list item per chunk with both a
// title and a uri, each followed by the answer segments it supports as
// quoted lines. It returns "" when no chunk is usable.
func Render(m *Metadata) string {
	if m == nil || len(m.GroundingChunks) == 0 {
		return ""
	}

	segments := make(map[int][]string)
	for _, s := range m.GroundingSupports {
		if s.Segment == nil || s.Segment.Text == "" {
			continue
		}
		for _, idx := range s.GroundingChunkIndices {
			segments[idx] = append(segments[idx], s.Segment.Text)
		}
	}

	var items []string
	for i, c := range m.GroundingChunks {
		if c.Web == nil || c.Web.URI == "" || c.Web.Title == "" {
			continue
		}
		var b strings.Builder
		b.WriteString("- [")
		b.WriteString(c.Web.Title)
		b.WriteString("](")
		b.WriteString(c.Web.URI)
		b.WriteString(")")
		for _, seg := range segments[i] {
			b.WriteString("\n> ")
			b.WriteString(seg)
		}
		items = append(items, b.String())
	}
	if len(items) == 0 {
		return ""
	}
	return sourcesHeading + strings.Join(items, "\n") + "\n"
}
