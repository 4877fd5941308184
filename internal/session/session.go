// Package session holds the mutable state of one streamed chat turn. A
// Session is owned by a single transform loop and is never shared between
// requests, so it needs no locking.
package session

import (
	"encoding/base64"

	"github.com/af-corp/chat-gateway/internal/artifacts"
	"github.com/af-corp/chat-gateway/internal/grounding"
)

type Session struct {
	files       *artifacts.FileSet
	containerID string

	// codes[i] produced outputs[i]; outputs[i] is "" until a result arrives.
	codes   []string
	outputs []string

	pending     []artifacts.InlineFile
	fileCounter int

	grounding *grounding.Metadata
}

func New() *Session {
	return &Session{files: artifacts.NewFileSet()}
}

// ShouldEmit reports whether an output file id has not been surfaced yet and
// marks it as surfaced.
func (s *Session) ShouldEmit(fileID string) bool {
	return s.files.ShouldEmit(fileID)
}

// ObserveContainer records the execution container of this turn. Only the
// first non-empty id is kept.
func (s *Session) ObserveContainer(id string) {
	if s.containerID == "" && id != "" {
		s.containerID = id
	}
}

func (s *Session) ContainerID() string { return s.containerID }

// RecordCode appends an executed snippet with an empty output slot.
func (s *Session) RecordCode(code string) {
	s.codes = append(s.codes, code)
	s.outputs = append(s.outputs, "")
}

// RecordOutput pairs output with the latest snippet still waiting for one.
// An output with no waiting snippet gets an empty code slot of its own so the
// two lists stay aligned.
func (s *Session) RecordOutput(output string) {
	if n := len(s.outputs); n > 0 && s.outputs[n-1] == "" {
		s.outputs[n-1] = output
		return
	}
	s.codes = append(s.codes, "")
	s.outputs = append(s.outputs, output)
}

// Executions returns the aligned code and output history.
func (s *Session) Executions() (codes, outputs []string) {
	return s.codes, s.outputs
}

// AddInlineFile queues a generated file under a placeholder name and returns
// that name. A later text reference may rename it.
func (s *Session) AddInlineFile(mimeType, data string) string {
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	s.fileCounter++
	name := artifacts.SyntheticName(s.fileCounter, mimeType)
	s.pending = append(s.pending, artifacts.InlineFile{
		Filename:  name,
		MimeType:  mimeType,
		Data:      data,
		Synthetic: true,
	})
	return name
}

// ResolveReferences rewrites sandbox file references in text to the mount
// path and makes sure each referenced file is pending emission: an unnamed
// inline file of the same type takes the referenced name, otherwise the
// content is reconstructed from code output. Unresolvable names are left as
// plain references.
func (s *Session) ResolveReferences(text string) string {
	return artifacts.RewriteSandboxLinks(text, s.resolve)
}

func (s *Session) resolve(name string) {
	for _, f := range s.pending {
		if f.Filename == name {
			return
		}
	}

	ext := artifacts.Extension(name)
	for i := range s.pending {
		f := &s.pending[i]
		if !f.Synthetic {
			continue
		}
		if ext == "" || artifacts.Extension(f.Filename) == ext || artifacts.GuessMimeType(name) == f.MimeType {
			f.Filename = name
			f.Synthetic = false
			return
		}
	}

	content, ok := artifacts.Reconstruct(name, s.codes, s.outputs)
	if !ok {
		return
	}
	s.pending = append(s.pending, artifacts.InlineFile{
		Filename: name,
		MimeType: artifacts.GuessMimeType(name),
		Data:     base64.StdEncoding.EncodeToString([]byte(content)),
	})
}

// PendingFiles returns the inline files collected so far, in arrival order.
func (s *Session) PendingFiles() []artifacts.InlineFile {
	return s.pending
}

// SetGrounding replaces the grounding metadata; only the latest is rendered.
func (s *Session) SetGrounding(m *grounding.Metadata) {
	if m != nil {
		s.grounding = m
	}
}

func (s *Session) Grounding() *grounding.Metadata { return s.grounding }
