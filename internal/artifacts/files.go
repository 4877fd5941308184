// Package artifacts tracks files produced by upstream tools during a single
// streamed turn: which have already been surfaced to the client, and how to
// recover content for files the upstream only mentions by name.
package artifacts

import (
	"path"
	"strconv"
	"strings"
)

// FileSet remembers which file ids have been surfaced. The same file can be
// reported by an intermediate tool event, the completed tool item and a
// message annotation; only the first report is forwarded.
type FileSet struct {
	seen map[string]struct{}
}

func NewFileSet() *FileSet {
	return &FileSet{seen: make(map[string]struct{})}
}

// ShouldEmit returns true the first time id is offered and false afterwards.
func (s *FileSet) ShouldEmit(id string) bool {
	if _, ok := s.seen[id]; ok {
		return false
	}
	s.seen[id] = struct{}{}
	return true
}

// InlineFile is a generated file carried as base64 in the stream.
type InlineFile struct {
	Filename  string
	MimeType  string
	Data      string
	Synthetic bool // still carries a counter-based placeholder name
}

// SyntheticName builds the placeholder name for the n-th inline file, taking
// the extension from the MIME subtype.
func SyntheticName(n int, mimeType string) string {
	return "output_" + strconv.Itoa(n) + "." + subtypeExtension(mimeType)
}

func subtypeExtension(mimeType string) string {
	_, sub, ok := strings.Cut(mimeType, "/")
	if !ok {
		return "bin"
	}
	sub, _, _ = strings.Cut(sub, ";")
	sub = strings.TrimSpace(sub)
	if sub == "" {
		return "bin"
	}
	return sub
}

// Extension returns the lowercased extension of name without the dot.
func Extension(name string) string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
}

var mimeByExtension = map[string]string{
	"csv":  "text/csv",
	"txt":  "text/plain",
	"json": "application/json",
	"html": "text/html",
	"xml":  "application/xml",
	"md":   "text/markdown",
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"svg":  "image/svg+xml",
	"pdf":  "application/pdf",
}

// GuessMimeType maps a filename to a MIME type by extension, falling back to
// application/octet-stream.
func GuessMimeType(name string) string {
	if m, ok := mimeByExtension[Extension(name)]; ok {
		return m
	}
	return "application/octet-stream"
}
