// Package events defines the client-facing stream vocabulary. Every frame the
// gateway writes after the SSE headers carries one Event.
package events

// Event types. Text deltas keep the upstream OpenAI name so OpenAI frames can
// be forwarded without reshaping.
const (
	TypeTextDelta     = "response.output_text.delta"
	TypeStatus        = "status"
	TypeCodeDelta     = "code_delta"
	TypeCodeOutput    = "code_output"
	TypeImagePartial  = "image_partial"
	TypeImageComplete = "image_complete"
	TypeOutputFile    = "output_file"
	TypeGeminiFile    = "gemini_file"
	TypeCompletion    = "completion"
)

// Defaults applied to output files the upstream leaves unnamed.
const (
	DefaultFilename = "output"
	DefaultMimeType = "application/octet-stream"
)

// Event is the flattened form of every variant. Only the fields relevant to
// Type are set.
type Event struct {
	Type        string `json:"type"`
	Delta       string `json:"delta,omitempty"`
	Status      string `json:"status,omitempty"`
	Output      string `json:"output,omitempty"`
	Data        string `json:"data,omitempty"`
	Partial     *bool  `json:"partial,omitempty"`
	FileID      string `json:"file_id,omitempty"`
	Filename    string `json:"filename,omitempty"`
	MimeType    string `json:"mime_type,omitempty"`
	ContainerID string `json:"container_id,omitempty"`
	ChatID      string `json:"chat_id,omitempty"`
}

func TextDelta(delta string) Event {
	return Event{Type: TypeTextDelta, Delta: delta}
}

// Status reports a tool that is running upstream, using the raw upstream event name.
func Status(name string) Event {
	return Event{Type: TypeStatus, Status: name}
}

func CodeDelta(code string) Event {
	return Event{Type: TypeCodeDelta, Delta: code}
}

func CodeOutput(output string) Event {
	return Event{Type: TypeCodeOutput, Output: output}
}

func ImagePartial(b64 string) Event {
	partial := true
	return Event{Type: TypeImagePartial, Data: b64, Partial: &partial}
}

func ImageComplete(b64 string) Event {
	partial := false
	return Event{Type: TypeImageComplete, Data: b64, Partial: &partial}
}

// OutputFile references a file held upstream. Clients fetch it through the
// file download endpoint.
func OutputFile(fileID, filename, mimeType, containerID string) Event {
	if filename == "" {
		filename = DefaultFilename
	}
	if mimeType == "" {
		mimeType = DefaultMimeType
	}
	return Event{
		Type:        TypeOutputFile,
		FileID:      fileID,
		Filename:    filename,
		MimeType:    mimeType,
		ContainerID: containerID,
	}
}

// GeminiFile carries a generated file inline as base64.
func GeminiFile(filename, mimeType, b64 string) Event {
	return Event{Type: TypeGeminiFile, Filename: filename, MimeType: mimeType, Data: b64}
}

// Completion terminates a successful stream. chatID is the continuation handle
// for the next turn and may be empty for stateless providers.
func Completion(chatID, containerID string) Event {
	return Event{Type: TypeCompletion, ChatID: chatID, ContainerID: containerID}
}
