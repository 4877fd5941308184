package adapters

import "github.com/af-corp/chat-gateway/internal/types"

// Upstream event names of the OpenAI Responses API stream.
const (
	oaiEventWebSearching      = "response.web_search_call.searching"
	oaiEventInterpreting      = "response.code_interpreter_call.interpreting"
	oaiEventImageGenerating   = "response.image_generation_call.generating"
	oaiEventCodeDelta         = "response.code_interpreter_call_code.delta"
	oaiEventPartialImage      = "response.image_generation_call.partial_image"
	oaiEventInterpreterDone   = "response.code_interpreter_call.completed"
	oaiEventResponseCompleted = "response.completed"
	oaiEventResponseFailed    = "response.failed"
	oaiEventError             = "error"
)

// Output item and annotation types inside a completed response.
const (
	oaiItemImageGeneration = "image_generation_call"
	oaiItemCodeInterpreter = "code_interpreter_call"
	oaiItemMessage         = "message"
	oaiOutputFiles         = "files"
	oaiAnnotationFile      = "container_file_citation"
)

const (
	oaiToolWebSearch       = "web_search_preview"
	oaiToolImageGeneration = "image_generation"
	oaiToolCodeInterpreter = "code_interpreter"

	oaiUploadPurpose = "user_data"
)

type responsesRequest struct {
	Model              string           `json:"model"`
	Input              types.Input      `json:"input"`
	Stream             bool             `json:"stream"`
	Instructions       string           `json:"instructions,omitempty"`
	PreviousResponseID string           `json:"previous_response_id,omitempty"`
	Tools              []responsesTool  `json:"tools,omitempty"`
	Reasoning          *reasoningConfig `json:"reasoning,omitempty"`
}

type responsesTool struct {
	Type string `json:"type"`
	// Container is either an explicit container id string or an autoContainer.
	Container any `json:"container,omitempty"`
}

type autoContainer struct {
	Type    string   `json:"type"`
	FileIDs []string `json:"file_ids,omitempty"`
}

type reasoningConfig struct {
	Effort types.ReasoningEffort `json:"effort"`
}

type containerFileRequest struct {
	FileID string `json:"file_id"`
}
