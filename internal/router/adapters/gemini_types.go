package adapters

import (
	"github.com/af-corp/chat-gateway/internal/grounding"
	"github.com/af-corp/chat-gateway/internal/types"
)

const (
	geminiRoleUser  = "user"
	geminiRoleModel = "model"

	geminiTemperature = 1.0
)

type geminiRequest struct {
	Contents          []geminiContent          `json:"contents"`
	GenerationConfig  geminiGenerationConfig   `json:"generationConfig"`
	SystemInstruction *geminiSystemInstruction `json:"systemInstruction,omitempty"`
	Tools             []geminiTool             `json:"tools,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

// geminiPart is used for both directions. Request parts only carry Text or
// InlineData; streamed parts may carry any one of the fields.
type geminiPart struct {
	Text                *string           `json:"text,omitempty"`
	InlineData          *geminiInlineData `json:"inlineData,omitempty"`
	ExecutableCode      *geminiExecutable `json:"executableCode,omitempty"`
	CodeExecutionResult *geminiExecResult `json:"codeExecutionResult,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiExecutable struct {
	Language string `json:"language,omitempty"`
	Code     string `json:"code"`
}

type geminiExecResult struct {
	Outcome string `json:"outcome,omitempty"`
	Output  string `json:"output"`
}

type geminiGenerationConfig struct {
	Temperature    float64               `json:"temperature"`
	ThinkingConfig *geminiThinkingConfig `json:"thinkingConfig,omitempty"`
}

type geminiThinkingConfig struct {
	ThinkingLevel types.ReasoningEffort `json:"thinkingLevel"`
}

type geminiSystemInstruction struct {
	Parts []geminiPart `json:"parts"`
}

type geminiTool struct {
	GoogleSearch  *struct{} `json:"googleSearch,omitempty"`
	CodeExecution *struct{} `json:"codeExecution,omitempty"`
}

// geminiChunk is one streamed GenerateContentResponse.
type geminiChunk struct {
	Candidates []geminiCandidate `json:"candidates"`
}

type geminiCandidate struct {
	Content           *geminiContent      `json:"content,omitempty"`
	GroundingMetadata *grounding.Metadata `json:"groundingMetadata,omitempty"`
	FinishReason      string              `json:"finishReason,omitempty"`
}

func textPart(s string) geminiPart {
	return geminiPart{Text: &s}
}
