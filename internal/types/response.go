package types

// ModelInfo describes one entry of the model catalog served by GET /v1/models.
type ModelInfo struct {
	ID                      string   `json:"id"`
	Object                  string   `json:"object"`
	Label                   string   `json:"label"`
	Provider                string   `json:"provider"`
	SupportsImage           bool     `json:"supports_image"`
	SupportsImageGen        bool     `json:"supports_image_gen"`
	SupportsCodeInterpreter bool     `json:"supports_code_interpreter"`
	SupportsWebSearch       bool     `json:"supports_web_search"`
	ReasoningEfforts        []string `json:"reasoning_efforts"`
	Default                 bool     `json:"default,omitempty"`
}

type ModelList struct {
	Object string      `json:"object"`
	Data   []ModelInfo `json:"data"`
}

