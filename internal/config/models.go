package config

// ModelsConfig is the model catalog offered to clients.
type ModelsConfig struct {
	Models []ModelDef `yaml:"models"`
}

type ModelDef struct {
	ID                      string   `yaml:"id"`
	Label                   string   `yaml:"label"`
	Provider                string   `yaml:"provider"`
	SupportsImage           bool     `yaml:"supports_image"`
	SupportsImageGen        bool     `yaml:"supports_image_gen"`
	SupportsCodeInterpreter bool     `yaml:"supports_code_interpreter"`
	SupportsWebSearch       bool     `yaml:"supports_web_search"`
	ReasoningEfforts        []string `yaml:"reasoning_efforts"`
}

// Find returns the catalog entry for id.
func (m *ModelsConfig) Find(id string) (ModelDef, bool) {
	if m == nil {
		return ModelDef{}, false
	}
	for _, def := range m.Models {
		if def.ID == id {
			return def, true
		}
	}
	return ModelDef{}, false
}
