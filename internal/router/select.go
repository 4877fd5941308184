package router

import "strings"

// Provider families.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

const geminiModelPrefix = "gemini-"

// SelectProvider maps a model id to its provider family. Ids with the Gemini
// prefix go to Gemini; everything else, including unknown ids, goes to OpenAI.
func SelectProvider(model string) string {
	if strings.HasPrefix(model, geminiModelPrefix) {
		return ProviderGemini
	}
	return ProviderOpenAI
}
