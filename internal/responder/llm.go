package responder

import (
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// NewChatModel creates a langchaingo model against an OpenAI-compatible
// endpoint (Groq, OpenAI, a local server).
func NewChatModel(baseURL, apiKey, model string) (llms.Model, error) {
	opts := []openai.Option{
		openai.WithToken(apiKey),
		openai.WithModel(model),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return llm, nil
}

// totalTokens pulls the reported token consumption out of a content
// choice. Providers report usage under different keys and numeric types.
func totalTokens(choice *llms.ContentChoice) int {
	if choice == nil || choice.GenerationInfo == nil {
		return 0
	}

	if n, ok := asInt(choice.GenerationInfo["TotalTokens"]); ok {
		return n
	}

	prompt, _ := asInt(choice.GenerationInfo["PromptTokens"])
	completion, _ := asInt(choice.GenerationInfo["CompletionTokens"])
	return prompt + completion
}

func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
