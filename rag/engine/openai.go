package engine

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// OpenAI embeds and completes text through an OpenAI compatible API.
type OpenAI struct {
	client *openai.Client
}

// NewOpenAI returns an OpenAI client. An empty baseURL uses the public API.
func NewOpenAI(apiKey, baseURL string) *OpenAI {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &OpenAI{client: openai.NewClientWithConfig(config)}
}

func (o *OpenAI) Embed(ctx context.Context, text, model string) ([]float32, error) {
	resp, err := o.client.CreateEmbeddings(ctx,
		openai.EmbeddingRequestStrings{
			Input: []string{text},
			Model: openai.EmbeddingModel(model),
		},
	)
	if err != nil {
		return nil, fmt.Errorf("error getting embedding: %w", err)
	}

	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no embedding returned for model %s", model)
	}

	return resp.Data[0].Embedding, nil
}

// Complete sends prompt as the single user message of a chat completion.
func (o *OpenAI) Complete(ctx context.Context, prompt, model string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx,
		openai.ChatCompletionRequest{
			Model: model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
		},
	)
	if err != nil {
		return "", fmt.Errorf("error getting completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned for model %s", model)
	}

	return resp.Choices[0].Message.Content, nil
}
