package transport

import (
	"context"
	"fmt"

	"github.com/Egham-7/cascade-engine/internal/utils/clientcache"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

type openaiProvider struct {
	apiKey  string
	clients *clientcache.Cache[openai.Client]
}

func newOpenAIProvider(apiKey string) *openaiProvider {
	return &openaiProvider{
		apiKey:  apiKey,
		clients: clientcache.NewCache[openai.Client](),
	}
}

func (p *openaiProvider) Invoke(ctx context.Context, model, query string) (string, error) {
	client, err := p.clients.GetOrCreate("openai", func() (openai.Client, error) {
		return openai.NewClient(option.WithAPIKey(p.apiKey)), nil
	})
	if err != nil {
		return "", err
	}

	completion, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(query),
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai completion failed for %s: %w", model, err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices for %s", model)
	}
	return completion.Choices[0].Message.Content, nil
}
