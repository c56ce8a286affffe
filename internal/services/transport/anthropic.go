package transport

import (
	"context"
	"fmt"
	"strings"

	"github.com/Egham-7/cascade-engine/internal/utils/clientcache"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const anthropicMaxTokens = 4096

type anthropicProvider struct {
	apiKey  string
	clients *clientcache.Cache[anthropic.Client]
}

func newAnthropicProvider(apiKey string) *anthropicProvider {
	return &anthropicProvider{
		apiKey:  apiKey,
		clients: clientcache.NewCache[anthropic.Client](),
	}
}

func (p *anthropicProvider) Invoke(ctx context.Context, model, query string) (string, error) {
	client, err := p.clients.GetOrCreate("anthropic", func() (anthropic.Client, error) {
		return anthropic.NewClient(option.WithAPIKey(p.apiKey)), nil
	})
	if err != nil {
		return "", err
	}

	message, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: anthropicMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(query)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic message failed for %s: %w", model, err)
	}

	var text strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("anthropic returned no text content for %s", model)
	}
	return text.String(), nil
}
