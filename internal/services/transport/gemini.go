package transport

import (
	"context"
	"fmt"

	"github.com/Egham-7/cascade-engine/internal/utils/clientcache"

	"google.golang.org/genai"
)

type geminiProvider struct {
	apiKey  string
	clients *clientcache.Cache[*genai.Client]
}

func newGeminiProvider(apiKey string) *geminiProvider {
	return &geminiProvider{
		apiKey:  apiKey,
		clients: clientcache.NewCache[*genai.Client](),
	}
}

func (p *geminiProvider) Invoke(ctx context.Context, model, query string) (string, error) {
	client, err := p.clients.GetOrCreate("gemini", func() (*genai.Client, error) {
		return genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  p.apiKey,
			Backend: genai.BackendGeminiAPI,
		})
	})
	if err != nil {
		return "", err
	}

	response, err := client.Models.GenerateContent(ctx, model, genai.Text(query), nil)
	if err != nil {
		return "", fmt.Errorf("gemini generation failed for %s: %w", model, err)
	}

	text := response.Text()
	if text == "" {
		return "", fmt.Errorf("gemini returned no text for %s", model)
	}
	return text, nil
}
