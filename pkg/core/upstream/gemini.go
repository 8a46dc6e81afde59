package upstream

import (
	"context"
	"fmt"
	"io"
	"iter"
	"strings"

	"google.golang.org/genai"
)

// GeminiProducer streams text from the Gemini API.
type GeminiProducer struct {
	client *genai.Client
	model  string
}

var _ Producer = (*GeminiProducer)(nil)

func NewGemini(ctx context.Context, apiKey, model string) (*GeminiProducer, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("gemini model is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiProducer{client: client, model: model}, nil
}

func (g *GeminiProducer) Name() string {
	return "gemini"
}

func (g *GeminiProducer) Stream(ctx context.Context, prompt string) (TokenStream, error) {
	itr := g.client.Models.GenerateContentStream(ctx, g.model, genai.Text(prompt), nil)
	next, stop := iter.Pull2(itr)
	return &geminiStream{next: next, stop: stop}, nil
}

type geminiStream struct {
	next func() (*genai.GenerateContentResponse, error, bool)
	stop func()
}

func (s *geminiStream) Next() (string, error) {
	for {
		resp, err, ok := s.next()
		if !ok {
			return "", io.EOF
		}
		if err != nil {
			return "", err
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
			continue
		}
		var sb strings.Builder
		for _, p := range resp.Candidates[0].Content.Parts {
			if p.Text != "" {
				sb.WriteString(p.Text)
			}
		}
		if sb.Len() > 0 {
			return sb.String(), nil
		}
	}
}

func (s *geminiStream) Close() {
	s.stop()
}
