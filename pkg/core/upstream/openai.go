package upstream

import (
	"context"
	"io"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"
)

// OpenAIProducer streams text from an OpenAI-compatible chat
// completions endpoint.
type OpenAIProducer struct {
	client openai.Client
	model  string
}

var _ Producer = (*OpenAIProducer)(nil)

func NewOpenAI(apiKey, model string, opts ...option.RequestOption) *OpenAIProducer {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	if strings.TrimSpace(model) == "" {
		model = openai.ChatModelGPT4oMini
	}
	return &OpenAIProducer{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

func (o *OpenAIProducer) Name() string {
	return "openai"
}

func (o *OpenAIProducer) Stream(ctx context.Context, prompt string) (TokenStream, error) {
	stream := o.client.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
		Model: o.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	return &openaiStream{stream: stream}, nil
}

type openaiStream struct {
	stream *ssestream.Stream[openai.ChatCompletionChunk]
}

func (s *openaiStream) Next() (string, error) {
	for s.stream.Next() {
		chunk := s.stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		if delta := chunk.Choices[0].Delta.Content; delta != "" {
			return delta, nil
		}
	}
	if err := s.stream.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (s *openaiStream) Close() {
	_ = s.stream.Close()
}
