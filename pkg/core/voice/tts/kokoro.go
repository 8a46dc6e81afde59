package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const kokoroDefaultBaseURL = "http://127.0.0.1:8880"

// KokoroProvider speaks to a local Kokoro-compatible inference server
// exposing the OpenAI-style /v1/audio/speech endpoint with chunked
// streaming responses.
type KokoroProvider struct {
	baseURL    string
	httpClient *http.Client
	model      string
}

var _ Provider = (*KokoroProvider)(nil)

func NewKokoro(baseURL string) *KokoroProvider {
	return NewKokoroWithClient(baseURL, nil)
}

func NewKokoroWithClient(baseURL string, client *http.Client) *KokoroProvider {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = kokoroDefaultBaseURL
	}
	if client == nil {
		client = &http.Client{}
	}
	return &KokoroProvider{
		baseURL:    baseURL,
		httpClient: client,
		model:      "kokoro",
	}
}

func (k *KokoroProvider) Name() string {
	return "kokoro"
}

func (k *KokoroProvider) Synthesize(ctx context.Context, text string, opts SynthesizeOptions) (*Synthesis, error) {
	stream, err := k.SynthesizeStream(ctx, text, opts)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	var out []byte
	for chunk := range stream.Chunks() {
		out = append(out, chunk...)
	}
	if err := stream.Err(); err != nil && err != io.EOF && err != context.Canceled {
		return nil, err
	}
	return &Synthesis{
		Audio:  out,
		Format: formatOr(opts.Format),
	}, nil
}

func (k *KokoroProvider) SynthesizeStream(ctx context.Context, text string, opts SynthesizeOptions) (*SynthesisStream, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("kokoro: text is required")
	}
	speed := opts.Speed
	if speed <= 0 {
		speed = 1.0
	}
	payload := map[string]any{
		"model":           k.model,
		"input":           text,
		"voice":           opts.Voice,
		"speed":           speed,
		"response_format": formatOr(opts.Format),
		"stream":          true,
	}
	if opts.SampleRate > 0 {
		payload["sample_rate"] = opts.SampleRate
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, k.baseURL+"/v1/audio/speech", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := k.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		_ = resp.Body.Close()
		return nil, fmt.Errorf("kokoro: engine returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	stream := NewSynthesisStream()
	go func() {
		defer resp.Body.Close()
		defer stream.FinishSending()

		buf := make([]byte, 4096)
		for {
			select {
			case <-ctx.Done():
				stream.SetError(ctx.Err())
				return
			default:
			}
			n, err := resp.Body.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				if !stream.Send(chunk) {
					return
				}
			}
			if err == io.EOF {
				return
			}
			if err != nil {
				stream.SetError(err)
				return
			}
		}
	}()
	return stream, nil
}

func formatOr(format string) string {
	format = strings.TrimSpace(format)
	if format == "" {
		return "pcm"
	}
	return format
}
