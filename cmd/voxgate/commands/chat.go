package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/voxgate/voxgate/pkg/core/think"
	"github.com/voxgate/voxgate/pkg/core/upstream"
	"github.com/voxgate/voxgate/pkg/gateway/config"
)

var chatShowThinking bool

var chatCmd = &cobra.Command{
	Use:   "chat <prompt>",
	Short: "Stream a model reply, separating reasoning from response",
	Long: `Stream a reply from the configured upstream model. Reasoning
enclosed in think markers goes to stderr (with --thinking) while the
response text streams to stdout as it arrives.

Examples:
  voxgate chat "why is the sky blue"
  voxgate chat --thinking "plan a trip to Kyoto"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		producer, err := newProducer(cmd.Context(), cfg.Upstream)
		if err != nil {
			return err
		}
		prompt := strings.Join(args, " ")
		return runChat(cmd.Context(), producer, prompt, cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

func init() {
	chatCmd.Flags().BoolVar(&chatShowThinking, "thinking", false, "print reasoning to stderr")
}

func newProducer(ctx context.Context, cfg config.UpstreamConfig) (upstream.Producer, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "gemini":
		return upstream.NewGemini(ctx, cfg.APIKey, cfg.Model)
	case "openai":
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, errors.New("VOXGATE_UPSTREAM_API_KEY is required")
		}
		return upstream.NewOpenAI(cfg.APIKey, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unknown upstream provider %q", cfg.Provider)
	}
}

func runChat(ctx context.Context, producer upstream.Producer, prompt string, stdout, stderr io.Writer) error {
	stream, err := producer.Stream(ctx, prompt)
	if err != nil {
		return fmt.Errorf("start stream: %w", err)
	}
	defer stream.Close()

	parser := &think.Parser{}
	emit := func(chunks []think.Chunk) {
		for _, chunk := range chunks {
			switch chunk.Type {
			case think.ChunkThinking:
				if chatShowThinking {
					fmt.Fprint(stderr, chunk.Content)
				}
			case think.ChunkResponse:
				fmt.Fprint(stdout, chunk.Content)
			case think.ChunkMetadata:
				if chatShowThinking && chunk.ThinkingComplete {
					fmt.Fprintln(stderr)
				}
			}
		}
	}

	for {
		frag, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("stream: %w", err)
		}
		emit(parser.Feed(frag))
	}
	emit(parser.Finalize())
	fmt.Fprintln(stdout)
	return nil
}

