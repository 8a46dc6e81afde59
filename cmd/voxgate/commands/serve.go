package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/voxgate/voxgate/pkg/core/segment"
	"github.com/voxgate/voxgate/pkg/core/voice/tts"
	"github.com/voxgate/voxgate/pkg/gateway/config"
	gatewayserver "github.com/voxgate/voxgate/pkg/gateway/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the speak gateway",
	Long: `Run the websocket gateway. Clients connect to /v1/speak, send a
start frame with text, and receive sentence boundaries and base64
audio chunks synthesized by a Kokoro-compatible engine.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context(), nil, defaultServeDeps())
	},
}

type gatewayRunner interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

type serveDeps struct {
	loadConfig   func(path string) (config.Config, error)
	newGateway   func(config.Config, *slog.Logger) gatewayRunner
	signalNotify func(chan<- os.Signal, ...os.Signal)
	signalStop   func(chan<- os.Signal)
}

func defaultServeDeps() serveDeps {
	return serveDeps{
		loadConfig: config.Load,
		newGateway: func(cfg config.Config, logger *slog.Logger) gatewayRunner {
			return gatewayserver.New(cfg, gatewayserver.Dependencies{
				Logger:    logger,
				TTS:       tts.NewKokoro(cfg.TTSBaseURL),
				Segmenter: &segment.BoundarySegmenter{},
			})
		},
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) {
			signal.Notify(c, sig...)
		},
		signalStop: signal.Stop,
	}
}

func runServe(ctx context.Context, logger *slog.Logger, deps serveDeps) error {
	if deps.loadConfig == nil || deps.newGateway == nil {
		return errors.New("missing gateway dependency")
	}
	if deps.signalNotify == nil || deps.signalStop == nil {
		return errors.New("missing signal dependency")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	cfg, err := deps.loadConfig(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	gw := deps.newGateway(cfg, logger)

	listenErrCh := make(chan error, 1)
	go func() {
		listenErrCh <- gw.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	deps.signalNotify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer deps.signalStop(sigCh)

	select {
	case err := <-listenErrCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer shutdownCancel()
	if err := gw.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	if err := <-listenErrCh; err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	logger.Info("gateway stopped")
	return nil
}
