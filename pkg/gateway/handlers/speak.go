package handlers

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/voxgate/voxgate/pkg/core/segment"
	"github.com/voxgate/voxgate/pkg/core/voice/tts"
	"github.com/voxgate/voxgate/pkg/gateway/config"
	"github.com/voxgate/voxgate/pkg/gateway/live/session"
	"github.com/voxgate/voxgate/pkg/gateway/live/sessions"
	"github.com/voxgate/voxgate/pkg/gateway/mw"
)

// SpeakHandler upgrades /v1/speak requests to websocket sessions that
// stream synthesized audio sentence by sentence.
type SpeakHandler struct {
	Config    config.Config
	Logger    *slog.Logger
	TTS       tts.Provider
	Segmenter segment.Segmenter
	Sessions  *sessions.Tracker
}

func (h SpeakHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}

	sessionID := "sess_" + uuid.NewString()
	reqID, _ := mw.RequestIDFrom(r.Context())

	seg := h.Segmenter
	if seg == nil {
		seg = &segment.BoundarySegmenter{}
	}

	s, err := session.New(session.Dependencies{
		Conn:      conn,
		Logger:    logger.With("request_id", reqID),
		TTS:       h.TTS,
		Segmenter: seg,
		SessionID: sessionID,
		Config: session.Config{
			DefaultVoice:        h.Config.DefaultVoice,
			DefaultSpeed:        h.Config.DefaultSpeed,
			OutboundQueueSize:   h.Config.OutboundQueueSize,
			MaxJSONMessageBytes: h.Config.MaxJSONMessageBytes,
			PingInterval:        h.Config.WSPingInterval,
			WriteTimeout:        h.Config.WSWriteTimeout,
			ReadTimeout:         h.Config.WSReadTimeout,
		},
	})
	if err != nil {
		logger.Error("speak session setup failed", "request_id", reqID, "error", err)
		return
	}

	if h.Sessions != nil {
		unregister := h.Sessions.Register(sessionID, s.CancelFunc())
		defer unregister()
	}

	if err := s.Run(); err != nil {
		logger.Warn("speak session ended with error",
			"request_id", reqID,
			"session_id", sessionID,
			"error", err)
	}
}
