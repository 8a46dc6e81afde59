package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/voxgate/voxgate/pkg/gateway/config"
)

type HealthHandler struct{}

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

// ReadyHandler reports whether the gateway configuration is usable.
type ReadyHandler struct {
	Config config.Config
}

func (h ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type readyResp struct {
		OK           bool     `json:"ok"`
		TTSBaseURL   string   `json:"tts_base_url"`
		DefaultVoice string   `json:"default_voice"`
		Issues       []string `json:"issues,omitempty"`
	}

	issues := make([]string, 0, 4)
	if h.Config.TTSBaseURL == "" {
		issues = append(issues, "tts_base_url is empty")
	}
	if h.Config.DefaultVoice == "" {
		issues = append(issues, "default_voice is empty")
	}
	if h.Config.DefaultSpeed <= 0 {
		issues = append(issues, "default_speed must be > 0")
	}
	if h.Config.OutboundQueueSize <= 0 {
		issues = append(issues, "outbound_queue_size must be > 0")
	}

	ok := len(issues) == 0
	status := http.StatusOK
	if !ok {
		status = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(readyResp{
		OK:           ok,
		TTSBaseURL:   h.Config.TTSBaseURL,
		DefaultVoice: h.Config.DefaultVoice,
		Issues:       issues,
	})
}
