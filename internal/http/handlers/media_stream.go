package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/KhichiDushyant/voice-agent/internal/observability/metrics"
	"github.com/KhichiDushyant/voice-agent/internal/realtime"
	"github.com/KhichiDushyant/voice-agent/internal/session"
	"github.com/KhichiDushyant/voice-agent/pkg/logging"
)

const realtimeDialTimeout = 10 * time.Second

// MediaStreamHandler accepts the telephony media-stream websocket and bridges
// it to a freshly dialed realtime session.
type MediaStreamHandler struct {
	realtimeURL string
	apiKey      string
	sessionOpts session.Options
	metrics     *metrics.CallMetrics
	logger      *logging.Logger
	upgrader    websocket.Upgrader
}

// NewMediaStreamHandler builds the handler. sessionOpts is used as the
// template for every bridged call.
func NewMediaStreamHandler(realtimeURL, apiKey string, sessionOpts session.Options, m *metrics.CallMetrics, logger *logging.Logger) *MediaStreamHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &MediaStreamHandler{
		realtimeURL: realtimeURL,
		apiKey:      apiKey,
		sessionOpts: sessionOpts,
		metrics:     m,
		logger:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Twilio connects server to server; there is no browser origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Handle is GET /ws/media-stream. It blocks for the lifetime of the call.
func (h *MediaStreamHandler) Handle(w http.ResponseWriter, r *http.Request) {
	tw, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("media stream upgrade failed", "error", err)
		return
	}

	dialCtx, cancel := context.WithTimeout(r.Context(), realtimeDialTimeout)
	ai, err := realtime.Dial(dialCtx, h.realtimeURL, h.sessionOpts.Model, h.apiKey)
	cancel()
	if err != nil {
		h.logger.Error("realtime dial failed", "error", err)
		_ = tw.Close()
		return
	}

	h.metrics.SessionStarted()
	defer h.metrics.SessionEnded()

	s := session.New(tw, ai, h.sessionOpts)
	s.Run(r.Context())

	status, outcome, duration := s.Result()
	h.metrics.ObserveCallFinished(status, outcome, duration.Seconds())
}
