package proctoring

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// EventSubmitImages carries a frame from the client.
const EventSubmitImages = "submit-images"

const maxMessageBytes = 16 << 20

// Message is the envelope exchanged over the proctoring socket.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type submitImages struct {
	Image string `json:"image"`
}

// Submitter accepts frames from connected clients.
type Submitter interface {
	Submit(clientID, image string) bool
}

// SocketHandler upgrades exam clients to a persistent channel and forwards
// their frames to the ingest. Nothing is ever written back.
type SocketHandler struct {
	ingest   Submitter
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewSocketHandler constructs the websocket endpoint.
func NewSocketHandler(ingest Submitter, logger *slog.Logger) *SocketHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SocketHandler{
		ingest: ingest,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(*http.Request) bool { return true },
			ReadBufferSize:  64 << 10,
			WriteBufferSize: 4 << 10,
		},
	}
}

func (h *SocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("proctoring upgrade failed", slog.Any("error", err))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxMessageBytes)

	clientID := uuid.NewString()
	logger := h.logger.With(slog.String("client_id", clientID))
	logger.Info("proctoring client connected")
	defer logger.Info("proctoring client disconnected")

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("proctoring read", slog.Any("error", err))
			}
			return
		}
		if msg.Event != EventSubmitImages {
			logger.Debug("ignoring proctoring event", slog.String("event", msg.Event))
			continue
		}
		var data submitImages
		if err := json.Unmarshal(msg.Data, &data); err != nil || data.Image == "" {
			logger.Warn("malformed submit-images payload")
			continue
		}
		logger.Info("received proctoring frame", slog.Int("image_length", len(data.Image)))
		h.ingest.Submit(clientID, data.Image)
	}
}
