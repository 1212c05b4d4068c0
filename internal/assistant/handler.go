package assistant

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ulms/ulms-gateway/internal/backend"
	"github.com/ulms/ulms-gateway/internal/platform/httpx"
)

// Agent is the assistant backend.
type Agent interface {
	Streamer
	StartChatSession(ctx context.Context) (backend.Document, error)
	Inquire(ctx context.Context, q backend.Inquiry) (backend.Document, error)
}

// Handler serves /assistant routes.
type Handler struct {
	agent     Agent
	relay     *Relay
	logger    *slog.Logger
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(agent Agent, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		agent:     agent,
		relay:     NewRelay(agent, logger),
		logger:    logger,
		validator: validator.New(),
	}
}

// MountRoutes registers the request/response routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/start-session", h.handleStartSession)
	r.Post("/send-message/{chatId}", h.handleSendMessage)
}

// MountStream registers the streaming route. It must be mounted outside any
// middleware that buffers or bounds the response.
func (h *Handler) MountStream(r chi.Router) {
	r.Post("/send-message-stream/{chatId}", h.handleSendMessageStream)
}

func (h *Handler) handleStartSession(w http.ResponseWriter, r *http.Request) {
	resp, err := h.agent.StartChatSession(r.Context())
	if err != nil {
		h.fail(w, "start session", err)
		return
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	q, ok := h.inquiry(w, r)
	if !ok {
		return
	}
	resp, err := h.agent.Inquire(r.Context(), q)
	if err != nil {
		h.fail(w, "send message", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, withSources(resp))
}

func (h *Handler) handleSendMessageStream(w http.ResponseWriter, r *http.Request) {
	q, ok := h.inquiry(w, r)
	if !ok {
		return
	}
	h.relay.Serve(w, r, q)
}

func (h *Handler) inquiry(w http.ResponseWriter, r *http.Request) (backend.Inquiry, bool) {
	var q backend.Inquiry
	if err := httpx.DecodeValid(r, h.validator, &q); err != nil {
		httpx.RespondError(w, err)
		return q, false
	}
	q.ChatID = chi.URLParam(r, "chatId")
	return q, true
}

// withSources lifts the JSON-encoded data.sources list to a top-level
// sources array.
func withSources(resp backend.Document) backend.Document {
	out := backend.Clone(resp)
	out["sources"] = []any{}
	data, _ := resp["data"].(map[string]any)
	raw, _ := data["sources"].(string)
	if raw == "" || raw == "[]" {
		return out
	}
	if parsed, ok := backend.ParseJSONField(raw).([]any); ok {
		out["sources"] = parsed
	}
	return out
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	classified := backend.Classify(err)
	if httpx.StatusOf(classified) >= http.StatusInternalServerError {
		h.logger.Error("assistant "+op, slog.Any("error", err))
	}
	httpx.RespondError(w, classified)
}
