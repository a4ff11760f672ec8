package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/relayworks/server/internal/api/problem"
	"github.com/relayworks/server/internal/domain/channels"
)

type ChannelsHandler struct {
	Service *channels.Service
	Env     string
}

func NewChannelsHandler(service *channels.Service, env string) *ChannelsHandler {
	return &ChannelsHandler{Service: service, Env: env}
}

type channelResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	IsPrivate bool      `json:"is_private"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

func toChannelResponse(c *channels.Channel) channelResponse {
	return channelResponse{
		ID:        c.ID,
		Name:      c.Name,
		IsPrivate: c.IsPrivate,
		CreatedBy: c.CreatedBy,
		CreatedAt: c.CreatedAt,
	}
}

type messageResponse struct {
	ID        string    `json:"id"`
	ChannelID string    `json:"channel_id"`
	AuthorID  string    `json:"author_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

func toMessageResponse(m *channels.Message) messageResponse {
	return messageResponse{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		AuthorID:  m.AuthorID,
		Body:      m.Body,
		CreatedAt: m.CreatedAt,
	}
}

type createChannelRequest struct {
	Name      string `json:"name" validate:"required,max=120"`
	IsPrivate bool   `json:"is_private,omitempty"`
}

func (h *ChannelsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createChannelRequest
	if err := decodeJSON(r, &req); err != nil {
		problem.Write(w, r, http.StatusBadRequest, problem.CodeValidation, "invalid request", err, h.Env)
		return
	}

	channel, err := h.Service.Create(r.Context(), channels.CreateParams{
		Name:      req.Name,
		IsPrivate: req.IsPrivate,
	})
	if err != nil {
		problem.Write(w, r, http.StatusBadRequest, problem.CodeValidation, "create channel failed", err, h.Env)
		return
	}

	writeJSON(w, http.StatusCreated, toChannelResponse(channel))
}

func (h *ChannelsHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.Service.List(r.Context())
	if err != nil {
		problem.Write(w, r, http.StatusInternalServerError, problem.CodeInternal, "list channels failed", err, h.Env)
		return
	}

	out := make([]channelResponse, 0, len(items))
	for i := range items {
		out = append(out, toChannelResponse(&items[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

func (h *ChannelsHandler) Get(w http.ResponseWriter, r *http.Request) {
	channel, err := h.Service.Get(r.Context(), pathParam(r, "id"))
	if err != nil {
		if errors.Is(err, channels.ErrNotFound) {
			problem.Write(w, r, http.StatusNotFound, problem.CodeNotFound, "channel not found", err, h.Env)
			return
		}
		problem.Write(w, r, http.StatusInternalServerError, problem.CodeInternal, "get channel failed", err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, toChannelResponse(channel))
}

type postMessageRequest struct {
	Body string `json:"body" validate:"required,max=10000"`
}

func (h *ChannelsHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	var req postMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		problem.Write(w, r, http.StatusBadRequest, problem.CodeValidation, "invalid request", err, h.Env)
		return
	}

	message, err := h.Service.PostMessage(r.Context(), pathParam(r, "id"), req.Body)
	if err != nil {
		if errors.Is(err, channels.ErrNotFound) {
			problem.Write(w, r, http.StatusNotFound, problem.CodeNotFound, "channel not found", err, h.Env)
			return
		}
		problem.Write(w, r, http.StatusBadRequest, problem.CodeValidation, "post message failed", err, h.Env)
		return
	}

	writeJSON(w, http.StatusCreated, toMessageResponse(message))
}

func (h *ChannelsHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}

	items, err := h.Service.ListMessages(r.Context(), pathParam(r, "id"), limit)
	if err != nil {
		if errors.Is(err, channels.ErrNotFound) {
			problem.Write(w, r, http.StatusNotFound, problem.CodeNotFound, "channel not found", err, h.Env)
			return
		}
		problem.Write(w, r, http.StatusInternalServerError, problem.CodeInternal, "list messages failed", err, h.Env)
		return
	}

	out := make([]messageResponse, 0, len(items))
	for i := range items {
		out = append(out, toMessageResponse(&items[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}
