package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/relayworks/server/internal/api/problem"
	"github.com/relayworks/server/internal/domain/notifications"
)

type NotificationsHandler struct {
	Repo notifications.Repository
	Env  string
}

func NewNotificationsHandler(repo notifications.Repository, env string) *NotificationsHandler {
	return &NotificationsHandler{Repo: repo, Env: env}
}

type notificationResponse struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	ReadAt    *time.Time      `json:"read_at,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

func (h *NotificationsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}

	items, err := h.Repo.ListForUser(r.Context(), limit)
	if err != nil {
		problem.Write(w, r, http.StatusInternalServerError, problem.CodeInternal, "list notifications failed", err, h.Env)
		return
	}

	out := make([]notificationResponse, 0, len(items))
	for _, n := range items {
		out = append(out, notificationResponse{
			ID:        n.ID,
			Kind:      n.Kind,
			Payload:   json.RawMessage(n.Payload),
			ReadAt:    n.ReadAt,
			CreatedAt: n.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

func (h *NotificationsHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	if err := h.Repo.MarkRead(r.Context(), pathParam(r, "id")); err != nil {
		if errors.Is(err, notifications.ErrNotFound) {
			problem.Write(w, r, http.StatusNotFound, problem.CodeNotFound, "notification not found", err, h.Env)
			return
		}
		problem.Write(w, r, http.StatusInternalServerError, problem.CodeInternal, "mark notification read failed", err, h.Env)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
