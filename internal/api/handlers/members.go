package handlers

import (
	"errors"
	"net/http"

	"github.com/relayworks/server/internal/api/problem"
	"github.com/relayworks/server/internal/domain/tenants"
	"github.com/relayworks/server/internal/tenant"
)

type MembersHandler struct {
	Service *tenants.Service
	Env     string
}

func NewMembersHandler(service *tenants.Service, env string) *MembersHandler {
	return &MembersHandler{Service: service, Env: env}
}

type addMemberRequest struct {
	UserID string `json:"user_id" validate:"required"`
	Role   string `json:"role" validate:"omitempty,oneof=viewer member admin owner"`
}

func (h *MembersHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req addMemberRequest
	if err := decodeJSON(r, &req); err != nil {
		problem.Write(w, r, http.StatusBadRequest, problem.CodeValidation, "invalid request", err, h.Env)
		return
	}
	if req.Role == "" {
		req.Role = tenant.RoleMember
	}

	if err := h.Service.AddMember(r.Context(), req.UserID, req.Role); err != nil {
		switch {
		case errors.Is(err, tenants.ErrForbidden):
			problem.Write(w, r, http.StatusForbidden, problem.CodeValidation, "insufficient role", err, h.Env)
		case errors.Is(err, tenants.ErrMemberExists):
			problem.Write(w, r, http.StatusConflict, problem.CodeValidation, "already a member", err, h.Env)
		default:
			problem.Write(w, r, http.StatusInternalServerError, problem.CodeInternal, "add member failed", err, h.Env)
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *MembersHandler) Remove(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.RemoveMember(r.Context(), pathParam(r, "id")); err != nil {
		switch {
		case errors.Is(err, tenants.ErrForbidden):
			problem.Write(w, r, http.StatusForbidden, problem.CodeValidation, "insufficient role", err, h.Env)
		case errors.Is(err, tenants.ErrNotMember):
			problem.Write(w, r, http.StatusNotFound, problem.CodeNotFound, "member not found", err, h.Env)
		default:
			problem.Write(w, r, http.StatusInternalServerError, problem.CodeInternal, "remove member failed", err, h.Env)
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
