package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/relayworks/server/internal/api/problem"
	"github.com/relayworks/server/internal/domain/projects"
)

type ProjectsHandler struct {
	Service *projects.Service
	Env     string
}

func NewProjectsHandler(service *projects.Service, env string) *ProjectsHandler {
	return &ProjectsHandler{Service: service, Env: env}
}

type projectResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toProjectResponse(p *projects.Project) projectResponse {
	return projectResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		CreatedBy:   p.CreatedBy,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

type createProjectRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description,omitempty" validate:"max=2000"`
}

func (h *ProjectsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := decodeJSON(r, &req); err != nil {
		problem.Write(w, r, http.StatusBadRequest, problem.CodeValidation, "invalid request", err, h.Env)
		return
	}

	project, err := h.Service.Create(r.Context(), projects.CreateParams{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		problem.Write(w, r, http.StatusBadRequest, problem.CodeValidation, "create project failed", err, h.Env)
		return
	}

	writeJSON(w, http.StatusCreated, toProjectResponse(project))
}

func (h *ProjectsHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.Service.List(r.Context())
	if err != nil {
		problem.Write(w, r, http.StatusInternalServerError, problem.CodeInternal, "list projects failed", err, h.Env)
		return
	}

	out := make([]projectResponse, 0, len(items))
	for i := range items {
		out = append(out, toProjectResponse(&items[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

func (h *ProjectsHandler) Get(w http.ResponseWriter, r *http.Request) {
	project, err := h.Service.Get(r.Context(), pathParam(r, "id"))
	if err != nil {
		if errors.Is(err, projects.ErrNotFound) {
			problem.Write(w, r, http.StatusNotFound, problem.CodeNotFound, "project not found", err, h.Env)
			return
		}
		problem.Write(w, r, http.StatusInternalServerError, problem.CodeInternal, "get project failed", err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, toProjectResponse(project))
}

type updateProjectRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

func (h *ProjectsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateProjectRequest
	if err := decodeJSON(r, &req); err != nil {
		problem.Write(w, r, http.StatusBadRequest, problem.CodeValidation, "invalid request", err, h.Env)
		return
	}

	project, err := h.Service.Update(r.Context(), pathParam(r, "id"), projects.UpdateParams{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		if errors.Is(err, projects.ErrNotFound) {
			problem.Write(w, r, http.StatusNotFound, problem.CodeNotFound, "project not found", err, h.Env)
			return
		}
		problem.Write(w, r, http.StatusInternalServerError, problem.CodeInternal, "update project failed", err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, toProjectResponse(project))
}

func (h *ProjectsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.Delete(r.Context(), pathParam(r, "id")); err != nil {
		if errors.Is(err, projects.ErrNotFound) {
			problem.Write(w, r, http.StatusNotFound, problem.CodeNotFound, "project not found", err, h.Env)
			return
		}
		problem.Write(w, r, http.StatusInternalServerError, problem.CodeInternal, "delete project failed", err, h.Env)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
