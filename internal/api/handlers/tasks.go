package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/relayworks/server/internal/api/problem"
	"github.com/relayworks/server/internal/domain/tasks"
)

type TasksHandler struct {
	Service *tasks.Service
	Env     string
}

func NewTasksHandler(service *tasks.Service, env string) *TasksHandler {
	return &TasksHandler{Service: service, Env: env}
}

type taskResponse struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Title     string    `json:"title"`
	Status    string    `json:"status"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toTaskResponse(t *tasks.Task) taskResponse {
	return taskResponse{
		ID:        t.ID,
		ProjectID: t.ProjectID,
		Title:     t.Title,
		Status:    t.Status,
		CreatedBy: t.CreatedBy,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

type createTaskRequest struct {
	Title string `json:"title" validate:"required,max=500"`
}

func (h *TasksHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		problem.Write(w, r, http.StatusBadRequest, problem.CodeValidation, "invalid request", err, h.Env)
		return
	}

	task, err := h.Service.Create(r.Context(), tasks.CreateParams{
		ProjectID: pathParam(r, "id"),
		Title:     req.Title,
	})
	if err != nil {
		if errors.Is(err, tasks.ErrNotFound) {
			problem.Write(w, r, http.StatusNotFound, problem.CodeNotFound, "project not found", err, h.Env)
			return
		}
		problem.Write(w, r, http.StatusBadRequest, problem.CodeValidation, "create task failed", err, h.Env)
		return
	}

	writeJSON(w, http.StatusCreated, toTaskResponse(task))
}

func (h *TasksHandler) ListByProject(w http.ResponseWriter, r *http.Request) {
	items, err := h.Service.ListByProject(r.Context(), pathParam(r, "id"))
	if err != nil {
		if errors.Is(err, tasks.ErrNotFound) {
			problem.Write(w, r, http.StatusNotFound, problem.CodeNotFound, "project not found", err, h.Env)
			return
		}
		problem.Write(w, r, http.StatusInternalServerError, problem.CodeInternal, "list tasks failed", err, h.Env)
		return
	}

	out := make([]taskResponse, 0, len(items))
	for i := range items {
		out = append(out, toTaskResponse(&items[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

func (h *TasksHandler) Get(w http.ResponseWriter, r *http.Request) {
	task, err := h.Service.Get(r.Context(), pathParam(r, "id"))
	if err != nil {
		if errors.Is(err, tasks.ErrNotFound) {
			problem.Write(w, r, http.StatusNotFound, problem.CodeNotFound, "task not found", err, h.Env)
			return
		}
		problem.Write(w, r, http.StatusInternalServerError, problem.CodeInternal, "get task failed", err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, toTaskResponse(task))
}

type updateTaskStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

func (h *TasksHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateTaskStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		problem.Write(w, r, http.StatusBadRequest, problem.CodeValidation, "invalid request", err, h.Env)
		return
	}

	task, err := h.Service.UpdateStatus(r.Context(), pathParam(r, "id"), req.Status)
	if err != nil {
		if errors.Is(err, tasks.ErrNotFound) {
			problem.Write(w, r, http.StatusNotFound, problem.CodeNotFound, "task not found", err, h.Env)
			return
		}
		problem.Write(w, r, http.StatusBadRequest, problem.CodeValidation, "update task failed", err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, toTaskResponse(task))
}

type assignTaskRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

func (h *TasksHandler) Assign(w http.ResponseWriter, r *http.Request) {
	var req assignTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		problem.Write(w, r, http.StatusBadRequest, problem.CodeValidation, "invalid request", err, h.Env)
		return
	}

	if err := h.Service.Assign(r.Context(), pathParam(r, "id"), req.UserID); err != nil {
		if errors.Is(err, tasks.ErrNotFound) {
			problem.Write(w, r, http.StatusNotFound, problem.CodeNotFound, "task not found", err, h.Env)
			return
		}
		problem.Write(w, r, http.StatusInternalServerError, problem.CodeInternal, "assign task failed", err, h.Env)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TasksHandler) Unassign(w http.ResponseWriter, r *http.Request) {
	var req assignTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		problem.Write(w, r, http.StatusBadRequest, problem.CodeValidation, "invalid request", err, h.Env)
		return
	}

	if err := h.Service.Unassign(r.Context(), pathParam(r, "id"), req.UserID); err != nil {
		if errors.Is(err, tasks.ErrNotFound) {
			problem.Write(w, r, http.StatusNotFound, problem.CodeNotFound, "task not found", err, h.Env)
			return
		}
		problem.Write(w, r, http.StatusInternalServerError, problem.CodeInternal, "unassign task failed", err, h.Env)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
