package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relayworks/server/internal/domain/ids"
	"github.com/relayworks/server/internal/domain/tasks"
)

type stubTaskRepo struct {
	tasks     map[string]tasks.Task
	assignees map[string][]string
}

func newStubTaskRepo() *stubTaskRepo {
	return &stubTaskRepo{
		tasks:     make(map[string]tasks.Task),
		assignees: make(map[string][]string),
	}
}

func (r *stubTaskRepo) Create(ctx context.Context, task tasks.Task) (*tasks.Task, error) {
	r.tasks[task.ID] = task
	return &task, nil
}

func (r *stubTaskRepo) GetByID(ctx context.Context, id string) (*tasks.Task, error) {
	task, ok := r.tasks[id]
	if !ok {
		return nil, tasks.ErrNotFound
	}
	return &task, nil
}

func (r *stubTaskRepo) ListByProject(ctx context.Context, projectID string) ([]tasks.Task, error) {
	var out []tasks.Task
	for _, task := range r.tasks {
		if task.ProjectID == projectID {
			out = append(out, task)
		}
	}
	return out, nil
}

func (r *stubTaskRepo) UpdateStatus(ctx context.Context, id, status string) (*tasks.Task, error) {
	task, ok := r.tasks[id]
	if !ok {
		return nil, tasks.ErrNotFound
	}
	task.Status = status
	r.tasks[id] = task
	return &task, nil
}

func (r *stubTaskRepo) Assign(ctx context.Context, taskID, userID string) error {
	if _, ok := r.tasks[taskID]; !ok {
		return tasks.ErrNotFound
	}
	r.assignees[taskID] = append(r.assignees[taskID], userID)
	return nil
}

func (r *stubTaskRepo) Unassign(ctx context.Context, taskID, userID string) error {
	if _, ok := r.tasks[taskID]; !ok {
		return tasks.ErrNotFound
	}
	return nil
}

func (r *stubTaskRepo) Assignees(ctx context.Context, taskID string) ([]string, error) {
	return r.assignees[taskID], nil
}

func newTasksHandler() (*TasksHandler, *stubTaskRepo) {
	repo := newStubTaskRepo()
	service := tasks.NewService(repo, nopPublisher{}, zerolog.Nop())
	return NewTasksHandler(service, "test"), repo
}

func createTaskForTest(t *testing.T, handler *TasksHandler) taskResponse {
	t.Helper()
	projectID, err := ids.NewULID()
	require.NoError(t, err)

	req := scopedRequest(http.MethodPost, "/api/v1/projects/"+projectID+"/tasks", `{"title":"ship it"}`)
	req.SetPathValue("id", projectID)
	w := httptest.NewRecorder()
	handler.Create(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp taskResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func TestTasksCreate(t *testing.T) {
	handler, _ := newTasksHandler()

	task := createTaskForTest(t, handler)
	assert.NotEmpty(t, task.ID)
	assert.Equal(t, "ship it", task.Title)
	assert.Equal(t, tasks.StatusOpen, task.Status)
}

func TestTasksCreateRequiresTitle(t *testing.T) {
	handler, _ := newTasksHandler()

	projectID, err := ids.NewULID()
	require.NoError(t, err)

	req := scopedRequest(http.MethodPost, "/api/v1/projects/"+projectID+"/tasks", `{}`)
	req.SetPathValue("id", projectID)
	w := httptest.NewRecorder()
	handler.Create(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeProblem(t, w)
	assert.Equal(t, "VALIDATION_FAILED", body["code"])
}

func TestTasksUpdateStatus(t *testing.T) {
	handler, _ := newTasksHandler()
	task := createTaskForTest(t, handler)

	req := scopedRequest(http.MethodPatch, "/api/v1/tasks/"+task.ID+"/status", `{"status":"done"}`)
	req.SetPathValue("id", task.ID)
	w := httptest.NewRecorder()
	handler.UpdateStatus(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var updated taskResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&updated))
	assert.Equal(t, tasks.StatusDone, updated.Status)
}

func TestTasksUpdateStatusRejectsUnknown(t *testing.T) {
	handler, _ := newTasksHandler()
	task := createTaskForTest(t, handler)

	req := scopedRequest(http.MethodPatch, "/api/v1/tasks/"+task.ID+"/status", `{"status":"abandoned"}`)
	req.SetPathValue("id", task.ID)
	w := httptest.NewRecorder()
	handler.UpdateStatus(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeProblem(t, w)
	assert.Equal(t, "VALIDATION_FAILED", body["code"])
}

func TestTasksAssign(t *testing.T) {
	handler, repo := newTasksHandler()
	task := createTaskForTest(t, handler)

	req := scopedRequest(http.MethodPost, "/api/v1/tasks/"+task.ID+"/assignees", `{"user_id":"u2"}`)
	req.SetPathValue("id", task.ID)
	w := httptest.NewRecorder()
	handler.Assign(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []string{"u2"}, repo.assignees[task.ID])
}

func TestTasksGetNotFound(t *testing.T) {
	handler, _ := newTasksHandler()

	id, err := ids.NewULID()
	require.NoError(t, err)

	req := scopedRequest(http.MethodGet, "/api/v1/tasks/"+id, "")
	req.SetPathValue("id", id)
	w := httptest.NewRecorder()
	handler.Get(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
