package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/taskmanager/task-api/internal/core/domain"
	"github.com/taskmanager/task-api/internal/core/ports"
)

const headerIdempotencyKey = "Idempotency-Key"

// TaskHandler handles HTTP requests for task operations. Every route runs
// behind the Auth middleware; the owner always comes from the token.
type TaskHandler struct {
	service ports.TaskService
}

func NewTaskHandler(service ports.TaskService) *TaskHandler {
	return &TaskHandler{service: service}
}

// List handles GET /api/tasks.
//
// @Summary      List the caller's tasks
// @Tags         tasks
// @Produce      json
// @Security     BearerAuth
// @Param        completed  query     bool  false  "Only tasks with this completion flag"
// @Success      200        {array}   taskResponse
// @Failure      400        {object}  errorResponse
// @Failure      401        {object}  errorResponse
// @Failure      403        {object}  errorResponse
// @Router       /api/tasks [get]
func (h *TaskHandler) List(c echo.Context) error {
	id, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	var completed *bool
	if raw := c.QueryParam("completed"); raw != "" {
		flag, err := parseCompleted(raw)
		if err != nil {
			return err
		}
		completed = &flag
	}

	tasks, err := h.service.List(c.Request().Context(), id, completed)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toTaskResponses(tasks))
}

// ListByStatus handles GET /api/tasks/status.
//
// @Summary      List the caller's tasks by completion flag
// @Tags         tasks
// @Produce      json
// @Security     BearerAuth
// @Param        completed  query     bool  true  "Completion flag"
// @Success      200        {array}   taskResponse
// @Failure      400        {object}  errorResponse
// @Failure      401        {object}  errorResponse
// @Failure      403        {object}  errorResponse
// @Router       /api/tasks/status [get]
func (h *TaskHandler) ListByStatus(c echo.Context) error {
	id, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	flag, err := parseCompleted(c.QueryParam("completed"))
	if err != nil {
		return err
	}

	tasks, err := h.service.List(c.Request().Context(), id, &flag)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toTaskResponses(tasks))
}

// Get handles GET /api/tasks/:id.
//
// @Summary      Get one of the caller's tasks
// @Tags         tasks
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Task ID"
// @Success      200  {object}  taskResponse
// @Failure      401  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /api/tasks/{id} [get]
func (h *TaskHandler) Get(c echo.Context) error {
	id, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	task, err := h.service.Get(c.Request().Context(), id, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toTaskResponse(task))
}

// Create handles POST /api/tasks.
//
// @Summary      Create a task
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        Idempotency-Key  header    string             false  "Replays of the same key return the task created first"
// @Param        body             body      createTaskRequest  true   "Task"
// @Success      201              {object}  taskResponse
// @Failure      400              {object}  errorResponse
// @Failure      401              {object}  errorResponse
// @Failure      403              {object}  errorResponse
// @Failure      409              {object}  errorResponse
// @Router       /api/tasks [post]
func (h *TaskHandler) Create(c echo.Context) error {
	id, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	var req createTaskRequest
	if err := c.Bind(&req); err != nil {
		return fmt.Errorf("%w: invalid payload", domain.ErrValidation)
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	task, err := h.service.Create(c.Request().Context(), id, toCreateInput(req, c.Request().Header.Get(headerIdempotencyKey)))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toTaskResponse(task))
}

// Update handles PUT /api/tasks/:id.
//
// @Summary      Update a task
// @Description  Partial update; omitted fields keep their current value.
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string             true  "Task ID"
// @Param        body  body      updateTaskRequest  true  "Fields to change"
// @Success      200   {object}  taskResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Router       /api/tasks/{id} [put]
func (h *TaskHandler) Update(c echo.Context) error {
	id, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	var req updateTaskRequest
	if err := c.Bind(&req); err != nil {
		return fmt.Errorf("%w: invalid payload", domain.ErrValidation)
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	task, err := h.service.Update(c.Request().Context(), id, c.Param("id"), toTaskPatch(req))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toTaskResponse(task))
}

// Toggle handles PATCH /api/tasks/:id/toggle.
//
// @Summary      Flip a task's completion flag
// @Tags         tasks
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Task ID"
// @Success      200  {object}  taskResponse
// @Failure      401  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Failure      409  {object}  errorResponse
// @Router       /api/tasks/{id}/toggle [patch]
func (h *TaskHandler) Toggle(c echo.Context) error {
	id, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	task, err := h.service.Toggle(c.Request().Context(), id, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toTaskResponse(task))
}

// Delete handles DELETE /api/tasks/:id.
//
// @Summary      Delete a task
// @Tags         tasks
// @Security     BearerAuth
// @Param        id  path  string  true  "Task ID"
// @Success      204
// @Failure      401  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /api/tasks/{id} [delete]
func (h *TaskHandler) Delete(c echo.Context) error {
	id, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	if err := h.service.Delete(c.Request().Context(), id, c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// parseCompleted accepts the usual boolean spellings ("true", "false", "1", "0").
func parseCompleted(raw string) (bool, error) {
	if raw == "" {
		return false, fmt.Errorf("%w: completed query parameter is required", domain.ErrValidation)
	}
	flag, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w: completed must be true or false", domain.ErrValidation)
	}
	return flag, nil
}
