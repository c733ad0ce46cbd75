package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/clinvera/regflow/internal/application/port"
	"github.com/clinvera/regflow/internal/application/service"
	"github.com/clinvera/regflow/internal/domain/entity"
	domainwf "github.com/clinvera/regflow/internal/domain/workflow"
	"github.com/clinvera/regflow/internal/report"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	workflowService   service.WorkflowService
	taskService       service.TaskService
	templateService   service.TemplateService
	approvalService   service.ApprovalService
	aggregatorService service.AggregatorService
	exporter          *report.ExcelExporter
	logger            Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	workflowService service.WorkflowService,
	taskService service.TaskService,
	templateService service.TemplateService,
	approvalService service.ApprovalService,
	aggregatorService service.AggregatorService,
	exporter *report.ExcelExporter,
	logger Logger,
) *Handlers {
	return &Handlers{
		workflowService:   workflowService,
		taskService:       taskService,
		templateService:   templateService,
		approvalService:   approvalService,
		aggregatorService: aggregatorService,
		exporter:          exporter,
		logger:            logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// CreateWorkflowRequest is the body of POST /api/workflows
type CreateWorkflowRequest struct {
	Name           string     `json:"name" binding:"required"`
	Type           string     `json:"type" binding:"required"`
	Description    string     `json:"description"`
	ModuleID       string     `json:"module_id" binding:"required"`
	OrganizationID string     `json:"organization_id" binding:"required"`
	ProjectID      string     `json:"project_id"`
	CreatedBy      string     `json:"created_by" binding:"required"`
	DueDate        *time.Time `json:"due_date"`
}

// UpdateWorkflowRequest is the body of PATCH /api/workflows/:id
type UpdateWorkflowRequest struct {
	Name            *string    `json:"name"`
	Description     *string    `json:"description"`
	DueDate         *time.Time `json:"due_date"`
	Status          *string    `json:"status"`
	ExpectedVersion int64      `json:"expected_version"`
}

// TransitionRequest carries optimistic concurrency data for status moves
type TransitionRequest struct {
	ExpectedVersion int64  `json:"expected_version"`
	Reason          string `json:"reason"`
}

// SubmitForReviewRequest is the body of POST /api/workflows/:id/submit
type SubmitForReviewRequest struct {
	Reviewers       []string `json:"reviewers" binding:"required"`
	ExpectedVersion int64    `json:"expected_version"`
}

// ReviewRequest is the body of POST /api/workflows/:id/reviews
type ReviewRequest struct {
	ReviewerID string `json:"reviewer_id" binding:"required"`
	Decision   string `json:"decision" binding:"required"`
	Comment    string `json:"comment"`
}

// CreateTaskRequest is the body of POST /api/workflows/:id/tasks
type CreateTaskRequest struct {
	Name        string     `json:"name" binding:"required"`
	Description string     `json:"description"`
	Order       int        `json:"order"`
	AssignedTo  string     `json:"assigned_to"`
	DueDate     *time.Time `json:"due_date"`
}

// UpdateTaskRequest is the body of PATCH /api/tasks/:id
type UpdateTaskRequest struct {
	Name        *string    `json:"name"`
	Description *string    `json:"description"`
	Status      *string    `json:"status"`
	AssignedTo  *string    `json:"assigned_to"`
	DueDate     *time.Time `json:"due_date"`
}

// CompleteTaskRequest is the body of POST /api/tasks/:id/complete
type CompleteTaskRequest struct {
	CompletedBy string `json:"completed_by" binding:"required"`
	Note        string `json:"note"`
}

// AssignTaskRequest is the body of POST /api/tasks/:id/assign
type AssignTaskRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// InstantiateTemplateRequest is the body of POST /api/templates/:id/instantiate
type InstantiateTemplateRequest struct {
	Name              string            `json:"name"`
	Description       string            `json:"description"`
	ModuleID          string            `json:"module_id" binding:"required"`
	OrganizationID    string            `json:"organization_id" binding:"required"`
	ProjectID         string            `json:"project_id"`
	CreatedBy         string            `json:"created_by" binding:"required"`
	DueDate           *time.Time        `json:"due_date"`
	AssigneeOverrides map[string]string `json:"assignee_overrides"`
}

// InstantiateTemplateResponse pairs the new workflow with its seeded tasks
type InstantiateTemplateResponse struct {
	Workflow *entity.Workflow `json:"workflow"`
	Tasks    []*entity.Task   `json:"tasks"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   "1.0.0",
		},
	})
}

// CreateWorkflow handles POST /api/workflows
func (h *Handlers) CreateWorkflow(c *gin.Context) {
	var req CreateWorkflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	w, err := h.workflowService.Create(c.Request.Context(), service.CreateWorkflowInput{
		Name:           req.Name,
		Type:           entity.WorkflowType(req.Type),
		Description:    req.Description,
		ModuleID:       req.ModuleID,
		OrganizationID: req.OrganizationID,
		ProjectID:      req.ProjectID,
		CreatedBy:      req.CreatedBy,
		DueDate:        req.DueDate,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: w})
}

// GetWorkflow handles GET /api/workflows/:id
func (h *Handlers) GetWorkflow(c *gin.Context) {
	w, err := h.workflowService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: w})
}

// ListWorkflows handles GET /api/workflows
func (h *Handlers) ListWorkflows(c *gin.Context) {
	filter := port.WorkflowFilter{
		ModuleID:       c.Query("module_id"),
		OrganizationID: c.Query("organization_id"),
		ProjectID:      c.Query("project_id"),
		CreatedBy:      c.Query("created_by"),
		Status:         entity.Status(c.Query("status")),
		Type:           entity.WorkflowType(c.Query("type")),
	}

	workflows, err := h.workflowService.List(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: workflows})
}

// UpdateWorkflow handles PATCH /api/workflows/:id
func (h *Handlers) UpdateWorkflow(c *gin.Context) {
	var req UpdateWorkflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	patch := service.WorkflowPatch{
		Name:        req.Name,
		Description: req.Description,
		DueDate:     req.DueDate,
	}
	if req.Status != nil {
		status := entity.Status(*req.Status)
		patch.Status = &status
	}

	w, err := h.workflowService.Update(c.Request.Context(), c.Param("id"), patch, req.ExpectedVersion)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: w})
}

// StartWorkflow handles POST /api/workflows/:id/start
func (h *Handlers) StartWorkflow(c *gin.Context) {
	h.transition(c, h.workflowService.Start)
}

// HoldWorkflow handles POST /api/workflows/:id/hold
func (h *Handlers) HoldWorkflow(c *gin.Context) {
	h.transition(c, h.workflowService.Hold)
}

// ResumeWorkflow handles POST /api/workflows/:id/resume
func (h *Handlers) ResumeWorkflow(c *gin.Context) {
	h.transition(c, h.workflowService.Resume)
}

// CancelWorkflow handles POST /api/workflows/:id/cancel
func (h *Handlers) CancelWorkflow(c *gin.Context) {
	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	w, err := h.workflowService.Cancel(c.Request.Context(), c.Param("id"), req.Reason, req.ExpectedVersion)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: w})
}

// DeleteWorkflow handles DELETE /api/workflows/:id
func (h *Handlers) DeleteWorkflow(c *gin.Context) {
	if err := h.workflowService.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true})
}

// SubmitForReview handles POST /api/workflows/:id/submit
func (h *Handlers) SubmitForReview(c *gin.Context) {
	var req SubmitForReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	w, err := h.approvalService.SubmitForReview(c.Request.Context(), c.Param("id"), req.Reviewers, req.ExpectedVersion)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: w})
}

// ReviewWorkflow handles POST /api/workflows/:id/reviews
func (h *Handlers) ReviewWorkflow(c *gin.Context) {
	var req ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	w, err := h.approvalService.Review(c.Request.Context(), c.Param("id"), service.ReviewInput{
		ReviewerID: req.ReviewerID,
		Decision:   req.Decision,
		Comment:    req.Comment,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: w})
}

// ListReviews handles GET /api/workflows/:id/reviews
func (h *Handlers) ListReviews(c *gin.Context) {
	reviews, err := h.approvalService.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: reviews})
}

// CreateTask handles POST /api/workflows/:id/tasks
func (h *Handlers) CreateTask(c *gin.Context) {
	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	t, err := h.taskService.Create(c.Request.Context(), c.Param("id"), service.CreateTaskInput{
		Name:        req.Name,
		Description: req.Description,
		Order:       req.Order,
		AssignedTo:  req.AssignedTo,
		DueDate:     req.DueDate,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: t})
}

// ListTasks handles GET /api/workflows/:id/tasks
func (h *Handlers) ListTasks(c *gin.Context) {
	tasks, err := h.taskService.ListByWorkflow(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: tasks})
}

// GetTask handles GET /api/tasks/:id
func (h *Handlers) GetTask(c *gin.Context) {
	t, err := h.taskService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: t})
}

// UpdateTask handles PATCH /api/tasks/:id
func (h *Handlers) UpdateTask(c *gin.Context) {
	var req UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	patch := service.TaskPatch{
		Name:        req.Name,
		Description: req.Description,
		AssignedTo:  req.AssignedTo,
		DueDate:     req.DueDate,
	}
	if req.Status != nil {
		status := entity.TaskStatus(*req.Status)
		patch.Status = &status
	}

	t, err := h.taskService.Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: t})
}

// CompleteTask handles POST /api/tasks/:id/complete
func (h *Handlers) CompleteTask(c *gin.Context) {
	var req CompleteTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	t, err := h.taskService.Complete(c.Request.Context(), c.Param("id"), service.CompleteTaskInput{
		CompletedBy: req.CompletedBy,
		Note:        req.Note,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: t})
}

// AssignTask handles POST /api/tasks/:id/assign
func (h *Handlers) AssignTask(c *gin.Context) {
	var req AssignTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	t, err := h.taskService.Assign(c.Request.Context(), c.Param("id"), req.UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: t})
}

// DeleteTask handles DELETE /api/tasks/:id
func (h *Handlers) DeleteTask(c *gin.Context) {
	if err := h.taskService.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true})
}

// ListTemplates handles GET /api/templates
func (h *Handlers) ListTemplates(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    h.templateService.ListTemplates(c.Request.Context()),
	})
}

// InstantiateTemplate handles POST /api/templates/:id/instantiate
func (h *Handlers) InstantiateTemplate(c *gin.Context) {
	var req InstantiateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	w, tasks, err := h.templateService.CreateFromTemplate(c.Request.Context(), c.Param("id"), service.InstantiateInput{
		Name:              req.Name,
		Description:       req.Description,
		ModuleID:          req.ModuleID,
		OrganizationID:    req.OrganizationID,
		ProjectID:         req.ProjectID,
		CreatedBy:         req.CreatedBy,
		DueDate:           req.DueDate,
		AssigneeOverrides: req.AssigneeOverrides,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    InstantiateTemplateResponse{Workflow: w, Tasks: tasks},
	})
}

// ProjectStatus handles GET /api/projects/:id/status
func (h *Handlers) ProjectStatus(c *gin.Context) {
	status, err := h.aggregatorService.CrossModuleStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: status})
}

// ExportProjectStatus handles GET /api/projects/:id/status/export
func (h *Handlers) ExportProjectStatus(c *gin.Context) {
	projectID := c.Param("id")

	status, err := h.aggregatorService.CrossModuleStatus(c.Request.Context(), projectID)
	if err != nil {
		h.fail(c, err)
		return
	}
	workflows, err := h.workflowService.List(c.Request.Context(), port.WorkflowFilter{ProjectID: projectID})
	if err != nil {
		h.fail(c, err)
		return
	}

	filename := fmt.Sprintf("project-status-%s.xlsx", projectID)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := h.exporter.WriteProjectStatus(c.Writer, status, workflows); err != nil {
		h.logger.Error("Failed to export project status", "error", err, "project_id", projectID)
	}
}

// UserTasks handles GET /api/users/:id/tasks
func (h *Handlers) UserTasks(c *gin.Context) {
	filter := port.TaskFilter{Status: entity.TaskStatus(c.Query("status"))}

	tasks, err := h.aggregatorService.UserTasks(c.Request.Context(), c.Param("id"), filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: tasks})
}

// transition is the shared handler for parameterless status moves
func (h *Handlers) transition(c *gin.Context, fn func(ctx context.Context, id string, expectedVersion int64) (*entity.Workflow, error)) {
	var req TransitionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.badRequest(c, err)
			return
		}
	}

	w, err := fn(c.Request.Context(), c.Param("id"), req.ExpectedVersion)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: w})
}

// badRequest reports a malformed request body
func (h *Handlers) badRequest(c *gin.Context, err error) {
	h.logger.Error("Invalid request body", "error", err, "path", c.FullPath())
	c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request: " + err.Error()})
}

// fail maps service errors to HTTP status codes
func (h *Handlers) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, entity.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, entity.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, entity.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, domainwf.ErrInvalidTransition), errors.Is(err, domainwf.ErrGuardFailed):
		status = http.StatusUnprocessableEntity
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", "error", err, "path", c.FullPath())
	}
	c.JSON(status, Response{Success: false, Error: err.Error()})
}
