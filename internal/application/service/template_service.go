package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinvera/regflow/internal/application/bus"
	"github.com/clinvera/regflow/internal/application/port"
	"github.com/clinvera/regflow/internal/domain/entity"
	"github.com/clinvera/regflow/internal/domain/event"
)

// InstantiateInput is the caller-supplied data merged over a template's
// defaults. AssigneeOverrides is keyed by blueprint name and wins over the
// blueprint's default assignee.
type InstantiateInput struct {
	Name              string
	Description       string
	ModuleID          string
	OrganizationID    string
	ProjectID         string
	CreatedBy         string
	DueDate           *time.Time
	AssigneeOverrides map[string]string
}

// TemplateService expands a reusable template into a new workflow plus its
// initial ordered task set
type TemplateService interface {
	// CreateFromTemplate instantiates templateID atomically: either the
	// workflow and every blueprint task are created, or nothing is
	CreateFromTemplate(ctx context.Context, templateID string, in InstantiateInput) (*entity.Workflow, []*entity.Task, error)

	// ListTemplates returns the registered templates
	ListTemplates(ctx context.Context) []*entity.Template
}

type templateServiceImpl struct {
	registry     port.TemplateRegistry
	workflowRepo port.WorkflowRepository
	taskRepo     port.TaskRepository
	txManager    port.TransactionManager
	bus          bus.EventBus
	logger       Logger
}

// NewTemplateService creates a new TemplateService
func NewTemplateService(
	registry port.TemplateRegistry,
	workflowRepo port.WorkflowRepository,
	taskRepo port.TaskRepository,
	txManager port.TransactionManager,
	eventBus bus.EventBus,
	logger Logger,
) TemplateService {
	return &templateServiceImpl{
		registry:     registry,
		workflowRepo: workflowRepo,
		taskRepo:     taskRepo,
		txManager:    txManager,
		bus:          eventBus,
		logger:       logger,
	}
}

// CreateFromTemplate instantiates a template into a workflow and its tasks
func (s *templateServiceImpl) CreateFromTemplate(ctx context.Context, templateID string, in InstantiateInput) (*entity.Workflow, []*entity.Task, error) {
	tpl, err := s.registry.Get(templateID)
	if err != nil {
		return nil, nil, err
	}

	name := in.Name
	if name == "" {
		name = tpl.Name
	}

	now := time.Now()
	w := &entity.Workflow{
		ID:             uuid.NewString(),
		Name:           name,
		Type:           tpl.Type,
		Description:    in.Description,
		Status:         entity.StatusNotStarted,
		Progress:       0,
		StartDate:      now,
		DueDate:        in.DueDate,
		CreatedBy:      in.CreatedBy,
		OrganizationID: in.OrganizationID,
		ModuleID:       in.ModuleID,
		ProjectID:      in.ProjectID,
		CreatedAt:      now,
		UpdatedAt:      now,
		Version:        1,
	}

	if err := w.Validate(); err != nil {
		return nil, nil, err
	}

	tasks := make([]*entity.Task, 0, len(tpl.Blueprints))
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.workflowRepo.Create(txCtx, w); err != nil {
			return fmt.Errorf("create workflow from template: %w", err)
		}

		for i, bp := range tpl.Blueprints {
			assignee := bp.DefaultAssignee
			if override, ok := in.AssigneeOverrides[bp.Name]; ok {
				assignee = override
			}

			t := &entity.Task{
				ID:          uuid.NewString(),
				WorkflowID:  w.ID,
				Name:        bp.Name,
				Description: bp.Description,
				Status:      entity.TaskNotStarted,
				Order:       i + 1,
				AssignedTo:  assignee,
				CreatedAt:   time.Now(),
			}

			if err := t.Validate(); err != nil {
				return err
			}
			if err := s.taskRepo.Create(txCtx, t); err != nil {
				return fmt.Errorf("create blueprint task %d: %w", i+1, err)
			}
			tasks = append(tasks, t)
		}

		return nil
	})
	if err != nil {
		s.logger.Error("Template instantiation failed", "error", err, "template_id", templateID)
		return nil, nil, err
	}

	s.bus.Publish(ctx, event.NewEvent(event.TypeWorkflowCreated, w.ID, map[string]interface{}{
		"name":        w.Name,
		"type":        w.Type.String(),
		"template_id": templateID,
	}))
	for _, t := range tasks {
		s.bus.Publish(ctx, event.NewTaskEvent(event.TypeTaskCreated, w.ID, t.ID, map[string]interface{}{
			"name":  t.Name,
			"order": t.Order,
		}))
	}

	s.logger.Info("Workflow instantiated from template",
		"workflow_id", w.ID,
		"template_id", templateID,
		"task_count", len(tasks))
	return w, tasks, nil
}

// ListTemplates returns the registered templates
func (s *templateServiceImpl) ListTemplates(ctx context.Context) []*entity.Template {
	return s.registry.List()
}
