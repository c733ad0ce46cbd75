package service

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/clinvera/regflow/internal/application/port"
	"github.com/clinvera/regflow/internal/domain/entity"
)

// ModuleStatus is the workflow count breakdown for one owning module
type ModuleStatus struct {
	ModuleID string                `json:"module_id"`
	Counts   map[entity.Status]int `json:"counts"`
	Total    int                   `json:"total"`
}

// CrossModuleStatus is a read-only rollup of a project's workflows grouped
// by owning module and status. OverallProgress is the unweighted arithmetic
// mean of each workflow's progress.
type CrossModuleStatus struct {
	ProjectID       string         `json:"project_id"`
	Modules         []ModuleStatus `json:"modules"`
	WorkflowCount   int            `json:"workflow_count"`
	OverallProgress int            `json:"overall_progress"`
}

// UserTask is a task joined with minimal parent-workflow context for display
type UserTask struct {
	Task           *entity.Task        `json:"task"`
	WorkflowName   string              `json:"workflow_name"`
	WorkflowType   entity.WorkflowType `json:"workflow_type"`
	WorkflowStatus entity.Status       `json:"workflow_status"`
}

// AggregatorService serves read-only dashboard queries across modules and
// workflows. It never mutates state.
type AggregatorService interface {
	CrossModuleStatus(ctx context.Context, projectID string) (*CrossModuleStatus, error)
	UserTasks(ctx context.Context, userID string, filter port.TaskFilter) ([]*UserTask, error)
}

type aggregatorServiceImpl struct {
	workflowRepo port.WorkflowRepository
	taskRepo     port.TaskRepository
	logger       Logger
}

// NewAggregatorService creates a new AggregatorService
func NewAggregatorService(
	workflowRepo port.WorkflowRepository,
	taskRepo port.TaskRepository,
	logger Logger,
) AggregatorService {
	return &aggregatorServiceImpl{
		workflowRepo: workflowRepo,
		taskRepo:     taskRepo,
		logger:       logger,
	}
}

// CrossModuleStatus groups the project's workflows by module and status
func (s *aggregatorServiceImpl) CrossModuleStatus(ctx context.Context, projectID string) (*CrossModuleStatus, error) {
	workflows, err := s.workflowRepo.List(ctx, port.WorkflowFilter{ProjectID: projectID})
	if err != nil {
		s.logger.Error("Failed to list project workflows", "error", err, "project_id", projectID)
		return nil, fmt.Errorf("list project workflows: %w", err)
	}

	byModule := make(map[string]*ModuleStatus)
	progressSum := 0
	for _, w := range workflows {
		ms, ok := byModule[w.ModuleID]
		if !ok {
			ms = &ModuleStatus{
				ModuleID: w.ModuleID,
				Counts:   make(map[entity.Status]int),
			}
			byModule[w.ModuleID] = ms
		}
		ms.Counts[w.Status]++
		ms.Total++
		progressSum += w.Progress
	}

	modules := make([]ModuleStatus, 0, len(byModule))
	for _, ms := range byModule {
		modules = append(modules, *ms)
	}
	sort.Slice(modules, func(i, j int) bool {
		return modules[i].ModuleID < modules[j].ModuleID
	})

	overall := 0
	if len(workflows) > 0 {
		overall = int(math.Round(float64(progressSum) / float64(len(workflows))))
	}

	return &CrossModuleStatus{
		ProjectID:       projectID,
		Modules:         modules,
		WorkflowCount:   len(workflows),
		OverallProgress: overall,
	}, nil
}

// UserTasks returns every task assigned to the user, joined with its parent
// workflow's name, type, and status
func (s *aggregatorServiceImpl) UserTasks(ctx context.Context, userID string, filter port.TaskFilter) ([]*UserTask, error) {
	tasks, err := s.taskRepo.ListByAssignee(ctx, userID, filter)
	if err != nil {
		s.logger.Error("Failed to list user tasks", "error", err, "user_id", userID)
		return nil, fmt.Errorf("list user tasks: %w", err)
	}

	workflows := make(map[string]*entity.Workflow)
	result := make([]*UserTask, 0, len(tasks))
	for _, t := range tasks {
		w, ok := workflows[t.WorkflowID]
		if !ok {
			w, err = s.workflowRepo.GetByID(ctx, t.WorkflowID)
			if err != nil {
				return nil, fmt.Errorf("load workflow %s: %w", t.WorkflowID, err)
			}
			workflows[t.WorkflowID] = w
		}

		result = append(result, &UserTask{
			Task:           t,
			WorkflowName:   w.Name,
			WorkflowType:   w.Type,
			WorkflowStatus: w.Status,
		})
	}

	return result, nil
}
