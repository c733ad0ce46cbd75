package service

import (
	"context"
	"testing"

	"github.com/clinvera/regflow/internal/application/port"
	"github.com/clinvera/regflow/internal/domain/entity"
)

func TestAggregatorService_CrossModuleStatus(t *testing.T) {
	e := newEnv()
	ctx := context.Background()

	seed := func(name, module string, wfType entity.WorkflowType) *entity.Workflow {
		in := basicInput(name, wfType)
		in.ModuleID = module
		return e.mustCreate(ctx, in)
	}

	regA := seed("IND prep", "regulatory", entity.TypeINDSubmission)
	seed("Agency response", "regulatory", entity.TypeRegulatoryResponse)
	clinical := seed("Site activation", "clinical", entity.TypeStudyStartup)

	// An unrelated project must not leak into the rollup
	other := basicInput("Other project", entity.TypeCustom)
	other.ProjectID = "proj-2"
	e.mustCreate(ctx, other)

	if _, err := e.workflows.Start(ctx, regA.ID, 0); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := e.workflows.Start(ctx, clinical.ID, 0); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Give the clinical workflow measurable progress: 1 of 2 tasks done
	tasks := e.seedTasks(ctx, clinical.ID, 2)
	if _, err := e.tasks.Complete(ctx, tasks[0].ID, CompleteTaskInput{CompletedBy: "user-1"}); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	status, err := e.aggregator.CrossModuleStatus(ctx, "proj-1")
	if err != nil {
		t.Fatalf("CrossModuleStatus: %v", err)
	}

	if status.ProjectID != "proj-1" {
		t.Errorf("ProjectID = %q", status.ProjectID)
	}
	if status.WorkflowCount != 3 {
		t.Errorf("WorkflowCount = %d, want 3", status.WorkflowCount)
	}

	if len(status.Modules) != 2 {
		t.Fatalf("got %d modules, want 2", len(status.Modules))
	}
	// Sorted by module id: clinical before regulatory
	if status.Modules[0].ModuleID != "clinical" || status.Modules[1].ModuleID != "regulatory" {
		t.Errorf("module order = [%s, %s]", status.Modules[0].ModuleID, status.Modules[1].ModuleID)
	}

	reg := status.Modules[1]
	if reg.Total != 2 {
		t.Errorf("regulatory Total = %d, want 2", reg.Total)
	}
	if reg.Counts[entity.StatusInProgress] != 1 || reg.Counts[entity.StatusNotStarted] != 1 {
		t.Errorf("regulatory Counts = %v", reg.Counts)
	}

	cl := status.Modules[0]
	if cl.Counts[entity.StatusInProgress] != 1 {
		t.Errorf("clinical Counts = %v", cl.Counts)
	}

	// Mean of (0, 0, 50) rounds to 17
	if status.OverallProgress != 17 {
		t.Errorf("OverallProgress = %d, want 17", status.OverallProgress)
	}
}

func TestAggregatorService_CrossModuleStatusEmptyProject(t *testing.T) {
	e := newEnv()

	status, err := e.aggregator.CrossModuleStatus(context.Background(), "nothing-here")
	if err != nil {
		t.Fatalf("CrossModuleStatus: %v", err)
	}
	if status.WorkflowCount != 0 || status.OverallProgress != 0 || len(status.Modules) != 0 {
		t.Errorf("empty project rollup = %+v", status)
	}
}

func TestAggregatorService_UserTasks(t *testing.T) {
	e := newEnv()
	ctx := context.Background()

	w1 := e.mustCreate(ctx, basicInput("Dossier", entity.TypeINDSubmission))
	w2 := e.mustCreate(ctx, basicInput("Protocol review", entity.TypeProtocolReview))

	if _, err := e.tasks.Create(ctx, w1.ID, CreateTaskInput{Name: "draft module 2", AssignedTo: "carol"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	done, err := e.tasks.Create(ctx, w2.ID, CreateTaskInput{Name: "review synopsis", AssignedTo: "carol"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := e.tasks.Create(ctx, w2.ID, CreateTaskInput{Name: "someone else's", AssignedTo: "dave"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := e.tasks.Complete(ctx, done.ID, CompleteTaskInput{CompletedBy: "carol"}); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	all, err := e.aggregator.UserTasks(ctx, "carol", port.TaskFilter{})
	if err != nil {
		t.Fatalf("UserTasks: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d tasks for carol, want 2", len(all))
	}
	for _, ut := range all {
		if ut.Task.AssignedTo != "carol" {
			t.Errorf("task %s assigned to %q", ut.Task.ID, ut.Task.AssignedTo)
		}
		switch ut.Task.WorkflowID {
		case w1.ID:
			if ut.WorkflowName != "Dossier" || ut.WorkflowType != entity.TypeINDSubmission {
				t.Errorf("join mismatch: %+v", ut)
			}
		case w2.ID:
			if ut.WorkflowName != "Protocol review" || ut.WorkflowType != entity.TypeProtocolReview {
				t.Errorf("join mismatch: %+v", ut)
			}
		default:
			t.Errorf("unexpected workflow %s", ut.Task.WorkflowID)
		}
	}

	open, err := e.aggregator.UserTasks(ctx, "carol", port.TaskFilter{Status: entity.TaskNotStarted})
	if err != nil {
		t.Fatalf("UserTasks filtered: %v", err)
	}
	if len(open) != 1 || open[0].Task.Name != "draft module 2" {
		t.Errorf("filtered tasks = %d", len(open))
	}

	none, err := e.aggregator.UserTasks(ctx, "nobody", port.TaskFilter{})
	if err != nil {
		t.Fatalf("UserTasks: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("got %d tasks for unknown user", len(none))
	}
}
