package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/clinvera/regflow/internal/application/service"
	"github.com/clinvera/regflow/internal/domain/entity"
)

func TestExcelExporter_WriteProjectStatus(t *testing.T) {
	due := time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC)
	workflows := []*entity.Workflow{
		{
			ID:       "wf-1",
			Name:     "IND prep",
			Type:     entity.TypeINDSubmission,
			ModuleID: "regulatory",
			Status:   entity.StatusInProgress,
			Progress: 67,
			DueDate:  &due,
		},
		{
			ID:       "wf-2",
			Name:     "Site activation",
			Type:     entity.TypeStudyStartup,
			ModuleID: "clinical",
			Status:   entity.StatusNotStarted,
			Progress: 0,
		},
	}
	status := &service.CrossModuleStatus{
		ProjectID: "proj-1",
		Modules: []service.ModuleStatus{
			{ModuleID: "clinical", Counts: map[entity.Status]int{entity.StatusNotStarted: 1}, Total: 1},
			{ModuleID: "regulatory", Counts: map[entity.Status]int{entity.StatusInProgress: 1}, Total: 1},
		},
		WorkflowCount:   2,
		OverallProgress: 34,
	}

	var buf bytes.Buffer
	exporter := NewExcelExporter(zap.NewNop())
	if err := exporter.WriteProjectStatus(&buf, status, workflows); err != nil {
		t.Fatalf("WriteProjectStatus: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	get := func(sheet, cellRef string) string {
		t.Helper()
		v, err := f.GetCellValue(sheet, cellRef)
		if err != nil {
			t.Fatalf("GetCellValue(%s!%s): %v", sheet, cellRef, err)
		}
		return v
	}

	if got := get("Summary", "B1"); got != "proj-1" {
		t.Errorf("Summary!B1 = %q, want proj-1", got)
	}
	if got := get("Summary", "B2"); got != "2" {
		t.Errorf("Summary!B2 = %q, want 2", got)
	}
	if got := get("Summary", "B3"); got != "34%" {
		t.Errorf("Summary!B3 = %q, want 34%%", got)
	}

	// Module breakdown rows follow the fixed status order
	if got := get("Summary", "A6"); got != "clinical" {
		t.Errorf("Summary!A6 = %q, want clinical", got)
	}
	if got := get("Summary", "B6"); got != "NOT_STARTED" {
		t.Errorf("Summary!B6 = %q", got)
	}
	if got := get("Summary", "A7"); got != "regulatory" {
		t.Errorf("Summary!A7 = %q, want regulatory", got)
	}

	if got := get("Workflows", "A1"); got != "ID" {
		t.Errorf("Workflows!A1 = %q, want ID", got)
	}
	if got := get("Workflows", "B2"); got != "IND prep" {
		t.Errorf("Workflows!B2 = %q", got)
	}
	if got := get("Workflows", "F2"); got != "67%" {
		t.Errorf("Workflows!F2 = %q", got)
	}
	if got := get("Workflows", "G2"); got != "2026-09-30" {
		t.Errorf("Workflows!G2 = %q", got)
	}
	if got := get("Workflows", "H2"); got != "" {
		t.Errorf("Workflows!H2 = %q, want empty", got)
	}
}

func TestExcelExporter_EmptyProject(t *testing.T) {
	var buf bytes.Buffer
	exporter := NewExcelExporter(zap.NewNop())

	status := &service.CrossModuleStatus{ProjectID: "proj-empty"}
	if err := exporter.WriteProjectStatus(&buf, status, nil); err != nil {
		t.Fatalf("WriteProjectStatus: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	v, err := f.GetCellValue("Summary", "B2")
	if err != nil {
		t.Fatalf("GetCellValue: %v", err)
	}
	if v != "0" {
		t.Errorf("Summary!B2 = %q, want 0", v)
	}
}
