// Package report renders project status rollups into downloadable files.
package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/clinvera/regflow/internal/application/service"
	"github.com/clinvera/regflow/internal/domain/entity"
)

// ExcelExporter writes a project status rollup as an xlsx workbook with a
// summary sheet and a per-workflow detail sheet
type ExcelExporter struct {
	logger *zap.Logger
}

// NewExcelExporter creates a new Excel exporter
func NewExcelExporter(logger *zap.Logger) *ExcelExporter {
	return &ExcelExporter{logger: logger}
}

// WriteProjectStatus renders the rollup and workflow list to w
func (e *ExcelExporter) WriteProjectStatus(w io.Writer, status *service.CrossModuleStatus, workflows []*entity.Workflow) error {
	f := excelize.NewFile()
	defer f.Close()

	const summarySheet = "Summary"
	const detailSheet = "Workflows"

	f.SetSheetName("Sheet1", summarySheet)
	if _, err := f.NewSheet(detailSheet); err != nil {
		return fmt.Errorf("failed to create detail sheet: %w", err)
	}

	e.setCell(f, summarySheet, "A1", "Project")
	e.setCell(f, summarySheet, "B1", status.ProjectID)
	e.setCell(f, summarySheet, "A2", "Workflows")
	e.setCell(f, summarySheet, "B2", status.WorkflowCount)
	e.setCell(f, summarySheet, "A3", "Overall Progress")
	e.setCell(f, summarySheet, "B3", fmt.Sprintf("%d%%", status.OverallProgress))

	e.setCell(f, summarySheet, "A5", "Module")
	e.setCell(f, summarySheet, "B5", "Status")
	e.setCell(f, summarySheet, "C5", "Count")
	row := 6
	for _, ms := range status.Modules {
		for _, st := range statusOrder {
			count, ok := ms.Counts[st]
			if !ok {
				continue
			}
			e.setCell(f, summarySheet, cell("A", row), ms.ModuleID)
			e.setCell(f, summarySheet, cell("B", row), st.String())
			e.setCell(f, summarySheet, cell("C", row), count)
			row++
		}
	}

	headers := []string{"ID", "Name", "Type", "Module", "Status", "Progress", "Due Date", "Completed Date"}
	for i, h := range headers {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return fmt.Errorf("failed to resolve column name: %w", err)
		}
		e.setCell(f, detailSheet, cell(col, 1), h)
	}
	for i, wf := range workflows {
		r := i + 2
		e.setCell(f, detailSheet, cell("A", r), wf.ID)
		e.setCell(f, detailSheet, cell("B", r), wf.Name)
		e.setCell(f, detailSheet, cell("C", r), wf.Type.String())
		e.setCell(f, detailSheet, cell("D", r), wf.ModuleID)
		e.setCell(f, detailSheet, cell("E", r), wf.Status.String())
		e.setCell(f, detailSheet, cell("F", r), fmt.Sprintf("%d%%", wf.Progress))
		if wf.DueDate != nil {
			e.setCell(f, detailSheet, cell("G", r), wf.DueDate.Format("2006-01-02"))
		}
		if wf.CompletedDate != nil {
			e.setCell(f, detailSheet, cell("H", r), wf.CompletedDate.Format("2006-01-02"))
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	e.logger.Info("Project status report written",
		zap.String("project_id", status.ProjectID),
		zap.Int("workflow_count", status.WorkflowCount))
	return nil
}

// statusOrder fixes the row order of the summary breakdown
var statusOrder = []entity.Status{
	entity.StatusNotStarted,
	entity.StatusInProgress,
	entity.StatusOnHold,
	entity.StatusPendingApproval,
	entity.StatusCompleted,
	entity.StatusRejected,
	entity.StatusCancelled,
}

func (e *ExcelExporter) setCell(f *excelize.File, sheet, cellRef string, value interface{}) {
	if err := f.SetCellValue(sheet, cellRef, value); err != nil {
		e.logger.Warn("Failed to set cell value",
			zap.String("sheet", sheet),
			zap.String("cell", cellRef),
			zap.Error(err))
	}
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
