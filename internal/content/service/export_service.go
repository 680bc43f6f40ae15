package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bitfantasy/muse/internal/content/repository"
	"github.com/xuri/excelize/v2"
)

// ExportService 审批报表导出
type ExportService struct {
	repos    *repository.Repositories
	workflow *WorkflowService
}

// NewExportService 创建导出服务
func NewExportService(repos *repository.Repositories, workflow *WorkflowService) *ExportService {
	return &ExportService{repos: repos, workflow: workflow}
}

var approvalExportHeaders = []string{
	"请求ID", "目标类型", "目标ID", "发起人", "状态", "优先级",
	"升级次数", "发起时间", "完结时间", "耗时(小时)",
}

// ExportWorkflowReport 导出流程的审批请求报表为 xlsx
func (s *ExportService) ExportWorkflowReport(ctx context.Context, workflowID string, from, to *time.Time) (*excelize.File, string, error) {
	workflow, err := s.repos.Workflow.FindByID(ctx, workflowID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "", NewNotFound("审批流程", workflowID)
		}
		return nil, "", err
	}

	requests, _, err := s.repos.Request.List(ctx, map[string]interface{}{
		"workflow_id": workflowID,
	}, 1, 10000)
	if err != nil {
		return nil, "", fmt.Errorf("查询审批请求失败: %w", err)
	}

	metrics, err := s.workflow.GetWorkflowMetrics(ctx, workflowID, from, to)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	sheet := "审批明细"
	f.SetSheetName("Sheet1", sheet)

	// 表头样式: 加粗
	boldStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})

	for i, h := range approvalExportHeaders {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "1"
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, boldStyle)
	}

	for rowIdx, req := range requests {
		row := rowIdx + 2
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), req.ID)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), req.TargetType)
		f.SetCellValue(sheet, fmt.Sprintf("C%d", row), req.TargetID)
		requester := req.RequesterID
		if req.Requester != nil && req.Requester.Name != "" {
			requester = req.Requester.Name
		}
		f.SetCellValue(sheet, fmt.Sprintf("D%d", row), requester)
		f.SetCellValue(sheet, fmt.Sprintf("E%d", row), req.Status)
		f.SetCellValue(sheet, fmt.Sprintf("F%d", row), req.Priority)
		f.SetCellValue(sheet, fmt.Sprintf("G%d", row), req.EscalationLevel)
		f.SetCellValue(sheet, fmt.Sprintf("H%d", row), req.CreatedAt.Format("2006-01-02 15:04"))
		if req.CompletedAt != nil {
			f.SetCellValue(sheet, fmt.Sprintf("I%d", row), req.CompletedAt.Format("2006-01-02 15:04"))
			f.SetCellValue(sheet, fmt.Sprintf("J%d", row), req.CompletedAt.Sub(req.CreatedAt).Hours())
		}
	}

	// 底部汇总
	summaryRow := len(requests) + 3
	summaryStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	f.SetCellValue(sheet, fmt.Sprintf("A%d", summaryRow), "汇总")
	f.SetCellValue(sheet, fmt.Sprintf("B%d", summaryRow), fmt.Sprintf("总请求: %d", metrics.TotalRequests))
	f.SetCellValue(sheet, fmt.Sprintf("C%d", summaryRow), fmt.Sprintf("已通过: %d", metrics.CompletedRequests))
	f.SetCellValue(sheet, fmt.Sprintf("D%d", summaryRow), fmt.Sprintf("通过率: %.0f%%", metrics.ApprovalRate*100))
	f.SetCellValue(sheet, fmt.Sprintf("E%d", summaryRow), fmt.Sprintf("平均耗时: %.1f小时", metrics.AvgCompletionHours))
	f.SetCellValue(sheet, fmt.Sprintf("F%d", summaryRow), fmt.Sprintf("升级率: %.0f%%", metrics.EscalationRate*100))
	f.SetCellStyle(sheet, fmt.Sprintf("A%d", summaryRow), fmt.Sprintf("J%d", summaryRow), summaryStyle)

	colWidths := []float64{38, 10, 38, 12, 12, 8, 8, 18, 18, 10}
	for i, w := range colWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheet, col, col, w)
	}

	filename := fmt.Sprintf("审批报表_%s_%s.xlsx", workflow.Name, time.Now().Format("20060102"))
	return f, filename, nil
}
