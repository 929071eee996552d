package handlers

import (
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"p9e.in/siteqa/config"
	"p9e.in/siteqa/middleware"
	"p9e.in/siteqa/models"
)

// ExportNCRRegister exports the organization's NCR register to Excel
// GET /api/v1/orgs/{orgId}/reports/ncr-register
func ExportNCRRegister(w http.ResponseWriter, r *http.Request) {
	member := middleware.GetMember(r)
	if member == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	filters := make(map[string]interface{})
	if projectID := r.URL.Query().Get("project_id"); projectID != "" {
		if id, err := uuid.Parse(projectID); err == nil {
			filters["project_id"] = id
		}
	}
	if status := r.URL.Query().Get("status"); status != "" {
		filters["status"] = status
	}

	ncrs, err := getNCREngine().ListNCRs(member.OrganizationID, filters)
	if err != nil {
		log.Printf("❌ Error fetching NCRs for export: %v", err)
		http.Error(w, "failed to fetch NCRs", http.StatusInternalServerError)
		return
	}

	var org models.Organization
	if err := config.DB.First(&org, "id = ?", member.OrganizationID).Error; err != nil {
		http.Error(w, "organization not found", http.StatusNotFound)
		return
	}

	excelFile, err := createNCRRegisterFile(org.Name, ncrs)
	if err != nil {
		log.Printf("❌ Error generating NCR register: %v", err)
		http.Error(w, "failed to generate Excel file", http.StatusInternalServerError)
		return
	}

	buffer, err := excelFile.WriteToBuffer()
	if err != nil {
		http.Error(w, "failed to write Excel file", http.StatusInternalServerError)
		return
	}

	filename := fmt.Sprintf("ncr_register_%s.xlsx", time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", buffer.Len()))

	w.WriteHeader(http.StatusOK)
	w.Write(buffer.Bytes())
}

var ncrRegisterHeaders = []string{
	"Reference", "Title", "Status", "Raised By", "Assigned To",
	"Root Cause", "Corrective Action", "Actual Cost", "Raised", "Updated",
}

// createNCRRegisterFile generates the register workbook: a title block, a
// styled header row and one row per report.
func createNCRRegisterFile(orgName string, ncrs []models.NCR) (*excelize.File, error) {
	f := excelize.NewFile()
	sheetName := "NCR Register"

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold: true,
			Size: 16,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "left",
			Vertical:   "center",
		},
	})
	f.SetCellValue(sheetName, "A1", fmt.Sprintf("%s - Non-Conformance Register", orgName))
	f.SetCellStyle(sheetName, "A1", "A1", titleStyle)
	f.SetRowHeight(sheetName, 1, 30)

	f.SetCellValue(sheetName, "A2", fmt.Sprintf("Generated: %s", time.Now().Format("2006-01-02 15:04:05")))

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold: true,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#4472C4"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})

	for colIdx, header := range ncrRegisterHeaders {
		cell, _ := excelize.CoordinatesToCellName(colIdx+1, 4)
		f.SetCellValue(sheetName, cell, header)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
		col, _ := excelize.ColumnNumberToName(colIdx + 1)
		f.SetColWidth(sheetName, col, col, 20)
	}

	dataStyle, _ := f.NewStyle(&excelize.Style{
		Border: []excelize.Border{
			{Type: "left", Color: "CCCCCC", Style: 1},
			{Type: "right", Color: "CCCCCC", Style: 1},
			{Type: "top", Color: "CCCCCC", Style: 1},
			{Type: "bottom", Color: "CCCCCC", Style: 1},
		},
	})

	for rowIdx, ncr := range ncrs {
		cost := ""
		if ncr.ActualCost != nil {
			cost = fmt.Sprintf("%.2f", *ncr.ActualCost)
		}
		values := []interface{}{
			ncr.Reference(),
			ncr.Title,
			strings.ToUpper(ncr.Status),
			ncr.RaisedBy,
			ncr.AssignedTo,
			ncr.RootCause,
			ncr.CorrectiveAction,
			cost,
			ncr.CreatedAt.Format("2006-01-02"),
			ncr.UpdatedAt.Format("2006-01-02"),
		}
		for colIdx, value := range values {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+5)
			f.SetCellValue(sheetName, cell, value)
			f.SetCellStyle(sheetName, cell, cell, dataStyle)
		}
	}

	// Status counts below the table
	summaryRow := len(ncrs) + 7
	summaryStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold: true,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E7E6E6"},
			Pattern: 1,
		},
	})

	cell, _ := excelize.CoordinatesToCellName(1, summaryRow)
	f.SetCellValue(sheetName, cell, "Summary")
	f.SetCellStyle(sheetName, cell, cell, summaryStyle)

	counts := make(map[string]int)
	for _, ncr := range ncrs {
		counts[ncr.Status]++
	}
	summaryRow++
	for status, count := range counts {
		keyCell, _ := excelize.CoordinatesToCellName(1, summaryRow)
		valueCell, _ := excelize.CoordinatesToCellName(2, summaryRow)
		f.SetCellValue(sheetName, keyCell, status)
		f.SetCellValue(sheetName, valueCell, count)
		summaryRow++
	}

	return f, nil
}
