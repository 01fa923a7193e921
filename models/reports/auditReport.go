package reports

import (
	"context"
	"fmt"
	"net/http"

	"github.com/xuri/excelize/v2"

	"github.com/fbaqueriza/whatsap-inbox-gs-sub002/models"
)

// WriteAssignmentAuditExcel streams the audit trail of one record as an XLSX
// attachment. One row per match attempt, in insertion order.
func WriteAssignmentAuditExcel(ctx context.Context, w http.ResponseWriter, ownerId, recordId string) {
	rows, err := models.ListAssignmentAttempts(ctx, ownerId, recordId)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	f := excelize.NewFile()
	sheetName := "Sheet1"
	if _, err := f.NewSheet(sheetName); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	// Add headers
	f.SetCellValue(sheetName, "A1", "TargetKind")
	f.SetCellValue(sheetName, "B1", "TargetId")
	f.SetCellValue(sheetName, "C1", "Method")
	f.SetCellValue(sheetName, "D1", "Confidence")
	f.SetCellValue(sheetName, "E1", "Success")
	f.SetCellValue(sheetName, "F1", "CreatedAt")

	// Add data
	for i, row := range rows {
		f.SetCellValue(sheetName, "A"+fmt.Sprint(i+2), string(row.TargetKind))
		f.SetCellValue(sheetName, "B"+fmt.Sprint(i+2), row.TargetId)
		f.SetCellValue(sheetName, "C"+fmt.Sprint(i+2), string(row.Method))
		f.SetCellValue(sheetName, "D"+fmt.Sprint(i+2), row.Confidence)
		f.SetCellValue(sheetName, "E"+fmt.Sprint(i+2), row.Success)
		f.SetCellValue(sheetName, "F"+fmt.Sprint(i+2), row.CreatedAt.Format("2006-01-02 15:04:05"))
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename=assignment_audit_"+recordId+".xlsx")
	if err := f.Write(w); err != nil {
		http.Error(w, "Failed to write file", http.StatusInternalServerError)
	}
}
