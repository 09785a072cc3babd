package leads

import (
	"bytes"
	"context"
	"fmt"

	"github.com/jordanlanch/estatecrm/pkg/models"
	"github.com/jordanlanch/estatecrm/pkg/schema"
	"github.com/jordanlanch/estatecrm/pkg/session"
	"github.com/xuri/excelize/v2"
)

const exportSheet = "Leads"

var exportHeaders = []string{
	"ID", "Full Name", "Email", "Phone", "City", "Status", "Urgency", "Score",
	"Source", "Transaction", "Property Type", "Budget Min", "Budget Max",
	"Assigned To", "Created At",
}

// Export renders the leads matching f as an XLSX workbook, newest first.
// Visibility follows List; the result is capped at exportLimit rows.
func (s *Service) Export(ctx context.Context, actor session.Identity, f models.LeadListQuery) ([]byte, int, error) {
	q, err := s.filtered(s.db.WithContext(ctx), actor, f)
	if err != nil {
		return nil, 0, err
	}
	var rows []schema.Lead
	if err := q.Preload("AssignedTo").Order(orderBy(f)).Order("id DESC").Limit(exportLimit).Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch leads for export: %w", err)
	}

	data, err := writeWorkbook(rows)
	if err != nil {
		return nil, 0, err
	}
	return data, len(rows), nil
}

func writeWorkbook(rows []schema.Lead) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create style: %w", err)
	}

	for i, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(exportSheet, cell, h); err != nil {
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(exportHeaders), 1)
	if err := f.SetCellStyle(exportSheet, "A1", last, headerStyle); err != nil {
		return nil, fmt.Errorf("failed to style header: %w", err)
	}

	for i, l := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(exportSheet, cell, &[]any{
			l.ID, l.FullName, l.Email, l.Phone, l.City, string(l.Status), string(l.Urgency), l.Score,
			string(l.Source), string(l.TransactionType), l.PropertyType, budget(l.BudgetMin), budget(l.BudgetMax),
			assigneeName(&l), l.CreatedAt.Format("2006-01-02 15:04"),
		}); err != nil {
			return nil, fmt.Errorf("failed to write row: %w", err)
		}
	}

	lastCol, _ := excelize.ColumnNumberToName(len(exportHeaders))
	if err := f.SetColWidth(exportSheet, "A", lastCol, 18); err != nil {
		return nil, fmt.Errorf("failed to size columns: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func budget(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}

func assigneeName(l *schema.Lead) string {
	if l.AssignedTo == nil {
		return ""
	}
	return l.AssignedTo.FullName
}
