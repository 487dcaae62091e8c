package spreadsheet

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Raymond9734/crm-console/internal/models"
)

// Export file conventions
const (
	ExportFileName = "Customers_Export.xlsx"
	SampleFileName = "Customers_Import_Sample.xlsx"
	ExportSheet    = "Customers"
	ContentType    = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MsgNoData      = "No data to export"
)

// ExportHeaders is the header row of an exported workbook
var ExportHeaders = []string{"ID", "Full Name", "Email", "Mobile", "Created At"}

// SampleHeaders is the header row of the import template
var SampleHeaders = []string{"Full Name", "Email", "Mobile"}

// Export writes customers as a single-sheet workbook. Rows keep the order of
// the slice. An empty slice returns models.ErrNothingToExport.
func Export(w io.Writer, customers []models.Customer) error {
	if len(customers) == 0 {
		return models.ErrNothingToExport
	}

	rows := make([][]interface{}, 0, len(customers))
	for _, c := range customers {
		created := ""
		if !c.CreatedAt.IsZero() {
			created = c.CreatedAt.UTC().Format(time.RFC3339)
		}
		rows = append(rows, []interface{}{c.ID, c.FullName, c.Email, c.Mobile, created})
	}

	return writeWorkbook(w, ExportSheet, ExportHeaders, rows)
}

// WriteSample writes the import template with one example row
func WriteSample(w io.Writer) error {
	rows := [][]interface{}{
		{"Mr Pahlad", "mail@mail.com", "+91 98765 43210"},
	}
	return writeWorkbook(w, ExportSheet, SampleHeaders, rows)
}

func writeWorkbook(w io.Writer, sheet string, headers []string, rows [][]interface{}) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	header := make([]interface{}, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header row: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	if err := f.SetRowStyle(sheet, 1, 1, bold); err != nil {
		return fmt.Errorf("failed to style header row: %w", err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := row
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	lastCol, err := excelize.ColumnNumberToName(len(headers))
	if err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "A", lastCol, 24); err != nil {
		return fmt.Errorf("failed to size columns: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
