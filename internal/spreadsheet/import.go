// Package spreadsheet moves customer records between the console and
// spreadsheet files: it reads uploaded .xls/.xlsx workbooks into normalized
// records and writes the visible record set back out as .xlsx.
package spreadsheet

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/extrame/xls"
	"github.com/go-playground/validator/v10"
	"github.com/xuri/excelize/v2"

	"github.com/Raymond9734/crm-console/internal/models"
)

// User-facing import messages
const (
	MsgInvalidType = "Invalid file type. Please upload .xls or .xlsx"
	MsgEmptyFile   = "Your file is empty"
	MsgBadFormat   = "Failed to import. Check format."
)

// Canonical column names after header normalization
const (
	ColumnFullName = "fullname"
	ColumnEmail    = "email"
	ColumnMobile   = "mobile"
)

// headerAliases map common header spellings onto canonical columns, in
// order of preference. A canonical header present in the sheet always wins
// over an alias.
var headerAliases = map[string][]string{
	ColumnFullName: {"name", "customername"},
	ColumnEmail:    {"emailaddress", "mail"},
	ColumnMobile:   {"mobilenumber", "mobileno", "phonenumber", "phone", "contactnumber"},
}

var (
	zipMagic = []byte("PK\x03\x04")
	oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

var validate = validator.New()

// RawRow is one data row of the first sheet keyed by normalized header
type RawRow struct {
	Index int               `json:"index"`
	Cells map[string]string `json:"cells"`
}

// Get returns the cell for a canonical column and whether the sheet had it
func (r RawRow) Get(column string) (string, bool) {
	if v, ok := r.Cells[column]; ok {
		return v, true
	}
	for _, alias := range headerAliases[column] {
		if v, ok := r.Cells[alias]; ok {
			return v, true
		}
	}
	return "", false
}

// IssueKind classifies a problem found while normalizing a row
type IssueKind string

// Row issue kinds
const (
	IssueMissingField  IssueKind = "missing_field"
	IssueInvalidMobile IssueKind = "invalid_mobile"
	IssueInvalidEmail  IssueKind = "invalid_email"
)

// Issue is one problem with one field of a row
type Issue struct {
	Kind  IssueKind `json:"kind"`
	Field string    `json:"field"`
	Value string    `json:"value,omitempty"`
}

// RowOutcome pairs a raw row with the record it produced
type RowOutcome struct {
	Row      RawRow          `json:"row"`
	Customer models.Customer `json:"customer"`
	Issues   []Issue         `json:"issues,omitempty"`
}

// OK reports whether the row normalized without issues
func (o RowOutcome) OK() bool {
	return len(o.Issues) == 0
}

// ImportResult is the outcome of reading one workbook
type ImportResult struct {
	Customers []models.Customer `json:"customers"`
	Outcomes  []RowOutcome      `json:"outcomes"`
}

// RowsWithIssues counts rows that were imported with at least one issue
func (r *ImportResult) RowsWithIssues() int {
	n := 0
	for _, o := range r.Outcomes {
		if !o.OK() {
			n++
		}
	}
	return n
}

// IsSupportedFile reports whether filename has an importable extension
func IsSupportedFile(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xls", ".xlsx":
		return true
	default:
		return false
	}
}

// Import reads the first sheet of an uploaded workbook and normalizes its
// rows into imported customer records stamped with now.
func Import(filename string, r io.Reader, now time.Time) (*ImportResult, error) {
	rows, err := ReadRows(filename, r)
	if err != nil {
		return nil, err
	}
	return Normalize(rows, now), nil
}

// ReadRows validates the file type and returns the data rows of the first
// sheet. The first row holds the headers.
func ReadRows(filename string, r io.Reader) ([]RawRow, error) {
	if !IsSupportedFile(filename) {
		return nil, models.ErrInvalidFile(MsgInvalidType, nil)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, models.ErrInvalidFile(MsgBadFormat, err)
	}

	var grid [][]string
	switch {
	case bytes.HasPrefix(data, zipMagic):
		grid, err = readXLSX(data)
	case bytes.HasPrefix(data, oleMagic):
		grid, err = readXLS(data)
	default:
		err = fmt.Errorf("unrecognised workbook signature")
	}
	if err != nil {
		return nil, models.ErrInvalidFile(MsgBadFormat, err)
	}

	rows := toRawRows(grid)
	if len(rows) == 0 {
		return nil, models.ErrEmptyFile(MsgEmptyFile)
	}
	return rows, nil
}

// Normalize turns raw rows into imported customers. Missing fields default
// to "" and are reported per row rather than failing the import.
func Normalize(rows []RawRow, now time.Time) *ImportResult {
	result := &ImportResult{
		Customers: make([]models.Customer, 0, len(rows)),
		Outcomes:  make([]RowOutcome, 0, len(rows)),
	}
	stamp := now.UTC()

	for _, row := range rows {
		outcome := RowOutcome{Row: row}

		fullName, ok := row.Get(ColumnFullName)
		if !ok || fullName == "" {
			outcome.Issues = append(outcome.Issues, Issue{Kind: IssueMissingField, Field: ColumnFullName})
		}

		email, ok := row.Get(ColumnEmail)
		switch {
		case !ok || email == "":
			outcome.Issues = append(outcome.Issues, Issue{Kind: IssueMissingField, Field: ColumnEmail})
		case validate.Var(email, "email") != nil:
			outcome.Issues = append(outcome.Issues, Issue{Kind: IssueInvalidEmail, Field: ColumnEmail, Value: email})
		}

		mobile, ok := row.Get(ColumnMobile)
		switch {
		case !ok || mobile == "":
			outcome.Issues = append(outcome.Issues, Issue{Kind: IssueMissingField, Field: ColumnMobile})
		default:
			if normalized, valid := models.NormalizeMobile(mobile); valid {
				mobile = normalized
			} else {
				outcome.Issues = append(outcome.Issues, Issue{Kind: IssueInvalidMobile, Field: ColumnMobile, Value: mobile})
			}
		}

		outcome.Customer = models.Customer{
			ID:        fmt.Sprintf("%s%d", models.ImportedIDPrefix, row.Index),
			FullName:  fullName,
			Email:     email,
			Mobile:    mobile,
			CreatedAt: stamp,
			Imported:  true,
		}

		result.Customers = append(result.Customers, outcome.Customer)
		result.Outcomes = append(result.Outcomes, outcome)
	}

	return result
}

// NormalizeHeader trims, lower-cases and removes all whitespace from a header
func NormalizeHeader(header string) string {
	header = strings.ToLower(strings.TrimSpace(header))
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, header)
}

// toRawRows keys every non-blank data row by the normalized header row
func toRawRows(grid [][]string) []RawRow {
	if len(grid) < 2 {
		return nil
	}

	headers := make([]string, len(grid[0]))
	seen := make(map[string]bool, len(grid[0]))
	for i, h := range grid[0] {
		key := NormalizeHeader(h)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		headers[i] = key
	}

	rows := make([]RawRow, 0, len(grid)-1)
	for _, record := range grid[1:] {
		cells := make(map[string]string, len(headers))
		blank := true
		for i, key := range headers {
			if key == "" {
				continue
			}
			value := ""
			if i < len(record) {
				value = strings.TrimSpace(record[i])
			}
			if value != "" {
				blank = false
			}
			cells[key] = value
		}
		if blank {
			continue
		}
		rows = append(rows, RawRow{Index: len(rows), Cells: cells})
	}
	return rows
}

func readXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}

	grid, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	return grid, nil
}

func readXLS(data []byte) (grid [][]string, err error) {
	// The BIFF reader panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			grid, err = nil, fmt.Errorf("failed to parse xls: %v", r)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("failed to open xls: %w", err)
	}
	if wb.NumSheets() == 0 {
		return nil, nil
	}

	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, nil
	}

	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := xlsRow(sheet, i)
		if row == nil {
			grid = append(grid, nil)
			continue
		}
		cells := make([]string, row.LastCol())
		for c := row.FirstCol(); c < row.LastCol(); c++ {
			cells[c] = row.Col(c)
		}
		grid = append(grid, cells)
	}
	return grid, nil
}

// xlsRow returns row i, or nil when the sheet stores no record for it.
// WorkSheet.Row dereferences the missing row instead of returning nil.
func xlsRow(sheet *xls.WorkSheet, i int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return sheet.Row(i)
}
