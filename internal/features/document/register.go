package document

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

const registerSheet = "Register"

var nonFilename = regexp.MustCompile("[^a-z0-9]+")

// registerFilename names the export after its date range, e.g.
// register-2026-01-01-2026-10-20.xlsx.
func registerFilename(from, to time.Time) string {
	name := fmt.Sprintf("register %s %s", from.Format(time.DateOnly), to.Format(time.DateOnly))
	name = strings.Trim(nonFilename.ReplaceAllString(strings.ToLower(name), "-"), "-")
	return name + ".xlsx"
}

var registerColumns = []string{"No", "Number", "Kind", "Title", "Creator", "Version", "Signatories", "Issued At", "Verification URL"}

// ExportRegister renders every document certified in [from, to) as an xlsx
// archive register.
func (s *DocumentServiceImpl) ExportRegister(ctx context.Context, from, to time.Time) ([]byte, error) {
	docs, err := s.repo.ListIssued(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load register: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(registerSheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})

	for i, col := range registerColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(registerSheet, cell, col)
		f.SetCellStyle(registerSheet, cell, cell, headerStyle)
	}

	for rowIdx, doc := range docs {
		if doc.Certificate == nil {
			continue
		}
		signers := make([]string, 0, len(doc.Signatories))
		for _, sig := range doc.Signatories {
			signers = append(signers, fmt.Sprintf("%s (%s)", sig.Label, sig.UserID))
		}
		row := []any{
			rowIdx + 1,
			doc.Certificate.Number,
			string(doc.Kind),
			doc.Title,
			doc.CreatorID,
			doc.CurrentVersion,
			strings.Join(signers, ", "),
			doc.Certificate.IssuedAt.Format("2006-01-02 15:04:05"),
			doc.Certificate.VerificationURL,
		}
		for colIdx, val := range row {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			f.SetCellValue(registerSheet, cell, val)
		}
	}

	for i := range registerColumns {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(registerSheet, col, col, 20)
	}

	buffer, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}
