package contact

import (
	"fmt"
	"log/slog"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "Contacts"

// ExportXLSX returns every saved contact as an XLSX workbook
func (s *Service) ExportXLSX() ([]byte, error) {
	contacts, err := s.ListContacts()
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	// NewFile starts with "Sheet1"
	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, fmt.Errorf("naming sheet: %w", err)
	}

	headers := []string{"Name", "Phone", "Label", "Saved At"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(exportSheet, cell, h)
	}

	for i, c := range contacts {
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(exportSheet, cell, v)
		}
		write(1, c.Name)
		// Written as a string so leading zeros and long numbers survive
		write(2, c.Phone)
		write(3, c.Label)
		write(4, c.CreatedAt.Format("2006-01-02 15:04"))
	}

	_ = f.SetColWidth(exportSheet, "A", "A", 28)
	_ = f.SetColWidth(exportSheet, "B", "B", 18)
	_ = f.SetColWidth(exportSheet, "C", "C", 10)
	_ = f.SetColWidth(exportSheet, "D", "D", 18)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	slog.Info("Contacts exported", "rows", len(contacts))
	return buf.Bytes(), nil
}
