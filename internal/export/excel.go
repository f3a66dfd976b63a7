// Package export renders booking reports as Excel workbooks for the
// academy staff.
package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"quadra/internal/models"
)

var headerColumns = []string{"ID", "Data", "Horário", "Nome", "Telefone", "Acompanhante", "Status", "Criado em"}

// WriteWorkbook writes one sheet per unit to path. Sheet names longer
// than the Excel 31-char limit are truncated.
func WriteWorkbook(path string, sheets []Sheet) error {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	for i, sheet := range sheets {
		name := sheet.Name
		if len(name) > 31 {
			name = name[:31]
		}
		if i == 0 {
			f.SetSheetName("Sheet1", name)
		} else {
			if _, err := f.NewSheet(name); err != nil {
				return fmt.Errorf("create sheet %s: %w", name, err)
			}
		}

		for col, title := range headerColumns {
			cell, err := excelize.CoordinatesToCellName(col+1, 1)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(name, cell, title); err != nil {
				return fmt.Errorf("write header %s: %w", name, err)
			}
		}
		endCell, _ := excelize.CoordinatesToCellName(len(headerColumns), 1)
		if err := f.SetCellStyle(name, "A1", endCell, headerStyle); err != nil {
			return fmt.Errorf("style header %s: %w", name, err)
		}

		for row, b := range sheet.Bookings {
			values := []interface{}{
				b.ID, b.Date, b.Time, b.Name, b.Phone, b.Companion, b.Status,
				b.CreatedAt.Format("2006-01-02 15:04"),
			}
			for col, v := range values {
				cell, err := excelize.CoordinatesToCellName(col+1, row+2)
				if err != nil {
					return err
				}
				if err := f.SetCellValue(name, cell, v); err != nil {
					return fmt.Errorf("write row %d of %s: %w", row+2, name, err)
				}
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

// Sheet is one unit's export page.
type Sheet struct {
	Name     string
	Bookings []models.Booking
}
