// Package export renders inventory records as downloadable spreadsheets.
package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/example/nucmed-tracker/internal/application"
)

const lifeSheetName = "Fiche de vie"

var lifeSheetHeader = []string{
	"Date",
	"Type",
	"Libellé",
	"Quantité",
	"Prix unitaire",
	"Solde",
}

var lifeSheetColumnWidths = []float64{22, 10, 40, 12, 15, 10}

// Exporter produces xlsx workbooks for asset life sheets.
type Exporter struct{}

// NewExporter returns a ready to use spreadsheet exporter.
func NewExporter() *Exporter {
	return &Exporter{}
}

// LifeSheet renders the asset's ledger as a workbook: an identity block at the
// top, then one row per movement with a running quantity balance.
func (e *Exporter) LifeSheet(asset application.Asset) ([]byte, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(lifeSheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	titleStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 14},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create title style: %w", err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	if err := f.SetCellValue(lifeSheetName, "A1", "Fiche de vie — "+asset.Designation); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write title: %w", err)
	}
	if err := f.SetCellStyle(lifeSheetName, "A1", "A1", titleStyle); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to style title: %w", err)
	}
	if asset.SerialNumber != "" {
		if err := f.SetCellValue(lifeSheetName, "A2", "N° de série : "+asset.SerialNumber); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write serial number: %w", err)
		}
	}
	if asset.AcquiredAt != nil {
		if err := f.SetCellValue(lifeSheetName, "A3", "Acquis le : "+asset.AcquiredAt.Format("02/01/2006")); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write acquisition date: %w", err)
		}
	}

	const headerRow = 5
	for col, header := range lifeSheetHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, headerRow)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(lifeSheetName, cell, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(lifeSheetName, cell, cell, headerStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}

		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(lifeSheetName, name, name, lifeSheetColumnWidths[col]); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	balance := 0
	for rowIdx, movement := range asset.Movements {
		row := headerRow + 1 + rowIdx

		kind := "Entrée"
		switch movement.Kind {
		case application.MovementEntry:
			balance += movement.Quantity
		case application.MovementExit:
			kind = "Sortie"
			balance -= movement.Quantity
		}

		values := []any{
			movement.Date.Format("02/01/2006 15:04"),
			kind,
			movement.Label,
			movement.Quantity,
			movement.UnitPrice,
			balance,
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to convert coordinates: %w", err)
			}
			if err := f.SetCellValue(lifeSheetName, cell, value); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to set cell %s: %w", cell, err)
			}
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close workbook: %w", err)
	}

	return buf.Bytes(), nil
}
