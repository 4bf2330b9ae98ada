package export

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
)

const (
	dataSheet     = "Report"
	metadataSheet = "Metadata"

	minColumnWidth = 10
	maxColumnWidth = 50
)

func writeExcel(path string, source Source, opts Options) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	f.SetSheetName("Sheet1", dataSheet)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	labels := headerLabels(source.Columns)
	widths := make([]int, len(source.Columns))

	for i, label := range labels {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return fmt.Errorf("failed to compute header cell: %w", err)
		}

		if err := f.SetCellValue(dataSheet, cell, label); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}

		widths[i] = len(label)
	}

	if len(labels) > 0 {
		last, err := excelize.CoordinatesToCellName(len(labels), 1)
		if err != nil {
			return fmt.Errorf("failed to compute header range: %w", err)
		}

		if err := f.SetCellStyle(dataSheet, "A1", last, headerStyle); err != nil {
			return fmt.Errorf("failed to style header: %w", err)
		}
	}

	for rowIdx, row := range source.Rows {
		for colIdx, col := range source.Columns {
			var value interface{}
			if colIdx < len(row) {
				value = row[colIdx]
			}

			formatted := formatCell(value, col.Type, opts.CurrencySymbol)

			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err != nil {
				return fmt.Errorf("failed to compute cell: %w", err)
			}

			if err := f.SetCellValue(dataSheet, cell, formatted); err != nil {
				return fmt.Errorf("failed to write cell: %w", err)
			}

			if len(formatted) > widths[colIdx] {
				widths[colIdx] = len(formatted)
			}
		}
	}

	for i, width := range widths {
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return fmt.Errorf("failed to compute column name: %w", err)
		}

		if width < minColumnWidth {
			width = minColumnWidth
		}

		if width > maxColumnWidth {
			width = maxColumnWidth
		}

		if err := f.SetColWidth(dataSheet, name, name, float64(width)+2); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}

	// Keep the header visible while scrolling
	if err := f.SetPanes(dataSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze header row: %w", err)
	}

	if err := writeExcelMetadata(f, source, opts); err != nil {
		return err
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}

	return nil
}

func writeExcelMetadata(f *excelize.File, source Source, opts Options) error {
	if _, err := f.NewSheet(metadataSheet); err != nil {
		return fmt.Errorf("failed to create metadata sheet: %w", err)
	}

	title := opts.Title
	if title == "" {
		title = "Report"
	}

	entries := [][2]string{
		{"Title", title},
		{"Generated At", time.Now().UTC().Format(datetimeLayout)},
		{"Rows", fmt.Sprintf("%d", len(source.Rows))},
		{"Columns", fmt.Sprintf("%d", len(source.Columns))},
	}

	for i, entry := range entries {
		keyCell := fmt.Sprintf("A%d", i+1)
		valueCell := fmt.Sprintf("B%d", i+1)

		if err := f.SetCellValue(metadataSheet, keyCell, entry[0]); err != nil {
			return fmt.Errorf("failed to write metadata key: %w", err)
		}

		if err := f.SetCellValue(metadataSheet, valueCell, entry[1]); err != nil {
			return fmt.Errorf("failed to write metadata value: %w", err)
		}
	}

	return nil
}
