package export

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
)

// utf8BOM makes Excel open UTF-8 CSVs with the right encoding
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func writeCSV(path string, source Source, opts Options) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	defer file.Close()

	buffered := bufio.NewWriter(file)

	if opts.IncludeBOM {
		if _, err := buffered.Write(utf8BOM); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(buffered)
	if opts.Delimiter != 0 {
		writer.Comma = opts.Delimiter
	}

	if err := writer.Write(headerLabels(source.Columns)); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	record := make([]string, len(source.Columns))

	for _, row := range source.Rows {
		for i, col := range source.Columns {
			var value interface{}
			if i < len(row) {
				value = row[i]
			}

			record[i] = formatCell(value, col.Type, opts.CurrencySymbol)
		}

		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	writer.Flush()

	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}

	if err := buffered.Flush(); err != nil {
		return fmt.Errorf("failed to flush file: %w", err)
	}

	return nil
}
