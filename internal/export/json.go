package export

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

type jsonEnvelope struct {
	Metadata jsonMetadata             `json:"metadata"`
	Columns  []jsonColumn             `json:"columns"`
	Data     []map[string]interface{} `json:"data"`
}

type jsonMetadata struct {
	Title       string    `json:"title,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
	RowCount    int       `json:"row_count"`
	ColumnCount int       `json:"column_count"`
}

type jsonColumn struct {
	Name  string `json:"name"`
	Label string `json:"label"`
	Type  string `json:"type"`
}

func writeJSON(path string, source Source, opts Options) error {
	envelope := jsonEnvelope{
		Metadata: jsonMetadata{
			Title:       opts.Title,
			GeneratedAt: time.Now().UTC(),
			RowCount:    len(source.Rows),
			ColumnCount: len(source.Columns),
		},
		Columns: make([]jsonColumn, len(source.Columns)),
		Data:    make([]map[string]interface{}, len(source.Rows)),
	}

	for i, col := range source.Columns {
		label := col.Label
		if label == "" {
			label = col.Name
		}

		envelope.Columns[i] = jsonColumn{Name: col.Name, Label: label, Type: col.Type}
	}

	for i, row := range source.Rows {
		record := make(map[string]interface{}, len(source.Columns))

		for j, col := range source.Columns {
			var value interface{}
			if j < len(row) {
				value = row[j]
			}

			if value == nil {
				record[col.Name] = nil
			} else {
				record[col.Name] = formatCell(value, col.Type, opts.CurrencySymbol)
			}
		}

		envelope.Data[i] = record
	}

	var (
		encoded []byte
		err     error
	)

	if opts.Pretty {
		encoded, err = json.MarshalIndent(envelope, "", "  ")
	} else {
		encoded, err = json.Marshal(envelope)
	}

	if err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}

	if err := os.WriteFile(path, encoded, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}
