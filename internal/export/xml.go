package export

import (
	"encoding/xml"
	"fmt"
	"os"
	"time"
)

type xmlReport struct {
	XMLName  xml.Name    `xml:"report"`
	Metadata xmlMetadata `xml:"metadata"`
	Columns  []xmlColumn `xml:"columns>column"`
	Rows     []xmlRow    `xml:"rows>row"`
}

type xmlColumn struct {
	Name  string `xml:"name,attr"`
	Label string `xml:"label,attr"`
	Type  string `xml:"type,attr"`
}

type xmlMetadata struct {
	Title       string `xml:"title,omitempty"`
	GeneratedAt string `xml:"generated_at"`
	RowCount    int    `xml:"row_count"`
}

type xmlRow struct {
	Fields []xmlField `xml:"field"`
}

type xmlField struct {
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

func writeXML(path string, source Source, opts Options) error {
	doc := xmlReport{
		Metadata: xmlMetadata{
			Title:       opts.Title,
			GeneratedAt: time.Now().UTC().Format(time.RFC3339),
			RowCount:    len(source.Rows),
		},
		Columns: make([]xmlColumn, len(source.Columns)),
		Rows:    make([]xmlRow, len(source.Rows)),
	}

	for i, col := range source.Columns {
		doc.Columns[i] = xmlColumn{Name: col.Name, Label: col.Label, Type: col.Type}
	}

	for i, row := range source.Rows {
		fields := make([]xmlField, len(source.Columns))

		for j, col := range source.Columns {
			var value interface{}
			if j < len(row) {
				value = row[j]
			}

			fields[j] = xmlField{
				Name:  col.Name,
				Value: formatCell(value, col.Type, opts.CurrencySymbol),
			}
		}

		doc.Rows[i].Fields = fields
	}

	encoded, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode XML: %w", err)
	}

	output := append([]byte(xml.Header), encoded...)
	output = append(output, '\n')

	if err := os.WriteFile(path, output, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}
