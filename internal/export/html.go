package export

import (
	"fmt"
	"html/template"
	"os"
	"time"
)

// reportTemplate renders a standalone styled page; html/template
// escapes every cell value
var reportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: -apple-system, "Segoe UI", Roboto, sans-serif; margin: 2rem; color: #1a1a2e; }
h1 { font-size: 1.4rem; }
p.meta { color: #6b7280; font-size: 0.85rem; }
table { border-collapse: collapse; width: 100%; margin-top: 1rem; }
th { background: #4472c4; color: #fff; text-align: left; padding: 0.5rem 0.75rem; position: sticky; top: 0; }
td { border-bottom: 1px solid #e5e7eb; padding: 0.4rem 0.75rem; }
tr:nth-child(even) td { background: #f8fafc; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p class="meta">Generated {{.GeneratedAt}} &middot; {{.RowCount}} rows</p>
<table>
<thead>
<tr>{{range .Headers}}<th>{{.}}</th>{{end}}</tr>
</thead>
<tbody>
{{range .Rows}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>
{{end}}</tbody>
</table>
</body>
</html>
`))

type htmlData struct {
	Title       string
	GeneratedAt string
	RowCount    int
	Headers     []string
	Rows        [][]string
}

func writeHTML(path string, source Source, opts Options) error {
	title := opts.Title
	if title == "" {
		title = "Report"
	}

	data := htmlData{
		Title:       title,
		GeneratedAt: time.Now().UTC().Format(datetimeLayout),
		RowCount:    len(source.Rows),
		Headers:     headerLabels(source.Columns),
		Rows:        make([][]string, len(source.Rows)),
	}

	for i, row := range source.Rows {
		cells := make([]string, len(source.Columns))

		for j, col := range source.Columns {
			var value interface{}
			if j < len(row) {
				value = row[j]
			}

			cells[j] = formatCell(value, col.Type, opts.CurrencySymbol)
		}

		data.Rows[i] = cells
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	defer file.Close()

	if err := reportTemplate.Execute(file, data); err != nil {
		return fmt.Errorf("failed to render template: %w", err)
	}

	return nil
}
