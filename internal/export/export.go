// Package export renders executed report results into downloadable
// files: CSV, Excel, JSON, XML, and HTML. Formatting of typed cell
// values is shared across formats so a currency column looks the same
// in a spreadsheet and a CSV.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	enginerrors "github.com/kyleking/report-engine/internal/errors"
	"github.com/kyleking/report-engine/internal/logging"
)

// Format identifies an export output format
type Format string

const (
	FormatCSV   Format = "csv"
	FormatExcel Format = "xlsx"
	FormatJSON  Format = "json"
	FormatXML   Format = "xml"
	FormatHTML  Format = "html"
)

// KnownFormat reports whether the format is supported
func KnownFormat(f Format) bool {
	switch f {
	case FormatCSV, FormatExcel, FormatJSON, FormatXML, FormatHTML:
		return true
	}

	return false
}

// Options controls one export
type Options struct {
	Format         Format
	Filename       string
	Title          string
	Delimiter      rune
	IncludeBOM     bool
	Pretty         bool
	CurrencySymbol string
}

// Result describes a completed export
type Result struct {
	Success     bool   `json:"success"`
	Format      Format `json:"format"`
	Filename    string `json:"filename"`
	Filepath    string `json:"filepath"`
	Size        int64  `json:"size"`
	Rows        int    `json:"rows"`
	URL         string `json:"url"`
	DownloadURL string `json:"download_url"`
}

// Source is what an exporter consumes: column metadata plus rows with
// values in column order. compile.ExecutionResult satisfies the shape.
type Source struct {
	Columns []Column
	Rows    [][]interface{}
}

// Column is the per-column metadata exports rely on
type Column struct {
	Name  string
	Label string
	Type  string
}

// Exporter writes report results into the export directory
type Exporter struct {
	dir     string
	baseURL string
}

// NewExporter creates an exporter rooted at the directory
func NewExporter(dir, baseURL string) *Exporter {
	return &Exporter{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}
}

// Export renders the source in the requested format and writes it to
// the export directory
func (e *Exporter) Export(source Source, opts Options) (*Result, error) {
	if !KnownFormat(opts.Format) {
		return nil, enginerrors.Newf(enginerrors.ErrTypeValidation,
			"unsupported export format %q", opts.Format)
	}

	if err := os.MkdirAll(e.dir, 0755); err != nil {
		return nil, enginerrors.Wrap(err, enginerrors.ErrTypeExport,
			"failed to create export directory")
	}

	filename := opts.Filename
	if filename == "" {
		filename = fmt.Sprintf("report_%s.%s",
			time.Now().UTC().Format("20060102_150405"), opts.Format)
	} else if !strings.HasSuffix(filename, "."+string(opts.Format)) {
		filename += "." + string(opts.Format)
	}

	path := filepath.Join(e.dir, filename)

	var err error

	switch opts.Format {
	case FormatCSV:
		err = writeCSV(path, source, opts)
	case FormatExcel:
		err = writeExcel(path, source, opts)
	case FormatJSON:
		err = writeJSON(path, source, opts)
	case FormatXML:
		err = writeXML(path, source, opts)
	case FormatHTML:
		err = writeHTML(path, source, opts)
	}

	if err != nil {
		return nil, enginerrors.Wrapf(err, enginerrors.ErrTypeExport,
			"failed to write %s export", opts.Format)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, enginerrors.Wrap(err, enginerrors.ErrTypeExport,
			"failed to stat export file")
	}

	logging.GetLogger().WithFields(map[string]interface{}{
		"format": string(opts.Format),
		"file":   filename,
		"rows":   len(source.Rows),
		"bytes":  info.Size(),
	}).Info("report exported")

	return &Result{
		Success:     true,
		Format:      opts.Format,
		Filename:    filename,
		Filepath:    path,
		Size:        info.Size(),
		Rows:        len(source.Rows),
		URL:         e.baseURL + "/" + filename,
		DownloadURL: e.baseURL + "/" + filename + "?download=1",
	}, nil
}

// headerLabels returns the display header for each column
func headerLabels(columns []Column) []string {
	labels := make([]string, len(columns))

	for i, col := range columns {
		if col.Label != "" {
			labels[i] = col.Label
		} else {
			labels[i] = col.Name
		}
	}

	return labels
}
