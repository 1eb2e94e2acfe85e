// Package report writes tabular query results to CSV or XLSX files.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// Table is one rendered result set: an optional title, a header row, and
// data rows.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// Write dispatches on the output file's extension.
func Write(path string, tables []Table) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return WriteCSV(path, tables)
	case ".xlsx":
		return WriteXLSX(path, tables)
	default:
		return eris.Errorf("report: unsupported output format %q, want .csv or .xlsx", filepath.Ext(path))
	}
}

// WriteCSV writes the tables to one CSV file, separated by blank lines.
// Titles become single-field rows ahead of their header.
func WriteCSV(path string, tables []Table) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "report: create %s", path)
	}
	defer f.Close() //nolint:errcheck

	w := csv.NewWriter(f)
	for i, t := range tables {
		if i > 0 {
			if err := w.Write([]string{""}); err != nil {
				return eris.Wrap(err, "report: write separator")
			}
		}
		if t.Title != "" {
			if err := w.Write([]string{t.Title}); err != nil {
				return eris.Wrap(err, "report: write title")
			}
		}
		if err := w.Write(t.Headers); err != nil {
			return eris.Wrap(err, "report: write header")
		}
		for _, row := range t.Rows {
			if err := w.Write(row); err != nil {
				return eris.Wrap(err, "report: write row")
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrapf(err, "report: flush %s", path)
	}
	return nil
}

// WriteXLSX writes each table to its own sheet.
func WriteXLSX(path string, tables []Table) error {
	f := xlsx.NewFile()

	seen := map[string]int{}
	for i, t := range tables {
		name := sheetName(t.Title, i, seen)
		sheet, err := f.AddSheet(name)
		if err != nil {
			return eris.Wrapf(err, "report: add sheet %q", name)
		}

		header := sheet.AddRow()
		for _, h := range t.Headers {
			header.AddCell().Value = h
		}
		for _, row := range t.Rows {
			r := sheet.AddRow()
			for _, v := range row {
				r.AddCell().Value = v
			}
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "report: save %s", path)
	}
	return nil
}

// sheetName derives a legal, unique XLSX sheet name from a table title.
// Sheet names are capped at 31 characters and may not contain []:*?/\.
func sheetName(title string, index int, seen map[string]int) string {
	name := title
	if name == "" {
		name = fmt.Sprintf("Sheet%d", index+1)
	}
	name = strings.Map(func(r rune) rune {
		switch r {
		case '[', ']', ':', '*', '?', '/', '\\':
			return '_'
		}
		return r
	}, name)
	if len(name) > 31 {
		name = name[:31]
	}

	if n := seen[name]; n > 0 {
		seen[name] = n + 1
		suffix := fmt.Sprintf(" (%d)", n+1)
		if len(name)+len(suffix) > 31 {
			name = name[:31-len(suffix)]
		}
		name += suffix
	} else {
		seen[name] = 1
	}
	return name
}
