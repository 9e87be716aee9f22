package report

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/spektr-org/incidents/engine"
)

// ============================================================================
// WORKBOOK — XLSX export of the report tables
// ============================================================================
// One "Summary" sheet with the headline numbers and data checks, one sheet
// per tabular section, a "Forecast" sheet and a "Boroughs" sheet. Chart
// PNGs are placed to the right of their tables when Pictures is set.
// ============================================================================

// WorkbookOptions controls WriteWorkbook.
type WorkbookOptions struct {
	Pictures bool
}

const (
	sheetSummary  = "Summary"
	sheetForecast = "Forecast"
	sheetBoroughs = "Boroughs"
	maxSheetName  = 31
)

type workbook struct {
	f      *excelize.File
	header int
	opts   WorkbookOptions
}

// WriteWorkbook writes r as an XLSX document to w.
func WriteWorkbook(w io.Writer, r *Report, opts WorkbookOptions) error {
	f := excelize.NewFile()
	defer f.Close()

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"1F4E79"}},
	})
	if err != nil {
		return fmt.Errorf("workbook style: %w", err)
	}
	wb := &workbook{f: f, header: header, opts: opts}

	if err := f.SetSheetName("Sheet1", sheetSummary); err != nil {
		return fmt.Errorf("workbook: %w", err)
	}
	if err := wb.summary(r); err != nil {
		return err
	}
	used := map[string]bool{sheetSummary: true, sheetForecast: true, sheetBoroughs: true}
	for _, s := range r.Sections {
		if s.Result == nil || s.Result.TableData == nil {
			continue
		}
		name := sheetName(s.Name, used)
		if err := wb.table(name, s.Result.TableData, s.PNG); err != nil {
			return err
		}
	}
	if err := wb.forecast(r.Forecast); err != nil {
		return err
	}
	if err := wb.boroughs(r.Map); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// sheetName trims name to the XLSX limit and makes it unique.
func sheetName(name string, used map[string]bool) string {
	name = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return '_'
		}
		return r
	}, name)
	if len(name) > maxSheetName {
		name = name[:maxSheetName]
	}
	base := name
	for i := 2; used[name]; i++ {
		suffix := fmt.Sprintf("_%d", i)
		if len(base)+len(suffix) > maxSheetName {
			base = base[:maxSheetName-len(suffix)]
		}
		name = base + suffix
	}
	used[name] = true
	return name
}

// rows writes header plus rows starting at A1, styles the header and
// freezes it.
func (wb *workbook) rows(sheet string, header []string, rows [][]any) error {
	if _, err := wb.f.NewSheet(sheet); err != nil {
		return fmt.Errorf("sheet %s: %w", sheet, err)
	}
	hdr := make([]any, len(header))
	for i, h := range header {
		hdr[i] = h
	}
	if err := wb.f.SetSheetRow(sheet, "A1", &hdr); err != nil {
		return fmt.Errorf("sheet %s: %w", sheet, err)
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := wb.f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("sheet %s row %d: %w", sheet, i+2, err)
		}
	}

	last, _ := excelize.CoordinatesToCellName(len(header), 1)
	if err := wb.f.SetCellStyle(sheet, "A1", last, wb.header); err != nil {
		return fmt.Errorf("sheet %s: %w", sheet, err)
	}
	lastCol, _, _ := excelize.SplitCellName(last)
	if err := wb.f.SetColWidth(sheet, "A", lastCol, 18); err != nil {
		return fmt.Errorf("sheet %s: %w", sheet, err)
	}
	return wb.f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func (wb *workbook) picture(sheet string, col int, png []byte) error {
	if !wb.opts.Pictures || len(png) == 0 {
		return nil
	}
	cell, _ := excelize.CoordinatesToCellName(col+2, 2)
	err := wb.f.AddPictureFromBytes(sheet, cell, &excelize.Picture{
		Extension: ".png",
		File:      png,
		Format:    &excelize.GraphicOptions{ScaleX: 0.6, ScaleY: 0.6},
	})
	if err != nil {
		return fmt.Errorf("sheet %s picture: %w", sheet, err)
	}
	return nil
}

func (wb *workbook) summary(r *Report) error {
	s := r.Summary
	rows := [][]any{
		{"Title", r.Title},
		{"Generated", r.GeneratedAt.Format("2006-01-02 15:04")},
		{"Incidents source", r.Source.IncidentsURL},
		{"Boroughs source", r.Source.BoroughsURL},
		{"Period", s.Period},
		{"Rows read", s.Rows},
		{"Incidents", s.Incidents},
		{"Murders", s.Murders},
		{"Rows without date", s.MissingDate},
		{"Incidents without time", s.MissingTime},
		{"Incidents without location", s.MissingLocation},
		{"Mapped incidents", s.Mapped},
		{"Dropped columns", strings.Join(s.Dropped, ", ")},
		{"Columns not found", strings.Join(s.NotFound, ", ")},
		{"Location matches recorded borough", s.LocatedMatched},
		{"Location in another borough", s.LocatedMismatch},
		{"Location outside all boroughs", s.LocatedOutside},
	}
	for _, sec := range r.Sections {
		if sec.Type == "text" && sec.Reply != "" {
			rows = append(rows, []any{sec.Title, sec.Reply})
		}
	}
	for _, c := range r.Audit.Checks {
		status := "pass"
		if !c.Passed {
			status = "FAIL: " + c.Detail
		}
		rows = append(rows, []any{"Check " + c.Name, status})
	}

	// NewSheet returns the existing index for the renamed default sheet.
	return wb.rows(sheetSummary, []string{"Item", "Value"}, rows)
}

func (wb *workbook) table(sheet string, td *engine.TableData, png []byte) error {
	header := make([]string, len(td.Columns))
	for i, c := range td.Columns {
		header[i] = c.Label
	}
	rows := make([][]any, 0, len(td.Rows)+1)
	for _, row := range td.Rows {
		out := make([]any, len(row))
		for i, v := range row {
			out[i] = cellValue(td.Columns, i, v)
		}
		rows = append(rows, out)
	}
	if td.Summary != nil {
		out := make([]any, len(td.Columns))
		for i, c := range td.Columns {
			if i == 0 {
				out[i] = td.Summary.Label
				continue
			}
			out[i] = cellValue(td.Columns, i, td.Summary.Values[c.Key])
		}
		rows = append(rows, out)
	}
	if err := wb.rows(sheet, header, rows); err != nil {
		return err
	}
	return wb.picture(sheet, len(header), png)
}

// cellValue stores number columns as numbers so the sheet can be summed.
func cellValue(cols []engine.Column, i int, v string) any {
	if i >= len(cols) || cols[i].Type != "number" {
		return v
	}
	n, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", ""), 64)
	if err != nil {
		return v
	}
	return n
}

func (wb *workbook) forecast(fs ForecastSection) error {
	header := []string{"Year", "Observed", "Expected", "Lower 95%", "Upper 95%"}
	var rows [][]any
	for _, p := range fs.Observed {
		row := []any{p.Year, p.Count}
		if p.Year == fs.Excluded {
			row = append(row, "excluded from fit")
		}
		rows = append(rows, row)
	}
	if fs.Result != nil {
		for _, p := range fs.Result.Predictions {
			rows = append(rows, []any{p.Year, "", p.Expected, p.Lower, p.Upper})
		}
		m := fs.Result.Model
		rows = append(rows,
			[]any{},
			[]any{"Annual change", m.AnnualChange()},
			[]any{"Deviance", m.Deviance},
			[]any{"Log-likelihood", m.LogLike},
		)
		for _, g := range fs.ByBorough {
			if g.Err != nil {
				rows = append(rows, []any{g.Group, "", "n/a"})
				continue
			}
			next := g.Result.Next()
			rows = append(rows, []any{g.Group, next.Year, next.Expected, next.Lower, next.Upper})
		}
	} else if fs.Unavailable != "" {
		rows = append(rows, []any{}, []any{fs.Unavailable})
	}
	if err := wb.rows(sheetForecast, header, rows); err != nil {
		return err
	}
	return wb.picture(sheetForecast, len(header), fs.PNG)
}

func (wb *workbook) boroughs(ms MapSection) error {
	header := []string{"Borough", "Incidents", "Share %", "Class"}
	var rows [][]any
	if ms.Choropleth != nil {
		for _, st := range ms.Choropleth.Stats {
			rows = append(rows, []any{st.Name, st.Count, st.Share, st.Class + 1})
		}
		names := make([]string, 0, len(ms.Choropleth.Unmatched))
		for name := range ms.Choropleth.Unmatched {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			rows = append(rows, []any{name, ms.Choropleth.Unmatched[name], "", "no polygon"})
		}
	}
	if err := wb.rows(sheetBoroughs, header, rows); err != nil {
		return err
	}
	return wb.picture(sheetBoroughs, len(header), ms.PNG)
}
