package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/spektr-org/incidents/engine"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).MarginTop(1)
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	numberStyle = cellStyle.Align(lipgloss.Right)
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// PrintSummary writes the report's headline numbers, data checks, section
// tables and forecast as terminal tables.
func PrintSummary(w io.Writer, r *Report) error {
	var b strings.Builder

	b.WriteString(titleStyle.Render(r.Title))
	b.WriteString("\n")
	s := r.Summary
	b.WriteString(renderTable([]string{"Item", "Value"}, []int{1}, [][]string{
		{"Period", s.Period},
		{"Rows read", engine.FormatInt(s.Rows)},
		{"Incidents", engine.FormatInt(s.Incidents)},
		{"Murders", engine.FormatInt(s.Murders)},
		{"Without date", engine.FormatInt(s.MissingDate)},
		{"Without time", engine.FormatInt(s.MissingTime)},
		{"Without location", engine.FormatInt(s.MissingLocation)},
		{"Mapped", engine.FormatInt(s.Mapped)},
	}))
	b.WriteString("\n")

	if len(r.Audit.Checks) > 0 {
		rows := make([][]string, len(r.Audit.Checks))
		for i, c := range r.Audit.Checks {
			status := "pass"
			if !c.Passed {
				status = failStyle.Render("FAIL")
			}
			rows[i] = []string{c.Name, status, c.Detail}
		}
		b.WriteString(titleStyle.Render("Data checks"))
		b.WriteString("\n")
		b.WriteString(renderTable([]string{"Check", "Status", "Detail"}, nil, rows))
		b.WriteString("\n")
	}

	for _, sec := range r.Sections {
		b.WriteString(titleStyle.Render(sec.Title))
		b.WriteString("\n")
		if sec.Reply != "" {
			b.WriteString(mutedStyle.Render(sec.Reply))
			b.WriteString("\n")
		}
		if sec.Result != nil && sec.Result.TableData != nil {
			b.WriteString(sectionTable(sec.Result.TableData))
			b.WriteString("\n")
		}
	}

	b.WriteString(titleStyle.Render("Forecast"))
	b.WriteString("\n")
	b.WriteString(forecastText(r.Forecast))

	_, err := io.WriteString(w, b.String())
	return err
}

func sectionTable(td *engine.TableData) string {
	headers := make([]string, len(td.Columns))
	var numeric []int
	for i, c := range td.Columns {
		headers[i] = c.Label
		if c.Align == "right" || c.Type == "number" || c.Type == "percent" {
			numeric = append(numeric, i)
		}
	}
	rows := td.Rows
	if td.Summary != nil {
		total := make([]string, len(td.Columns))
		for i, c := range td.Columns {
			if i == 0 {
				total[i] = td.Summary.Label
				continue
			}
			total[i] = td.Summary.Values[c.Key]
		}
		rows = append(rows[:len(rows):len(rows)], total)
	}
	return renderTable(headers, numeric, rows)
}

func forecastText(fs ForecastSection) string {
	if fs.Result == nil {
		msg := fs.Unavailable
		if msg == "" {
			msg = "No forecast."
		}
		return mutedStyle.Render(msg) + "\n"
	}
	var rows [][]string
	for _, p := range fs.Result.Predictions {
		rows = append(rows, []string{
			fmt.Sprint(p.Year),
			engine.FormatNumber(p.Expected, 0),
			engine.FormatNumber(p.Lower, 0),
			engine.FormatNumber(p.Upper, 0),
		})
	}
	out := renderTable([]string{"Year", "Expected", "Lower 95%", "Upper 95%"}, []int{1, 2, 3}, rows)
	change := fs.Result.Model.AnnualChange() * 100
	out += "\n" + mutedStyle.Render(fmt.Sprintf("Fitted on %d years; %+.1f%% per year.", fs.Result.Model.N, change)) + "\n"
	return out
}

func renderTable(headers []string, numeric []int, rows [][]string) string {
	right := make(map[int]bool, len(numeric))
	for _, i := range numeric {
		right[i] = true
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(mutedStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case right[col]:
				return numberStyle
			default:
				return cellStyle
			}
		}).
		Headers(headers...).
		Rows(rows...)
	return t.String() + "\n"
}
