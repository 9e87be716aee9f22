package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spektr-org/incidents/dataset"
	"github.com/spektr-org/incidents/engine"
	"github.com/spektr-org/incidents/helpers"
	"github.com/spektr-org/incidents/render"
	"github.com/spektr-org/incidents/schema"
	"github.com/spektr-org/incidents/translator"
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Run one ad-hoc grouping over the incidents",
	Long: `Group and aggregate the cleaned incidents by any dimension and print the
result. With --raw the query runs over the upstream CSV as fetched, with
dimensions discovered from its header, so dropped columns can be grouped too.`,
	Example: `  incidents query --group-by borough --format pretty
  incidents query --group-by year,vic_sex --filter murder=true --format csv
  incidents query --group-by perp_race --filter borough=BRONX --png perp.png
  incidents query --raw --group-by location_desc --limit 10 --format text`,
	Args: cobra.NoArgs,
	RunE: runQuery,
}

var queryOpts struct {
	groupBy     []string
	filters     []string
	aggregation string
	measure     string
	sortBy      string
	limit       int
	visualize   string
	format      string
	out         string
	png         string
	raw         bool
}

func init() {
	flags := queryCmd.Flags()
	flags.StringSliceVarP(&queryOpts.groupBy, "group-by", "g", nil, "dimensions to group by (comma separated, at most two)")
	flags.StringArrayVarP(&queryOpts.filters, "filter", "f", nil, "dimension=value filter, repeatable")
	flags.StringVar(&queryOpts.aggregation, "aggregation", "count", "count, sum, avg, max, min")
	flags.StringVar(&queryOpts.measure, "measure", "", "measure to aggregate (default: incidents)")
	flags.StringVar(&queryOpts.sortBy, "sort", "", "value_desc, value_asc, label_asc, calendar, chronological")
	flags.IntVar(&queryOpts.limit, "limit", 0, "keep the first n groups (0 = all)")
	flags.StringVar(&queryOpts.visualize, "visualize", "bar", "chart type for --png: bar or line")
	flags.StringVar(&queryOpts.format, "format", "text", "output format: json, pretty, text, csv")
	flags.StringVarP(&queryOpts.out, "out", "o", "", "write output to file instead of stdout")
	flags.StringVar(&queryOpts.png, "png", "", "also render the chart to this PNG file")
	flags.BoolVar(&queryOpts.raw, "raw", false, "query the upstream CSV with a discovered schema")

	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: cfg.Source.Timeout}
	data, err := dataset.Fetch(cmd.Context(), client, cfg.Source.IncidentsURL)
	if err != nil {
		return err
	}

	var (
		view    engine.RecordView
		sch     *schema.Config
		measure = dataset.MeasureIncidents
	)
	if queryOpts.raw {
		view, sch, err = helpers.ParseCSVAutoView(data)
		if err != nil {
			return err
		}
		if queryOpts.measure == "" {
			queryOpts.measure = sch.GetDefaultMeasure()
		}
		measure = sch.GetDefaultMeasure()
	} else {
		f, err := dataset.Load(data, dataset.LoadOptions{DropColumns: cfg.Clean.DropColumns})
		if err != nil {
			return err
		}
		incidents, _, err := dataset.Clean(f)
		if err != nil {
			return err
		}
		view = dataset.View(incidents)
		sch = schema.IncidentSchema()
	}

	spec, err := querySpec(queryOpts.groupBy, queryOpts.filters)
	if err != nil {
		return err
	}
	if err := translator.Validate([]engine.QuerySpec{spec}, *sch); err != nil {
		return err
	}

	res, err := engine.Execute(spec, view,
		engine.WithLogger(log.Phase("analyze")),
		engine.WithDefaultMeasure(measure))
	if err != nil {
		return err
	}

	if queryOpts.png != "" && res.ChartConfig != nil {
		png, err := render.Render(res.ChartConfig, render.Options{Width: cfg.Report.ChartWidth, Height: cfg.Report.ChartHeight})
		if err != nil {
			return err
		}
		if err := os.WriteFile(queryOpts.png, png, 0o644); err != nil {
			return fmt.Errorf("write chart: %w", err)
		}
		log.Phase("write").Info("chart written", "path", queryOpts.png)
	}

	w := cmd.OutOrStdout()
	if queryOpts.out != "" {
		f, err := os.Create(queryOpts.out)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}
	return writeResult(w, spec, res, queryOpts.format)
}

// querySpec builds a single analysis from command-line flags.
func querySpec(groupBy, filters []string) (engine.QuerySpec, error) {
	f, bad := engine.ParseFilterArgs(filters)
	if len(bad) > 0 {
		return engine.QuerySpec{}, fmt.Errorf("malformed --filter %q (want dimension=value)", filters[bad[0]])
	}
	if len(groupBy) > 2 {
		return engine.QuerySpec{}, fmt.Errorf("at most two --group-by dimensions, got %d", len(groupBy))
	}

	spec := engine.QuerySpec{
		Name:        "query",
		Intent:      "text",
		Filters:     f,
		Aggregation: queryOpts.aggregation,
		Measure:     queryOpts.measure,
		GroupBy:     groupBy,
		SortBy:      queryOpts.sortBy,
		Limit:       queryOpts.limit,
		Visualize:   queryOpts.visualize,
	}
	if len(groupBy) > 0 {
		spec.Intent = "chart"
		spec.Title = "Incidents by " + strings.Join(groupBy, " and ")
	}
	return translator.Complete(spec), nil
}

// ============================================================================
// OUTPUT
// ============================================================================

type queryOutput struct {
	QuerySpec engine.QuerySpec `json:"querySpec"`
	Result    *engine.Result   `json:"result"`
}

func writeResult(w io.Writer, spec engine.QuerySpec, res *engine.Result, format string) error {
	switch format {
	case "csv":
		return writeCSV(w, res)
	case "json", "pretty":
		return writeJSON(w, queryOutput{QuerySpec: spec, Result: res}, format == "pretty")
	default:
		return writeText(w, res)
	}
}

func writeText(w io.Writer, res *engine.Result) error {
	if res.Reply != "" {
		if _, err := fmt.Fprintln(w, res.Reply); err != nil {
			return err
		}
	}
	if res.TableData == nil {
		if res.Reply == "" {
			_, err := fmt.Fprintln(w, "No result.")
			return err
		}
		return nil
	}
	for _, row := range res.TableData.Rows {
		if _, err := fmt.Fprintln(w, strings.Join(row, "\t")); err != nil {
			return err
		}
	}
	return nil
}

// writeCSV writes chart data (one column per series), else table data,
// else the reply as a single cell.
func writeCSV(w io.Writer, res *engine.Result) error {
	cw := csv.NewWriter(w)

	switch {
	case res.ChartConfig != nil && len(res.ChartConfig.Series) > 0:
		c := res.ChartConfig
		x := c.XAxis
		if x == "" {
			x = "Label"
		}
		header := []string{x}
		for _, s := range c.Series {
			header = append(header, s.Name)
		}
		_ = cw.Write(header)
		for i, label := range c.Labels() {
			row := []string{label}
			for _, s := range c.Series {
				if i < len(s.Data) {
					row = append(row, fmtNum(s.Data[i].Value))
				} else {
					row = append(row, "")
				}
			}
			_ = cw.Write(row)
		}
	case res.TableData != nil:
		header := make([]string, len(res.TableData.Columns))
		for i, c := range res.TableData.Columns {
			header[i] = c.Label
		}
		_ = cw.Write(header)
		for _, row := range res.TableData.Rows {
			_ = cw.Write(row)
		}
	default:
		reply := res.Reply
		if reply == "" {
			reply = "No data"
		}
		_ = cw.Write([]string{"Summary"})
		_ = cw.Write([]string{reply})
	}

	cw.Flush()
	return cw.Error()
}

func writeJSON(w io.Writer, v any, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

// fmtNum prints whole numbers without decimals and fractions with two.
func fmtNum(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.2f", v)
}
