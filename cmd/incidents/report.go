package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spektr-org/incidents/report"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Fetch, clean and analyse the data and write the HTML report",
	Long: `Write report.html together with every chart PNG, the static borough map
and the annotated borough GeoJSON into the output directory. With
--workbook the report tables are also written to summary.xlsx.`,
	Args: cobra.NoArgs,
	RunE: runReport,
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print the report tables to the terminal without writing files",
	Args:  cobra.NoArgs,
	RunE:  runSummary,
}

func init() {
	flags := reportCmd.Flags()
	flags.StringP("out", "o", "", "output directory")
	flags.String("title", "", "report title")
	flags.String("analyses", "", "YAML/JSON analyses file replacing the built-in analyses")
	flags.Bool("workbook", false, "also write summary.xlsx")
	flags.Int("horizon", 0, "years to forecast past the last observed year")
	flags.Bool("exclude-last-year", false, "leave the most recent (possibly partial) year out of the forecast fit")

	_ = viper.BindPFlag("report.out_dir", flags.Lookup("out"))
	_ = viper.BindPFlag("report.title", flags.Lookup("title"))
	_ = viper.BindPFlag("report.analyses_file", flags.Lookup("analyses"))
	_ = viper.BindPFlag("report.workbook", flags.Lookup("workbook"))
	_ = viper.BindPFlag("forecast.horizon", flags.Lookup("horizon"))
	_ = viper.BindPFlag("forecast.exclude_last_year", flags.Lookup("exclude-last-year"))

	rootCmd.AddCommand(reportCmd, summaryCmd)
}

func runReport(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	in, err := prepare(ctx, cfg, log)
	if err != nil {
		return err
	}
	r, err := report.Build(ctx, in)
	if err != nil {
		return err
	}

	wlog := log.Phase("write")
	written, err := report.WriteFiles(cfg.Report.OutDir, r)
	if err != nil {
		return err
	}
	if cfg.Report.Workbook {
		path := filepath.Join(cfg.Report.OutDir, report.WorkbookFile)
		if err := writeWorkbook(path, r); err != nil {
			return err
		}
		written = append(written, path)
	}
	wlog.Info("report written", "dir", cfg.Report.OutDir, "files", len(written))

	fmt.Fprintln(cmd.OutOrStdout(), filepath.Join(cfg.Report.OutDir, report.HTMLFile))
	return nil
}

func writeWorkbook(path string, r *report.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create workbook: %w", err)
	}
	if err := report.WriteWorkbook(f, r, report.WorkbookOptions{Pictures: true}); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func runSummary(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	in, err := prepare(ctx, cfg, log)
	if err != nil {
		return err
	}
	r, err := report.Build(ctx, in)
	if err != nil {
		return err
	}
	return report.PrintSummary(cmd.OutOrStdout(), r)
}
