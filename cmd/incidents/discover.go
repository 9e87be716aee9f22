package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/spektr-org/incidents/dataset"
	"github.com/spektr-org/incidents/schema"
	"github.com/spektr-org/incidents/translator"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Describe the dimensions and measures available to analyses",
	Long: `Print the keys an analyses file or query may group and filter by.

By default this is the cleaned incident schema and nothing is fetched.
With --upstream the incident CSV is fetched and its schema discovered from
the header and a sample of rows, which is what query --raw works against.`,
	Args: cobra.NoArgs,
	RunE: runDiscover,
}

var discoverOpts struct {
	upstream bool
	format   string
}

func init() {
	discoverCmd.Flags().BoolVar(&discoverOpts.upstream, "upstream", false, "discover the schema of the upstream CSV")
	discoverCmd.Flags().StringVar(&discoverOpts.format, "format", "text", "output format: text, json, pretty")
	rootCmd.AddCommand(discoverCmd)
}

func runDiscover(cmd *cobra.Command, _ []string) error {
	sch := schema.IncidentSchema()

	if discoverOpts.upstream {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		client := &http.Client{Timeout: cfg.Source.Timeout}
		data, err := dataset.Fetch(cmd.Context(), client, cfg.Source.IncidentsURL)
		if err != nil {
			return err
		}
		sch, err = schema.DiscoverFromCSV(data)
		if err != nil {
			return fmt.Errorf("discover schema: %w", err)
		}
		log.Phase("discover").Info("schema discovered",
			"dimensions", len(sch.Dimensions),
			"measures", len(sch.Measures),
			"skipped", len(sch.SkippedColumns))
	}

	w := cmd.OutOrStdout()
	switch discoverOpts.format {
	case "json", "pretty":
		return writeJSON(w, sch, discoverOpts.format == "pretty")
	default:
		_, err := fmt.Fprint(w, translator.Describe(*sch))
		return err
	}
}
