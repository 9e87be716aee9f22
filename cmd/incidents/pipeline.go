package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spektr-org/incidents/config"
	"github.com/spektr-org/incidents/dataset"
	"github.com/spektr-org/incidents/engine"
	"github.com/spektr-org/incidents/geo"
	"github.com/spektr-org/incidents/logging"
	"github.com/spektr-org/incidents/render"
	"github.com/spektr-org/incidents/report"
	"github.com/spektr-org/incidents/schema"
	"github.com/spektr-org/incidents/translator"
)

// fetchBoth downloads the incident CSV and the borough GeoJSON.
func fetchBoth(ctx context.Context, cfg *config.Config, log *logging.Logger) (csv, boroughs []byte, err error) {
	client := &http.Client{Timeout: cfg.Source.Timeout}
	flog := log.Phase("fetch")

	start := time.Now()
	csv, err = dataset.Fetch(ctx, client, cfg.Source.IncidentsURL)
	if err != nil {
		return nil, nil, err
	}
	flog.Info("incidents fetched", "bytes", len(csv), "elapsed", time.Since(start).Round(time.Millisecond))

	start = time.Now()
	boroughs, err = dataset.Fetch(ctx, client, cfg.Source.BoroughsURL)
	if err != nil {
		return nil, nil, err
	}
	flog.Info("boroughs fetched", "bytes", len(boroughs), "elapsed", time.Since(start).Round(time.Millisecond))
	return csv, boroughs, nil
}

// prepare runs fetch → load → clean → decode and returns everything
// report.Build needs.
func prepare(ctx context.Context, cfg *config.Config, log *logging.Logger) (report.Inputs, error) {
	var in report.Inputs

	analyses, err := loadAnalyses(cfg.Report.AnalysesFile)
	if err != nil {
		return in, err
	}

	csv, gj, err := fetchBoth(ctx, cfg, log)
	if err != nil {
		return in, err
	}

	f, err := dataset.Load(csv, dataset.LoadOptions{DropColumns: cfg.Clean.DropColumns})
	if err != nil {
		return in, err
	}
	log.Phase("load").Info("frame loaded",
		"rows", f.RowsAfter,
		"columns", len(f.Names()),
		"dropped", len(f.Dropped),
		"not_found", len(f.NotFound))

	incidents, stats, err := dataset.Clean(f)
	if err != nil {
		return in, err
	}
	log.Phase("clean").Info("rows cleaned",
		"incidents", stats.Incidents,
		"missing_date", stats.MissingDate,
		"missing_time", stats.MissingTime,
		"missing_location", stats.MissingLocation)

	boroughs, err := geo.DecodeBoroughs(gj, cfg.Source.BoroughProperty)
	if err != nil {
		return in, err
	}

	return report.Inputs{
		Title: cfg.Report.Title,
		Source: report.Source{
			IncidentsURL: cfg.Source.IncidentsURL,
			BoroughsURL:  cfg.Source.BoroughsURL,
		},
		Frame:     f,
		Incidents: incidents,
		Clean:     stats,
		Boroughs:  boroughs,
		Analyses:  analyses,
		Chart:     render.Options{Width: cfg.Report.ChartWidth, Height: cfg.Report.ChartHeight},
		Forecast: report.ForecastOptions{
			Horizon:         cfg.Forecast.Horizon,
			ExcludeLastYear: cfg.Forecast.ExcludeLastYear,
		},
		Map: report.MapOptions{
			TilesURL:  cfg.Map.TilesURL,
			Precision: cfg.Map.GeohashPrecision,
			MaxPoints: cfg.Map.MaxPoints,
		},
		Logger: log,
	}, nil
}

// loadAnalyses reads an analyses document, or returns the built-in list
// when path is empty.
func loadAnalyses(path string) ([]engine.QuerySpec, error) {
	if path == "" {
		return translator.DefaultAnalyses(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read analyses: %w", err)
	}
	specs, err := translator.DocumentTranslator{}.Translate(data, *schema.IncidentSchema())
	if err != nil {
		return nil, fmt.Errorf("analyses %s: %w", path, err)
	}
	return specs, nil
}
