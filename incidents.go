// Package incidents builds a one-shot exploratory report over a public
// shooting incident dataset.
//
// Usage:
//
//	incidents report --out ./report
//	incidents summary
//	incidents query --group-by perp_race --filter boro=BRONX
//
// The pipeline is linear: fetch the incident CSV and borough GeoJSON,
// load and clean the rows (dataset), group and aggregate them through the
// analytics engine (engine), render bar, line and map charts (render),
// fit a Poisson trend to yearly counts (forecast), and write an HTML
// report with an interactive map (report).
//
// Nothing is cached or retried. Any failure aborts the run.
package incidents
