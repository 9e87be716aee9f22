package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default upstream sources: NYC Open Data shooting incidents (historic)
// and borough boundaries.
const (
	DefaultIncidentsURL = "https://data.cityofnewyork.us/api/views/833y-fsy8/rows.csv?accessType=DOWNLOAD"
	DefaultBoroughsURL  = "https://data.cityofnewyork.us/api/geospatial/tqmj-j8zm?method=export&format=GeoJSON"
	DefaultTilesURL     = "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png"
)

// Config represents the complete report configuration
type Config struct {
	Source   SourceConfig   `mapstructure:"source"`
	Clean    CleanConfig    `mapstructure:"clean"`
	Report   ReportConfig   `mapstructure:"report"`
	Map      MapConfig      `mapstructure:"map"`
	Forecast ForecastConfig `mapstructure:"forecast"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// SourceConfig controls where input data comes from
type SourceConfig struct {
	// IncidentsURL is the incident CSV location (http(s) URL, file:// URL or local path)
	IncidentsURL string `mapstructure:"incidents_url"`
	// BoroughsURL is the borough boundary GeoJSON location
	BoroughsURL string `mapstructure:"boroughs_url"`
	// Timeout bounds each fetch
	Timeout time.Duration `mapstructure:"timeout"`
	// BoroughProperty is the GeoJSON feature property holding the borough name
	BoroughProperty string `mapstructure:"borough_property"`
}

// CleanConfig controls column selection
type CleanConfig struct {
	// DropColumns are removed from the frame before records are built
	DropColumns []string `mapstructure:"drop_columns"`
}

// ReportConfig controls report output
type ReportConfig struct {
	OutDir string `mapstructure:"out_dir"`
	Title  string `mapstructure:"title"`
	// Workbook also writes summary.xlsx next to the HTML report
	Workbook bool `mapstructure:"workbook"`
	// AnalysesFile replaces the built-in analyses with a YAML/JSON list
	AnalysesFile string `mapstructure:"analyses_file"`
	// ChartWidth and ChartHeight are PNG sizes in pixels
	ChartWidth  int `mapstructure:"chart_width"`
	ChartHeight int `mapstructure:"chart_height"`
}

// MapConfig controls the interactive and static maps
type MapConfig struct {
	TilesURL         string `mapstructure:"tiles_url"`
	GeohashPrecision uint   `mapstructure:"geohash_precision"`
	// MaxPoints caps the number of clustered markers embedded in the report (0 = no cap)
	MaxPoints int `mapstructure:"max_points"`
}

// ForecastConfig controls the Poisson extrapolation
type ForecastConfig struct {
	// Horizon is the number of years to extrapolate past the last observed year
	Horizon int `mapstructure:"horizon"`
	// ExcludeLastYear drops the most recent year from the fit (useful when it is partial)
	ExcludeLastYear bool `mapstructure:"exclude_last_year"`
}

// LoggingConfig controls log output
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Default returns a Config with sensible defaults
func Default() *Config {
	return &Config{
		Source: SourceConfig{
			IncidentsURL:    DefaultIncidentsURL,
			BoroughsURL:     DefaultBoroughsURL,
			Timeout:         2 * time.Minute,
			BoroughProperty: "boro_name",
		},
		Clean: CleanConfig{
			DropColumns: []string{
				"LOC_OF_OCCUR_DESC",
				"JURISDICTION_CODE",
				"LOC_CLASSFCTN_DESC",
				"LOCATION_DESC",
				"X_COORD_CD",
				"Y_COORD_CD",
				"Lon_Lat",
			},
		},
		Report: ReportConfig{
			OutDir:      "report",
			Title:       "NYPD Shooting Incidents",
			Workbook:    false,
			ChartWidth:  900,
			ChartHeight: 450,
		},
		Map: MapConfig{
			TilesURL:         DefaultTilesURL,
			GeohashPrecision: 6,
			MaxPoints:        5000,
		},
		Forecast: ForecastConfig{
			Horizon: 1,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Source defaults
	viper.SetDefault("source.incidents_url", defaults.Source.IncidentsURL)
	viper.SetDefault("source.boroughs_url", defaults.Source.BoroughsURL)
	viper.SetDefault("source.timeout", defaults.Source.Timeout)
	viper.SetDefault("source.borough_property", defaults.Source.BoroughProperty)

	// Clean defaults
	viper.SetDefault("clean.drop_columns", defaults.Clean.DropColumns)

	// Report defaults
	viper.SetDefault("report.out_dir", defaults.Report.OutDir)
	viper.SetDefault("report.title", defaults.Report.Title)
	viper.SetDefault("report.workbook", defaults.Report.Workbook)
	viper.SetDefault("report.analyses_file", defaults.Report.AnalysesFile)
	viper.SetDefault("report.chart_width", defaults.Report.ChartWidth)
	viper.SetDefault("report.chart_height", defaults.Report.ChartHeight)

	// Map defaults
	viper.SetDefault("map.tiles_url", defaults.Map.TilesURL)
	viper.SetDefault("map.geohash_precision", defaults.Map.GeohashPrecision)
	viper.SetDefault("map.max_points", defaults.Map.MaxPoints)

	// Forecast defaults
	viper.SetDefault("forecast.horizon", defaults.Forecast.Horizon)
	viper.SetDefault("forecast.exclude_last_year", defaults.Forecast.ExcludeLastYear)

	// Logging defaults
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.format", defaults.Logging.Format)
}

// Load reads the configuration from viper
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ConfigDir returns the configuration directory path
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "incidents")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".incidents"
	}
	return filepath.Join(home, ".config", "incidents")
}

// EnvPrefix is the prefix for environment overrides,
// e.g. INCIDENTS_SOURCE_INCIDENTS_URL for source.incidents_url.
const EnvPrefix = "INCIDENTS"

// EnvKeyReplacer maps nested keys to environment variable names.
func EnvKeyReplacer() *strings.Replacer {
	return strings.NewReplacer(".", "_")
}
