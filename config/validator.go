package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "forecast.horizon")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidLogFormats returns the list of valid log formats
func ValidLogFormats() []string {
	return []string{"text", "json"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateSource()...)
	errors = append(errors, c.validateReport()...)
	errors = append(errors, c.validateMap()...)
	errors = append(errors, c.validateForecast()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

// Check is Validate folded into a single error, nil when the config is valid.
func (c *Config) Check() error {
	if errs := c.Validate(); len(errs) > 0 {
		return ValidationErrors(errs)
	}
	return nil
}

func (c *Config) validateSource() []ValidationError {
	var errors []ValidationError

	if err := validateLocation(c.Source.IncidentsURL); err != "" {
		errors = append(errors, ValidationError{
			Field:   "source.incidents_url",
			Value:   c.Source.IncidentsURL,
			Message: err,
		})
	}
	if err := validateLocation(c.Source.BoroughsURL); err != "" {
		errors = append(errors, ValidationError{
			Field:   "source.boroughs_url",
			Value:   c.Source.BoroughsURL,
			Message: err,
		})
	}
	if c.Source.Timeout <= 0 {
		errors = append(errors, ValidationError{
			Field:   "source.timeout",
			Value:   c.Source.Timeout,
			Message: "must be positive",
		})
	}
	if strings.TrimSpace(c.Source.BoroughProperty) == "" {
		errors = append(errors, ValidationError{
			Field:   "source.borough_property",
			Value:   c.Source.BoroughProperty,
			Message: "must not be empty",
		})
	}

	return errors
}

// validateLocation accepts http(s) and file URLs and bare paths.
func validateLocation(loc string) string {
	if strings.TrimSpace(loc) == "" {
		return "must not be empty"
	}
	u, err := url.Parse(loc)
	if err != nil {
		return "not a valid URL or path"
	}
	switch u.Scheme {
	case "", "file", "http", "https":
		return ""
	default:
		return fmt.Sprintf("unsupported scheme %q", u.Scheme)
	}
}

func (c *Config) validateReport() []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(c.Report.OutDir) == "" {
		errors = append(errors, ValidationError{
			Field:   "report.out_dir",
			Value:   c.Report.OutDir,
			Message: "must not be empty",
		})
	}
	if c.Report.ChartWidth < 200 || c.Report.ChartWidth > 4000 {
		errors = append(errors, ValidationError{
			Field:   "report.chart_width",
			Value:   c.Report.ChartWidth,
			Message: "must be between 200 and 4000",
		})
	}
	if c.Report.ChartHeight < 150 || c.Report.ChartHeight > 3000 {
		errors = append(errors, ValidationError{
			Field:   "report.chart_height",
			Value:   c.Report.ChartHeight,
			Message: "must be between 150 and 3000",
		})
	}

	return errors
}

func (c *Config) validateMap() []ValidationError {
	var errors []ValidationError

	if c.Map.GeohashPrecision < 1 || c.Map.GeohashPrecision > 12 {
		errors = append(errors, ValidationError{
			Field:   "map.geohash_precision",
			Value:   c.Map.GeohashPrecision,
			Message: "must be between 1 and 12",
		})
	}
	if c.Map.MaxPoints < 0 {
		errors = append(errors, ValidationError{
			Field:   "map.max_points",
			Value:   c.Map.MaxPoints,
			Message: "must be non-negative",
		})
	}

	return errors
}

func (c *Config) validateForecast() []ValidationError {
	var errors []ValidationError

	if c.Forecast.Horizon < 1 || c.Forecast.Horizon > 10 {
		errors = append(errors, ValidationError{
			Field:   "forecast.horizon",
			Value:   c.Forecast.Horizon,
			Message: "must be between 1 and 10",
		})
	}

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of %v", ValidLogLevels()),
		})
	}
	if !slices.Contains(ValidLogFormats(), strings.ToLower(c.Logging.Format)) {
		errors = append(errors, ValidationError{
			Field:   "logging.format",
			Value:   c.Logging.Format,
			Message: fmt.Sprintf("must be one of %v", ValidLogFormats()),
		})
	}

	return errors
}
