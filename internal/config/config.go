package config

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Data       DataConfig       `yaml:"data" mapstructure:"data"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Scoring    ScoringConfig    `yaml:"scoring" mapstructure:"scoring"`
	Export     ExportConfig     `yaml:"export" mapstructure:"export"`
	Render     RenderConfig     `yaml:"render" mapstructure:"render"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// DataConfig locates the input sources. Relative paths resolve against Dir.
type DataConfig struct {
	Dir             string            `yaml:"dir" mapstructure:"dir"`
	Boundaries      string            `yaml:"boundaries" mapstructure:"boundaries"`
	NameField       string            `yaml:"name_field" mapstructure:"name_field"`
	Rasters         map[string]string `yaml:"rasters" mapstructure:"rasters"`
	VehicleMobility string            `yaml:"vehicle_mobility" mapstructure:"vehicle_mobility"`
	SocioEconomic   string            `yaml:"socio_economic" mapstructure:"socio_economic"`
	Population      string            `yaml:"population" mapstructure:"population"`
	TrendCO         string            `yaml:"trend_co" mapstructure:"trend_co"`
	TrendAerosol    string            `yaml:"trend_aerosol" mapstructure:"trend_aerosol"`
	Encoding        string            `yaml:"encoding" mapstructure:"encoding"`
	// Sheets names the .xlsx worksheet per tabular source (vehicle_mobility,
	// socio_economic, population, trend_co, trend_aerosol).
	Sheets map[string]string `yaml:"sheets" mapstructure:"sheets"`
}

// PipelineConfig selects what a run computes.
type PipelineConfig struct {
	Pollutant string `yaml:"pollutant" mapstructure:"pollutant"`
	Section   string `yaml:"section" mapstructure:"section"`
}

// ScoringConfig holds the SDG 11 score denominators.
type ScoringConfig struct {
	VehicleReference float64 `yaml:"vehicle_reference" mapstructure:"vehicle_reference"`
	HousingScale     float64 `yaml:"housing_scale" mapstructure:"housing_scale"`
}

// ExportConfig configures file exports.
type ExportConfig struct {
	Dir     string   `yaml:"dir" mapstructure:"dir"`
	Formats []string `yaml:"formats" mapstructure:"formats"`
}

// RenderConfig configures overlay images and charts.
type RenderConfig struct {
	OverlayDir     string  `yaml:"overlay_dir" mapstructure:"overlay_dir"`
	OverlayOpacity float64 `yaml:"overlay_opacity" mapstructure:"overlay_opacity"`
	ChartWidthCm   float64 `yaml:"chart_width_cm" mapstructure:"chart_width_cm"`
	ChartHeightCm  float64 `yaml:"chart_height_cm" mapstructure:"chart_height_cm"`
	HistogramBins  int     `yaml:"histogram_bins" mapstructure:"histogram_bins"`
	PreviewStep    int     `yaml:"preview_step" mapstructure:"preview_step"`
}

// ServerConfig configures the dashboard API server.
type ServerConfig struct {
	Port         int      `yaml:"port" mapstructure:"port"`
	CORSOrigins  []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	RateLimit    float64  `yaml:"rate_limit" mapstructure:"rate_limit"`
	RateBurst    int      `yaml:"rate_burst" mapstructure:"rate_burst"`
	CacheEntries int      `yaml:"cache_entries" mapstructure:"cache_entries"`
	CacheTTLSecs int      `yaml:"cache_ttl_secs" mapstructure:"cache_ttl_secs"`
}

// MonitoringConfig configures run-outcome alerting for the API server.
type MonitoringConfig struct {
	Enabled              bool    `yaml:"enabled" mapstructure:"enabled"`
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours  int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SDG11")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("data.dir", "Torino")
	v.SetDefault("data.boundaries", "torino_only.geojson")
	v.SetDefault("data.name_field", "name")
	v.SetDefault("data.rasters", map[string]string{
		"NO2":  "no2_turin_clipped.tif",
		"SO2":  "so2_turin_clipped.tif",
		"CH4":  "ch4_turin_clipped.tif",
		"O3":   "o3_turin_clipped.tif",
		"HCHO": "hcho_turin_clipped.tif",
	})
	v.SetDefault("data.vehicle_mobility", "torino_vehicle_mobility.csv")
	v.SetDefault("data.socio_economic", "torino_socio_econ_factors.csv")
	v.SetDefault("data.population", "Resident population.csv")
	v.SetDefault("data.trend_co", "sentinel5p_co.csv")
	v.SetDefault("data.trend_aerosol", "sentinel5p_aer_ai.csv")
	v.SetDefault("data.encoding", "utf-8")
	v.SetDefault("pipeline.pollutant", "NO2")
	v.SetDefault("pipeline.section", "all")
	v.SetDefault("scoring.vehicle_reference", 1000.0)
	v.SetDefault("scoring.housing_scale", 100.0)
	v.SetDefault("export.dir", ".")
	v.SetDefault("export.formats", []string{"csv"})
	v.SetDefault("render.overlay_dir", "")
	v.SetDefault("render.overlay_opacity", 0.6)
	v.SetDefault("render.chart_width_cm", 16.0)
	v.SetDefault("render.chart_height_cm", 8.0)
	v.SetDefault("render.histogram_bins", 30)
	v.SetDefault("render.preview_step", 10)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.rate_limit", 5.0)
	v.SetDefault("server.rate_burst", 10)
	v.SetDefault("server.cache_entries", 64)
	v.SetDefault("server.cache_ttl_secs", 300)
	v.SetDefault("monitoring.enabled", false)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.failure_rate_threshold", 0.25)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Pollutants returns the configured pollutant keys, upper-cased and sorted.
// Viper lower-cases map keys on load.
func (d DataConfig) Pollutants() []string {
	keys := make([]string, 0, len(d.Rasters))
	for k := range d.Rasters {
		keys = append(keys, strings.ToUpper(k))
	}
	sort.Strings(keys)
	return keys
}

// RasterPath returns the raster file configured for a pollutant, matched
// case-insensitively. The second result is false for unknown pollutants.
func (d DataConfig) RasterPath(pollutant string) (string, bool) {
	for k, p := range d.Rasters {
		if strings.EqualFold(k, pollutant) {
			return d.Resolve(p), true
		}
	}
	return "", false
}

// Sheet returns the worksheet configured for a tabular source, or "" for the
// first sheet.
func (d DataConfig) Sheet(source string) string {
	for k, v := range d.Sheets {
		if strings.EqualFold(k, source) {
			return v
		}
	}
	return ""
}

// Resolve joins a relative source path onto Dir.
func (d DataConfig) Resolve(path string) string {
	if path == "" || d.Dir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(d.Dir, path)
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

// SectionNames lists the recognized values of pipeline.section.
var SectionNames = []string{"all", "map", "exploration", "trends", "insights", "socio"}

// Validate checks the configuration required by the given command mode
// ("run" or "serve").
func (c *Config) Validate(mode string) error {
	var errs []string

	if len(c.Data.Rasters) == 0 {
		errs = append(errs, "data.rasters must name at least one pollutant")
	}
	if c.Pipeline.Pollutant != "" && !strings.EqualFold(c.Pipeline.Pollutant, "all") {
		if _, ok := c.Data.RasterPath(c.Pipeline.Pollutant); !ok {
			errs = append(errs, fmt.Sprintf("pipeline.pollutant %q has no raster in data.rasters", c.Pipeline.Pollutant))
		}
	}
	if !validSection(c.Pipeline.Section) {
		errs = append(errs, fmt.Sprintf("pipeline.section %q must be one of %s", c.Pipeline.Section, strings.Join(SectionNames, ", ")))
	}
	if c.Scoring.VehicleReference <= 0 {
		errs = append(errs, "scoring.vehicle_reference must be > 0")
	}
	if c.Scoring.HousingScale <= 0 {
		errs = append(errs, "scoring.housing_scale must be > 0")
	}
	for _, f := range c.Export.Formats {
		if !validFormat(f) {
			errs = append(errs, fmt.Sprintf("export.formats %q must be one of %s", f, strings.Join(ExportFormats, ", ")))
		}
	}

	switch mode {
	case "run":
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server.port %d out of range", c.Server.Port))
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server.rate_limit must be >= 0")
		}
		if c.Monitoring.FailureRateThreshold < 0 || c.Monitoring.FailureRateThreshold > 1 {
			errs = append(errs, "monitoring.failure_rate_threshold must be within [0, 1]")
		}
	default:
		return eris.Errorf("config: unknown validation mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// ExportFormats lists the recognized values of export.formats.
var ExportFormats = []string{"csv", "xlsx", "sqlite", "geojson"}

func validFormat(s string) bool {
	for _, name := range ExportFormats {
		if strings.EqualFold(name, s) {
			return true
		}
	}
	return false
}

func validSection(s string) bool {
	for _, name := range SectionNames {
		if strings.EqualFold(name, s) {
			return true
		}
	}
	return false
}
