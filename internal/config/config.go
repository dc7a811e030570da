package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// FileName is the configuration file looked up in the config directory.
const FileName = "indiamap.cfg.json"

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr            string
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
	FrameRate       int // clock ticks per second
}

// MapConfig holds the initial viewport.
type MapConfig struct {
	CenterLat float64
	CenterLng float64
	Zoom      int
	MinZoom   int
	Width     int
	Height    int
}

// BoundaryConfig holds the boundary sources and fit behaviour.
type BoundaryConfig struct {
	CountryURL   string
	StatesURL    string
	Timeout      time.Duration
	Padding      int
	MaxBoundsPad float64
}

// AnimationConfig holds the frame sequence shared by animated markers.
type AnimationConfig struct {
	Dir          string // frame storage directory
	BaseURL      string // public path frames are addressed by
	Frames       int
	Digits       int
	Ext          string
	Loop         time.Duration
	FallbackIcon string
}

// MarkerConfig is one configured marker. Markers without an icon are
// animated with the shared frame sequence.
type MarkerConfig struct {
	Lat       float64 `json:"lat" mapstructure:"lat"`
	Lng       float64 `json:"lng" mapstructure:"lng"`
	TargetURL string  `json:"targetUrl" mapstructure:"targetUrl"`
	Label     string  `json:"label" mapstructure:"label"`
	Icon      string  `json:"icon" mapstructure:"icon"`
}

// OTelConfig holds OpenTelemetry settings.
type OTelConfig struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	Endpoint     string
	Insecure     bool
	Metrics      bool          // dump clock and dispatcher metrics to a file
	MetricsEvery time.Duration // export interval of the metric dump
}

// GraylogConfig holds the GELF sink settings.
type GraylogConfig struct {
	Enabled bool
	Address string
}

// MonitorConfig holds the status reporter settings.
type MonitorConfig struct {
	Interval   time.Duration
	StatusFile string
}

// DefaultMarkers are the three sample cities.
var DefaultMarkers = []MarkerConfig{
	{Lat: 28.7041, Lng: 77.1025, TargetURL: "https://delhi-site.com", Label: "Delhi"},
	{Lat: 19.0760, Lng: 72.8777, TargetURL: "https://mumbai-site.com", Label: "Mumbai"},
	{Lat: 12.9716, Lng: 77.5946, TargetURL: "https://bangalore-site.com", Label: "Bangalore"},
}

// SetDefaults registers every default value.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./indiamaplogs")

	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("server.allowedOrigins", []string{"*"})
	viper.SetDefault("server.shutdownTimeout", "10s")
	viper.SetDefault("server.frameRate", 60)

	viper.SetDefault("map.centerLat", 22.5)
	viper.SetDefault("map.centerLng", 82.0)
	viper.SetDefault("map.zoom", 5)
	viper.SetDefault("map.minZoom", 4)
	viper.SetDefault("map.width", 1024)
	viper.SetDefault("map.height", 768)

	viper.SetDefault("boundary.countryUrl", "https://raw.githubusercontent.com/datameet/maps/master/Country/india-soi.geojson")
	viper.SetDefault("boundary.statesUrl", "https://raw.githubusercontent.com/datameet/maps/master/website/docs/data/geojson/states.geojson")
	viper.SetDefault("boundary.timeout", "30s")
	viper.SetDefault("boundary.padding", 50)
	viper.SetDefault("boundary.maxBoundsPad", 0.5)

	viper.SetDefault("animation.dir", "./svg_sequence")
	viper.SetDefault("animation.baseUrl", "/svg_sequence")
	viper.SetDefault("animation.frames", 86)
	viper.SetDefault("animation.digits", 4)
	viper.SetDefault("animation.ext", ".svg")
	viper.SetDefault("animation.loop", "6s")
	viper.SetDefault("animation.fallbackIcon", "Animation.gif")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "indiamap")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)
	viper.SetDefault("otel.metrics", false)
	viper.SetDefault("otel.metricsInterval", "30s")

	viper.SetDefault("monitor.interval", "5s")
	viper.SetDefault("monitor.statusFile", "./indiamaplogs/status.json")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file. A missing file
// is reported as viper.ConfigFileNotFoundError; defaults stay in effect.
func Load(configDir string) error {
	SetDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

// GetServerConfig returns the HTTP listener settings.
func GetServerConfig() ServerConfig {
	return ServerConfig{
		Addr:            viper.GetString("server.addr"),
		AllowedOrigins:  viper.GetStringSlice("server.allowedOrigins"),
		ShutdownTimeout: viper.GetDuration("server.shutdownTimeout"),
		FrameRate:       viper.GetInt("server.frameRate"),
	}
}

// GetMapConfig returns the initial viewport.
func GetMapConfig() MapConfig {
	return MapConfig{
		CenterLat: viper.GetFloat64("map.centerLat"),
		CenterLng: viper.GetFloat64("map.centerLng"),
		Zoom:      viper.GetInt("map.zoom"),
		MinZoom:   viper.GetInt("map.minZoom"),
		Width:     viper.GetInt("map.width"),
		Height:    viper.GetInt("map.height"),
	}
}

// GetBoundaryConfig returns the boundary sources.
func GetBoundaryConfig() BoundaryConfig {
	return BoundaryConfig{
		CountryURL:   viper.GetString("boundary.countryUrl"),
		StatesURL:    viper.GetString("boundary.statesUrl"),
		Timeout:      viper.GetDuration("boundary.timeout"),
		Padding:      viper.GetInt("boundary.padding"),
		MaxBoundsPad: viper.GetFloat64("boundary.maxBoundsPad"),
	}
}

// GetAnimationConfig returns the frame sequence settings.
func GetAnimationConfig() AnimationConfig {
	return AnimationConfig{
		Dir:          viper.GetString("animation.dir"),
		BaseURL:      viper.GetString("animation.baseUrl"),
		Frames:       viper.GetInt("animation.frames"),
		Digits:       viper.GetInt("animation.digits"),
		Ext:          viper.GetString("animation.ext"),
		Loop:         viper.GetDuration("animation.loop"),
		FallbackIcon: viper.GetString("animation.fallbackIcon"),
	}
}

// GetMarkers returns the configured markers, or DefaultMarkers when the
// configuration names none.
func GetMarkers() ([]MarkerConfig, error) {
	if !viper.IsSet("markers") {
		return append([]MarkerConfig(nil), DefaultMarkers...), nil
	}
	var out []MarkerConfig
	if err := viper.UnmarshalKey("markers", &out); err != nil {
		return nil, fmt.Errorf("decoding markers: %w", err)
	}
	return out, nil
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
		Metrics:      viper.GetBool("otel.metrics"),
		MetricsEvery: viper.GetDuration("otel.metricsInterval"),
	}
}

// GetGraylogConfig returns the GELF sink settings.
func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}

// GetMonitorConfig returns the status reporter settings.
func GetMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Interval:   viper.GetDuration("monitor.interval"),
		StatusFile: viper.GetString("monitor.statusFile"),
	}
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}
