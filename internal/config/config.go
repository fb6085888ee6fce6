package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config represents the main application configuration structure
// containing all configuration sections
type Config struct {
	Server     ServerConfig     `toml:"server"`      // HTTP server settings
	Logging    LoggingConfig    `toml:"logging"`     // Application logging settings
	Feed       FeedConfig       `toml:"feed"`        // Live aircraft feed (receiver) settings
	AircraftDB AircraftDBConfig `toml:"aircraft_db"` // Aircraft metadata lookup settings
	History    HistoryConfig    `toml:"history"`     // Historical heatmap/replay chunk settings
	Reporting  ReportingConfig  `toml:"reporting"`   // Error reporting settings
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port               int      `toml:"port"`                  // Primary HTTP port for the server
	Host               string   `toml:"host"`                  // Host address to bind to
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`  // List of origins allowed for CORS requests (use ["*"] for all origins)
	ReadTimeoutSecs    int      `toml:"read_timeout_seconds"`  // Maximum duration for reading the entire request (0 = no timeout)
	WriteTimeoutSecs   int      `toml:"write_timeout_seconds"` // Maximum duration for writing the response (0 = no timeout)
	IdleTimeoutSecs    int      `toml:"idle_timeout_seconds"`  // Maximum duration to wait for the next request when keep-alives are enabled
	AdditionalPorts    []int    `toml:"additional_ports"`      // Additional HTTP ports to listen on
}

// LoggingConfig contains application logging configuration
type LoggingConfig struct {
	Level      string `toml:"level"`        // Log level: "debug", "info", "warn", or "error"
	Format     string `toml:"format"`       // Log format: "json" (structured) or "console" (human-readable)
	File       string `toml:"file"`         // Optional log file (rotated)
	MaxSizeMB  int    `toml:"max_size_mb"`  // Rotate after this many megabytes
	MaxBackups int    `toml:"max_backups"`  // Rotated files to keep
	MaxAgeDays int    `toml:"max_age_days"` // Days to keep rotated files
	Compress   bool   `toml:"compress"`     // Gzip rotated files
}

// FeedConfig contains the live receiver feed configuration
type FeedConfig struct {
	BaseURL            string `toml:"base_url"`             // Receiver web root, e.g. http://192.168.1.10/tar1090
	AircraftPath       string `toml:"aircraft_path"`        // Snapshot path relative to base_url (".json" is swapped for the binary suffix)
	LegacyAircraftPath string `toml:"legacy_aircraft_path"` // Fallback snapshot path for older installs
	ReceiverPath       string `toml:"receiver_path"`        // Receiver metadata path
	LegacyReceiverPath string `toml:"legacy_receiver_path"` // Fallback receiver metadata path
	CompressedURL      string `toml:"compressed_url"`       // Optional absolute URL serving the compressed binary snapshot
	PreferCompressed   bool   `toml:"prefer_compressed"`    // Initialize the decompressor at startup without waiting for receiver.json
	IntervalMs         int    `toml:"interval_ms"`          // Poll interval until receiver.json says otherwise
	RequestTimeoutSecs int    `toml:"request_timeout_seconds"`
	ReapAfterSecs      int    `toml:"reap_after_seconds"`         // Aircraft not updated for this long are removed
	TrackMaxPoints     int    `toml:"track_max_points"`           // Per-aircraft history point budget
	WebSocketUpdates   bool   `toml:"websocket_aircraft_updates"` // Push per-aircraft changes to websocket clients
}

// AircraftDBConfig contains aircraft metadata lookup configuration
type AircraftDBConfig struct {
	Enabled            bool   `toml:"enabled"`
	BaseURL            string `toml:"base_url"`          // Root holding db/ and db2/ (defaults to feed.base_url)
	CacheSize          int    `toml:"cache_size"`        // Prefix nodes kept in memory
	CacheTTLMinutes    int    `toml:"cache_ttl_minutes"` // Prefix node lifetime
	SQLitePath         string `toml:"sqlite_path"`       // Local metadata store (empty disables it)
	CSVImportPath      string `toml:"csv_import_path"`   // Optional Hex;Registration;Type;... file imported at startup
	RequestTimeoutSecs int    `toml:"request_timeout_seconds"`
}

// HistoryConfig contains heatmap/replay chunk store configuration
type HistoryConfig struct {
	Store              string `toml:"store"`     // "http", "dir" or "gcs"
	BaseURL            string `toml:"base_url"`  // For the http store (defaults to feed.base_url)
	BasePath           string `toml:"base_path"` // Path prefix of the chunk tree, e.g. "globe_history/"
	Dir                string `toml:"dir"`       // For the dir store
	GCSBucket          string `toml:"gcs_bucket"`
	GCSPrefix          string `toml:"gcs_prefix"`
	GCSCredentialsFile string `toml:"gcs_credentials_file"`
	Concurrency        int    `toml:"concurrency"` // Parallel chunk downloads
	RandomSeed         int64  `toml:"random_seed"` // Seed for heatmap sampling order
}

// ReportingConfig contains error reporting configuration
type ReportingConfig struct {
	ThrottleSecs int `toml:"throttle_seconds"` // Minimum interval between reports of the same category
}

// Load loads the configuration from the specified file path
func Load(path string) (*Config, error) {
	var config Config

	// Check if the file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	return &config, nil
}

// LoadWithFallback loads the configuration by checking multiple locations in order of preference
func LoadWithFallback(preferredPath string) (*Config, error) {
	searchPaths := []string{
		preferredPath,         // User-specified path (if provided)
		"configs/config.toml", // configs/ folder
		"config.toml",         // Root directory
	}

	// Remove duplicates while preserving order
	uniquePaths := make([]string, 0, len(searchPaths))
	seen := make(map[string]bool)
	for _, path := range searchPaths {
		if path != "" && !seen[path] {
			uniquePaths = append(uniquePaths, path)
			seen[path] = true
		}
	}

	var lastErr error
	for _, path := range uniquePaths {
		if _, err := os.Stat(path); err == nil {
			config, err := Load(path)
			if err != nil {
				lastErr = fmt.Errorf("failed to load config from %s: %w", path, err)
				continue
			}
			return config, nil
		}
		lastErr = fmt.Errorf("config file not found: %s", path)
	}

	return nil, fmt.Errorf("config file not found in any of the expected locations: %v. Last error: %w", uniquePaths, lastErr)
}

// Validate validates the configuration and fills in defaults
func (c *Config) Validate() error {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	portsSeen := map[int]bool{c.Server.Port: true}
	for _, p := range c.Server.AdditionalPorts {
		if p <= 0 || p > 65535 {
			return fmt.Errorf("invalid additional server port: %d", p)
		}
		if portsSeen[p] {
			return fmt.Errorf("duplicate port configured: %d (primary or additional)", p)
		}
		portsSeen[p] = true
	}
	if c.Server.ReadTimeoutSecs == 0 {
		c.Server.ReadTimeoutSecs = 15
	}
	if c.Server.IdleTimeoutSecs == 0 {
		c.Server.IdleTimeoutSecs = 60
	}

	if err := c.ValidateFeed(); err != nil {
		return err
	}
	if err := c.ValidateAircraftDB(); err != nil {
		return err
	}
	if err := c.ValidateHistory(); err != nil {
		return err
	}

	if c.Reporting.ThrottleSecs <= 0 {
		c.Reporting.ThrottleSecs = 60
	}

	return nil
}

// ValidateFeed checks the feed section
func (c *Config) ValidateFeed() error {
	if c.Feed.BaseURL == "" {
		return fmt.Errorf("feed.base_url is required")
	}
	if _, err := url.Parse(c.Feed.BaseURL); err != nil {
		return fmt.Errorf("invalid feed.base_url: %w", err)
	}
	c.Feed.BaseURL = strings.TrimSuffix(c.Feed.BaseURL, "/")

	if c.Feed.AircraftPath == "" {
		c.Feed.AircraftPath = "/data/aircraft.json"
	}
	if c.Feed.LegacyAircraftPath == "" {
		c.Feed.LegacyAircraftPath = "/aircraft.json"
	}
	if c.Feed.ReceiverPath == "" {
		c.Feed.ReceiverPath = "/data/receiver.json"
	}
	if c.Feed.LegacyReceiverPath == "" {
		c.Feed.LegacyReceiverPath = "/receiver.json"
	}
	if !strings.HasSuffix(c.Feed.AircraftPath, ".json") {
		return fmt.Errorf("feed.aircraft_path must end in .json: %s", c.Feed.AircraftPath)
	}
	if c.Feed.IntervalMs == 0 {
		c.Feed.IntervalMs = 1000
	}
	if c.Feed.IntervalMs < 0 {
		return fmt.Errorf("invalid feed.interval_ms: %d", c.Feed.IntervalMs)
	}
	if c.Feed.RequestTimeoutSecs <= 0 {
		c.Feed.RequestTimeoutSecs = 10
	}
	if c.Feed.ReapAfterSecs <= 0 {
		c.Feed.ReapAfterSecs = 120
	}
	if c.Feed.TrackMaxPoints <= 0 {
		c.Feed.TrackMaxPoints = 50
	}
	return nil
}

// ValidateAircraftDB checks the aircraft_db section
func (c *Config) ValidateAircraftDB() error {
	if !c.AircraftDB.Enabled {
		return nil
	}
	if c.AircraftDB.BaseURL == "" {
		c.AircraftDB.BaseURL = c.Feed.BaseURL
	}
	c.AircraftDB.BaseURL = strings.TrimSuffix(c.AircraftDB.BaseURL, "/")
	if c.AircraftDB.CacheSize <= 0 {
		c.AircraftDB.CacheSize = 4096
	}
	if c.AircraftDB.CacheTTLMinutes <= 0 {
		c.AircraftDB.CacheTTLMinutes = 60
	}
	if c.AircraftDB.RequestTimeoutSecs <= 0 {
		c.AircraftDB.RequestTimeoutSecs = 10
	}
	if c.AircraftDB.CSVImportPath != "" && c.AircraftDB.SQLitePath == "" {
		return fmt.Errorf("aircraft_db.csv_import_path requires aircraft_db.sqlite_path")
	}
	return nil
}

// ValidateHistory checks the history section
func (c *Config) ValidateHistory() error {
	if c.History.Store == "" {
		c.History.Store = "http"
	}
	if c.History.BasePath == "" {
		c.History.BasePath = "globe_history/"
	}
	if !strings.HasSuffix(c.History.BasePath, "/") {
		c.History.BasePath += "/"
	}
	if c.History.Concurrency <= 0 {
		c.History.Concurrency = 2
	}

	switch c.History.Store {
	case "http":
		if c.History.BaseURL == "" {
			c.History.BaseURL = c.Feed.BaseURL
		}
	case "dir":
		if c.History.Dir == "" {
			return fmt.Errorf("history.dir is required for the dir store")
		}
	case "gcs":
		if c.History.GCSBucket == "" {
			return fmt.Errorf("history.gcs_bucket is required for the gcs store")
		}
	default:
		return fmt.Errorf("unknown history store: %s", c.History.Store)
	}
	return nil
}
