package web

import (
	"encoding/json"
	"os"

	"github.com/pv-groupings/internal/config"
)

// Config represents the web server configuration
type Config struct {
	Server   ServerConfig   `json:"server"`
	Data     DataConfig     `json:"data"`
	Results  ResultsConfig  `json:"results"`
	Database DatabaseConfig `json:"database"`
	Auth     AuthConfig     `json:"auth"`
	Features FeatureConfig  `json:"features"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port int    `json:"port"`
	Host string `json:"host"`
}

// DataConfig names the files the review API serves
type DataConfig struct {
	// GroupsFile is a grouping table, optionally with lats/lons columns.
	GroupsFile   string `json:"groups_file"`
	GroupColumn  string `json:"group_column"`
	MemberColumn string `json:"member_column"`
	// ComparisonFile and RegistryFile are optional.
	ComparisonFile    string `json:"comparison_file"`
	RegistryFile      string `json:"registry_file"`
	RegistryHeaderRow int    `json:"registry_header_row"`
}

// ResultsConfig selects where review judgements are stored
type ResultsConfig struct {
	// Sink is csv or postgres.
	Sink    string `json:"sink"`
	CSVPath string `json:"csv_path"`
	Table   string `json:"table"`
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	URL            string `json:"url"`
	MaxConnections int    `json:"max_connections"`
}

// AuthConfig contains authentication settings
type AuthConfig struct {
	Enabled bool   `json:"enabled"`
	APIKey  string `json:"api_key"`
}

// FeatureConfig contains feature toggles
type FeatureConfig struct {
	ExportEnabled bool `json:"export_enabled"`
	ReviewEnabled bool `json:"review_enabled"`
}

// LoadConfig loads configuration from a JSON file over the defaults
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8080,
			Host: "0.0.0.0",
		},
		Data: DataConfig{
			GroupsFile:   "data/osm_groupings_with_geometry.csv",
			GroupColumn:  "id",
			MemberColumn: "objects",
		},
		Results: ResultsConfig{
			Sink:    "csv",
			CSVPath: "data/group_validations.csv",
			Table:   "group_validation",
		},
		Database: DatabaseConfig{
			MaxConnections: 10,
		},
		Features: FeatureConfig{
			ExportEnabled: true,
			ReviewEnabled: true,
		},
	}
}

// ApplyEnv overrides settings from the environment.
func (c *Config) ApplyEnv() {
	c.Server.Host = config.GetEnv("WEB_HOST", c.Server.Host)
	c.Server.Port = config.GetEnvInt("WEB_PORT", c.Server.Port)

	c.Data.GroupsFile = config.GetEnv("GROUPS_FILE", c.Data.GroupsFile)
	c.Data.GroupColumn = config.GetEnv("GROUP_COLUMN", c.Data.GroupColumn)
	c.Data.MemberColumn = config.GetEnv("MEMBER_COLUMN", c.Data.MemberColumn)
	c.Data.ComparisonFile = config.GetEnv("COMPARISON_FILE", c.Data.ComparisonFile)
	c.Data.RegistryFile = config.GetEnv("REGISTRY_FILE", c.Data.RegistryFile)
	c.Data.RegistryHeaderRow = config.GetEnvInt("REGISTRY_HEADER_ROW", c.Data.RegistryHeaderRow)

	c.Results.Sink = config.GetEnv("RESULTS_SINK", c.Results.Sink)
	c.Results.CSVPath = config.GetEnv("RESULTS_FILE", c.Results.CSVPath)
	c.Results.Table = config.GetEnv("RESULTS_TABLE", c.Results.Table)

	c.Database.URL = config.GetEnv("DATABASE_URL", c.Database.URL)
	c.Database.MaxConnections = config.GetEnvInt("DB_MAX_CONNECTIONS", c.Database.MaxConnections)

	c.Auth.APIKey = config.GetEnv("API_KEY", c.Auth.APIKey)
	c.Auth.Enabled = config.GetEnvBool("AUTH_ENABLED", c.Auth.Enabled || c.Auth.APIKey != "")

	c.Features.ExportEnabled = config.GetEnvBool("EXPORT_ENABLED", c.Features.ExportEnabled)
	c.Features.ReviewEnabled = config.GetEnvBool("REVIEW_ENABLED", c.Features.ReviewEnabled)
}
