// Package config provides configuration management for the cartflow CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Supported values for the enumerated settings.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"

	SerializerJSON    = "json"
	SerializerMsgpack = "msgpack"

	PublisherNone  = "none"
	PublisherKafka = "kafka"
	PublisherSNS   = "sns"

	PricingFixed   = "fixed"
	PricingRandom  = "random"
	PricingCatalog = "catalog"
)

// EnvDatabaseURL overrides database.url when set.
const EnvDatabaseURL = "CARTFLOW_DATABASE_URL"

// Config represents the cartflow CLI configuration
type Config struct {
	// Version of the config file format
	Version string `yaml:"version"`

	Project       ProjectConfig       `yaml:"project"`
	Database      DatabaseConfig      `yaml:"database"`
	Serializer    string              `yaml:"serializer"`
	Publisher     PublisherConfig     `yaml:"publisher"`
	Pricing       PricingConfig       `yaml:"pricing"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ProjectConfig contains project-level settings
type ProjectConfig struct {
	Name string `yaml:"name"`
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	// Driver is the storage backend (postgres, memory)
	Driver string `yaml:"driver"`

	// DriverName is the database/sql driver for postgres: pgx or postgres (lib/pq)
	DriverName string `yaml:"driver_name,omitempty"`

	// URL is the database connection string
	URL string `yaml:"url,omitempty"`

	// Schema is the database schema to use
	Schema string `yaml:"schema"`
}

// PublisherConfig selects where committed events are published.
type PublisherConfig struct {
	Type string `yaml:"type"`

	// Kafka
	Brokers []string `yaml:"brokers,omitempty"`
	Topic   string   `yaml:"topic,omitempty"`

	// SNS
	TopicARN string `yaml:"topic_arn,omitempty"`
	Region   string `yaml:"region,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty"`
	FIFO     bool   `yaml:"fifo,omitempty"`
}

// PricingConfig selects how product unit prices are resolved.
type PricingConfig struct {
	Mode         string            `yaml:"mode"`
	DefaultPrice string            `yaml:"default_price,omitempty"`
	Seed         int64             `yaml:"seed,omitempty"`
	Catalog      map[string]string `yaml:"catalog,omitempty"`
}

// ObservabilityConfig contains metrics and tracing settings.
type ObservabilityConfig struct {
	// MetricsAddr is the listen address of serve-metrics
	MetricsAddr string `yaml:"metrics_addr,omitempty"`

	// Trace prints spans to stderr
	Trace bool `yaml:"trace,omitempty"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Version: "1",
		Project: ProjectConfig{
			Name: "my-cart-service",
		},
		Database: DatabaseConfig{
			Driver:     DriverPostgres,
			DriverName: "pgx",
			Schema:     "cartflow",
		},
		Serializer: SerializerJSON,
		Publisher: PublisherConfig{
			Type: PublisherNone,
		},
		Pricing: PricingConfig{
			Mode:         PricingFixed,
			DefaultPrice: "10.00",
		},
		Observability: ObservabilityConfig{
			MetricsAddr: ":9090",
		},
	}
}

// ConfigFileName is the default config file name
const ConfigFileName = "cartflow.yaml"

// Load loads configuration from the specified directory
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, ConfigFileName)
	return LoadFile(path)
}

// LoadFile loads configuration from a specific file path.
// Environment references in database.url are expanded and
// CARTFLOW_DATABASE_URL takes precedence over the file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.Database.URL = os.ExpandEnv(cfg.Database.URL)
	cfg.ApplyEnv(os.LookupEnv)
	return cfg, nil
}

// ApplyEnv applies environment overrides using lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if url, ok := lookup(EnvDatabaseURL); ok && url != "" {
		c.Database.URL = url
	}
}

// Save saves the configuration to the specified directory
func (c *Config) Save(dir string) error {
	path := filepath.Join(dir, ConfigFileName)
	return c.SaveFile(path)
}

// SaveFile saves the configuration to a specific file path
func (c *Config) SaveFile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Exists checks if a config file exists in the directory
func Exists(dir string) bool {
	path := filepath.Join(dir, ConfigFileName)
	_, err := os.Stat(path)
	return err == nil
}

// FindConfig searches for a config file starting from dir and going up
func FindConfig(dir string) (string, *Config, error) {
	current := dir
	for {
		configPath := filepath.Join(current, ConfigFileName)
		if _, err := os.Stat(configPath); err == nil {
			cfg, err := LoadFile(configPath)
			if err != nil {
				return "", nil, err
			}
			return current, cfg, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			return "", nil, os.ErrNotExist
		}
		current = parent
	}
}

// Validate validates the configuration
func (c *Config) Validate() []string {
	var errors []string

	if c.Project.Name == "" {
		errors = append(errors, "project.name is required")
	}

	switch c.Database.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Database.URL == "" {
			errors = append(errors, "database.url is required for postgres driver")
		}
		if c.Database.DriverName != "" && c.Database.DriverName != "pgx" && c.Database.DriverName != "postgres" {
			errors = append(errors, "database.driver_name must be 'pgx' or 'postgres'")
		}
	case "":
		errors = append(errors, "database.driver is required")
	default:
		errors = append(errors, "database.driver must be 'postgres' or 'memory'")
	}

	if c.Serializer != SerializerJSON && c.Serializer != SerializerMsgpack {
		errors = append(errors, "serializer must be 'json' or 'msgpack'")
	}

	switch c.Publisher.Type {
	case "", PublisherNone:
	case PublisherKafka:
		if len(c.Publisher.Brokers) == 0 {
			errors = append(errors, "publisher.brokers is required for kafka")
		}
	case PublisherSNS:
		if c.Publisher.TopicARN == "" {
			errors = append(errors, "publisher.topic_arn is required for sns")
		}
		if c.Publisher.Region == "" {
			errors = append(errors, "publisher.region is required for sns")
		}
	default:
		errors = append(errors, "publisher.type must be 'none', 'kafka' or 'sns'")
	}

	errors = append(errors, c.validatePricing()...)
	return errors
}

func (c *Config) validatePricing() []string {
	var errors []string

	switch c.Pricing.Mode {
	case PricingFixed:
		if _, err := decimal.NewFromString(c.Pricing.DefaultPrice); err != nil {
			errors = append(errors, fmt.Sprintf("pricing.default_price %q is not a decimal", c.Pricing.DefaultPrice))
		}
	case PricingRandom:
	case PricingCatalog:
		if len(c.Pricing.Catalog) == 0 {
			errors = append(errors, "pricing.catalog must list at least one product")
		}
	default:
		errors = append(errors, "pricing.mode must be 'fixed', 'random' or 'catalog'")
	}

	return errors
}

// GenerateYAML generates YAML content with comments
func GenerateYAML(cfg *Config) string {
	return `# cartflow configuration file

version: "1"

project:
  name: "` + cfg.Project.Name + `"

# Event storage
database:
  # Driver: postgres or memory
  driver: "` + cfg.Database.Driver + `"

  # database/sql driver for postgres: pgx or postgres (lib/pq)
  driver_name: "` + cfg.Database.DriverName + `"

  # Connection URL (required for postgres, CARTFLOW_DATABASE_URL overrides it)
  url: "${DATABASE_URL}"

  schema: "` + cfg.Database.Schema + `"

# Event payload encoding: json or msgpack
serializer: "` + cfg.Serializer + `"

# Where committed events are published: none, kafka or sns
publisher:
  type: "` + cfg.Publisher.Type + `"
  # brokers: ["localhost:9092"]
  # topic: "shopping-carts"
  # topic_arn: "arn:aws:sns:us-east-1:000000000000:shopping-carts"
  # region: "us-east-1"

# Product pricing: fixed, random or catalog
pricing:
  mode: "` + cfg.Pricing.Mode + `"
  default_price: "` + cfg.Pricing.DefaultPrice + `"
` + catalogYAML(cfg.Pricing.Catalog) + `
observability:
  metrics_addr: "` + cfg.Observability.MetricsAddr + `"
  trace: false
`
}

func catalogYAML(catalog map[string]string) string {
	if len(catalog) == 0 {
		return "  # catalog:\n  #   \"<product uuid>\": \"19.99\"\n"
	}

	ids := make([]string, 0, len(catalog))
	for id := range catalog {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := "  catalog:\n"
	for _, id := range ids {
		out += `    "` + id + `": "` + catalog[id] + "\"\n"
	}
	return out
}
