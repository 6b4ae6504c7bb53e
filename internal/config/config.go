package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the service configuration
type Config struct {
	Typesense TypesenseConfig `yaml:"typesense"`
	Fields    FieldsMap       `yaml:"fields"`
	Cache     CacheConfig     `yaml:"cache"`
	NATS      NATSConfig      `yaml:"nats"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// TypesenseConfig locates the Typesense node and its API key
type TypesenseConfig struct {
	Host              string        `yaml:"host"`
	Port              int           `yaml:"port"`
	Protocol          string        `yaml:"protocol"` // http, https
	APIKey            string        `yaml:"api_key"`
	APIKeyParameter   string        `yaml:"api_key_parameter"` // SSM parameter name holding the API key
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
}

// FieldsMap is the per-model field configuration, shaped like the
// TYPESENSE_FIELDS_MAP document: {"defaultFields": {"Blog": {...}}}
type FieldsMap struct {
	DefaultFields map[string]FieldList `yaml:"defaultFields" json:"defaultFields"`
}

// FieldList configures how documents of one model are shaped.
// Include, Exclude and Obfuscate are carried but not applied yet.
type FieldList struct {
	Include         []string `yaml:"include" json:"include,omitempty"`
	Exclude         []string `yaml:"exclude" json:"exclude,omitempty"`
	Obfuscate       []string `yaml:"obfuscate" json:"obfuscate,omitempty"`
	ExtraDateFields []string `yaml:"extraDateFields" json:"extraDateFields,omitempty"`
}

// CacheConfig selects the collection existence cache
type CacheConfig struct {
	Backend  string        `yaml:"backend"` // memory, redis
	Size     int           `yaml:"size"`
	RedisURL string        `yaml:"redis_url"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
}

// NATSConfig configures sync notifications. An empty URL disables them.
type NATSConfig struct {
	URL           string        `yaml:"url"`
	Subject       string        `yaml:"subject"`
	MaxReconnect  int           `yaml:"max_reconnect"`
	ReconnectWait time.Duration `yaml:"reconnect_wait"`
}

// ServerConfig configures the local HTTP server
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LoggingConfig sets the logrus level and formatter
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text, json
}

// ExtraDateFields returns the configured extra date fields of a model
func (f FieldsMap) ExtraDateFields(model string) []string {
	return f.DefaultFields[model].ExtraDateFields
}

// ParseFieldsMap parses a TYPESENSE_FIELDS_MAP value. YAML is a superset of
// JSON so both encodings are accepted.
func ParseFieldsMap(data string) (FieldsMap, error) {
	var fm FieldsMap
	if data == "" {
		return fm, nil
	}
	if err := yaml.Unmarshal([]byte(data), &fm); err != nil {
		return fm, fmt.Errorf("failed to parse fields map: %w", err)
	}
	return fm, nil
}

// LoadConfig reads the YAML file at path, when given, then applies
// environment overrides and defaults.
func LoadConfig(path string) (*Config, error) {
	var config Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := config.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	config.setDefaults()

	return &config, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("TYPESENSE_HOST"); ok {
		c.Typesense.Host = v
	}
	if v, ok := lookup("TYPESENSE_PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid TYPESENSE_PORT %q: %w", v, err)
		}
		c.Typesense.Port = port
	}
	if v, ok := lookup("TYPESENSE_PROTOCOL"); ok {
		c.Typesense.Protocol = v
	}
	if v, ok := lookup("TYPESENSE_API_KEY"); ok {
		c.Typesense.APIKey = v
	}
	if v, ok := lookup("TYPESENSE_API_KEY_PARAMETER"); ok {
		c.Typesense.APIKeyParameter = v
	}
	if v, ok := lookup("TYPESENSE_FIELDS_MAP"); ok {
		fm, err := ParseFieldsMap(v)
		if err != nil {
			return err
		}
		c.Fields = fm
	}
	if v, ok := lookup("CACHE_BACKEND"); ok {
		c.Cache.Backend = v
	}
	if v, ok := lookup("REDIS_URL"); ok {
		c.Cache.RedisURL = v
	}
	if v, ok := lookup("NATS_URL"); ok {
		c.NATS.URL = v
	}
	if v, ok := lookup("NATS_SUBJECT"); ok {
		c.NATS.Subject = v
	}
	if v, ok := lookup("HTTP_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := lookup("LOG_LEVEL"); ok {
		c.Logging.Level = v
	}
	if v, ok := lookup("LOG_FORMAT"); ok {
		c.Logging.Format = v
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.Typesense.Protocol == "" {
		c.Typesense.Protocol = "http"
	}
	if c.Typesense.Port == 0 {
		c.Typesense.Port = 8108
	}
	if c.Typesense.ConnectionTimeout == 0 {
		c.Typesense.ConnectionTimeout = 5 * time.Second
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = "memory"
	}
	if c.Cache.Size == 0 {
		c.Cache.Size = 1024
	}
	if c.Cache.Prefix == "" {
		c.Cache.Prefix = "typesense-sync:collection:"
	}
	if c.NATS.Subject == "" {
		c.NATS.Subject = "typesense.sync"
	}
	if c.NATS.ReconnectWait == 0 {
		c.NATS.ReconnectWait = 2 * time.Second
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate reports configuration that cannot work
func (c *Config) Validate() error {
	var errs []error
	if c.Typesense.Host == "" {
		errs = append(errs, errors.New("typesense host is required"))
	}
	if c.Typesense.APIKey == "" && c.Typesense.APIKeyParameter == "" {
		errs = append(errs, errors.New("typesense api key or api key parameter is required"))
	}
	switch c.Typesense.Protocol {
	case "http", "https":
	default:
		errs = append(errs, fmt.Errorf("unsupported typesense protocol %q", c.Typesense.Protocol))
	}
	switch c.Cache.Backend {
	case "memory":
	case "redis":
		if c.Cache.RedisURL == "" {
			errs = append(errs, errors.New("redis url is required for the redis cache backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported cache backend %q", c.Cache.Backend))
	}
	return errors.Join(errs...)
}
