// Package config loads and validates the TuGranjita application
// configuration: which services run, where they listen, which files back
// their collections, and how the federation layer reaches its sources.
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/josuabad/TuGranjita/errors"
)

// Defaults applied by Validate
const (
	DefaultCRMAddr        = ":8001"
	DefaultIoTAddr        = ":8002"
	DefaultFederationAddr = ":4000"
	DefaultMetricsAddr    = ":9090"
	DefaultSchemaDir      = "schemas"
	DefaultTimeout        = 3 * time.Second
)

// Duration wraps time.Duration so configuration files can carry values
// like "3s" or "250ms"
type Duration struct {
	time.Duration
}

// UnmarshalJSON parses a duration string or a number of seconds
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		d.Duration = parsed
		return nil
	}

	var seconds float64
	if err := json.Unmarshal(data, &seconds); err != nil {
		return fmt.Errorf("duration must be a string or a number of seconds")
	}
	d.Duration = time.Duration(seconds * float64(time.Second))
	return nil
}

// MarshalJSON renders the duration as its string form
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// Config represents the complete application configuration
type Config struct {
	Version    string           `json:"version"`
	Log        LogConfig        `json:"log"`
	Metrics    MetricsConfig    `json:"metrics"`
	CRM        CRMConfig        `json:"crm"`
	IoT        IoTConfig        `json:"iot"`
	Federation FederationConfig `json:"federation"`

	// SchemaDir holds the <Kind>.schema.json files compiled at startup
	SchemaDir string `json:"schema_dir"`

	// ValidateOnStart runs a full-collection conformance sweep at startup
	// and logs the result. It never blocks startup: a bad record degrades
	// the specific pages containing it, not the whole process.
	ValidateOnStart bool `json:"validate_on_start"`
}

// LogConfig controls structured logging output
type LogConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// MetricsConfig controls the Prometheus exposition endpoint
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
}

// CRMConfig configures the party catalog service
type CRMConfig struct {
	Enabled  bool   `json:"enabled"`
	Addr     string `json:"addr"`
	DataFile string `json:"data_file"`
}

// IoTConfig configures the sensor/reading catalog service
type IoTConfig struct {
	Enabled      bool   `json:"enabled"`
	Addr         string `json:"addr"`
	SensorsFile  string `json:"sensors_file"`
	ReadingsFile string `json:"readings_file"`
}

// FederationConfig configures the cross-source resolver
type FederationConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
	CRMURL  string `json:"crm_url"`
	IoTURL  string `json:"iot_url"`

	// Timeout bounds every upstream call; a timeout surfaces as 502 like
	// any other upstream failure
	Timeout Duration `json:"timeout"`
}

// Load reads and validates a configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapIntegrity(err, "config", "Load", "reading configuration file")
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, errors.WrapIntegrity(err, "config", "Load", "parsing configuration file")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate applies defaults and checks cross-field consistency
func (c *Config) Validate() error {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.SchemaDir == "" {
		c.SchemaDir = DefaultSchemaDir
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = DefaultMetricsAddr
	}
	if c.CRM.Addr == "" {
		c.CRM.Addr = DefaultCRMAddr
	}
	if c.IoT.Addr == "" {
		c.IoT.Addr = DefaultIoTAddr
	}
	if c.Federation.Addr == "" {
		c.Federation.Addr = DefaultFederationAddr
	}
	if c.Federation.Timeout.Duration <= 0 {
		c.Federation.Timeout.Duration = DefaultTimeout
	}

	if c.CRM.Enabled && c.CRM.DataFile == "" {
		return errors.Integrityf("config", "Validate", "crm.data_file is required when crm is enabled")
	}
	if c.IoT.Enabled {
		if c.IoT.SensorsFile == "" {
			return errors.Integrityf("config", "Validate", "iot.sensors_file is required when iot is enabled")
		}
		if c.IoT.ReadingsFile == "" {
			return errors.Integrityf("config", "Validate", "iot.readings_file is required when iot is enabled")
		}
	}
	if c.Federation.Enabled {
		for name, raw := range map[string]string{
			"federation.crm_url": c.Federation.CRMURL,
			"federation.iot_url": c.Federation.IoTURL,
		} {
			if raw == "" {
				return errors.Integrityf("config", "Validate", "%s is required when federation is enabled", name)
			}
			if _, err := url.ParseRequestURI(raw); err != nil {
				return errors.WrapIntegrity(err, "config", "Validate",
					fmt.Sprintf("%s is not a valid URL", name))
			}
		}
	}

	return nil
}
