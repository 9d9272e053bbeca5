// Package config loads btaudiod's YAML configuration file, grounded on the
// teacher's Config/LoadConfig pattern: a single struct tree unmarshalled
// with gopkg.in/yaml.v3, defaults filled in after unmarshal, and a
// Validate step run once at startup.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cwsl/btaudiod/internal/codec/ldac"
)

// Config is the root of btaudiod's configuration file, per spec.md §6
// Environment/config plus the ambient Logging/Prometheus/MQTT/Bus sections
// SPEC_FULL.md §2 adds.
type Config struct {
	Enable     EnableConfig     `yaml:"enable"`
	A2DP       A2DPConfig       `yaml:"a2dp"`
	AAC        AACConfig        `yaml:"aac"`
	MP3        MP3Config        `yaml:"mp3"`
	LDAC       LDACConfig       `yaml:"ldac"`
	HCIFilter  []string         `yaml:"hci_filter"` // adapter names allowed to register; empty = allow all
	Logging    LoggingConfig    `yaml:"logging"`
	Prometheus PrometheusConfig `yaml:"prometheus"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	Bus        BusConfig        `yaml:"bus"`
}

// EnableConfig gates which profiles the daemon registers at adapter
// acquisition time, per spec.md §6.
type EnableConfig struct {
	A2DPSource bool `yaml:"a2dp_source"`
	A2DPSink   bool `yaml:"a2dp_sink"`
	HFPAG      bool `yaml:"hfp_ag"`
	HFPHF      bool `yaml:"hfp_hf"`
	HSPAG      bool `yaml:"hsp_ag"`
	HSPHS      bool `yaml:"hsp_hs"`
}

// A2DPConfig holds the A2DP-wide tunables from spec.md §6. They are parsed,
// and Volume is defaulted and range-checked, but no other package reads
// them: no initial volume is applied, nothing is downmixed, negotiated
// rates are not checked, and no keep-alive timer exists.
type A2DPConfig struct {
	Volume     int  `yaml:"volume"`      // 0-127, defaults to 127
	ForceMono  bool `yaml:"force_mono"`  // parsed only
	Force44100 bool `yaml:"force_44100"` // parsed only
	KeepAlive  int  `yaml:"keep_alive"`  // seconds; parsed only
}

// AACConfig holds AAC encoder tunables.
type AACConfig struct {
	Afterburner bool `yaml:"afterburner"`
	VBRMode     int  `yaml:"vbr_mode"`
}

// MP3Config holds MP3 encoder tunables (carried from spec.md §6 even though
// no A2DP codec ID is assigned to MP3 in this daemon's codec table; present
// for forward compatibility with vendor codec negotiation extensions).
type MP3Config struct {
	Quality    int `yaml:"quality"`
	VBRQuality int `yaml:"vbr_quality"`
}

// LDACConfig holds the adaptive-bitrate knobs consumed by engine.Options.
type LDACConfig struct {
	ABR   bool              `yaml:"abr"`
	EQMID ldac.QualityIndex `yaml:"eqmid"`
}

// LoggingConfig mirrors the teacher's LoggingConfig: a level and a format.
// Level defaults to "info"; internal/logging does not read either field,
// its output is gated only by logging.DebugMode.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// PrometheusConfig controls the /metrics HTTP endpoint.
type PrometheusConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// MQTTConfig mirrors the teacher's MQTTConfig, trimmed to what btaudiod's
// PCMAdded/PCMRemoved/PropertiesChanged mirror needs.
type MQTTConfig struct {
	Enabled     bool   `yaml:"enable"`
	Broker      string `yaml:"broker"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         byte   `yaml:"qos"`
	Retain      bool   `yaml:"retain"`
}

// BusConfig controls the D-Bus service name and object path root.
type BusConfig struct {
	ServiceName string `yaml:"service_name"`
	RootPath    string `yaml:"root_path"`
	System      bool   `yaml:"system"` // true = system bus, false = session bus
}

// LoadConfig reads and parses filename, then fills in defaults exactly the
// way the teacher's LoadConfig does: unmarshal first, defaults after,
// because YAML unmarshalling leaves omitted fields at their zero value and
// we can't otherwise tell "absent" from "explicitly zero".
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.A2DP.Volume == 0 {
		c.A2DP.Volume = 127
	}
	if c.Bus.ServiceName == "" {
		c.Bus.ServiceName = "org.btaudio"
	}
	if c.Bus.RootPath == "" {
		c.Bus.RootPath = "/org/btaudio"
	}
	if c.Prometheus.Listen == "" {
		c.Prometheus.Listen = ":9499"
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "btaudiod"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate rejects configuration combinations that can't be served, per
// the teacher's Config.Validate pattern (config.go calls Validate once at
// startup after LoadConfig, fatal on error).
func (c *Config) Validate() error {
	if c.A2DP.Volume < 0 || c.A2DP.Volume > 127 {
		return fmt.Errorf("a2dp.volume must be 0-127, got %d", c.A2DP.Volume)
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.enable is true but mqtt.broker is empty")
	}
	switch c.LDAC.EQMID {
	case ldac.QualityHigh, ldac.QualityMid, ldac.QualityLow:
	default:
		return fmt.Errorf("ldac.eqmid must be one of high/mid/low, got %v", c.LDAC.EQMID)
	}
	return nil
}

// AnyProfileEnabled reports whether at least one profile is turned on, used
// by main to fail fast on a config with nothing to serve.
func (c *Config) AnyProfileEnabled() bool {
	e := c.Enable
	return e.A2DPSource || e.A2DPSink || e.HFPAG || e.HFPHF || e.HSPAG || e.HSPHS
}
