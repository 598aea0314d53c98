package config

import (
	"fmt"
	"os"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/marconaccini/BusmasterLog2CSVConverter/internal/writer"
)

// TracingConfig configures the optional OTLP trace export.
type TracingConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
	Protocol string `yaml:"protocol"` // "grpc" or "http"
}

// Options holds the full configuration of one conversion run. CLI flags and
// arguments populate it; an optional YAML options file supplies defaults
// that flags override.
type Options struct {
	// Positional inputs, never from YAML
	LogFile  string   `yaml:"-"`
	DBCFiles []string `yaml:"-"`

	Output         string `yaml:"output"`
	Delimiter      string `yaml:"delimiter"`
	NameMode       string `yaml:"name_mode"`
	MessageCounter bool   `yaml:"message_counter"`
	MessagePulser  bool   `yaml:"message_pulser"`

	// Dialect forces the log format; empty means auto-detect
	Dialect      string `yaml:"dialect"`
	CL2000IDBase string `yaml:"cl2000_id_base"`

	LogLevel string `yaml:"log_level"`

	Tracing    TracingConfig           `yaml:"tracing"`
	ClickHouse writer.ClickHouseConfig `yaml:"clickhouse"`
}

// Default returns the documented defaults.
func Default() *Options {
	return &Options{
		Output:       "output.csv",
		Delimiter:    ";",
		NameMode:     "signal",
		CL2000IDBase: "hex",
		LogLevel:     "info",
		Tracing: TracingConfig{
			Protocol: "grpc",
		},
		ClickHouse: writer.ClickHouseConfig{
			Host:     "localhost",
			Port:     9000,
			Database: "canlogs",
		},
	}
}

// LoadFile merges a YAML options file over the defaults.
func LoadFile(path string) (*Options, error) {
	opts := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read options file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, opts); err != nil {
		return nil, fmt.Errorf("failed to parse options file %s: %w", path, err)
	}

	return opts, nil
}

// Validate checks the assembled options.
func (o *Options) Validate() error {
	if o.LogFile == "" {
		return fmt.Errorf("a log file is required")
	}
	if len(o.DBCFiles) == 0 {
		return fmt.Errorf("at least one DBC file is required")
	}
	if utf8.RuneCountInString(o.Delimiter) != 1 {
		return fmt.Errorf("delimiter must be a single character, got %q", o.Delimiter)
	}
	if o.NameMode != "signal" && o.NameMode != "message.signal" {
		return fmt.Errorf("name_mode must be signal or message.signal, got %q", o.NameMode)
	}
	if o.CL2000IDBase != "hex" && o.CL2000IDBase != "dec" {
		return fmt.Errorf("cl2000_id_base must be hex or dec, got %q", o.CL2000IDBase)
	}
	if o.Tracing.Enabled && o.Tracing.Protocol != "grpc" && o.Tracing.Protocol != "http" {
		return fmt.Errorf("tracing protocol must be grpc or http, got %q", o.Tracing.Protocol)
	}
	if o.ClickHouse.Enabled {
		if o.ClickHouse.Host == "" {
			return fmt.Errorf("clickhouse.host is required when the mirror is enabled")
		}
		if o.ClickHouse.Port <= 0 || o.ClickHouse.Port > 65535 {
			return fmt.Errorf("clickhouse.port must be between 1 and 65535")
		}
	}
	return nil
}

// DelimiterRune returns the delimiter as a rune for the csv writer.
func (o *Options) DelimiterRune() rune {
	r, _ := utf8.DecodeRuneInString(o.Delimiter)
	return r
}
