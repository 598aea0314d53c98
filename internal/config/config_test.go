package config

import (
	"os"
	"path/filepath"
	"testing"
)

func validOptions() *Options {
	opts := Default()
	opts.LogFile = "trace.log"
	opts.DBCFiles = []string{"db.dbc"}
	return opts
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Options)
		wantErr bool
	}{
		{"defaults with inputs", func(o *Options) {}, false},
		{"missing log file", func(o *Options) { o.LogFile = "" }, true},
		{"missing dbc files", func(o *Options) { o.DBCFiles = nil }, true},
		{"multi-char delimiter", func(o *Options) { o.Delimiter = ";;" }, true},
		{"empty delimiter", func(o *Options) { o.Delimiter = "" }, true},
		{"tab delimiter", func(o *Options) { o.Delimiter = "\t" }, false},
		{"qualified name mode", func(o *Options) { o.NameMode = "message.signal" }, false},
		{"bad name mode", func(o *Options) { o.NameMode = "qualified" }, true},
		{"bad cl2000 base", func(o *Options) { o.CL2000IDBase = "oct" }, true},
		{"bad tracing protocol", func(o *Options) {
			o.Tracing.Enabled = true
			o.Tracing.Protocol = "udp"
		}, true},
		{"clickhouse without host", func(o *Options) {
			o.ClickHouse.Enabled = true
			o.ClickHouse.Host = ""
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := validOptions()
			tt.mutate(opts)
			if err := opts.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	content := `
delimiter: ","
name_mode: message.signal
message_counter: true
cl2000_id_base: dec
clickhouse:
  enabled: true
  host: ch.example.com
  port: 9440
`
	path := filepath.Join(t.TempDir(), "options.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	opts, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}

	if opts.Delimiter != "," {
		t.Errorf("delimiter = %q", opts.Delimiter)
	}
	if opts.NameMode != "message.signal" {
		t.Errorf("name_mode = %q", opts.NameMode)
	}
	if !opts.MessageCounter {
		t.Error("message_counter should be true")
	}
	if opts.CL2000IDBase != "dec" {
		t.Errorf("cl2000_id_base = %q", opts.CL2000IDBase)
	}
	if !opts.ClickHouse.Enabled || opts.ClickHouse.Host != "ch.example.com" || opts.ClickHouse.Port != 9440 {
		t.Errorf("clickhouse config = %+v", opts.ClickHouse)
	}
	// Untouched fields keep defaults
	if opts.Output != "output.csv" {
		t.Errorf("output = %q, want default", opts.Output)
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile("/nonexistent/options.yaml"); err == nil {
		t.Error("expected error for missing options file")
	}
}

func TestDelimiterRune(t *testing.T) {
	opts := validOptions()
	opts.Delimiter = "\t"
	if opts.DelimiterRune() != '\t' {
		t.Errorf("DelimiterRune() = %q", opts.DelimiterRune())
	}
}
