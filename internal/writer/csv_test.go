package writer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/marconaccini/BusmasterLog2CSVConverter/internal/domain"
)

func set(v float64, integer bool) domain.Cell {
	return domain.Cell{Set: true, Value: v, Integer: integer}
}

func TestCSVWriterOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	w := NewCSVWriter(path, ';', []string{"RPM", "Temp"})

	rows := []domain.OutputRow{
		{Timestamp: 0, Cells: []domain.Cell{set(3000, true), {}}},
		{Timestamp: 0.1, Cells: []domain.Cell{set(3000, true), set(85.5, false)}},
	}
	for i := range rows {
		if err := w.WriteRow(context.Background(), &rows[i]); err != nil {
			t.Fatalf("WriteRow() error: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %d lines", len(lines))
	}
	if lines[0] != "timestamp;RPM;Temp" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != "0.000000;3000;" {
		t.Errorf("row 1 = %q", lines[1])
	}
	if lines[2] != "0.100000;3000;85.5" {
		t.Errorf("row 2 = %q", lines[2])
	}
}

func TestCSVWriterCustomDelimiter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	w := NewCSVWriter(path, ',', []string{"A"})

	row := domain.OutputRow{Timestamp: 1, Cells: []domain.Cell{set(2, true)}}
	if err := w.WriteRow(context.Background(), &row); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	data, _ := os.ReadFile(path)
	if !strings.HasPrefix(string(data), "timestamp,A\n") {
		t.Errorf("unexpected header: %q", string(data))
	}
}

func TestCSVWriterNoRowsNoFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	w := NewCSVWriter(path, ';', []string{"A"})

	if err := w.Close(); err != nil {
		t.Fatalf("Close() on empty sink: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("empty run must not leave an output file behind")
	}
}

func TestCSVWriterSchemaMismatch(t *testing.T) {
	w := NewCSVWriter(filepath.Join(t.TempDir(), "out.csv"), ';', []string{"A", "B"})
	row := domain.OutputRow{Cells: []domain.Cell{set(1, true)}}
	if err := w.WriteRow(context.Background(), &row); err == nil {
		t.Error("expected error for cell/column count mismatch")
	}
}

func TestFormatCell(t *testing.T) {
	tests := []struct {
		name string
		cell domain.Cell
		want string
	}{
		{"unset", domain.Cell{}, ""},
		{"integer", set(255, true), "255"},
		{"negative integer", set(-1, true), "-1"},
		{"float", set(3.6, false), "3.6"},
		{"float without trailing zeros", set(40, false), "40"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatCell(tt.cell); got != tt.want {
				t.Errorf("FormatCell() = %q, want %q", got, tt.want)
			}
		})
	}
}
