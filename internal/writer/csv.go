package writer

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/marconaccini/BusmasterLog2CSVConverter/internal/domain"
)

// CSVWriter writes output rows as delimited text. The destination file is
// created lazily on the first row, so an empty run leaves no file behind.
// Path "-" writes to stdout (diagnostics go to stderr).
type CSVWriter struct {
	path      string
	delimiter rune
	columns   []string

	file io.WriteCloser
	w    *csv.Writer
}

// NewCSVWriter prepares a CSV sink for the given column schema. The header
// row is `timestamp` followed by columns in schema order.
func NewCSVWriter(path string, delimiter rune, columns []string) *CSVWriter {
	return &CSVWriter{
		path:      path,
		delimiter: delimiter,
		columns:   columns,
	}
}

// WriteRow appends one row, opening the destination and writing the header
// first if this is the first row.
func (c *CSVWriter) WriteRow(_ context.Context, row *domain.OutputRow) error {
	if c.w == nil {
		if err := c.open(); err != nil {
			return err
		}
	}

	if len(row.Cells) != len(c.columns) {
		return fmt.Errorf("row has %d cells, schema has %d columns", len(row.Cells), len(c.columns))
	}

	record := make([]string, 0, len(row.Cells)+1)
	record = append(record, strconv.FormatFloat(row.Timestamp, 'f', 6, 64))
	for _, cell := range row.Cells {
		record = append(record, FormatCell(cell))
	}

	if err := c.w.Write(record); err != nil {
		return fmt.Errorf("failed to write CSV row: %w", err)
	}
	return nil
}

func (c *CSVWriter) open() error {
	if c.path == "-" {
		c.file = nopCloser{os.Stdout}
	} else {
		file, err := os.Create(c.path)
		if err != nil {
			return fmt.Errorf("failed to create output file %s: %w", c.path, err)
		}
		c.file = file
	}

	c.w = csv.NewWriter(c.file)
	c.w.Comma = c.delimiter

	header := append([]string{"timestamp"}, c.columns...)
	if err := c.w.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	return nil
}

// Close flushes and closes the destination. Closing a sink that never
// received a row, or closing twice, is a no-op.
func (c *CSVWriter) Close() error {
	if c.w == nil {
		return nil
	}
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV output: %w", err)
	}
	file := c.file
	c.w = nil
	c.file = nil
	return file.Close()
}

// FormatCell renders a cell for delimited output. Unset cells are empty
// fields; integer-valued signals (scale=1, offset=0) render without a
// decimal point; everything else uses minimal round-trip float formatting.
// The csv writer quotes any value containing the delimiter.
func FormatCell(cell domain.Cell) string {
	if !cell.Set {
		return ""
	}
	if cell.Integer {
		return strconv.FormatInt(int64(cell.Value), 10)
	}
	return strconv.FormatFloat(cell.Value, 'g', -1, 64)
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
