package writer

import (
	"context"

	"github.com/marconaccini/BusmasterLog2CSVConverter/internal/domain"
)

// RowSink receives finished output rows plus the resolved column schema.
// The CSV file is the primary sink.
type RowSink interface {
	// WriteRow appends one output row.
	WriteRow(ctx context.Context, row *domain.OutputRow) error

	// Close flushes buffered rows and releases the destination.
	Close() error
}

// EventSink mirrors the raw stream of decoded signal events, one record per
// (frame, signal) pair, independent of row aggregation.
type EventSink interface {
	// WriteEvents adds one frame's batch of decoded events.
	WriteEvents(ctx context.Context, events []domain.DecodedSignalEvent) error

	// WriteStats records the end-of-run summary.
	WriteStats(ctx context.Context, stats *domain.ConvertStats) error

	// Flush forces writing all pending records.
	Flush(ctx context.Context) error

	// Close flushes pending records and closes the sink.
	Close() error
}
