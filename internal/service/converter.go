package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/marconaccini/BusmasterLog2CSVConverter/internal/aggregate"
	"github.com/marconaccini/BusmasterLog2CSVConverter/internal/config"
	"github.com/marconaccini/BusmasterLog2CSVConverter/internal/dbc"
	"github.com/marconaccini/BusmasterLog2CSVConverter/internal/decode"
	"github.com/marconaccini/BusmasterLog2CSVConverter/internal/domain"
	"github.com/marconaccini/BusmasterLog2CSVConverter/internal/logreader"
	"github.com/marconaccini/BusmasterLog2CSVConverter/internal/writer"
)

// Empty-result errors: the inputs were readable but the conversion produced
// nothing, which almost always means the wrong log or DBC file.
var (
	ErrNoFrames  = errors.New("no CAN frames parsed from log file")
	ErrNoMatches = errors.New("no frame matched any DBC message")
)

// Converter runs one conversion: log file -> frames -> decoded signals ->
// aggregated rows -> sinks. Single-threaded, single-pass, streaming; only
// the aggregator's current row and the sink batches are held in memory.
type Converter struct {
	opts  *config.Options
	runID uuid.UUID
}

// NewConverter validates the options and prepares a run.
func NewConverter(opts *config.Options) (*Converter, error) {
	if opts == nil {
		return nil, fmt.Errorf("options are required")
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	return &Converter{opts: opts, runID: uuid.New()}, nil
}

// RunID identifies this conversion in logs and the ClickHouse mirror.
func (c *Converter) RunID() uuid.UUID {
	return c.runID
}

// Run executes the conversion and returns the run summary. The returned
// stats are valid even when err is non-nil.
func (c *Converter) Run(ctx context.Context) (*domain.ConvertStats, error) {
	tracer := otel.Tracer("canlog2csv")
	stats := &domain.ConvertStats{
		RunID:     c.runID.String(),
		LogFile:   c.opts.LogFile,
		StartTime: time.Now(),
	}
	defer func() { stats.EndTime = time.Now() }()

	ctx, loadSpan := tracer.Start(ctx, "load_dbc")
	db, err := dbc.Load(c.opts.DBCFiles)
	loadSpan.End()
	if err != nil {
		return stats, err
	}
	if db.Len() == 0 {
		return stats, fmt.Errorf("no messages found in DBC files %v", c.opts.DBCFiles)
	}

	dialect, err := logreader.ParseDialect(c.opts.Dialect)
	if err != nil {
		return stats, err
	}
	nameMode, err := aggregate.ParseNameMode(c.opts.NameMode)
	if err != nil {
		return stats, err
	}

	file, err := os.Open(c.opts.LogFile)
	if err != nil {
		return stats, fmt.Errorf("failed to open log file %s: %w", c.opts.LogFile, err)
	}
	defer file.Close()

	reader := logreader.NewReader(file, dialect, logreader.Options{
		CL2000IDBase: c.opts.CL2000IDBase,
	})

	agg := aggregate.New(db, aggregate.Modes{
		NameMode:       nameMode,
		MessageCounter: c.opts.MessageCounter,
		MessagePulser:  c.opts.MessagePulser,
	})

	rowSink := writer.NewCSVWriter(c.opts.Output, c.opts.DelimiterRune(), agg.Columns())
	defer rowSink.Close()

	var eventSink writer.EventSink
	if c.opts.ClickHouse.Enabled {
		chSink, err := writer.NewClickHouseWriter(ctx, c.opts.ClickHouse, c.runID)
		if err != nil {
			return stats, err
		}
		defer chSink.Close()
		eventSink = chSink
	}

	log.Info().
		Str("run_id", stats.RunID).
		Str("log_file", c.opts.LogFile).
		Int("dbc_messages", db.Len()).
		Int("columns", len(agg.Columns())).
		Msg("Starting conversion")

	ctx, convSpan := tracer.Start(ctx, "convert")
	defer convSpan.End()

	if err := c.pump(ctx, reader, db, agg, rowSink, eventSink, stats); err != nil {
		return stats, err
	}

	stats.FramesParsed = reader.FramesParsed
	stats.LinesSkipped = reader.LinesSkipped
	stats.DLCMismatches = reader.DLCMismatches
	stats.Dialect = string(reader.Dialect())

	convSpan.SetAttributes(
		attribute.Int64("frames_parsed", int64(stats.FramesParsed)),
		attribute.Int64("rows_written", int64(stats.RowsWritten)),
	)

	if stats.FramesParsed == 0 {
		return stats, fmt.Errorf("%w: %s", ErrNoFrames, c.opts.LogFile)
	}
	if stats.RowsWritten == 0 {
		return stats, ErrNoMatches
	}

	// Close the CSV sink explicitly so flush errors surface instead of
	// being swallowed by the deferred call.
	if err := rowSink.Close(); err != nil {
		return stats, err
	}

	if eventSink != nil {
		if err := eventSink.Flush(ctx); err != nil {
			return stats, err
		}
		stats.EndTime = time.Now()
		if err := eventSink.WriteStats(ctx, stats); err != nil {
			log.Warn().Err(err).Msg("Failed to record run stats in ClickHouse")
		}
	}

	return stats, nil
}

// pump drains the frame stream through decode and aggregation into the
// sinks. A row is emitted for every frame whose ID exists in the database;
// unknown IDs produce no row and no side effects.
func (c *Converter) pump(
	ctx context.Context,
	reader *logreader.Reader,
	db *dbc.Database,
	agg *aggregate.Aggregator,
	rowSink writer.RowSink,
	eventSink writer.EventSink,
	stats *domain.ConvertStats,
) error {
	for {
		frame, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if errors.Is(err, logreader.ErrUnknownDialect) {
			return fmt.Errorf("%w in %s", err, c.opts.LogFile)
		}
		if err != nil {
			return err
		}

		events, matched, skipped := decode.Decode(db, frame)
		stats.SignalsSkipped += uint64(skipped)
		if !matched {
			stats.UnknownFrames++
			continue
		}
		stats.EventsDecoded += uint64(len(events))

		msg, _ := db.Lookup(frame.ID)
		row := agg.Push(frame.Timestamp, msg.DisplayName(), events)
		if err := rowSink.WriteRow(ctx, &row); err != nil {
			return err
		}
		stats.RowsWritten++

		if eventSink != nil && len(events) > 0 {
			if err := eventSink.WriteEvents(ctx, events); err != nil {
				return err
			}
		}
	}
}
