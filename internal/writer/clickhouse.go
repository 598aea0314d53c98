package writer

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/marconaccini/BusmasterLog2CSVConverter/internal/domain"
)

// ClickHouseConfig configures the optional decoded-event mirror.
type ClickHouseConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Table    string `yaml:"table"`
	// MaxBatch is the number of events buffered before an insert.
	MaxBatch int `yaml:"max_batch"`
}

// ClickHouseWriter mirrors decoded signal events to ClickHouse in batches,
// one record per (frame, signal) pair, tagged with the run ID. The stats
// summary goes to a companion <table>_runs table.
type ClickHouseWriter struct {
	conn  driver.Conn
	cfg   ClickHouseConfig
	runID uuid.UUID

	batch []domain.DecodedSignalEvent
}

// NewClickHouseWriter connects, ensures the tables exist and returns the
// sink. Connection failure is fatal: a configured mirror that cannot accept
// writes aborts the run before conversion starts.
func NewClickHouseWriter(ctx context.Context, cfg ClickHouseConfig, runID uuid.UUID) (*ClickHouseWriter, error) {
	if cfg.Table == "" {
		cfg.Table = "can_signal_events"
	}
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = 10000
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout: 5 * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	w := &ClickHouseWriter{
		conn:  conn,
		cfg:   cfg,
		runID: runID,
		batch: make([]domain.DecodedSignalEvent, 0, cfg.MaxBatch),
	}

	if err := w.createTables(ctx); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *ClickHouseWriter) createTables(ctx context.Context) error {
	events := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			run_id UUID,
			ts Float64,
			message String,
			signal String,
			value Float64
		) ENGINE = MergeTree()
		ORDER BY (run_id, ts, message, signal)`, w.cfg.Table)
	if err := w.conn.Exec(ctx, events); err != nil {
		return fmt.Errorf("failed to create table %s: %w", w.cfg.Table, err)
	}

	runs := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s_runs (
			run_id UUID,
			log_file String,
			dialect String,
			frames_parsed UInt64,
			lines_skipped UInt64,
			dlc_mismatches UInt64,
			unknown_frames UInt64,
			signals_skipped UInt64,
			events_decoded UInt64,
			rows_written UInt64,
			started DateTime64(3),
			finished DateTime64(3)
		) ENGINE = MergeTree()
		ORDER BY started`, w.cfg.Table)
	if err := w.conn.Exec(ctx, runs); err != nil {
		return fmt.Errorf("failed to create table %s_runs: %w", w.cfg.Table, err)
	}
	return nil
}

// WriteEvents buffers one frame's decoded events, flushing when the batch
// fills up.
func (w *ClickHouseWriter) WriteEvents(ctx context.Context, events []domain.DecodedSignalEvent) error {
	w.batch = append(w.batch, events...)
	if len(w.batch) >= w.cfg.MaxBatch {
		return w.Flush(ctx)
	}
	return nil
}

// WriteStats records the run summary.
func (w *ClickHouseWriter) WriteStats(ctx context.Context, stats *domain.ConvertStats) error {
	batch, err := w.conn.PrepareBatch(ctx, fmt.Sprintf("INSERT INTO %s_runs", w.cfg.Table))
	if err != nil {
		return fmt.Errorf("failed to prepare run stats insert: %w", err)
	}
	err = batch.Append(
		w.runID,
		stats.LogFile,
		stats.Dialect,
		stats.FramesParsed,
		stats.LinesSkipped,
		stats.DLCMismatches,
		stats.UnknownFrames,
		stats.SignalsSkipped,
		stats.EventsDecoded,
		stats.RowsWritten,
		stats.StartTime,
		stats.EndTime,
	)
	if err != nil {
		return fmt.Errorf("failed to append run stats: %w", err)
	}
	return batch.Send()
}

// Flush inserts all buffered events.
func (w *ClickHouseWriter) Flush(ctx context.Context) error {
	if len(w.batch) == 0 {
		return nil
	}

	// Snapshot the batch so a failed insert does not double-append on retry
	// by the caller.
	snapshot := w.batch
	w.batch = make([]domain.DecodedSignalEvent, 0, w.cfg.MaxBatch)

	batch, err := w.conn.PrepareBatch(ctx, fmt.Sprintf("INSERT INTO %s", w.cfg.Table))
	if err != nil {
		return fmt.Errorf("failed to prepare event insert: %w", err)
	}
	for _, ev := range snapshot {
		if err := batch.Append(w.runID, ev.Timestamp, ev.Message, ev.Signal, ev.Value); err != nil {
			return fmt.Errorf("failed to append event: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send event batch: %w", err)
	}

	log.Debug().Int("events", len(snapshot)).Msg("Flushed event batch to ClickHouse")
	return nil
}

// Close flushes pending events and closes the connection.
func (w *ClickHouseWriter) Close() error {
	if err := w.Flush(context.Background()); err != nil {
		return err
	}
	return w.conn.Close()
}
