package aggregate

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/marconaccini/BusmasterLog2CSVConverter/internal/dbc"
	"github.com/marconaccini/BusmasterLog2CSVConverter/internal/domain"
)

// NameMode governs how signal columns are named.
type NameMode string

const (
	// NameModeSignal uses the bare signal name. Signals with the same name
	// in different messages share a column, last write wins.
	NameModeSignal NameMode = "signal"
	// NameModeQualified uses message.signal, collision-free.
	NameModeQualified NameMode = "message.signal"
)

// ParseNameMode validates a user-supplied name mode.
func ParseNameMode(s string) (NameMode, error) {
	switch NameMode(s) {
	case NameModeSignal, NameModeQualified:
		return NameMode(s), nil
	default:
		return "", fmt.Errorf("unknown name mode %q (supported: signal, message.signal)", s)
	}
}

// Modes toggles the optional per-message columns.
type Modes struct {
	NameMode       NameMode
	MessageCounter bool // one monotonically increasing column per message
	MessagePulser  bool // one edge-triggered 0/1 column per message
}

// Aggregator folds the time-ordered stream of decoded signal events into
// output rows. It owns the only mutable state of the pipeline: the current
// row of last-known values per column, forward-filled between updates.
// Columns are pre-declared from the DBC database, not discovered from the
// log, so every row has the full schema.
type Aggregator struct {
	modes Modes

	columns []string       // header order, excluding the timestamp column
	index   map[string]int // column name -> position in columns

	counterCol map[string]int // message display name -> counter column
	pulseCol   map[string]int // message display name -> pulse column

	current []domain.Cell
	counts  map[string]uint64
}

// New builds an aggregator with the column schema implied by the database
// and the active modes: per message (in declaration order), its signal
// columns, then its counter and pulse columns when enabled.
func New(db *dbc.Database, modes Modes) *Aggregator {
	a := &Aggregator{
		modes:      modes,
		index:      make(map[string]int),
		counterCol: make(map[string]int),
		pulseCol:   make(map[string]int),
		counts:     make(map[string]uint64),
	}

	for _, msg := range db.Messages() {
		name := msg.DisplayName()
		for _, sig := range msg.Signals {
			col := sig.Name
			if modes.NameMode == NameModeQualified {
				col = name + "." + sig.Name
			}
			if prev, exists := a.index[col]; exists {
				// Documented bare-name ambiguity: the shared column is
				// overwritten by whichever message decoded last.
				log.Warn().
					Str("column", col).
					Int("position", prev).
					Msg("Signal name collides across messages, sharing one column (last write wins)")
				continue
			}
			a.index[col] = len(a.columns)
			a.columns = append(a.columns, col)
		}
		if modes.MessageCounter {
			col := name + "_count"
			a.counterCol[name] = len(a.columns)
			a.index[col] = len(a.columns)
			a.columns = append(a.columns, col)
		}
		if modes.MessagePulser {
			col := name + "_pulse"
			a.pulseCol[name] = len(a.columns)
			a.index[col] = len(a.columns)
			a.columns = append(a.columns, col)
		}
	}

	a.current = make([]domain.Cell, len(a.columns))
	return a
}

// Columns returns the value column names in header order (the timestamp
// column is the sink's concern).
func (a *Aggregator) Columns() []string {
	return a.columns
}

// Push applies one frame's batch of decoded events (all sharing the frame's
// timestamp) and returns the snapshot row for that frame. message is the
// display name of the matched DBC message; it drives the counter and pulse
// columns even when the frame decoded zero signals.
func (a *Aggregator) Push(timestamp float64, message string, events []domain.DecodedSignalEvent) domain.OutputRow {
	// Pulse columns are edge-triggered: clear all of them before applying
	// this frame so only the re-triggered one reads 1.
	for _, pos := range a.pulseCol {
		a.current[pos] = domain.Cell{Set: true, Value: 0, Integer: true}
	}

	for _, ev := range events {
		col := ev.Signal
		if a.modes.NameMode == NameModeQualified {
			col = ev.Message + "." + ev.Signal
		}
		pos, ok := a.index[col]
		if !ok {
			continue
		}
		a.current[pos] = domain.Cell{Set: true, Value: ev.Value, Integer: ev.Integer}
	}

	if a.modes.MessageCounter {
		if pos, ok := a.counterCol[message]; ok {
			a.counts[message]++
			a.current[pos] = domain.Cell{Set: true, Value: float64(a.counts[message]), Integer: true}
		}
	}
	if a.modes.MessagePulser {
		if pos, ok := a.pulseCol[message]; ok {
			a.current[pos] = domain.Cell{Set: true, Value: 1, Integer: true}
		}
	}

	row := domain.OutputRow{
		Timestamp: timestamp,
		Cells:     make([]domain.Cell, len(a.current)),
	}
	copy(row.Cells, a.current)
	return row
}
