package domain

// DecodedSignalEvent is one decoded physical value: the result of applying a
// single DBC signal definition to one frame's payload.
type DecodedSignalEvent struct {
	Timestamp float64
	Message   string // DBC message name (or msg_<ID hex> when unnamed)
	Signal    string
	Value     float64
	Integer   bool // true when scale=1 and offset=0, value is a whole number
}

// Cell is one column slot of an output row. Unset cells render as empty
// fields until the column receives its first value.
type Cell struct {
	Set     bool
	Value   float64
	Integer bool
}

// OutputRow is a snapshot of the aggregator's current values at one frame's
// timestamp. Cells is aligned with the column schema (header order).
type OutputRow struct {
	Timestamp float64
	Cells     []Cell
}
