package domain

// Direction indicates whether a frame was received or transmitted.
// Informational only: decoding does not depend on it.
type Direction string

const (
	DirectionRx      Direction = "Rx"
	DirectionTx      Direction = "Tx"
	DirectionUnknown Direction = ""
)

// FrameRecord represents a single CAN bus event parsed from a log line.
// Timestamp is in seconds; for most dialects it is elapsed time since the
// first frame of the log, for CL2000 it may carry a literal wall-clock value.
type FrameRecord struct {
	Timestamp float64
	ID        uint32 // normalized arbitration ID (extended flag stripped)
	Extended  bool
	Direction Direction
	Channel   int
	DLC       int
	Data      []byte // 0-8 payload bytes

	// Line number in the source file, for diagnostics
	Line int
}
