package domain

import "time"

// ConvertStats is the end-of-run summary of one conversion. All recoverable
// anomalies are aggregated here so a run can be judged without scrolling
// through per-line warnings.
type ConvertStats struct {
	RunID   string
	LogFile string
	Dialect string

	FramesParsed   uint64 // lines that produced a FrameRecord
	LinesSkipped   uint64 // lines the active dialect could not parse
	DLCMismatches  uint64 // lines whose DLC disagreed with the payload length
	UnknownFrames  uint64 // frames whose ID matched no DBC message
	SignalsSkipped uint64 // signals whose bit range exceeded the payload
	EventsDecoded  uint64
	RowsWritten    uint64

	StartTime time.Time
	EndTime   time.Time
}

// Duration returns the wall time of the run.
func (s *ConvertStats) Duration() time.Duration {
	return s.EndTime.Sub(s.StartTime)
}
