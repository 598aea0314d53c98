package logreader

import (
	"fmt"

	"github.com/marconaccini/BusmasterLog2CSVConverter/internal/domain"
)

// Dialect identifies a supported CAN log format.
type Dialect string

const (
	DialectUnknown   Dialect = ""
	DialectBusMaster Dialect = "busmaster"
	DialectPCAN      Dialect = "pcan"
	DialectCL2000    Dialect = "cl2000"
)

// ParseDialect validates a user-supplied dialect name.
func ParseDialect(s string) (Dialect, error) {
	switch Dialect(s) {
	case DialectBusMaster, DialectPCAN, DialectCL2000:
		return Dialect(s), nil
	case DialectUnknown:
		return DialectUnknown, nil
	default:
		return DialectUnknown, fmt.Errorf("unknown log dialect %q (supported: busmaster, pcan, cl2000)", s)
	}
}

// Parser parses one log dialect line by line. Parsers may keep per-file
// state (BusMaster rebases time-of-day stamps onto the first frame), so one
// Parser instance serves exactly one file.
type Parser interface {
	Dialect() Dialect

	// Match reports whether the line has the shape of a frame line of this
	// dialect. Header, comment and metadata lines do not match.
	Match(line string) bool

	// ParseLine converts one matched line into a frame record.
	ParseLine(line string) (*domain.FrameRecord, error)
}

// Options carries per-dialect parser settings.
type Options struct {
	// CL2000IDBase resolves the ambiguous base of pure-digit CL2000 IDs:
	// "hex" (default) or "dec". IDs with an 0x prefix or hex letters always
	// parse as hex.
	CL2000IDBase string
}

// newParsers returns fresh parser instances in detection priority order.
func newParsers(opts Options) []Parser {
	return []Parser{
		newBusMasterParser(),
		newPCANParser(),
		newCL2000Parser(opts.CL2000IDBase),
	}
}
