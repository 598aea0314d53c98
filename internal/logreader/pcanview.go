package logreader

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/marconaccini/BusmasterLog2CSVConverter/internal/domain"
)

// PCAN-View trace lines come in two shapes. TRC 2.x:
//
//	1 1059.900 DT 0300 Rx 8 00 11 22 33 44 55 66 77
//	<index> <elapsed-ms> DT <ID> <dir> <DLC> <bytes...>
//
// and the older 1.x shape with a ')' after the index and no type column:
//
//	1) 1059.9 Rx 0300 8 00 11 22 33 44 55 66 77
//
// Header lines start with ';'. The ID has no 0x prefix but is hexadecimal,
// elapsed time is in milliseconds.
type pcanParser struct{}

func newPCANParser() *pcanParser {
	return &pcanParser{}
}

func (p *pcanParser) Dialect() Dialect { return DialectPCAN }

func (p *pcanParser) Match(line string) bool {
	if strings.HasPrefix(line, ";") {
		return false
	}
	_, err := p.split(line)
	return err == nil
}

func (p *pcanParser) ParseLine(line string) (*domain.FrameRecord, error) {
	fields, err := p.split(line)
	if err != nil {
		return nil, err
	}

	ms, err := strconv.ParseFloat(fields.elapsed, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid elapsed time %q: %w", fields.elapsed, err)
	}

	id, err := strconv.ParseUint(fields.id, 16, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid CAN ID %q: %w", fields.id, err)
	}

	dlc, err := strconv.Atoi(fields.dlc)
	if err != nil {
		return nil, fmt.Errorf("invalid DLC %q: %w", fields.dlc, err)
	}

	data, err := parseHexBytes(fields.data)
	if err != nil {
		return nil, err
	}

	return &domain.FrameRecord{
		Timestamp: ms / 1000.0,
		ID:        uint32(id),
		Extended:  id > 0x7FF,
		Direction: domain.Direction(fields.dir),
		DLC:       dlc,
		Data:      data,
	}, nil
}

type pcanFields struct {
	elapsed string
	id      string
	dir     string
	dlc     string
	data    []string
}

// split tokenizes a trace line and locates the fields of whichever TRC shape
// it has. It is also the dialect recognizer, so it validates token shapes
// rather than trusting positions.
func (p *pcanParser) split(line string) (*pcanFields, error) {
	tokens := strings.Fields(line)
	if len(tokens) < 5 {
		return nil, fmt.Errorf("too few columns for a PCAN trace line")
	}

	index := tokens[0]
	old := strings.HasSuffix(index, ")")
	if old {
		index = strings.TrimSuffix(index, ")")
	}
	if _, err := strconv.Atoi(index); err != nil {
		return nil, fmt.Errorf("invalid message index %q", tokens[0])
	}

	f := &pcanFields{elapsed: tokens[1]}
	if old {
		// 1) <ms> <dir> <ID> <DLC> <bytes...>
		if len(tokens) < 5 {
			return nil, fmt.Errorf("too few columns for a TRC 1.x line")
		}
		f.dir = tokens[2]
		f.id = tokens[3]
		f.dlc = tokens[4]
		f.data = tokens[5:]
	} else {
		// <nr> <ms> DT <ID> <dir> <DLC> <bytes...>
		if len(tokens) < 6 || tokens[2] != "DT" {
			return nil, fmt.Errorf("missing DT type column")
		}
		f.id = tokens[3]
		f.dir = tokens[4]
		f.dlc = tokens[5]
		f.data = tokens[6:]
	}

	if _, err := strconv.ParseFloat(f.elapsed, 64); err != nil {
		return nil, fmt.Errorf("invalid elapsed time %q", f.elapsed)
	}
	if f.dir != "Rx" && f.dir != "Tx" {
		return nil, fmt.Errorf("invalid direction %q", f.dir)
	}
	if _, err := strconv.ParseUint(f.id, 16, 32); err != nil {
		return nil, fmt.Errorf("invalid CAN ID %q", f.id)
	}
	return f, nil
}
