package logreader

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/marconaccini/BusmasterLog2CSVConverter/internal/domain"
)

// CL2000 logs are semicolon-delimited:
//
//	Timestamp;Type;ID;Data
//	20170101T101010.123;0;1F4;0102030405060708
//
// The timestamp is either a plain number of seconds or a compact ISO stamp
// (converted to Unix epoch seconds and carried literally). The data field is
// one unbroken run of hex byte pairs.
//
// The ID base is ambiguous for pure-digit IDs: CL2000 firmware writes hex,
// so hex is the default, overridable via Options.CL2000IDBase.
type cl2000Parser struct {
	idBase string // "hex" or "dec"
}

func newCL2000Parser(idBase string) *cl2000Parser {
	if idBase == "" {
		idBase = "hex"
	}
	return &cl2000Parser{idBase: idBase}
}

func (p *cl2000Parser) Dialect() Dialect { return DialectCL2000 }

func (p *cl2000Parser) Match(line string) bool {
	parts := strings.Split(line, ";")
	if len(parts) < 3 {
		return false
	}
	if _, err := parseCL2000Timestamp(parts[0]); err != nil {
		return false
	}
	_, err := p.parseID(parts[2])
	return err == nil
}

func (p *cl2000Parser) ParseLine(line string) (*domain.FrameRecord, error) {
	parts := strings.Split(line, ";")
	if len(parts) < 3 {
		return nil, fmt.Errorf("expected Timestamp;Type;ID;Data, got %d fields", len(parts))
	}

	ts, err := parseCL2000Timestamp(parts[0])
	if err != nil {
		return nil, err
	}

	id, err := p.parseID(parts[2])
	if err != nil {
		return nil, err
	}

	var data []byte
	if len(parts) > 3 && parts[3] != "" {
		raw := strings.ReplaceAll(strings.TrimSpace(parts[3]), " ", "")
		data, err = hex.DecodeString(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid data field %q: %w", parts[3], err)
		}
	}

	return &domain.FrameRecord{
		Timestamp: ts,
		ID:        id,
		Extended:  id > 0x7FF,
		Direction: domain.DirectionUnknown,
		DLC:       len(data),
		Data:      data,
	}, nil
}

// parseID normalizes the ID field: an explicit 0x prefix or any hex letter
// forces base 16; pure-digit IDs follow the configured default base.
func (p *cl2000Parser) parseID(field string) (uint32, error) {
	s := strings.TrimSpace(field)
	if s == "" {
		return 0, fmt.Errorf("empty ID field")
	}

	base := 16
	switch {
	case strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X"):
		s = s[2:]
	case strings.ContainsAny(s, "abcdefABCDEF"):
		// unambiguously hex
	case p.idBase == "dec":
		base = 10
	}

	id, err := strconv.ParseUint(s, base, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid CAN ID %q: %w", field, err)
	}
	return uint32(id), nil
}

var cl2000TimeLayouts = []string{
	"20060102T150405.000",
	"20060102T150405",
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
}

// parseCL2000Timestamp accepts a plain seconds value or a compact ISO stamp.
func parseCL2000Timestamp(field string) (float64, error) {
	s := strings.TrimSpace(field)
	if s == "" {
		return 0, fmt.Errorf("empty timestamp field")
	}

	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, nil
	}

	for _, layout := range cl2000TimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return float64(t.UnixNano()) / 1e9, nil
		}
	}

	return 0, fmt.Errorf("invalid timestamp %q", field)
}
