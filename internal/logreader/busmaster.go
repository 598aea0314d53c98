package logreader

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/marconaccini/BusmasterLog2CSVConverter/internal/domain"
)

// BusMaster log line:
//
//	09:25:06:1260 Rx 1 0x136 x 8 13 24 C2 A1 00 00 90 FF
//	<time-of-day>  <dir> <chan> <ID> <type> <DLC> <bytes...>
//
// The sub-second field is 3 or 4 digits; its width determines its scale
// (126 -> 0.126 s, 1260 -> 0.1260 s). The type marker is a single character
// ('x' for standard frames).
var busMasterLine = regexp.MustCompile(
	`^(\d{2}):(\d{2}):(\d{2}):(\d{3,4})\s+` +
		`(Tx|Rx)\s+` +
		`(\d+)\s+` +
		`0x([0-9A-Fa-f]+)\s+` +
		`\S\s+` +
		`(\d+)\s*` +
		`((?:[0-9A-Fa-f]{2}\s*)*)$`)

type busMasterParser struct {
	haveBase bool
	base     float64 // time-of-day of the first frame, seconds
}

func newBusMasterParser() *busMasterParser {
	return &busMasterParser{}
}

func (p *busMasterParser) Dialect() Dialect { return DialectBusMaster }

func (p *busMasterParser) Match(line string) bool {
	return busMasterLine.MatchString(line)
}

func (p *busMasterParser) ParseLine(line string) (*domain.FrameRecord, error) {
	m := busMasterLine.FindStringSubmatch(line)
	if m == nil {
		return nil, fmt.Errorf("line does not match BusMaster format")
	}

	hours, _ := strconv.Atoi(m[1])
	minutes, _ := strconv.Atoi(m[2])
	seconds, _ := strconv.Atoi(m[3])
	frac, _ := strconv.Atoi(m[4])
	tod := float64(hours*3600+minutes*60+seconds) +
		float64(frac)/math.Pow10(len(m[4]))

	// First frame defines t=0; later stamps are elapsed seconds.
	if !p.haveBase {
		p.base = tod
		p.haveBase = true
	}

	id, err := strconv.ParseUint(m[7], 16, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid CAN ID 0x%s: %w", m[7], err)
	}

	channel, _ := strconv.Atoi(m[6])
	dlc, err := strconv.Atoi(m[8])
	if err != nil {
		return nil, fmt.Errorf("invalid DLC %q: %w", m[8], err)
	}

	data, err := parseHexBytes(strings.Fields(m[9]))
	if err != nil {
		return nil, err
	}

	return &domain.FrameRecord{
		Timestamp: tod - p.base,
		ID:        uint32(id),
		Extended:  id > 0x7FF,
		Direction: domain.Direction(m[5]),
		Channel:   channel,
		DLC:       dlc,
		Data:      data,
	}, nil
}

// parseHexBytes converts space-separated two-digit hex tokens into a payload.
func parseHexBytes(tokens []string) ([]byte, error) {
	data := make([]byte, 0, len(tokens))
	for _, tok := range tokens {
		b, err := strconv.ParseUint(tok, 16, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid data byte %q: %w", tok, err)
		}
		data = append(data, byte(b))
	}
	return data, nil
}
