package logreader

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/marconaccini/BusmasterLog2CSVConverter/internal/domain"
)

// ErrUnknownDialect is returned when no dialect was forced and no parser
// recognized any line of the file.
var ErrUnknownDialect = errors.New("could not detect log dialect")

// warnLineLimit caps per-line warnings; everything is still counted.
const warnLineLimit = 5

// Reader streams frame records out of a CAN log file, one line at a time.
// The dialect is either forced up front or detected from the first line that
// any parser recognizes; detection commits for the remainder of the file
// (mixed-dialect files are not supported).
type Reader struct {
	scanner    *bufio.Scanner
	parser     Parser
	candidates []Parser

	line int

	// Recoverable-anomaly counters, folded into the run summary.
	FramesParsed  uint64
	LinesSkipped  uint64
	DLCMismatches uint64
}

// NewReader wraps r. When dialect is DialectUnknown the reader auto-detects;
// otherwise only the named dialect's parser is used.
func NewReader(r io.Reader, dialect Dialect, opts Options) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	reader := &Reader{scanner: scanner}
	for _, p := range newParsers(opts) {
		if dialect == DialectUnknown || p.Dialect() == dialect {
			reader.candidates = append(reader.candidates, p)
		}
	}
	if dialect != DialectUnknown && len(reader.candidates) == 1 {
		// Forced dialect still goes through Match per line, but there is
		// nothing to detect.
		reader.parser = reader.candidates[0]
	}
	return reader
}

// Dialect returns the committed dialect, or DialectUnknown before detection.
func (r *Reader) Dialect() Dialect {
	if r.parser == nil {
		return DialectUnknown
	}
	return r.parser.Dialect()
}

// Next returns the next frame record. Unparseable lines are counted and
// skipped, never fatal. io.EOF signals a clean end of file;
// ErrUnknownDialect is returned when the file ends before any line matched
// a candidate dialect.
func (r *Reader) Next() (*domain.FrameRecord, error) {
	for r.scanner.Scan() {
		r.line++
		line := strings.TrimSpace(r.scanner.Text())
		if line == "" {
			continue
		}

		if r.parser == nil {
			r.parser = r.detect(line)
			if r.parser == nil {
				// Header or metadata line ahead of the first frame.
				r.LinesSkipped++
				continue
			}
			log.Info().
				Str("dialect", string(r.parser.Dialect())).
				Int("line", r.line).
				Msg("Log dialect detected")
		}

		if !r.parser.Match(line) {
			r.skip(line, nil)
			continue
		}

		frame, err := r.parser.ParseLine(line)
		if err != nil {
			r.skip(line, err)
			continue
		}
		frame.Line = r.line

		if len(frame.Data) != frame.DLC {
			r.DLCMismatches++
			log.Warn().
				Int("line", r.line).
				Int("dlc", frame.DLC).
				Int("bytes", len(frame.Data)).
				Msg("DLC does not match payload length, keeping payload bytes")
		}

		r.FramesParsed++
		return frame, nil
	}

	if err := r.scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read log file: %w", err)
	}
	if r.parser == nil {
		return nil, ErrUnknownDialect
	}
	return nil, io.EOF
}

// detect probes the candidate parsers in priority order and commits to the
// first one whose recognizer accepts the line.
func (r *Reader) detect(line string) Parser {
	for _, p := range r.candidates {
		if p.Match(line) {
			return p
		}
	}
	return nil
}

func (r *Reader) skip(line string, err error) {
	r.LinesSkipped++
	if r.LinesSkipped > warnLineLimit {
		log.Debug().Int("line", r.line).Msg("Skipping unparseable line")
		return
	}
	evt := log.Warn().Int("line", r.line).Str("content", truncate(line, 80))
	if err != nil {
		evt = evt.Err(err)
	}
	evt.Msg("Skipping unparseable line")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
