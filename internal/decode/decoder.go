package decode

import (
	"encoding/binary"

	"github.com/marconaccini/BusmasterLog2CSVConverter/internal/dbc"
	"github.com/marconaccini/BusmasterLog2CSVConverter/internal/domain"
)

// Decode applies every signal definition of the frame's message to the
// frame's payload and returns the decoded physical values. Frames whose ID
// is absent from the database decode to (nil, false, 0): unknown CAN traffic
// is routine and contributes nothing to the output.
//
// skipped counts signals whose bit range exceeded this frame's payload; such
// signals are omitted for this frame only.
func Decode(db *dbc.Database, frame *domain.FrameRecord) (events []domain.DecodedSignalEvent, matched bool, skipped int) {
	msg, ok := db.Lookup(frame.ID)
	if !ok {
		return nil, false, 0
	}

	events = make([]domain.DecodedSignalEvent, 0, len(msg.Signals))
	name := msg.DisplayName()

	for _, sig := range msg.Signals {
		value, integer, ok := ExtractSignal(frame.Data, &sig)
		if !ok {
			skipped++
			continue
		}
		events = append(events, domain.DecodedSignalEvent{
			Timestamp: frame.Timestamp,
			Message:   name,
			Signal:    sig.Name,
			Value:     value,
			Integer:   integer,
		})
	}

	return events, true, skipped
}

// ExtractSignal pulls one signal's bit field out of a payload and scales it
// to a physical value. ok is false when the signal's bit range does not fit
// the payload.
//
// Little-endian (Intel) signals address bits LSB-first from byte 0 as one
// concatenated little-endian bitfield. Big-endian (Motorola) start bits name
// the MSB of the field; the remaining bits walk down within the byte and
// continue at the MSB of the next byte (DBC sawtooth numbering).
func ExtractSignal(data []byte, sig *dbc.SignalDef) (value float64, integer bool, ok bool) {
	if len(data) == 0 || sig.Length < 1 || sig.Length > 64 {
		return 0, false, false
	}

	var raw uint64
	if sig.BigEndian {
		raw, ok = extractMotorola(data, sig.StartBit, sig.Length)
	} else {
		raw, ok = extractIntel(data, sig.StartBit, sig.Length)
	}
	if !ok {
		return 0, false, false
	}

	if sig.Signed {
		value = float64(signExtend(raw, sig.Length))
	} else {
		value = float64(raw)
	}

	integer = sig.Scale == 1 && sig.Offset == 0
	return value*sig.Scale + sig.Offset, integer, true
}

// extractIntel reads a contiguous LSB-first field out of the payload viewed
// as a 64-bit little-endian word.
func extractIntel(data []byte, startBit, length int) (uint64, bool) {
	if startBit < 0 || startBit+length > len(data)*8 {
		return 0, false
	}

	var padded [8]byte
	copy(padded[:], data)
	word := binary.LittleEndian.Uint64(padded[:])

	raw := word >> uint(startBit)
	if length < 64 {
		raw &= (uint64(1) << uint(length)) - 1
	}
	return raw, true
}

// extractMotorola collects length bits MSB-first starting at the DBC start
// bit: down through the current byte, then from bit 7 of the next byte.
func extractMotorola(data []byte, startBit, length int) (uint64, bool) {
	pos := startBit
	var raw uint64

	for i := 0; i < length; i++ {
		if pos < 0 {
			return 0, false
		}
		byteIdx := pos / 8
		bitIdx := pos % 8
		if byteIdx >= len(data) {
			return 0, false
		}

		raw = raw<<1 | uint64(data[byteIdx]>>uint(bitIdx)&1)

		if bitIdx == 0 {
			pos += 15 // MSB of the next byte
		} else {
			pos--
		}
	}
	return raw, true
}

// signExtend interprets the low `bits` bits of raw as a two's-complement
// value.
func signExtend(raw uint64, bits int) int64 {
	if bits >= 64 {
		return int64(raw)
	}
	if raw&(uint64(1)<<uint(bits-1)) != 0 {
		raw |= ^((uint64(1) << uint(bits)) - 1)
	}
	return int64(raw)
}
