package dbc

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	candbc "go.einride.tech/can/pkg/dbc"
)

// SignalDef describes the bit layout and scaling of one signal within a
// message, as declared in a DBC file.
type SignalDef struct {
	Name      string
	StartBit  int // DBC start bit (MSB position for big-endian signals)
	Length    int // 1-64 bits
	BigEndian bool
	Signed    bool
	Scale     float64
	Offset    float64
	Unit      string
}

// MessageDef describes one CAN message and its ordered signals.
type MessageDef struct {
	ID       uint32
	Extended bool
	Name     string
	Length   int // declared payload size in bytes
	Signals  []SignalDef
}

// DisplayName returns the DBC message name, or a synthetic msg_<ID hex> name
// when the database declared none.
func (m *MessageDef) DisplayName() string {
	if m.Name != "" {
		return m.Name
	}
	return fmt.Sprintf("msg_%X", m.ID)
}

// Database is an immutable mapping from CAN arbitration ID to message
// definition, merged from one or more DBC files. It is loaded once per run
// and shared read-only across all decode calls.
type Database struct {
	messages map[uint32]*MessageDef
	order    []uint32 // IDs in first-seen declaration order
}

// New builds a database from in-memory definitions, in the given order.
// Duplicate IDs follow the same last-wins policy as Load.
func New(defs ...*MessageDef) *Database {
	db := &Database{messages: make(map[uint32]*MessageDef, len(defs))}
	for _, def := range defs {
		if _, exists := db.messages[def.ID]; !exists {
			db.order = append(db.order, def.ID)
		}
		db.messages[def.ID] = def
	}
	return db
}

// Lookup returns the definition for a CAN ID, if any.
func (d *Database) Lookup(id uint32) (*MessageDef, bool) {
	m, ok := d.messages[id]
	return m, ok
}

// Messages returns all message definitions in stable declaration order.
// An overriding definition from a later file keeps the position where its
// ID first appeared, so output column order does not depend on which file
// supplied the winning definition.
func (d *Database) Messages() []*MessageDef {
	result := make([]*MessageDef, 0, len(d.order))
	for _, id := range d.order {
		result = append(result, d.messages[id])
	}
	return result
}

// Len returns the number of distinct message IDs in the database.
func (d *Database) Len() int {
	return len(d.messages)
}

// Load parses one or more DBC files and merges them into a single database.
// Later files override earlier ones per message ID (last definition wins).
func Load(paths []string) (*Database, error) {
	db := &Database{messages: make(map[uint32]*MessageDef)}

	for _, path := range paths {
		if err := db.loadFile(path); err != nil {
			return nil, err
		}
	}

	return db, nil
}

func (db *Database) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read DBC file %s: %w", path, err)
	}

	parser := candbc.NewParser(filepath.Base(path), data)
	if err := parser.Parse(); err != nil {
		return fmt.Errorf("failed to parse DBC file %s: %w", path, err)
	}

	added := 0
	overridden := 0

	for _, def := range parser.File().Defs {
		msg, ok := def.(*candbc.MessageDef)
		if !ok {
			continue
		}
		// Vector's pseudo-message collecting signals that belong to no
		// real frame. Never appears on the bus.
		if string(msg.Name) == "VECTOR__INDEPENDENT_SIG_MSG" {
			continue
		}

		converted := convertMessage(msg)
		if _, exists := db.messages[converted.ID]; exists {
			// Last-loaded definition wins; keep first-seen column position.
			overridden++
			log.Warn().
				Str("dbc_file", path).
				Uint32("can_id", converted.ID).
				Str("message", converted.DisplayName()).
				Msg("Message ID redefined, later definition wins")
		} else {
			db.order = append(db.order, converted.ID)
			added++
		}
		db.messages[converted.ID] = converted
	}

	log.Info().
		Str("dbc_file", path).
		Int("messages", added).
		Int("overridden", overridden).
		Msg("DBC file loaded")

	return nil
}

// convertMessage maps the can-go parser's message definition onto the local
// model. The MSB of the DBC message ID flags an extended (29-bit) frame and
// is stripped so IDs compare directly against parsed log IDs.
func convertMessage(msg *candbc.MessageDef) *MessageDef {
	id := uint32(msg.MessageID)
	extended := false
	if uint64(msg.MessageID)&0x80000000 != 0 {
		id = uint32(uint64(msg.MessageID) & 0x1FFFFFFF)
		extended = true
	}

	out := &MessageDef{
		ID:       id,
		Extended: extended,
		Name:     string(msg.Name),
		Length:   int(msg.Size),
		Signals:  make([]SignalDef, 0, len(msg.Signals)),
	}

	for _, s := range msg.Signals {
		out.Signals = append(out.Signals, SignalDef{
			Name:      string(s.Name),
			StartBit:  int(s.StartBit),
			Length:    int(s.Size),
			BigEndian: s.IsBigEndian,
			Signed:    s.IsSigned,
			Scale:     s.Factor,
			Offset:    s.Offset,
			Unit:      s.Unit,
		})
	}

	return out
}
