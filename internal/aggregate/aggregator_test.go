package aggregate

import (
	"testing"

	"github.com/marconaccini/BusmasterLog2CSVConverter/internal/dbc"
	"github.com/marconaccini/BusmasterLog2CSVConverter/internal/domain"
)

func testDatabase() *dbc.Database {
	return dbc.New(
		&dbc.MessageDef{
			ID:   0x100,
			Name: "ENGINE",
			Signals: []dbc.SignalDef{
				{Name: "RPM", StartBit: 0, Length: 16, Scale: 1},
				{Name: "Temp", StartBit: 16, Length: 8, Scale: 1},
			},
		},
		&dbc.MessageDef{
			ID:   0x200,
			Name: "BRAKE",
			Signals: []dbc.SignalDef{
				{Name: "Pressure", StartBit: 0, Length: 8, Scale: 1},
			},
		},
	)
}

func event(msg, sig string, value float64) domain.DecodedSignalEvent {
	return domain.DecodedSignalEvent{Message: msg, Signal: sig, Value: value, Integer: true}
}

func TestColumnsDeclarationOrder(t *testing.T) {
	agg := New(testDatabase(), Modes{NameMode: NameModeSignal})
	want := []string{"RPM", "Temp", "Pressure"}
	got := agg.Columns()
	if len(got) != len(want) {
		t.Fatalf("expected %d columns, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("column %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestQualifiedColumns(t *testing.T) {
	agg := New(testDatabase(), Modes{NameMode: NameModeQualified})
	want := []string{"ENGINE.RPM", "ENGINE.Temp", "BRAKE.Pressure"}
	for i, col := range agg.Columns() {
		if col != want[i] {
			t.Errorf("column %d = %q, want %q", i, col, want[i])
		}
	}
}

func TestForwardFill(t *testing.T) {
	agg := New(testDatabase(), Modes{NameMode: NameModeSignal})

	row1 := agg.Push(1.0, "ENGINE", []domain.DecodedSignalEvent{
		event("ENGINE", "RPM", 3000),
		event("ENGINE", "Temp", 85),
	})
	row2 := agg.Push(2.0, "BRAKE", []domain.DecodedSignalEvent{
		event("BRAKE", "Pressure", 12),
	})

	// Row 1: ENGINE columns set, BRAKE column still empty
	if !row1.Cells[0].Set || row1.Cells[0].Value != 3000 {
		t.Errorf("row1 RPM = %+v, want 3000", row1.Cells[0])
	}
	if row1.Cells[2].Set {
		t.Error("row1 Pressure should be unset before its first value")
	}

	// Row 2: ENGINE values carried forward, BRAKE updated
	if !row2.Cells[0].Set || row2.Cells[0].Value != 3000 {
		t.Errorf("row2 RPM should be forward-filled to 3000, got %+v", row2.Cells[0])
	}
	if !row2.Cells[1].Set || row2.Cells[1].Value != 85 {
		t.Errorf("row2 Temp should be forward-filled to 85, got %+v", row2.Cells[1])
	}
	if !row2.Cells[2].Set || row2.Cells[2].Value != 12 {
		t.Errorf("row2 Pressure = %+v, want 12", row2.Cells[2])
	}

	// Snapshots must be independent of later pushes
	agg.Push(3.0, "ENGINE", []domain.DecodedSignalEvent{event("ENGINE", "RPM", 1)})
	if row2.Cells[0].Value != 3000 {
		t.Error("earlier row mutated by a later push")
	}
}

func TestMessageCounter(t *testing.T) {
	agg := New(testDatabase(), Modes{NameMode: NameModeSignal, MessageCounter: true})

	cols := agg.Columns()
	// Counter columns follow their message's signal columns
	want := []string{"RPM", "Temp", "ENGINE_count", "Pressure", "BRAKE_count"}
	for i := range want {
		if cols[i] != want[i] {
			t.Fatalf("column %d = %q, want %q", i, cols[i], want[i])
		}
	}

	var counts []float64
	for i := 0; i < 3; i++ {
		row := agg.Push(float64(i), "ENGINE", nil)
		cell := row.Cells[2]
		if !cell.Set {
			t.Fatalf("counter unset after push %d", i)
		}
		counts = append(counts, cell.Value)
	}
	for i, c := range counts {
		if c != float64(i+1) {
			t.Errorf("counter after %d occurrences = %v, want %d", i+1, c, i+1)
		}
	}

	// BRAKE never seen: its counter stays empty
	row := agg.Push(10, "ENGINE", nil)
	if row.Cells[4].Set {
		t.Error("BRAKE counter should be unset before any BRAKE frame")
	}
}

func TestMessagePulser(t *testing.T) {
	agg := New(testDatabase(), Modes{NameMode: NameModeSignal, MessagePulser: true})

	// ENGINE at rows 0 and 2, BRAKE at row 1: the ENGINE pulse must read 1
	// only on ENGINE rows, 0 elsewhere (edge-triggered, no forward fill).
	messages := []string{"ENGINE", "BRAKE", "ENGINE", "BRAKE"}
	wantEngine := []float64{1, 0, 1, 0}

	enginePulse := 2 // RPM, Temp, ENGINE_pulse, Pressure, BRAKE_pulse
	for i, msg := range messages {
		row := agg.Push(float64(i), msg, nil)
		cell := row.Cells[enginePulse]
		if !cell.Set {
			t.Fatalf("pulse cell unset at row %d", i)
		}
		if cell.Value != wantEngine[i] {
			t.Errorf("row %d ENGINE pulse = %v, want %v", i, cell.Value, wantEngine[i])
		}
	}
}

func TestBareNameCollisionLastWriteWins(t *testing.T) {
	db := dbc.New(
		&dbc.MessageDef{
			ID: 0x1, Name: "A",
			Signals: []dbc.SignalDef{{Name: "Speed", StartBit: 0, Length: 8, Scale: 1}},
		},
		&dbc.MessageDef{
			ID: 0x2, Name: "B",
			Signals: []dbc.SignalDef{{Name: "Speed", StartBit: 0, Length: 8, Scale: 1}},
		},
	)

	agg := New(db, Modes{NameMode: NameModeSignal})
	if len(agg.Columns()) != 1 {
		t.Fatalf("expected one shared column, got %v", agg.Columns())
	}

	agg.Push(1, "A", []domain.DecodedSignalEvent{event("A", "Speed", 10)})
	row := agg.Push(2, "B", []domain.DecodedSignalEvent{event("B", "Speed", 99)})
	if row.Cells[0].Value != 99 {
		t.Errorf("shared column should hold the last writer's value, got %v", row.Cells[0].Value)
	}
}
