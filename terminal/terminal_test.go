package terminal

import (
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/lookbusy1344/icmc-emulator/isa"
)

func newTestTerminal(t *testing.T) (*Terminal, tcell.SimulationScreen) {
	t.Helper()
	sim := tcell.NewSimulationScreen("UTF-8")
	term, err := NewWithScreen(sim)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(term.Close)
	return term, sim
}

func TestWriteChar(t *testing.T) {
	term, sim := newTestTerminal(t)

	// Position 85 on a 40-wide screen is column 5, row 2.
	term.WriteChar(uint16(isa.ColorRed)+'A', 85)

	ch, _, style, _ := sim.GetContent(5, 2)
	if ch != 'A' {
		t.Errorf("cell rune = %q", ch)
	}
	fg, _, _ := style.Decompose()
	if fg != tcell.ColorRed {
		t.Errorf("cell color = %v, want red", fg)
	}
}

func TestWriteCharOutOfRange(t *testing.T) {
	term, _ := newTestTerminal(t)
	// Positions past the 40x30 screen are discarded, not rendered or crashed on.
	term.WriteChar('X', Columns*Rows)
	term.WriteChar('X', 0xFFFF)
}

func TestReadCharNoKey(t *testing.T) {
	term, _ := newTestTerminal(t)

	if got := term.ReadChar(); got != NoKey {
		t.Errorf("ReadChar with no key = %d, want %d", got, NoKey)
	}

	term.SetNoKeyValue(0)
	if got := term.ReadChar(); got != 0 {
		t.Errorf("ReadChar after SetNoKeyValue = %d", got)
	}
}

func TestReadCharBufferedKey(t *testing.T) {
	term, sim := newTestTerminal(t)

	sim.InjectKey(tcell.KeyRune, 'k', tcell.ModNone)

	deadline := time.Now().Add(2 * time.Second)
	for {
		if got := term.ReadChar(); got == 'k' {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("injected key never surfaced")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestReadPortKeyboard(t *testing.T) {
	term, _ := newTestTerminal(t)

	if got := term.ReadPort(uint16(isa.RegionRx.Low)); got != NoKey {
		t.Errorf("RX port with no key = %d", got)
	}
	if got := term.ReadPort(0); got != 0 {
		t.Errorf("unbacked port = %d", got)
	}
}

func TestColorPaletteComplete(t *testing.T) {
	// Every 4-bit color index must map to a distinct tcell color.
	seen := make(map[tcell.Color]bool)
	for _, c := range palette {
		if seen[c] {
			t.Fatalf("palette color %v repeated", c)
		}
		seen[c] = true
	}
}
