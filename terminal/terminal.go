// Package terminal implements the processor's peripheral interface on a
// tcell screen: the 40x30 character video written by OUTCHAR with its
// sixteen-color palette, and keyboard input for INCHAR.
package terminal

import (
	"fmt"

	"github.com/gdamore/tcell/v2"

	"github.com/lookbusy1344/icmc-emulator/isa"
)

// Screen dimensions in character cells.
const (
	Columns = 40
	Rows    = 30
)

// NoKey is the value ReadChar returns when no key is pending.
const NoKey = 255

// palette maps the ICMC color indices to tcell colors, in table order:
// White, Brown, Green, Olive, Navy, Purple, Teal, Silver, Gray, Red, Lime,
// Yellow, Blue, Fuchsia, Aqua, Black.
var palette = [16]tcell.Color{
	tcell.ColorWhite,
	tcell.ColorBrown,
	tcell.ColorGreen,
	tcell.ColorOlive,
	tcell.ColorNavy,
	tcell.ColorPurple,
	tcell.ColorTeal,
	tcell.ColorSilver,
	tcell.ColorGray,
	tcell.ColorRed,
	tcell.ColorLime,
	tcell.ColorYellow,
	tcell.ColorBlue,
	tcell.ColorFuchsia,
	tcell.ColorAqua,
	tcell.ColorBlack,
}

// Terminal renders the video memory on a tcell screen and buffers key
// presses for the processor. It implements vm.Device.
type Terminal struct {
	screen tcell.Screen
	keys   chan uint16
	noKey  uint16
	quit   chan struct{}
}

// New creates a terminal on a fresh tcell screen.
func New() (*Terminal, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("failed to create screen: %w", err)
	}
	return NewWithScreen(screen)
}

// NewWithScreen creates a terminal on the given screen. Tests pass a tcell
// simulation screen here.
func NewWithScreen(screen tcell.Screen) (*Terminal, error) {
	if err := screen.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize screen: %w", err)
	}
	screen.Clear()
	screen.Show()

	t := &Terminal{
		screen: screen,
		keys:   make(chan uint16, 64),
		noKey:  NoKey,
		quit:   make(chan struct{}),
	}
	go t.pollEvents()
	return t, nil
}

// SetNoKeyValue changes the value returned when no key is pending.
func (t *Terminal) SetNoKeyValue(v uint16) {
	t.noKey = v
}

// Close releases the screen.
func (t *Terminal) Close() {
	close(t.quit)
	t.screen.Fini()
}

// pollEvents feeds key presses into the buffer until Close.
func (t *Terminal) pollEvents() {
	for {
		select {
		case <-t.quit:
			return
		default:
		}
		ev := t.screen.PollEvent()
		switch ev := ev.(type) {
		case *tcell.EventKey:
			var code uint16
			if ev.Key() == tcell.KeyRune {
				r := ev.Rune()
				if r > 0xFF {
					continue
				}
				code = uint16(r)
			} else {
				code = uint16(ev.Key() & 0xFF)
			}
			select {
			case t.keys <- code:
			default:
			}
		case *tcell.EventResize:
			t.screen.Sync()
		case nil:
			return
		}
	}
}

// ReadChar returns the oldest buffered key press, or the no-key value when
// the buffer is empty. It never blocks the processor.
func (t *Terminal) ReadChar() uint16 {
	select {
	case code := <-t.keys:
		return code
	default:
		return t.noKey
	}
}

// WriteChar draws one character cell. The low byte of code is the character,
// the high byte its color index; position is a row-major cell index on the
// 40x30 screen. Out-of-range positions are discarded.
func (t *Terminal) WriteChar(code, position uint16) {
	if int(position) >= Columns*Rows {
		return
	}
	col := int(position) % Columns
	row := int(position) / Columns

	style := tcell.StyleDefault.Foreground(palette[isa.ColorIndex(code)])
	t.screen.SetContent(col, row, rune(isa.CharCode(code)), nil, style)
	t.screen.Show()
}

// ReadPort reads a peripheral port. Only the keyboard RX port is backed.
func (t *Terminal) ReadPort(port uint16) uint16 {
	if int(port) == isa.RegionRx.Low {
		return t.ReadChar()
	}
	return 0
}

// WritePort writes a peripheral port. The TX port echoes the character at
// the cursor-free bottom row; other ports are discarded.
func (t *Terminal) WritePort(port, value uint16) {
	if int(port) == isa.RegionTx.Low {
		t.WriteChar(value, uint16(Columns*(Rows-1)))
	}
}

// EmitSound beeps; the terminal has no tone generator.
func (t *Terminal) EmitSound(value uint16) {
	_ = t.screen.Beep()
}
