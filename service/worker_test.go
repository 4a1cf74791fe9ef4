package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lookbusy1344/icmc-emulator/encoder"
	"github.com/lookbusy1344/icmc-emulator/vm"
)

// waitEvent drains the worker's event channel until an event of the wanted
// kind arrives or the timeout expires.
func waitEvent(t *testing.T, w *Worker, kind EventKind) Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-w.Events():
			if ev.Kind == kind {
				return ev
			}
			if ev.Kind == EventError {
				t.Fatalf("unexpected error event: %v", ev.Err)
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event %d", kind)
		}
	}
}

func assembleSource(t *testing.T, src string) []uint16 {
	t.Helper()
	words, _, err := encoder.Assemble(src, "test.asm")
	require.NoError(t, err)
	return words
}

func TestWorkerRunToHalt(t *testing.T) {
	w := NewWorker(vm.New())
	w.Start()
	defer w.Stop()

	words := assembleSource(t, `
        LOADN R1, #3
        LOADN R2, #4
        ADD R0, R1, R2
        HALT
`)
	w.Load(words)
	waitEvent(t, w, EventLoaded)

	w.Run()
	ev := waitEvent(t, w, EventHalted)

	assert.Equal(t, uint16(7), ev.Snapshot.Registers[0])
	assert.Equal(t, vm.StateHalted, ev.Snapshot.State)
}

func TestWorkerSingleStep(t *testing.T) {
	w := NewWorker(vm.New())
	w.Start()
	defer w.Stop()

	w.Load(assembleSource(t, "LOADN R0, #5\nHALT"))
	waitEvent(t, w, EventLoaded)

	w.Step()
	ev := waitEvent(t, w, EventStepped)

	assert.Equal(t, uint16(5), ev.Snapshot.Registers[0])
	assert.Equal(t, 2, ev.Snapshot.PC)

	// The machine stays paused between steps.
	snap := w.Snapshot()
	assert.Equal(t, vm.StatePaused, snap.State)
}

func TestWorkerBreakpointPauses(t *testing.T) {
	w := NewWorker(vm.New())
	w.Start()
	defer w.Stop()

	w.Load(assembleSource(t, "LOADN R0, #1\nBREAKP\nLOADN R0, #2\nHALT"))
	waitEvent(t, w, EventLoaded)

	w.Run()
	ev := waitEvent(t, w, EventPaused)
	assert.Equal(t, uint16(1), ev.Snapshot.Registers[0])

	// Resuming finishes the program.
	w.Run()
	ev = waitEvent(t, w, EventHalted)
	assert.Equal(t, uint16(2), ev.Snapshot.Registers[0])
}

func TestWorkerErrorEvent(t *testing.T) {
	w := NewWorker(vm.New())
	w.Start()
	defer w.Stop()

	// 0xBC00 matches no instruction mask.
	w.Load([]uint16{0xBC00})
	waitEvent(t, w, EventLoaded)

	w.Run()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-w.Events():
			if ev.Kind == EventError {
				require.Error(t, ev.Err)
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for error event")
		}
	}
}

func TestWorkerReset(t *testing.T) {
	w := NewWorker(vm.New())
	w.Start()
	defer w.Stop()

	w.Load(assembleSource(t, "LOADN R0, #9\nHALT"))
	waitEvent(t, w, EventLoaded)
	w.Run()
	waitEvent(t, w, EventHalted)

	w.Reset()
	ev := waitEvent(t, w, EventReset)

	assert.Equal(t, uint16(0), ev.Snapshot.Registers[0])
	assert.Equal(t, 0, ev.Snapshot.PC)
	assert.Equal(t, vm.StateRunning, ev.Snapshot.State)
}

func TestWorkerSnapshotWhileIdle(t *testing.T) {
	w := NewWorker(vm.New())
	w.Start()
	defer w.Stop()

	snap := w.Snapshot()
	assert.Equal(t, 0, snap.PC)
	assert.Equal(t, vm.StateRunning, snap.State)
}
