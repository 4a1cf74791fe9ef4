// Package service wraps a vm.Machine in a worker goroutine, giving hosts the
// run/pause/step/load/reset command surface over channels. The worker owns
// the machine exclusively; observers see it only through snapshots and
// events.
package service

import (
	"github.com/lookbusy1344/icmc-emulator/loader"
	"github.com/lookbusy1344/icmc-emulator/vm"
)

// CommandKind selects a worker command.
type CommandKind int

const (
	CmdLoad CommandKind = iota
	CmdRun
	CmdPause
	CmdStep
	CmdReset
)

// Command is one message on the worker's command channel. Words carries the
// program for CmdLoad.
type Command struct {
	Kind  CommandKind
	Words []uint16
}

// EventKind classifies worker events.
type EventKind int

const (
	// EventLoaded confirms a program load.
	EventLoaded EventKind = iota
	// EventHalted reports that the program executed HALT.
	EventHalted
	// EventPaused reports a pause: a host command or an executed BREAKP.
	EventPaused
	// EventStepped reports completion of a single-step command.
	EventStepped
	// EventReset confirms a reset.
	EventReset
	// EventError reports a processor error; the run stops and the machine
	// state stays observable at the point of failure.
	EventError
)

// Event is one message on the worker's event channel.
type Event struct {
	Kind     EventKind
	Err      error
	Snapshot vm.Snapshot
}

// Worker drives a machine on its own goroutine. Hosts interact only through
// the command channel, the event channel and snapshot requests; the machine
// itself never crosses the goroutine boundary.
type Worker struct {
	machine *vm.Machine
	cmds    chan Command
	events  chan Event
	snaps   chan chan vm.Snapshot
	done    chan struct{}
}

// NewWorker creates a worker owning the given machine. The machine must not
// be touched by the caller after this point.
func NewWorker(m *vm.Machine) *Worker {
	return &Worker{
		machine: m,
		cmds:    make(chan Command),
		events:  make(chan Event, 64),
		snaps:   make(chan chan vm.Snapshot),
		done:    make(chan struct{}),
	}
}

// Start launches the worker goroutine.
func (w *Worker) Start() {
	go w.loop()
}

// Stop terminates the worker goroutine. The machine is dropped between
// steps; a step in progress completes first.
func (w *Worker) Stop() {
	close(w.done)
}

// Events returns the channel the worker reports on. Events are dropped if
// the host stops draining; the worker never blocks on an observer.
func (w *Worker) Events() <-chan Event {
	return w.events
}

// Send submits a command to the worker.
func (w *Worker) Send(cmd Command) {
	select {
	case w.cmds <- cmd:
	case <-w.done:
	}
}

// Load resets the machine and loads a program.
func (w *Worker) Load(words []uint16) { w.Send(Command{Kind: CmdLoad, Words: words}) }

// Run starts continuous stepping.
func (w *Worker) Run() { w.Send(Command{Kind: CmdRun}) }

// Pause suspends stepping.
func (w *Worker) Pause() { w.Send(Command{Kind: CmdPause}) }

// Step executes a single instruction and pauses.
func (w *Worker) Step() { w.Send(Command{Kind: CmdStep}) }

// Reset returns the machine to its initial state.
func (w *Worker) Reset() { w.Send(Command{Kind: CmdReset}) }

// Snapshot returns a copy of the machine's register state, synchronized with
// the worker between steps.
func (w *Worker) Snapshot() vm.Snapshot {
	reply := make(chan vm.Snapshot, 1)
	select {
	case w.snaps <- reply:
		return <-reply
	case <-w.done:
		return vm.Snapshot{}
	}
}

// loop is the worker goroutine: a Stopped/Running state machine around the
// machine's Step, in which one step is the atomic unit.
func (w *Worker) loop() {
	running := false
	for {
		if running {
			select {
			case cmd := <-w.cmds:
				running = w.handle(cmd, running)
			case reply := <-w.snaps:
				reply <- w.machine.Snapshot()
			case <-w.done:
				return
			default:
				running = w.stepOnce()
			}
		} else {
			select {
			case cmd := <-w.cmds:
				running = w.handle(cmd, running)
			case reply := <-w.snaps:
				reply <- w.machine.Snapshot()
			case <-w.done:
				return
			}
		}
	}
}

// stepOnce advances the machine one instruction and reports terminal
// transitions. It returns whether continuous stepping should continue.
func (w *Worker) stepOnce() bool {
	if err := w.machine.Step(); err != nil {
		w.emit(Event{Kind: EventError, Err: err, Snapshot: w.machine.Snapshot()})
		return false
	}
	switch w.machine.State() {
	case vm.StateHalted:
		w.emit(Event{Kind: EventHalted, Snapshot: w.machine.Snapshot()})
		return false
	case vm.StatePaused:
		w.emit(Event{Kind: EventPaused, Snapshot: w.machine.Snapshot()})
		return false
	}
	return true
}

// handle applies one command and returns the new running flag.
func (w *Worker) handle(cmd Command, running bool) bool {
	switch cmd.Kind {
	case CmdLoad:
		w.machine.Reset()
		if err := loader.LoadWords(w.machine, cmd.Words); err != nil {
			w.emit(Event{Kind: EventError, Err: err, Snapshot: w.machine.Snapshot()})
			return false
		}
		w.emit(Event{Kind: EventLoaded, Snapshot: w.machine.Snapshot()})
		return false

	case CmdRun:
		w.machine.Resume()
		return w.machine.State() == vm.StateRunning

	case CmdPause:
		w.machine.Pause()
		w.emit(Event{Kind: EventPaused, Snapshot: w.machine.Snapshot()})
		return false

	case CmdStep:
		w.machine.Resume()
		if !w.stepOnce() {
			return false
		}
		w.machine.Pause()
		w.emit(Event{Kind: EventStepped, Snapshot: w.machine.Snapshot()})
		return false

	case CmdReset:
		w.machine.Reset()
		w.emit(Event{Kind: EventReset, Snapshot: w.machine.Snapshot()})
		return false
	}
	return running
}

// emit delivers an event without ever blocking the worker.
func (w *Worker) emit(ev Event) {
	select {
	case w.events <- ev:
	default:
	}
}
