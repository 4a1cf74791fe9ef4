// Package api exposes the emulator over HTTP: each WebSocket connection owns
// one machine on a service worker, drives it with load/run/pause/step/reset
// messages, and receives state snapshots and events as they happen.
package api

import (
	"github.com/lookbusy1344/icmc-emulator/isa"
	"github.com/lookbusy1344/icmc-emulator/vm"
)

// ClientMessage is a command sent by a connected client.
type ClientMessage struct {
	Type   string `json:"type"`             // load, run, pause, step, reset, snapshot
	Source string `json:"source,omitempty"` // assembly source for load
}

// ServerMessage is a frame pushed to a connected client.
type ServerMessage struct {
	Type  string        `json:"type"`            // state, event, error
	Event string        `json:"event,omitempty"` // loaded, halted, paused, stepped, reset, error
	Error string        `json:"error,omitempty"`
	State *MachineState `json:"state,omitempty"`
}

// MachineState is the JSON form of a machine snapshot.
type MachineState struct {
	Registers [vm.NumRegisters]uint16 `json:"registers"`
	PC        int                     `json:"pc"`
	SP        int                     `json:"sp"`
	IR        uint16                  `json:"ir"`
	Flags     FlagState               `json:"flags"`
	State     string                  `json:"state"`
}

// FlagState is the JSON form of the flag register's named bits.
type FlagState struct {
	Greater        bool `json:"greater"`
	Lesser         bool `json:"lesser"`
	Equal          bool `json:"equal"`
	Zero           bool `json:"zero"`
	Carry          bool `json:"carry"`
	Overflow       bool `json:"overflow"`
	DivByZero      bool `json:"divByZero"`
	StackOverflow  bool `json:"stackOverflow"`
	StackUnderflow bool `json:"stackUnderflow"`
	Negative       bool `json:"negative"`
}

// NewMachineState converts a snapshot for serialization.
func NewMachineState(s vm.Snapshot) *MachineState {
	return &MachineState{
		Registers: s.Registers,
		PC:        s.PC,
		SP:        s.SP,
		IR:        s.IR,
		State:     s.State.String(),
		Flags: FlagState{
			Greater:        s.Flags[isa.FlagGreater],
			Lesser:         s.Flags[isa.FlagLesser],
			Equal:          s.Flags[isa.FlagEqual],
			Zero:           s.Flags[isa.FlagZero],
			Carry:          s.Flags[isa.FlagCarry],
			Overflow:       s.Flags[isa.FlagOverflow],
			DivByZero:      s.Flags[isa.FlagDivByZero],
			StackOverflow:  s.Flags[isa.FlagStackOverflow],
			StackUnderflow: s.Flags[isa.FlagStackUnderflow],
			Negative:       s.Flags[isa.FlagNegative],
		},
	}
}
