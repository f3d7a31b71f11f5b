// Copyright 2026 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package exo

import "fmt"

// EnvID identifies an environment. The low bits hold the slot in the
// environment table, the bits from GenShift up hold a generation that
// changes each time the slot is reused. Zero, as a system call argument,
// names the calling environment.
type EnvID int32

const (
	// LogNEnv is the binary log of MaxEnv.
	LogNEnv = 10

	// MaxEnv is the largest supported environment table.
	MaxEnv = 1 << LogNEnv

	// GenShift is the position of the lowest generation bit.
	GenShift = 12
)

// Slot returns the table slot of id in a table of nenv entries. nenv must be
// a power of two.
func (id EnvID) Slot(nenv int) int {
	return int(id) & (nenv - 1)
}

// NextID returns the id to give the next occupant of the slot last held by
// old, in a table of nenv entries.
func NextID(old EnvID, slot, nenv int) EnvID {
	gen := (old + 1<<GenShift) &^ EnvID(nenv-1)
	if gen <= 0 {
		gen = 1 << GenShift
	}
	return gen | EnvID(slot)
}

// String implements fmt.Stringer.String.
func (id EnvID) String() string {
	return fmt.Sprintf("%08x", int32(id))
}

// Status is the scheduling state of an environment.
type Status uint32

// Environment states.
const (
	StatusFree Status = iota
	StatusDying
	StatusRunnable
	StatusRunning
	StatusNotRunnable
)

// String implements fmt.Stringer.String.
func (s Status) String() string {
	switch s {
	case StatusFree:
		return "FREE"
	case StatusDying:
		return "DYING"
	case StatusRunnable:
		return "RUNNABLE"
	case StatusRunning:
		return "RUNNING"
	case StatusNotRunnable:
		return "NOT_RUNNABLE"
	default:
		return fmt.Sprintf("Status(%d)", uint32(s))
	}
}
