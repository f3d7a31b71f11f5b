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

package kernel

import (
	"fmt"

	"exo.dev/exo/pkg/abi/exo"
	"exo.dev/exo/pkg/errors/exoerr"
	"exo.dev/exo/pkg/pagetables"
	"exo.dev/exo/pkg/pgalloc"
)

type envSlot struct {
	// env is the current occupant, or nil if the slot was never used.
	env *Env

	// lastID is the id of the current or most recent occupant.
	lastID exo.EnvID
}

// EnvTable is the fixed-size table of environments. Ids carry a generation
// so that an id held after its environment was destroyed never names the
// next occupant of the slot.
//
// EnvTable is protected by Kernel.mu.
type EnvTable struct {
	alloc pgalloc.Allocator
	slots []envSlot

	// free is a stack of free slots; the next allocation takes the top.
	free []int

	// live counts environments that are not free.
	live int
}

// NewEnvTable returns a table of nenv slots whose environments get their
// page tables from alloc. nenv must be a power of two no larger than
// exo.MaxEnv.
func NewEnvTable(nenv int, alloc pgalloc.Allocator) (*EnvTable, error) {
	if nenv <= 0 || nenv > exo.MaxEnv || nenv&(nenv-1) != 0 {
		return nil, fmt.Errorf("environment table size %d is not a power of two in [1, %d]", nenv, exo.MaxEnv)
	}
	et := &EnvTable{
		alloc: alloc,
		slots: make([]envSlot, nenv),
		free:  make([]int, nenv),
	}
	// Slot 0 is handed out first.
	for i := range et.free {
		et.free[i] = nenv - 1 - i
	}
	return et, nil
}

// Size returns the number of slots.
func (et *EnvTable) Size() int {
	return len(et.slots)
}

// Live returns the number of environments that are not free.
func (et *EnvTable) Live() int {
	return et.live
}

// Alloc returns a new environment in state NOT_RUNNABLE whose parent is
// parent, or exoerr.NoFreeSlot if the table is full.
func (et *EnvTable) Alloc(parent exo.EnvID) (*Env, error) {
	if len(et.free) == 0 {
		return nil, exoerr.NoFreeSlot
	}
	slot := et.free[len(et.free)-1]
	et.free = et.free[:len(et.free)-1]

	s := &et.slots[slot]
	e := &Env{
		id:     exo.NextID(s.lastID, slot, len(et.slots)),
		parent: parent,
		status: exo.StatusNotRunnable,
		pt:     pagetables.New(et.alloc),
		tf: exo.TrapFrame{
			CPL:    3,
			EFlags: exo.FLInterrupt,
		},
	}
	s.env = e
	s.lastID = e.id
	et.live++
	return e, nil
}

// Free releases e's address space and returns its slot to the table. The
// id is retired: lookups of it fail from now on.
func (et *EnvTable) Free(e *Env) {
	slot := e.id.Slot(len(et.slots))
	if et.slots[slot].env != e || e.status == exo.StatusFree {
		panic(fmt.Sprintf("free of environment %v not in the table", e.id))
	}
	e.pt.Release()
	e.status = exo.StatusFree
	e.queued = false
	et.free = append(et.free, slot)
	et.live--
}

// Get returns the live environment with id, or nil.
func (et *EnvTable) Get(id exo.EnvID) *Env {
	if id <= 0 {
		return nil
	}
	e := et.slots[id.Slot(len(et.slots))].env
	if e == nil || e.id != id || !e.alive() {
		return nil
	}
	return e
}

// Lookup resolves id as a system call argument on behalf of caller. Id 0
// names caller. If checkPerm is true the target must be caller or a child
// of caller. Unknown, stale and unauthorized ids fail with
// exoerr.BadTarget.
func (et *EnvTable) Lookup(id exo.EnvID, caller *Env, checkPerm bool) (*Env, error) {
	if id == 0 {
		return caller, nil
	}
	e := et.Get(id)
	if e == nil {
		return nil, exoerr.BadTarget
	}
	if checkPerm && e != caller && e.parent != caller.id {
		return nil, exoerr.BadTarget
	}
	return e, nil
}

// ForEach calls fn for every live environment, in slot order.
func (et *EnvTable) ForEach(fn func(e *Env)) {
	for i := range et.slots {
		if e := et.slots[i].env; e != nil && e.alive() {
			fn(e)
		}
	}
}
