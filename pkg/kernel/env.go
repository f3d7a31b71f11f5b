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
	"exo.dev/exo/pkg/abi/exo"
	"exo.dev/exo/pkg/hostarch"
	"exo.dev/exo/pkg/pagetables"
)

// IPCState is the receive side of the rendezvous IPC of one environment.
// It is only mutated by system calls.
type IPCState struct {
	// Recving is true while the environment is blocked in receive.
	Recving bool

	// DstVA is where the receiver wants a page mapped; at or above
	// exo.UTOP means no page is wanted.
	DstVA hostarch.Addr

	// Value is the value of the last message.
	Value uint64

	// From is the sender of the last message.
	From exo.EnvID

	// Perm is the permission of the page transferred by the last message,
	// or 0 if none was.
	Perm exo.PTEFlags
}

// EnvStats counts per-environment events.
type EnvStats struct {
	Syscalls uint64
	Faults   uint64
	Runs     uint64
}

// Env is an environment: an address space, a saved frame and the
// goroutine that runs it. Env fields are protected by Kernel.mu.
type Env struct {
	id     exo.EnvID
	parent exo.EnvID
	status exo.Status

	// pt is the address space.
	pt *pagetables.PageTables

	// tf is the saved user frame. While the environment runs it holds the
	// registers of the last system call.
	tf exo.TrapFrame

	// upcall is the text address of the page fault upcall, or 0.
	upcall hostarch.Addr

	ipc IPCState

	// queued is true while the environment is on the run queue.
	queued bool

	stats EnvStats

	// task runs the environment.
	task *Task
}

// ID returns the environment's id.
func (e *Env) ID() exo.EnvID {
	return e.id
}

// ParentID returns the id of the environment that created e, or 0.
func (e *Env) ParentID() exo.EnvID {
	return e.parent
}

// Status returns the scheduling state of e.
func (e *Env) Status() exo.Status {
	return e.status
}

// PageTables returns the address space of e.
func (e *Env) PageTables() *pagetables.PageTables {
	return e.pt
}

// TrapFrame returns the saved frame of e.
func (e *Env) TrapFrame() *exo.TrapFrame {
	return &e.tf
}

// PgfaultUpcall returns the text address of the fault upcall.
func (e *Env) PgfaultUpcall() hostarch.Addr {
	return e.upcall
}

// SetPgfaultUpcall sets the text address of the fault upcall.
func (e *Env) SetPgfaultUpcall(entry hostarch.Addr) {
	e.upcall = entry
}

// IPC returns the IPC state of e.
func (e *Env) IPC() *IPCState {
	return &e.ipc
}

// Stats returns the counters of e.
func (e *Env) Stats() EnvStats {
	return e.stats
}

func (e *Env) alive() bool {
	return e.status != exo.StatusFree && e.status != exo.StatusDying
}
