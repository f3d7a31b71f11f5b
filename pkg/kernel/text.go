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
	"sync"

	"exo.dev/exo/pkg/abi/exo"
	"exo.dev/exo/pkg/hostarch"
)

// Program is user code started at a text address. The environment exits
// when it returns.
type Program func(t *Task)

// Upcall is a user page fault handler. It runs on the faulting task with
// the frame the kernel pushed on the exception stack; when it returns the
// faulting access is retried.
type Upcall func(t *Task, utf exo.UTrapframe)

// textAlign is the distance between consecutive text addresses.
const textAlign = 16

// Text maps text addresses to user code. Text addresses are plain integers,
// so they can be stored in frames and passed through system calls like any
// other register value. Text is shared by every environment of a kernel.
type Text struct {
	mu       sync.Mutex
	next     hostarch.Addr
	programs map[hostarch.Addr]Program
	upcalls  map[hostarch.Addr]Upcall
	names    map[string]hostarch.Addr
}

func newText() *Text {
	return &Text{
		next:     exo.UTEXT,
		programs: make(map[hostarch.Addr]Program),
		upcalls:  make(map[hostarch.Addr]Upcall),
		names:    make(map[string]hostarch.Addr),
	}
}

func (x *Text) allocLocked(name string) (hostarch.Addr, bool) {
	if name != "" {
		if pc, ok := x.names[name]; ok {
			return pc, true
		}
	}
	pc := x.next
	x.next += textAlign
	if name != "" {
		x.names[name] = pc
	}
	return pc, false
}

// RegisterProgram returns the text address of p. A non-empty name makes
// registration idempotent: later registrations under the same name return
// the first address. An empty name always gets a new address.
func (x *Text) RegisterProgram(name string, p Program) hostarch.Addr {
	x.mu.Lock()
	defer x.mu.Unlock()
	pc, ok := x.allocLocked(name)
	if !ok {
		x.programs[pc] = p
	}
	return pc
}

// RegisterUpcall returns the text address of u, with the same naming rules
// as RegisterProgram.
func (x *Text) RegisterUpcall(name string, u Upcall) hostarch.Addr {
	x.mu.Lock()
	defer x.mu.Unlock()
	pc, ok := x.allocLocked(name)
	if !ok {
		x.upcalls[pc] = u
	}
	return pc
}

// Program returns the program at pc, or nil.
func (x *Text) Program(pc hostarch.Addr) Program {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.programs[pc]
}

// Upcall returns the upcall at pc, or nil.
func (x *Text) Upcall(pc hostarch.Addr) Upcall {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.upcalls[pc]
}

// Len returns the number of registered entry points.
func (x *Text) Len() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.programs) + len(x.upcalls)
}
