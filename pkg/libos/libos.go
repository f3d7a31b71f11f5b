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

// Package libos is the library operating system linked into every user
// program. It wraps the exo system calls and builds the abstractions the
// kernel leaves to user space on top of them: console output, copy-on-write
// fork, blocking IPC and system call batching.
package libos

import (
	"exo.dev/exo/pkg/abi/exo"
	"exo.dev/exo/pkg/hostarch"
	"exo.dev/exo/pkg/kernel"
)

// urw is the permission of private, writable user pages.
const urw = exo.PTEPresent | exo.PTEUser | exo.PTEWritable

// State is the library state of one environment. It is stored in
// kernel.Task.Local, so exofork gives each child its own copy. Only exported
// fields survive the copy.
type State struct {
	// ThisEnv caches the environment's id.
	ThisEnv exo.EnvID

	// PgfaultUpcall is the installed fault upcall, or 0.
	PgfaultUpcall hostarch.Addr

	// XStack is true once the exception stack page is mapped.
	XStack bool

	// IPCSendRetries bounds the retries of IPCSend after its first attempt.
	// Zero means retry until the receiver is ready.
	IPCSendRetries uint64
}

// state returns t's library state, initializing it on first use.
func state(t *kernel.Task) *State {
	if s, ok := t.Local.(*State); ok {
		return s
	}
	s := &State{ThisEnv: Getenvid(t)}
	t.Local = s
	return s
}

// ThisEnv returns the id of the calling environment.
func ThisEnv(t *kernel.Task) exo.EnvID {
	return state(t).ThisEnv
}

// SetIPCSendRetries sets the number of times IPCSend retries before giving
// up. Children forked afterwards inherit the setting.
func SetIPCSendRetries(t *kernel.Task, n uint64) {
	state(t).IPCSendRetries = n
}

// Exit destroys the calling environment. It does not return.
func Exit(t *kernel.Task) {
	EnvDestroy(t, 0)
	panic("unreachable")
}
