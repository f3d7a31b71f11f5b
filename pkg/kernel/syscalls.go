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
	"math"
	"time"

	"exo.dev/exo/pkg/abi/exo"
	"exo.dev/exo/pkg/errors/exoerr"
	"exo.dev/exo/pkg/hostarch"
	"exo.dev/exo/pkg/log"
)

// SyscallArgument is an argument supplied to a syscall implementation. The
// accessors are named after the type they convert to.
type SyscallArgument struct {
	// Value is the raw register value.
	Value uint64
}

// SyscallArguments represents the set of arguments passed to a syscall.
type SyscallArguments [5]SyscallArgument

// Pointer returns the hostarch.Addr representation of a pointer argument.
func (a SyscallArgument) Pointer() hostarch.Addr {
	return hostarch.Addr(a.Value)
}

// EnvID returns the exo.EnvID representation of an environment argument.
// ok is false if the value does not fit in an exo.EnvID.
func (a SyscallArgument) EnvID() (id exo.EnvID, ok bool) {
	v := int64(a.Value)
	if v < math.MinInt32 || v > math.MaxInt32 {
		return 0, false
	}
	return exo.EnvID(v), true
}

// Perm returns the exo.PTEFlags representation of a permission argument.
// ok is false if the value does not fit in exo.PTEFlags.
func (a SyscallArgument) Perm() (perm exo.PTEFlags, ok bool) {
	if a.Value > math.MaxUint32 {
		return 0, false
	}
	return exo.PTEFlags(a.Value), true
}

// Status returns the exo.Status representation of a status argument. ok is
// false if the value does not fit in exo.Status.
func (a SyscallArgument) Status() (status exo.Status, ok bool) {
	if a.Value > math.MaxUint32 {
		return 0, false
	}
	return exo.Status(a.Value), true
}

// Int returns the int32 representation of a 32-bit signed integer argument.
func (a SyscallArgument) Int() int32 {
	return int32(a.Value)
}

// Uint64 returns the uint64 representation of a 64-bit integer argument.
func (a SyscallArgument) Uint64() uint64 {
	return a.Value
}

// SyscallFn is a syscall implementation. It is called with the kernel mutex
// held.
type SyscallFn func(t *Task, args SyscallArguments) (uintptr, *SyscallControl, error)

// Syscall includes the syscall implementation and compatibility information.
type Syscall struct {
	// Name is the syscall name.
	Name string

	// Fn is the implementation of the syscall.
	Fn SyscallFn

	// Batchable is true if the syscall may appear in a batch.
	Batchable bool
}

// SyscallTable is the closed dispatch table of the exo ABI, indexed by
// system call number.
type SyscallTable struct {
	table [exo.NumSyscalls]Syscall
}

// NewSyscallTable builds a table from m. It panics unless m has an entry
// with a function for every system call number and nothing else.
func NewSyscallTable(m map[exo.Sysno]Syscall) *SyscallTable {
	s := &SyscallTable{}
	for sysno, sc := range m {
		if sysno >= exo.NumSyscalls {
			panic(fmt.Sprintf("syscall table entry for unknown sysno %d", uint64(sysno)))
		}
		if sc.Fn == nil {
			panic(fmt.Sprintf("syscall table entry for %v has no function", sysno))
		}
		s.table[sysno] = sc
	}
	for sysno := exo.Sysno(0); sysno < exo.NumSyscalls; sysno++ {
		if s.table[sysno].Fn == nil {
			panic(fmt.Sprintf("syscall table is missing %v", sysno))
		}
	}
	return s
}

// Lookup returns the syscall for sysno, or nil if sysno is not a system call
// number.
func (s *SyscallTable) Lookup(sysno uint64) *Syscall {
	if sysno >= uint64(exo.NumSyscalls) {
		return nil
	}
	return &s.table[sysno]
}

// taskAction is what the task does after a system call returns.
type taskAction int

const (
	// actionReturn returns to user code.
	actionReturn taskAction = iota

	// actionYield gives up the CPU and stays runnable.
	actionYield

	// actionBlock gives up the CPU until another environment makes the
	// caller runnable again.
	actionBlock

	// actionExit unwinds the task. The environment has already been
	// destroyed.
	actionExit
)

// SyscallControl is returned by syscalls to control the behavior of
// Task.Syscall.
type SyscallControl struct {
	next taskAction
}

var (
	// CtrlYield is returned by syscalls that give up the CPU.
	CtrlYield = &SyscallControl{next: actionYield}

	// CtrlBlock is returned by syscalls that park the caller until it is
	// made runnable again. The result seen by the caller is the one in its
	// saved frame when it resumes.
	CtrlBlock = &SyscallControl{next: actionBlock}

	// CtrlDoExit is returned by syscalls that destroyed the calling
	// environment.
	CtrlDoExit = &SyscallControl{next: actionExit}
)

// executeSyscall runs one syscall through the table. It counts and, if
// enabled, traces the call.
//
// Preconditions: k.mu must be locked.
func (t *Task) executeSyscall(sysno uint64, args SyscallArguments, batched bool) (uintptr, *SyscallControl, error) {
	k := t.k
	k.stats.Syscalls.Add(1)
	t.env.stats.Syscalls++

	s := k.syscalls.Lookup(sysno)
	if s == nil {
		k.strace(t, sysno, "", args, 0, exoerr.InvalidArgument, 0)
		return 0, nil, exoerr.InvalidArgument
	}
	if batched && !s.Batchable {
		k.strace(t, sysno, s.Name, args, 0, exoerr.InvalidArgument, 0)
		return 0, nil, exoerr.InvalidArgument
	}

	var start time.Time
	if k.straceEnabled {
		start = time.Now()
	}
	rval, ctrl, err := s.Fn(t, args)
	if k.straceEnabled {
		k.strace(t, sysno, s.Name, args, rval, err, time.Since(start))
	}
	return rval, ctrl, err
}

// ExecuteBatched runs one record of a batch. Syscalls that may not be
// batched fail with exoerr.InvalidArgument.
//
// Preconditions: k.mu must be locked.
func (t *Task) ExecuteBatched(sysno uint64, args SyscallArguments) (uintptr, *SyscallControl, error) {
	return t.executeSyscall(sysno, args, true)
}

// strace logs one dispatched syscall.
func (k *Kernel) strace(t *Task, sysno uint64, name string, args SyscallArguments, rval uintptr, err error, d time.Duration) {
	if !k.straceEnabled {
		return
	}
	if name == "" {
		name = exo.Sysno(sysno).String()
	}
	if err != nil {
		log.Infof("[%v] E %s(%#x, %#x, %#x, %#x, %#x) = %d (%v) (%v)", t.id, name,
			args[0].Value, args[1].Value, args[2].Value, args[3].Value, args[4].Value,
			exoerr.ToReturn(rval, err), err, d)
		return
	}
	log.Infof("[%v] X %s(%#x, %#x, %#x, %#x, %#x) = %#x (%v)", t.id, name,
		args[0].Value, args[1].Value, args[2].Value, args[3].Value, args[4].Value, rval, d)
}
