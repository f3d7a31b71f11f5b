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

// Package kernel contains the exo kernel: the environment table, the
// single-CPU scheduler, the tasks that run environments and the trap paths
// (system calls and page faults) into the kernel.
//
// Environments run as goroutines but only one holds the simulated CPU at a
// time. The scheduler loop (Kernel.Run) hands the CPU to a runnable
// environment and waits until that environment gives it back by yielding,
// blocking in receive or exiting.
//
// Lock order:
//
//	Kernel.mu
//	  pgalloc.MemoryFile.mu
//	Text.mu
package kernel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"exo.dev/exo/pkg/abi/exo"
	"exo.dev/exo/pkg/cleanup"
	"exo.dev/exo/pkg/hostarch"
	"exo.dev/exo/pkg/log"
	"exo.dev/exo/pkg/pgalloc"
)

// ErrNoRunnable is returned by Run when environments remain but none of
// them can ever run again: all are blocked or not runnable.
var ErrNoRunnable = errors.New("no runnable environments")

// BatchPolicy decides what happens when a record of a batch fails.
type BatchPolicy int

const (
	// BatchAbort destroys the calling environment.
	BatchAbort BatchPolicy = iota

	// BatchReport returns the record's error, with its index in the Aux
	// register. Earlier records stay applied.
	BatchReport
)

// Set implements flag.Value.Set.
func (p *BatchPolicy) Set(v string) error {
	switch strings.ToLower(v) {
	case "abort":
		*p = BatchAbort
	case "report":
		*p = BatchReport
	default:
		return fmt.Errorf("invalid batch policy %q", v)
	}
	return nil
}

// Get implements flag.Getter.Get.
func (p *BatchPolicy) Get() any {
	return *p
}

// String implements flag.Value.String.
func (p BatchPolicy) String() string {
	switch p {
	case BatchAbort:
		return "abort"
	case BatchReport:
		return "report"
	default:
		return fmt.Sprintf("BatchPolicy(%d)", int(p))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p BatchPolicy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *BatchPolicy) UnmarshalText(b []byte) error {
	return p.Set(string(b))
}

// InitKernelArgs holds arguments to New.
type InitKernelArgs struct {
	// MemoryFile provides frames for pages and page tables.
	MemoryFile pgalloc.Allocator

	// SyscallTable dispatches system calls.
	SyscallTable *SyscallTable

	// MaxEnvs is the size of the environment table.
	MaxEnvs int

	// Console receives console output. If nil, output is discarded.
	Console io.Writer

	// Input provides console input. If nil, reads return no character.
	Input io.ByteReader

	// BatchPolicy applies to failing batch records.
	BatchPolicy BatchPolicy

	// Strace enables system call tracing.
	Strace bool
}

// Kernel is the exo kernel.
type Kernel struct {
	// mu is the big kernel lock. It protects the environment table, the
	// run queue, every Env and the scheduling fields of every Task.
	mu sync.Mutex

	mf       pgalloc.Allocator
	syscalls *SyscallTable
	envs     *EnvTable
	text     *Text

	// runq holds the ids of runnable environments in dispatch order.
	runq []exo.EnvID

	// current is the environment on the CPU, or nil.
	current *Env

	// cpu is signalled by a task when it gives the CPU back.
	cpu chan struct{}

	// group tracks task goroutines.
	group errgroup.Group

	// ctx is the context of the current Run.
	ctx context.Context

	console     io.Writer
	input       io.ByteReader
	batchPolicy BatchPolicy

	straceEnabled bool

	stats Stats

	// faultLog reports environments killed by faults.
	faultLog log.Logger
}

// New returns a kernel with an empty environment table.
func New(args InitKernelArgs) (*Kernel, error) {
	if args.MemoryFile == nil {
		return nil, fmt.Errorf("kernel needs a memory file")
	}
	if args.SyscallTable == nil {
		return nil, fmt.Errorf("kernel needs a syscall table")
	}
	envs, err := NewEnvTable(args.MaxEnvs, args.MemoryFile)
	if err != nil {
		return nil, err
	}
	console := args.Console
	if console == nil {
		console = io.Discard
	}
	k := &Kernel{
		mf:            args.MemoryFile,
		syscalls:      args.SyscallTable,
		envs:          envs,
		text:          newText(),
		cpu:           make(chan struct{}),
		ctx:           context.Background(),
		console:       console,
		input:         args.Input,
		batchPolicy:   args.BatchPolicy,
		straceEnabled: args.Strace,
		faultLog:      log.BasicRateLimitedLogger(time.Second, 20),
	}
	k.group.SetLimit(envs.Size())
	return k, nil
}

// MemoryFile returns the frame allocator.
func (k *Kernel) MemoryFile() pgalloc.Allocator {
	return k.mf
}

// Envs returns the environment table.
//
// Preconditions: k.mu must be locked.
func (k *Kernel) Envs() *EnvTable {
	return k.envs
}

// Text returns the text registry.
func (k *Kernel) Text() *Text {
	return k.text
}

// BatchPolicy returns the policy for failing batch records.
func (k *Kernel) BatchPolicy() BatchPolicy {
	return k.batchPolicy
}

// Inspect calls fn with the kernel locked. It is meant for callers outside
// the simulated machine, such as tests and the command line, that need a
// consistent view of the environments.
func (k *Kernel) Inspect(fn func(envs *EnvTable)) {
	k.mu.Lock()
	defer k.mu.Unlock()
	fn(k.envs)
}

// ConsoleWrite writes b to the console.
func (k *Kernel) ConsoleWrite(b []byte) {
	if _, err := k.console.Write(b); err != nil {
		log.Warningf("console write failed: %v", err)
	}
}

// ConsoleGetc returns the next console input character, or 0 if there is
// none.
func (k *Kernel) ConsoleGetc() byte {
	if k.input == nil {
		return 0
	}
	c, err := k.input.ReadByte()
	if err != nil {
		return 0
	}
	return c
}

// Spawn creates a runnable root environment that starts in prog, with one
// read-only text page at exo.UTEXT and one stack page below
// exo.USTACKTOP.
func (k *Kernel) Spawn(name string, prog Program) (exo.EnvID, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	e, err := k.allocEnvLocked(0)
	if err != nil {
		return 0, err
	}
	cu := cleanup.Make(func() { k.envs.Free(e) })
	defer cu.Clean()

	text, err := k.mapFreshLocked(e, exo.UTEXT, exo.PTEPresent|exo.PTEUser)
	if err != nil {
		return 0, err
	}
	copy(text, name)
	if _, err := k.mapFreshLocked(e, exo.USTACKTOP-hostarch.PageSize, exo.PTEPresent|exo.PTEUser|exo.PTEWritable); err != nil {
		return 0, err
	}
	e.tf.PC = uint64(k.text.RegisterProgram("", prog))
	e.tf.SP = uint64(exo.USTACKTOP)
	k.setStatusLocked(e, exo.StatusRunnable)
	cu.Release()

	log.Infof("[%v] new env %v (%s)", exo.EnvID(0), e.id, name)
	return e.id, nil
}

// mapFreshLocked maps a zeroed frame at va in e and returns its contents.
//
// Preconditions: k.mu must be locked.
func (k *Kernel) mapFreshLocked(e *Env, va hostarch.Addr, perm exo.PTEFlags) ([]byte, error) {
	f, err := k.mf.Acquire(true)
	if err != nil {
		return nil, err
	}
	defer f.DecRef()
	if err := e.pt.Insert(va, f, perm); err != nil {
		return nil, err
	}
	return f.Data(), nil
}

// allocEnvLocked allocates an environment and the task that will run it.
//
// Preconditions: k.mu must be locked.
func (k *Kernel) allocEnvLocked(parent exo.EnvID) (*Env, error) {
	e, err := k.envs.Alloc(parent)
	if err != nil {
		return nil, err
	}
	e.task = newTask(k, e)
	k.stats.EnvsCreated.Add(1)
	return e, nil
}

// Run schedules environments until none is left, in which case it returns
// nil. It returns ErrNoRunnable if environments remain that are all blocked,
// leaving them in place so that Run may be called again after more
// environments are spawned. If ctx is cancelled, Run destroys every
// environment and returns ctx.Err().
//
// The environment on the CPU is not preempted; cancellation takes effect
// the next time the CPU returns to the scheduler.
func (k *Kernel) Run(ctx context.Context) error {
	k.mu.Lock()
	k.ctx = ctx
	k.mu.Unlock()

	for {
		if err := ctx.Err(); err != nil {
			k.Shutdown()
			return err
		}

		k.mu.Lock()
		e := k.pickNextLocked()
		if e == nil {
			live := k.envs.Live()
			k.mu.Unlock()
			if live != 0 {
				return ErrNoRunnable
			}
			return k.group.Wait()
		}
		t := e.task
		if !t.started {
			prog := k.text.Program(hostarch.Addr(e.tf.PC))
			if prog == nil {
				log.Warningf("[%v] no program at pc %#x, destroying", e.id, e.tf.PC)
				k.destroyEnvLocked(e)
				k.mu.Unlock()
				continue
			}
			k.switchToLocked(e)
			t.started = true
			k.mu.Unlock()
			k.group.Go(func() error {
				t.run(prog)
				return nil
			})
		} else {
			k.switchToLocked(e)
			k.mu.Unlock()
			t.resume <- resumeRun
		}

		// Wait for the CPU to come back.
		<-k.cpu
	}
}

// Shutdown destroys every environment and waits for their goroutines.
func (k *Kernel) Shutdown() {
	k.mu.Lock()
	k.envs.ForEach(k.destroyEnvLocked)
	k.runq = nil
	k.mu.Unlock()
	k.group.Wait()
}

// Stats returns a snapshot of the kernel counters.
func (k *Kernel) Stats() StatsSnapshot {
	return k.stats.snapshot()
}
