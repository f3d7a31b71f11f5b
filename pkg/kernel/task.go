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
	"context"
	"fmt"

	"exo.dev/exo/pkg/abi/exo"
	"exo.dev/exo/pkg/errors/exoerr"
	"exo.dev/exo/pkg/hostarch"
	"exo.dev/exo/pkg/log"
)

type resumeMsg int

const (
	resumeRun resumeMsg = iota
	resumeKill
)

// taskKilled unwinds a task goroutine whose environment is gone.
type taskKilled struct{}

// Task runs one environment. Each task is associated with a goroutine, the
// task goroutine, that executes user code and enters the kernel on its
// behalf.
//
// Fields marked "exclusive to the task goroutine" are only accessed by it.
// The others are protected by Kernel.mu.
type Task struct {
	k   *Kernel
	env *Env
	id  exo.EnvID

	// resume wakes a parked task goroutine.
	resume chan resumeMsg

	// started is true once the task goroutine exists.
	started bool

	// onCPU is true while the task holds the CPU.
	onCPU bool

	// done is true once the task goroutine has finished.
	done bool

	// Local is process-local library state. It lives outside simulated
	// memory, so exofork copies it into the child explicitly.
	//
	// Local is exclusive to the task goroutine.
	Local any

	// xdepth and xsp describe the frames pushed on the exception stack.
	// They are exclusive to the task goroutine.
	xdepth int
	xsp    hostarch.Addr
}

func newTask(k *Kernel, e *Env) *Task {
	return &Task{
		k:      k,
		env:    e,
		id:     e.id,
		resume: make(chan resumeMsg, 1),
	}
}

// Kernel returns the kernel running t.
func (t *Task) Kernel() *Kernel {
	return t.k
}

// ID returns the id of t's environment.
func (t *Task) ID() exo.EnvID {
	return t.id
}

// Env returns t's environment.
//
// Preconditions: t.Kernel().mu must be locked, as it is in system calls.
func (t *Task) Env() *Env {
	return t.env
}

// Context returns the context of the kernel's current Run.
func (t *Task) Context() context.Context {
	t.k.mu.Lock()
	defer t.k.mu.Unlock()
	return t.k.ctx
}

// Debugf logs a debug message prefixed with the environment id.
func (t *Task) Debugf(format string, v ...any) {
	if log.IsLogging(log.Debug) {
		log.Log().DebugfAtDepth(1, "[%v] "+format, append([]any{t.id}, v...)...)
	}
}

// Infof logs an info message prefixed with the environment id.
func (t *Task) Infof(format string, v ...any) {
	if log.IsLogging(log.Info) {
		log.Log().InfofAtDepth(1, "[%v] "+format, append([]any{t.id}, v...)...)
	}
}

// Warningf logs a warning prefixed with the environment id.
func (t *Task) Warningf(format string, v ...any) {
	if log.IsLogging(log.Warning) {
		log.Log().WarningfAtDepth(1, "[%v] "+format, append([]any{t.id}, v...)...)
	}
}

// SetPC sets the resume point recorded in t's frame. It is the hosted
// equivalent of the program counter: a frame copied by exofork resumes at
// the program found at this text address.
func (t *Task) SetPC(pc hostarch.Addr) {
	t.k.mu.Lock()
	defer t.k.mu.Unlock()
	t.env.tf.PC = uint64(pc)
}

// Regs returns a copy of the registers of t's last system call.
func (t *Task) Regs() exo.Regs {
	t.k.mu.Lock()
	defer t.k.mu.Unlock()
	return t.env.tf.Regs
}

// IPC returns a copy of the IPC state of t's environment, as a user program
// sees it through the read-only environment array.
func (t *Task) IPC() IPCState {
	t.k.mu.Lock()
	defer t.k.mu.Unlock()
	return t.env.ipc
}

// Stats returns t's environment counters.
func (t *Task) Stats() EnvStats {
	t.k.mu.Lock()
	defer t.k.mu.Unlock()
	return t.env.stats
}

// Syscall enters the kernel with system call sysno and returns its result:
// a non-negative value, or a negated error code. A call that destroys the
// caller does not return.
func (t *Task) Syscall(sysno exo.Sysno, a1, a2, a3, a4, a5 uint64) int64 {
	k := t.k
	k.stats.Crossings.Add(1)

	k.mu.Lock()
	e := t.env
	e.tf.Regs.Args = [5]uint64{a1, a2, a3, a4, a5}
	e.tf.Regs.Aux = 0
	args := SyscallArguments{{a1}, {a2}, {a3}, {a4}, {a5}}
	rval, ctrl, err := t.executeSyscall(uint64(sysno), args, false)
	if ctrl == CtrlDoExit || !e.alive() {
		k.mu.Unlock()
		panic(taskKilled{})
	}
	e.tf.Regs.Ret = uint64(exoerr.ToReturn(rval, err))

	next := actionReturn
	if ctrl != nil {
		next = ctrl.next
	}
	switch next {
	case actionYield:
		if e.status == exo.StatusRunning {
			e.status = exo.StatusRunnable
			k.enqueueLocked(e)
		}
		t.parkLocked()
	case actionBlock:
		t.parkLocked()
	default:
		k.mu.Unlock()
		return int64(e.tf.Regs.Ret)
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	return int64(e.tf.Regs.Ret)
}

// Exit destroys t's environment and unwinds the task goroutine.
func (t *Task) Exit() {
	t.k.mu.Lock()
	t.exitLocked()
}

// exitLocked destroys t's environment, if still live, and unwinds.
//
// Preconditions: k.mu must be locked. It is unlocked on return.
func (t *Task) exitLocked() {
	if t.env.alive() {
		t.k.destroyEnvLocked(t.env)
	}
	t.k.mu.Unlock()
	panic(taskKilled{})
}

// Kill destroys the calling environment for violating the system call
// contract and returns the control that unwinds it.
//
// Preconditions: k.mu must be locked.
func (t *Task) Kill(format string, v ...any) *SyscallControl {
	t.k.faultLog.Warningf("[%v] killed: %s", t.id, fmt.Sprintf(format, v...))
	t.k.destroyEnvLocked(t.env)
	return CtrlDoExit
}

// parkLocked gives the CPU back and waits until the scheduler resumes t.
//
// Preconditions: k.mu must be locked. It is unlocked on return.
func (t *Task) parkLocked() {
	k := t.k
	t.onCPU = false
	if k.current == t.env {
		k.current = nil
	}
	k.mu.Unlock()
	k.cpu <- struct{}{}

	if msg := <-t.resume; msg == resumeKill {
		panic(taskKilled{})
	}
}

// run is the body of the task goroutine.
func (t *Task) run(prog Program) {
	defer t.finish()
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if _, ok := r.(taskKilled); ok {
			return
		}
		t.k.mu.Lock()
		t.k.faultLog.Warningf("[%v] user panic: %v", t.id, r)
		if t.env.alive() {
			t.k.destroyEnvLocked(t.env)
		}
		t.k.mu.Unlock()
	}()

	prog(t)
	t.Exit()
}

// finish marks the task goroutine done and gives back the CPU if it holds
// it.
func (t *Task) finish() {
	k := t.k
	k.mu.Lock()
	t.done = true
	onCPU := t.onCPU
	t.onCPU = false
	if k.current == t.env {
		k.current = nil
	}
	k.mu.Unlock()
	if onCPU {
		k.cpu <- struct{}{}
	}
}
