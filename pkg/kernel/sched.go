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
	"github.com/mohae/deepcopy"

	"exo.dev/exo/pkg/abi/exo"
	"exo.dev/exo/pkg/log"
)

// enqueueLocked puts e at the back of the run queue unless it is already
// queued.
//
// Preconditions: k.mu must be locked.
func (k *Kernel) enqueueLocked(e *Env) {
	if e.queued {
		return
	}
	e.queued = true
	k.runq = append(k.runq, e.id)
}

// pickNextLocked pops the next runnable environment, skipping ids that went
// stale or stopped being runnable while queued.
//
// Preconditions: k.mu must be locked.
func (k *Kernel) pickNextLocked() *Env {
	for len(k.runq) > 0 {
		id := k.runq[0]
		k.runq = k.runq[1:]
		e := k.envs.Get(id)
		if e == nil || !e.queued {
			continue
		}
		e.queued = false
		if e.status == exo.StatusRunnable {
			return e
		}
	}
	return nil
}

// switchToLocked gives the CPU to e.
//
// Preconditions: k.mu must be locked. e is runnable.
func (k *Kernel) switchToLocked(e *Env) {
	e.status = exo.StatusRunning
	e.stats.Runs++
	e.task.onCPU = true
	k.current = e
}

// SetStatus sets the scheduling state of e to RUNNABLE or NOT_RUNNABLE.
// Setting the environment on the CPU runnable leaves it running.
//
// Preconditions: k.mu must be locked. e is live.
func (k *Kernel) SetStatus(e *Env, status exo.Status) {
	k.setStatusLocked(e, status)
}

func (k *Kernel) setStatusLocked(e *Env, status exo.Status) {
	switch status {
	case exo.StatusRunnable:
		if e.task.onCPU {
			e.status = exo.StatusRunning
			return
		}
		e.status = exo.StatusRunnable
		k.enqueueLocked(e)
	case exo.StatusNotRunnable:
		e.status = exo.StatusNotRunnable
	default:
		panic("invalid status " + status.String())
	}
}

// DestroyEnv frees e. If e is parked its goroutine is unwound; if e is the
// caller, the caller must not return to user code (see CtrlDoExit).
//
// Preconditions: k.mu must be locked. e is live.
func (k *Kernel) DestroyEnv(e *Env) {
	k.destroyEnvLocked(e)
}

func (k *Kernel) destroyEnvLocked(e *Env) {
	var cur exo.EnvID
	if k.current != nil {
		cur = k.current.id
	}
	log.Infof("[%v] free env %v", cur, e.id)

	e.status = exo.StatusDying
	k.envs.Free(e)
	if k.current == e {
		k.current = nil
	}
	if t := e.task; t.started && !t.onCPU && !t.done {
		t.resume <- resumeKill
	}
}

// Exofork creates a child of t's environment whose frame is a copy of the
// caller's with a zero result register, and whose library state is a deep
// copy of the caller's. The child is not runnable.
//
// Preconditions: k.mu must be locked.
func (k *Kernel) Exofork(t *Task) (*Env, error) {
	child, err := k.allocEnvLocked(t.env.id)
	if err != nil {
		return nil, err
	}
	child.tf = t.env.tf
	child.tf.Regs.Ret = 0
	child.tf.Regs.Aux = 0
	if t.Local != nil {
		child.task.Local = deepcopy.Copy(t.Local)
	}
	return child, nil
}
