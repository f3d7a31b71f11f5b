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

import (
	"exo.dev/exo/pkg/abi/exo"
	"exo.dev/exo/pkg/errors/exoerr"
	"exo.dev/exo/pkg/kernel"
	"exo.dev/exo/pkg/log"
)

// Getenvid implements the exo syscall getenvid.
func Getenvid(t *kernel.Task, args kernel.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	return uintptr(t.ID()), nil, nil
}

// EnvDestroy implements the exo syscall env_destroy. Destroying the caller
// does not return.
func EnvDestroy(t *kernel.Task, args kernel.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	e, err := lookupEnv(t, args[0])
	if err != nil {
		return 0, nil, err
	}
	if e == t.Env() {
		log.Infof("[%v] exiting gracefully", t.ID())
		t.Kernel().DestroyEnv(e)
		return 0, kernel.CtrlDoExit, nil
	}
	log.Infof("[%v] destroying %v", t.ID(), e.ID())
	t.Kernel().DestroyEnv(e)
	return 0, nil, nil
}

// Exofork implements the exo syscall exofork. The child is a blank address
// space with a copy of the caller's frame, in which the result register is
// zero. It is not runnable until its creator says so.
func Exofork(t *kernel.Task, args kernel.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	child, err := t.Kernel().Exofork(t)
	if err != nil {
		return 0, nil, err
	}
	return uintptr(child.ID()), nil, nil
}

// EnvSetStatus implements the exo syscall env_set_status.
func EnvSetStatus(t *kernel.Task, args kernel.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	status, ok := args[1].Status()
	if !ok || (status != exo.StatusRunnable && status != exo.StatusNotRunnable) {
		return 0, nil, exoerr.InvalidArgument
	}
	e, err := lookupEnv(t, args[0])
	if err != nil {
		return 0, nil, err
	}
	t.Kernel().SetStatus(e, status)
	return 0, nil, nil
}

// EnvSetTrapframe implements the exo syscall env_set_trapframe. The frame is
// read from the caller's memory and sanitized: the target always runs at
// user privilege with interrupts enabled and no I/O privilege. The caller is
// destroyed if the frame is not readable.
//
// A task that is already running reads its frame only through its
// registers, so the new program counter takes effect on the target's first
// dispatch.
func EnvSetTrapframe(t *kernel.Task, args kernel.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	e, err := lookupEnv(t, args[0])
	if err != nil {
		return 0, nil, err
	}
	va := args[1].Pointer()
	buf, err := t.ReadUserMem(va, exo.TrapFrameSize)
	if err != nil {
		return 0, t.Kill("user_mem_check assertion failure for va %v", va), nil
	}
	var tf exo.TrapFrame
	tf.Unmarshal(buf)
	tf.CPL = 3
	tf.EFlags |= exo.FLInterrupt
	tf.EFlags &^= exo.FLIOPLMask
	*e.TrapFrame() = tf
	return 0, nil, nil
}

// EnvSetPgfaultUpcall implements the exo syscall env_set_pgfault_upcall. The
// entry point is not checked; faulting with a bad one destroys the
// environment.
func EnvSetPgfaultUpcall(t *kernel.Task, args kernel.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	e, err := lookupEnv(t, args[0])
	if err != nil {
		return 0, nil, err
	}
	e.SetPgfaultUpcall(args[1].Pointer())
	return 0, nil, nil
}

// Yield implements the exo syscall yield.
func Yield(t *kernel.Task, args kernel.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	return 0, kernel.CtrlYield, nil
}
