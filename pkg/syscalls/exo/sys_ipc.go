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
	"exo.dev/exo/pkg/pagetables"
)

// IpcTrySend implements the exo syscall ipc_try_send. Any environment may
// send to any other. The send fails with exoerr.NotReceiving unless the
// target is blocked in ipc_recv.
//
// If srcva is below exo.UTOP the page mapped there is offered with perm, and
// is mapped in the target if the target asked for a page. On success the
// target is made runnable and its pending ipc_recv returns 0.
func IpcTrySend(t *kernel.Task, args kernel.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	id, ok := args[0].EnvID()
	if !ok {
		return 0, nil, exoerr.BadTarget
	}
	e, err := t.Kernel().Envs().Lookup(id, t.Env(), false)
	if err != nil {
		return 0, nil, err
	}
	ipc := e.IPC()
	if !ipc.Recving {
		return 0, nil, exoerr.NotReceiving
	}

	value := args[1].Uint64()
	srcva := args[2].Pointer()
	var sent exo.PTEFlags
	if srcva < exo.UTOP {
		if !srcva.IsPageAligned() {
			return 0, nil, exoerr.InvalidArgument
		}
		perm, err := checkPerm(args[3])
		if err != nil {
			return 0, nil, err
		}
		pte, ok := t.Env().PageTables().Lookup(srcva)
		if !ok || !pagetables.CanRemap(pte.Perm, perm) {
			return 0, nil, exoerr.InvalidArgument
		}
		if ipc.DstVA < exo.UTOP {
			if err := e.PageTables().Insert(ipc.DstVA, pte.Frame, perm); err != nil {
				return 0, nil, err
			}
			sent = perm
		}
	}

	ipc.Recving = false
	ipc.From = t.ID()
	ipc.Value = value
	ipc.Perm = sent
	e.TrapFrame().Regs.Ret = 0
	t.Kernel().SetStatus(e, exo.StatusRunnable)
	t.Debugf("ipc to %v value %#x perm %v", e.ID(), value, sent)
	return 0, nil, nil
}

// IpcRecv implements the exo syscall ipc_recv. The caller blocks until a
// sender delivers a message. If dstva is below exo.UTOP the caller is
// willing to receive a page there.
func IpcRecv(t *kernel.Task, args kernel.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	dstva := args[0].Pointer()
	if dstva < exo.UTOP && !dstva.IsPageAligned() {
		return 0, nil, exoerr.InvalidArgument
	}
	e := t.Env()
	ipc := e.IPC()
	ipc.Recving = true
	ipc.DstVA = dstva
	t.Kernel().SetStatus(e, exo.StatusNotRunnable)
	return 0, kernel.CtrlBlock, nil
}
