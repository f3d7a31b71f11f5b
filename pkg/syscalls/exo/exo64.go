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

// Package exo provides the system call table of the exo kernel ABI.
//
// Each handler decodes and validates its arguments before it changes any
// state, so a call that fails leaves the system as it found it.
package exo

import (
	"exo.dev/exo/pkg/abi/exo"
	"exo.dev/exo/pkg/errors/exoerr"
	"exo.dev/exo/pkg/hostarch"
	"exo.dev/exo/pkg/kernel"
	"exo.dev/exo/pkg/pagetables"
)

// Table is the exo system call table.
var Table = kernel.NewSyscallTable(map[exo.Sysno]kernel.Syscall{
	exo.SysCputs:               {Name: "cputs", Fn: Cputs, Batchable: true},
	exo.SysCgetc:               {Name: "cgetc", Fn: Cgetc},
	exo.SysGetenvid:            {Name: "getenvid", Fn: Getenvid},
	exo.SysEnvDestroy:          {Name: "env_destroy", Fn: EnvDestroy},
	exo.SysPageAlloc:           {Name: "page_alloc", Fn: PageAlloc, Batchable: true},
	exo.SysPageMap:             {Name: "page_map", Fn: PageMap, Batchable: true},
	exo.SysPageUnmap:           {Name: "page_unmap", Fn: PageUnmap, Batchable: true},
	exo.SysExofork:             {Name: "exofork", Fn: Exofork},
	exo.SysEnvSetStatus:        {Name: "env_set_status", Fn: EnvSetStatus, Batchable: true},
	exo.SysEnvSetTrapframe:     {Name: "env_set_trapframe", Fn: EnvSetTrapframe},
	exo.SysEnvSetPgfaultUpcall: {Name: "env_set_pgfault_upcall", Fn: EnvSetPgfaultUpcall, Batchable: true},
	exo.SysYield:               {Name: "yield", Fn: Yield},
	exo.SysIpcTrySend:          {Name: "ipc_try_send", Fn: IpcTrySend},
	exo.SysIpcRecv:             {Name: "ipc_recv", Fn: IpcRecv},
	exo.SysBatch:               {Name: "batch", Fn: Batch},
})

// checkPageVA returns exoerr.InvalidArgument unless va is a page-aligned
// address below exo.UTOP.
func checkPageVA(va hostarch.Addr) error {
	if va >= exo.UTOP || !va.IsPageAligned() {
		return exoerr.InvalidArgument
	}
	return nil
}

// lookupEnv resolves an environment argument that the caller wants to
// change: the caller itself or one of its children.
func lookupEnv(t *kernel.Task, arg kernel.SyscallArgument) (*kernel.Env, error) {
	id, ok := arg.EnvID()
	if !ok {
		return nil, exoerr.BadTarget
	}
	return t.Kernel().Envs().Lookup(id, t.Env(), true)
}

// checkPerm decodes a permission argument that a system call may set.
func checkPerm(arg kernel.SyscallArgument) (exo.PTEFlags, error) {
	perm, ok := arg.Perm()
	if !ok || !pagetables.ValidPerm(perm) {
		return 0, exoerr.InvalidArgument
	}
	return perm, nil
}
