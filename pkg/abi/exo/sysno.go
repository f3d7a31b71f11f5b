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

// Package exo contains the constants and types of the exo system call ABI:
// system call numbers, page permission bits, the user memory layout,
// environment identifiers and the wire layout of batches and trap frames.
package exo

import "fmt"

// Sysno is a system call number.
type Sysno uint64

// System call numbers.
const (
	SysCputs Sysno = iota
	SysCgetc
	SysGetenvid
	SysEnvDestroy
	SysPageAlloc
	SysPageMap
	SysPageUnmap
	SysExofork
	SysEnvSetStatus
	SysEnvSetTrapframe
	SysEnvSetPgfaultUpcall
	SysYield
	SysIpcTrySend
	SysIpcRecv
	SysBatch

	// NumSyscalls is the number of system calls.
	NumSyscalls
)

var sysnoNames = [NumSyscalls]string{
	SysCputs:               "cputs",
	SysCgetc:               "cgetc",
	SysGetenvid:            "getenvid",
	SysEnvDestroy:          "env_destroy",
	SysPageAlloc:           "page_alloc",
	SysPageMap:             "page_map",
	SysPageUnmap:           "page_unmap",
	SysExofork:             "exofork",
	SysEnvSetStatus:        "env_set_status",
	SysEnvSetTrapframe:     "env_set_trapframe",
	SysEnvSetPgfaultUpcall: "env_set_pgfault_upcall",
	SysYield:               "yield",
	SysIpcTrySend:          "ipc_try_send",
	SysIpcRecv:             "ipc_recv",
	SysBatch:               "batch",
}

// String implements fmt.Stringer.String.
func (s Sysno) String() string {
	if s < NumSyscalls {
		return sysnoNames[s]
	}
	return fmt.Sprintf("sys_%d", uint64(s))
}
