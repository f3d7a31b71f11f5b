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

import "exo.dev/exo/pkg/hostarch"

// User address space layout.
//
//	ULIM, MMIOBASE -->  +------------------------------+ 0xef800000
//	                    |  Cur. page table (r-o)       |
//	UVPT          ----> +------------------------------+ 0xef400000
//	                    |  RO pages, RO envs           |
//	UTOP,UENVS ------>  +------------------------------+ 0xeec00000
//	UXSTACKTOP -/       |  User exception stack        | RW/RW  PGSIZE
//	                    +------------------------------+ 0xeebff000
//	                    |  Empty memory (guard)        | --/--  PGSIZE
//	USTACKTOP  --->     +------------------------------+ 0xeebfe000
//	                    |  Normal user stack           | RW/RW  PGSIZE
//	                    +------------------------------+ 0xeebfd000
//	                    .                              .
//	UTEXT -------->     +------------------------------+ 0x00800000
//	PFTEMP ------->     |  Empty memory (*)            |        PTSIZE
//	UTEMP -------->     +------------------------------+ 0x00400000
//	                    |  Empty memory (*)            |
//	0 ------------>     +------------------------------+
const (
	// ULIM is the end of memory user code may ever reference.
	ULIM hostarch.Addr = 0xEF800000

	// UVPT is where the read-only page table view lives.
	UVPT = ULIM - hostarch.PTSize

	// UPAGES is where the read-only frame table lives.
	UPAGES = UVPT - hostarch.PTSize

	// UENVS is where the read-only environment table lives.
	UENVS = UPAGES - hostarch.PTSize

	// UTOP is the top of memory system calls may map.
	UTOP = UENVS

	// UXSTACKTOP is the top of the one-page user exception stack.
	UXSTACKTOP = UTOP

	// USTACKTOP is the top of the normal user stack, one guard page below
	// the exception stack.
	USTACKTOP = UTOP - 2*hostarch.PageSize

	// UTEXT is where program text starts.
	UTEXT hostarch.Addr = 2 * hostarch.PTSize

	// UTEMP is scratch space mapped by library code.
	UTEMP hostarch.Addr = hostarch.PTSize

	// PFTEMP is the scratch page used by the copy-on-write fault handler.
	PFTEMP = UTEMP + hostarch.PTSize - hostarch.PageSize
)
