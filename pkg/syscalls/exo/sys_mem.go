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
	"exo.dev/exo/pkg/errors/exoerr"
	"exo.dev/exo/pkg/kernel"
	"exo.dev/exo/pkg/pagetables"
)

// PageAlloc implements the exo syscall page_alloc. It maps a zeroed frame at
// va in the target, replacing any existing mapping.
func PageAlloc(t *kernel.Task, args kernel.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	e, err := lookupEnv(t, args[0])
	if err != nil {
		return 0, nil, err
	}
	va := args[1].Pointer()
	if err := checkPageVA(va); err != nil {
		return 0, nil, err
	}
	perm, err := checkPerm(args[2])
	if err != nil {
		return 0, nil, err
	}

	f, err := t.Kernel().MemoryFile().Acquire(true)
	if err != nil {
		return 0, nil, err
	}
	defer f.DecRef()
	if err := e.PageTables().Insert(va, f, perm); err != nil {
		return 0, nil, err
	}
	return 0, nil, nil
}

// PageMap implements the exo syscall page_map. It maps the frame at srcva in
// the source at dstva in the destination. Write access can only be granted
// to a frame that is writable in the source.
func PageMap(t *kernel.Task, args kernel.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	src, err := lookupEnv(t, args[0])
	if err != nil {
		return 0, nil, err
	}
	dst, err := lookupEnv(t, args[2])
	if err != nil {
		return 0, nil, err
	}
	srcva, dstva := args[1].Pointer(), args[3].Pointer()
	if err := checkPageVA(srcva); err != nil {
		return 0, nil, err
	}
	if err := checkPageVA(dstva); err != nil {
		return 0, nil, err
	}
	perm, err := checkPerm(args[4])
	if err != nil {
		return 0, nil, err
	}
	pte, ok := src.PageTables().Lookup(srcva)
	if !ok || !pagetables.CanRemap(pte.Perm, perm) {
		return 0, nil, exoerr.InvalidArgument
	}
	if err := dst.PageTables().Insert(dstva, pte.Frame, perm); err != nil {
		return 0, nil, err
	}
	return 0, nil, nil
}

// PageUnmap implements the exo syscall page_unmap. Unmapping an address with
// no mapping succeeds.
func PageUnmap(t *kernel.Task, args kernel.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	e, err := lookupEnv(t, args[0])
	if err != nil {
		return 0, nil, err
	}
	va := args[1].Pointer()
	if err := checkPageVA(va); err != nil {
		return 0, nil, err
	}
	e.PageTables().Remove(va)
	return 0, nil, nil
}
