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

package libos

import (
	"fmt"

	"exo.dev/exo/pkg/abi/exo"
	"exo.dev/exo/pkg/cleanup"
	"exo.dev/exo/pkg/hostarch"
	"exo.dev/exo/pkg/kernel"
	"exo.dev/exo/pkg/pagetables"
)

// caller issues the system calls of a fork, either one at a time or through
// a Batch.
type caller interface {
	call(sysno exo.Sysno, args ...uint64) error
	flush() error
}

type direct struct {
	t *kernel.Task
}

func (d direct) call(sysno exo.Sysno, args ...uint64) error {
	var a [5]uint64
	copy(a[:], args)
	_, err := syscall(d.t, sysno, a[0], a[1], a[2], a[3], a[4])
	return err
}

func (direct) flush() error {
	return nil
}

type batched struct {
	b *Batch
}

func (b batched) call(sysno exo.Sysno, args ...uint64) error {
	return b.b.Add(sysno, args...)
}

func (b batched) flush() error {
	return b.b.Flush()
}

// Fork creates a child environment that shares the caller's address space
// copy-on-write, and returns its id. The child starts in child; the caller
// continues after Fork. Each page operation of the duplication is its own
// system call.
func Fork(t *kernel.Task, child kernel.Program) (exo.EnvID, error) {
	return fork(t, child, direct{t})
}

// ForkBatched is Fork with the page operations of the duplication submitted
// in batches.
func ForkBatched(t *kernel.Task, child kernel.Program) (exo.EnvID, error) {
	return fork(t, child, batched{NewBatch(t, BatchThreshold)})
}

func fork(t *kernel.Task, child kernel.Program, c caller) (exo.EnvID, error) {
	upcall := COWUpcall(t)
	if err := SetPgfaultHandler(t, upcall); err != nil {
		return 0, fmt.Errorf("fork: %w", err)
	}

	t.SetPC(t.Kernel().Text().RegisterProgram("", childEntry(child)))
	id, err := Exofork(t)
	if err != nil {
		return 0, fmt.Errorf("fork: exofork: %w", err)
	}
	cu := cleanup.Make(func() {
		if err := EnvDestroy(t, id); err != nil {
			t.Warningf("destroying half-built child %v: %v", id, err)
		}
	})
	defer cu.Clean()

	if err := dupAddressSpace(t, id, c); err != nil {
		return 0, fmt.Errorf("fork: duplicating into %v: %w", id, err)
	}
	if err := c.call(exo.SysPageAlloc, uint64(id), uint64(exo.UXSTACKTOP-hostarch.PageSize), uint64(urw)); err != nil {
		return 0, fmt.Errorf("fork: exception stack: %w", err)
	}
	if err := c.call(exo.SysEnvSetPgfaultUpcall, uint64(id), uint64(upcall)); err != nil {
		return 0, fmt.Errorf("fork: upcall: %w", err)
	}
	if err := c.call(exo.SysEnvSetStatus, uint64(id), uint64(exo.StatusRunnable)); err != nil {
		return 0, fmt.Errorf("fork: status: %w", err)
	}
	if err := c.flush(); err != nil {
		return 0, fmt.Errorf("fork: %w", err)
	}
	cu.Release()
	return id, nil
}

// childEntry returns the program a forked child starts in. The child's
// library state is a copy of its parent's, so the cached id is refreshed
// first.
func childEntry(child kernel.Program) kernel.Program {
	return func(t *kernel.Task) {
		if ret := t.Regs().Ret; ret != 0 {
			panic(fmt.Sprintf("forked child resumed with result %#x", ret))
		}
		state(t).ThisEnv = Getenvid(t)
		child(t)
	}
}

// dupAddressSpace maps every user page in [exo.UTEXT, exo.USTACKTOP) into
// the child. The scan reads the mappings before the first remap.
func dupAddressSpace(t *kernel.Task, id exo.EnvID, c caller) error {
	for _, m := range t.VPTRange(exo.UTEXT, exo.USTACKTOP) {
		if m.Perm&exo.PTEUser == 0 {
			continue
		}
		if err := duppage(c, id, m.VA, m.Perm); err != nil {
			return err
		}
	}
	return nil
}

// duppage maps the page at va into the child at the same address. Writable
// and copy-on-write pages become copy-on-write in the child and then in the
// caller, in that order.
func duppage(c caller, id exo.EnvID, va hostarch.Addr, perm exo.PTEFlags) error {
	newPerm, remark := pagetables.ForkPerm(perm)
	if err := c.call(exo.SysPageMap, 0, uint64(va), uint64(id), uint64(va), uint64(newPerm)); err != nil {
		return fmt.Errorf("mapping %v into child: %w", va, err)
	}
	if !remark {
		return nil
	}
	if err := c.call(exo.SysPageMap, 0, uint64(va), 0, uint64(va), uint64(newPerm)); err != nil {
		return fmt.Errorf("remapping %v copy-on-write: %w", va, err)
	}
	return nil
}
