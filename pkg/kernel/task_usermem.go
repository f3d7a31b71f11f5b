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
	"exo.dev/exo/pkg/abi/exo"
	"exo.dev/exo/pkg/errors/exoerr"
	"exo.dev/exo/pkg/hostarch"
	"exo.dev/exo/pkg/pagetables"
)

// CopyIn copies len(dst) bytes from user memory at va into dst, as a user
// load. A fault is delivered to the environment's upcall and the access
// retried; an environment that cannot handle the fault is destroyed and
// CopyIn does not return.
func (t *Task) CopyIn(va hostarch.Addr, dst []byte) {
	t.access(va, dst, false)
}

// CopyOut copies src into user memory at va, as a user store. Faults are
// handled as in CopyIn.
func (t *Task) CopyOut(va hostarch.Addr, src []byte) {
	t.access(va, src, true)
}

// VPT returns the permission of the page mapped at va, from the read-only
// view of the caller's own page tables.
func (t *Task) VPT(va hostarch.Addr) (exo.PTEFlags, bool) {
	t.k.mu.Lock()
	defer t.k.mu.Unlock()
	pte, ok := t.env.pt.Lookup(va)
	if !ok {
		return 0, false
	}
	return pte.Perm, true
}

// Mapping is one user page as the read-only page table view shows it.
type Mapping struct {
	VA   hostarch.Addr
	Perm exo.PTEFlags
}

// VPTRange returns the caller's mappings in [start, end) in address order.
// Unmapped pages and absent page tables are skipped.
func (t *Task) VPTRange(start, end hostarch.Addr) []Mapping {
	t.k.mu.Lock()
	defer t.k.mu.Unlock()
	var ms []Mapping
	t.env.pt.Walk(start, end, func(va hostarch.Addr, pte pagetables.PTE) bool {
		ms = append(ms, Mapping{VA: va, Perm: pte.Perm})
		return true
	})
	return ms
}

// VPD returns true iff the page table covering va exists in the caller's
// address space.
func (t *Task) VPD(va hostarch.Addr) bool {
	t.k.mu.Lock()
	defer t.k.mu.Unlock()
	return t.env.pt.TablePresent(va)
}

func (t *Task) access(va hostarch.Addr, buf []byte, write bool) {
	var (
		retrying bool
		retryPN  hostarch.PageNumber
	)
	for len(buf) > 0 {
		n := hostarch.PageSize - int(va.PageOffset())
		if n > len(buf) {
			n = len(buf)
		}

		t.k.mu.Lock()
		fec, ok := t.accessPageLocked(va, buf[:n], write)
		if ok {
			t.k.mu.Unlock()
			buf = buf[n:]
			va += hostarch.Addr(n)
			retrying = false
			continue
		}
		t.env.stats.Faults++
		t.k.stats.Faults.Add(1)
		if retrying && retryPN == va.PageNumber() {
			t.k.faultLog.Warningf("[%v] user fault va %v repeated after upcall", t.id, va)
			t.exitLocked()
		}
		t.deliverFaultLocked(va, fec)
		retrying, retryPN = true, va.PageNumber()
	}
}

// accessPageLocked performs the part of an access that lies in one page. It
// returns the fault error code if the page does not permit the access.
//
// Preconditions: t.k.mu must be locked.
func (t *Task) accessPageLocked(va hostarch.Addr, buf []byte, write bool) (uint64, bool) {
	fec := uint64(exo.FECUser)
	if write {
		fec |= exo.FECWrite
	}
	if va >= exo.ULIM {
		return fec, false
	}
	pte, ok := t.env.pt.Lookup(va)
	if !ok {
		return fec, false
	}
	if !pagetables.Allows(pte.Perm, write) {
		return fec | exo.FECPresent, false
	}
	off := va.PageOffset()
	data := pte.Frame.Data()[off : off+uint64(len(buf))]
	if write {
		copy(data, buf)
	} else {
		copy(buf, data)
	}
	return 0, true
}

// deliverFaultLocked pushes a UTrapframe for a fault at va on the exception
// stack and runs the environment's upcall. Faults taken while an upcall runs
// push their frame below the previous one, leaving one word free. The
// environment is destroyed if it has no upcall, or if the exception stack is
// not mapped writable or would overflow.
//
// Preconditions: t.k.mu must be locked. It is unlocked on return.
func (t *Task) deliverFaultLocked(va hostarch.Addr, fec uint64) {
	k, e := t.k, t.env
	if e.upcall == 0 {
		k.faultLog.Warningf("[%v] user fault va %v ip %#x err %#x", t.id, va, e.tf.PC, fec)
		t.exitLocked()
	}
	upcall := k.text.Upcall(e.upcall)
	if upcall == nil {
		k.faultLog.Warningf("[%v] no upcall at %v", t.id, e.upcall)
		t.exitLocked()
	}

	sp := exo.UXSTACKTOP
	if t.xdepth > 0 {
		sp = t.xsp - 8
	}
	sp -= exo.UTrapframeSize
	if sp < exo.UXSTACKTOP-hostarch.PageSize {
		k.faultLog.Warningf("[%v] exception stack overflow at fault va %v", t.id, va)
		t.exitLocked()
	}
	pte, ok := e.pt.Lookup(sp)
	if !ok || !pagetables.Allows(pte.Perm, true) {
		k.faultLog.Warningf("[%v] exception stack not writable at fault va %v", t.id, va)
		t.exitLocked()
	}

	utf := exo.UTrapframe{
		FaultVA: uint64(va),
		Err:     fec,
		Regs:    e.tf.Regs,
		PC:      e.tf.PC,
		SP:      e.tf.SP,
	}
	copy(pte.Frame.Data()[sp.PageOffset():], utf.Marshal(nil))
	k.mu.Unlock()

	savedSP := t.xsp
	t.xdepth++
	t.xsp = sp
	upcall(t, utf)
	t.xdepth--
	t.xsp = savedSP
}

// CheckUserMem returns exoerr.Fault unless every page of [va, va+n) lies
// below exo.ULIM and is mapped present and user, and writable if write is
// true.
//
// Preconditions: t.k.mu must be locked.
func (t *Task) CheckUserMem(va hostarch.Addr, n uint64, write bool) error {
	end, ok := va.AddLength(n)
	if !ok || end > exo.ULIM {
		return exoerr.Fault
	}
	for p := va.RoundDown(); p < end; p += hostarch.PageSize {
		pte, ok := t.env.pt.Lookup(p)
		if !ok || !pagetables.Allows(pte.Perm, write) {
			return exoerr.Fault
		}
	}
	return nil
}

// ReadUserMem checks [va, va+n) with CheckUserMem and returns a copy of it.
//
// Preconditions: t.k.mu must be locked.
func (t *Task) ReadUserMem(va hostarch.Addr, n uint64) ([]byte, error) {
	if err := t.CheckUserMem(va, n, false); err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	for done := uint64(0); done < n; {
		cur := va + hostarch.Addr(done)
		pte, _ := t.env.pt.Lookup(cur)
		off := cur.PageOffset()
		done += uint64(copy(buf[done:], pte.Frame.Data()[off:]))
	}
	return buf, nil
}
