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

// Package pagetables implements the per-environment mapping from virtual
// page numbers to physical frames and permission bits.
//
// Leaf entries are kept in an ordered index so that range walks (used by
// fork and teardown) visit pages in address order. The page-table pages a
// real MMU would need are still charged to the frame allocator, one per
// page directory slot in use, so that table growth can run out of memory
// the same way frame allocation can.
package pagetables

import (
	"fmt"

	"github.com/google/btree"

	"exo.dev/exo/pkg/abi/exo"
	"exo.dev/exo/pkg/hostarch"
	"exo.dev/exo/pkg/pgalloc"
)

// PTE is a leaf page table entry.
type PTE struct {
	Frame *pgalloc.Frame
	Perm  exo.PTEFlags
}

// Valid returns true iff the entry maps a present page.
func (p PTE) Valid() bool {
	return p.Frame != nil && p.Perm&exo.PTEPresent != 0
}

// String implements fmt.Stringer.String.
func (p PTE) String() string {
	if p.Frame == nil {
		return "empty"
	}
	return fmt.Sprintf("%v[%v]", p.Frame, p.Perm)
}

type entry struct {
	vpn hostarch.PageNumber
	pte PTE
}

func lessEntry(a, b entry) bool {
	return a.vpn < b.vpn
}

// btreeDegree is the degree of the leaf index.
const btreeDegree = 16

// PageTables is one address space.
//
// PageTables is not safe for concurrent use; the kernel serializes access.
type PageTables struct {
	// alloc provides page-table pages.
	alloc pgalloc.Allocator

	// entries holds every leaf entry, ordered by page number.
	entries *btree.BTreeG[entry]

	// tables holds the page-table page backing each directory index in use.
	tables map[uint32]*pgalloc.Frame
}

// New returns an empty address space whose page-table pages come from alloc.
func New(alloc pgalloc.Allocator) *PageTables {
	return &PageTables{
		alloc:   alloc,
		entries: btree.NewG(btreeDegree, lessEntry),
		tables:  make(map[uint32]*pgalloc.Frame),
	}
}

// Lookup returns the entry mapping the page containing va.
func (pt *PageTables) Lookup(va hostarch.Addr) (PTE, bool) {
	e, ok := pt.entries.Get(entry{vpn: va.PageNumber()})
	return e.pte, ok
}

// Insert maps the page containing va to frame with perm, replacing any
// existing mapping and dropping its frame reference. Insert takes its own
// reference on frame.
//
// Inserting the same frame that is already mapped at va is safe: the new
// reference is taken before the old one is dropped.
//
// Insert fails with exoerr.NoMemory if a page-table page is needed and the
// allocator is exhausted; in that case nothing changes.
func (pt *PageTables) Insert(va hostarch.Addr, frame *pgalloc.Frame, perm exo.PTEFlags) error {
	vpn := va.PageNumber()
	if err := pt.ensureTable(vpn.Directory()); err != nil {
		return err
	}
	frame.IncRef()
	if old, replaced := pt.entries.ReplaceOrInsert(entry{vpn: vpn, pte: PTE{Frame: frame, Perm: perm}}); replaced {
		old.pte.Frame.DecRef()
	}
	return nil
}

// Remove unmaps the page containing va, if mapped, dropping the frame
// reference. It returns true iff a mapping was removed.
func (pt *PageTables) Remove(va hostarch.Addr) bool {
	old, ok := pt.entries.Delete(entry{vpn: va.PageNumber()})
	if ok {
		old.pte.Frame.DecRef()
	}
	return ok
}

// Walk calls fn for each mapping in [start, end), in address order, until fn
// returns false. fn must not modify pt.
func (pt *PageTables) Walk(start, end hostarch.Addr, fn func(va hostarch.Addr, pte PTE) bool) {
	if end <= start {
		return
	}
	hi := entry{vpn: end.PageNumber()}
	if !end.IsPageAligned() {
		hi.vpn++
	}
	pt.entries.AscendRange(entry{vpn: start.PageNumber()}, hi, func(e entry) bool {
		return fn(e.vpn.Addr(), e.pte)
	})
}

// Len returns the number of mapped pages.
func (pt *PageTables) Len() int {
	return pt.entries.Len()
}

// TablePresent returns true iff the page table covering va exists, as the
// present bit of its page directory entry would say.
func (pt *PageTables) TablePresent(va hostarch.Addr) bool {
	_, ok := pt.tables[va.PageNumber().Directory()]
	return ok
}

// Tables returns the number of page-table pages in use.
func (pt *PageTables) Tables() int {
	return len(pt.tables)
}

// Release drops every mapping and frees the page-table pages. pt is empty
// and reusable afterwards.
func (pt *PageTables) Release() {
	pt.entries.Ascend(func(e entry) bool {
		e.pte.Frame.DecRef()
		return true
	})
	pt.entries.Clear(false)
	for dir, f := range pt.tables {
		f.DecRef()
		delete(pt.tables, dir)
	}
}

// ensureTable makes sure the page-table page for dir exists.
func (pt *PageTables) ensureTable(dir uint32) error {
	if _, ok := pt.tables[dir]; ok {
		return nil
	}
	f, err := pt.alloc.Acquire(true)
	if err != nil {
		return err
	}
	pt.tables[dir] = f
	return nil
}
