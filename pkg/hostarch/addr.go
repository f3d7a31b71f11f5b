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

// Package hostarch describes the page geometry of the simulated machine.
package hostarch

import "fmt"

const (
	// PageShift is the binary log of PageSize.
	PageShift = 12

	// PageSize is the size of a page and of a physical frame.
	PageSize = 1 << PageShift

	// PTShift is the binary log of the span covered by one page table.
	PTShift = 22

	// PTSize is the number of bytes mapped by one page table.
	PTSize = 1 << PTShift

	// PTEntries is the number of entries in one page table.
	PTEntries = PTSize / PageSize
)

// Addr represents a user virtual address.
type Addr uintptr

// String implements fmt.Stringer.String.
func (v Addr) String() string {
	return fmt.Sprintf("%#x", uintptr(v))
}

// RoundDown returns the address rounded down to the nearest page boundary.
func (v Addr) RoundDown() Addr {
	return v & ^Addr(PageSize-1)
}

// RoundUp returns the address rounded up to the nearest page boundary. ok is
// true iff rounding up did not wrap around.
func (v Addr) RoundUp() (addr Addr, ok bool) {
	addr = Addr(v + PageSize - 1).RoundDown()
	ok = addr >= v
	return
}

// IsPageAligned returns true if v is a multiple of the page size.
func (v Addr) IsPageAligned() bool {
	return v&(PageSize-1) == 0
}

// PageOffset returns the offset of v into the current page.
func (v Addr) PageOffset() uint64 {
	return uint64(v & (PageSize - 1))
}

// AddLength adds the given length to start and returns the result. ok is true
// iff adding the length did not overflow the range of Addr.
func (v Addr) AddLength(length uint64) (end Addr, ok bool) {
	end = v + Addr(length)
	ok = end >= v && uint64(end-v) == length
	return
}

// PageNumber returns the virtual page number containing v.
func (v Addr) PageNumber() PageNumber {
	return PageNumber(v >> PageShift)
}

// PageNumber is a virtual page number.
type PageNumber uint64

// Addr returns the first address of page pn.
func (pn PageNumber) Addr() Addr {
	return Addr(pn << PageShift)
}

// Directory returns the index of the page table covering pn.
func (pn PageNumber) Directory() uint32 {
	return uint32(pn >> (PTShift - PageShift))
}
