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

import "strings"

// PTEFlags are the permission and status bits of a page table entry, in the
// x86 layout.
type PTEFlags uint32

// Page table entry bits.
const (
	PTEPresent      PTEFlags = 0x001
	PTEWritable     PTEFlags = 0x002
	PTEUser         PTEFlags = 0x004
	PTEWriteThrough PTEFlags = 0x008
	PTECacheDisable PTEFlags = 0x010
	PTEAccessed     PTEFlags = 0x020
	PTEDirty        PTEFlags = 0x040
	PTEPageSize     PTEFlags = 0x080
	PTEGlobal       PTEFlags = 0x100

	// PTEAvail are the bits left to software.
	PTEAvail PTEFlags = 0xE00

	// PTEShare marks a page shared across fork rather than copied.
	PTEShare PTEFlags = 0x400

	// PTECOW marks a page that is copied on the next write.
	PTECOW PTEFlags = 0x800

	// PTESyscall are the only bits a system call may set.
	PTESyscall = PTEAvail | PTEPresent | PTEWritable | PTEUser
)

var pteNames = []struct {
	bit  PTEFlags
	name string
}{
	{PTEPresent, "P"},
	{PTEWritable, "W"},
	{PTEUser, "U"},
	{PTEWriteThrough, "PWT"},
	{PTECacheDisable, "PCD"},
	{PTEAccessed, "A"},
	{PTEDirty, "D"},
	{PTEPageSize, "PS"},
	{PTEGlobal, "G"},
	{PTEShare, "SHARE"},
	{PTECOW, "COW"},
	{0x200, "AVAIL0"},
}

// String implements fmt.Stringer.String.
func (f PTEFlags) String() string {
	if f == 0 {
		return "0"
	}
	var parts []string
	for _, n := range pteNames {
		if f&n.bit != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// Fault error code bits, as pushed by the trap layer.
const (
	// FECPresent is set when the fault was a protection violation rather
	// than a missing page.
	FECPresent = 0x1

	// FECWrite is set when the faulting access was a write.
	FECWrite = 0x2

	// FECUser is set when the fault happened in user mode.
	FECUser = 0x4
)
