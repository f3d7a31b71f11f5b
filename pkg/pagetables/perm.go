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

package pagetables

import (
	"exo.dev/exo/pkg/abi/exo"
)

// RequiredPerm are the bits every requested mapping must carry.
const RequiredPerm = exo.PTEPresent | exo.PTEUser

// ValidPerm reports whether perm may be requested through a system call:
// present and user must be set and nothing outside exo.PTESyscall may be.
func ValidPerm(perm exo.PTEFlags) bool {
	return perm&RequiredPerm == RequiredPerm && perm&^exo.PTESyscall == 0
}

// Allows reports whether a user access, a write if write is true, is
// permitted through a mapping with perm.
func Allows(perm exo.PTEFlags, write bool) bool {
	if perm&RequiredPerm != RequiredPerm {
		return false
	}
	return !write || perm&exo.PTEWritable != 0
}

// CanRemap reports whether a mapping with perm may be installed from a
// source mapping with srcPerm. Write access cannot be gained by remapping a
// read-only page.
func CanRemap(srcPerm, perm exo.PTEFlags) bool {
	return perm&exo.PTEWritable == 0 || srcPerm&exo.PTEWritable != 0
}

// ForkPerm returns the permission a page mapped with perm gets in both the
// child and the parent when an address space is duplicated, and whether the
// parent's own mapping must be re-marked with it.
//
// Shared pages keep their bits and stay shared. Pages that are writable or
// already copy-on-write become copy-on-write and read-only on both sides.
// Everything else is read-only and is shared as is.
func ForkPerm(perm exo.PTEFlags) (newPerm exo.PTEFlags, remarkSelf bool) {
	switch {
	case perm&exo.PTEShare != 0:
		return perm & exo.PTESyscall, false
	case perm&(exo.PTEWritable|exo.PTECOW) != 0:
		return exo.PTEPresent | exo.PTEUser | exo.PTECOW, true
	default:
		return perm & exo.PTESyscall, false
	}
}
