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
	"bytes"
	"testing"

	"exo.dev/exo/pkg/abi/exo"
	"exo.dev/exo/pkg/errors/exoerr"
	"exo.dev/exo/pkg/hostarch"
	"exo.dev/exo/pkg/kernel"
	"exo.dev/exo/pkg/pgalloc"
)

const testVA = hostarch.Addr(0x10000000)

func TestPageAllocZeroFill(t *testing.T) {
	k := newKernel(t, kernel.InitKernelArgs{})
	var (
		errs  []error
		dirty bool
		perm  exo.PTEFlags
	)
	spawn(t, k, func(t *kernel.Task) {
		errs = append(errs, sys(t, exo.SysPageAlloc, 0, uint64(testVA), uint64(urw)))
		t.CopyOut(testVA, bytes.Repeat([]byte{0xff}, hostarch.PageSize))
		errs = append(errs, sys(t, exo.SysPageUnmap, 0, uint64(testVA)))
		errs = append(errs, sys(t, exo.SysPageAlloc, 0, uint64(testVA+hostarch.PageSize), uint64(urw)))
		buf := make([]byte, hostarch.PageSize)
		t.CopyIn(testVA+hostarch.PageSize, buf)
		dirty = !bytes.Equal(buf, make([]byte, hostarch.PageSize))
		perm, _ = t.VPT(testVA + hostarch.PageSize)
	})
	run(t, k)
	for i, err := range errs {
		if err != nil {
			t.Errorf("call %d failed: %v", i, err)
		}
	}
	if dirty {
		t.Errorf("page_alloc returned a page that is not zero filled")
	}
	if perm != urw {
		t.Errorf("perm = %v, want %v", perm, urw)
	}
}

func TestPageAllocReplaces(t *testing.T) {
	k := newKernel(t, kernel.InitKernelArgs{})
	var got byte
	var allocated [2]uint32
	mf := k.MemoryFile().(*pgalloc.MemoryFile)
	spawn(t, k, func(t *kernel.Task) {
		sys(t, exo.SysPageAlloc, 0, uint64(testVA), uint64(urw))
		t.CopyOut(testVA, []byte{7})
		allocated[0] = mf.Allocated()
		sys(t, exo.SysPageAlloc, 0, uint64(testVA), uint64(urw))
		allocated[1] = mf.Allocated()
		b := make([]byte, 1)
		t.CopyIn(testVA, b)
		got = b[0]
	})
	run(t, k)
	if got != 0 {
		t.Errorf("replacing page_alloc kept old contents %d", got)
	}
	if allocated[0] != allocated[1] {
		t.Errorf("allocated frames went from %d to %d, want the replaced frame freed", allocated[0], allocated[1])
	}
}

func TestPageAllocErrors(t *testing.T) {
	for _, tc := range []struct {
		name string
		env  uint64
		va   hostarch.Addr
		perm uint64
		want error
	}{
		{"at UTOP", 0, exo.UTOP, uint64(urw), exoerr.InvalidArgument},
		{"unaligned", 0, testVA + 1, uint64(urw), exoerr.InvalidArgument},
		{"not user", 0, testVA, uint64(exo.PTEPresent | exo.PTEWritable), exoerr.InvalidArgument},
		{"not present", 0, testVA, uint64(exo.PTEUser), exoerr.InvalidArgument},
		{"cache disable", 0, testVA, uint64(urw | exo.PTECacheDisable), exoerr.InvalidArgument},
		{"unknown env", 0x7ff, testVA, uint64(urw), exoerr.BadTarget},
		{"perm high bits", 0, testVA, uint64(urw) | 1<<32, exoerr.InvalidArgument},
		{"env id high bits", 1 << 32, testVA, uint64(urw), exoerr.BadTarget},
		{"avail bits", 0, testVA, uint64(urw | exo.PTEShare | exo.PTECOW), nil},
	} {
		t.Run(tc.name, func(t *testing.T) {
			k := newKernel(t, kernel.InitKernelArgs{})
			var (
				err    error
				mapped bool
			)
			spawn(t, k, func(t *kernel.Task) {
				err = sys(t, exo.SysPageAlloc, tc.env, uint64(tc.va), tc.perm)
				_, mapped = t.VPT(tc.va)
			})
			run(t, k)
			if err != tc.want {
				t.Errorf("page_alloc(%v, %v, %v) = %v, want %v", tc.env, tc.va, tc.perm, err, tc.want)
			}
			if mapped != (tc.want == nil) {
				t.Errorf("mapped = %t after page_alloc returned %v", mapped, err)
			}
		})
	}
}

func TestPageAllocNoMemory(t *testing.T) {
	// Text, stack and their two tables.
	mf, err := pgalloc.NewMemoryFile(6)
	if err != nil {
		t.Fatalf("NewMemoryFile failed: %v", err)
	}
	k := newKernel(t, kernel.InitKernelArgs{MemoryFile: mf})
	var errs []error
	var mapped []bool
	spawn(t, k, func(t *kernel.Task) {
		// The first allocation needs a new table: two frames.
		for _, va := range []hostarch.Addr{testVA, testVA + hostarch.PageSize, testVA + 2*hostarch.PageSize} {
			errs = append(errs, sys(t, exo.SysPageAlloc, 0, uint64(va), uint64(urw)))
			_, ok := t.VPT(va)
			mapped = append(mapped, ok)
		}
	})
	run(t, k)
	want := []error{nil, exoerr.NoMemory, exoerr.NoMemory}
	for i := range want {
		if errs[i] != want[i] {
			t.Errorf("page_alloc %d = %v, want %v", i, errs[i], want[i])
		}
		if mapped[i] != (want[i] == nil) {
			t.Errorf("page %d mapped = %t, want %t", i, mapped[i], want[i] == nil)
		}
	}
	if got := mf.Allocated(); got != 0 {
		t.Errorf("Allocated() = %d after exit, want 0", got)
	}
}

func TestPageAllocTableExhaustion(t *testing.T) {
	// Room for one more frame: the page fits, its table does not.
	mf, err := pgalloc.NewMemoryFile(5)
	if err != nil {
		t.Fatalf("NewMemoryFile failed: %v", err)
	}
	k := newKernel(t, kernel.InitKernelArgs{MemoryFile: mf})
	var (
		rerr   error
		mapped bool
		tables bool
	)
	spawn(t, k, func(t *kernel.Task) {
		rerr = sys(t, exo.SysPageAlloc, 0, uint64(testVA), uint64(urw))
		_, mapped = t.VPT(testVA)
		tables = t.VPD(testVA)
	})
	run(t, k)
	if rerr != exoerr.NoMemory {
		t.Errorf("page_alloc = %v, want %v", rerr, exoerr.NoMemory)
	}
	if mapped || tables {
		t.Errorf("failed page_alloc left state behind: mapped %t, table %t", mapped, tables)
	}
}

func TestPageMap(t *testing.T) {
	k := newKernel(t, kernel.InitKernelArgs{})
	const dstVA = testVA + 0x10000
	var (
		err  error
		got  []byte
		perm exo.PTEFlags
	)
	spawn(t, k, func(t *kernel.Task) {
		sys(t, exo.SysPageAlloc, 0, uint64(testVA), uint64(urw))
		t.CopyOut(testVA, []byte("shared"))
		err = sys(t, exo.SysPageMap, 0, uint64(testVA), 0, uint64(dstVA), uint64(ur))
		got = make([]byte, 6)
		t.CopyIn(dstVA, got)
		perm, _ = t.VPT(dstVA)
	})
	run(t, k)
	if err != nil {
		t.Fatalf("page_map failed: %v", err)
	}
	if string(got) != "shared" {
		t.Errorf("mapped page holds %q, want %q", got, "shared")
	}
	if perm != ur {
		t.Errorf("perm = %v, want %v", perm, ur)
	}
}

func TestPageMapErrors(t *testing.T) {
	const roVA = testVA + hostarch.PageSize
	for _, tc := range []struct {
		name  string
		srcva hostarch.Addr
		dstva hostarch.Addr
		perm  uint64
		want  error
	}{
		{"unmapped source", testVA + 0x100000, testVA + 0x10000, uint64(ur), exoerr.InvalidArgument},
		{"write from read-only", roVA, testVA + 0x10000, uint64(urw), exoerr.InvalidArgument},
		{"read from read-only", roVA, testVA + 0x10000, uint64(ur), nil},
		{"source at UTOP", exo.UTOP, testVA + 0x10000, uint64(ur), exoerr.InvalidArgument},
		{"unaligned destination", testVA, testVA + 0x10008, uint64(ur), exoerr.InvalidArgument},
		{"destination at UTOP", testVA, exo.UTOP, uint64(ur), exoerr.InvalidArgument},
		{"bad perm", testVA, testVA + 0x10000, uint64(urw | exo.PTEGlobal), exoerr.InvalidArgument},
		{"perm high bits", testVA, testVA + 0x10000, uint64(ur) | 1<<32, exoerr.InvalidArgument},
	} {
		t.Run(tc.name, func(t *testing.T) {
			k := newKernel(t, kernel.InitKernelArgs{})
			var err error
			spawn(t, k, func(t *kernel.Task) {
				sys(t, exo.SysPageAlloc, 0, uint64(testVA), uint64(urw))
				sys(t, exo.SysPageAlloc, 0, uint64(roVA), uint64(ur))
				err = sys(t, exo.SysPageMap, 0, uint64(tc.srcva), 0, uint64(tc.dstva), tc.perm)
			})
			run(t, k)
			if err != tc.want {
				t.Errorf("page_map(%v -> %v, %v) = %v, want %v", tc.srcva, tc.dstva, tc.perm, err, tc.want)
			}
		})
	}
}

func TestPageMapBadTarget(t *testing.T) {
	k := newKernel(t, kernel.InitKernelArgs{})
	var errs [2]error
	other := spawn(t, k, func(t *kernel.Task) {
		sys(t, exo.SysPageAlloc, 0, uint64(testVA), uint64(urw))
		sys(t, exo.SysYield)
	})
	spawn(t, k, func(t *kernel.Task) {
		sys(t, exo.SysPageAlloc, 0, uint64(testVA), uint64(urw))
		// Neither side may name an environment that is not the caller or
		// its child.
		errs[0] = sys(t, exo.SysPageMap, uint64(other), uint64(testVA), 0, uint64(testVA), uint64(ur))
		errs[1] = sys(t, exo.SysPageMap, 0, uint64(testVA), uint64(other), uint64(testVA), uint64(ur))
	})
	run(t, k)
	for i, err := range errs {
		if err != exoerr.BadTarget {
			t.Errorf("page_map %d = %v, want %v", i, err, exoerr.BadTarget)
		}
	}
}

func TestPageUnmap(t *testing.T) {
	k := newKernel(t, kernel.InitKernelArgs{})
	var (
		errs   []error
		mapped bool
	)
	spawn(t, k, func(t *kernel.Task) {
		sys(t, exo.SysPageAlloc, 0, uint64(testVA), uint64(urw))
		errs = append(errs,
			sys(t, exo.SysPageUnmap, 0, uint64(testVA)),
			sys(t, exo.SysPageUnmap, 0, uint64(testVA)),
			sys(t, exo.SysPageUnmap, 0, uint64(testVA+3)),
			sys(t, exo.SysPageUnmap, 0, uint64(exo.UTOP)))
		_, mapped = t.VPT(testVA)
	})
	run(t, k)
	want := []error{nil, nil, exoerr.InvalidArgument, exoerr.InvalidArgument}
	for i := range want {
		if errs[i] != want[i] {
			t.Errorf("page_unmap %d = %v, want %v", i, errs[i], want[i])
		}
	}
	if mapped {
		t.Errorf("page still mapped after page_unmap")
	}
}
