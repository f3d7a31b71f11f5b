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
	"context"
	"strings"
	"testing"

	"exo.dev/exo/pkg/abi/exo"
	"exo.dev/exo/pkg/errors/exoerr"
	"exo.dev/exo/pkg/kernel"
	"exo.dev/exo/pkg/log"
	"exo.dev/exo/pkg/pgalloc"
	"github.com/google/go-cmp/cmp"
)

const (
	ur  = exo.PTEPresent | exo.PTEUser
	urw = exo.PTEPresent | exo.PTEUser | exo.PTEWritable
)

// newKernel returns a kernel running Table. Unset fields of args get small
// defaults.
func newKernel(t *testing.T, args kernel.InitKernelArgs) *kernel.Kernel {
	t.Helper()
	if args.MemoryFile == nil {
		mf, err := pgalloc.NewMemoryFile(256)
		if err != nil {
			t.Fatalf("NewMemoryFile failed: %v", err)
		}
		args.MemoryFile = mf
	}
	if args.MaxEnvs == 0 {
		args.MaxEnvs = 16
	}
	args.SyscallTable = Table
	k, err := kernel.New(args)
	if err != nil {
		t.Fatalf("kernel.New failed: %v", err)
	}
	return k
}

func spawn(t *testing.T, k *kernel.Kernel, prog kernel.Program) exo.EnvID {
	t.Helper()
	id, err := k.Spawn(t.Name(), prog)
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	return id
}

func run(t *testing.T, k *kernel.Kernel) {
	t.Helper()
	if err := k.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
}

// cmpErrors compares errors by identity.
var cmpErrors = cmp.Comparer(func(a, b error) bool { return a == b })

// sys makes a system call with up to five arguments and returns its error.
func sys(t *kernel.Task, sysno exo.Sysno, args ...uint64) error {
	var a [5]uint64
	copy(a[:], args)
	return exoerr.FromReturn(t.Syscall(sysno, a[0], a[1], a[2], a[3], a[4]))
}

// exofork creates a child of t that runs prog once it is made runnable.
func exofork(t *kernel.Task, prog kernel.Program) exo.EnvID {
	t.SetPC(t.Kernel().Text().RegisterProgram("", prog))
	return exo.EnvID(t.Syscall(exo.SysExofork, 0, 0, 0, 0, 0))
}

func TestTable(t *testing.T) {
	batchable := map[exo.Sysno]bool{
		exo.SysCputs:               true,
		exo.SysPageAlloc:           true,
		exo.SysPageMap:             true,
		exo.SysPageUnmap:           true,
		exo.SysEnvSetStatus:        true,
		exo.SysEnvSetPgfaultUpcall: true,
	}
	got := make(map[exo.Sysno]bool)
	for s := exo.Sysno(0); s < exo.NumSyscalls; s++ {
		sc := Table.Lookup(uint64(s))
		if sc == nil {
			t.Fatalf("Lookup(%d) = nil", s)
		}
		if sc.Name != s.String() {
			t.Errorf("Lookup(%d).Name = %q, want %q", s, sc.Name, s.String())
		}
		if sc.Batchable {
			got[s] = true
		}
	}
	if diff := cmp.Diff(batchable, got); diff != "" {
		t.Errorf("batchable syscalls mismatch (-want +got):\n%s", diff)
	}
	if sc := Table.Lookup(uint64(exo.NumSyscalls)); sc != nil {
		t.Errorf("Lookup(NumSyscalls) = %+v, want nil", sc)
	}
}

func TestStrace(t *testing.T) {
	var buf bytes.Buffer
	old := log.Log()
	log.SetTarget(&log.Writer{Next: &buf})
	level := old.Level
	log.SetLevel(log.Info)
	defer func() {
		log.SetTarget(old.Emitter)
		log.SetLevel(level)
	}()

	k := newKernel(t, kernel.InitKernelArgs{Strace: true})
	spawn(t, k, func(t *kernel.Task) {
		sys(t, exo.SysGetenvid)
		sys(t, exo.SysPageUnmap, 0, 1)
	})
	run(t, k)

	for _, want := range []string{"X getenvid(", "E page_unmap(0x0, 0x1,"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("trace lacks %q:\n%s", want, buf.String())
		}
	}
}
