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
	"testing"

	"exo.dev/exo/pkg/abi/exo"
)

func TestTable(t *testing.T) {
	table := testSyscallTable()

	// Go through all functions and check that they are set.
	for i := uint64(0); i < uint64(exo.NumSyscalls); i++ {
		s := table.Lookup(i)
		if s == nil || s.Fn == nil {
			t.Errorf("Syscall %v is set to nil", exo.Sysno(i))
			continue
		}
		if s.Name != exo.Sysno(i).String() {
			t.Errorf("Syscall %d is named %q, want %q", i, s.Name, exo.Sysno(i))
		}
	}

	// Check that values outside the range return nil.
	for i := uint64(exo.NumSyscalls); i < uint64(exo.NumSyscalls)+100; i++ {
		if s := table.Lookup(i); s != nil {
			t.Errorf("Syscall %v is not nil: %v", i, s.Name)
		}
	}
}

func TestTableMustBeExhaustive(t *testing.T) {
	m := map[exo.Sysno]Syscall{
		exo.SysYield: {Name: "yield", Fn: nop},
	}
	defer func() {
		if recover() == nil {
			t.Errorf("NewSyscallTable accepted a partial table")
		}
	}()
	NewSyscallTable(m)
}

func TestTableRejectsUnknown(t *testing.T) {
	m := make(map[exo.Sysno]Syscall)
	for s := exo.Sysno(0); s <= exo.NumSyscalls; s++ {
		m[s] = Syscall{Name: s.String(), Fn: nop}
	}
	defer func() {
		if recover() == nil {
			t.Errorf("NewSyscallTable accepted an unknown sysno")
		}
	}()
	NewSyscallTable(m)
}

func TestBatchablePolicy(t *testing.T) {
	var p BatchPolicy
	if err := p.Set("REPORT"); err != nil || p != BatchReport {
		t.Errorf("Set(REPORT) = %v, policy %v", err, p)
	}
	if err := p.Set("ignore"); err == nil {
		t.Errorf("Set(ignore) succeeded")
	}
	if got := BatchAbort.String(); got != "abort" {
		t.Errorf("String() = %q, want abort", got)
	}
}

func TestArgumentNarrowing(t *testing.T) {
	for _, tc := range []struct {
		value  uint64
		id     exo.EnvID
		idOK   bool
		permOK bool
	}{
		{value: 0, id: 0, idOK: true, permOK: true},
		{value: 0x1007, id: 0x1007, idOK: true, permOK: true},
		{value: ^uint64(0), id: -1, idOK: true, permOK: false},
		{value: 1 << 31, idOK: false, permOK: true},
		{value: 1 << 32, idOK: false, permOK: false},
		{value: 0x7 | 1<<32, idOK: false, permOK: false},
	} {
		a := SyscallArgument{Value: tc.value}
		if id, ok := a.EnvID(); ok != tc.idOK || (ok && id != tc.id) {
			t.Errorf("EnvID(%#x) = %v, %t, want %v, %t", tc.value, id, ok, tc.id, tc.idOK)
		}
		if _, ok := a.Perm(); ok != tc.permOK {
			t.Errorf("Perm(%#x) ok = %t, want %t", tc.value, ok, tc.permOK)
		}
		if _, ok := a.Status(); ok != tc.permOK {
			t.Errorf("Status(%#x) ok = %t, want %t", tc.value, ok, tc.permOK)
		}
	}
}

func BenchmarkTableLookup(b *testing.B) {
	table := testSyscallTable()

	b.ResetTimer()

	j := uint64(0)
	for i := 0; i < b.N; i++ {
		table.Lookup(j)
		j = (j + 1) % uint64(exo.NumSyscalls)
	}
}
