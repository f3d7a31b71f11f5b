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
	"testing"

	"exo.dev/exo/pkg/abi/exo"
	"exo.dev/exo/pkg/errors/exoerr"
	"exo.dev/exo/pkg/hostarch"
	"exo.dev/exo/pkg/kernel"
	"github.com/google/go-cmp/cmp"
)

// received is what a receiver observed after ipc_recv returned.
type received struct {
	Err   error
	Ret   uint64
	IPC   kernel.IPCState
	Perm  exo.PTEFlags
	Bytes string
}

// receiver returns a program that receives one message at dstva and
// records it in r.
func receiver(dstva hostarch.Addr, r *received) kernel.Program {
	return func(t *kernel.Task) {
		r.Err = sys(t, exo.SysIpcRecv, uint64(dstva))
		r.Ret = t.Regs().Ret
		r.IPC = t.IPC()
		if perm, ok := t.VPT(dstva); ok && dstva < exo.UTOP {
			r.Perm = perm
			b := make([]byte, 4)
			t.CopyIn(dstva, b)
			r.Bytes = string(b)
		}
	}
}

func TestIpcValue(t *testing.T) {
	k := newKernel(t, kernel.InitKernelArgs{})
	var r received
	var err error
	rid := spawn(t, k, receiver(exo.UTOP, &r))
	sid := spawn(t, k, func(t *kernel.Task) {
		err = sys(t, exo.SysIpcTrySend, uint64(rid), 42, uint64(exo.UTOP), 0)
	})
	run(t, k)
	if err != nil {
		t.Fatalf("ipc_try_send failed: %v", err)
	}
	want := received{IPC: kernel.IPCState{DstVA: exo.UTOP, Value: 42, From: sid}}
	if diff := cmp.Diff(want, r, cmpErrors); diff != "" {
		t.Errorf("receiver mismatch (-want +got):\n%s", diff)
	}
}

func TestIpcPageTransfer(t *testing.T) {
	const dstva = testVA + 0x40000
	for _, tc := range []struct {
		name  string
		dstva hostarch.Addr
		want  received
	}{
		{
			name:  "wanted",
			dstva: dstva,
			want: received{
				IPC:   kernel.IPCState{DstVA: dstva, Value: 7, Perm: ur},
				Perm:  ur,
				Bytes: "ping",
			},
		},
		{
			name:  "not wanted",
			dstva: exo.UTOP,
			want: received{
				IPC: kernel.IPCState{DstVA: exo.UTOP, Value: 7},
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			k := newKernel(t, kernel.InitKernelArgs{})
			var r received
			var err error
			rid := spawn(t, k, receiver(tc.dstva, &r))
			sid := spawn(t, k, func(t *kernel.Task) {
				sys(t, exo.SysPageAlloc, 0, uint64(testVA), uint64(urw))
				t.CopyOut(testVA, []byte("ping"))
				err = sys(t, exo.SysIpcTrySend, uint64(rid), 7, uint64(testVA), uint64(ur))
			})
			run(t, k)
			if err != nil {
				t.Fatalf("ipc_try_send failed: %v", err)
			}
			tc.want.IPC.From = sid
			if diff := cmp.Diff(tc.want, r, cmpErrors); diff != "" {
				t.Errorf("receiver mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestIpcNotReceiving(t *testing.T) {
	k := newKernel(t, kernel.InitKernelArgs{})
	var (
		err    error
		before kernel.IPCState
		after  kernel.IPCState
	)
	idle := spawn(t, k, func(t *kernel.Task) {
		before = t.IPC()
		sys(t, exo.SysYield)
		after = t.IPC()
	})
	spawn(t, k, func(t *kernel.Task) {
		err = sys(t, exo.SysIpcTrySend, uint64(idle), 1, uint64(exo.UTOP), 0)
	})
	run(t, k)
	if err != exoerr.NotReceiving {
		t.Errorf("ipc_try_send = %v, want %v", err, exoerr.NotReceiving)
	}
	if diff := cmp.Diff(before, after); diff != "" {
		t.Errorf("IPC state changed by a failed send (-before +after):\n%s", diff)
	}
}

func TestIpcSendErrors(t *testing.T) {
	const (
		roVA  = testVA + hostarch.PageSize
		dstva = testVA + 0x40000
	)
	for _, tc := range []struct {
		name  string
		to    exo.EnvID
		srcva hostarch.Addr
		perm  exo.PTEFlags
		want  error
	}{
		{"bad env", 0x7ff, exo.UTOP, 0, exoerr.BadTarget},
		{"unaligned", 0, testVA + 8, ur, exoerr.InvalidArgument},
		{"unmapped", 0, testVA + 0x100000, ur, exoerr.InvalidArgument},
		{"bad perm", 0, testVA, urw | exo.PTEDirty, exoerr.InvalidArgument},
		{"missing user", 0, testVA, exo.PTEPresent, exoerr.InvalidArgument},
		{"write from read-only", 0, roVA, urw, exoerr.InvalidArgument},
	} {
		t.Run(tc.name, func(t *testing.T) {
			k := newKernel(t, kernel.InitKernelArgs{})
			var (
				err    error
				state  kernel.IPCState
				mapped bool
				r      received
			)
			rid := spawn(t, k, receiver(dstva, &r))
			spawn(t, k, func(t *kernel.Task) {
				sys(t, exo.SysPageAlloc, 0, uint64(testVA), uint64(urw))
				sys(t, exo.SysPageAlloc, 0, uint64(roVA), uint64(ur))
				to := tc.to
				if to == 0 {
					to = rid
				}
				err = sys(t, exo.SysIpcTrySend, uint64(to), 9, uint64(tc.srcva), uint64(tc.perm))
				t.Kernel().Inspect(func(envs *kernel.EnvTable) {
					e := envs.Get(rid)
					state = *e.IPC()
					_, mapped = e.PageTables().Lookup(dstva)
				})
				// Release the receiver.
				sys(t, exo.SysIpcTrySend, uint64(rid), 1, uint64(exo.UTOP), 0)
			})
			run(t, k)
			if err != tc.want {
				t.Errorf("ipc_try_send = %v, want %v", err, tc.want)
			}
			if want := (kernel.IPCState{Recving: true, DstVA: dstva}); state != want {
				t.Errorf("receiver state after failed send = %+v, want %+v", state, want)
			}
			if mapped {
				t.Errorf("failed send mapped a page in the receiver")
			}
		})
	}
}

func TestIpcRacingSenders(t *testing.T) {
	k := newKernel(t, kernel.InitKernelArgs{})
	var r received
	errs := make([]error, 2)
	rid := spawn(t, k, receiver(exo.UTOP, &r))
	var senders [2]exo.EnvID
	for i := range senders {
		senders[i] = spawn(t, k, func(t *kernel.Task) {
			errs[i] = sys(t, exo.SysIpcTrySend, uint64(rid), uint64(100+i), uint64(exo.UTOP), 0)
		})
	}
	run(t, k)
	if diff := cmp.Diff([]error{nil, exoerr.NotReceiving}, errs, cmpErrors); diff != "" {
		t.Errorf("send results mismatch (-want +got):\n%s", diff)
	}
	if r.IPC.Value != 100 || r.IPC.From != senders[0] {
		t.Errorf("received value %d from %v, want 100 from %v", r.IPC.Value, r.IPC.From, senders[0])
	}
}

func TestIpcRecvUnaligned(t *testing.T) {
	k := newKernel(t, kernel.InitKernelArgs{})
	var err error
	var recving bool
	spawn(t, k, func(t *kernel.Task) {
		err = sys(t, exo.SysIpcRecv, uint64(testVA+1))
		recving = t.IPC().Recving
	})
	run(t, k)
	if err != exoerr.InvalidArgument {
		t.Errorf("ipc_recv = %v, want %v", err, exoerr.InvalidArgument)
	}
	if recving {
		t.Errorf("failed ipc_recv left the caller receiving")
	}
}
