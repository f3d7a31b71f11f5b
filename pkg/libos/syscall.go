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
	"exo.dev/exo/pkg/abi/exo"
	"exo.dev/exo/pkg/errors/exoerr"
	"exo.dev/exo/pkg/hostarch"
	"exo.dev/exo/pkg/kernel"
)

func syscall(t *kernel.Task, sysno exo.Sysno, a1, a2, a3, a4, a5 uint64) (int64, error) {
	r := t.Syscall(sysno, a1, a2, a3, a4, a5)
	return r, exoerr.FromReturn(r)
}

// Cputs writes n bytes at va to the console.
func Cputs(t *kernel.Task, va hostarch.Addr, n uint64) {
	syscall(t, exo.SysCputs, uint64(va), n, 0, 0, 0)
}

// Cgetc returns the next console character, or 0 if none is waiting.
func Cgetc(t *kernel.Task) byte {
	r, _ := syscall(t, exo.SysCgetc, 0, 0, 0, 0, 0)
	return byte(r)
}

// Getenvid returns the id of the calling environment.
func Getenvid(t *kernel.Task) exo.EnvID {
	r, _ := syscall(t, exo.SysGetenvid, 0, 0, 0, 0, 0)
	return exo.EnvID(r)
}

// EnvDestroy destroys the environment id.
func EnvDestroy(t *kernel.Task, id exo.EnvID) error {
	_, err := syscall(t, exo.SysEnvDestroy, uint64(id), 0, 0, 0, 0)
	return err
}

// PageAlloc maps a zeroed page at va in environment id.
func PageAlloc(t *kernel.Task, id exo.EnvID, va hostarch.Addr, perm exo.PTEFlags) error {
	_, err := syscall(t, exo.SysPageAlloc, uint64(id), uint64(va), uint64(perm), 0, 0)
	return err
}

// PageMap maps the page at srcva in srcid at dstva in dstid.
func PageMap(t *kernel.Task, srcid exo.EnvID, srcva hostarch.Addr, dstid exo.EnvID, dstva hostarch.Addr, perm exo.PTEFlags) error {
	_, err := syscall(t, exo.SysPageMap, uint64(srcid), uint64(srcva), uint64(dstid), uint64(dstva), uint64(perm))
	return err
}

// PageUnmap removes the mapping at va in environment id.
func PageUnmap(t *kernel.Task, id exo.EnvID, va hostarch.Addr) error {
	_, err := syscall(t, exo.SysPageUnmap, uint64(id), uint64(va), 0, 0, 0)
	return err
}

// Exofork creates a blank child environment that resumes at the caller's
// recorded program counter. It returns the child's id.
func Exofork(t *kernel.Task) (exo.EnvID, error) {
	r, err := syscall(t, exo.SysExofork, 0, 0, 0, 0, 0)
	return exo.EnvID(r), err
}

// EnvSetStatus sets the scheduling state of environment id.
func EnvSetStatus(t *kernel.Task, id exo.EnvID, status exo.Status) error {
	_, err := syscall(t, exo.SysEnvSetStatus, uint64(id), uint64(status), 0, 0, 0)
	return err
}

// EnvSetTrapframe sets the frame of environment id to the one encoded at va.
func EnvSetTrapframe(t *kernel.Task, id exo.EnvID, va hostarch.Addr) error {
	_, err := syscall(t, exo.SysEnvSetTrapframe, uint64(id), uint64(va), 0, 0, 0)
	return err
}

// EnvSetPgfaultUpcall sets the fault upcall of environment id.
func EnvSetPgfaultUpcall(t *kernel.Task, id exo.EnvID, upcall hostarch.Addr) error {
	_, err := syscall(t, exo.SysEnvSetPgfaultUpcall, uint64(id), uint64(upcall), 0, 0, 0)
	return err
}

// Yield gives up the CPU.
func Yield(t *kernel.Task) {
	syscall(t, exo.SysYield, 0, 0, 0, 0, 0)
}

// IpcTrySend makes one attempt to send value, and the page at srcva if it
// is below exo.UTOP, to environment id.
func IpcTrySend(t *kernel.Task, id exo.EnvID, value uint64, srcva hostarch.Addr, perm exo.PTEFlags) error {
	_, err := syscall(t, exo.SysIpcTrySend, uint64(id), value, uint64(srcva), uint64(perm), 0)
	return err
}

func ipcRecv(t *kernel.Task, dstva hostarch.Addr) error {
	_, err := syscall(t, exo.SysIpcRecv, uint64(dstva), 0, 0, 0, 0)
	return err
}

func batch(t *kernel.Task, va hostarch.Addr, count int) (int, error) {
	r, err := syscall(t, exo.SysBatch, uint64(va), uint64(count), 0, 0, 0)
	return int(r), err
}

// SetTrapframe stages tf on the caller's stack and installs it as the frame
// of environment id.
func SetTrapframe(t *kernel.Task, id exo.EnvID, tf *exo.TrapFrame) error {
	va := exo.USTACKTOP - printBufSize - exo.TrapFrameSize
	t.CopyOut(va, tf.Marshal(nil))
	return EnvSetTrapframe(t, id, va)
}
