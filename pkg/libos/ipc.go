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
	"errors"

	"exo.dev/exo/pkg/abi/exo"
	"exo.dev/exo/pkg/errors/exoerr"
	"exo.dev/exo/pkg/hostarch"
	"exo.dev/exo/pkg/kernel"
	"github.com/cenkalti/backoff"
)

// NoPage, passed as a page address to IPCSend or IPCRecv, means no page is
// sent or wanted.
const NoPage = exo.UTOP

// IPCSend sends value, and the page at srcva with perm unless srcva is
// NoPage, to environment to. It yields and tries again while the receiver
// is not waiting, at most IPCSendRetries times if that is set.
func IPCSend(t *kernel.Task, to exo.EnvID, value uint64, srcva hostarch.Addr, perm exo.PTEFlags) error {
	op := func() error {
		err := IpcTrySend(t, to, value, srcva, perm)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, exoerr.NotReceiving):
			Yield(t)
			return err
		default:
			return backoff.Permanent(err)
		}
	}

	var b backoff.BackOff = &backoff.ZeroBackOff{}
	if n := state(t).IPCSendRetries; n > 0 {
		b = backoff.WithMaxRetries(b, n)
	}
	return backoff.Retry(op, backoff.WithContext(b, t.Context()))
}

// IPCRecv waits for a message and returns its value, its sender and the
// permission of the page mapped at dstva, or 0 if none was. Pass NoPage as
// dstva to refuse pages.
func IPCRecv(t *kernel.Task, dstva hostarch.Addr) (value uint64, from exo.EnvID, perm exo.PTEFlags, err error) {
	if err := ipcRecv(t, dstva); err != nil {
		return 0, 0, 0, err
	}
	ipc := t.IPC()
	return ipc.Value, ipc.From, ipc.Perm, nil
}
