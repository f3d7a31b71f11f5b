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
	"exo.dev/exo/pkg/abi/exo"
	"exo.dev/exo/pkg/errors/exoerr"
	"exo.dev/exo/pkg/kernel"
)

// Batch implements the exo syscall batch. It runs count records read from
// va, in order, through the system call table and returns count.
//
// Only page and status operations may be batched. What happens when a
// record fails depends on the kernel's batch policy: under
// kernel.BatchAbort the caller is destroyed, under kernel.BatchReport the
// call returns the record's error with its index in the auxiliary result
// register. Records before the failing one stay applied either way.
func Batch(t *kernel.Task, args kernel.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	va := args[0].Pointer()
	count := args[1].Uint64()
	if count > exo.MaxBatch {
		return 0, nil, exoerr.InvalidArgument
	}
	buf, err := t.ReadUserMem(va, count*exo.BatchRecordSize)
	if err != nil {
		return 0, t.Kill("user_mem_check assertion failure for va %v", va), nil
	}

	for i, rec := range exo.UnmarshalBatch(buf) {
		var rargs kernel.SyscallArguments
		for j, a := range rec.Args {
			rargs[j].Value = a
		}
		_, ctrl, err := t.ExecuteBatched(rec.Sysno, rargs)
		if ctrl == kernel.CtrlDoExit {
			return 0, ctrl, nil
		}
		if err == nil {
			continue
		}
		if t.Kernel().BatchPolicy() == kernel.BatchAbort {
			return 0, t.Kill("batch record %d (%v) failed: %v", i, exo.Sysno(rec.Sysno), err), nil
		}
		t.Env().TrapFrame().Regs.Aux = uint64(i)
		return 0, nil, err
	}
	return uintptr(count), nil, nil
}
