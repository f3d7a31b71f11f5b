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
	"exo.dev/exo/pkg/kernel"
)

// Cputs implements the exo syscall cputs. It writes len bytes at va to the
// console. The caller is destroyed if the buffer is not readable.
func Cputs(t *kernel.Task, args kernel.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	va := args[0].Pointer()
	n := args[1].Uint64()
	buf, err := t.ReadUserMem(va, n)
	if err != nil {
		return 0, t.Kill("user_mem_check assertion failure for va %v", va), nil
	}
	t.Kernel().ConsoleWrite(buf)
	return 0, nil, nil
}

// Cgetc implements the exo syscall cgetc. It does not block; 0 means no
// input is waiting.
func Cgetc(t *kernel.Task, args kernel.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	return uintptr(t.Kernel().ConsoleGetc()), nil, nil
}
