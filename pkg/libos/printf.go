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
	"fmt"

	"exo.dev/exo/pkg/abi/exo"
	"exo.dev/exo/pkg/kernel"
)

// printBufSize is the size of the output buffer at the top of the user
// stack.
const printBufSize = 256

// Puts writes s to the console. The text is staged in user memory at the
// top of the stack, printBufSize bytes at a time.
func Puts(t *kernel.Task, s string) {
	va := exo.USTACKTOP - printBufSize
	for len(s) > 0 {
		n := min(len(s), printBufSize)
		t.CopyOut(va, []byte(s[:n]))
		Cputs(t, va, uint64(n))
		s = s[n:]
	}
}

// Printf formats according to a format specifier and writes the result to
// the console.
func Printf(t *kernel.Task, format string, v ...any) {
	Puts(t, fmt.Sprintf(format, v...))
}
