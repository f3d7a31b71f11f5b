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

package workload

import (
	"fmt"

	"exo.dev/exo/pkg/abi/exo"
	"exo.dev/exo/pkg/hostarch"
	"exo.dev/exo/pkg/kernel"
	"exo.dev/exo/pkg/libos"
)

// dataVA is where the checks place their page.
const dataVA = hostarch.Addr(0x10000000)

const (
	original = "original"
	byChild  = "by child"
	byParent = "by parent"
)

func init() {
	register(Workload{
		Name:     "cowcheck",
		Synopsis: "check that forked writes stay private",
		New: func(p Params) kernel.Program {
			return func(t *kernel.Task) {
				pageCheck(t, p, "cowcheck", exo.PTEPresent|exo.PTEUser|exo.PTEWritable)
			}
		},
	})
	register(Workload{
		Name:     "sharecheck",
		Synopsis: "check that a shared page is visible across fork",
		New: func(p Params) kernel.Program {
			return func(t *kernel.Task) {
				pageCheck(t, p, "sharecheck", exo.PTEPresent|exo.PTEUser|exo.PTEWritable|exo.PTEShare)
			}
		},
	})
}

// pageCheck writes a page, forks, and lets the child overwrite it. The child
// reports when it is done over IPC. With PTEShare the parent must see the
// child's write, without it the parent must see its own.
func pageCheck(t *kernel.Task, p Params, name string, perm exo.PTEFlags) {
	shared := perm&exo.PTEShare != 0
	if err := libos.PageAlloc(t, 0, dataVA, perm); err != nil {
		panic(err)
	}
	put(t, original)

	parent := libos.ThisEnv(t)
	p.fork(t, func(t *kernel.Task) {
		if got := get(t); got != original {
			panic(fmt.Sprintf("%s: child sees %q before writing", name, got))
		}
		put(t, byChild)
		if got := get(t); got != byChild {
			panic(fmt.Sprintf("%s: child sees %q after writing", name, got))
		}
		libos.Printf(t, "%s: child ok\n", name)
		send(t, parent, 1)
	})

	if !shared {
		put(t, byParent)
	}
	recv(t)

	want := byParent
	if shared {
		want = byChild
	}
	if got := get(t); got != want {
		panic(fmt.Sprintf("%s: parent sees %q, want %q", name, got, want))
	}
	libos.Printf(t, "%s: ok\n", name)
}

func put(t *kernel.Task, s string) {
	b := make([]byte, len(original)+len(byParent))
	copy(b, s)
	t.CopyOut(dataVA, b)
}

func get(t *kernel.Task) string {
	b := make([]byte, len(original)+len(byParent))
	t.CopyIn(dataVA, b)
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
