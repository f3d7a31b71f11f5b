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
	"exo.dev/exo/pkg/kernel"
	"exo.dev/exo/pkg/libos"
)

func init() {
	register(Workload{
		Name:     "forktree",
		Synopsis: "fork a binary tree of environments",
		New: func(p Params) kernel.Program {
			return func(t *kernel.Task) {
				forktree(t, p, "")
			}
		},
	})
}

func forktree(t *kernel.Task, p Params, cur string) {
	libos.Printf(t, "%v: I am '%s'\n", libos.ThisEnv(t), cur)
	forkchild(t, p, cur, '0')
	forkchild(t, p, cur, '1')
}

func forkchild(t *kernel.Task, p Params, cur string, branch byte) {
	if len(cur) >= p.Depth {
		return
	}
	nxt := cur + string(branch)
	p.fork(t, func(t *kernel.Task) {
		forktree(t, p, nxt)
	})
}
