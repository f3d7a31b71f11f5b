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
	"exo.dev/exo/pkg/hostarch"
	"exo.dev/exo/pkg/kernel"
)

// cowUpcallName names the copy-on-write fault upcall in the text registry.
const cowUpcallName = "libos.pgfault"

// SetPgfaultHandler makes upcall the fault upcall of the calling
// environment. The first call also maps the exception stack.
func SetPgfaultHandler(t *kernel.Task, upcall hostarch.Addr) error {
	s := state(t)
	if !s.XStack {
		if err := PageAlloc(t, 0, exo.UXSTACKTOP-hostarch.PageSize, urw); err != nil {
			return fmt.Errorf("mapping exception stack: %w", err)
		}
		s.XStack = true
	}
	if err := EnvSetPgfaultUpcall(t, 0, upcall); err != nil {
		return err
	}
	s.PgfaultUpcall = upcall
	return nil
}

// COWUpcall returns the text address of the copy-on-write fault upcall.
func COWUpcall(t *kernel.Task) hostarch.Addr {
	return t.Kernel().Text().RegisterUpcall(cowUpcallName, pgfault)
}

// pgfault gives the faulting environment a private, writable copy of a
// copy-on-write page. Any other fault is fatal.
func pgfault(t *kernel.Task, utf exo.UTrapframe) {
	va := hostarch.Addr(utf.FaultVA)
	perm, ok := t.VPT(va)
	if utf.Err&exo.FECWrite == 0 || !ok || perm&exo.PTECOW == 0 {
		panic(fmt.Sprintf("pgfault: va %v err %#x perm %v: not a copy-on-write fault", va, utf.Err, perm))
	}

	page := va.RoundDown()
	if err := PageAlloc(t, 0, exo.PFTEMP, urw); err != nil {
		panic(fmt.Sprintf("pgfault: page_alloc: %v", err))
	}
	buf := make([]byte, hostarch.PageSize)
	t.CopyIn(page, buf)
	t.CopyOut(exo.PFTEMP, buf)
	if err := PageMap(t, 0, exo.PFTEMP, 0, page, urw); err != nil {
		panic(fmt.Sprintf("pgfault: page_map: %v", err))
	}
	if err := PageUnmap(t, 0, exo.PFTEMP); err != nil {
		panic(fmt.Sprintf("pgfault: page_unmap: %v", err))
	}
}
