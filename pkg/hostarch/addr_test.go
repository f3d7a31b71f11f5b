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

package hostarch

import "testing"

func TestRounding(t *testing.T) {
	for _, tc := range []struct {
		addr    Addr
		down    Addr
		up      Addr
		upOK    bool
		aligned bool
	}{
		{0, 0, 0, true, true},
		{1, 0, PageSize, true, false},
		{PageSize, PageSize, PageSize, true, true},
		{PageSize + 7, PageSize, 2 * PageSize, true, false},
		{^Addr(0), ^Addr(PageSize - 1), 0, false, false},
	} {
		if got := tc.addr.RoundDown(); got != tc.down {
			t.Errorf("%v.RoundDown() = %v, want %v", tc.addr, got, tc.down)
		}
		up, ok := tc.addr.RoundUp()
		if ok != tc.upOK || (ok && up != tc.up) {
			t.Errorf("%v.RoundUp() = (%v, %t), want (%v, %t)", tc.addr, up, ok, tc.up, tc.upOK)
		}
		if got := tc.addr.IsPageAligned(); got != tc.aligned {
			t.Errorf("%v.IsPageAligned() = %t, want %t", tc.addr, got, tc.aligned)
		}
	}
}

func TestPageNumber(t *testing.T) {
	va := Addr(0x00803123)
	pn := va.PageNumber()
	if pn != 0x803 {
		t.Fatalf("PageNumber(%v) = %#x, want 0x803", va, pn)
	}
	if got := pn.Addr(); got != 0x00803000 {
		t.Errorf("Addr() = %v, want 0x803000", got)
	}
	if got := pn.Directory(); got != 2 {
		t.Errorf("Directory() = %d, want 2", got)
	}
}

func TestAddLength(t *testing.T) {
	if end, ok := Addr(PageSize).AddLength(PageSize); !ok || end != 2*PageSize {
		t.Errorf("AddLength = (%v, %t), want (%v, true)", end, ok, Addr(2*PageSize))
	}
	if _, ok := (^Addr(0)).AddLength(2); ok {
		t.Errorf("AddLength overflow not detected")
	}
}
