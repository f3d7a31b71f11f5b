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

package refs

import (
	"sync"
	"testing"
)

type counted struct {
	AtomicRefCount
	destroyed int
}

func (c *counted) DecRef() {
	c.DecRefWithDestructor(func() { c.destroyed++ })
}

var _ RefCounter = (*counted)(nil)

func TestZeroValueHoldsOneReference(t *testing.T) {
	var c counted
	if got := c.ReadRefs(); got != 1 {
		t.Fatalf("ReadRefs() = %d, want 1", got)
	}
	c.DecRef()
	if c.destroyed != 1 {
		t.Errorf("destructor ran %d times, want 1", c.destroyed)
	}
}

func TestIncDec(t *testing.T) {
	var c counted
	c.IncRef()
	c.IncRef()
	if got := c.ReadRefs(); got != 3 {
		t.Fatalf("ReadRefs() = %d, want 3", got)
	}
	c.DecRef()
	c.DecRef()
	if c.destroyed != 0 {
		t.Fatalf("destroyed with references outstanding")
	}
	c.DecRef()
	if c.destroyed != 1 {
		t.Errorf("destructor ran %d times, want 1", c.destroyed)
	}
}

func TestTryIncRefAfterDestroy(t *testing.T) {
	var c counted
	if !c.TryIncRef() {
		t.Fatalf("TryIncRef failed on live object")
	}
	c.DecRef()
	c.DecRef()
	if c.TryIncRef() {
		t.Errorf("TryIncRef succeeded on destroyed object")
	}
	if got := c.ReadRefs(); got != 0 {
		t.Errorf("ReadRefs() = %d, want 0", got)
	}
}

func TestDecRefUnderflowPanics(t *testing.T) {
	var c counted
	c.DecRef()
	defer func() {
		if recover() == nil {
			t.Errorf("second DecRef did not panic")
		}
	}()
	c.DecRef()
}

func TestConcurrentRefs(t *testing.T) {
	var c counted
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.IncRef()
				c.DecRef()
			}
		}()
	}
	wg.Wait()
	if got := c.ReadRefs(); got != 1 || c.destroyed != 0 {
		t.Errorf("ReadRefs() = %d, destroyed = %d, want 1, 0", got, c.destroyed)
	}
}
