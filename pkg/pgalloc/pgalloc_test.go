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

package pgalloc

import (
	"errors"
	"testing"

	"exo.dev/exo/pkg/errors/exoerr"
)

func newMemoryFile(t *testing.T, frames uint32) *MemoryFile {
	t.Helper()
	mf, err := NewMemoryFile(frames)
	if err != nil {
		t.Fatalf("NewMemoryFile(%d) failed: %v", frames, err)
	}
	return mf
}

func TestAcquireExhaustion(t *testing.T) {
	mf := newMemoryFile(t, 3)
	var frames []*Frame
	for i := 0; i < 3; i++ {
		f, err := mf.Acquire(true)
		if err != nil {
			t.Fatalf("Acquire #%d failed: %v", i, err)
		}
		frames = append(frames, f)
	}
	if _, err := mf.Acquire(true); !errors.Is(err, exoerr.NoMemory) {
		t.Fatalf("Acquire on full file = %v, want %v", err, exoerr.NoMemory)
	}
	if got := mf.Allocated(); got != 3 {
		t.Errorf("Allocated() = %d, want 3", got)
	}

	frames[1].DecRef()
	f, err := mf.Acquire(false)
	if err != nil {
		t.Fatalf("Acquire after release failed: %v", err)
	}
	if f.Index() != 1 {
		t.Errorf("reacquired frame index %d, want 1", f.Index())
	}
}

func TestZeroFill(t *testing.T) {
	mf := newMemoryFile(t, 1)
	f, err := mf.Acquire(true)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	copy(f.Data(), "dirty")
	f.DecRef()

	// Without zeroing the previous contents survive.
	f, err = mf.Acquire(false)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if got := string(f.Data()[:5]); got != "dirty" {
		t.Errorf("unzeroed frame holds %q, want %q", got, "dirty")
	}
	f.DecRef()

	f, err = mf.Acquire(true)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	for i, b := range f.Data() {
		if b != 0 {
			t.Fatalf("byte %d of zeroed frame is %#x", i, b)
		}
	}
}

func TestSharedFrameReleasedOnLastRef(t *testing.T) {
	mf := newMemoryFile(t, 2)
	f, err := mf.Acquire(true)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	f.IncRef()
	f.IncRef()
	f.DecRef()
	f.DecRef()
	if got := mf.Allocated(); got != 1 {
		t.Fatalf("Allocated() = %d with a reference outstanding, want 1", got)
	}
	f.DecRef()
	if got := mf.Allocated(); got != 0 {
		t.Errorf("Allocated() = %d after last DecRef, want 0", got)
	}
}

func TestNewMemoryFileEmpty(t *testing.T) {
	if _, err := NewMemoryFile(0); err == nil {
		t.Errorf("NewMemoryFile(0) succeeded")
	}
}
