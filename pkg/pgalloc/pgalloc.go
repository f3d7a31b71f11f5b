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

// Package pgalloc contains the physical frame allocator of the simulated
// machine.
package pgalloc

import (
	"fmt"
	"sync"

	"exo.dev/exo/pkg/bitmap"
	"exo.dev/exo/pkg/errors/exoerr"
	"exo.dev/exo/pkg/hostarch"
	"exo.dev/exo/pkg/log"
	"exo.dev/exo/pkg/refs"
)

// Allocator hands out physical frames.
type Allocator interface {
	// Acquire returns a frame holding one reference, owned by the caller.
	// If zero is true the frame's contents are cleared. Acquire returns
	// exoerr.NoMemory when no frame is free.
	Acquire(zero bool) (*Frame, error)

	// Release returns f to the free pool. It is called by Frame.DecRef when
	// the last reference is dropped, and must not be called otherwise.
	Release(f *Frame)
}

// Frame is one physical page. Frames are reference counted: each mapping of
// the frame holds a reference, and the frame returns to its allocator when
// the last one is dropped.
type Frame struct {
	refs.AtomicRefCount

	owner Allocator
	index uint32
	data  []byte
}

// NewFrame returns a frame with the given index and contents, holding one
// reference and returned to owner on its final DecRef. It is used by
// Allocator implementations.
func NewFrame(owner Allocator, index uint32, data []byte) *Frame {
	if len(data) != hostarch.PageSize {
		panic(fmt.Sprintf("frame data is %d bytes, want %d", len(data), hostarch.PageSize))
	}
	return &Frame{owner: owner, index: index, data: data}
}

// Index returns the frame's physical page number.
func (f *Frame) Index() uint32 {
	return f.index
}

// Data returns the contents of the frame.
func (f *Frame) Data() []byte {
	return f.data
}

// DecRef implements refs.RefCounter.DecRef.
func (f *Frame) DecRef() {
	f.DecRefWithDestructor(func() {
		f.owner.Release(f)
	})
}

// String implements fmt.Stringer.String.
func (f *Frame) String() string {
	return fmt.Sprintf("frame#%d", f.index)
}

// MemoryFile is an Allocator backed by a fixed number of frames. Frame
// contents are allocated on first use and kept while the frame is free, so
// a frame acquired without zeroing carries whatever its previous owner left.
type MemoryFile struct {
	mu sync.Mutex

	// used has a bit set for every allocated frame.
	used bitmap.Bitmap

	// pages holds frame contents by index; nil until first acquired.
	pages [][]byte

	// hint is where the next search for a free frame starts.
	hint uint32
}

// NewMemoryFile returns a MemoryFile with the given number of frames.
func NewMemoryFile(frames uint32) (*MemoryFile, error) {
	if frames == 0 {
		return nil, fmt.Errorf("memory file must have at least one frame")
	}
	return &MemoryFile{
		used:  bitmap.New(frames),
		pages: make([][]byte, frames),
	}, nil
}

// Acquire implements Allocator.Acquire.
func (mf *MemoryFile) Acquire(zero bool) (*Frame, error) {
	mf.mu.Lock()
	defer mf.mu.Unlock()

	idx, err := mf.used.FirstZero(mf.hint)
	if err != nil && mf.hint != 0 {
		idx, err = mf.used.FirstZero(0)
	}
	if err != nil {
		log.Debugf("pgalloc: all %d frames in use", mf.used.Size())
		return nil, exoerr.NoMemory
	}
	mf.used.Add(idx)
	mf.hint = (idx + 1) % mf.used.Size()

	data := mf.pages[idx]
	switch {
	case data == nil:
		data = make([]byte, hostarch.PageSize)
		mf.pages[idx] = data
	case zero:
		clear(data)
	}
	return NewFrame(mf, idx, data), nil
}

// Release implements Allocator.Release.
func (mf *MemoryFile) Release(f *Frame) {
	mf.mu.Lock()
	defer mf.mu.Unlock()

	if f.owner != Allocator(mf) || !mf.used.Contains(f.index) {
		panic(fmt.Sprintf("release of unallocated %v", f))
	}
	mf.used.Remove(f.index)
}

// Allocated returns the number of frames in use.
func (mf *MemoryFile) Allocated() uint32 {
	mf.mu.Lock()
	defer mf.mu.Unlock()
	return mf.used.GetNumOnes()
}

// TotalFrames returns the number of frames managed by mf.
func (mf *MemoryFile) TotalFrames() uint32 {
	return mf.used.Size()
}
