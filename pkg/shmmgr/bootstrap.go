// Copyright 2023 The acquirecloud Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package shmmgr

import (
	"fmt"
	"math/bits"
	"sync/atomic"
	"unsafe"

	"github.com/solarisdb/solaris/golibs/errors"
	"github.com/solarisdb/solaris/golibs/ulidutils"
)

// BackingKind selects how Init/Attach acquire the bytes backing a segment.
type BackingKind int

const (
	// BackingSysV maps a System V shared memory segment, the OS interface
	// the original design used directly.
	BackingSysV BackingKind = iota
	// BackingFile maps a regular file; two processes share the segment by
	// mapping the same path. It needs no SysV IPC, so it also works in
	// sandboxes where SysV shared memory is unavailable. The segment lock
	// is the futex-based ProcessMutex for every backing, so the package
	// still builds only on Linux.
	BackingFile
	// BackingAnonymous maps anonymous shared memory, reachable only by
	// descendants of the mapping process; useful for tests that want real
	// mmap semantics without a filesystem footprint.
	BackingAnonymous
)

// Options configures Init and Attach.
type Options struct {
	// Size is the total segment size in bytes, including the header; it is
	// rounded down to a multiple of the minimum chunk size. Only consulted by Init.
	Size int64
	// HugePage requests huge-page backed shared memory where the backing supports it.
	HugePage bool
	// Backing selects which OS mechanism provides the segment's bytes.
	Backing BackingKind
	// Path is the backing file path, required when Backing is BackingFile.
	Path string
	// ShmID identifies an existing System V segment to Attach to; ignored by Init.
	ShmID int
	// BufferManagerInit, if set, is invoked once Init carves the segment and
	// before Init returns, letting a higher-level buffer manager claim its
	// own region of the segment. A nil hook is a no-op.
	BufferManagerInit func(size int64) error
}

// DefaultOptions returns Options for a 64MiB SysV-backed segment.
func DefaultOptions() Options {
	return Options{Size: 64 << 20, Backing: BackingSysV}
}

// Backing supplies the raw bytes a Segment is overlaid onto.
type Backing interface {
	// Bytes returns the mapped region. Its address is stable for the
	// lifetime of the Backing.
	Bytes() []byte
	// OSID returns a backing-specific numeric identifier (a SysV shmid, or
	// -1 when the backing has none), recorded in the segment header for diagnostics.
	OSID() int64
	// Close unmaps/releases the backing.
	Close() error
}

var current atomic.Pointer[Segment]

// Current returns the process-wide segment published by Init. It panics if
// no segment has been published, since every caller of the package-level
// AddrToOffset/OffsetToAddr helpers is expected to have bootstrapped a
// segment first. Attach does not publish the Segment it returns.
func Current() *Segment {
	s := current.Load()
	if s == nil {
		panic("shmmgr: no segment initialized; call Init first")
	}
	return s
}

// Init bootstraps a brand-new segment: it acquires the backing, lays down
// the segment header, seeds the initial free-chunk list, initializes the
// segment lock, runs the buffer-manager hook, and publishes the segment as
// the process-wide singleton returned by Current. Init fails with
// errors.ErrExist if a segment has already been initialized in this process,
// or if the backing already holds a bootstrapped segment header.
func Init(opts Options) (*Segment, error) {
	placeholder := &Segment{}
	if !current.CompareAndSwap(nil, placeholder) {
		return nil, fmt.Errorf("segment already initialized in this process: %w", errors.ErrExist)
	}

	size := opts.Size
	if size <= 0 {
		current.Store(nil)
		return nil, fmt.Errorf("segment size must be positive: %w", errors.ErrInvalid)
	}
	if size > maxChunkSize {
		current.Store(nil)
		return nil, fmt.Errorf("segment size %d exceeds the largest class (%d): %w", size, int64(maxChunkSize), errors.ErrInvalid)
	}
	size -= size % minChunkSize

	b, err := newBacking(opts, size, true)
	if err != nil {
		current.Store(nil)
		return nil, err
	}

	s, err := attachSegment(b)
	if err != nil {
		_ = b.Close()
		current.Store(nil)
		return nil, err
	}
	if s.hdr.magic == headerMagic {
		_ = b.Close()
		current.Store(nil)
		return nil, fmt.Errorf("backing already holds a bootstrapped segment: %w", errors.ErrExist)
	}

	s.hdr.magic = headerMagic
	s.hdr.id = ulidutils.New()
	s.hdr.osID = b.OSID()
	s.hdr.segSize = size
	s.hdr.lockWord = mutexUnlocked

	for c := 0; c < numClasses; c++ {
		s.listInit(&s.hdr.freeList[c])
	}
	seedFreeList(s, size)

	if opts.BufferManagerInit != nil {
		if err := opts.BufferManagerInit(size); err != nil {
			_ = b.Close()
			current.Store(nil)
			return nil, fmt.Errorf("buffer manager init failed: %w", err)
		}
	}

	s.logger.Infof("segment %s bootstrapped: size=%d osID=%d", s.ID(), size, s.hdr.osID)
	current.Store(s)
	return s, nil
}

// Attach maps an already-bootstrapped segment — the SysV shmid or file path
// printed by the process that called Init — and returns a Segment over it
// without touching its contents. It fails with errors.ErrInvalid if the
// backing's header magic doesn't match, which usually means the backing
// hasn't been bootstrapped yet.
func Attach(opts Options) (*Segment, error) {
	b, err := newBacking(opts, 0, false)
	if err != nil {
		return nil, err
	}
	s, err := attachSegment(b)
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	if s.hdr.magic != headerMagic {
		_ = b.Close()
		return nil, fmt.Errorf("backing is not a bootstrapped shmmgr segment: %w", errors.ErrInvalid)
	}
	return s, nil
}

func newBacking(opts Options, createSize int64, create bool) (Backing, error) {
	switch opts.Backing {
	case BackingFile:
		if opts.Path == "" {
			return nil, fmt.Errorf("file backing requires Path: %w", errors.ErrInvalid)
		}
		return newFileBacking(opts.Path, createSize, create)
	case BackingAnonymous:
		if !create {
			return nil, fmt.Errorf("anonymous backing cannot be attached to from another process: %w", errors.ErrInvalid)
		}
		return newAnonBacking(createSize)
	case BackingSysV:
		return newSysvBacking(opts, createSize, create)
	default:
		return nil, fmt.Errorf("unknown backing kind %d: %w", opts.Backing, errors.ErrInvalid)
	}
}

// Close releases the segment's backing. Once closed, the Segment must not be used.
func (s *Segment) Close() error {
	if current.Load() == s {
		current.Store(nil)
	}
	if s.backing == nil {
		return nil
	}
	err := s.backing.Close()
	s.backing = nil
	return err
}

// seedFreeList replicates shmmgr_init's alignment-driven seeding loop: it
// carves the region after the header into free chunks, picking each chunk's
// class from the number of trailing zero bits in its offset, so every
// chunk's start address is maximally aligned for its own size. That
// alignment is what makes the XOR-the-class-bit buddy computation in Free correct.
func seedFreeList(s *Segment, segSize int64) {
	hdrSize := int64(unsafe.Sizeof(segmentHeader{}))
	offset := int64(1) << uint(bits.Len64(uint64(hdrSize))+1)
	if offset < minChunkSize {
		offset = minChunkSize
	}

	for segSize-offset >= minChunkSize {
		mclass := bits.TrailingZeros64(uint64(offset))
		if mclass > maxClassBits {
			mclass = maxClassBits
		}
		for segSize < offset+(1<<uint(mclass)) {
			mclass--
		}
		if mclass < minClassBits {
			break
		}

		chunk := s.chunkAt(Offset(offset))
		chunk.mclass = uint8(mclass)
		chunk.active = false
		s.listAdd(&s.hdr.freeList[mclass], &chunk.list)
		s.hdr.numFree[mclass]++

		offset += 1 << uint(mclass)
	}
}
