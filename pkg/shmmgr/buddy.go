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
	"unsafe"

	"github.com/solarisdb/solaris/golibs/errors"
)

// Alloc reserves a chunk able to hold size bytes and returns a pointer to the
// chunk header's list field, right after its class and active bytes — the
// same contract shmmgr_alloc gives. The returned pointer is
// only valid in the calling process; store it inside the segment by first
// translating it with Segment.AddrToOffset.
func (s *Segment) Alloc(size int) (unsafe.Pointer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("alloc size must be positive: %w", errors.ErrInvalid)
	}

	mclass := bits.Len64(uint64(size) + uint64(chunkListOffset) - 1)
	if mclass > maxClassBits {
		return nil, fmt.Errorf("requested size %d exceeds the largest chunk class: %w", size, errors.ErrExhausted)
	}
	if mclass < minClassBits {
		mclass = minClassBits
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listEmpty(&s.hdr.freeList[mclass]) {
		if !s.split(mclass + 1) {
			s.logger.Warnf("alloc of %d bytes (class %d) exhausted the segment", size, mclass)
			return nil, errors.ErrExhausted
		}
	}

	l := s.linkAt(s.hdr.freeList[mclass].Next)
	chunk := chunkFromList(l)
	if int(chunk.mclass) != mclass {
		return nil, fmt.Errorf("free list class %d held a class-%d chunk: %w", mclass, chunk.mclass, errors.ErrInternal)
	}

	s.listDel(&chunk.list)
	s.hdr.numFree[mclass]--
	s.hdr.numActive[mclass]++
	chunk.active = true

	s.logger.Tracef("alloc: class=%d offset=%d", mclass, s.AddrToOffset(unsafe.Pointer(chunk)))
	return unsafe.Pointer(&chunk.list), nil
}

// split tries to make a free chunk of class mclass available by recursively
// splitting a larger free chunk in half. The caller must already hold the segment lock.
func (s *Segment) split(mclass int) bool {
	if mclass < minClassBits || mclass > maxClassBits {
		return false
	}
	if s.listEmpty(&s.hdr.freeList[mclass]) {
		if mclass == maxClassBits {
			return false
		}
		if !s.split(mclass + 1) {
			return false
		}
	}

	l := s.linkAt(s.hdr.freeList[mclass].Next)
	chunk1 := chunkFromList(l)
	if int(chunk1.mclass) != mclass {
		return false
	}

	s.listDel(&chunk1.list)
	s.hdr.numFree[mclass]--

	offset := s.AddrToOffset(unsafe.Pointer(chunk1))
	lower := mclass - 1
	chunk2 := s.chunkAt(offset + Offset(1<<uint(lower)))

	chunk1.mclass, chunk2.mclass = uint8(lower), uint8(lower)
	chunk1.active, chunk2.active = false, false

	s.listAdd(&s.hdr.freeList[lower], &chunk1.list)
	s.listAdd(&s.hdr.freeList[lower], &chunk2.list)
	s.hdr.numFree[lower] += 2

	return true
}

// Free returns a chunk previously returned by Alloc, coalescing it with its
// buddy on every call as long as the buddy is also free and of the same
// class — the eager coalescing shmmgr_free performs, not a deferred pass run
// only when memory is tight.
func (s *Segment) Free(addr unsafe.Pointer) error {
	if addr == nil {
		return fmt.Errorf("cannot free a nil pointer: %w", errors.ErrInvalid)
	}

	chunk := chunkFromList((*Link)(addr))
	mclass := int(chunk.mclass)

	s.mu.Lock()
	defer s.mu.Unlock()

	chunk.active = false
	s.hdr.numActive[mclass]--

	offset := s.AddrToOffset(unsafe.Pointer(chunk))
	hdrSize := Offset(unsafe.Sizeof(segmentHeader{}))

	for mclass < maxClassBits {
		bit := Offset(1 << uint(mclass))
		var buddyOffset Offset
		if offset&bit != 0 {
			buddyOffset = offset &^ bit
		} else {
			buddyOffset = offset | bit
		}

		// A buddy inside the header is never a real chunk: stop coalescing.
		if buddyOffset < hdrSize {
			break
		}
		buddy := s.chunkAt(buddyOffset)
		if buddy.active || int(buddy.mclass) != mclass {
			break
		}

		s.listDel(&buddy.list)
		s.hdr.numFree[mclass]--

		mclass++
		offset &^= Offset(1<<uint(mclass)) - 1
		chunk = s.chunkAt(offset)
		chunk.mclass = uint8(mclass)
		chunk.active = false
	}

	s.listAdd(&s.hdr.freeList[mclass], &chunk.list)
	s.hdr.numFree[mclass]++

	s.logger.Tracef("free: class=%d offset=%d", mclass, offset)
	return nil
}
