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
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
)

func testSegment(t *testing.T, base uintptr) *Segment {
	t.Helper()
	return &Segment{base: base}
}

func TestAddrToOffsetRoundTrip(t *testing.T) {
	buf := make([]byte, 256)
	s := testSegment(t, uintptr(unsafe.Pointer(&buf[0])))

	for _, idx := range []int{0, 1, 64, 255} {
		addr := unsafe.Pointer(&buf[idx])
		off := s.AddrToOffset(addr)
		assert.Equal(t, Offset(idx), off)
		if idx == 0 {
			// The segment base has Offset 0, which is also the nil Offset.
			assert.Nil(t, s.OffsetToAddr(off))
			continue
		}
		assert.Equal(t, addr, s.OffsetToAddr(off))
	}
}

func TestAddrToOffsetNil(t *testing.T) {
	buf := make([]byte, 16)
	s := testSegment(t, uintptr(unsafe.Pointer(&buf[0])))

	assert.Equal(t, Offset(0), s.AddrToOffset(nil))
	assert.Nil(t, s.OffsetToAddr(0))
}

func TestAddrToOffsetDifferentBases(t *testing.T) {
	// Two independent buffers standing in for the same segment mapped at two
	// different base addresses in two processes: the same relative Offset
	// must resolve to the distinct, correct address in each.
	bufA := make([]byte, 256)
	bufB := make([]byte, 256)
	sa := testSegment(t, uintptr(unsafe.Pointer(&bufA[0])))
	sb := testSegment(t, uintptr(unsafe.Pointer(&bufB[0])))

	off := sa.AddrToOffset(unsafe.Pointer(&bufA[100]))
	assert.Equal(t, unsafe.Pointer(&bufB[100]), sb.OffsetToAddr(off))
}
