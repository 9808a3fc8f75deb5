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

import "unsafe"

const (
	// minClassBits is the smallest chunk size class, 64 bytes.
	minClassBits = 6
	// maxClassBits is the largest chunk size class, 2 gigabytes.
	maxClassBits = 31
	minChunkSize = 1 << minClassBits
	maxChunkSize = 1 << maxClassBits
	numClasses   = maxClassBits + 1
)

// chunkHeader prefixes every chunk in the segment, active or free. Go lays
// out mclass/active in the first word and pads list to an 8-byte boundary,
// so the header is 24 bytes wide; Alloc/Free hand callers a pointer to
// list, not to the header, recovering the header with a fixed negative
// displacement the same way shmmgr_alloc's container_of does.
type chunkHeader struct {
	mclass uint8
	active bool
	_      [6]byte
	list   Link
}

var chunkListOffset = unsafe.Offsetof(chunkHeader{}.list)

// chunkFromList recovers the chunkHeader that owns l.
func chunkFromList(l *Link) *chunkHeader {
	return (*chunkHeader)(unsafe.Pointer(uintptr(unsafe.Pointer(l)) - chunkListOffset))
}

// chunkAt overlays a chunkHeader on the segment at the given offset.
func (s *Segment) chunkAt(off Offset) *chunkHeader {
	return (*chunkHeader)(s.OffsetToAddr(off))
}
