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

// Offset is a byte displacement from the start of a Segment. It is the only
// address form that may be stored inside the segment itself: two processes
// that map the same segment at different base addresses compute different
// pointers for the same Offset, but agree on the Offset.
type Offset uint64

// AddrToOffset translates a pointer inside the segment's mapped region into
// an Offset relative to the segment's base. A nil addr maps to the zero
// Offset, mirroring addr_to_offset's NULL special case.
func (s *Segment) AddrToOffset(addr unsafe.Pointer) Offset {
	if addr == nil {
		return 0
	}
	return Offset(uintptr(addr) - s.base)
}

// OffsetToAddr translates an Offset back into a pointer valid in the calling
// process. The zero Offset maps back to nil.
func (s *Segment) OffsetToAddr(off Offset) unsafe.Pointer {
	if off == 0 {
		return nil
	}
	return unsafe.Pointer(s.base + uintptr(off))
}

// AddrToOffset translates addr using the process-wide segment published by Init.
func AddrToOffset(addr unsafe.Pointer) Offset {
	return Current().AddrToOffset(addr)
}

// OffsetToAddr translates off using the process-wide segment published by Init.
func OffsetToAddr(off Offset) unsafe.Pointer {
	return Current().OffsetToAddr(off)
}
