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

// Link is an intrusive node of a doubly-linked ring list addressed by
// Offset instead of pointer, so the list survives being mapped at a
// different base address in every attaching process. An empty list is a
// self-loop: Next and Prev both point back at the Link itself.
type Link struct {
	Next Offset
	Prev Offset
}

func (s *Segment) linkOffset(l *Link) Offset {
	return s.AddrToOffset(unsafe.Pointer(l))
}

func (s *Segment) linkAt(off Offset) *Link {
	return (*Link)(s.OffsetToAddr(off))
}

// listInit makes l an empty list.
func (s *Segment) listInit(l *Link) {
	off := s.linkOffset(l)
	l.Next = off
	l.Prev = off
}

// listEmpty reports whether l is an empty list (or bare sentinel).
func (s *Segment) listEmpty(l *Link) bool {
	return l.Next == s.linkOffset(l)
}

// listAdd inserts l as the new head of the list rooted at base, giving
// LIFO ordering when base is a free-list head: the most recently freed
// chunk of a class is the first one handed back out.
func (s *Segment) listAdd(base, l *Link) {
	n := s.linkAt(base.Next)
	base.Next = s.linkOffset(l)
	l.Prev = s.linkOffset(base)
	l.Next = s.linkOffset(n)
	n.Prev = s.linkOffset(l)
}

// listDel removes l from whatever list it is linked into and re-initializes
// it as an empty list, so a second listDel on the same node is a no-op.
func (s *Segment) listDel(l *Link) {
	p := s.linkAt(l.Prev)
	n := s.linkAt(l.Next)
	p.Next = s.linkOffset(n)
	n.Prev = s.linkOffset(p)
	s.listInit(l)
}
