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

// Package shmmgr implements a buddy-system allocator over a single
// shared-memory segment that multiple OS processes map at independent base
// addresses. Chunks are addressed by their offset from the start of the
// segment rather than by pointer, so the free lists, chunk headers and
// segment header stay valid no matter where the segment lands in a given
// process's address space.
package shmmgr
