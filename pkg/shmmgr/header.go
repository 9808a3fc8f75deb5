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

import "github.com/oklog/ulid/v2"

// headerMagic marks a segment header written by Init, so Init can tell a
// freshly-zeroed backing (new segment) from one that is already live
// (double-bootstrap), and Attach can refuse a backing Init never wrote.
const headerMagic uint64 = 0x736d6772303031 // "smgr001"

// segmentHeader sits at offset 0 of every segment this package bootstraps.
// It is the shmhead_t of the original design, with an OS-agnostic ULID
// added so a segment keeps a stable identity across OS id reuse.
type segmentHeader struct {
	magic     uint64
	id        ulid.ULID
	osID      int64
	segSize   int64
	lockWord  uint32
	_         [4]byte
	freeList  [numClasses]Link
	numActive [numClasses]int32
	numFree   [numClasses]int32
}
