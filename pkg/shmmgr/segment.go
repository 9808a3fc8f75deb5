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
	"unsafe"

	"github.com/solarisdb/solaris/golibs/errors"
	"github.com/solarisdb/solaris/golibs/logging"
)

// Segment is a live attachment to a shared-memory region carved into buddy
// chunks. Every process that calls Attach (or Init, which attaches and
// bootstraps) gets its own Segment value with its own base address, but all
// of them observe the same segmentHeader and chunk contents because
// everything but base is addressed by Offset.
type Segment struct {
	base    uintptr
	hdr     *segmentHeader
	mu      *ProcessMutex
	backing Backing
	logger  logging.Logger
}

// ID returns the segment's stable diagnostic identifier.
func (s *Segment) ID() string {
	return s.hdr.id.String()
}

// Size returns the total size in bytes of the segment, including its header.
func (s *Segment) Size() int64 {
	return s.hdr.segSize
}

func attachSegment(b Backing) (*Segment, error) {
	buf := b.Bytes()
	if len(buf) < int(unsafe.Sizeof(segmentHeader{})) {
		return nil, fmt.Errorf("backing region of %d bytes is too small for a segment header: %w", len(buf), errors.ErrInvalid)
	}
	s := &Segment{
		base:    uintptr(unsafe.Pointer(&buf[0])),
		backing: b,
		logger:  logging.NewLogger("shmmgr.Segment"),
	}
	s.hdr = (*segmentHeader)(unsafe.Pointer(&buf[0]))
	mu, err := NewProcessMutex(unsafe.Pointer(&s.hdr.lockWord))
	if err != nil {
		return nil, err
	}
	s.mu = mu
	return s, nil
}
