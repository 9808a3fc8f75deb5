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
	"io"
	"strings"
)

// Dump renders seg's size and per-class active/free counts, the same shape
// shmmgr_dump printed. It is a diagnostic aid, not a stable interface: the
// exact text may change between versions.
func Dump(seg *Segment) string {
	var sb strings.Builder
	_ = DumpTo(&sb, seg)
	return sb.String()
}

// DumpTo writes Dump's text to w.
func DumpTo(w io.Writer, seg *Segment) error {
	seg.mu.Lock()
	defer seg.mu.Unlock()

	if _, err := fmt.Fprintf(w, "segment %s size: %d\n", seg.ID(), seg.hdr.segSize); err != nil {
		return err
	}

	var totalActive, totalFree int64
	for mclass := minClassBits; mclass <= maxClassBits; mclass++ {
		active := seg.hdr.numActive[mclass]
		free := seg.hdr.numFree[mclass]
		if active == 0 && free == 0 {
			continue
		}
		totalActive += int64(active) << uint(mclass)
		totalFree += int64(free) << uint(mclass)
		if _, err := fmt.Fprintf(w, "%10s: %6d used, %6d free\n", classLabel(mclass), active, free); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "total active: %d\ntotal free:   %d\ntotal size:   %d\n", totalActive, totalFree, totalActive+totalFree)
	return err
}

func classLabel(mclass int) string {
	switch {
	case mclass < 10:
		return fmt.Sprintf("%dB", 1<<uint(mclass))
	case mclass < 20:
		return fmt.Sprintf("%dKB", 1<<uint(mclass-10))
	case mclass < 30:
		return fmt.Sprintf("%dMB", 1<<uint(mclass-20))
	default:
		return fmt.Sprintf("%dGB", 1<<uint(mclass-30))
	}
}

// LogDump writes Dump's text to seg's logger at Debug level.
func (s *Segment) LogDump() {
	s.logger.Debugf("%s", Dump(s))
}
