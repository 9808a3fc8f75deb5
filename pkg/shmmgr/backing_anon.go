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

	"golang.org/x/sys/unix"
)

// anonBacking maps anonymous shared memory. It is reachable only within the
// process that created it (and its forked children), so it is mainly useful
// for tests that want the real mmap/buddy code paths without a filesystem
// or SysV IPC footprint.
type anonBacking struct {
	buf []byte
}

func newAnonBacking(size int64) (*anonBacking, error) {
	buf, err := unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("anonymous mmap of %d bytes failed: %w", size, err)
	}
	return &anonBacking{buf: buf}, nil
}

func (b *anonBacking) Bytes() []byte { return b.buf }

func (b *anonBacking) OSID() int64 { return -1 }

func (b *anonBacking) Close() error {
	return unix.Munmap(b.buf)
}
