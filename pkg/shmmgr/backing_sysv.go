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

	"github.com/solarisdb/solaris/golibs/errors"
)

// sysvBacking maps a System V shared memory segment, the OS interface the
// original design used directly. Init creates the segment and marks it for
// removal immediately, the same shmget+shmat+shmctl(IPC_RMID) sequence
// shmmgr_init used, so the kernel reclaims it once the last attacher detaches
// regardless of how the bootstrapping process exits.
type sysvBacking struct {
	shmid int
	buf   []byte
}

func newSysvBacking(opts Options, size int64, create bool) (*sysvBacking, error) {
	if create {
		flags := 0600 | unix.IPC_CREAT | unix.IPC_EXCL
		if opts.HugePage {
			flags |= unix.SHM_HUGETLB
		}
		shmid, err := unix.SysvShmGet(unix.IPC_PRIVATE, int(size), flags)
		if err != nil {
			return nil, fmt.Errorf("shmget(size=%d) failed: %w", size, err)
		}

		buf, attachErr := unix.SysvShmAttach(shmid, 0, 0)
		// Mark for removal immediately so the segment is reclaimed once the
		// last attacher detaches, even if this attach itself failed.
		_, _ = unix.SysvShmCtl(shmid, unix.IPC_RMID, nil)
		if attachErr != nil {
			return nil, fmt.Errorf("shmat(shmid=%d) failed: %w", shmid, attachErr)
		}
		return &sysvBacking{shmid: shmid, buf: buf}, nil
	}

	if opts.ShmID == 0 {
		return nil, fmt.Errorf("attaching to a SysV segment requires ShmID: %w", errors.ErrInvalid)
	}
	buf, err := unix.SysvShmAttach(opts.ShmID, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("shmat(shmid=%d) failed: %w", opts.ShmID, err)
	}
	return &sysvBacking{shmid: opts.ShmID, buf: buf}, nil
}

func (b *sysvBacking) Bytes() []byte { return b.buf }

func (b *sysvBacking) OSID() int64 { return int64(b.shmid) }

func (b *sysvBacking) Close() error {
	return unix.SysvShmDetach(b.buf)
}
