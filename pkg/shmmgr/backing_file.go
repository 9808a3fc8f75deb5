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
	"os"

	"github.com/solarisdb/solaris/golibs/files"
)

// fileBacking maps a regular file via golibs/files.MMFile, the same
// open/grow/map discipline the teacher uses for its own memory-mapped
// regions: two processes share a segment by mapping the same path rather
// than by SysV shmid.
type fileBacking struct {
	mmf *files.MMFile
	buf []byte
}

func newFileBacking(path string, size int64, create bool) (*fileBacking, error) {
	minSize := int64(-1)
	if create {
		if err := touchFile(path); err != nil {
			return nil, fmt.Errorf("could not create backing file %s: %w", path, err)
		}
		minSize = roundUpBlockSize(size)
	}

	mmf, err := files.NewMMFile(path, minSize)
	if err != nil {
		return nil, fmt.Errorf("could not map backing file %s: %w", path, err)
	}

	buf, err := mmf.Buffer(0, int(mmf.Size()))
	if err != nil {
		_ = mmf.Close()
		return nil, fmt.Errorf("could not access mapped buffer for %s: %w", path, err)
	}
	return &fileBacking{mmf: mmf, buf: buf}, nil
}

// touchFile creates path if it does not already exist, so NewMMFile (which
// only opens existing files) has something to stat and map.
func touchFile(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return err
	}
	return f.Close()
}

// roundUpBlockSize rounds size up to the next multiple of files.BlockSize,
// which NewMMFile requires of the minSize it is asked to map.
func roundUpBlockSize(size int64) int64 {
	if size <= 0 {
		return files.BlockSize
	}
	if rem := size % files.BlockSize; rem != 0 {
		size += files.BlockSize - rem
	}
	return size
}

func (b *fileBacking) Bytes() []byte { return b.buf }

func (b *fileBacking) OSID() int64 { return -1 }

func (b *fileBacking) Close() error {
	return b.mmf.Close()
}
