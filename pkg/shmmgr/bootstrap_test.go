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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarisdb/solaris/golibs/errors"
)

func TestInitRejectsNonPositiveSize(t *testing.T) {
	defer func() { current.Store(nil) }()
	_, err := Init(Options{Size: 0, Backing: BackingAnonymous})
	assert.ErrorIs(t, err, errors.ErrInvalid)
}

func TestInitRejectsOversizedSegment(t *testing.T) {
	defer func() { current.Store(nil) }()
	_, err := Init(Options{Size: int64(maxChunkSize) + 1, Backing: BackingAnonymous})
	assert.ErrorIs(t, err, errors.ErrInvalid)
}

func TestInitRunsBufferManagerHook(t *testing.T) {
	var gotSize int64
	seg, err := Init(Options{
		Size:    1 << 16,
		Backing: BackingAnonymous,
		BufferManagerInit: func(size int64) error {
			gotSize = size
			return nil
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = seg.Close() })

	assert.Equal(t, seg.Size(), gotSize)
}

func TestInitPropagatesBufferManagerHookFailure(t *testing.T) {
	defer func() { current.Store(nil) }()
	_, err := Init(Options{
		Size:              1 << 16,
		Backing:           BackingAnonymous,
		BufferManagerInit: func(int64) error { return assert.AnError },
	})
	assert.ErrorIs(t, err, assert.AnError)
}

func TestAttachRejectsUnbootstrappedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "segment.bin")
	_, err := Attach(Options{Backing: BackingFile, Path: path})
	require.Error(t, err)
}

func TestFileBackedSegmentSurvivesTwoIndependentAttachments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "segment.bin")

	seg1, err := Init(Options{Size: 1 << 16, Backing: BackingFile, Path: path})
	require.NoError(t, err)
	t.Cleanup(func() { _ = seg1.Close() })

	// A second mapping of the same file stands in for a second OS process
	// attaching to the same segment: it gets its own base address, but the
	// same offsets must resolve to the corresponding bytes in both mappings.
	seg2, err := Attach(Options{Backing: BackingFile, Path: path})
	require.NoError(t, err)
	t.Cleanup(func() { _ = seg2.Close() })

	assert.NotEqual(t, seg1.base, seg2.base, "the two mappings should land at different addresses")
	assert.Equal(t, seg1.ID(), seg2.ID())
	assert.Equal(t, seg1.Size(), seg2.Size())

	ptr, err := seg1.Alloc(128)
	require.NoError(t, err)
	off := seg1.AddrToOffset(ptr)

	// The chunk allocated through seg1 must be visible, at the same offset,
	// through seg2's independent mapping.
	addrViaSeg2 := seg2.OffsetToAddr(off)
	*(*byte)(addrViaSeg2) = 0x42
	assert.Equal(t, byte(0x42), *(*byte)(seg1.OffsetToAddr(off)))

	require.NoError(t, seg1.Free(ptr))
}

func TestSegmentIDIsStableAcrossAttachments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "segment.bin")
	seg1, err := Init(Options{Size: 1 << 16, Backing: BackingFile, Path: path})
	require.NoError(t, err)
	t.Cleanup(func() { _ = seg1.Close() })

	seg2, err := Attach(Options{Backing: BackingFile, Path: path})
	require.NoError(t, err)
	defer seg2.Close()

	assert.NotEmpty(t, seg1.ID())
	assert.Equal(t, seg1.ID(), seg2.ID())
}

func TestCurrentPanicsBeforeInit(t *testing.T) {
	current.Store(nil)
	assert.Panics(t, func() { Current() })
}
