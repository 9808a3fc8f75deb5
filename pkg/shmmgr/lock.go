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

//go:build linux

package shmmgr

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/solarisdb/solaris/golibs/errors"
	gsync "github.com/solarisdb/solaris/golibs/sync"
)

const (
	mutexUnlocked  uint32 = 0
	mutexLocked    uint32 = 1
	mutexContended uint32 = 2

	futexPollInterval = 50 * time.Millisecond
)

// ProcessMutex is a futex-backed mutex over a uint32 word that can live
// inside a shared-memory segment. Any process that maps the segment and
// attaches a ProcessMutex to the same word contends on that word, the same
// guarantee pthread_mutex_t gives when initialized with
// pthread_mutexattr_setpshared(PTHREAD_PROCESS_SHARED), which Go cannot
// bind to without cgo.
type ProcessMutex struct {
	word *uint32
}

var _ gsync.Locker = (*ProcessMutex)(nil)

// NewProcessMutex attaches a ProcessMutex to the already-initialized word at
// addr. Use InitMutex instead when bootstrapping a segment for the first time.
func NewProcessMutex(addr unsafe.Pointer) (*ProcessMutex, error) {
	if addr == nil || uintptr(addr)%4 != 0 {
		return nil, fmt.Errorf("process mutex address must be non-nil and 4-byte aligned: %w", errors.ErrLockInit)
	}
	return &ProcessMutex{word: (*uint32)(addr)}, nil
}

// InitMutex resets the word at addr to the unlocked state and returns a
// ProcessMutex over it. Only the process bootstrapping the segment should
// call InitMutex; every other attaching process should call NewProcessMutex.
func InitMutex(addr unsafe.Pointer) (*ProcessMutex, error) {
	m, err := NewProcessMutex(addr)
	if err != nil {
		return nil, err
	}
	atomic.StoreUint32(m.word, mutexUnlocked)
	return m, nil
}

// Lock acquires the mutex, blocking until it is available.
func (m *ProcessMutex) Lock() {
	if atomic.CompareAndSwapUint32(m.word, mutexUnlocked, mutexLocked) {
		return
	}
	for atomic.SwapUint32(m.word, mutexContended) != mutexUnlocked {
		m.futexWait(mutexContended, nil)
	}
}

// Unlock releases the mutex, waking a contending waiter if there is one.
func (m *ProcessMutex) Unlock() {
	if atomic.SwapUint32(m.word, mutexUnlocked) == mutexContended {
		m.futexWake()
	}
}

// TryLock attempts to acquire the mutex without blocking.
func (m *ProcessMutex) TryLock(_ context.Context) bool {
	return atomic.CompareAndSwapUint32(m.word, mutexUnlocked, mutexLocked)
}

// LockWithCtx acquires the mutex, returning ctx.Err() if ctx is canceled
// before the lock becomes available.
func (m *ProcessMutex) LockWithCtx(ctx context.Context) error {
	for {
		if m.TryLock(ctx) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if atomic.SwapUint32(m.word, mutexContended) == mutexUnlocked {
			return nil
		}
		ts := unix.NsecToTimespec(futexPollInterval.Nanoseconds())
		m.futexWait(mutexContended, &ts)
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

func (m *ProcessMutex) futexWait(expected uint32, timeout *unix.Timespec) {
	_, _, _ = unix.Syscall6(unix.SYS_FUTEX, uintptr(unsafe.Pointer(m.word)), unix.FUTEX_WAIT,
		uintptr(expected), uintptr(unsafe.Pointer(timeout)), 0, 0)
}

func (m *ProcessMutex) futexWake() {
	_, _, _ = unix.Syscall6(unix.SYS_FUTEX, uintptr(unsafe.Pointer(m.word)), unix.FUTEX_WAKE, 1, 0, 0, 0)
}

// ProcessRWLock pairs a ProcessMutex with a shared reader count so readers
// don't contend with each other, only the first reader (which acquires the
// writer mutex) and the last reader (which releases it) touch the mutex.
// It trades strict writer-fairness for the same simplicity the original's
// pthread_rwlock_t wrapper offered with PTHREAD_PROCESS_SHARED.
type ProcessRWLock struct {
	writer  *ProcessMutex
	readers *int32
}

// NewProcessRWLock attaches a ProcessRWLock to the already-initialized
// writer word and reader counter at addr.
func NewProcessRWLock(addr unsafe.Pointer) (*ProcessRWLock, error) {
	if addr == nil || uintptr(addr)%8 != 0 {
		return nil, fmt.Errorf("process rwlock address must be non-nil and 8-byte aligned: %w", errors.ErrLockInit)
	}
	writer, err := NewProcessMutex(addr)
	if err != nil {
		return nil, err
	}
	readers := (*int32)(unsafe.Pointer(uintptr(addr) + 4))
	return &ProcessRWLock{writer: writer, readers: readers}, nil
}

// InitRWLock resets the word pair at addr to the unlocked, zero-readers
// state and returns a ProcessRWLock over it.
func InitRWLock(addr unsafe.Pointer) (*ProcessRWLock, error) {
	rw, err := NewProcessRWLock(addr)
	if err != nil {
		return nil, err
	}
	atomic.StoreUint32(rw.writer.word, mutexUnlocked)
	atomic.StoreInt32(rw.readers, 0)
	return rw, nil
}

// RLock acquires a read lock. The first reader takes the writer mutex and the
// last RUnlock releases it, so writers are blocked while any reader is outstanding.
func (rw *ProcessRWLock) RLock() {
	for {
		n := atomic.LoadInt32(rw.readers)
		if n > 0 {
			if atomic.CompareAndSwapInt32(rw.readers, n, n+1) {
				return
			}
			continue
		}
		rw.writer.Lock()
		atomic.StoreInt32(rw.readers, 1)
		return
	}
}

// RUnlock releases a read lock.
func (rw *ProcessRWLock) RUnlock() {
	if atomic.AddInt32(rw.readers, -1) == 0 {
		rw.writer.Unlock()
	}
}

// Lock acquires the lock for writing, excluding both readers and writers.
func (rw *ProcessRWLock) Lock() {
	rw.writer.Lock()
}

// Unlock releases a write lock.
func (rw *ProcessRWLock) Unlock() {
	rw.writer.Unlock()
}
