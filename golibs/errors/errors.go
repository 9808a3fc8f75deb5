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
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
)

// The following errors describe general situations that any component in
// this codebase may run into. Prefer wrapping one of these with fmt.Errorf
// and %w instead of introducing a new sentinel error for the same situation.
var (
	// ErrExist is returned when an object that is expected to be absent already exists
	ErrExist = stderrors.New("already exists")
	// ErrNotExist is returned when a requested object cannot be found
	ErrNotExist = stderrors.New("does not exist")
	// ErrInvalid is returned when a provided argument or state is not acceptable
	ErrInvalid = stderrors.New("invalid argument")
	// ErrNotAuthorized is returned when the caller is not allowed to perform the operation
	ErrNotAuthorized = stderrors.New("not authorized")
	// ErrInternal is returned for any unexpected, unclassified internal failure
	ErrInternal = stderrors.New("internal error")
	// ErrDataLoss is returned when previously stored data is confirmed lost or corrupted
	ErrDataLoss = stderrors.New("data loss")
	// ErrExhausted is returned when a resource is exhausted and cannot satisfy the request
	ErrExhausted = stderrors.New("resource exhausted")
	// ErrUnimplemented is returned when the requested operation is not implemented
	ErrUnimplemented = stderrors.New("not implemented")
	// ErrConflict is returned when the operation cannot proceed due to a conflicting state
	ErrConflict = stderrors.New("conflict")
	// ErrCanceled is returned when the operation was canceled by its caller
	ErrCanceled = stderrors.New("canceled")
	// ErrCommunication is returned when a remote call failed for a transport-level reason
	ErrCommunication = stderrors.New("communication error")
	// ErrClosed is returned when the operation is called on an object already closed
	ErrClosed = stderrors.New("already closed")
	// ErrLockInit is returned when a process-shared lock could not be constructed
	ErrLockInit = stderrors.New("lock initialization failed")
)

// jsonErrorMarker delimits a JSON-encoded object embedded into an error's text by EmbedObject.
const jsonErrorMarker = "\x00eo\x00"

// Is reports whether err matches target, the same way errors.Is does.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// EmbedObject encodes obj as JSON and embeds it into err's message, wrapping err so that
// Is/errors.Is still matches against err. obj and err must both be non-nil, and err must
// not already carry an embedded object — EmbedObject panics otherwise.
func EmbedObject(obj any, err error) error {
	if err == nil {
		panic("errors.EmbedObject: err must not be nil")
	}
	if obj == nil {
		panic("errors.EmbedObject: obj must not be nil")
	}
	if strings.Contains(err.Error(), jsonErrorMarker) {
		panic("errors.EmbedObject: err already carries an embedded object")
	}
	buf, mErr := json.Marshal(obj)
	if mErr != nil {
		panic(mErr)
	}
	return fmt.Errorf("%s%s%s: %w", jsonErrorMarker, buf, jsonErrorMarker, err)
}

// ExtractObject looks for an object embedded by EmbedObject in err's message and, if
// found, unmarshals it into target. It returns false if err is nil, carries no embedded
// object, or the embedded payload cannot be unmarshaled into target.
func ExtractObject(err error, target any) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	start := strings.Index(s, jsonErrorMarker)
	if start < 0 {
		return false
	}
	rest := s[start+len(jsonErrorMarker):]
	end := strings.Index(rest, jsonErrorMarker)
	if end < 0 {
		return false
	}
	return json.Unmarshal([]byte(rest[:end]), target) == nil
}
