// Copyright 2025 The Eventplane Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package homer

import (
	"errors"
)

var (
	// ErrNoSelection indicates that no selected source matches the detector scope.
	ErrNoSelection = errors.New("no selected source matches the detector scope")

	// ErrIO indicates that none of the readers could be opened.
	ErrIO = errors.New("failed to open any source reader")

	// ErrTimeout indicates that no event arrived within the read timeout.
	ErrTimeout = errors.New("timed out waiting for the next event")

	// ErrClosed indicates the connection was closed, locally or by the source.
	ErrClosed = errors.New("connection closed")

	// ErrBadFrame indicates the byte stream does not contain a valid event.
	ErrBadFrame = errors.New("invalid event frame")
)

// IsTemporaryError returns true if NextEvent may succeed when called again
// without reconnecting.
func IsTemporaryError(err error) bool {
	return errors.Is(err, ErrTimeout)
}
