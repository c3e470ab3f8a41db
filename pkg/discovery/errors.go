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

package discovery

import (
	"context"
	"errors"
)

var (
	// ErrUnreachable indicates neither the primary nor the secondary proxy of
	// the realm accepted a connection.
	ErrUnreachable = errors.New("discovery proxy unreachable")

	// ErrMalformed indicates the proxy answered with something that is not a
	// complete service list response.
	ErrMalformed = errors.New("malformed discovery response")

	// ErrEntryIncomplete marks a single service entry lacking a required field.
	// It is logged and the entry skipped; it never fails a discovery.
	ErrEntryIncomplete = errors.New("service entry incomplete")

	// ErrSourceNotFound indicates a selection change for an unknown source.
	ErrSourceNotFound = errors.New("source not found")

	// ErrNoSnapshot indicates the snapshot store holds no source list.
	ErrNoSnapshot = errors.New("no source snapshot stored")
)

// IsTemporaryError returns true if the discovery may succeed when retried.
func IsTemporaryError(err error) bool {
	return errors.Is(err, ErrUnreachable) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}
