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
	"encoding/binary"
	"fmt"
	"io"

	"github.com/hltonline/eventplane/pkg/types"
)

// Event stream layout, all integers big-endian:
//
//	event header: magic "HOMR" | version u8 | reserved [3]u8 | event id u64 | block count u32
//	block header: origin [4]u8 | type [4]u8 | specification u32 | size u32
//	payload:      size bytes
const (
	wireMagic       = "HOMR"
	wireVersion     = 1
	eventHeaderSize = 20
	blockHeaderSize = 16

	// DefaultMaxBlockSize bounds a single payload.
	DefaultMaxBlockSize = 64 << 20
	// MaxBlocksPerEvent bounds the block count of one event.
	MaxBlocksPerEvent = 1 << 16
)

// WriteEvent encodes ev onto w.
func WriteEvent(w io.Writer, ev *types.Event) error {
	if len(ev.Blocks) > MaxBlocksPerEvent {
		return fmt.Errorf("%w: %d blocks exceed the limit of %d", ErrBadFrame, len(ev.Blocks), MaxBlocksPerEvent)
	}

	header := make([]byte, eventHeaderSize)
	copy(header[0:4], wireMagic)
	header[4] = wireVersion
	binary.BigEndian.PutUint64(header[8:16], ev.ID)
	binary.BigEndian.PutUint32(header[16:20], uint32(len(ev.Blocks)))
	if _, err := w.Write(header); err != nil {
		return err
	}

	blockHeader := make([]byte, blockHeaderSize)
	for _, b := range ev.Blocks {
		copy(blockHeader[0:4], b.Origin[:])
		copy(blockHeader[4:8], b.Type[:])
		binary.BigEndian.PutUint32(blockHeader[8:12], b.Specification)
		binary.BigEndian.PutUint32(blockHeader[12:16], uint32(len(b.Payload)))
		if _, err := w.Write(blockHeader); err != nil {
			return err
		}
		if _, err := w.Write(b.Payload); err != nil {
			return err
		}
	}
	return nil
}

// ReadEvent decodes one event from r. A clean end of stream before the
// header returns io.EOF; a stream ending inside an event returns
// io.ErrUnexpectedEOF.
func ReadEvent(r io.Reader, maxBlockSize int) (*types.Event, error) {
	header := make([]byte, eventHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}
	if string(header[0:4]) != wireMagic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrBadFrame, header[0:4])
	}
	if header[4] != wireVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrBadFrame, header[4])
	}

	ev := &types.Event{ID: binary.BigEndian.Uint64(header[8:16])}
	count := binary.BigEndian.Uint32(header[16:20])
	if count > MaxBlocksPerEvent {
		return nil, fmt.Errorf("%w: %d blocks exceed the limit of %d", ErrBadFrame, count, MaxBlocksPerEvent)
	}

	ev.Blocks = make([]types.Block, 0, count)
	blockHeader := make([]byte, blockHeaderSize)
	for i := uint32(0); i < count; i++ {
		if _, err := io.ReadFull(r, blockHeader); err != nil {
			return nil, unexpected(err)
		}
		size := binary.BigEndian.Uint32(blockHeader[12:16])
		if maxBlockSize > 0 && int64(size) > int64(maxBlockSize) {
			return nil, fmt.Errorf("%w: block %d of %d bytes exceeds %d", ErrBadFrame, i, size, maxBlockSize)
		}

		b := types.Block{Specification: binary.BigEndian.Uint32(blockHeader[8:12])}
		copy(b.Origin[:], blockHeader[0:4])
		copy(b.Type[:], blockHeader[4:8])
		b.Payload = make([]byte, size)
		if _, err := io.ReadFull(r, b.Payload); err != nil {
			return nil, unexpected(err)
		}
		ev.Blocks = append(ev.Blocks, b)
	}
	return ev, nil
}

func unexpected(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
