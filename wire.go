package serde

import (
	"encoding/binary"
	"fmt"
)

// MagicByte prefixes every framed payload.
const MagicByte byte = 0

// frameHeaderSize is the magic byte plus the 4-byte schema id.
const frameHeaderSize = 5

// Frame prefixes payload with the magic byte and big-endian schema id.
// When indexes is non-nil the message indexes follow as zigzag varints,
// count first; the common [0] case is written as a single zero byte.
func Frame(schemaID int, indexes []int, payload []byte) []byte {
	out := make([]byte, frameHeaderSize, frameHeaderSize+len(payload)+len(indexes)+1)
	out[0] = MagicByte
	binary.BigEndian.PutUint32(out[1:], uint32(schemaID))

	if indexes != nil {
		if len(indexes) == 1 && indexes[0] == 0 {
			out = binary.AppendVarint(out, 0)
		} else {
			out = binary.AppendVarint(out, int64(len(indexes)))
			for _, idx := range indexes {
				out = binary.AppendVarint(out, int64(idx))
			}
		}
	}
	return append(out, payload...)
}

// Unframe splits a framed payload. withIndexes must match how the payload
// was framed.
func Unframe(data []byte, withIndexes bool) (schemaID int, indexes []int, payload []byte, err error) {
	if len(data) < frameHeaderSize {
		return 0, nil, nil, fmt.Errorf("%w: %d bytes", ErrInvalidFrame, len(data))
	}
	if data[0] != MagicByte {
		return 0, nil, nil, fmt.Errorf("%w: unknown magic byte %d", ErrInvalidFrame, data[0])
	}
	schemaID = int(binary.BigEndian.Uint32(data[1:frameHeaderSize]))
	rest := data[frameHeaderSize:]

	if !withIndexes {
		return schemaID, nil, rest, nil
	}

	count, n := binary.Varint(rest)
	if n <= 0 || count < 0 || count > int64(len(rest)) {
		return 0, nil, nil, fmt.Errorf("%w: bad message index count", ErrInvalidFrame)
	}
	rest = rest[n:]
	if count == 0 {
		return schemaID, []int{0}, rest, nil
	}

	indexes = make([]int, count)
	for i := range indexes {
		v, n := binary.Varint(rest)
		if n <= 0 {
			return 0, nil, nil, fmt.Errorf("%w: bad message index", ErrInvalidFrame)
		}
		indexes[i] = int(v)
		rest = rest[n:]
	}
	return schemaID, indexes, rest, nil
}
