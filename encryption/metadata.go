package encryption

import (
	"encoding/binary"
	"fmt"

	"github.com/zoobzio/serde"
)

// MetadataVersion is the only metadata encoding version.
const MetadataVersion byte = 0

// lengthSize is the width of every length prefix.
const lengthSize = 4

// Metadata identifies how a message side was encrypted. It travels in the
// encrypt-key / encrypt-value header.
type Metadata struct {
	Version    byte
	KekID      string
	DekFormat  DekFormat
	WrappedDek []byte
}

// EncodeMetadata serializes m as
//
//	[1 byte version]
//	[4 bytes kek id length][kek id]
//	[4 bytes dek format length][dek format]
//	[4 bytes wrapped dek length][wrapped dek]
//
// Lengths are unsigned 32-bit little-endian.
func EncodeMetadata(m Metadata) []byte {
	size := 1 + 3*lengthSize + len(m.KekID) + len(m.DekFormat) + len(m.WrappedDek)
	out := make([]byte, 0, size)
	out = append(out, m.Version)
	out = appendSegment(out, []byte(m.KekID))
	out = appendSegment(out, []byte(m.DekFormat))
	out = appendSegment(out, m.WrappedDek)
	return out
}

// DecodeMetadata parses metadata written by EncodeMetadata. Every segment
// must be non-empty and fit the buffer, and no bytes may follow the last
// segment; any violation is serde.ErrInvalidCiphertext.
func DecodeMetadata(data []byte) (Metadata, error) {
	if len(data) < 1 {
		return Metadata{}, fmt.Errorf("%w: empty metadata", serde.ErrInvalidCiphertext)
	}
	m := Metadata{Version: data[0]}
	if m.Version != MetadataVersion {
		return Metadata{}, fmt.Errorf("%w: unknown metadata version %d", serde.ErrInvalidCiphertext, m.Version)
	}
	rest := data[1:]

	kekID, rest, err := readSegment(rest, "kek id")
	if err != nil {
		return Metadata{}, err
	}
	format, rest, err := readSegment(rest, "dek format")
	if err != nil {
		return Metadata{}, err
	}
	wrapped, rest, err := readSegment(rest, "wrapped dek")
	if err != nil {
		return Metadata{}, err
	}
	if len(rest) != 0 {
		return Metadata{}, fmt.Errorf("%w: %d trailing bytes", serde.ErrInvalidCiphertext, len(rest))
	}

	m.KekID = string(kekID)
	m.DekFormat = DekFormat(format)
	m.WrappedDek = wrapped
	return m, nil
}

func appendSegment(out, segment []byte) []byte {
	out = binary.LittleEndian.AppendUint32(out, uint32(len(segment)))
	return append(out, segment...)
}

func readSegment(data []byte, name string) (segment, rest []byte, err error) {
	if len(data) < lengthSize {
		return nil, nil, fmt.Errorf("%w: truncated %s length", serde.ErrInvalidCiphertext, name)
	}
	n := binary.LittleEndian.Uint32(data)
	data = data[lengthSize:]
	if n == 0 || uint64(n) > uint64(len(data)) {
		return nil, nil, fmt.Errorf("%w: %s length %d with %d bytes left", serde.ErrInvalidCiphertext, name, n, len(data))
	}
	return data[:n:n], data[n:], nil
}
