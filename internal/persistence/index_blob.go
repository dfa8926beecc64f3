package persistence

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/hupe1980/vecdir/internal/hash"
)

const (
	indexMagic   = "VDIX"
	indexVersion = 1
	// maxBuilderName bounds the builder name stored in the header.
	maxBuilderName = 255
)

var (
	ErrInvalidMagic     = errors.New("invalid magic number")
	ErrInvalidVersion   = errors.New("unsupported version")
	ErrChecksumMismatch = errors.New("checksum mismatch")
	ErrTruncated        = errors.New("truncated file")
)

// IndexBlob is the decoded content of index.bin.
type IndexBlob struct {
	// Builder names the index.Builder that produced Payload.
	Builder string
	// LSN is the last log record the index reflects.
	LSN uint64
	// Count is the number of vectors in the index.
	Count uint32
	// Payload is the builder's serialized index.
	Payload []byte
}

// EncodeIndexBlob serializes blob.
//
// Format (little endian):
//
//	[Magic "VDIX": 4] [Version: 4] [Compression: 1] [NameLen: 1] [Name]
//	[LSN: 8] [Count: 4] [RawLen: 8] [CRC32C: 4] [Payload]
//
// The checksum covers every header byte before it and the uncompressed
// payload.
func EncodeIndexBlob(blob IndexBlob, c Compression) ([]byte, error) {
	if len(blob.Builder) > maxBuilderName {
		return nil, fmt.Errorf("builder name too long: %d bytes", len(blob.Builder))
	}
	payload, applied, err := compress(blob.Payload, c)
	if err != nil {
		return nil, fmt.Errorf("compress index: %w", err)
	}

	buf := make([]byte, 0, 34+len(blob.Builder)+len(payload))
	buf = append(buf, indexMagic...)
	buf = binary.LittleEndian.AppendUint32(buf, indexVersion)
	buf = append(buf, byte(applied), byte(len(blob.Builder)))
	buf = append(buf, blob.Builder...)
	buf = binary.LittleEndian.AppendUint64(buf, blob.LSN)
	buf = binary.LittleEndian.AppendUint32(buf, blob.Count)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(len(blob.Payload)))
	buf = binary.LittleEndian.AppendUint32(buf, hash.CRC32CParts(buf, blob.Payload))
	return append(buf, payload...), nil
}

// DecodeIndexBlob parses and verifies data. The returned payload never
// aliases data.
func DecodeIndexBlob(data []byte) (IndexBlob, error) {
	var blob IndexBlob
	if len(data) < 10 {
		return blob, ErrTruncated
	}
	if string(data[0:4]) != indexMagic {
		return blob, fmt.Errorf("%w: %q", ErrInvalidMagic, data[0:4])
	}
	if v := binary.LittleEndian.Uint32(data[4:8]); v != indexVersion {
		return blob, fmt.Errorf("%w: %d", ErrInvalidVersion, v)
	}
	c := Compression(data[8])
	nameLen := int(data[9])

	off := 10
	if len(data) < off+nameLen+24 {
		return blob, ErrTruncated
	}
	blob.Builder = string(data[off : off+nameLen])
	off += nameLen
	blob.LSN = binary.LittleEndian.Uint64(data[off:])
	blob.Count = binary.LittleEndian.Uint32(data[off+8:])
	rawLen := binary.LittleEndian.Uint64(data[off+12:])
	checksum := binary.LittleEndian.Uint32(data[off+20:])
	header := data[:off+20]
	off += 24

	payload, err := decompress(data[off:], c, rawLen)
	if err != nil {
		return blob, fmt.Errorf("decompress index: %w", err)
	}
	if hash.CRC32CParts(header, payload) != checksum {
		return blob, ErrChecksumMismatch
	}
	if c == CompressionNone {
		payload = append([]byte(nil), payload...)
	}
	blob.Payload = payload
	return blob, nil
}
