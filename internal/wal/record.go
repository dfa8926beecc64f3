package wal

import (
	"encoding/binary"
	"errors"
	"io"
	"math"

	"github.com/hupe1980/vecdir/internal/hash"
)

// RecordType identifies the type of a log record.
type RecordType uint8

const (
	RecordTypeUpsert RecordType = 1
	RecordTypeDelete RecordType = 2
)

func (t RecordType) String() string {
	switch t {
	case RecordTypeUpsert:
		return "upsert"
	case RecordTypeDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// recordHeaderSize is CRC (4) + Type (1) + LSN (8) + Length (4).
const recordHeaderSize = 17

// maxRecordSize bounds a single payload; anything larger is treated as damage.
const maxRecordSize = 64 << 20

var (
	ErrInvalidCRC     = errors.New("invalid log record checksum")
	ErrInvalidType    = errors.New("invalid log record type")
	ErrShortRead      = errors.New("short read in log record")
	ErrRecordTooLarge = errors.New("log record too large")
)

// Record is a single mutation in the vector log.
type Record struct {
	LSN    uint64
	Type   RecordType
	ID     string
	Vector []float32
}

func (r *Record) payloadSize() int {
	n := 4 + len(r.ID)
	if r.Type == RecordTypeUpsert {
		n += 4 + 4*len(r.Vector)
	}
	return n
}

// Size returns the encoded size of the record in bytes.
func (r *Record) Size() int {
	return recordHeaderSize + r.payloadSize()
}

// AppendTo appends the encoded record to dst.
//
// Format:
//
//	[CRC32C: 4] [Type: 1] [LSN: 8] [Length: 4] [Payload: Length]
//	Upsert payload: [IDLen: 4] [ID] [Dim: 4] [Vector: Dim*4]
//	Delete payload: [IDLen: 4] [ID]
//
// The checksum covers everything after itself.
func (r *Record) AppendTo(dst []byte) []byte {
	start := len(dst)
	dst = append(dst, 0, 0, 0, 0, byte(r.Type))
	dst = binary.LittleEndian.AppendUint64(dst, r.LSN)
	dst = binary.LittleEndian.AppendUint32(dst, uint32(r.payloadSize()))
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(r.ID)))
	dst = append(dst, r.ID...)
	if r.Type == RecordTypeUpsert {
		dst = binary.LittleEndian.AppendUint32(dst, uint32(len(r.Vector)))
		for _, v := range r.Vector {
			dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v))
		}
	}
	binary.LittleEndian.PutUint32(dst[start:], hash.CRC32C(dst[start+4:]))
	return dst
}

// Encode writes the record to w.
func (r *Record) Encode(w io.Writer) error {
	_, err := w.Write(r.AppendTo(make([]byte, 0, r.Size())))
	return err
}

// Decode reads one record from r and reports the number of bytes consumed.
//
// A clean end of input yields io.EOF. A record cut short yields
// io.ErrUnexpectedEOF.
func Decode(r io.Reader) (*Record, int64, error) {
	var header [recordHeaderSize]byte
	n, err := io.ReadFull(r, header[:])
	if err != nil {
		return nil, int64(n), err
	}

	checksum := binary.LittleEndian.Uint32(header[0:])
	recType := RecordType(header[4])
	lsn := binary.LittleEndian.Uint64(header[5:])
	length := binary.LittleEndian.Uint32(header[13:])
	if length > maxRecordSize {
		return nil, recordHeaderSize, ErrRecordTooLarge
	}

	payload := make([]byte, length)
	m, err := io.ReadFull(r, payload)
	consumed := int64(recordHeaderSize + m)
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, consumed, err
	}

	if hash.CRC32CParts(header[4:], payload) != checksum {
		return nil, consumed, ErrInvalidCRC
	}

	rec := &Record{Type: recType, LSN: lsn}
	switch recType {
	case RecordTypeUpsert, RecordTypeDelete:
		if err := parsePayload(payload, rec); err != nil {
			return nil, consumed, err
		}
	default:
		return nil, consumed, ErrInvalidType
	}
	return rec, consumed, nil
}

func parsePayload(payload []byte, r *Record) error {
	if len(payload) < 4 {
		return ErrShortRead
	}
	idLen := int(binary.LittleEndian.Uint32(payload))
	offset := 4
	if len(payload) < offset+idLen {
		return ErrShortRead
	}
	r.ID = string(payload[offset : offset+idLen])
	offset += idLen

	if r.Type == RecordTypeDelete {
		return nil
	}

	if len(payload) < offset+4 {
		return ErrShortRead
	}
	dim := int(binary.LittleEndian.Uint32(payload[offset:]))
	offset += 4
	if len(payload) < offset+4*dim {
		return ErrShortRead
	}
	r.Vector = make([]float32, dim)
	for i := range r.Vector {
		r.Vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(payload[offset:]))
		offset += 4
	}
	return nil
}
