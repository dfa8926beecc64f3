package wal

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_Size(t *testing.T) {
	del := &Record{Type: RecordTypeDelete, ID: "abc"}
	assert.Equal(t, recordHeaderSize+4+3, del.Size())
	assert.Len(t, del.AppendTo(nil), del.Size())

	up := &Record{Type: RecordTypeUpsert, ID: "abc", Vector: []float32{1, 2}}
	assert.Equal(t, recordHeaderSize+4+3+4+8, up.Size())
	assert.Len(t, up.AppendTo(nil), up.Size())
}

func TestRecord_Decode(t *testing.T) {
	var buf bytes.Buffer
	in := &Record{Type: RecordTypeUpsert, LSN: 42, ID: "doc-1", Vector: []float32{0.5, -1}}
	require.NoError(t, in.Encode(&buf))

	out, n, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(in.Size()), n)
	assert.Equal(t, in, out)

	_, _, err = Decode(&buf)
	assert.ErrorIs(t, err, io.EOF)
}

func TestRecord_DecodeErrors(t *testing.T) {
	enc := (&Record{Type: RecordTypeDelete, LSN: 1, ID: "x"}).AppendTo(nil)

	_, _, err := Decode(bytes.NewReader(enc[:5]))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	_, _, err = Decode(bytes.NewReader(enc[:len(enc)-1]))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	bad := bytes.Clone(enc)
	bad[len(bad)-1] ^= 0x01
	_, _, err = Decode(bytes.NewReader(bad))
	assert.ErrorIs(t, err, ErrInvalidCRC)

	unknown := (&Record{Type: RecordType(9), LSN: 1, ID: "x"}).AppendTo(nil)
	_, _, err = Decode(bytes.NewReader(unknown))
	assert.ErrorIs(t, err, ErrInvalidType)
}
