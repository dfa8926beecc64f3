package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCRC32C(t *testing.T) {
	// Known vector for CRC32C("123456789").
	assert.Equal(t, uint32(0xE3069283), CRC32C([]byte("123456789")))
	assert.Equal(t, uint32(0), CRC32C(nil))
}

func TestCRC32CParts(t *testing.T) {
	whole := CRC32C([]byte("header|payload"))
	assert.Equal(t, whole, CRC32CParts([]byte("header|"), []byte("payload")))
	assert.Equal(t, whole, CRC32CParts([]byte("head"), nil, []byte("er|payload")))

	h := NewCRC32C()
	_, _ = h.Write([]byte("header|"))
	_, _ = h.Write([]byte("payload"))
	assert.Equal(t, whole, h.Sum32())
}
