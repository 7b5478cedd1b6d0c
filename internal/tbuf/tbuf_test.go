package tbuf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuf_Bounded(t *testing.T) {
	assert := assert.New(t)

	b := NewBuf([]byte{0x01, 0x02, 0x03, 0x04})
	v8, ok := b.ReadU8()
	assert.True(ok)
	assert.EqualValues(1, v8)
	assert.Equal(1, b.Tell())

	v16, ok := b.ReadU16()
	assert.True(ok)
	assert.EqualValues(0x0203, v16)

	// only 1 byte left, asking for 2 must fail and not move the cursor
	pos := b.Tell()
	_, ok = b.ReadU16()
	assert.False(ok)
	assert.Equal(pos, b.Tell())

	v8, ok = b.ReadU8()
	assert.True(ok)
	assert.EqualValues(4, v8)
	assert.Equal(0, b.Left())
}

func TestBuf_LittleEndian(t *testing.T) {
	assert := assert.New(t)
	b := NewBuf([]byte{0x01, 0x00, 0x00, 0x00})
	v, ok := b.ReadLeU32()
	assert.True(ok)
	assert.EqualValues(1, v)
}

func TestBuf_Memmem(t *testing.T) {
	assert := assert.New(t)
	marker := []byte{0xff, 0xff, 0xff, 0xff}
	b := NewBuf([]byte{0x00, 0x00, 0xff, 0xff, 0xff, 0xff, 0x01})
	assert.True(b.Memmem(marker))
	assert.Equal(2, b.Tell())

	b2 := NewBuf([]byte{0x00, 0x01, 0x02})
	assert.False(b2.Memmem(marker))
}

func TestBuf_SeekNeverOverruns(t *testing.T) {
	assert := assert.New(t)
	b := NewBuf(make([]byte, 10))
	assert.False(b.SeekSet(11))
	assert.True(b.SeekSet(10))
	assert.False(b.SeekCur(1))
	assert.True(b.SeekEnd(0))
	assert.Equal(10, b.Tell())
}

func TestBuf_UTF8Validation(t *testing.T) {
	assert := assert.New(t)

	b := NewBuf([]byte("hello"))
	s, ok := b.ReadStr(5)
	assert.True(ok)
	assert.Equal("hello", s)

	// overlong 2-byte encoding of NUL (0xC0 0x80) must be rejected
	b2 := NewBuf([]byte{0xc0, 0x80})
	_, ok = b2.ReadStr(2)
	assert.False(ok)

	// UTF-16 surrogate encoded in UTF-8 (U+D800) must be rejected
	b3 := NewBuf([]byte{0xed, 0xa0, 0x80})
	_, ok = b3.ReadStr(3)
	assert.False(ok)
}
