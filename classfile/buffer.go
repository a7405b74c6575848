package classfile

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// buffer is a cursor over a class file's raw bytes. All multi-byte reads
// are big-endian, per spec §4.1. It never panics: every read that would
// run past the end of the input returns an *Error of kind ErrShortInput.
type buffer struct {
	data []byte
	pos  int
}

func newBuffer(data []byte) *buffer {
	return &buffer{data: data}
}

func (b *buffer) remaining() int {
	return len(b.data) - b.pos
}

func (b *buffer) require(n int) error {
	if b.remaining() < n {
		return newErr(ErrShortInput, "need %d bytes at offset %d, have %d", n, b.pos, b.remaining())
	}
	return nil
}

func (b *buffer) u1() (uint8, error) {
	if err := b.require(1); err != nil {
		return 0, err
	}
	v := b.data[b.pos]
	b.pos++
	return v, nil
}

func (b *buffer) u2() (uint16, error) {
	if err := b.require(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(b.data[b.pos:])
	b.pos += 2
	return v, nil
}

func (b *buffer) u4() (uint32, error) {
	if err := b.require(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(b.data[b.pos:])
	b.pos += 4
	return v, nil
}

func (b *buffer) u8() (uint64, error) {
	if err := b.require(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(b.data[b.pos:])
	b.pos += 8
	return v, nil
}

func (b *buffer) bytes(n int) ([]byte, error) {
	if err := b.require(n); err != nil {
		return nil, err
	}
	v := b.data[b.pos : b.pos+n]
	b.pos += n
	return v, nil
}

func (b *buffer) skip(n int) error {
	if err := b.require(n); err != nil {
		return errors.Wrap(err, "skipping attribute body")
	}
	b.pos += n
	return nil
}

func (b *buffer) hasMore() bool {
	return b.remaining() > 0
}
