// Package codec implements the canonical binary serialization used for
// content hashing (txids, block hashes), authorization signing messages, and
// persistence: length-prefixed, little-endian, tag-dispatched for enums.
//
// The Juneo example retrieval pack references a codec.Manager /
// codec/linearcodec pairing (vms/example/xsvm/tx/codec.go) but the
// underlying packages were never retrieved, so this is a small hand-rolled
// equivalent rather than an adaptation of that code.
package codec

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Writer accumulates a canonical byte encoding.
type Writer struct {
	buf []byte
}

func NewWriter() *Writer { return &Writer{} }

func (w *Writer) Bytes() []byte { return w.buf }

func (w *Writer) WriteUint8(v uint8) { w.buf = append(w.buf, v) }

func (w *Writer) WriteBool(v bool) {
	if v {
		w.WriteUint8(1)
	} else {
		w.WriteUint8(0)
	}
}

func (w *Writer) WriteUint32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) WriteUint64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// WriteFixed appends b verbatim, with no length prefix; used for fixed-size
// fields (hashes, public keys, signatures) whose length is implied by type.
func (w *Writer) WriteFixed(b []byte) { w.buf = append(w.buf, b...) }

// WriteBytes appends a uint32 length prefix followed by b.
func (w *Writer) WriteBytes(b []byte) {
	w.WriteUint32(uint32(len(b)))
	w.buf = append(w.buf, b...)
}

// WriteTag writes a single enum discriminant byte.
func (w *Writer) WriteTag(t uint8) { w.WriteUint8(t) }

// Reader consumes a canonical byte encoding, accumulating the first error
// encountered so call sites can chain reads and check once at the end.
type Reader struct {
	buf []byte
	off int
	err error
}

func NewReader(b []byte) *Reader { return &Reader{buf: b} }

func (r *Reader) Err() error { return r.err }

func (r *Reader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *Reader) ReadUint8() uint8 {
	if r.err != nil {
		return 0
	}
	if r.off >= len(r.buf) {
		r.fail(io.ErrUnexpectedEOF)
		return 0
	}
	v := r.buf[r.off]
	r.off++
	return v
}

func (r *Reader) ReadBool() bool { return r.ReadUint8() != 0 }

func (r *Reader) ReadTag() uint8 { return r.ReadUint8() }

func (r *Reader) ReadUint32() uint32 {
	if r.err != nil {
		return 0
	}
	if r.off+4 > len(r.buf) {
		r.fail(io.ErrUnexpectedEOF)
		return 0
	}
	v := binary.LittleEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v
}

func (r *Reader) ReadUint64() uint64 {
	if r.err != nil {
		return 0
	}
	if r.off+8 > len(r.buf) {
		r.fail(io.ErrUnexpectedEOF)
		return 0
	}
	v := binary.LittleEndian.Uint64(r.buf[r.off:])
	r.off += 8
	return v
}

func (r *Reader) ReadFixed(n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.off+n > len(r.buf) {
		r.fail(io.ErrUnexpectedEOF)
		return nil
	}
	b := make([]byte, n)
	copy(b, r.buf[r.off:r.off+n])
	r.off += n
	return b
}

func (r *Reader) ReadBytes() []byte {
	n := r.ReadUint32()
	if r.err != nil {
		return nil
	}
	if n > uint32(len(r.buf)-r.off) {
		r.fail(fmt.Errorf("codec: length prefix %d exceeds remaining input", n))
		return nil
	}
	return r.ReadFixed(int(n))
}

// Done reports whether the whole buffer was consumed without error.
func (r *Reader) Done() error {
	if r.err != nil {
		return r.err
	}
	if r.off != len(r.buf) {
		return fmt.Errorf("codec: %d trailing bytes", len(r.buf)-r.off)
	}
	return nil
}
