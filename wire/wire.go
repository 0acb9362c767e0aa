// Package wire implements the deterministic binary encoding used for
// everything that crosses consensus: persisted store records, consensus
// items, and the canonical byte string that account signatures are taken
// over. Every multi-byte integer is big-endian; every variable-length
// field is length-prefixed with an unsigned LEB128 varint, matching
// "canonical binary encoding" from the module's wire-format spec.
//
// This is intentionally a small hand-rolled codec rather than a generic
// serialization library: the wire spec fixes an exact byte layout
// (single-byte key prefixes, BE integers, LEB-prefixed variable fields)
// that a reflection-based encoder would only obscure. The same style is
// used by _examples/original_source's fedimint_core::encoding traits and
// by _examples/luxfi-evm/plugin/evm/message's hand-written request types.
package wire

import (
	"encoding/binary"
	"fmt"
)

// Writer accumulates a canonical byte encoding.
type Writer struct {
	buf []byte
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer { return &Writer{} }

// Bytes returns the accumulated encoding.
func (w *Writer) Bytes() []byte { return w.buf }

// U8 appends a single byte.
func (w *Writer) U8(v uint8) *Writer {
	w.buf = append(w.buf, v)
	return w
}

// U64 appends a big-endian u64.
func (w *Writer) U64(v uint64) *Writer {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
	return w
}

// Fixed appends raw bytes with no length prefix — used for fixed-width
// fields like the 32-byte account id.
func (w *Writer) Fixed(b []byte) *Writer {
	w.buf = append(w.buf, b...)
	return w
}

// Varint appends an unsigned LEB128 varint.
func (w *Writer) Varint(v uint64) *Writer {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	w.buf = append(w.buf, tmp[:n]...)
	return w
}

// VarBytes appends a varint length prefix followed by b.
func (w *Writer) VarBytes(b []byte) *Writer {
	w.Varint(uint64(len(b)))
	w.buf = append(w.buf, b...)
	return w
}

// Reader consumes a canonical byte encoding produced by Writer.
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps b for sequential decoding.
func NewReader(b []byte) *Reader { return &Reader{buf: b} }

// Remaining reports how many bytes are left unconsumed.
func (r *Reader) Remaining() int { return len(r.buf) - r.pos }

func (r *Reader) need(n int) error {
	if r.Remaining() < n {
		return fmt.Errorf("wire: short read: need %d bytes, have %d", n, r.Remaining())
	}
	return nil
}

// U8 reads a single byte.
func (r *Reader) U8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

// U64 reads a big-endian u64.
func (r *Reader) U64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(r.buf[r.pos : r.pos+8])
	r.pos += 8
	return v, nil
}

// Fixed reads exactly n raw bytes.
func (r *Reader) Fixed(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, r.buf[r.pos:r.pos+n])
	r.pos += n
	return out, nil
}

// Varint reads an unsigned LEB128 varint.
func (r *Reader) Varint() (uint64, error) {
	v, n := binary.Uvarint(r.buf[r.pos:])
	if n <= 0 {
		return 0, fmt.Errorf("wire: invalid varint")
	}
	r.pos += n
	return v, nil
}

// VarBytes reads a varint length prefix followed by that many bytes.
func (r *Reader) VarBytes() ([]byte, error) {
	n, err := r.Varint()
	if err != nil {
		return nil, err
	}
	return r.Fixed(int(n))
}

// Done reports whether every byte has been consumed — used by decoders
// to reject trailing bytes.
func (r *Reader) Done() bool { return r.Remaining() == 0 }
