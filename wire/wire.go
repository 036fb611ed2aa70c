// Package wire implements the canonical binary layout shared by signing
// bytes, commitment digest inputs and proof codecs.
//
// Every message is a fixed ASCII domain label followed by protobuf wire
// fields. Canonical form is stricter than protobuf: every field is present
// exactly once, in ascending field-number order, varints are minimally
// encoded, and unknown or trailing fields are rejected. Repeated fields are
// consecutive occurrences of the same number and may be absent.
package wire

import (
	"bytes"

	"google.golang.org/protobuf/encoding/protowire"

	"tlsn-notary/shared"
)

// Encoder appends fields to a canonical message.
type Encoder struct {
	buf []byte
}

// NewEncoder starts a message with the given domain label. An empty label
// is used for nested messages.
func NewEncoder(label string) *Encoder {
	e := &Encoder{buf: make([]byte, 0, 128)}
	e.buf = append(e.buf, label...)
	return e
}

// Uint appends a varint field.
func (e *Encoder) Uint(num protowire.Number, v uint64) *Encoder {
	e.buf = protowire.AppendTag(e.buf, num, protowire.VarintType)
	e.buf = protowire.AppendVarint(e.buf, v)
	return e
}

// Bytes appends a length-delimited field.
func (e *Encoder) Bytes(num protowire.Number, v []byte) *Encoder {
	e.buf = protowire.AppendTag(e.buf, num, protowire.BytesType)
	e.buf = protowire.AppendBytes(e.buf, v)
	return e
}

// String appends a length-delimited UTF-8 field.
func (e *Encoder) String(num protowire.Number, s string) *Encoder {
	e.buf = protowire.AppendTag(e.buf, num, protowire.BytesType)
	e.buf = protowire.AppendString(e.buf, s)
	return e
}

// RepeatedBytes appends one occurrence of num per element.
func (e *Encoder) RepeatedBytes(num protowire.Number, vs [][]byte) *Encoder {
	for _, v := range vs {
		e.Bytes(num, v)
	}
	return e
}

// Output returns the encoded message.
func (e *Encoder) Output() []byte {
	return e.buf
}

// Decoder reads a canonical message field by field.
type Decoder struct {
	buf  []byte
	last protowire.Number
}

// NewDecoder checks the domain label and positions the decoder on the first field.
func NewDecoder(b []byte, label string) (*Decoder, error) {
	if !bytes.HasPrefix(b, []byte(label)) {
		return nil, shared.Errorf(shared.KindEncoding, "wire decode", "missing %q label", label)
	}
	return &Decoder{buf: b[len(label):]}, nil
}

func (d *Decoder) tag(num protowire.Number, typ protowire.Type) error {
	if len(d.buf) == 0 {
		return shared.Errorf(shared.KindEncoding, "wire decode", "field %d missing", num)
	}
	got, gotTyp, n := protowire.ConsumeTag(d.buf)
	if n < 0 {
		return shared.NewError(shared.KindEncoding, "wire decode", protowire.ParseError(n))
	}
	if got != num {
		if got < d.last {
			return shared.Errorf(shared.KindEncoding, "wire decode", "field %d out of order", got)
		}
		return shared.Errorf(shared.KindEncoding, "wire decode", "expected field %d, got %d", num, got)
	}
	if gotTyp != typ {
		return shared.Errorf(shared.KindEncoding, "wire decode", "field %d has wire type %d, want %d", num, gotTyp, typ)
	}
	d.buf = d.buf[n:]
	d.last = num
	return nil
}

// Uint reads the varint field num.
func (d *Decoder) Uint(num protowire.Number) (uint64, error) {
	if err := d.tag(num, protowire.VarintType); err != nil {
		return 0, err
	}
	v, n := protowire.ConsumeVarint(d.buf)
	if n < 0 {
		return 0, shared.NewError(shared.KindEncoding, "wire decode", protowire.ParseError(n))
	}
	if n != protowire.SizeVarint(v) {
		return 0, shared.Errorf(shared.KindEncoding, "wire decode", "field %d: non-minimal varint", num)
	}
	d.buf = d.buf[n:]
	return v, nil
}

// Bytes reads the length-delimited field num. The returned slice aliases
// the input buffer.
func (d *Decoder) Bytes(num protowire.Number) ([]byte, error) {
	if err := d.tag(num, protowire.BytesType); err != nil {
		return nil, err
	}
	v, n := protowire.ConsumeBytes(d.buf)
	if n < 0 {
		return nil, shared.NewError(shared.KindEncoding, "wire decode", protowire.ParseError(n))
	}
	d.buf = d.buf[n:]
	return v, nil
}

// FixedBytes reads field num and checks its length.
func (d *Decoder) FixedBytes(num protowire.Number, size int) ([]byte, error) {
	v, err := d.Bytes(num)
	if err != nil {
		return nil, err
	}
	if len(v) != size {
		return nil, shared.Errorf(shared.KindEncoding, "wire decode", "field %d: expected %d bytes, got %d", num, size, len(v))
	}
	return v, nil
}

// String reads field num as a string.
func (d *Decoder) String(num protowire.Number) (string, error) {
	v, err := d.Bytes(num)
	if err != nil {
		return "", err
	}
	return string(v), nil
}

// RepeatedBytes reads consecutive occurrences of field num, up to max.
func (d *Decoder) RepeatedBytes(num protowire.Number, max int) ([][]byte, error) {
	var out [][]byte
	for d.next() == num {
		if len(out) == max {
			return nil, shared.Errorf(shared.KindEncoding, "wire decode", "field %d: more than %d elements", num, max)
		}
		v, err := d.Bytes(num)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// next peeks at the number of the next field, or 0 at end of input.
func (d *Decoder) next() protowire.Number {
	if len(d.buf) == 0 {
		return 0
	}
	num, _, n := protowire.ConsumeTag(d.buf)
	if n < 0 {
		return 0
	}
	return num
}

// Finish fails if any input remains.
func (d *Decoder) Finish() error {
	if len(d.buf) != 0 {
		return shared.Errorf(shared.KindEncoding, "wire decode", "%d trailing bytes after field %d", len(d.buf), d.last)
	}
	return nil
}

// Version reads field 1 and checks it against the supported version.
func (d *Decoder) Version(want uint64) error {
	v, err := d.Uint(1)
	if err != nil {
		return err
	}
	if v != want {
		return shared.Errorf(shared.KindEncoding, "wire decode", "unsupported version %d", v)
	}
	return nil
}

// Int64 helpers keep signed timestamps canonical via zig-zag encoding.
func EncodeInt64(v int64) uint64 { return protowire.EncodeZigZag(v) }

func DecodeInt64(v uint64) int64 { return protowire.DecodeZigZag(v) }

// CheckedInt narrows a decoded varint to a non-negative int.
func CheckedInt(v uint64, field string) (int, error) {
	if v > uint64(maxInt) {
		return 0, shared.Errorf(shared.KindEncoding, "wire decode", "%s overflows int", field)
	}
	return int(v), nil
}

const maxInt = int(^uint(0) >> 1)
