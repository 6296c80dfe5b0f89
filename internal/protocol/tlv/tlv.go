package tlv

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// HeaderLen is the encoded size of id + length.
const HeaderLen = 3

// MaxValueLen is the largest value a single-byte length can describe.
const MaxValueLen = 0xFF

var (
	ErrTruncatedBuffer = errors.New("tlv: truncated buffer")
	ErrBufferOverflow  = errors.New("tlv: buffer overflow")
	ErrFieldTooLarge   = errors.New("tlv: field value too large")
	ErrNotNumeric      = errors.New("tlv: value is not numeric")
)

// Field is one decoded TLV field. The codec does not interpret Value.
type Field struct {
	ID    uint16
	Value []byte
}

// Len returns the declared value length.
func (f Field) Len() int {
	return len(f.Value)
}

// DecodeField reads one field starting at offset and reports how many bytes it consumed.
func DecodeField(buf []byte, offset int) (Field, int, error) {
	if offset < 0 || offset > len(buf) {
		return Field{}, 0, ErrTruncatedBuffer
	}
	remaining := len(buf) - offset
	if remaining < HeaderLen {
		return Field{}, 0, ErrTruncatedBuffer
	}
	id := binary.BigEndian.Uint16(buf[offset : offset+2])
	l := int(buf[offset+2])
	start := offset + HeaderLen
	if len(buf)-start < l {
		return Field{}, 0, fmt.Errorf("%w: field 0x%04x declares %d bytes, %d remain",
			ErrTruncatedBuffer, id, l, len(buf)-start)
	}
	val := make([]byte, l)
	copy(val, buf[start:start+l])
	return Field{ID: id, Value: val}, HeaderLen + l, nil
}

// DecodeFields reads fields until buf is exhausted.
func DecodeFields(buf []byte) ([]Field, error) {
	fields := make([]Field, 0, 8)
	for offset := 0; offset < len(buf); {
		f, n, err := DecodeField(buf, offset)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
		offset += n
	}
	return fields, nil
}

// EncodeField appends f to dst.
func EncodeField(dst *Buffer, f Field) error {
	if len(f.Value) > MaxValueLen {
		return fmt.Errorf("%w: field 0x%04x has %d bytes", ErrFieldTooLarge, f.ID, len(f.Value))
	}
	if dst.Remaining() < HeaderLen+len(f.Value) {
		return fmt.Errorf("%w: field 0x%04x needs %d bytes, %d remain",
			ErrBufferOverflow, f.ID, HeaderLen+len(f.Value), dst.Remaining())
	}
	var hdr [HeaderLen]byte
	binary.BigEndian.PutUint16(hdr[0:2], f.ID)
	hdr[2] = byte(len(f.Value))
	// capacity already checked
	_ = dst.Write(hdr[:])
	return dst.Write(f.Value)
}

// Int parses the value as an ASCII decimal integer.
func (f Field) Int() (int, error) {
	s := strings.TrimSpace(f.Text())
	if s == "" {
		return 0, fmt.Errorf("%w: field 0x%04x is empty", ErrNotNumeric, f.ID)
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: field 0x%04x=%q", ErrNotNumeric, f.ID, s)
	}
	return v, nil
}

// Float parses the value as an ASCII decimal number.
func (f Field) Float() (float64, error) {
	s := strings.TrimSpace(f.Text())
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: field 0x%04x=%q", ErrNotNumeric, f.ID, s)
	}
	return v, nil
}

// Text returns the value as a string, cut at the first NUL.
func (f Field) Text() string {
	if i := bytes.IndexByte(f.Value, 0); i >= 0 {
		return string(f.Value[:i])
	}
	return string(f.Value)
}

// Blob returns a copy of the raw value.
func (f Field) Blob() []byte {
	out := make([]byte, len(f.Value))
	copy(out, f.Value)
	return out
}

// Find returns the first field matching id.
func Find(fields []Field, id uint16) (Field, bool) {
	for _, f := range fields {
		if f.ID == id {
			return f, true
		}
	}
	return Field{}, false
}
