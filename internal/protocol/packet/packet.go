package packet

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/danmuck/afcctl/internal/protocol/tlv"
)

const (
	HeaderLen = 7

	Version uint8 = 1

	// BufferLen bounds one encoded packet.
	BufferLen = 1024
	// MaxFields bounds the field count of one packet.
	MaxFields = 32
)

var (
	ErrTooManyFields  = errors.New("packet: too many fields")
	ErrPacketTooLarge = errors.New("packet: packet exceeds buffer capacity")
)

// Header is the fixed packet header.
type Header struct {
	Version   uint8
	Command   uint16
	Sequence  uint16
	Reserved  uint8
	Reserved2 uint8
}

// Limits constrains decode/encode memory use.
type Limits struct {
	MaxBytes  int
	MaxFields int
}

func DefaultLimits() Limits {
	return Limits{
		MaxBytes:  BufferLen,
		MaxFields: MaxFields,
	}
}

// Packet is one request or response. It is owned by the exchange that created it.
type Packet struct {
	Header Header
	Fields []tlv.Field

	limits Limits
	size   int
}

// New returns an empty packet bounded by limits.
func New(limits Limits) *Packet {
	return &Packet{limits: limits.withDefaults(), size: HeaderLen}
}

// Decode parses a complete inbound buffer.
func Decode(b []byte, limits Limits) (*Packet, error) {
	limits = limits.withDefaults()
	if len(b) > limits.MaxBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrPacketTooLarge, len(b))
	}
	if len(b) < HeaderLen {
		return nil, fmt.Errorf("%w: header needs %d bytes, got %d", tlv.ErrTruncatedBuffer, HeaderLen, len(b))
	}
	p := New(limits)
	p.Header = decodeHeader(b[:HeaderLen])
	for offset := HeaderLen; offset < len(b); {
		f, n, err := tlv.DecodeField(b, offset)
		if err != nil {
			return nil, err
		}
		if len(p.Fields) >= limits.MaxFields {
			return nil, fmt.Errorf("%w: more than %d", ErrTooManyFields, limits.MaxFields)
		}
		p.Fields = append(p.Fields, f)
		offset += n
	}
	p.size = len(b)
	return p, nil
}

// Encode serializes p into a buffer of at most limits.MaxBytes.
func Encode(p *Packet, limits Limits) ([]byte, error) {
	limits = limits.withDefaults()
	if len(p.Fields) > limits.MaxFields {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyFields, len(p.Fields), limits.MaxFields)
	}
	buf := tlv.NewBuffer(limits.MaxBytes)
	if err := buf.Write(encodeHeader(p.Header)); err != nil {
		return nil, err
	}
	for _, f := range p.Fields {
		if err := tlv.EncodeField(buf, f); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// FindField returns the first field matching id.
func (p *Packet) FindField(id uint16) (tlv.Field, bool) {
	return tlv.Find(p.Fields, id)
}

// AppendHeader sets the response command and sequence.
func (p *Packet) AppendHeader(command, sequence uint16) {
	p.Header = Header{Version: Version, Command: command, Sequence: sequence}
}

func (p *Packet) AppendByteField(id uint16, v byte) error {
	return p.appendField(id, []byte{v})
}

func (p *Packet) AppendBytesField(id uint16, v []byte) error {
	return p.appendField(id, v)
}

func (p *Packet) AppendStringField(id uint16, v string) error {
	return p.appendField(id, []byte(v))
}

// Size returns the encoded size of p.
func (p *Packet) Size() int {
	return p.size
}

func (p *Packet) appendField(id uint16, v []byte) error {
	if p.limits.MaxBytes == 0 {
		p.limits = DefaultLimits()
		p.size = HeaderLen
		for _, f := range p.Fields {
			p.size += tlv.HeaderLen + len(f.Value)
		}
	}
	if len(v) > tlv.MaxValueLen {
		return fmt.Errorf("%w: field 0x%04x has %d bytes", tlv.ErrFieldTooLarge, id, len(v))
	}
	if len(p.Fields) >= p.limits.MaxFields {
		return fmt.Errorf("%w: field 0x%04x", ErrTooManyFields, id)
	}
	need := tlv.HeaderLen + len(v)
	if p.size+need > p.limits.MaxBytes {
		return fmt.Errorf("%w: field 0x%04x needs %d bytes, %d remain",
			tlv.ErrBufferOverflow, id, need, p.limits.MaxBytes-p.size)
	}
	val := make([]byte, len(v))
	copy(val, v)
	p.Fields = append(p.Fields, tlv.Field{ID: id, Value: val})
	p.size += need
	return nil
}

func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.MaxBytes <= 0 {
		l.MaxBytes = d.MaxBytes
	}
	if l.MaxFields <= 0 {
		l.MaxFields = d.MaxFields
	}
	return l
}

func encodeHeader(h Header) []byte {
	buf := make([]byte, HeaderLen)
	buf[0] = h.Version
	binary.BigEndian.PutUint16(buf[1:3], h.Command)
	binary.BigEndian.PutUint16(buf[3:5], h.Sequence)
	buf[5] = h.Reserved
	buf[6] = h.Reserved2
	return buf
}

func decodeHeader(b []byte) Header {
	return Header{
		Version:   b[0],
		Command:   binary.BigEndian.Uint16(b[1:3]),
		Sequence:  binary.BigEndian.Uint16(b[3:5]),
		Reserved:  b[5],
		Reserved2: b[6],
	}
}
