package packet

import (
	"bytes"
	"errors"
	"testing"

	"github.com/danmuck/afcctl/internal/protocol/tlv"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	p := New(DefaultLimits())
	p.AppendHeader(0x9000, 42)
	if err := p.AppendStringField(0xB017, "https://afc.example.test"); err != nil {
		t.Fatalf("append url: %v", err)
	}
	if err := p.AppendByteField(0xA001, 0x30); err != nil {
		t.Fatalf("append status: %v", err)
	}

	b, err := Encode(p, DefaultLimits())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(b) != p.Size() {
		t.Fatalf("size mismatch: encoded=%d tracked=%d", len(b), p.Size())
	}

	out, err := Decode(b, DefaultLimits())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Header.Command != 0x9000 || out.Header.Sequence != 42 || out.Header.Version != Version {
		t.Fatalf("unexpected header: %+v", out.Header)
	}
	url, ok := out.FindField(0xB017)
	if !ok || url.Text() != "https://afc.example.test" {
		t.Fatalf("unexpected url field: %+v ok=%v", url, ok)
	}
	status, ok := out.FindField(0xA001)
	if !ok || !bytes.Equal(status.Value, []byte{0x30}) {
		t.Fatalf("unexpected status field: %+v ok=%v", status, ok)
	}
}

func TestDecodeShortHeader(t *testing.T) {
	_, err := Decode([]byte{1, 0x90, 0x00}, DefaultLimits())
	if !errors.Is(err, tlv.ErrTruncatedBuffer) {
		t.Fatalf("expected ErrTruncatedBuffer, got %v", err)
	}
}

func TestDecodeTruncatedField(t *testing.T) {
	b := []byte{1, 0x90, 0x00, 0, 1, 0, 0, 0xB0, 0x17, 10, 'h', 't'}
	_, err := Decode(b, DefaultLimits())
	if !errors.Is(err, tlv.ErrTruncatedBuffer) {
		t.Fatalf("expected ErrTruncatedBuffer, got %v", err)
	}
}

func TestDecodeRejectsOversizedPacket(t *testing.T) {
	_, err := Decode(make([]byte, 64), Limits{MaxBytes: 32})
	if !errors.Is(err, ErrPacketTooLarge) {
		t.Fatalf("expected ErrPacketTooLarge, got %v", err)
	}
}

func TestDecodeRejectsTooManyFields(t *testing.T) {
	b := []byte{1, 0x90, 0x00, 0, 1, 0, 0}
	for i := 0; i < 3; i++ {
		b = append(b, 0xB0, byte(i), 0)
	}
	_, err := Decode(b, Limits{MaxFields: 2})
	if !errors.Is(err, ErrTooManyFields) {
		t.Fatalf("expected ErrTooManyFields, got %v", err)
	}
}

func TestAppendFieldOverflow(t *testing.T) {
	p := New(Limits{MaxBytes: HeaderLen + tlv.HeaderLen + 4})
	if err := p.AppendBytesField(1, []byte("abcd")); err != nil {
		t.Fatalf("first append should fit: %v", err)
	}
	err := p.AppendByteField(2, 0x30)
	if !errors.Is(err, tlv.ErrBufferOverflow) {
		t.Fatalf("expected ErrBufferOverflow, got %v", err)
	}
	if len(p.Fields) != 1 {
		t.Fatalf("failed append must not add a field, got %d", len(p.Fields))
	}
}

func TestAppendFieldTooLarge(t *testing.T) {
	p := New(DefaultLimits())
	err := p.AppendBytesField(1, make([]byte, tlv.MaxValueLen+1))
	if !errors.Is(err, tlv.ErrFieldTooLarge) {
		t.Fatalf("expected ErrFieldTooLarge, got %v", err)
	}
}

func TestAppendOnZeroValuePacketUsesDefaults(t *testing.T) {
	var p Packet
	p.AppendHeader(0x0000, 7)
	if err := p.AppendStringField(0xA000, "OK"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if p.Size() != HeaderLen+tlv.HeaderLen+2 {
		t.Fatalf("unexpected size %d", p.Size())
	}
}

func TestFindFieldFirstMatchWins(t *testing.T) {
	p := New(DefaultLimits())
	_ = p.AppendStringField(5, "a")
	_ = p.AppendStringField(5, "b")
	f, ok := p.FindField(5)
	if !ok || f.Text() != "a" {
		t.Fatalf("expected first match, got %+v", f)
	}
	if _, ok := p.FindField(6); ok {
		t.Fatalf("expected miss for absent id")
	}
}
