package tlv

// Buffer is a fixed-capacity byte sink. Writes never grow past the capacity
// given at construction.
type Buffer struct {
	buf []byte
}

func NewBuffer(capacity int) *Buffer {
	if capacity < 0 {
		capacity = 0
	}
	return &Buffer{buf: make([]byte, 0, capacity)}
}

func (b *Buffer) Len() int       { return len(b.buf) }
func (b *Buffer) Cap() int       { return cap(b.buf) }
func (b *Buffer) Remaining() int { return cap(b.buf) - len(b.buf) }

// Write appends p or fails without writing anything.
func (b *Buffer) Write(p []byte) error {
	if len(p) > b.Remaining() {
		return ErrBufferOverflow
	}
	b.buf = append(b.buf, p...)
	return nil
}

// Bytes returns a copy of the written bytes.
func (b *Buffer) Bytes() []byte {
	out := make([]byte, len(b.buf))
	copy(out, b.buf)
	return out
}
