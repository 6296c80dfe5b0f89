package dispatch

import (
	"errors"

	"github.com/danmuck/afcctl/internal/protocol"
	"github.com/danmuck/afcctl/internal/protocol/packet"
	"github.com/danmuck/afcctl/internal/protocol/schema"
)

// Respond appends the status and message fields that summarize err.
// Vendor failures get a message distinct from protocol and validation failures.
func Respond(resp *packet.Packet, err error) error {
	status, message := Outcome(err)
	if e := resp.AppendByteField(schema.FieldStatus, status); e != nil {
		return e
	}
	return resp.AppendStringField(schema.FieldMessage, message)
}

// Outcome maps err onto the wire status byte and message.
func Outcome(err error) (byte, string) {
	if err == nil {
		return schema.StatusOK, schema.MessageOK
	}
	var vendorErr *protocol.VendorActionError
	if errors.As(err, &vendorErr) {
		return schema.StatusNotOK, schema.MessageVendorError + ": " + vendorErr.Action
	}
	return schema.StatusNotOK, schema.MessageNotOK
}
