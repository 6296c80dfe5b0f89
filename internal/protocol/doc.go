// Package protocol owns the control-app wire contract.
//
// Ownership boundary:
// - tlv field codec (protocol/tlv)
//
// - packet wrapper and header (protocol/packet)
//
// - field registry and command codes (protocol/schema)
//
// - error taxonomy shared by the dispatcher and handlers
package protocol
