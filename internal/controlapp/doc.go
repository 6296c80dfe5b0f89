// Package controlapp hosts the AFC control endpoint as a process.
//
// Ownership boundary:
// - service lifecycle and signal handling
//
// - UDP control transport, one datagram per request, strictly serialized
//
// - optional read-only HTTP status surface (/health, /metrics, /config, /routes)
//
// Configuration state lives for one Serve call and is cleared when it returns.
package controlapp
