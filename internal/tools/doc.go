// Package tools provides host helpers shared by runtime modules.
//
// Ownership boundary:
// - command execution helpers used by vendor action hooks
package tools
