// Package wire defines the framing used between a producer and a collector.
//
// Each TCP connection carries exactly one message: the raw payload bytes
// followed by a three-byte terminator. There is no length prefix and no
// acknowledgement; the sender closes the connection after the write.
package wire

import "bytes"

// Terminator marks the end of a shipped frame on the wire:
// LF, '#', EOT.
var Terminator = []byte{0x0A, 0x23, 0x04}

// TerminatorLen is the number of trailing bytes stripped by a receiver.
const TerminatorLen = 3

// Append returns payload with the terminator appended. The input slice is
// not modified.
func Append(payload []byte) []byte {
	out := make([]byte, 0, len(payload)+TerminatorLen)
	out = append(out, payload...)
	return append(out, Terminator...)
}

// HasTerminator reports whether b ends with the terminator.
func HasTerminator(b []byte) bool {
	return len(b) >= TerminatorLen && bytes.Equal(b[len(b)-TerminatorLen:], Terminator)
}

// Strip returns the payload with the trailing terminator removed, or
// (nil, false) if b does not end with the terminator.
func Strip(b []byte) ([]byte, bool) {
	if !HasTerminator(b) {
		return nil, false
	}
	return b[:len(b)-TerminatorLen], true
}
