package wire

import (
	"bytes"
	"testing"
)

func TestAppendStrip(t *testing.T) {
	payload := []byte("P6\n1 1\n255\nabc")
	framed := Append(payload)

	if len(framed) != len(payload)+TerminatorLen {
		t.Fatalf("framed length = %d, want %d", len(framed), len(payload)+TerminatorLen)
	}
	if !bytes.Equal(framed[len(payload):], Terminator) {
		t.Errorf("terminator = %x, want %x", framed[len(payload):], Terminator)
	}

	stripped, ok := Strip(framed)
	if !ok {
		t.Fatal("Strip failed on framed payload")
	}
	if !bytes.Equal(stripped, payload) {
		t.Errorf("stripped = %q, want %q", stripped, payload)
	}
}

func TestAppendDoesNotAliasInput(t *testing.T) {
	payload := []byte("frame")
	framed := Append(payload)
	framed[0] = 'X'
	if payload[0] != 'f' {
		t.Error("Append modified its input")
	}
}

func TestStripRejectsUnterminated(t *testing.T) {
	for _, b := range [][]byte{nil, {0x04}, []byte("no terminator"), {0x0A, 0x23}} {
		if _, ok := Strip(b); ok {
			t.Errorf("Strip(%x) succeeded, want failure", b)
		}
	}
}

func TestHasTerminator(t *testing.T) {
	if HasTerminator([]byte{0x0A, 0x23}) {
		t.Error("short buffer reported terminated")
	}
	if !HasTerminator([]byte{'x', 0x0A, 0x23, 0x04}) {
		t.Error("terminated buffer not detected")
	}
	// terminator bytes mid-stream do not count
	if HasTerminator([]byte{0x0A, 0x23, 0x04, 'x'}) {
		t.Error("mid-stream terminator detected as trailing")
	}
}

func TestEmptyPayload(t *testing.T) {
	framed := Append(nil)
	if !bytes.Equal(framed, Terminator) {
		t.Fatalf("Append(nil) = %x, want bare terminator", framed)
	}
	stripped, ok := Strip(framed)
	if !ok || len(stripped) != 0 {
		t.Errorf("Strip = %q, %v; want empty, true", stripped, ok)
	}
}
