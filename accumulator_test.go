package pgwire

import (
	"bytes"
	"math/rand"
	"testing"
)

func frame(msgType byte, body []byte) []byte {
	w := newWriteBuf(msgType, true)
	w.bytes(body)
	return w.wrap()
}

func TestAccumulatorWholeMessagesAtOnce(t *testing.T) {
	var a accumulator
	a.write(frame('Z', []byte("I")))
	a.write(frame('C', []byte("SELECT 1\x00")))

	typ, body, resynced, ok := a.next()
	if !ok || typ != 'Z' || string(body) != "I" || resynced != 0 {
		t.Fatalf("got %q %q %v %d", typ, body, ok, resynced)
	}
	typ, body, resynced, ok = a.next()
	if !ok || typ != 'C' || string(body) != "SELECT 1\x00" || resynced != 0 {
		t.Fatalf("got %q %q %v %d", typ, body, ok, resynced)
	}
	if _, _, _, ok := a.next(); ok {
		t.Fatal("expected no more messages")
	}
}

// TestAccumulatorArbitraryChunking feeds the same stream through 200
// randomly chunked splits (1 to 7 bytes per write) and checks that the same
// N messages come out regardless of how the underlying reads happened to be
// chunked.
func TestAccumulatorArbitraryChunking(t *testing.T) {
	msgs := [][2]any{
		{byte('T'), []byte("hello")},
		{byte('D'), []byte("")},
		{byte('C'), []byte("SELECT 3\x00")},
		{byte('Z'), []byte("I")},
	}
	var stream []byte
	for _, m := range msgs {
		stream = append(stream, frame(m[0].(byte), m[1].([]byte))...)
	}

	rng := rand.New(rand.NewSource(1))
	for trial := 0; trial < 200; trial++ {
		var a accumulator
		var got [][]byte
		pos := 0
		for pos < len(stream) {
			n := 1 + rng.Intn(7)
			if pos+n > len(stream) {
				n = len(stream) - pos
			}
			a.write(stream[pos : pos+n])
			pos += n
			for {
				typ, body, _, ok := a.next()
				if !ok {
					break
				}
				got = append(got, append([]byte{typ}, body...))
			}
		}
		if len(got) != len(msgs) {
			t.Fatalf("trial %d: got %d messages, want %d", trial, len(got), len(msgs))
		}
		for i, m := range msgs {
			want := append([]byte{m[0].(byte)}, m[1].([]byte)...)
			if !bytes.Equal(got[i], want) {
				t.Fatalf("trial %d message %d: got %q want %q", trial, i, got[i], want)
			}
		}
	}
}

func TestAccumulatorPartialLengthBuffers(t *testing.T) {
	var a accumulator
	full := frame('C', []byte("SELECT 1\x00"))
	a.write(full[:3]) // type byte + 2 bytes of the length field
	if _, _, _, ok := a.next(); ok {
		t.Fatal("expected no message with a partial length field")
	}
	a.write(full[3:])
	typ, body, resynced, ok := a.next()
	if !ok || typ != 'C' || string(body) != "SELECT 1\x00" || resynced != 0 {
		t.Fatalf("got %q %q %v %d", typ, body, ok, resynced)
	}
}

// TestAccumulatorResyncsOnShortLength exercises the length<4 recovery
// path: a bogus length field is skipped one byte at a time until framing
// lands on a message that makes sense again, and the discarded byte count
// is reported back to the caller so it can be logged.
func TestAccumulatorResyncsOnShortLength(t *testing.T) {
	var a accumulator
	var stream []byte
	stream = append(stream, 'X', 0, 0, 0, 2) // length 2 < 4, impossible
	stream = append(stream, frame('Z', []byte("I"))...)

	a.write(stream)
	typ, body, resynced, ok := a.next()
	if !ok {
		t.Fatal("expected to resynchronize and find the valid frame")
	}
	if typ != 'Z' || string(body) != "I" {
		t.Fatalf("got %q %q", typ, body)
	}
	if resynced != 1 {
		t.Fatalf("got resynced=%d, want 1", resynced)
	}
}
