package pgwire

import "testing"

func TestWriteBufTypedFrame(t *testing.T) {
	w := newWriteBuf('Q', true)
	w.string("select 1")
	got := w.wrap()
	if got[0] != 'Q' {
		t.Fatalf("got type byte %q", got[0])
	}
	r := readBuf(got[1:5])
	length := r.int32()
	if length != len(got)-1 {
		t.Fatalf("length field %d, total frame minus type byte %d", length, len(got)-1)
	}
}

func TestWriteBufUntypedFrame(t *testing.T) {
	w := newWriteBuf(0, false)
	w.int32(196608)
	got := w.wrap()
	r := readBuf(got[:4])
	length := r.int32()
	if length != len(got) {
		t.Fatalf("length field %d, total frame %d", length, len(got))
	}
}

func TestReadBufRoundTrip(t *testing.T) {
	w := newWriteBuf(0, false)
	w.int32(-7)
	w.int16(42)
	w.string("hi")
	w.byte(9)
	body := w.buf[4:] // strip the reserved (unfilled) length field
	r := readBuf(body)
	if n := r.int32(); n != -7 {
		t.Fatalf("int32 got %d", n)
	}
	if n := r.int16(); n != 42 {
		t.Fatalf("int16 got %d", n)
	}
	if s := r.string(); s != "hi" {
		t.Fatalf("string got %q", s)
	}
	if b := r.byte(); b != 9 {
		t.Fatalf("byte got %d", b)
	}
	if r.len() != 0 {
		t.Fatalf("expected buffer exhausted, %d bytes left", r.len())
	}
}

func TestReadBufStringPanicsWithoutTerminator(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic for an unterminated string")
		}
	}()
	r := readBuf([]byte("no terminator"))
	r.string()
}
