// Message reassembly: turns an arbitrarily
// chunked backend byte stream into a sequence of complete, typed messages.
// Grounded on packetd's bufbytes.Bytes growable-buffer pattern, generalized
// here from a capped single-buffer into an uncapped read-cursor buffer that
// knows backend frame boundaries.
package pgwire

import "encoding/binary"

// accumulator buffers bytes read off the wire and yields complete backend
// messages as they become available. Every backend message (the Startup
// message is the only untyped frame and is never read by this type) has the
// form [1-byte type][4-byte big-endian length, itself included][length-4
// bytes of body].
type accumulator struct {
	buf []byte
	pos int
}

// write appends newly read bytes. Safe to call with any chunk size,
// including single bytes or multiple frames at once.
func (a *accumulator) write(p []byte) {
	a.buf = append(a.buf, p...)
}

// next extracts the next complete message, if one is fully buffered. ok is
// false when more bytes are needed; the caller should read more and call
// next again. A length field under 4 (the minimum, covering the length
// field itself) cannot belong to a real frame, so next resynchronizes by
// discarding one byte and retrying rather than wedging forever; resynced
// reports how many bytes this call discarded, so the caller can log it.
func (a *accumulator) next() (msgType byte, body []byte, resynced int, ok bool) {
	for {
		avail := len(a.buf) - a.pos
		if avail < 5 {
			a.compact()
			return 0, nil, resynced, false
		}
		length := int32(binary.BigEndian.Uint32(a.buf[a.pos+1 : a.pos+5]))
		if length < 4 {
			a.pos++
			resynced++
			continue
		}
		total := 1 + int(length)
		if avail < total {
			a.compact()
			return 0, nil, resynced, false
		}
		msgType = a.buf[a.pos]
		body = append([]byte(nil), a.buf[a.pos+5:a.pos+total]...)
		a.pos += total
		return msgType, body, resynced, true
	}
}

// compact discards already-consumed bytes so the buffer doesn't grow
// without bound across a long-lived connection; it runs only when no full
// frame is available, so the copy is bounded by the unconsumed backlog
// rather than the connection's total lifetime traffic.
func (a *accumulator) compact() {
	if a.pos == 0 {
		return
	}
	n := copy(a.buf, a.buf[a.pos:])
	a.buf = a.buf[:n]
	a.pos = 0
}
