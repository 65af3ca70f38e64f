// Outbound message construction.
//
// Message-type collision note: 'S', 'D', 'C', 'E' mean
// different things depending on direction. This file only ever builds
// frontend-to-backend frames, so its byte constants are unambiguous; the
// backend-to-frontend codes live in internal/proto and are dispatched by
// dispatch.go, never by these.
package pgwire

import "encoding/binary"

const (
	startupProtocolVersion = 196608 // 3 << 16 | 0

	msgQuery               byte = 'Q'
	msgPasswordMessage     byte = 'p'
	msgSASLInitialResponse byte = 'p'
	msgSASLResponse        byte = 'p'
	msgTerminate           byte = 'X'
)

// buildStartup encodes the untyped Startup message: protocol version
// followed by repeated key\0value\0 pairs and a trailing NUL. The length
// prefix covers the whole frame, itself included, and there is no leading
// type byte.
func buildStartup(user, database, clientEncoding string) []byte {
	w := newWriteBuf(0, false)
	w.int32(startupProtocolVersion)
	w.string("user")
	w.string(user)
	w.string("database")
	w.string(database)
	if clientEncoding != "" {
		w.string("client_encoding")
		w.string(clientEncoding)
	}
	w.buf = append(w.buf, 0)
	return w.wrap()
}

// buildQuery encodes a simple-query Query message.
func buildQuery(sql string) []byte {
	w := newWriteBuf(msgQuery, true)
	w.string(sql)
	return w.wrap()
}

// buildPassword encodes a PasswordMessage. withTerminator is true for
// cleartext and MD5 responses (the password is itself a C string) and false
// for SCRAM follow-ups, whose payload is not NUL-terminated.
func buildPassword(body []byte, withTerminator bool) []byte {
	w := newWriteBuf(msgPasswordMessage, true)
	w.bytes(body)
	if withTerminator {
		w.byte(0)
	}
	return w.wrap()
}

// buildSASLInitial encodes a SASLInitialResponse: mechanism name, a NUL
// terminator, then a 4-byte big-endian length of clientFirst followed by
// clientFirst itself.
func buildSASLInitial(mechanism string, clientFirst []byte) []byte {
	w := newWriteBuf(msgSASLInitialResponse, true)
	w.string(mechanism)
	lenBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(lenBuf, uint32(len(clientFirst)))
	w.bytes(lenBuf)
	w.bytes(clientFirst)
	return w.wrap()
}

// buildTerminate encodes the fixed 5-byte Terminate message.
func buildTerminate() []byte {
	return []byte{msgTerminate, 0, 0, 0, 4}
}
