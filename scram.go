// SCRAM-SHA-256 client authentication (RFC 5802, RFC 7677).
// Most comments reference RFC 5802 terms.
package pgwire

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/text/unicode/norm"
)

const scramMechanism = "SCRAM-SHA-256"

// scramState carries the values threaded across the three SCRAM message
// exchanges so that start, continueWithServerFirst, and
// verifyServerFinal can be driven independently by the connection's
// authentication dispatch instead of blocking on recv calls themselves.
type scramState struct {
	clientNonce string
	serverNonce string
	salt        []byte
	iterations  int

	clientFirstMessageBare         string
	clientFirstMessage             []byte
	serverFirstMessage             string
	clientFinalMessageWithoutProof string
	clientFinalMessage             []byte

	saltedPassword []byte
	authMessage    string
}

// start builds the client-first-message (gs2 header "n,," plus
// "n=<saslName(user)>,r=<nonce>") and returns its bytes for the
// SASLInitialResponse.
func (s *scramState) start(user string) []byte {
	s.clientNonce = makeSCRAMNonce()
	s.clientFirstMessageBare = "n=" + saslName(user) + ",r=" + s.clientNonce
	s.clientFirstMessage = []byte("n,," + s.clientFirstMessageBare)
	return s.clientFirstMessage
}

// saslName escapes a username for use in a SCRAM "n=" attribute, per
// RFC 5802 §5.1: "=" becomes "=3D" and "," becomes "=2C" (the "=" escape
// must come first, or a literal "=" produced by the "," substitution would
// itself get re-escaped).
func saslName(u string) string {
	u = strings.ReplaceAll(u, "=", "=3D")
	u = strings.ReplaceAll(u, ",", "=2C")
	return u
}

// continueWithServerFirst parses the SASLContinue body (server-first-message:
// "r=<nonce>,s=<salt>,i=<iterations>"), derives SaltedPassword via
// PBKDF2-HMAC-SHA256, and returns the client-final-message bytes for the
// SASLResponse. password is normalized with NFKC rather than full RFC 4013
// SASLprep: PostgreSQL accepts whatever
// bytes the client sends here regardless, so the common case of an
// already-normalized password round-trips identically either way.
func (s *scramState) continueWithServerFirst(body []byte, password string) ([]byte, error) {
	s.serverFirstMessage = string(body)
	parts := strings.Split(s.serverFirstMessage, ",")
	if len(parts) != 3 || !strings.HasPrefix(parts[0], "r=") ||
		!strings.HasPrefix(parts[1], "s=") || !strings.HasPrefix(parts[2], "i=") {
		return nil, &AuthenticationError{Message: "malformed SCRAM server-first-message"}
	}

	s.serverNonce = parts[0][2:]
	if len(s.serverNonce) <= len(s.clientNonce) || !strings.HasPrefix(s.serverNonce, s.clientNonce) {
		return nil, &AuthenticationError{Message: "server SCRAM nonce does not extend client nonce"}
	}

	salt, err := base64.StdEncoding.DecodeString(parts[1][2:])
	if err != nil {
		return nil, &AuthenticationError{Message: "invalid SCRAM salt: " + err.Error()}
	}
	s.salt = salt

	iters, err := strconv.Atoi(parts[2][2:])
	if err != nil || iters <= 0 {
		return nil, &AuthenticationError{Message: "invalid SCRAM iteration count"}
	}
	s.iterations = iters

	normalized := norm.NFKC.String(password)

	s.saltedPassword = pbkdf2.Key([]byte(normalized), s.salt, s.iterations, sha256.Size, sha256.New)

	// client-final-message-without-proof, "biws" == base64("n,,")
	s.clientFinalMessageWithoutProof = "c=biws,r=" + s.serverNonce

	s.authMessage = s.clientFirstMessageBare + "," + s.serverFirstMessage + "," + s.clientFinalMessageWithoutProof

	proof := computeSCRAMClientProof(s.saltedPassword, s.authMessage)
	s.clientFinalMessage = []byte(fmt.Sprintf("%s,p=%s", s.clientFinalMessageWithoutProof, proof))
	return s.clientFinalMessage, nil
}

// verifyServerFinal parses the SASLFinal body ("v=<signature>") and checks
// it against the independently computed ServerSignature, rejecting a
// connection to a server that cannot prove it holds the stored key.
func (s *scramState) verifyServerFinal(body []byte) error {
	msg := string(body)
	if !strings.HasPrefix(msg, "v=") {
		return &AuthenticationError{Message: "malformed SCRAM server-final-message"}
	}
	want := computeSCRAMServerSignature(s.saltedPassword, s.authMessage)
	if subtle.ConstantTimeCompare([]byte(want), []byte(msg[2:])) != 1 {
		return &AuthenticationError{Message: "SCRAM server signature mismatch"}
	}
	return nil
}

func makeSCRAMNonce() string {
	data := make([]byte, 24)
	if _, err := rand.Read(data); err != nil {
		panic(&TransportError{Cause: err}) // crypto/rand failure is unrecoverable
	}
	return base64.StdEncoding.EncodeToString(data)
}

// computeSCRAMClientProof computes ClientKey := HMAC(SaltedPassword,
// "Client Key"), StoredKey := H(ClientKey), ClientSignature :=
// HMAC(StoredKey, AuthMessage), and ClientProof := ClientKey XOR
// ClientSignature.
func computeSCRAMClientProof(saltedPassword []byte, authMessage string) string {
	clientKey := computeSCRAMHMAC(saltedPassword, []byte("Client Key"))
	storedKey := sha256.Sum256(clientKey)
	clientSignature := computeSCRAMHMAC(storedKey[:], []byte(authMessage))
	proof := make([]byte, len(clientSignature))
	for i := range clientSignature {
		proof[i] = clientKey[i] ^ clientSignature[i]
	}
	return base64.StdEncoding.EncodeToString(proof)
}

// computeSCRAMServerSignature computes ServerKey := HMAC(SaltedPassword,
// "Server Key") and ServerSignature := HMAC(ServerKey, AuthMessage).
func computeSCRAMServerSignature(saltedPassword []byte, authMessage string) string {
	serverKey := computeSCRAMHMAC(saltedPassword, []byte("Server Key"))
	serverSignature := computeSCRAMHMAC(serverKey, []byte(authMessage))
	return base64.StdEncoding.EncodeToString(serverSignature)
}

func computeSCRAMHMAC(key, data []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}
