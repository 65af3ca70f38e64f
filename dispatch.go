// Connection state machine and backend message dispatch: an explicit
// state enum instead of leaving the connection's position implicit in
// which function happens to be on the call stack.
package pgwire

import (
	"fmt"

	"github.com/pgwire/pgwire/internal/plog"
	"github.com/pgwire/pgwire/internal/proto"
)

// State is the connection's position in the handshake/query lifecycle.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateAuthenticating
	StateReady
	StateBusy
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateReady:
		return "ready"
	case StateBusy:
		return "busy"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// dispatch routes one fully-framed backend message to the handler for the
// connection's current state. Message types with no handler for the
// current state — and any type the protocol doesn't define at all — are
// silently ignored.
func (c *Connection) dispatch(msgType byte, body []byte) {
	switch proto.ResponseCode(msgType) {
	case proto.ParameterStatus:
		c.handleParameterStatus(body)
	case proto.NoticeResponse:
		c.handleNotice(body)
	case proto.BackendKeyData:
		c.handleBackendKeyData(body)
	case proto.AuthenticationRequest:
		c.handleAuthentication(body)
	case proto.ReadyForQuery:
		c.handleReadyForQuery(body)
	case proto.ErrorResponse:
		c.handleErrorResponse(body)
	case proto.RowDescription:
		c.handleRowDescription(body)
	case proto.DataRow:
		c.handleDataRow(body)
	case proto.CommandComplete:
		c.handleCommandComplete(body)
	case proto.EmptyQueryResponse:
		c.handleEmptyQueryResponse()
	default:
		plog.Debugf("ignoring unhandled message type %s in state %s", proto.ResponseCode(msgType), c.getState())
	}
}

func (c *Connection) handleParameterStatus(body []byte) {
	name, value := parseParameterStatus(body)
	c.mu.Lock()
	c.params[name] = value
	c.mu.Unlock()
}

func (c *Connection) handleNotice(body []byte) {
	n := parseError(body, "")
	c.mu.Lock()
	handler := c.noticeHandler
	c.mu.Unlock()
	if handler != nil {
		handler(n)
	}
}

func (c *Connection) handleBackendKeyData(body []byte) {
	r := readBuf(body)
	if r.len() < 8 {
		return
	}
	c.mu.Lock()
	c.backendPID = r.int32()
	c.backendSecret = r.int32()
	c.mu.Unlock()
}

// handleAuthentication drives the authentication state machine:
// AuthenticationOk ends it successfully, Cleartext/MD5 answer in a single
// round trip, and SASL/SCRAM-SHA-256 threads a scramState across three
// backend messages.
func (c *Connection) handleAuthentication(body []byte) {
	r := readBuf(body)
	if r.len() < 4 {
		c.fail(&ProtocolError{Message: "truncated AuthenticationRequest"})
		return
	}
	code := proto.AuthCode(r.int32())
	switch code {
	case proto.AuthReqOk:
		// Authentication succeeded; ReadyForQuery follows once the server
		// finishes sending backend parameters.
	case proto.AuthReqPassword:
		if err := c.writeFrame(buildPassword([]byte(c.cfg.Password), true)); err != nil {
			c.fail(&TransportError{Cause: err})
		}
	case proto.AuthReqMD5:
		salt := string(r.next(4))
		hashed := "md5" + md5Hex(md5Hex(c.cfg.Password+c.cfg.User)+salt)
		if err := c.writeFrame(buildPassword([]byte(hashed), true)); err != nil {
			c.fail(&TransportError{Cause: err})
		}
	case proto.AuthReqSASL:
		mechanisms := parseCStringList(body[4:])
		found := false
		for _, m := range mechanisms {
			if m == scramMechanism {
				found = true
				break
			}
		}
		if !found {
			c.fail(&AuthenticationError{Message: fmt.Sprintf("server does not offer %s", scramMechanism)})
			return
		}
		c.scram = &scramState{}
		first := c.scram.start(c.cfg.User)
		if err := c.writeFrame(buildSASLInitial(scramMechanism, first)); err != nil {
			c.fail(&TransportError{Cause: err})
		}
	case proto.AuthReqSASLCont:
		if c.scram == nil {
			c.fail(&ProtocolError{Message: "SASLContinue without a preceding SASL request"})
			return
		}
		final, err := c.scram.continueWithServerFirst(body[4:], c.cfg.Password)
		if err != nil {
			c.fail(err)
			return
		}
		if err := c.writeFrame(buildPassword(final, false)); err != nil {
			c.fail(&TransportError{Cause: err})
		}
	case proto.AuthReqSASLFin:
		if c.scram == nil {
			c.fail(&ProtocolError{Message: "SASLFinal without a preceding SASL request"})
			return
		}
		if err := c.scram.verifyServerFinal(body[4:]); err != nil {
			c.fail(err)
		}
	default:
		c.fail(&AuthenticationError{Message: fmt.Sprintf("unsupported authentication type %s", code)})
	}
}

// handleReadyForQuery completes whichever operation the connection is
// currently suspended on: the initial connect handshake, or an in-flight
// simple query.
func (c *Connection) handleReadyForQuery(body []byte) {
	c.mu.Lock()
	state := c.state
	switch state {
	case StateAuthenticating:
		c.state = StateReady
		done := c.connectDone
		c.mu.Unlock()
		if done != nil {
			done <- nil
		}
	case StateBusy:
		pending := c.pending
		c.pending = nil
		c.state = StateReady
		c.mu.Unlock()
		if pending != nil {
			pending.finish()
		}
	default:
		c.mu.Unlock()
	}
}

// handleErrorResponse records a ServerError. During the handshake this
// fails Connect outright (e.g. wrong password). During a
// query it is attached to the in-flight result and surfaces once the
// following ReadyForQuery arrives, leaving the connection usable — the one
// recoverable error kind.
func (c *Connection) handleErrorResponse(body []byte) {
	c.mu.Lock()
	state := c.state
	var query string
	if c.pending != nil {
		query = c.pending.query
	}
	c.mu.Unlock()
	serverErr := parseError(body, query)

	switch state {
	case StateAuthenticating:
		c.fail(serverErr)
	case StateBusy:
		c.mu.Lock()
		if c.pending != nil {
			c.pending.err = serverErr
		}
		c.mu.Unlock()
	default:
		plog.Warnf("unexpected ErrorResponse in state %s: %s", state, serverErr.Error())
	}
}

func (c *Connection) handleRowDescription(body []byte) {
	fields := parseRowDescription(body)
	c.mu.Lock()
	if c.pending != nil {
		c.pending.fields = fields
	}
	c.mu.Unlock()
}

func (c *Connection) handleDataRow(body []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return
	}
	cols := parseDataRow(body, c.pending.fields)
	c.pending.rows = append(c.pending.rows, Row{Columns: cols})
}

func (c *Connection) handleCommandComplete(body []byte) {
	tag, _ := readCString(body, 0)
	ct := parseCommandComplete(tag)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return
	}
	c.pending.commandTag = tag
	c.pending.command = ct.command
	c.pending.rowCount = ct.rowCount
	c.pending.oid = ct.oid
}

func (c *Connection) handleEmptyQueryResponse() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != nil {
		c.pending.command = "EMPTY"
	}
}

// parseCStringList reads NUL-terminated strings until an empty one, the
// format used for the AuthenticationSASL mechanism list.
func parseCStringList(body []byte) []string {
	var out []string
	off := 0
	for off < len(body) {
		s, next := readCString(body, off)
		if s == "" {
			break
		}
		out = append(out, s)
		off = next
	}
	return out
}
