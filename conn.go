// Package pgwire is a client-side implementation of the PostgreSQL
// frontend/backend wire protocol, version 3.0: connection establishment
// (handshake, parameter negotiation, trust/cleartext/MD5/SCRAM-SHA-256
// authentication), message framing over an arbitrarily chunked byte
// stream, and simple-query execution.
package pgwire

import (
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/pgwire/pgwire/internal/plog"
)

// Connection is a single PostgreSQL wire-protocol session. It is not safe
// for concurrent use by multiple goroutines except where noted (Close and
// Stats may be called at any time); issuing a second Query while one is
// in flight returns a UsageError rather than racing.
type Connection struct {
	cfg  Config
	conn net.Conn

	mu            sync.Mutex
	state         State
	acc           accumulator
	params        map[string]string
	backendPID    int32
	backendSecret int32
	noticeHandler NoticeHandler
	scram         *scramState
	pending       *pendingQuery

	writeMu sync.Mutex

	connectDone chan error
}

// pendingQuery accumulates the backend's response to one simple-query
// Query message until the terminating ReadyForQuery arrives.
type pendingQuery struct {
	query      string
	fields     []FieldDescriptor
	rows       []Row
	commandTag string
	command    string
	rowCount   int
	oid        *int
	err        error
	done       chan struct{}
}

func (p *pendingQuery) finish() {
	close(p.done)
}

// Connect dials cfg.Host:cfg.Port, performs the startup handshake
// and returns a Connection in StateReady, or the first
// error encountered. ctx governs both the TCP dial and the handshake; if
// it carries no deadline, cfg.ConnectTimeout applies to the dial only.
func Connect(ctx context.Context, cfg Config) (*Connection, error) {
	cfg = cfg.withDefaults()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	dialer := net.Dialer{Timeout: cfg.ConnectTimeout}
	rawConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &TransportError{Cause: err}
	}

	c := &Connection{
		cfg:           cfg,
		conn:          rawConn,
		state:         StateConnecting,
		params:        make(map[string]string),
		noticeHandler: defaultNoticeHandler,
		connectDone:   make(chan error, 1),
	}

	go c.readLoop()

	c.mu.Lock()
	c.state = StateAuthenticating
	c.mu.Unlock()

	if err := c.writeFrame(buildStartup(cfg.User, cfg.Database, cfg.Encoding)); err != nil {
		transportErr := &TransportError{Cause: err}
		c.fail(transportErr)
		return nil, transportErr
	}

	select {
	case err := <-c.connectDone:
		if err != nil {
			_ = c.conn.Close()
			return nil, err
		}
		return c, nil
	case <-ctx.Done():
		timeoutErr := &TimeoutError{Message: "connect timed out"}
		c.fail(timeoutErr)
		_ = c.conn.Close()
		return nil, timeoutErr
	}
}

// Query executes sql as a simple-query: the whole string is
// sent in one Query message, and the backend may treat it as several
// semicolon-separated statements. When more than one ships before
// ReadyForQuery, the rows of every statement are appended to Rows in
// arrival order (each Column named from the RowDescription in force when
// its row arrived), Fields holds the last RowDescription received, and
// Command, RowCount, CommandTag, and OID come from the last
// CommandComplete. Earlier statements' rows are not dropped.
//
// Concurrent calls on the same Connection are rejected with a UsageError;
// the connection remains usable afterward. A *Error return means the
// query failed server-side but the connection is still Ready. Every other
// error kind is fatal: the connection transitions to StateFailed and must
// be discarded.
func (c *Connection) Query(ctx context.Context, sql string) (*QueryResult, error) {
	c.mu.Lock()
	switch c.state {
	case StateReady:
	case StateClosed:
		c.mu.Unlock()
		return nil, &UsageError{Message: "connection is closed"}
	case StateFailed:
		c.mu.Unlock()
		return nil, &UsageError{Message: "connection has failed and cannot be reused"}
	default:
		st := c.state
		c.mu.Unlock()
		return nil, &UsageError{Message: fmt.Sprintf("query called while connection is %s", st)}
	}

	pending := &pendingQuery{query: sql, done: make(chan struct{})}
	c.pending = pending
	c.state = StateBusy
	c.mu.Unlock()

	if err := c.writeFrame(buildQuery(sql)); err != nil {
		transportErr := &TransportError{Cause: err}
		c.fail(transportErr)
		return nil, transportErr
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.QueryTimeout)
		defer cancel()
	}

	select {
	case <-pending.done:
		if pending.err != nil {
			return nil, pending.err
		}
		return &QueryResult{
			Rows:       pending.rows,
			Fields:     pending.fields,
			Command:    pending.command,
			RowCount:   pending.rowCount,
			CommandTag: pending.commandTag,
			OID:        pending.oid,
		}, nil
	case <-ctx.Done():
		timeoutErr := &TimeoutError{Message: "query timed out"}
		c.fail(timeoutErr)
		return nil, timeoutErr
	}
}

// Close terminates the session. It is safe to call more than once and
// safe to call while a query is in flight, in which case Query returns a
// UsageError instead of hanging.
func (c *Connection) Close() error {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return nil
	}
	prevState := c.state
	c.state = StateClosed
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	if pending != nil {
		pending.err = &UsageError{Message: "connection closed while query in flight"}
		close(pending.done)
	}

	if prevState == StateReady || prevState == StateBusy {
		_ = c.writeFrame(buildTerminate())
	}
	return c.conn.Close()
}

// ConnectionStats is a snapshot of session-level bookkeeping, useful for
// diagnostics and tests.
type ConnectionStats struct {
	State            State
	BackendPID       int32
	BackendSecretKey int32
	Parameters       map[string]string
}

// Stats returns a snapshot of the connection's current state, backend key
// data, and negotiated session parameters. Safe to call concurrently with
// Query and Close.
func (c *Connection) Stats() ConnectionStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	params := make(map[string]string, len(c.params))
	for k, v := range c.params {
		params[k] = v
	}
	return ConnectionStats{
		State:            c.state,
		BackendPID:       c.backendPID,
		BackendSecretKey: c.backendSecret,
		Parameters:       params,
	}
}

func (c *Connection) getState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Connection) writeFrame(b []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err := c.conn.Write(b)
	return err
}

// readLoop is the connection's single reader goroutine: it feeds raw
// bytes into the accumulator and dispatches every complete frame it
// yields, for the lifetime of the TCP connection.
func (c *Connection) readLoop() {
	buf := make([]byte, 4096)
	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			c.mu.Lock()
			c.acc.write(buf[:n])
			c.mu.Unlock()
			c.drain()
		}
		if err != nil {
			c.onReadError(err)
			return
		}
	}
}

func (c *Connection) drain() {
	for {
		c.mu.Lock()
		msgType, body, resynced, ok := c.acc.next()
		c.mu.Unlock()
		if resynced > 0 {
			plog.Warnf("discarded %d byte(s) resynchronizing message framing", resynced)
		}
		if !ok {
			return
		}
		c.dispatch(msgType, body)
	}
}

func (c *Connection) onReadError(err error) {
	if errors.Is(err, io.EOF) {
		err = fmt.Errorf("connection closed by server: %w", err)
	}
	c.fail(&TransportError{Cause: err})
}

// fail moves the connection permanently to StateFailed and unblocks
// whichever of Connect/Query the connection was suspended on, per
// every kind but *Error is fatal. Calling it more than once,
// or when the connection is already idle, is a harmless no-op beyond the
// state transition. A connection that is already Closed stays Closed.
func (c *Connection) fail(err error) {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	prevState := c.state
	c.state = StateFailed
	pending := c.pending
	c.pending = nil
	done := c.connectDone
	c.mu.Unlock()

	switch prevState {
	case StateConnecting, StateAuthenticating:
		if done != nil {
			select {
			case done <- err:
			default:
			}
		}
	case StateBusy:
		if pending != nil {
			pending.err = err
			close(pending.done)
		}
	}

	if prevState != StateFailed && prevState != StateClosed {
		plog.Warnf("connection failed: %v", err)
	}
}

func md5Hex(s string) string {
	h := md5.New()
	h.Write([]byte(s))
	return fmt.Sprintf("%x", h.Sum(nil))
}
