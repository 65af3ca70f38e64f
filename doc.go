/*
Package pgwire is a client-side implementation of the PostgreSQL
frontend/backend wire protocol, version 3.0. It speaks the protocol
directly over a net.Conn rather than through database/sql: there is no
driver.Conn, no placeholder rewriting, no typed column decoding — only
connection establishment and simple-query execution, with every result
value surfaced as UTF-8 text.

# Connecting

	cfg := pgwire.Config{
		Host:     "localhost",
		Database: "example",
		User:     "example",
		Password: "example",
	}
	conn, err := pgwire.Connect(context.Background(), cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

Connect performs the full startup handshake: it sends the
Startup message, negotiates whichever of trust, cleartext, MD5, or
SCRAM-SHA-256 authentication the server asks for, and returns once
ReadyForQuery arrives. A *Connection is not safe for concurrent Query
calls; issuing one while another is in flight returns a [*UsageError]
rather than racing.

# Querying

	result, err := conn.Query(context.Background(), "select id, name from users")
	if err != nil {
		var pgErr *pgwire.Error
		if errors.As(err, &pgErr) {
			fmt.Println("server error:", pgErr.Code.Name())
		}
		return
	}
	for _, row := range result.Rows {
		col, _ := row.Get("name")
		fmt.Println(col.Value)
	}

Query sends its argument as a single simple-query Query message — there
is no parameter binding, and a semicolon-separated string
runs as multiple statements: their rows are all appended to Rows, while
Fields and the command tag describe the last statement. Every
column value comes back as UTF-8 text in [Column.Value]; [Column.Null]
distinguishes SQL NULL from the empty string.

# Errors

A failed query returns a *[Error] and leaves the connection in
StateReady — the one recoverable error kind. Every other error kind
([*TransportError], [*ProtocolError], [*AuthenticationError],
[*TimeoutError]) is fatal: once returned, the Connection has moved to
StateFailed and must be discarded.

# Notices

The server may send asynchronous NoticeResponse messages outside of any
query. By default these are logged; call [Connection.SetNoticeHandler]
to install your own sink.

# Non-goals

This package does not implement the extended query protocol (Parse/Bind/
Describe/Execute), COPY, LISTEN/NOTIFY, typed column decoding, connection
pooling, or TLS negotiation.
*/
package pgwire
