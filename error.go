package pgwire

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Error severities, as sent in an ErrorResponse/NoticeResponse's 'S' field.
const (
	Efatal   = "FATAL"
	Epanic   = "PANIC"
	Ewarning = "WARNING"
	Enotice  = "NOTICE"
	Edebug   = "DEBUG"
	Einfo    = "INFO"
	Elog     = "LOG"
)

// Error is a ServerError: an ErrorResponse sent by the
// backend, carrying the full field mapping the protocol defines. It fails
// the query in flight but leaves the connection usable after the following
// ReadyForQuery — the only recoverable error kind this package returns.
type Error struct {
	Severity         string
	Code             ErrorCode
	Message          string
	Detail           string
	Hint             string
	Position         string
	InternalPosition string
	InternalQuery    string
	Where            string
	Schema           string
	Table            string
	Column           string
	DataTypeName     string
	Constraint       string
	File             string
	Line             string
	Routine          string

	query string
}

// ErrorCode is a five-character SQLSTATE error code.
type ErrorCode string

// Name returns the "condition name" for the code.
// See http://www.postgresql.org/docs/current/static/errcodes-appendix.html
func (ec ErrorCode) Name() string {
	return errorCodeNames[ec]
}

// ErrorClass is the class (first two characters) of an ErrorCode.
type ErrorClass string

// Name returns the condition name of the class's "standard" error code
// (the one ending in "000").
func (ec ErrorClass) Name() string {
	return errorCodeNames[ErrorCode(ec+"000")]
}

// Class returns the error class, e.g. "28".
func (ec ErrorCode) Class() ErrorClass {
	return ErrorClass(ec[0:2])
}

// parseError parses an ErrorResponse/NoticeResponse body — a sequence of
// (1-byte field code, C string) pairs terminated by a standalone NUL — into
// an *Error. query, if non-empty, lets Error() report a column/line
// position relative to the statement that failed.
func parseError(body []byte, query string) *Error {
	err := &Error{query: query}
	for field, msg := range parseKeyValuePairs(body) {
		switch field {
		case 'S':
			err.Severity = msg
		case 'C':
			err.Code = ErrorCode(msg)
		case 'M':
			err.Message = msg
		case 'D':
			err.Detail = msg
		case 'H':
			err.Hint = msg
		case 'P':
			err.Position = msg
		case 'p':
			err.InternalPosition = msg
		case 'q':
			err.InternalQuery = msg
		case 'W':
			err.Where = msg
		case 's':
			err.Schema = msg
		case 't':
			err.Table = msg
		case 'c':
			err.Column = msg
		case 'd':
			err.DataTypeName = msg
		case 'n':
			err.Constraint = msg
		case 'F':
			err.File = msg
		case 'L':
			err.Line = msg
		case 'R':
			err.Routine = msg
		}
	}
	return err
}

// Fatal reports whether the server tagged this error FATAL.
func (e *Error) Fatal() bool {
	return e.Severity == Efatal
}

// SQLState returns the SQLSTATE code.
func (e *Error) SQLState() string {
	return string(e.Code)
}

func (e *Error) Error() string {
	msg := e.Message
	if e.query != "" && e.Position != "" {
		if pos, err := strconv.Atoi(e.Position); err == nil {
			lines := strings.Split(e.query, "\n")
			line, col := posToLine(pos, lines)
			if len(lines) == 1 {
				msg += " at column " + strconv.Itoa(col)
			} else {
				msg += " at position " + strconv.Itoa(line) + ":" + strconv.Itoa(col)
			}
		}
	}
	if e.Code != "" {
		return "pgwire: " + msg + " (" + string(e.Code) + ")"
	}
	return "pgwire: " + msg
}

// ErrorWithDetail renders the message with Detail, Hint, and a source
// excerpt, mirroring psql's multi-line error display.
func (e *Error) ErrorWithDetail() string {
	b := new(strings.Builder)
	b.Grow(len(e.Message) + len(e.Detail) + len(e.Hint) + 30)
	b.WriteString("ERROR:   ")
	b.WriteString(e.Message)
	if e.Code != "" {
		b.WriteString(" (")
		b.WriteString(string(e.Code))
		b.WriteByte(')')
	}
	if e.Detail != "" {
		b.WriteString("\nDETAIL:  ")
		b.WriteString(e.Detail)
	}
	if e.Hint != "" {
		b.WriteString("\nHINT:    ")
		b.WriteString(e.Hint)
	}

	if e.query != "" && e.Position != "" {
		pos, err := strconv.Atoi(e.Position)
		if err != nil {
			return b.String()
		}
		lines := strings.Split(e.query, "\n")
		line, col := posToLine(pos, lines)

		fmt.Fprintf(b, "\nCONTEXT: line %d, column %d:\n\n", line, col)
		if line > 2 {
			fmt.Fprintf(b, "% 7d | %s\n", line-2, expandTab(lines[line-3]))
		}
		if line > 1 {
			fmt.Fprintf(b, "% 7d | %s\n", line-1, expandTab(lines[line-2]))
		}
		expanded := expandTab(lines[line-1])
		diff := len(expanded) - len(lines[line-1])
		fmt.Fprintf(b, "% 7d | %s\n", line, expanded)
		fmt.Fprintf(b, "% 10s%s%s\n", "", strings.Repeat(" ", col-1+diff), "^")
	}

	return b.String()
}

func posToLine(pos int, lines []string) (line, col int) {
	read := 0
	for i := range lines {
		line++
		ll := utf8.RuneCountInString(lines[i]) + 1 // +1 for the removed newline
		if read+ll >= pos {
			col = pos - read
			if col < 1 {
				col = 1
			}
			break
		}
		read += ll
	}
	return line, col
}

func expandTab(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	l := 0
	for _, r := range s {
		if r == '\t' {
			tw := 8 - l%8
			b.WriteString(strings.Repeat(" ", tw))
			l += tw
			continue
		}
		b.WriteRune(r)
		l++
	}
	return b.String()
}

// The remaining error kinds. Each wraps a cause and is
// fatal to the connection except UsageError, which reflects a caller
// mistake rather than connection state.

// TransportError is a TCP-level failure. Fatal to the connection.
type TransportError struct{ Cause error }

func (e *TransportError) Error() string { return "pgwire: transport error: " + e.Cause.Error() }
func (e *TransportError) Unwrap() error { return e.Cause }

// ProtocolError is malformed framing or an unexpected message for the
// connection's current state. Fatal to the connection.
type ProtocolError struct{ Message string }

func (e *ProtocolError) Error() string { return "pgwire: protocol error: " + e.Message }

// AuthenticationError covers bad credentials, an unsupported auth
// mechanism, or a SCRAM server-signature mismatch. Fatal to connect.
type AuthenticationError struct{ Message string }

func (e *AuthenticationError) Error() string { return "pgwire: authentication error: " + e.Message }

// TimeoutError is a local query-deadline expiry. Fatal to the connection —
// the frame boundary at the moment of timeout is unknown, so no attempt is
// made to resynchronize.
type TimeoutError struct{ Message string }

func (e *TimeoutError) Error() string { return "pgwire: timeout: " + e.Message }

// UsageError reflects a caller invariant violation (e.g. a concurrent
// query on the same connection). Non-fatal: the connection remains usable.
type UsageError struct{ Message string }

func (e *UsageError) Error() string { return "pgwire: usage error: " + e.Message }
