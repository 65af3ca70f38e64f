package pgwire

import "github.com/pgwire/pgwire/internal/plog"

// NoticeHandler is called synchronously for every NoticeResponse the
// backend sends outside of an in-flight query's result: notices are
// connection-level, not attached to a QueryResult.
// Query processing does not continue until the handler returns.
type NoticeHandler func(*Error)

// defaultNoticeHandler logs the notice and drops it. Connections that never
// call SetNoticeHandler still surface notices this way instead of silently
// discarding them.
func defaultNoticeHandler(n *Error) {
	if n == nil {
		return
	}
	switch n.Severity {
	case Ewarning:
		plog.Warnf("notice from server: %s", n.Error())
	default:
		plog.Infof("notice from server: %s", n.Error())
	}
}

// NoticeHandler returns the connection's current notice handler.
func (c *Connection) NoticeHandler() NoticeHandler {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.noticeHandler
}

// SetNoticeHandler installs handler as the connection's notice sink. A nil
// handler restores the default logging behavior.
//
// Note: the handler runs synchronously on the connection's read loop, so a
// slow handler delays processing of subsequent messages.
func (c *Connection) SetNoticeHandler(handler NoticeHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if handler == nil {
		handler = defaultNoticeHandler
	}
	c.noticeHandler = handler
}
