package pgwire

import "time"

// Config holds the parameters needed to establish a connection. Unset
// fields take the defaults applied by withDefaults: host
// "localhost", port 5432, and UTF8 client encoding, mirroring libpq's own
// fallbacks.
type Config struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	Encoding string

	// ConnectTimeout bounds the TCP dial only (if the context passed to
	// Connect has an earlier deadline, that one wins); the startup
	// handshake after the dial is bounded by the context alone. Zero means
	// no timeout beyond the context.
	ConnectTimeout time.Duration

	// QueryTimeout bounds a Query call when the context passed to it
	// carries no deadline of its own. Defaults to 30 seconds.
	QueryTimeout time.Duration
}

const defaultQueryTimeout = 30 * time.Second

func (cfg Config) withDefaults() Config {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 5432
	}
	if cfg.Encoding == "" {
		cfg.Encoding = "UTF8"
	}
	if cfg.QueryTimeout == 0 {
		cfg.QueryTimeout = defaultQueryTimeout
	}
	return cfg
}
