package pgwire

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/pgwire/pgwire/internal/pgtest"
	"github.com/pgwire/pgwire/internal/proto"
)

func testConfig(t *testing.T, f pgtest.Fake) Config {
	t.Helper()
	port, err := strconv.Atoi(f.Port())
	if err != nil {
		t.Fatal(err)
	}
	return Config{
		Host:     f.Host(),
		Port:     port,
		Database: "example",
		User:     "example",
	}
}

func dialCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestConnectTrustAuth(t *testing.T) {
	f := pgtest.NewFake(t)
	f.Accept(func(cn net.Conn) {
		f.Startup(cn, map[string]string{"server_version": "16.0"})
	})

	cfg := testConfig(t, f)
	conn, err := Connect(dialCtx(t), cfg)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Close()

	stats := conn.Stats()
	if stats.State != StateReady {
		t.Fatalf("got state %v", stats.State)
	}
	if stats.Parameters["server_version"] != "16.0" {
		t.Fatalf("got params %v", stats.Parameters)
	}
}

func TestConnectCleartextAuth(t *testing.T) {
	f := pgtest.NewFake(t)
	f.Accept(func(cn net.Conn) {
		f.ReadStartup(cn)
		f.WriteMsg(cn, proto.AuthenticationRequest, "\x00\x00\x00\x03")
		_, data, ok := f.ReadMsg(cn)
		if !ok {
			return
		}
		if string(data[:len(data)-1]) != "s3cret" {
			f.WriteMsg(cn, proto.ErrorResponse, "SFATAL\x00C28P01\x00Mpassword authentication failed\x00\x00")
			return
		}
		f.WriteMsg(cn, proto.AuthenticationRequest, "\x00\x00\x00\x00")
		f.WriteMsg(cn, proto.ReadyForQuery, "I")
	})

	cfg := testConfig(t, f)
	cfg.Password = "s3cret"
	conn, err := Connect(dialCtx(t), cfg)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Close()
}

func TestConnectMD5Auth(t *testing.T) {
	f := pgtest.NewFake(t)
	const salt = "abcd"
	f.Accept(func(cn net.Conn) {
		f.ReadStartup(cn)
		f.WriteMsg(cn, proto.AuthenticationRequest, "\x00\x00\x00\x05"+salt)
		_, data, ok := f.ReadMsg(cn)
		if !ok {
			return
		}
		want := "md5" + md5Hex(md5Hex("s3cret"+"example")+salt)
		if string(data[:len(data)-1]) != want {
			f.WriteMsg(cn, proto.ErrorResponse, "SFATAL\x00C28P01\x00Mpassword authentication failed\x00\x00")
			return
		}
		f.WriteMsg(cn, proto.AuthenticationRequest, "\x00\x00\x00\x00")
		f.WriteMsg(cn, proto.ReadyForQuery, "I")
	})

	cfg := testConfig(t, f)
	cfg.Password = "s3cret"
	conn, err := Connect(dialCtx(t), cfg)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Close()
}

func TestConnectWrongPasswordFails(t *testing.T) {
	f := pgtest.NewFake(t)
	f.Accept(func(cn net.Conn) {
		f.ReadStartup(cn)
		f.WriteMsg(cn, proto.AuthenticationRequest, "\x00\x00\x00\x03")
		if _, _, ok := f.ReadMsg(cn); !ok {
			return
		}
		f.WriteMsg(cn, proto.ErrorResponse, "SFATAL\x00C28P01\x00Mpassword authentication failed\x00\x00")
	})

	cfg := testConfig(t, f)
	cfg.Password = "wrong"
	_, err := Connect(dialCtx(t), cfg)
	if err == nil {
		t.Fatal("expected Connect to fail")
	}
	pgErr, ok := err.(*Error)
	if !ok {
		t.Fatalf("got %T: %v", err, err)
	}
	if pgErr.Code != "28P01" {
		t.Fatalf("got code %q", pgErr.Code)
	}
}

func TestQuerySimpleSelect(t *testing.T) {
	f := pgtest.NewFake(t)
	f.Accept(func(cn net.Conn) {
		f.Startup(cn, nil)
		if _, _, ok := f.ReadMsg(cn); !ok {
			return
		}
		f.SimpleQuery(cn, "SELECT 1", "id", 1, "name", "alice")
		f.WriteMsg(cn, proto.ReadyForQuery, "I")
	})

	conn, err := Connect(dialCtx(t), testConfig(t, f))
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Close()

	result, err := conn.Query(dialCtx(t), "select id, name from users limit 1")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(result.Rows) != 1 {
		t.Fatalf("got %d rows", len(result.Rows))
	}
	name, ok := result.Rows[0].Get("name")
	if !ok || name.Value != "alice" || name.Null {
		t.Fatalf("got %+v", name)
	}
	if result.Command != "SELECT" {
		t.Fatalf("got command %q", result.Command)
	}
}

func TestQueryEmptyQueryResponse(t *testing.T) {
	f := pgtest.NewFake(t)
	f.Accept(func(cn net.Conn) {
		f.Startup(cn, nil)
		if _, _, ok := f.ReadMsg(cn); !ok {
			return
		}
		f.WriteMsg(cn, proto.EmptyQueryResponse, "")
		f.WriteMsg(cn, proto.ReadyForQuery, "I")
	})

	conn, err := Connect(dialCtx(t), testConfig(t, f))
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Close()

	result, err := conn.Query(dialCtx(t), "")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(result.Rows) != 0 {
		t.Fatalf("got %d rows", len(result.Rows))
	}
}

func TestQueryServerErrorThenRecovers(t *testing.T) {
	f := pgtest.NewFake(t)
	queries := 0
	f.Accept(func(cn net.Conn) {
		f.Startup(cn, nil)
		for {
			_, _, ok := f.ReadMsg(cn)
			if !ok {
				return
			}
			queries++
			if queries == 1 {
				f.WriteMsg(cn, proto.ErrorResponse, "SERROR\x00C42601\x00Msyntax error\x00\x00")
				f.WriteMsg(cn, proto.ReadyForQuery, "I")
				continue
			}
			f.SimpleQuery(cn, "SELECT 1", "ok", 1)
			f.WriteMsg(cn, proto.ReadyForQuery, "I")
		}
	})

	conn, err := Connect(dialCtx(t), testConfig(t, f))
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Close()

	_, err = conn.Query(dialCtx(t), "not sql")
	if err == nil {
		t.Fatal("expected a server error")
	}
	if _, ok := err.(*Error); !ok {
		t.Fatalf("got %T", err)
	}
	if conn.Stats().State != StateReady {
		t.Fatalf("connection should still be usable, got state %v", conn.Stats().State)
	}

	result, err := conn.Query(dialCtx(t), "select 1")
	if err != nil {
		t.Fatalf("Query after recovery: %v", err)
	}
	if len(result.Rows) != 1 {
		t.Fatalf("got %d rows", len(result.Rows))
	}
}

func TestQueryRejectsConcurrentCall(t *testing.T) {
	f := pgtest.NewFake(t)
	release := make(chan struct{})
	f.Accept(func(cn net.Conn) {
		f.Startup(cn, nil)
		if _, _, ok := f.ReadMsg(cn); !ok {
			return
		}
		<-release
		f.SimpleQuery(cn, "SELECT 1", "ok", 1)
		f.WriteMsg(cn, proto.ReadyForQuery, "I")
	})

	conn, err := Connect(dialCtx(t), testConfig(t, f))
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Close()

	done := make(chan error, 1)
	go func() {
		_, err := conn.Query(dialCtx(t), "select pg_sleep(1)")
		done <- err
	}()

	// Give the first Query time to put the connection in StateBusy.
	time.Sleep(100 * time.Millisecond)
	_, err = conn.Query(dialCtx(t), "select 2")
	if _, ok := err.(*UsageError); !ok {
		t.Fatalf("expected a UsageError, got %T: %v", err, err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first query failed: %v", err)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	f := pgtest.NewFake(t)
	f.Accept(func(cn net.Conn) {
		f.Startup(cn, nil)
	})

	conn, err := Connect(dialCtx(t), testConfig(t, f))
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
