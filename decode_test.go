package pgwire

import (
	"reflect"
	"testing"
)

func TestReadCString(t *testing.T) {
	buf := []byte("hello\x00world\x00")
	s, next := readCString(buf, 0)
	if s != "hello" || next != 6 {
		t.Fatalf("got %q %d", s, next)
	}
	s, next = readCString(buf, next)
	if s != "world" || next != 12 {
		t.Fatalf("got %q %d", s, next)
	}
}

func TestReadCStringUnterminated(t *testing.T) {
	buf := []byte("nope")
	s, next := readCString(buf, 0)
	if s != "nope" || next != len(buf) {
		t.Fatalf("got %q %d", s, next)
	}
}

func TestParseKeyValuePairs(t *testing.T) {
	buf := []byte("SERROR\x00C42601\x00Msyntax error\x00\x00")
	got := parseKeyValuePairs(buf)
	want := map[byte]string{'S': "ERROR", 'C': "42601", 'M': "syntax error"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestParseParameterStatus(t *testing.T) {
	name, value := parseParameterStatus([]byte("client_encoding\x00UTF8\x00"))
	if name != "client_encoding" || value != "UTF8" {
		t.Fatalf("got %q %q", name, value)
	}
}

func TestParseCommandCompleteSelect(t *testing.T) {
	ct := parseCommandComplete("SELECT 3")
	if ct.command != "SELECT" || ct.rowCount != 3 || ct.oid != nil {
		t.Fatalf("got %+v", ct)
	}
}

func TestParseCommandCompleteInsert(t *testing.T) {
	ct := parseCommandComplete("INSERT 0 1")
	if ct.command != "INSERT" || ct.rowCount != 1 || ct.oid == nil || *ct.oid != 0 {
		t.Fatalf("got %+v", ct)
	}
}

func TestParseCommandCompleteEmptyFields(t *testing.T) {
	ct := parseCommandComplete("")
	if ct.command != "UNKNOWN" {
		t.Fatalf("got %+v", ct)
	}
}

func TestParseRowDescription(t *testing.T) {
	w := newWriteBuf('T', true)
	w.int16(1)
	w.string("id")
	w.int32(0)
	w.int16(0)
	w.int32(23)
	w.int16(4)
	w.int32(-1)
	w.int16(0)
	body := w.wrap()[5:] // strip the type byte and length prefix next() would already have consumed
	fields := parseRowDescription(body)
	if len(fields) != 1 || fields[0].Name != "id" || fields[0].DataTypeOID != 23 {
		t.Fatalf("got %+v", fields)
	}
}

func TestParseDataRowWithNull(t *testing.T) {
	fields := []FieldDescriptor{{Name: "a"}, {Name: "b"}}
	w := newWriteBuf('D', true)
	w.int16(2)
	w.int32(-1) // NULL
	w.int32(3)
	w.bytes([]byte("abc"))
	body := w.wrap()[5:]
	cols := parseDataRow(body, fields)
	if len(cols) != 2 {
		t.Fatalf("got %d columns", len(cols))
	}
	if !cols[0].Null || cols[0].Name != "a" {
		t.Fatalf("col 0: %+v", cols[0])
	}
	if cols[1].Null || cols[1].Value != "abc" || cols[1].Name != "b" {
		t.Fatalf("col 1: %+v", cols[1])
	}
}

func TestParseSCRAMParams(t *testing.T) {
	got := parseSCRAMParams("r=abc,s=c2FsdA==,i=4096")
	want := map[string]string{"r": "abc", "s": "c2FsdA==", "i": "4096"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}
