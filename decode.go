// Inbound message-body decoding.
package pgwire

import (
	"bytes"
	"strconv"
	"strings"
)

// readCString scans buf starting at offset for a NUL terminator, returning
// the UTF-8 decode of the span up to (excluding) it and the offset just
// past the terminator. If no terminator is found, it returns what was read
// and sets the next offset to len(buf).
func readCString(buf []byte, offset int) (string, int) {
	i := offset
	for i < len(buf) && buf[i] != 0 {
		i++
	}
	if i >= len(buf) {
		return string(buf[offset:]), len(buf)
	}
	return string(buf[offset:i]), i + 1
}

// parseKeyValuePairs reads repeated (1-byte key, NUL-terminated value)
// pairs until a standalone 0 byte or end of buffer. Used for ErrorResponse
// and NoticeResponse bodies.
func parseKeyValuePairs(body []byte) map[byte]string {
	out := make(map[byte]string)
	i := 0
	for i < len(body) {
		key := body[i]
		if key == 0 {
			break
		}
		i++
		var val string
		val, i = readCString(body, i)
		out[key] = val
	}
	return out
}

// parseParameterStatus decodes a ParameterStatus body as two C strings:
// name, then value. An alternative reading would treat ParameterStatus
// like ErrorResponse's tagged-field format; this implementation uses the
// direct two-C-string form, which is what the wire format actually is.
func parseParameterStatus(body []byte) (name, value string) {
	name, next := readCString(body, 0)
	value, _ = readCString(body, next)
	return name, value
}

// commandTag is the parsed form of a CommandComplete/EmptyQueryResponse
// body.
type commandTag struct {
	command  string
	rowCount int
	oid      *int
}

// parseCommandComplete splits the tag on ASCII space. A 3-token INSERT tag
// yields oid and rowCount from tokens 2 and 3; otherwise the last token is
// parsed as rowCount (0 if it isn't numeric) and there is no oid.
func parseCommandComplete(tag string) commandTag {
	tokens := strings.Fields(tag)
	if len(tokens) == 0 {
		return commandTag{command: "UNKNOWN"}
	}
	ct := commandTag{command: tokens[0]}
	if len(tokens) == 3 && strings.EqualFold(tokens[0], "INSERT") {
		if oid, err := strconv.Atoi(tokens[1]); err == nil {
			ct.oid = &oid
		}
		if n, err := strconv.Atoi(tokens[2]); err == nil {
			ct.rowCount = n
		}
		return ct
	}
	if n, err := strconv.Atoi(tokens[len(tokens)-1]); err == nil {
		ct.rowCount = n
	}
	return ct
}

// parseRowDescription reads the field count followed by that many field
// descriptors. A short/truncated body stops the loop cleanly instead of
// panicking.
func parseRowDescription(body []byte) []FieldDescriptor {
	r := readBuf(body)
	if r.len() < 2 {
		return nil
	}
	n := r.int16()
	fields := make([]FieldDescriptor, 0, n)
	for i := 0; i < n; i++ {
		if bytes.IndexByte(r, 0) < 0 {
			break
		}
		name := r.string()
		if r.len() < 18 {
			fields = append(fields, FieldDescriptor{Name: name})
			break
		}
		fd := FieldDescriptor{Name: name}
		fd.TableOID = int32(r.int32())
		fd.ColumnAttrNum = int16(r.int16())
		fd.DataTypeOID = int32(r.int32())
		fd.DataTypeSize = int16(r.int16())
		fd.TypeModifier = int32(r.int32())
		fd.Format = int16(r.int16())
		fields = append(fields, fd)
	}
	return fields
}

// parseDataRow reads the column count followed by, for each column, a
// 4-byte length (-1 means SQL NULL) and that many value bytes, interpreted
// as UTF-8 text. Truncation stops parsing with whatever was read so far.
func parseDataRow(body []byte, fields []FieldDescriptor) []Column {
	r := readBuf(body)
	if r.len() < 2 {
		return nil
	}
	n := r.int16()
	cols := make([]Column, 0, n)
	for i := 0; i < n; i++ {
		name := ""
		if i < len(fields) {
			name = fields[i].Name
		}
		if r.len() < 4 {
			break
		}
		l := r.int32()
		if l < 0 {
			cols = append(cols, Column{Name: name, Null: true})
			continue
		}
		if r.len() < l {
			l = r.len()
		}
		cols = append(cols, Column{Name: name, Value: string(r.next(l))})
	}
	return cols
}

// parseSCRAMParams splits a SCRAM attribute-value string on ',' and each
// token on the first '=' (values may themselves contain '=', e.g. base64
// padding).
func parseSCRAMParams(s string) map[string]string {
	out := make(map[string]string)
	for _, tok := range strings.Split(s, ",") {
		i := strings.IndexByte(tok, '=')
		if i < 0 {
			continue
		}
		out[tok[:i]] = tok[i+1:]
	}
	return out
}
