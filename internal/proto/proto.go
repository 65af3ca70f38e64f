// From src/include/libpq/protocol.h and src/include/libpq/pqcomm.h – PostgreSQL 18.1

package proto

import (
	"fmt"
	"strconv"
)

// Constants from pqcomm.h
const (
	ProtocolVersion30 = (3 << 16) | 0 //lint:ignore SA4016 x
	ProtocolVersion32 = (3 << 16) | 2 // PostgreSQL ≥18; not yet supported.
	CancelRequestCode = (1234 << 16) | 5678
	NegotiateSSLCode  = (1234 << 16) | 5679
	NegotiateGSSCode  = (1234 << 16) | 5680
)

// Constants from fe-connect.c
const (
	MaxErrlen = 30_000 // https://github.com/postgres/postgres/blob/c6a10a89f/src/interfaces/libpq/fe-connect.c#L4067
)

// RequestCode is a request codes sent by the frontend.
type RequestCode byte

// These are the request codes sent by the frontend.
const (
	Bind                = RequestCode('B')
	Close               = RequestCode('C')
	Describe            = RequestCode('D')
	Execute             = RequestCode('E')
	FunctionCall        = RequestCode('F')
	Flush               = RequestCode('H')
	Parse               = RequestCode('P')
	Query               = RequestCode('Q')
	Sync                = RequestCode('S')
	Terminate           = RequestCode('X')
	CopyFail            = RequestCode('f')
	GSSResponse         = RequestCode('p')
	PasswordMessage     = RequestCode('p')
	SASLInitialResponse = RequestCode('p')
	SASLResponse        = RequestCode('p')
	CopyDoneRequest     = RequestCode('c')
	CopyDataRequest     = RequestCode('d')
)

func (r RequestCode) String() string {
	var s string
	switch r {
	case Bind:
		s = "Bind"
	case Close:
		s = "Close"
	case Describe:
		s = "Describe"
	case Execute:
		s = "Execute"
	case FunctionCall:
		s = "FunctionCall"
	case Flush:
		s = "Flush"
	case Parse:
		s = "Parse"
	case Query:
		s = "Query"
	case Sync:
		s = "Sync"
	case Terminate:
		s = "Terminate"
	case CopyFail:
		s = "CopyFail"
	// GSSResponse, PasswordMessage, SASLInitialResponse, and SASLResponse
	// all share the wire byte 'p'; the name below is the one pgwire's
	// dispatcher actually cares about.
	case PasswordMessage:
		s = "PasswordMessage"
	case CopyDoneRequest:
		s = "CopyDone"
	case CopyDataRequest:
		s = "CopyData"
	default:
		s = "<unknown>"
	}
	return "(" + formatCodeByte(byte(r)) + ") " + s
}

// formatCodeByte renders a protocol type byte for logging: the literal
// character when it's printable ASCII, a hex escape otherwise.
func formatCodeByte(b byte) string {
	if b <= 0x1f || b >= 0x7f {
		return fmt.Sprintf("0x%x", b)
	}
	return string(rune(b))
}

// ResponseCode is a response codes sent by the backend.
type ResponseCode byte

// These are the response codes sent by the backend.
const (
	ParseComplete            = ResponseCode('1')
	BindComplete             = ResponseCode('2')
	CloseComplete            = ResponseCode('3')
	NotificationResponse     = ResponseCode('A')
	CommandComplete          = ResponseCode('C')
	DataRow                  = ResponseCode('D')
	ErrorResponse            = ResponseCode('E')
	CopyInResponse           = ResponseCode('G')
	CopyOutResponse          = ResponseCode('H')
	EmptyQueryResponse       = ResponseCode('I')
	BackendKeyData           = ResponseCode('K')
	NoticeResponse           = ResponseCode('N')
	AuthenticationRequest    = ResponseCode('R')
	ParameterStatus          = ResponseCode('S')
	RowDescription           = ResponseCode('T')
	FunctionCallResponse     = ResponseCode('V')
	CopyBothResponse         = ResponseCode('W')
	ReadyForQuery            = ResponseCode('Z')
	NoData                   = ResponseCode('n')
	PortalSuspended          = ResponseCode('s')
	ParameterDescription     = ResponseCode('t')
	NegotiateProtocolVersion = ResponseCode('v')
	CopyDoneResponse         = ResponseCode('c')
	CopyDataResponse         = ResponseCode('d')
)

var responseCodeNames = [...]struct {
	code ResponseCode
	name string
}{
	{ParseComplete, "ParseComplete"},
	{BindComplete, "BindComplete"},
	{CloseComplete, "CloseComplete"},
	{NotificationResponse, "NotificationResponse"},
	{CommandComplete, "CommandComplete"},
	{DataRow, "DataRow"},
	{ErrorResponse, "ErrorResponse"},
	{CopyInResponse, "CopyInResponse"},
	{CopyOutResponse, "CopyOutResponse"},
	{EmptyQueryResponse, "EmptyQueryResponse"},
	{BackendKeyData, "BackendKeyData"},
	{NoticeResponse, "NoticeResponse"},
	{AuthenticationRequest, "AuthRequest"},
	{ParameterStatus, "ParamStatus"},
	{RowDescription, "RowDescription"},
	{FunctionCallResponse, "FunctionCallResponse"},
	{CopyBothResponse, "CopyBothResponse"},
	{ReadyForQuery, "ReadyForQuery"},
	{NoData, "NoData"},
	{PortalSuspended, "PortalSuspended"},
	{ParameterDescription, "ParamDescription"},
	{NegotiateProtocolVersion, "NegotiateProtocolVersion"},
	{CopyDoneResponse, "CopyDone"},
	{CopyDataResponse, "CopyData"},
}

func (r ResponseCode) String() string {
	name := "<unknown>"
	for _, e := range responseCodeNames {
		if e.code == r {
			name = e.name
			break
		}
	}
	return "(" + formatCodeByte(byte(r)) + ") " + name
}

// AuthCode are authentication request codes sent by the backend.
type AuthCode int32

// These are the authentication request codes sent by the backend.
const (
	AuthReqOk       = AuthCode(0)  // User is authenticated
	AuthReqKrb4     = AuthCode(1)  // Kerberos V4. Not supported any more.
	AuthReqKrb5     = AuthCode(2)  // Kerberos V5. Not supported any more.
	AuthReqPassword = AuthCode(3)  // Password
	AuthReqCrypt    = AuthCode(4)  // crypt password. Not supported any more.
	AuthReqMD5      = AuthCode(5)  // md5 password
	_               = AuthCode(6)  // 6 is available.  It was used for SCM creds, not supported any more.
	AuthReqGSS      = AuthCode(7)  // GSSAPI without wrap()
	AuthReqGSSCont  = AuthCode(8)  // Continue GSS exchanges
	AuthReqSSPI     = AuthCode(9)  // SSPI negotiate without wrap()
	AuthReqSASL     = AuthCode(10) // Begin SASL authentication
	AuthReqSASLCont = AuthCode(11) // Continue SASL authentication
	AuthReqSASLFin  = AuthCode(12) // Final SASL message
)

func (a AuthCode) String() string {
	var s string
	switch a {
	case AuthReqOk:
		s = "ok"
	case AuthReqKrb4:
		s = "krb4"
	case AuthReqKrb5:
		s = "krb5"
	case AuthReqPassword:
		s = "password"
	case AuthReqCrypt:
		s = "crypt"
	case AuthReqMD5:
		s = "md5"
	case AuthReqGSS:
		s = "GSS"
	case AuthReqGSSCont:
		s = "GSSCont"
	case AuthReqSSPI:
		s = "SSPI"
	case AuthReqSASL:
		s = "SASL"
	case AuthReqSASLCont:
		s = "SASLCont"
	case AuthReqSASLFin:
		s = "SASLFin"
	default:
		s = "<unknown>"
	}
	return s + " (" + strconv.Itoa(int(a)) + ")"
}
