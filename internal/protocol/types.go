package protocol

import (
	"errors"
	"fmt"
)

// Wire names of every variant.
const (
	TypeLoginCredentials = "login.credentials"
	TypeLoginSession     = "login.session"
	TypeLogout           = "logout"

	TypeLoginResult  = "login.result"
	TypeLogoutResult = "logout.result"
	TypeError        = "error"
)

// Request is one of LoginWithCredentials, LoginWithSession or Logout.
type Request interface {
	requestType() string
}

type LoginWithCredentials struct {
	Username string `json:"username" msgpack:"username"`
	Password string `json:"password" msgpack:"password"`
}

type LoginWithSession struct {
	Token string `json:"token" msgpack:"token"`
}

type Logout struct {
	Token string `json:"token" msgpack:"token"`
}

func (LoginWithCredentials) requestType() string { return TypeLoginCredentials }
func (LoginWithSession) requestType() string     { return TypeLoginSession }
func (Logout) requestType() string               { return TypeLogout }

// RequestType returns the wire name of req, or "" for nil.
func RequestType(req Request) string {
	if req == nil {
		return ""
	}
	return req.requestType()
}

// ErrorKind is the typed failure carried by a result.
type ErrorKind string

const (
	KindWrongUsernamePassword ErrorKind = "wrong_username_password"
	KindToken                 ErrorKind = "token"
	KindSessionNotFound       ErrorKind = "session_not_found"
	KindDatabase              ErrorKind = "database"
)

func (k ErrorKind) valid() bool {
	switch k {
	case KindWrongUsernamePassword, KindToken, KindSessionNotFound, KindDatabase:
		return true
	}
	return false
}

// Generic error frame reasons.
const (
	ReasonDecodeFailed = "decode_failed"
	ReasonInternal     = "internal"
)

type Session struct {
	Token string `json:"token" msgpack:"token"`
}

// Response is one of LoginResult, LogoutResult or ErrorFrame.
type Response interface {
	responseType() string
	validate() error
}

// LoginResult carries either a fresh session or an error kind, never both.
type LoginResult struct {
	Session *Session  `json:"session,omitempty" msgpack:"session,omitempty"`
	Error   ErrorKind `json:"error,omitempty" msgpack:"error,omitempty"`
}

// LogoutResult is a success when Error is empty.
type LogoutResult struct {
	Error ErrorKind `json:"error,omitempty" msgpack:"error,omitempty"`
}

// ErrorFrame is sent when no typed response can be produced.
type ErrorFrame struct {
	Reason string `json:"reason" msgpack:"reason"`
}

func LoginOK(token string) LoginResult         { return LoginResult{Session: &Session{Token: token}} }
func LoginFailed(kind ErrorKind) LoginResult   { return LoginResult{Error: kind} }
func LogoutOK() LogoutResult                   { return LogoutResult{} }
func LogoutFailed(kind ErrorKind) LogoutResult { return LogoutResult{Error: kind} }

func (LoginResult) responseType() string  { return TypeLoginResult }
func (LogoutResult) responseType() string { return TypeLogoutResult }
func (ErrorFrame) responseType() string   { return TypeError }

// ResponseType returns the wire name of resp, or "" for nil.
func ResponseType(resp Response) string {
	if resp == nil {
		return ""
	}
	return resp.responseType()
}

func (r LoginResult) validate() error {
	switch {
	case r.Session != nil && r.Error != "":
		return errors.New("login result has both a session and an error")
	case r.Session != nil:
		if r.Session.Token == "" {
			return errors.New("login result session has no token")
		}
		return nil
	case r.Error != "":
		if !r.Error.valid() {
			return fmt.Errorf("unknown error kind %q", r.Error)
		}
		return nil
	default:
		return errors.New("login result has neither a session nor an error")
	}
}

func (r LogoutResult) validate() error {
	if r.Error != "" && !r.Error.valid() {
		return fmt.Errorf("unknown error kind %q", r.Error)
	}
	return nil
}

func (r ErrorFrame) validate() error {
	if r.Reason == "" {
		return errors.New("error frame has no reason")
	}
	return nil
}

// OK reports whether the login succeeded.
func (r LoginResult) OK() bool { return r.Session != nil && r.Error == "" }

// OK reports whether the logout succeeded.
func (r LogoutResult) OK() bool { return r.Error == "" }
