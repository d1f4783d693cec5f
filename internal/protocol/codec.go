// Package protocol maps wire bytes to the closed set of request and response
// variants. The variant set is fixed; the byte format is pluggable.
package protocol

import (
	"errors"
	"fmt"
	"mime"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	ErrDecodeFailed = errors.New("protocol: decode failed")
	ErrEncodeFailed = errors.New("protocol: encode failed")
)

var errTrailingData = errors.New("trailing data after message")

// envelope is the format-neutral view of an inbound frame.
type envelope struct {
	Type    string `validate:"required,printascii,max=64"`
	Payload []byte `validate:"required"`
}

// outbound is marshalled directly by every format.
type outbound struct {
	Type    string      `json:"type" msgpack:"type"`
	Payload interface{} `json:"payload" msgpack:"payload"`
}

// format is a self-describing byte encoding.
type format interface {
	marshal(v interface{}) ([]byte, error)
	// unmarshal must reject unknown fields and trailing bytes.
	unmarshal(data []byte, v interface{}) error
	decodeEnvelope(data []byte) (envelope, error)
	// isNull reports whether a raw value is the format's null.
	isNull(raw []byte) bool
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Codec encodes and decodes frames in one wire format.
type Codec struct {
	name        string
	contentType string
	subprotocol string
	format      format
}

var (
	MsgPack = &Codec{
		name:        "msgpack",
		contentType: "application/msgpack",
		subprotocol: "sessiond.msgpack",
		format:      msgpackFormat{},
	}
	JSON = &Codec{
		name:        "json",
		contentType: "application/json",
		subprotocol: "sessiond.json",
		format:      jsonFormat{},
	}

	// Default is used when a client does not ask for a format.
	Default = MsgPack

	codecs = []*Codec{MsgPack, JSON}
)

func (c *Codec) Name() string        { return c.name }
func (c *Codec) ContentType() string { return c.contentType }
func (c *Codec) Subprotocol() string { return c.subprotocol }

// ForContentType picks the codec for an HTTP Content-Type. An empty value means Default.
func ForContentType(contentType string) (*Codec, bool) {
	if strings.TrimSpace(contentType) == "" {
		return Default, true
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, false
	}

	for _, c := range codecs {
		if c.contentType == mediaType {
			return c, true
		}
	}
	// common alias
	if mediaType == "application/x-msgpack" {
		return MsgPack, true
	}
	return nil, false
}

// ForSubprotocol picks the codec negotiated for a websocket connection.
// An empty value means Default.
func ForSubprotocol(name string) (*Codec, bool) {
	if name == "" {
		return Default, true
	}
	for _, c := range codecs {
		if c.subprotocol == name {
			return c, true
		}
	}
	return nil, false
}

// Subprotocols lists every websocket subprotocol in preference order.
func Subprotocols() []string {
	out := make([]string, 0, len(codecs))
	for _, c := range codecs {
		out = append(out, c.subprotocol)
	}
	return out
}

func (c *Codec) readEnvelope(data []byte) (envelope, error) {
	if len(data) == 0 {
		return envelope{}, fmt.Errorf("%w: empty input", ErrDecodeFailed)
	}

	env, err := c.format.decodeEnvelope(data)
	if err != nil {
		return envelope{}, fmt.Errorf("%w: %w", ErrDecodeFailed, err)
	}
	if err := validate.Struct(env); err != nil {
		return envelope{}, fmt.Errorf("%w: invalid envelope: %w", ErrDecodeFailed, err)
	}
	if c.format.isNull(env.Payload) {
		return envelope{}, fmt.Errorf("%w: null payload", ErrDecodeFailed)
	}

	return env, nil
}

func (c *Codec) payload(env envelope, v interface{}) error {
	if err := c.format.unmarshal(env.Payload, v); err != nil {
		return fmt.Errorf("%w: %s payload: %w", ErrDecodeFailed, env.Type, err)
	}
	return nil
}

// Decode turns one inbound frame into a Request. Empty input, malformed bytes
// and frames holding any other variant all fail with ErrDecodeFailed.
func (c *Codec) Decode(data []byte) (Request, error) {
	env, err := c.readEnvelope(data)
	if err != nil {
		return nil, err
	}

	switch env.Type {
	case TypeLoginCredentials:
		var req LoginWithCredentials
		if err := c.payload(env, &req); err != nil {
			return nil, err
		}
		return req, nil
	case TypeLoginSession:
		var req LoginWithSession
		if err := c.payload(env, &req); err != nil {
			return nil, err
		}
		return req, nil
	case TypeLogout:
		var req Logout
		if err := c.payload(env, &req); err != nil {
			return nil, err
		}
		return req, nil
	default:
		return nil, fmt.Errorf("%w: unexpected message type %q", ErrDecodeFailed, env.Type)
	}
}

// Encode serializes a Response. It fails with ErrEncodeFailed for nil or
// internally inconsistent values instead of emitting a partial frame.
func (c *Codec) Encode(resp Response) ([]byte, error) {
	if resp == nil {
		return nil, fmt.Errorf("%w: nil response", ErrEncodeFailed)
	}
	if err := resp.validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncodeFailed, err)
	}

	b, err := c.format.marshal(outbound{Type: resp.responseType(), Payload: resp})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncodeFailed, err)
	}
	return b, nil
}

// EncodeRequest is the client-side counterpart of Decode.
func (c *Codec) EncodeRequest(req Request) ([]byte, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: nil request", ErrEncodeFailed)
	}

	b, err := c.format.marshal(outbound{Type: req.requestType(), Payload: req})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncodeFailed, err)
	}
	return b, nil
}

// DecodeResponse is the client-side counterpart of Encode.
func (c *Codec) DecodeResponse(data []byte) (Response, error) {
	env, err := c.readEnvelope(data)
	if err != nil {
		return nil, err
	}

	var resp Response
	switch env.Type {
	case TypeLoginResult:
		var r LoginResult
		if err := c.payload(env, &r); err != nil {
			return nil, err
		}
		resp = r
	case TypeLogoutResult:
		var r LogoutResult
		if err := c.payload(env, &r); err != nil {
			return nil, err
		}
		resp = r
	case TypeError:
		var r ErrorFrame
		if err := c.payload(env, &r); err != nil {
			return nil, err
		}
		resp = r
	default:
		return nil, fmt.Errorf("%w: unexpected message type %q", ErrDecodeFailed, env.Type)
	}

	if err := resp.validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecodeFailed, err)
	}
	return resp, nil
}
