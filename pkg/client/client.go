// Package client talks to sessiond over either of its transports: single
// HTTP exchanges or a WebSocket stream of exchanges.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/deepgram/sessiond/internal/protocol"
)

const maxResponseBytes = 1 << 20

var (
	ErrUnexpectedResponse = errors.New("client: unexpected response")
	ErrTransport          = errors.New("client: transport failed")
)

// KindError is a typed failure reported inside a login or logout result.
type KindError struct {
	Kind protocol.ErrorKind
}

func (e *KindError) Error() string {
	return "client: " + string(e.Kind)
}

// FrameError is a generic error frame sent in place of a typed result.
type FrameError struct {
	Reason string
}

func (e *FrameError) Error() string {
	return "client: server rejected frame: " + e.Reason
}

// Exchanger sends one request and returns its response.
type Exchanger interface {
	Exchange(ctx context.Context, req protocol.Request) (protocol.Response, error)
}

// Client performs exchanges over POST /v1/session.
type Client struct {
	baseURL    string
	httpClient *http.Client
	codec      *protocol.Codec
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithCodec selects the wire format. MessagePack is the default.
func WithCodec(codec *protocol.Codec) Option {
	return func(c *Client) { c.codec = codec }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		codec:      protocol.Default,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Exchange(ctx context.Context, req protocol.Request) (protocol.Response, error) {
	body, err := c.codec.EncodeRequest(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/session", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", c.codec.ContentType())
	httpReq.Header.Set("Accept", c.codec.ContentType())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType != c.codec.ContentType() {
		return nil, fmt.Errorf("%w: status %d, content type %q", ErrUnexpectedResponse, resp.StatusCode, mediaType)
	}

	return c.codec.DecodeResponse(data)
}

func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	return Login(ctx, c, username, password)
}

func (c *Client) Renew(ctx context.Context, token string) (string, error) {
	return Renew(ctx, c, token)
}

func (c *Client) Logout(ctx context.Context, token string) error {
	return Logout(ctx, c, token)
}

// Login exchanges credentials for a session token.
func Login(ctx context.Context, ex Exchanger, username, password string) (string, error) {
	resp, err := ex.Exchange(ctx, protocol.LoginWithCredentials{Username: username, Password: password})
	if err != nil {
		return "", err
	}
	return sessionToken(resp)
}

// Renew swaps a live session token for a fresh one. The old token stops working.
func Renew(ctx context.Context, ex Exchanger, token string) (string, error) {
	resp, err := ex.Exchange(ctx, protocol.LoginWithSession{Token: token})
	if err != nil {
		return "", err
	}
	return sessionToken(resp)
}

func Logout(ctx context.Context, ex Exchanger, token string) error {
	resp, err := ex.Exchange(ctx, protocol.Logout{Token: token})
	if err != nil {
		return err
	}

	switch r := resp.(type) {
	case protocol.LogoutResult:
		if !r.OK() {
			return &KindError{Kind: r.Error}
		}
		return nil
	case protocol.ErrorFrame:
		return &FrameError{Reason: r.Reason}
	default:
		return fmt.Errorf("%w: %s", ErrUnexpectedResponse, protocol.ResponseType(resp))
	}
}

func sessionToken(resp protocol.Response) (string, error) {
	switch r := resp.(type) {
	case protocol.LoginResult:
		if !r.OK() {
			return "", &KindError{Kind: r.Error}
		}
		return r.Session.Token, nil
	case protocol.ErrorFrame:
		return "", &FrameError{Reason: r.Reason}
	default:
		return "", fmt.Errorf("%w: %s", ErrUnexpectedResponse, protocol.ResponseType(resp))
	}
}
