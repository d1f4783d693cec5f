// Package dispatch turns decoded requests into responses by sequencing the
// token manager and the session store.
package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/deepgram/sessiond/internal/logger"
	"github.com/deepgram/sessiond/internal/protocol"
	"github.com/deepgram/sessiond/internal/store"
)

type TokenManager interface {
	Create(subject string) (string, error)
	Verify(token string) (string, error)
}

// SessionStore is the part of store.Store the dispatcher mutates.
type SessionStore interface {
	Create(ctx context.Context, token string) (store.Session, error)
	Update(ctx context.Context, oldToken, newToken string) (store.Session, error)
	Delete(ctx context.Context, token string) error
}

// Observer is told about every finished dispatch.
type Observer interface {
	ObserveRequest(requestType, outcome string, elapsed time.Duration)
}

type Dispatcher struct {
	tokens       TokenManager
	sessions     SessionStore
	credentials  CredentialVerifier
	storeTimeout time.Duration
	observer     Observer
}

type Option func(*Dispatcher)

// WithCredentialVerifier replaces the EqualCredentials placeholder.
func WithCredentialVerifier(v CredentialVerifier) Option {
	return func(d *Dispatcher) { d.credentials = v }
}

// WithStoreTimeout bounds each store call. Zero means no bound.
func WithStoreTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) { d.storeTimeout = timeout }
}

func WithObserver(o Observer) Option {
	return func(d *Dispatcher) { d.observer = o }
}

func New(tokens TokenManager, sessions SessionStore, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		tokens:      tokens,
		sessions:    sessions,
		credentials: EqualCredentials{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch handles one request and always returns a response.
//
// Token work always happens before any store call. Cancelling ctx does not
// interrupt a dispatch that has started; store calls see only values from ctx.
func (d *Dispatcher) Dispatch(ctx context.Context, req protocol.Request) (resp protocol.Response) {
	start := time.Now()
	requestType := protocol.RequestType(req)

	defer func() {
		if r := recover(); r != nil {
			l := logger.For(logger.DISPATCH)
			l.Error().Interface("panic", r).Str("type", requestType).Msg("Request handler panicked")
			resp = protocol.ErrorFrame{Reason: protocol.ReasonInternal}
		}
		if d.observer != nil {
			d.observer.ObserveRequest(requestType, Outcome(resp), time.Since(start))
		}
	}()

	ctx = context.WithoutCancel(ctx)

	switch r := req.(type) {
	case protocol.LoginWithCredentials:
		return d.loginWithCredentials(ctx, r)
	case protocol.LoginWithSession:
		return d.loginWithSession(ctx, r)
	case protocol.Logout:
		return d.logout(ctx, r)
	default:
		l := logger.For(logger.DISPATCH)
		l.Warn().Str("type", requestType).Msg("Unsupported request")
		return protocol.ErrorFrame{Reason: protocol.ReasonDecodeFailed}
	}
}

func (d *Dispatcher) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.storeTimeout > 0 {
		return context.WithTimeout(ctx, d.storeTimeout)
	}
	return context.WithCancel(ctx)
}

func (d *Dispatcher) loginWithCredentials(ctx context.Context, req protocol.LoginWithCredentials) protocol.Response {
	l := logger.For(logger.DISPATCH)

	subject, err := d.credentials.Verify(ctx, req.Username, req.Password)
	if err != nil {
		l.Debug().Err(err).Msg("Credential login rejected")
		return protocol.LoginFailed(protocol.KindWrongUsernamePassword)
	}

	tok, err := d.tokens.Create(subject)
	if err != nil {
		l.Error().Err(err).Msg("Failed to issue token for credential login")
		return protocol.LoginFailed(protocol.KindToken)
	}

	sctx, cancel := d.storeContext(ctx)
	defer cancel()

	sess, err := d.sessions.Create(sctx, tok)
	if err != nil {
		l.Warn().Err(err).Msg("Failed to persist new session")
		return protocol.LoginFailed(protocol.KindDatabase)
	}

	l.Debug().Str("subject", subject).Msg("Session created")
	return protocol.LoginOK(sess.Token)
}

func (d *Dispatcher) loginWithSession(ctx context.Context, req protocol.LoginWithSession) protocol.Response {
	l := logger.For(logger.DISPATCH)

	subject, err := d.tokens.Verify(req.Token)
	if err != nil {
		l.Debug().Err(err).Msg("Session login rejected")
		return protocol.LoginFailed(protocol.KindToken)
	}

	fresh, err := d.tokens.Create(subject)
	if err != nil {
		l.Error().Err(err).Msg("Failed to issue token for session renewal")
		return protocol.LoginFailed(protocol.KindToken)
	}

	sctx, cancel := d.storeContext(ctx)
	defer cancel()

	sess, err := d.sessions.Update(sctx, req.Token, fresh)
	switch {
	case errors.Is(err, store.ErrUpdateFailed):
		l.Debug().Err(err).Msg("No live session for presented token")
		return protocol.LoginFailed(protocol.KindSessionNotFound)
	case err != nil:
		l.Warn().Err(err).Msg("Failed to rotate session")
		return protocol.LoginFailed(protocol.KindDatabase)
	}

	l.Debug().Str("subject", subject).Msg("Session renewed")
	return protocol.LoginOK(sess.Token)
}

func (d *Dispatcher) logout(ctx context.Context, req protocol.Logout) protocol.Response {
	l := logger.For(logger.DISPATCH)

	sctx, cancel := d.storeContext(ctx)
	defer cancel()

	if err := d.sessions.Delete(sctx, req.Token); err != nil {
		l.Warn().Err(err).Msg("Failed to delete session")
		return protocol.LogoutFailed(protocol.KindDatabase)
	}

	return protocol.LogoutOK()
}

// Outcome labels a response for logs and metrics: "ok", an error kind, or
// the reason of a generic error frame.
func Outcome(resp protocol.Response) string {
	switch r := resp.(type) {
	case protocol.LoginResult:
		if r.OK() {
			return "ok"
		}
		return string(r.Error)
	case protocol.LogoutResult:
		if r.OK() {
			return "ok"
		}
		return string(r.Error)
	case protocol.ErrorFrame:
		return r.Reason
	default:
		return "unknown"
	}
}
