package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/deepgram/sessiond/internal/logger"
	"github.com/deepgram/sessiond/internal/protocol"
	"github.com/deepgram/sessiond/pkg/httpext"
)

// Dispatcher runs one decoded request and always produces a response.
type Dispatcher interface {
	Dispatch(ctx context.Context, req protocol.Request) protocol.Response
}

// FrameObserver receives connection-level events. *metrics.Metrics implements it.
type FrameObserver interface {
	FrameRejected(reason string)
	StreamOpened()
	StreamClosed()
}

type nopObserver struct{}

func (nopObserver) FrameRejected(string) {}
func (nopObserver) StreamOpened()        {}
func (nopObserver) StreamClosed()        {}

// SessionHandler serves the single request/response exchange.
type SessionHandler struct {
	dispatcher    Dispatcher
	maxFrameBytes int64
	observer      FrameObserver
}

func NewSessionHandler(dispatcher Dispatcher, maxFrameBytes int64, observer FrameObserver) *SessionHandler {
	if observer == nil {
		observer = nopObserver{}
	}
	return &SessionHandler{
		dispatcher:    dispatcher,
		maxFrameBytes: maxFrameBytes,
		observer:      observer,
	}
}

func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	l := logger.For(logger.HANDLER)

	codec, ok := protocol.ForContentType(r.Header.Get("Content-Type"))
	if !ok {
		l.Warn().Str("content_type", r.Header.Get("Content-Type")).Msg("Client sent unsupported content type")
		httpext.JsonError(w, "Unsupported content type", http.StatusUnsupportedMediaType)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxFrameBytes))
	if err != nil {
		l.Warn().Err(err).Str("client_ip", r.RemoteAddr).Msg("Failed to read request body")
		h.observer.FrameRejected(protocol.ReasonDecodeFailed)
		writeErrorFrame(w, codec, http.StatusBadRequest, protocol.ReasonDecodeFailed)
		return
	}

	req, err := codec.Decode(body)
	if err != nil {
		l.Debug().Err(err).Str("codec", codec.Name()).Msg("Client sent undecodable frame")
		h.observer.FrameRejected(protocol.ReasonDecodeFailed)
		writeErrorFrame(w, codec, http.StatusBadRequest, protocol.ReasonDecodeFailed)
		return
	}

	resp := h.dispatcher.Dispatch(r.Context(), req)

	out, err := codec.Encode(resp)
	if err != nil {
		l.Error().Err(err).Str("type", protocol.RequestType(req)).Msg("Failed to encode response")
		h.observer.FrameRejected(protocol.ReasonInternal)
		writeErrorFrame(w, codec, http.StatusInternalServerError, protocol.ReasonInternal)
		return
	}

	writeFrame(w, codec, statusFor(resp), out)
}

// statusFor maps a response onto an HTTP status. Typed results are always 200,
// error kinds travel in the body.
func statusFor(resp protocol.Response) int {
	frame, ok := resp.(protocol.ErrorFrame)
	if !ok {
		return http.StatusOK
	}
	if frame.Reason == protocol.ReasonDecodeFailed {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeErrorFrame(w http.ResponseWriter, codec *protocol.Codec, code int, reason string) {
	out, err := codec.Encode(protocol.ErrorFrame{Reason: reason})
	if err != nil {
		l := logger.For(logger.HANDLER)
		l.Error().Err(err).Msg("Failed to encode error frame")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	writeFrame(w, codec, code, out)
}

func writeFrame(w http.ResponseWriter, codec *protocol.Codec, code int, body []byte) {
	w.Header().Set("Content-Type", codec.ContentType())
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	if _, err := w.Write(body); err != nil {
		l := logger.For(logger.HANDLER)
		l.Warn().Err(err).Msg("Failed to write response")
	}
}
