package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/deepgram/sessiond/internal/api/v1/routes"
	"github.com/deepgram/sessiond/internal/config"
	"github.com/deepgram/sessiond/internal/protocol"
	"github.com/deepgram/sessiond/internal/services"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()

	restore := config.SetJWTSecret([]byte(strings.Repeat("c", 32)))
	t.Cleanup(restore)
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")

	svc, err := services.InitializeServices(context.Background())
	if err != nil {
		t.Fatalf("InitializeServices() error = %v", err)
	}
	t.Cleanup(func() { svc.Close() })

	server := httptest.NewServer(routes.NewRouter(svc))
	t.Cleanup(server.Close)
	return server
}

// runScenario drives login, renewal, stale renewal, logout and
// post-logout renewal through ex.
func runScenario(t *testing.T, ctx context.Context, ex interface {
	Login(ctx context.Context, username, password string) (string, error)
	Renew(ctx context.Context, token string) (string, error)
	Logout(ctx context.Context, token string) error
}) {
	t.Helper()

	first, err := ex.Login(ctx, "alice", "alice")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	second, err := ex.Renew(ctx, first)
	if err != nil {
		t.Fatalf("Renew() error = %v", err)
	}
	if second == first {
		t.Fatal("Expected Renew() to return a new token")
	}

	var kindErr *KindError
	if _, err := ex.Renew(ctx, first); !errors.As(err, &kindErr) || kindErr.Kind != protocol.KindSessionNotFound {
		t.Errorf("Renew(replaced) error = %v, want %s", err, protocol.KindSessionNotFound)
	}

	if err := ex.Logout(ctx, second); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}

	if _, err := ex.Renew(ctx, second); !errors.As(err, &kindErr) || kindErr.Kind != protocol.KindSessionNotFound {
		t.Errorf("Renew(logged out) error = %v, want %s", err, protocol.KindSessionNotFound)
	}

	if _, err := ex.Login(ctx, "alice", "nope"); !errors.As(err, &kindErr) || kindErr.Kind != protocol.KindWrongUsernamePassword {
		t.Errorf("Login(wrong password) error = %v, want %s", err, protocol.KindWrongUsernamePassword)
	}

	if _, err := ex.Renew(ctx, "not-a-token"); !errors.As(err, &kindErr) || kindErr.Kind != protocol.KindToken {
		t.Errorf("Renew(garbage) error = %v, want %s", err, protocol.KindToken)
	}
}

func TestClientScenario(t *testing.T) {
	server := newServer(t)

	for _, codec := range []*protocol.Codec{protocol.MsgPack, protocol.JSON} {
		t.Run(codec.Name(), func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			runScenario(t, ctx, New(server.URL, WithCodec(codec)))
		})
	}
}

func TestStreamScenario(t *testing.T) {
	server := newServer(t)

	for _, codec := range []*protocol.Codec{protocol.MsgPack, protocol.JSON} {
		t.Run(codec.Name(), func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			stream, err := DialStream(ctx, StreamURL(server.URL), codec)
			if err != nil {
				t.Fatalf("DialStream() error = %v", err)
			}
			defer stream.Close()

			runScenario(t, ctx, stream)
		})
	}
}

func TestSessionsSurviveTransportSwitch(t *testing.T) {
	server := newServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	token, err := New(server.URL).Login(ctx, "erin", "erin")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	stream, err := DialStream(ctx, StreamURL(server.URL), nil)
	if err != nil {
		t.Fatalf("DialStream() error = %v", err)
	}
	defer stream.Close()

	if _, err := stream.Renew(ctx, token); err != nil {
		t.Errorf("Renew() over stream error = %v", err)
	}
}

func TestClientUnexpectedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"Rate limit exceeded"}`))
	}))
	defer server.Close()

	_, err := New(server.URL).Login(context.Background(), "a", "a")
	if !errors.Is(err, ErrUnexpectedResponse) {
		t.Errorf("Login() error = %v, want ErrUnexpectedResponse", err)
	}
}

func TestClientTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := New(url).Login(context.Background(), "a", "a")
	if !errors.Is(err, ErrTransport) {
		t.Errorf("Login() error = %v, want ErrTransport", err)
	}
}

func TestStreamURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"http://localhost:8080", "ws://localhost:8080/v1/session/stream"},
		{"https://sessions.example.com/", "wss://sessions.example.com/v1/session/stream"},
		{"ws://already", "ws://already/v1/session/stream"},
	}

	for _, tt := range tests {
		if got := StreamURL(tt.in); got != tt.want {
			t.Errorf("StreamURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFrameErrorSurfaced(t *testing.T) {
	server := newServer(t)

	// An empty msgpack body is rejected with a generic error frame.
	resp, err := http.Post(server.URL+"/v1/session", protocol.MsgPack.ContentType(), strings.NewReader(""))
	if err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", resp.StatusCode)
	}

	_, err = sessionToken(protocol.ErrorFrame{Reason: protocol.ReasonDecodeFailed})
	var frameErr *FrameError
	if !errors.As(err, &frameErr) || frameErr.Reason != protocol.ReasonDecodeFailed {
		t.Errorf("sessionToken() error = %v, want FrameError", err)
	}
}
