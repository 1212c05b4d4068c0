// Package backendtest runs an in-memory backend RPC server for tests.
package backendtest

import (
	"context"
	"encoding/json"
	"net"
	"sync"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/ulms/ulms-gateway/internal/backend"
)

// UnaryFunc answers a unary call.
type UnaryFunc func(ctx context.Context, req json.RawMessage) (any, error)

// StreamFunc answers a server-streaming call by calling send per fragment.
type StreamFunc func(ctx context.Context, req json.RawMessage, send func(any) error) error

// Call records one request received by the server.
type Call struct {
	Method   string
	Metadata metadata.MD
	Body     json.RawMessage
}

// Server dispatches every method through a single unknown-service handler so
// tests can register behaviour by full method name.
type Server struct {
	lis *bufconn.Listener
	srv *grpc.Server

	mu      sync.Mutex
	unary   map[string]UnaryFunc
	streams map[string]StreamFunc
	calls   []Call
}

// New starts a server and stops it when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		lis:     bufconn.Listen(1 << 20),
		unary:   map[string]UnaryFunc{},
		streams: map[string]StreamFunc{},
	}
	s.srv = grpc.NewServer(grpc.UnknownServiceHandler(s.dispatch))
	go func() { _ = s.srv.Serve(s.lis) }()
	t.Cleanup(s.srv.Stop)
	return s
}

// Handle registers a unary method, e.g. "/auth.AuthService/Authorize".
func (s *Server) Handle(method string, fn UnaryFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unary[method] = fn
}

// HandleStream registers a server-streaming method.
func (s *Server) HandleStream(method string, fn StreamFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streams[method] = fn
}

// Calls returns the requests received so far.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Registry returns a registry whose every known backend points at this server.
func (s *Server) Registry(t testing.TB) *backend.Registry {
	t.Helper()
	addrs := map[backend.Name]string{}
	for _, name := range []backend.Name{
		backend.Identity, backend.Users, backend.Courses, backend.Assignment,
		backend.Exams, backend.Proctor, backend.Assistant,
	} {
		addrs[name] = "passthrough:///bufnet"
	}
	reg := backend.NewRegistry(backend.Catalog(addrs), backend.WithDialOptions(
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return s.lis.DialContext(ctx)
		}),
	))
	t.Cleanup(func() { _ = reg.Close() })
	return reg
}

func (s *Server) dispatch(_ any, stream grpc.ServerStream) error {
	method, ok := grpc.MethodFromServerStream(stream)
	if !ok {
		return status.Error(codes.Internal, "no method")
	}
	var body json.RawMessage
	if err := stream.RecvMsg(&body); err != nil {
		return err
	}
	md, _ := metadata.FromIncomingContext(stream.Context())

	s.mu.Lock()
	s.calls = append(s.calls, Call{Method: method, Metadata: md, Body: body})
	unary := s.unary[method]
	streaming := s.streams[method]
	s.mu.Unlock()

	switch {
	case unary != nil:
		resp, err := unary(stream.Context(), body)
		if err != nil {
			return err
		}
		return stream.SendMsg(resp)
	case streaming != nil:
		return streaming(stream.Context(), body, stream.SendMsg)
	default:
		return status.Errorf(codes.Unimplemented, "method %s not registered", method)
	}
}
