// Package backend owns the gateway's connections to the backend RPC services
// and the typed clients built on top of them.
package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"golang.org/x/sync/singleflight"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/ulms/ulms-gateway/internal/platform/httpx"
)

// Name identifies a logical backend service.
type Name string

// Backend services consumed by the gateway.
const (
	Identity   Name = "identity"
	Users      Name = "user"
	Courses    Name = "course"
	Assignment Name = "assignment"
	Exams      Name = "exam"
	Proctor    Name = "proctor"
	Assistant  Name = "assistant"
)

// Endpoint describes where a backend lives and which RPC service it exposes.
type Endpoint struct {
	Name    Name
	Addr    string
	Package string
	Service string
}

// FullService returns the fully-qualified RPC service name, e.g. auth.AuthService.
func (e Endpoint) FullService() string {
	if e.Package == "" {
		return e.Service
	}
	return e.Package + "." + e.Service
}

var services = map[Name][2]string{
	Identity:   {"auth", "AuthService"},
	Users:      {"user", "UserService"},
	Courses:    {"course", "CourseService"},
	Assignment: {"assignment", "AssignmentService"},
	Exams:      {"exam", "ExamService"},
	Proctor:    {"proctor", "ProctorService"},
	Assistant:  {"assistant", "AssistantAgent"},
}

// Catalog builds endpoints for the known backends from an address table.
// Names without an address are skipped.
func Catalog(addrs map[Name]string) []Endpoint {
	out := make([]Endpoint, 0, len(addrs))
	for _, name := range []Name{Identity, Users, Courses, Assignment, Exams, Proctor, Assistant} {
		addr, ok := addrs[name]
		if !ok || addr == "" {
			continue
		}
		svc := services[name]
		out = append(out, Endpoint{Name: name, Addr: addr, Package: svc[0], Service: svc[1]})
	}
	return out
}

// Handle is a resolved, reusable reference to one backend service. It is
// created once per process and shared read-only by all requests.
type Handle struct {
	endpoint Endpoint
	conn     *grpc.ClientConn
}

// Name returns the logical backend name.
func (h *Handle) Name() Name { return h.endpoint.Name }

// Method returns the full RPC method path for the given method name.
func (h *Handle) Method(method string) string {
	return "/" + h.endpoint.FullService() + "/" + method
}

// Invoke performs a unary call.
func (h *Handle) Invoke(ctx context.Context, method string, req, resp any, opts ...grpc.CallOption) error {
	return h.conn.Invoke(ctx, h.Method(method), req, resp, opts...)
}

// ServerStream opens a server-streaming call, sends req and half-closes.
func (h *Handle) ServerStream(ctx context.Context, method string, req any, opts ...grpc.CallOption) (grpc.ClientStream, error) {
	desc := &grpc.StreamDesc{StreamName: method, ServerStreams: true}
	stream, err := h.conn.NewStream(ctx, desc, h.Method(method), opts...)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(req); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return stream, nil
}

// Registry lazily resolves one Handle per backend name.
type Registry struct {
	endpoints map[Name]Endpoint
	dialOpts  []grpc.DialOption
	logger    *slog.Logger

	mu      sync.RWMutex
	handles map[Name]*Handle
	group   singleflight.Group
}

// RegistryOption customises registry construction.
type RegistryOption func(*Registry)

// WithDialOptions appends gRPC dial options applied to every connection.
func WithDialOptions(opts ...grpc.DialOption) RegistryOption {
	return func(r *Registry) {
		r.dialOpts = append(r.dialOpts, opts...)
	}
}

// WithLogger sets the registry logger.
func WithLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logger
	}
}

// NewRegistry builds a registry over the given endpoints. No connection is
// created until the first call to Service.
func NewRegistry(endpoints []Endpoint, opts ...RegistryOption) *Registry {
	r := &Registry{
		endpoints: make(map[Name]Endpoint, len(endpoints)),
		handles:   make(map[Name]*Handle, len(endpoints)),
		dialOpts: []grpc.DialOption{
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
			grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
		},
		logger: slog.Default(),
	}
	for _, ep := range endpoints {
		r.endpoints[ep.Name] = ep
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Service returns the memoized handle for name, creating it on first use.
func (r *Registry) Service(name Name) (*Handle, error) {
	r.mu.RLock()
	h, ok := r.handles[name]
	r.mu.RUnlock()
	if ok {
		return h, nil
	}

	v, err, _ := r.group.Do(string(name), func() (any, error) {
		r.mu.RLock()
		existing, ok := r.handles[name]
		r.mu.RUnlock()
		if ok {
			return existing, nil
		}
		ep, ok := r.endpoints[name]
		if !ok {
			return nil, httpx.Errorf(httpx.ErrInternal, "backend %q not configured", name)
		}
		conn, err := grpc.NewClient(ep.Addr, r.dialOpts...)
		if err != nil {
			return nil, fmt.Errorf("backend: connect %s at %s: %w", name, ep.Addr, err)
		}
		handle := &Handle{endpoint: ep, conn: conn}
		r.mu.Lock()
		r.handles[name] = handle
		r.mu.Unlock()
		r.logger.Info("backend handle resolved", slog.String("service", string(name)), slog.String("addr", ep.Addr))
		return handle, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Handle), nil
}

// Close releases every connection the registry created.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for name, h := range r.handles {
		if err := h.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
		delete(r.handles, name)
	}
	return errors.Join(errs...)
}
