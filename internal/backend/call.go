package backend

import (
	"context"

	"google.golang.org/grpc"
)

// Document is a backend reply decoded without a fixed schema. Numbers are
// kept as json.Number.
type Document = map[string]any

// Call performs a unary call on the named backend and decodes the reply as a
// generic document. Transport errors are returned as gRPC statuses; callers
// translate them with Classify.
func (r *Registry) Call(ctx context.Context, name Name, method string, req any, opts ...grpc.CallOption) (Document, error) {
	h, err := r.Service(name)
	if err != nil {
		return nil, err
	}
	resp := Document{}
	if err := h.Invoke(ctx, method, req, &resp, opts...); err != nil {
		return nil, err
	}
	return resp, nil
}
