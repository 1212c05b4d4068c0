package backend

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ulms/ulms-gateway/internal/platform/httpx"
)

// StatusMessage extracts the human message from a backend status. Backends
// encode details as {"error": "..."}; anything else is returned verbatim.
func StatusMessage(st *status.Status) string {
	msg := strings.TrimSpace(st.Message())
	if strings.HasPrefix(msg, "{") {
		var detail struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal([]byte(msg), &detail); err == nil {
			if detail.Error != "" {
				return detail.Error
			}
			if detail.Message != "" {
				return detail.Message
			}
		}
	}
	return msg
}

// Classify translates a backend call error into the gateway error taxonomy.
// Errors that are not gRPC statuses are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var classified *httpx.Error
	if errors.As(err, &classified) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return httpx.Errorf(httpx.ErrServiceUnavailable, "backend deadline exceeded")
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	msg := StatusMessage(st)
	switch st.Code() {
	case codes.Unauthenticated:
		if msg == "" {
			msg = "invalid token"
		}
		return httpx.Unauthenticated(msg)
	case codes.PermissionDenied:
		return httpx.Forbidden(msg)
	case codes.Unavailable, codes.DeadlineExceeded:
		return httpx.Errorf(httpx.ErrServiceUnavailable, "%s", msg)
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		return httpx.Invalid(msg)
	case codes.NotFound:
		return httpx.Errorf(httpx.ErrNotFound, "%s", msg)
	case codes.AlreadyExists:
		return httpx.Errorf(httpx.ErrDuplicate, "%s", msg)
	default:
		return httpx.Errorf(httpx.ErrInternal, "%s", msg)
	}
}

// IsNotFound reports whether err is a backend NotFound status.
func IsNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}
