// Package academics exposes the course, assignment and exam backends over
// HTTP, reshaping their replies for clients.
package academics

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"google.golang.org/grpc"

	"github.com/ulms/ulms-gateway/internal/backend"
	"github.com/ulms/ulms-gateway/internal/platform/httpx"
	"github.com/ulms/ulms-gateway/internal/rbac"
)

// Caller performs unary backend calls.
type Caller interface {
	Call(ctx context.Context, name backend.Name, method string, req any, opts ...grpc.CallOption) (backend.Document, error)
}

type base struct {
	backend   Caller
	logger    *slog.Logger
	validator *validator.Validate
	scope     rbac.Scope
}

func newBase(caller Caller, gate rbac.Gate, group *rbac.Requirement, logger *slog.Logger) base {
	if logger == nil {
		logger = slog.Default()
	}
	return base{backend: caller, logger: logger, validator: validator.New(), scope: gate.Scope(group)}
}

func (b base) fail(w http.ResponseWriter, op string, err error) {
	classified := backend.Classify(err)
	if httpx.StatusOf(classified) >= http.StatusInternalServerError {
		b.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, classified)
}

// restored returns nil for an empty reply and the date-restored document
// otherwise.
func restored(doc backend.Document) any {
	if len(doc) == 0 {
		return nil
	}
	return backend.RestoreDates(doc)
}

// restoredList returns the list under key with dates restored, or empty
// when there is none.
func restoredList(doc backend.Document, key string, empty any) any {
	items := backend.Items(doc, key)
	if items == nil {
		return empty
	}
	return backend.RestoreDates(items)
}
