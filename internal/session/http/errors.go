package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Devilair/Replit-Wolfinder-sub003/internal/session/domain"
	"github.com/Devilair/Replit-Wolfinder-sub003/internal/session/service"
	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/authsdk"
	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/httpx"
	"github.com/Devilair/Replit-Wolfinder-sub003/pkg/slogx"
)

// writeServiceError maps a service error to its public form. Rejection
// reasons never leave the process.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrRejected):
		authsdk.ErrInvalidGrant.WriteError(w)
	case errors.Is(err, service.ErrUnauthenticated):
		httpx.WriteBearerError(w)
	case errors.Is(err, domain.ErrInvalidIdentity):
		authsdk.ErrInvalidRequest.WriteError(w)
	case errors.Is(err, service.ErrStoreUnavailable):
		w.Header().Set("Retry-After", "1")
		authsdk.ErrTemporarilyUnavailable.WriteError(w)
	default:
		slogx.FromContext(ctx).Error("request failed", slog.Any("error", err))
		authsdk.ErrServerError.WriteError(w)
	}
}

func writeDecodeError(w http.ResponseWriter, err error) {
	if errors.Is(err, httpx.ErrUnsupportedMediaType) {
		authsdk.ErrInvalidContentType.WriteError(w)
		return
	}
	authsdk.ErrInvalidRequest.WriteError(w)
}
