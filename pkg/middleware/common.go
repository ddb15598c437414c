package middleware

import (
	"context"
	"net/http"
	apperrors "tokenq/pkg/errors"
	httputil "tokenq/pkg/http"
	"tokenq/pkg/logger"
)

type contextKey string

const (
	RequestIDKey contextKey = "request_id"

	HeaderRequestID = "X-Request-ID"
)

func RequestIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

func writeError(w http.ResponseWriter, log *logger.Logger, r *http.Request, err *apperrors.AppError) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		log.Error("failed to write error response",
			"request_id", RequestIDFrom(r.Context()),
			"path", r.URL.Path,
			"error", writeErr,
		)
	}
}
