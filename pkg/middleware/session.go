package middleware

import (
	"context"
	"net/http"
	"strings"
	"tokenq/pkg/logger"
	"tokenq/pkg/model"
	"tokenq/pkg/sealer"

	"github.com/google/uuid"
)

const (
	HeaderSessionToken = "X-Session-Token"

	ownerRefKey contextKey = "owner_ref"
)

// GuestSession resolves the X-Session-Token header into the guest's owner
// reference. Tokens that fail to open are ignored and the request continues
// as a new guest.
func GuestSession(s *sealer.Sealer, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimSpace(r.Header.Get(HeaderSessionToken))
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			ownerRef, err := s.Open(token)
			if err != nil || !strings.HasPrefix(ownerRef, model.OwnerGuestPrefix) {
				log.Debug("Ignoring invalid session token",
					"request_id", RequestIDFrom(r.Context()),
					"error", err,
				)
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithOwnerRef(r.Context(), ownerRef)))
		})
	}
}

func WithOwnerRef(ctx context.Context, ownerRef string) context.Context {
	return context.WithValue(ctx, ownerRefKey, ownerRef)
}

func OwnerRef(ctx context.Context) (string, bool) {
	ref, ok := ctx.Value(ownerRefKey).(string)
	return ref, ok && ref != ""
}

// EnsureGuestSession returns the caller's owner reference, minting a new
// guest identity and writing its sealed token to the response when the
// request had none.
func EnsureGuestSession(w http.ResponseWriter, r *http.Request, s *sealer.Sealer) (string, error) {
	if ref, ok := OwnerRef(r.Context()); ok {
		return ref, nil
	}

	ref := model.OwnerGuestPrefix + uuid.NewString()
	token, err := s.Seal(ref)
	if err != nil {
		return "", err
	}
	w.Header().Set(HeaderSessionToken, token)
	return ref, nil
}
