package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	apperrors "tokenq/pkg/errors"
	"tokenq/pkg/logger"
	"tokenq/pkg/model"

	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleAdmin = "admin"

	HeaderAuthorization = "Authorization"

	adminSubjectKey contextKey = "admin_subject"
)

// AdminAuth admits requests bearing an HS256 token signed with secret,
// issued by issuer and carrying role=admin. A missing or invalid token is
// UNAUTHORIZED; a valid token with another role is PERMISSION_DENIED.
func AdminAuth(secret []byte, issuer string, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get(HeaderAuthorization)
			raw, found := strings.CutPrefix(auth, "Bearer ")
			if !found || strings.TrimSpace(raw) == "" {
				writeError(w, log, r, apperrors.Unauthorized("Missing bearer token"))
				return
			}

			claims, err := parseAdminToken(strings.TrimSpace(raw), secret, issuer)
			if err != nil {
				log.Warn("Rejected admin token",
					"request_id", RequestIDFrom(r.Context()),
					"path", r.URL.Path,
					"error", err,
				)
				writeError(w, log, r, apperrors.Unauthorized("Invalid token"))
				return
			}

			role, _ := claims["role"].(string)
			if role != RoleAdmin {
				writeError(w, log, r, apperrors.PermissionDenied("Admin role required"))
				return
			}

			subject, err := claims.GetSubject()
			if err != nil || subject == "" {
				writeError(w, log, r, apperrors.Unauthorized("Token has no subject"))
				return
			}

			ctx := context.WithValue(r.Context(), adminSubjectKey, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func parseAdminToken(raw string, secret []byte, issuer string) (jwt.MapClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}

	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid claims")
	}
	return claims, nil
}

// AdminSubject returns the subject of the authenticated admin.
func AdminSubject(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(adminSubjectKey).(string)
	return subject, ok && subject != ""
}

// AdminActor is the owner reference recorded for admin-originated changes.
func AdminActor(ctx context.Context) string {
	subject, ok := AdminSubject(ctx)
	if !ok {
		subject = "unknown"
	}
	return model.OwnerAdminPrefix + subject
}

// IssueAdminToken signs a token that AdminAuth accepts for role.
func IssueAdminToken(secret []byte, issuer, subject, role string, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("empty signing secret")
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  subject,
		"role": role,
		"iss":  issuer,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign admin token: %w", err)
	}
	return signed, nil
}
