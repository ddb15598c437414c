package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
	apperrors "tokenq/pkg/errors"
	"tokenq/pkg/logger"
)

const (
	HeaderIdempotencyKey      = "Idempotency-Key"
	HeaderIdempotencyReplayed = "Idempotent-Replayed"

	maxIdempotencyKeyLength = 255
)

// ErrRequestInFlight is returned by Reserve while another request holds the key.
var ErrRequestInFlight = errors.New("request with this idempotency key is in progress")

// IdempotencyStore records the outcome of requests by key. Reserve claims an
// unused key and returns nil, nil; for a completed key it returns the cached
// response; for a key still being processed it returns ErrRequestInFlight.
type IdempotencyStore interface {
	Reserve(ctx context.Context, key string) (*CachedResponse, error)
	Complete(ctx context.Context, key string, response *CachedResponse) error
	Release(ctx context.Context, key string) error
	Stop()
}

type CachedResponse struct {
	StatusCode  int         `json:"status_code"`
	Headers     http.Header `json:"headers"`
	Body        []byte      `json:"body"`
	RequestHash string      `json:"request_hash,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

type idempotencyEntry struct {
	response  *CachedResponse
	expiresAt time.Time
}

type InMemoryIdempotencyStore struct {
	mu       sync.Mutex
	store    map[string]*idempotencyEntry
	ttl      time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewInMemoryIdempotencyStore(ttl time.Duration) *InMemoryIdempotencyStore {
	store := &InMemoryIdempotencyStore{
		store:  make(map[string]*idempotencyEntry),
		ttl:    ttl,
		stopCh: make(chan struct{}),
	}

	go store.cleanup()

	return store
}

func (s *InMemoryIdempotencyStore) Reserve(_ context.Context, key string) (*CachedResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if entry, ok := s.store[key]; ok && now.Before(entry.expiresAt) {
		if entry.response == nil {
			return nil, ErrRequestInFlight
		}
		return entry.response, nil
	}

	s.store[key] = &idempotencyEntry{expiresAt: now.Add(s.ttl)}
	return nil, nil
}

func (s *InMemoryIdempotencyStore) Complete(_ context.Context, key string, response *CachedResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	response.CreatedAt = time.Now()
	s.store[key] = &idempotencyEntry{response: response, expiresAt: response.CreatedAt.Add(s.ttl)}
	return nil
}

func (s *InMemoryIdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.store, key)
	return nil
}

func (s *InMemoryIdempotencyStore) cleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			s.mu.Lock()
			for key, entry := range s.store {
				if now.After(entry.expiresAt) {
					delete(s.store, key)
				}
			}
			s.mu.Unlock()
		case <-s.stopCh:
			return
		}
	}
}

func (s *InMemoryIdempotencyStore) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

type responseCapture struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
}

func (rc *responseCapture) WriteHeader(statusCode int) {
	rc.statusCode = statusCode
	rc.ResponseWriter.WriteHeader(statusCode)
}

func (rc *responseCapture) Write(b []byte) (int, error) {
	rc.body.Write(b)
	return rc.ResponseWriter.Write(b)
}

// Idempotency replays the stored response of a completed request that
// carried the same Idempotency-Key. Keys are scoped to method, path and guest
// session. Only 2xx responses are kept; any other outcome releases the key
// so the client may retry. Reusing a key with a different body is a conflict.
func Idempotency(store IdempotencyStore, log *logger.Logger, scopeHeaders ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawKey := strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey))
			if rawKey == "" || r.Method == http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}
			if len(rawKey) > maxIdempotencyKeyLength {
				writeError(w, log, r, apperrors.InvalidInput("Idempotency-Key is too long"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				writeError(w, log, r, apperrors.InvalidInput("Invalid request body: "+err.Error()))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			requestHash := hashBody(body)

			ctx := r.Context()
			key := scopedIdempotencyKey(r, rawKey, scopeHeaders)

			cached, err := store.Reserve(ctx, key)
			switch {
			case errors.Is(err, ErrRequestInFlight):
				inFlight := apperrors.Conflict("A request with this Idempotency-Key is already in progress")
				inFlight.Retryable = true
				writeError(w, log, r, inFlight)
				return
			case err != nil:
				log.Warn("Idempotency store unavailable, processing without replay protection",
					"request_id", RequestIDFrom(ctx),
					"error", err,
				)
				next.ServeHTTP(w, r)
				return
			case cached != nil && cached.RequestHash != "" && cached.RequestHash != requestHash:
				writeError(w, log, r, apperrors.Conflict("Idempotency-Key was already used with a different request"))
				return
			case cached != nil:
				replayCachedResponse(w, cached)
				return
			}

			capture := &responseCapture{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
				body:           &bytes.Buffer{},
			}
			next.ServeHTTP(capture, r)

			// The request context may already be cancelled; bookkeeping must still land.
			storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()

			if capture.statusCode >= 200 && capture.statusCode < 300 {
				err = store.Complete(storeCtx, key, &CachedResponse{
					StatusCode:  capture.statusCode,
					Headers:     w.Header().Clone(),
					Body:        capture.body.Bytes(),
					RequestHash: requestHash,
				})
			} else {
				err = store.Release(storeCtx, key)
			}
			if err != nil {
				log.Error("failed to record idempotent response",
					"request_id", RequestIDFrom(ctx),
					"status", capture.statusCode,
					"error", err,
				)
			}
		})
	}
}

// IdempotencyKeyFrom derives the key Idempotency would use for r under the
// same scope headers. Stores keep it to recognise a retried write whose
// first attempt may have committed.
func IdempotencyKeyFrom(r *http.Request, scopeHeaders ...string) string {
	rawKey := strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey))
	if rawKey == "" || len(rawKey) > maxIdempotencyKeyLength {
		return ""
	}
	return scopedIdempotencyKey(r, rawKey, scopeHeaders)
}

func scopedIdempotencyKey(r *http.Request, rawKey string, scopeHeaders []string) string {
	h := sha256.New()
	h.Write([]byte(r.Method))
	h.Write([]byte{0})
	h.Write([]byte(r.URL.Path))
	for _, name := range scopeHeaders {
		h.Write([]byte{0})
		h.Write([]byte(r.Header.Get(name)))
	}
	h.Write([]byte{0})
	h.Write([]byte(rawKey))
	return hex.EncodeToString(h.Sum(nil))
}

func hashBody(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

func replayCachedResponse(w http.ResponseWriter, cached *CachedResponse) {
	for key, values := range cached.Headers {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	w.Header().Set(HeaderIdempotencyReplayed, "true")
	w.WriteHeader(cached.StatusCode)
	_, _ = w.Write(cached.Body)
}
