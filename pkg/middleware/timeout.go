package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"
	apperrors "tokenq/pkg/errors"
	httputil "tokenq/pkg/http"
)

// timeoutWriter drops writes made by the handler after the deadline fired.
type timeoutWriter struct {
	http.ResponseWriter
	mu       sync.Mutex
	timedOut bool
	written  bool
}

func (tw *timeoutWriter) WriteHeader(code int) {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if tw.timedOut || tw.written {
		return
	}

	tw.written = true
	tw.ResponseWriter.WriteHeader(code)
}

func (tw *timeoutWriter) Write(b []byte) (int, error) {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if tw.timedOut {
		return 0, http.ErrHandlerTimeout
	}
	tw.written = true

	return tw.ResponseWriter.Write(b)
}

// writeDeadlineGrace leaves room to send the response of a route whose budget
// outlasts the server write timeout.
const writeDeadlineGrace = 5 * time.Second

// RouteTimeout gives one route its own budget in place of the default.
type RouteTimeout struct {
	Method  string
	Path    string
	Timeout time.Duration
}

func RequestTimeout(timeout time.Duration, routes ...RouteTimeout) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limit := timeout
			for _, rt := range routes {
				if rt.Method == r.Method && rt.Path == r.URL.Path {
					limit = rt.Timeout
					// Not every writer supports deadlines; test recorders do not.
					_ = http.NewResponseController(w).SetWriteDeadline(time.Now().Add(limit + writeDeadlineGrace))
					break
				}
			}

			ctx, cancel := context.WithTimeout(r.Context(), limit)
			defer cancel()

			r = r.WithContext(ctx)
			tw := &timeoutWriter{ResponseWriter: w}

			done := make(chan struct{})
			panicked := make(chan any, 1)
			go func() {
				defer func() {
					if p := recover(); p != nil {
						panicked <- p
					}
				}()
				next.ServeHTTP(tw, r)
				close(done)
			}()

			select {
			case <-done:
			case p := <-panicked:
				panic(p)
			case <-ctx.Done():
				tw.mu.Lock()
				defer tw.mu.Unlock()
				tw.timedOut = true
				if !tw.written {
					_ = httputil.WriteError(w, apperrors.Timeout("Request timeout"))
				}
			}
		})
	}
}
