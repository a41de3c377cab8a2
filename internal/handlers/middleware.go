package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"qrshare/internal/service"
)

type ctxKey int

const credentialsKey ctxKey = iota

// WithRecover recovers from panics in next and answers 500 instead of
// dropping the connection.
func (h *Handler) WithRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				h.log.ErrorContext(r.Context(), "panic recovered",
					"panic", rec, "method", r.Method, "path", r.URL.Path)
				writeDetail(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// RequestLogger logs one line per request. Only the path is logged, never
// the query string, since it carries the auth token.
func (h *Handler) RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := uuid.NewString()
		w.Header().Set("X-Request-ID", reqID)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		h.log.InfoContext(r.Context(), "request",
			"request_id", reqID,
			"method", r.Method,
			"path", r.URL.Path,
			"remote", r.RemoteAddr,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds())
	})
}

// RequireCredentials extracts id and auth from the request. It only checks
// their shape; validating them is the service's job on every operation.
// The token may come from the auth query parameter or a Bearer header.
func RequireCredentials(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		id, err := strconv.ParseInt(strings.TrimSpace(q.Get("id")), 10, 64)
		token := q.Get("auth")
		if token == "" {
			token = bearerToken(r)
		}
		if err != nil || token == "" {
			writeDetail(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		cred := service.Credentials{ID: id, Token: token}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), credentialsKey, cred)))
	})
}

func credentialsFrom(ctx context.Context) service.Credentials {
	cred, _ := ctx.Value(credentialsKey).(service.Credentials)
	return cred
}

func bearerToken(r *http.Request) string {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
