package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"commerce-api/apperr"
	models "commerce-api/model"
	"commerce-api/result"
	"commerce-api/store"

	"go.uber.org/zap"
)

// UserIDHeader carries the id of the calling user.
const UserIDHeader = "X-User-ID"

type ctxKey struct{}

// WithUser returns a copy of ctx carrying u.
func WithUser(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// UserFrom returns the authenticated user stored in ctx.
func UserFrom(ctx context.Context) (*models.User, bool) {
	u, ok := ctx.Value(ctxKey{}).(*models.User)
	return u, ok && u != nil
}

func mustUser(r *http.Request) *models.User {
	u, ok := UserFrom(r.Context())
	if !ok {
		panic("handler: route registered without Authenticate")
	}
	return u
}

// Authenticate resolves the caller from the X-User-ID header.
func (h *Handler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.Header.Get(UserIDHeader), 10, 64)
		if err != nil || id < 1 {
			writeErr(w, apperr.Unauthorized("Unauthorized", "Missing or invalid "+UserIDHeader+" header"))
			return
		}
		u, err := h.users.GetUser(r.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			writeErr(w, apperr.Unauthorized("Unauthorized", "User not found"))
			return
		}
		if err != nil {
			writeErr(w, apperr.Internal("Could not authenticate the request", err))
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
	})
}

// RequireAdmin rejects callers without the ADMIN role.
func (h *Handler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := UserFrom(r.Context())
		if !ok || !u.IsAdmin() {
			writeErr(w, apperr.Unauthorized("Unauthorized", "Admin role required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.limiter != nil && !h.limiter.Allow() {
			writeJSON(w, http.StatusTooManyRequests, result.Result[any]{
				Message: "Too many requests",
				Errors:  []string{"Rate limit exceeded, retry later"},
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// LogRequests writes one log line per request.
func (h *Handler) LogRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		}
		if rec.status >= http.StatusInternalServerError {
			h.logger.Error("request failed", fields...)
			return
		}
		h.logger.Info("request served", fields...)
	})
}
