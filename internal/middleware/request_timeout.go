package middleware

import (
	"context"
	"net/http"
	"time"
)

// RequestTimeoutMiddleware ограничивает обработку запроса сроком d.
//
// Если срок у входящего контекста уже короче d, он остаётся как есть.
// d <= 0 отключает ограничение. Обработчики узнают о сроке только через ctx.
func RequestTimeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	if d <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if deadline, ok := r.Context().Deadline(); ok && time.Until(deadline) <= d {
				next.ServeHTTP(w, r)
				return
			}
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
