package core

import (
	"context"
	"net/http"
	"time"
)

func withTimeout(next http.HandlerFunc, d time.Duration) http.HandlerFunc {
	if d <= 0 {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), d)
		defer cancel()
		next(w, r.WithContext(ctx))
	}
}

func timeoutOf(ms int) time.Duration { return time.Duration(ms) * time.Millisecond }
