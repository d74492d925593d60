package api_functions

import (
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// WithMiddleware adds access logging and panic recovery around h.
func WithMiddleware(h http.Handler) http.Handler {
	w := logrus.StandardLogger().WriterLevel(logrus.DebugLevel)
	return handlers.RecoveryHandler(handlers.RecoveryLogger(logrus.StandardLogger()), handlers.PrintRecoveryStack(true))(handlers.CombinedLoggingHandler(w, h))
}

// NewLimiter builds a token bucket; a non-positive rate means unlimited.
func NewLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

// RateLimited answers 429 once limiter is exhausted.
func RateLimited(limiter *rate.Limiter, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			WriteError(w, http.StatusTooManyRequests, "Too many requests")
			return
		}
		next(w, r)
	}
}
