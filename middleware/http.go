package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
)

// WrapHTTP puts CORS and per-IP rate limiting in front of the router.
func WrapHTTP(next http.Handler, allowedOrigins []string, requestsPerMinute int) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	})

	limited := httprate.LimitByIP(requestsPerMinute, time.Minute)(next)
	return c.Handler(limited)
}
