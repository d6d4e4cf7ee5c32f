package middleware

import (
	"net/http"
	"strings"

	"github.com/rs/cors"
)

// CORSMiddleware allows browser clients from allowedOrigins, a comma separated
// list where "*" admits any origin.
func CORSMiddleware(allowedOrigins string, next http.Handler) http.Handler {
	var origins []string
	for _, o := range strings.Split(allowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(next)
}
