package middleware

import (
	"encoding/json"
	"log"
	"net/http"
	"runtime/debug"
)

func Recover(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					cid := GetCorrelationID(r.Context())
					logger.Printf("panic correlation_id=%s %s %s: %v\n%s", cid, r.Method, r.URL.Path, rec, debug.Stack())
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"error":          "internal",
						"message":        "internal server error",
						"correlation_id": cid,
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
