package middleware

import (
	"net/http"
	"strings"
)

const (
	corsAllowMethods = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
	corsAllowHeaders = "Authorization, Content-Type"
	corsMaxAge       = "300"
)

// CORS restricts cross-origin access to the configured origins. A single
// "*" entry opens the API to any origin, intended for development setups.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	allowed := newOriginSet(allowedOrigins)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			if allowed.contains(origin) {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
				h.Set("Access-Control-Allow-Methods", corsAllowMethods)
				h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
				h.Set("Access-Control-Max-Age", corsMaxAge)
			}
			if isPreflight(r) {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type originSet struct {
	any     bool
	origins map[string]bool
}

func newOriginSet(list []string) originSet {
	s := originSet{origins: make(map[string]bool, len(list))}
	for _, o := range list {
		switch o = strings.TrimSpace(o); o {
		case "":
		case "*":
			s.any = true
		default:
			s.origins[o] = true
		}
	}
	return s
}

func (s originSet) contains(origin string) bool {
	if origin == "" {
		return false
	}
	return s.any || s.origins[origin]
}

func isPreflight(r *http.Request) bool {
	return r.Method == http.MethodOptions &&
		r.Header.Get("Origin") != "" &&
		r.Header.Get("Access-Control-Request-Method") != ""
}
