package security

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// CORSConfig lists the origins allowed to call the API from a browser. "*"
// allows any origin.
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	ExposedHeaders []string
	MaxAge         time.Duration
}

func DefaultCORSConfig(origins []string) CORSConfig {
	return CORSConfig{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"Content-Disposition", "X-Request-ID", "Retry-After"},
		MaxAge:         10 * time.Minute,
	}
}

// CORS answers preflight requests and decorates cross-origin responses.
type CORS struct {
	config    CORSConfig
	allowAll  bool
	allowed   map[string]bool
	methods   string
	headers   string
	exposed   string
	maxAgeSec string
}

func NewCORS(config CORSConfig) *CORS {
	c := &CORS{
		config:    config,
		allowed:   make(map[string]bool),
		methods:   strings.Join(config.AllowedMethods, ", "),
		headers:   strings.Join(config.AllowedHeaders, ", "),
		exposed:   strings.Join(config.ExposedHeaders, ", "),
		maxAgeSec: strconv.Itoa(int(config.MaxAge.Seconds())),
	}
	for _, o := range config.AllowedOrigins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			c.allowAll = true
		}
		c.allowed[o] = true
	}
	return c
}

// OriginAllowed reports whether a browser at origin may call the API.
func (c *CORS) OriginAllowed(origin string) bool {
	if origin == "" {
		return false
	}
	return c.allowAll || c.allowed[strings.TrimRight(origin, "/")]
}

func (c *CORS) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			next.ServeHTTP(w, r)
			return
		}

		h := w.Header()
		h.Add("Vary", "Origin")
		if !c.OriginAllowed(origin) {
			if isPreflight(r) {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		if c.allowAll {
			h.Set("Access-Control-Allow-Origin", "*")
		} else {
			h.Set("Access-Control-Allow-Origin", origin)
		}
		if c.exposed != "" {
			h.Set("Access-Control-Expose-Headers", c.exposed)
		}

		if isPreflight(r) {
			h.Set("Access-Control-Allow-Methods", c.methods)
			h.Set("Access-Control-Allow-Headers", c.headers)
			h.Set("Access-Control-Max-Age", c.maxAgeSec)
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isPreflight(r *http.Request) bool {
	return r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""
}
