package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// CORSConfig describes which browser origins may call the scheduling API and
// with which methods.
type CORSConfig struct {
	// AllowedOrigins lists exact origins; "*" echoes any origin back.
	AllowedOrigins []string
	// AllowedMethods are the methods the mounted routes answer. OPTIONS is
	// always allowed.
	AllowedMethods []string
	AllowedHeaders []string
	// ExposedHeaders are response headers scripts may read, such as the
	// duplicate-request marker on booking replays.
	ExposedHeaders []string
	MaxAge         time.Duration
}

var (
	defaultCORSHeaders = []string{"Authorization", "Content-Type", "X-Request-ID"}
	defaultCORSExposed = []string{"X-Request-ID", "X-Duplicate-Request", "Retry-After"}
)

type corsPolicy struct {
	allowAny bool
	origins  map[string]struct{}
	methods  map[string]struct{}

	methodList string
	headerList string
	exposeList string
	maxAge     string
}

func newCORSPolicy(cfg CORSConfig) corsPolicy {
	p := corsPolicy{
		origins: map[string]struct{}{},
		methods: map[string]struct{}{http.MethodOptions: {}},
	}
	for _, origin := range cfg.AllowedOrigins {
		origin = strings.TrimSpace(origin)
		switch origin {
		case "":
		case "*":
			p.allowAny = true
		default:
			p.origins[origin] = struct{}{}
		}
	}

	methods := []string{}
	for _, m := range append(append([]string{}, cfg.AllowedMethods...), http.MethodOptions) {
		m = strings.ToUpper(strings.TrimSpace(m))
		if m == "" || containsFold(methods, m) {
			continue
		}
		methods = append(methods, m)
		p.methods[m] = struct{}{}
	}
	p.methodList = strings.Join(methods, ", ")

	headers := cfg.AllowedHeaders
	if len(headers) == 0 {
		headers = defaultCORSHeaders
	}
	p.headerList = strings.Join(headers, ", ")

	exposed := cfg.ExposedHeaders
	if exposed == nil {
		exposed = defaultCORSExposed
	}
	p.exposeList = strings.Join(exposed, ", ")

	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = 10 * time.Minute
	}
	p.maxAge = strconv.Itoa(int(maxAge.Seconds()))
	return p
}

func (p corsPolicy) originAllowed(origin string) bool {
	if origin == "" {
		return false
	}
	if p.allowAny {
		return true
	}
	_, ok := p.origins[origin]
	return ok
}

func (p corsPolicy) methodAllowed(method string) bool {
	_, ok := p.methods[strings.ToUpper(strings.TrimSpace(method))]
	return ok
}

// CORS answers browser preflights and tags responses for allowed origins.
// A preflight asking for a method the API does not serve gets 405 without
// allow headers, so the browser blocks the real request.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	policy := newCORSPolicy(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			requested := r.Header.Get("Access-Control-Request-Method")
			preflight := r.Method == http.MethodOptions && origin != "" && requested != ""

			w.Header().Add("Vary", "Origin")
			if !policy.originAllowed(origin) {
				if preflight {
					w.WriteHeader(http.StatusForbidden)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("Access-Control-Allow-Origin", origin)
			if !preflight {
				if policy.exposeList != "" {
					w.Header().Set("Access-Control-Expose-Headers", policy.exposeList)
				}
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Add("Vary", "Access-Control-Request-Method")
			w.Header().Add("Vary", "Access-Control-Request-Headers")
			if !policy.methodAllowed(requested) {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			w.Header().Set("Access-Control-Allow-Methods", policy.methodList)
			w.Header().Set("Access-Control-Allow-Headers", policy.headerList)
			w.Header().Set("Access-Control-Max-Age", policy.maxAge)
			w.WriteHeader(http.StatusNoContent)
		})
	}
}

func containsFold(values []string, target string) bool {
	for _, v := range values {
		if strings.EqualFold(v, target) {
			return true
		}
	}
	return false
}
