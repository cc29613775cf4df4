package watchdog

import (
	"net/http"
	"strings"
)

// Request describes the in-flight request a watchdog is armed for.
type Request struct {
	Method   string
	Scheme   string
	Host     string
	Path     string
	RawQuery string

	// Route is the route name used for exemptions (gin's full path pattern).
	Route     string
	RequestID string
	ClientIP  string
	UserAgent string
}

// RequestFromHTTP fills the descriptive fields from r. Route, RequestID and
// ClientIP are left to the caller, who knows the router.
func RequestFromHTTP(r *http.Request) Request {
	return Request{
		Method:    r.Method,
		Scheme:    scheme(r),
		Host:      r.Host,
		Path:      r.URL.Path,
		RawQuery:  r.URL.RawQuery,
		UserAgent: r.UserAgent(),
	}
}

func scheme(r *http.Request) string {
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		return strings.ToLower(strings.TrimSpace(strings.Split(proto, ",")[0]))
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

// String renders "METHOD scheme://host/path?query".
func (r Request) String() string {
	scheme := r.Scheme
	if scheme == "" {
		scheme = "http"
	}
	s := r.Method + " " + scheme + "://" + r.Host + r.Path
	if r.RawQuery != "" {
		s += "?" + r.RawQuery
	}
	return s
}
