package client

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/cserve-project/cserve-test-harness/framework"
	"github.com/cserve-project/cserve-test-harness/framework/helpers"
	"github.com/cserve-project/cserve-test-harness/framework/opt"
)

const defaultTimeout = time.Second * 10

type clientConfig struct {
	routePrefix string
	timeout     time.Duration
	logger      framework.Logger
	httpClient  *http.Client
}

// ClientOption is an option for New and FromConfig.
type ClientOption helpers.ConfigOption[clientConfig]

func clientOption(fn func(*clientConfig) error) ClientOption {
	return helpers.ConfigOptionFunc[clientConfig](fn)
}

// RoutePrefix sets a path segment that is inserted between the base URL and every request path,
// such as "iiif".
func RoutePrefix(prefix string) ClientOption {
	return clientOption(func(c *clientConfig) error {
		c.routePrefix = prefix
		return nil
	})
}

// Timeout sets the default time limit for each request, including reading the body.
func Timeout(d time.Duration) ClientOption {
	return clientOption(func(c *clientConfig) error {
		c.timeout = d
		return nil
	})
}

// DebugLogger sets a Logger that receives one line per request.
func DebugLogger(logger framework.Logger) ClientOption {
	return clientOption(func(c *clientConfig) error {
		if logger != nil {
			c.logger = logger
		}
		return nil
	})
}

// HTTPClient replaces the underlying http.Client, for both plain and TLS requests.
func HTTPClient(hc *http.Client) ClientOption {
	return clientOption(func(c *clientConfig) error {
		c.httpClient = hc
		return nil
	})
}

// Request describes one test request.
type Request struct {
	Method      string
	Path        string
	Header      http.Header
	Cookies     []*http.Cookie
	Query       url.Values
	Secure      bool
	Timeout     opt.Maybe[time.Duration]
	ContentType string
	Body        []byte
}

// RequestOption modifies a Request.
type RequestOption func(*Request)

// Header adds a request header.
func Header(name, value string) RequestOption {
	return func(r *Request) {
		if r.Header == nil {
			r.Header = make(http.Header)
		}
		r.Header.Add(name, value)
	}
}

// Cookie adds a cookie to the request.
func Cookie(name, value string) RequestOption {
	return func(r *Request) {
		r.Cookies = append(r.Cookies, &http.Cookie{Name: name, Value: value})
	}
}

// Query adds a query parameter. Parameters already present in the request path are kept.
func Query(name, value string) RequestOption {
	return func(r *Request) {
		if r.Query == nil {
			r.Query = make(url.Values)
		}
		r.Query.Add(name, value)
	}
}

// ByteRange sets a Range header for bytes first through last inclusive.
func ByteRange(first, last int) RequestOption {
	return Header("Range", fmt.Sprintf("bytes=%d-%d", first, last))
}

// Secure sends the request to the TLS listener instead of the plain one.
func Secure() RequestOption {
	return func(r *Request) { r.Secure = true }
}

// RequestTimeout overrides the client's default timeout for one request.
func RequestTimeout(d time.Duration) RequestOption {
	return func(r *Request) { r.Timeout = opt.Some(d) }
}

func newRequest(method, path string, options []RequestOption) Request {
	r := Request{Method: method, Path: path}
	for _, o := range options {
		if o != nil {
			o(&r)
		}
	}
	return r
}
