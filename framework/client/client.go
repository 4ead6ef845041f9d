package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	"github.com/cserve-project/cserve-test-harness/framework"
	"github.com/cserve-project/cserve-test-harness/framework/harness"
	"github.com/cserve-project/cserve-test-harness/framework/helpers"
)

// Client sends test requests to one server. It holds no per-request state and can be shared
// between tests.
type Client struct {
	baseURL       string
	secureBaseURL string
	cfg           clientConfig
	plain         *http.Client
	secure        *http.Client
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Text returns the body as a string.
func (r *Response) Text() string {
	return string(r.Body)
}

// JSON parses the body as JSON.
func (r *Response) JSON() (ldvalue.Value, error) {
	var v ldvalue.Value
	if err := r.DecodeJSON(&v); err != nil {
		return ldvalue.Null(), err
	}
	return v, nil
}

// DecodeJSON unmarshals the body into target.
func (r *Response) DecodeJSON(target interface{}) error {
	if err := json.Unmarshal(r.Body, target); err != nil {
		return &DecodeError{Source: "response body as JSON", Err: err}
	}
	return nil
}

// New creates a Client. secureBaseURL may be empty if the server has no TLS listener, in which
// case secure requests fail.
func New(baseURL, secureBaseURL string, options ...ClientOption) (*Client, error) {
	cfg := clientConfig{timeout: defaultTimeout, logger: framework.NullLogger()}
	if err := helpers.ApplyOptions(&cfg, options...); err != nil {
		return nil, err
	}
	if _, err := url.Parse(baseURL); err != nil || baseURL == "" {
		return nil, fmt.Errorf("invalid base URL %q", baseURL)
	}
	c := &Client{
		baseURL:       strings.TrimSuffix(baseURL, "/"),
		secureBaseURL: strings.TrimSuffix(secureBaseURL, "/"),
		cfg:           cfg,
	}
	if cfg.httpClient != nil {
		c.plain, c.secure = cfg.httpClient, cfg.httpClient
	} else {
		c.plain = cleanhttp.DefaultPooledClient()
		transport := cleanhttp.DefaultPooledTransport()
		// The server's test certificates are self-signed.
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
		c.secure = &http.Client{Transport: transport}
	}
	return c, nil
}

// FromConfig creates a Client for the server described by config. The base URLs are derived from
// the configured ports.
func FromConfig(config harness.ProcessConfig, routePrefix string, options ...ClientOption) (*Client, error) {
	return New(config.BaseURL(), config.SecureBaseURL(), append([]ClientOption{RoutePrefix(routePrefix)}, options...)...)
}

// WithRoutePrefix returns a copy of the client that uses a different route prefix.
func (c *Client) WithRoutePrefix(prefix string) *Client {
	ret := *c
	ret.cfg.routePrefix = prefix
	return &ret
}

// BaseURL returns the base URL of the plain listener.
func (c *Client) BaseURL() string { return c.baseURL }

// SecureBaseURL returns the base URL of the TLS listener, or "" if there is none.
func (c *Client) SecureBaseURL() string { return c.secureBaseURL }

// URL returns the full URL for a request path.
func (c *Client) URL(path string, secure bool) (string, error) {
	base := c.baseURL
	if secure {
		if c.secureBaseURL == "" {
			return "", errors.New("server has no TLS port configured")
		}
		base = c.secureBaseURL
	}
	return joinURL(base, c.cfg.routePrefix, path), nil
}

// joinURL joins the base URL, prefix and path with single slashes. A query string in path is
// kept as it is.
func joinURL(base, prefix, path string) string {
	query := ""
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path, query = path[:i], path[i:]
	}
	parts := []string{strings.TrimRight(base, "/")}
	for _, segment := range []string{prefix, path} {
		if s := strings.Trim(segment, "/"); s != "" {
			parts = append(parts, s)
		}
	}
	joined := strings.Join(parts, "/")
	if len(parts) == 1 || strings.HasSuffix(path, "/") {
		joined += "/"
	}
	return joined + query
}

// Do sends a request and reads the whole response, whatever its status.
func (c *Client) Do(r Request) (*Response, error) {
	resp, _, err := c.read(r)
	return resp, err
}

// read is like Do but also returns the URL that was requested, query string included.
func (c *Client) read(r Request) (*Response, string, error) {
	resp, u, cancel, err := c.send(r)
	if err != nil {
		return nil, u, err
	}
	defer cancel()
	defer resp.Body.Close() //nolint:errcheck
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, u, &RequestFailedError{Method: r.Method, URL: u, Err: err}
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, u, nil
}

func (c *Client) send(r Request) (*http.Response, string, context.CancelFunc, error) {
	if r.Method == "" {
		r.Method = http.MethodGet
	}
	u, err := c.URL(r.Path, r.Secure)
	if err != nil {
		return nil, "", nil, &RequestFailedError{Method: r.Method, URL: r.Path, Err: err}
	}
	if len(r.Query) > 0 {
		parsed, err := url.Parse(u)
		if err != nil {
			return nil, u, nil, &RequestFailedError{Method: r.Method, URL: u, Err: err}
		}
		q := parsed.Query()
		for k, vs := range r.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		parsed.RawQuery = q.Encode()
		u = parsed.String()
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.Timeout.OrElse(c.cfg.timeout))
	var body io.Reader
	if r.Body != nil {
		body = bytes.NewReader(r.Body)
	}
	req, err := http.NewRequestWithContext(ctx, r.Method, u, body)
	if err != nil {
		cancel()
		return nil, u, nil, &RequestFailedError{Method: r.Method, URL: u, Err: err}
	}
	for k, vs := range r.Header {
		req.Header[k] = vs
	}
	if r.ContentType != "" {
		req.Header.Set("Content-Type", r.ContentType)
	}
	for _, cookie := range r.Cookies {
		req.AddCookie(cookie)
	}

	hc := c.plain
	if r.Secure {
		hc = c.secure
	}
	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		cancel()
		c.cfg.logger.Printf("%s %s: %s", r.Method, u, err)
		return nil, u, nil, &RequestFailedError{Method: r.Method, URL: u, Err: err}
	}
	c.cfg.logger.Printf("%s %s -> %d (%s)", r.Method, u, resp.StatusCode, time.Since(start).Round(time.Millisecond))
	return resp, u, cancel, nil
}

func checkStatus(method, u string, resp *Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return &RequestFailedError{
		Method:        method,
		URL:           u,
		StatusCode:    resp.StatusCode,
		ServerMessage: serverMessage(resp.Body),
	}
}

func serverMessage(body []byte) string {
	v := ldvalue.Parse(body)
	if v.Type() != ldvalue.ObjectType {
		return ""
	}
	return v.GetByKey("message").StringValue()
}

func (c *Client) do(method, path string, body []byte, contentType string, options []RequestOption) (*Response, error) {
	r := newRequest(method, path, options)
	r.Body, r.ContentType = body, contentType
	resp, u, err := c.read(r)
	if err != nil {
		return nil, err
	}
	if err := checkStatus(r.Method, u, resp); err != nil {
		return resp, err
	}
	return resp, nil
}

// Get sends a GET request and returns the response, or a *RequestFailedError if the status was
// not 2xx. In the latter case the response is returned too.
func (c *Client) Get(path string, options ...RequestOption) (*Response, error) {
	return c.do(http.MethodGet, path, nil, "", options)
}

// GetSecure is like Get but uses the TLS listener.
func (c *Client) GetSecure(path string, options ...RequestOption) (*Response, error) {
	return c.Get(path, withSecure(options)...)
}

// withSecure appends Secure without touching the caller's backing array.
func withSecure(options []RequestOption) []RequestOption {
	return append(options[:len(options):len(options)], Secure())
}

// GetRaw sends a GET request and returns the response whatever its status.
func (c *Client) GetRaw(path string, options ...RequestOption) (*Response, error) {
	return c.Do(newRequest(http.MethodGet, path, options))
}

// GetStatusCode sends a GET request and returns only the status code.
func (c *Client) GetStatusCode(path string, options ...RequestOption) (int, error) {
	resp, err := c.GetRaw(path, options...)
	if err != nil {
		return 0, err
	}
	return resp.StatusCode, nil
}

// GetJSON sends a GET request and parses the response body as JSON.
func (c *Client) GetJSON(path string, options ...RequestOption) (ldvalue.Value, error) {
	resp, err := c.Get(path, options...)
	if err != nil {
		return ldvalue.Null(), err
	}
	return resp.JSON()
}

// GetSecureJSON is like GetJSON but uses the TLS listener.
func (c *Client) GetSecureJSON(path string, options ...RequestOption) (ldvalue.Value, error) {
	return c.GetJSON(path, withSecure(options)...)
}

// GetText sends a GET request and returns the response body as a string.
func (c *Client) GetText(path string, options ...RequestOption) (string, error) {
	resp, err := c.Get(path, options...)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// GetSecureText is like GetText but uses the TLS listener.
func (c *Client) GetSecureText(path string, options ...RequestOption) (string, error) {
	return c.GetText(path, withSecure(options)...)
}

// GetBytes sends a GET request and returns the response body.
func (c *Client) GetBytes(path string, options ...RequestOption) ([]byte, error) {
	resp, err := c.Get(path, options...)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Download sends a GET request and streams the body into a new temporary file whose name ends
// with suffix, returning the file's path. The caller is responsible for deleting the file. If the
// request or the copy fails, no file is left behind.
func (c *Client) Download(path, suffix string, options ...RequestOption) (string, error) {
	r := newRequest(http.MethodGet, path, options)
	resp, u, cancel, err := c.send(r)
	if err != nil {
		return "", err
	}
	defer cancel()
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return "", checkStatus(r.Method, u, &Response{StatusCode: resp.StatusCode, Body: body})
	}

	f, err := os.CreateTemp("", "cserve-download-*"+suffix)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", &RequestFailedError{Method: r.Method, URL: u, StatusCode: resp.StatusCode, Err: err}
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// PostMultipart uploads a file as a multipart/form-data POST. The file is sent in a part named
// "file" with the given MIME type, and extraFields are added as plain form fields. The response
// body is parsed as JSON.
func (c *Client) PostMultipart(
	path string,
	filePath string,
	mimeType string,
	extraFields map[string]string,
	options ...RequestOption,
) (ldvalue.Value, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return ldvalue.Null(), err
	}
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	names := make([]string, 0, len(extraFields))
	for name := range extraFields {
		names = append(names, name)
	}
	for _, name := range helpers.Sorted(names) {
		if err := w.WriteField(name, extraFields[name]); err != nil {
			return ldvalue.Null(), err
		}
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`,
		escapeQuotes(filepath.Base(filePath))))
	h.Set("Content-Type", mimeType)
	part, err := w.CreatePart(h)
	if err != nil {
		return ldvalue.Null(), err
	}
	if _, err := part.Write(data); err != nil {
		return ldvalue.Null(), err
	}
	if err := w.Close(); err != nil {
		return ldvalue.Null(), err
	}

	resp, err := c.do(http.MethodPost, path, buf.Bytes(), w.FormDataContentType(), options)
	if err != nil {
		return ldvalue.Null(), err
	}
	return resp.JSON()
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"") //nolint:gochecknoglobals

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
