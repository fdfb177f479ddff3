package outbound

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Request is a single outbound call.
type Request struct {
	URI    string
	Method string

	// OnProgress, when set, receives partial body chunks as they arrive.
	// It may be called zero or more times before Send returns.
	OnProgress func(chunk []byte)
}

// Response is a completed call.
type Response struct {
	StatusCode int
	Body       []byte
}

// Transport performs the network call. Implementations return exactly one of
// a response or an error.
type Transport interface {
	Send(ctx context.Context, req Request) (*Response, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, req Request) (*Response, error)

// Send implements Transport.
func (f TransportFunc) Send(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}

const (
	DefaultTimeout   = 20 * time.Second
	DefaultUserAgent = "rinkjoin/0.1"
	chunkSize        = 32 * 1024
)

// HTTPTransport implements Transport over net/http.
type HTTPTransport struct {
	http      *http.Client
	userAgent string
	headers   http.Header

	tracing bool
	creds   *clientcredentials.Config
}

// HTTPOption configures an HTTPTransport.
type HTTPOption func(*HTTPTransport)

// WithHTTPClient replaces the underlying client.
func WithHTTPClient(h *http.Client) HTTPOption {
	return func(t *HTTPTransport) { t.http = h }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) HTTPOption {
	return func(t *HTTPTransport) {
		if ua != "" {
			t.userAgent = ua
		}
	}
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) HTTPOption {
	return func(t *HTTPTransport) { t.headers.Add(key, value) }
}

// WithTracing wraps the client transport with OpenTelemetry spans.
func WithTracing() HTTPOption {
	return func(t *HTTPTransport) { t.tracing = true }
}

// WithClientCredentials authenticates requests with an OAuth2 client
// credentials grant. Tokens are fetched with the configured client.
func WithClientCredentials(cfg clientcredentials.Config) HTTPOption {
	return func(t *HTTPTransport) { t.creds = &cfg }
}

// NewHTTPTransport creates a transport with a DefaultTimeout client unless
// WithHTTPClient says otherwise.
func NewHTTPTransport(opts ...HTTPOption) *HTTPTransport {
	t := &HTTPTransport{
		http:      &http.Client{Timeout: DefaultTimeout},
		userAgent: DefaultUserAgent,
		headers:   make(http.Header),
	}
	for _, o := range opts {
		o(t)
	}

	if t.creds != nil {
		base := t.http
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
		authed := t.creds.Client(ctx)
		authed.Timeout = base.Timeout
		t.http = authed
	}
	if t.tracing {
		base := t.http.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		traced := *t.http
		traced.Transport = otelhttp.NewTransport(base)
		t.http = &traced
	}
	return t
}

// Send implements Transport. Only GET is supported.
func (t *HTTPTransport) Send(ctx context.Context, r Request) (*Response, error) {
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}
	if method != http.MethodGet {
		return nil, &UnsupportedMethodError{Method: method}
	}

	req, err := http.NewRequestWithContext(ctx, method, r.URI, nil)
	if err != nil {
		return nil, err
	}
	for k, vs := range t.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", t.userAgent)

	resp, err := t.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := readBody(resp.Body, r.OnProgress)
	if err != nil {
		return nil, err
	}
	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}

func readBody(r io.Reader, progress func([]byte)) ([]byte, error) {
	if progress == nil {
		return io.ReadAll(r)
	}
	var buf bytes.Buffer
	chunk := make([]byte, chunkSize)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
			progress(append([]byte(nil), chunk[:n]...))
		}
		if errors.Is(err, io.EOF) {
			return buf.Bytes(), nil
		}
		if err != nil {
			return nil, err
		}
	}
}

var _ Transport = (*HTTPTransport)(nil)
