// Package remote is the HTTP client for the marketplace API. It implements
// the collaborator interfaces of the domain packages.
package remote

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xenking/foodcart/internal/domain/catalog"
	"github.com/xenking/foodcart/internal/domain/order"
	"github.com/xenking/foodcart/internal/domain/promo"
	"github.com/xenking/foodcart/internal/domain/session"
)

const tracerName = "github.com/xenking/foodcart/internal/remote"

var (
	_ session.Authenticator = (*Client)(nil)
	_ catalog.Service       = (*Client)(nil)
	_ order.Service         = (*Client)(nil)
	_ promo.Repository      = (*Client)(nil)
)

// Client talks to the marketplace API.
type Client struct {
	base    *url.URL
	http    *http.Client
	tracer  trace.Tracer
	timeout time.Duration
}

// Option configures a Client.
type Option func(c *Client)

// WithTransport sets the RoundTripper used for every request.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.http = &http.Client{Transport: rt}
	}
}

// WithTimeout bounds every request. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithTracerProvider sets the provider for client spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		c.tracer = tp.Tracer(tracerName)
	}
}

// New creates a Client for the API rooted at rawURL.
func New(rawURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse api url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Errorf("api url %q: unsupported scheme", rawURL)
	}

	c := &Client{
		base:    u,
		http:    &http.Client{},
		tracer:  otel.GetTracerProvider().Tracer(tracerName),
		timeout: 15 * time.Second,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

type request struct {
	op       string
	endpoint endpoint
	method   string
	path     []string
	query    url.Values
	body     []byte
}

// do executes r and returns the body of a 2xx response.
func (c *Client) do(ctx context.Context, r request) (_ []byte, rerr error) {
	ctx, span := c.tracer.Start(ctx, r.op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("http.request.method", r.method)),
	)
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		span.End()
	}()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	elems := make([]string, len(r.path))
	for i, p := range r.path {
		elems[i] = url.PathEscape(p)
	}
	u := c.base.JoinPath(elems...)
	u.RawQuery = r.query.Encode()

	var body io.Reader
	if r.body != nil {
		body = bytes.NewReader(r.body)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, u.String(), body)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: r.op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Op: r.op, Err: err}
	}
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := decodeMessage(data)
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &APIError{
			Op:       r.op,
			Status:   resp.StatusCode,
			Message:  msg,
			endpoint: r.endpoint,
		}
	}
	return data, nil
}

// Ping checks that the API answers at all. Any HTTP response counts as
// reachable; only transport failures are reported.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, request{
		op:     "Ping",
		method: http.MethodHead,
		path:   []string{"restaurants"},
	})
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return nil
	}
	return err
}
