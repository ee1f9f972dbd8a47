package request

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Descriptor describes one collaborator request without binding to a
// concrete transport: the chat, maps, and database services all consume
// the same shape.
type Descriptor struct {
	Method string
	Target string
	Header http.Header
	Params map[string]string
	Body   []byte
}

// DedupKey derives the deduplication key for the descriptor: method,
// target, query params in sorted order, and an xxhash digest of the body.
// The derivation is part of the coordinator's contract so call sites can
// predict which requests share an in-flight operation.
func (d Descriptor) DedupKey() string {
	var sb strings.Builder
	sb.WriteString(d.Method)
	sb.WriteByte(' ')
	sb.WriteString(d.Target)

	if len(d.Params) > 0 {
		sb.WriteByte('?')
		for i, k := range slices.Sorted(maps.Keys(d.Params)) {
			if i > 0 {
				sb.WriteByte('&')
			}
			sb.WriteString(k)
			sb.WriteByte('=')
			sb.WriteString(d.Params[k])
		}
	}
	if len(d.Body) > 0 {
		fmt.Fprintf(&sb, "#%016x", xxhash.Sum64(d.Body))
	}
	return sb.String()
}

// Response is the transport-agnostic result of performing a Descriptor.
type Response struct {
	Code   int
	Header http.Header
	Body   []byte
}

// Transport performs descriptors against a concrete collaborator.
type Transport interface {
	Perform(ctx context.Context, d Descriptor) (*Response, error)
}

// HTTPTransport performs descriptors over net/http. Non-2xx statuses
// surface as *StatusError so the retry predicate can classify them; the
// client's own timeout surfaces as a retryable network error.
type HTTPTransport struct {
	client *http.Client
}

// NewHTTPTransport wraps an HTTP client. A nil client gets a 30 second
// timeout default.
func NewHTTPTransport(client *http.Client) *HTTPTransport {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPTransport{client: client}
}

// Perform executes the descriptor and reads the full response body.
func (t *HTTPTransport) Perform(ctx context.Context, d Descriptor) (*Response, error) {
	target := d.Target
	if len(d.Params) > 0 {
		q := url.Values{}
		for k, v := range d.Params {
			q.Set(k, v)
		}
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + q.Encode()
	}

	var body io.Reader
	if len(d.Body) > 0 {
		body = bytes.NewReader(d.Body)
	}

	req, err := http.NewRequestWithContext(ctx, d.Method, target, body)
	if err != nil {
		return nil, err
	}
	for k, vs := range d.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Join(ErrTransient, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}

	return &Response{Code: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

var _ Transport = (*HTTPTransport)(nil)

// FetchJSON builds a fetch function that performs d over t and decodes the
// JSON response body into T. This is the standard way call sites hand
// collaborator requests to the coordinator:
//
//	coords, err := request.Do(ctx, coord, "places", "geocode:paris",
//	    request.FetchJSON[Coordinates](transport, request.Descriptor{
//	        Method: http.MethodGet,
//	        Target: mapsURL + "/geocode",
//	        Params: map[string]string{"q": "paris"},
//	    }),
//	)
func FetchJSON[T any](t Transport, d Descriptor) Fetch[T] {
	return func(ctx context.Context) (T, error) {
		var zero T

		resp, err := t.Perform(ctx, d)
		if err != nil {
			return zero, err
		}

		var out T
		if err := json.Unmarshal(resp.Body, &out); err != nil {
			return zero, err
		}
		return out, nil
	}
}
