// Package backend talks to the change-detection REST service.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"aoi-go/internal/aoi"
	"aoi-go/internal/config"
	"aoi-go/internal/metrics"
)

const (
	defaultTimeout = 30 * time.Second
	maxBodyBytes   = 10 << 20
)

// HTTPBackend implements aoi.Backend over the service's JSON API.
type HTTPBackend struct {
	baseURL *url.URL
	token   string
	client  *http.Client
	clock   aoi.Clock
}

var _ aoi.Backend = (*HTTPBackend)(nil)

// NewHTTPBackend creates a client for cfg.URL.
func NewHTTPBackend(cfg config.BackendConfig, clock aoi.Clock) (*HTTPBackend, error) {
	base, err := url.Parse(strings.TrimRight(cfg.URL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing backend url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("backend url %q must be http or https", cfg.URL)
	}
	if clock == nil {
		clock = aoi.RealClock{}
	}

	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	return &HTTPBackend{
		baseURL: base,
		token:   cfg.Token,
		client:  &http.Client{Timeout: timeout},
		clock:   clock,
	}, nil
}

// call describes one request. resource and id name the target for NotFoundError.
type call struct {
	op       string
	method   string
	path     string
	query    url.Values
	body     any
	resource string
	id       string
}

func (c call) label() string {
	return strings.ReplaceAll(c.op, " ", "_")
}

// endpoint joins an already escaped path onto the base URL.
func (b *HTTPBackend) endpoint(path string, query url.Values) string {
	s := b.baseURL.String() + path
	if len(query) > 0 {
		s += "?" + query.Encode()
	}
	return s
}

func (b *HTTPBackend) newRequest(ctx context.Context, c call) (*http.Request, error) {
	var body io.Reader
	if c.body != nil {
		data, err := json.Marshal(c.body)
		if err != nil {
			return nil, fmt.Errorf("%s: encoding request: %w", c.op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, c.method, b.endpoint(c.path, c.query), body)
	if err != nil {
		return nil, fmt.Errorf("%s: building request: %w", c.op, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if b.token != "" {
		req.Header.Set("Authorization", "Bearer "+b.token)
	}
	return req, nil
}

// do sends c and decodes a 2xx JSON body into out (when out is non-nil).
// Every failure is returned as one of the typed errors in package aoi.
func (b *HTTPBackend) do(ctx context.Context, c call, out any) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.BackendRequestDuration, c.label())

	err := b.roundTrip(ctx, c, out)
	metrics.BackendRequestsTotal.WithLabelValues(c.label(), outcome(err)).Inc()
	return err
}

func (b *HTTPBackend) roundTrip(ctx context.Context, c call, out any) error {
	req, err := b.newRequest(ctx, c)
	if err != nil {
		return err
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return &aoi.NetworkError{Op: c.op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &aoi.NetworkError{Op: c.op, Err: fmt.Errorf("reading response: %w", err)}
	}

	if err := classify(c, resp.StatusCode, data); err != nil {
		return err
	}
	if out == nil {
		return nil
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return &aoi.SchemaError{Op: c.op, Err: errors.New("empty response body")}
	}
	if err := json.Unmarshal(trimmed, out); err != nil {
		return &aoi.SchemaError{Op: c.op, Err: err}
	}
	return nil
}

// classify maps a non-2xx status to a typed error.
func classify(c call, status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}
	detail := errorDetail(body)
	switch status {
	case http.StatusNotFound:
		return &aoi.NotFoundError{Op: c.op, Resource: c.resource, ID: c.id, Detail: detail}
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return &aoi.ValidationError{Op: c.op, StatusCode: status, Detail: detail}
	default:
		return &aoi.BackendError{Op: c.op, StatusCode: status, Detail: detail}
	}
}

func outcome(err error) string {
	var (
		netErr    *aoi.NetworkError
		valErr    *aoi.ValidationError
		schemaErr *aoi.SchemaError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &netErr):
		return "network"
	case errors.Is(err, aoi.ErrNotFound):
		return "not_found"
	case errors.As(err, &valErr):
		return "invalid"
	case errors.As(err, &schemaErr):
		return "schema"
	default:
		return "error"
	}
}

// ListAOIs fetches every AOI. A timestamp query parameter defeats caching proxies.
func (b *HTTPBackend) ListAOIs(ctx context.Context) ([]*aoi.AOI, error) {
	c := call{
		op:     "list aois",
		method: http.MethodGet,
		path:   "/aois/",
		query:  url.Values{"_t": {strconv.FormatInt(b.clock.Now().UnixMilli(), 10)}},
	}

	var docs []wireAOI
	if err := b.do(ctx, c, &docs); err != nil {
		return nil, err
	}

	aois := make([]*aoi.AOI, 0, len(docs))
	for i := range docs {
		a, err := docs[i].toAOI()
		if err != nil {
			return nil, &aoi.SchemaError{Op: c.op, Err: err}
		}
		aois = append(aois, a)
	}
	return aois, nil
}

func (b *HTTPBackend) GetAOI(ctx context.Context, id string) (*aoi.AOI, error) {
	c := call{op: "get aoi", method: http.MethodGet, path: "/aois/" + url.PathEscape(id), resource: "aoi", id: id}
	return b.doAOI(ctx, c)
}

func (b *HTTPBackend) CreateAOI(ctx context.Context, d aoi.Draft) (*aoi.AOI, error) {
	c := call{op: "create aoi", method: http.MethodPost, path: "/aois/", body: newDraftBody(d)}
	return b.doAOI(ctx, c)
}

func (b *HTTPBackend) UpdateAOI(ctx context.Context, id string, p aoi.Patch) (*aoi.AOI, error) {
	c := call{op: "update aoi", method: http.MethodPut, path: "/aois/" + url.PathEscape(id), body: newPatchBody(p), resource: "aoi", id: id}
	return b.doAOI(ctx, c)
}

func (b *HTTPBackend) doAOI(ctx context.Context, c call) (*aoi.AOI, error) {
	var doc wireAOI
	if err := b.do(ctx, c, &doc); err != nil {
		return nil, err
	}
	a, err := doc.toAOI()
	if err != nil {
		return nil, &aoi.SchemaError{Op: c.op, Err: err}
	}
	return a, nil
}

func (b *HTTPBackend) DeleteAOI(ctx context.Context, id string) error {
	c := call{op: "delete aoi", method: http.MethodDelete, path: "/aois/" + url.PathEscape(id), resource: "aoi", id: id}
	return b.do(ctx, c, nil)
}

func (b *HTTPBackend) ListAlerts(ctx context.Context, aoiID string) ([]aoi.ChangeAlert, error) {
	c := call{
		op:       "list alerts",
		method:   http.MethodGet,
		path:     "/aois/" + url.PathEscape(aoiID) + "/changes",
		resource: "aoi",
		id:       aoiID,
	}

	var docs []wireAlert
	if err := b.do(ctx, c, &docs); err != nil {
		return nil, err
	}

	alerts := make([]aoi.ChangeAlert, 0, len(docs))
	for i := range docs {
		a, err := docs[i].toAlert(aoiID)
		if err != nil {
			return nil, &aoi.SchemaError{Op: c.op, Err: err}
		}
		alerts = append(alerts, a)
	}
	return alerts, nil
}

func (b *HTTPBackend) ResolveThumbnail(ctx context.Context, alertID string, kind aoi.ThumbnailKind) (string, error) {
	c := call{
		op:       "resolve thumbnail",
		method:   http.MethodGet,
		path:     "/aois/" + url.PathEscape(alertID) + "/thumbnail",
		query:    url.Values{"type": {string(kind)}},
		resource: "alert",
		id:       alertID,
	}

	var doc wireThumbnail
	if err := b.do(ctx, c, &doc); err != nil {
		return "", err
	}
	if doc.URL == "" {
		return "", &aoi.SchemaError{Op: c.op, Err: fmt.Errorf("%s thumbnail of %s has no url", kind, alertID)}
	}
	return doc.URL, nil
}

// FetchImage downloads a thumbnail. The bearer token is only sent when the
// image is served by the backend host itself.
func (b *HTTPBackend) FetchImage(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	const op = "fetch image"
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.BackendRequestDuration, "fetch_image")

	rc, err := b.fetchImage(ctx, op, rawURL)
	metrics.BackendRequestsTotal.WithLabelValues("fetch_image", outcome(err)).Inc()
	return rc, err
}

func (b *HTTPBackend) fetchImage(ctx context.Context, op, rawURL string) (io.ReadCloser, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, &aoi.SchemaError{Op: op, Err: fmt.Errorf("thumbnail url: %w", err)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%s: building request: %w", op, err)
	}
	if b.token != "" && u.Host == b.baseURL.Host {
		req.Header.Set("Authorization", "Bearer "+b.token)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, &aoi.NetworkError{Op: op, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return nil, classify(call{op: op, resource: "image", id: rawURL}, resp.StatusCode, body)
	}
	return resp.Body, nil
}
