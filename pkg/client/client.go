package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/jordanlanch/estatecrm/pkg/domain"
	"github.com/jordanlanch/estatecrm/pkg/models"
)

// Preset selects the headers sent with a request.
type Preset int

const (
	// PresetJSON sends and accepts JSON with the bearer token.
	PresetJSON Preset = iota
	// PresetUpload sends multipart form data with the bearer token.
	PresetUpload
	// PresetPublic sends JSON without credentials.
	PresetPublic
	// PresetDownload accepts any content type with the bearer token.
	PresetDownload
)

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
	Details []domain.FieldError
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// IsUnauthorized reports whether err is a 401 response.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// Client calls the CRM API on behalf of a Session.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	UserAgent  string
	session    *Session
	onLogout   func()
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.HTTPClient = h
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if strings.TrimSpace(ua) != "" {
			c.UserAgent = ua
		}
	}
}

// OnLogout registers a callback run after a 401 cleared the session.
func OnLogout(fn func()) Option {
	return func(c *Client) { c.onLogout = fn }
}

// New creates a client for baseURL. A nil session starts an in-memory one.
func New(baseURL string, session *Session, opts ...Option) *Client {
	if session == nil {
		session = NewSession(nil, "")
	}
	c := &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		UserAgent:  "estatecrm-go-client",
		session:    session,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Session returns the client's session.
func (c *Client) Session() *Session {
	return c.session
}

// Headers returns the header preset, including the bearer token when the
// preset is authenticated and a token is held.
func (c *Client) Headers(p Preset) http.Header {
	h := http.Header{}
	h.Set("X-Requested-With", "XMLHttpRequest")
	h.Set("User-Agent", c.UserAgent)
	switch p {
	case PresetDownload:
		h.Set("Accept", "*/*")
	default:
		h.Set("Accept", "application/json")
	}
	if p == PresetJSON || p == PresetPublic {
		h.Set("Content-Type", "application/json")
	}
	if p != PresetPublic {
		if token := c.session.Token(); token != "" {
			h.Set("Authorization", "Bearer "+token)
		}
	}
	return h
}

type request struct {
	method      string
	path        string
	query       url.Values
	body        io.Reader
	contentType string
	preset      Preset
}

func (c *Client) send(ctx context.Context, r request) (*http.Response, error) {
	u := c.BaseURL + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, r.method, u, r.body)
	if err != nil {
		return nil, err
	}
	req.Header = c.Headers(r.preset)
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if r.body == nil {
		req.Header.Del("Content-Type")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 == 2 {
		return resp, nil
	}
	defer resp.Body.Close()

	apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	var body models.ErrorResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		apiErr.Message = body.Error
		apiErr.Details = body.Details
	}
	if resp.StatusCode == http.StatusUnauthorized && r.preset != PresetPublic {
		_ = c.session.Clear()
		if c.onLogout != nil {
			c.onLogout()
		}
	}
	return nil, apiErr
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any, preset Preset) error {
	r := request{method: method, path: path, query: query, preset: preset}
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		r.body = bytes.NewReader(data)
	}
	resp, err := c.send(ctx, r)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out, PresetJSON)
}

// Encode turns a struct with `query` tags into url values. Zero values and
// nil pointers are left out.
func Encode(v any) url.Values {
	out := url.Values{}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return out
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return out
	}
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		name := strings.Split(rt.Field(i).Tag.Get("query"), ",")[0]
		if name == "" || name == "-" {
			continue
		}
		f := rv.Field(i)
		if f.Kind() == reflect.Pointer {
			if f.IsNil() {
				continue
			}
			f = f.Elem()
		} else if f.IsZero() {
			continue
		}
		switch f.Kind() {
		case reflect.String:
			out.Set(name, f.String())
		case reflect.Bool:
			out.Set(name, strconv.FormatBool(f.Bool()))
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			out.Set(name, strconv.FormatInt(f.Int(), 10))
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			out.Set(name, strconv.FormatUint(f.Uint(), 10))
		case reflect.Float32, reflect.Float64:
			out.Set(name, strconv.FormatFloat(f.Float(), 'f', -1, 64))
		}
	}
	return out
}

func id(n uint) string {
	return strconv.FormatUint(uint64(n), 10)
}

// upload posts a single file as multipart form data under field.
func (c *Client) upload(ctx context.Context, path, field, filename string, r io.Reader, out any) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, filename)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, r); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	resp, err := c.send(ctx, request{
		method:      http.MethodPost,
		path:        path,
		body:        &buf,
		contentType: w.FormDataContentType(),
		preset:      PresetUpload,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(out)
}

// download fetches a binary body.
func (c *Client) download(ctx context.Context, path string, query url.Values) ([]byte, error) {
	resp, err := c.send(ctx, request{method: http.MethodGet, path: path, query: query, preset: PresetDownload})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}
