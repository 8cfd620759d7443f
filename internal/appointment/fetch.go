package appointment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"apptboard/internal/config"
	appLog "apptboard/internal/log"
)

// Resource is a pre-registered upstream path. Only values produced by this
// package are accepted by FetchList.
type Resource string

// ResourceAppointments lists every appointment.
const ResourceAppointments Resource = "/api/appointment/get/all"

var singleAppointmentPath = regexp.MustCompile(`^/api/appointment/get/[1-9][0-9]*$`)

// AppointmentResource addresses the single-appointment endpoint, which
// answers with one object instead of an array.
func AppointmentResource(id int64) Resource {
	return Resource("/api/appointment/get/" + strconv.FormatInt(id, 10))
}

func (r Resource) registered() bool {
	return r == ResourceAppointments || singleAppointmentPath.MatchString(string(r))
}

// RawRecord is one undecoded element of the envelope's data field.
type RawRecord = json.RawMessage

// envelope is the upstream response wrapper: {"success": true, "data": ...}
// or {"success": false, "error"|"message": "..."}.
type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

func (e envelope) message() string {
	if e.Error != "" {
		return e.Error
	}
	return e.Message
}

// Client issues read-only GET requests against the booking service. It
// holds no mutable state and is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client (tests, custom TLS).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout bounds each request. Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// NewClient validates baseURL as an http(s) origin and returns a Client.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, config.ErrBaseURLRequired
	}
	if err := config.ValidateOrigin(baseURL); err != nil {
		return nil, fmt.Errorf("appointment: base url %q: %w", baseURL, err)
	}

	c := &Client{
		baseURL: baseURL,
		http: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the normalized origin without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// AssetURL builds {baseUrl}/static/{image_profile}. Each path segment of
// the image reference is escaped. An empty reference yields "".
func (c *Client) AssetURL(imageProfile string) string {
	imageProfile = strings.Trim(imageProfile, "/")
	if imageProfile == "" {
		return ""
	}
	parts := strings.Split(imageProfile, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return c.baseURL + "/static/" + strings.Join(parts, "/")
}

// FetchList GETs res and normalizes the envelope's data field into a
// sequence:
//
//   - array  -> returned as-is, server order preserved
//   - object -> one-element sequence
//   - absent or null -> empty sequence, not an error
//
// Transport failures are *NetworkError, undecodable bodies are *ParseError,
// and non-2xx or success=false responses are *APIError. There is no retry.
func (c *Client) FetchList(ctx context.Context, res Resource) ([]RawRecord, error) {
	if !res.registered() {
		return nil, fmt.Errorf("appointment: resource %q is not registered", string(res))
	}
	target := c.baseURL + string(res)

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	appLog.Debug("appointment fetch start", "url", target)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: "GET", URL: target, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Op: "read", URL: target, Err: err}
	}

	env, envErr := decodeEnvelope(body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{URL: target, Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		if envErr == nil && env.message() != "" {
			apiErr.Message = env.message()
		}
		return nil, apiErr
	}
	if envErr != nil {
		return nil, &ParseError{URL: target, Err: envErr}
	}
	if env.Success != nil && !*env.Success {
		return nil, &APIError{URL: target, Status: resp.StatusCode, Message: env.message()}
	}

	records, err := normalizeData(env.Data)
	if err != nil {
		return nil, &ParseError{URL: target, Err: err}
	}

	appLog.Info("appointment fetch success", "url", target, "status", resp.StatusCode, "count", len(records))
	return records, nil
}

func decodeEnvelope(body []byte) (envelope, error) {
	var env envelope
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return env, errors.New("empty body")
	}
	if trimmed[0] != '{' {
		return env, errors.New("response is not a JSON object")
	}
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return env, err
	}
	return env, nil
}

func normalizeData(data json.RawMessage) ([]RawRecord, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []RawRecord{}, nil
	}

	switch trimmed[0] {
	case '[':
		var list []RawRecord
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, err
		}
		if list == nil {
			list = []RawRecord{}
		}
		return list, nil
	case '{':
		return []RawRecord{RawRecord(trimmed)}, nil
	default:
		return nil, fmt.Errorf("data must be an array or an object, got %q", firstToken(trimmed))
	}
}

func firstToken(b []byte) string {
	const limit = 16
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
