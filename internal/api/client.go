package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/2beens/blogpanel/internal/telemetry/metrics"
	"github.com/2beens/blogpanel/internal/telemetry/tracing"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// error bodies bigger than this are not worth parsing for a message
const maxErrorBodyBytes = 1 << 20

type sessionStore interface {
	Token(ctx context.Context) (string, bool, error)
	Clear(ctx context.Context) error
}

type Request struct {
	Method string
	Path   string
	// Body is JSON encoded when not nil
	Body any
	// Header values override the defaults; an empty value removes the header
	Header http.Header
}

type Client struct {
	baseURL        string
	httpClient     *http.Client
	session        sessionStore
	navigator      Navigator
	metricsManager *metrics.Manager
	// ability to inject request id generator (for unit testing)
	RequestIDFunc func() string
}

func NewClient(
	baseURL string,
	httpClient *http.Client,
	session sessionStore,
	navigator Navigator,
	metricsManager *metrics.Manager,
) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:        strings.TrimSuffix(baseURL, "/"),
		httpClient:     httpClient,
		session:        session,
		navigator:      navigator,
		metricsManager: metricsManager,
		RequestIDFunc:  uuid.NewString,
	}
}

// Do runs the full request pipeline: bearer token from the session, the call,
// session invalidation on 401, error normalization, and decoding of a 2xx body
// into out (skipped when out is nil or the body is empty).
func (c *Client) Do(ctx context.Context, req Request, out any) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "apiClient.do")
	span.SetAttributes(
		attribute.String("api.method", req.Method),
		attribute.String("api.path", req.Path),
	)
	defer span.End()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "ok")
		}
	}()

	token, _, err := c.session.Token(ctx)
	if err != nil {
		return &SessionError{Err: err}
	}

	resp, err := c.Send(ctx, req, token)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		// body deliberately not read
		_ = resp.Body.Close()
		c.invalidateSession(ctx, req)
		return &AuthError{Message: authExpiredMessage}
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newHttpError(resp)
	}

	return decodeBody(resp.Body, out)
}

// Send builds and issues the request without any session handling; the bearer
// header is added iff token is not empty. The caller must close the response body.
func (c *Client) Send(ctx context.Context, req Request, token string) (*http.Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if req.Body != nil {
		bodyBytes, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		body = bytes.NewReader(bodyBytes)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+req.Path, body)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", c.RequestIDFunc())
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	for key, values := range req.Header {
		httpReq.Header.Del(key)
		for _, v := range values {
			if v != "" {
				httpReq.Header.Add(key, v)
			}
		}
	}

	log.Tracef("api request [%s] %s", method, req.Path)

	begin := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if c.metricsManager != nil {
		c.metricsManager.HistogramAPIRequestDuration.WithLabelValues(method).Observe(time.Since(begin).Seconds())
	}
	if err != nil {
		c.countRequest(method, "error")
		return nil, &NetworkError{Err: err}
	}
	c.countRequest(method, fmt.Sprintf("%dxx", resp.StatusCode/100))

	return resp, nil
}

func (c *Client) invalidateSession(ctx context.Context, req Request) {
	traceID := trace.SpanFromContext(ctx).SpanContext().TraceID().String()
	log.WithField("trace_id", traceID).Warnf("api [%s] %s: 401, clearing session", req.Method, req.Path)

	if c.metricsManager != nil {
		c.metricsManager.CounterSessionInvalidations.Inc()
	}

	// must complete even if the caller gives up on the request
	if err := c.session.Clear(context.WithoutCancel(ctx)); err != nil {
		log.Errorf("api client, clear session after 401: %s", err)
	}

	if c.navigator != nil {
		c.navigator.ToLogin(ctx)
	}
}

func (c *Client) countRequest(method, status string) {
	if c.metricsManager == nil {
		return
	}
	c.metricsManager.CounterAPIRequests.WithLabelValues(method, status).Inc()
}

func newHttpError(resp *http.Response) *HttpError {
	httpErr := &HttpError{
		Status:  resp.StatusCode,
		Message: fmt.Sprintf("API Error: %d", resp.StatusCode),
	}

	respBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	if err != nil {
		log.Debugf("api error response, read body: %s", err)
		return httpErr
	}

	var errBody struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(respBytes, &errBody); err != nil {
		log.Debugf("api error response, body not json: %s", err)
		return httpErr
	}
	if errBody.Message != "" {
		httpErr.Message = errBody.Message
	}

	return httpErr
}

func decodeBody(body io.Reader, out any) error {
	if out == nil {
		return nil
	}

	respBytes, err := io.ReadAll(body)
	if err != nil {
		return &NetworkError{Err: fmt.Errorf("read response body: %w", err)}
	}
	if len(bytes.TrimSpace(respBytes)) == 0 {
		return nil
	}

	if err := json.Unmarshal(respBytes, out); err != nil {
		return &SchemaError{Err: err}
	}

	return nil
}
