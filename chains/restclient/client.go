// Package restclient is the JSON over HTTP client shared by the adapters that read chain state
// through REST or JSON-RPC endpoints.
package restclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout           = 15 * time.Second
	defaultRequestsPerSecond = 20
	maxBodyBytes             = 4 << 20
)

// Config configures a client.
//
// Fields:
// - BaseURL: the endpoint, paths are appended to it.
// - Timeout: per-request timeout.
// - RequestsPerSecond: client-side request budget.
type Config struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
}

// Client performs JSON requests against one endpoint. Transport failures and 5xx responses trip
// the breaker, other statuses are returned as *StatusError.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	limiter    *rate.Limiter
	logger     *logrus.Logger
	rpcID      atomic.Uint64
}

// StatusError is a response with an unexpected status code.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// RPCError is a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
	Cause   *struct {
		Name string `json:"name"`
	} `json:"cause,omitempty"`
}

func (e *RPCError) Error() string {
	if e.Cause != nil && e.Cause.Name != "" {
		return fmt.Sprintf("rpc error %d (%s): %s", e.Code, e.Cause.Name, e.Message)
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// IsNotFound reports whether err is a 404 response.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

// New creates a client for an endpoint.
//
// Parameters:
// - name: the breaker name, usually the chain name.
// - config: the endpoint configuration.
// - logger: the logger for breaker state changes.
//
// Returns:
// - *Client: the client.
// - error: an error if the base URL is invalid.
func New(name string, config Config, logger *logrus.Logger) (*Client, error) {
	if _, err := url.ParseRequestURI(config.BaseURL); err != nil {
		return nil, errors.Wrapf(err, "invalid base url %q", config.BaseURL)
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	if config.RequestsPerSecond == 0 {
		config.RequestsPerSecond = defaultRequestsPerSecond
	}

	c := &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		httpClient: &http.Client{Timeout: config.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1),
		logger:     logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		IsSuccessful: func(err error) bool {
			var se *StatusError
			if errors.As(err, &se) {
				return se.StatusCode < http.StatusInternalServerError
			}
			return err == nil
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"name": name,
				"from": from.String(),
				"to":   to.String(),
			}).Info("Endpoint circuit breaker state changed")
		},
	})
	return c, nil
}

// Get decodes the JSON response of GET path?query into out.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	return c.do(ctx, http.MethodGet, endpoint, nil, out)
}

// Post sends body as JSON to path and decodes the JSON response into out.
func (c *Client) Post(ctx context.Context, path string, body, out interface{}) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "failed to encode request")
	}
	return c.do(ctx, http.MethodPost, c.baseURL+path, raw, out)
}

type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      uint64      `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// Call performs a JSON-RPC 2.0 call against the base URL. params is sent as is, a slice for
// positional and a map or struct for named parameters.
//
// Returns:
// - error: *RPCError when the node answered with an error object.
func (c *Client) Call(ctx context.Context, method string, params, out interface{}) error {
	raw, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: c.rpcID.Add(1), Method: method, Params: params})
	if err != nil {
		return errors.Wrap(err, "failed to encode request")
	}

	var resp rpcResponse
	if err := c.do(ctx, http.MethodPost, c.baseURL, raw, &resp); err != nil {
		return err
	}
	if resp.Error != nil {
		return resp.Error
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return errors.Wrapf(err, "failed to decode %s result", method)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	_, err := c.breaker.Execute(func() (interface{}, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create request")
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, errors.Wrapf(err, "%s %s", method, endpoint)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return nil, errors.Wrap(err, "failed to read response")
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &StatusError{StatusCode: resp.StatusCode, Body: truncate(data)}
		}
		if out != nil {
			if err := json.Unmarshal(data, out); err != nil {
				return nil, errors.Wrap(err, "failed to decode response")
			}
		}
		return nil, nil
	})
	return err
}

func truncate(b []byte) string {
	const limit = 256
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
