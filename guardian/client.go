// Package guardian queries the guardian network for signed attestations and polls it until a
// message is signed, held by the governor or the attempt budget runs out.
package guardian

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ClipFinance/bridge-lib/common/types"
	"github.com/ClipFinance/bridge-lib/metrics"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout           = 10 * time.Second
	defaultRequestsPerSecond = 10
	maxBodyBytes             = 1 << 20

	// PendingReasonGovernor is the pending reason reported for governor-enqueued messages.
	PendingReasonGovernor = "governor"
)

// Config represents guardian client configuration.
//
// Fields:
// - Hosts: guardian REST endpoints, rotated round-robin between queries.
// - Timeout: per-request timeout.
// - CheckGovernor: ask the governor whether a not-yet-signed message is enqueued.
// - RequestsPerSecond: client-side request budget shared by all hosts.
type Config struct {
	Hosts             []string      `mapstructure:"hosts"`
	Timeout           time.Duration `mapstructure:"timeout"`
	CheckGovernor     bool          `mapstructure:"check_governor"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
}

// errCallerGone marks a breaker call abandoned by its caller. It is not counted against the host.
var errCallerGone = errors.New("caller gave up")

// Client performs single guardian lookups. It never retries internally; the poller owns retries.
type Client struct {
	config     Config
	httpClient *http.Client
	breakers   map[string]*gobreaker.CircuitBreaker
	limiter    *rate.Limiter
	next       atomic.Uint64
	logger     *logrus.Logger
	metrics    *metrics.Metrics
}

var _ types.GuardianQuerier = (*Client)(nil)

type signedVAAResponse struct {
	VaaBytes string `json:"vaaBytes"`
	Pending  bool   `json:"pending"`
	Reason   string `json:"reason"`
}

type enqueuedResponse struct {
	IsEnqueued bool `json:"isEnqueued"`
}

// NewClient creates a guardian REST client.
//
// Parameters:
// - config: the client configuration, at least one host is required.
// - logger: the logger used for breaker state changes and governor checks.
// - m: optional metrics, may be nil.
//
// Returns:
// - *Client: the client.
// - error: an error if no host is configured.
func NewClient(config Config, logger *logrus.Logger, m *metrics.Metrics) (*Client, error) {
	if len(config.Hosts) == 0 {
		return nil, errors.New("at least one guardian host is required")
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	if config.RequestsPerSecond == 0 {
		config.RequestsPerSecond = defaultRequestsPerSecond
	}
	config.Hosts = append([]string(nil), config.Hosts...)

	c := &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		breakers:   make(map[string]*gobreaker.CircuitBreaker, len(config.Hosts)),
		limiter:    rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1),
		logger:     logger,
		metrics:    m,
	}
	for i, host := range config.Hosts {
		host = strings.TrimRight(host, "/")
		c.config.Hosts[i] = host
		c.breakers[host] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "guardian:" + host,
			MaxRequests: 5,
			Interval:    10 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures > 5
			},
			IsSuccessful: hostHealthy,
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				logger.WithFields(logrus.Fields{
					"name": name,
					"from": from.String(),
					"to":   to.String(),
				}).Info("Guardian circuit breaker state changed")
			},
		})
	}
	return c, nil
}

// Query performs one lookup of the signed attestation of a message against the next host.
//
// Parameters:
// - ctx: the context for managing the request. A response arriving after cancellation is discarded.
// - id: the emitter chain, emitter address and sequence of the message.
//
// Returns:
// - *types.GuardianResult: NotFound, Found with the attestation bytes, or Pending with a reason.
// - error: ctx.Err() after cancellation, a *RequestError for a 4xx other than 404 and 429, a
//   *TransportError for any transport failure.
func (c *Client) Query(ctx context.Context, id types.MessageID) (*types.GuardianResult, error) {
	host := c.nextHost()

	if err := c.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransportError{Host: host, Err: errors.Wrap(err, "rate limiter")}
	}

	start := time.Now()
	out, err := c.breakers[host].Execute(func() (interface{}, error) {
		res, err := c.fetchSignedVAA(ctx, host, id)
		if err != nil && ctx.Err() != nil {
			return nil, errCallerGone
		}
		return res, err
	})
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err != nil {
		var re *RequestError
		if errors.As(err, &re) {
			c.metrics.GuardianQuery(host, "rejected", time.Since(start).Seconds())
			return nil, re
		}
		c.metrics.GuardianQuery(host, "transport_error", time.Since(start).Seconds())
		var te *TransportError
		if errors.As(err, &te) {
			return nil, te
		}
		return nil, &TransportError{Host: host, Err: err}
	}

	result := out.(*types.GuardianResult)
	if result.Kind == types.GuardianNotFound && c.config.CheckGovernor {
		result = c.checkGovernor(ctx, host, id)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	c.metrics.GuardianQuery(host, result.Kind.String(), time.Since(start).Seconds())
	return result, nil
}

// hostHealthy decides which Execute outcomes count as successes for the host breaker. Rejected
// requests and calls abandoned by their caller do not reflect on the host.
func hostHealthy(err error) bool {
	return err == nil || errors.Is(err, errCallerGone) || IsRequestError(err)
}

func (c *Client) nextHost() string {
	n := c.next.Add(1) - 1
	return c.config.Hosts[n%uint64(len(c.config.Hosts))]
}

func (c *Client) fetchSignedVAA(ctx context.Context, host string, id types.MessageID) (*types.GuardianResult, error) {
	endpoint := fmt.Sprintf("%s/v1/signed_vaa/%d/%s/%s", host, id.EmitterChain, types.NormalizeEmitterAddress(id.EmitterAddress), id.Sequence)

	status, body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, &TransportError{Host: host, Err: err}
	}

	switch {
	case status == http.StatusNotFound:
		return &types.GuardianResult{Kind: types.GuardianNotFound}, nil
	case status >= 400 && status < 500 && status != http.StatusTooManyRequests:
		return nil, &RequestError{Host: host, StatusCode: status, Body: truncate(body)}
	case status != http.StatusOK:
		return nil, &TransportError{Host: host, StatusCode: status, Err: errors.Errorf("unexpected response: %s", truncate(body))}
	}

	var resp signedVAAResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &TransportError{Host: host, StatusCode: status, Err: errors.Wrap(err, "failed to decode response")}
	}
	if resp.Pending {
		reason := resp.Reason
		if reason == "" {
			reason = PendingReasonGovernor
		}
		return &types.GuardianResult{Kind: types.GuardianPending, Reason: reason}, nil
	}
	if resp.VaaBytes == "" {
		return nil, &TransportError{Host: host, StatusCode: status, Err: errors.New("response carries no vaaBytes")}
	}
	raw, err := base64.StdEncoding.DecodeString(resp.VaaBytes)
	if err != nil {
		return nil, &TransportError{Host: host, StatusCode: status, Err: errors.Wrap(err, "failed to decode vaaBytes")}
	}
	return &types.GuardianResult{Kind: types.GuardianFound, Attestation: raw}, nil
}

// checkGovernor turns a NotFound into Pending when the governor holds the message. A failing check
// keeps the NotFound: the signed_vaa lookup itself succeeded.
func (c *Client) checkGovernor(ctx context.Context, host string, id types.MessageID) *types.GuardianResult {
	notFound := &types.GuardianResult{Kind: types.GuardianNotFound}
	endpoint := fmt.Sprintf("%s/v1/governor/is_vaa_enqueued/%d/%s/%s", host, id.EmitterChain, types.NormalizeEmitterAddress(id.EmitterAddress), id.Sequence)

	log := c.logger.WithFields(logrus.Fields{"host": host, "message_id": id.String()})
	status, body, err := c.get(ctx, endpoint)
	if err != nil {
		log.WithError(err).Warn("Governor check failed")
		return notFound
	}
	if status != http.StatusOK {
		log.WithField("status", status).Debug("Governor check returned non-200")
		return notFound
	}

	var resp enqueuedResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		log.WithError(err).Warn("Failed to decode governor response")
		return notFound
	}
	if resp.IsEnqueued {
		return &types.GuardianResult{Kind: types.GuardianPending, Reason: PendingReasonGovernor}
	}
	return notFound
}

func (c *Client) get(ctx context.Context, endpoint string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, nil, errors.Wrap(err, "read body")
	}
	return resp.StatusCode, body, nil
}

func truncate(body []byte) string {
	const limit = 256
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
