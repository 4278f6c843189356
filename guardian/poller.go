package guardian

import (
	"context"
	"strconv"
	"time"

	berrors "github.com/ClipFinance/bridge-lib/common/errors"
	"github.com/ClipFinance/bridge-lib/common/types"
	"github.com/ClipFinance/bridge-lib/metrics"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	defaultPollInterval        = 5 * time.Second
	defaultTransportBackoff    = 500 * time.Millisecond
	defaultMaxTransportBackoff = 30 * time.Second
)

// PollState is the state of one Await call.
type PollState int

const (
	PollIdle PollState = iota
	PollPolling
	PollFound
	PollPending
	PollExhausted
	PollCancelled
	PollRejected
)

func (s PollState) String() string {
	switch s {
	case PollIdle:
		return "idle"
	case PollPolling:
		return "polling"
	case PollFound:
		return "found"
	case PollPending:
		return "pending"
	case PollExhausted:
		return "exhausted"
	case PollCancelled:
		return "cancelled"
	case PollRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// PollResult is the terminal outcome of Await. Attestation is set only in PollFound,
// PendingReason only in PollPending.
type PollResult struct {
	State           PollState
	Attestation     []byte
	PendingReason   string
	Attempts        int
	TransportErrors int
}

// PollerConfig configures the attestation poller.
//
// Fields:
// - Interval: fixed delay between NotFound responses.
// - MaxTransportErrors: transport error budget, maxAttempts of the call when zero.
// - TransportBackoff: first delay after a transport error, doubled per further transport error.
// - MaxTransportBackoff: cap of the transport delay.
type PollerConfig struct {
	Interval            time.Duration `mapstructure:"interval"`
	MaxTransportErrors  int           `mapstructure:"max_transport_errors"`
	TransportBackoff    time.Duration `mapstructure:"transport_backoff"`
	MaxTransportBackoff time.Duration `mapstructure:"max_transport_backoff"`
}

// Poller repeats guardian queries until a message is signed or held by the governor.
type Poller struct {
	querier types.GuardianQuerier
	config  PollerConfig
	logger  *logrus.Logger
	metrics *metrics.Metrics
}

// NewPoller creates a poller over a guardian querier.
func NewPoller(querier types.GuardianQuerier, config PollerConfig, logger *logrus.Logger, m *metrics.Metrics) *Poller {
	if config.Interval == 0 {
		config.Interval = defaultPollInterval
	}
	if config.TransportBackoff == 0 {
		config.TransportBackoff = defaultTransportBackoff
	}
	if config.MaxTransportBackoff == 0 {
		config.MaxTransportBackoff = defaultMaxTransportBackoff
	}
	return &Poller{querier: querier, config: config, logger: logger, metrics: m}
}

// Await polls the guardians for the attestation of a message.
//
// NotFound responses are retried on a fixed interval and consume maxAttempts. Transport errors
// consume a separate budget and back off with a growing delay. Pending terminates the call
// immediately; the caller may poll again later. A rejected request ends the call at once.
//
// Parameters:
// - ctx: the context for managing polling. Cancellation stops before the next query.
// - id: the message to await.
// - maxAttempts: the number of NotFound responses tolerated, at least 1.
//
// Returns:
// - *PollResult: the terminal state and, for PollFound, the attestation bytes.
// - error: nil for PollFound and PollPending, ErrAttestationExhausted for PollExhausted,
//   ctx.Err() for PollCancelled, the *RequestError for PollRejected.
func (p *Poller) Await(ctx context.Context, id types.MessageID, maxAttempts int) (*PollResult, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	maxTransport := p.config.MaxTransportErrors
	if maxTransport < 1 {
		maxTransport = maxAttempts
	}

	log := p.logger.WithField("message_id", id.String())
	chain := strconv.Itoa(int(id.EmitterChain))
	result := &PollResult{State: PollIdle}
	notFound := 0

	for {
		if err := ctx.Err(); err != nil {
			return p.cancelled(result, err)
		}
		result.State = PollPolling
		result.Attempts++

		res, err := p.querier.Query(ctx, id)
		if ctx.Err() != nil {
			return p.cancelled(result, ctx.Err())
		}

		var delay time.Duration
		switch {
		case IsRequestError(err):
			p.metrics.PollAttempt(chain, "rejected")
			log.WithError(err).Error("Guardian rejected the query")
			result.State = PollRejected
			return result, err

		case err != nil:
			result.TransportErrors++
			p.metrics.PollAttempt(chain, "transport_error")
			log.WithError(err).WithField("attempt", result.Attempts).Warn("Guardian query failed")
			if result.TransportErrors >= maxTransport {
				result.State = PollExhausted
				return result, errors.Wrapf(berrors.ErrAttestationExhausted, "%d transport errors, last: %v", result.TransportErrors, err)
			}
			delay = p.transportDelay(result.TransportErrors)

		case res.Kind == types.GuardianFound:
			p.metrics.PollAttempt(chain, "found")
			result.State = PollFound
			result.Attestation = res.Attestation
			log.WithField("attempt", result.Attempts).Info("Attestation found")
			return result, nil

		case res.Kind == types.GuardianPending:
			p.metrics.PollAttempt(chain, "pending")
			result.State = PollPending
			result.PendingReason = res.Reason
			log.WithField("reason", res.Reason).Info("Attestation pending")
			return result, nil

		default:
			notFound++
			p.metrics.PollAttempt(chain, "not_found")
			log.WithField("attempt", result.Attempts).Debug("Attestation not signed yet")
			if notFound >= maxAttempts {
				result.State = PollExhausted
				return result, errors.Wrapf(berrors.ErrAttestationExhausted, "%d attempts", notFound)
			}
			delay = p.config.Interval
		}

		if err := wait(ctx, delay); err != nil {
			return p.cancelled(result, err)
		}
	}
}

func (p *Poller) cancelled(result *PollResult, err error) (*PollResult, error) {
	result.State = PollCancelled
	result.Attestation = nil
	return result, err
}

func (p *Poller) transportDelay(n int) time.Duration {
	d := p.config.TransportBackoff
	for i := 1; i < n; i++ {
		d *= 2
		if d >= p.config.MaxTransportBackoff {
			return p.config.MaxTransportBackoff
		}
	}
	return d
}

func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
