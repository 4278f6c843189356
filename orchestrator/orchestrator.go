// Package orchestrator drives transfer records through submission, attestation and redemption.
//
// Each phase takes a record and returns an updated copy; the input is never mutated. Phases on the
// same record id never overlap: a concurrent call returns ErrBusy. When a phase moves a record into
// Failed, the failed record is returned together with the error.
package orchestrator

import (
	"context"
	"sync"
	"time"

	berrors "github.com/ClipFinance/bridge-lib/common/errors"
	"github.com/ClipFinance/bridge-lib/common/types"
	"github.com/ClipFinance/bridge-lib/guardian"
	"github.com/ClipFinance/bridge-lib/metrics"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	defaultMaxAttempts   = 60
	defaultParseRetries  = 5
	defaultParseInterval = 2 * time.Second
	defaultResumeWorkers = 4

	// ReasonVAAUnavailable is the failure reason when the guardians never signed the message.
	ReasonVAAUnavailable = "vaa_unavailable"
)

// Config configures the orchestrator.
//
// Fields:
// - MaxAttempts: NotFound responses tolerated by one AwaitAttestation call.
// - ParseRetries: additional ParseMessageID attempts after the first one fails.
// - ParseInterval: delay between ParseMessageID attempts.
// - ResumeWorkers: records resumed concurrently by ResumeAll.
type Config struct {
	MaxAttempts   int           `mapstructure:"max_attempts"`
	ParseRetries  int           `mapstructure:"parse_retries"`
	ParseInterval time.Duration `mapstructure:"parse_interval"`
	ResumeWorkers int           `mapstructure:"resume_workers"`
}

// AdapterLookup resolves the adapter of a chain, nil when none is registered.
type AdapterLookup interface {
	Get(chainID types.ChainID) types.ChainAdapter
}

// AttestationAwaiter polls for the attestation of a message.
type AttestationAwaiter interface {
	Await(ctx context.Context, id types.MessageID, maxAttempts int) (*guardian.PollResult, error)
}

// RedemptionChecker performs the pre-redemption idempotency check.
type RedemptionChecker interface {
	EnsureNotAlreadyRedeemed(ctx context.Context, reader types.RedemptionReader, attestation []byte) (bool, error)
}

// Option configures optional orchestrator collaborators.
type Option func(*Orchestrator)

// WithStore persists every transition.
func WithStore(store types.TransferStore) Option {
	return func(o *Orchestrator) { o.store = store }
}

// WithMetrics records transitions and phase outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// Orchestrator is the only writer of TransferRecord.State.
type Orchestrator struct {
	config   Config
	adapters AdapterLookup
	poller   AttestationAwaiter
	checker  RedemptionChecker
	store    types.TransferStore
	logger   *logrus.Logger
	metrics  *metrics.Metrics
	now      func() time.Time

	mu   sync.Mutex
	busy map[string]struct{}
}

// New creates an orchestrator.
//
// Parameters:
// - config: retry budgets, zero values use defaults.
// - adapters: the chain id to adapter table.
// - poller: the attestation poller.
// - checker: the redemption checker.
// - logger: the logger for phase transitions.
// - opts: optional store and metrics.
//
// Returns:
// - *Orchestrator: the orchestrator.
func New(config Config, adapters AdapterLookup, poller AttestationAwaiter, checker RedemptionChecker, logger *logrus.Logger, opts ...Option) *Orchestrator {
	if config.MaxAttempts == 0 {
		config.MaxAttempts = defaultMaxAttempts
	}
	if config.ParseRetries == 0 {
		config.ParseRetries = defaultParseRetries
	}
	if config.ParseInterval == 0 {
		config.ParseInterval = defaultParseInterval
	}
	if config.ResumeWorkers == 0 {
		config.ResumeWorkers = defaultResumeWorkers
	}

	o := &Orchestrator{
		config:   config,
		adapters: adapters,
		poller:   poller,
		checker:  checker,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		busy:     make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// acquire marks a record id busy until release is called.
func (o *Orchestrator) acquire(id string) (func(), error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.busy[id]; ok {
		return nil, errors.Wrapf(berrors.ErrBusy, "transfer %s", id)
	}
	o.busy[id] = struct{}{}
	return func() {
		o.mu.Lock()
		delete(o.busy, id)
		o.mu.Unlock()
	}, nil
}

// begin validates record, marks its id busy and returns a working copy of its latest version.
func (o *Orchestrator) begin(ctx context.Context, record *types.TransferRecord) (*types.TransferRecord, func(), error) {
	if err := validateRecord(record); err != nil {
		return nil, nil, err
	}
	release, err := o.acquire(record.ID)
	if err != nil {
		return nil, nil, err
	}
	out, err := o.current(ctx, record)
	if err != nil {
		release()
		return nil, nil, err
	}
	return out, release, nil
}

// current returns the persisted version of r when it moved on since r was read, a copy of r
// otherwise. The stored record wins because only the orchestrator writes it.
func (o *Orchestrator) current(ctx context.Context, r *types.TransferRecord) (*types.TransferRecord, error) {
	if o.store == nil {
		return r.Clone(), nil
	}
	stored, err := o.store.Get(ctx, r.ID)
	if errors.Is(err, berrors.ErrTransferNotFound) {
		return r.Clone(), nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load transfer %s", r.ID)
	}
	if stored.State != r.State || stored.UpdatedAt.After(r.UpdatedAt) {
		o.log(stored).WithField("given_state", r.State.String()).Debug("Using persisted transfer")
		return stored, nil
	}
	return r.Clone(), nil
}

func (o *Orchestrator) adapter(chainID types.ChainID) (types.ChainAdapter, error) {
	a := o.adapters.Get(chainID)
	if a == nil {
		return nil, errors.Wrapf(berrors.ErrChainNotFound, "chain %s", chainID)
	}
	return a, nil
}

func (o *Orchestrator) transition(r *types.TransferRecord, next types.TransferState) error {
	if !r.State.CanTransitionTo(next) {
		return errors.Wrapf(berrors.ErrInvalidState, "%s -> %s", r.State, next)
	}
	prev := r.State
	r.State = next
	r.UpdatedAt = o.now()

	o.metrics.Transition(prev.String(), next.String())
	o.logger.WithFields(logrus.Fields{
		"transfer_id": r.ID,
		"from":        prev.String(),
		"state":       next.String(),
	}).Info("Transfer state changed")
	return nil
}

func (o *Orchestrator) fail(r *types.TransferRecord, reason string) error {
	if err := o.transition(r, types.StateFailed); err != nil {
		return err
	}
	r.FailureReason = reason
	r.PendingReason = ""
	return nil
}

// save persists r when a store is configured. It outlives caller cancellation so that state
// reached before cancellation is not lost.
func (o *Orchestrator) save(ctx context.Context, r *types.TransferRecord) error {
	if o.store == nil {
		return nil
	}
	if err := o.store.Save(context.WithoutCancel(ctx), r); err != nil {
		return errors.Wrapf(err, "failed to persist transfer %s", r.ID)
	}
	return nil
}

func validateRecord(r *types.TransferRecord) error {
	if r == nil {
		return errors.Wrap(berrors.ErrInvalidTransfer, "nil record")
	}
	if r.ID == "" {
		return errors.Wrap(berrors.ErrInvalidTransfer, "record has no id")
	}
	if !r.State.IsValid() {
		return errors.Wrapf(berrors.ErrInvalidState, "unknown state %q", r.State)
	}
	if r.SourceChain == r.TargetChain {
		return errors.Wrapf(berrors.ErrSameChain, "chain %s", r.SourceChain)
	}
	return nil
}

func requireState(r *types.TransferRecord, allowed ...types.TransferState) error {
	for _, s := range allowed {
		if r.State == s {
			return nil
		}
	}
	return errors.Wrapf(berrors.ErrInvalidState, "transfer %s is %s, want one of %v", r.ID, r.State, allowed)
}

func (o *Orchestrator) log(r *types.TransferRecord) *logrus.Entry {
	fields := logrus.Fields{
		"transfer_id": r.ID,
		"state":       r.State.String(),
	}
	if r.MessageID != nil {
		fields["message_id"] = r.MessageID.String()
	}
	return o.logger.WithFields(fields)
}
