// Package solana implements the bridge adapter for Solana on top of solana-go.
package solana

import (
	"context"
	"sync"
	"time"

	"github.com/ClipFinance/bridge-lib/chainmanager"
	berrors "github.com/ClipFinance/bridge-lib/common/errors"
	"github.com/ClipFinance/bridge-lib/common/types"
	"github.com/ClipFinance/bridge-lib/connectionmonitor"
	sol "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	// confirmPollInterval is the interval between signature status lookups.
	confirmPollInterval = time.Second
	// defaultComputeUnits is the compute unit limit requested for bridge transactions.
	defaultComputeUnits = 400_000
)

// solanaClient is the subset of *rpc.Client used by the adapter.
type solanaClient interface {
	GetSlot(ctx context.Context, commitment rpc.CommitmentType) (uint64, error)
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	SendTransactionWithOpts(ctx context.Context, transaction *sol.Transaction, opts rpc.TransactionOpts) (sol.Signature, error)
	GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, transactionSignatures ...sol.Signature) (*rpc.GetSignatureStatusesResult, error)
	GetTransaction(ctx context.Context, txSig sol.Signature, opts *rpc.GetTransactionOpts) (*rpc.GetTransactionResult, error)
	GetAccountInfo(ctx context.Context, account sol.PublicKey) (*rpc.GetAccountInfoResult, error)
	Close() error
}

// VAAPoster verifies the guardian signatures of a VAA on the core bridge and posts it, creating the
// PostedVAA account consumed by the redemption instructions.
type VAAPoster interface {
	PostVAA(ctx context.Context, attestation []byte) error
}

// Option configures optional adapter collaborators.
type Option func(*solana)

// WithVAAPoster sets the poster used when a VAA is not posted yet.
func WithVAAPoster(poster VAAPoster) Option {
	return func(s *solana) { s.poster = poster }
}

// WithMonitorOptions passes options to the connection monitor.
func WithMonitorOptions(opts ...connectionmonitor.Option) Option {
	return func(s *solana) { s.monitorOpts = append(s.monitorOpts, opts...) }
}

// solana represents the base Solana chain implementation
type solana struct {
	config       *types.ChainConfig
	logger       *logrus.Logger
	tokenBridge  sol.PublicKey
	coreBridge   sol.PublicKey
	poster       VAAPoster
	pollInterval time.Duration
	monitorOpts  []connectionmonitor.Option

	// Protected fields with their own mutexes
	clientMutex sync.RWMutex
	client      solanaClient

	signerMutex sync.RWMutex
	signer      *sol.PrivateKey

	monitorMutex sync.RWMutex
	monitor      connectionmonitor.ConnectionMonitor
}

// NewSolanaChain creates a new Solana chain adapter.
//
// Parameters:
// - ctx: the context for managing the connection monitor.
// - config: the chain configuration, PrivateKey is base58.
// - logger: the logger for logging events.
// - opts: optional VAA poster and monitor options.
//
// Returns:
// - types.ChainAdapter: a new Solana adapter. Without a private key it can only parse and read.
// - error: an error if any issue occurs during creation.
func NewSolanaChain(ctx context.Context, config *types.ChainConfig, logger *logrus.Logger, opts ...Option) (types.ChainAdapter, error) {
	chain, err := newSolana(config, rpc.New(config.RpcUrl), logger, opts...)
	if err != nil {
		return nil, err
	}

	if err := chain.initMonitor(ctx); err != nil {
		chain.Close()
		return nil, errors.Wrap(err, "failed to init connection monitor")
	}

	return chain.build(), nil
}

func newSolana(config *types.ChainConfig, client solanaClient, logger *logrus.Logger, opts ...Option) (*solana, error) {
	tokenBridge, err := sol.PublicKeyFromBase58(config.TokenBridgeAddress)
	if err != nil {
		return nil, errors.Wrapf(berrors.ErrInvalidConfig, "token bridge program: %v", err)
	}
	coreBridge, err := sol.PublicKeyFromBase58(config.CoreBridgeAddress)
	if err != nil {
		return nil, errors.Wrapf(berrors.ErrInvalidConfig, "core bridge program: %v", err)
	}

	chain := &solana{
		config:       config,
		logger:       logger,
		tokenBridge:  tokenBridge,
		coreBridge:   coreBridge,
		pollInterval: confirmPollInterval,
		client:       client,
	}
	for _, opt := range opts {
		opt(chain)
	}

	if config.PrivateKey != "" {
		key, err := sol.PrivateKeyFromBase58(config.PrivateKey)
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse private key")
		}
		chain.signerMutex.Lock()
		chain.signer = &key
		chain.signerMutex.Unlock()
	}
	return chain, nil
}

func (s *solana) build() *chainmanager.Chain {
	builder := chainmanager.NewChainBuilder(s.config).
		WithMessageParser(s).
		WithRedemptionReader(s).
		WithCloser(s.Close)

	if s.getSigner() != nil {
		builder.WithTransferSubmitter(s).WithRedeemer(s)
	}
	return builder.Build()
}

// Close should be called when chain is no longer needed
func (s *solana) Close() {
	s.monitorMutex.Lock()
	if s.monitor != nil {
		s.monitor.Stop()
		s.monitor = nil
	}
	s.monitorMutex.Unlock()

	s.clientMutex.Lock()
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			s.log().WithError(err).Warn("Failed to close client")
		}
		s.client = nil
	}
	s.clientMutex.Unlock()
}

func (s *solana) getClient() (solanaClient, error) {
	s.clientMutex.RLock()
	defer s.clientMutex.RUnlock()
	if s.client == nil {
		return nil, errors.New("client not initialized")
	}
	return s.client, nil
}

func (s *solana) getSigner() *sol.PrivateKey {
	s.signerMutex.RLock()
	defer s.signerMutex.RUnlock()
	return s.signer
}

func (s *solana) log() *logrus.Entry {
	return s.logger.WithField("chain", s.config.Name)
}
