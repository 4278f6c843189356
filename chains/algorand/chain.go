// Package algorand implements the bridge adapter for Algorand.
//
// Transactions and application local state are read through the indexer REST API. The transaction
// groups of transfers and redemptions are built, signed and sent by an external Executor.
package algorand

import (
	"context"
	"crypto/sha512"
	"encoding/binary"
	"encoding/hex"
	"strconv"

	"github.com/ClipFinance/bridge-lib/chainmanager"
	"github.com/ClipFinance/bridge-lib/chains/restclient"
	berrors "github.com/ClipFinance/bridge-lib/common/errors"
	"github.com/ClipFinance/bridge-lib/common/types"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// TransferRequest is a token bridge transfer to be sent by the Executor.
type TransferRequest struct {
	TokenBridgeAppID uint64
	AssetID          uint64 // 0 for ALGO
	Amount           uint64
	Fee              uint64
	TargetChain      types.ChainID
	Recipient        [32]byte
	Nonce            uint32
}

// Executor builds, signs and sends transaction groups and waits for confirmation.
type Executor interface {
	Transfer(ctx context.Context, req *TransferRequest) (*types.ChainTx, error)
	// Redeem sends the signature verification and complete transfer group of a VAA.
	Redeem(ctx context.Context, tokenBridgeAppID uint64, attestation []byte) (*types.ChainTx, error)
}

// StorageResolver resolves the logic signature account holding the redemption bitmap of one bucket
// of sequences of an emitter.
type StorageResolver interface {
	StorageAccount(ctx context.Context, emitterChain types.ChainID, emitter [32]byte, bucket uint64) (string, error)
}

// Option configures optional adapter collaborators.
type Option func(*algorand)

// WithExecutor enables transfers and redemptions.
func WithExecutor(e Executor) Option {
	return func(a *algorand) { a.executor = e }
}

// WithStorageResolver enables IsRedeemed.
func WithStorageResolver(r StorageResolver) Option {
	return func(a *algorand) { a.storage = r }
}

type algorand struct {
	config      *types.ChainConfig
	logger      *logrus.Logger
	indexer     *restclient.Client
	executor    Executor
	storage     StorageResolver
	coreApp     uint64
	tokenBridge uint64
}

// NewAlgorandChain creates a new Algorand adapter.
//
// Parameters:
// - ctx: unused, kept for a uniform constructor signature.
// - config: the chain configuration, RpcUrl is the indexer and the bridge addresses are app ids.
// - logger: the logger for logging events.
// - opts: optional executor and storage resolver.
//
// Returns:
// - types.ChainAdapter: the adapter. Without an executor it can only parse, without a storage
//   resolver it cannot answer IsRedeemed.
// - error: ErrInvalidConfig for invalid app ids or endpoint.
func NewAlgorandChain(ctx context.Context, config *types.ChainConfig, logger *logrus.Logger, opts ...Option) (types.ChainAdapter, error) {
	chain, err := newAlgorand(config, logger, opts...)
	if err != nil {
		return nil, err
	}
	return chain.build(), nil
}

func newAlgorand(config *types.ChainConfig, logger *logrus.Logger, opts ...Option) (*algorand, error) {
	coreApp, err := strconv.ParseUint(config.CoreBridgeAddress, 10, 64)
	if err != nil || coreApp == 0 {
		return nil, errors.Wrapf(berrors.ErrInvalidConfig, "core bridge app id %q", config.CoreBridgeAddress)
	}
	tokenBridge, err := strconv.ParseUint(config.TokenBridgeAddress, 10, 64)
	if err != nil || tokenBridge == 0 {
		return nil, errors.Wrapf(berrors.ErrInvalidConfig, "token bridge app id %q", config.TokenBridgeAddress)
	}
	indexer, err := restclient.New(config.Name, restclient.Config{BaseURL: config.RpcUrl}, logger)
	if err != nil {
		return nil, errors.Wrap(berrors.ErrInvalidConfig, err.Error())
	}

	chain := &algorand{
		config:      config,
		logger:      logger,
		indexer:     indexer,
		coreApp:     coreApp,
		tokenBridge: tokenBridge,
	}
	for _, opt := range opts {
		opt(chain)
	}
	return chain, nil
}

func (a *algorand) build() *chainmanager.Chain {
	builder := chainmanager.NewChainBuilder(a.config).WithMessageParser(a)
	if a.storage != nil {
		builder.WithRedemptionReader(a)
	}
	if a.executor != nil {
		builder.WithTransferSubmitter(a).WithRedeemer(a)
	}
	return builder.Build()
}

// appAddress returns the account of an application, sha512_256("appID" | id).
func appAddress(appID uint64) [32]byte {
	buf := make([]byte, 0, 5+8)
	buf = append(buf, "appID"...)
	buf = binary.BigEndian.AppendUint64(buf, appID)
	return sha512.Sum512_256(buf)
}

// emitter is the token bridge application account, the emitter of its messages.
func (a *algorand) emitter() string {
	addr := appAddress(a.tokenBridge)
	return hex.EncodeToString(addr[:])
}

func (a *algorand) log() *logrus.Entry {
	return a.logger.WithField("chain", a.config.Name)
}
