// Package cosmos implements the bridge adapter for CosmWasm chains (Terra2, Injective, XPLA, Sei).
//
// Chain state is read through the LCD REST API. Contract executions are signed and broadcast by an
// external Broadcaster supplied by the wallet integration.
package cosmos

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/ClipFinance/bridge-lib/chainmanager"
	"github.com/ClipFinance/bridge-lib/chains/restclient"
	berrors "github.com/ClipFinance/bridge-lib/common/errors"
	"github.com/ClipFinance/bridge-lib/common/types"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Coin is an amount of a native denom attached to an execution.
type Coin struct {
	Denom  string `json:"denom"`
	Amount string `json:"amount"`
}

// ExecuteMsg is one MsgExecuteContract of a broadcast transaction.
type ExecuteMsg struct {
	Contract string          `json:"contract"`
	Msg      json.RawMessage `json:"msg"`
	Funds    []Coin          `json:"funds,omitempty"`
}

// Broadcaster signs the messages into one transaction, broadcasts it and waits for inclusion.
type Broadcaster interface {
	// Broadcast returns the transaction hash and height, or an error carrying the raw log of a
	// failed execution.
	Broadcast(ctx context.Context, msgs []ExecuteMsg) (*types.ChainTx, error)
}

// Option configures optional adapter collaborators.
type Option func(*cosmos)

// WithBroadcaster enables transfers and redemptions.
func WithBroadcaster(b Broadcaster) Option {
	return func(c *cosmos) { c.broadcaster = b }
}

type cosmos struct {
	config      *types.ChainConfig
	logger      *logrus.Logger
	lcd         *restclient.Client
	broadcaster Broadcaster
	// addressPrefix is the bech32 human readable part of the chain, taken from the token bridge.
	addressPrefix string
}

// NewCosmosChain creates a new CosmWasm chain adapter.
//
// Parameters:
// - ctx: unused, kept for a uniform constructor signature.
// - config: the chain configuration, RpcUrl is the LCD endpoint and the bridge addresses are bech32.
// - logger: the logger for logging events.
// - opts: optional broadcaster.
//
// Returns:
// - types.ChainAdapter: the adapter. Without a broadcaster it can only parse and read.
// - error: ErrInvalidConfig for missing contracts or an invalid endpoint.
func NewCosmosChain(ctx context.Context, config *types.ChainConfig, logger *logrus.Logger, opts ...Option) (types.ChainAdapter, error) {
	chain, err := newCosmos(config, logger, opts...)
	if err != nil {
		return nil, err
	}
	return chain.build(), nil
}

func newCosmos(config *types.ChainConfig, logger *logrus.Logger, opts ...Option) (*cosmos, error) {
	prefix, ok := bech32Prefix(config.TokenBridgeAddress)
	if !ok || config.CoreBridgeAddress == "" {
		return nil, errors.Wrapf(berrors.ErrInvalidConfig, "chain %s needs bech32 core and token bridge contracts", config.Name)
	}
	lcd, err := restclient.New(config.Name, restclient.Config{BaseURL: config.RpcUrl}, logger)
	if err != nil {
		return nil, errors.Wrap(berrors.ErrInvalidConfig, err.Error())
	}

	chain := &cosmos{
		config:        config,
		logger:        logger,
		lcd:           lcd,
		addressPrefix: prefix,
	}
	for _, opt := range opts {
		opt(chain)
	}
	return chain, nil
}

func (c *cosmos) build() *chainmanager.Chain {
	builder := chainmanager.NewChainBuilder(c.config).
		WithMessageParser(c).
		WithRedemptionReader(c)
	if c.broadcaster != nil {
		builder.WithTransferSubmitter(c).WithRedeemer(c)
	}
	return builder.Build()
}

// isContract reports whether token is a cw20 contract address rather than a native denom.
func (c *cosmos) isContract(token string) bool {
	prefix, ok := bech32Prefix(token)
	return ok && prefix == c.addressPrefix
}

// bech32Prefix returns the human readable part of a bech32 address.
func bech32Prefix(addr string) (string, bool) {
	i := strings.LastIndexByte(addr, '1')
	if i < 1 || len(addr)-i-1 < 38 || strings.ContainsAny(addr, "/:") {
		return "", false
	}
	return addr[:i], true
}

func (c *cosmos) log() *logrus.Entry {
	return c.logger.WithField("chain", c.config.Name)
}
