// Package move implements the bridge adapter for the Move chains Aptos and Sui.
//
// Aptos is read through the fullnode REST API, Sui through the sui-go JSON-RPC client. Entry function calls are
// signed and submitted by an external Submitter supplied by the wallet integration.
package move

import (
	"context"

	"github.com/ClipFinance/bridge-lib/chainmanager"
	"github.com/ClipFinance/bridge-lib/chains/restclient"
	berrors "github.com/ClipFinance/bridge-lib/common/errors"
	"github.com/ClipFinance/bridge-lib/common/types"
	"github.com/pattonkan/sui-go/suiclient"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// EntryFunctionCall is a Move call to be signed by the wallet.
//
// Fields:
// - Function: the fully qualified function, "<package>::<module>::<function>".
// - TypeArguments: the coin type arguments.
// - Arguments: the arguments in the JSON form the node expects (u64 as decimal strings, bytes as 0x hex).
type EntryFunctionCall struct {
	Function      string        `json:"function"`
	TypeArguments []string      `json:"type_arguments"`
	Arguments     []interface{} `json:"arguments"`
}

// Submitter signs and submits a call and waits for its execution.
type Submitter interface {
	Submit(ctx context.Context, call *EntryFunctionCall) (*types.ChainTx, error)
}

// CoinTypeResolver resolves the coin type of a bridged asset where it cannot be derived locally.
type CoinTypeResolver interface {
	CoinType(ctx context.Context, tokenChain types.ChainID, tokenAddress [32]byte) (string, error)
}

// Option configures optional adapter collaborators.
type Option func(*move)

// WithSubmitter enables transfers and redemptions.
func WithSubmitter(s Submitter) Option {
	return func(m *move) { m.submitter = s }
}

// WithCoinTypeResolver sets the resolver used for Aptos native assets and all Sui assets.
func WithCoinTypeResolver(r CoinTypeResolver) Option {
	return func(m *move) { m.resolver = r }
}

type move struct {
	config    *types.ChainConfig
	logger    *logrus.Logger
	node      *restclient.Client
	sui       suiReader
	submitter Submitter
	resolver  CoinTypeResolver
}

// NewMoveChain creates a new Aptos or Sui adapter, selected by the chain id.
//
// Parameters:
// - ctx: unused, kept for a uniform constructor signature.
// - config: the chain configuration, the bridge addresses are the Move package addresses.
// - logger: the logger for logging events.
// - opts: optional submitter and coin type resolver.
//
// Returns:
// - types.ChainAdapter: the adapter. Without a submitter it can only parse and read.
// - error: ErrInvalidConfig for chains outside the Move family or missing packages.
func NewMoveChain(ctx context.Context, config *types.ChainConfig, logger *logrus.Logger, opts ...Option) (types.ChainAdapter, error) {
	chain, err := newMove(config, logger, opts...)
	if err != nil {
		return nil, err
	}
	return chain.build(), nil
}

func newMove(config *types.ChainConfig, logger *logrus.Logger, opts ...Option) (*move, error) {
	if config.ChainID != types.ChainIDAptos && config.ChainID != types.ChainIDSui {
		return nil, errors.Wrapf(berrors.ErrInvalidConfig, "chain %s is not a move chain", config.ChainID)
	}
	if config.CoreBridgeAddress == "" || config.TokenBridgeAddress == "" {
		return nil, errors.Wrapf(berrors.ErrInvalidConfig, "chain %s needs core and token bridge packages", config.Name)
	}
	if config.RpcUrl == "" {
		return nil, errors.Wrapf(berrors.ErrInvalidConfig, "chain %s has no rpc url", config.Name)
	}

	chain := &move{config: config, logger: logger}
	if config.ChainID == types.ChainIDSui {
		chain.sui = suiclient.NewClient(config.RpcUrl)
	} else {
		node, err := restclient.New(config.Name, restclient.Config{BaseURL: config.RpcUrl}, logger)
		if err != nil {
			return nil, errors.Wrap(berrors.ErrInvalidConfig, err.Error())
		}
		chain.node = node
	}
	for _, opt := range opts {
		opt(chain)
	}
	return chain, nil
}

// build leaves out the redemption reader on Sui, where consumed VAAs sit in a dynamic field of
// the token bridge state object.
func (m *move) build() *chainmanager.Chain {
	builder := chainmanager.NewChainBuilder(m.config).WithMessageParser(m)
	if !m.isSui() {
		builder.WithRedemptionReader(m)
	}
	if m.submitter != nil {
		builder.WithTransferSubmitter(m).WithRedeemer(m)
	}
	return builder.Build()
}

func (m *move) function(pkg, module, name string) string {
	return pkg + "::" + module + "::" + name
}

func (m *move) log() *logrus.Entry {
	return m.logger.WithField("chain", m.config.Name)
}

func (m *move) isSui() bool {
	return m.config.ChainID == types.ChainIDSui
}
