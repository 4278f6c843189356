// Package near implements the bridge adapter for NEAR.
//
// Transactions are read and view functions called through the NEAR JSON-RPC. Function calls are
// signed and sent by an external Submitter supplied by the wallet integration.
package near

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/ClipFinance/bridge-lib/chainmanager"
	"github.com/ClipFinance/bridge-lib/chains/restclient"
	berrors "github.com/ClipFinance/bridge-lib/common/errors"
	"github.com/ClipFinance/bridge-lib/common/types"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	// nativeToken is the TokenAddress of NEAR itself.
	nativeToken = "near"
	// defaultGas is the prepaid gas of bridge function calls.
	defaultGas = 300_000_000_000_000
)

// FunctionCall is a NEAR function call action to be signed by the wallet.
type FunctionCall struct {
	Receiver string `json:"receiver_id"`
	Method   string `json:"method_name"`
	Args     []byte `json:"args"`
	Gas      uint64 `json:"gas"`
	// Deposit is the attached yoctoNEAR amount as a decimal string.
	Deposit string `json:"deposit"`
}

// Submitter signs and sends function calls and waits for their final execution outcome.
type Submitter interface {
	// AccountID is the signer account, the sender of submitted transactions.
	AccountID() string
	Submit(ctx context.Context, call *FunctionCall) (*types.ChainTx, error)
}

// Option configures optional adapter collaborators.
type Option func(*near)

// WithSubmitter enables transfers and redemptions.
func WithSubmitter(s Submitter) Option {
	return func(n *near) { n.submitter = s }
}

type near struct {
	config    *types.ChainConfig
	logger    *logrus.Logger
	rpc       *restclient.Client
	submitter Submitter
}

// NewNearChain creates a new NEAR adapter.
//
// Parameters:
// - ctx: unused, kept for a uniform constructor signature.
// - config: the chain configuration, the bridge addresses are account ids.
// - logger: the logger for logging events.
// - opts: optional submitter.
//
// Returns:
// - types.ChainAdapter: the adapter. Without a submitter it can only parse and read.
// - error: ErrInvalidConfig for missing accounts or an invalid endpoint.
func NewNearChain(ctx context.Context, config *types.ChainConfig, logger *logrus.Logger, opts ...Option) (types.ChainAdapter, error) {
	chain, err := newNear(config, logger, opts...)
	if err != nil {
		return nil, err
	}
	return chain.build(), nil
}

func newNear(config *types.ChainConfig, logger *logrus.Logger, opts ...Option) (*near, error) {
	if config.CoreBridgeAddress == "" || config.TokenBridgeAddress == "" {
		return nil, errors.Wrapf(berrors.ErrInvalidConfig, "chain %s needs core and token bridge accounts", config.Name)
	}
	client, err := restclient.New(config.Name, restclient.Config{BaseURL: config.RpcUrl}, logger)
	if err != nil {
		return nil, errors.Wrap(berrors.ErrInvalidConfig, err.Error())
	}

	chain := &near{
		config: config,
		logger: logger,
		rpc:    client,
	}
	for _, opt := range opts {
		opt(chain)
	}
	return chain, nil
}

func (n *near) build() *chainmanager.Chain {
	builder := chainmanager.NewChainBuilder(n.config).
		WithMessageParser(n).
		WithRedemptionReader(n)
	if n.submitter != nil {
		builder.WithTransferSubmitter(n).WithRedeemer(n)
	}
	return builder.Build()
}

// emitter is sha256 of the token bridge account id.
func (n *near) emitter() string {
	sum := sha256.Sum256([]byte(n.config.TokenBridgeAddress))
	return hex.EncodeToString(sum[:])
}

func (n *near) log() *logrus.Entry {
	return n.logger.WithField("chain", n.config.Name)
}
