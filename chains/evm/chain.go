// Package evm implements the bridge adapter for EVM chains on top of go-ethereum.
package evm

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ClipFinance/bridge-lib/chainmanager"
	"github.com/ClipFinance/bridge-lib/chains/evm/signer"
	berrors "github.com/ClipFinance/bridge-lib/common/errors"
	"github.com/ClipFinance/bridge-lib/common/types"
	"github.com/ClipFinance/bridge-lib/connectionmonitor"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	// TxTypeLegacy represents the legacy transaction type.
	TxTypeLegacy = 0
	// TxTypeEIP1559 represents the EIP-1559 transaction type.
	TxTypeEIP1559 = 2
	// receiptPollInterval is the interval between receipt lookups while waiting for inclusion.
	receiptPollInterval = 2 * time.Second
)

// ethClient is the subset of *ethclient.Client used by the adapter.
type ethClient interface {
	BlockNumber(ctx context.Context) (uint64, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*ethtypes.Header, error)
	SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	Close()
}

// dialFunc opens a client for an RPC URL.
type dialFunc func(url string) (ethClient, error)

func dialEthClient(url string) (ethClient, error) {
	client, err := ethclient.Dial(url)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// evm represents the base EVM chain implementation.
type evm struct {
	config        *types.ChainConfig // Chain configuration.
	logger        *logrus.Logger     // Logger for logging events.
	tokenBridge   common.Address     // Token bridge contract, the message emitter.
	coreBridge    common.Address     // Core bridge contract, publisher of LogMessagePublished.
	wrappedNative common.Address     // Wrapped native token, transfers of it are sent as native value.
	pollInterval  time.Duration      // Receipt polling interval.
	dial          dialFunc

	// Protected fields with their own mutexes.
	clientMutex sync.RWMutex // Mutex for client.
	client      ethClient    // Ethereum client.

	signerMutex sync.RWMutex  // Mutex for signer.
	signer      signer.Signer // Signer for signing transactions.

	monitorMutex sync.RWMutex                        // Mutex for connection monitor.
	monitor      connectionmonitor.ConnectionMonitor // Connection monitor.
}

// NewEvmChain creates a new EVM chain adapter.
//
// Parameters:
// - ctx: the context for managing the connection monitor.
// - config: the chain configuration.
// - logger: the logger for logging events.
// - opts: connection monitor options.
//
// Returns:
// - types.ChainAdapter: a new EVM adapter. Without a private key it can only parse and read.
// - error: an error if any issue occurs during creation.
func NewEvmChain(ctx context.Context, config *types.ChainConfig, logger *logrus.Logger, opts ...connectionmonitor.Option) (types.ChainAdapter, error) {
	client, err := dialEthClient(config.RpcUrl)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create client")
	}

	chain, err := newEvm(config, client, logger)
	if err != nil {
		client.Close()
		return nil, err
	}
	chain.dial = dialEthClient

	if err := chain.initMonitor(ctx, opts...); err != nil {
		chain.Close()
		return nil, errors.Wrap(err, "failed to init connection monitor")
	}

	return chain.build(), nil
}

// newEvm validates config and assembles the adapter around an existing client.
func newEvm(config *types.ChainConfig, client ethClient, logger *logrus.Logger) (*evm, error) {
	if !common.IsHexAddress(config.TokenBridgeAddress) || !common.IsHexAddress(config.CoreBridgeAddress) {
		return nil, errors.Wrapf(berrors.ErrInvalidConfig, "chain %s: token and core bridge addresses are required", config.Name)
	}
	if config.NativeChainID == 0 {
		return nil, errors.Wrapf(berrors.ErrInvalidConfig, "chain %s: native chain id is required", config.Name)
	}

	chain := &evm{
		config:       config,
		logger:       logger,
		tokenBridge:  common.HexToAddress(config.TokenBridgeAddress),
		coreBridge:   common.HexToAddress(config.CoreBridgeAddress),
		pollInterval: receiptPollInterval,
		client:       client,
	}
	if config.WrappedNativeAddress != "" {
		chain.wrappedNative = common.HexToAddress(config.WrappedNativeAddress)
	}

	if config.PrivateKey != "" {
		s, err := signer.FromHex(config.PrivateKey)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create signer")
		}

		chain.signerMutex.Lock()
		chain.signer = s
		chain.signerMutex.Unlock()
	}
	return chain, nil
}

// build exposes the capabilities the adapter is configured for.
func (e *evm) build() *chainmanager.Chain {
	builder := chainmanager.NewChainBuilder(e.config).
		WithMessageParser(e).
		WithRedemptionReader(e).
		WithCloser(e.Close)

	if e.getSigner() != nil {
		builder.WithTransferSubmitter(e).WithRedeemer(e)
	}
	return builder.Build()
}

// Close should be called when the chain is no longer needed.
// It stops the connection monitor and closes the client.
func (e *evm) Close() {
	e.monitorMutex.Lock()
	if e.monitor != nil {
		e.monitor.Stop()
		e.monitor = nil
	}
	e.monitorMutex.Unlock()

	e.clientMutex.Lock()
	if e.client != nil {
		e.client.Close()
		e.client = nil
	}
	e.clientMutex.Unlock()
}

func (e *evm) getClient() (ethClient, error) {
	e.clientMutex.RLock()
	defer e.clientMutex.RUnlock()
	if e.client == nil {
		return nil, errors.New("client not initialized")
	}
	return e.client, nil
}

func (e *evm) getSigner() signer.Signer {
	e.signerMutex.RLock()
	defer e.signerMutex.RUnlock()
	return e.signer
}

func (e *evm) log() *logrus.Entry {
	return e.logger.WithField("chain", e.config.Name)
}
