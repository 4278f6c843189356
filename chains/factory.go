package chains

import (
	"context"
	"sync"

	"github.com/ClipFinance/bridge-lib/chainmanager"
	"github.com/ClipFinance/bridge-lib/chains/algorand"
	"github.com/ClipFinance/bridge-lib/chains/cosmos"
	"github.com/ClipFinance/bridge-lib/chains/evm"
	"github.com/ClipFinance/bridge-lib/chains/move"
	"github.com/ClipFinance/bridge-lib/chains/near"
	"github.com/ClipFinance/bridge-lib/chains/solana"
	berrors "github.com/ClipFinance/bridge-lib/common/errors"
	"github.com/ClipFinance/bridge-lib/common/types"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ChainConstructor represents a function that constructs a new chain adapter.
//
// Parameters:
// - ctx: the context for dialing the chain endpoint.
// - config: the configuration for the chain.
// - logger: the logger for logging purposes.
//
// Returns:
// - types.ChainAdapter: the constructed adapter.
// - error: an error if the adapter construction fails.
type ChainConstructor func(ctx context.Context, config *types.ChainConfig, logger *logrus.Logger) (types.ChainAdapter, error)

// ChainFactory defines the interface for adapter creation.
type ChainFactory interface {
	chainmanager.AdapterFactory

	// RegisterConstructor registers a chain constructor for a chain family, replacing the
	// previous one. Wallet integrations register constructors that pass their signers.
	//
	// Parameters:
	// - chainType: the family of the chain to register.
	// - constructor: the constructor function for the family.
	RegisterConstructor(chainType types.ChainType, constructor ChainConstructor)
}

type chainFactory struct {
	// constructors stores the mapping of chain families to their constructors.
	constructors map[types.ChainType]ChainConstructor
	// constructorsMutex protects access to the constructors map.
	constructorsMutex sync.RWMutex
}

// NewChainFactory creates a new instance of the chain factory with read-only defaults for every
// supported family. EVM and Solana adapters sign with config.PrivateKey when it is set.
//
// Returns:
// - ChainFactory: the new chain factory instance.
func NewChainFactory() ChainFactory {
	factory := &chainFactory{
		constructors: make(map[types.ChainType]ChainConstructor),
	}

	// Initialize with default constructors.
	factory.registerConstructors()

	return factory
}

// RegisterConstructor registers a new chain constructor.
func (f *chainFactory) RegisterConstructor(chainType types.ChainType, constructor ChainConstructor) {
	f.constructorsMutex.Lock()
	defer f.constructorsMutex.Unlock()

	f.constructors[chainType] = constructor
}

// CreateAdapter creates a new adapter based on the configuration.
//
// Parameters:
// - ctx: the context for dialing the chain endpoint.
// - config: the configuration for the chain.
// - logger: the logger for logging purposes.
//
// Returns:
// - types.ChainAdapter: the created adapter.
// - error: ErrInvalidChainType for unregistered families, the constructor error otherwise.
func (f *chainFactory) CreateAdapter(ctx context.Context, config *types.ChainConfig, logger *logrus.Logger) (types.ChainAdapter, error) {
	if config == nil {
		return nil, errors.Wrap(berrors.ErrInvalidConfig, "nil chain config")
	}

	f.constructorsMutex.RLock()
	constructor, exists := f.constructors[config.ChainType]
	f.constructorsMutex.RUnlock()

	if !exists {
		return nil, errors.Wrapf(berrors.ErrInvalidChainType, "%q for chain %s", config.ChainType, config.Name)
	}

	return constructor(ctx, config, logger)
}

// registerConstructors registers the default constructors for the chain factory instance.
func (f *chainFactory) registerConstructors() {
	f.RegisterConstructor(types.EVM, func(ctx context.Context, config *types.ChainConfig, logger *logrus.Logger) (types.ChainAdapter, error) {
		return evm.NewEvmChain(ctx, config, logger)
	})
	f.RegisterConstructor(types.SOLANA, func(ctx context.Context, config *types.ChainConfig, logger *logrus.Logger) (types.ChainAdapter, error) {
		return solana.NewSolanaChain(ctx, config, logger)
	})
	f.RegisterConstructor(types.COSMOS, func(ctx context.Context, config *types.ChainConfig, logger *logrus.Logger) (types.ChainAdapter, error) {
		return cosmos.NewCosmosChain(ctx, config, logger)
	})
	f.RegisterConstructor(types.MOVE, func(ctx context.Context, config *types.ChainConfig, logger *logrus.Logger) (types.ChainAdapter, error) {
		return move.NewMoveChain(ctx, config, logger)
	})
	f.RegisterConstructor(types.ALGORAND, func(ctx context.Context, config *types.ChainConfig, logger *logrus.Logger) (types.ChainAdapter, error) {
		return algorand.NewAlgorandChain(ctx, config, logger)
	})
	f.RegisterConstructor(types.NEAR, func(ctx context.Context, config *types.ChainConfig, logger *logrus.Logger) (types.ChainAdapter, error) {
		return near.NewNearChain(ctx, config, logger)
	})
}
