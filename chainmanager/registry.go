package chainmanager

import (
	"context"
	"sync"

	berrors "github.com/ClipFinance/bridge-lib/common/errors"
	"github.com/ClipFinance/bridge-lib/common/types"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// AdapterFactory builds an adapter for a chain configuration.
type AdapterFactory interface {
	CreateAdapter(ctx context.Context, config *types.ChainConfig, logger *logrus.Logger) (types.ChainAdapter, error)
}

type closer interface {
	Close()
}

// Registry is the chain id to adapter table used by the orchestrator.
type Registry struct {
	logger       *logrus.Logger
	chains       map[types.ChainID]types.ChainAdapter
	chainsMutex  sync.RWMutex
	factory      AdapterFactory
	factoryMutex sync.RWMutex
}

var _ types.AdapterRegistry = (*Registry)(nil)

// NewChainRegistry creates an empty registry. factory may be nil when adapters are only registered
// directly.
func NewChainRegistry(factory AdapterFactory, logger *logrus.Logger) *Registry {
	return &Registry{
		chains:  make(map[types.ChainID]types.ChainAdapter),
		factory: factory,
		logger:  logger,
	}
}

// Add builds the adapter for config through the factory and registers it under config.ChainID.
//
// Parameters:
// - ctx: the context for managing adapter construction.
// - config: the chain configuration.
//
// Returns:
// - error: ErrFactoryNotProvided, ErrInvalidChainID, ErrChainExists or the factory error.
func (r *Registry) Add(ctx context.Context, config *types.ChainConfig) error {
	if config == nil || config.ChainID == types.ChainIDUnset {
		return errors.Wrap(berrors.ErrInvalidChainID, "chain config has no chain id")
	}

	// Lock factory for reading to prevent changes during chain creation.
	r.factoryMutex.RLock()
	factory := r.factory
	if factory == nil {
		r.factoryMutex.RUnlock()
		return berrors.ErrFactoryNotProvided
	}
	adapter, err := factory.CreateAdapter(ctx, config, r.logger)
	r.factoryMutex.RUnlock()
	if err != nil {
		return errors.Wrapf(err, "failed to create adapter for chain %s", config.ChainID)
	}

	if err := r.Register(adapter); err != nil {
		if c, ok := adapter.(closer); ok {
			c.Close()
		}
		return err
	}

	r.logger.WithFields(logrus.Fields{
		"chain":      config.ChainID.String(),
		"chain_type": config.ChainType.String(),
	}).Info("Chain adapter added")
	return nil
}

// Register stores an already constructed adapter under its chain id.
func (r *Registry) Register(adapter types.ChainAdapter) error {
	if adapter == nil {
		return errors.Wrap(berrors.ErrInvalidConfig, "nil adapter")
	}
	id := adapter.ChainID()
	if id == types.ChainIDUnset {
		return errors.Wrap(berrors.ErrInvalidChainID, "adapter has no chain id")
	}

	r.chainsMutex.Lock()
	defer r.chainsMutex.Unlock()
	if _, exists := r.chains[id]; exists {
		return errors.Wrapf(berrors.ErrChainExists, "chain %s", id)
	}
	r.chains[id] = adapter
	return nil
}

// Get returns the adapter of chainID, nil when none is registered.
func (r *Registry) Get(chainID types.ChainID) types.ChainAdapter {
	r.chainsMutex.RLock()
	adapter := r.chains[chainID]
	r.chainsMutex.RUnlock()
	return adapter
}

// Remove unregisters the adapter of chainID and closes it.
func (r *Registry) Remove(chainID types.ChainID) {
	r.chainsMutex.Lock()
	adapter, ok := r.chains[chainID]
	delete(r.chains, chainID)
	r.chainsMutex.Unlock()

	if c, isCloser := adapter.(closer); ok && isCloser {
		c.Close()
	}
}

// ChainIDs returns the registered chain ids.
func (r *Registry) ChainIDs() []types.ChainID {
	r.chainsMutex.RLock()
	defer r.chainsMutex.RUnlock()
	ids := make([]types.ChainID, 0, len(r.chains))
	for id := range r.chains {
		ids = append(ids, id)
	}
	return ids
}

// Close closes and removes every adapter.
func (r *Registry) Close() {
	for _, id := range r.ChainIDs() {
		r.Remove(id)
	}
}
