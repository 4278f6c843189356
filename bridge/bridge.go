// Package bridge assembles a transfer pipeline from a loaded configuration.
package bridge

import (
	"context"

	"github.com/ClipFinance/bridge-lib/chainmanager"
	"github.com/ClipFinance/bridge-lib/chains"
	"github.com/ClipFinance/bridge-lib/common/types"
	"github.com/ClipFinance/bridge-lib/config"
	"github.com/ClipFinance/bridge-lib/dbconfig"
	"github.com/ClipFinance/bridge-lib/guardian"
	"github.com/ClipFinance/bridge-lib/metrics"
	"github.com/ClipFinance/bridge-lib/orchestrator"
	"github.com/ClipFinance/bridge-lib/redemption"
	"github.com/ClipFinance/bridge-lib/store/memory"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Option configures optional collaborators.
type Option func(*options)

type options struct {
	factory  chains.ChainFactory
	db       *dbconfig.DBConfig
	registry prometheus.Registerer
}

// WithChainFactory replaces the default factory, e.g. one with wallet backed constructors.
func WithChainFactory(f chains.ChainFactory) Option {
	return func(o *options) { o.factory = f }
}

// WithDatabase uses db instead of dialing database.dsn.
func WithDatabase(db *dbconfig.DBConfig) Option {
	return func(o *options) { o.db = db }
}

// WithRegisterer registers the pipeline metrics on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registry = reg }
}

// Bridge is an assembled pipeline.
type Bridge struct {
	Orchestrator *orchestrator.Orchestrator
	Registry     *chainmanager.Registry
	Metrics      *metrics.Metrics

	closers []func()
}

// New builds the pipeline. Transfers are persisted in Postgres when a database is configured and
// kept in memory otherwise. Found attestations are cached in Redis when redis.url is set.
//
// Parameters:
// - ctx: the context for dialing Redis and constructing adapters.
// - cfg: the loaded configuration.
// - logger: the logger shared by every component.
// - opts: optional factory, database and metrics registerer.
//
// Returns:
// - *Bridge: the pipeline, Close releases its connections.
// - error: an error if a dependency cannot be reached or a chain adapter cannot be built.
func New(ctx context.Context, cfg *config.Config, logger *logrus.Logger, opts ...Option) (*Bridge, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.factory == nil {
		o.factory = chains.NewChainFactory()
	}

	b := &Bridge{Metrics: metrics.New(o.registry)}
	ok := false
	defer func() {
		if !ok {
			b.Close()
		}
	}()

	db := o.db
	if db == nil && cfg.Database.DSN != "" {
		var err error
		if db, err = dbconfig.NewDBConfig(cfg.Database.DSN); err != nil {
			return nil, err
		}
		b.closers = append(b.closers, func() { _ = db.Close() })
	}

	var store types.TransferStore = memory.NewStore()
	if db != nil {
		store = db.Transfers()
	}

	chainConfigs, err := chainConfigs(ctx, cfg, db)
	if err != nil {
		return nil, err
	}
	b.Registry = chainmanager.NewChainRegistry(o.factory, logger)
	b.closers = append(b.closers, b.Registry.Close)
	for _, chain := range chainConfigs {
		if err := b.Registry.Add(ctx, chain); err != nil {
			return nil, err
		}
	}

	client, err := guardian.NewClient(cfg.Guardian, logger, b.Metrics)
	if err != nil {
		return nil, err
	}
	var querier types.GuardianQuerier = client
	if cfg.Redis.URL != "" {
		cache, rdb, err := guardian.DialRedisCache(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, func() { _ = rdb.Close() })
		querier = guardian.NewCachedClient(client, cache, cfg.Redis.CacheTTL, logger)
	}

	poller := guardian.NewPoller(querier, cfg.Poller, logger, b.Metrics)
	checker := redemption.NewChecker(cfg.Redemption, logger)
	b.Orchestrator = orchestrator.New(cfg.Orchestrator, b.Registry, poller, checker, logger,
		orchestrator.WithStore(store),
		orchestrator.WithMetrics(b.Metrics),
	)

	logger.WithField("chains", len(chainConfigs)).Info("Bridge pipeline ready")
	ok = true
	return b, nil
}

// chainConfigs returns the configured chains. Chains loaded from the database take their signing
// keys from the file entry with the same chain id.
func chainConfigs(ctx context.Context, cfg *config.Config, db *dbconfig.DBConfig) ([]*types.ChainConfig, error) {
	if !cfg.Database.ChainsFromDB {
		out := make([]*types.ChainConfig, len(cfg.Chains))
		for i := range cfg.Chains {
			chain := cfg.Chains[i]
			out[i] = &chain
		}
		return out, nil
	}
	if db == nil {
		return nil, errors.New("chains_from_db needs a database")
	}

	loaded, err := db.GetChainConfigs(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load chains")
	}
	keys := make(map[types.ChainID]string, len(cfg.Chains))
	for _, chain := range cfg.Chains {
		keys[chain.ChainID] = chain.PrivateKey
	}
	for _, chain := range loaded {
		chain.PrivateKey = keys[chain.ChainID]
	}
	return loaded, nil
}

// Close releases adapters and connections in reverse order of creation.
func (b *Bridge) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
	b.closers = nil
}
