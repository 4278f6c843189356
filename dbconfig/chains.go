package dbconfig

import (
	"context"
	"database/sql"
	"strings"

	berrors "github.com/ClipFinance/bridge-lib/common/errors"
	"github.com/ClipFinance/bridge-lib/common/types"
	"github.com/ClipFinance/bridge-lib/dbconfig/models"
	"github.com/pkg/errors"
)

const chainColumns = `
          id,
          chain_id,
          name,
          chain_type,
          native_chain_id,
          network_id,
          core_bridge_address,
          token_bridge_address,
          emitter_address,
          wrapped_native_address,
          tx_type,
          wait_n_blocks,
          active,
          created_at,
          updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// GetChains returns all chains from the database, optionally filtering by active status.
func (r *DBConfig) GetChains(ctx context.Context, activeOnly bool) ([]models.Chain, error) {
	query := `SELECT` + chainColumns + ` FROM chains`

	var args []interface{}
	if activeOnly {
		query += " WHERE active = $1"
		args = append(args, true)
	}

	query += " ORDER BY chain_id ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrapf(ErrDatabaseQuery, "select chains: %v", err)
	}
	defer rows.Close()

	var chains []models.Chain
	for rows.Next() {
		chain, err := scanChain(rows)
		if err != nil {
			return nil, err
		}
		chains = append(chains, *chain)
	}

	if err = rows.Err(); err != nil {
		return nil, errors.Wrapf(ErrDatabaseQuery, "select chains: %v", err)
	}

	return chains, nil
}

// GetChainByID returns the chain row of a guardian chain id.
func (r *DBConfig) GetChainByID(ctx context.Context, chainID types.ChainID) (*models.Chain, error) {
	if chainID == types.ChainIDUnset {
		return nil, berrors.ErrInvalidChainID
	}

	row := r.db.QueryRowContext(ctx, `SELECT`+chainColumns+` FROM chains WHERE chain_id = $1`, chainID)
	chain, err := scanChain(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(berrors.ErrChainNotFound, "chain %s", chainID)
	}
	if err != nil {
		return nil, err
	}

	return chain, nil
}

// GetChainConfigs returns the adapter configurations of all active chains, each served by its
// highest priority active rpc.
//
// Parameters:
// - ctx: the context for managing the request.
//
// Returns:
// - []*types.ChainConfig: the configurations ordered by chain id.
// - error: ErrNoActiveRPC when an active chain has no active rpc, ErrDatabaseQuery on query errors.
func (r *DBConfig) GetChainConfigs(ctx context.Context) ([]*types.ChainConfig, error) {
	chains, err := r.GetChains(ctx, true)
	if err != nil {
		return nil, err
	}

	configs := make([]*types.ChainConfig, 0, len(chains))
	for i := range chains {
		rpcs, err := r.GetRPCsByChainID(ctx, chains[i].ChainID, true)
		if err != nil {
			return nil, err
		}
		if len(rpcs) == 0 {
			return nil, errors.Wrapf(ErrNoActiveRPC, "chain %s", chains[i].ChainID)
		}
		configs = append(configs, chains[i].ToConfig(rpcs[0].URL))
	}
	return configs, nil
}

func scanChain(row rowScanner) (*models.Chain, error) {
	var chain models.Chain
	var chainType string
	var nativeChainID sql.NullInt64
	var networkID, emitterAddress, wrappedNative sql.NullString

	err := row.Scan(
		&chain.ID,
		&chain.ChainID,
		&chain.Name,
		&chainType,
		&nativeChainID,
		&networkID,
		&chain.CoreBridgeAddress,
		&chain.TokenBridgeAddress,
		&emitterAddress,
		&wrappedNative,
		&chain.TxType,
		&chain.WaitNBlocks,
		&chain.Active,
		&chain.CreatedAt,
		&chain.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, errors.Wrapf(ErrDatabaseQuery, "scan chain: %v", err)
	}

	chain.Type = types.ParseChainType(strings.ToUpper(chainType))
	if nativeChainID.Valid {
		chain.NativeChainID = uint64(nativeChainID.Int64)
	}
	chain.NetworkID = networkID.String
	chain.EmitterAddress = emitterAddress.String
	chain.WrappedNativeAddress = wrappedNative.String

	return &chain, nil
}
