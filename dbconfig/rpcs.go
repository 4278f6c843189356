package dbconfig

import (
	"context"
	"database/sql"

	berrors "github.com/ClipFinance/bridge-lib/common/errors"
	"github.com/ClipFinance/bridge-lib/common/types"
	"github.com/ClipFinance/bridge-lib/dbconfig/models"
	"github.com/pkg/errors"
)

const rpcColumns = `id, chain_id, url, provider, priority, active, created_at, updated_at`

// GetRPCsByChainID lists the RPC endpoints of a chain, highest priority first and newest first
// within a priority.
//
// Parameters:
// - ctx: the context for managing the request.
// - chainID: the guardian chain id.
// - activeOnly: skip endpoints that were switched off.
//
// Returns:
// - []models.RPC: the endpoints, empty when the chain has none.
// - error: ErrInvalidChainID for the unset id, ErrDatabaseQuery otherwise.
func (r *DBConfig) GetRPCsByChainID(ctx context.Context, chainID types.ChainID, activeOnly bool) ([]models.RPC, error) {
	if chainID == types.ChainIDUnset {
		return nil, berrors.ErrInvalidChainID
	}

	where, args := "chain_id = $1", []interface{}{chainID}
	if activeOnly {
		where, args = where+" AND active = $2", append(args, true)
	}
	query := `SELECT ` + rpcColumns + ` FROM rpcs WHERE ` + where + ` ORDER BY priority DESC, created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrapf(ErrDatabaseQuery, "select rpcs of chain %s: %v", chainID, err)
	}
	defer rows.Close()

	var rpcs []models.RPC
	for rows.Next() {
		rpc, err := scanRPC(rows)
		if err != nil {
			return nil, err
		}
		rpcs = append(rpcs, *rpc)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(ErrDatabaseQuery, "iterate rpcs of chain %s: %v", chainID, err)
	}
	return rpcs, nil
}

func scanRPC(row rowScanner) (*models.RPC, error) {
	var rpc models.RPC
	var provider sql.NullString
	if err := row.Scan(&rpc.ID, &rpc.ChainID, &rpc.URL, &provider, &rpc.Priority, &rpc.Active, &rpc.CreatedAt, &rpc.UpdatedAt); err != nil {
		return nil, errors.Wrapf(ErrDatabaseQuery, "scan rpc: %v", err)
	}
	rpc.Provider = provider.String
	return &rpc, nil
}
