package evm

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
)

// waitReceipt polls for the receipt of hash until it is included and WaitNBlocks blocks deep.
//
// Parameters:
// - ctx: the context for managing the request.
// - hash: the transaction hash.
//
// Returns:
// - *ethtypes.Receipt: the receipt, successful or not.
// - error: ctx.Err() on cancellation or an RPC error other than not found.
func (e *evm) waitReceipt(ctx context.Context, hash common.Hash) (*ethtypes.Receipt, error) {
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.log().WithField("tx_hash", hash.Hex()).Warn("Stopped waiting for receipt")
			return nil, ctx.Err()

		case <-ticker.C:
			client, err := e.getClient()
			if err != nil {
				return nil, err
			}

			receipt, err := client.TransactionReceipt(ctx, hash)
			if err != nil {
				if errors.Is(err, ethereum.NotFound) {
					continue
				}
				return nil, errors.Wrap(err, "failed to get transaction receipt")
			}

			if e.config.WaitNBlocks > 0 {
				currentBlock, err := client.BlockNumber(ctx)
				if err != nil {
					return nil, errors.Wrap(err, "failed to get current block number")
				}
				if currentBlock < receipt.BlockNumber.Uint64()+e.config.WaitNBlocks {
					continue
				}
			}
			return receipt, nil
		}
	}
}
