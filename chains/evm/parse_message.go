package evm

import (
	"context"
	"encoding/hex"
	"strconv"

	berrors "github.com/ClipFinance/bridge-lib/common/errors"
	"github.com/ClipFinance/bridge-lib/common/types"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
)

// ParseMessageID finds the LogMessagePublished event emitted by the core bridge on behalf of the
// token bridge in the receipt of tx.
//
// Parameters:
// - ctx: the context for managing the request.
// - tx: the transfer transaction.
//
// Returns:
// - *types.MessageID: the emitter (the padded token bridge address) and the sequence.
// - error: ErrMessageNotFound when the receipt is not available or carries no bridge event,
//   ErrTransactionFailed when the transaction reverted.
func (e *evm) ParseMessageID(ctx context.Context, tx *types.ChainTx) (*types.MessageID, error) {
	if tx == nil || tx.ID == "" {
		return nil, errors.Wrap(berrors.ErrInvalidTransfer, "missing source transaction")
	}
	client, err := e.getClient()
	if err != nil {
		return nil, err
	}

	receipt, err := client.TransactionReceipt(ctx, common.HexToHash(tx.ID))
	if errors.Is(err, ethereum.NotFound) {
		return nil, errors.Wrapf(berrors.ErrMessageNotFound, "receipt of %s not available", tx.ID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction receipt")
	}
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		return nil, errors.Wrapf(berrors.ErrTransactionFailed, "tx %s", tx.ID)
	}

	for _, l := range receipt.Logs {
		if l.Address != e.coreBridge || len(l.Topics) < 2 || l.Topics[0] != logMessagePublishedTopic {
			continue
		}
		if common.BytesToAddress(l.Topics[1].Bytes()) != e.tokenBridge {
			continue
		}

		values, err := coreBridgeABI.Unpack("LogMessagePublished", l.Data)
		if err != nil {
			return nil, errors.Wrap(err, "failed to decode LogMessagePublished")
		}
		sequence, ok := values[0].(uint64)
		if !ok {
			return nil, errors.New("unexpected sequence type in LogMessagePublished")
		}
		return &types.MessageID{
			EmitterChain:   e.config.ChainID,
			EmitterAddress: hex.EncodeToString(l.Topics[1].Bytes()),
			Sequence:       strconv.FormatUint(sequence, 10),
		}, nil
	}
	return nil, errors.Wrapf(berrors.ErrMessageNotFound, "tx %s", tx.ID)
}
