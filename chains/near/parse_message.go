package near

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/ClipFinance/bridge-lib/chains/restclient"
	berrors "github.com/ClipFinance/bridge-lib/common/errors"
	"github.com/ClipFinance/bridge-lib/common/types"
	"github.com/pkg/errors"
)

const eventLogPrefix = "EVENT_JSON:"

type txStatus struct {
	Status          map[string]json.RawMessage `json:"status"`
	ReceiptsOutcome []struct {
		Outcome struct {
			ExecutorID string   `json:"executor_id"`
			Logs       []string `json:"logs"`
		} `json:"outcome"`
	} `json:"receipts_outcome"`
}

type publishEvent struct {
	Standard string `json:"standard"`
	Event    string `json:"event"`
	Emitter  string `json:"emitter"`
	Seq      uint64 `json:"seq"`
	Block    uint64 `json:"block"`
}

// ParseMessageID reads the wormhole publish event logged by the core bridge.
//
// Parameters:
// - ctx: the context for managing the request.
// - tx: the transfer transaction. ID is "<sender>:<hash>" or a bare hash sent by the submitter account.
//
// Returns:
// - *types.MessageID: the emitter and the sequence.
// - error: ErrMessageNotFound when the transaction is unknown or has no bridge message,
//   ErrTransactionFailed when it failed.
func (n *near) ParseMessageID(ctx context.Context, tx *types.ChainTx) (*types.MessageID, error) {
	if tx == nil || tx.ID == "" {
		return nil, errors.Wrap(berrors.ErrInvalidTransfer, "missing source transaction")
	}
	sender, hash, err := n.splitTxID(tx.ID)
	if err != nil {
		return nil, err
	}

	var status txStatus
	err = n.rpc.Call(ctx, "EXPERIMENTAL_tx_status", []string{hash, sender}, &status)
	var rpcErr *restclient.RPCError
	if errors.As(err, &rpcErr) && rpcErr.Cause != nil && rpcErr.Cause.Name == "UNKNOWN_TRANSACTION" {
		return nil, errors.Wrapf(berrors.ErrMessageNotFound, "transaction %s: %v", hash, rpcErr)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction status")
	}
	if failure, ok := status.Status["Failure"]; ok {
		return nil, errors.Wrapf(berrors.ErrTransactionFailed, "transaction %s: %s", hash, failure)
	}

	emitter := n.emitter()
	for _, receipt := range status.ReceiptsOutcome {
		if receipt.Outcome.ExecutorID != n.config.CoreBridgeAddress {
			continue
		}
		for _, line := range receipt.Outcome.Logs {
			if !strings.HasPrefix(line, eventLogPrefix) {
				continue
			}
			var event publishEvent
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, eventLogPrefix)), &event); err != nil {
				continue
			}
			if event.Standard != "wormhole" || event.Event != "publish" || event.Emitter != emitter {
				continue
			}
			return &types.MessageID{
				EmitterChain:   n.config.ChainID,
				EmitterAddress: emitter,
				Sequence:       strconv.FormatUint(event.Seq, 10),
			}, nil
		}
	}
	return nil, errors.Wrapf(berrors.ErrMessageNotFound, "transaction %s", hash)
}

func (n *near) splitTxID(id string) (string, string, error) {
	if sender, hash, ok := strings.Cut(id, ":"); ok {
		return sender, hash, nil
	}
	if n.submitter == nil {
		return "", "", errors.Wrapf(berrors.ErrInvalidTransfer, "transaction %s has no sender", id)
	}
	return n.submitter.AccountID(), id, nil
}
