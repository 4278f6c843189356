package algorand

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"net/url"
	"strconv"

	"github.com/ClipFinance/bridge-lib/chains/restclient"
	berrors "github.com/ClipFinance/bridge-lib/common/errors"
	"github.com/ClipFinance/bridge-lib/common/types"
	"github.com/pkg/errors"
)

type indexerTransaction struct {
	ID             string   `json:"id"`
	ConfirmedRound uint64   `json:"confirmed-round"`
	TxType         string   `json:"tx-type"`
	Logs           []string `json:"logs"`
	Application    *struct {
		ApplicationID uint64 `json:"application-id"`
	} `json:"application-transaction"`
	InnerTxns []indexerTransaction `json:"inner-txns"`
}

type transactionResponse struct {
	Transaction indexerTransaction `json:"transaction"`
}

// ParseMessageID reads the sequence logged by the core bridge application call made by the token
// bridge.
//
// Parameters:
// - ctx: the context for managing the request.
// - tx: the token bridge transaction of the transfer group.
//
// Returns:
// - *types.MessageID: the token bridge application account and the sequence.
// - error: ErrMessageNotFound when the transaction is not confirmed or has no bridge message.
func (a *algorand) ParseMessageID(ctx context.Context, tx *types.ChainTx) (*types.MessageID, error) {
	if tx == nil || tx.ID == "" {
		return nil, errors.Wrap(berrors.ErrInvalidTransfer, "missing source transaction")
	}

	var resp transactionResponse
	err := a.indexer.Get(ctx, "/v2/transactions/"+url.PathEscape(tx.ID), nil, &resp)
	if restclient.IsNotFound(err) {
		return nil, errors.Wrapf(berrors.ErrMessageNotFound, "transaction %s not indexed", tx.ID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}
	if resp.Transaction.ConfirmedRound == 0 {
		return nil, errors.Wrapf(berrors.ErrMessageNotFound, "transaction %s not confirmed", tx.ID)
	}

	sequence, ok, err := a.findSequence(&resp.Transaction)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Wrapf(berrors.ErrMessageNotFound, "transaction %s", tx.ID)
	}
	return &types.MessageID{
		EmitterChain:   a.config.ChainID,
		EmitterAddress: a.emitter(),
		Sequence:       strconv.FormatUint(sequence, 10),
	}, nil
}

// findSequence walks the inner transactions for the core bridge call.
func (a *algorand) findSequence(tx *indexerTransaction) (uint64, bool, error) {
	if tx.Application != nil && tx.Application.ApplicationID == a.coreApp && len(tx.Logs) > 0 {
		raw, err := base64.StdEncoding.DecodeString(tx.Logs[0])
		if err != nil {
			return 0, false, errors.Wrap(err, "failed to decode core bridge log")
		}
		if len(raw) != 8 {
			return 0, false, errors.Errorf("core bridge log has %d bytes, want 8", len(raw))
		}
		return binary.BigEndian.Uint64(raw), true, nil
	}
	for i := range tx.InnerTxns {
		seq, ok, err := a.findSequence(&tx.InnerTxns[i])
		if err != nil || ok {
			return seq, ok, err
		}
	}
	return 0, false, nil
}
