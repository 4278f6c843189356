package cosmos

import (
	"context"
	"encoding/base64"
	"net/url"
	"strconv"

	"github.com/ClipFinance/bridge-lib/chains/restclient"
	berrors "github.com/ClipFinance/bridge-lib/common/errors"
	"github.com/ClipFinance/bridge-lib/common/types"
	"github.com/pkg/errors"
)

type eventAttribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type txEvent struct {
	Type       string           `json:"type"`
	Attributes []eventAttribute `json:"attributes"`
}

type txResponse struct {
	TxResponse struct {
		Height string    `json:"height"`
		TxHash string    `json:"txhash"`
		Code   uint32    `json:"code"`
		RawLog string    `json:"raw_log"`
		Events []txEvent `json:"events"`
	} `json:"tx_response"`
}

// ParseMessageID reads the wasm event of the core bridge from the transaction.
//
// Parameters:
// - ctx: the context for managing the request.
// - tx: the transfer transaction, ID is the hex transaction hash.
//
// Returns:
// - *types.MessageID: the emitter reported by the core bridge and the sequence.
// - error: ErrMessageNotFound when the transaction is not indexed or has no bridge message,
//   ErrTransactionFailed when it failed.
func (c *cosmos) ParseMessageID(ctx context.Context, tx *types.ChainTx) (*types.MessageID, error) {
	if tx == nil || tx.ID == "" {
		return nil, errors.Wrap(berrors.ErrInvalidTransfer, "missing source transaction")
	}

	var resp txResponse
	err := c.lcd.Get(ctx, "/cosmos/tx/v1beta1/txs/"+url.PathEscape(tx.ID), nil, &resp)
	if restclient.IsNotFound(err) {
		return nil, errors.Wrapf(berrors.ErrMessageNotFound, "transaction %s not indexed", tx.ID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}
	if resp.TxResponse.Code != 0 {
		return nil, errors.Wrapf(berrors.ErrTransactionFailed, "transaction %s: code %d: %s", tx.ID, resp.TxResponse.Code, resp.TxResponse.RawLog)
	}

	for _, event := range resp.TxResponse.Events {
		if event.Type != "wasm" {
			continue
		}
		attrs := decodeAttributes(event.Attributes)
		if attrs["_contract_address"] != c.config.CoreBridgeAddress {
			continue
		}
		sender, sequence := attrs["message.sender"], attrs["message.sequence"]
		if sender == "" || sequence == "" {
			continue
		}
		if _, err := strconv.ParseUint(sequence, 10, 64); err != nil {
			return nil, errors.Wrapf(err, "invalid sequence %q", sequence)
		}
		return &types.MessageID{
			EmitterChain:   c.config.ChainID,
			EmitterAddress: sender,
			Sequence:       sequence,
		}, nil
	}
	return nil, errors.Wrapf(berrors.ErrMessageNotFound, "transaction %s", tx.ID)
}

// decodeAttributes flattens event attributes. Nodes before cosmos-sdk 0.47 base64 encode them.
func decodeAttributes(attrs []eventAttribute) map[string]string {
	plain := make(map[string]string, len(attrs))
	for _, a := range attrs {
		plain[a.Key] = a.Value
	}
	if _, ok := plain["_contract_address"]; ok {
		return plain
	}

	decoded := make(map[string]string, len(attrs))
	for _, a := range attrs {
		key, err := base64.StdEncoding.DecodeString(a.Key)
		if err != nil {
			return plain
		}
		value, err := base64.StdEncoding.DecodeString(a.Value)
		if err != nil {
			return plain
		}
		decoded[string(key)] = string(value)
	}
	return decoded
}
