package near

import (
	"context"
	"encoding/hex"
	"encoding/json"

	berrors "github.com/ClipFinance/bridge-lib/common/errors"
	"github.com/ClipFinance/bridge-lib/common/types"
	"github.com/ClipFinance/bridge-lib/vaa"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type transferMsg struct {
	Receiver string `json:"receiver"`
	Chain    uint16 `json:"chain"`
	Fee      string `json:"fee"`
	Payload  string `json:"payload"`
}

// SubmitTransfer calls send_transfer_near with the amount attached for NEAR, and ft_transfer_call
// on the token contract with the token bridge as receiver for fungible tokens.
//
// Parameters:
// - ctx: the context for managing the request.
// - record: the transfer, TokenAddress is "near" or the token account id.
//
// Returns:
// - *types.ChainTx: the submitted transaction, ID is "<sender>:<hash>".
// - error: ErrInvalidTransfer for malformed records, the submitter error otherwise.
func (n *near) SubmitTransfer(ctx context.Context, record *types.TransferRecord) (*types.ChainTx, error) {
	if n.submitter == nil {
		return nil, berrors.ErrSignerNotSet
	}
	if record.TokenAddress == "" {
		return nil, errors.Wrap(berrors.ErrInvalidTransfer, "missing token")
	}
	if record.AmountRaw == nil || record.AmountRaw.Sign() <= 0 {
		return nil, errors.Wrap(berrors.ErrInvalidTransfer, "amount must be positive")
	}
	recipient, err := vaa.AddressFromHex(record.TargetAddress)
	if err != nil {
		return nil, errors.Wrapf(berrors.ErrInvalidTransfer, "target address: %v", err)
	}

	msg := transferMsg{
		Receiver: hex.EncodeToString(recipient[:]),
		Chain:    uint16(record.TargetChain),
		Fee:      record.RelayerFee().String(),
	}

	var call *FunctionCall
	if record.TokenAddress == nativeToken {
		args, err := json.Marshal(msg)
		if err != nil {
			return nil, errors.Wrap(err, "failed to encode transfer")
		}
		call = &FunctionCall{
			Receiver: n.config.TokenBridgeAddress,
			Method:   "send_transfer_near",
			Args:     args,
			Gas:      defaultGas,
			Deposit:  record.AmountRaw.String(),
		}
	} else {
		inner, err := json.Marshal(msg)
		if err != nil {
			return nil, errors.Wrap(err, "failed to encode transfer")
		}
		args, err := json.Marshal(map[string]string{
			"receiver_id": n.config.TokenBridgeAddress,
			"amount":      record.AmountRaw.String(),
			"msg":         string(inner),
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to encode ft_transfer_call")
		}
		call = &FunctionCall{
			Receiver: record.TokenAddress,
			Method:   "ft_transfer_call",
			Args:     args,
			Gas:      defaultGas,
			Deposit:  "1",
		}
	}

	log := n.log().WithFields(logrus.Fields{
		"transfer_id":  record.ID,
		"token":        record.TokenAddress,
		"amount":       record.AmountRaw.String(),
		"target_chain": record.TargetChain.String(),
	})
	tx, err := n.submit(ctx, call)
	if err != nil {
		log.WithError(err).Error("Transfer failed")
		return nil, err
	}
	log.WithField("tx", tx.ID).Info("Transfer submitted")
	return tx, nil
}

// submit sends the call and qualifies the transaction id with the sender.
func (n *near) submit(ctx context.Context, call *FunctionCall) (*types.ChainTx, error) {
	tx, err := n.submitter.Submit(ctx, call)
	if err != nil {
		return nil, err
	}
	out := *tx
	out.ID = n.submitter.AccountID() + ":" + tx.ID
	return &out, nil
}
