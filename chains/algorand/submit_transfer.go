package algorand

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"strconv"

	berrors "github.com/ClipFinance/bridge-lib/common/errors"
	"github.com/ClipFinance/bridge-lib/common/types"
	"github.com/ClipFinance/bridge-lib/vaa"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// SubmitTransfer sends the token bridge transfer group through the executor. TokenAddress is the
// decimal asset id, "0" for ALGO.
//
// Parameters:
// - ctx: the context for managing the request.
// - record: the transfer record.
//
// Returns:
// - *types.ChainTx: the token bridge transaction of the group.
// - error: ErrInvalidTransfer for malformed records, the executor error otherwise.
func (a *algorand) SubmitTransfer(ctx context.Context, record *types.TransferRecord) (*types.ChainTx, error) {
	if a.executor == nil {
		return nil, berrors.ErrSignerNotSet
	}
	assetID, err := strconv.ParseUint(record.TokenAddress, 10, 64)
	if err != nil {
		return nil, errors.Wrapf(berrors.ErrInvalidTransfer, "asset id %q", record.TokenAddress)
	}
	if record.AmountRaw == nil || record.AmountRaw.Sign() <= 0 || !record.AmountRaw.IsUint64() {
		return nil, errors.Wrap(berrors.ErrInvalidTransfer, "amount must be a positive u64")
	}
	if !record.RelayerFee().IsUint64() {
		return nil, errors.Wrap(berrors.ErrInvalidTransfer, "relayer fee must be a u64")
	}
	recipient, err := vaa.AddressFromHex(record.TargetAddress)
	if err != nil {
		return nil, errors.Wrapf(berrors.ErrInvalidTransfer, "target address: %v", err)
	}

	req := &TransferRequest{
		TokenBridgeAppID: a.tokenBridge,
		AssetID:          assetID,
		Amount:           record.AmountRaw.Uint64(),
		Fee:              record.RelayerFee().Uint64(),
		TargetChain:      record.TargetChain,
		Recipient:        recipient,
		Nonce:            messageNonce(record.ID),
	}

	log := a.log().WithFields(logrus.Fields{
		"transfer_id":  record.ID,
		"asset_id":     assetID,
		"amount":       req.Amount,
		"target_chain": record.TargetChain.String(),
	})
	tx, err := a.executor.Transfer(ctx, req)
	if err != nil {
		log.WithError(err).Error("Transfer failed")
		return nil, err
	}
	log.WithField("tx", tx.ID).Info("Transfer submitted")
	return tx, nil
}

// messageNonce derives the batch nonce of the published message from the record id.
func messageNonce(id string) uint32 {
	sum := sha256.Sum256([]byte(id))
	return binary.BigEndian.Uint32(sum[:4])
}
