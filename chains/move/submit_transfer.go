package move

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"strconv"

	berrors "github.com/ClipFinance/bridge-lib/common/errors"
	"github.com/ClipFinance/bridge-lib/common/types"
	"github.com/ClipFinance/bridge-lib/vaa"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// SubmitTransfer submits transfer_tokens_entry on Aptos or prepare_transfer on Sui. TokenAddress
// is the coin type of the transferred asset.
//
// Parameters:
// - ctx: the context for managing the request.
// - record: the transfer record.
//
// Returns:
// - *types.ChainTx: the submitted transaction.
// - error: ErrInvalidTransfer for malformed records, the submitter error otherwise.
func (m *move) SubmitTransfer(ctx context.Context, record *types.TransferRecord) (*types.ChainTx, error) {
	if m.submitter == nil {
		return nil, berrors.ErrSignerNotSet
	}
	if record.TokenAddress == "" {
		return nil, errors.Wrap(berrors.ErrInvalidTransfer, "missing coin type")
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

	module, name := "transfer_tokens", "transfer_tokens_entry"
	if m.isSui() {
		name = "prepare_transfer"
	}
	call := &EntryFunctionCall{
		Function:      m.function(m.config.TokenBridgeAddress, module, name),
		TypeArguments: []string{record.TokenAddress},
		Arguments: []interface{}{
			record.AmountRaw.String(),
			strconv.FormatUint(uint64(record.TargetChain), 10),
			"0x" + hex.EncodeToString(recipient[:]),
			record.RelayerFee().String(),
			strconv.FormatUint(uint64(messageNonce(record.ID)), 10),
		},
	}

	log := m.log().WithFields(logrus.Fields{
		"transfer_id":  record.ID,
		"coin_type":    record.TokenAddress,
		"amount":       record.AmountRaw.String(),
		"target_chain": record.TargetChain.String(),
	})
	tx, err := m.submitter.Submit(ctx, call)
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
