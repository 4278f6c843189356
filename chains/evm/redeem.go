package evm

import (
	"context"
	"math/big"
	"strings"

	berrors "github.com/ClipFinance/bridge-lib/common/errors"
	"github.com/ClipFinance/bridge-lib/common/types"
	"github.com/ClipFinance/bridge-lib/vaa"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// alreadyCompletedReason is the token bridge revert reason of a duplicate redemption.
const alreadyCompletedReason = "transfer already completed"

// SubmitRedeem completes the transfer on the token bridge. Transfers of this chain's wrapped native
// token are completed with completeTransferAndUnwrapETH so the recipient receives native currency.
//
// Parameters:
// - ctx: the context for managing the request.
// - targetAddress: the recipient, the configured signer pays for the transaction.
// - attestation: the signed VAA.
//
// Returns:
// - *types.ChainTx: the redemption transaction.
// - error: ErrAlreadyRedeemed when the bridge reports a prior completion, the send error otherwise.
func (e *evm) SubmitRedeem(ctx context.Context, targetAddress string, attestation []byte) (*types.ChainTx, error) {
	parsed, err := vaa.Parse(attestation)
	if err != nil {
		return nil, err
	}

	method := "completeTransfer"
	if transfer, err := vaa.DecodeTokenTransfer(parsed.Payload); err == nil && e.isLocalWrappedNative(transfer) {
		method = "completeTransferAndUnwrapETH"
	}
	data, err := tokenBridgeABI.Pack(method, attestation)
	if err != nil {
		return nil, errors.Wrap(err, "failed to pack redeem data")
	}

	log := e.log().WithFields(logrus.Fields{
		"message_id": parsed.MessageID().String(),
		"target":     targetAddress,
		"method":     method,
	})

	receipt, err := e.sendContractCall(ctx, e.tokenBridge, big.NewInt(0), data)
	if err != nil {
		if isAlreadyCompleted(err) {
			log.Info("Transfer already completed")
			return nil, errors.Wrap(berrors.ErrAlreadyRedeemed, err.Error())
		}
		if errors.Is(err, berrors.ErrTransactionFailed) {
			// a concurrent redemption can land between estimation and inclusion
			if done, rerr := e.isTransferCompleted(ctx, parsed.Digest()); rerr == nil && done {
				log.Info("Transfer completed by another transaction")
				return nil, errors.Wrap(berrors.ErrAlreadyRedeemed, err.Error())
			}
		}
		log.WithError(err).Error("Redeem failed")
		return nil, err
	}

	log.WithField("tx_hash", receipt.TxHash.Hex()).Info("Transfer redeemed")
	return &types.ChainTx{ID: receipt.TxHash.Hex(), BlockRef: receipt.BlockNumber.Uint64()}, nil
}

// IsRedeemed asks the token bridge whether the VAA digest was completed.
func (e *evm) IsRedeemed(ctx context.Context, attestation []byte) (bool, error) {
	parsed, err := vaa.Parse(attestation)
	if err != nil {
		return false, err
	}
	return e.isTransferCompleted(ctx, parsed.Digest())
}

func (e *evm) isTransferCompleted(ctx context.Context, digest common.Hash) (bool, error) {
	data, err := tokenBridgeABI.Pack("isTransferCompleted", [32]byte(digest))
	if err != nil {
		return false, errors.Wrap(err, "failed to pack isTransferCompleted")
	}
	res, err := e.call(ctx, e.tokenBridge, data)
	if err != nil {
		return false, errors.Wrap(err, "failed to call isTransferCompleted")
	}
	out, err := tokenBridgeABI.Unpack("isTransferCompleted", res)
	if err != nil {
		return false, errors.Wrap(err, "failed to decode isTransferCompleted")
	}
	if len(out) != 1 {
		return false, errors.New("unexpected isTransferCompleted result")
	}
	done, ok := out[0].(bool)
	if !ok {
		return false, errors.New("unexpected isTransferCompleted result type")
	}
	return done, nil
}

func (e *evm) isLocalWrappedNative(t *vaa.TokenTransfer) bool {
	return t.TokenChain == e.config.ChainID && e.isWrappedNative(common.BytesToAddress(t.TokenAddress[:]))
}

func isAlreadyCompleted(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), alreadyCompletedReason)
}
