package evm

import (
	"context"
	"encoding/binary"
	"math/big"

	berrors "github.com/ClipFinance/bridge-lib/common/errors"
	"github.com/ClipFinance/bridge-lib/common/types"
	"github.com/ClipFinance/bridge-lib/vaa"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// SubmitTransfer locks or burns the record's tokens in the token bridge.
//
// Transfers of the wrapped native token are sent as value through wrapAndTransferETH, other tokens
// are approved for the token bridge when needed and sent through transferTokens. The call waits for
// the receipt so that the transaction block is known.
//
// Parameters:
// - ctx: the context for managing the request.
// - record: the transfer carrying token, raw amount, target chain, recipient and relayer fee.
//
// Returns:
// - *types.ChainTx: the transfer transaction and its block number.
// - error: ErrInvalidTransfer for malformed records, ErrTransactionFailed on revert, the RPC error otherwise.
func (e *evm) SubmitTransfer(ctx context.Context, record *types.TransferRecord) (*types.ChainTx, error) {
	if e.getSigner() == nil {
		return nil, berrors.ErrSignerNotSet
	}
	if !common.IsHexAddress(record.TokenAddress) {
		return nil, errors.Wrapf(berrors.ErrInvalidTransfer, "token address %q", record.TokenAddress)
	}
	if record.AmountRaw == nil || record.AmountRaw.Sign() <= 0 {
		return nil, errors.Wrap(berrors.ErrInvalidTransfer, "amount must be positive")
	}
	recipient, err := vaa.AddressFromHex(record.TargetAddress)
	if err != nil {
		return nil, errors.Wrapf(berrors.ErrInvalidTransfer, "target address: %v", err)
	}
	fee := big.NewInt(0)
	if record.RelayerFeeRaw != nil {
		fee = record.RelayerFeeRaw
	}

	token := common.HexToAddress(record.TokenAddress)
	nonce := messageNonce(record.ID)
	log := e.log().WithFields(logrus.Fields{
		"transfer_id":  record.ID,
		"token":        token.Hex(),
		"amount":       record.AmountRaw.String(),
		"target_chain": record.TargetChain.String(),
	})

	var data []byte
	value := big.NewInt(0)
	if e.isWrappedNative(token) {
		data, err = tokenBridgeABI.Pack("wrapAndTransferETH", uint16(record.TargetChain), recipient, fee, nonce)
		value = record.AmountRaw
	} else {
		if err := e.ensureAllowance(ctx, token, record.AmountRaw); err != nil {
			return nil, err
		}
		data, err = tokenBridgeABI.Pack("transferTokens", token, record.AmountRaw, uint16(record.TargetChain), recipient, fee, nonce)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to pack transfer data")
	}

	receipt, err := e.sendContractCall(ctx, e.tokenBridge, value, data)
	if err != nil {
		log.WithError(err).Error("Transfer failed")
		return nil, err
	}

	log.WithField("tx_hash", receipt.TxHash.Hex()).Info("Transfer submitted")
	return &types.ChainTx{ID: receipt.TxHash.Hex(), BlockRef: receipt.BlockNumber.Uint64()}, nil
}

// ensureAllowance approves the token bridge for amount when the current allowance is lower.
func (e *evm) ensureAllowance(ctx context.Context, token common.Address, amount *big.Int) error {
	owner := e.getSigner().Address()
	data, err := erc20ABI.Pack("allowance", owner, e.tokenBridge)
	if err != nil {
		return errors.Wrap(err, "failed to pack allowance call")
	}
	res, err := e.call(ctx, token, data)
	if err != nil {
		return errors.Wrap(err, "failed to read allowance")
	}
	out, err := erc20ABI.Unpack("allowance", res)
	if err != nil {
		return errors.Wrap(err, "failed to decode allowance")
	}
	if len(out) != 1 {
		return errors.New("unexpected allowance result")
	}
	allowance, ok := out[0].(*big.Int)
	if !ok {
		return errors.New("unexpected allowance type")
	}
	if allowance.Cmp(amount) >= 0 {
		return nil
	}

	approve, err := erc20ABI.Pack("approve", e.tokenBridge, amount)
	if err != nil {
		return errors.Wrap(err, "failed to pack approve data")
	}
	if _, err := e.sendContractCall(ctx, token, big.NewInt(0), approve); err != nil {
		return errors.Wrap(err, "failed to approve token bridge")
	}
	e.log().WithField("token", token.Hex()).Info("Token bridge approved")
	return nil
}

func (e *evm) isWrappedNative(token common.Address) bool {
	return e.wrappedNative != (common.Address{}) && token == e.wrappedNative
}

// messageNonce derives the batch nonce of the published message from the record id.
func messageNonce(id string) uint32 {
	return binary.BigEndian.Uint32(crypto.Keccak256([]byte(id))[:4])
}
