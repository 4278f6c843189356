package evm

import (
	"context"
	"math/big"

	berrors "github.com/ClipFinance/bridge-lib/common/errors"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// sendContractCall builds, signs and broadcasts a call to a contract and waits for its receipt.
//
// Parameters:
// - ctx: the context for managing the request.
// - to: the called contract.
// - value: the native value sent with the call.
// - data: the call data.
//
// Returns:
// - *ethtypes.Receipt: the receipt of the included transaction.
// - error: ErrTransactionFailed when the transaction reverted, the estimation or broadcast error otherwise.
func (e *evm) sendContractCall(ctx context.Context, to common.Address, value *big.Int, data []byte) (*ethtypes.Receipt, error) {
	s := e.getSigner()
	if s == nil {
		return nil, berrors.ErrSignerNotSet
	}
	client, err := e.getClient()
	if err != nil {
		return nil, err
	}

	nonce, err := client.PendingNonceAt(ctx, s.Address())
	if err != nil {
		return nil, errors.Wrap(err, "failed to get nonce")
	}

	tx, err := e.prepareTransaction(ctx, contractCall{from: s.Address(), to: to, value: value, data: data}, nonce)
	if err != nil {
		return nil, err
	}

	signedTx, err := s.SignTx(tx, new(big.Int).SetUint64(e.config.NativeChainID))
	if err != nil {
		e.log().WithError(err).Error("Failed to sign transaction")
		return nil, errors.Wrap(err, "failed to sign transaction")
	}

	if err = client.SendTransaction(ctx, signedTx); err != nil {
		e.log().WithError(err).Error("Failed to send transaction")
		return nil, errors.Wrap(err, "failed to send transaction")
	}

	log := e.log().WithFields(logrus.Fields{
		"tx_hash": signedTx.Hash().Hex(),
		"to":      to.Hex(),
		"nonce":   nonce,
	})
	log.Info("Transaction sent")

	receipt, err := e.waitReceipt(ctx, signedTx.Hash())
	if err != nil {
		return nil, err
	}
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		log.WithField("block", receipt.BlockNumber).Warn("Transaction reverted")
		return receipt, errors.Wrapf(berrors.ErrTransactionFailed, "tx %s", signedTx.Hash().Hex())
	}
	return receipt, nil
}

// prepareTransaction estimates and prices call, returning an unsigned transaction.
func (e *evm) prepareTransaction(ctx context.Context, call contractCall, nonce uint64) (*ethtypes.Transaction, error) {
	gas, err := e.gasLimit(ctx, call)
	if err != nil {
		return nil, err
	}
	fees, err := e.quoteFees(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to price transaction")
	}
	return e.unsignedTx(call, nonce, gas, fees), nil
}

// call executes a read-only contract call against the latest block.
func (e *evm) call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	client, err := e.getClient()
	if err != nil {
		return nil, err
	}
	return client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
}
