package evm

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
)

// Percent buffers applied on top of node suggestions.
const (
	gasLimitBufferPct  = 110
	baseFeeBufferPct   = 130
	legacyPriceBuffPct = 150
)

// contractCall is a signer-originated call to a bridge contract.
type contractCall struct {
	from  common.Address
	to    common.Address
	value *big.Int
	data  []byte
}

func (c contractCall) msg() ethereum.CallMsg {
	return ethereum.CallMsg{From: c.from, To: &c.to, Value: c.value, Data: c.data}
}

// feeQuote is the fee part of a transaction. Legacy chains only set gasPrice.
type feeQuote struct {
	gasPrice  *big.Int
	feeCap    *big.Int
	tipCap    *big.Int
	isDynamic bool
}

func scalePct(v *big.Int, pct int64) *big.Int {
	out := new(big.Int).Mul(v, big.NewInt(pct))
	return out.Div(out, big.NewInt(100))
}

// gasLimit simulates call and pads the estimate. Reverts of the simulated call surface here,
// before anything is signed.
func (e *evm) gasLimit(ctx context.Context, call contractCall) (uint64, error) {
	client, err := e.getClient()
	if err != nil {
		return 0, err
	}
	estimated, err := client.EstimateGas(ctx, call.msg())
	if err != nil {
		e.log().WithError(err).WithField("to", call.to.Hex()).Warn("Failed to estimate gas")
		return 0, errors.Wrap(err, "failed to estimate gas")
	}
	return estimated * gasLimitBufferPct / 100, nil
}

// quoteFees prices a transaction according to the configured tx type.
func (e *evm) quoteFees(ctx context.Context) (*feeQuote, error) {
	client, err := e.getClient()
	if err != nil {
		return nil, err
	}

	if e.config.TxType != TxTypeEIP1559 {
		price, err := client.SuggestGasPrice(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "failed to get gas price")
		}
		return &feeQuote{gasPrice: scalePct(price, legacyPriceBuffPct)}, nil
	}

	tip, err := client.SuggestGasTipCap(ctx)
	if err != nil {
		e.log().WithError(err).Warn("Failed to get suggested gas tip")
		tip = nil
	}
	if tip == nil || tip.Sign() == 0 {
		tip = big.NewInt(1)
	}

	head, err := client.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get latest header")
	}
	if head.BaseFee == nil {
		return nil, errors.New("latest header has no base fee")
	}

	return &feeQuote{
		feeCap:    new(big.Int).Add(scalePct(head.BaseFee, baseFeeBufferPct), tip),
		tipCap:    tip,
		isDynamic: true,
	}, nil
}

// unsignedTx assembles call into a transaction of the fee quote's type.
func (e *evm) unsignedTx(call contractCall, nonce, gas uint64, fees *feeQuote) *ethtypes.Transaction {
	if fees.isDynamic {
		return ethtypes.NewTx(&ethtypes.DynamicFeeTx{
			ChainID:   new(big.Int).SetUint64(e.config.NativeChainID),
			Nonce:     nonce,
			GasTipCap: fees.tipCap,
			GasFeeCap: fees.feeCap,
			Gas:       gas,
			To:        &call.to,
			Value:     call.value,
			Data:      call.data,
		})
	}
	return ethtypes.NewTx(&ethtypes.LegacyTx{
		Nonce:    nonce,
		GasPrice: fees.gasPrice,
		Gas:      gas,
		To:       &call.to,
		Value:    call.value,
		Data:     call.data,
	})
}
