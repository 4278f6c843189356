// Package amount converts token amounts between chain-native precision and the 8-decimal wire
// precision used in bridge messages.
package amount

import (
	"math/big"

	berrors "github.com/ClipFinance/bridge-lib/common/errors"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	// WireDecimals is the fixed precision of amounts carried in bridge messages.
	WireDecimals = 8
	// MaxDecimals is the largest precision a chain-native token may declare.
	MaxDecimals = 255
)

// Normalized is the result of normalizing a transfer amount.
//
// Fields:
// - Wire: the net amount (amount minus fee) in wire units.
// - FeeWire: the relayer fee in wire units.
// - Dust: the source-native remainder of amount and fee lost to truncation.
type Normalized struct {
	Wire    *big.Int
	FeeWire *big.Int
	Dust    *big.Int
}

// ToWire truncates a chain-native amount to wire precision: floor(raw / 10^max(decimals-8, 0)).
func ToWire(amountRaw *big.Int, decimals int) (*big.Int, error) {
	scale, err := scaleFor(decimals)
	if err != nil {
		return nil, err
	}
	if err := checkAmount(amountRaw); err != nil {
		return nil, err
	}
	return new(big.Int).Quo(amountRaw, scale), nil
}

// FromWire expands a wire amount to chain-native precision. It is not an inverse of ToWire when
// decimals > 8: FromWire(ToWire(x)) <= x.
func FromWire(amountNormalized *big.Int, decimals int) (*big.Int, error) {
	scale, err := scaleFor(decimals)
	if err != nil {
		return nil, err
	}
	if err := checkAmount(amountNormalized); err != nil {
		return nil, err
	}
	return new(big.Int).Mul(amountNormalized, scale), nil
}

// Dust returns the chain-native remainder that ToWire discards.
func Dust(amountRaw *big.Int, decimals int) (*big.Int, error) {
	scale, err := scaleFor(decimals)
	if err != nil {
		return nil, err
	}
	if err := checkAmount(amountRaw); err != nil {
		return nil, err
	}
	return new(big.Int).Rem(amountRaw, scale), nil
}

// Normalize subtracts the relayer fee from the amount and truncates both to wire precision.
// A nil fee is treated as zero.
//
// Parameters:
// - amountRaw: the amount in chain-native units.
// - relayerFeeRaw: the relayer fee in chain-native units, must not exceed amountRaw.
// - decimals: the chain-native precision of the token.
//
// Returns:
// - *Normalized: the wire amounts and the truncated remainder.
// - error: ErrInvalidDecimals, ErrNegativeAmount or ErrFeeExceedsAmount.
func Normalize(amountRaw, relayerFeeRaw *big.Int, decimals int) (*Normalized, error) {
	if relayerFeeRaw == nil {
		relayerFeeRaw = new(big.Int)
	}
	if err := checkAmount(amountRaw); err != nil {
		return nil, err
	}
	if err := checkAmount(relayerFeeRaw); err != nil {
		return nil, err
	}
	if relayerFeeRaw.Cmp(amountRaw) > 0 {
		return nil, errors.Wrapf(berrors.ErrFeeExceedsAmount, "fee %s, amount %s", relayerFeeRaw, amountRaw)
	}

	net := new(big.Int).Sub(amountRaw, relayerFeeRaw)
	wire, err := ToWire(net, decimals)
	if err != nil {
		return nil, err
	}
	feeWire, err := ToWire(relayerFeeRaw, decimals)
	if err != nil {
		return nil, err
	}
	netDust, _ := Dust(net, decimals)
	feeDust, _ := Dust(relayerFeeRaw, decimals)

	return &Normalized{
		Wire:    wire,
		FeeWire: feeWire,
		Dust:    netDust.Add(netDust, feeDust),
	}, nil
}

// Format renders a chain-native amount as a decimal string in whole-token units, e.g. "2.5".
func Format(amountRaw *big.Int, decimals int) string {
	if amountRaw == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amountRaw, int32(-decimals)).String()
}

// FormatWire renders a wire amount in whole-token units.
func FormatWire(amountNormalized *big.Int) string {
	return Format(amountNormalized, WireDecimals)
}

func scaleFor(decimals int) (*big.Int, error) {
	if decimals < 0 || decimals > MaxDecimals {
		return nil, errors.Wrapf(berrors.ErrInvalidDecimals, "decimals %d", decimals)
	}
	if decimals <= WireDecimals {
		return big.NewInt(1), nil
	}
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals-WireDecimals)), nil), nil
}

func checkAmount(v *big.Int) error {
	if v == nil || v.Sign() < 0 {
		return berrors.ErrNegativeAmount
	}
	return nil
}
