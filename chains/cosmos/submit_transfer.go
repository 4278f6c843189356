package cosmos

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"

	berrors "github.com/ClipFinance/bridge-lib/common/errors"
	"github.com/ClipFinance/bridge-lib/common/types"
	"github.com/ClipFinance/bridge-lib/vaa"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type tokenInfo struct {
	ContractAddr string `json:"contract_addr"`
}

type nativeInfo struct {
	Denom string `json:"denom"`
}

type assetInfo struct {
	Token       *tokenInfo  `json:"token,omitempty"`
	NativeToken *nativeInfo `json:"native_token,omitempty"`
}

type asset struct {
	Amount string    `json:"amount"`
	Info   assetInfo `json:"info"`
}

type initiateTransfer struct {
	Asset          asset  `json:"asset"`
	RecipientChain uint16 `json:"recipient_chain"`
	Recipient      string `json:"recipient"`
	Fee            string `json:"fee"`
	Nonce          uint32 `json:"nonce"`
}

// SubmitTransfer broadcasts initiate_transfer on the token bridge. A cw20 token is preceded by
// increase_allowance for the token bridge, a native denom by deposit_tokens with the amount attached.
//
// Parameters:
// - ctx: the context for managing the request.
// - record: the transfer, TokenAddress is a cw20 contract or a native denom.
//
// Returns:
// - *types.ChainTx: the transaction hash and height.
// - error: ErrInvalidTransfer for malformed records, the broadcaster error otherwise.
func (c *cosmos) SubmitTransfer(ctx context.Context, record *types.TransferRecord) (*types.ChainTx, error) {
	if c.broadcaster == nil {
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

	amount := record.AmountRaw.String()
	transfer := initiateTransfer{
		Asset:          asset{Amount: amount},
		RecipientChain: uint16(record.TargetChain),
		Recipient:      base64.StdEncoding.EncodeToString(recipient[:]),
		Fee:            record.RelayerFee().String(),
		Nonce:          messageNonce(record.ID),
	}

	var msgs []ExecuteMsg
	if c.isContract(record.TokenAddress) {
		transfer.Asset.Info.Token = &tokenInfo{ContractAddr: record.TokenAddress}
		allowance, err := executeMsg(record.TokenAddress, "increase_allowance", map[string]interface{}{
			"spender": c.config.TokenBridgeAddress,
			"amount":  amount,
			"expires": map[string]interface{}{"never": struct{}{}},
		}, nil)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, allowance)
	} else {
		transfer.Asset.Info.NativeToken = &nativeInfo{Denom: record.TokenAddress}
		deposit, err := executeMsg(c.config.TokenBridgeAddress, "deposit_tokens", struct{}{},
			[]Coin{{Denom: record.TokenAddress, Amount: amount}})
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, deposit)
	}

	initiate, err := executeMsg(c.config.TokenBridgeAddress, "initiate_transfer", transfer, nil)
	if err != nil {
		return nil, err
	}
	msgs = append(msgs, initiate)

	log := c.log().WithFields(logrus.Fields{
		"transfer_id":  record.ID,
		"token":        record.TokenAddress,
		"amount":       amount,
		"target_chain": record.TargetChain.String(),
	})
	tx, err := c.broadcaster.Broadcast(ctx, msgs)
	if err != nil {
		log.WithError(err).Error("Transfer failed")
		return nil, err
	}
	log.WithField("tx", tx.ID).Info("Transfer submitted")
	return tx, nil
}

// executeMsg wraps body as {"<name>": body}.
func executeMsg(contract, name string, body interface{}, funds []Coin) (ExecuteMsg, error) {
	raw, err := json.Marshal(map[string]interface{}{name: body})
	if err != nil {
		return ExecuteMsg{}, errors.Wrapf(err, "failed to encode %s", name)
	}
	return ExecuteMsg{Contract: contract, Msg: raw, Funds: funds}, nil
}

// messageNonce derives the batch nonce of the published message from the record id.
func messageNonce(id string) uint32 {
	sum := sha256.Sum256([]byte(id))
	return binary.BigEndian.Uint32(sum[:4])
}
