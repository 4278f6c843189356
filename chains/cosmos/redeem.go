package cosmos

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"

	berrors "github.com/ClipFinance/bridge-lib/common/errors"
	"github.com/ClipFinance/bridge-lib/common/types"
	"github.com/ClipFinance/bridge-lib/vaa"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// vaaAlreadyExecuted is the token bridge contract error of a consumed VAA.
const vaaAlreadyExecuted = "VaaAlreadyExecuted"

type isVAARedeemedResponse struct {
	Data struct {
		IsRedeem bool `json:"is_redeem"`
	} `json:"data"`
}

// SubmitRedeem broadcasts submit_vaa on the token bridge.
//
// Parameters:
// - ctx: the context for managing the request.
// - targetAddress: the recipient, informational; the contract pays out to the VAA recipient.
// - attestation: the signed VAA.
//
// Returns:
// - *types.ChainTx: the redemption transaction.
// - error: ErrAlreadyRedeemed when the contract reports an executed VAA.
func (c *cosmos) SubmitRedeem(ctx context.Context, targetAddress string, attestation []byte) (*types.ChainTx, error) {
	if c.broadcaster == nil {
		return nil, berrors.ErrSignerNotSet
	}
	parsed, err := vaa.Parse(attestation)
	if err != nil {
		return nil, err
	}

	msg, err := executeMsg(c.config.TokenBridgeAddress, "submit_vaa", map[string]string{
		"data": base64.StdEncoding.EncodeToString(attestation),
	}, nil)
	if err != nil {
		return nil, err
	}

	log := c.log().WithFields(logrus.Fields{
		"message_id": parsed.MessageID().String(),
		"target":     targetAddress,
	})
	tx, err := c.broadcaster.Broadcast(ctx, []ExecuteMsg{msg})
	if err != nil {
		if strings.Contains(err.Error(), vaaAlreadyExecuted) {
			log.Info("Transfer already completed")
			return nil, errors.Wrap(berrors.ErrAlreadyRedeemed, err.Error())
		}
		log.WithError(err).Error("Redeem failed")
		return nil, err
	}
	log.WithField("tx", tx.ID).Info("Transfer redeemed")
	return tx, nil
}

// IsRedeemed runs the is_vaa_redeemed smart query of the token bridge.
func (c *cosmos) IsRedeemed(ctx context.Context, attestation []byte) (bool, error) {
	if _, err := vaa.Parse(attestation); err != nil {
		return false, err
	}
	query, err := json.Marshal(map[string]interface{}{
		"is_vaa_redeemed": map[string]string{"vaa": base64.StdEncoding.EncodeToString(attestation)},
	})
	if err != nil {
		return false, errors.Wrap(err, "failed to encode query")
	}

	var resp isVAARedeemedResponse
	path := "/cosmwasm/wasm/v1/contract/" + c.config.TokenBridgeAddress + "/smart/" + base64.URLEncoding.EncodeToString(query)
	if err := c.lcd.Get(ctx, path, nil, &resp); err != nil {
		return false, errors.Wrap(err, "is_vaa_redeemed query failed")
	}
	return resp.Data.IsRedeem, nil
}
