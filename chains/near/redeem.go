package near

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"strings"

	berrors "github.com/ClipFinance/bridge-lib/common/errors"
	"github.com/ClipFinance/bridge-lib/common/types"
	"github.com/ClipFinance/bridge-lib/vaa"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// redeemDeposit covers the storage of the consumed VAA record, in yoctoNEAR.
const redeemDeposit = "100000000000000000000000"

// alreadyExecuted is the token bridge panic of a consumed VAA.
const alreadyExecuted = "AlreadyExecuted"

// callFunctionResult carries the returned bytes as a JSON array of numbers.
type callFunctionResult struct {
	Result []int `json:"result"`
}

// SubmitRedeem calls submit_vaa on the token bridge.
//
// Parameters:
// - ctx: the context for managing the request.
// - targetAddress: the recipient, informational; payouts go to the VAA recipient.
// - attestation: the signed VAA.
//
// Returns:
// - *types.ChainTx: the redemption transaction.
// - error: ErrAlreadyRedeemed when the contract reports an executed VAA.
func (n *near) SubmitRedeem(ctx context.Context, targetAddress string, attestation []byte) (*types.ChainTx, error) {
	if n.submitter == nil {
		return nil, berrors.ErrSignerNotSet
	}
	parsed, err := vaa.Parse(attestation)
	if err != nil {
		return nil, err
	}
	args, err := json.Marshal(map[string]string{"vaa": hex.EncodeToString(attestation)})
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode submit_vaa")
	}

	log := n.log().WithFields(logrus.Fields{
		"message_id": parsed.MessageID().String(),
		"target":     targetAddress,
	})
	tx, err := n.submit(ctx, &FunctionCall{
		Receiver: n.config.TokenBridgeAddress,
		Method:   "submit_vaa",
		Args:     args,
		Gas:      defaultGas,
		Deposit:  redeemDeposit,
	})
	if err != nil {
		if strings.Contains(err.Error(), alreadyExecuted) {
			log.Info("Transfer already completed")
			return nil, errors.Wrap(berrors.ErrAlreadyRedeemed, err.Error())
		}
		log.WithError(err).Error("Redeem failed")
		return nil, err
	}
	log.WithField("tx", tx.ID).Info("Transfer redeemed")
	return tx, nil
}

// IsRedeemed calls the is_transfer_completed view function of the token bridge.
func (n *near) IsRedeemed(ctx context.Context, attestation []byte) (bool, error) {
	if _, err := vaa.Parse(attestation); err != nil {
		return false, err
	}
	args, err := json.Marshal(map[string]string{"vaa": hex.EncodeToString(attestation)})
	if err != nil {
		return false, errors.Wrap(err, "failed to encode query")
	}

	var res callFunctionResult
	err = n.rpc.Call(ctx, "query", map[string]string{
		"request_type": "call_function",
		"finality":     "final",
		"account_id":   n.config.TokenBridgeAddress,
		"method_name":  "is_transfer_completed",
		"args_base64":  base64.StdEncoding.EncodeToString(args),
	}, &res)
	if err != nil {
		return false, errors.Wrap(err, "is_transfer_completed query failed")
	}
	raw := make([]byte, len(res.Result))
	for i, b := range res.Result {
		raw[i] = byte(b)
	}
	return decodeCompleted(raw)
}

// decodeCompleted accepts a bare bool or a (bool, ...) tuple.
func decodeCompleted(raw []byte) (bool, error) {
	var done bool
	if err := json.Unmarshal(raw, &done); err == nil {
		return done, nil
	}
	var tuple []json.RawMessage
	if err := json.Unmarshal(raw, &tuple); err != nil || len(tuple) == 0 {
		return false, errors.Errorf("unexpected is_transfer_completed result %s", raw)
	}
	if err := json.Unmarshal(tuple[0], &done); err != nil {
		return false, errors.Wrapf(err, "unexpected is_transfer_completed result %s", raw)
	}
	return done, nil
}
