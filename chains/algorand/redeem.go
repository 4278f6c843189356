package algorand

import (
	"context"
	"encoding/base64"
	"net/url"
	"strconv"
	"strings"

	"github.com/ClipFinance/bridge-lib/chains/restclient"
	berrors "github.com/ClipFinance/bridge-lib/common/errors"
	"github.com/ClipFinance/bridge-lib/common/types"
	"github.com/ClipFinance/bridge-lib/vaa"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Redemption bitmap layout: one logic signature account per bucket of sequences, its local state
// holds maxKeys keys of bytesPerKey bytes.
const (
	maxKeys     = 15
	bytesPerKey = 127
	bitsPerKey  = bytesPerKey * 8
	maxBits     = maxKeys * bitsPerKey
)

// alreadyRedeemedLog is the assertion failure of a completed transfer.
const alreadyRedeemedLog = "sequence already used"

type localStateResponse struct {
	AppsLocalStates []struct {
		ID       uint64 `json:"id"`
		KeyValue []struct {
			Key   string `json:"key"`
			Value struct {
				Bytes string `json:"bytes"`
				Type  int    `json:"type"`
			} `json:"value"`
		} `json:"key-value"`
	} `json:"apps-local-states"`
}

// SubmitRedeem sends the redemption group through the executor.
//
// Parameters:
// - ctx: the context for managing the request.
// - targetAddress: the recipient, informational; payouts go to the VAA recipient.
// - attestation: the signed VAA.
//
// Returns:
// - *types.ChainTx: the redemption transaction.
// - error: ErrAlreadyRedeemed when the group was rejected on a used sequence.
func (a *algorand) SubmitRedeem(ctx context.Context, targetAddress string, attestation []byte) (*types.ChainTx, error) {
	if a.executor == nil {
		return nil, berrors.ErrSignerNotSet
	}
	parsed, err := vaa.Parse(attestation)
	if err != nil {
		return nil, err
	}

	log := a.log().WithFields(logrus.Fields{
		"message_id": parsed.MessageID().String(),
		"target":     targetAddress,
	})
	tx, err := a.executor.Redeem(ctx, a.tokenBridge, attestation)
	if err != nil {
		if strings.Contains(err.Error(), alreadyRedeemedLog) {
			log.Info("Transfer already completed")
			return nil, errors.Wrap(berrors.ErrAlreadyRedeemed, err.Error())
		}
		log.WithError(err).Error("Redeem failed")
		return nil, err
	}
	log.WithField("tx", tx.ID).Info("Transfer redeemed")
	return tx, nil
}

// IsRedeemed reads the bit of the VAA sequence from the redemption bitmap of its emitter.
func (a *algorand) IsRedeemed(ctx context.Context, attestation []byte) (bool, error) {
	if a.storage == nil {
		return false, errors.Wrap(berrors.ErrNotImplemented, "no storage resolver")
	}
	parsed, err := vaa.Parse(attestation)
	if err != nil {
		return false, err
	}

	account, err := a.storage.StorageAccount(ctx, parsed.EmitterChain, parsed.EmitterAddress, parsed.Sequence/maxBits)
	if err != nil {
		return false, errors.Wrap(err, "failed to resolve storage account")
	}

	var resp localStateResponse
	query := url.Values{"application-id": {strconv.FormatUint(a.tokenBridge, 10)}}
	err = a.indexer.Get(ctx, "/v2/accounts/"+account+"/apps-local-state", query, &resp)
	if restclient.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "failed to get storage account state")
	}

	bitmap := make([]byte, maxKeys*bytesPerKey)
	for _, state := range resp.AppsLocalStates {
		if state.ID != a.tokenBridge {
			continue
		}
		for _, kv := range state.KeyValue {
			key, err := base64.StdEncoding.DecodeString(kv.Key)
			if err != nil || len(key) != 1 || int(key[0]) >= maxKeys {
				continue
			}
			value, err := base64.StdEncoding.DecodeString(kv.Value.Bytes)
			if err != nil {
				return false, errors.Wrap(err, "failed to decode bitmap")
			}
			copy(bitmap[int(key[0])*bytesPerKey:(int(key[0])+1)*bytesPerKey], value)
		}
	}

	offset := parsed.Sequence % maxBits
	return bitmap[offset/8]&(0x80>>(offset%8)) != 0, nil
}
