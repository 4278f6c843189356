package move

import (
	"context"
	"encoding/hex"
	"strings"

	"github.com/ClipFinance/bridge-lib/chains/restclient"
	berrors "github.com/ClipFinance/bridge-lib/common/errors"
	"github.com/ClipFinance/bridge-lib/common/types"
	"github.com/ClipFinance/bridge-lib/vaa"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/sha3"
)

// deriveResourceAccountScheme is the Aptos address scheme byte of resource accounts.
const deriveResourceAccountScheme = 0xff

// consumedAbortCodes are the aborts raised when a VAA was consumed already.
var consumedAbortCodes = []string{"E_VAA_ALREADY_CONSUMED", "EALREADY_EXISTS", "EAlreadyConsumed"}

type aptosState struct {
	Data struct {
		ConsumedVAAs struct {
			Elems struct {
				Handle string `json:"handle"`
			} `json:"elems"`
		} `json:"consumed_vaas"`
	} `json:"data"`
}

// SubmitRedeem submits submit_vaa_and_register_entry on Aptos or authorize_transfer on Sui.
//
// Parameters:
// - ctx: the context for managing the request.
// - targetAddress: the recipient, informational; payouts go to the VAA recipient.
// - attestation: the signed VAA.
//
// Returns:
// - *types.ChainTx: the redemption transaction.
// - error: ErrAlreadyRedeemed when the call aborted on a consumed VAA, ErrNotImplemented when the
//   coin type needs a resolver and none is configured.
func (m *move) SubmitRedeem(ctx context.Context, targetAddress string, attestation []byte) (*types.ChainTx, error) {
	if m.submitter == nil {
		return nil, berrors.ErrSignerNotSet
	}
	parsed, err := vaa.Parse(attestation)
	if err != nil {
		return nil, err
	}
	transfer, err := vaa.DecodeTokenTransfer(parsed.Payload)
	if err != nil {
		return nil, err
	}
	coinType, err := m.coinType(ctx, transfer.TokenChain, transfer.TokenAddress)
	if err != nil {
		return nil, err
	}

	module, name := "complete_transfer", "submit_vaa_and_register_entry"
	if m.isSui() {
		name = "authorize_transfer"
	}
	call := &EntryFunctionCall{
		Function:      m.function(m.config.TokenBridgeAddress, module, name),
		TypeArguments: []string{coinType},
		Arguments:     []interface{}{"0x" + hex.EncodeToString(attestation)},
	}

	log := m.log().WithFields(logrus.Fields{
		"message_id": parsed.MessageID().String(),
		"coin_type":  coinType,
		"target":     targetAddress,
	})
	tx, err := m.submitter.Submit(ctx, call)
	if err != nil {
		if isConsumedAbort(err) {
			log.Info("Transfer already completed")
			return nil, errors.Wrap(berrors.ErrAlreadyRedeemed, err.Error())
		}
		log.WithError(err).Error("Redeem failed")
		return nil, err
	}
	log.WithField("tx", tx.ID).Info("Transfer redeemed")
	return tx, nil
}

// IsRedeemed looks the VAA digest up in the consumed VAA table of the Aptos token bridge.
func (m *move) IsRedeemed(ctx context.Context, attestation []byte) (bool, error) {
	if m.isSui() {
		return false, errors.Wrap(berrors.ErrNotImplemented, "redemption lookup on sui")
	}
	parsed, err := vaa.Parse(attestation)
	if err != nil {
		return false, err
	}

	var state aptosState
	tb := m.config.TokenBridgeAddress
	if err := m.node.Get(ctx, "/v1/accounts/"+tb+"/resource/"+m.function(tb, "state", "State"), nil, &state); err != nil {
		return false, errors.Wrap(err, "failed to get token bridge state")
	}
	handle := state.Data.ConsumedVAAs.Elems.Handle
	if handle == "" {
		return false, errors.New("token bridge state has no consumed vaa table")
	}

	err = m.node.Post(ctx, "/v1/tables/"+handle+"/item", map[string]string{
		"key_type":   "vector<u8>",
		"value_type": m.function(m.config.CoreBridgeAddress, "set", "Unit"),
		"key":        parsed.Digest().Hex(),
	}, nil)
	if restclient.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "consumed vaa lookup failed")
	}
	return true, nil
}

// coinType returns the coin type of a bridged asset. Aptos wrapped coins live in a resource account
// of the token bridge derived from the origin chain and address; everything else is resolved.
func (m *move) coinType(ctx context.Context, tokenChain types.ChainID, tokenAddress [32]byte) (string, error) {
	if !m.isSui() && tokenChain != types.ChainIDAptos {
		addr, err := wrappedCoinAccount(m.config.TokenBridgeAddress, tokenChain, tokenAddress)
		if err != nil {
			return "", err
		}
		return addr + "::coin::T", nil
	}
	if m.resolver == nil {
		return "", errors.Wrapf(berrors.ErrNotImplemented, "coin type of %s asset needs a resolver", tokenChain)
	}
	return m.resolver.CoinType(ctx, tokenChain, tokenAddress)
}

// wrappedCoinAccount derives the resource account sha3_256(creator | chain | address | 0xff).
func wrappedCoinAccount(tokenBridge string, tokenChain types.ChainID, tokenAddress [32]byte) (string, error) {
	creator, err := hex.DecodeString(types.NormalizeEmitterAddress(tokenBridge))
	if err != nil {
		return "", errors.Wrapf(berrors.ErrInvalidConfig, "token bridge address %q: %v", tokenBridge, err)
	}
	seed := make([]byte, 0, len(creator)+2+32+1)
	seed = append(seed, creator...)
	seed = append(seed, byte(tokenChain>>8), byte(tokenChain))
	seed = append(seed, tokenAddress[:]...)
	seed = append(seed, deriveResourceAccountScheme)
	sum := sha3.Sum256(seed)
	return "0x" + hex.EncodeToString(sum[:]), nil
}

func isConsumedAbort(err error) bool {
	msg := err.Error()
	for _, code := range consumedAbortCodes {
		if strings.Contains(msg, code) {
			return true
		}
	}
	return false
}
