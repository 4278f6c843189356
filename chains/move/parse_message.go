package move

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/ClipFinance/bridge-lib/chains/restclient"
	berrors "github.com/ClipFinance/bridge-lib/common/errors"
	"github.com/ClipFinance/bridge-lib/common/types"
	"github.com/pkg/errors"
)

type aptosTransaction struct {
	Type     string `json:"type"`
	Version  string `json:"version"`
	Success  bool   `json:"success"`
	VMStatus string `json:"vm_status"`
	Events   []struct {
		Type string `json:"type"`
		Data struct {
			Sender   string `json:"sender"`
			Sequence string `json:"sequence"`
		} `json:"data"`
	} `json:"events"`
}

// ParseMessageID reads the WormholeMessage event of the core bridge from the transaction.
//
// Parameters:
// - ctx: the context for managing the request.
// - tx: the transfer transaction, ID is the Aptos hash or the Sui digest.
//
// Returns:
// - *types.MessageID: the emitter and the sequence.
// - error: ErrMessageNotFound when the transaction is unknown or has no bridge message,
//   ErrTransactionFailed when it aborted.
func (m *move) ParseMessageID(ctx context.Context, tx *types.ChainTx) (*types.MessageID, error) {
	if tx == nil || tx.ID == "" {
		return nil, errors.Wrap(berrors.ErrInvalidTransfer, "missing source transaction")
	}
	if m.isSui() {
		return m.parseSui(ctx, tx.ID)
	}
	return m.parseAptos(ctx, tx.ID)
}

func (m *move) parseAptos(ctx context.Context, hash string) (*types.MessageID, error) {
	var tx aptosTransaction
	err := m.node.Get(ctx, "/v1/transactions/by_hash/"+url.PathEscape(hash), nil, &tx)
	if restclient.IsNotFound(err) {
		return nil, errors.Wrapf(berrors.ErrMessageNotFound, "transaction %s not found", hash)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}
	if tx.Type == "pending_transaction" {
		return nil, errors.Wrapf(berrors.ErrMessageNotFound, "transaction %s is pending", hash)
	}
	if !tx.Success {
		return nil, errors.Wrapf(berrors.ErrTransactionFailed, "transaction %s: %s", hash, tx.VMStatus)
	}

	eventType := m.function(m.config.CoreBridgeAddress, "state", "WormholeMessage")
	for _, event := range tx.Events {
		if event.Type != eventType {
			continue
		}
		emitter, err := aptosEmitter(event.Data.Sender)
		if err != nil {
			return nil, err
		}
		if !m.isTokenBridgeEmitter(emitter) {
			continue
		}
		return m.messageID(emitter, event.Data.Sequence)
	}
	return nil, errors.Wrapf(berrors.ErrMessageNotFound, "transaction %s", hash)
}

// isTokenBridgeEmitter filters messages of other emitters when the token bridge emitter is configured.
func (m *move) isTokenBridgeEmitter(emitter string) bool {
	return m.config.EmitterAddress == "" || types.NormalizeEmitterAddress(m.config.EmitterAddress) == emitter
}

func (m *move) messageID(emitter, sequence string) (*types.MessageID, error) {
	if _, err := strconv.ParseUint(sequence, 10, 64); err != nil {
		return nil, errors.Wrapf(err, "invalid sequence %q", sequence)
	}
	return &types.MessageID{EmitterChain: m.config.ChainID, EmitterAddress: emitter, Sequence: sequence}, nil
}

// aptosEmitter formats the u64 emitter capability id of an Aptos message as a 32-byte address.
func aptosEmitter(sender string) (string, error) {
	id, err := strconv.ParseUint(sender, 10, 64)
	if err != nil {
		return "", errors.Wrapf(err, "invalid emitter %q", sender)
	}
	return fmt.Sprintf("%064x", id), nil
}
