package move

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	berrors "github.com/ClipFinance/bridge-lib/common/errors"
	"github.com/ClipFinance/bridge-lib/common/types"
	"github.com/pattonkan/sui-go/sui"
	"github.com/pattonkan/sui-go/suiclient"
	"github.com/pkg/errors"
)

// suiReader is the part of the Sui JSON-RPC client the adapter reads transactions with.
type suiReader interface {
	GetTransactionBlock(ctx context.Context, req *suiclient.GetTransactionBlockRequest) (*suiclient.SuiTransactionBlockResponse, error)
}

type wormholeMessage struct {
	Sender   string `json:"sender"`
	Sequence string `json:"sequence"`
}

func (m *move) parseSui(ctx context.Context, digest string) (*types.MessageID, error) {
	txDigest, err := sui.NewDigest(digest)
	if err != nil {
		return nil, errors.Wrapf(berrors.ErrInvalidTransfer, "invalid transaction digest %q", digest)
	}

	resp, err := m.sui.GetTransactionBlock(ctx, &suiclient.GetTransactionBlockRequest{
		Digest:  txDigest,
		Options: &suiclient.SuiTransactionBlockResponseOptions{ShowEffects: true, ShowEvents: true},
	})
	if err != nil && strings.Contains(err.Error(), "Could not find") {
		return nil, errors.Wrapf(berrors.ErrMessageNotFound, "transaction %s: %v", digest, err)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}
	if resp.Effects == nil || !resp.Effects.Data.IsSuccess() {
		return nil, errors.Wrapf(berrors.ErrTransactionFailed, "transaction %s: %v", digest, resp.Errors)
	}

	for _, event := range resp.Events {
		if event == nil || event.Type == nil || !m.isCoreMessageEvent(fmt.Sprint(event.Type)) {
			continue
		}
		msg, err := decodeWormholeMessage(event.ParsedJson)
		if err != nil {
			m.log().WithError(err).WithField("digest", digest).Warn("Skipping malformed WormholeMessage event")
			continue
		}
		emitter := types.NormalizeEmitterAddress(msg.Sender)
		if !m.isTokenBridgeEmitter(emitter) {
			continue
		}
		return m.messageID(emitter, msg.Sequence)
	}
	return nil, errors.Wrapf(berrors.ErrMessageNotFound, "transaction %s", digest)
}

// isCoreMessageEvent matches "<core>::publish_message::WormholeMessage". The node may print the
// package address without leading zeros.
func (m *move) isCoreMessageEvent(eventType string) bool {
	parts := strings.Split(eventType, "::")
	if len(parts) != 3 || parts[1] != "publish_message" || parts[2] != "WormholeMessage" {
		return false
	}
	return types.NormalizeEmitterAddress(parts[0]) == types.NormalizeEmitterAddress(m.config.CoreBridgeAddress)
}

func decodeWormholeMessage(parsed interface{}) (*wormholeMessage, error) {
	raw, err := json.Marshal(parsed)
	if err != nil {
		return nil, errors.Wrap(err, "encode event")
	}
	var msg wormholeMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, errors.Wrap(err, "decode event")
	}
	if msg.Sender == "" || msg.Sequence == "" {
		return nil, errors.New("event has no sender or sequence")
	}
	return &msg, nil
}
