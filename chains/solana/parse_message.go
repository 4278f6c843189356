package solana

import (
	"context"
	"encoding/hex"
	"strings"

	berrors "github.com/ClipFinance/bridge-lib/common/errors"
	"github.com/ClipFinance/bridge-lib/common/types"
	sol "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/pkg/errors"
)

// sequenceLogPrefix precedes the sequence number in the core bridge program log.
const sequenceLogPrefix = "Program log: Sequence: "

// ParseMessageID reads the sequence logged by the core bridge during a token bridge invocation.
//
// Parameters:
// - ctx: the context for managing the request.
// - tx: the transfer transaction, ID is the base58 signature.
//
// Returns:
// - *types.MessageID: the token bridge emitter PDA and the sequence.
// - error: ErrMessageNotFound when the transaction is not available yet or holds no bridge message,
//   ErrTransactionFailed when it failed.
func (s *solana) ParseMessageID(ctx context.Context, tx *types.ChainTx) (*types.MessageID, error) {
	if tx == nil || tx.ID == "" {
		return nil, errors.Wrap(berrors.ErrInvalidTransfer, "missing source transaction")
	}
	sig, err := sol.SignatureFromBase58(tx.ID)
	if err != nil {
		return nil, errors.Wrapf(berrors.ErrInvalidTransfer, "signature %q: %v", tx.ID, err)
	}
	client, err := s.getClient()
	if err != nil {
		return nil, err
	}

	version := uint64(0)
	res, err := client.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Commitment:                     rpc.CommitmentConfirmed,
		MaxSupportedTransactionVersion: &version,
	})
	if errors.Is(err, rpc.ErrNotFound) {
		return nil, errors.Wrapf(berrors.ErrMessageNotFound, "transaction %s not available", tx.ID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}
	if res.Meta == nil {
		return nil, errors.Wrapf(berrors.ErrMessageNotFound, "transaction %s has no meta", tx.ID)
	}
	if res.Meta.Err != nil {
		return nil, errors.Wrapf(berrors.ErrTransactionFailed, "transaction %s: %v", tx.ID, res.Meta.Err)
	}

	sequence, ok := s.sequenceFromLogs(res.Meta.LogMessages)
	if !ok {
		return nil, errors.Wrapf(berrors.ErrMessageNotFound, "transaction %s", tx.ID)
	}

	emitter, err := s.emitterPDA()
	if err != nil {
		return nil, err
	}
	return &types.MessageID{
		EmitterChain:   s.config.ChainID,
		EmitterAddress: hex.EncodeToString(emitter.Bytes()),
		Sequence:       sequence,
	}, nil
}

// sequenceFromLogs returns the first sequence logged after the token bridge was invoked.
func (s *solana) sequenceFromLogs(logs []string) (string, bool) {
	invoked := "Program " + s.tokenBridge.String() + " invoke"
	seenBridge := false
	for _, line := range logs {
		if strings.HasPrefix(line, invoked) {
			seenBridge = true
			continue
		}
		if !seenBridge || !strings.HasPrefix(line, sequenceLogPrefix) {
			continue
		}
		seq := strings.TrimSpace(strings.TrimPrefix(line, sequenceLogPrefix))
		if seq == "" || strings.Trim(seq, "0123456789") != "" {
			continue
		}
		return seq, true
	}
	return "", false
}
