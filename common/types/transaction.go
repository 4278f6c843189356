package types

import (
	"fmt"
	"strings"
)

// ChainTx identifies a transaction included on a chain.
//
// Fields:
// - ID: the chain-native transaction id (hash, signature, digest).
// - BlockRef: the block number, slot or height the transaction was included in, 0 when unknown.
type ChainTx struct {
	ID       string `json:"id"`
	BlockRef uint64 `json:"blockRef"`
}

// MessageID is the guardian lookup key of a published bridge message.
//
// Fields:
// - EmitterChain: the chain that emitted the message.
// - EmitterAddress: the 32-byte emitter address, lowercase hex without 0x prefix.
// - Sequence: the per-emitter sequence number, decimal string.
type MessageID struct {
	EmitterChain   ChainID `json:"emitterChain"`
	EmitterAddress string  `json:"emitterAddress"`
	Sequence       string  `json:"sequence"`
}

// String returns the guardian key in the form chain/emitter/sequence.
func (m MessageID) String() string {
	return fmt.Sprintf("%d/%s/%s", m.EmitterChain, m.EmitterAddress, m.Sequence)
}

// NormalizeEmitterAddress strips a 0x prefix, lowercases and left-pads the hex emitter to 32 bytes.
func NormalizeEmitterAddress(addr string) string {
	addr = strings.ToLower(strings.TrimPrefix(strings.TrimPrefix(addr, "0x"), "0X"))
	if len(addr) < 64 {
		addr = strings.Repeat("0", 64-len(addr)) + addr
	}
	return addr
}
