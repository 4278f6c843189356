package solana

import (
	"encoding/binary"

	"github.com/ClipFinance/bridge-lib/common/types"
	sol "github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
)

func findPDA(program sol.PublicKey, seeds ...[]byte) (sol.PublicKey, error) {
	addr, _, err := sol.FindProgramAddress(seeds, program)
	if err != nil {
		return sol.PublicKey{}, errors.Wrap(err, "failed to derive program address")
	}
	return addr, nil
}

func chainSeed(chain types.ChainID) []byte {
	out := make([]byte, 2)
	binary.BigEndian.PutUint16(out, uint16(chain))
	return out
}

func sequenceSeed(sequence uint64) []byte {
	out := make([]byte, 8)
	binary.BigEndian.PutUint64(out, sequence)
	return out
}

// emitterPDA is the token bridge emitter, the EmitterAddress of every transfer message.
func (s *solana) emitterPDA() (sol.PublicKey, error) {
	return findPDA(s.tokenBridge, []byte("emitter"))
}

func (s *solana) tokenBridgeConfigPDA() (sol.PublicKey, error) {
	return findPDA(s.tokenBridge, []byte("config"))
}

// claimPDA exists once the VAA identified by emitter chain, emitter and sequence was redeemed.
func (s *solana) claimPDA(emitterChain types.ChainID, emitter [32]byte, sequence uint64) (sol.PublicKey, error) {
	return findPDA(s.tokenBridge, emitter[:], chainSeed(emitterChain), sequenceSeed(sequence))
}

// endpointPDA is the registration of the foreign token bridge that emitted a VAA.
func (s *solana) endpointPDA(emitterChain types.ChainID, emitter [32]byte) (sol.PublicKey, error) {
	return findPDA(s.tokenBridge, chainSeed(emitterChain), emitter[:])
}

// postedVAAPDA holds a VAA verified by the core bridge, keyed by its body hash.
func (s *solana) postedVAAPDA(bodyHash [32]byte) (sol.PublicKey, error) {
	return findPDA(s.coreBridge, []byte("PostedVAA"), bodyHash[:])
}

func (s *solana) custodyPDA(mint sol.PublicKey) (sol.PublicKey, error) {
	return findPDA(s.tokenBridge, mint.Bytes())
}

func (s *solana) wrappedMintPDA(tokenChain types.ChainID, tokenAddress [32]byte) (sol.PublicKey, error) {
	return findPDA(s.tokenBridge, []byte("wrapped"), chainSeed(tokenChain), tokenAddress[:])
}

func (s *solana) wrappedMetaPDA(mint sol.PublicKey) (sol.PublicKey, error) {
	return findPDA(s.tokenBridge, []byte("meta"), mint.Bytes())
}

// coreAccounts are the core bridge accounts shared by every message publication.
type coreAccounts struct {
	bridge       sol.PublicKey
	emitter      sol.PublicKey
	sequence     sol.PublicKey
	feeCollector sol.PublicKey
}

func (s *solana) coreAccounts() (*coreAccounts, error) {
	emitter, err := s.emitterPDA()
	if err != nil {
		return nil, err
	}
	bridge, err := findPDA(s.coreBridge, []byte("Bridge"))
	if err != nil {
		return nil, err
	}
	sequence, err := findPDA(s.coreBridge, []byte("Sequence"), emitter.Bytes())
	if err != nil {
		return nil, err
	}
	feeCollector, err := findPDA(s.coreBridge, []byte("fee_collector"))
	if err != nil {
		return nil, err
	}
	return &coreAccounts{bridge: bridge, emitter: emitter, sequence: sequence, feeCollector: feeCollector}, nil
}

// associatedTokenAddress returns the token account address for a given token and owner.
// This is a deterministic address that follows Solana's Associated Token Account Program conventions.
func associatedTokenAddress(mint, owner sol.PublicKey) (sol.PublicKey, error) {
	return findPDA(sol.SPLAssociatedTokenAccountProgramID, owner.Bytes(), sol.TokenProgramID.Bytes(), mint.Bytes())
}
