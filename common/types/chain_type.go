package types

import "strings"

// ChainType names an adapter family. Every family has exactly one adapter implementation, and
// many guardian chain ids can share one family.
type ChainType string

const (
	EVM      ChainType = "EVM"      // Ethereum, BSC, Polygon, Avalanche and other EVM chains.
	SOLANA   ChainType = "SOLANA"   // Solana.
	COSMOS   ChainType = "COSMOS"   // CosmWasm chains: Terra2, Injective, XPLA, Sei.
	MOVE     ChainType = "MOVE"     // Aptos and Sui.
	ALGORAND ChainType = "ALGORAND" // Algorand.
	NEAR     ChainType = "NEAR"     // NEAR.
	UNKNOWN  ChainType = "UNKNOWN"  // Anything else.
)

var knownChainTypes = map[ChainType]struct{}{
	EVM: {}, SOLANA: {}, COSMOS: {}, MOVE: {}, ALGORAND: {}, NEAR: {},
}

func (t ChainType) String() string {
	return string(t)
}

// ParseChainType maps a family name, in any case, to its ChainType. Unrecognised names give UNKNOWN.
func ParseChainType(s string) ChainType {
	t := ChainType(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := knownChainTypes[t]; ok {
		return t
	}
	return UNKNOWN
}
