package types

import (
	"strconv"

	sdkvaa "github.com/wormhole-foundation/wormhole/sdk/vaa"
)

// ChainID is the guardian network identifier of a chain. It is independent of any chain-native id
// (e.g. the EVM chain id used for transaction signing).
type ChainID = sdkvaa.ChainID

const (
	ChainIDUnset     = sdkvaa.ChainIDUnset
	ChainIDSolana    = sdkvaa.ChainIDSolana
	ChainIDEthereum  = sdkvaa.ChainIDEthereum
	ChainIDTerra     = sdkvaa.ChainIDTerra
	ChainIDBSC       = sdkvaa.ChainIDBSC
	ChainIDPolygon   = sdkvaa.ChainIDPolygon
	ChainIDAvalanche = sdkvaa.ChainIDAvalanche
	ChainIDOasis     = sdkvaa.ChainIDOasis
	ChainIDAlgorand  = sdkvaa.ChainIDAlgorand
	ChainIDAurora    = sdkvaa.ChainIDAurora
	ChainIDFantom    = sdkvaa.ChainIDFantom
	ChainIDKarura    = sdkvaa.ChainIDKarura
	ChainIDAcala     = sdkvaa.ChainIDAcala
	ChainIDKlaytn    = sdkvaa.ChainIDKlaytn
	ChainIDCelo      = sdkvaa.ChainIDCelo
	ChainIDNear      = sdkvaa.ChainIDNear
	ChainIDMoonbeam  = sdkvaa.ChainIDMoonbeam
	ChainIDTerra2    = sdkvaa.ChainIDTerra2
	ChainIDInjective = sdkvaa.ChainIDInjective
	ChainIDSui       = sdkvaa.ChainIDSui
	ChainIDAptos     = sdkvaa.ChainIDAptos
	ChainIDArbitrum  = sdkvaa.ChainIDArbitrum
	ChainIDOptimism  = sdkvaa.ChainIDOptimism
	ChainIDXpla      = sdkvaa.ChainIDXpla
	ChainIDBase      = sdkvaa.ChainIDBase
	ChainIDSei       = sdkvaa.ChainIDSei
)

// families maps the chains a bridge adapter exists for to their adapter family. Names come from
// the guardian SDK.
var families = map[ChainID]ChainType{
	ChainIDSolana:    SOLANA,
	ChainIDEthereum:  EVM,
	ChainIDTerra:     COSMOS,
	ChainIDBSC:       EVM,
	ChainIDPolygon:   EVM,
	ChainIDAvalanche: EVM,
	ChainIDOasis:     EVM,
	ChainIDAlgorand:  ALGORAND,
	ChainIDAurora:    EVM,
	ChainIDFantom:    EVM,
	ChainIDKarura:    EVM,
	ChainIDAcala:     EVM,
	ChainIDKlaytn:    EVM,
	ChainIDCelo:      EVM,
	ChainIDNear:      NEAR,
	ChainIDMoonbeam:  EVM,
	ChainIDTerra2:    COSMOS,
	ChainIDInjective: COSMOS,
	ChainIDSui:       MOVE,
	ChainIDAptos:     MOVE,
	ChainIDArbitrum:  EVM,
	ChainIDOptimism:  EVM,
	ChainIDXpla:      COSMOS,
	ChainIDBase:      EVM,
	ChainIDSei:       COSMOS,
}

// FamilyOf returns the adapter family of a chain, UNKNOWN for chains without an adapter.
func FamilyOf(c ChainID) ChainType {
	if family, ok := families[c]; ok {
		return family
	}
	return UNKNOWN
}

// IsSupportedChain reports whether an adapter family exists for the chain.
func IsSupportedChain(c ChainID) bool {
	_, ok := families[c]
	return ok
}

// ParseChainID accepts either a guardian chain name ("ethereum") or a numeric id ("2").
func ParseChainID(s string) (ChainID, bool) {
	if id, err := sdkvaa.ChainIDFromString(s); err == nil && id != ChainIDUnset {
		return id, true
	}
	n, err := strconv.ParseUint(s, 10, 16)
	if err != nil || n == 0 {
		return ChainIDUnset, false
	}
	return ChainID(n), true
}
