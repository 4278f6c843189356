package models

import (
	"time"

	"github.com/ClipFinance/bridge-lib/common/types"
)

// Chain is a row of the chains table.
type Chain struct {
	ID                   int64
	ChainID              types.ChainID
	Name                 string
	Type                 types.ChainType
	NativeChainID        uint64
	NetworkID            string
	CoreBridgeAddress    string
	TokenBridgeAddress   string
	EmitterAddress       string
	WrappedNativeAddress string
	TxType               uint64
	WaitNBlocks          uint64
	Active               bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// ToConfig returns the adapter configuration of the chain served by rpcURL. Signing keys are
// never stored in the database and must be filled in by the caller.
func (c *Chain) ToConfig(rpcURL string) *types.ChainConfig {
	return &types.ChainConfig{
		Name:                 c.Name,
		ChainType:            c.Type,
		ChainID:              c.ChainID,
		NativeChainID:        c.NativeChainID,
		NetworkID:            c.NetworkID,
		RpcUrl:               rpcURL,
		TxType:               c.TxType,
		WaitNBlocks:          c.WaitNBlocks,
		CoreBridgeAddress:    c.CoreBridgeAddress,
		TokenBridgeAddress:   c.TokenBridgeAddress,
		EmitterAddress:       c.EmitterAddress,
		WrappedNativeAddress: c.WrappedNativeAddress,
	}
}
