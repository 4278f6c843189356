package types

import (
	"context"
)

// ChainConfig holds the configuration for a specific chain adapter.
//
// Fields:
// - Name: the name of the chain.
// - ChainType: the family of the chain, selects the adapter implementation.
// - ChainID: the guardian network identifier of the chain.
// - NativeChainID: the chain-native identifier (EVM chain id, Cosmos chain id string is kept in NetworkID).
// - NetworkID: the chain-native network name where it is not numeric (e.g. "injective-1").
// - RpcUrl: the URL for the chain's RPC/REST endpoint.
// - TxType: the type of transactions supported by the chain (EVM only).
// - WaitNBlocks: the number of blocks to wait before a source transaction is parsed.
// - PrivateKey: the private key for signing transactions, empty for read-only adapters.
// - CoreBridgeAddress: the address of the core messaging contract/program.
// - TokenBridgeAddress: the address of the token bridge contract/program (the emitter).
// - EmitterAddress: optional 32-byte hex emitter override for chains where it cannot be derived locally.
// - WrappedNativeAddress: the wrapped native token address (e.g. WETH), used to detect native transfers.
type ChainConfig struct {
	Name                 string    `mapstructure:"name"`
	ChainType            ChainType `mapstructure:"chain_type"`
	ChainID              ChainID   `mapstructure:"chain_id"`
	NativeChainID        uint64    `mapstructure:"native_chain_id"`
	NetworkID            string    `mapstructure:"network_id"`
	RpcUrl               string    `mapstructure:"rpc_url"`
	TxType               uint64    `mapstructure:"tx_type"`
	WaitNBlocks          uint64    `mapstructure:"wait_n_blocks"`
	PrivateKey           string    `mapstructure:"private_key"`
	CoreBridgeAddress    string    `mapstructure:"core_bridge_address"`
	TokenBridgeAddress   string    `mapstructure:"token_bridge_address"`
	EmitterAddress       string    `mapstructure:"emitter_address"`
	WrappedNativeAddress string    `mapstructure:"wrapped_native_address"`
}

// TransferSubmitter submits the source-chain transfer of a record.
type TransferSubmitter interface {
	// SubmitTransfer constructs and submits the chain-native transfer instruction.
	// The adapter never retries: resubmission risks a double transfer.
	//
	// Parameters:
	// - ctx: the context for managing the request.
	// - record: the transfer record carrying token, amount, target chain, recipient and fee.
	//
	// Returns:
	// - *ChainTx: the submitted source transaction.
	// - error: an error if the transaction could not be built, signed or broadcast.
	SubmitTransfer(ctx context.Context, record *TransferRecord) (*ChainTx, error)
}

// MessageParser extracts the guardian message identifier from a submitted transaction.
type MessageParser interface {
	// ParseMessageID reads the bridge event of the transaction.
	//
	// Parameters:
	// - ctx: the context for managing the request.
	// - tx: the source transaction returned by SubmitTransfer.
	//
	// Returns:
	// - *MessageID: the emitter chain, emitter address and sequence of the published message.
	// - error: ErrMessageNotFound if the event is absent or not yet indexed.
	ParseMessageID(ctx context.Context, tx *ChainTx) (*MessageID, error)
}

// Redeemer submits the destination-chain redemption of a signed attestation.
type Redeemer interface {
	// SubmitRedeem submits the chain-native redemption instruction.
	//
	// Parameters:
	// - ctx: the context for managing the request.
	// - targetAddress: the destination account paying for and receiving the redemption.
	// - attestation: the signed attestation bytes.
	//
	// Returns:
	// - *ChainTx: the redemption transaction.
	// - error: ErrAlreadyRedeemed if the chain reports a prior redemption, any other error otherwise.
	SubmitRedeem(ctx context.Context, targetAddress string, attestation []byte) (*ChainTx, error)
}

// RedemptionReader answers whether an attestation was already redeemed. It must be read-only.
type RedemptionReader interface {
	IsRedeemed(ctx context.Context, attestation []byte) (bool, error)
}

// ChainAdapter combines all chain-specific functionality consumed by the orchestrator.
type ChainAdapter interface {
	TransferSubmitter
	MessageParser
	Redeemer
	RedemptionReader

	// ChainID returns the guardian network identifier of the chain served by the adapter.
	ChainID() ChainID
}

// AdapterRegistry manages the chain id to adapter table.
type AdapterRegistry interface {
	// Add builds an adapter for the configuration and registers it.
	//
	// Parameters:
	// - ctx: the context for managing adapter construction.
	// - config: the configuration for the chain to add.
	//
	// Returns:
	// - error: an error if adding the chain fails.
	Add(ctx context.Context, config *ChainConfig) error

	// Register stores an already constructed adapter.
	Register(adapter ChainAdapter) error

	// Get retrieves an adapter by chain id, nil when absent.
	Get(chainID ChainID) ChainAdapter

	// Remove removes an adapter from the registry by its chain id.
	Remove(chainID ChainID)
}
