package errors

import "github.com/pkg/errors"

// Registry and configuration errors.
var (
	ErrChainNotFound      = errors.New("chain not found")
	ErrInvalidChainID     = errors.New("invalid chain id")
	ErrDatabaseConnect    = errors.New("failed to connect to database")
	ErrInvalidConfig      = errors.New("invalid chain configuration")
	ErrChainExists        = errors.New("chain already exists in registry")
	ErrFactoryNotProvided = errors.New("chain factory not provided")
	ErrInvalidChainType   = errors.New("invalid chain type")
	ErrNotImplemented     = errors.New("functionality not implemented")
	ErrSignerNotSet       = errors.New("signer not configured")
)

// Amount errors.
var (
	ErrInvalidDecimals  = errors.New("decimals out of range")
	ErrNegativeAmount   = errors.New("amount must not be negative")
	ErrFeeExceedsAmount = errors.New("relayer fee exceeds amount")
)

// Adapter errors.
var (
	// ErrMessageNotFound means the bridge event is absent: non-bridge tx or indexing lag.
	ErrMessageNotFound = errors.New("bridge message not found in transaction")
	// ErrAlreadyRedeemed means the destination chain rejected the redemption as a duplicate.
	ErrAlreadyRedeemed = errors.New("attestation already redeemed")
	// ErrInvalidAttestation means the attestation bytes could not be decoded.
	ErrInvalidAttestation = errors.New("invalid attestation")
	// ErrTransactionFailed means the transaction was included but reverted.
	ErrTransactionFailed = errors.New("transaction failed on chain")
)

// Guardian errors.
var (
	// ErrAttestationExhausted means the poller ran out of attempts.
	ErrAttestationExhausted = errors.New("attestation unavailable after max attempts")
	// ErrAttestationMismatch means a guardian returned an attestation for a different message.
	ErrAttestationMismatch = errors.New("attestation does not match message id")
)

// Orchestrator and store errors.
var (
	ErrBusy             = errors.New("transfer is busy with another phase")
	ErrInvalidState     = errors.New("invalid transfer state for operation")
	ErrInvalidTransfer  = errors.New("invalid transfer record")
	ErrSameChain        = errors.New("source and target chain must differ")
	ErrTransferNotFound = errors.New("transfer not found")
	ErrCacheMiss        = errors.New("cache miss")
)
