// Package vaa decodes signed guardian attestations (VAAs) far enough for the transfer pipeline to
// check which message they attest to and to derive their content hash. Wire decoding and hashing
// are those of the guardian SDK.
package vaa

import (
	"encoding/binary"
	"encoding/hex"
	"math/big"
	"strconv"
	"time"

	berrors "github.com/ClipFinance/bridge-lib/common/errors"
	"github.com/ClipFinance/bridge-lib/common/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	sdkvaa "github.com/wormhole-foundation/wormhole/sdk/vaa"
)

const (
	// SupportedVersion is the only VAA version decoded.
	SupportedVersion = sdkvaa.SupportedVAAVersion

	headerLen    = 6
	signatureLen = 66
)

// Signature is a single guardian signature.
type Signature = sdkvaa.Signature

// VAA is a decoded attestation. Raw keeps the original bytes.
type VAA struct {
	*sdkvaa.VAA
	Raw []byte
}

// Parse decodes VAA bytes. It does not verify guardian signatures; destination chains do that.
func Parse(data []byte) (*VAA, error) {
	if len(data) < headerLen {
		return nil, errors.Wrap(berrors.ErrInvalidAttestation, "vaa too short")
	}
	v, err := sdkvaa.Unmarshal(data)
	if err != nil {
		return nil, errors.Wrapf(berrors.ErrInvalidAttestation, "%v", err)
	}
	return &VAA{VAA: v, Raw: data}, nil
}

// Body returns the signed portion of the VAA.
func (v *VAA) Body() []byte {
	return v.Raw[headerLen+len(v.Signatures)*signatureLen:]
}

// BodyHash returns keccak256(body), the message hash used by the Solana core bridge.
func (v *VAA) BodyHash() common.Hash {
	return crypto.Keccak256Hash(v.Body())
}

// Digest returns keccak256(keccak256(body)), the hash guardians sign and EVM bridges key replay
// protection on. It is used as the content address of the attestation.
func (v *VAA) Digest() common.Hash {
	return v.SigningDigest()
}

// EmitterHex returns the emitter address as 64 lowercase hex characters.
func (v *VAA) EmitterHex() string {
	return hex.EncodeToString(v.EmitterAddress[:])
}

// MessageID returns the guardian lookup key the VAA attests to.
func (v *VAA) MessageID() types.MessageID {
	return types.MessageID{
		EmitterChain:   v.EmitterChain,
		EmitterAddress: v.EmitterHex(),
		Sequence:       strconv.FormatUint(v.Sequence, 10),
	}
}

// Matches reports whether the VAA attests to the given message id.
func (v *VAA) Matches(id types.MessageID) bool {
	return v.EmitterChain == id.EmitterChain &&
		v.EmitterHex() == types.NormalizeEmitterAddress(id.EmitterAddress) &&
		strconv.FormatUint(v.Sequence, 10) == id.Sequence
}

// DigestHex parses data and returns its digest as 0x-prefixed hex.
func DigestHex(data []byte) (string, error) {
	v, err := Parse(data)
	if err != nil {
		return "", err
	}
	return v.Digest().Hex(), nil
}

// Builder assembles unsigned or pre-signed VAAs for tooling and tests.
type Builder struct {
	GuardianSetIndex uint32
	Signatures       []Signature
	Timestamp        time.Time
	Nonce            uint32
	EmitterChain     types.ChainID
	EmitterAddress   [32]byte
	Sequence         uint64
	ConsistencyLevel uint8
	Payload          []byte
}

// Marshal serializes the builder into VAA bytes.
func (b *Builder) Marshal() []byte {
	sigs := make([]*sdkvaa.Signature, len(b.Signatures))
	for i := range b.Signatures {
		sigs[i] = &b.Signatures[i]
	}
	v := &sdkvaa.VAA{
		Version:          SupportedVersion,
		GuardianSetIndex: b.GuardianSetIndex,
		Signatures:       sigs,
		Timestamp:        b.Timestamp,
		Nonce:            b.Nonce,
		EmitterChain:     b.EmitterChain,
		EmitterAddress:   b.EmitterAddress,
		Sequence:         b.Sequence,
		ConsistencyLevel: b.ConsistencyLevel,
		Payload:          b.Payload,
	}
	// Marshal only writes to an in-memory buffer.
	raw, _ := v.Marshal()
	return raw
}

// AddressFromHex left-pads a hex address into 32 bytes.
func AddressFromHex(s string) ([32]byte, error) {
	addr, err := sdkvaa.StringToAddress(types.NormalizeEmitterAddress(s))
	if err != nil {
		return [32]byte{}, errors.Wrapf(err, "invalid address %q", s)
	}
	return addr, nil
}

// Payload identifiers of the token bridge.
const (
	PayloadTransfer            = 1
	PayloadTransferWithPayload = 3

	transferPayloadLen = 133
)

// TokenTransfer is a decoded token bridge transfer payload.
type TokenTransfer struct {
	PayloadID    uint8
	Amount       *big.Int
	TokenAddress [32]byte
	TokenChain   types.ChainID
	To           [32]byte
	ToChain      types.ChainID
	// Fee is set for PayloadTransfer, FromAddress and Extra for PayloadTransferWithPayload.
	Fee         *big.Int
	FromAddress [32]byte
	Extra       []byte
}

// DecodeTokenTransfer decodes a token bridge transfer payload. The shared header comes from the
// SDK decoder; the fee or sender that follows it depends on the payload id.
func DecodeTokenTransfer(payload []byte) (*TokenTransfer, error) {
	if len(payload) < transferPayloadLen {
		return nil, errors.Wrapf(berrors.ErrInvalidAttestation, "transfer payload length %d", len(payload))
	}
	hdr, err := sdkvaa.DecodeTransferPayloadHdr(payload)
	if err != nil {
		return nil, errors.Wrapf(berrors.ErrInvalidAttestation, "%v", err)
	}
	t := &TokenTransfer{
		PayloadID:    hdr.Type,
		Amount:       hdr.Amount,
		TokenAddress: hdr.OriginAddress,
		TokenChain:   hdr.OriginChain,
		To:           hdr.TargetAddress,
		ToChain:      hdr.TargetChain,
	}
	if t.PayloadID == PayloadTransfer {
		t.Fee = new(big.Int).SetBytes(payload[101:133])
		return t, nil
	}
	copy(t.FromAddress[:], payload[101:133])
	t.Extra = payload[133:]
	return t, nil
}

// EncodeTokenTransfer serializes a PayloadTransfer payload.
func EncodeTokenTransfer(t *TokenTransfer) []byte {
	out := make([]byte, transferPayloadLen)
	out[0] = PayloadTransfer
	t.Amount.FillBytes(out[1:33])
	copy(out[33:65], t.TokenAddress[:])
	binary.BigEndian.PutUint16(out[65:67], uint16(t.TokenChain))
	copy(out[67:99], t.To[:])
	binary.BigEndian.PutUint16(out[99:101], uint16(t.ToChain))
	if t.Fee != nil {
		t.Fee.FillBytes(out[101:133])
	}
	return out
}
