package guardian

import (
	"context"
	"strings"
	"time"

	berrors "github.com/ClipFinance/bridge-lib/common/errors"
	"github.com/ClipFinance/bridge-lib/common/types"
	"github.com/ClipFinance/bridge-lib/vaa"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	messageKeyPrefix = "bridge:vaa:msg:"
	digestKeyPrefix  = "bridge:vaa:digest:"
)

// Cache stores signed attestations. Get returns ErrCacheMiss for unknown keys.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CachedClient serves found attestations from a cache before querying the guardians.
// Signed attestations never change, so only Found results are cached. Cache failures are logged
// and never fail a query.
type CachedClient struct {
	inner  types.GuardianQuerier
	cache  Cache
	ttl    time.Duration
	logger *logrus.Logger
}

var _ types.GuardianQuerier = (*CachedClient)(nil)

// NewCachedClient wraps inner with cache. A zero ttl keeps entries forever.
func NewCachedClient(inner types.GuardianQuerier, cache Cache, ttl time.Duration, logger *logrus.Logger) *CachedClient {
	return &CachedClient{inner: inner, cache: cache, ttl: ttl, logger: logger}
}

// Query returns a cached attestation for id or delegates to the wrapped querier. Only attestations
// that decode and attest to id are written, and cached entries failing the same check are ignored.
func (c *CachedClient) Query(ctx context.Context, id types.MessageID) (*types.GuardianResult, error) {
	key := MessageKey(id)
	log := c.logger.WithField("message_id", id.String())

	raw, err := c.cache.Get(ctx, key)
	switch {
	case err == nil:
		_, verr := attestsTo(raw, id)
		if verr == nil {
			return &types.GuardianResult{Kind: types.GuardianFound, Attestation: raw}, nil
		}
		log.WithError(verr).Warn("Ignoring cached attestation")
	case !errors.Is(err, berrors.ErrCacheMiss):
		log.WithError(err).Warn("Attestation cache read failed")
	}

	result, err := c.inner.Query(ctx, id)
	if err != nil || result.Kind != types.GuardianFound {
		return result, err
	}

	parsed, err := attestsTo(result.Attestation, id)
	if err != nil {
		log.WithError(err).Warn("Not caching attestation")
		return result, nil
	}
	for _, k := range []string{key, DigestKey(parsed.Digest().Hex())} {
		if err := c.cache.Set(ctx, k, result.Attestation, c.ttl); err != nil {
			log.WithError(err).Warn("Attestation cache write failed")
		}
	}
	return result, nil
}

// attestsTo decodes raw and checks that it is the attestation of id.
func attestsTo(raw []byte, id types.MessageID) (*vaa.VAA, error) {
	parsed, err := vaa.Parse(raw)
	if err != nil {
		return nil, err
	}
	if !parsed.Matches(id) {
		return nil, errors.Wrapf(berrors.ErrAttestationMismatch, "attestation of %s", parsed.MessageID())
	}
	return parsed, nil
}

// GetByDigest returns a cached attestation by its hex digest.
func (c *CachedClient) GetByDigest(ctx context.Context, digest string) ([]byte, error) {
	return c.cache.Get(ctx, DigestKey(digest))
}

// MessageKey returns the cache key of the attestation of a message.
func MessageKey(id types.MessageID) string {
	id.EmitterAddress = types.NormalizeEmitterAddress(id.EmitterAddress)
	return messageKeyPrefix + id.String()
}

// DigestKey returns the cache key of an attestation by digest.
func DigestKey(digest string) string {
	return digestKeyPrefix + strings.ToLower(strings.TrimPrefix(digest, "0x"))
}
