// Package resolver translates NEAR token identifiers into their Aurora
// counterparts and caches token metadata.
//
// Both caches are permanent for the life of the process: a NEP-141 token's
// bridged ERC20 address never changes once deployed, and metadata staleness
// is accepted for display purposes.
package resolver

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// FunctionCaller runs a read-only NEAR contract method with raw args.
// *near.Client satisfies it.
type FunctionCaller interface {
	CallFunction(ctx context.Context, accountID, method string, args []byte) ([]byte, error)
}

var errNotDeployed = errors.New("no erc20 deployed for token")

// AddressResolver maps a NEP-141 account id to the address of its bridged
// ERC20 on Aurora by asking the Aurora engine account.
type AddressResolver struct {
	caller FunctionCaller
	engine string
	cache  *Cache[string]
}

// NewAddressResolver creates a resolver querying the engine account
// (normally "aurora").
func NewAddressResolver(caller FunctionCaller, engineAccountID string) *AddressResolver {
	return &AddressResolver{
		caller: caller,
		engine: engineAccountID,
		cache:  NewCache[string](),
	}
}

// MirrorAddress returns the hex-encoded ERC20 address (no 0x prefix) for
// nep141. On any fault it logs a warning and reports false; failures are
// not cached.
func (r *AddressResolver) MirrorAddress(ctx context.Context, nep141 string) (string, bool) {
	addr, err := r.cache.GetOrFetch(ctx, nep141, func(ctx context.Context) (string, error) {
		raw, err := r.caller.CallFunction(ctx, r.engine, "get_erc20_from_nep141", []byte(nep141))
		if err != nil {
			return "", err
		}
		if len(raw) == 0 {
			return "", errNotDeployed
		}
		return hex.EncodeToString(raw), nil
	})
	if err != nil {
		log.WithField("token", nep141).Warnf("resolver: erc20 lookup failed: %v", err)
		return "", false
	}
	return addr, true
}

// Metadata is the NEP-148 fungible token metadata.
type Metadata struct {
	Spec          string  `json:"spec"`
	Name          string  `json:"name"`
	Symbol        string  `json:"symbol"`
	Icon          *string `json:"icon"`
	Reference     *string `json:"reference"`
	ReferenceHash *string `json:"reference_hash"`
	Decimals      int     `json:"decimals"`
}

// Viewer runs a read-only NEAR contract method with JSON args and result.
// *near.Client satisfies it.
type Viewer interface {
	ViewFunction(ctx context.Context, contractID, method string, args interface{}, out interface{}) error
}

// MetadataCache fetches ft_metadata once per token.
type MetadataCache struct {
	viewer Viewer
	cache  *Cache[Metadata]
}

func NewMetadataCache(viewer Viewer) *MetadataCache {
	return &MetadataCache{
		viewer: viewer,
		cache:  NewCache[Metadata](),
	}
}

// Metadata returns the token's metadata. Query faults are returned to the
// caller, which is expected to fall back to a truncated address for display.
func (m *MetadataCache) Metadata(ctx context.Context, nep141 string) (Metadata, error) {
	return m.cache.GetOrFetch(ctx, nep141, func(ctx context.Context) (Metadata, error) {
		var md Metadata
		if err := m.viewer.ViewFunction(ctx, nep141, "ft_metadata", nil, &md); err != nil {
			return Metadata{}, fmt.Errorf("ft_metadata %s: %w", nep141, err)
		}
		return md, nil
	})
}
