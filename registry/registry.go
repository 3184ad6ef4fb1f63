// Package registry assembles the set of bridgeable tokens shown to a user:
// the configured featured tokens, the user's custom tokens and the chain's
// base asset, each enriched with both addresses, metadata and balances.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/RaghavSood/aurorabridge/near"
	"github.com/RaghavSood/aurorabridge/nep145"
	"github.com/RaghavSood/aurorabridge/resolver"
	"github.com/RaghavSood/aurorabridge/session"
)

// BaseAsset is the reserved identifier of the chain's own asset.
const BaseAsset = "near"

// CustomTokensKey is the storage key holding the JSON list of custom tokens.
const CustomTokensKey = "custom-nep141s"

const maxConcurrentTokens = 8

var (
	ErrInvalidToken  = errors.New("invalid token address")
	ErrFeaturedToken = errors.New("token is already featured")
)

// KV is durable key/value storage. *db.Store satisfies it.
type KV interface {
	Lookup(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, key, value string) error
}

type MirrorResolver interface {
	MirrorAddress(ctx context.Context, nep141 string) (string, bool)
}

type MetadataSource interface {
	Metadata(ctx context.Context, nep141 string) (resolver.Metadata, error)
}

type BalanceSource interface {
	NativeBalance(ctx context.Context, token, account string) *string
	MirrorBalance(ctx context.Context, mirrorHex string, owner common.Address) *string
}

type StorageSource interface {
	StorageBalance(ctx context.Context, token, account string) *nep145.StorageBalance
}

type AccountViewer interface {
	ViewAccount(ctx context.Context, accountID string) (*near.AccountView, error)
}

// Native describes the NEP-141 side of a token.
type Native struct {
	Address string  `json:"address"`
	Balance *string `json:"balance"`
	Name    string  `json:"name"`
}

// Token is one bridgeable asset pair. Top-level fields describe the Aurora
// side.
type Token struct {
	Address              string                 `json:"address"`
	Name                 string                 `json:"name"`
	Balance              *string                `json:"balance"`
	Decimals             int                    `json:"decimals"`
	Icon                 string                 `json:"icon,omitempty"`
	Nep141               Native                 `json:"nep141"`
	AuroraStorageBalance *nep145.StorageBalance `json:"auroraStorageBalance"`
}

// Config names the accounts and token lists the registry works with.
type Config struct {
	Featured         []string
	CustodianAccount string
	WNearAccount     string
}

// Deps are the collaborators a Registry reads through.
type Deps struct {
	Resolver MirrorResolver
	Metadata MetadataSource
	Balances BalanceSource
	Storage  StorageSource
	Accounts AccountViewer
	KV       KV
}

type Registry struct {
	cfg  Config
	deps Deps
	// serializes read-modify-write of the custom list within this process
	mu sync.Mutex
}

func New(cfg Config, deps Deps) *Registry {
	return &Registry{
		cfg:  cfg,
		deps: deps,
	}
}

func (r *Registry) isFeatured(addr string) bool {
	for _, f := range r.cfg.Featured {
		if f == addr {
			return true
		}
	}
	return false
}

// CustomTokens returns the persisted custom list; an unset key is empty.
func (r *Registry) CustomTokens(ctx context.Context) ([]string, error) {
	raw, ok, err := r.deps.KV.Lookup(ctx, CustomTokensKey)
	if err != nil {
		return nil, fmt.Errorf("loading custom tokens: %w", err)
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return []string{}, nil
	}
	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, fmt.Errorf("decoding custom tokens: %w", err)
	}
	if list == nil {
		list = []string{}
	}
	return list, nil
}

// AddCustomToken appends addr to the custom list once. The base asset and
// featured tokens are rejected without touching storage.
func (r *Registry) AddCustomToken(ctx context.Context, addr string) error {
	addr = strings.TrimSpace(addr)
	if addr == "" || addr == BaseAsset {
		return ErrInvalidToken
	}
	if r.isFeatured(addr) {
		return ErrFeaturedToken
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	list, err := r.CustomTokens(ctx)
	if err != nil {
		return err
	}
	for _, existing := range list {
		if existing == addr {
			return nil
		}
	}

	raw, err := json.Marshal(append(list, addr))
	if err != nil {
		return err
	}
	if err := r.deps.KV.Put(ctx, CustomTokensKey, string(raw)); err != nil {
		return fmt.Errorf("saving custom tokens: %w", err)
	}
	log.WithField("token", addr).Info("registry: added custom token")
	return nil
}

// RefreshAll builds a fresh descriptor for every featured and custom token
// plus the base asset, keyed by NEP-141 address ("near" for the base asset).
// Per-token faults degrade that token's fields and never fail the refresh.
func (r *Registry) RefreshAll(ctx context.Context, sess session.Session) (map[string]Token, error) {
	custom, err := r.CustomTokens(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var addrs []string
	for _, a := range append(custom, r.cfg.Featured...) {
		if a == "" || a == BaseAsset || seen[a] {
			continue
		}
		seen[a] = true
		addrs = append(addrs, a)
	}

	var (
		mu     sync.Mutex
		tokens = make(map[string]Token, len(addrs)+1)
	)
	store := func(key string, t Token) {
		mu.Lock()
		tokens[key] = t
		mu.Unlock()
	}

	g := new(errgroup.Group)
	g.SetLimit(maxConcurrentTokens)
	for _, addr := range addrs {
		addr := addr
		g.Go(func() error {
			store(addr, r.tokenData(ctx, sess, addr))
			return nil
		})
	}
	g.Go(func() error {
		store(BaseAsset, r.baseAssetData(ctx, sess))
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return tokens, nil
}

func (r *Registry) tokenData(ctx context.Context, sess session.Session, addr string) Token {
	md, err := r.deps.Metadata.Metadata(ctx, addr)
	if err != nil {
		log.WithField("token", addr).Warnf("registry: metadata unavailable: %v", err)
		md = resolver.Metadata{}
	}
	mirror, _ := r.deps.Resolver.MirrorAddress(ctx, addr)

	nativeName := md.Symbol
	if nativeName == "" {
		nativeName = truncate(addr) + "..."
	}
	mirrorName := md.Symbol
	if mirrorName == "" {
		mirrorName = "0x" + truncate(mirror) + "..."
	}

	t := Token{
		Address:  mirror,
		Name:     mirrorName,
		Balance:  r.deps.Balances.MirrorBalance(ctx, mirror, sess.AuroraAddress),
		Decimals: md.Decimals,
		Nep141: Native{
			Address: addr,
			Balance: r.deps.Balances.NativeBalance(ctx, addr, sess.NearAccountID),
			Name:    nativeName,
		},
		AuroraStorageBalance: r.deps.Storage.StorageBalance(ctx, addr, r.cfg.CustodianAccount),
	}
	if md.Icon != nil {
		t.Icon = *md.Icon
	}
	return t
}

func (r *Registry) baseAssetData(ctx context.Context, sess session.Session) Token {
	mirror, _ := r.deps.Resolver.MirrorAddress(ctx, r.cfg.WNearAccount)

	var nearBalance *string
	if acct, err := r.deps.Accounts.ViewAccount(ctx, sess.NearAccountID); err != nil {
		log.WithField("account", sess.NearAccountID).Warnf("registry: account balance unavailable: %v", err)
	} else if avail, err := acct.Available(); err != nil {
		log.WithField("account", sess.NearAccountID).Warnf("registry: account balance unreadable: %v", err)
	} else {
		s := avail.String()
		nearBalance = &s
	}

	return Token{
		Address:  mirror,
		Name:     "NEAR",
		Balance:  r.deps.Balances.MirrorBalance(ctx, mirror, sess.AuroraAddress),
		Decimals: 24,
		Icon:     "near.svg",
		Nep141: Native{
			Address: BaseAsset,
			Balance: nearBalance,
			Name:    "NEAR",
		},
		AuroraStorageBalance: r.deps.Storage.StorageBalance(ctx, r.cfg.WNearAccount, r.cfg.CustodianAccount),
	}
}

func truncate(s string) string {
	if len(s) > 5 {
		return s[:5]
	}
	return s
}
