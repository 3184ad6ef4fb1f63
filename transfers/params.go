package transfers

import (
	"context"
	"fmt"
)

// DeepLinkParam names the token a client was deep-linked to.
const DeepLinkParam = "erc20n"

const paramKeyPrefix = "param:"

// KV is durable key/value storage. *db.Store satisfies it.
type KV interface {
	Lookup(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// ParamStore keeps pending client parameters across restarts so a reload
// mid-transfer can tell whether a flow was already started.
type ParamStore struct {
	kv KV
}

func NewParamStore(kv KV) *ParamStore {
	return &ParamStore{kv: kv}
}

func (p *ParamStore) Get(ctx context.Context, name string) (string, bool, error) {
	return p.kv.Lookup(ctx, paramKeyPrefix+name)
}

func (p *ParamStore) Set(ctx context.Context, name, value string) error {
	if err := p.kv.Put(ctx, paramKeyPrefix+name, value); err != nil {
		return fmt.Errorf("setting param %s: %w", name, err)
	}
	return nil
}

func (p *ParamStore) Clear(ctx context.Context, name string) error {
	if err := p.kv.Remove(ctx, paramKeyPrefix+name); err != nil {
		return fmt.Errorf("clearing param %s: %w", name, err)
	}
	return nil
}
