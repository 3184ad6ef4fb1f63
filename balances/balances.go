// Package balances reads a user's holdings of a token on both sides of the
// bridge. Reads are never cached and never fail the caller: a fault is
// logged and reported as an absent balance.
package balances

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"
)

// Viewer runs a read-only NEAR contract view. *near.Client satisfies it.
type Viewer interface {
	ViewFunction(ctx context.Context, contractID, method string, args interface{}, out interface{}) error
}

// TokenReader reads an ERC20 balance on Aurora. *aurora.Client satisfies it.
type TokenReader interface {
	BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error)
}

// Reader reads native NEAR and mirrored Aurora balances.
type Reader struct {
	near   Viewer
	aurora TokenReader
}

func NewReader(near Viewer, aurora TokenReader) *Reader {
	return &Reader{
		near:   near,
		aurora: aurora,
	}
}

// NativeBalance returns account's ft_balance_of on the NEP-141 token as a
// decimal string, or nil when the query fails.
func (r *Reader) NativeBalance(ctx context.Context, token, account string) *string {
	var bal string
	args := map[string]string{"account_id": account}
	if err := r.near.ViewFunction(ctx, token, "ft_balance_of", args, &bal); err != nil {
		log.WithFields(log.Fields{"token": token, "account": account}).Warnf("balances: ft_balance_of failed: %v", err)
		return nil
	}
	return &bal
}

// MirrorBalance returns owner's balance of the ERC20 at mirrorHex (with or
// without 0x prefix) as a decimal string. It returns nil when the mirror
// address is empty or the query fails.
func (r *Reader) MirrorBalance(ctx context.Context, mirrorHex string, owner common.Address) *string {
	if mirrorHex == "" {
		return nil
	}
	if len(mirrorHex) < 2 || mirrorHex[:2] != "0x" {
		mirrorHex = "0x" + mirrorHex
	}
	if !common.IsHexAddress(mirrorHex) {
		log.WithField("token", mirrorHex).Warn("balances: invalid mirror address")
		return nil
	}

	bal, err := r.aurora.BalanceOf(ctx, common.HexToAddress(mirrorHex), owner)
	if err != nil {
		log.WithFields(log.Fields{"token": mirrorHex, "owner": owner.Hex()}).Warnf("balances: balanceOf failed: %v", err)
		return nil
	}
	s := bal.String()
	return &s
}
