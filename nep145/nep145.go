// Package nep145 reads and satisfies the NEP-145 storage deposit a fungible
// token contract requires before an account may hold its balance.
package nep145

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	log "github.com/sirupsen/logrus"

	"github.com/RaghavSood/aurorabridge/near"
)

// Viewer runs a read-only contract view. *near.Client satisfies it.
type Viewer interface {
	ViewFunction(ctx context.Context, contractID, method string, args interface{}, out interface{}) error
}

// Caller submits a single function call. *near.Signer satisfies it.
type Caller interface {
	FunctionCall(ctx context.Context, contractID, method string, args []byte, gas uint64, deposit *big.Int) (*near.TxOutcome, error)
}

// StorageBalance is the storage_balance_of result.
type StorageBalance struct {
	Total     string `json:"total"`
	Available string `json:"available"`
}

// TotalInt parses Total, treating an unparseable value as zero.
func (b *StorageBalance) TotalInt() *big.Int {
	n, ok := new(big.Int).SetString(b.Total, 10)
	if !ok {
		return new(big.Int)
	}
	return n
}

// minimumQuery is one way of asking a token for its minimum storage deposit.
type minimumQuery struct {
	method string
	decode func(raw json.RawMessage) (string, error)
}

// minimumQueries are tried in order; the first success wins.
var minimumQueries = []minimumQuery{
	{
		method: "storage_balance_bounds",
		decode: func(raw json.RawMessage) (string, error) {
			var bounds struct {
				Min string  `json:"min"`
				Max *string `json:"max"`
			}
			if err := json.Unmarshal(raw, &bounds); err != nil {
				return "", err
			}
			if bounds.Min == "" {
				return "", errors.New("bounds missing min")
			}
			return bounds.Min, nil
		},
	},
	{
		method: "storage_minimum_balance",
		decode: func(raw json.RawMessage) (string, error) {
			var min string
			if err := json.Unmarshal(raw, &min); err != nil {
				return "", err
			}
			return min, nil
		},
	},
}

// Manager answers storage questions for any NEP-141 token.
type Manager struct {
	viewer Viewer
	caller Caller
}

// NewManager creates a Manager. caller may be nil when only reads are needed.
func NewManager(viewer Viewer, caller Caller) *Manager {
	return &Manager{
		viewer: viewer,
		caller: caller,
	}
}

// MinimumStorageBalance returns the deposit in yoctoNEAR that registers an
// account with token. It fails only when every known query fails.
func (m *Manager) MinimumStorageBalance(ctx context.Context, token string) (string, error) {
	var errs []error
	for _, q := range minimumQueries {
		var raw json.RawMessage
		err := m.viewer.ViewFunction(ctx, token, q.method, nil, &raw)
		if err == nil {
			var min string
			min, err = q.decode(raw)
			if err == nil {
				return min, nil
			}
		}
		errs = append(errs, fmt.Errorf("%s: %w", q.method, err))
	}
	return "", fmt.Errorf("minimum storage balance of %s: %w", token, errors.Join(errs...))
}

// StorageBalance returns account's storage balance with token, or nil when
// the account is unregistered or the query fails.
func (m *Manager) StorageBalance(ctx context.Context, token, account string) *StorageBalance {
	var bal *StorageBalance
	args := map[string]string{"account_id": account}
	if err := m.viewer.ViewFunction(ctx, token, "storage_balance_of", args, &bal); err != nil {
		log.WithFields(log.Fields{"token": token, "account": account}).Warnf("nep145: storage_balance_of failed: %v", err)
		return nil
	}
	return bal
}

// EnsureStorageRegistered pays the minimum deposit to register account with
// token. Callers check StorageBalance first; a repeated registration may be
// refunded or rejected depending on the contract.
func (m *Manager) EnsureStorageRegistered(ctx context.Context, token, account string) (*near.TxOutcome, error) {
	if m.caller == nil {
		return nil, errors.New("nep145: no signer configured")
	}

	min, err := m.MinimumStorageBalance(ctx, token)
	if err != nil {
		return nil, err
	}
	deposit, ok := new(big.Int).SetString(min, 10)
	if !ok {
		return nil, fmt.Errorf("invalid minimum storage balance %q for %s", min, token)
	}

	fc, err := RegistrationCall(account, deposit)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"token": token, "account": account}).Infof("nep145: registering storage, deposit %s", min)
	return m.caller.FunctionCall(ctx, token, fc.MethodName, fc.Args, fc.Gas, fc.Deposit)
}

// RegistrationCall is the storage_deposit action registering account with
// the receiving token for deposit yoctoNEAR.
func RegistrationCall(account string, deposit *big.Int) (near.FunctionCall, error) {
	return near.NewFunctionCall("storage_deposit", map[string]interface{}{
		"account_id":        account,
		"registration_only": true,
	}, near.DefaultGas, deposit)
}
