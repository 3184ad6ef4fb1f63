package nep145

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/RaghavSood/aurorabridge/near"
)

// fakeViewer answers views from canned JSON keyed by "contract.method".
type fakeViewer struct {
	results map[string]string
	calls   []string
}

func (f *fakeViewer) ViewFunction(ctx context.Context, contractID, method string, args interface{}, out interface{}) error {
	f.calls = append(f.calls, method)
	raw, ok := f.results[contractID+"."+method]
	if !ok {
		return &near.RPCError{Name: "QUERY_ERROR", Message: "MethodNotFound"}
	}
	return json.Unmarshal([]byte(raw), out)
}

type recordedCall struct {
	contract string
	method   string
	args     string
	gas      uint64
	deposit  *big.Int
}

type fakeCaller struct {
	calls []recordedCall
}

func (f *fakeCaller) FunctionCall(ctx context.Context, contractID, method string, args []byte, gas uint64, deposit *big.Int) (*near.TxOutcome, error) {
	f.calls = append(f.calls, recordedCall{contractID, method, string(args), gas, deposit})
	return &near.TxOutcome{}, nil
}

func TestMinimumStorageBalanceBounds(t *testing.T) {
	v := &fakeViewer{results: map[string]string{
		"tokenA.storage_balance_bounds": `{"min":"1250000000000000000000","max":"1250000000000000000000"}`,
	}}
	m := NewManager(v, nil)

	min, err := m.MinimumStorageBalance(context.Background(), "tokenA")
	require.NoError(t, err)
	require.Equal(t, "1250000000000000000000", min)
	require.Equal(t, []string{"storage_balance_bounds"}, v.calls)
}

func TestMinimumStorageBalanceFallback(t *testing.T) {
	v := &fakeViewer{results: map[string]string{
		"legacy.storage_minimum_balance": `"2350000000000000000000"`,
	}}
	m := NewManager(v, nil)

	min, err := m.MinimumStorageBalance(context.Background(), "legacy")
	require.NoError(t, err)
	require.Equal(t, "2350000000000000000000", min)
	require.Equal(t, []string{"storage_balance_bounds", "storage_minimum_balance"}, v.calls)
}

func TestMinimumStorageBalanceBothFail(t *testing.T) {
	v := &fakeViewer{results: map[string]string{}}
	m := NewManager(v, nil)

	_, err := m.MinimumStorageBalance(context.Background(), "broken")
	require.Error(t, err)
	require.Contains(t, err.Error(), "storage_balance_bounds")
	require.Contains(t, err.Error(), "storage_minimum_balance")
	require.Equal(t, []string{"storage_balance_bounds", "storage_minimum_balance"}, v.calls)

	var rpcErr *near.RPCError
	require.True(t, errors.As(err, &rpcErr))
}

func TestStorageBalance(t *testing.T) {
	v := &fakeViewer{results: map[string]string{
		"tokenA.storage_balance_of": `{"total":"1250000000000000000000","available":"0"}`,
		"tokenB.storage_balance_of": `null`,
	}}
	m := NewManager(v, nil)
	ctx := context.Background()

	bal := m.StorageBalance(ctx, "tokenA", "aurora")
	require.NotNil(t, bal)
	require.Equal(t, "1250000000000000000000", bal.Total)
	require.Equal(t, "1250000000000000000000", bal.TotalInt().String())

	require.Nil(t, m.StorageBalance(ctx, "tokenB", "aurora"))
	require.Nil(t, m.StorageBalance(ctx, "tokenC", "aurora"))
}

func TestEnsureStorageRegistered(t *testing.T) {
	v := &fakeViewer{results: map[string]string{
		"tokenA.storage_balance_bounds": `{"min":"1250000000000000000000","max":null}`,
	}}
	c := &fakeCaller{}
	m := NewManager(v, c)

	_, err := m.EnsureStorageRegistered(context.Background(), "tokenA", "alice.near")
	require.NoError(t, err)
	require.Len(t, c.calls, 1)

	call := c.calls[0]
	require.Equal(t, "tokenA", call.contract)
	require.Equal(t, "storage_deposit", call.method)
	require.JSONEq(t, `{"account_id":"alice.near","registration_only":true}`, call.args)
	require.Equal(t, near.DefaultGas, call.gas)
	require.Equal(t, "1250000000000000000000", call.deposit.String())
}

func TestEnsureStorageRegisteredWithoutSigner(t *testing.T) {
	m := NewManager(&fakeViewer{}, nil)
	_, err := m.EnsureStorageRegistered(context.Background(), "tokenA", "alice.near")
	require.Error(t, err)
}
