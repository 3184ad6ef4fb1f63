package db

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "bridge.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestKeyValue(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, ok, err := s.Lookup(ctx, "custom-nep141s")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Put(ctx, "custom-nep141s", `["a.near"]`))
	require.NoError(t, s.Put(ctx, "custom-nep141s", `["a.near","b.near"]`))

	v, ok, err := s.Lookup(ctx, "custom-nep141s")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, `["a.near","b.near"]`, v)

	require.NoError(t, s.Remove(ctx, "custom-nep141s"))
	require.NoError(t, s.Remove(ctx, "custom-nep141s"))
	_, ok, err = s.Lookup(ctx, "custom-nep141s")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestTransfers(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	id, err := s.InsertTransfer(ctx, InsertTransferParams{
		Status:          "in-progress",
		Type:            "aurora<>near/sendToNear",
		Amount:          "100",
		Decimals:        6,
		SourceTokenName: "TKA",
		Sender:          "0xabc",
		Recipient:       "alice.near",
		Errors:          "[]",
		Hash:            sql.NullString{String: "0xdead", Valid: true},
	})
	require.NoError(t, err)

	tr, err := s.GetTransfer(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "in-progress", tr.Status)
	require.False(t, tr.CompletedStep.Valid)
	require.Equal(t, "0xdead", tr.Hash.String)
	require.False(t, tr.CreatedAt.IsZero())

	pending, err := s.ListTransfersByStatus(ctx, "in-progress")
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, s.UpdateTransferProgress(ctx, UpdateTransferProgressParams{
		Status:        "complete",
		CompletedStep: sql.NullString{String: "withdraw-mined", Valid: true},
		Errors:        "[]",
		ID:            id,
	}))

	pending, err = s.ListTransfersByStatus(ctx, "in-progress")
	require.NoError(t, err)
	require.Empty(t, pending)

	recent, err := s.ListRecentTransfers(ctx, ListRecentTransfersParams{Limit: 10})
	require.NoError(t, err)
	require.Len(t, recent, 1)
	require.Equal(t, "complete", recent[0].Status)
	require.Equal(t, "withdraw-mined", recent[0].CompletedStep.String)
}

func TestAPIRequests(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.InsertAPIRequest(ctx, InsertAPIRequestParams{
		Provider:  "near",
		RpcMethod: sql.NullString{String: "query", Valid: true},
		Method:    "POST",
		Url:       "https://rpc.testnet.near.org",
	}))

	n, err := s.CountAPIRequests(ctx, "near")
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}
