package tracker

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/RaghavSood/aurorabridge/db"
	"github.com/RaghavSood/aurorabridge/transfers"
)

type fakeChecker struct {
	statuses map[common.Hash]string
	err      error
}

func (f *fakeChecker) TransferStatus(ctx context.Context, hash common.Hash) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	s, ok := f.statuses[hash]
	if !ok {
		return "pending", nil
	}
	return s, nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	seen []transfers.Transfer
}

func (r *recordingNotifier) NotifyTransfer(t transfers.Transfer) {
	r.mu.Lock()
	r.seen = append(r.seen, t)
	r.mu.Unlock()
}

func newTestTracker(t *testing.T, checker StatusChecker) (*Tracker, *db.Store, *recordingNotifier) {
	t.Helper()
	store, err := db.Open(filepath.Join(t.TempDir(), "tracker.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	n := &recordingNotifier{}
	tr := New(Config{Interval: time.Second, StuckAfter: time.Hour}, store, checker, n)
	return tr, store, n
}

func sendToAurora() transfers.Transfer {
	return transfers.Transfer{
		Status:          transfers.StatusInProgress,
		Type:            transfers.TypeSendToAurora,
		Amount:          "100",
		Decimals:        6,
		SourceTokenName: "TKA",
		Sender:          "alice.near",
		Recipient:       "0x1111111111111111111111111111111111111111",
		Errors:          []string{},
	}
}

func sendToNear(hash string) transfers.Transfer {
	return transfers.Transfer{
		Status:          transfers.StatusInProgress,
		Type:            transfers.TypeSendToNear,
		Amount:          "500",
		Decimals:        6,
		SourceTokenName: "TKA",
		Sender:          "0x1111111111111111111111111111111111111111",
		Recipient:       "alice.near",
		Errors:          []string{},
		Hash:            hash,
	}
}

func TestTrackStoresRecord(t *testing.T) {
	ctx := context.Background()
	tr, store, _ := newTestTracker(t, &fakeChecker{})

	id, err := tr.Track(ctx, sendToAurora())
	require.NoError(t, err)

	row, err := store.GetTransfer(ctx, id)
	require.NoError(t, err)
	require.Equal(t, transfers.StatusInProgress, row.Status)
	require.Equal(t, "[]", row.Errors)
	require.False(t, row.CompletedStep.Valid)
	require.False(t, row.Hash.Valid)

	recent, err := tr.Recent(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	require.Equal(t, id, recent[0].ID)
	require.Nil(t, recent[0].CompletedStep)
	require.Equal(t, []string{}, recent[0].Errors)
}

func TestPollCompletesWithdrawal(t *testing.T) {
	ctx := context.Background()
	done := common.HexToHash("0x01")
	reverted := common.HexToHash("0x02")
	pending := common.HexToHash("0x03")
	checker := &fakeChecker{statuses: map[common.Hash]string{done: "completed", reverted: "failed"}}
	tr, store, n := newTestTracker(t, checker)

	doneID, err := tr.Track(ctx, sendToNear(done.Hex()))
	require.NoError(t, err)
	revertedID, err := tr.Track(ctx, sendToNear(reverted.Hex()))
	require.NoError(t, err)
	pendingID, err := tr.Track(ctx, sendToNear(pending.Hex()))
	require.NoError(t, err)

	tr.poll(ctx)

	row, err := store.GetTransfer(ctx, doneID)
	require.NoError(t, err)
	require.Equal(t, transfers.StatusComplete, row.Status)
	require.Equal(t, StepWithdrawMined, row.CompletedStep.String)

	row, err = store.GetTransfer(ctx, revertedID)
	require.NoError(t, err)
	require.Equal(t, transfers.StatusFailed, row.Status)
	require.Contains(t, row.Errors, "reverted")

	row, err = store.GetTransfer(ctx, pendingID)
	require.NoError(t, err)
	require.Equal(t, transfers.StatusInProgress, row.Status)

	require.Len(t, n.seen, 2)
}

func TestPollCheckerErrorLeavesRecord(t *testing.T) {
	ctx := context.Background()
	tr, store, n := newTestTracker(t, &fakeChecker{err: errors.New("rpc down")})

	id, err := tr.Track(ctx, sendToNear(common.HexToHash("0x01").Hex()))
	require.NoError(t, err)
	tr.poll(ctx)

	row, err := store.GetTransfer(ctx, id)
	require.NoError(t, err)
	require.Equal(t, transfers.StatusInProgress, row.Status)
	require.Empty(t, n.seen)
}

func TestPollMarksStuck(t *testing.T) {
	ctx := context.Background()
	tr, store, n := newTestTracker(t, &fakeChecker{})

	id, err := tr.Track(ctx, sendToAurora())
	require.NoError(t, err)

	tr.poll(ctx)
	row, err := store.GetTransfer(ctx, id)
	require.NoError(t, err)
	require.Equal(t, transfers.StatusInProgress, row.Status)

	tr.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	tr.poll(ctx)

	row, err = store.GetTransfer(ctx, id)
	require.NoError(t, err)
	require.Equal(t, transfers.StatusStuck, row.Status)
	require.False(t, row.CompletedStep.Valid)
	require.Contains(t, row.Errors, "no confirmation")

	require.Len(t, n.seen, 1)
	require.Equal(t, transfers.StatusStuck, n.seen[0].Status)
	require.Len(t, n.seen[0].Errors, 1)
}

func TestRunStopsOnCancel(t *testing.T) {
	tr, _, _ := newTestTracker(t, &fakeChecker{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		tr.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("tracker did not stop")
	}
}
