// Package tracker owns transfer records after submission: it stores them
// and moves them to a terminal state as confirmations land.
package tracker

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"

	"github.com/RaghavSood/aurorabridge/db"
	"github.com/RaghavSood/aurorabridge/transfers"
)

// StepWithdrawMined is recorded once an Aurora withdrawal is in a block.
const StepWithdrawMined = "withdraw-mined"

// Store persists transfer records. *db.Store satisfies it.
type Store interface {
	InsertTransfer(ctx context.Context, arg db.InsertTransferParams) (int64, error)
	ListTransfersByStatus(ctx context.Context, status string) ([]db.Transfer, error)
	ListRecentTransfers(ctx context.Context, arg db.ListRecentTransfersParams) ([]db.Transfer, error)
	UpdateTransferProgress(ctx context.Context, arg db.UpdateTransferProgressParams) error
}

// StatusChecker reports "pending", "completed" or "failed" for an Aurora
// transaction. *aurora.Client satisfies it.
type StatusChecker interface {
	TransferStatus(ctx context.Context, hash common.Hash) (string, error)
}

// Notifier is told about every status change.
type Notifier interface {
	NotifyTransfer(t transfers.Transfer)
}

type Config struct {
	Interval   time.Duration
	StuckAfter time.Duration
}

type Tracker struct {
	cfg      Config
	store    Store
	aurora   StatusChecker
	notifier Notifier
	now      func() time.Time
}

// New creates a Tracker. notifier may be nil.
func New(cfg Config, store Store, aurora StatusChecker, notifier Notifier) *Tracker {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Second
	}
	if cfg.StuckAfter <= 0 {
		cfg.StuckAfter = time.Hour
	}
	return &Tracker{
		cfg:      cfg,
		store:    store,
		aurora:   aurora,
		notifier: notifier,
		now:      time.Now,
	}
}

// SetNotifier replaces the notifier; used when the bot starts after the
// tracker has been constructed.
func (t *Tracker) SetNotifier(n Notifier) {
	t.notifier = n
}

// Track stores a new record and returns its id.
func (t *Tracker) Track(ctx context.Context, tr transfers.Transfer) (int64, error) {
	errs := tr.Errors
	if errs == nil {
		errs = []string{}
	}
	errJSON, err := json.Marshal(errs)
	if err != nil {
		return 0, err
	}

	id, err := t.store.InsertTransfer(ctx, db.InsertTransferParams{
		Status:          tr.Status,
		Type:            tr.Type,
		Amount:          tr.Amount,
		Decimals:        int64(tr.Decimals),
		SourceTokenName: tr.SourceTokenName,
		CompletedStep:   nullString(tr.CompletedStep),
		Sender:          tr.Sender,
		Recipient:       tr.Recipient,
		Errors:          string(errJSON),
		Hash:            sql.NullString{String: tr.Hash, Valid: tr.Hash != ""},
	})
	if err != nil {
		return 0, fmt.Errorf("inserting transfer: %w", err)
	}
	log.Printf("Tracker: tracking transfer %d (%s %s %s)", id, tr.Type, tr.Amount, tr.SourceTokenName)
	return id, nil
}

// Recent returns the newest records first.
func (t *Tracker) Recent(ctx context.Context, limit, offset int64) ([]transfers.Transfer, error) {
	rows, err := t.store.ListRecentTransfers(ctx, db.ListRecentTransfersParams{Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	out := make([]transfers.Transfer, 0, len(rows))
	for _, r := range rows {
		out = append(out, fromRow(r))
	}
	return out, nil
}

func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.cfg.Interval)
	defer ticker.Stop()

	// Run once immediately on start
	t.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Println("Tracker stopped")
			return
		case <-ticker.C:
			t.poll(ctx)
		}
	}
}

func (t *Tracker) poll(ctx context.Context) {
	pending, err := t.store.ListTransfersByStatus(ctx, transfers.StatusInProgress)
	if err != nil {
		log.Printf("Tracker: error listing pending transfers: %v", err)
		return
	}

	if len(pending) == 0 {
		return
	}

	log.Printf("Tracker: checking %d pending transfer(s)", len(pending))

	for _, row := range pending {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if row.Hash.Valid && row.Hash.String != "" {
			t.checkWithdrawal(ctx, row)
		} else {
			t.checkStuck(ctx, row)
		}
	}
}

func (t *Tracker) checkWithdrawal(ctx context.Context, row db.Transfer) {
	status, err := t.aurora.TransferStatus(ctx, common.HexToHash(row.Hash.String))
	if err != nil {
		log.Printf("Tracker: error checking transfer %d: %v", row.ID, err)
		return
	}

	log.Printf("Tracker: transfer %d status = %s", row.ID, status)

	tr := fromRow(row)
	step := StepWithdrawMined
	switch status {
	case "completed":
		tr.Status = transfers.StatusComplete
	case "failed":
		tr.Status = transfers.StatusFailed
		tr.Errors = append(tr.Errors, fmt.Sprintf("aurora transaction %s reverted", row.Hash.String))
	default:
		return
	}
	tr.CompletedStep = &step
	t.update(ctx, tr)
}

// checkStuck flags records without a chain hash that have sat in progress
// for too long. Their NEAR submission either failed or was never confirmed.
func (t *Tracker) checkStuck(ctx context.Context, row db.Transfer) {
	if t.now().Sub(row.CreatedAt) < t.cfg.StuckAfter {
		return
	}
	tr := fromRow(row)
	tr.Status = transfers.StatusStuck
	tr.Errors = append(tr.Errors, fmt.Sprintf("no confirmation after %s", t.cfg.StuckAfter))
	t.update(ctx, tr)
}

func (t *Tracker) update(ctx context.Context, tr transfers.Transfer) {
	errJSON, err := json.Marshal(tr.Errors)
	if err != nil {
		log.Printf("Tracker: error encoding errors for %d: %v", tr.ID, err)
		return
	}
	if err := t.store.UpdateTransferProgress(ctx, db.UpdateTransferProgressParams{
		Status:        tr.Status,
		CompletedStep: nullString(tr.CompletedStep),
		Errors:        string(errJSON),
		ID:            tr.ID,
	}); err != nil {
		log.Printf("Tracker: error updating transfer %d: %v", tr.ID, err)
		return
	}
	log.Printf("Tracker: transfer %d %s", tr.ID, tr.Status)
	if t.notifier != nil {
		t.notifier.NotifyTransfer(tr)
	}
}

func fromRow(r db.Transfer) transfers.Transfer {
	tr := transfers.Transfer{
		ID:              r.ID,
		Status:          r.Status,
		Type:            r.Type,
		Amount:          r.Amount,
		Decimals:        int(r.Decimals),
		SourceTokenName: r.SourceTokenName,
		Sender:          r.Sender,
		Recipient:       r.Recipient,
		Errors:          []string{},
		Hash:            r.Hash.String,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	if r.CompletedStep.Valid {
		step := r.CompletedStep.String
		tr.CompletedStep = &step
	}
	if r.Errors != "" {
		if err := json.Unmarshal([]byte(r.Errors), &tr.Errors); err != nil {
			tr.Errors = []string{r.Errors}
		}
	}
	return tr
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
