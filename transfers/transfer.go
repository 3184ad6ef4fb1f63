// Package transfers builds the records and chain calls that move tokens
// between NEAR and Aurora.
package transfers

import (
	"context"
	"time"
)

const (
	TypeSendToNear   = "aurora<>near/sendToNear"
	TypeSendToAurora = "aurora<>near/sendToAurora"

	StatusInProgress = "in-progress"
	StatusComplete   = "complete"
	StatusFailed     = "failed"
	StatusStuck      = "stuck"
)

// Transfer is one tracked cross-chain transfer. Records are created here in
// the in-progress state and owned by a Tracker afterwards.
type Transfer struct {
	ID              int64     `json:"id,omitempty"`
	Status          string    `json:"status"`
	Type            string    `json:"type"`
	Amount          string    `json:"amount"`
	Decimals        int       `json:"decimals"`
	SourceTokenName string    `json:"sourceTokenName"`
	CompletedStep   *string   `json:"completedStep"`
	Sender          string    `json:"sender"`
	Recipient       string    `json:"recipient"`
	Errors          []string  `json:"errors"`
	Hash            string    `json:"hash,omitempty"`
	CreatedAt       time.Time `json:"createdAt,omitempty"`
	UpdatedAt       time.Time `json:"updatedAt,omitempty"`
}

func newTransfer(kind, amount string, decimals int, name, sender, recipient string) Transfer {
	return Transfer{
		Status:          StatusInProgress,
		Type:            kind,
		Amount:          amount,
		Decimals:        decimals,
		SourceTokenName: name,
		CompletedStep:   nil,
		Sender:          sender,
		Recipient:       recipient,
		Errors:          []string{},
	}
}

// Tracker takes ownership of a newly created transfer record.
type Tracker interface {
	Track(ctx context.Context, t Transfer) (int64, error)
}
