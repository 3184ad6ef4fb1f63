package db

import (
	"context"
	"database/sql"
	"time"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

type Transfer struct {
	ID              int64          `json:"id"`
	Status          string         `json:"status"`
	Type            string         `json:"type"`
	Amount          string         `json:"amount"`
	Decimals        int64          `json:"decimals"`
	SourceTokenName string         `json:"source_token_name"`
	CompletedStep   sql.NullString `json:"completed_step"`
	Sender          string         `json:"sender"`
	Recipient       string         `json:"recipient"`
	Errors          string         `json:"errors"`
	Hash            sql.NullString `json:"hash"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

const transferColumns = `id, status, type, amount, decimals, source_token_name, completed_step, sender, recipient, errors, hash, created_at, updated_at`

func scanTransfer(row interface{ Scan(...interface{}) error }) (Transfer, error) {
	var i Transfer
	err := row.Scan(
		&i.ID,
		&i.Status,
		&i.Type,
		&i.Amount,
		&i.Decimals,
		&i.SourceTokenName,
		&i.CompletedStep,
		&i.Sender,
		&i.Recipient,
		&i.Errors,
		&i.Hash,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getValue = `SELECT value FROM kv WHERE key = ?`

func (q *Queries) GetValue(ctx context.Context, key string) (string, error) {
	row := q.db.QueryRowContext(ctx, getValue, key)
	var value string
	err := row.Scan(&value)
	return value, err
}

const setValue = `INSERT INTO kv (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`

type SetValueParams struct {
	Key   string
	Value string
}

func (q *Queries) SetValue(ctx context.Context, arg SetValueParams) error {
	_, err := q.db.ExecContext(ctx, setValue, arg.Key, arg.Value)
	return err
}

const deleteValue = `DELETE FROM kv WHERE key = ?`

func (q *Queries) DeleteValue(ctx context.Context, key string) error {
	_, err := q.db.ExecContext(ctx, deleteValue, key)
	return err
}

const insertTransfer = `INSERT INTO transfers (
    status, type, amount, decimals, source_token_name, completed_step, sender, recipient, errors, hash
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

type InsertTransferParams struct {
	Status          string
	Type            string
	Amount          string
	Decimals        int64
	SourceTokenName string
	CompletedStep   sql.NullString
	Sender          string
	Recipient       string
	Errors          string
	Hash            sql.NullString
}

func (q *Queries) InsertTransfer(ctx context.Context, arg InsertTransferParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, insertTransfer,
		arg.Status,
		arg.Type,
		arg.Amount,
		arg.Decimals,
		arg.SourceTokenName,
		arg.CompletedStep,
		arg.Sender,
		arg.Recipient,
		arg.Errors,
		arg.Hash,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

const getTransfer = `SELECT ` + transferColumns + ` FROM transfers WHERE id = ?`

func (q *Queries) GetTransfer(ctx context.Context, id int64) (Transfer, error) {
	row := q.db.QueryRowContext(ctx, getTransfer, id)
	return scanTransfer(row)
}

const listTransfersByStatus = `SELECT ` + transferColumns + ` FROM transfers WHERE status = ? ORDER BY id`

func (q *Queries) ListTransfersByStatus(ctx context.Context, status string) ([]Transfer, error) {
	rows, err := q.db.QueryContext(ctx, listTransfersByStatus, status)
	if err != nil {
		return nil, err
	}
	return collectTransfers(rows)
}

const listRecentTransfers = `SELECT ` + transferColumns + ` FROM transfers ORDER BY id DESC LIMIT ? OFFSET ?`

type ListRecentTransfersParams struct {
	Limit  int64
	Offset int64
}

func (q *Queries) ListRecentTransfers(ctx context.Context, arg ListRecentTransfersParams) ([]Transfer, error) {
	rows, err := q.db.QueryContext(ctx, listRecentTransfers, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	return collectTransfers(rows)
}

func collectTransfers(rows *sql.Rows) ([]Transfer, error) {
	defer rows.Close()
	var items []Transfer
	for rows.Next() {
		i, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateTransferProgress = `UPDATE transfers
SET status = ?, completed_step = ?, errors = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ?`

type UpdateTransferProgressParams struct {
	Status        string
	CompletedStep sql.NullString
	Errors        string
	ID            int64
}

func (q *Queries) UpdateTransferProgress(ctx context.Context, arg UpdateTransferProgressParams) error {
	_, err := q.db.ExecContext(ctx, updateTransferProgress,
		arg.Status,
		arg.CompletedStep,
		arg.Errors,
		arg.ID,
	)
	return err
}

const insertAPIRequest = `INSERT INTO api_requests (
    provider, rpc_method, method, url, request_headers, request_body,
    response_status, response_headers, response_body, duration_ms, error
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

type InsertAPIRequestParams struct {
	Provider        string
	RpcMethod       sql.NullString
	Method          string
	Url             string
	RequestHeaders  sql.NullString
	RequestBody     sql.NullString
	ResponseStatus  sql.NullInt64
	ResponseHeaders sql.NullString
	ResponseBody    sql.NullString
	DurationMs      sql.NullInt64
	Error           sql.NullString
}

func (q *Queries) InsertAPIRequest(ctx context.Context, arg InsertAPIRequestParams) error {
	_, err := q.db.ExecContext(ctx, insertAPIRequest,
		arg.Provider,
		arg.RpcMethod,
		arg.Method,
		arg.Url,
		arg.RequestHeaders,
		arg.RequestBody,
		arg.ResponseStatus,
		arg.ResponseHeaders,
		arg.ResponseBody,
		arg.DurationMs,
		arg.Error,
	)
	return err
}

const countAPIRequests = `SELECT COUNT(*) FROM api_requests WHERE provider = ?`

func (q *Queries) CountAPIRequests(ctx context.Context, provider string) (int64, error) {
	row := q.db.QueryRowContext(ctx, countAPIRequests, provider)
	var count int64
	err := row.Scan(&count)
	return count, err
}
