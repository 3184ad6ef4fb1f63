package near

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync/atomic"
	"time"
)

// storageAmountPerByte is the protocol's yoctoNEAR cost of one byte of state.
var storageAmountPerByte = new(big.Int).Exp(big.NewInt(10), big.NewInt(19), nil)

// RPCError is a fault reported by the node, either as a JSON-RPC error
// object or as an error string inside a query result.
type RPCError struct {
	Name    string          `json:"name"`
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Cause   struct {
		Name string          `json:"name"`
		Info json.RawMessage `json:"info"`
	} `json:"cause"`
}

func (e *RPCError) Error() string {
	if e.Cause.Name != "" {
		return fmt.Sprintf("near rpc: %s: %s", e.Name, e.Cause.Name)
	}
	if len(e.Data) > 0 {
		return fmt.Sprintf("near rpc: %s: %s", e.Message, string(e.Data))
	}
	return "near rpc: " + e.Message
}

type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      string      `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// Client talks to a NEAR node over JSON-RPC.
type Client struct {
	url        string
	httpClient *http.Client
	nextID     atomic.Uint64
}

// NewClient creates a client for rpcURL. A nil httpClient gets a 30s timeout.
func NewClient(rpcURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		url:        rpcURL,
		httpClient: httpClient,
	}
}

func (c *Client) call(ctx context.Context, method string, params interface{}, out interface{}) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      fmt.Sprintf("%d", c.nextID.Add(1)),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("requesting %s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	var rr rpcResponse
	if err := json.Unmarshal(raw, &rr); err != nil {
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("near rpc returned %d: %s", resp.StatusCode, string(raw))
		}
		return fmt.Errorf("parsing %s response: %w", method, err)
	}
	if rr.Error != nil {
		return rr.Error
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(rr.Result, out); err != nil {
		return fmt.Errorf("parsing %s result: %w", method, err)
	}
	return nil
}

// queryResult covers the fields of every query response we read. Older
// nodes report contract failures as an "error" string here instead of a
// JSON-RPC error.
type queryResult struct {
	Error       string `json:"error"`
	Result      []int  `json:"result"`
	BlockHeight uint64 `json:"block_height"`
	BlockHash   string `json:"block_hash"`
}

// CallFunction runs a read-only contract method with raw argument bytes and
// returns the raw result bytes.
func (c *Client) CallFunction(ctx context.Context, accountID, method string, args []byte) ([]byte, error) {
	params := map[string]string{
		"request_type": "call_function",
		"finality":     "final",
		"account_id":   accountID,
		"method_name":  method,
		"args_base64":  base64.StdEncoding.EncodeToString(args),
	}

	var qr queryResult
	if err := c.call(ctx, "query", params, &qr); err != nil {
		return nil, err
	}
	if qr.Error != "" {
		return nil, &RPCError{Name: "QUERY_ERROR", Message: qr.Error}
	}

	out := make([]byte, len(qr.Result))
	for i, b := range qr.Result {
		out[i] = byte(b)
	}
	return out, nil
}

// ViewFunction JSON-encodes args, calls method on contractID and decodes the
// JSON result into out. A nil args sends an empty object.
func (c *Client) ViewFunction(ctx context.Context, contractID, method string, args interface{}, out interface{}) error {
	if args == nil {
		args = struct{}{}
	}
	argBytes, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encoding %s args: %w", method, err)
	}

	raw, err := c.CallFunction(ctx, contractID, method, argBytes)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decoding %s.%s result: %w", contractID, method, err)
	}
	return nil
}

// AccountView is the state of a NEAR account.
type AccountView struct {
	Amount       string `json:"amount"`
	Locked       string `json:"locked"`
	StorageUsage uint64 `json:"storage_usage"`
	CodeHash     string `json:"code_hash"`
}

// Available is the balance that can be spent: total minus whatever is held
// back for staking or state, whichever is larger.
func (a *AccountView) Available() (*big.Int, error) {
	amount, ok := new(big.Int).SetString(a.Amount, 10)
	if !ok {
		return nil, fmt.Errorf("invalid account amount %q", a.Amount)
	}
	locked := new(big.Int)
	if a.Locked != "" {
		if _, ok := locked.SetString(a.Locked, 10); !ok {
			return nil, fmt.Errorf("invalid locked amount %q", a.Locked)
		}
	}

	stateStaked := new(big.Int).Mul(new(big.Int).SetUint64(a.StorageUsage), storageAmountPerByte)
	reserved := locked
	if stateStaked.Cmp(locked) > 0 {
		reserved = stateStaked
	}

	total := new(big.Int).Add(amount, locked)
	avail := total.Sub(total, reserved)
	if avail.Sign() < 0 {
		avail.SetInt64(0)
	}
	return avail, nil
}

func (c *Client) ViewAccount(ctx context.Context, accountID string) (*AccountView, error) {
	params := map[string]string{
		"request_type": "view_account",
		"finality":     "final",
		"account_id":   accountID,
	}
	var av AccountView
	if err := c.call(ctx, "query", params, &av); err != nil {
		return nil, fmt.Errorf("view_account %s: %w", accountID, err)
	}
	return &av, nil
}

// AccessKeyView carries the nonce and the block the key was read at.
type AccessKeyView struct {
	Nonce     uint64 `json:"nonce"`
	BlockHash string `json:"block_hash"`
	Error     string `json:"error"`
}

func (c *Client) ViewAccessKey(ctx context.Context, accountID, publicKey string) (*AccessKeyView, error) {
	params := map[string]string{
		"request_type": "view_access_key",
		"finality":     "final",
		"account_id":   accountID,
		"public_key":   publicKey,
	}
	var ak AccessKeyView
	if err := c.call(ctx, "query", params, &ak); err != nil {
		return nil, fmt.Errorf("view_access_key %s: %w", accountID, err)
	}
	if ak.Error != "" {
		return nil, &RPCError{Name: "QUERY_ERROR", Message: ak.Error}
	}
	return &ak, nil
}

// TxOutcome is the subset of a final execution outcome we act on.
type TxOutcome struct {
	Status      map[string]json.RawMessage `json:"status"`
	Transaction struct {
		Hash     string `json:"hash"`
		SignerID string `json:"signer_id"`
	} `json:"transaction"`
}

// Failure returns the execution failure, or nil when the transaction
// succeeded or is still pending.
func (o *TxOutcome) Failure() error {
	if f, ok := o.Status["Failure"]; ok {
		return fmt.Errorf("transaction %s failed: %s", o.Transaction.Hash, string(f))
	}
	return nil
}

// Succeeded reports whether the outcome carries a success value.
func (o *TxOutcome) Succeeded() bool {
	_, ok := o.Status["SuccessValue"]
	if ok {
		return true
	}
	_, ok = o.Status["SuccessReceiptId"]
	return ok
}

// BroadcastTxCommit submits a signed transaction and waits for its outcome.
func (c *Client) BroadcastTxCommit(ctx context.Context, signedTx []byte) (*TxOutcome, error) {
	var out TxOutcome
	if err := c.call(ctx, "broadcast_tx_commit", []string{base64.StdEncoding.EncodeToString(signedTx)}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TxStatus looks up a transaction by hash and signer.
func (c *Client) TxStatus(ctx context.Context, hash, senderID string) (*TxOutcome, error) {
	var out TxOutcome
	if err := c.call(ctx, "tx", []string{hash, senderID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
