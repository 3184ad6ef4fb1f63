package near

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"math/big"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Signer submits transactions on behalf of one account using a full access
// key. Nonces are reserved under a lock and cached across calls.
type Signer struct {
	client    *Client
	accountID string
	key       ed25519.PrivateKey

	mu    sync.Mutex
	nonce uint64
}

func NewSigner(client *Client, accountID string, key ed25519.PrivateKey) *Signer {
	return &Signer{
		client:    client,
		accountID: accountID,
		key:       key,
	}
}

func (s *Signer) AccountID() string {
	return s.accountID
}

// SignAndSendTransaction signs actions addressed to receiverID as one
// transaction and waits for the outcome. Execution failures are returned as
// errors alongside the outcome.
func (s *Signer) SignAndSendTransaction(ctx context.Context, receiverID string, actions []Action) (*TxOutcome, error) {
	pub := s.key.Public().(ed25519.PublicKey)

	nonce, blockHash, err := s.nextNonce(ctx, pub)
	if err != nil {
		return nil, err
	}

	tx := &Transaction{
		SignerID:   s.accountID,
		PublicKey:  pub,
		Nonce:      nonce,
		ReceiverID: receiverID,
		BlockHash:  blockHash,
		Actions:    actions,
	}
	signed, err := tx.Sign(s.key)
	if err != nil {
		return nil, fmt.Errorf("signing transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"receiver": receiverID,
		"actions":  len(actions),
		"hash":     signed.Hash,
	}).Info("near: broadcasting transaction")

	outcome, err := s.client.BroadcastTxCommit(ctx, signed.Encoded)
	if err != nil {
		return nil, fmt.Errorf("broadcasting %s: %w", signed.Hash, err)
	}
	if err := outcome.Failure(); err != nil {
		return outcome, err
	}
	return outcome, nil
}

// nextNonce reserves the nonce for the next transaction: one past the
// larger of the cached nonce and the access key's nonce.
func (s *Signer) nextNonce(ctx context.Context, pub ed25519.PublicKey) (uint64, [32]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ak, err := s.client.ViewAccessKey(ctx, s.accountID, PublicKeyString(pub))
	if err != nil {
		return 0, [32]byte{}, err
	}
	blockHash, err := DecodeBlockHash(ak.BlockHash)
	if err != nil {
		return 0, [32]byte{}, err
	}

	nonce := ak.Nonce + 1
	if s.nonce+1 > nonce {
		nonce = s.nonce + 1
	}
	s.nonce = nonce
	return nonce, blockHash, nil
}

// FunctionCall submits a single function call transaction with raw args.
func (s *Signer) FunctionCall(ctx context.Context, contractID, method string, args []byte, gas uint64, deposit *big.Int) (*TxOutcome, error) {
	return s.SignAndSendTransaction(ctx, contractID, []Action{FunctionCall{
		MethodName: method,
		Args:       args,
		Gas:        gas,
		Deposit:    deposit,
	}})
}
