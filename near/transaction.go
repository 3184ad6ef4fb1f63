package near

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/mr-tron/base58"
	"github.com/near/borsh-go"
)

// Action enum tags in the transaction encoding.
const (
	actionFunctionCall uint8 = 2
)

const keyTypeED25519 uint8 = 0

// Action is one step of a transaction. Only function calls are produced by
// this service.
type Action interface {
	wire() (wireAction, error)
}

// FunctionCall invokes MethodName on the transaction receiver.
type FunctionCall struct {
	MethodName string
	Args       []byte
	Gas        uint64
	Deposit    *big.Int
}

func (f FunctionCall) wire() (wireAction, error) {
	var deposit big.Int
	if f.Deposit != nil {
		if f.Deposit.Sign() < 0 || f.Deposit.BitLen() > 128 {
			return wireAction{}, fmt.Errorf("deposit %s does not fit in u128", f.Deposit)
		}
		deposit.Set(f.Deposit)
	}
	return wireAction{
		Enum: borsh.Enum(actionFunctionCall),
		FunctionCall: wireFunctionCall{
			MethodName: f.MethodName,
			Args:       f.Args,
			Gas:        f.Gas,
			Deposit:    deposit,
		},
	}, nil
}

// NewFunctionCall builds a function call whose args are the JSON encoding of
// args.
func NewFunctionCall(method string, args interface{}, gas uint64, deposit *big.Int) (FunctionCall, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return FunctionCall{}, fmt.Errorf("encoding %s args: %w", method, err)
	}
	return FunctionCall{MethodName: method, Args: raw, Gas: gas, Deposit: deposit}, nil
}

// Wire layout of the transaction, in field order.

type wirePublicKey struct {
	KeyType uint8
	Data    [ed25519.PublicKeySize]byte
}

type wireSignature struct {
	KeyType uint8
	Data    [ed25519.SignatureSize]byte
}

type wireFunctionCall struct {
	MethodName string
	Args       []byte
	Gas        uint64
	Deposit    big.Int
}

// wireAction is the action enum. Variants before FunctionCall are listed so
// the tag indexes the right field; they are never produced.
type wireAction struct {
	Enum           borsh.Enum `borsh_enum:"true"`
	CreateAccount  struct{}
	DeployContract struct{ Code []byte }
	FunctionCall   wireFunctionCall
}

type wireTransaction struct {
	SignerID   string
	PublicKey  wirePublicKey
	Nonce      uint64
	ReceiverID string
	BlockHash  [32]byte
	Actions    []wireAction
}

type wireSignedTransaction struct {
	Transaction wireTransaction
	Signature   wireSignature
}

// Transaction is an unsigned NEAR transaction.
type Transaction struct {
	SignerID   string
	PublicKey  ed25519.PublicKey
	Nonce      uint64
	ReceiverID string
	BlockHash  [32]byte
	Actions    []Action
}

func (t *Transaction) wire() (wireTransaction, error) {
	if len(t.PublicKey) != ed25519.PublicKeySize {
		return wireTransaction{}, fmt.Errorf("invalid public key length %d", len(t.PublicKey))
	}

	wt := wireTransaction{
		SignerID:   t.SignerID,
		PublicKey:  wirePublicKey{KeyType: keyTypeED25519},
		Nonce:      t.Nonce,
		ReceiverID: t.ReceiverID,
		BlockHash:  t.BlockHash,
		Actions:    make([]wireAction, 0, len(t.Actions)),
	}
	copy(wt.PublicKey.Data[:], t.PublicKey)
	for i, a := range t.Actions {
		wa, err := a.wire()
		if err != nil {
			return wireTransaction{}, fmt.Errorf("encoding action %d: %w", i, err)
		}
		wt.Actions = append(wt.Actions, wa)
	}
	return wt, nil
}

// Encode returns the transaction's binary form.
func (t *Transaction) Encode() ([]byte, error) {
	wt, err := t.wire()
	if err != nil {
		return nil, err
	}
	return borsh.Serialize(wt)
}

// SignedTransaction is an encoded transaction with its signature.
type SignedTransaction struct {
	Encoded []byte
	Hash    string
}

// Sign hashes the encoded transaction with sha256 and signs the digest.
func (t *Transaction) Sign(key ed25519.PrivateKey) (*SignedTransaction, error) {
	wt, err := t.wire()
	if err != nil {
		return nil, err
	}
	encoded, err := borsh.Serialize(wt)
	if err != nil {
		return nil, err
	}
	digest := sha256.Sum256(encoded)

	signed := wireSignedTransaction{
		Transaction: wt,
		Signature:   wireSignature{KeyType: keyTypeED25519},
	}
	copy(signed.Signature.Data[:], ed25519.Sign(key, digest[:]))

	out, err := borsh.Serialize(signed)
	if err != nil {
		return nil, err
	}
	return &SignedTransaction{
		Encoded: out,
		Hash:    base58.Encode(digest[:]),
	}, nil
}

// DecodeBlockHash converts a base58 block hash to its 32 raw bytes.
func DecodeBlockHash(s string) ([32]byte, error) {
	var out [32]byte
	raw, err := base58.Decode(s)
	if err != nil {
		return out, fmt.Errorf("decoding block hash: %w", err)
	}
	if len(raw) != len(out) {
		return out, fmt.Errorf("block hash has %d bytes", len(raw))
	}
	copy(out[:], raw)
	return out, nil
}
