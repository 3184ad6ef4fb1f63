package aurora

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	log "github.com/sirupsen/logrus"
)

const (
	ChainIDMainnet int64 = 1313161554
	ChainIDTestnet int64 = 1313161555

	// withdrawGasLimit matches what the bridge UI has always attached.
	withdrawGasLimit uint64 = 100000
)

const bridgedTokenABI = `[
	{"inputs":[{"name":"account","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"name":"recipient","type":"bytes"},{"name":"amount","type":"uint256"}],"name":"withdrawToNear","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`

var tokenABI abi.ABI

func init() {
	var err error
	tokenABI, err = abi.JSON(strings.NewReader(bridgedTokenABI))
	if err != nil {
		panic(err)
	}
}

var ErrNoSigner = errors.New("aurora: no signing key configured")

// Backend is the part of an Ethereum client the bridge needs.
// *ethclient.Client satisfies it.
type Backend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Client reads bridged ERC20 state on Aurora and submits withdrawals.
type Client struct {
	backend Backend
	chainID *big.Int
	key     *ecdsa.PrivateKey
}

// NewClient creates a Client. key may be nil for a read-only client.
func NewClient(backend Backend, chainID int64, key *ecdsa.PrivateKey) *Client {
	return &Client{
		backend: backend,
		chainID: big.NewInt(chainID),
		key:     key,
	}
}

// Address returns the signer address, or the zero address when read-only.
func (c *Client) Address() common.Address {
	if c.key == nil {
		return common.Address{}
	}
	return crypto.PubkeyToAddress(c.key.PublicKey)
}

// BalanceOf returns owner's balance of token in its smallest unit.
func (c *Client) BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	data, err := tokenABI.Pack("balanceOf", owner)
	if err != nil {
		return nil, err
	}

	output, err := c.backend.CallContract(ctx, ethereum.CallMsg{
		To:   &token,
		Data: data,
	}, nil)
	if err != nil {
		return nil, err
	}

	if len(output) < 32 {
		return big.NewInt(0), nil
	}
	return new(big.Int).SetBytes(output[:32]), nil
}

// WithdrawToNear burns amount of the bridged token and releases it to the
// NEAR account named by recipient. It returns once the transaction is sent.
func (c *Client) WithdrawToNear(ctx context.Context, token common.Address, recipient []byte, amount *big.Int) (common.Hash, error) {
	if c.key == nil {
		return common.Hash{}, ErrNoSigner
	}

	data, err := tokenABI.Pack("withdrawToNear", recipient, amount)
	if err != nil {
		return common.Hash{}, fmt.Errorf("packing withdrawToNear: %w", err)
	}

	from := c.Address()
	nonce, err := c.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("getting nonce: %w", err)
	}

	gasPrice, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("getting gas price: %w", err)
	}

	tx := types.NewTransaction(nonce, token, big.NewInt(0), withdrawGasLimit, gasPrice, data)
	signedTx, err := types.SignTx(tx, types.NewEIP155Signer(c.chainID), c.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("signing withdraw tx: %w", err)
	}

	if err := c.backend.SendTransaction(ctx, signedTx); err != nil {
		return common.Hash{}, fmt.Errorf("sending withdraw tx: %w", err)
	}

	log.WithField("token", token.Hex()).Infof("aurora: withdrawToNear sent: %s", signedTx.Hash().Hex())
	return signedTx.Hash(), nil
}

// TransferStatus reports "pending", "completed" or "failed" for a sent tx.
func (c *Client) TransferStatus(ctx context.Context, hash common.Hash) (string, error) {
	receipt, err := c.backend.TransactionReceipt(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return "pending", nil
	}
	if err != nil {
		return "", fmt.Errorf("fetching receipt %s: %w", hash.Hex(), err)
	}
	if receipt.Status == types.ReceiptStatusSuccessful {
		return "completed", nil
	}
	return "failed", nil
}

var networkNames = map[int64]string{
	ChainIDTestnet: "Aurora Testnet",
	ChainIDMainnet: "Aurora Mainnet",
	1:              "main",
	3:              "ropsten",
	4:              "rinkeby",
}

// NetworkName names a chain id, or returns "" for unknown chains.
func NetworkName(chainID int64) string {
	return networkNames[chainID]
}
