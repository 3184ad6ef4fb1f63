package transfers

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/near/borsh-go"
	log "github.com/sirupsen/logrus"

	"github.com/RaghavSood/aurorabridge/near"
	"github.com/RaghavSood/aurorabridge/nep145"
	"github.com/RaghavSood/aurorabridge/session"
)

var (
	// ErrNotImplemented is returned by flows the bridge does not support yet.
	ErrNotImplemented = errors.New("not implemented")
	ErrInvalidInput   = errors.New("invalid input")
)

// deployDeposit funds the storage of a newly deployed ERC20 on Aurora.
var deployDeposit = near.Near(3)

// deployRecord is the binary argument of deploy_erc20_token: one Vec<u8>
// holding the NEP-141 account id.
type deployRecord struct {
	Nep141 []byte
}

func deployArgs(nep141 string) ([]byte, error) {
	args, err := borsh.Serialize(deployRecord{Nep141: []byte(nep141)})
	if err != nil {
		return nil, fmt.Errorf("encoding deploy args: %w", err)
	}
	return args, nil
}

// NearSigner submits NEAR transactions. *near.Signer satisfies it.
type NearSigner interface {
	AccountID() string
	FunctionCall(ctx context.Context, contractID, method string, args []byte, gas uint64, deposit *big.Int) (*near.TxOutcome, error)
	SignAndSendTransaction(ctx context.Context, receiverID string, actions []near.Action) (*near.TxOutcome, error)
}

// Withdrawer burns bridged ERC20s on Aurora. *aurora.Client satisfies it.
type Withdrawer interface {
	Address() common.Address
	WithdrawToNear(ctx context.Context, token common.Address, recipient []byte, amount *big.Int) (common.Hash, error)
}

// Storage is the subset of *nep145.Manager the flows need.
type Storage interface {
	MinimumStorageBalance(ctx context.Context, token string) (string, error)
	StorageBalance(ctx context.Context, token, account string) *nep145.StorageBalance
	EnsureStorageRegistered(ctx context.Context, token, account string) (*near.TxOutcome, error)
}

type Config struct {
	CustodianAccount string
	WNearAccount     string
}

// Initiator submits transfers and hands their records to a Tracker.
type Initiator struct {
	cfg     Config
	near    NearSigner
	aurora  Withdrawer
	storage Storage
	tracker Tracker
	params  *ParamStore
}

func NewInitiator(cfg Config, nearSigner NearSigner, aurora Withdrawer, storage Storage, tracker Tracker, params *ParamStore) *Initiator {
	return &Initiator{
		cfg:     cfg,
		near:    nearSigner,
		aurora:  aurora,
		storage: storage,
		tracker: tracker,
		params:  params,
	}
}

func parseAmount(amount string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(strings.TrimSpace(amount), 10)
	if !ok || n.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amount %q", ErrInvalidInput, amount)
	}
	return n, nil
}

func (i *Initiator) checkNearSigner(sess session.Session) error {
	if i.near.AccountID() != sess.NearAccountID {
		return fmt.Errorf("signer %s cannot act for %s", i.near.AccountID(), sess.NearAccountID)
	}
	return nil
}

// track hands t to the tracker and returns it with its id.
func (i *Initiator) track(ctx context.Context, t Transfer) (Transfer, error) {
	id, err := i.tracker.Track(ctx, t)
	if err != nil {
		return t, fmt.Errorf("tracking transfer: %w", err)
	}
	t.ID = id
	return t, nil
}

// clearDeepLink drops the deep-link parameter ahead of a submission. A failed
// clear is logged and does not stop the transfer.
func (i *Initiator) clearDeepLink(ctx context.Context) {
	if err := i.params.Clear(ctx, DeepLinkParam); err != nil {
		log.Warnf("transfers: %v", err)
	}
}

func transferCallArgs(receiver, amount string, sess session.Session) map[string]interface{} {
	return map[string]interface{}{
		"receiver_id": receiver,
		"amount":      amount,
		"memo":        nil,
		"msg":         sess.AuroraMessage(),
	}
}

// SendToAurora moves amount of the NEP-141 token to the session's Aurora
// address through the custodian. The record is tracked before the call is
// submitted, so a submission failure leaves it in progress.
func (i *Initiator) SendToAurora(ctx context.Context, sess session.Session, nep141, amount string, decimals int, name string) (Transfer, error) {
	if _, err := parseAmount(amount); err != nil {
		return Transfer{}, err
	}
	if err := i.checkNearSigner(sess); err != nil {
		return Transfer{}, err
	}

	t, err := i.track(ctx, newTransfer(TypeSendToAurora, amount, decimals, name, sess.NearAccountID, sess.AuroraHex()))
	if err != nil {
		return Transfer{}, err
	}
	i.clearDeepLink(ctx)

	call, err := near.NewFunctionCall("ft_transfer_call", transferCallArgs(i.cfg.CustodianAccount, amount, sess), near.DefaultGas, near.OneYocto())
	if err != nil {
		return t, err
	}
	if _, err := i.near.FunctionCall(ctx, nep141, call.MethodName, call.Args, call.Gas, call.Deposit); err != nil {
		return t, fmt.Errorf("ft_transfer_call on %s: %w", nep141, err)
	}

	log.WithFields(log.Fields{"token": nep141, "id": t.ID}).Infof("transfers: sent %s to aurora", amount)
	return t, nil
}

// WithdrawToNear burns amount of the bridged ERC20 and releases it to the
// session's NEAR account. The deep-link parameter is cleared before the
// burn is sent; the record carries the Aurora transaction hash and is
// tracked once the transaction is sent.
func (i *Initiator) WithdrawToNear(ctx context.Context, sess session.Session, erc20, amount string, decimals int, name string) (Transfer, error) {
	n, err := parseAmount(amount)
	if err != nil {
		return Transfer{}, err
	}
	if !strings.HasPrefix(erc20, "0x") {
		erc20 = "0x" + erc20
	}
	if !common.IsHexAddress(erc20) {
		return Transfer{}, fmt.Errorf("%w: erc20 address %q", ErrInvalidInput, erc20)
	}
	if i.aurora.Address() != sess.AuroraAddress {
		return Transfer{}, fmt.Errorf("signer %s cannot act for %s", i.aurora.Address().Hex(), sess.AuroraHex())
	}

	i.clearDeepLink(ctx)
	hash, err := i.aurora.WithdrawToNear(ctx, common.HexToAddress(erc20), []byte(sess.NearAccountID), n)
	if err != nil {
		return Transfer{}, err
	}

	t := newTransfer(TypeSendToNear, amount, decimals, name, sess.AuroraHex(), sess.NearAccountID)
	t.Hash = hash.Hex()
	return i.track(ctx, t)
}

// WrapAndSendNearToAurora wraps amount yoctoNEAR and sends it to the
// session's Aurora address in one transaction, registering storage with
// the wrapped token first when the account is not yet registered.
func (i *Initiator) WrapAndSendNearToAurora(ctx context.Context, sess session.Session, amount string) (Transfer, error) {
	n, err := parseAmount(amount)
	if err != nil {
		return Transfer{}, err
	}
	if err := i.checkNearSigner(sess); err != nil {
		return Transfer{}, err
	}

	actions, err := i.wrapActions(ctx, sess, amount, n)
	if err != nil {
		return Transfer{}, err
	}

	t, err := i.track(ctx, newTransfer(TypeSendToAurora, amount, 24, "NEAR", sess.NearAccountID, sess.AuroraHex()))
	if err != nil {
		return Transfer{}, err
	}
	i.clearDeepLink(ctx)

	if _, err := i.near.SignAndSendTransaction(ctx, i.cfg.WNearAccount, actions); err != nil {
		return t, fmt.Errorf("wrapping near: %w", err)
	}
	log.WithField("id", t.ID).Infof("transfers: wrapped and sent %s yoctoNEAR to aurora", amount)
	return t, nil
}

func (i *Initiator) wrapActions(ctx context.Context, sess session.Session, amount string, n *big.Int) ([]near.Action, error) {
	minRaw, err := i.storage.MinimumStorageBalance(ctx, i.cfg.WNearAccount)
	if err != nil {
		return nil, err
	}
	min, ok := new(big.Int).SetString(minRaw, 10)
	if !ok {
		return nil, fmt.Errorf("invalid minimum storage balance %q", minRaw)
	}

	total := new(big.Int)
	if bal := i.storage.StorageBalance(ctx, i.cfg.WNearAccount, sess.NearAccountID); bal != nil {
		total = bal.TotalInt()
	}

	var actions []near.Action
	if total.Cmp(min) < 0 {
		reg, err := nep145.RegistrationCall(sess.NearAccountID, min)
		if err != nil {
			return nil, err
		}
		actions = append(actions, reg)
	}

	deposit, err := near.NewFunctionCall("near_deposit", struct{}{}, near.DefaultGas, n)
	if err != nil {
		return nil, err
	}
	send, err := near.NewFunctionCall("ft_transfer_call", transferCallArgs(i.cfg.CustodianAccount, amount, sess), near.DefaultGas, near.OneYocto())
	if err != nil {
		return nil, err
	}
	return append(actions, deposit, send), nil
}

// WithdrawAndUnwrapNear would bring wrapped NEAR back from Aurora and unwrap
// it. The bridge has no defined behavior for it.
func (i *Initiator) WithdrawAndUnwrapNear(ctx context.Context, sess session.Session, amount string) (Transfer, error) {
	return Transfer{}, ErrNotImplemented
}

// DeployToAurora asks the custodian to deploy the ERC20 mirror of nep141.
func (i *Initiator) DeployToAurora(ctx context.Context, nep141 string) (*near.TxOutcome, error) {
	if strings.TrimSpace(nep141) == "" {
		return nil, fmt.Errorf("%w: token address is required", ErrInvalidInput)
	}
	args, err := deployArgs(nep141)
	if err != nil {
		return nil, err
	}
	outcome, err := i.near.FunctionCall(ctx, i.cfg.CustodianAccount, "deploy_erc20_token", args, near.DefaultGas, deployDeposit)
	if err != nil {
		return outcome, fmt.Errorf("deploying %s to aurora: %w", nep141, err)
	}
	log.WithField("token", nep141).Info("transfers: erc20 deployed")
	return outcome, nil
}

// RegisterStorage registers account with the token's storage. Callers check
// the current storage balance first.
func (i *Initiator) RegisterStorage(ctx context.Context, nep141, account string) (*near.TxOutcome, error) {
	return i.storage.EnsureStorageRegistered(ctx, nep141, account)
}
