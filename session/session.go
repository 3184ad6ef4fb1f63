// Package session carries the identities a bridge operation acts for.
package session

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Session is the pair of accounts a user bridges between.
type Session struct {
	NearAccountID string
	AuroraAddress common.Address
}

// New validates both identities.
func New(nearAccountID, auroraAddress string) (Session, error) {
	nearAccountID = strings.TrimSpace(nearAccountID)
	if nearAccountID == "" {
		return Session{}, fmt.Errorf("near account id is required")
	}
	if !common.IsHexAddress(auroraAddress) {
		return Session{}, fmt.Errorf("invalid aurora address %q", auroraAddress)
	}
	return Session{
		NearAccountID: nearAccountID,
		AuroraAddress: common.HexToAddress(auroraAddress),
	}, nil
}

// AuroraHex is the checksummed 0x-prefixed Aurora address.
func (s Session) AuroraHex() string {
	return s.AuroraAddress.Hex()
}

// AuroraMessage is the lowercase Aurora address without its 0x prefix, the
// form the custodian expects in an ft_transfer_call msg.
func (s Session) AuroraMessage() string {
	return hex.EncodeToString(s.AuroraAddress.Bytes())
}
