package wallet

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip32"
	"github.com/tyler-smith/go-bip39"
)

// auroraPath is m/44'/60'/0'/0; Aurora uses Ethereum's coin type so the same
// mnemonic yields the same address a browser wallet shows.
var auroraPath = []uint32{
	bip32.FirstHardenedChild + 44,
	bip32.FirstHardenedChild + 60,
	bip32.FirstHardenedChild + 0,
	0,
}

// AuroraKey derives the Aurora signing key at m/44'/60'/0'/0/{index}.
func AuroraKey(mnemonic string, index uint32) (*ecdsa.PrivateKey, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, fmt.Errorf("invalid mnemonic")
	}
	seed := bip39.NewSeed(mnemonic, "")

	key, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, fmt.Errorf("creating master key: %w", err)
	}

	for _, child := range append(auroraPath, index) {
		key, err = key.NewChildKey(child)
		if err != nil {
			return nil, fmt.Errorf("deriving child %d: %w", child, err)
		}
	}

	privateKey, err := crypto.ToECDSA(key.Key)
	if err != nil {
		return nil, fmt.Errorf("converting to ECDSA: %w", err)
	}
	return privateKey, nil
}

// AuroraAddress derives the address AuroraKey would sign for.
func AuroraAddress(mnemonic string, index uint32) (common.Address, error) {
	key, err := AuroraKey(mnemonic, index)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(key.PublicKey), nil
}
