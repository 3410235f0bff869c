package framework

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

var errInvalidPrivKey = errors.New("invalid private key")

// PrivKey is a signing key together with its derived account address.
type PrivKey struct {
	Priv *ecdsa.PrivateKey
}

func (p *PrivKey) Address() common.Address {
	return crypto.PubkeyToAddress(p.Priv.PublicKey)
}

// Hex returns the 0x-prefixed private key. Never log it.
func (p *PrivKey) Hex() string {
	return hexutil.Encode(crypto.FromECDSA(p.Priv))
}

// NewPrivKeyFromHex parses a hex private key, with or without the 0x prefix.
func NewPrivKeyFromHex(hex string) (*PrivKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hex), "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidPrivKey, err)
	}
	return &PrivKey{Priv: key}, nil
}

func GeneratePrivKey() *PrivKey {
	key, err := crypto.GenerateKey()
	if err != nil {
		panic(fmt.Sprintf("failed to generate private key: %v", err))
	}
	return &PrivKey{Priv: key}
}
