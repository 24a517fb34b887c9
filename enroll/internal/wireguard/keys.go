package wireguard

import (
	"fmt"
	"strings"

	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

type KeyPair struct {
	PrivateKey wgtypes.Key
	PublicKey  wgtypes.Key
}

// GenerateKeyPair creates a fresh Curve25519 key pair.
func GenerateKeyPair() (KeyPair, error) {
	key, err := wgtypes.GeneratePrivateKey()
	if err != nil {
		return KeyPair{}, fmt.Errorf("generate key: %w", err)
	}
	return KeyPair{PrivateKey: key, PublicKey: key.PublicKey()}, nil
}

// ParsePrivateKey parses a base64 private key as printed by `wg genkey`.
func ParsePrivateKey(s string) (KeyPair, error) {
	key, err := wgtypes.ParseKey(strings.TrimSpace(s))
	if err != nil {
		return KeyPair{}, fmt.Errorf("parse private key: %w", err)
	}
	return KeyPair{PrivateKey: key, PublicKey: key.PublicKey()}, nil
}
