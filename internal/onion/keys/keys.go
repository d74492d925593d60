package keys

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"

	"github.com/pkg/errors"
)

const (
	// RSAKeyBits is the modulus size of every relay key pair.
	RSAKeyBits = 2048

	// SymmetricKeySize is the AES-256 key length in bytes.
	SymmetricKeySize = 32
)

// KeyPair holds a relay's asymmetric identity.
type KeyPair struct {
	PublicKey  *rsa.PublicKey
	PrivateKey *rsa.PrivateKey
}

// SymmetricKey is raw AES-256 key material, generated fresh for one hop of one circuit.
type SymmetricKey []byte

// GenerateKeyPair generates an RSA key pair for a relay.
func GenerateKeyPair() (*KeyPair, error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, RSAKeyBits)
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate RSA key pair")
	}
	return &KeyPair{
		PublicKey:  &privateKey.PublicKey,
		PrivateKey: privateKey,
	}, nil
}

// GenerateSymmetricKey generates a random AES-256 key.
func GenerateSymmetricKey() (SymmetricKey, error) {
	key := make([]byte, SymmetricKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, errors.Wrap(err, "failed to generate symmetric key")
	}
	return key, nil
}

// ExportPublicKey encodes a public key as base64 SPKI DER.
func ExportPublicKey(publicKey *rsa.PublicKey) (string, error) {
	if publicKey == nil {
		return "", errors.New("public key is nil")
	}
	der, err := x509.MarshalPKIXPublicKey(publicKey)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal public key")
	}
	return base64.StdEncoding.EncodeToString(der), nil
}

// ExportPrivateKey encodes a private key as base64 PKCS#8 DER.
func ExportPrivateKey(privateKey *rsa.PrivateKey) (string, error) {
	if privateKey == nil {
		return "", errors.New("private key is nil")
	}
	der, err := x509.MarshalPKCS8PrivateKey(privateKey)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal private key")
	}
	return base64.StdEncoding.EncodeToString(der), nil
}

// ExportSymmetricKey encodes a symmetric key as base64.
func ExportSymmetricKey(key SymmetricKey) string {
	return base64.StdEncoding.EncodeToString(key)
}

// ImportPublicKey is the inverse of ExportPublicKey.
func ImportPublicKey(encoded string) (*rsa.PublicKey, error) {
	der, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode public key")
	}
	key, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse public key")
	}
	publicKey, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, errors.Errorf("public key is %T, not RSA", key)
	}
	return publicKey, nil
}

// ImportPrivateKey is the inverse of ExportPrivateKey.
func ImportPrivateKey(encoded string) (*rsa.PrivateKey, error) {
	der, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode private key")
	}
	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse private key")
	}
	privateKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.Errorf("private key is %T, not RSA", key)
	}
	return privateKey, nil
}

// ImportSymmetricKey is the inverse of ExportSymmetricKey.
func ImportSymmetricKey(encoded string) (SymmetricKey, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode symmetric key")
	}
	if len(key) != SymmetricKeySize {
		return nil, errors.Errorf("symmetric key has %d bytes, expected %d", len(key), SymmetricKeySize)
	}
	return key, nil
}
