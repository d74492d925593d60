package keys

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"io"

	"github.com/pkg/errors"
)

// RSAEncrypt encrypts plaintext with RSA-OAEP (SHA-256) under the base64 SPKI public key.
// The result is base64 encoded; for a 2048-bit key it is always 344 characters.
func RSAEncrypt(publicKeyB64 string, plaintext string) (string, error) {
	publicKey, err := ImportPublicKey(publicKeyB64)
	if err != nil {
		return "", err
	}
	ciphertext, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, publicKey, []byte(plaintext), nil)
	if err != nil {
		return "", errors.Wrap(err, "failed to RSA encrypt")
	}
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// RSADecrypt reverses RSAEncrypt.
func RSADecrypt(ciphertextB64 string, privateKey *rsa.PrivateKey) (string, error) {
	if privateKey == nil {
		return "", errors.New("private key is nil")
	}
	ciphertext, err := base64.StdEncoding.DecodeString(ciphertextB64)
	if err != nil {
		return "", errors.Wrap(err, "failed to decode RSA ciphertext")
	}
	plaintext, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, privateKey, ciphertext, nil)
	if err != nil {
		return "", errors.Wrap(err, "failed to RSA decrypt")
	}
	return string(plaintext), nil
}

// SymEncrypt seals plaintext with AES-256-GCM and returns base64(nonce || ciphertext).
func SymEncrypt(key SymmetricKey, plaintext string) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err = io.ReadFull(rand.Reader, nonce); err != nil {
		return "", errors.Wrap(err, "failed to generate nonce")
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// SymDecrypt reverses SymEncrypt. Tampered or foreign ciphertexts fail authentication.
func SymDecrypt(key SymmetricKey, ciphertextB64 string) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}
	sealed, err := base64.StdEncoding.DecodeString(ciphertextB64)
	if err != nil {
		return "", errors.Wrap(err, "failed to decode symmetric ciphertext")
	}
	if len(sealed) < gcm.NonceSize() {
		return "", errors.New("symmetric ciphertext too short")
	}
	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", errors.Wrap(err, "failed to open symmetric ciphertext")
	}
	return string(plaintext), nil
}

func newGCM(key SymmetricKey) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create new cipher")
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create GCM")
	}
	return gcm, nil
}
