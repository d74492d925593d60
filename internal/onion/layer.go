package onion

import (
	"crypto/rsa"
	"fmt"
	"strconv"

	"github.com/HannahMarsh/onion-router/internal/onion/keys"
	"github.com/pkg/errors"
)

const (
	// WrappedKeyLen is the length of a base64 encoded RSA-2048 OAEP block.
	WrappedKeyLen = 344

	// AddressFieldLen is the number of decimal digits naming the next hop.
	AddressFieldLen = 10

	maxAddress int64 = 9_999_999_999
)

// Layer is one hop's unit of wire transfer.
type Layer struct {
	WrappedKey string // fixed-length, RSA-wrapped symmetric key
	Body       string // symmetric ciphertext of addressField + inner payload, or empty
}

// String returns the wire form of the layer. The fixed WrappedKey length is what
// lets the receiver split the two parts without a delimiter.
func (l Layer) String() string {
	return l.WrappedKey + l.Body
}

// Decoded is the result of removing one layer.
type Decoded struct {
	NextAddress *int   // nil when the plaintext carries no address field
	Remainder   string // inner payload (or the whole plaintext when there is no address)
}

// FormatAddress renders an address as exactly AddressFieldLen zero-padded decimal digits.
func FormatAddress(address int) (string, error) {
	if address < 0 || int64(address) > maxAddress {
		return "", errors.Errorf("address %d does not fit in %d digits", address, AddressFieldLen)
	}
	return fmt.Sprintf("%0*d", AddressFieldLen, address), nil
}

// ParseAddress parses an address field. Any value is accepted; range checks belong to the caller.
func ParseAddress(field string) (int, error) {
	if len(field) != AddressFieldLen {
		return 0, errors.Errorf("address field has %d characters, expected %d", len(field), AddressFieldLen)
	}
	for _, c := range field {
		if c < '0' || c > '9' {
			return 0, errors.Errorf("address field %q is not decimal", field)
		}
	}
	address, err := strconv.Atoi(field)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to parse address field %q", field)
	}
	return address, nil
}

// EncodeLayer wraps inner for one hop: the body carries the destination address and
// inner under key, and key itself is wrapped under the hop's public key.
func EncodeLayer(destination int, inner string, key keys.SymmetricKey, hopPublicKey string) (Layer, error) {
	addressField, err := FormatAddress(destination)
	if err != nil {
		return Layer{}, err
	}

	body, err := keys.SymEncrypt(key, addressField+inner)
	if err != nil {
		return Layer{}, errors.Wrap(err, "failed to encrypt layer body")
	}

	wrappedKey, err := keys.RSAEncrypt(hopPublicKey, keys.ExportSymmetricKey(key))
	if err != nil {
		return Layer{}, errors.Wrap(err, "failed to wrap layer key")
	}
	if len(wrappedKey) != WrappedKeyLen {
		return Layer{}, errors.Errorf("wrapped key has %d characters, expected %d", len(wrappedKey), WrappedKeyLen)
	}

	return Layer{WrappedKey: wrappedKey, Body: body}, nil
}

// SplitLayer separates the fixed-length wrapped key from the body.
func SplitLayer(wire string) (Layer, error) {
	if len(wire) < WrappedKeyLen {
		return Layer{}, errors.Wrapf(ErrMalformedLayer, "layer has %d characters, need at least %d", len(wire), WrappedKeyLen)
	}
	return Layer{WrappedKey: wire[:WrappedKeyLen], Body: wire[WrappedKeyLen:]}, nil
}

// DecodeLayer removes exactly one layer using the hop's private key.
// Every failure wraps ErrMalformedLayer.
func DecodeLayer(wire string, privateKey *rsa.PrivateKey) (Decoded, error) {
	layer, err := SplitLayer(wire)
	if err != nil {
		return Decoded{}, err
	}

	exportedKey, err := keys.RSADecrypt(layer.WrappedKey, privateKey)
	if err != nil {
		return Decoded{}, malformed(err, "failed to unwrap layer key")
	}
	key, err := keys.ImportSymmetricKey(exportedKey)
	if err != nil {
		return Decoded{}, malformed(err, "failed to import layer key")
	}

	// terminal: nothing to decrypt
	if layer.Body == "" {
		return Decoded{NextAddress: nil, Remainder: ""}, nil
	}

	plaintext, err := keys.SymDecrypt(key, layer.Body)
	if err != nil {
		return Decoded{}, malformed(err, "failed to decrypt layer body")
	}

	if len(plaintext) < AddressFieldLen {
		return Decoded{NextAddress: nil, Remainder: plaintext}, nil
	}

	address, err := ParseAddress(plaintext[:AddressFieldLen])
	if err != nil {
		return Decoded{}, malformed(err, "failed to read next hop")
	}
	return Decoded{NextAddress: &address, Remainder: plaintext[AddressFieldLen:]}, nil
}
