package onion

import (
	"crypto/rsa"
	"math/rand"
	"strings"
	"testing"

	"github.com/HannahMarsh/onion-router/internal/onion/keys"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRelay struct {
	participant Participant
	privateKey  *rsa.PrivateKey
}

func newTestRelays(t *testing.T, n int) []testRelay {
	t.Helper()
	relays := make([]testRelay, n)
	for i := 0; i < n; i++ {
		kp, err := keys.GenerateKeyPair()
		require.NoError(t, err)
		pub, err := keys.ExportPublicKey(kp.PublicKey)
		require.NoError(t, err)
		relays[i] = testRelay{
			participant: Participant{ID: i, Address: 4000 + i, PublicKey: pub},
			privateKey:  kp.PrivateKey,
		}
	}
	return relays
}

func participants(relays []testRelay) []Participant {
	ps := make([]Participant, len(relays))
	for i, r := range relays {
		ps[i] = r.participant
	}
	return ps
}

func TestBuildOnionPeelsHopByHop(t *testing.T) {
	relays := newTestRelays(t, 3)
	path := participants(relays)

	wire, err := BuildOnion("hello", path, 9001)
	require.NoError(t, err)

	// R1 reveals R2's address
	d1, err := DecodeLayer(wire, relays[0].privateKey)
	require.NoError(t, err)
	require.NotNil(t, d1.NextAddress)
	assert.Equal(t, path[1].Address, *d1.NextAddress)

	// R2 reveals R3's address
	d2, err := DecodeLayer(d1.Remainder, relays[1].privateKey)
	require.NoError(t, err)
	require.NotNil(t, d2.NextAddress)
	assert.Equal(t, path[2].Address, *d2.NextAddress)

	// R3 reveals the recipient and the plaintext
	d3, err := DecodeLayer(d2.Remainder, relays[2].privateKey)
	require.NoError(t, err)
	require.NotNil(t, d3.NextAddress)
	assert.Equal(t, 9001, *d3.NextAddress)
	assert.Equal(t, "hello", d3.Remainder)
}

func TestEmptyPayloadPassesThrough(t *testing.T) {
	relays := newTestRelays(t, 3)

	wire, err := BuildOnion("", participants(relays), 9002)
	require.NoError(t, err)

	for i, r := range relays {
		outcome, err := Peel(wire, r.privateKey)
		require.NoError(t, err, "hop %d", i)
		require.Equal(t, Forwarding, outcome.State)
		wire = outcome.Payload
	}
	assert.Equal(t, "", wire)
}

func TestDecodeWithWrongKeyIsMalformed(t *testing.T) {
	relays := newTestRelays(t, 4)

	wire, err := BuildOnion("secret", participants(relays[:3]), 9001)
	require.NoError(t, err)

	_, err = DecodeLayer(wire, relays[3].privateKey)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedLayer))

	// a middle relay cannot open the outer layer either
	_, err = DecodeLayer(wire, relays[1].privateKey)
	assert.True(t, errors.Is(err, ErrMalformedLayer))
}

func TestWrappedKeyLengthIsFixed(t *testing.T) {
	relays := newTestRelays(t, 1)
	pub := relays[0].participant.PublicKey

	for i := 0; i < 25; i++ {
		key, err := keys.GenerateSymmetricKey()
		require.NoError(t, err)
		layer, err := EncodeLayer(i, strings.Repeat("x", i*7), key, pub)
		require.NoError(t, err)
		if len(layer.WrappedKey) != WrappedKeyLen {
			t.Fatalf("encode %d: wrapped key length %d, expected %d", i, len(layer.WrappedKey), WrappedKeyLen)
		}
	}
}

func TestTerminalLayerWithEmptyBody(t *testing.T) {
	relays := newTestRelays(t, 1)
	key, err := keys.GenerateSymmetricKey()
	require.NoError(t, err)

	wrapped, err := keys.RSAEncrypt(relays[0].participant.PublicKey, keys.ExportSymmetricKey(key))
	require.NoError(t, err)

	decoded, err := DecodeLayer(Layer{WrappedKey: wrapped}.String(), relays[0].privateKey)
	require.NoError(t, err)
	assert.Nil(t, decoded.NextAddress)
	assert.Equal(t, "", decoded.Remainder)

	outcome, err := Peel(wrapped, relays[0].privateKey)
	require.NoError(t, err)
	assert.Equal(t, Delivering, outcome.State)
	assert.False(t, outcome.HasNextHop())
}

func TestShortPlaintextIsDeliveredAsIs(t *testing.T) {
	relays := newTestRelays(t, 1)
	key, err := keys.GenerateSymmetricKey()
	require.NoError(t, err)

	wrapped, err := keys.RSAEncrypt(relays[0].participant.PublicKey, keys.ExportSymmetricKey(key))
	require.NoError(t, err)
	body, err := keys.SymEncrypt(key, "short")
	require.NoError(t, err)

	outcome, err := Peel(wrapped+body, relays[0].privateKey)
	require.NoError(t, err)
	assert.Equal(t, Delivering, outcome.State)
	assert.Equal(t, "short", outcome.Payload)
}

func TestZeroAddressIsAccepted(t *testing.T) {
	relays := newTestRelays(t, 1)
	key, err := keys.GenerateSymmetricKey()
	require.NoError(t, err)

	layer, err := EncodeLayer(0, "inner", key, relays[0].participant.PublicKey)
	require.NoError(t, err)

	decoded, err := DecodeLayer(layer.String(), relays[0].privateKey)
	require.NoError(t, err)
	require.NotNil(t, decoded.NextAddress)
	assert.Equal(t, 0, *decoded.NextAddress)
	assert.Equal(t, "inner", decoded.Remainder)
}

func TestMalformedInputs(t *testing.T) {
	relays := newTestRelays(t, 1)
	priv := relays[0].privateKey

	tests := []struct {
		name string
		wire string
	}{
		{"empty", ""},
		{"shorter than wrapped key", strings.Repeat("A", WrappedKeyLen-1)},
		{"garbage wrapped key", strings.Repeat("A", WrappedKeyLen)},
		{"not base64", strings.Repeat("!", WrappedKeyLen+10)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome, err := Peel(tt.wire, priv)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedLayer))
			assert.Equal(t, Rejected, outcome.State)
		})
	}
}

func TestTamperedBodyIsMalformed(t *testing.T) {
	relays := newTestRelays(t, 3)
	wire, err := BuildOnion("hello", participants(relays), 9001)
	require.NoError(t, err)

	tampered := wire[:WrappedKeyLen] + "AAAA" + wire[WrappedKeyLen+4:]
	_, err = DecodeLayer(tampered, relays[0].privateKey)
	assert.True(t, errors.Is(err, ErrMalformedLayer))
}

func TestNonDecimalAddressIsMalformed(t *testing.T) {
	relays := newTestRelays(t, 1)
	key, err := keys.GenerateSymmetricKey()
	require.NoError(t, err)
	wrapped, err := keys.RSAEncrypt(relays[0].participant.PublicKey, keys.ExportSymmetricKey(key))
	require.NoError(t, err)
	body, err := keys.SymEncrypt(key, "00000abcdeinner")
	require.NoError(t, err)

	_, err = DecodeLayer(wrapped+body, relays[0].privateKey)
	assert.True(t, errors.Is(err, ErrMalformedLayer))
}

func TestFormatAddress(t *testing.T) {
	s, err := FormatAddress(9001)
	require.NoError(t, err)
	assert.Equal(t, "0000009001", s)

	_, err = FormatAddress(-1)
	assert.Error(t, err)

	n, err := ParseAddress("0000004002")
	require.NoError(t, err)
	assert.Equal(t, 4002, n)
}

func TestSelectPathDistinctAndSeeded(t *testing.T) {
	ps := make([]Participant, 10)
	for i := range ps {
		ps[i] = Participant{ID: i, Address: 4000 + i}
	}

	p1, err := NewCircuit(ps, rand.New(rand.NewSource(42)))
	require.NoError(t, err)
	p2, err := NewCircuit(ps, rand.New(rand.NewSource(42)))
	require.NoError(t, err)

	assert.Equal(t, p1, p2)
	require.Len(t, p1, CircuitLength)
	assert.NotEqual(t, p1[0].ID, p1[1].ID)
	assert.NotEqual(t, p1[1].ID, p1[2].ID)
	assert.NotEqual(t, p1[0].ID, p1[2].ID)
}

func TestSelectPathCoversAllParticipants(t *testing.T) {
	ps := []Participant{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}}
	rng := rand.New(rand.NewSource(7))
	seen := map[int]bool{}
	for i := 0; i < 200; i++ {
		path, err := SelectPath(ps, 3, rng)
		require.NoError(t, err)
		for _, p := range path {
			seen[p.ID] = true
		}
	}
	assert.Len(t, seen, 4)
}

func TestInsufficientParticipants(t *testing.T) {
	relays := newTestRelays(t, 2)

	path, err := NewCircuit(participants(relays), rand.New(rand.NewSource(1)))
	assert.Nil(t, path)
	assert.True(t, errors.Is(err, ErrInsufficientParticipants))

	wire, err := BuildOnion("hello", participants(relays), 9001)
	assert.Equal(t, "", wire)
	assert.True(t, errors.Is(err, ErrInvalidCircuit))
}

func TestBuildOnionRejectsRepeatedRelay(t *testing.T) {
	relays := newTestRelays(t, 2)
	path := []Participant{relays[0].participant, relays[1].participant, relays[0].participant}

	_, err := BuildOnion("hello", path, 9001)
	assert.True(t, errors.Is(err, ErrInvalidCircuit))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "forwarding", Forwarding.String())
	assert.Equal(t, "delivering", Delivering.String())
	assert.Equal(t, "rejected", Rejected.String())
	assert.Equal(t, "unknown", State(99).String())
}
