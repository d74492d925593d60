package onion

import (
	"math/rand"

	"github.com/HannahMarsh/onion-router/internal/onion/keys"
	"github.com/pkg/errors"
)

// CircuitLength is the number of relays every message traverses.
const CircuitLength = 3

// Participant is a relay as seen by the origin: who it is, where to reach it, and its key.
type Participant struct {
	ID        int
	Address   int
	PublicKey string // base64 SPKI
}

// SelectPath picks n distinct participants uniformly at random, without replacement.
// Passing a seeded rng makes the selection reproducible.
func SelectPath(participants []Participant, n int, rng *rand.Rand) ([]Participant, error) {
	if len(participants) < n {
		return nil, errors.Wrapf(ErrInsufficientParticipants, "need %d participants, have %d", n, len(participants))
	}

	indices := make([]int, len(participants))
	for i := range indices {
		indices[i] = i
	}

	// partial Fisher-Yates: the first n slots end up holding a uniform sample
	path := make([]Participant, n)
	for i := 0; i < n; i++ {
		j := i + rng.Intn(len(indices)-i)
		indices[i], indices[j] = indices[j], indices[i]
		path[i] = participants[indices[i]]
	}
	return path, nil
}

// NewCircuit selects a CircuitLength path from the given participants.
func NewCircuit(participants []Participant, rng *rand.Rand) ([]Participant, error) {
	return SelectPath(participants, CircuitLength, rng)
}

// BuildOnion folds plaintext into a fully nested onion, innermost layer first.
// The innermost layer names finalAddress; each outer layer names the relay holding the next one.
// The returned string is meant for path[0].
func BuildOnion(plaintext string, path []Participant, finalAddress int) (string, error) {
	if err := validatePath(path); err != nil {
		return "", err
	}

	current := plaintext
	currentTarget := finalAddress

	for i := len(path) - 1; i >= 0; i-- {
		key, err := keys.GenerateSymmetricKey()
		if err != nil {
			return "", errors.Wrapf(err, "failed to generate key for relay %d", path[i].ID)
		}

		layer, err := EncodeLayer(currentTarget, current, key, path[i].PublicKey)
		if err != nil {
			return "", errors.Wrapf(err, "failed to encode layer for relay %d", path[i].ID)
		}

		current = layer.String()
		currentTarget = path[i].Address
	}

	return current, nil
}

func validatePath(path []Participant) error {
	if len(path) != CircuitLength {
		return errors.Wrapf(ErrInvalidCircuit, "path has %d relays, expected %d", len(path), CircuitLength)
	}
	seen := make(map[int]bool, len(path))
	for _, p := range path {
		if seen[p.ID] {
			return errors.Wrapf(ErrInvalidCircuit, "relay %d appears more than once", p.ID)
		}
		seen[p.ID] = true
	}
	return nil
}
