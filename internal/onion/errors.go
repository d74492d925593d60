package onion

import "github.com/pkg/errors"

var (
	// ErrMalformedLayer is returned when a layer is too short or fails to decrypt or parse.
	ErrMalformedLayer = errors.New("malformed layer")

	// ErrInsufficientParticipants is returned when the directory cannot supply enough distinct relays.
	ErrInsufficientParticipants = errors.New("insufficient participants")

	// ErrInvalidCircuit is returned for a path of the wrong length or with repeated relays.
	ErrInvalidCircuit = errors.New("invalid circuit")
)

// malformed wraps cause so that errors.Is(err, ErrMalformedLayer) holds.
func malformed(cause error, msg string) error {
	return errors.Wrapf(ErrMalformedLayer, "%s: %v", msg, cause)
}
