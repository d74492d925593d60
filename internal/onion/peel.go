package onion

import (
	"crypto/rsa"

	"github.com/pkg/errors"
)

// State is a step of the per-hop peeling state machine.
type State int

const (
	Received State = iota
	Decoding
	Forwarding
	Delivering
	Rejected
)

func (s State) String() string {
	switch s {
	case Received:
		return "received"
	case Decoding:
		return "decoding"
	case Forwarding:
		return "forwarding"
	case Delivering:
		return "delivering"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Outcome is the terminal state reached for one received layer.
type Outcome struct {
	State       State
	NextAddress int    // set only when State == Forwarding
	Payload     string // the next wire payload, or the final content when delivering
}

// HasNextHop reports whether the payload must be sent on.
func (o Outcome) HasNextHop() bool {
	return o.State == Forwarding
}

// Peel takes one received layer through Decoding to Forwarding, Delivering or Rejected.
// It has no side effects: recording state and forwarding are up to the caller.
func Peel(wire string, privateKey *rsa.PrivateKey) (Outcome, error) {
	decoded, err := DecodeLayer(wire, privateKey)
	if err != nil {
		return Outcome{State: Rejected}, errors.Wrap(err, "failed to peel layer")
	}

	if decoded.NextAddress == nil {
		return Outcome{State: Delivering, Payload: decoded.Remainder}, nil
	}

	return Outcome{State: Forwarding, NextAddress: *decoded.NextAddress, Payload: decoded.Remainder}, nil
}
