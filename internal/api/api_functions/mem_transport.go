package api_functions

import (
	"context"

	"github.com/HannahMarsh/onion-router/pkg/cm"
	"github.com/pkg/errors"
)

// Receiver is the in-process entry point of a relay or user.
type Receiver interface {
	Receive(ctx context.Context, message string) error
}

// MemTransport delivers payloads by calling receivers directly. It is used by
// tests and by single-process simulations that skip the network.
type MemTransport struct {
	receivers cm.ConcurrentMap[int, Receiver]
}

func NewMemTransport() *MemTransport {
	return &MemTransport{}
}

// Attach makes r reachable at address.
func (t *MemTransport) Attach(address int, r Receiver) {
	t.receivers.Set(address, r)
}

// Detach makes address unreachable.
func (t *MemTransport) Detach(address int) {
	t.receivers.Delete(address)
}

func (t *MemTransport) Send(ctx context.Context, address int, payload string) error {
	r, ok := t.receivers.Get(address)
	if !ok {
		return errors.Wrapf(ErrForwardingFailure, "no participant at address %d", address)
	}
	if err := r.Receive(ctx, payload); err != nil {
		return errors.Wrapf(ErrForwardingFailure, "participant at address %d refused: %v", address, err)
	}
	return nil
}
