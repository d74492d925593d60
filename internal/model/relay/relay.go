package relay

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/HannahMarsh/onion-router/config"
	"github.com/HannahMarsh/onion-router/internal/api/api_functions"
	"github.com/HannahMarsh/onion-router/internal/api/structs"
	"github.com/HannahMarsh/onion-router/internal/metrics"
	"github.com/HannahMarsh/onion-router/internal/onion"
	"github.com/HannahMarsh/onion-router/internal/onion/keys"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

// Relay represents one onion router. It owns exactly one key pair and peels
// exactly one layer of every message it receives.
type Relay struct {
	ID        int                     // Unique identifier for the relay.
	Address   int                     // Address (port) on which the relay listens.
	PublicKey string                  // Base64 SPKI public key published in the registry.
	keyPair   *keys.KeyPair           // Relay's key pair, held for the process lifetime.
	state     *structs.NodeState      // Last handled layer, for diagnostics.
	transport api_functions.Transport // Delivers peeled payloads to the next hop.
	cfg       *config.Config
	limiter   *rate.Limiter
}

// NewRelay creates a relay with a freshly generated key pair.
func NewRelay(id int, cfg *config.Config, transport api_functions.Transport) (*Relay, error) {
	keyPair, err := keys.GenerateKeyPair()
	if err != nil {
		return nil, errors.Wrapf(err, "relay.NewRelay(): failed to generate key pair for relay %d", id)
	}
	publicKey, err := keys.ExportPublicKey(keyPair.PublicKey)
	if err != nil {
		return nil, errors.Wrapf(err, "relay.NewRelay(): failed to export public key for relay %d", id)
	}

	return &Relay{
		ID:        id,
		Address:   cfg.RelayAddress(id),
		PublicKey: publicKey,
		keyPair:   keyPair,
		state:     structs.NewNodeState(),
		transport: transport,
		cfg:       cfg,
		limiter:   api_functions.NewLimiter(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst),
	}, nil
}

// State exposes the diagnostic state of the relay.
func (n *Relay) State() *structs.NodeState {
	return n.state
}

// ExportPrivateKey returns the relay's private key as base64 PKCS#8.
func (n *Relay) ExportPrivateKey() (string, error) {
	return keys.ExportPrivateKey(n.keyPair.PrivateKey)
}

// Participant is how origins see this relay.
func (n *Relay) Participant() onion.Participant {
	return onion.Participant{ID: n.ID, Address: n.Address, PublicKey: n.PublicKey}
}

// RegisterWithRegistry publishes the relay's public key.
func (n *Relay) RegisterWithRegistry(ctx context.Context, rc *api_functions.RegistryClient) error {
	slog.Info("Sending relay registration request.", "id", n.ID)
	if err := rc.RegisterNode(ctx, n.ID, n.PublicKey); err != nil {
		return errors.Wrapf(err, "relay.RegisterWithRegistry(): relay %d", n.ID)
	}
	slog.Info("Relay registered successfully.", "id", n.ID)
	return nil
}

// Receive implements api_functions.Receiver.
func (n *Relay) Receive(ctx context.Context, message string) error {
	_, err := n.Process(ctx, message)
	return err
}

// Process peels one layer and either delivers the remainder locally or forwards it.
// A malformed layer leaves the state untouched. A forwarding failure keeps the
// state already recorded and is returned to the caller without retry.
func (n *Relay) Process(ctx context.Context, message string) (onion.Outcome, error) {
	timeReceived := time.Now()
	requestID := api_functions.RequestIDFromContext(ctx)
	ctx = api_functions.WithRequestID(ctx, requestID)
	log := slog.With("relay", n.ID, "request_id", requestID)

	log.Debug("Message received, decrypting...")

	outcome, err := onion.Peel(message, n.keyPair.PrivateKey)

	defer func() {
		metrics.Observe(metrics.PROCESSING_TIME, time.Since(timeReceived).Seconds())
		metrics.Inc(metrics.LAYERS_PEELED, n.ID, outcome.State.String())
	}()

	if err != nil {
		log.Warn("Rejected layer", "err", err)
		return outcome, err
	}

	log.Debug("Decrypted message", "message", display(outcome.Payload))

	if !outcome.HasNextHop() {
		n.state.Record(message, outcome.Payload, nil)
		log.Info("Final message reached, no further forwarding.")
		return outcome, nil
	}

	next := outcome.NextAddress
	n.state.Record(message, outcome.Payload, &next)

	if outcome.Payload == "" {
		log.Debug("Next message is empty, but will still be forwarded.")
	}
	log.Info("Forwarding message", "next", n.cfg.AddressToName(next), "is_user", n.cfg.IsUserAddress(next))

	if err = n.transport.Send(ctx, next, outcome.Payload); err != nil {
		metrics.Inc(metrics.FORWARDING_FAILURES, fmt.Sprintf("relay-%d", n.ID))
		log.Error("Error forwarding message", "next", next, "err", err)
		return outcome, errors.Wrapf(err, "relay %d failed to forward to %d", n.ID, next)
	}
	return outcome, nil
}

func display(message string) string {
	if message == "" {
		return "<EMPTY MESSAGE>"
	}
	return message
}
