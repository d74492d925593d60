package user

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/HannahMarsh/onion-router/config"
	"github.com/HannahMarsh/onion-router/internal/api/api_functions"
	"github.com/HannahMarsh/onion-router/internal/api/structs"
	"github.com/HannahMarsh/onion-router/internal/metrics"
	"github.com/HannahMarsh/onion-router/internal/model/registry"
	"github.com/HannahMarsh/onion-router/internal/onion"
	"github.com/HannahMarsh/onion-router/pkg/utils"
	"github.com/pkg/errors"
)

// Directory is where a user learns which relays exist.
type Directory interface {
	GetNodeRegistry(ctx context.Context) ([]structs.Node, error)
}

// User is an end point of the overlay: it originates onions and receives final messages.
type User struct {
	ID        int // Unique identifier for the user.
	Address   int // Address (port) on which the user listens.
	cfg       *config.Config
	directory Directory
	transport api_functions.Transport
	state     *structs.UserState
	rng       *rand.Rand
	rngMu     sync.Mutex // rand.Rand is not safe for concurrent use
}

// NewUser creates a user whose circuits are drawn from rng. A nil rng is seeded from the clock.
func NewUser(id int, cfg *config.Config, directory Directory, transport api_functions.Transport, rng *rand.Rand) *User {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &User{
		ID:        id,
		Address:   cfg.UserAddress(id),
		cfg:       cfg,
		directory: directory,
		transport: transport,
		state:     structs.NewUserState(),
		rng:       rng,
	}
}

// State exposes the diagnostic state of the user.
func (u *User) State() *structs.UserState {
	return u.state
}

// Receive implements api_functions.Receiver. The payload is the final plaintext.
func (u *User) Receive(ctx context.Context, message string) error {
	slog.Info("Received message", "user", u.ID, "message", display(message), "request_id", api_functions.RequestIDFromContext(ctx))
	u.state.SetReceived(message)
	metrics.Inc(metrics.MESSAGES_RECEIVED, u.ID)
	return nil
}

// SendMessage wraps message in a fresh three-relay circuit addressed to destinationUserID
// and hands it to the first relay. It returns the relay ids of the circuit.
// The user's sent state changes only once the first relay has accepted the onion.
func (u *User) SendMessage(ctx context.Context, message string, destinationUserID int) ([]int, error) {
	log := slog.With("user", u.ID, "request_id", api_functions.RequestIDFromContext(ctx))
	log.Info("Sending message", "message", display(message), "to", u.cfg.AddressToName(u.cfg.UserAddress(destinationUserID)))

	nodes, err := u.directory.GetNodeRegistry(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "user.SendMessage(): failed to fetch node registry")
	}
	nodes = utils.Filter(nodes, func(n structs.Node) bool {
		return n.PubKey != ""
	})

	path, err := u.selectPath(registry.ToParticipants(nodes, u.cfg.RelayAddress))
	if err != nil {
		return nil, err
	}
	circuit := utils.Map(path, func(p onion.Participant) int {
		return p.ID
	})
	log.Info("New circuit generated", "circuit", circuit)

	wire, err := onion.BuildOnion(message, path, u.cfg.UserAddress(destinationUserID))
	if err != nil {
		return nil, errors.Wrap(err, "user.SendMessage(): failed to build onion")
	}

	log.Debug("Forwarding onion to first relay", "relay", path[0].ID)
	if err = u.transport.Send(ctx, path[0].Address, wire); err != nil {
		metrics.Inc(metrics.FORWARDING_FAILURES, fmt.Sprintf("user-%d", u.ID))
		return nil, errors.Wrapf(err, "user.SendMessage(): failed to send to relay %d", path[0].ID)
	}

	u.state.SetSent(message, circuit)
	metrics.Inc(metrics.MESSAGES_SENT, u.ID)
	return circuit, nil
}

func (u *User) selectPath(participants []onion.Participant) ([]onion.Participant, error) {
	u.rngMu.Lock()
	defer u.rngMu.Unlock()
	return onion.NewCircuit(participants, u.rng)
}

func display(message string) string {
	if message == "" {
		return "<EMPTY MESSAGE>"
	}
	return message
}
