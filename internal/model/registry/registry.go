package registry

import (
	"context"
	"log/slog"

	"github.com/HannahMarsh/onion-router/internal/api/structs"
	"github.com/HannahMarsh/onion-router/internal/metrics"
	"github.com/HannahMarsh/onion-router/internal/onion"
	"github.com/HannahMarsh/onion-router/internal/repositories"
	"github.com/HannahMarsh/onion-router/pkg/utils"
	"github.com/pkg/errors"
)

// Registry is the directory that relays publish their public keys to and
// that users read before building a circuit.
type Registry struct {
	repo repositories.NodeRepository
}

// NewRegistry creates a registry backed by repo
func NewRegistry(repo repositories.NodeRepository) *Registry {
	return &Registry{repo: repo}
}

// Register adds a relay. The first registration of an id wins.
func (r *Registry) Register(id int, pubKey string) error {
	if err := r.repo.RegisterNode(structs.Node{NodeID: id, PubKey: pubKey}); err != nil {
		return err
	}
	slog.Info("Registered node", "id", id)
	if nodes, err := r.repo.GetNodes(); err == nil {
		metrics.Set(metrics.REGISTERED_NODES, float64(len(nodes)))
	}
	return nil
}

// ListNodes returns every registered node ordered by id.
func (r *Registry) ListNodes() ([]structs.Node, error) {
	nodes, err := r.repo.GetNodes()
	if err != nil {
		return nil, errors.Wrap(err, "registry.ListNodes(): failed to read nodes")
	}
	return nodes, nil
}

// ListParticipants returns the directory in the form circuit selection consumes.
func (r *Registry) ListParticipants(relayAddress func(id int) int) ([]onion.Participant, error) {
	nodes, err := r.ListNodes()
	if err != nil {
		return nil, err
	}
	return ToParticipants(nodes, relayAddress), nil
}

// ToParticipants attaches listening addresses to directory entries.
func ToParticipants(nodes []structs.Node, relayAddress func(id int) int) []onion.Participant {
	return utils.Map(nodes, func(n structs.Node) onion.Participant {
		return onion.Participant{ID: n.NodeID, Address: relayAddress(n.NodeID), PublicKey: n.PubKey}
	})
}

func (r *Registry) Close() error {
	return r.repo.Close()
}

// Open creates a registry backed by Postgres when databaseURL is set, and by memory otherwise.
func Open(ctx context.Context, databaseURL string) (*Registry, error) {
	if databaseURL == "" {
		return NewRegistry(repositories.NewNodeRepository()), nil
	}
	repo, err := repositories.NewPostgresNodeRepository(ctx, databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "registry.Open(): failed to open postgres repository")
	}
	slog.Info("Using postgres node repository")
	return NewRegistry(repo), nil
}
