package repositories

import (
	"sync"

	"github.com/HannahMarsh/onion-router/internal/api/structs"
	"github.com/emirpasic/gods/maps/treemap"
	"github.com/pkg/errors"
)

// ErrNodeExists is returned when a node id is registered twice.
var ErrNodeExists = errors.New("node already exists")

// NodeRepository stores the directory of relays and their public keys.
type NodeRepository interface {
	// RegisterNode adds a node. It fails with ErrNodeExists if the id is taken.
	RegisterNode(node structs.Node) error
	// GetNodes returns every registered node ordered by id.
	GetNodes() ([]structs.Node, error)
	Close() error
}

// NodeRepositoryImpl keeps nodes in memory, keyed and ordered by id.
type NodeRepositoryImpl struct {
	nodes *treemap.Map
	mu    sync.RWMutex
}

// NewNodeRepository creates a new in-memory repository
func NewNodeRepository() *NodeRepositoryImpl {
	return &NodeRepositoryImpl{
		nodes: treemap.NewWithIntComparator(),
	}
}

// RegisterNode registers a node in the repository
func (repo *NodeRepositoryImpl) RegisterNode(node structs.Node) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if _, exists := repo.nodes.Get(node.NodeID); exists {
		return errors.Wrapf(ErrNodeExists, "node %d", node.NodeID)
	}
	repo.nodes.Put(node.NodeID, node)
	return nil
}

// GetNodes returns all nodes in ascending id order
func (repo *NodeRepositoryImpl) GetNodes() ([]structs.Node, error) {
	repo.mu.RLock()
	defer repo.mu.RUnlock()
	nodes := make([]structs.Node, 0, repo.nodes.Size())
	it := repo.nodes.Iterator()
	for it.Next() {
		nodes = append(nodes, it.Value().(structs.Node))
	}
	return nodes, nil
}

func (repo *NodeRepositoryImpl) Close() error {
	return nil
}
