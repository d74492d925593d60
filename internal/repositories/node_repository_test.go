package repositories

import (
	"testing"

	"github.com/HannahMarsh/onion-router/internal/api/structs"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeRepository_OrderedById(t *testing.T) {
	repo := NewNodeRepository()
	for _, id := range []int{7, 2, 9, 0} {
		require.NoError(t, repo.RegisterNode(structs.Node{NodeID: id, PubKey: "key"}))
	}

	nodes, err := repo.GetNodes()
	require.NoError(t, err)
	ids := make([]int, len(nodes))
	for i, n := range nodes {
		ids[i] = n.NodeID
	}
	assert.Equal(t, []int{0, 2, 7, 9}, ids)
}

func TestNodeRepository_Duplicate(t *testing.T) {
	repo := NewNodeRepository()
	require.NoError(t, repo.RegisterNode(structs.Node{NodeID: 1, PubKey: "first"}))

	err := repo.RegisterNode(structs.Node{NodeID: 1, PubKey: "second"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNodeExists))

	nodes, err := repo.GetNodes()
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "first", nodes[0].PubKey)
}

func TestNodeRepository_Empty(t *testing.T) {
	nodes, err := NewNodeRepository().GetNodes()
	require.NoError(t, err)
	assert.NotNil(t, nodes)
	assert.Empty(t, nodes)
}
