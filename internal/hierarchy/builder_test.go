package hierarchy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type node struct {
	ID       uint
	ParentID *uint
	Name     string
}

func ptr(v uint) *uint { return &v }

func buildForest(t *testing.T, items []node) []*Tree[node] {
	t.Helper()
	forest, err := Forest(items,
		func(n node) uint { return n.ID },
		func(n node) *uint { return n.ParentID })
	require.NoError(t, err)
	return forest
}

func TestForestBuildsNestedTrees(t *testing.T) {
	items := []node{
		{ID: 1, Name: "root-a"},
		{ID: 2, ParentID: ptr(1), Name: "child-a1"},
		{ID: 3, ParentID: ptr(2), Name: "grandchild"},
		{ID: 4, Name: "root-b"},
		{ID: 5, ParentID: ptr(1), Name: "child-a2"},
	}

	forest := buildForest(t, items)
	require.Len(t, forest, 2)

	rootA := forest[0]
	assert.Equal(t, "root-a", rootA.Value.Name)
	require.Len(t, rootA.Children, 2)
	assert.Equal(t, "child-a1", rootA.Children[0].Value.Name)
	assert.Equal(t, "child-a2", rootA.Children[1].Value.Name)
	require.Len(t, rootA.Children[0].Children, 1)
	assert.Equal(t, "grandchild", rootA.Children[0].Children[0].Value.Name)

	assert.Equal(t, "root-b", forest[1].Value.Name)
	assert.Empty(t, forest[1].Children)
}

func TestForestTreatsDanglingParentAsRoot(t *testing.T) {
	items := []node{
		{ID: 2, ParentID: ptr(99), Name: "orphan"},
		{ID: 3, ParentID: ptr(2), Name: "orphan-child"},
	}

	forest := buildForest(t, items)
	require.Len(t, forest, 1)
	assert.Equal(t, "orphan", forest[0].Value.Name)
	require.Len(t, forest[0].Children, 1)
	assert.Equal(t, "orphan-child", forest[0].Children[0].Value.Name)
}

func TestForestDetectsCycle(t *testing.T) {
	items := []node{
		{ID: 1, ParentID: ptr(2), Name: "a"},
		{ID: 2, ParentID: ptr(1), Name: "b"},
	}

	_, err := Forest(items,
		func(n node) uint { return n.ID },
		func(n node) *uint { return n.ParentID })
	assert.ErrorIs(t, err, ErrCycle)
}

func TestForestEmptyInput(t *testing.T) {
	forest := buildForest(t, nil)
	assert.Empty(t, forest)
}

func TestFlattenIsPreOrder(t *testing.T) {
	items := []node{
		{ID: 1, Name: "root"},
		{ID: 2, ParentID: ptr(1), Name: "left"},
		{ID: 3, ParentID: ptr(2), Name: "left-leaf"},
		{ID: 4, ParentID: ptr(1), Name: "right"},
	}

	forest := buildForest(t, items)
	flat := Flatten(forest)

	names := make([]string, 0, len(flat))
	for _, n := range flat {
		names = append(names, n.Name)
	}
	assert.Equal(t, []string{"root", "left", "left-leaf", "right"}, names)
}
