package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCluster_BelowMinIsSingleCluster(t *testing.T) {
	idToVector := map[string][]float64{
		"a": {0, 0},
		"b": {10, 10},
	}
	cfg := DefaultConfig()
	cfg.MinClusters = 3
	result := Cluster(idToVector, cfg)
	assert.Len(t, result, 1)
	assert.Len(t, result[0], 2)
}

func TestCluster_SeparatesDistinctGroups(t *testing.T) {
	idToVector := map[string][]float64{
		"a1": {0, 0}, "a2": {0.1, 0.1}, "a3": {-0.1, 0.1},
		"b1": {50, 50}, "b2": {50.1, 49.9}, "b3": {49.9, 50.1},
	}
	result := Cluster(idToVector, DefaultConfig())

	total := 0
	for _, members := range result {
		total += len(members)
	}
	assert.Equal(t, 6, total)
	assert.GreaterOrEqual(t, len(result), 2)
}

func TestCluster_EmptyInput(t *testing.T) {
	result := Cluster(map[string][]float64{}, DefaultConfig())
	assert.Empty(t, result)
}

func TestCluster_AllIDsAccountedFor(t *testing.T) {
	idToVector := map[string][]float64{
		"a": {0, 0}, "b": {1, 1}, "c": {2, 2}, "d": {20, 20}, "e": {21, 21},
	}
	result := Cluster(idToVector, DefaultConfig())

	seen := map[string]bool{}
	for _, members := range result {
		for _, id := range members {
			seen[id] = true
		}
	}
	assert.Len(t, seen, 5)
}
