package opt

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lineProblem() *Problem {
	net := lineNet{"A": 0, "B": 5, "C": 8, "D": 20}
	return &Problem{
		Network: net,
		Vehicles: []Vehicle{
			{ID: "v1", Capacity: 10, CostPerKm: 2, Start: "A"},
			{ID: "v2", Capacity: 10, CostPerKm: 1, Start: "D"},
		},
		Tasks: []Task{
			{ID: "t1", Pickup: "A", Delivery: "B", Weight: 4},
			{ID: "t2", Pickup: "C", Delivery: "D", Weight: 3},
		},
	}
}

func TestInsertDelta(t *testing.T) {
	p := lineProblem()
	m := NewCostModel(p)
	pick := Action{Task: 0, Pickup: true}
	del := Action{Task: 0}

	// Head of an empty route: start A -> A.
	assert.Equal(t, 0.0, m.InsertDelta(0, nil, pick, nil))
	// Tail after the pickup: A -> B, rate 2.
	assert.Equal(t, 10.0, m.InsertDelta(0, &pick, del, nil))
	// Between A and B: C is off the segment, detour 8 + 3 - 5.
	assert.Equal(t, 12.0, m.InsertDelta(0, &pick, Action{Task: 1, Pickup: true}, &del))
	assert.Equal(t, -12.0, m.RemoveDelta(0, &pick, Action{Task: 1, Pickup: true}, &del))
	// Missing predecessor means the vehicle start (D for v2).
	assert.Equal(t, 20.0, m.InsertDelta(1, nil, pick, nil))
}

func TestInsertRemoveRestoresCost(t *testing.T) {
	p := lineProblem()
	s, err := Initial(p, InitOptions{Policy: InitSingle, Vehicle: 0})
	require.NoError(t, err)
	before := s.Cost()
	require.NoError(t, s.InsertAt(0, 1, Action{Task: 1, Pickup: true}))
	assert.NotEqual(t, before, s.Cost())
	_, err = s.RemoveAt(0, 1)
	require.NoError(t, err)
	assert.Equal(t, before, s.Cost())
}

func TestIncrementalCostMatchesRecompute(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		p := randomProblem(seed, 3, 6)
		s, err := Initial(p, InitOptions{Policy: InitPack})
		require.NoError(t, err)
		rng := rand.New(rand.NewSource(seed))
		nb := &Neighborhood{}
		for i := 0; i < 50; i++ {
			c, ok, _ := nb.Sample(s, rng)
			if !ok {
				continue
			}
			s = c.Solution
			require.InDelta(t, s.model.TotalCost(s), s.Cost(), 1e-6, "seed %d step %d", seed, i)
		}
		require.NoError(t, Verify(s), "seed %d", seed)
	}
}

func TestRouteCostFromStart(t *testing.T) {
	p := lineProblem()
	s, err := Initial(p, InitOptions{Policy: InitPack})
	require.NoError(t, err)
	// v1: A -> A -> B at rate 2; v2: D -> C -> D at rate 1.
	assert.Equal(t, 10.0, s.model.RouteCost(s, 0))
	assert.Equal(t, 24.0, s.model.RouteCost(s, 1))
	assert.Equal(t, 34.0, s.Cost())
}
