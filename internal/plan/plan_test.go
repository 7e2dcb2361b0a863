package plan

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdproute/internal/model"
	"pdproute/internal/opt"
	"pdproute/internal/topology"
)

func TestBuildPlan(t *testing.T) {
	g, err := topology.Build(context.Background(),
		[]topology.City{{Name: "A"}, {Name: "B", X: 3}, {Name: "C", X: 3, Y: 4}},
		[]topology.Road{{From: "A", To: "B"}, {From: "B", To: "C"}},
		nil)
	require.NoError(t, err)
	p := &opt.Problem{
		Network: g,
		Vehicles: []opt.Vehicle{
			{ID: "v1", Capacity: 10, CostPerKm: 2, Start: "A"},
			{ID: "v2", Capacity: 10, CostPerKm: 1, Start: "C"},
		},
		Tasks: []opt.Task{{ID: "t1", Pickup: "A", Delivery: "C", Weight: 3}},
	}
	s, err := opt.Initial(p, opt.InitOptions{Vehicle: 0})
	require.NoError(t, err)

	plans := Build(s, g)
	require.Len(t, plans, 2)
	assert.Equal(t, []model.PlanStep{
		{Kind: model.StepPickup, City: "A", TaskID: "t1"},
		{Kind: model.StepMove, City: "B"},
		{Kind: model.StepMove, City: "C"},
		{Kind: model.StepDeliver, City: "C", TaskID: "t1"},
	}, plans[0].Steps)
	assert.Equal(t, 7.0, plans[0].Distance)
	assert.Equal(t, 14.0, plans[0].Cost)
	assert.Equal(t, s.Cost(), plans[0].Cost+plans[1].Cost)
	assert.Equal(t, 3, plans[0].Load)

	assert.Equal(t, "v2", plans[1].VehicleID)
	assert.Empty(t, plans[1].Steps)
	assert.Zero(t, plans[1].Cost)
}
