package optimizer

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StratGate/pkg/config"
)

func optConfig(seed int64) config.Validation {
	return config.Validation{
		PopulationSize:     30,
		Generations:        15,
		MutationRate:       0.1,
		CrossoverRate:      0.7,
		TournamentSize:     3,
		PlateauGenerations: 5,
		Seed:               seed,
	}
}

func sphereRanges() map[string]ParamRange {
	return map[string]ParamRange{
		"x": {Min: -5, Max: 5},
		"y": {Min: -5, Max: 5},
	}
}

// Negated sphere function, maximum 0 at the origin.
func sphere(params map[string]float64) (float64, error) {
	return -(params["x"]*params["x"] + params["y"]*params["y"]), nil
}

func TestOptimizeImprovesFitness(t *testing.T) {
	g, err := NewGenetic(optConfig(42), sphereRanges(), nil, nil)
	require.NoError(t, err)

	res, err := g.Optimize(context.Background(), "TEST", sphere)
	require.NoError(t, err)

	assert.Greater(t, res.BestFitness, -5.0)
	assert.InDelta(t, 0.0, res.BestParams["x"], 2.5)
	assert.InDelta(t, 0.0, res.BestParams["y"], 2.5)
}

// Monotonic elitism: best fitness never decreases, across several seeds.
func TestBestFitnessMonotonic(t *testing.T) {
	for seed := int64(1); seed <= 8; seed++ {
		g, err := NewGenetic(optConfig(seed), sphereRanges(), nil, nil)
		require.NoError(t, err)

		res, err := g.Optimize(context.Background(), "TEST", sphere)
		require.NoError(t, err, "seed %d", seed)

		for i := 1; i < len(res.History); i++ {
			assert.GreaterOrEqual(t, res.History[i], res.History[i-1], "seed %d generation %d", seed, i)
		}
	}
}

func TestSameSeedReproduces(t *testing.T) {
	run := func() *Result {
		g, err := NewGenetic(optConfig(7), sphereRanges(), nil, nil)
		require.NoError(t, err)
		res, err := g.Optimize(context.Background(), "TEST", sphere)
		require.NoError(t, err)
		return res
	}
	a, b := run(), run()
	assert.Equal(t, a.BestFitness, b.BestFitness)
	assert.Equal(t, a.BestParams, b.BestParams)
	assert.Equal(t, a.History, b.History)
}

// Evaluation failures are assigned the worst fitness, not excluded; the
// run survives as long as anything evaluates.
func TestFailedIndividualsArePenalized(t *testing.T) {
	g, err := NewGenetic(optConfig(3), sphereRanges(), nil, nil)
	require.NoError(t, err)

	res, err := g.Optimize(context.Background(), "TEST", func(params map[string]float64) (float64, error) {
		if params["x"] < 0 {
			return 0, fmt.Errorf("insufficient history")
		}
		return -params["x"], nil
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, res.BestParams["x"], 0.0)
}

func TestAllFailuresReturnError(t *testing.T) {
	g, err := NewGenetic(optConfig(3), sphereRanges(), nil, nil)
	require.NoError(t, err)

	_, err = g.Optimize(context.Background(), "TEST", func(map[string]float64) (float64, error) {
		return 0, fmt.Errorf("always broken")
	})
	assert.Error(t, err)
}

func TestPlateauStopsEarly(t *testing.T) {
	cfg := optConfig(5)
	cfg.Generations = 100
	cfg.PlateauGenerations = 3
	g, err := NewGenetic(cfg, sphereRanges(), nil, nil)
	require.NoError(t, err)

	// Constant fitness plateaus immediately after the first generation.
	res, err := g.Optimize(context.Background(), "TEST", func(map[string]float64) (float64, error) {
		return 1.0, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Generations)
}

func TestMutationClampsToRange(t *testing.T) {
	cfg := optConfig(11)
	cfg.MutationRate = 1.0
	g, err := NewGenetic(cfg, sphereRanges(), nil, nil)
	require.NoError(t, err)

	res, err := g.Optimize(context.Background(), "TEST", sphere)
	require.NoError(t, err)
	for k, v := range res.BestParams {
		r := sphereRanges()[k]
		assert.GreaterOrEqual(t, v, r.Min, k)
		assert.LessOrEqual(t, v, r.Max, k)
	}
}

func TestCancelledContext(t *testing.T) {
	g, err := NewGenetic(optConfig(1), sphereRanges(), nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = g.Optimize(ctx, "TEST", sphere)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInvalidRanges(t *testing.T) {
	_, err := NewGenetic(optConfig(1), nil, nil, nil)
	assert.Error(t, err)

	_, err = NewGenetic(optConfig(1), map[string]ParamRange{"x": {Min: 2, Max: 1}}, nil, nil)
	assert.Error(t, err)
}

func TestWorstFitnessOrdering(t *testing.T) {
	assert.True(t, worstFitness < -math.MaxFloat64/2)
}
