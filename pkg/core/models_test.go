package core

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type label string

func (l label) Key() string { return string(l) }

func TestDistribution_AddMergesEqualKeys(t *testing.T) {
	d := NewDistribution[label](0)
	d.Add("a", 0.25)
	d.Add("b", 0.5)
	d.Add("a", 0.25)
	d.Add("c", 0)

	assert.Equal(t, 2, d.Len())
	assert.InDelta(t, 1.0, d.Total(), 1e-12)
	assert.InDelta(t, 0.5, d.Prob("a"), 1e-12)
	assert.InDelta(t, 0.5, d.Prob("b"), 1e-12)
	assert.Zero(t, d.Prob("c"))

	outcomes := d.Outcomes()
	require.Len(t, outcomes, 2)
	assert.Equal(t, label("a"), outcomes[0].Value)
	assert.Equal(t, label("b"), outcomes[1].Value)
}

func TestDistribution_RejectsInvalidWeights(t *testing.T) {
	d := NewDistribution[label](0)
	require.NoError(t, d.Add("a", 1))

	for _, w := range []float64{-1, math.NaN(), math.Inf(1), math.Inf(-1)} {
		assert.ErrorIs(t, d.Add("b", w), ErrInvalidWeight, "weight %v", w)
	}
	assert.Equal(t, 1, d.Len())
	assert.Equal(t, 1.0, d.Total())
}

func TestDistribution_SampleEmpty(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 1))
	_, err := NewDistribution[label](0).Sample(rng)
	assert.ErrorIs(t, err, ErrEmptyDistribution)
}

func TestDistribution_SampleFollowsWeights(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 7))
	d := NewDistribution[label](2)
	d.Add("rare", 1)
	d.Add("common", 9)

	counts := map[label]int{}
	const n = 20000
	for i := 0; i < n; i++ {
		v, err := d.Sample(rng)
		require.NoError(t, err)
		counts[v]++
	}
	assert.InDelta(t, 0.1, float64(counts["rare"])/n, 0.02)
	assert.InDelta(t, 0.9, float64(counts["common"])/n, 0.02)
}

func TestDistribution_SampleDeterministicUnderSeed(t *testing.T) {
	d := NewDistribution[label](3)
	d.Add("x", 1)
	d.Add("y", 1)
	d.Add("z", 1)

	draw := func() []label {
		rng := rand.New(rand.NewPCG(42, 42))
		out := make([]label, 50)
		for i := range out {
			out[i], _ = d.Sample(rng)
		}
		return out
	}
	assert.Equal(t, draw(), draw())
}

func TestDeterministicAndExpect(t *testing.T) {
	d := Deterministic(label("only"))
	assert.Equal(t, 1, d.Len())
	assert.Equal(t, 1.0, d.Prob("only"))

	w := NewDistribution[label](2)
	w.Add("a", 1)
	w.Add("b", 3)
	got := w.Expect(func(l label) float64 {
		if l == "a" {
			return 4
		}
		return 8
	})
	assert.InDelta(t, 7.0, got, 1e-12)
}
