package core

import (
	"context"
	"math/rand/v2"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counter is a tiny process: the state is an integer, "inc" moves up by one
// or two with equal probability, "stay" keeps it. The observation is the
// state's parity.
type counter int

func (c counter) Key() string { return strconv.Itoa(int(c)) }

type move string

func (m move) Key() string { return string(m) }

type parity bool

func (p parity) Key() string { return strconv.FormatBool(bool(p)) }

type counterProcess struct{}

func (counterProcess) Discount() float64 { return 0.5 }

func (counterProcess) Transition(_ *rand.Rand, s counter, a move) (*Distribution[counter], error) {
	if a == "stay" {
		return Deterministic(s), nil
	}
	d := NewDistribution[counter](2)
	d.Add(s+1, 0.5)
	d.Add(s+2, 0.5)
	return d, nil
}

func (counterProcess) Reward(s counter, _ move, sp counter) float64 {
	return float64(sp - s)
}

func (counterProcess) Observation(_ *rand.Rand, _ move, sp counter) (*Distribution[parity], error) {
	return Deterministic(parity(sp%2 == 0)), nil
}

type constPolicy move

func (p constPolicy) Act(_ context.Context, _ []parity) (move, error) {
	return move(p), nil
}

func TestExpectedReward(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 1))
	r, err := ExpectedReward[counter, move, parity](rng, counterProcess{}, 0, "inc")
	require.NoError(t, err)
	assert.InDelta(t, 1.5, r, 1e-12)

	r, err = ExpectedReward[counter, move, parity](rng, counterProcess{}, 3, "stay")
	require.NoError(t, err)
	assert.Zero(t, r)
}

func TestBeliefReward(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 1))
	b := NewDistribution[counter](2)
	b.Add(0, 1)
	b.Add(10, 3)
	r, err := BeliefReward[counter, move, parity](rng, counterProcess{}, b, "inc")
	require.NoError(t, err)
	assert.InDelta(t, 1.5, r, 1e-12)
}

func TestLookahead(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 1))
	u := func(s counter) float64 { return float64(s) * 10 }
	v, err := Lookahead[counter, move, parity](rng, counterProcess{}, 0, "inc", u)
	require.NoError(t, err)
	// 1.5 + 0.5 * (0.5*10 + 0.5*20)
	assert.InDelta(t, 9.0, v, 1e-12)
}

func TestBeliefLookahead(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 1))
	b := Deterministic(counter(0))

	// utility of a belief is its mean state
	u := func(b *Distribution[counter]) float64 {
		return b.Expect(func(s counter) float64 { return float64(s) })
	}
	// an observation collapses the belief onto the matching successor
	update := func(_ *Distribution[counter], _ move, o parity) *Distribution[counter] {
		if o {
			return Deterministic(counter(2))
		}
		return Deterministic(counter(1))
	}

	v, err := BeliefLookahead[counter, move, parity](rng, counterProcess{}, b, "inc", u, update)
	require.NoError(t, err)
	// 1.5 + 0.5 * (0.5*1 + 0.5*2)
	assert.InDelta(t, 2.25, v, 1e-12)
}

func TestRollout(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 1))
	v, err := Rollout[counter, move, parity](context.Background(), rng, counterProcess{}, 0, true, constPolicy("inc"), 3)
	require.NoError(t, err)
	// 1.5 * (1 + 0.5 + 0.25)
	assert.InDelta(t, 2.625, v, 1e-12)

	v, err = Rollout[counter, move, parity](context.Background(), rng, counterProcess{}, 0, true, constPolicy("stay"), 5)
	require.NoError(t, err)
	assert.Zero(t, v)
}

func TestRollout_Cancelled(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 1))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Rollout[counter, move, parity](ctx, rng, counterProcess{}, 0, true, constPolicy("inc"), 3)
	assert.ErrorIs(t, err, context.Canceled)
}
