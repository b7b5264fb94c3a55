package core

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
)

// ExpectedReward returns sum over sp of P(sp|s,a) * R(s,a,sp).
func ExpectedReward[S, A, O Keyed](rng *rand.Rand, p Process[S, A, O], s S, a A) (float64, error) {
	t, err := p.Transition(rng, s, a)
	if err != nil {
		return 0, err
	}
	return t.Expect(func(sp S) float64 { return p.Reward(s, a, sp) }), nil
}

// BeliefReward returns the expected reward of taking a under belief b.
func BeliefReward[S, A, O Keyed](rng *rand.Rand, p Process[S, A, O], b *Distribution[S], a A) (float64, error) {
	var out float64
	for _, o := range b.outcomes {
		r, err := ExpectedReward(rng, p, o.Value, a)
		if err != nil {
			return 0, err
		}
		out += o.Weight / b.total * r
	}
	return out, nil
}

// Lookahead returns R(s,a) + discount * E[U(sp)] using a single draw of the
// transition model for both terms.
func Lookahead[S, A, O Keyed](rng *rand.Rand, p Process[S, A, O], s S, a A, u func(S) float64) (float64, error) {
	t, err := p.Transition(rng, s, a)
	if err != nil {
		return 0, err
	}
	r := t.Expect(func(sp S) float64 { return p.Reward(s, a, sp) })
	return r + p.Discount()*t.Expect(u), nil
}

// BeliefLookahead returns the expected utility of taking a from belief b:
// R(b,a) + discount * sum over o of P(o|b,a) * U(update(b,a,o)).
func BeliefLookahead[S, A, O Keyed](
	rng *rand.Rand,
	p Process[S, A, O],
	b *Distribution[S],
	a A,
	u func(*Distribution[S]) float64,
	update func(b *Distribution[S], a A, o O) *Distribution[S],
) (float64, error) {
	if b.total == 0 {
		return 0, ErrEmptyDistribution
	}

	var reward float64
	obs := NewDistribution[O](0)
	for _, bs := range b.outcomes {
		pb := bs.Weight / b.total
		t, err := p.Transition(rng, bs.Value, a)
		if err != nil {
			return 0, err
		}
		for _, ts := range t.outcomes {
			pt := ts.Weight / t.total
			reward += pb * pt * p.Reward(bs.Value, a, ts.Value)

			z, err := p.Observation(rng, a, ts.Value)
			if err != nil {
				return 0, err
			}
			for _, zo := range z.outcomes {
				if err := obs.Add(zo.Value, pb*pt*zo.Weight/z.total); err != nil {
					return 0, err
				}
			}
		}
	}

	var future float64
	for _, o := range obs.outcomes {
		future += o.Weight * u(update(b, a, o.Value))
	}
	return reward + p.Discount()*future, nil
}

// Rollout simulates depth steps from s under pi and returns the discounted
// sum of expected rewards. o seeds the observation history.
func Rollout[S, A, O Keyed](ctx context.Context, rng *rand.Rand, p Process[S, A, O], s S, o O, pi Policy[O, A], depth int) (float64, error) {
	var out float64
	history := []O{o}

	for i := 0; i < depth; i++ {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		a, err := pi.Act(ctx, history)
		if err != nil {
			return out, fmt.Errorf("rollout step %d: %w", i, err)
		}

		t, err := p.Transition(rng, s, a)
		if err != nil {
			return out, fmt.Errorf("rollout step %d: %w", i, err)
		}
		if t.Len() == 0 {
			break
		}
		out += math.Pow(p.Discount(), float64(i)) * t.Expect(func(sp S) float64 { return p.Reward(s, a, sp) })

		sp, err := t.Sample(rng)
		if err != nil {
			return out, err
		}
		z, err := p.Observation(rng, a, sp)
		if err != nil {
			return out, err
		}
		next, err := z.Sample(rng)
		if err != nil {
			return out, err
		}
		history = append(history, next)
		s = sp
	}

	return out, nil
}
