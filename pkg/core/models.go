package core

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// Keyed values expose a canonical string form. Two values are structurally
// equal exactly when their keys are equal.
type Keyed interface {
	Key() string
}

// Outcome is one weighted entry of a Distribution.
type Outcome[T Keyed] struct {
	Value  T
	Weight float64
}

// Distribution is an ordered list of weighted outcomes. Adding a value whose
// key is already present accumulates its weight instead of appending.
type Distribution[T Keyed] struct {
	outcomes []Outcome[T]
	index    map[string]int
	total    float64
}

// NewDistribution creates an empty distribution with room for n outcomes.
func NewDistribution[T Keyed](n int) *Distribution[T] {
	return &Distribution[T]{
		outcomes: make([]Outcome[T], 0, n),
		index:    make(map[string]int, n),
	}
}

// Deterministic returns a distribution with a single outcome of weight 1.
func Deterministic[T Keyed](v T) *Distribution[T] {
	d := NewDistribution[T](1)
	_ = d.Add(v, 1)
	return d
}

// Add records weight w for v. Zero weights are dropped; negative, NaN and
// infinite weights are rejected and leave the distribution unchanged.
func (d *Distribution[T]) Add(v T, w float64) error {
	if !(w >= 0) || math.IsInf(w, 1) {
		return fmt.Errorf("%w: %v for outcome %s", ErrInvalidWeight, w, v.Key())
	}
	if w == 0 {
		return nil
	}
	d.total += w
	k := v.Key()
	if i, ok := d.index[k]; ok {
		d.outcomes[i].Weight += w
		return nil
	}
	d.index[k] = len(d.outcomes)
	d.outcomes = append(d.outcomes, Outcome[T]{Value: v, Weight: w})
	return nil
}

// Len returns the number of distinct outcomes.
func (d *Distribution[T]) Len() int {
	return len(d.outcomes)
}

// Total returns the sum of all weights.
func (d *Distribution[T]) Total() float64 {
	return d.total
}

// Outcomes returns a copy of the weighted outcomes in insertion order.
func (d *Distribution[T]) Outcomes() []Outcome[T] {
	out := make([]Outcome[T], len(d.outcomes))
	copy(out, d.outcomes)
	return out
}

// Prob returns the normalized probability of v, or 0 if v is not an outcome.
func (d *Distribution[T]) Prob(v T) float64 {
	i, ok := d.index[v.Key()]
	if !ok || d.total == 0 {
		return 0
	}
	return d.outcomes[i].Weight / d.total
}

// Expect returns the probability-weighted mean of f over the outcomes.
func (d *Distribution[T]) Expect(f func(T) float64) float64 {
	if d.total == 0 {
		return 0
	}
	var sum float64
	for _, o := range d.outcomes {
		sum += o.Weight * f(o.Value)
	}
	return sum / d.total
}

// Sample draws one outcome with probability proportional to its weight.
func (d *Distribution[T]) Sample(rng *rand.Rand) (T, error) {
	var zero T
	if len(d.outcomes) == 0 || d.total <= 0 {
		return zero, ErrEmptyDistribution
	}
	u := rng.Float64() * d.total
	var cum float64
	for _, o := range d.outcomes {
		cum += o.Weight
		if u < cum {
			return o.Value, nil
		}
	}
	// float rounding can leave u == total
	return d.outcomes[len(d.outcomes)-1].Value, nil
}
