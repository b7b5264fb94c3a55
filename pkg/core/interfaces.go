package core

import (
	"context"
	"math/rand/v2"
	"time"
)

// Process is a partially observable Markov decision process. It holds only
// the model; the current state lives with the caller and is passed in.
type Process[S, A, O Keyed] interface {
	// Discount returns the discount factor in [0, 1] used by planners
	Discount() float64
	// Transition returns the distribution over next states for taking a in s
	Transition(rng *rand.Rand, s S, a A) (*Distribution[S], error)
	// Reward is fully determined by the (s, a, sp) triple
	Reward(s S, a A, sp S) float64
	// Observation returns the distribution over observations after taking a and landing in sp
	Observation(rng *rand.Rand, a A, sp S) (*Distribution[O], error)
}

// Policy chooses an action from an observation history. The last element of
// history is the most recent observation. Implementations must only read
// what they are given.
type Policy[O, A any] interface {
	Act(ctx context.Context, history []O) (A, error)
}

// Experiment coordinates the running of experiments
type Experiment interface {
	// Run executes the experiment according to configuration
	Run(ctx context.Context) error
	// Stop gracefully stops the experiment
	Stop() error
	// Status returns current experiment status
	Status() ExperimentStatus
}

type ExperimentStatus struct {
	Running        bool
	StepsCompleted int
	StartTime      time.Time
	EndTime        time.Time
	Errors         []error
}
