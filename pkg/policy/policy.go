package policy

import (
	"context"
	"errors"

	"github.com/boristopalov/classroom/pkg/agent"
	"github.com/boristopalov/classroom/pkg/core"
)

// ErrNoObservation is returned when a policy is asked to act on an empty history.
var ErrNoObservation = errors.New("policy: empty observation history")

type (
	StudentPolicy = core.Policy[agent.StudentObservation, agent.StudentAction]
	TeacherPolicy = core.Policy[agent.TeacherObservation, agent.TeacherAction]
)

// Memoryless adapts a function of the latest observation into a Policy.
type Memoryless[O, A any] func(ctx context.Context, o O) (A, error)

func (f Memoryless[O, A]) Act(ctx context.Context, history []O) (A, error) {
	if len(history) == 0 {
		var zero A
		return zero, ErrNoObservation
	}
	return f(ctx, history[len(history)-1])
}

func latest[O any](history []O) (O, error) {
	if len(history) == 0 {
		var zero O
		return zero, ErrNoObservation
	}
	return history[len(history)-1], nil
}
