package policy

import (
	"context"
	"math/rand/v2"

	"github.com/boristopalov/classroom/pkg/agent"
)

// AlwaysWork spends every day working and submits with probability
// submitThreshold when it holds an assignment.
type AlwaysWork struct {
	rng             *rand.Rand
	submitThreshold float64
}

func NewAlwaysWork(seed uint64, submitThreshold float64) *AlwaysWork {
	return &AlwaysWork{
		rng:             rand.New(rand.NewPCG(seed, seed)),
		submitThreshold: submitThreshold,
	}
}

func (p *AlwaysWork) Act(_ context.Context, history []agent.StudentObservation) (agent.StudentAction, error) {
	o, err := latest(history)
	if err != nil {
		return agent.StudentAction{}, err
	}
	if o.NumAssignments > 0 && p.rng.Float64() < p.submitThreshold {
		return agent.SubmitAction(), nil
	}
	return agent.StudentAction{Rest: 0, Work: 1}, nil
}

// AlwaysRest never works and never submits.
func AlwaysRest() StudentPolicy {
	return Memoryless[agent.StudentObservation, agent.StudentAction](
		func(context.Context, agent.StudentObservation) (agent.StudentAction, error) {
			return agent.StudentAction{Rest: 1, Work: 0}, nil
		})
}

// AlwaysGrade spends all of the teacher's time grading.
func AlwaysGrade() TeacherPolicy {
	return Memoryless[agent.TeacherObservation, agent.TeacherAction](
		func(context.Context, agent.TeacherObservation) (agent.TeacherAction, error) {
			return agent.TeacherAction{Grading: 1}, nil
		})
}

// TeacherRest spends all of the teacher's time resting.
func TeacherRest() TeacherPolicy {
	return Memoryless[agent.TeacherObservation, agent.TeacherAction](
		func(context.Context, agent.TeacherObservation) (agent.TeacherAction, error) {
			return agent.TeacherAction{Rest: 1}, nil
		})
}
