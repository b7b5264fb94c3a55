package policy

import (
	"context"
	"math/rand/v2"

	"github.com/boristopalov/classroom/pkg/agent"
)

const DefaultSubmitThreshold = 0.3

// RandomStudent submits with probability submitThreshold whenever it holds
// work, otherwise it splits the day between rest and work uniformly.
type RandomStudent struct {
	rng             *rand.Rand
	submitThreshold float64
}

func NewRandomStudent(seed uint64, submitThreshold float64) *RandomStudent {
	return &RandomStudent{
		rng:             rand.New(rand.NewPCG(seed, seed)),
		submitThreshold: submitThreshold,
	}
}

func (p *RandomStudent) Act(_ context.Context, history []agent.StudentObservation) (agent.StudentAction, error) {
	o, err := latest(history)
	if err != nil {
		return agent.StudentAction{}, err
	}
	if o.NumAssignments > 0 && p.rng.Float64() < p.submitThreshold {
		return agent.SubmitAction(), nil
	}
	u := p.rng.Float64()
	split := FullRound([]float64{u, 1 - u}, 1)
	return agent.NewStudentWork(clampUnit(split[0]), clampUnit(split[1]))
}

// RandomTeacher draws its time allocation from a flat Dirichlet.
type RandomTeacher struct {
	rng *rand.Rand
}

func NewRandomTeacher(seed uint64) *RandomTeacher {
	return &RandomTeacher{rng: rand.New(rand.NewPCG(seed, seed))}
}

func (p *RandomTeacher) Act(_ context.Context, history []agent.TeacherObservation) (agent.TeacherAction, error) {
	if _, err := latest(history); err != nil {
		return agent.TeacherAction{}, err
	}
	raw := p.dirichlet()
	r := FullRound(raw[:], 1)
	if a, err := agent.NewTeacherAction(clampUnit(r[0]), clampUnit(r[1]), clampUnit(r[2])); err == nil {
		return a, nil
	}
	return agent.NewTeacherAction(raw[0], raw[1], raw[2])
}

// dirichlet samples Dirichlet(1, 1, 1) as normalized unit exponentials.
func (p *RandomTeacher) dirichlet() [3]float64 {
	var xs [3]float64
	sum := 0.0
	for i := range xs {
		xs[i] = p.rng.ExpFloat64()
		sum += xs[i]
	}
	for i := range xs {
		xs[i] /= sum
	}
	return xs
}

func clampUnit(v float64) float64 {
	return min(max(v, 0), 1)
}
